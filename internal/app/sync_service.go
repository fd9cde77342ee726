package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rtuszik/discogsdash/internal/discogs"
	"github.com/rtuszik/discogsdash/internal/domain"
	"github.com/rtuszik/discogsdash/internal/logger"
	"github.com/rtuszik/discogsdash/internal/metrics"
	"github.com/rtuszik/discogsdash/internal/pricing"
)

var (
	// ErrSyncInProgress is returned when a trigger overlaps a running sync.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrNotConfigured is returned before any network call when the
	// username, consumer key pair or access credential is missing.
	ErrNotConfigured = errors.New("sync is not configured")
)

// PersistenceError wraps a failure of the replace transaction.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return "persist collection: " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// CollectionSource reads the user's collection from the catalog API.
type CollectionSource interface {
	FetchCollection(ctx context.Context, username string) ([]discogs.Release, error)
	CollectionValue(ctx context.Context, username string) (*discogs.CollectionValue, error)
}

// ValueResolver resolves one suggested value per release.
type ValueResolver interface {
	Resolve(ctx context.Context, releaseID int) (*float64, error)
}

// CollectionWriter atomically replaces the stored collection.
type CollectionWriter interface {
	ReplaceCollection(ctx context.Context, items []*domain.CollectionItem, snapshot *domain.ValueSnapshot) error
}

// ProgressReporter publishes run progress for pollers.
type ProgressReporter interface {
	ReportProgress(ctx context.Context, current, total int) error
	ReportStatus(ctx context.Context, state domain.SyncState, lastError string) error
}

// CredentialChecker reports whether an access credential is stored.
type CredentialChecker interface {
	HasCredential(ctx context.Context) (bool, error)
}

// SyncConfig carries the identity a run needs.
type SyncConfig struct {
	Username       string
	ConsumerKey    string
	ConsumerSecret string
}

// SyncResult summarizes a successful run.
type SyncResult struct {
	RunID     string        `json:"runId"`
	ItemCount int           `json:"itemCount"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"-"`
}

// SyncService orchestrates a full collection sync. At most one run is in
// flight at a time; both the scheduler and the HTTP trigger call StartSync.
type SyncService struct {
	cfg      SyncConfig
	source   CollectionSource
	resolver ValueResolver
	writer   CollectionWriter
	progress ProgressReporter
	creds    CredentialChecker
	Logger   *logger.Logger
	now      func() time.Time

	running atomic.Bool
}

func NewSyncService(cfg SyncConfig, source CollectionSource, resolver ValueResolver, writer CollectionWriter, progress ProgressReporter, creds CredentialChecker, log *logger.Logger) *SyncService {
	if log == nil {
		log = logger.Discard()
	}
	return &SyncService{
		cfg:      cfg,
		source:   source,
		resolver: resolver,
		writer:   writer,
		progress: progress,
		creds:    creds,
		Logger:   log.WithComponent("sync"),
		now:      time.Now,
	}
}

// Running reports whether a run is in flight.
func (s *SyncService) Running() bool {
	return s.running.Load()
}

// StartSync runs one full sync. Overlapping calls fail fast with
// ErrSyncInProgress and leave the published status untouched.
func (s *SyncService) StartSync(ctx context.Context) (*SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.RecordSyncRejected()
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	runID := uuid.New().String()
	log := s.Logger.WithRun(runID)
	start := s.now()

	fail := func(err error) (*SyncResult, error) {
		log.Error("Sync failed", "error", err, "duration", s.now().Sub(start))
		if rErr := s.progress.ReportStatus(ctx, domain.SyncStateError, err.Error()); rErr != nil {
			log.Warn("Failed to record sync error", "error", rErr)
		}
		metrics.RecordSyncRun(s.now().Sub(start), 0, err)
		return nil, err
	}

	log.Info("Sync started", "username", s.cfg.Username)
	s.report(log, func() error { return s.progress.ReportStatus(ctx, domain.SyncStateRunning, "") })
	s.report(log, func() error { return s.progress.ReportProgress(ctx, 0, 0) })

	if err := s.validate(ctx); err != nil {
		return fail(err)
	}

	releases, err := s.source.FetchCollection(ctx, s.cfg.Username)
	if err != nil {
		return fail(fmt.Errorf("fetch collection: %w", err))
	}
	total := len(releases)
	log.Info("Collection fetched", "total", total)
	s.report(log, func() error { return s.progress.ReportProgress(ctx, 0, total) })

	snapshot := &domain.ValueSnapshot{}
	if value, err := s.source.CollectionValue(ctx, s.cfg.Username); err != nil {
		log.Warn("Aggregate value lookup failed, continuing without it", "error", err)
	} else {
		snapshot.MinValue = pricing.ParseCurrency(value.Minimum)
		snapshot.MeanValue = pricing.ParseCurrency(value.Median)
		snapshot.MaxValue = pricing.ParseCurrency(value.Maximum)
	}

	items := make([]*domain.CollectionItem, 0, total)
	for i, release := range releases {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		current := i + 1
		s.report(log, func() error { return s.progress.ReportProgress(ctx, current, total) })

		item := ConvertRelease(release)
		value, err := s.resolver.Resolve(ctx, item.ReleaseID)
		if err != nil {
			metrics.PriceLookupFailures.Inc()
			log.WithRelease(item.ReleaseID, item.Title).Warn("Price lookup failed, recording no value", "error", err)
			value = nil
		}
		checked := s.now().UTC()
		item.SuggestedValue = value
		item.LastValueCheck = &checked
		items = append(items, item)
	}

	snapshot.Timestamp = s.now().UTC()
	snapshot.ItemCount = len(items)
	if err := s.writer.ReplaceCollection(ctx, items, snapshot); err != nil {
		return fail(&PersistenceError{Err: err})
	}

	duration := s.now().Sub(start)
	s.report(log, func() error { return s.progress.ReportStatus(ctx, domain.SyncStateIdle, "") })
	metrics.RecordSyncRun(duration, len(items), nil)

	result := &SyncResult{
		RunID:     runID,
		ItemCount: len(items),
		Message:   fmt.Sprintf("Synced %d items in %s", len(items), duration.Round(time.Millisecond)),
		Duration:  duration,
	}
	log.Info("Sync completed", "items", result.ItemCount, "duration", duration)
	return result, nil
}

func (s *SyncService) validate(ctx context.Context) error {
	var missing []string
	if s.cfg.Username == "" {
		missing = append(missing, "username")
	}
	if s.cfg.ConsumerKey == "" || s.cfg.ConsumerSecret == "" {
		missing = append(missing, "consumer key and secret")
	}
	if len(missing) == 0 {
		ok, err := s.creds.HasCredential(ctx)
		if err != nil {
			return fmt.Errorf("check credential: %w", err)
		}
		if !ok {
			missing = append(missing, "access credential (complete the authorization handshake)")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}
	return nil
}

// report logs progress write failures; they never fail a run.
func (s *SyncService) report(log *logger.Logger, fn func() error) {
	if err := fn(); err != nil {
		log.Warn("Failed to publish sync progress", "error", err)
	}
}
