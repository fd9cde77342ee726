package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rtuszik/discogsdash/internal/apierr"
	"github.com/rtuszik/discogsdash/internal/discogs"
	"github.com/rtuszik/discogsdash/internal/domain"
	"github.com/rtuszik/discogsdash/internal/logger"
)

type fakeSource struct {
	releases []discogs.Release
	value    *discogs.CollectionValue
	fetchErr error
	valueErr error
	calls    atomic.Int32
	block    chan struct{}
}

func (f *fakeSource) FetchCollection(ctx context.Context, _ string) ([]discogs.Release, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.releases, f.fetchErr
}

func (f *fakeSource) CollectionValue(context.Context, string) (*discogs.CollectionValue, error) {
	f.calls.Add(1)
	return f.value, f.valueErr
}

type fakeResolver struct {
	values map[int]float64
	fail   map[int]bool
	calls  atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, releaseID int) (*float64, error) {
	f.calls.Add(1)
	if f.fail[releaseID] {
		return nil, &apierr.Error{Kind: apierr.KindTransient, StatusCode: 502}
	}
	v, ok := f.values[releaseID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

type fakeWriter struct {
	items    []*domain.CollectionItem
	snapshot *domain.ValueSnapshot
	err      error
	calls    int
}

func (f *fakeWriter) ReplaceCollection(_ context.Context, items []*domain.CollectionItem, snapshot *domain.ValueSnapshot) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.items = items
	f.snapshot = snapshot
	return nil
}

type fakeProgress struct {
	mu       sync.Mutex
	states   []domain.SyncState
	lastErr  string
	current  int
	total    int
	progress int
}

func (f *fakeProgress) ReportProgress(_ context.Context, current, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current, f.total = current, total
	f.progress++
	return nil
}

func (f *fakeProgress) ReportStatus(_ context.Context, state domain.SyncState, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
	f.lastErr = lastError
	return nil
}

func (f *fakeProgress) last() domain.SyncState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return ""
	}
	return f.states[len(f.states)-1]
}

type fakeCreds struct {
	ok bool
}

func (f fakeCreds) HasCredential(context.Context) (bool, error) {
	return f.ok, nil
}

func makeReleases(n int) []discogs.Release {
	out := make([]discogs.Release, n)
	for i := range out {
		out[i] = discogs.Release{
			ID:         100 + i,
			InstanceID: int64(9000 + i),
			DateAdded:  "2024-02-03T10:00:00-08:00",
			BasicInformation: discogs.BasicInformation{
				ID:      100 + i,
				Title:   fmt.Sprintf("Album %d", i),
				Artists: []discogs.Artist{{Name: "Artist"}},
			},
		}
	}
	return out
}

var configured = SyncConfig{Username: "alice", ConsumerKey: "ck", ConsumerSecret: "cs"}

func newService(cfg SyncConfig, src *fakeSource, res *fakeResolver, w *fakeWriter, p *fakeProgress, creds fakeCreds) *SyncService {
	return NewSyncService(cfg, src, res, w, p, creds, logger.Discard())
}

func TestStartSync_Success(t *testing.T) {
	src := &fakeSource{
		releases: makeReleases(137),
		value:    &discogs.CollectionValue{Minimum: "$1,234.56", Median: "€2.000,00", Maximum: "$3,000.10"},
	}
	res := &fakeResolver{values: map[int]float64{100: 12.5}}
	w := &fakeWriter{}
	p := &fakeProgress{}

	svc := newService(configured, src, res, w, p, fakeCreds{ok: true})
	result, err := svc.StartSync(context.Background())
	if err != nil {
		t.Fatalf("StartSync failed: %v", err)
	}

	if result.ItemCount != 137 || len(w.items) != 137 {
		t.Errorf("items = %d / %d, want 137", result.ItemCount, len(w.items))
	}
	if result.RunID == "" {
		t.Error("Expected run id")
	}
	if w.snapshot.ItemCount != 137 {
		t.Errorf("snapshot item count = %d", w.snapshot.ItemCount)
	}
	if w.snapshot.MinValue == nil || *w.snapshot.MinValue != 1234.56 {
		t.Errorf("min = %v", w.snapshot.MinValue)
	}
	if w.snapshot.MeanValue == nil || *w.snapshot.MeanValue != 2000 {
		t.Errorf("mean = %v", w.snapshot.MeanValue)
	}
	if p.total != 137 || p.current != 137 {
		t.Errorf("progress = %d/%d", p.current, p.total)
	}
	if got := p.last(); got != domain.SyncStateIdle {
		t.Errorf("final state = %s, want idle", got)
	}
	if p.states[0] != domain.SyncStateRunning {
		t.Errorf("first state = %s, want running", p.states[0])
	}
	if w.items[0].SuggestedValue == nil || *w.items[0].SuggestedValue != 12.5 {
		t.Errorf("first item value = %v", w.items[0].SuggestedValue)
	}
	if w.items[1].SuggestedValue != nil {
		t.Errorf("item without data should be nil, got %v", *w.items[1].SuggestedValue)
	}
	if w.items[0].LastValueCheck == nil {
		t.Error("Expected LastValueCheck to be set")
	}
	if want := "Synced 137 items in "; len(result.Message) < len(want) || result.Message[:len(want)] != want {
		t.Errorf("message = %q", result.Message)
	}
}

func TestStartSync_MissingConfigMakesNoCalls(t *testing.T) {
	tests := []struct {
		name  string
		cfg   SyncConfig
		creds bool
	}{
		{"no username", SyncConfig{ConsumerKey: "ck", ConsumerSecret: "cs"}, true},
		{"no consumer secret", SyncConfig{Username: "alice", ConsumerKey: "ck"}, true},
		{"no credential", configured, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{releases: makeReleases(3)}
			res := &fakeResolver{}
			w := &fakeWriter{}
			p := &fakeProgress{}

			_, err := newService(tt.cfg, src, res, w, p, fakeCreds{ok: tt.creds}).StartSync(context.Background())
			if !errors.Is(err, ErrNotConfigured) {
				t.Fatalf("expected ErrNotConfigured, got %v", err)
			}
			if src.calls.Load() != 0 || res.calls.Load() != 0 || w.calls != 0 {
				t.Errorf("unexpected calls: source=%d resolver=%d writer=%d", src.calls.Load(), res.calls.Load(), w.calls)
			}
			if p.last() != domain.SyncStateError || p.lastErr == "" {
				t.Errorf("status = %s, lastErr = %q", p.last(), p.lastErr)
			}
		})
	}
}

func TestStartSync_PageFailureAborts(t *testing.T) {
	src := &fakeSource{fetchErr: errors.New("fetch page 2: gave up")}
	w := &fakeWriter{}
	p := &fakeProgress{}

	_, err := newService(configured, src, &fakeResolver{}, w, p, fakeCreds{ok: true}).StartSync(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if w.calls != 0 {
		t.Error("nothing should be written when page fetching fails")
	}
	if p.last() != domain.SyncStateError {
		t.Errorf("state = %s, want error", p.last())
	}
}

func TestStartSync_SinglePriceFailureTolerated(t *testing.T) {
	src := &fakeSource{releases: makeReleases(5), value: &discogs.CollectionValue{}}
	res := &fakeResolver{
		values: map[int]float64{100: 1, 101: 2, 102: 3, 103: 4, 104: 5},
		fail:   map[int]bool{102: true},
	}
	w := &fakeWriter{}
	p := &fakeProgress{}

	result, err := newService(configured, src, res, w, p, fakeCreds{ok: true}).StartSync(context.Background())
	if err != nil {
		t.Fatalf("StartSync failed: %v", err)
	}
	if result.ItemCount != 5 {
		t.Errorf("items = %d", result.ItemCount)
	}
	for _, item := range w.items {
		if item.ReleaseID == 102 {
			if item.SuggestedValue != nil {
				t.Errorf("failed lookup should record nil, got %v", *item.SuggestedValue)
			}
			continue
		}
		if item.SuggestedValue == nil {
			t.Errorf("release %d lost its value", item.ReleaseID)
		}
	}
	if p.last() != domain.SyncStateIdle {
		t.Errorf("state = %s, want idle", p.last())
	}
}

func TestStartSync_AggregateFailureIsNotFatal(t *testing.T) {
	src := &fakeSource{releases: makeReleases(2), valueErr: errors.New("value endpoint down")}
	w := &fakeWriter{}

	_, err := newService(configured, src, &fakeResolver{}, w, &fakeProgress{}, fakeCreds{ok: true}).StartSync(context.Background())
	if err != nil {
		t.Fatalf("StartSync failed: %v", err)
	}
	if w.snapshot.MinValue != nil || w.snapshot.MeanValue != nil || w.snapshot.MaxValue != nil {
		t.Errorf("expected nil aggregates, got %+v", w.snapshot)
	}
	if w.snapshot.ItemCount != 2 {
		t.Errorf("snapshot item count = %d", w.snapshot.ItemCount)
	}
}

func TestStartSync_PersistenceFailure(t *testing.T) {
	src := &fakeSource{releases: makeReleases(2), value: &discogs.CollectionValue{}}
	w := &fakeWriter{err: errors.New("database is locked")}
	p := &fakeProgress{}

	_, err := newService(configured, src, &fakeResolver{}, w, p, fakeCreds{ok: true}).StartSync(context.Background())
	var pErr *PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	if p.last() != domain.SyncStateError || p.lastErr != err.Error() {
		t.Errorf("status = %s, lastErr = %q", p.last(), p.lastErr)
	}
}

func TestStartSync_OverlapRejected(t *testing.T) {
	src := &fakeSource{releases: makeReleases(1), value: &discogs.CollectionValue{}, block: make(chan struct{})}
	p := &fakeProgress{}
	svc := newService(configured, src, &fakeResolver{}, &fakeWriter{}, p, fakeCreds{ok: true})

	done := make(chan error, 1)
	go func() {
		_, err := svc.StartSync(context.Background())
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for src.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first run never started")
		}
		time.Sleep(time.Millisecond)
	}

	p.mu.Lock()
	statesBefore := len(p.states)
	p.mu.Unlock()
	if _, err := svc.StartSync(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}
	p.mu.Lock()
	if len(p.states) != statesBefore {
		t.Error("rejected trigger must not touch the status")
	}
	p.mu.Unlock()

	close(src.block)
	if err := <-done; err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if svc.Running() {
		t.Error("guard should be released after the run")
	}
}
