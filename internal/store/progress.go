package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rtuszik/discogsdash/internal/domain"
)

// ProgressStore publishes sync progress through the settings table so
// pollers can read it while a run is in flight.
type ProgressStore struct {
	settings *SettingsRepo
}

func NewProgressStore(settings *SettingsRepo) *ProgressStore {
	return &ProgressStore{settings: settings}
}

func (p *ProgressStore) ReportProgress(_ context.Context, current, total int) error {
	if err := p.settings.Set(SettingSyncCurrentItem, strconv.Itoa(current)); err != nil {
		return fmt.Errorf("set current item: %w", err)
	}
	if err := p.settings.Set(SettingSyncTotalItems, strconv.Itoa(total)); err != nil {
		return fmt.Errorf("set total items: %w", err)
	}
	return nil
}

// ReportStatus records the state and the last error; an empty message clears it.
func (p *ProgressStore) ReportStatus(_ context.Context, state domain.SyncState, lastError string) error {
	if err := p.settings.Set(SettingSyncStatus, string(state)); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if err := p.settings.Set(SettingSyncLastError, lastError); err != nil {
		return fmt.Errorf("set last error: %w", err)
	}
	return nil
}

// Status reads the published progress. A fresh database reports idle.
func (p *ProgressStore) Status(_ context.Context) (*domain.SyncStatus, error) {
	status := &domain.SyncStatus{State: domain.SyncStateIdle}

	state, err := p.settings.Get(SettingSyncStatus)
	if err != nil {
		return nil, err
	}
	if s := domain.SyncState(state); s.Valid() {
		status.State = s
	}

	if status.CurrentItem, err = p.intSetting(SettingSyncCurrentItem); err != nil {
		return nil, err
	}
	if status.TotalItems, err = p.intSetting(SettingSyncTotalItems); err != nil {
		return nil, err
	}
	if status.LastError, err = p.settings.Get(SettingSyncLastError); err != nil {
		return nil, err
	}
	return status, nil
}

func (p *ProgressStore) intSetting(key string) (int, error) {
	v, err := p.settings.Get(key)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
