// Package drafts keeps the single in-progress listing durable while it is
// being edited.
package drafts

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"moveout/pkg/debounce"
	"moveout/pkg/metrics"
	"moveout/pkg/models"
	"moveout/pkg/storage"
)

const (
	// DefaultQuietWindow is how long edits must pause before the draft is written.
	DefaultQuietWindow = 1000 * time.Millisecond

	debounceKey = "draft"
)

// Manager debounces draft writes and tracks whether a draft from a previous
// session is waiting to be resumed.
//
// Every scheduled write and every clear takes a sequence number. A write only
// lands if nothing newer has landed or been cleared since, so a save queued
// before a publish never resurrects the draft afterwards.
type Manager struct {
	store     storage.Store
	debouncer *debounce.Debouncer

	// writeMutex serializes store writes and clears
	writeMutex sync.Mutex

	mutex      sync.Mutex
	seq        uint64
	written    uint64
	pending    *models.SaleItem
	hasPending bool
	lastErr    error
}

// NewManager creates a draft manager. A non-positive window uses DefaultQuietWindow.
func NewManager(store storage.Store, window time.Duration) *Manager {
	if window <= 0 {
		window = DefaultQuietWindow
	}
	return &Manager{
		store:     store,
		debouncer: debounce.NewDebouncer(window),
	}
}

// QuietWindow returns the debounce window in use
func (m *Manager) QuietWindow() time.Duration {
	return m.debouncer.Duration()
}

func (m *Manager) nextSeq() uint64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.seq++
	return m.seq
}

// ScheduleSave records item as the latest draft value and writes it once
// edits have been quiet for the window. Failures are logged, not returned.
func (m *Manager) ScheduleSave(item *models.SaleItem) {
	snapshot := item.Clone()
	seq := m.nextSeq()

	m.debouncer.Debounce(debounceKey, func() {
		if err := m.write(context.Background(), seq, snapshot); err != nil {
			log.Warn().Err(err).Str("id", snapshot.ID).Msg("Draft autosave failed")
		}
	})
}

// SaveNow writes item to the draft slot immediately, superseding any
// scheduled save.
func (m *Manager) SaveNow(ctx context.Context, item *models.SaleItem) error {
	m.debouncer.Cancel(debounceKey)
	return m.write(ctx, m.nextSeq(), item.Clone())
}

// Flush runs a scheduled save right away. It reports whether one was pending.
func (m *Manager) Flush() bool {
	return m.debouncer.Flush(debounceKey)
}

// Scheduled reports whether a debounced save has not fired yet
func (m *Manager) Scheduled() bool {
	return m.debouncer.Pending(debounceKey)
}

// LastError returns the error from the most recent draft write, if it failed.
func (m *Manager) LastError() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.lastErr
}

func (m *Manager) write(ctx context.Context, seq uint64, item *models.SaleItem) error {
	m.writeMutex.Lock()
	defer m.writeMutex.Unlock()

	m.mutex.Lock()
	stale := seq <= m.written
	m.mutex.Unlock()
	if stale {
		log.Debug().Uint64("seq", seq).Msg("Skipping superseded draft write")
		return nil
	}

	err := m.store.PutDraft(ctx, item)
	metrics.ObserveDraftWrite(err)

	m.mutex.Lock()
	m.lastErr = err
	if err == nil {
		m.written = seq
	}
	m.mutex.Unlock()
	return err
}

// CheckForPending reads the draft slot and flags it for resumption. It
// returns the draft found, or nil if the slot is empty.
func (m *Manager) CheckForPending(ctx context.Context) (*models.SaleItem, error) {
	draft, err := m.store.GetLatestDraft(ctx)
	if err != nil {
		return nil, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.pending = draft
	m.hasPending = draft != nil
	if draft != nil {
		log.Info().Str("id", draft.ID).Msg("Found unfinished draft")
	}
	return draft.Clone(), nil
}

// Pending returns the flagged draft without consuming it.
func (m *Manager) Pending() (*models.SaleItem, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.hasPending {
		return nil, false
	}
	return m.pending.Clone(), true
}

// Resume hands back the flagged draft and clears the flag. The persisted
// draft stays until the item is published or discarded.
func (m *Manager) Resume() (*models.SaleItem, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if !m.hasPending {
		return nil, false
	}
	draft := m.pending
	m.pending = nil
	m.hasPending = false
	return draft, true
}

// Discard drops the draft: any scheduled save is cancelled and the
// persisted slot is emptied.
func (m *Manager) Discard(ctx context.Context) error {
	log.Info().Msg("Discarding draft")
	return m.Clear(ctx)
}

// Clear empties the draft slot and invalidates every save issued before it.
// If the store fails nothing changes: the pending flag and any scheduled
// save are kept.
func (m *Manager) Clear(ctx context.Context) error {
	m.writeMutex.Lock()
	defer m.writeMutex.Unlock()

	if err := m.store.ClearDrafts(ctx); err != nil {
		return err
	}

	m.debouncer.Cancel(debounceKey)

	m.mutex.Lock()
	m.seq++
	m.written = m.seq
	m.pending = nil
	m.hasPending = false
	m.lastErr = nil
	m.mutex.Unlock()
	return nil
}
