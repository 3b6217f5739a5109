package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meruscrap/pimapos/internal/models"
)

// MemoryRows is an in-memory Rows implementation for tests and local
// development without a database.
type MemoryRows struct {
	mu   sync.Mutex
	recs map[string]models.NotificationRecord

	// DropWrites simulates a backing store that acknowledges UpdateState but
	// never persists it, which is what read-back verification exists to catch.
	DropWrites bool

	// LeakHandled makes ListPending ignore its predicate and return handled
	// rows too, simulating a stale replica read.
	LeakHandled bool

	InsertErr error
	GetErr    error
}

// NewMemoryRows creates an empty row set.
func NewMemoryRows() *MemoryRows {
	return &MemoryRows{recs: make(map[string]models.NotificationRecord)}
}

func (m *MemoryRows) ListPending(ctx context.Context) ([]models.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.NotificationRecord
	for _, rec := range m.recs {
		if m.LeakHandled || (!rec.IsHandled && !rec.IsDismissed) {
			out = append(out, rec)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (m *MemoryRows) ListUnhandledSince(ctx context.Context, since time.Time) ([]models.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.NotificationRecord
	for _, rec := range m.recs {
		if !rec.IsHandled && rec.CreatedAt.After(since) {
			out = append(out, rec)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (m *MemoryRows) Insert(ctx context.Context, rec *models.NotificationRecord) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.recs[rec.ID] = *rec
	return nil
}

func (m *MemoryRows) UpdateState(ctx context.Context, id string, fields map[string]interface{}) error {
	if m.DropWrites {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return fmt.Errorf("record %s not found", id)
	}
	if v, ok := fields["is_handled"].(bool); ok {
		rec.IsHandled = v
	}
	if v, ok := fields["is_dismissed"].(bool); ok {
		rec.IsDismissed = v
	}
	if v, ok := fields["handled_at"].(time.Time); ok {
		rec.HandledAt = &v
	}
	if v, ok := fields["handled_by"].(string); ok {
		rec.HandledBy = &v
	}
	if v, ok := fields["handled_session"].(string); ok {
		rec.HandledSession = &v
	}
	m.recs[id] = rec
	return nil
}

func (m *MemoryRows) Get(ctx context.Context, id string) (*models.NotificationRecord, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, fmt.Errorf("record %s not found", id)
	}
	return &rec, nil
}

// Put inserts or replaces a record verbatim, bypassing Insert's defaults.
func (m *MemoryRows) Put(rec models.NotificationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = rec
}

func sortByCreated(recs []models.NotificationRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}
