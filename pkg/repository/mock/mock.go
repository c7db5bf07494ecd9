package mock

import (
	"context"
	"sort"
	"sync"

	"github.com/garnizeh/leavesync/pkg/models"
)

// Mocks bundles in-memory repositories for handler and syncer tests.
type Mocks struct {
	Ledger *NotificationRepo
	Runs   *RunRepo
}

func NewMocks() *Mocks {
	return &Mocks{
		Ledger: &NotificationRepo{},
		Runs:   &RunRepo{},
	}
}

// NotificationRepo keeps notifications in memory.
type NotificationRepo struct {
	mu        sync.Mutex
	Stored    []models.Notification
	HasErr    error
	RecordErr error
	ListErr   error
}

func (m *NotificationRepo) HasSent(ctx context.Context, requestID, status string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HasErr != nil {
		return false, m.HasErr
	}
	for _, n := range m.Stored {
		if n.RequestID == requestID && n.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (m *NotificationRepo) RecordSent(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.RecordErr != nil {
		return m.RecordErr
	}
	for _, s := range m.Stored {
		if s.RequestID == n.RequestID && s.Status == n.Status {
			return nil
		}
	}
	n.ID = int64(len(m.Stored) + 1)
	m.Stored = append(m.Stored, *n)
	return nil
}

func (m *NotificationRepo) ListByRequest(ctx context.Context, requestID string) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []models.Notification
	for _, n := range m.Stored {
		if n.RequestID == requestID {
			out = append(out, n)
		}
	}
	return out, nil
}

// RunRepo keeps sync runs in memory.
type RunRepo struct {
	mu      sync.Mutex
	Stored  map[string]models.SyncRun
	GetErr  error
	ListErr error
}

func (m *RunRepo) StartRun(ctx context.Context, r *models.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Stored == nil {
		m.Stored = make(map[string]models.SyncRun)
	}
	m.Stored[r.ID] = *r
	return nil
}

func (m *RunRepo) FinishRun(ctx context.Context, r *models.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Stored == nil {
		m.Stored = make(map[string]models.SyncRun)
	}
	finished := r.Started + 1
	r.Finished = &finished
	m.Stored[r.ID] = *r
	return nil
}

func (m *RunRepo) GetRun(ctx context.Context, id string) (*models.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	if r, ok := m.Stored[id]; ok {
		return &r, nil
	}
	return nil, nil
}

func (m *RunRepo) ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]models.SyncRun, 0, len(m.Stored))
	for _, r := range m.Stored {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started > out[j].Started })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
