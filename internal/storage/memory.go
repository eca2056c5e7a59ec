package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"interiorDesignAi/internal/design"
)

// InMemoryStore is a thread-safe store used when a database is not configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports []Report
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{reports: make([]Report, 0)}
}

// CreateReport prepends a report, keeping only the newest ones.
func (s *InMemoryStore) CreateReport(_ context.Context, input Report) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	input = prepareReport(input)

	s.reports = append([]Report{input}, s.reports...)
	if len(s.reports) > maxReports {
		s.reports = s.reports[:maxReports]
	}

	return cloneReport(input), nil
}

// ListReports returns a snapshot of stored reports.
func (s *InMemoryStore) ListReports(_ context.Context, sessionID string) ([]Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]Report, 0, len(s.reports))
	for _, r := range s.reports {
		if sessionID != "" && r.SessionID != sessionID {
			continue
		}
		snapshot = append(snapshot, cloneReport(r))
	}
	return snapshot, nil
}

// GetReport returns a report by ID.
func (s *InMemoryStore) GetReport(_ context.Context, id string) (Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.reports {
		if r.ID == id {
			return cloneReport(r), nil
		}
	}
	return Report{}, ErrNotFound
}

// AttachRender records a stored visualization on a report.
func (s *InMemoryStore) AttachRender(_ context.Context, id string, view design.View, render Render) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, r := range s.reports {
		if r.ID == id {
			renders := make(map[design.View]Render, len(r.Renders)+1)
			for k, v := range r.Renders {
				renders[k] = v
			}
			renders[view] = render
			s.reports[idx].Renders = renders
			return cloneReport(s.reports[idx]), nil
		}
	}
	return Report{}, ErrNotFound
}

// DeleteReport removes a report by ID.
func (s *InMemoryStore) DeleteReport(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for idx, r := range s.reports {
		if r.ID == id {
			s.reports = append(s.reports[:idx], s.reports[idx+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Close satisfies the Store interface.
func (s *InMemoryStore) Close() {}

func cloneReport(r Report) Report {
	renders := make(map[design.View]Render, len(r.Renders))
	for k, v := range r.Renders {
		renders[k] = v
	}
	r.Renders = renders
	return r
}
