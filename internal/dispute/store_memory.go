package dispute

import (
	"context"
	"sort"
	"sync"
	"time"

	id "github.com/Allan-Afari/investghanahub-sub000/pkg/domain"
	dErrors "github.com/Allan-Afari/investghanahub-sub000/pkg/domain-errors"
)

type InMemoryStore struct {
	mu       sync.RWMutex
	disputes map[id.DisputeID]Dispute
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{disputes: make(map[id.DisputeID]Dispute)}
}

func (s *InMemoryStore) Create(_ context.Context, d Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.EscrowID != "" {
		for _, existing := range s.disputes {
			if existing.EscrowID == d.EscrowID && existing.Status == StatusOpen {
				return dErrors.New(dErrors.CodeConflict, "escrow already has an open dispute")
			}
		}
	}
	if _, ok := s.disputes[d.ID]; ok {
		return dErrors.New(dErrors.CodeConflict, "dispute already exists")
	}
	s.disputes[d.ID] = d
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, disputeID id.DisputeID) (Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.disputes[disputeID]
	if !ok {
		return Dispute{}, dErrors.New(dErrors.CodeNotFound, "dispute not found")
	}
	return d, nil
}

func (s *InMemoryStore) GetOpenByEscrow(_ context.Context, escrowID id.EscrowID) (Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.disputes {
		if d.EscrowID == escrowID && d.Status == StatusOpen {
			return d, nil
		}
	}
	return Dispute{}, dErrors.New(dErrors.CodeNotFound, "no open dispute for escrow")
}

func (s *InMemoryStore) ListOpen(_ context.Context, limit int) ([]Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Dispute
	for _, d := range s.disputes {
		if d.Status == StatusOpen {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Resolve(_ context.Context, disputeID id.DisputeID, resolution Resolution, resolvedBy id.UserID, note string, at time.Time) (Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disputes[disputeID]
	if !ok {
		return Dispute{}, dErrors.New(dErrors.CodeNotFound, "dispute not found")
	}
	if d.Status != StatusOpen {
		return Dispute{}, dErrors.Newf(dErrors.CodeConflict, "dispute already resolved as %s", d.Resolution)
	}
	d.Status = StatusResolved
	d.Resolution = resolution
	d.ResolvedBy = resolvedBy
	d.ResolutionNote = note
	d.ResolvedAt = &at
	s.disputes[disputeID] = d
	return d, nil
}
