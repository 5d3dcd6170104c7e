package submission

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memoryRepo struct {
	mu   sync.RWMutex
	data map[uuid.UUID]*Submission
}

// NewMemoryRepo returns a Repository that keeps submissions in process.
// Stored values are cloned on the way in and out.
func NewMemoryRepo() Repository {
	return &memoryRepo{data: make(map[uuid.UUID]*Submission)}
}

func (r *memoryRepo) Create(_ context.Context, s *Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.data[s.ID] = s.Clone()
	return nil
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (r *memoryRepo) Update(_ context.Context, s *Submission, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.data[s.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expectedVersion || cur.Revision != s.Revision {
		return ErrVersionConflict
	}
	next := s.Clone()
	next.Revision = cur.Revision + 1
	if cur.DocumentID != nil {
		id := *cur.DocumentID
		next.DocumentID = &id
	}
	r.data[s.ID] = next
	s.Revision = next.Revision
	return nil
}

func (r *memoryRepo) List(_ context.Context, limit, offset int) ([]*Submission, int, error) {
	return r.list(func(*Submission) bool { return true }, limit, offset)
}

func (r *memoryRepo) ListByFacility(_ context.Context, facilityID string, limit, offset int) ([]*Submission, int, error) {
	return r.list(func(s *Submission) bool { return s.FacilityID == facilityID }, limit, offset)
}

func (r *memoryRepo) list(match func(*Submission) bool, limit, offset int) ([]*Submission, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*Submission
	for _, s := range r.data {
		if match(s) {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]*Submission, 0, end-offset)
	for _, s := range all[offset:end] {
		out = append(out, s.Clone())
	}
	return out, total, nil
}
