package submission

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("submission not found")
	ErrVersionConflict = errors.New("submission was modified concurrently")
)

type Repository interface {
	Create(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	// Update persists s only if the stored version still equals
	// expectedVersion and the stored revision still equals s.Revision,
	// otherwise it returns ErrVersionConflict. On success the stored
	// revision and s.Revision advance by one. A stored document id is never
	// replaced.
	Update(ctx context.Context, s *Submission, expectedVersion int) error
	List(ctx context.Context, limit, offset int) ([]*Submission, int, error)
	ListByFacility(ctx context.Context, facilityID string, limit, offset int) ([]*Submission, int, error)
}
