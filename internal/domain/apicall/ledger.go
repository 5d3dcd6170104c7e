package apicall

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger is the append-only audit trail of simulated API calls. There is no
// update or delete.
type Ledger interface {
	Record(ctx context.Context, r *Record) error
	// ListBySubmission returns the calls for one submission oldest first.
	ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*Record, error)
	// List pages the whole ledger newest first.
	List(ctx context.Context, limit, offset int) ([]*Record, int, error)
}

type memoryLedger struct {
	mu      sync.RWMutex
	entries []Record
	bySub   map[uuid.UUID][]int
}

// NewMemoryLedger returns an in-process ledger indexed by submission id.
func NewMemoryLedger() Ledger {
	return &memoryLedger{bySub: make(map[uuid.UUID][]int)}
}

func (l *memoryLedger) Record(_ context.Context, r *Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, copyRecord(r))
	l.bySub[r.SubmissionID] = append(l.bySub[r.SubmissionID], len(l.entries)-1)
	return nil
}

func (l *memoryLedger) ListBySubmission(_ context.Context, submissionID uuid.UUID) ([]*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.bySub[submissionID]
	out := make([]*Record, 0, len(idx))
	for _, i := range idx {
		r := copyRecord(&l.entries[i])
		out = append(out, &r)
	}
	return out, nil
}

func (l *memoryLedger) List(_ context.Context, limit, offset int) ([]*Record, int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := len(l.entries)
	if offset >= total {
		return nil, total, nil
	}
	n := total - offset
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Record, 0, n)
	for i := total - 1 - offset; i >= 0 && len(out) < n; i-- {
		r := copyRecord(&l.entries[i])
		out = append(out, &r)
	}
	return out, total, nil
}

func copyRecord(r *Record) Record {
	c := *r
	if r.DocumentID != nil {
		id := *r.DocumentID
		c.DocumentID = &id
	}
	return c
}
