package apicall

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ledgerPG stores calls in qi_api_call, an insert-only table. The seq column
// gives the append order; (submission_id, seq) is indexed.
type ledgerPG struct{ pool *pgxpool.Pool }

func NewLedgerPG(pool *pgxpool.Pool) Ledger {
	return &ledgerPG{pool: pool}
}

const callCols = `id, submission_id, recorded_at, endpoint, method, request_summary,
	response_summary, status_code, success, document_id`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.SubmissionID, &r.Timestamp, &r.Endpoint, &r.Method, &r.RequestSummary,
		&r.ResponseSummary, &r.StatusCode, &r.Success, &r.DocumentID)
	return &r, err
}

func (l *ledgerPG) Record(ctx context.Context, r *Record) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	_, err := l.pool.Exec(ctx, `
		INSERT INTO qi_api_call (id, submission_id, recorded_at, endpoint, method, request_summary,
			response_summary, status_code, success, document_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.SubmissionID, r.Timestamp, r.Endpoint, r.Method, r.RequestSummary,
		r.ResponseSummary, r.StatusCode, r.Success, r.DocumentID)
	return err
}

func (l *ledgerPG) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*Record, error) {
	rows, err := l.pool.Query(ctx, `SELECT `+callCols+` FROM qi_api_call WHERE submission_id = $1 ORDER BY seq ASC`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func (l *ledgerPG) List(ctx context.Context, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := l.pool.QueryRow(ctx, `SELECT COUNT(*) FROM qi_api_call`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := l.pool.Query(ctx, `SELECT `+callCols+` FROM qi_api_call ORDER BY seq DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collect(rows)
	return items, total, err
}

func collect(rows pgx.Rows) ([]*Record, error) {
	var items []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
