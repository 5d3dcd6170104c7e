package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type submissionRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &submissionRepoPG{pool: pool}
}

const submissionCols = `id, facility_id, reporting_period, questionnaires, status, fhir_status,
	document_id, version, revision, created_by, last_submitted_by, last_submitted_date, created_at, updated_at`

func (r *submissionRepoPG) scan(row pgx.Row) (*Submission, error) {
	var (
		s           Submission
		period, qns []byte
		fhirStatus  string
	)
	err := row.Scan(&s.ID, &s.FacilityID, &period, &qns, &s.Status, &fhirStatus,
		&s.DocumentID, &s.Version, &s.Revision, &s.CreatedBy, &s.LastSubmittedBy, &s.LastSubmittedDate,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.FhirStatus = FhirStatus(fhirStatus)
	if err := json.Unmarshal(period, &s.Period); err != nil {
		return nil, fmt.Errorf("decode reporting period: %w", err)
	}
	if err := json.Unmarshal(qns, &s.Questionnaires); err != nil {
		return nil, fmt.Errorf("decode questionnaires: %w", err)
	}
	return &s, nil
}

func encodeDocs(s *Submission) (period, qns []byte, err error) {
	if period, err = json.Marshal(s.Period); err != nil {
		return nil, nil, fmt.Errorf("encode reporting period: %w", err)
	}
	if qns, err = json.Marshal(s.Questionnaires); err != nil {
		return nil, nil, fmt.Errorf("encode questionnaires: %w", err)
	}
	return period, qns, nil
}

func (r *submissionRepoPG) Create(ctx context.Context, s *Submission) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	period, qns, err := encodeDocs(s)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO qi_submission (id, facility_id, reporting_period, questionnaires, status,
			fhir_status, document_id, version, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		s.ID, s.FacilityID, period, qns, s.Status, string(s.FhirStatus), s.DocumentID,
		s.Version, s.CreatedBy).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *submissionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return r.scan(r.pool.QueryRow(ctx, `SELECT `+submissionCols+` FROM qi_submission WHERE id = $1`, id))
}

// Update is a compare-and-set on version and revision. COALESCE keeps an
// already assigned document id.
func (r *submissionRepoPG) Update(ctx context.Context, s *Submission, expectedVersion int) error {
	period, qns, err := encodeDocs(s)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE qi_submission SET reporting_period=$3, questionnaires=$4, status=$5, fhir_status=$6,
			document_id=COALESCE(document_id, $7), version=$8, last_submitted_by=$9,
			last_submitted_date=$10, revision=revision+1, updated_at=NOW()
		WHERE id = $1 AND version = $2 AND revision = $11`,
		s.ID, expectedVersion, period, qns, s.Status, string(s.FhirStatus), s.DocumentID,
		s.Version, s.LastSubmittedBy, s.LastSubmittedDate, s.Revision)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		s.Revision++
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM qi_submission WHERE id = $1)`, s.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (r *submissionRepoPG) List(ctx context.Context, limit, offset int) ([]*Submission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM qi_submission`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+submissionCols+` FROM qi_submission ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *submissionRepoPG) ListByFacility(ctx context.Context, facilityID string, limit, offset int) ([]*Submission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM qi_submission WHERE facility_id = $1`, facilityID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+submissionCols+` FROM qi_submission WHERE facility_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, facilityID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := r.collect(rows)
	return items, total, err
}

func (r *submissionRepoPG) collect(rows pgx.Rows) ([]*Submission, error) {
	var items []*Submission
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
