package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agedcare/qi-submit/internal/platform/fhir"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var ErrQuestionNotFound = errors.New("question not found")

// CreateRequest is the body of a new submission. Answers are seeded by the
// caller; the service never derives auto values.
type CreateRequest struct {
	FacilityID     string               `json:"facility_id" validate:"required"`
	Period         ReportingPeriod      `json:"reporting_period" validate:"required"`
	Questionnaires []QuestionnaireInput `json:"questionnaires" validate:"required,min=1,dive"`
}

type QuestionnaireInput struct {
	IndicatorCode string          `json:"indicator_code" validate:"required"`
	IndicatorName string          `json:"indicator_name" validate:"required"`
	Questions     []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

type QuestionInput struct {
	LinkID       string       `json:"link_id" validate:"required"`
	Text         string       `json:"text" validate:"required"`
	ResponseType ResponseType `json:"response_type" validate:"required,oneof=integer boolean date string"`
	AutoValue    any          `json:"auto_value"`
	Errors       []string     `json:"errors"`
	Warnings     []string     `json:"warnings"`
}

// AnswerRequest sets or clears the manual override of one question. Revert
// drops the override and falls back to the auto value.
type AnswerRequest struct {
	Value  any  `json:"value"`
	Revert bool `json:"revert"`
}

// Stats is the derived validation and progress view of a submission.
type Stats struct {
	Overall         ValidationStatus  `json:"overall_status"`
	Indicators      []IndicatorStatus `json:"indicators"`
	Completion      CompletionStats   `json:"completion"`
	Progress        ProgressStats     `json:"progress"`
	Blockers        []string          `json:"blockers,omitempty"`
	TransportStatus TransportStatus   `json:"transport_status"`
}

type IndicatorStatus struct {
	IndicatorCode string           `json:"indicator_code"`
	Status        ValidationStatus `json:"status"`
}

type Service struct {
	repo             Repository
	locks            *KeyedMutex
	questionnaireURL string
	logger           zerolog.Logger
	now              func() time.Time
}

type ServiceOption func(*Service)

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithServiceLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithServiceLocks shares the per-submission lock with the transport machine
// so answer edits never interleave with a send or a final update.
func WithServiceLocks(l *KeyedMutex) ServiceOption {
	return func(s *Service) { s.locks = l }
}

// WithQuestionnaire sets the canonical url written into previewed documents.
func WithQuestionnaire(canonical string) ServiceOption {
	return func(s *Service) { s.questionnaireURL = canonical }
}

func NewService(repo Repository, opts ...ServiceOption) *Service {
	s := &Service{repo: repo, locks: NewKeyedMutex(), logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateSubmission(ctx context.Context, req CreateRequest, createdBy string) (*Submission, error) {
	if err := validate.Struct(req); err != nil {
		return nil, ValidationErrorToString(req, err)
	}
	seen := map[string]bool{}
	sub := &Submission{
		ID:         uuid.New(),
		FacilityID: req.FacilityID,
		Period:     req.Period,
		Status:     StatusNotStarted,
		FhirStatus: FhirNotSent,
		CreatedBy:  createdBy,
	}
	for _, qi := range req.Questionnaires {
		qn := &Questionnaire{IndicatorCode: qi.IndicatorCode, IndicatorName: qi.IndicatorName}
		for _, in := range qi.Questions {
			if seen[in.LinkID] {
				return nil, fmt.Errorf("duplicate question link id %q", in.LinkID)
			}
			seen[in.LinkID] = true
			q := &Question{
				LinkID:       in.LinkID,
				Text:         in.Text,
				ResponseType: in.ResponseType,
				AutoValue:    in.AutoValue,
				SourceErrors: in.Errors,
				Warnings:     in.Warnings,
			}
			RecheckErrors(q)
			qn.Questions = append(qn.Questions, q)
		}
		sub.Questionnaires = append(sub.Questionnaires, qn)
	}
	now := s.now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	s.logger.Info().Str("submission_id", sub.ID.String()).Str("facility_id", sub.FacilityID).Msg("submission created")
	return sub, nil
}

func (s *Service) GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListSubmissions(ctx context.Context, facilityID string, limit, offset int) ([]*Submission, int, error) {
	if facilityID != "" {
		return s.repo.ListByFacility(ctx, facilityID, limit, offset)
	}
	return s.repo.List(ctx, limit, offset)
}

// SetAnswer records a manual answer, or reverts to the auto value, for one
// question. Type findings are recomputed from the new final value on top of
// the source errors; warnings supplied with the data are kept. The version is
// unchanged; the write is compare-and-set on the revision read and fails
// with ErrVersionConflict if anything was stored in between.
func (s *Service) SetAnswer(ctx context.Context, id uuid.UUID, linkID string, req AnswerRequest) (*Submission, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	q := sub.FindQuestion(linkID)
	if q == nil {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, linkID)
	}
	if req.Revert {
		q.IsOverridden = false
		q.ManualValue = nil
	} else {
		q.IsOverridden = true
		q.ManualValue = req.Value
	}
	RecheckErrors(q)
	if sub.Status == StatusNotStarted {
		sub.Status = StatusInProgress
	}
	sub.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, sub, sub.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			s.logger.Warn().Str("submission_id", id.String()).Msg("answer edit lost a version race")
		}
		return nil, fmt.Errorf("save answer %s: %w", linkID, err)
	}
	return sub, nil
}

// Stats derives the validation rollups and progress counters.
func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	st := &Stats{
		Overall:         OverallStatus(sub),
		Completion:      ComputeCompletionStats(sub),
		Progress:        ComputeProgressStats(sub),
		Blockers:        EligibilityBlockers(sub),
		TransportStatus: sub.TransportStatus(),
	}
	for _, qn := range sub.Questionnaires {
		st.Indicators = append(st.Indicators, IndicatorStatus{IndicatorCode: qn.IndicatorCode, Status: QuestionnaireStatus(qn)})
	}
	return st, nil
}

func (s *Service) Scenario(ctx context.Context, id uuid.UUID) (Scenario, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Scenario{}, err
	}
	return ClassifyScenario(sub, s.now()), nil
}

// Preview renders the document the next transport action would send: a draft
// before the first create, the final update after it. The facility stands in
// for the service the transport resolves at send time.
func (s *Service) Preview(ctx context.Context, id uuid.UUID, authorID, authorDisplay string) (*fhir.QuestionnaireResponse, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	scenario := ClassifyScenario(sub, now)
	status := FhirInProgress
	if sub.DocumentID != nil {
		status = scenario.TargetStatus
	}
	return BuildPayload(sub, PayloadOptions{
		Status:        status,
		Scenario:      scenario,
		Questionnaire: s.questionnaireURL,
		SubjectID:     sub.FacilityID,
		AuthorID:      authorID,
		AuthorDisplay: authorDisplay,
		Authored:      now,
	}), nil
}
