package submission

import (
	"time"

	"github.com/google/uuid"

	"github.com/agedcare/qi-submit/pkg/fhirmodels"
)

// FhirStatus is the status of the QuestionnaireResponse document held by the
// government intake API.
type FhirStatus string

const (
	FhirNotSent    FhirStatus = "not-sent"
	FhirInProgress FhirStatus = fhirmodels.QuestionnaireResponseStatusInProgress
	FhirCompleted  FhirStatus = fhirmodels.QuestionnaireResponseStatusCompleted
	FhirAmended    FhirStatus = fhirmodels.QuestionnaireResponseStatusAmended
)

// Lifecycle labels stored in Submission.Status.
const (
	StatusNotStarted          = "Not Started"
	StatusInProgress          = "In Progress"
	StatusDraftSent           = "Draft Sent"
	StatusSubmitted           = "Submitted"
	StatusLateSubmission      = "Late Submission"
	StatusUpdatedAfterDueDate = "Submitted - Updated after Due Date"
)

// TransportStatus summarises how far a submission has progressed through the
// API exchange. It is never stored; see Submission.TransportStatus.
type TransportStatus string

const (
	TransportNotSent   TransportStatus = "Not Sent"
	TransportDraftSent TransportStatus = "Draft Sent"
	TransportSubmitted TransportStatus = "Submitted"
	TransportAmended   TransportStatus = "Amended"
)

type ResponseType string

const (
	ResponseInteger ResponseType = fhirmodels.ItemTypeInteger
	ResponseBoolean ResponseType = fhirmodels.ItemTypeBoolean
	ResponseDate    ResponseType = fhirmodels.ItemTypeDate
	ResponseString  ResponseType = fhirmodels.ItemTypeString
)

// ReportingPeriod is a fixed quarter with its due date.
type ReportingPeriod struct {
	ID      string     `json:"id"`
	Label   string     `json:"label"`
	Start   *time.Time `json:"start,omitempty"`
	End     *time.Time `json:"end,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// Question is a single indicator question. AutoValue and ManualValue hold the
// raw answer as decoded from JSON: a number, a bool or a string.
//
// SourceErrors are the errors supplied with the pipeline data. Errors is the
// full list the validation rollups read: the source errors followed by the
// findings on the current final value.
type Question struct {
	LinkID       string       `json:"link_id"`
	Text         string       `json:"text"`
	ResponseType ResponseType `json:"response_type"`
	AutoValue    any          `json:"auto_value"`
	IsOverridden bool         `json:"is_overridden"`
	ManualValue  any          `json:"manual_value"`
	SourceErrors []string     `json:"source_errors,omitempty"`
	Errors       []string     `json:"errors,omitempty"`
	Warnings     []string     `json:"warnings,omitempty"`
}

// FinalValue is the manual value when the question is overridden, otherwise
// the auto-derived value.
func (q *Question) FinalValue() any {
	if q.IsOverridden {
		return q.ManualValue
	}
	return q.AutoValue
}

// IsFilled reports whether the final value is present. Zero and false count
// as answers; only nil and "" are empty.
func (q *Question) IsFilled() bool {
	return hasValue(q.FinalValue())
}

func hasValue(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}

// Questionnaire groups the questions of one quality indicator.
type Questionnaire struct {
	IndicatorCode string      `json:"indicator_code"`
	IndicatorName string      `json:"indicator_name"`
	Questions     []*Question `json:"questions"`
}

// Submission is the quarterly report of one facility for one reporting period.
// Version counts the documents accepted by the intake API. Revision counts
// every stored write and is the token repositories compare on update.
type Submission struct {
	ID                uuid.UUID        `json:"id"`
	FacilityID        string           `json:"facility_id"`
	Period            ReportingPeriod  `json:"reporting_period"`
	Questionnaires    []*Questionnaire `json:"questionnaires"`
	Status            string           `json:"status"`
	FhirStatus        FhirStatus       `json:"fhir_status"`
	DocumentID        *string          `json:"document_id,omitempty"`
	Version           int              `json:"version"`
	Revision          int              `json:"revision"`
	CreatedBy         string           `json:"created_by"`
	LastSubmittedBy   *string          `json:"last_submitted_by,omitempty"`
	LastSubmittedDate *time.Time       `json:"last_submitted_date,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// TransportStatus is derived from the document id and FHIR status so the two
// can never disagree.
func (s *Submission) TransportStatus() TransportStatus {
	if s.DocumentID == nil {
		return TransportNotSent
	}
	switch s.FhirStatus {
	case FhirInProgress:
		return TransportDraftSent
	case FhirCompleted:
		return TransportSubmitted
	case FhirAmended:
		return TransportAmended
	default:
		return TransportNotSent
	}
}

// HasBeenSubmittedBefore reports whether a final update was ever accepted.
func (s *Submission) HasBeenSubmittedBefore() bool {
	return s.LastSubmittedDate != nil || s.FhirStatus == FhirCompleted || s.FhirStatus == FhirAmended
}

// Questions flattens all questions in questionnaire order.
func (s *Submission) Questions() []*Question {
	var out []*Question
	for _, qn := range s.Questionnaires {
		out = append(out, qn.Questions...)
	}
	return out
}

// FindQuestion returns the question with the given link id, or nil.
func (s *Submission) FindQuestion(linkID string) *Question {
	for _, q := range s.Questions() {
		if q.LinkID == linkID {
			return q
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate without touching stored state.
func (s *Submission) Clone() *Submission {
	c := *s
	if s.DocumentID != nil {
		id := *s.DocumentID
		c.DocumentID = &id
	}
	if s.LastSubmittedBy != nil {
		by := *s.LastSubmittedBy
		c.LastSubmittedBy = &by
	}
	if s.LastSubmittedDate != nil {
		at := *s.LastSubmittedDate
		c.LastSubmittedDate = &at
	}
	c.Questionnaires = make([]*Questionnaire, len(s.Questionnaires))
	for i, qn := range s.Questionnaires {
		cq := *qn
		cq.Questions = make([]*Question, len(qn.Questions))
		for j, q := range qn.Questions {
			qq := *q
			qq.SourceErrors = append([]string(nil), q.SourceErrors...)
			qq.Errors = append([]string(nil), q.Errors...)
			qq.Warnings = append([]string(nil), q.Warnings...)
			cq.Questions[j] = &qq
		}
		c.Questionnaires[i] = &cq
	}
	return &c
}
