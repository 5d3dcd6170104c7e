package submission

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// newTestSubmission returns a submission with two indicators and three
// questions, all answered and free of findings.
func newTestSubmission() *Submission {
	due := time.Date(2025, 4, 21, 0, 0, 0, 0, time.UTC)
	return &Submission{
		ID:         uuid.New(),
		FacilityID: "RACS-0001",
		Period: ReportingPeriod{
			ID:      "2025-Q1",
			Label:   "Jan - Mar 2025",
			DueDate: &due,
		},
		Questionnaires: []*Questionnaire{
			{
				IndicatorCode: "PI",
				IndicatorName: "Pressure injuries",
				Questions: []*Question{
					{LinkID: "PI-01", Text: "Residents assessed", ResponseType: ResponseInteger, AutoValue: float64(42)},
					{LinkID: "PI-02", Text: "Residents with a pressure injury", ResponseType: ResponseInteger, AutoValue: float64(0)},
				},
			},
			{
				IndicatorCode: "FALL",
				IndicatorName: "Falls and major injury",
				Questions: []*Question{
					{LinkID: "FALL-01", Text: "Assessment completed", ResponseType: ResponseBoolean, AutoValue: true},
				},
			},
		},
		Status:     StatusInProgress,
		FhirStatus: FhirNotSent,
	}
}

func TestQuestion_FinalValue(t *testing.T) {
	q := &Question{AutoValue: float64(3), ManualValue: float64(5)}
	if q.FinalValue() != float64(3) {
		t.Errorf("expected auto value when not overridden, got %v", q.FinalValue())
	}

	q.IsOverridden = true
	if q.FinalValue() != float64(5) {
		t.Errorf("expected manual value when overridden, got %v", q.FinalValue())
	}

	q.ManualValue = nil
	if q.FinalValue() != nil {
		t.Errorf("expected nil final value for an overridden question without manual value, got %v", q.FinalValue())
	}
}

func TestQuestion_IsFilled(t *testing.T) {
	cases := []struct {
		value any
		want  bool
	}{
		{nil, false},
		{"", false},
		{float64(0), true},
		{false, true},
		{"2025-03-31", true},
	}
	for _, tc := range cases {
		q := &Question{AutoValue: tc.value}
		if got := q.IsFilled(); got != tc.want {
			t.Errorf("IsFilled(%#v) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

func TestSubmission_TransportStatus(t *testing.T) {
	s := newTestSubmission()
	if s.TransportStatus() != TransportNotSent {
		t.Errorf("expected Not Sent, got %s", s.TransportStatus())
	}

	s.DocumentID = strPtr("doc-1")
	s.FhirStatus = FhirInProgress
	if s.TransportStatus() != TransportDraftSent {
		t.Errorf("expected Draft Sent, got %s", s.TransportStatus())
	}

	s.FhirStatus = FhirCompleted
	if s.TransportStatus() != TransportSubmitted {
		t.Errorf("expected Submitted, got %s", s.TransportStatus())
	}

	s.FhirStatus = FhirAmended
	if s.TransportStatus() != TransportAmended {
		t.Errorf("expected Amended, got %s", s.TransportStatus())
	}

	s.DocumentID = nil
	if s.TransportStatus() != TransportNotSent {
		t.Errorf("expected Not Sent without a document id, got %s", s.TransportStatus())
	}
}

func TestSubmission_HasBeenSubmittedBefore(t *testing.T) {
	s := newTestSubmission()
	if s.HasBeenSubmittedBefore() {
		t.Error("expected a fresh submission not to count as submitted")
	}

	s.FhirStatus = FhirInProgress
	if s.HasBeenSubmittedBefore() {
		t.Error("expected a draft not to count as submitted")
	}

	s.FhirStatus = FhirCompleted
	if !s.HasBeenSubmittedBefore() {
		t.Error("expected completed to count as submitted")
	}

	s.FhirStatus = FhirNotSent
	s.LastSubmittedDate = timePtr(time.Now())
	if !s.HasBeenSubmittedBefore() {
		t.Error("expected a last submitted date to count as submitted")
	}
}

func TestSubmission_FindQuestion(t *testing.T) {
	s := newTestSubmission()
	if q := s.FindQuestion("FALL-01"); q == nil || q.ResponseType != ResponseBoolean {
		t.Errorf("expected to find FALL-01, got %+v", q)
	}
	if q := s.FindQuestion("nope"); q != nil {
		t.Errorf("expected nil for unknown link id, got %+v", q)
	}
	if n := len(s.Questions()); n != 3 {
		t.Errorf("expected 3 questions, got %d", n)
	}
}

func TestSubmission_CloneIsDeep(t *testing.T) {
	s := newTestSubmission()
	s.DocumentID = strPtr("doc-1")
	s.Questionnaires[0].Questions[0].Errors = []string{"bad"}
	s.Questionnaires[0].Questions[0].SourceErrors = []string{"bad"}

	c := s.Clone()
	*c.DocumentID = "changed"
	c.Questionnaires[0].Questions[0].AutoValue = float64(1)
	c.Questionnaires[0].Questions[0].Errors[0] = "changed"
	c.Questionnaires[0].Questions[0].SourceErrors[0] = "changed"

	if *s.DocumentID != "doc-1" {
		t.Error("clone shares the document id")
	}
	if s.Questionnaires[0].Questions[0].AutoValue != float64(42) {
		t.Error("clone shares questions")
	}
	if s.Questionnaires[0].Questions[0].Errors[0] != "bad" || s.Questionnaires[0].Questions[0].SourceErrors[0] != "bad" {
		t.Error("clone shares error slices")
	}
}
