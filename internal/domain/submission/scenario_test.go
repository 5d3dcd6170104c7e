package submission

import (
	"testing"
	"time"
)

func TestClassifyScenario_Matrix(t *testing.T) {
	due := time.Date(2025, 4, 21, 0, 0, 0, 0, time.UTC)
	before := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	after := time.Date(2025, 4, 25, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name       string
		fhir       FhirStatus
		now        time.Time
		wantKind   ScenarioKind
		wantTarget FhirStatus
		wantStatus string
	}{
		{"first", FhirInProgress, before, ScenarioFirstSubmission, FhirCompleted, StatusSubmitted},
		{"late", FhirInProgress, after, ScenarioLateSubmission, FhirCompleted, StatusLateSubmission},
		{"resubmit", FhirCompleted, before, ScenarioResubmit, FhirAmended, StatusSubmitted},
		{"updated after due", FhirAmended, after, ScenarioUpdatedAfterDue, FhirAmended, StatusUpdatedAfterDueDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestSubmission()
			s.Period.DueDate = &due
			s.FhirStatus = tc.fhir

			sc := ClassifyScenario(s, tc.now)
			if sc.Kind != tc.wantKind {
				t.Errorf("kind = %s, want %s", sc.Kind, tc.wantKind)
			}
			if sc.TargetStatus != tc.wantTarget {
				t.Errorf("target = %s, want %s", sc.TargetStatus, tc.wantTarget)
			}
			if sc.SubmissionStatus != tc.wantStatus {
				t.Errorf("status = %s, want %s", sc.SubmissionStatus, tc.wantStatus)
			}
			if sc.Label == "" || sc.Disclosure == "" {
				t.Error("expected label and disclosure to be set")
			}
		})
	}
}

func TestClassifyScenario_NoDueDate(t *testing.T) {
	s := newTestSubmission()
	s.Period.DueDate = nil
	far := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	if sc := ClassifyScenario(s, far); sc.Kind != ScenarioFirstSubmission {
		t.Errorf("expected first-submission without a due date, got %s", sc.Kind)
	}
}

func TestClassifyScenario_ExactlyAtDueDate(t *testing.T) {
	s := newTestSubmission()
	if sc := ClassifyScenario(s, *s.Period.DueDate); sc.Kind != ScenarioFirstSubmission {
		t.Errorf("expected the due instant itself to be on time, got %s", sc.Kind)
	}
}

func TestClassifyScenario_LastSubmittedDateCounts(t *testing.T) {
	s := newTestSubmission()
	s.FhirStatus = FhirInProgress
	s.LastSubmittedDate = timePtr(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	now := time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC)
	if sc := ClassifyScenario(s, now); sc.Kind != ScenarioResubmit {
		t.Errorf("expected re-submit, got %s", sc.Kind)
	}
}

func TestScenarioFor(t *testing.T) {
	for _, kind := range []ScenarioKind{ScenarioFirstSubmission, ScenarioResubmit, ScenarioLateSubmission, ScenarioUpdatedAfterDue} {
		sc, ok := ScenarioFor(kind)
		if !ok || sc.Kind != kind {
			t.Errorf("ScenarioFor(%s) = %+v, %v", kind, sc, ok)
		}
	}
	if _, ok := ScenarioFor("unknown"); ok {
		t.Error("expected unknown scenario to be absent")
	}
}
