package submission

import "time"

type ScenarioKind string

const (
	ScenarioFirstSubmission ScenarioKind = "first-submission"
	ScenarioResubmit        ScenarioKind = "re-submit"
	ScenarioLateSubmission  ScenarioKind = "late-submission"
	ScenarioUpdatedAfterDue ScenarioKind = "updated-after-due"
)

// Scenario governs the next final submit of a submission: which FHIR status
// the document moves to, what the submitter must acknowledge, and which
// lifecycle label the submission ends up with.
type Scenario struct {
	Kind             ScenarioKind `json:"scenario"`
	Label            string       `json:"label"`
	Disclosure       string       `json:"disclosure"`
	TargetStatus     FhirStatus   `json:"target_status"`
	SubmissionStatus string       `json:"submission_status"`
}

var scenarios = map[ScenarioKind]Scenario{
	ScenarioFirstSubmission: {
		Kind:             ScenarioFirstSubmission,
		Label:            "First Submission",
		Disclosure:       "I confirm the quality indicator data for this quarter is complete and accurate to the best of my knowledge.",
		TargetStatus:     FhirCompleted,
		SubmissionStatus: StatusSubmitted,
	},
	ScenarioLateSubmission: {
		Kind:             ScenarioLateSubmission,
		Label:            "Late Submission",
		Disclosure:       "This submission is being made after the due date for the reporting period. Late submissions are recorded and may be followed up by the department.",
		TargetStatus:     FhirCompleted,
		SubmissionStatus: StatusLateSubmission,
	},
	ScenarioResubmit: {
		Kind:             ScenarioResubmit,
		Label:            "Re-submission",
		Disclosure:       "This quarter has already been submitted. Re-submitting replaces the previous data and is recorded as an amendment.",
		TargetStatus:     FhirAmended,
		SubmissionStatus: StatusSubmitted,
	},
	ScenarioUpdatedAfterDue: {
		Kind:             ScenarioUpdatedAfterDue,
		Label:            "Updated after Due Date",
		Disclosure:       "You are amending data after the due date for the reporting period. The amendment and its timing will be visible to the department.",
		TargetStatus:     FhirAmended,
		SubmissionStatus: StatusUpdatedAfterDueDate,
	},
}

// ScenarioFor returns the fixed scenario definition for kind.
func ScenarioFor(kind ScenarioKind) (Scenario, bool) {
	sc, ok := scenarios[kind]
	return sc, ok
}

// ClassifyScenario decides the scenario from the submission history and the
// current time. It must be evaluated per request; caching the result goes
// stale when the clock crosses the due date.
func ClassifyScenario(s *Submission, now time.Time) Scenario {
	return scenarios[classify(s.HasBeenSubmittedBefore(), IsAfterDueDate(s.Period, now))]
}

// IsAfterDueDate is false when the period has no due date.
func IsAfterDueDate(p ReportingPeriod, now time.Time) bool {
	return p.DueDate != nil && now.After(*p.DueDate)
}

func classify(submittedBefore, afterDue bool) ScenarioKind {
	switch {
	case !submittedBefore && !afterDue:
		return ScenarioFirstSubmission
	case !submittedBefore && afterDue:
		return ScenarioLateSubmission
	case submittedBefore && !afterDue:
		return ScenarioResubmit
	default:
		return ScenarioUpdatedAfterDue
	}
}
