package submission

import "math"

// ValidationStatus is the rolled-up state of one or more questions.
// Errors take precedence over warnings.
type ValidationStatus string

const (
	ValidationOK       ValidationStatus = "OK"
	ValidationWarnings ValidationStatus = "Warnings"
	ValidationErrors   ValidationStatus = "Errors"
)

func QuestionStatus(q *Question) ValidationStatus {
	if len(q.Errors) > 0 {
		return ValidationErrors
	}
	if len(q.Warnings) > 0 {
		return ValidationWarnings
	}
	return ValidationOK
}

func QuestionnaireStatus(qn *Questionnaire) ValidationStatus {
	return rollUp(qn.Questions)
}

// OverallStatus rolls every questionnaire of the submission into one status.
func OverallStatus(s *Submission) ValidationStatus {
	return rollUp(s.Questions())
}

func rollUp(questions []*Question) ValidationStatus {
	status := ValidationOK
	for _, q := range questions {
		switch QuestionStatus(q) {
		case ValidationErrors:
			return ValidationErrors
		case ValidationWarnings:
			status = ValidationWarnings
		}
	}
	return status
}

// CompletionStats counts how much of a submission has been answered.
type CompletionStats struct {
	Total             int `json:"total"`
	Filled            int `json:"filled"`
	AutoFilled        int `json:"auto_filled"`
	ManuallyEdited    int `json:"manually_edited"`
	Empty             int `json:"empty"`
	Errors            int `json:"errors"`
	Warnings          int `json:"warnings"`
	CompletionPercent int `json:"completion_percent"`
}

// ProgressStats is the stricter completeness used for submit-readiness: a
// question is complete only when filled and free of errors.
type ProgressStats struct {
	Total           int  `json:"total"`
	Complete        int  `json:"complete"`
	Errors          int  `json:"errors"`
	ProgressPercent int  `json:"progress_percent"`
	SubmitEligible  bool `json:"submit_eligible"`
}

func ComputeCompletionStats(s *Submission) CompletionStats {
	var st CompletionStats
	for _, q := range s.Questions() {
		st.Total++
		filled := q.IsFilled()
		if filled {
			st.Filled++
			if !q.IsOverridden && hasValue(q.AutoValue) {
				st.AutoFilled++
			}
		}
		if q.IsOverridden {
			st.ManuallyEdited++
		}
		st.Errors += len(q.Errors)
		st.Warnings += len(q.Warnings)
	}
	st.Empty = st.Total - st.Filled
	st.CompletionPercent = percent(st.Filled, st.Total)
	return st
}

func ComputeProgressStats(s *Submission) ProgressStats {
	var st ProgressStats
	for _, q := range s.Questions() {
		st.Total++
		if q.IsFilled() && len(q.Errors) == 0 {
			st.Complete++
		}
		st.Errors += len(q.Errors)
	}
	st.ProgressPercent = percent(st.Complete, st.Total)
	st.SubmitEligible = st.Complete == st.Total && st.Errors == 0
	return st
}

// IsSubmitEligible reports whether every question is answered and error free.
func IsSubmitEligible(s *Submission) bool {
	return ComputeProgressStats(s).SubmitEligible
}

// EligibilityBlockers lists the link ids of questions that are empty or carry
// errors, in questionnaire order.
func EligibilityBlockers(s *Submission) []string {
	var ids []string
	for _, q := range s.Questions() {
		if !q.IsFilled() || len(q.Errors) > 0 {
			ids = append(ids, q.LinkID)
		}
	}
	return ids
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(total)))
}
