package submission

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/agedcare/qi-submit/internal/platform/fhir"
	"github.com/agedcare/qi-submit/pkg/fhirmodels"
)

// ScenarioTagSystem is the code system of the meta tag carrying the scenario.
const ScenarioTagSystem = fhirmodels.SubmissionScenarioSystem

// PayloadOptions carries everything the document needs beyond the submission
// itself. Empty fields are omitted from the document.
type PayloadOptions struct {
	Status         FhirStatus
	Scenario       Scenario
	Questionnaire  string
	SubjectID      string
	SubjectDisplay string
	AuthorID       string
	AuthorDisplay  string
	Authored       time.Time
}

// BuildPayload renders s into a QuestionnaireResponse document. It never
// fails: questions without a final value are left out and missing optional
// inputs are omitted.
func BuildPayload(s *Submission, opts PayloadOptions) *fhir.QuestionnaireResponse {
	doc := &fhir.QuestionnaireResponse{
		ResourceType:  "QuestionnaireResponse",
		Status:        string(opts.Status),
		Questionnaire: opts.Questionnaire,
		Item:          make([]fhir.QuestionnaireResponseItem, 0, len(s.Questionnaires)),
	}
	if s.DocumentID != nil {
		id := *s.DocumentID
		doc.ID = &id
	}
	if opts.Scenario.Kind != "" {
		doc.Meta = &fhir.Meta{Tag: []fhir.Coding{{
			System:  ScenarioTagSystem,
			Code:    string(opts.Scenario.Kind),
			Display: opts.Scenario.Label,
		}}}
	}

	if opts.SubjectID != "" {
		doc.Subject = &fhir.Reference{
			Reference: fhir.FormatReference("HealthcareService", opts.SubjectID),
			Display:   opts.SubjectDisplay,
		}
	}
	if opts.AuthorID != "" {
		doc.Author = &fhir.Reference{
			Reference: fhir.FormatReference("Practitioner", opts.AuthorID),
			Display:   opts.AuthorDisplay,
		}
	}
	if !opts.Authored.IsZero() {
		doc.Authored = opts.Authored.UTC().Format(time.RFC3339)
	}

	for _, qn := range s.Questionnaires {
		group := fhir.QuestionnaireResponseItem{
			LinkID: qn.IndicatorCode,
			Text:   qn.IndicatorName,
		}
		for _, q := range qn.Questions {
			if !q.IsFilled() {
				continue
			}
			group.Item = append(group.Item, fhir.QuestionnaireResponseItem{
				LinkID: q.LinkID,
				Text:   q.Text,
				Answer: []fhir.QuestionnaireResponseAnswer{EncodeAnswer(q.ResponseType, q.FinalValue())},
			})
		}
		doc.Item = append(doc.Item, group)
	}
	return doc
}

// EncodeAnswer maps a final value onto the answer field for its response
// type. A value that cannot be represented in its declared type is sent as a
// string rather than dropped.
func EncodeAnswer(rt ResponseType, v any) fhir.QuestionnaireResponseAnswer {
	switch rt {
	case ResponseInteger:
		if n, ok := toInt(v); ok {
			return fhir.QuestionnaireResponseAnswer{ValueInteger: &n}
		}
	case ResponseBoolean:
		if b, ok := toBool(v); ok {
			return fhir.QuestionnaireResponseAnswer{ValueBoolean: &b}
		}
	case ResponseDate:
		if d, ok := toDate(v); ok {
			return fhir.QuestionnaireResponseAnswer{ValueDate: &d}
		}
	}
	s := toString(v)
	return fhir.QuestionnaireResponseAnswer{ValueString: &s}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return parsed, err == nil
	}
	return false, false
}

func toDate(v any) (string, bool) {
	switch d := v.(type) {
	case time.Time:
		return d.Format("2006-01-02"), true
	case string:
		s := strings.TrimSpace(d)
		if len(s) >= 10 {
			if _, err := time.Parse("2006-01-02", s[:10]); err == nil {
				return s[:10], true
			}
		}
	}
	return "", false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
