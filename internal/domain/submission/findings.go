package submission

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AnswerFindings checks the final value of q against its response type. An
// empty value yields no findings; emptiness is reported by the progress stats.
func AnswerFindings(q *Question) []string {
	v := q.FinalValue()
	if !hasValue(v) {
		return nil
	}
	switch q.ResponseType {
	case ResponseInteger:
		n, ok := toInt(v)
		if !ok {
			return []string{"Value must be a whole number"}
		}
		if n < 0 {
			return []string{"Value must not be negative"}
		}
	case ResponseBoolean:
		if _, ok := toBool(v); !ok {
			return []string{"Value must be yes or no"}
		}
	case ResponseDate:
		if _, ok := toDate(v); !ok {
			return []string{"Value must be a date (YYYY-MM-DD)"}
		}
	}
	return nil
}

// RecheckErrors rebuilds q.Errors from the source errors and the findings on
// the current final value. Source errors survive every edit and revert.
func RecheckErrors(q *Question) {
	errs := append([]string(nil), q.SourceErrors...)
	q.Errors = append(errs, AnswerFindings(q)...)
	if len(q.Errors) == 0 {
		q.Errors = nil
	}
}

// ValidationErrorToString flattens validator errors into one message.
func ValidationErrorToString(input any, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	var msgs []string
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: rule '%s' expected '%s', got '%v'", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: rule '%s' failed", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid %T: %s", input, strings.Join(msgs, "; "))
}
