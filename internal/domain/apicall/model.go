package apicall

import (
	"time"

	"github.com/google/uuid"
)

// Record is one simulated call to the government API. Records are written
// once by the transport state machine and never changed.
type Record struct {
	ID              uuid.UUID `json:"id"`
	SubmissionID    uuid.UUID `json:"submission_id"`
	Timestamp       time.Time `json:"timestamp"`
	Endpoint        string    `json:"endpoint"`
	Method          string    `json:"method"`
	RequestSummary  string    `json:"request_summary"`
	ResponseSummary string    `json:"response_summary"`
	StatusCode      int       `json:"status_code"`
	Success         bool      `json:"success"`
	DocumentID      *string   `json:"document_id,omitempty"`
}
