package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agedcare/qi-submit/internal/config"
	"github.com/agedcare/qi-submit/internal/domain/apicall"
	"github.com/agedcare/qi-submit/internal/domain/submission"
	"github.com/agedcare/qi-submit/internal/platform/auth"
	"github.com/agedcare/qi-submit/internal/platform/middleware"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "development",
		Store:                  config.StoreMemory,
		CORSOrigins:            []string{"http://localhost:3000"},
		GovAPIClientID:         "qi-submit",
		GovAPISigningKey:       "server-test-key",
		GovAPIOrganizationID:   "ORG-0001",
		GovAPIOrganizationName: "Sample Aged Care Provider",
		GovAPIServiceIDs:       []string{"RACS-0001"},
		QuestionnaireID:        "qi-program-2025",
	}
}

func newTestServer(now time.Time) http.Handler {
	st := stores{submissions: submission.NewMemoryRepo(), ledger: apicall.NewMemoryLedger()}
	return newServer(testConfig(), zerolog.Nop(), st, func() time.Time { return now })
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const createBody = `{
	"facility_id": "RACS-0001",
	"reporting_period": {"id": "2025-Q1", "label": "Jan - Mar 2025", "due_date": "2025-04-21T00:00:00Z"},
	"questionnaires": [
		{"indicator_code": "PI", "indicator_name": "Pressure injuries", "questions": [
			{"link_id": "PI-01", "text": "Residents assessed", "response_type": "integer", "auto_value": 42},
			{"link_id": "PI-02", "text": "Stage 1", "response_type": "integer"}
		]},
		{"indicator_code": "FALL", "indicator_name": "Falls", "questions": [
			{"link_id": "FALL-01", "text": "Assessment completed", "response_type": "boolean", "auto_value": true}
		]}
	]
}`

func TestServer_Health(t *testing.T) {
	h := newTestServer(time.Now())
	rec := do(t, h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}
	if rec := do(t, h, http.MethodGet, "/health/db", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected no db health route in memory mode, got %d", rec.Code)
	}
}

func TestServer_SubmissionLifecycle(t *testing.T) {
	h := newTestServer(time.Date(2025, 4, 25, 9, 0, 0, 0, time.UTC))

	rec := do(t, h, http.MethodPost, "/api/v1/submissions", createBody, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)
	base := "/api/v1/submissions/" + created.ID

	rec = do(t, h, http.MethodGet, base+"/stats", "", nil)
	var stats struct {
		Blockers []string `json:"blockers"`
		Progress struct {
			SubmitEligible bool `json:"submit_eligible"`
		} `json:"progress"`
	}
	json.Unmarshal(rec.Body.Bytes(), &stats)
	if stats.Progress.SubmitEligible || len(stats.Blockers) != 1 || stats.Blockers[0] != "PI-02" {
		t.Fatalf("expected PI-02 to block, got %+v", stats)
	}

	if rec := do(t, h, http.MethodPost, base+"/send", "", nil); rec.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, base+"/submit", "", map[string]string{auth.HeaderUserEmail: "jo@example.org"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("submit with blockers: expected 422, got %d", rec.Code)
	}

	if rec := do(t, h, http.MethodPut, base+"/questions/PI-02", `{"value": 0}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("answer: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, base+"/scenario", "", nil)
	var sc struct {
		Kind string `json:"scenario"`
	}
	json.Unmarshal(rec.Body.Bytes(), &sc)
	if sc.Kind != "late-submission" {
		t.Errorf("expected late-submission, got %s", sc.Kind)
	}

	rec = do(t, h, http.MethodPost, base+"/submit", "", map[string]string{auth.HeaderUserEmail: "jo@example.org"})
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodGet, base, "", nil)
	var final struct {
		Status          string `json:"status"`
		FhirStatus      string `json:"fhir_status"`
		Version         int    `json:"version"`
		TransportStatus string `json:"transport_status"`
	}
	json.Unmarshal(rec.Body.Bytes(), &final)
	if final.Status != submission.StatusLateSubmission || final.FhirStatus != "completed" || final.Version != 2 || final.TransportStatus != "Submitted" {
		t.Errorf("unexpected final state %+v", final)
	}

	rec = do(t, h, http.MethodGet, base+"/api-calls", "", nil)
	var calls []apicall.Record
	json.Unmarshal(rec.Body.Bytes(), &calls)
	if len(calls) != 7 {
		t.Errorf("expected 7 ledger entries, got %d", len(calls))
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	h := newTestServer(time.Now())
	if rec := do(t, h, http.MethodGet, "/api/v1/nothing", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
