package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agedcare/qi-submit/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, Repository) {
	t.Helper()
	svc, repo := newTestService(t)
	return NewHandler(svc), repo
}

func withRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := context.WithValue(c.Request().Context(), auth.UserIDKey, "user-1")
			ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func TestHandler_CreateSubmission(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	body := `{
		"facility_id": "RACS-0001",
		"reporting_period": {"id": "2025-Q1", "label": "Jan - Mar 2025", "due_date": "2025-04-21T00:00:00Z"},
		"questionnaires": [{
			"indicator_code": "PI",
			"indicator_name": "Pressure injuries",
			"questions": [{"link_id": "PI-01", "text": "Residents assessed", "response_type": "integer", "auto_value": 0}]
		}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateSubmission(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["transport_status"] != string(TransportNotSent) {
		t.Errorf("expected transport_status Not Sent, got %v", resp["transport_status"])
	}
	if resp["status"] != StatusNotStarted {
		t.Errorf("expected Not Started, got %v", resp["status"])
	}
}

func TestHandler_CreateSubmission_Invalid(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"facility_id": ""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateSubmission(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "OperationOutcome") {
		t.Errorf("expected OperationOutcome body, got %s", rec.Body.String())
	}
}

func TestHandler_GetSubmission(t *testing.T) {
	h, repo := newTestHandler(t)
	s := seedSubmission(t, repo)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(s.ID.String())

	if err := h.GetSubmission(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetSubmission_Errors(t *testing.T) {
	h, _ := newTestHandler(t)
	e := echo.New()

	tests := []struct {
		id   string
		want int
	}{
		{"not-a-uuid", http.StatusBadRequest},
		{uuid.New().String(), http.StatusNotFound},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues(tt.id)

		if err := h.GetSubmission(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Code != tt.want {
			t.Errorf("id %s: expected %d, got %d", tt.id, tt.want, rec.Code)
		}
	}
}

func TestHandler_SetAnswer(t *testing.T) {
	h, repo := newTestHandler(t)
	s := seedSubmission(t, repo)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"value": 0}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "linkId")
	c.SetParamValues(s.ID.String(), "PI-01")

	if err := h.SetAnswer(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	got, _ := repo.GetByID(context.Background(), s.ID)
	if q := got.FindQuestion("PI-01"); !q.IsOverridden || q.FinalValue() != float64(0) {
		t.Errorf("expected override to 0, got %+v", q)
	}
}

func TestHandler_SetAnswer_UnknownQuestion(t *testing.T) {
	h, repo := newTestHandler(t)
	s := seedSubmission(t, repo)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"value": 1}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id", "linkId")
	c.SetParamValues(s.ID.String(), "XX-99")

	if err := h.SetAnswer(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Question/XX-99") {
		t.Errorf("expected question in diagnostics, got %s", rec.Body.String())
	}
}

func TestHandler_Routes(t *testing.T) {
	h, repo := newTestHandler(t)
	s := seedSubmission(t, repo)

	tests := []struct {
		name   string
		roles  []string
		method string
		path   string
		body   string
		want   int
	}{
		{"viewer reads", []string{"viewer"}, http.MethodGet, "/api/v1/submissions/" + s.ID.String(), "", http.StatusOK},
		{"viewer lists", []string{"viewer"}, http.MethodGet, "/api/v1/submissions?facility=RACS-0001", "", http.StatusOK},
		{"viewer stats", []string{"viewer"}, http.MethodGet, "/api/v1/submissions/" + s.ID.String() + "/stats", "", http.StatusOK},
		{"viewer scenario", []string{"viewer"}, http.MethodGet, "/api/v1/submissions/" + s.ID.String() + "/scenario", "", http.StatusOK},
		{"viewer payload", []string{"viewer"}, http.MethodGet, "/api/v1/submissions/" + s.ID.String() + "/payload", "", http.StatusOK},
		{"viewer cannot edit", []string{"viewer"}, http.MethodPut, "/api/v1/submissions/" + s.ID.String() + "/questions/PI-01", `{"value": 1}`, http.StatusForbidden},
		{"editor edits", []string{"editor"}, http.MethodPut, "/api/v1/submissions/" + s.ID.String() + "/questions/PI-01", `{"value": 1}`, http.StatusOK},
		{"no role", nil, http.MethodGet, "/api/v1/submissions", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			h.RegisterRoutes(e.Group("/api/v1", withRoles(tt.roles...)))

			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_ListSubmissions_Paginated(t *testing.T) {
	h, repo := newTestHandler(t)
	seedSubmission(t, repo)
	seedSubmission(t, repo)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?_count=1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListSubmissions(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp struct {
		Data  []map[string]any `json:"data"`
		Total int              `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("expected total 2, got %d", resp.Total)
	}
}
