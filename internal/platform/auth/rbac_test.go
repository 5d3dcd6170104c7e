package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestPermissionsForRoles(t *testing.T) {
	tests := []struct {
		roles []string
		want  []string
	}{
		{[]string{"viewer"}, []string{PermSubmissionRead}},
		{[]string{"editor"}, []string{PermSubmissionRead, PermSubmissionEdit, PermSubmissionSend}},
		{[]string{"viewer", "submitter"}, []string{PermSubmissionRead, PermSubmissionEdit, PermSubmissionSend, PermSubmissionSubmit}},
		{[]string{"unknown"}, nil},
		{nil, nil},
	}

	for _, tt := range tests {
		got := PermissionsForRoles(tt.roles)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PermissionsForRoles(%v) = %v, want %v", tt.roles, got, tt.want)
		}
	}
}

func TestRequireRole_Allowed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, []string{"editor"})
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequireRole("editor", "submitter")(okHandler)
	if err := h(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, []string{"viewer"})
	req = req.WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())

	err := RequireRole("editor", "submitter")(okHandler)(c)
	if err == nil {
		t.Fatal("expected error for unauthorized role")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, []string{"admin"})
	req = req.WithContext(ctx)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := RequireRole("submitter")(okHandler)(c); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if err := RequireRole("viewer")(okHandler)(c); err == nil {
		t.Error("expected error when no roles are present")
	}
}
