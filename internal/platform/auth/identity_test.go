package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func identityFor(roles []string, headers map[string]string) Identity {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	ctx := context.WithValue(req.Context(), UserIDKey, "user-1")
	ctx = context.WithValue(ctx, UserRolesKey, roles)
	req = req.WithContext(ctx)
	return IdentityFromRequest(e.NewContext(req, httptest.NewRecorder()))
}

func TestIdentity_CanSubmit(t *testing.T) {
	tests := []struct {
		name    string
		roles   []string
		headers map[string]string
		want    bool
	}{
		{"submitter with email", []string{"submitter"}, map[string]string{HeaderUserEmail: "a@b.org"}, true},
		{"submitter with federated id", []string{"submitter"}, map[string]string{HeaderFederatedID: "fed-1"}, true},
		{"submitter without headers", []string{"submitter"}, nil, false},
		{"submitter with blank header", []string{"submitter"}, map[string]string{HeaderUserEmail: "   "}, false},
		{"editor with email", []string{"editor"}, map[string]string{HeaderUserEmail: "a@b.org"}, false},
		{"viewer", []string{"viewer"}, map[string]string{HeaderUserEmail: "a@b.org"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := identityFor(tt.roles, tt.headers).CanSubmit(); got != tt.want {
				t.Errorf("CanSubmit() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIdentity_HeadersOverrideClaims(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderUserEmail, "header@example.org")
	ctx := context.WithValue(req.Context(), UserEmailKey, "claim@example.org")
	ctx = context.WithValue(ctx, FederatedIDKey, "fed-claim")
	req = req.WithContext(ctx)

	id := IdentityFromRequest(e.NewContext(req, httptest.NewRecorder()))
	if id.Email != "header@example.org" {
		t.Errorf("expected header email, got %q", id.Email)
	}
	if id.FederatedID != "fed-claim" {
		t.Errorf("expected claim federated id to survive, got %q", id.FederatedID)
	}
}

func TestIdentity_Display(t *testing.T) {
	tests := []struct {
		id   Identity
		want string
	}{
		{Identity{UserID: "u", Email: "e@x.org", FederatedID: "f"}, "e@x.org"},
		{Identity{UserID: "u", FederatedID: "f"}, "f"},
		{Identity{UserID: "u"}, "u"},
	}
	for _, tt := range tests {
		if got := tt.id.Display(); got != tt.want {
			t.Errorf("Display() = %q, want %q", got, tt.want)
		}
	}
}
