package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// Identity headers accepted on the final update.
const (
	HeaderUserEmail   = "X-User-Email"
	HeaderFederatedID = "X-Federated-Id"
)

// Identity is the read-only capability object passed to every operation that
// needs authorization. It is built once per request and never stored.
type Identity struct {
	UserID      string
	Email       string
	FederatedID string
	Permissions []string
}

func (id Identity) HasPermission(perm string) bool {
	for _, p := range id.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// HasIdentityHeader reports whether at least one verifiable identity header
// is present.
func (id Identity) HasIdentityHeader() bool {
	return strings.TrimSpace(id.Email) != "" || strings.TrimSpace(id.FederatedID) != ""
}

// CanSubmit is the authorized-submitter check: the submit permission plus an
// email or a federated id.
func (id Identity) CanSubmit() bool {
	return id.HasPermission(PermSubmissionSubmit) && id.HasIdentityHeader()
}

// Display returns the best human-readable handle for the identity.
func (id Identity) Display() string {
	switch {
	case id.Email != "":
		return id.Email
	case id.FederatedID != "":
		return id.FederatedID
	default:
		return id.UserID
	}
}

// IdentityFromRequest combines the authenticated user in the request context
// with the identity headers. Headers take precedence over token claims.
func IdentityFromRequest(c echo.Context) Identity {
	ctx := c.Request().Context()
	id := Identity{
		UserID:      UserIDFromContext(ctx),
		Email:       EmailFromContext(ctx),
		FederatedID: FederatedIDFromContext(ctx),
		Permissions: PermissionsForRoles(RolesFromContext(ctx)),
	}
	if v := strings.TrimSpace(c.Request().Header.Get(HeaderUserEmail)); v != "" {
		id.Email = v
	}
	if v := strings.TrimSpace(c.Request().Header.Get(HeaderFederatedID)); v != "" {
		id.FederatedID = v
	}
	return id
}
