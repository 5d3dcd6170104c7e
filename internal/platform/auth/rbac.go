package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Permissions granted by roles.
const (
	PermSubmissionRead   = "submission:read"
	PermSubmissionEdit   = "submission:edit"
	PermSubmissionSend   = "submission:send"
	PermSubmissionSubmit = "submission:submit"
)

var rolePermissions = map[string][]string{
	"admin":     {PermSubmissionRead, PermSubmissionEdit, PermSubmissionSend, PermSubmissionSubmit},
	"submitter": {PermSubmissionRead, PermSubmissionEdit, PermSubmissionSend, PermSubmissionSubmit},
	"editor":    {PermSubmissionRead, PermSubmissionEdit, PermSubmissionSend},
	"viewer":    {PermSubmissionRead},
}

// PermissionsForRoles expands roles into their permission set. Unknown roles
// grant nothing.
func PermissionsForRoles(roles []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range roles {
		for _, p := range rolePermissions[r] {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == "admin" {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
