package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/livequestions/ama-api/internal/core/domain"
)

// ctxIdentity extracts the identity injected by the Auth middleware. Both
// name and role must be present; their absence means the middleware did not
// run or the token carried no identity.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	name, _ := c.Get("name").(string)
	role, _ := c.Get("role").(string)
	if name == "" || role == "" {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return domain.Identity{Name: name, Role: role}, nil
}

// actingAs resolves who an action is performed for. An explicit name must
// match the session identity.
func actingAs(who domain.Identity, claimed string) (string, error) {
	if claimed == "" || claimed == who.Name {
		return who.Name, nil
	}
	return "", domain.ErrForbidden
}
