package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/somaplus/darasa/core/guard"
	"github.com/somaplus/darasa/core/session"
)

const loginRoute = "/login"

// guardMiddleware enforces a route requirement against the request's session
// snapshot. Decisions map to HTTP as: pending → 503 + Retry-After (neutral
// waiting, never a redirect), unauthenticated → 303 to the login route,
// wrong role → 403 naming the actual role.
func guardMiddleware(req guard.Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			snap, ok := snapshotFromContext(ctx)
			if !ok {
				snap = session.Snapshot{State: session.StateLoading}
			}

			res := guard.Evaluate(snap, req)
			switch res.Decision {
			case guard.DecisionAllowed:
				return next(ctx)
			case guard.DecisionPending:
				ctx.Response().Header().Set("Retry-After", "1")
				return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "pending"})
			case guard.DecisionDeniedUnauthenticated:
				return ctx.Redirect(http.StatusSeeOther, loginRoute)
			case guard.DecisionDeniedWrongRole:
				return ctx.JSON(http.StatusForbidden, echo.Map{
					"error": "permission denied",
					"role":  res.Role,
				})
			}
			return errHttpForbidden
		}
	}
}
