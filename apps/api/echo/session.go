package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/somaplus/darasa/core/session"
)

type sessionApi struct {
	registry *sessionRegistry
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, sess echo.MiddlewareFunc, registry *sessionRegistry, validate *validator.Validate) {
	api := sessionApi{registry: registry, validate: validate}

	g.POST("/login", api.login)
	g.GET("/session", api.session, sess)
	g.POST("/logout", api.logout, sess)
}

type (
	LoginRequest struct {
		// Assertion is the identity token minted by the hosted auth provider.
		Assertion string `json:"assertion" validate:"required"`
	}

	LoginResponse struct {
		SessionID string           `json:"session_id"`
		Session   session.Snapshot `json:"session"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(lr)
}

func (api *sessionApi) login(ctx echo.Context) error {
	data := new(LoginRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sid, snap, err := api.registry.open(data.Assertion)
	if err != nil {
		return errAuthenticationFailed
	}

	return ctx.JSON(http.StatusOK, LoginResponse{SessionID: sid, Session: snap})
}

func (api *sessionApi) session(ctx echo.Context) error {
	snap, _ := snapshotFromContext(ctx)
	return ctx.JSON(http.StatusOK, snap)
}

func (api *sessionApi) logout(ctx echo.Context) error {
	sid, ok := sessionIDFromContext(ctx)
	if !ok {
		return errNoSession
	}
	api.registry.close(sid)
	return ctx.NoContent(http.StatusNoContent)
}
