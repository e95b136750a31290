package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/somaplus/darasa/core/account"
	"github.com/somaplus/darasa/core/guard"
	"github.com/somaplus/darasa/core/nav"
	"github.com/somaplus/darasa/core/plan"
)

type dashboardApi struct {
	svc      *account.Service
	validate *validator.Validate
}

func registerDashboardAPI(g *echo.Group, sess echo.MiddlewareFunc, svc *account.Service, validate *validator.Validate) {
	api := dashboardApi{svc: svc, validate: validate}

	// authed, role-agnostic
	ng := g.Group("", sess, guardMiddleware(guard.RequireAuthenticated()))
	ng.GET("/navigation", api.navigation)
	ng.GET("/catalog", api.catalog)

	// per-role dashboard trees
	cg := g.Group("/dashboard/consumer", sess, guardMiddleware(guard.RequireRoles(account.RoleConsumer)))
	cg.GET("", api.consumerHome)

	tg := g.Group("/dashboard/tutor", sess, guardMiddleware(guard.RequireRoles(account.RoleTutor)))
	tg.GET("", api.tutorHome)

	ag := g.Group("/dashboard/admin", sess, guardMiddleware(guard.RequireRoles(account.RoleAdmin)))
	ag.GET("", api.adminHome)
	ag.GET("/profiles", api.queryProfiles)
	ag.POST("/profiles", api.upsertProfile)
	ag.DELETE("/profiles", api.destroyProfiles)
	ag.POST("/profiles/:id/admin", api.grantAdmin)
	ag.DELETE("/profiles/:id/admin", api.revokeAdmin)
}

// navigation resolves the sidebar entries against the session's capabilities.
func (api *dashboardApi) navigation(ctx echo.Context) error {
	snap, _ := snapshotFromContext(ctx)
	return ctx.JSON(http.StatusOK, nav.Filter(snap.Capabilities, nav.ConsumerEntries))
}

type catalogSection struct {
	Name   string `json:"name"`
	Locked bool   `json:"locked"`
}

// catalog gates magazine sections on the catalog tier scale, which is
// normalized from the same stored subscription record as the dashboard scale
// but is an unrelated tier system.
func (api *dashboardApi) catalog(ctx echo.Context) error {
	snap, _ := snapshotFromContext(ctx)

	var sub account.Subscription
	if snap.Identity != nil {
		if prof, err := api.svc.GetProfile(ctx.Request().Context(), snap.Identity.ID); err == nil {
			sub = prof.Subscription
		} else if errors.Cause(err) != account.ErrNotFound {
			return err
		}
	}

	tier, caps := plan.Catalog.Resolve(sub.PlanName, sub.Status, snap.Role == account.RoleAdmin)
	sections := []catalogSection{
		{Name: "Previews", Locked: false},
		{Name: "Magazine Pages", Locked: !caps.Granted(plan.CapPage)},
	}
	return ctx.JSON(http.StatusOK, echo.Map{"tier": tier, "sections": sections})
}

func (api *dashboardApi) consumerHome(ctx echo.Context) error {
	snap, _ := snapshotFromContext(ctx)
	return ctx.JSON(http.StatusOK, echo.Map{
		"identity":     snap.Identity,
		"tier":         snap.Tier,
		"capabilities": snap.Capabilities,
		"navigation":   nav.Filter(snap.Capabilities, nav.ConsumerEntries),
	})
}

func (api *dashboardApi) tutorHome(ctx echo.Context) error {
	snap, _ := snapshotFromContext(ctx)
	return ctx.JSON(http.StatusOK, echo.Map{
		"identity": snap.Identity,
		"role":     snap.Role,
	})
}

func (api *dashboardApi) adminHome(ctx echo.Context) error {
	snap, _ := snapshotFromContext(ctx)
	return ctx.JSON(http.StatusOK, echo.Map{
		"identity":     snap.Identity,
		"role":         snap.Role,
		"capabilities": snap.Capabilities,
	})
}

func (api *dashboardApi) queryProfiles(ctx echo.Context) error {
	profs, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, profs)
}

func (api *dashboardApi) upsertProfile(ctx echo.Context) error {
	data := new(account.NewProfile)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prof, err := api.svc.Upsert(ctx.Request().Context(), *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, prof)
}

type DestroyProfilesRequest struct {
	IDs []string `query:"id"`
}

func (api *dashboardApi) destroyProfiles(ctx echo.Context) error {
	data := new(DestroyProfilesRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if data.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxIdentity cannot delete themselves
	snap, _ := snapshotFromContext(ctx)
	if snap.Identity != nil {
		for _, id := range data.IDs {
			if id == snap.Identity.ID {
				return errHttpForbidden
			}
		}
	}

	if err := api.svc.Delete(ctx.Request().Context(), data.IDs...); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *dashboardApi) grantAdmin(ctx echo.Context) error {
	if err := api.svc.GrantAdmin(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *dashboardApi) revokeAdmin(ctx echo.Context) error {
	id := ctx.Param("id")

	// revoking your own admin record locks you out; refuse
	snap, _ := snapshotFromContext(ctx)
	if snap.Identity != nil && snap.Identity.ID == id {
		return errHttpForbidden
	}

	if err := api.svc.RevokeAdmin(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
