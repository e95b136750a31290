package account

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/somaplus/darasa/core"
	"github.com/somaplus/darasa/core/plan"
)

var ErrNotFound = errors.New("profile not found")

type (
	Repository interface {
		GetProfileByID(ctx context.Context, id string) (Profile, error)
		// AdminRecordExists reports whether an administrative record exists for
		// the identity; existence alone short-circuits to the admin role.
		AdminRecordExists(ctx context.Context, id string) (bool, error)
		QueryAllProfiles(ctx context.Context) ([]Profile, error)
		UpsertProfile(ctx context.Context, prof Profile) (Profile, error)
		DeleteProfilesByID(ctx context.Context, ids ...string) error
		SetAdminRecord(ctx context.Context, id string) error
		UnsetAdminRecord(ctx context.Context, id string) error
	}

	// Access is the resolved capability state for an identity.
	Access struct {
		Role         string             `json:"role"`
		Tier         plan.Tier          `json:"tier"`
		Capabilities plan.CapabilitySet `json:"capabilities"`
	}

	Service struct {
		repo   Repository
		logger core.Logger
	}
)

func NewService(repo Repository, logger core.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (svc *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfileByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Profile, error) {
	return svc.repo.QueryAllProfiles(ctx)
}

func (svc *Service) Upsert(ctx context.Context, np NewProfile) (Profile, error) {
	now := time.Now().UTC()
	prof := Profile{
		ID:   np.ID,
		Name: np.Name,
		Role: NormalizeRole(np.Role),
		Subscription: Subscription{
			PlanName: np.PlanName,
			Status:   np.Status,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.UpsertProfile(ctx, prof)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteProfilesByID(ctx, ids...)
}

func (svc *Service) GrantAdmin(ctx context.Context, id string) error {
	return svc.repo.SetAdminRecord(ctx, id)
}

func (svc *Service) RevokeAdmin(ctx context.Context, id string) error {
	return svc.repo.UnsetAdminRecord(ctx, id)
}

func (svc *Service) IsAdmin(ctx context.Context, id string) (bool, error) {
	return svc.repo.AdminRecordExists(ctx, id)
}

// ResolveAccess derives the role, tier and capability set for a signed-in
// identity. It never fails: a missing or unreadable profile falls back to the
// consumer role on the lowest tier so the dashboard always has something to
// render.
func (svc *Service) ResolveAccess(ctx context.Context, identity Identity) Access {
	admin, err := svc.repo.AdminRecordExists(ctx, identity.ID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("checking admin record for %q: %v", identity.ID, err), err)
	}
	if admin {
		tier, caps := plan.Dashboard.Resolve("", "", true)
		return Access{Role: RoleAdmin, Tier: tier, Capabilities: caps}
	}

	prof, err := svc.repo.GetProfileByID(ctx, identity.ID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			svc.logger.Warn(fmt.Sprintf("fetching profile for %q: %v", identity.ID, err), err)
		}
		tier, caps := plan.Dashboard.Resolve("", "", false)
		return Access{Role: RoleConsumer, Tier: tier, Capabilities: caps}
	}

	tier, caps := plan.Dashboard.Resolve(prof.Subscription.PlanName, prof.Subscription.Status, false)
	return Access{Role: NormalizeRole(prof.Role), Tier: tier, Capabilities: caps}
}
