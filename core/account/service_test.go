package account

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/somaplus/darasa/core/plan"
)

// fakeRepo is a minimal in-memory Repository with injectable failures.
type fakeRepo struct {
	profiles map[string]Profile
	admins   map[string]bool

	profileErr error
	adminErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{profiles: make(map[string]Profile), admins: make(map[string]bool)}
}

func (r *fakeRepo) GetProfileByID(ctx context.Context, id string) (Profile, error) {
	if r.profileErr != nil {
		return Profile{}, r.profileErr
	}
	prof, ok := r.profiles[id]
	if !ok {
		return Profile{}, errors.Wrapf(ErrNotFound, "id %q", id)
	}
	return prof, nil
}

func (r *fakeRepo) AdminRecordExists(ctx context.Context, id string) (bool, error) {
	if r.adminErr != nil {
		return false, r.adminErr
	}
	return r.admins[id], nil
}

func (r *fakeRepo) QueryAllProfiles(ctx context.Context) ([]Profile, error) {
	profs := make([]Profile, 0, len(r.profiles))
	for _, prof := range r.profiles {
		profs = append(profs, prof)
	}
	return profs, nil
}

func (r *fakeRepo) UpsertProfile(ctx context.Context, prof Profile) (Profile, error) {
	r.profiles[prof.ID] = prof
	return prof, nil
}

func (r *fakeRepo) DeleteProfilesByID(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		delete(r.profiles, id)
	}
	return nil
}

func (r *fakeRepo) SetAdminRecord(ctx context.Context, id string) error {
	r.admins[id] = true
	return nil
}

func (r *fakeRepo) UnsetAdminRecord(ctx context.Context, id string) error {
	delete(r.admins, id)
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

func seedProfile(repo *fakeRepo, id, role, planName, status string) {
	now := time.Now().UTC()
	repo.profiles[id] = Profile{
		ID:           id,
		Name:         "Test " + id,
		Role:         role,
		Subscription: Subscription{PlanName: planName, Status: status},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestService_ResolveAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("admin record short-circuits to full access", func(t *testing.T) {
		repo := newFakeRepo()
		repo.admins["root-1"] = true
		// even a profile pinning a lesser role and plan is ignored
		seedProfile(repo, "root-1", RoleConsumer, "Starter", "active")
		svc := NewService(repo, nopLogger{})

		access := svc.ResolveAccess(ctx, Identity{ID: "root-1"})
		assert.Equal(t, RoleAdmin, access.Role)
		assert.Equal(t, plan.TierEliteScholar, access.Tier)
		assert.Equal(t, plan.AllCapabilities(), access.Capabilities)
	})

	t.Run("profile role and plan resolve normally", func(t *testing.T) {
		repo := newFakeRepo()
		seedProfile(repo, "u1", RoleTutor, "Pro Learner Annual", "active")
		svc := NewService(repo, nopLogger{})

		access := svc.ResolveAccess(ctx, Identity{ID: "u1"})
		assert.Equal(t, RoleTutor, access.Role)
		assert.Equal(t, plan.TierProLearner, access.Tier)
		assert.True(t, access.Capabilities.Resume)
		assert.False(t, access.Capabilities.AskTutor)
	})

	t.Run("unknown role normalizes to consumer", func(t *testing.T) {
		repo := newFakeRepo()
		seedProfile(repo, "u1", "superuser", "Premium", "active")
		svc := NewService(repo, nopLogger{})

		access := svc.ResolveAccess(ctx, Identity{ID: "u1"})
		assert.Equal(t, RoleConsumer, access.Role)
		assert.Equal(t, plan.TierPremium, access.Tier)
	})

	t.Run("missing profile falls back to consumer on lowest tier", func(t *testing.T) {
		svc := NewService(newFakeRepo(), nopLogger{})

		access := svc.ResolveAccess(ctx, Identity{ID: "ghost"})
		assert.Equal(t, RoleConsumer, access.Role)
		assert.Equal(t, plan.TierStarter, access.Tier)
		assert.Equal(t, plan.CapabilitySet{}, access.Capabilities)
	})

	t.Run("repository failure falls back, never errors", func(t *testing.T) {
		repo := newFakeRepo()
		repo.profileErr = errors.New("connection refused")
		svc := NewService(repo, nopLogger{})

		access := svc.ResolveAccess(ctx, Identity{ID: "u1"})
		assert.Equal(t, RoleConsumer, access.Role)
		assert.Equal(t, plan.TierStarter, access.Tier)
	})

	t.Run("admin check failure degrades to the profile path", func(t *testing.T) {
		repo := newFakeRepo()
		repo.adminErr = errors.New("connection refused")
		seedProfile(repo, "u1", RoleTutor, "Premium", "active")
		svc := NewService(repo, nopLogger{})

		access := svc.ResolveAccess(ctx, Identity{ID: "u1"})
		assert.Equal(t, RoleTutor, access.Role)
	})

	t.Run("inactive subscription yields lowest tier", func(t *testing.T) {
		repo := newFakeRepo()
		seedProfile(repo, "u1", RoleConsumer, "Elite Scholar", "cancelled")
		svc := NewService(repo, nopLogger{})

		access := svc.ResolveAccess(ctx, Identity{ID: "u1"})
		assert.Equal(t, plan.TierStarter, access.Tier)
		assert.Equal(t, plan.CapabilitySet{}, access.Capabilities)
	})
}

func TestService_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	svc := NewService(repo, nopLogger{})

	prof, err := svc.Upsert(ctx, NewProfile{ID: "u1", Name: "Aisha", Role: "bogus", PlanName: "Premium", Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, RoleConsumer, prof.Role, "unknown roles are normalized on write")
	assert.False(t, prof.CreatedAt.IsZero())

	got, err := svc.GetProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Aisha", got.Name)
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleConsumer, NormalizeRole(""))
	assert.Equal(t, RoleConsumer, NormalizeRole("owner"))
	assert.Equal(t, RoleConsumer, NormalizeRole(RoleConsumer))
	assert.Equal(t, RoleTutor, NormalizeRole(" Tutor "))
	assert.Equal(t, RoleAdmin, NormalizeRole("ADMIN"))
}
