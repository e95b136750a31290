package dummydocs

import (
	"context"
	"sort"

	"github.com/somaplus/darasa/core/account"
)

type profileRepository struct {
	profiles *profileTable
	admins   *adminTable
}

var _ account.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) *profileRepository {
	return &profileRepository{profiles: db.profile, admins: db.admin}
}

func (repo *profileRepository) GetProfileByID(_ context.Context, id string) (account.Profile, error) {
	repo.profiles.RLock()
	defer repo.profiles.RUnlock()

	if prof, ok := repo.profiles.table[id]; ok {
		return *prof, nil
	}
	return account.Profile{}, account.ErrNotFound
}

func (repo *profileRepository) AdminRecordExists(_ context.Context, id string) (bool, error) {
	repo.admins.RLock()
	defer repo.admins.RUnlock()

	_, ok := repo.admins.table[id]
	return ok, nil
}

func (repo *profileRepository) QueryAllProfiles(_ context.Context) ([]account.Profile, error) {
	repo.profiles.RLock()
	defer repo.profiles.RUnlock()

	profs := make([]account.Profile, 0, len(repo.profiles.table))
	for _, prof := range repo.profiles.table {
		profs = append(profs, *prof)
	}
	sort.Slice(profs, func(i, j int) bool { return profs[i].ID < profs[j].ID })
	return profs, nil
}

func (repo *profileRepository) UpsertProfile(_ context.Context, prof account.Profile) (account.Profile, error) {
	repo.profiles.Lock()
	defer repo.profiles.Unlock()

	if existing, ok := repo.profiles.table[prof.ID]; ok {
		prof.CreatedAt = existing.CreatedAt
	}
	repo.profiles.table[prof.ID] = &prof
	return prof, nil
}

func (repo *profileRepository) DeleteProfilesByID(_ context.Context, ids ...string) error {
	repo.profiles.Lock()
	defer repo.profiles.Unlock()

	for _, id := range ids {
		delete(repo.profiles.table, id)
	}
	return nil
}

func (repo *profileRepository) SetAdminRecord(_ context.Context, id string) error {
	repo.admins.Lock()
	defer repo.admins.Unlock()

	repo.admins.table[id] = struct{}{}
	return nil
}

func (repo *profileRepository) UnsetAdminRecord(_ context.Context, id string) error {
	repo.admins.Lock()
	defer repo.admins.Unlock()

	delete(repo.admins.table, id)
	return nil
}
