package pgdocs

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/somaplus/darasa/core/account"
)

type profileRepository struct {
	db *sqlx.DB
}

var _ account.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) *profileRepository {
	return &profileRepository{db: db}
}

type profileRow struct {
	ID         string      `db:"id"`
	Name       null.String `db:"name"`
	Role       null.String `db:"role"`
	PlanName   null.String `db:"plan_name"`
	PlanStatus null.String `db:"plan_status"`
	CreatedAt  null.Time   `db:"created_at"`
	UpdatedAt  null.Time   `db:"updated_at"`
}

func (repo profileRepository) row(prof account.Profile) profileRow {
	return profileRow{
		ID:         prof.ID,
		Name:       null.NewString(prof.Name, prof.Name != ""),
		Role:       null.NewString(prof.Role, prof.Role != ""),
		PlanName:   null.NewString(prof.Subscription.PlanName, prof.Subscription.PlanName != ""),
		PlanStatus: null.NewString(prof.Subscription.Status, prof.Subscription.Status != ""),
		CreatedAt:  null.NewTime(prof.CreatedAt.UTC(), !prof.CreatedAt.IsZero()),
		UpdatedAt:  null.NewTime(prof.UpdatedAt.UTC(), !prof.UpdatedAt.IsZero()),
	}
}

func (repo profileRepository) unrow(row profileRow) account.Profile {
	return account.Profile{
		ID:   row.ID,
		Name: row.Name.String,
		Role: row.Role.String,
		Subscription: account.Subscription{
			PlanName: row.PlanName.String,
			Status:   row.PlanStatus.String,
		},
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to account.ErrNotFound
func (repo profileRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return account.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo profileRepository) GetProfileByID(ctx context.Context, id string) (account.Profile, error) {
	var row profileRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM profile WHERE id = $1", id)
	if err != nil {
		return account.Profile{}, repo.trapNoRowsErr(err, "getting profile by id")
	}
	return repo.unrow(row), nil
}

func (repo profileRepository) AdminRecordExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM admin_record WHERE profile_id = $1)", id)
	if err != nil {
		return false, errors.Wrap(err, "checking admin record")
	}
	return exists, nil
}

func (repo profileRepository) QueryAllProfiles(ctx context.Context) ([]account.Profile, error) {
	var rows []profileRow
	err := repo.db.SelectContext(ctx, &rows, "SELECT * FROM profile ORDER BY created_at")
	if err != nil {
		return nil, errors.Wrap(err, "querying all profiles")
	}
	profs := make([]account.Profile, 0, len(rows))
	for _, row := range rows {
		profs = append(profs, repo.unrow(row))
	}
	return profs, nil
}

func (repo profileRepository) UpsertProfile(ctx context.Context, prof account.Profile) (account.Profile, error) {
	row := repo.row(prof)
	const q = `
INSERT INTO profile (id, name, role, plan_name, plan_status, created_at, updated_at)
VALUES (:id, :name, :role, :plan_name, :plan_status, :created_at, :updated_at)
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    role = EXCLUDED.role,
    plan_name = EXCLUDED.plan_name,
    plan_status = EXCLUDED.plan_status,
    updated_at = EXCLUDED.updated_at`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return account.Profile{}, errors.Wrap(err, "upserting profile")
	}
	return repo.GetProfileByID(ctx, prof.ID)
}

func (repo profileRepository) DeleteProfilesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM profile WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting profiles")
	}
	return nil
}

func (repo profileRepository) SetAdminRecord(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO admin_record (profile_id) VALUES ($1) ON CONFLICT (profile_id) DO NOTHING", id)
	return errors.Wrap(err, "setting admin record")
}

func (repo profileRepository) UnsetAdminRecord(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, "DELETE FROM admin_record WHERE profile_id = $1", id)
	return errors.Wrap(err, "unsetting admin record")
}
