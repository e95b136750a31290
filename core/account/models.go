package account

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/somaplus/darasa/core"
)

// Roles
const (
	RoleConsumer = "consumer"
	RoleTutor    = "tutor"
	RoleAdmin    = "admin"
)

var AllRoles = []string{RoleConsumer, RoleTutor, RoleAdmin}

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeRole maps a stored role string to the closed role set;
// anything unrecognized defaults to consumer.
func NormalizeRole(role string) string {
	role = core.CleanString(role, true /* lower */)
	if IsValidRole(role) {
		return role
	}
	return RoleConsumer
}

// Identity is the signed-in principal as reported by the auth provider.
// The provider supplies id and display metadata only; role and plan come
// from the stored profile.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Subscription struct {
	PlanName string `json:"plan_name"`
	Status   string `json:"status"`
}

// Profile is the stored profile/subscription document for an identity.
type Profile struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Role         string       `json:"role"`
	Subscription Subscription `json:"subscription"`
	CreatedAt    time.Time    `json:"created_at"` // UTC
	UpdatedAt    time.Time    `json:"updated_at"` // UTC
}

// NewProfile contains information needed to create or replace a Profile.
type NewProfile struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"omitempty,role"`
	PlanName string `json:"plan_name"`
	Status   string `json:"status"`
}

func (np *NewProfile) Validate(validate *validator.Validate) error {
	np.ID = core.CleanString(np.ID)
	np.Name = core.CleanString(np.Name)
	np.Role = core.CleanString(np.Role, true /* lower */)
	np.PlanName = core.CleanString(np.PlanName)
	np.Status = core.CleanString(np.Status, true /* lower */)
	return validate.Struct(np)
}
