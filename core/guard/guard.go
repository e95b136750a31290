package guard

import "github.com/somaplus/darasa/core/session"

// Decision is the three-way (plus allowed) outcome of a navigation attempt.
type Decision string

const (
	// DecisionPending: the session store has not finished loading; render a
	// neutral waiting indicator. Never redirect while pending, or a refresh
	// would bounce an authenticated user to the login page.
	DecisionPending Decision = "pending"

	// DecisionDeniedUnauthenticated: redirect to the login route, replacing
	// history so back-navigation does not loop into the guarded route.
	DecisionDeniedUnauthenticated Decision = "denied_unauthenticated"

	// DecisionDeniedWrongRole: render an access-denied view naming the
	// user's actual role; no redirect.
	DecisionDeniedWrongRole Decision = "denied_wrong_role"

	DecisionAllowed Decision = "allowed"
)

type (
	// Requirement declares what a route demands. An empty AllowedRoles means
	// "must be authenticated" only.
	Requirement struct {
		AllowedRoles []string
	}

	// Result carries the decision and, for wrong-role denials, the actual role.
	Result struct {
		Decision Decision
		Role     string
	}
)

func RequireAuthenticated() Requirement { return Requirement{} }

func RequireRoles(roles ...string) Requirement { return Requirement{AllowedRoles: roles} }

// Evaluate decides whether a navigation attempt may proceed.
// The loading check always comes first, then authentication, then role;
// evaluating role before loading completion is the ordering bug this
// function exists to prevent.
func Evaluate(snap session.Snapshot, req Requirement) Result {
	if snap.IsLoading() {
		return Result{Decision: DecisionPending}
	}
	if snap.Identity == nil {
		return Result{Decision: DecisionDeniedUnauthenticated}
	}
	if len(req.AllowedRoles) == 0 {
		return Result{Decision: DecisionAllowed, Role: snap.Role}
	}
	// The role is unknown until the profile fetch resolves; treat that
	// window as pending rather than denying an authorized user.
	if snap.ProfilePending {
		return Result{Decision: DecisionPending}
	}
	for _, role := range req.AllowedRoles {
		if role == snap.Role {
			return Result{Decision: DecisionAllowed, Role: snap.Role}
		}
	}
	return Result{Decision: DecisionDeniedWrongRole, Role: snap.Role}
}
