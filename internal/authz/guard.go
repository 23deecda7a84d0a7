// ABOUTME: Access guard deciding allow/deny for a user, project set and action
// ABOUTME: Creator and full-access bypasses, OR-semantics across multiple projects

package authz

import (
	"context"
	"fmt"

	"github.com/partforge/partforge/internal/store"
)

// DenyReason is a machine-stable reason string carried on denials.
type DenyReason string

const (
	// DenyProjectRequired means no governing project could be resolved at
	// all. Empty resolution sets are denied by default.
	DenyProjectRequired DenyReason = "ProjectRequired"

	// DenyInsufficientRole means a project was found but the caller is
	// neither creator nor full-access and holds none of the required roles.
	DenyInsufficientRole DenyReason = "InsufficientRole"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  DenyReason // set only when denied
	// ProjectID is the project that granted access, when allowed via a
	// project (empty for the full-access bypass).
	ProjectID string
}

// Allow constructs an allowing decision.
func Allow(projectID string) Decision {
	return Decision{Allowed: true, ProjectID: projectID}
}

// Deny constructs a denying decision.
func Deny(reason DenyReason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// AuthorizationContext carries the resolved project set and the action
// under check as an explicit value, threaded from the resolver into the
// guard rather than smuggled through request state.
type AuthorizationContext struct {
	Projects ProjectSet
	Action   Action
}

// GuardStore is the slice of the entity store the guard reads.
type GuardStore interface {
	GetProject(ctx context.Context, id string) (*store.Project, error)
	ListUserRoles(ctx context.Context, projectID, userID string) ([]store.RoleName, error)
}

// Guard evaluates project-scoped authorization checks.
type Guard struct {
	store GuardStore
}

// NewGuard creates a guard over the given store.
func NewGuard(s GuardStore) *Guard {
	return &Guard{store: s}
}

// Authorize decides whether user may perform the action on any project in
// the set. A full-access user is allowed unconditionally. Otherwise each
// project is checked independently: the project creator always passes, and
// any held role whose name appears in the project's required-role list for
// the action passes. One allowing project suffices.
func (g *Guard) Authorize(ctx context.Context, user *store.User, ac AuthorizationContext) (Decision, error) {
	if user.FullAccess {
		return Allow(""), nil
	}

	if len(ac.Projects) == 0 {
		return Deny(DenyProjectRequired), nil
	}

	// One allowing project suffices, so a failure checking one project must
	// not mask a grant from another. The first error is kept and surfaced
	// only when no project allows.
	var firstErr error
	for _, projectID := range ac.Projects.IDs() {
		project, err := g.store.GetProject(ctx, projectID)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("loading project %s: %w", projectID, err)
			}
			continue
		}

		if project.CreatorID == user.ID {
			return Allow(projectID), nil
		}

		required := project.RequiredRoles[string(ac.Action)]
		if len(required) == 0 {
			// Absent action key: only creator or full access may act.
			continue
		}

		held, err := g.store.ListUserRoles(ctx, projectID, user.ID)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("listing roles for project %s: %w", projectID, err)
			}
			continue
		}

		if intersects(held, required) {
			return Allow(projectID), nil
		}
	}

	if firstErr != nil {
		return Decision{}, firstErr
	}
	return Deny(DenyInsufficientRole), nil
}

func intersects(held, required []store.RoleName) bool {
	for _, h := range held {
		for _, r := range required {
			if h == r {
				return true
			}
		}
	}
	return false
}
