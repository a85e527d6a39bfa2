// Package policy decides per resource whether an actor may perform an action.
//
// Policies only look at ownership and flags of the resource. Panel wide access is decided
// by the RBAC permissions of the auth package.
package policy

import (
	"errors"

	"github.com/cardforge/cardforge/internal/db/models"
)

// ErrForbidden is returned by Authorize when a policy denies the action.
var ErrForbidden = errors.New("this action is unauthorized")

// Action is something an actor does with a resource.
type Action string

// Actions known to all policies.
const (
	ViewAny     Action = "viewAny"
	View        Action = "view"
	Create      Action = "create"
	Update      Action = "update"
	Delete      Action = "delete"
	Restore     Action = "restore"
	ForceDelete Action = "forceDelete"
)

// Policy authorizes actions on resources of type T. actor is nil for anonymous requests,
// resource is nil for actions not bound to one resource (viewAny, create).
type Policy[T any] interface {
	Allows(actor *models.User, action Action, resource *T) bool
}

// Authorize returns ErrForbidden unless p allows the action.
func Authorize[T any](p Policy[T], actor *models.User, action Action, resource *T) error {
	if p.Allows(actor, action, resource) {
		return nil
	}

	return ErrForbidden
}
