package services

import "github.com/cppla/photoshare/models"

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   uint
	Role models.Role
}

// ActorOf builds an Actor from a loaded user.
func ActorOf(u *models.User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}

// Policy is an allow-list of roles.
type Policy struct {
	allowed map[models.Role]struct{}
}

// NewPolicy creates a policy allowing the given roles.
func NewPolicy(roles ...models.Role) Policy {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return Policy{allowed: allowed}
}

// Authorize returns ErrForbidden when role is not in the allow-list.
func (p Policy) Authorize(role models.Role) error {
	if _, ok := p.allowed[role]; !ok {
		return ErrForbidden
	}
	return nil
}

var (
	AnyUser          = NewPolicy(models.RoleAdmin, models.RoleModerator, models.RoleUser)
	AdminOnly        = NewPolicy(models.RoleAdmin)
	AdminOrModerator = NewPolicy(models.RoleAdmin, models.RoleModerator)
)

// CanModify applies the ownership rule: owners and admins/moderators may change a resource.
func CanModify(actor Actor, ownerID uint) error {
	if actor.ID == ownerID {
		return nil
	}
	return AdminOrModerator.Authorize(actor.Role)
}
