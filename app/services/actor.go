// Package services holds the business operations of the store. Services
// take an injected *gorm.DB and the Actor performing the call; they never
// read request state.
package services

import (
	"slices"

	"github.com/shashiranjanraj/ferremas/app/models"
	"github.com/shashiranjanraj/ferremas/pkg/auth"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID      uint
	Role        string
	BranchID    uint
	WarehouseID uint
}

// ActorFromClaims lifts token claims into an Actor.
func ActorFromClaims(c *auth.Claims) Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, Role: c.Role, BranchID: c.BranchID, WarehouseID: c.WarehouseID}
}

func (a Actor) IsAdmin() bool    { return a.Role == models.RoleAdmin }
func (a Actor) IsCustomer() bool { return a.Role == models.RoleCustomer }
func (a Actor) IsStaff() bool    { return slices.Contains(models.StaffRoles, a.Role) }

// Is reports whether the actor holds one of roles.
func (a Actor) Is(roles ...string) bool { return slices.Contains(roles, a.Role) }

func (a Actor) userPtr() *uint {
	if a.UserID == 0 {
		return nil
	}
	id := a.UserID
	return &id
}
