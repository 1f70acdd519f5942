package services

import "github.com/kaskelas/backend/internal/models"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID  string
	Role    models.Role
	ClassID string
}

func (a Actor) IsTreasurer() bool {
	return a.Role == models.RoleBendahara
}

// requireTreasurerOf enforces that treasurers only act within their own class.
func requireTreasurerOf(actor Actor, classID string) error {
	if !actor.IsTreasurer() {
		return forbiddenError("treasurer role required")
	}
	if actor.ClassID != classID {
		return forbiddenError("resource belongs to another class")
	}
	return nil
}
