package domain

import "time"

type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Default roles seeded at startup. Every registered user gets RoleUser,
// administrative resources additionally require RoleAdmin.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

func DefaultRoles() []Role {
	return []Role{
		{Name: RoleUser, Description: "Standard account"},
		{Name: RoleAdmin, Description: "Administrative access"},
	}
}
