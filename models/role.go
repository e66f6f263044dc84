package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// Role groups permissions of the form "action:subject".
type Role struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `json:"description"`
	Permissions []string  `gorm:"serializer:json;type:jsonb" json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsBuiltIn reports whether the role is one of the seeded defaults.
func (r *Role) IsBuiltIn() bool {
	switch r.Name {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

// DefaultRoles are upserted on startup.
func DefaultRoles() []Role {
	return []Role{
		{Name: RoleAdmin, Description: "Full access", Permissions: []string{"manage:all"}},
		{Name: RoleStaff, Description: "Catalog and fulfilment", Permissions: []string{
			"manage:product", "manage:image", "manage:marketing",
			"read:order", "update:order", "read:account",
		}},
		{Name: RoleCustomer, Description: "Storefront customer", Permissions: []string{}},
	}
}

type RoleRequest struct {
	Name        string   `json:"name" binding:"required,min=2,max=50"`
	Description string   `json:"description" binding:"max=200"`
	Permissions []string `json:"permissions" binding:"required,dive,required"`
}
