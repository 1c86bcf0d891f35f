// Package domain contains persistence models for platform administrators.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// AdminRole enumerates back-office roles.
type AdminRole string

const (
	RoleSuperAdmin AdminRole = "SUPER_ADMIN"
	RoleSupport    AdminRole = "SUPPORT"
	RoleBilling    AdminRole = "BILLING"
	RoleReadonly   AdminRole = "READONLY"
)

// ValidRole reports whether r is a known admin role.
func ValidRole(r AdminRole) bool {
	switch r {
	case RoleSuperAdmin, RoleSupport, RoleBilling, RoleReadonly:
		return true
	}
	return false
}

// AdminUser is a back-office operator account.
type AdminUser struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id,string"`
	Email        string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Name         string       `gorm:"type:text;not null" json:"name"`
	Role         AdminRole    `gorm:"type:text;not null" json:"role"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (AdminUser) TableName() string { return "admin_users" }

// AdminSession is a bearer-token session. Only a bcrypt hash of the token
// secret is stored.
type AdminSession struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id,string"`
	AdminID   snowflake.ID `gorm:"not null;index" json:"admin_id,string"`
	TokenHash string       `gorm:"type:text;not null" json:"-"`
	ExpiresAt time.Time    `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time   `gorm:"" json:"revoked_at,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (AdminSession) TableName() string { return "admin_sessions" }
