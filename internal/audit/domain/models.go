// Package domain contains the append-only admin audit trail model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AdminAuditLog is one immutable record of an administrative action. Rows are
// never updated or deleted from application code.
type AdminAuditLog struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	ActorAdminID snowflake.ID      `gorm:"not null;index" json:"actor_admin_id,string"`
	Action       string            `gorm:"type:text;not null;index" json:"action"`
	TargetType   string            `gorm:"type:text;not null" json:"target_type"`
	TargetID     *string           `gorm:"type:text;index" json:"target_id,omitempty"`
	Description  string            `gorm:"type:text;not null" json:"description"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	IPAddress    *string           `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent    *string           `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

// TableName sets the database table name.
func (AdminAuditLog) TableName() string { return "admin_audit_logs" }

// AuditCursor is the decoded pagination cursor for audit listings.
type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// ListFilter narrows an audit listing at the repository layer.
type ListFilter struct {
	Action       string
	TargetType   string
	TargetID     string
	ActorAdminID string
	StartAt      *time.Time
	EndAt        *time.Time
	Cursor       *AuditCursor
	Limit        int
}
