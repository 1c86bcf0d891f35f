// Package domain contains persistence models for shops and their credit ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Plan enumerates the commercial tiers a shop can subscribe to.
type Plan string

const (
	PlanFree       Plan = "FREE"
	PlanStarter    Plan = "STARTER"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

// ValidPlan reports whether p is a known plan code.
func ValidPlan(p Plan) bool {
	switch p {
	case PlanFree, PlanStarter, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// IsPaid reports whether p is a paying tier.
func (p Plan) IsPaid() bool {
	return p != PlanFree && p != ""
}

// Status represents lifecycle states for a shop subscription.
type Status string

const (
	StatusTrial     Status = "TRIAL"
	StatusActive    Status = "ACTIVE"
	StatusPastDue   Status = "PAST_DUE"
	StatusSuspended Status = "SUSPENDED"
	StatusCancelled Status = "CANCELLED"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTrial, StatusActive, StatusPastDue, StatusSuspended, StatusCancelled:
		return true
	}
	return false
}

// Shop is the tenant aggregate root. Fields with correctness invariants
// (balance, suspension markers, version) are typed columns; Features holds
// only unstructured, non-contended data such as ad-hoc flags and the
// activity log.
type Shop struct {
	ID                 snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	Slug               string            `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Name               string            `gorm:"type:text;not null" json:"name"`
	Plan               Plan              `gorm:"type:text;not null" json:"plan"`
	Status             Status            `gorm:"type:text;not null;index" json:"status"`
	TrialEndsAt        *time.Time        `gorm:"" json:"trial_ends_at,omitempty"`
	CreditBalanceCents int64             `gorm:"not null;default:0" json:"credit_balance_cents"`
	SuspendedAt        *time.Time        `gorm:"" json:"suspended_at,omitempty"`
	SuspendedReason    *string           `gorm:"type:text" json:"suspended_reason,omitempty"`
	IsTestShop         bool              `gorm:"not null;default:false" json:"is_test_shop"`
	Version            int64             `gorm:"not null;default:1" json:"-"`
	Features           datatypes.JSONMap `gorm:"type:jsonb" json:"features,omitempty"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Shop) TableName() string { return "shops" }

// CreditLedgerEntry is one immutable row per applied balance delta. The shop
// balance column is the authoritative sum; these rows are the history.
type CreditLedgerEntry struct {
	ID                   snowflake.ID `gorm:"primaryKey" json:"id,string"`
	ShopID               snowflake.ID `gorm:"not null;index" json:"shop_id,string"`
	DeltaCents           int64        `gorm:"not null" json:"delta_cents"`
	PreviousBalanceCents int64        `gorm:"not null" json:"previous_balance_cents"`
	NewBalanceCents      int64        `gorm:"not null" json:"new_balance_cents"`
	Reason               string       `gorm:"type:text;not null" json:"reason"`
	ActorAdminID         snowflake.ID `gorm:"not null;index" json:"actor_admin_id,string"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (CreditLedgerEntry) TableName() string { return "credit_ledger_entries" }
