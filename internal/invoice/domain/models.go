// Package domain contains persistence models for invoices and payments.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft    InvoiceStatus = "DRAFT"
	InvoiceStatusOpen     InvoiceStatus = "OPEN"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
	InvoiceStatusVoid     InvoiceStatus = "VOID"
	InvoiceStatusRefunded InvoiceStatus = "REFUNDED"
)

// Invoice represents a billing document for a shop. The lifecycle core reads
// these rows and only writes them through the refund path.
type Invoice struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id,string"`
	ShopID           snowflake.ID      `gorm:"not null;index" json:"shop_id,string"`
	InvoiceNumber    int64             `gorm:"not null" json:"invoice_number"`
	Status           InvoiceStatus     `gorm:"type:text;not null;default:'DRAFT'" json:"status"`
	TotalAmountCents int64             `gorm:"not null;default:0" json:"total_amount_cents"`
	AmountPaidCents  int64             `gorm:"not null;default:0" json:"amount_paid_cents"`
	AmountDueCents   int64             `gorm:"not null;default:0" json:"amount_due_cents"`
	Currency         string            `gorm:"type:text;not null" json:"currency"`
	IssuedAt         *time.Time        `gorm:"" json:"issued_at,omitempty"`
	PaidAt           *time.Time        `gorm:"" json:"paid_at,omitempty"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Payment is one money movement against an invoice. Refunds are negative
// amounts; rows are never mutated after insert.
type Payment struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id,string"`
	InvoiceID   snowflake.ID `gorm:"not null;index" json:"invoice_id,string"`
	ShopID      snowflake.ID `gorm:"not null;index" json:"shop_id,string"`
	Reference   string       `gorm:"type:text;not null;uniqueIndex" json:"reference"`
	AmountCents int64        `gorm:"not null" json:"amount_cents"`
	Reason      string       `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
