package domain

import (
	"context"
	"errors"

	"github.com/fixology/fixology/pkg/db/pagination"
)

type ListInvoicesRequest struct {
	ShopID    string
	Status    string
	PageToken string
	PageSize  int32
}

type ListInvoicesResponse struct {
	pagination.PageInfo
	Invoices []*Invoice `json:"invoices"`
}

type RefundRequest struct {
	InvoiceID   string `json:"-"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

type RefundResponse struct {
	Invoice *Invoice `json:"invoice"`
	Payment *Payment `json:"payment"`
}

// Service exposes the read paths plus the one write the core owns: refunds.
// A refund inserts the negative payment row and recomputes the invoice's
// paid/due amounts and status inside a single transaction.
type Service interface {
	List(ctx context.Context, req ListInvoicesRequest) (ListInvoicesResponse, error)
	GetByID(ctx context.Context, id string) (*Invoice, error)
	ListPayments(ctx context.Context, invoiceID string) ([]*Payment, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResponse, error)
}

var (
	ErrInvoiceNotFound      = errors.New("invoice_not_found")
	ErrInvalidInvoiceID     = errors.New("invalid_invoice_id")
	ErrInvalidRefundAmount  = errors.New("invalid_refund_amount")
	ErrRefundExceedsPaid    = errors.New("refund_exceeds_paid")
	ErrInvoiceNotRefundable = errors.New("invoice_not_refundable")
)
