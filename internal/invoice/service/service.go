package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/fixology/fixology/internal/audit/domain"
	"github.com/fixology/fixology/internal/clock"
	"github.com/fixology/fixology/internal/config"
	"github.com/fixology/fixology/internal/entitlement"
	invoicedomain "github.com/fixology/fixology/internal/invoice/domain"
	"github.com/fixology/fixology/internal/requestctx"
	shopdomain "github.com/fixology/fixology/internal/shop/domain"
	"github.com/fixology/fixology/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Policy *config.PolicyHolder
	Audit  auditdomain.Service
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	policy *config.PolicyHolder
	audit  auditdomain.Service
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("invoice.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		policy: p.Policy,
		audit:  p.Audit,
	}
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoicesRequest) (invoicedomain.ListInvoicesResponse, error) {
	if err := s.authorize(ctx, "invoice.view"); err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	stmt := s.db.WithContext(ctx).Model(&invoicedomain.Invoice{})
	if shopID := strings.TrimSpace(req.ShopID); shopID != "" {
		id, err := snowflake.ParseString(shopID)
		if err != nil {
			return invoicedomain.ListInvoicesResponse{}, shopdomain.ErrInvalidShopID
		}
		stmt = stmt.Where("shop_id = ?", id)
	}
	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return invoicedomain.ListInvoicesResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return invoicedomain.ListInvoicesResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return invoicedomain.ListInvoicesResponse{}, auditdomain.ErrInvalidPageToken
		}
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, id)
	}

	var invoices []*invoicedomain.Invoice
	if err := stmt.Order("created_at desc, id desc").Limit(int(pageSize) + 1).Find(&invoices).Error; err != nil {
		return invoicedomain.ListInvoicesResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(invoices, pageSize, func(item *invoicedomain.Invoice) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(invoices) > int(pageSize) {
		invoices = invoices[:pageSize]
	}

	resp := invoicedomain.ListInvoicesResponse{Invoices: invoices}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	if err := s.authorize(ctx, "invoice.view"); err != nil {
		return nil, err
	}
	invoiceID, err := parseInvoiceID(id)
	if err != nil {
		return nil, err
	}
	return s.findInvoice(ctx, s.db, invoiceID, false)
}

func (s *Service) ListPayments(ctx context.Context, invoiceID string) ([]*invoicedomain.Payment, error) {
	if err := s.authorize(ctx, "invoice.view"); err != nil {
		return nil, err
	}
	id, err := parseInvoiceID(invoiceID)
	if err != nil {
		return nil, err
	}
	var payments []*invoicedomain.Payment
	err = s.db.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("created_at asc, id asc").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// Refund writes the negative payment row and recomputes the invoice's
// amounts and status in one transaction, so a partial failure can never leave
// the amounts and the status disagreeing.
func (s *Service) Refund(ctx context.Context, req invoicedomain.RefundRequest) (invoicedomain.RefundResponse, error) {
	if err := s.authorize(ctx, "billing.refund"); err != nil {
		return invoicedomain.RefundResponse{}, err
	}
	if req.AmountCents <= 0 {
		return invoicedomain.RefundResponse{}, invoicedomain.ErrInvalidRefundAmount
	}
	invoiceID, err := parseInvoiceID(req.InvoiceID)
	if err != nil {
		return invoicedomain.RefundResponse{}, err
	}
	reason := strings.TrimSpace(req.Reason)

	var resp invoicedomain.RefundResponse
	err = s.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := s.findInvoice(ctx, tx, invoiceID, true)
		if err != nil {
			return err
		}
		if invoice.Status == invoicedomain.InvoiceStatusDraft || invoice.Status == invoicedomain.InvoiceStatusVoid {
			return invoicedomain.ErrInvoiceNotRefundable
		}
		if req.AmountCents > invoice.AmountPaidCents {
			return invoicedomain.ErrRefundExceedsPaid
		}

		now := s.clock.Now()
		payment := &invoicedomain.Payment{
			ID:          s.genID.Generate(),
			InvoiceID:   invoice.ID,
			ShopID:      invoice.ShopID,
			Reference:   ulid.Make().String(),
			AmountCents: -req.AmountCents,
			Reason:      reason,
			CreatedAt:   now,
		}
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO payments (id, invoice_id, shop_id, reference, amount_cents, reason, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			payment.ID, payment.InvoiceID, payment.ShopID, payment.Reference,
			payment.AmountCents, payment.Reason, payment.CreatedAt,
		).Error; err != nil {
			return err
		}

		previousPaid := invoice.AmountPaidCents
		invoice.AmountPaidCents -= req.AmountCents
		invoice.AmountDueCents = invoice.TotalAmountCents - invoice.AmountPaidCents
		switch {
		case invoice.AmountPaidCents <= 0:
			invoice.Status = invoicedomain.InvoiceStatusRefunded
		case invoice.AmountPaidCents < invoice.TotalAmountCents:
			invoice.Status = invoicedomain.InvoiceStatusOpen
		default:
			invoice.Status = invoicedomain.InvoiceStatusPaid
		}
		invoice.UpdatedAt = now

		if err := tx.WithContext(ctx).Exec(
			`UPDATE invoices SET amount_paid_cents = ?, amount_due_cents = ?, status = ?, updated_at = ?
			 WHERE id = ?`,
			invoice.AmountPaidCents, invoice.AmountDueCents, invoice.Status, invoice.UpdatedAt, invoice.ID,
		).Error; err != nil {
			return err
		}

		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:      "invoice.refund",
			TargetType:  "invoice",
			TargetID:    invoice.ID.String(),
			Description: "refunded invoice payment",
			Metadata: map[string]any{
				"amount_cents":        req.AmountCents,
				"reason":              reason,
				"reference":           payment.Reference,
				"previous_paid_cents": previousPaid,
				"new_paid_cents":      invoice.AmountPaidCents,
				"new_status":          string(invoice.Status),
			},
		}); err != nil {
			return err
		}

		resp = invoicedomain.RefundResponse{Invoice: invoice, Payment: payment}
		return nil
	})
	if err != nil {
		return invoicedomain.RefundResponse{}, err
	}
	return resp, nil
}

func (s *Service) findInvoice(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*invoicedomain.Invoice, error) {
	query := `SELECT id, shop_id, invoice_number, status, total_amount_cents, amount_paid_cents,
		 amount_due_cents, currency, issued_at, paid_at, metadata, created_at, updated_at
		 FROM invoices WHERE id = ?`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var invoice invoicedomain.Invoice
	if err := db.WithContext(ctx).Raw(query, id).Scan(&invoice).Error; err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return &invoice, nil
}

func (s *Service) authorize(ctx context.Context, capability string) error {
	role := requestctx.ActorRole(ctx)
	if role == "" {
		return shopdomain.ErrPermissionDenied
	}
	if !entitlement.CanPerformAction(s.policy.Current(), role, capability) {
		return shopdomain.ErrPermissionDenied
	}
	return nil
}

func parseInvoiceID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, invoicedomain.ErrInvalidInvoiceID
	}
	return id, nil
}
