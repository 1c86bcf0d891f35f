package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/fixology/fixology/internal/audit/domain"
	auditrepository "github.com/fixology/fixology/internal/audit/repository"
	auditservice "github.com/fixology/fixology/internal/audit/service"
	"github.com/fixology/fixology/internal/clock"
	"github.com/fixology/fixology/internal/config"
	invoicedomain "github.com/fixology/fixology/internal/invoice/domain"
	"github.com/fixology/fixology/internal/requestctx"
	shopdomain "github.com/fixology/fixology/internal/shop/domain"
)

func newTestService(t *testing.T) (*gorm.DB, invoicedomain.Service, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(strings.ReplaceAll(sql, "FOR UPDATE", ""))
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_strip_lock", stripForUpdate))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_strip_lock_row", stripForUpdate))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&invoicedomain.Invoice{},
		&invoicedomain.Payment{},
		&auditdomain.AdminAuditLog{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	log := zap.NewNop()
	fake := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})

	svc := NewService(Params{
		DB:     db,
		Log:    log,
		GenID:  node,
		Clock:  fake,
		Policy: config.NewStaticPolicyHolder(config.DefaultPolicyConfig()),
		Audit:  auditSvc,
	})
	return db, svc, fake
}

func billingCtx() context.Context {
	return requestctx.WithActor(context.Background(), snowflake.ID(7001), "BILLING")
}

func seedInvoice(t *testing.T, db *gorm.DB, inv invoicedomain.Invoice) *invoicedomain.Invoice {
	t.Helper()
	if inv.ID == 0 {
		inv.ID = snowflake.ID(time.Now().UnixNano())
	}
	if inv.Currency == "" {
		inv.Currency = "USD"
	}
	require.NoError(t, db.Create(&inv).Error)
	return &inv
}

func TestRefundRecomputesAmountsAndStatusTogether(t *testing.T) {
	db, svc, _ := newTestService(t)
	inv := seedInvoice(t, db, invoicedomain.Invoice{
		ShopID:           101,
		InvoiceNumber:    1,
		Status:           invoicedomain.InvoiceStatusPaid,
		TotalAmountCents: 5000,
		AmountPaidCents:  5000,
		AmountDueCents:   0,
	})

	resp, err := svc.Refund(billingCtx(), invoicedomain.RefundRequest{
		InvoiceID:   inv.ID.String(),
		AmountCents: 2000,
		Reason:      "warranty claim",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3000), resp.Invoice.AmountPaidCents)
	assert.Equal(t, int64(2000), resp.Invoice.AmountDueCents)
	assert.Equal(t, invoicedomain.InvoiceStatusOpen, resp.Invoice.Status)
	assert.Equal(t, int64(-2000), resp.Payment.AmountCents)
	assert.NotEmpty(t, resp.Payment.Reference)

	var stored invoicedomain.Invoice
	require.NoError(t, db.First(&stored, "id = ?", inv.ID).Error)
	assert.Equal(t, int64(3000), stored.AmountPaidCents)
	assert.Equal(t, invoicedomain.InvoiceStatusOpen, stored.Status)

	var logs []auditdomain.AdminAuditLog
	require.NoError(t, db.Where("action = ?", "invoice.refund").Find(&logs).Error)
	assert.Len(t, logs, 1)
}

func TestFullRefundMarksInvoiceRefunded(t *testing.T) {
	db, svc, _ := newTestService(t)
	inv := seedInvoice(t, db, invoicedomain.Invoice{
		ShopID:           102,
		InvoiceNumber:    2,
		Status:           invoicedomain.InvoiceStatusPaid,
		TotalAmountCents: 5000,
		AmountPaidCents:  5000,
	})

	resp, err := svc.Refund(billingCtx(), invoicedomain.RefundRequest{
		InvoiceID:   inv.ID.String(),
		AmountCents: 5000,
		Reason:      "full refund",
	})
	require.NoError(t, err)
	assert.Equal(t, invoicedomain.InvoiceStatusRefunded, resp.Invoice.Status)
	assert.Equal(t, int64(0), resp.Invoice.AmountPaidCents)
	assert.Equal(t, int64(5000), resp.Invoice.AmountDueCents)
}

func TestRefundValidation(t *testing.T) {
	db, svc, _ := newTestService(t)
	inv := seedInvoice(t, db, invoicedomain.Invoice{
		ShopID:           103,
		InvoiceNumber:    3,
		Status:           invoicedomain.InvoiceStatusPaid,
		TotalAmountCents: 1000,
		AmountPaidCents:  1000,
	})

	_, err := svc.Refund(billingCtx(), invoicedomain.RefundRequest{InvoiceID: inv.ID.String(), AmountCents: 0})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidRefundAmount)

	_, err = svc.Refund(billingCtx(), invoicedomain.RefundRequest{InvoiceID: inv.ID.String(), AmountCents: 2000})
	assert.ErrorIs(t, err, invoicedomain.ErrRefundExceedsPaid)

	void := seedInvoice(t, db, invoicedomain.Invoice{
		ShopID:           103,
		InvoiceNumber:    4,
		Status:           invoicedomain.InvoiceStatusVoid,
		TotalAmountCents: 1000,
	})
	_, err = svc.Refund(billingCtx(), invoicedomain.RefundRequest{InvoiceID: void.ID.String(), AmountCents: 100})
	assert.ErrorIs(t, err, invoicedomain.ErrInvoiceNotRefundable)

	// No payment rows or audit entries from the rejected attempts.
	var payments int64
	require.NoError(t, db.Model(&invoicedomain.Payment{}).Count(&payments).Error)
	assert.Zero(t, payments)
	var logs int64
	require.NoError(t, db.Model(&auditdomain.AdminAuditLog{}).Count(&logs).Error)
	assert.Zero(t, logs)
}

func TestRefundRequiresCapability(t *testing.T) {
	db, svc, _ := newTestService(t)
	inv := seedInvoice(t, db, invoicedomain.Invoice{
		ShopID:           104,
		InvoiceNumber:    5,
		Status:           invoicedomain.InvoiceStatusPaid,
		TotalAmountCents: 1000,
		AmountPaidCents:  1000,
	})

	ctx := requestctx.WithActor(context.Background(), snowflake.ID(7002), "SUPPORT")
	_, err := svc.Refund(ctx, invoicedomain.RefundRequest{InvoiceID: inv.ID.String(), AmountCents: 100})
	assert.ErrorIs(t, err, shopdomain.ErrPermissionDenied)
}
