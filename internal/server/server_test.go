package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/fixology/fixology/internal/audit/domain"
	authdomain "github.com/fixology/fixology/internal/auth/domain"
	"github.com/fixology/fixology/internal/authorization"
	"github.com/fixology/fixology/internal/clock"
	"github.com/fixology/fixology/internal/config"
	invoicedomain "github.com/fixology/fixology/internal/invoice/domain"
	"github.com/fixology/fixology/internal/requestctx"
	shopdomain "github.com/fixology/fixology/internal/shop/domain"
)

const testToken = "1234.secret"

type fakeAuthService struct {
	admin      *authdomain.AdminUser
	loginCalls int
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (authdomain.LoginResponse, error) {
	f.loginCalls++
	if req.Email != f.admin.Email {
		return authdomain.LoginResponse{}, authdomain.ErrInvalidCredentials
	}
	return authdomain.LoginResponse{Token: testToken, Admin: f.admin}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, token string) error {
	if token != testToken {
		return authdomain.ErrInvalidToken
	}
	return nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, token string) (*authdomain.AdminUser, error) {
	if token != testToken {
		return nil, authdomain.ErrInvalidToken
	}
	return f.admin, nil
}

type fakeShopService struct {
	shop        *shopdomain.Shop
	lastSuspend shopdomain.SuspendShopRequest
	err         error
	actorRole   string
}

func (f *fakeShopService) Create(ctx context.Context, req shopdomain.CreateShopRequest) (*shopdomain.Shop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.shop, nil
}

func (f *fakeShopService) GetByID(ctx context.Context, id string) (*shopdomain.Shop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.shop, nil
}

func (f *fakeShopService) List(ctx context.Context, req shopdomain.ListShopsRequest) (shopdomain.ListShopsResponse, error) {
	if f.err != nil {
		return shopdomain.ListShopsResponse{}, f.err
	}
	return shopdomain.ListShopsResponse{Shops: []*shopdomain.Shop{f.shop}}, nil
}

func (f *fakeShopService) Suspend(ctx context.Context, req shopdomain.SuspendShopRequest) (*shopdomain.Shop, error) {
	f.lastSuspend = req
	f.actorRole = requestctx.ActorRole(ctx)
	if f.err != nil {
		return nil, f.err
	}
	return f.shop, nil
}

func (f *fakeShopService) Reactivate(ctx context.Context, shopID string) (*shopdomain.Shop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.shop, nil
}

func (f *fakeShopService) ChangePlan(ctx context.Context, req shopdomain.ChangePlanRequest) (*shopdomain.Shop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.shop, nil
}

func (f *fakeShopService) ExtendTrial(ctx context.Context, req shopdomain.ExtendTrialRequest) (*shopdomain.Shop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.shop, nil
}

func (f *fakeShopService) ApplyCredit(ctx context.Context, req shopdomain.ApplyCreditRequest) (shopdomain.ApplyCreditResponse, error) {
	if f.err != nil {
		return shopdomain.ApplyCreditResponse{}, f.err
	}
	return shopdomain.ApplyCreditResponse{ShopID: req.ShopID, NewBalanceCents: 1500}, nil
}

func (f *fakeShopService) ListCreditLedger(ctx context.Context, shopID string, limit int) ([]*shopdomain.CreditLedgerEntry, error) {
	return nil, f.err
}

func (f *fakeShopService) CancelSubscription(ctx context.Context, req shopdomain.CancelSubscriptionRequest) (*shopdomain.Shop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.shop, nil
}

func (f *fakeShopService) DeleteTestShop(ctx context.Context, shopID string) error {
	return f.err
}

type fakeInvoiceService struct {
	invoice *invoicedomain.Invoice
	err     error
}

func (f *fakeInvoiceService) List(ctx context.Context, req invoicedomain.ListInvoicesRequest) (invoicedomain.ListInvoicesResponse, error) {
	if f.err != nil {
		return invoicedomain.ListInvoicesResponse{}, f.err
	}
	return invoicedomain.ListInvoicesResponse{Invoices: []*invoicedomain.Invoice{f.invoice}}, nil
}

func (f *fakeInvoiceService) GetByID(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.invoice, nil
}

func (f *fakeInvoiceService) ListPayments(ctx context.Context, invoiceID string) ([]*invoicedomain.Payment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return nil, nil
}

func (f *fakeInvoiceService) Refund(ctx context.Context, req invoicedomain.RefundRequest) (invoicedomain.RefundResponse, error) {
	if f.err != nil {
		return invoicedomain.RefundResponse{}, f.err
	}
	return invoicedomain.RefundResponse{Invoice: f.invoice}, nil
}

type fakeAuthzService struct {
	denied map[string]bool
}

func (f *fakeAuthzService) Authorize(ctx context.Context, actor, object, action string) error {
	if f.denied[action] {
		return authorization.ErrForbidden
	}
	return nil
}

type fakeAuditService struct{}

func (fakeAuditService) Record(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) error {
	return nil
}

func (fakeAuditService) RecordBestEffort(ctx context.Context, entry auditdomain.Entry) {}

func (fakeAuditService) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

type serverFixture struct {
	server  *Server
	shops   *fakeShopService
	auth    *fakeAuthService
	authz   *fakeAuthzService
	invoice *fakeInvoiceService
	clock   *clock.FakeClock
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	trialEnd := now.Add(49 * time.Hour)

	shops := &fakeShopService{
		shop: &shopdomain.Shop{
			ID:          snowflake.ID(42),
			Slug:        "mikes-phone-repair",
			Name:        "Mike's Phone Repair",
			Plan:        shopdomain.PlanFree,
			Status:      shopdomain.StatusTrial,
			TrialEndsAt: &trialEnd,
		},
	}
	auth := &fakeAuthService{
		admin: &authdomain.AdminUser{
			ID:    snowflake.ID(9001),
			Email: "ops@fixology.local",
			Name:  "Ops",
			Role:  authdomain.RoleSupport,
		},
	}
	invoice := &fakeInvoiceService{
		invoice: &invoicedomain.Invoice{ID: snowflake.ID(77), Status: invoicedomain.InvoiceStatusOpen},
	}
	fc := clock.NewFakeClock(now)
	authz := &fakeAuthzService{denied: map[string]bool{}}

	srv := NewServer(ServerParams{
		Gin:        NewEngine(),
		Cfg:        config.Config{HTTPAddr: ":0"},
		Log:        zap.NewNop(),
		Authsvc:    auth,
		AuthzSvc:   authz,
		ShopSvc:    shops,
		InvoiceSvc: invoice,
		AuditSvc:   fakeAuditService{},
		Clock:      fc,
	})
	registerRoutes(srv)

	return &serverFixture{server: srv, shops: shops, auth: auth, authz: authz, invoice: invoice, clock: fc}
}

func (f *serverFixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/admin/shops", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodGet, "/admin/shops", "wrong-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var payload errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "unauthorized", payload.Error.Type)
}

func TestSuspendShopPassesActorAndReason(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/admin/shops/42/suspend", testToken, gin.H{"reason": "chargeback abuse"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", f.shops.lastSuspend.ShopID)
	assert.Equal(t, "chargeback abuse", f.shops.lastSuspend.Reason)
	assert.Equal(t, "SUPPORT", f.shops.actorRole)
}

func TestErrorMapping(t *testing.T) {
	f := newServerFixture(t)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", shopdomain.ErrShopNotFound, http.StatusNotFound},
		{"permission denied", shopdomain.ErrPermissionDenied, http.StatusForbidden},
		{"invalid trial days", shopdomain.ErrInvalidTrialDays, http.StatusBadRequest},
		{"slug taken", shopdomain.ErrSlugTaken, http.StatusConflict},
		{"version conflict", shopdomain.ErrConcurrencyConflict, http.StatusConflict},
		{"storage down", shopdomain.ErrStorageUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.shops.err = tc.err
			rec := f.do(http.MethodPost, "/admin/shops/42/suspend", testToken, gin.H{"reason": "x"})
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRouteRBACDeniesBeforeService(t *testing.T) {
	f := newServerFixture(t)
	f.authz.denied[authorization.ActionShopSuspend] = true

	rec := f.do(http.MethodPost, "/admin/shops/42/suspend", testToken, gin.H{"reason": "x"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.shops.lastSuspend.ShopID)
}

func TestRefundConflictMapping(t *testing.T) {
	f := newServerFixture(t)
	f.invoice.err = invoicedomain.ErrRefundExceedsPaid

	rec := f.do(http.MethodPost, "/admin/invoices/77/refunds", testToken, gin.H{"amount_cents": 10000, "reason": "too much"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var payload errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "refund_exceeds_paid", payload.Error.Type)
}

func TestGetShopEntitlements(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/admin/shops/42/entitlements", testToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, "42", summary["shop_id"])
	assert.Equal(t, "TRIAL", summary["status"])
	assert.Equal(t, true, summary["billing_active"])
	assert.Equal(t, false, summary["locked"])
	assert.Equal(t, float64(3), summary["trial_days_remaining"])
}

func TestLoginAndMe(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/auth/login", "", gin.H{"email": "ops@fixology.local", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testToken, resp.Token)
	assert.Equal(t, 1, f.auth.loginCalls)

	rec = f.do(http.MethodGet, "/auth/me", testToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "ops@fixology.local", me["email"])
	assert.Equal(t, "SUPPORT", me["role"])

	rec = f.do(http.MethodPost, "/auth/login", "", gin.H{"email": "nobody@fixology.local", "password": "pw"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDeleteTestShop(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodDelete, "/admin/shops/42", testToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	f.shops.err = shopdomain.ErrNotTestShop
	rec = f.do(http.MethodDelete, "/admin/shops/42", testToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
