package domain

import (
	"context"
	"errors"

	"github.com/fixology/fixology/pkg/db/pagination"
)

type CreateShopRequest struct {
	Name       string `json:"name"`
	Plan       Plan   `json:"plan,omitempty"`
	IsTestShop bool   `json:"is_test_shop,omitempty"`
}

type ListShopsRequest struct {
	Status    string
	Plan      string
	PageToken string
	PageSize  int32
}

type ListShopsResponse struct {
	pagination.PageInfo
	Shops []*Shop `json:"shops"`
}

type SuspendShopRequest struct {
	ShopID string `json:"-"`
	Reason string `json:"reason"`
}

type ChangePlanRequest struct {
	ShopID string `json:"-"`
	Plan   Plan   `json:"plan"`
}

type ExtendTrialRequest struct {
	ShopID string `json:"-"`
	Days   int    `json:"days"`
}

type ApplyCreditRequest struct {
	ShopID     string `json:"-"`
	DeltaCents int64  `json:"delta_cents"`
	Reason     string `json:"reason"`
}

type ApplyCreditResponse struct {
	ShopID          string `json:"shop_id"`
	NewBalanceCents int64  `json:"new_balance_cents"`
}

type CancelSubscriptionRequest struct {
	ShopID string `json:"-"`
	Reason string `json:"reason"`
}

// Service is the single authority for shop lifecycle transitions. Every
// command validates before writing, persists the state change and its audit
// entry in one transaction, and returns the updated snapshot.
type Service interface {
	Create(ctx context.Context, req CreateShopRequest) (*Shop, error)
	GetByID(ctx context.Context, id string) (*Shop, error)
	List(ctx context.Context, req ListShopsRequest) (ListShopsResponse, error)
	Suspend(ctx context.Context, req SuspendShopRequest) (*Shop, error)
	Reactivate(ctx context.Context, shopID string) (*Shop, error)
	ChangePlan(ctx context.Context, req ChangePlanRequest) (*Shop, error)
	ExtendTrial(ctx context.Context, req ExtendTrialRequest) (*Shop, error)
	ApplyCredit(ctx context.Context, req ApplyCreditRequest) (ApplyCreditResponse, error)
	ListCreditLedger(ctx context.Context, shopID string, limit int) ([]*CreditLedgerEntry, error)
	CancelSubscription(ctx context.Context, req CancelSubscriptionRequest) (*Shop, error)
	DeleteTestShop(ctx context.Context, shopID string) error
}

var (
	ErrShopNotFound        = errors.New("shop_not_found")
	ErrInvalidShopID       = errors.New("invalid_shop_id")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidPlan         = errors.New("invalid_plan")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidTrialDays    = errors.New("invalid_trial_days")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidReason       = errors.New("invalid_reason")
	ErrSlugTaken           = errors.New("slug_taken")
	ErrNotTestShop         = errors.New("not_test_shop")
	ErrPermissionDenied    = errors.New("permission_denied")
	ErrConcurrencyConflict = errors.New("concurrency_conflict")
	ErrStorageUnavailable  = errors.New("storage_unavailable")
)
