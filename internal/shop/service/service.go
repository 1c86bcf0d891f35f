// Package service implements the shop lifecycle state machine. Every command
// runs as one transaction: load the row with a lock, validate, mutate,
// persist, and append the audit entry. A failed audit write rolls the state
// change back with it.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/fixology/fixology/internal/audit/domain"
	"github.com/fixology/fixology/internal/clock"
	"github.com/fixology/fixology/internal/config"
	"github.com/fixology/fixology/internal/entitlement"
	"github.com/fixology/fixology/internal/observability"
	"github.com/fixology/fixology/internal/requestctx"
	shopdomain "github.com/fixology/fixology/internal/shop/domain"
	"github.com/fixology/fixology/pkg/db"
	"github.com/fixology/fixology/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Policy  *config.PolicyHolder
	Repo    shopdomain.Repository
	Audit   auditdomain.Service
	Metrics *observability.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	policy  *config.PolicyHolder
	repo    shopdomain.Repository
	audit   auditdomain.Service
	metrics *observability.Metrics
}

func NewService(p Params) shopdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("shop.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		policy:  p.Policy,
		repo:    p.Repo,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req shopdomain.CreateShopRequest) (*shopdomain.Shop, error) {
	if err := s.authorize(ctx, "shop.create"); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, shopdomain.ErrInvalidName
	}

	plan := req.Plan
	if plan == "" {
		plan = shopdomain.PlanFree
	}
	if !shopdomain.ValidPlan(plan) {
		return nil, shopdomain.ErrInvalidPlan
	}

	now := s.clock.Now()
	trialEndsAt := now.Add(time.Duration(s.policy.Current().TrialDays) * 24 * time.Hour)

	shop := &shopdomain.Shop{
		ID:          s.genID.Generate(),
		Slug:        slug.Make(name),
		Name:        name,
		Plan:        plan,
		Status:      shopdomain.StatusTrial,
		TrialEndsAt: &trialEndsAt,
		IsTestShop:  req.IsTestShop,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, shop); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return shopdomain.ErrSlugTaken
			}
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:      "shop.create",
			TargetType:  "shop",
			TargetID:    shop.ID.String(),
			Description: "created shop " + shop.Slug,
			Metadata: map[string]any{
				"name":          shop.Name,
				"plan":          string(shop.Plan),
				"trial_ends_at": trialEndsAt.Format(time.RFC3339),
				"is_test_shop":  shop.IsTestShop,
			},
		})
	})
	if err != nil {
		s.recordOutcome(ctx, "shop.create", err)
		return nil, err
	}
	s.recordOutcome(ctx, "shop.create", nil)
	return shop, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*shopdomain.Shop, error) {
	if err := s.authorize(ctx, "shop.view"); err != nil {
		return nil, err
	}
	shopID, err := parseShopID(id)
	if err != nil {
		return nil, err
	}
	shop, err := s.repo.FindByID(ctx, s.db, shopID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, shopdomain.ErrShopNotFound
	}
	return shop, nil
}

func (s *Service) List(ctx context.Context, req shopdomain.ListShopsRequest) (shopdomain.ListShopsResponse, error) {
	if err := s.authorize(ctx, "shop.view"); err != nil {
		return shopdomain.ListShopsResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	q := shopdomain.ListShopsQuery{
		PageToken: strings.TrimSpace(req.PageToken),
		PageSize:  pageSize,
	}
	if status := strings.ToUpper(strings.TrimSpace(req.Status)); status != "" {
		if !shopdomain.ValidStatus(shopdomain.Status(status)) {
			return shopdomain.ListShopsResponse{}, shopdomain.ErrInvalidStatus
		}
		q.Status = shopdomain.Status(status)
	}
	if plan := strings.ToUpper(strings.TrimSpace(req.Plan)); plan != "" {
		if !shopdomain.ValidPlan(shopdomain.Plan(plan)) {
			return shopdomain.ListShopsResponse{}, shopdomain.ErrInvalidPlan
		}
		q.Plan = shopdomain.Plan(plan)
	}

	shops, err := s.repo.List(ctx, s.db, q)
	if err != nil {
		return shopdomain.ListShopsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(shops, pageSize, func(item *shopdomain.Shop) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(shops) > int(pageSize) {
		shops = shops[:pageSize]
	}

	resp := shopdomain.ListShopsResponse{Shops: shops}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Suspend(ctx context.Context, req shopdomain.SuspendShopRequest) (*shopdomain.Shop, error) {
	reason := strings.TrimSpace(req.Reason)
	return s.transition(ctx, req.ShopID, "shop.suspend", "shop.suspend", func(shop *shopdomain.Shop, now time.Time) (map[string]any, error) {
		meta := map[string]any{
			"previous_status": string(shop.Status),
			"reason":          reason,
		}
		shop.Status = shopdomain.StatusSuspended
		shop.SuspendedAt = &now
		shop.SuspendedReason = &reason
		return meta, nil
	})
}

func (s *Service) Reactivate(ctx context.Context, shopID string) (*shopdomain.Shop, error) {
	return s.transition(ctx, shopID, "shop.reactivate", "shop.reactivate", func(shop *shopdomain.Shop, now time.Time) (map[string]any, error) {
		meta := map[string]any{
			"previous_status": string(shop.Status),
		}
		shop.Status = shopdomain.StatusActive
		shop.SuspendedAt = nil
		shop.SuspendedReason = nil
		return meta, nil
	})
}

func (s *Service) ChangePlan(ctx context.Context, req shopdomain.ChangePlanRequest) (*shopdomain.Shop, error) {
	plan := shopdomain.Plan(strings.ToUpper(strings.TrimSpace(string(req.Plan))))
	return s.transition(ctx, req.ShopID, "plan.change", "shop.change_plan", func(shop *shopdomain.Shop, now time.Time) (map[string]any, error) {
		if !shopdomain.ValidPlan(plan) {
			return nil, shopdomain.ErrInvalidPlan
		}
		meta := map[string]any{
			"previous_plan":   string(shop.Plan),
			"new_plan":        string(plan),
			"previous_status": string(shop.Status),
		}
		shop.Plan = plan
		// A plan change must never lift a suspension or revive a cancelled
		// shop.
		if shop.Status != shopdomain.StatusSuspended && shop.Status != shopdomain.StatusCancelled {
			shop.Status = shopdomain.StatusActive
		}
		meta["new_status"] = string(shop.Status)
		return meta, nil
	})
}

func (s *Service) ExtendTrial(ctx context.Context, req shopdomain.ExtendTrialRequest) (*shopdomain.Shop, error) {
	return s.transition(ctx, req.ShopID, "trial.extend", "shop.extend_trial", func(shop *shopdomain.Shop, now time.Time) (map[string]any, error) {
		if req.Days <= 0 {
			return nil, shopdomain.ErrInvalidTrialDays
		}
		base := now
		if shop.TrialEndsAt != nil && shop.TrialEndsAt.After(now) {
			base = *shop.TrialEndsAt
		}
		extended := base.Add(time.Duration(req.Days) * 24 * time.Hour)
		meta := map[string]any{
			"days":     req.Days,
			"new_ends": extended.Format(time.RFC3339),
		}
		if shop.TrialEndsAt != nil {
			meta["previous_ends"] = shop.TrialEndsAt.Format(time.RFC3339)
		}
		shop.TrialEndsAt = &extended
		return meta, nil
	})
}

func (s *Service) ApplyCredit(ctx context.Context, req shopdomain.ApplyCreditRequest) (shopdomain.ApplyCreditResponse, error) {
	if err := s.authorize(ctx, "billing"); err != nil {
		s.recordOutcome(ctx, "shop.apply_credit", err)
		return shopdomain.ApplyCreditResponse{}, err
	}
	if req.DeltaCents == 0 {
		return shopdomain.ApplyCreditResponse{}, shopdomain.ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return shopdomain.ApplyCreditResponse{}, shopdomain.ErrInvalidReason
	}
	shopID, err := parseShopID(req.ShopID)
	if err != nil {
		return shopdomain.ApplyCreditResponse{}, err
	}
	actorID, _ := requestctx.ActorID(ctx)

	var newBalance int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		shop, err := s.repo.FindByIDForUpdate(ctx, tx, shopID)
		if err != nil {
			return err
		}
		if shop == nil {
			return shopdomain.ErrShopNotFound
		}

		previous := shop.CreditBalanceCents
		newBalance = previous + req.DeltaCents
		now := s.clock.Now()

		shop.CreditBalanceCents = newBalance
		shop.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, shop); err != nil {
			return err
		}

		if err := s.repo.InsertLedgerEntry(ctx, tx, &shopdomain.CreditLedgerEntry{
			ID:                   s.genID.Generate(),
			ShopID:               shop.ID,
			DeltaCents:           req.DeltaCents,
			PreviousBalanceCents: previous,
			NewBalanceCents:      newBalance,
			Reason:               reason,
			ActorAdminID:         actorID,
			CreatedAt:            now,
		}); err != nil {
			return err
		}

		return s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:      "shop.apply_credit",
			TargetType:  "shop",
			TargetID:    shop.ID.String(),
			Description: "adjusted credit balance",
			Metadata: map[string]any{
				"amount_cents":           req.DeltaCents,
				"reason":                 reason,
				"previous_balance_cents": previous,
				"new_balance_cents":      newBalance,
			},
		})
	})
	if err != nil {
		s.recordOutcome(ctx, "shop.apply_credit", err)
		return shopdomain.ApplyCreditResponse{}, err
	}

	s.recordOutcome(ctx, "shop.apply_credit", nil)
	if s.metrics != nil {
		s.metrics.RecordCreditApplied(ctx, reason)
	}
	return shopdomain.ApplyCreditResponse{
		ShopID:          shopID.String(),
		NewBalanceCents: newBalance,
	}, nil
}

func (s *Service) ListCreditLedger(ctx context.Context, shopID string, limit int) ([]*shopdomain.CreditLedgerEntry, error) {
	if err := s.authorize(ctx, "shop.view"); err != nil {
		return nil, err
	}
	id, err := parseShopID(shopID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 250 {
		limit = 50
	}
	shop, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return nil, shopdomain.ErrShopNotFound
	}
	return s.repo.ListLedgerEntries(ctx, s.db, id, limit)
}

func (s *Service) CancelSubscription(ctx context.Context, req shopdomain.CancelSubscriptionRequest) (*shopdomain.Shop, error) {
	reason := strings.TrimSpace(req.Reason)
	return s.transition(ctx, req.ShopID, "shop.cancel", "shop.cancel", func(shop *shopdomain.Shop, now time.Time) (map[string]any, error) {
		meta := map[string]any{
			"previous_status": string(shop.Status),
			"reason":          reason,
		}
		shop.Status = shopdomain.StatusCancelled
		return meta, nil
	})
}

func (s *Service) DeleteTestShop(ctx context.Context, shopID string) error {
	if err := s.authorize(ctx, "shop.delete"); err != nil {
		return err
	}
	id, err := parseShopID(shopID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		shop, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if shop == nil {
			return shopdomain.ErrShopNotFound
		}
		if !shop.IsTestShop {
			return shopdomain.ErrNotTestShop
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:      "shop.delete",
			TargetType:  "shop",
			TargetID:    id.String(),
			Description: "deleted test shop " + shop.Slug,
			Metadata:    map[string]any{"slug": shop.Slug},
		})
	})
	s.recordOutcome(ctx, "shop.delete", err)
	return err
}

// transition runs one lifecycle command: authorize, lock the row, apply the
// mutation, persist and audit in the same transaction.
func (s *Service) transition(ctx context.Context, shopID, capability, action string, mutate func(*shopdomain.Shop, time.Time) (map[string]any, error)) (*shopdomain.Shop, error) {
	if err := s.authorize(ctx, capability); err != nil {
		s.recordOutcome(ctx, action, err)
		return nil, err
	}
	id, err := parseShopID(shopID)
	if err != nil {
		return nil, err
	}

	var updated *shopdomain.Shop
	err = s.db.Transaction(func(tx *gorm.DB) error {
		shop, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if shop == nil {
			return shopdomain.ErrShopNotFound
		}

		now := s.clock.Now()
		meta, err := mutate(shop, now)
		if err != nil {
			return err
		}
		shop.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, shop); err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:      action,
			TargetType:  "shop",
			TargetID:    shop.ID.String(),
			Description: action + " on " + shop.Slug,
			Metadata:    meta,
		}); err != nil {
			return err
		}
		updated = shop
		return nil
	})
	if err != nil {
		s.recordOutcome(ctx, action, err)
		return nil, err
	}

	s.recordOutcome(ctx, action, nil)
	s.log.Info("lifecycle transition committed",
		zap.String("action", action),
		zap.String("shop_id", updated.ID.String()),
		zap.String("status", string(updated.Status)),
	)
	return updated, nil
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

func (s *Service) recordOutcome(ctx context.Context, action string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordLifecycleCommand(ctx, action, outcome)
}

func parseShopID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, shopdomain.ErrInvalidShopID
	}
	return id, nil
}
