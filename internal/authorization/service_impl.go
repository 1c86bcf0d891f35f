package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// Domain is the single enforcement domain for the platform back office.
const Domain = "platform"

const (
	ObjectShop     = "shop"
	ObjectAuditLog = "audit_log"
	ObjectInvoice  = "invoice"
)

const (
	ActionShopView       = "shop.view"
	ActionShopCreate     = "shop.create"
	ActionShopSuspend    = "shop.suspend"
	ActionShopReactivate = "shop.reactivate"
	ActionShopCancel     = "shop.cancel"
	ActionShopDelete     = "shop.delete"
	ActionPlanChange     = "plan.change"
	ActionTrialExtend    = "trial.extend"
	ActionBilling        = "billing"
	ActionBillingRefund  = "billing.refund"
	ActionAuditLogView   = "audit.view"
	ActionInvoiceView    = "invoice.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor, object, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, err := s.resolveActor(ctx, actor)
	if err != nil {
		return err
	}
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, Domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string) (string, string, error) {
	if actor == "system" {
		return actor, "role:super_admin", nil
	}
	if strings.HasPrefix(actor, "admin:") {
		adminIDRaw := strings.TrimPrefix(actor, "admin:")
		adminID, err := snowflake.ParseString(adminIDRaw)
		if err != nil || adminID == 0 {
			return "", "", ErrInvalidActor
		}
		role, err := s.roleForAdmin(ctx, adminID)
		if err != nil {
			return "", "", err
		}
		return actor, fmt.Sprintf("role:%s", strings.ToLower(role)), nil
	}
	return "", "", ErrInvalidActor
}

func (s *ServiceImpl) roleForAdmin(ctx context.Context, adminID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role FROM admin_users WHERE id = ? LIMIT 1`,
		adminID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", Domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, Domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, Domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{"role:super_admin", "*", "*"},

		{"role:support", ObjectShop, ActionShopView},
		{"role:support", ObjectShop, ActionShopSuspend},
		{"role:support", ObjectShop, ActionShopReactivate},
		{"role:support", ObjectShop, ActionTrialExtend},
		{"role:support", ObjectAuditLog, ActionAuditLogView},

		{"role:billing", ObjectShop, ActionShopView},
		{"role:billing", ObjectShop, ActionBilling},
		{"role:billing", ObjectShop, ActionPlanChange},
		{"role:billing", ObjectInvoice, ActionInvoiceView},
		{"role:billing", ObjectInvoice, ActionBillingRefund},
		{"role:billing", ObjectAuditLog, ActionAuditLogView},

		{"role:readonly", ObjectShop, ActionShopView},
		{"role:readonly", ObjectInvoice, ActionInvoiceView},
		{"role:readonly", ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
