// Package server wires the HTTP surface: gin engine, middleware, route
// registration and the error contract shared by every handler.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/fixology/fixology/internal/audit/domain"
	authdomain "github.com/fixology/fixology/internal/auth/domain"
	"github.com/fixology/fixology/internal/authorization"
	"github.com/fixology/fixology/internal/clock"
	"github.com/fixology/fixology/internal/config"
	invoicedomain "github.com/fixology/fixology/internal/invoice/domain"
	"github.com/fixology/fixology/internal/observability"
	"github.com/fixology/fixology/internal/ratelimit"
	shopdomain "github.com/fixology/fixology/internal/shop/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(observability.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	authsvc    authdomain.Service
	authzSvc   authorization.Service
	shopSvc    shopdomain.Service
	invoiceSvc invoicedomain.Service
	auditSvc   auditdomain.Service
	clock      clock.Clock
	limiter    *ratelimit.AdminCommandLimiter
	metrics    *observability.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Authsvc    authdomain.Service
	AuthzSvc   authorization.Service
	ShopSvc    shopdomain.Service
	InvoiceSvc invoicedomain.Service
	AuditSvc   auditdomain.Service
	Clock      clock.Clock
	Limiter    *ratelimit.AdminCommandLimiter `optional:"true"`
	Metrics    *observability.Metrics         `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		authsvc:    p.Authsvc,
		authzSvc:   p.AuthzSvc,
		shopSvc:    p.ShopSvc,
		invoiceSvc: p.InvoiceSvc,
		auditSvc:   p.AuditSvc,
		clock:      p.Clock,
		limiter:    p.Limiter,
		metrics:    p.Metrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func registerRoutes(s *Server) {
	s.RegisterAuthRoutes()
	s.RegisterAdminRoutes()
}

func (s *Server) RegisterAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.POST("/logout", s.AdminAuthRequired(), s.Logout)
	auth.GET("/me", s.AdminAuthRequired(), s.Me)
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminAuthRequired())

	// -------- Shops --------
	admin.GET("/shops", s.RequireAction(authorization.ObjectShop, authorization.ActionShopView), s.ListShops)
	admin.POST("/shops", s.RequireAction(authorization.ObjectShop, authorization.ActionShopCreate), s.CommandRateLimit("shop.create"), s.CreateShop)
	admin.GET("/shops/:id", s.RequireAction(authorization.ObjectShop, authorization.ActionShopView), s.GetShop)
	admin.DELETE("/shops/:id", s.RequireAction(authorization.ObjectShop, authorization.ActionShopDelete), s.CommandRateLimit("shop.delete"), s.DeleteTestShop)
	admin.GET("/shops/:id/entitlements", s.RequireAction(authorization.ObjectShop, authorization.ActionShopView), s.GetShopEntitlements)
	admin.POST("/shops/:id/suspend", s.RequireAction(authorization.ObjectShop, authorization.ActionShopSuspend), s.CommandRateLimit("shop.suspend"), s.SuspendShop)
	admin.POST("/shops/:id/reactivate", s.RequireAction(authorization.ObjectShop, authorization.ActionShopReactivate), s.CommandRateLimit("shop.reactivate"), s.ReactivateShop)
	admin.POST("/shops/:id/cancel", s.RequireAction(authorization.ObjectShop, authorization.ActionShopCancel), s.CommandRateLimit("shop.cancel"), s.CancelShopSubscription)
	admin.POST("/shops/:id/plan", s.RequireAction(authorization.ObjectShop, authorization.ActionPlanChange), s.CommandRateLimit("shop.change_plan"), s.ChangeShopPlan)
	admin.POST("/shops/:id/trial-extension", s.RequireAction(authorization.ObjectShop, authorization.ActionTrialExtend), s.CommandRateLimit("shop.extend_trial"), s.ExtendShopTrial)
	admin.POST("/shops/:id/credits", s.RequireAction(authorization.ObjectShop, authorization.ActionBilling), s.CommandRateLimit("shop.apply_credit"), s.ApplyShopCredit)
	admin.GET("/shops/:id/credit-ledger", s.RequireAction(authorization.ObjectShop, authorization.ActionShopView), s.ListShopCreditLedger)

	// -------- Invoices --------
	admin.GET("/invoices", s.RequireAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoices)
	admin.GET("/invoices/:id", s.RequireAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoice)
	admin.GET("/invoices/:id/payments", s.RequireAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoicePayments)
	admin.POST("/invoices/:id/refunds", s.RequireAction(authorization.ObjectInvoice, authorization.ActionBillingRefund), s.CommandRateLimit("invoice.refund"), s.RefundInvoice)

	// -------- Audit --------
	admin.GET("/audit-logs", s.RequireAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func run(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
