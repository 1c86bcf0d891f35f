package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	auditdomain "github.com/fixology/fixology/internal/audit/domain"
	authdomain "github.com/fixology/fixology/internal/auth/domain"
	"github.com/fixology/fixology/internal/config"
	invoicedomain "github.com/fixology/fixology/internal/invoice/domain"
	"github.com/fixology/fixology/internal/seed"
	shopdomain "github.com/fixology/fixology/internal/shop/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Embedded migrations are written for postgres. Local sqlite and
			// mysql setups get the schema straight from the models.
			if err := conn.AutoMigrate(
				&shopdomain.Shop{},
				&shopdomain.CreditLedgerEntry{},
				&auditdomain.AdminAuditLog{},
				&authdomain.AdminUser{},
				&authdomain.AdminSession{},
				&invoicedomain.Invoice{},
				&invoicedomain.Payment{},
			); err != nil {
				return err
			}
		}

		if cfg.Bootstrap.EnsureDefaultAdmin && cfg.Bootstrap.DefaultAdminPassword != "" {
			return seed.EnsureDefaultAdmin(conn, cfg.Bootstrap)
		}
		return nil
	}),
)
