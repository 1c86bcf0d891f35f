// Package seed bootstraps the minimum data a fresh deployment needs to be
// usable: one super admin account to log in with.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	authdomain "github.com/fixology/fixology/internal/auth/domain"
	"github.com/fixology/fixology/internal/config"
)

const defaultAdminName = "Fixology Admin"

// EnsureDefaultAdmin creates the bootstrap super admin when no account with
// the configured email exists. It is safe to run on every startup.
func EnsureDefaultAdmin(db *gorm.DB, cfg config.BootstrapConfig) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if cfg.DefaultAdminEmail == "" || cfg.DefaultAdminPassword == "" {
		return errors.New("bootstrap admin email and password are required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(cfg.DefaultAdminEmail))
	ctx := context.Background()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var admin authdomain.AdminUser
		err := tx.WithContext(ctx).Where("email = ?", email).First(&admin).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.DefaultAdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		admin = authdomain.AdminUser{
			ID:           node.Generate(),
			Email:        email,
			Name:         defaultAdminName,
			Role:         authdomain.RoleSuperAdmin,
			PasswordHash: string(hashed),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		return tx.WithContext(ctx).Create(&admin).Error
	})
}
