package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	shopdomain "github.com/fixology/fixology/internal/shop/domain"
	"github.com/fixology/fixology/pkg/db/pagination"
)

const shopColumns = `id, slug, name, plan, status, trial_ends_at, credit_balance_cents,
	 suspended_at, suspended_reason, is_test_shop, version, features, created_at, updated_at`

type repo struct{}

func Provide() shopdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, shop *shopdomain.Shop) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO shops (
			id, slug, name, plan, status, trial_ends_at, credit_balance_cents,
			suspended_at, suspended_reason, is_test_shop, version, features,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shop.ID,
		shop.Slug,
		shop.Name,
		shop.Plan,
		shop.Status,
		shop.TrialEndsAt,
		shop.CreditBalanceCents,
		shop.SuspendedAt,
		shop.SuspendedReason,
		shop.IsTestShop,
		shop.Version,
		shop.Features,
		shop.CreatedAt,
		shop.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*shopdomain.Shop, error) {
	var shop shopdomain.Shop
	err := db.WithContext(ctx).Raw(
		`SELECT `+shopColumns+` FROM shops WHERE id = ?`,
		id,
	).Scan(&shop).Error
	if err != nil {
		return nil, err
	}
	if shop.ID == 0 {
		return nil, nil
	}
	return &shop, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*shopdomain.Shop, error) {
	var shop shopdomain.Shop
	err := db.WithContext(ctx).Raw(
		`SELECT `+shopColumns+` FROM shops WHERE id = ? FOR UPDATE`,
		id,
	).Scan(&shop).Error
	if err != nil {
		return nil, err
	}
	if shop.ID == 0 {
		return nil, nil
	}
	return &shop, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*shopdomain.Shop, error) {
	var shop shopdomain.Shop
	err := db.WithContext(ctx).Raw(
		`SELECT `+shopColumns+` FROM shops WHERE slug = ?`,
		strings.TrimSpace(slug),
	).Scan(&shop).Error
	if err != nil {
		return nil, err
	}
	if shop.ID == 0 {
		return nil, nil
	}
	return &shop, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, q shopdomain.ListShopsQuery) ([]*shopdomain.Shop, error) {
	var shops []*shopdomain.Shop
	stmt := db.WithContext(ctx).Model(&shopdomain.Shop{})

	if q.Status != "" {
		stmt = stmt.Where("status = ?", q.Status)
	}
	if q.Plan != "" {
		stmt = stmt.Where("plan = ?", q.Plan)
	}
	if q.PageToken != "" {
		cursor, err := pagination.DecodeCursor(q.PageToken)
		if err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, err
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			createdAt, createdAt, id)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if q.PageSize > 0 {
		stmt = stmt.Limit(int(q.PageSize) + 1)
	}

	if err := stmt.Find(&shops).Error; err != nil {
		return nil, err
	}
	return shops, nil
}

// Update persists a mutated snapshot guarded by the version the caller read.
// Zero rows affected means a concurrent writer got there first.
func (r *repo) Update(ctx context.Context, db *gorm.DB, shop *shopdomain.Shop) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE shops SET
			slug = ?, name = ?, plan = ?, status = ?, trial_ends_at = ?,
			credit_balance_cents = ?, suspended_at = ?, suspended_reason = ?,
			is_test_shop = ?, version = version + 1, features = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		shop.Slug,
		shop.Name,
		shop.Plan,
		shop.Status,
		shop.TrialEndsAt,
		shop.CreditBalanceCents,
		shop.SuspendedAt,
		shop.SuspendedReason,
		shop.IsTestShop,
		shop.Features,
		shop.UpdatedAt,
		shop.ID,
		shop.Version,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shopdomain.ErrConcurrencyConflict
	}
	shop.Version++
	return nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM shops WHERE id = ?`, id).Error
}

func (r *repo) InsertLedgerEntry(ctx context.Context, db *gorm.DB, entry *shopdomain.CreditLedgerEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_ledger_entries (
			id, shop_id, delta_cents, previous_balance_cents, new_balance_cents,
			reason, actor_admin_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ShopID,
		entry.DeltaCents,
		entry.PreviousBalanceCents,
		entry.NewBalanceCents,
		entry.Reason,
		entry.ActorAdminID,
		entry.CreatedAt,
	).Error
}

func (r *repo) ListLedgerEntries(ctx context.Context, db *gorm.DB, shopID snowflake.ID, limit int) ([]*shopdomain.CreditLedgerEntry, error) {
	var entries []*shopdomain.CreditLedgerEntry
	stmt := db.WithContext(ctx).Model(&shopdomain.CreditLedgerEntry{}).
		Where("shop_id = ?", shopID).
		Order("created_at desc, id desc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
