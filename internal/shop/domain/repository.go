package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListShopsQuery struct {
	Status    Status
	Plan      Plan
	PageToken string
	PageSize  int32
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, shop *Shop) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Shop, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Shop, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Shop, error)
	List(ctx context.Context, db *gorm.DB, q ListShopsQuery) ([]*Shop, error)
	Update(ctx context.Context, db *gorm.DB, shop *Shop) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	InsertLedgerEntry(ctx context.Context, db *gorm.DB, entry *CreditLedgerEntry) error
	ListLedgerEntries(ctx context.Context, db *gorm.DB, shopID snowflake.ID, limit int) ([]*CreditLedgerEntry, error)
}
