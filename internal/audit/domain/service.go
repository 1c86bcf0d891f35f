package domain

import (
	"context"
	"errors"
	"time"

	"github.com/fixology/fixology/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry is the caller-supplied part of an audit record. Actor identity, IP
// address and user agent are resolved from the request context.
type Entry struct {
	Action      string
	TargetType  string
	TargetID    string
	Description string
	Metadata    map[string]any
}

type ListAuditLogRequest struct {
	Action       string
	TargetType   string
	TargetID     string
	ActorAdminID string
	StartAt      *time.Time
	EndAt        *time.Time
	PageToken    string
	PageSize     int32
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AdminAuditLog `json:"audit_logs"`
}

// Service records administrative actions. Record participates in the caller's
// transaction so a failed audit write rolls back the state change it
// describes. RecordBestEffort logs and swallows failures; it is for actions
// like sign-in where losing the trail must not abort the action itself.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	RecordBestEffort(ctx context.Context, entry Entry)
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AdminAuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AdminAuditLog, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidActor     = errors.New("invalid_actor")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)
