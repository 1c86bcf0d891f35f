package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	auditdomain "github.com/fixology/fixology/internal/audit/domain"
	authdomain "github.com/fixology/fixology/internal/auth/domain"
	"github.com/fixology/fixology/internal/clock"
	"github.com/fixology/fixology/internal/requestctx"
)

const sessionTTL = 12 * time.Hour

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Audit auditdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	audit auditdomain.Service
}

func NewService(p Params) authdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("auth.service"),
		genID: p.GenID,
		clock: p.Clock,
		audit: p.Audit,
	}
}

func (s *Service) Login(ctx context.Context, req authdomain.LoginRequest) (authdomain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return authdomain.LoginResponse{}, authdomain.ErrInvalidCredentials
	}

	var admin authdomain.AdminUser
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, email, name, role, password_hash, created_at, updated_at
		 FROM admin_users WHERE email = ?`,
		email,
	).Scan(&admin).Error
	if err != nil {
		return authdomain.LoginResponse{}, err
	}
	if admin.ID == 0 {
		return authdomain.LoginResponse{}, authdomain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return authdomain.LoginResponse{}, authdomain.ErrInvalidCredentials
	}

	secret, err := newSecret()
	if err != nil {
		return authdomain.LoginResponse{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return authdomain.LoginResponse{}, err
	}

	now := s.clock.Now()
	session := authdomain.AdminSession{
		ID:        s.genID.Generate(),
		AdminID:   admin.ID,
		TokenHash: string(hash),
		ExpiresAt: now.Add(sessionTTL),
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Exec(
		`INSERT INTO admin_sessions (id, admin_id, token_hash, expires_at, revoked_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.AdminID, session.TokenHash, session.ExpiresAt, nil, session.CreatedAt,
	).Error; err != nil {
		return authdomain.LoginResponse{}, err
	}

	// Sign-in visibility is best effort; a failed audit write must not block
	// the login itself.
	actorCtx := requestctx.WithActor(ctx, admin.ID, string(admin.Role))
	s.audit.RecordBestEffort(actorCtx, auditdomain.Entry{
		Action:      "auth.login",
		TargetType:  "admin_user",
		TargetID:    admin.ID.String(),
		Description: "administrator signed in",
		Metadata:    map[string]any{"email": admin.Email},
	})

	admin.PasswordHash = ""
	return authdomain.LoginResponse{
		Token: session.ID.String() + "." + secret,
		Admin: &admin,
	}, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	session, admin, err := s.lookupSession(ctx, token)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := s.db.WithContext(ctx).Exec(
		`UPDATE admin_sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		now, session.ID,
	).Error; err != nil {
		return err
	}

	actorCtx := requestctx.WithActor(ctx, admin.ID, string(admin.Role))
	s.audit.RecordBestEffort(actorCtx, auditdomain.Entry{
		Action:      "auth.logout",
		TargetType:  "admin_user",
		TargetID:    admin.ID.String(),
		Description: "administrator signed out",
	})
	return nil
}

func (s *Service) Authenticate(ctx context.Context, token string) (*authdomain.AdminUser, error) {
	_, admin, err := s.lookupSession(ctx, token)
	if err != nil {
		return nil, err
	}
	admin.PasswordHash = ""
	return admin, nil
}

func (s *Service) lookupSession(ctx context.Context, token string) (*authdomain.AdminSession, *authdomain.AdminUser, error) {
	sessionID, secret, ok := splitToken(token)
	if !ok {
		return nil, nil, authdomain.ErrInvalidToken
	}

	var session authdomain.AdminSession
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, admin_id, token_hash, expires_at, revoked_at, created_at
		 FROM admin_sessions WHERE id = ?`,
		sessionID,
	).Scan(&session).Error
	if err != nil {
		return nil, nil, err
	}
	if session.ID == 0 {
		return nil, nil, authdomain.ErrInvalidToken
	}
	if session.RevokedAt != nil || !session.ExpiresAt.After(s.clock.Now()) {
		return nil, nil, authdomain.ErrSessionExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(session.TokenHash), []byte(secret)); err != nil {
		return nil, nil, authdomain.ErrInvalidToken
	}

	var admin authdomain.AdminUser
	err = s.db.WithContext(ctx).Raw(
		`SELECT id, email, name, role, password_hash, created_at, updated_at
		 FROM admin_users WHERE id = ?`,
		session.AdminID,
	).Scan(&admin).Error
	if err != nil {
		return nil, nil, err
	}
	if admin.ID == 0 {
		return nil, nil, authdomain.ErrInvalidToken
	}
	return &session, &admin, nil
}

func splitToken(token string) (snowflake.ID, string, bool) {
	parts := strings.SplitN(strings.TrimSpace(token), ".", 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", false
	}
	id, err := snowflake.ParseString(parts[0])
	if err != nil || id == 0 {
		return 0, "", false
	}
	return id, parts[1], true
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
