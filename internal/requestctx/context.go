package requestctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type actorIDKey struct{}
type actorRoleKey struct{}
type clientIPKey struct{}
type userAgentKey struct{}
type requestIDKey struct{}

// WithActor stores the authenticated admin identity in the context.
func WithActor(ctx context.Context, adminID snowflake.ID, role string) context.Context {
	ctx = context.WithValue(ctx, actorIDKey{}, adminID)
	return context.WithValue(ctx, actorRoleKey{}, strings.ToUpper(strings.TrimSpace(role)))
}

// ActorID returns the acting admin ID from context, if set.
func ActorID(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(actorIDKey{}).(type) {
	case snowflake.ID:
		return typed, true
	case int64:
		return snowflake.ID(typed), true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// ActorRole returns the acting admin role from context, if set.
func ActorRole(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	role, _ := ctx.Value(actorRoleKey{}).(string)
	return role
}

// WithClientIP stores the caller IP in the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, strings.TrimSpace(ip))
}

// ClientIP returns the caller IP from context, if set.
func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// WithUserAgent stores the caller user agent in the context.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey{}, strings.TrimSpace(ua))
}

// UserAgent returns the caller user agent from context, if set.
func UserAgent(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ua, _ := ctx.Value(userAgentKey{}).(string)
	return ua
}

// WithRequestID stores the request correlation ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(id))
}

// RequestID returns the request correlation ID from context, if set.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
