package domain

import "context"

type contextKey string

const (
	accessTokenKey contextKey = "accessToken"
	callerKey      contextKey = "caller"
)

// WithAccessToken attaches the caller's bearer token so that user-scoped store
// calls run under the caller's row-level security policies.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey, token)
}

// AccessTokenFromContext returns the bearer token attached by WithAccessToken.
func AccessTokenFromContext(ctx context.Context) string {
	v, _ := ctx.Value(accessTokenKey).(string)
	return v
}

// WithCaller attaches the authenticated caller to ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext extracts the authenticated caller. ok is false for anonymous requests.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}
