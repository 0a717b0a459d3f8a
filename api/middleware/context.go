package middleware

import "context"

type (
	sessionCtxKey   struct{}
	principalCtxKey struct{}
)

// principal is the authenticated caller bound by Authenticate.
type principal struct {
	userID string
	role   string
}

func withValue(ctx context.Context, key, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func valueOf[T any](ctx context.Context, key any) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithSessionKey binds the storefront session resolved for the request.
func WithSessionKey(ctx context.Context, sessionKey string) context.Context {
	return withValue(ctx, sessionCtxKey{}, sessionKey)
}

func SessionKeyFromContext(ctx context.Context) string {
	key, _ := valueOf[string](ctx, sessionCtxKey{})
	return key
}

// WithUser marks the request as authenticated for userID.
func WithUser(ctx context.Context, userID, role string) context.Context {
	return withValue(ctx, principalCtxKey{}, principal{userID: userID, role: role})
}

func UserIDFromContext(ctx context.Context) string {
	p, _ := valueOf[principal](ctx, principalCtxKey{})
	return p.userID
}

func RoleFromContext(ctx context.Context) string {
	p, _ := valueOf[principal](ctx, principalCtxKey{})
	return p.role
}

func IsAuthenticated(ctx context.Context) bool {
	_, ok := valueOf[principal](ctx, principalCtxKey{})
	return ok
}
