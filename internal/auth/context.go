package auth

import "context"

type userContextKey struct{}
type claimsContextKey struct{}

// ContextWithUser attaches the resolved account (with decoded permissions)
// to the context for downstream handlers.
func ContextWithUser(ctx context.Context, user *UserWithProfile) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the resolved account from the context.
func UserFromContext(ctx context.Context) (*UserWithProfile, bool) {
	if ctx == nil {
		return nil, false
	}
	u, ok := ctx.Value(userContextKey{}).(*UserWithProfile)
	if !ok || u == nil {
		return nil, false
	}
	return u, true
}

// UserIDFromContext returns just the authenticated account id.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	u, ok := UserFromContext(ctx)
	if !ok {
		return 0, false
	}
	return u.ID, true
}

// ContextWithClaims stores the verified token claims in the context.
func ContextWithClaims(ctx context.Context, claims map[string]any) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the verified token claims if present.
func ClaimsFromContext(ctx context.Context) (map[string]any, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(claimsContextKey{}).(map[string]any)
	if !ok || c == nil {
		return nil, false
	}
	return c, true
}
