package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gatehouse.dev/internal/auth"
	"gatehouse.dev/internal/cache"
	"gatehouse.dev/internal/obs"
)

const bearerPrefix = "bearer "

// defaultExempt lists the paths that never require a token. The session
// endpoints stay exempt regardless of any caller-supplied list: login and
// logout have nothing to verify, refresh authenticates via the presented
// refresh token (an expired access token must not block it), and the whoami
// handler verifies its own bearer header.
var defaultExempt = []string{"/login", "/refresh", "/logout", "/me", "/healthz", "/readyz", "/metrics"}

// PermissionCache is the slice of the cache the gate needs.
type PermissionCache interface {
	Get(ctx context.Context, key string) (map[string]int, bool)
	Set(ctx context.Context, key string, value map[string]int) bool
	ClearProfile(ctx context.Context, profileID int64) bool
}

// AccessGate authenticates and authorizes every request before it reaches a
// handler: bearer token verification, account resolution, permission lookup
// through the cache, and policy evaluation against the requested resource.
type AccessGate struct {
	auth     *auth.Authenticator
	users    auth.UserStore
	profiles auth.ProfileStore
	cache    PermissionCache
	exempt   []string
}

// NewAccessGate constructs the gate. exempt extends the default exemption
// list; entries match the request path exactly, with or without the leading
// slash.
func NewAccessGate(a *auth.Authenticator, users auth.UserStore, profiles auth.ProfileStore, pc PermissionCache, exempt []string) *AccessGate {
	return &AccessGate{
		auth:     a,
		users:    users,
		profiles: profiles,
		cache:    pc,
		exempt:   append(append([]string{}, defaultExempt...), exempt...),
	}
}

// Middleware runs the per-request state machine. Terminal states are pass
// (handler invoked with user and claims attached) and deny (401/403 with a
// JSON error body).
func (g *AccessGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trimmed := strings.Trim(r.URL.Path, "/")

		if g.isExempt(r.URL.Path, trimmed) {
			next.ServeHTTP(w, r)
			return
		}
		switch trimmed {
		case "login", "refresh", "logout", "me",
			"api/login", "api/refresh", "api/logout", "api/me":
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}

		claims, err := g.auth.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		userID, ok := auth.SubjectID(claims)
		if !ok {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, err := g.users.Find(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}

		perms := g.loadPermissions(r.Context(), user.ProfileID)

		resolved := &auth.UserWithProfile{User: *user, Permissions: perms}
		ctx := auth.ContextWithUser(r.Context(), resolved)
		ctx = auth.ContextWithClaims(ctx, claims)
		r = r.WithContext(ctx)

		set := auth.NewPermissionSet(perms)
		if set.Admin {
			next.ServeHTTP(w, r)
			return
		}

		resource := resourceFromPath(trimmed)
		tier, granted := set.TierFor(resource)
		if !granted {
			writeError(w, http.StatusForbidden, "forbidden: no permission")
			return
		}
		if tier == auth.TierReadOnly && r.Method != http.MethodGet {
			writeError(w, http.StatusForbidden, "forbidden: read-only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (g *AccessGate) isExempt(path, trimmed string) bool {
	for _, e := range g.exempt {
		if e == path || e == "/"+trimmed {
			return true
		}
	}
	return false
}

// loadPermissions resolves the profile's permission map through the cache,
// falling back to the store on a miss. A storage failure degrades to nil:
// permission unknown means deny, never grant. Successful lookups are cached
// even when the profile defines no permissions.
func (g *AccessGate) loadPermissions(ctx context.Context, profileID int64) map[string]int {
	if profileID == 0 {
		return nil
	}
	key := cache.ProfileKey(profileID)
	if perms, ok := g.cache.Get(ctx, key); ok {
		obs.CountCacheLookup("hit")
		return perms
	}
	obs.CountCacheLookup("miss")

	raw, err := g.profiles.PermissionsFor(ctx, profileID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			g.cache.Set(ctx, key, nil)
		}
		return nil
	}
	perms, err := auth.DecodePermissions(raw)
	if err != nil {
		perms = nil
	}
	g.cache.Set(ctx, key, perms)
	return perms
}

// bearerToken extracts the token from the Authorization header. The "Bearer"
// prefix is optional and matched case-insensitively.
func bearerToken(r *http.Request) string {
	hdr := strings.TrimSpace(r.Header.Get("Authorization"))
	if hdr == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(hdr), bearerPrefix) {
		return strings.TrimSpace(hdr[len(bearerPrefix):])
	}
	return hdr
}

// resourceFromPath derives the logical resource from the request path: the
// first segment, or the second when the request is under the api group.
func resourceFromPath(trimmed string) string {
	segments := strings.Split(trimmed, "/")
	if segments[0] == "api" {
		if len(segments) > 1 {
			return segments[1]
		}
		return ""
	}
	return segments[0]
}
