package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatehouse.dev/internal/auth"
	"gatehouse.dev/internal/obs"
)

// Deps carries the collaborators the HTTP layer is constructed with. Every
// handle is injected; the package keeps no global state.
type Deps struct {
	Auth     *auth.Authenticator
	Users    auth.UserStore
	Profiles auth.ProfileStore
	Sessions *auth.SessionStore
	Cache    PermissionCache
	DB       *sql.DB

	// ExemptPaths extends the access gate's exemption list.
	ExemptPaths []string
	// LoginBurst/LoginPerSecond tune the login rate limit; zero selects the
	// defaults.
	LoginBurst     int
	LoginPerSecond int
}

// API is the HTTP layer: routing, middleware chain, and handlers.
type API struct {
	router   chi.Router
	auth     *auth.Authenticator
	users    auth.UserStore
	profiles auth.ProfileStore
	sessions *auth.SessionStore
	cache    PermissionCache
	db       *sql.DB
}

// New wires the router. The same route set is served at the root and under
// the /api group prefix, matching the clients this service fronts.
func New(deps Deps) *API {
	a := &API{
		router:   chi.NewRouter(),
		auth:     deps.Auth,
		users:    deps.Users,
		profiles: deps.Profiles,
		sessions: deps.Sessions,
		cache:    deps.Cache,
		db:       deps.DB,
	}

	burst, perSecond := deps.LoginBurst, deps.LoginPerSecond
	if burst <= 0 {
		burst = 10
	}
	if perSecond <= 0 {
		perSecond = 5
	}

	gate := NewAccessGate(deps.Auth, deps.Users, deps.Profiles, deps.Cache, deps.ExemptPaths)

	a.router.Use(RequestID)
	a.router.Use(Logging)
	a.router.Use(SecurityHeaders)
	a.router.Use(CORS)
	a.router.Use(func(next http.Handler) http.Handler {
		return MaxBodyBytes(next, maxBodyBytes)
	})

	a.router.Get("/healthz", a.handleHealthz)
	a.router.Get("/readyz", a.handleReadyz)
	a.router.Method(http.MethodGet, "/metrics", obs.Handler())

	login := RateLimit(http.HandlerFunc(a.handleLogin), burst, perSecond)

	mount := func(r chi.Router) {
		r.Use(gate.Middleware)
		r.Method(http.MethodPost, "/login", login)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/logout", a.handleLogout)
		r.Get("/me", a.handleMe)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", a.handleUserList)
			r.Post("/", a.handleUserCreate)
			r.Get("/{id}", a.handleUserGet)
			r.Put("/{id}", a.handleUserUpdate)
			r.Delete("/{id}", a.handleUserDelete)
			r.Post("/{id}/password", a.handleUserPassword)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", a.handleProfileList)
			r.Post("/", a.handleProfileCreate)
			r.Get("/{id}", a.handleProfileGet)
			r.Put("/{id}", a.handleProfileUpdate)
			r.Delete("/{id}", a.handleProfileDelete)
		})
	}

	a.router.Group(mount)
	a.router.Route("/api", mount)

	return a
}

// Handler returns the root handler, wrapped with metrics instrumentation.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gatehouse-api",
	})
}

func (a *API) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := a.ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) ready(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.PingContext(ctx)
}
