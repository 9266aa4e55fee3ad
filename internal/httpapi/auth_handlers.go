package httpapi

import (
	"errors"
	"net/http"
	"time"

	"gatehouse.dev/internal/audit"
	"gatehouse.dev/internal/auth"
	"gatehouse.dev/internal/obs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := FieldErrors{}
	fields.checkLength("username", req.Username, true, 3, 64)
	fields.checkLength("password", req.Password, true, 6, 128)
	if !fields.Empty() {
		writeFieldErrors(w, fields)
		return
	}

	// Blocked accounts are reported distinctly; every other failure is the
	// same generic 401 so the response does not reveal which factor failed.
	if blocked, err := a.auth.IsUserBlocked(r.Context(), req.Username); err == nil && blocked {
		obs.CountLogin("blocked")
		writeError(w, http.StatusForbidden, "user blocked")
		return
	}

	token, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		obs.CountLogin("invalid")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	user, err := a.users.FindByUsername(r.Context(), req.Username)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	refresh, err := auth.NewRefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	if _, err := a.sessions.Create(r.Context(), user.ID, refresh, auth.DefaultSessionTTL); err != nil {
		writeError(w, http.StatusInternalServerError, "session creation failed")
		return
	}

	obs.CountLogin("ok")
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"user_id": user.ID, "username": user.Username})

	writeJSON(w, http.StatusOK, tokenPairResponse{Token: token, RefreshToken: refresh})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing refresh_token")
		return
	}

	session, err := a.sessions.FindByToken(r.Context(), req.RefreshToken)
	if err != nil || session.Revoked {
		obs.CountRefresh("invalid")
		writeError(w, http.StatusUnauthorized, "invalid refresh_token")
		return
	}
	if session.Expired(time.Now()) {
		obs.CountRefresh("invalid")
		writeError(w, http.StatusUnauthorized, "refresh_token expired")
		return
	}

	user, err := a.users.Find(r.Context(), session.UserID)
	if err != nil {
		obs.CountRefresh("invalid")
		writeError(w, http.StatusUnauthorized, "invalid session user")
		return
	}

	// Rotation is the replay mitigation: the stored hash is replaced, so the
	// presented token stops working. Zero rows affected means a concurrent
	// refresh already rotated this session; exactly one caller wins.
	newRefresh, err := auth.NewRefreshToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	affected, err := a.sessions.Rotate(r.Context(), session.ID, newRefresh, auth.DefaultSessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session rotation failed")
		return
	}
	if affected == 0 {
		obs.CountRefresh("invalid")
		writeError(w, http.StatusUnauthorized, "invalid refresh_token")
		return
	}

	token, err := a.auth.IssueToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}

	obs.CountRefresh("ok")
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{"user_id": user.ID, "session_id": session.ID})

	writeJSON(w, http.StatusOK, tokenPairResponse{Token: token, RefreshToken: newRefresh})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing refresh_token")
		return
	}

	// Revocation is idempotent and deliberately silent about whether the
	// token existed.
	if _, err := a.sessions.Revoke(r.Context(), req.RefreshToken); err == nil {
		_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleMe is gate-exempt and verifies its own bearer header, so a client can
// always resolve its identity without a resource permission.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	claims, err := a.auth.VerifyToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	userID, ok := auth.SubjectID(claims)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	user, err := a.users.FindWithProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":          user,
		"token_payload": claims,
	})
}
