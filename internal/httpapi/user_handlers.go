package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gatehouse.dev/internal/audit"
	"gatehouse.dev/internal/auth"
)

type createUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	ProfileID *int64 `json:"profile_id"`
	Theme     string `json:"theme"`
	State     *int   `json:"state"`
}

type updateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Username  *string `json:"username"`
	Password  *string `json:"password"`
	ProfileID *int64  `json:"profile_id"`
	Theme     *string `json:"theme"`
	State     *int    `json:"state"`
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password"`
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (a *API) handleUserList(w http.ResponseWriter, r *http.Request) {
	users, err := a.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if users == nil {
		users = []*auth.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": users})
}

func (a *API) handleUserGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	user, err := a.users.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": user})
}

func (a *API) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := FieldErrors{}
	fields.checkLength("first_name", req.FirstName, true, 2, 64)
	fields.checkLength("last_name", req.LastName, true, 2, 64)
	fields.checkLength("username", req.Username, true, 3, 64)
	fields.checkLength("password", req.Password, true, 6, 128)
	fields.checkLength("theme", req.Theme, false, 0, 32)
	if !fields.Empty() {
		writeFieldErrors(w, fields)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password hashing failed")
		return
	}

	user := &auth.User{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		ProfileID: 1,
		Theme:     "dark",
		State:     auth.UserStateActive,
	}
	if req.ProfileID != nil {
		user.ProfileID = *req.ProfileID
	}
	if req.Theme != "" {
		user.Theme = req.Theme
	}
	if req.State != nil {
		user.State = *req.State
	}

	id, err := a.users.Create(r.Context(), user, hash)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateUsername) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":   true,
				"message": "username already exists",
				"field":   "username",
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "users.create", map[string]any{"id": id, "username": user.Username})
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (a *API) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := FieldErrors{}
	if req.FirstName != nil {
		fields.checkLength("first_name", *req.FirstName, true, 2, 64)
	}
	if req.LastName != nil {
		fields.checkLength("last_name", *req.LastName, true, 2, 64)
	}
	if req.Username != nil {
		fields.checkLength("username", *req.Username, true, 3, 64)
	}
	if req.Password != nil {
		fields.checkLength("password", *req.Password, true, 6, 128)
	}
	if req.Theme != nil {
		fields.checkLength("theme", *req.Theme, false, 0, 32)
	}
	if !fields.Empty() {
		writeFieldErrors(w, fields)
		return
	}

	upd := auth.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Theme:     req.Theme,
		ProfileID: req.ProfileID,
		State:     req.State,
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "password hashing failed")
			return
		}
		upd.PasswordHash = &hash
	}

	var oldState int
	if req.State != nil {
		if old, err := a.users.Find(r.Context(), id); err == nil {
			oldState = old.State
		} else {
			oldState = auth.UserStateActive
		}
	}

	count, err := a.users.Update(r.Context(), id, upd)
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateUsername) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":   true,
				"message": "username already exists",
				"field":   "username",
			})
			return
		}
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	// Deactivation forces re-authentication everywhere.
	if count > 0 && req.State != nil && oldState == auth.UserStateActive && *req.State == auth.UserStateBlocked {
		if _, err := a.sessions.RevokeAllForUser(r.Context(), id); err == nil {
			_ = audit.LogEvent(r.Context(), "users.deactivate", map[string]any{"id": id})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": count})
}

func (a *API) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	count, err := a.users.Delete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	if count > 0 {
		_ = audit.LogEvent(r.Context(), "users.delete", map[string]any{"id": id})
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": count})
}

func (a *API) handleUserPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "new_password required")
		return
	}
	fields := FieldErrors{}
	fields.checkLength("new_password", req.NewPassword, true, 6, 128)
	if !fields.Empty() {
		writeFieldErrors(w, fields)
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password hashing failed")
		return
	}
	count, err := a.users.Update(r.Context(), id, auth.UserUpdate{PasswordHash: &hash})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	// A changed password invalidates every outstanding session.
	if count > 0 {
		if _, err := a.sessions.RevokeAllForUser(r.Context(), id); err == nil {
			_ = audit.LogEvent(r.Context(), "users.password_change", map[string]any{"id": id})
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"updated": count})
}
