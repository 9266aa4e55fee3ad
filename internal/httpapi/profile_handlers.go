package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"gatehouse.dev/internal/audit"
	"gatehouse.dev/internal/auth"
)

type createProfileRequest struct {
	Name        string `json:"name"`
	Permissions string `json:"permissions"`
}

type updateProfileRequest struct {
	Name        *string `json:"name"`
	Permissions *string `json:"permissions"`
}

type profileResponse struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Permissions map[string]int `json:"permissions"`
}

func profileView(p *auth.Profile) profileResponse {
	perms, err := auth.DecodePermissions(p.Permissions)
	if err != nil {
		perms = nil
	}
	return profileResponse{ID: p.ID, Name: p.Name, Permissions: perms}
}

func validPermissionJSON(raw string) bool {
	if _, err := auth.DecodePermissions(raw); err != nil {
		return false
	}
	return true
}

func (a *API) handleProfileList(w http.ResponseWriter, r *http.Request) {
	profiles, err := a.profiles.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	out := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, profileView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (a *API) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	profile, err := a.profiles.Find(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": profileView(profile)})
}

func (a *API) handleProfileCreate(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := FieldErrors{}
	fields.checkLength("name", req.Name, true, 2, 64)
	if req.Permissions == "" {
		req.Permissions = "{}"
	} else if !validPermissionJSON(req.Permissions) {
		fields["permissions"] = append(fields["permissions"], "invalid")
	}
	if !fields.Empty() {
		writeFieldErrors(w, fields)
		return
	}

	// Store permissions canonically encoded so reads never need the
	// double-decoding fallback.
	perms, _ := auth.DecodePermissions(req.Permissions)
	encoded, err := json.Marshal(perms)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode failed")
		return
	}

	id, err := a.profiles.Create(r.Context(), req.Name, string(encoded))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "profiles.create", map[string]any{"id": id, "name": req.Name})
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (a *API) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := FieldErrors{}
	if req.Name != nil {
		fields.checkLength("name", *req.Name, true, 2, 64)
	}
	upd := auth.ProfileUpdate{Name: req.Name}
	if req.Permissions != nil {
		if !validPermissionJSON(*req.Permissions) {
			fields["permissions"] = append(fields["permissions"], "invalid")
		} else {
			perms, _ := auth.DecodePermissions(*req.Permissions)
			encoded, err := json.Marshal(perms)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "encode failed")
				return
			}
			s := string(encoded)
			upd.Permissions = &s
		}
	}
	if !fields.Empty() {
		writeFieldErrors(w, fields)
		return
	}

	count, err := a.profiles.Update(r.Context(), id, upd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "update failed")
		return
	}

	// Drop the cached permission map before responding so the next
	// authorization check sees the new permissions, not a stale entry.
	a.cache.ClearProfile(r.Context(), id)

	if count > 0 {
		_ = audit.LogEvent(r.Context(), "profiles.update", map[string]any{"id": id})
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": count})
}

func (a *API) handleProfileDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	count, err := a.profiles.Delete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	a.cache.ClearProfile(r.Context(), id)

	if count > 0 {
		_ = audit.LogEvent(r.Context(), "profiles.delete", map[string]any{"id": id})
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": count})
}
