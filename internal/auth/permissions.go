package auth

import (
	"encoding/json"
	"strings"
)

// Tier is the access level a profile grants on one resource.
type Tier int

const (
	TierNoAccess Tier = iota
	TierReadOnly
	TierReadWrite
)

// adminKey grants a full bypass when truthy in a permission map.
const adminKey = "admin"

// PermissionSet is the evaluated form of a profile's permission map: an
// explicit admin flag plus per-resource tiers. It is built once when the map
// is loaded so policy evaluation never deals with raw JSON values.
type PermissionSet struct {
	Admin     bool
	Resources map[string]Tier
}

// NewPermissionSet converts a decoded permission map into tiers. A stored 0
// means read-only, any other value read-write; the "admin" key is lifted out
// into the bypass flag.
func NewPermissionSet(perms map[string]int) PermissionSet {
	set := PermissionSet{Resources: make(map[string]Tier, len(perms))}
	for name, v := range perms {
		if name == adminKey {
			if v != 0 {
				set.Admin = true
			}
			continue
		}
		if v == 0 {
			set.Resources[name] = TierReadOnly
		} else {
			set.Resources[name] = TierReadWrite
		}
	}
	return set
}

// TierFor returns the tier granted on a resource, or TierNoAccess with
// ok=false when the resource has no entry at all.
func (p PermissionSet) TierFor(resource string) (Tier, bool) {
	tier, ok := p.Resources[resource]
	if !ok {
		return TierNoAccess, false
	}
	return tier, true
}

// Allows evaluates the method against the tier granted on the resource.
// Admin bypasses every check.
func (p PermissionSet) Allows(resource, method string) bool {
	if p.Admin {
		return true
	}
	tier, ok := p.TierFor(resource)
	if !ok {
		return false
	}
	if tier == TierReadOnly {
		return strings.EqualFold(method, "GET")
	}
	return true
}

// DecodePermissions parses the serialized permission map stored on a profile.
// Historical rows were sometimes written double-encoded; when the first parse
// fails, one level of backslash escaping is stripped and the parse retried.
// Returns nil (no error) for empty input; an error only when both parses fail.
func DecodePermissions(raw string) (map[string]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	perms, err := decodePermissionJSON(raw)
	if err == nil {
		return perms, nil
	}
	unescaped := strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(raw)
	return decodePermissionJSON(unescaped)
}

func decodePermissionJSON(raw string) (map[string]int, error) {
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil, err
	}
	perms := make(map[string]int, len(loose))
	for k, v := range loose {
		switch t := v.(type) {
		case float64:
			perms[k] = int(t)
		case bool:
			if t {
				perms[k] = 1
			} else {
				perms[k] = 0
			}
		case string:
			if t == "1" {
				perms[k] = 1
			} else {
				perms[k] = 0
			}
		default:
			perms[k] = 0
		}
	}
	return perms, nil
}
