package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SecretRing holds the versioned signing secrets used to hash refresh tokens.
// The current version produces all new hashes; older versions are only tried
// during verification so that rotating the secret does not invalidate
// outstanding sessions. The ring is immutable after construction.
type SecretRing struct {
	current int
	secrets map[int]string
}

// NewSecretRing parses the version map. mapping may be a JSON object
// keyed by version or a comma-separated list, in which case versions are
// assigned sequentially starting at 1. When the current version is absent
// from the map, the legacy secret is inserted at that version.
func NewSecretRing(legacy, mapping string, current int) (*SecretRing, error) {
	if current <= 0 {
		current = 1
	}
	ring := &SecretRing{current: current, secrets: make(map[int]string)}

	mapping = strings.TrimSpace(mapping)
	if mapping != "" {
		var asJSON map[string]string
		if err := json.Unmarshal([]byte(mapping), &asJSON); err == nil {
			for k, v := range asJSON {
				ver, err := strconv.Atoi(strings.TrimSpace(k))
				if err != nil {
					return nil, fmt.Errorf("auth: invalid secret version %q", k)
				}
				ring.secrets[ver] = v
			}
		} else {
			for i, v := range strings.Split(mapping, ",") {
				ring.secrets[i+1] = strings.TrimSpace(v)
			}
		}
	}

	if _, ok := ring.secrets[ring.current]; !ok {
		ring.secrets[ring.current] = legacy
	}
	return ring, nil
}

// Current returns the version used for all new hashes.
func (r *SecretRing) Current() int {
	return r.current
}

// Versions lists known versions, current first, the rest in ascending order.
func (r *SecretRing) Versions() []int {
	rest := make([]int, 0, len(r.secrets))
	for v := range r.secrets {
		if v != r.current {
			rest = append(rest, v)
		}
	}
	sort.Ints(rest)
	return append([]int{r.current}, rest...)
}

// HashToken computes the keyed hash of a refresh token under one version.
// An unknown version falls back to the current version's secret.
func (r *SecretRing) HashToken(plain string, version int) string {
	secret, ok := r.secrets[version]
	if !ok {
		secret = r.secrets[r.current]
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(plain))
	return hex.EncodeToString(mac.Sum(nil))
}

// currentSecret is used by the production fail-fast guard.
func (r *SecretRing) currentSecret() string {
	return r.secrets[r.current]
}
