// Package config loads service configuration from the environment. The
// variable names are part of the external contract and must not change.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process configuration, read once at startup.
type Config struct {
	// Env gates the production fail-fast secret checks ("production" vs
	// anything else).
	Env string

	// TokenSecret signs access tokens.
	TokenSecret string

	// RefreshSecret is the legacy refresh-token secret, used when the
	// version map does not define the current version.
	RefreshSecret string
	// RefreshSecrets is the optional version map: a JSON object or a
	// comma-separated list.
	RefreshSecrets string
	// RefreshSecretVersion selects the version used for all new hashes.
	RefreshSecretVersion int

	// CacheTTL bounds permission-cache staleness.
	CacheTTL time.Duration

	HTTPAddr  string
	PGDSN     string
	RedisAddr string

	SeedAdminUsername  string
	SeedAdminPassword  string
	SeedAdminFirstName string
	SeedAdminLastName  string
	SeedProfileName    string
	SeedProfilePerms   string
}

// Load reads the environment. Missing values fall back to development
// defaults; production misuse of defaults is rejected later by the auth
// constructors, not here.
func Load() Config {
	cfg := Config{
		Env:                  getenv("APP_ENV", getenv("ENV", "development")),
		TokenSecret:          getenv("JWT_SECRET", "changeme"),
		RefreshSecrets:       os.Getenv("REFRESH_TOKEN_SECRETS"),
		RefreshSecretVersion: getenvInt("REFRESH_TOKEN_SECRET_VERSION", 1),
		CacheTTL:             time.Duration(getenvInt("PROFILE_CACHE_TTL", 60)) * time.Second,
		HTTPAddr:             getenv("GATEHOUSE_HTTP_ADDR", ":8080"),
		PGDSN:                os.Getenv("GATEHOUSE_PG_DSN"),
		RedisAddr:            getenv("GATEHOUSE_REDIS_ADDR", "localhost:6379"),
		SeedAdminUsername:    getenv("SEED_ADMIN_USERNAME", "sysadmin"),
		SeedAdminPassword:    getenv("SEED_ADMIN_PASSWORD", "SecureAdmin2025"),
		SeedAdminFirstName:   getenv("SEED_ADMIN_FIRSTNAME", "Sys"),
		SeedAdminLastName:    getenv("SEED_ADMIN_LASTNAME", "Admin"),
		SeedProfileName:      getenv("SEED_PROFILE_NAME", "Administrator"),
		SeedProfilePerms:     getenv("SEED_PROFILE_PERMISSIONS", `{"admin":1,"profiles":1,"users":1}`),
	}
	// The refresh secret falls back to the access-token secret, matching the
	// single-secret deployments this service grew out of.
	cfg.RefreshSecret = getenv("REFRESH_TOKEN_SECRET", cfg.TokenSecret)
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
