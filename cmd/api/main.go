package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"gatehouse.dev/internal/auth"
	"gatehouse.dev/internal/cache"
	"gatehouse.dev/internal/config"
	"gatehouse.dev/internal/httpapi"
	"gatehouse.dev/internal/obs"
)

var version = "0.3.0"

func main() {
	obs.Init()
	cfg := config.Load()

	if cfg.PGDSN == "" {
		log.Fatal("GATEHOUSE_PG_DSN is required")
	}
	db, err := sql.Open("pgx", cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	ring, err := auth.NewSecretRing(cfg.RefreshSecret, cfg.RefreshSecrets, cfg.RefreshSecretVersion)
	if err != nil {
		log.Fatalf("refresh secrets: %v", err)
	}

	users := auth.NewPGUserStore(db)
	profiles := auth.NewPGProfileStore(db)

	authenticator, err := auth.NewAuthenticator(users, cfg.TokenSecret, cfg.Env)
	if err != nil {
		log.Fatalf("authenticator: %v", err)
	}
	sessions, err := auth.NewSessionStore(db, ring, cfg.Env)
	if err != nil {
		log.Fatalf("session store: %v", err)
	}

	api := httpapi.New(httpapi.Deps{
		Auth:     authenticator,
		Users:    users,
		Profiles: profiles,
		Sessions: sessions,
		Cache:    cache.New(rdb, cfg.CacheTTL),
		DB:       db,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting gatehouse-api %s on %s (env=%s)", version, srv.Addr, cfg.Env)

	// Expired sessions accumulate between restarts; sweep them hourly.
	purgeCtx, purgeCancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-purgeCtx.Done():
				return
			case <-ticker.C:
				if n, err := sessions.PurgeExpired(purgeCtx); err == nil && n > 0 {
					log.Printf("purged %d expired sessions", n)
				}
			}
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	purgeCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = rdb.Close()
	_ = db.Close()
	log.Println("Stopped")
}
