package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clavis.dev/internal/auth"
	"clavis.dev/internal/config"
	"clavis.dev/internal/httpapi"
	"clavis.dev/internal/obs"
	"clavis.dev/internal/store/pg"
)

var version = "0.3.0"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	tokens, err := auth.NewTokenService(cfg.TokenSecret,
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithAudience(cfg.TokenAudience),
		auth.WithAccessTTL(cfg.AccessTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}
	identity, err := auth.NewService(store, tokens, auth.WithRefreshTTL(cfg.RefreshTTL))
	if err != nil {
		log.Fatalf("identity service: %v", err)
	}
	rbac, err := auth.NewRBACService(store)
	if err != nil {
		log.Fatalf("rbac service: %v", err)
	}
	tenants, err := auth.NewTenantService(store)
	if err != nil {
		log.Fatalf("tenant service: %v", err)
	}

	api := httpapi.New(httpapi.Options{
		Identity: identity,
		RBAC:     rbac,
		Tenants:  tenants,
		Ready:    store,
		Version:  version,
	})

	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.RateLimit(api.Handler(), cfg.RateLimitBurst, cfg.RateLimitRPS)))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting clavis-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = store.Close()
	log.Println("Stopped")
}
