package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backoffice.dev/internal/access"
	"backoffice.dev/internal/audit"
	"backoffice.dev/internal/config"
	"backoffice.dev/internal/httpapi"
	"backoffice.dev/internal/migrate"
	"backoffice.dev/internal/obs"
	"backoffice.dev/internal/store/memory"
	"backoffice.dev/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		store access.Store
		probe httpapi.ReadyProbe
	)
	if cfg.PostgresDSN != "" {
		pgStore, err := pg.Open(cfg.PostgresDSN, cfg.OpTimeout)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer pgStore.Close()
		store = pgStore
		probe = httpapi.ReadyProbe{Ping: pgStore.Ping}
	} else {
		log.Printf("BACKOFFICE_PG_DSN not set, using the in-memory store")
		store = memory.New()
	}

	ctx := context.Background()
	createdAdmin, err := migrate.Bootstrap(ctx, store)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	if createdAdmin {
		log.Printf("WARNING: default administrator %q created with the default password; rotate it after first login", migrate.DefaultAdminLogin)
	}

	sessions := access.NewSessionRegistry(cfg.SessionTTL)
	recorder, err := audit.NewRecorder(store)
	if err != nil {
		log.Fatalf("audit recorder: %v", err)
	}
	svc, err := access.NewService(store, sessions, recorder)
	if err != nil {
		log.Fatalf("access service: %v", err)
	}
	admin, err := access.NewAdmin(store)
	if err != nil {
		log.Fatalf("admin service: %v", err)
	}

	api := httpapi.New(svc, admin, recorder, probe, version, httpapi.Options{
		LoginRPS:   cfg.RateLimitRPS,
		LoginBurst: cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting backoffice-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Println("Stopped")
}
