// Package server runs one node role: config, database, services and the HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"private-lending/internal/app"
	"private-lending/internal/config"
	"private-lending/internal/db"
	"private-lending/internal/router"
)

// Run loads the configuration, forces the node role and serves until ctx is cancelled
func Run(ctx context.Context, configPath, role string) error {
	if err := config.LoadConfigForRole(configPath, role); err != nil {
		return err
	}
	cfg := config.AppConfig

	db.InitDB()

	container, err := app.InitializeContainer(cfg, db.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer container.Cleanup()
	container.Start()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupRouter(container),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 %s listening on %s", role, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("🛑 Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
