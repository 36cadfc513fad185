// Package app assembles the HTTP server from its infrastructure pieces
// and owns their lifecycle.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/Eulab-EugenioRenna/qrmediasystem/internal/config"
)

// App is the running service: one HTTP server plus the teardown hook
// handed back by wiring, which closes the database and Redis handles.
type App struct {
	server     *http.Server
	closeInfra func() error
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	router, closeInfra, err := setupHTTP(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &App{
		server: &http.Server{
			Addr:              ":" + cfg.AppPort,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		closeInfra: closeInfra,
	}, nil
}

// Run serves requests until Shutdown or a listener error.
func (a *App) Run() error {
	return a.server.ListenAndServe()
}

// Shutdown drains in-flight requests, then closes the infrastructure
// handles. The context bounds the drain, not the teardown.
func (a *App) Shutdown(ctx context.Context) error {
	if err := a.server.Shutdown(ctx); err != nil {
		return err
	}
	if a.closeInfra == nil {
		return nil
	}
	return a.closeInfra()
}
