// Package intake serves the customer-facing HTTP API: request submission,
// image upload, and a health probe. Submitting a request triggers the
// garage fan-out synchronously so the caller sees the contact counts.
package intake

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lgarneau/devisauto/internal/blob"
	"github.com/lgarneau/devisauto/internal/dispatch"
	"github.com/lgarneau/devisauto/internal/ops"
	"github.com/lgarneau/devisauto/internal/store"
)

// StartOpts holds configuration for the intake server.
type StartOpts struct {
	Store      store.Store
	Dispatcher *dispatch.Dispatcher
	Blobs      blob.Store
	Ops        *ops.Notifier
	Port       int
	Out        io.Writer
}

// Start launches the intake HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Store == nil {
		return fmt.Errorf("intake: store is required")
	}
	if opts.Dispatcher == nil {
		return fmt.Errorf("intake: dispatcher is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Intake API listening on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("intake: %w", err)
	}
	return nil
}

// NewRouter builds the gin router so tests can exercise the handlers
// without binding a port.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Store == nil || opts.Dispatcher == nil {
		return nil, fmt.Errorf("intake: store and dispatcher are required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)
	return router, nil
}
