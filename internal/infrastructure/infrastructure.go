// Package infrastructure provides core service initialization for
// application startup. It assembles the shared dependencies (logging,
// lifecycle, store, AI capabilities) that the pipeline, watcher, and
// dashboard require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mkurosawa/receiptd/internal/capability"
	"github.com/mkurosawa/receiptd/internal/capability/gemini"
	"github.com/mkurosawa/receiptd/internal/capability/pdfimage"
	"github.com/mkurosawa/receiptd/internal/config"
	"github.com/mkurosawa/receiptd/internal/store"
	"github.com/mkurosawa/receiptd/pkg/lifecycle"
)

// Infrastructure holds the core systems required by the service.
type Infrastructure struct {
	Lifecycle    *lifecycle.Coordinator
	Logger       *slog.Logger
	Store        *store.Store
	Capabilities capability.Set

	gemini *gemini.Client
}

// New creates an Infrastructure from the application configuration. It
// initializes all systems but does not start them; call Start
// separately.
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := cfg.Storage.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	st := store.New(cfg.Storage.DatabasePath, logger)

	gem, err := gemini.NewClient(ctx, cfg.Gemini, logger)
	if err != nil {
		return nil, fmt.Errorf("gemini init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Store:     st,
		Capabilities: capability.Set{
			Images: pdfimage.New(logger),
			Data:   gem,
			Eval:   gem,
		},
		gemini: gem,
	}, nil
}

// Start applies database migrations.
func (i *Infrastructure) Start() error {
	if err := i.Store.Migrate(); err != nil {
		return fmt.Errorf("store start failed: %w", err)
	}
	return nil
}

// Close releases the clients the Infrastructure owns. Call only after
// every consumer of the capabilities has stopped; a pipeline run still
// in flight must never see a closed client.
func (i *Infrastructure) Close() {
	if err := i.gemini.Close(); err != nil {
		i.Logger.Error("gemini client close failed", "error", err)
	}
}
