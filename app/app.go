// Package app wires configuration, provider assembly, and the
// diagnostic HTTP surface into a runnable gateway.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"authd/provider"
)

// App holds the assembled runtime state.
type App struct {
	Config    Config
	Logger    *slog.Logger
	Providers provider.Result
}

// New assembles the configured providers. In dev mode a provider that
// fails assembly (an unreachable issuer, say) is logged and skipped so
// the rest of the gateway stays usable; in production any failure is
// fatal.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*App, error) {
	sources, err := cfg.Sources()
	if err != nil {
		return nil, err
	}

	result, err := provider.Assemble(ctx, provider.Options{
		Providers:        sources,
		BaseURL:          cfg.Server.PublicURL,
		ProviderID:       cfg.Providers.Default,
		RedirectProxyURL: cfg.Providers.RedirectProxyURL,
		Logger:           logger,
	})
	if err != nil {
		if !cfg.Server.DevMode {
			return nil, fmt.Errorf("assemble providers: %w", err)
		}
		logger.Warn("some providers failed assembly, continuing in dev mode",
			"assembled", len(result.Records), "error", err)
	}

	return &App{Config: cfg, Logger: logger, Providers: result}, nil
}

// Record returns the assembled record with the given id.
func (a *App) Record(id string) *provider.Record {
	for i := range a.Providers.Records {
		if a.Providers.Records[i].ID == id {
			return &a.Providers.Records[i]
		}
	}
	return nil
}
