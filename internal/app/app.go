// Package app wires storage, planning and the assistant from a Config.
// The CLI and the daemon share it.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"praxus/internal/config"
	"praxus/internal/db"
	"praxus/pkg/assistant"
	"praxus/pkg/logx"
	"praxus/pkg/schedule"
)

// App holds the open backend and the services built on it.
type App struct {
	Config    *config.Config
	DB        *db.DB
	Stores    db.Stores
	Bus       *schedule.Bus
	Planner   *schedule.Planner
	Assistant *assistant.Assistant
	Log       logx.Logger
}

// Open connects storage, ensures tables and builds the services.
func Open(ctx context.Context, cfg *config.Config, log logx.Logger) (*App, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	loc, err := cfg.Planning.Location()
	if err != nil {
		return nil, fmt.Errorf("planning.timezone: %w", err)
	}

	d, err := db.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	stores := d.Stores()
	if err := stores.EnsureTables(ctx); err != nil {
		d.Close()
		return nil, err
	}

	provider, err := NewProvider(cfg.Assistant)
	if err != nil {
		d.Close()
		return nil, err
	}
	timeout, err := config.ParseDurationOrDefault("assistant.timeout", cfg.Assistant.Timeout, 0)
	if err != nil {
		d.Close()
		return nil, err
	}

	bus := schedule.NewBus()
	planner := schedule.NewPlanner(stores.Tasks, stores.Schedule, log,
		schedule.WithBus(bus),
		schedule.WithDayStart(cfg.Planning.DayStart, loc),
	)
	asst := assistant.New(stores.Messages, provider, log,
		assistant.WithHistoryLimit(cfg.Assistant.HistoryLimit),
		assistant.WithRate(cfg.Assistant.RatePerSec),
		assistant.WithTimeout(timeout),
	)

	return &App{
		Config:    cfg,
		DB:        d,
		Stores:    stores,
		Bus:       bus,
		Planner:   planner,
		Assistant: asst,
		Log:       log,
	}, nil
}

// Apply takes the reloadable parts of a new config.
func (a *App) Apply(cfg *config.Config) error {
	loc, err := cfg.Planning.Location()
	if err != nil {
		return fmt.Errorf("planning.timezone: %w", err)
	}
	a.Planner.SetDayStart(cfg.Planning.DayStart, loc)
	a.Config = cfg
	return nil
}

// Close releases storage.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return a.DB.Close()
}

// NewProvider builds the configured language model provider.
func NewProvider(cfg config.AssistantConfig) (assistant.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "mistral":
		return &assistant.MistralProvider{
			Endpoint:    cfg.Endpoint,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Client:      &http.Client{},
		}, nil
	case "claude":
		return &assistant.ClaudeCLIProvider{WorkDir: cfg.WorkDir}, nil
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Provider)
	}
}
