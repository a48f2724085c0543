// Package app builds the process-wide context shared by the front ends:
// configuration, loggers, the model backend, the adapter and the session
// map with its persistence.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/config"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/db"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/adapters"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/models"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/generation/ports"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/session"
)

// App is constructed once at startup and closed at shutdown.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Tokenizer ports.Tokenizer
	Adapter   generation.Adapter
	Sessions  *session.Manager
	Limiter   ports.RateLimiter

	models *models.Manager
	db     *sql.DB
	// closeModels releases the generator and tokenizer.
	closeModels func() error
}

// New loads the model described by cfg and wires everything around it.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	mgr, err := models.NewManager(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	a, err := newApp(ctx, cfg, logger, mgr.Tokenizer(), mgr.Generator(), mgr.Close)
	if err != nil {
		_ = mgr.Close()
		return nil, err
	}
	a.models = mgr
	return a, nil
}

// newApp wires the given tokenizer and generator. closeModels may be nil.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, tok ports.Tokenizer, gen ports.Generator, closeModels func() error) (*App, error) {
	a := &App{Config: cfg, Logger: logger, closeModels: closeModels}

	if cfg.Cache.Enabled {
		tok = adapters.NewCachedTokenizer(tok, adapters.NewLRUCache(cfg.Cache.Capacity), cfg.Cache.TTLSeconds)
	}
	a.Tokenizer = tok

	var tracer ports.Tracer = adapters.NoopTracer{}
	if cfg.Logging.Tracing {
		tracer = adapters.NewZerologTracer(logger)
	}

	adapter, err := generation.FromConfig(cfg.Model, cfg.Generation, generation.Config{
		Tokenizer: tok,
		Generator: gen,
		Tracer:    tracer,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	a.Adapter = adapter

	var store ports.SessionStore = adapters.NoopSessionStore{}
	if cfg.Sessions.Persist {
		conn, err := db.ConnectToDB(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, err
		}
		a.db = conn
		store = adapters.NewLibSQLSessionStore(conn)
	}

	a.Sessions = session.NewManager(adapter, session.Options{
		Dispatcher:      session.NewDispatcher(cfg.Sessions.Workers),
		Store:           store,
		FlushOnResponse: cfg.Sessions.FlushOnResponse,
		Logger:          logger,
	})
	if err := a.Sessions.Load(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.Limiter = adapters.NoopRateLimiter{}
	if cfg.RateLimit.Enabled {
		a.Limiter = adapters.NewTokenBucket(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	}

	logger.Info().
		Str("model", cfg.Model.Name).
		Str("adapter", adapter.Name()).
		Int("context_limit", adapter.ContextLimit()).
		Bool("persist", cfg.Sessions.Persist).
		Msg("Chatbot ready")
	return a, nil
}

// ApplyGeneration swaps the adapter's decoding options for the preset
// overlaid with gc.
func (a *App) ApplyGeneration(gc config.GenerationConfig) {
	t, ok := a.Adapter.(generation.Tunable)
	if !ok {
		return
	}
	preset := generation.GetModelConfig(a.Config.Model.Name)
	t.SetOptions(generation.MergeOptions(preset.Options, gc))
	a.Logger.Info().Interface("generation", gc).Msg("Generation options reloaded")
}

// WatchConfig applies edits to the generation section of the config file
// while running.
func (a *App) WatchConfig() {
	config.Watch(func(gc config.GenerationConfig, err error) {
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Ignoring config change")
			return
		}
		a.ApplyGeneration(gc)
	})
}

// HealthSummary reports backend health, empty when no model manager runs.
func (a *App) HealthSummary() map[string]*models.ModelHealth {
	if a.models == nil {
		return nil
	}
	return a.models.GetHealthSummary()
}

// Close flushes sessions, then closes the database and the model backend.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Sessions != nil {
		if err := a.Sessions.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		a.db = nil
	}
	if a.closeModels != nil {
		if err := a.closeModels(); err != nil {
			errs = append(errs, fmt.Errorf("close models: %w", err))
		}
		a.closeModels = nil
	}
	return errors.Join(errs...)
}
