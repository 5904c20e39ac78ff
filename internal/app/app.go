package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"newsharvest/internal/config"
	"newsharvest/internal/domain"
	"newsharvest/internal/fetch"
	"newsharvest/internal/ingest"
	"newsharvest/internal/logging"
	"newsharvest/internal/notify"
	"newsharvest/internal/ports"
	"newsharvest/internal/scheduler"
	"newsharvest/internal/server"
	"newsharvest/internal/sources"
	"newsharvest/internal/storage"
)

// Application wires configuration to the pipeline components and exposes
// the invocation surfaces: one-shot scrape, HTTP server, daily schedule.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *sources.Registry
	client   *fetch.Client
	pool     *pgxpool.Pool
	store    *storage.Store
	notifier ports.Notifier
}

// New connects to storage and builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	client := fetch.NewClient(fetch.Options{
		Timeout:    cfg.Scraper.Timeout(),
		RetryDelay: cfg.Scraper.RetryDelay(),
		Politeness: cfg.Scraper.Politeness(),
		UserAgents: cfg.Scraper.UserAgents,
	}, baseLogger.With("component", "fetcher"))

	registry := buildRegistry(cfg)

	pool, err := storage.Connect(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	store := storage.New(pool, baseLogger.With("component", "storage"))
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	var notifier ports.Notifier
	if tg := cfg.Notifications.Telegram; tg.BotToken != "" && tg.ChatID != "" {
		notifier = notify.NewTelegramNotifier(tg.BotToken, tg.ChatID)
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		registry: registry,
		client:   client,
		pool:     pool,
		store:    store,
		notifier: notifier,
	}, nil
}

func buildRegistry(cfg config.Config) *sources.Registry {
	registry := sources.NewRegistry()
	minBody := cfg.Scraper.MinBodyLength

	for _, src := range cfg.Sources {
		if src.Planned {
			registry.Register(sources.NewPlanned(src.Name))
			continue
		}

		switch src.Name {
		case domain.SourceMoneyControl:
			registry.Register(sources.NewMoneyControl(minBody))
		case domain.SourceFinancialExpress:
			registry.Register(sources.NewFinancialExpress(minBody))
		case domain.SourceLiveMint:
			registry.Register(sources.NewLiveMint(minBody))
		default:
			// Configured but unbuilt: register as planned so requests for
			// it surface a not-implemented outcome instead of vanishing.
			registry.Register(sources.NewPlanned(src.Name))
		}
	}

	return registry
}

// Close releases the storage pool.
func (a *Application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// Scrape runs one ingestion job over the requested scope and returns the
// finalized job. maxPages <= 0 falls back to the configured bound.
func (a *Application) Scrape(ctx context.Context, sourceNames, categories []string, maxPages int) (*domain.IngestionJob, error) {
	scope, err := a.ExpandScope(sourceNames, categories)
	if err != nil {
		return nil, err
	}

	if maxPages <= 0 {
		maxPages = a.cfg.Scraper.MaxPagesPerCategory
	}

	runner := ingest.NewRunner(a.registry, a.client, a.store, a.store,
		a.logger.With("component", "runner"),
		ingest.Options{
			MaxPagesPerCategory: maxPages,
			SourceWorkers:       a.cfg.Scraper.SourceWorkers,
			CandidateWorkers:    a.cfg.Scraper.CandidateWorkers,
		})

	job, err := runner.Run(ctx, scope)
	if err != nil {
		return nil, err
	}

	if a.notifier != nil {
		if err := a.notifier.PublishSummary(context.WithoutCancel(ctx), job); err != nil {
			a.logger.Warn("run summary notification failed", "error", err)
		}
	}

	return job, nil
}

// ExpandScope resolves source and category selectors into concrete scope
// items. Empty or "all" selectors expand to the configured defaults.
func (a *Application) ExpandScope(sourceNames, categories []string) ([]domain.ScopeItem, error) {
	wantAllSources := len(sourceNames) == 0 || (len(sourceNames) == 1 && sourceNames[0] == "all")
	wantAllCategories := len(categories) == 0 || (len(categories) == 1 && categories[0] == "all")

	var selected []config.SourceConfig
	if wantAllSources {
		selected = a.cfg.Sources
	} else {
		for _, name := range sourceNames {
			source := domain.Source(name)
			if !source.Valid() {
				return nil, fmt.Errorf("unknown source %q", name)
			}
			src, ok := a.cfg.SourceByName(source)
			if !ok {
				src = config.SourceConfig{Name: source}
			}
			selected = append(selected, src)
		}
	}

	var scope []domain.ScopeItem
	for _, src := range selected {
		cats := src.Categories
		if !wantAllCategories {
			cats = categories
		}
		if len(cats) == 0 {
			return nil, fmt.Errorf("source %s has no categories configured", src.Name)
		}
		for _, category := range cats {
			scope = append(scope, domain.ScopeItem{Source: src.Name, Category: category})
		}
	}

	if len(scope) == 0 {
		return nil, fmt.Errorf("requested scope is empty")
	}
	return scope, nil
}

// QueryArticles reads stored articles for the CLI export path.
func (a *Application) QueryArticles(ctx context.Context, filter domain.ArticleFilter) ([]domain.Article, error) {
	return a.store.QueryArticles(ctx, filter)
}

// Serve runs the status/query HTTP surface until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	srv := server.New(a.store, a.store, a.cfg.AccessTokens, a.logger.With("component", "server"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(a.cfg.Server.Addr)
	}()

	a.logger.Info("server listening", "addr", a.cfg.Server.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Schedule runs the full configured scope once per day until cancelled.
func (a *Application) Schedule(ctx context.Context) error {
	daily := scheduler.NewDaily(a.cfg.Scheduler.Hour, a.cfg.Scheduler.Location(), a.logger.With("component", "scheduler"))

	return daily.Run(ctx, func(runCtx context.Context) error {
		job, err := a.Scrape(runCtx, nil, nil, 0)
		if err != nil {
			return err
		}
		if job.Status != domain.JobSucceeded {
			return fmt.Errorf("scheduled run finished with status %s", job.Status)
		}
		return nil
	})
}
