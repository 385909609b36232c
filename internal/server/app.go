// Package server builds the application's dependencies and runs the HTTP
// server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/api"
	"github.com/JakeFAU/sitechat-crawler/internal/chat"
	"github.com/JakeFAU/sitechat-crawler/internal/clock/system"
	"github.com/JakeFAU/sitechat-crawler/internal/config"
	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
	autofetcher "github.com/JakeFAU/sitechat-crawler/internal/fetcher/auto"
	collyfetcher "github.com/JakeFAU/sitechat-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/sitechat-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/sitechat-crawler/internal/generation"
	"github.com/JakeFAU/sitechat-crawler/internal/headless/detector"
	"github.com/JakeFAU/sitechat-crawler/internal/id/uuid"
	"github.com/JakeFAU/sitechat-crawler/internal/ingest"
	"github.com/JakeFAU/sitechat-crawler/internal/logging"
	"github.com/JakeFAU/sitechat-crawler/internal/metrics"
	"github.com/JakeFAU/sitechat-crawler/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/sitechat-crawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/sitechat-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/sitechat-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/sitechat-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/sitechat-crawler/internal/storage/postgres"
	"github.com/JakeFAU/sitechat-crawler/internal/store"
	"github.com/JakeFAU/sitechat-crawler/internal/training"
)

const shutdownTimeout = 10 * time.Second

// stores groups the repositories the services share.
type stores struct {
	websites      store.WebsiteStore
	conversations store.ConversationStore
	training      store.TrainingStore
}

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
	ingest    *ingest.Service
	chat      *chat.Service
	db        *pgstore.Store
	gcs       *gcsstorage.BlobStore
	browser   *headlessfetcher.Fetcher
	events    *pubsubpublisher.Publisher
}

// Build creates the application's dependencies from cfg.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("archive_backend", cfg.Archive.Backend),
		zap.Bool("database", cfg.DB.DSN != ""),
	)

	repos, err := app.setupStores(ctx)
	if err != nil {
		return nil, err
	}
	archive, err := app.setupArchive(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	clock := system.New()
	fetcher, err := app.setupFetcher()
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	events, err := app.setupEvents(ctx)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.ingest, err = ingest.New(repos.websites, fetcher, archive, events, clock, ingest.Config{
		Engine:        cfg.EngineConfig(),
		Defaults:      cfg.TargetDefaults(),
		ArchivePrefix: cfg.Archive.Prefix,
		EventTopic:    cfg.Events.Topic,
	}, logger.Named("ingest"))
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("ingest init failed: %w", err)
	}

	app.chat, err = chat.New(repos.websites, repos.conversations, repos.training,
		app.setupGeneration(), clock, logger)
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("chat init failed: %w", err)
	}

	var ready func(context.Context) error
	if app.db != nil {
		ready = app.db.Ping
	}
	app.apiServer = api.NewServer(api.Deps{
		Crawler:  app.ingest,
		Chat:     app.chat,
		Training: training.NewImporter(repos.training, logger),
		Websites: repos.websites,
		Ready:    ready,
		Logger:   logger.Named("api"),

		AllowedOrigins: app.cfg.Server.AllowedOrigins,
	})
	return app, nil
}

func (a *App) setupStores(ctx context.Context) (stores, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("no database DSN configured, using in-memory stores")
		ids := uuid.New()
		return stores{
			websites:      memorystorage.NewWebsiteStore(memorystorage.WithIDGenerator(ids)),
			conversations: memorystorage.NewConversationStore(memorystorage.WithIDGenerator(ids)),
			training:      memorystorage.NewTrainingStore(memorystorage.WithIDGenerator(ids)),
		}, nil
	}
	db, err := pgstore.Open(ctx, pgstore.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return stores{}, fmt.Errorf("postgres init failed: %w", err)
	}
	a.db = db
	a.logger.Info("postgres stores initialized", zap.Int32("max_conns", a.cfg.DB.MaxConns))
	return stores{websites: db, conversations: db, training: db}, nil
}

func (a *App) setupArchive(ctx context.Context) (store.BlobStore, error) {
	switch a.cfg.Archive.Backend {
	case config.ArchiveGCS:
		blob, err := gcsstorage.Open(ctx, gcsstorage.Config{Bucket: a.cfg.Archive.GCSBucket}, a.logger.Named("gcs"))
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		a.gcs = blob
		a.logger.Info("archiving crawls to GCS", zap.String("bucket", a.cfg.Archive.GCSBucket))
		return blob, nil
	case config.ArchiveLocal:
		blob, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		a.logger.Info("archiving crawls to disk", zap.String("path", a.cfg.Archive.BaseDir))
		return blob, nil
	case config.ArchiveMemory:
		a.logger.Info("archiving crawls in memory")
		return memorystorage.NewBlobStore(), nil
	default:
		a.logger.Info("crawl archiving disabled")
		return nil, nil
	}
}

func (a *App) setupEvents(ctx context.Context) (ingest.Publisher, error) {
	if !a.cfg.Events.Enabled() {
		a.logger.Info("crawl events disabled")
		return nil, nil
	}
	pub, err := pubsubpublisher.Open(ctx, a.cfg.Events.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.events = pub
	a.logger.Info("publishing crawl events",
		zap.String("project", a.cfg.Events.ProjectID),
		zap.String("topic", a.cfg.Events.Topic),
	)
	return pub, nil
}

func (a *App) setupFetcher() (crawler.Fetcher, error) {
	static := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Crawler.UserAgent,
		Timeout:   a.cfg.Crawler.DefaultTimeout,
	})
	mode := a.cfg.Crawler.Fetcher
	if mode != config.FetcherHeadless && mode != config.FetcherAuto {
		a.logger.Info("using colly fetcher", zap.String("user_agent", a.cfg.Crawler.UserAgent))
		return static, nil
	}

	browser, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       a.cfg.Crawler.HeadlessMaxParallel,
		UserAgent:         a.cfg.Crawler.UserAgent,
		NavigationTimeout: a.cfg.Crawler.DefaultTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("headless fetcher init failed: %w", err)
	}
	a.browser = browser
	a.logger.Info("headless browser configured",
		zap.String("mode", mode),
		zap.Int("max_parallel", a.cfg.Crawler.HeadlessMaxParallel),
	)
	if mode == config.FetcherHeadless {
		return browser, nil
	}
	fetcher, err := autofetcher.New(static, browser, detector.NewHeuristic(0), a.logger)
	if err != nil {
		return nil, fmt.Errorf("auto fetcher init failed: %w", err)
	}
	return fetcher, nil
}

// setupGeneration orders Gemini before Mistral; providers without a key are
// left out.
func (a *App) setupGeneration() *generation.Chain {
	gen := a.cfg.Generation
	limiter := ratelimit.New(ratelimit.Config{RPS: gen.RequestsPerSecond, Burst: gen.Burst})
	client := &http.Client{Timeout: a.cfg.GenerationTimeout()}

	var providers []generation.Provider
	if gen.GeminiAPIKey != "" {
		providers = append(providers, generation.NewGemini(generation.GeminiConfig{
			APIKey:   gen.GeminiAPIKey,
			Endpoint: gen.GeminiEndpoint,
		}, client, limiter))
	}
	if gen.MistralAPIKey != "" {
		providers = append(providers, generation.NewMistral(generation.MistralConfig{
			APIKey:   gen.MistralAPIKey,
			Endpoint: gen.MistralEndpoint,
			Model:    gen.MistralModel,
		}, client, limiter))
	}
	chain := generation.NewChain(a.logger, providers...)
	if len(providers) == 0 {
		a.logger.Warn("no language model API keys configured, chat will answer with the apology message")
	} else {
		a.logger.Info("generation providers configured", zap.Strings("providers", chain.Providers()))
	}
	return chain
}

// Crawl runs one crawl through the ingest service.
func (a *App) Crawl(ctx context.Context, req ingest.Request) (ingest.Result, error) {
	return a.ingest.Crawl(ctx, req)
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler { return a.apiServer.Handler() }

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Run serves HTTP until ctx is canceled or a termination signal arrives,
// then drains in-flight requests. Callers still Close the App.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close releases database and storage clients and flushes the logger. It is
// safe to call more than once.
func (a *App) Close() error {
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	// Sync on a console logger fails for stdout/stderr on some platforms.
	_ = a.logger.Sync()
	return nil
}

func (a *App) closeInfrastructure() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
		a.events = nil
	}
	if a.browser != nil {
		a.browser.Close()
		a.browser = nil
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.gcs = nil
	}
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
}
