package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/harmonizehq/ruleforge/config"
	"github.com/harmonizehq/ruleforge/docsource"
	"github.com/harmonizehq/ruleforge/events"
	"github.com/harmonizehq/ruleforge/extract"
	"github.com/harmonizehq/ruleforge/pack"
	"github.com/harmonizehq/ruleforge/project"
	"github.com/harmonizehq/ruleforge/review"
	"github.com/harmonizehq/ruleforge/server"
)

// App wires the review engine's components from configuration. One App owns
// one review session, shared by the REPL and the HTTP server.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	session   *review.Session
	intake    *extract.Service
	projects  *project.Client
	packs     *pack.Client
	packStore *pack.Manager
	publisher *events.Publisher
	fetcher   *docsource.Fetcher
	server    *server.Server
}

// NewApp builds the component graph from config.
func NewApp(cfg *config.Config) (*App, error) {
	logger := slog.Default()

	a := &App{
		cfg:     cfg,
		logger:  logger,
		session: review.NewSession(),
	}

	var extractClient *extract.Client
	if cfg.Extractor.URL != "" {
		httpClient := &http.Client{Timeout: cfg.Extractor.Timeout}
		if httpClient.Timeout == 0 {
			httpClient.Timeout = 60 * time.Second
		}
		extractClient = extract.NewClient(cfg.Extractor.URL,
			extract.WithHTTPClient(httpClient),
			extract.WithAPIKey(cfg.Extractor.APIKey),
			extract.WithLogger(logger),
			extract.WithRetryConfig(extract.RetryConfig{
				MaxAttempts:       cfg.Extractor.MaxAttempts,
				BackoffBase:       500 * time.Millisecond,
				BackoffMultiplier: 2,
				MaxBackoff:        5 * time.Second,
			}),
		)
	} else {
		logger.Warn("No extraction backend configured, intake will use the offline catalog")
	}

	a.projects = project.NewClient(cfg.Backend.URL, project.WithLogger(logger))
	a.packs = pack.NewClient(cfg.Backend.URL, pack.WithLogger(logger))
	a.packStore = pack.NewManager(cfg.Repo.Path)

	if cfg.NATS.URL != "" {
		publisher, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			// Events are fire-and-forget; a dead bus must not block review.
			logger.Warn("Failed to connect to NATS, events disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			a.publisher = publisher
		}
	}

	a.fetcher = docsource.NewFetcher(docsource.WithFetcherLogger(logger))

	a.server = server.New(a.session, nil,
		server.WithProjects(a.projects),
		server.WithPackClient(a.packs),
		server.WithPackStore(a.packStore),
		server.WithPublisher(a.publisher),
		server.WithFetcher(a.fetcher),
		server.WithLogger(logger),
		server.WithCORSOrigins(cfg.Server.CORSOrigins),
	)

	a.intake = extract.NewService(extractClient,
		extract.WithServiceLogger(logger),
		extract.WithFallbackHook(a.server.Metrics().FallbackHook()),
	)
	a.server.SetIntake(a.intake)

	return a, nil
}

// Close releases external connections.
func (a *App) Close() {
	a.publisher.Close()
}
