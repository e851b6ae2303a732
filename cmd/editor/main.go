package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mprint/editor/internal/compositor"
	"github.com/mprint/editor/internal/handlers"
	"github.com/mprint/editor/internal/imaging"
	"github.com/mprint/editor/internal/platform/config"
	"github.com/mprint/editor/internal/platform/idempotency"
	"github.com/mprint/editor/internal/platform/jobs"
	"github.com/mprint/editor/internal/platform/observability"
	"github.com/mprint/editor/internal/platform/secrets"
	"github.com/mprint/editor/internal/services"
	"github.com/mprint/editor/internal/stores"
)

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("editor")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	storeClient := &http.Client{Timeout: cfg.Stores.RequestTimeout}

	uploadClient, err := stores.NewUploadClient(stores.UploadClientOptions{
		BaseURL:    cfg.Stores.UploadBaseURL,
		HTTPClient: storeClient,
		MaxBytes:   cfg.Stores.UploadMaxBytes,
		AuthToken:  cfg.Stores.UploadAuthToken,
	})
	if err != nil {
		logger.Fatal("failed to initialise upload store client", zap.Error(err))
	}

	designClient, err := stores.NewDesignClient(stores.DesignClientOptions{
		BaseURL:    cfg.Stores.DesignBaseURL,
		HTTPClient: storeClient,
		AuthToken:  cfg.Stores.DesignAuthToken,
	})
	if err != nil {
		logger.Fatal("failed to initialise design store client", zap.Error(err))
	}

	loader := imaging.NewLoader(imaging.Options{
		AuthHeader:   cfg.Imaging.AuthHeader,
		MaxBytes:     cfg.Imaging.MaxBytes,
		MaxTexturePx: cfg.Imaging.MaxTexturePx,
	})

	renderLogger := logger.Named("compositor")
	renderer := compositor.New(compositor.NewFontCache(cfg.Compositor.FontDir), func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		renderLogger.Debug("render log", zFields...)
	})

	sessionStore := services.NewSessionStore(services.SessionStoreDeps{
		TTL:   cfg.Sessions.TTL,
		Clock: time.Now,
	})

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	var sweepWG sync.WaitGroup
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		sessionStore.RunSweeper(sweepCtx, cfg.Sessions.SweepInterval)
	}()

	eventPublisher, closeEvents, err := newSaveEventPublisher(ctx, logger, cfg.Events)
	if err != nil {
		logger.Fatal("failed to initialise save event publisher", zap.Error(err))
	}
	defer closeEvents()

	editorService, err := services.NewEditorService(services.EditorServiceDeps{
		Sessions:      sessionStore,
		Uploads:       uploadClient,
		Designs:       designClient,
		Loader:        loader,
		Renderer:      renderer,
		Events:        eventPublisher,
		Clock:         time.Now,
		SessionIDs:    func() string { return "ses_" + ulid.Make().String() },
		TextIDs:       func() string { return "txt_" + ulid.Make().String() },
		Logger:        observability.NewPrintfAdapter(logger.Named("sessions")),
		DebounceDelay: cfg.Compositor.DebounceDelay,
	})
	if err != nil {
		logger.Fatal("failed to initialise editor service", zap.Error(err))
	}

	sessionHandlers := handlers.NewSessionHandlers(editorService)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithReadyCheck("upload_store", storeProbe(storeClient, cfg.Stores.UploadBaseURL)),
		handlers.WithReadyCheck("design_store", storeProbe(storeClient, cfg.Stores.DesignBaseURL)),
	)

	idempotencyStore := idempotency.NewMemoryStore()
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupTicker := time.NewTicker(time.Hour)
	sweepWG.Add(1)
	go func() {
		defer sweepWG.Done()
		cleanupLogger := logger.Named("idempotency")
		for {
			select {
			case <-cleanupTicker.C:
				removed, err := idempotencyStore.CleanupExpired(sweepCtx, time.Now().UTC(), 0)
				if err != nil {
					cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(),
		idempotencyMiddleware,
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithSessionRoutes(sessionHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("print editor listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	sweepCancel()
	sweepWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// storeProbe reports the collaborator as ready when its base URL answers at
// all; any HTTP status counts, only transport failures are surfaced.
func storeProbe(client *http.Client, baseURL string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

// newSaveEventPublisher connects the Pub/Sub save event publisher when a
// topic is configured. Without one, saves complete silently.
func newSaveEventPublisher(ctx context.Context, logger *zap.Logger, cfg config.EventsConfig) (services.EventPublisher, func(), error) {
	if cfg.Topic == "" {
		return nil, func() {}, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}

	publisher, err := jobs.NewPubSubSaveEventPublisher(client.Topic(cfg.Topic))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	logger.Info("save event publishing enabled",
		zap.String("project", cfg.ProjectID),
		zap.String("topic", cfg.Topic),
	)
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("pubsub client close error", zap.Error(err))
		}
	}
	return publisher, closeFn, nil
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if value, ok := env[key]; ok {
			return strings.TrimSpace(value)
		}
		return ""
	}

	envLabel := strings.ToLower(lookup("EDITOR_ENVIRONMENT"))
	if envLabel == "" {
		envLabel = "local"
	}
	fallbackPath := lookup("EDITOR_SECRETS_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithEnvironment(envLabel),
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if projectMap := parseProjectMap(lookup("EDITOR_SECRETS_PROJECT_MAP")); len(projectMap) > 0 {
		opts = append(opts, secrets.WithProjectMap(projectMap))
	}
	if defaultProject := lookup("EDITOR_SECRETS_PROJECT_ID"); defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := lookup("EDITOR_SECRETS_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func parseProjectMap(raw string) map[string]string {
	projects := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return projects
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		envLabel := strings.ToLower(strings.TrimSpace(parts[0]))
		project := strings.TrimSpace(parts[1])
		if envLabel == "" || project == "" {
			continue
		}
		projects[envLabel] = project
	}
	return projects
}
