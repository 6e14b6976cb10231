package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"bucketdeck/internal/config"
	"bucketdeck/internal/logger"
	"bucketdeck/internal/metrics"
	"bucketdeck/internal/provider/factory"
	"bucketdeck/internal/service"
	"bucketdeck/internal/tasks"
	"bucketdeck/internal/transfer"
	"bucketdeck/internal/ui/prompt"
	"bucketdeck/pkg/formatter"
	"bucketdeck/pkg/storage"

	"github.com/prometheus/client_golang/prometheus"
)

// shutdownGrace is how long in-flight operations get to finish when the CLI exits
const shutdownGrace = 2 * time.Second

// appContainer holds all the shared dependencies for the application
// This includes configuration, the provider factory, formatters, and the logger
type appContainer struct {
	ConfigManager    *config.ConfigManager
	ProviderFactory  *factory.Factory
	StorageFormatter *formatter.StorageFormatter
	Prompter         prompt.Prompter
	Metrics          *metrics.TransferMetrics
	Logger           *slog.Logger

	opts          *globalOptions
	client        *service.Client
	metricsServer *metrics.Server
	logCloser     io.Closer
}

type appContextKey struct{}

func withApp(ctx context.Context, app *appContainer) context.Context {
	return context.WithValue(ctx, appContextKey{}, app)
}

func appFromContext(ctx context.Context) (*appContainer, error) {
	app, ok := ctx.Value(appContextKey{}).(*appContainer)
	if !ok || app == nil {
		return nil, errors.New("application is not initialized")
	}
	return app, nil
}

// Creates and initializes a new application container
func newApp(opts *globalOptions) (*appContainer, error) {
	log := logger.NewLogger(os.Stderr, opts.debug)

	path := opts.configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return nil, err
		}
	}
	cfgManager, err := config.NewConfigManager(path)
	if err != nil {
		return nil, err
	}

	app := &appContainer{
		ConfigManager:    cfgManager,
		ProviderFactory:  factory.NewFactory(log),
		StorageFormatter: formatter.NewStorageFormatter(),
		Prompter:         prompt.NewStandardPrompter(os.Stdin, os.Stdout),
		Logger:           log,
		opts:             opts,
	}

	if opts.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		app.Metrics = metrics.NewTransferMetrics(registry)
		app.metricsServer = metrics.Serve(opts.metricsAddr, registry, log)
	}
	return app, nil
}

// RedirectLogs sends all further logging to log. closer, when set, is closed last by Close
func (a *appContainer) RedirectLogs(log *slog.Logger, closer io.Closer) {
	a.Logger = log
	a.ProviderFactory = factory.NewFactory(log)
	a.logCloser = closer
}

// ResolveProfile loads the selected profile and applies the command line overrides
func (a *appContainer) ResolveProfile() (storage.ClientConfig, string, error) {
	name := a.opts.profile
	if name == "" {
		name = a.ConfigManager.DefaultProfile()
	}

	profile, exists, err := a.ConfigManager.Load(name)
	if err != nil {
		return storage.ClientConfig{}, name, err
	}
	if !exists {
		return storage.ClientConfig{}, name, fmt.Errorf("profile '%s' not found. Use 'bucketdeck config set %s.<field> <value>' to create it", name, name)
	}

	if a.opts.bucket != "" {
		profile.Bucket = a.opts.bucket
	}
	if err := profile.Validate(); err != nil {
		return storage.ClientConfig{}, name, fmt.Errorf("profile '%s': %w", name, err)
	}
	return profile, name, nil
}

// OpenClient connects the selected profile. The client lives until Close
func (a *appContainer) OpenClient(ctx context.Context) (*service.Client, error) {
	if a.client != nil {
		return a.client, nil
	}

	cfg, name, err := a.ResolveProfile()
	if err != nil {
		return nil, err
	}

	backend, err := a.ProviderFactory.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("error connecting profile '%s': %w", name, err)
	}

	spawner := tasks.NewSpawner(ctx, a.Logger)
	a.client = service.NewClient(backend, cfg, spawner, a.Logger, transfer.WithMetrics(a.Metrics))
	a.Logger.Debug("Client ready", "profile", name, "provider", cfg.Service.String(), "bucket", cfg.Bucket)
	return a.client, nil
}

// waitContext bounds how long a command waits for its events
func (a *appContainer) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.timeout > 0 {
		return context.WithTimeout(ctx, a.opts.timeout)
	}
	return context.WithCancel(ctx)
}

// Close shuts the client down and stops the metrics endpoint
func (a *appContainer) Close() {
	if a.client != nil {
		if !a.client.Shutdown(shutdownGrace) {
			a.Logger.Warn("Some operations did not finish before shutdown")
		}
		a.client = nil
	}

	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.metricsServer.Stop(ctx); err != nil {
			a.Logger.Warn("Failed to stop metrics server", "error", err)
		}
	}

	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}
