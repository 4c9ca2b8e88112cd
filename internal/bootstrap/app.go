package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tmdgusya/crawl-selector/internal/api"
	"github.com/tmdgusya/crawl-selector/internal/config"
	"github.com/tmdgusya/crawl-selector/internal/fetcher"
	"github.com/tmdgusya/crawl-selector/internal/logger"
	"github.com/tmdgusya/crawl-selector/internal/messaging"
	"github.com/tmdgusya/crawl-selector/internal/metrics"
	"github.com/tmdgusya/crawl-selector/internal/picker"
	"github.com/tmdgusya/crawl-selector/internal/recipe"
	"github.com/tmdgusya/crawl-selector/internal/selector"
	"github.com/tmdgusya/crawl-selector/internal/sse"
)

// fetchReplyMargin covers extraction and the reply once the fetch itself has
// hit its own deadline.
const fetchReplyMargin = 2 * time.Second

// App holds every long-lived component of the service.
type App struct {
	Config   *config.Config
	Log      logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
	Store    recipe.Store
	Editor   *recipe.Editor
	Fetcher  *fetcher.Fetcher
	Synth    *selector.Synthesizer
	Bus      *messaging.Bus
	Broker   sse.Broker

	// Exactly one of Host and ContentSocket is set, per
	// cfg.Messaging.RemoteContent.
	Host          *picker.Host
	ContentSocket http.Handler

	closers []func() error
}

// NewApp builds the components and attaches the bus contexts. Call Close when
// done.
func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store, closeStore, err := SetupStore(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Metrics:  m,
		Store:    store,
		Editor:   recipe.NewEditor(store, recipe.WithEditorMetrics(m)),
		Fetcher:  fetcher.New(cfg.Fetch, log, fetcher.WithMetrics(m)),
		Synth: selector.NewSynthesizer(
			selector.WithAncestorDepth(cfg.Picker.AncestorDepth),
			selector.WithMaxAlternatives(cfg.Picker.MaxAlternatives),
		),
		Bus: messaging.NewBus(log,
			messaging.WithRequestTimeout(cfg.Messaging.RequestTimeout),
			messaging.WithKindTimeout(messaging.KindFetchAndExtract, cfg.Fetch.Timeout+fetchReplyMargin),
			messaging.WithBusMetrics(m),
		),
		Broker:  sse.NewBroker(log),
		closers: []func() error{closeStore},
	}

	if err = a.attach(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) attach() error {
	a.onClose(a.Fetcher.Close)

	detach, err := a.Bus.Attach(messaging.OriginBackground, messaging.BackgroundHandler(a.Fetcher))
	if err != nil {
		return fmt.Errorf("attach background: %w", err)
	}
	a.onClose(detach)

	detach, err = a.Bus.Attach(messaging.OriginPanel, messaging.PanelHandler(a.Editor, a.Broker, a.Log))
	if err != nil {
		return fmt.Errorf("attach panel: %w", err)
	}
	a.onClose(detach)

	if a.Config.Messaging.RemoteContent {
		a.ContentSocket = messaging.NewWebSocketEndpoint(a.Bus, messaging.OriginContent, a.Log, nil)
		return nil
	}

	a.Host = picker.NewHost(messaging.NewNotifier(a.Bus, a.Log), a.Config.Picker, a.Log)
	detach, err = a.Bus.Attach(messaging.OriginContent, messaging.ContentHandler(a.Host))
	if err != nil {
		return fmt.Errorf("attach content: %w", err)
	}
	a.onClose(detach)
	a.onClose(a.Host.Close)
	return nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, func() error { fn(); return nil })
}

// Routes mounts the API on r.
func (a *App) Routes(r *gin.Engine) {
	api.RegisterRoutes(r, api.Deps{
		StoreDriver:   a.Config.Store.Driver,
		Store:         a.Store,
		Editor:        a.Editor,
		Bus:           a.Bus,
		Synth:         a.Synth,
		Broker:        a.Broker,
		Metrics:       a.Metrics,
		Gatherer:      a.Registry,
		Log:           a.Log,
		Host:          a.Host,
		ContentSocket: a.ContentSocket,
	})
}

// Close releases components in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Error("Failed to close component", logger.Error(err))
		}
	}
	a.closers = nil
}

// Serve starts the event broker and serves HTTP until ctx is done or a
// shutdown signal arrives.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Broker.Start(ctx); err != nil {
		return fmt.Errorf("start event broker: %w", err)
	}
	defer func() {
		if err := a.Broker.Stop(); err != nil {
			a.Log.Error("Failed to stop event broker", logger.Error(err))
		}
	}()

	server := api.NewServer(a.Config.Server, a.Config.Debug, a.Log, a.Routes)
	if err := server.RunWithGracefulShutdown(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	a.Log.Info("Server exited")
	return nil
}

// Start loads the configuration and runs the service.
func Start(ctx context.Context, configPath string, debug bool, version string) error {
	cfg, err := LoadConfig(configPath, debug)
	if err != nil {
		return err
	}

	log, err := CreateLogger(cfg, version)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer app.Close()

	return app.Serve(ctx)
}
