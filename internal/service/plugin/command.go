package plugin

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/VeeLume/streamdeck-counter/internal/api/grpc/health"
	"github.com/VeeLume/streamdeck-counter/internal/api/streamdeck"
	"github.com/VeeLume/streamdeck-counter/internal/config"
	"github.com/VeeLume/streamdeck-counter/internal/logger"
	"github.com/VeeLume/streamdeck-counter/internal/metrics"
	"github.com/VeeLume/streamdeck-counter/internal/repository/globals"
	"github.com/VeeLume/streamdeck-counter/internal/service/controller"
	"github.com/VeeLume/streamdeck-counter/internal/version"
)

// Options controls the plugin process. The host supplies the connection fields.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// LogLevel overrides the configured log level when set.
	LogLevel string
	// Port is the websocket port of the host.
	Port int
	// PluginUUID identifies this plugin instance to the host.
	PluginUUID string
	// RegisterEvent is the event name used to register.
	RegisterEvent string
	// Info is the JSON host description.
	Info string
}

// ErrUnknownLogLevel is returned when the log level override cannot be parsed.
var ErrUnknownLogLevel = errors.New("unknown log level")

// Run connects to the host and serves buttons until ctx is cancelled or the
// host closes the connection.
func Run(ctx context.Context, opts *Options) (err error) {
	ctx = logger.WithName(ctx, "streamdeck-counter")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}

	level, ok := logger.ParseLogLevel(settings.LogLevel)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLogLevel, settings.LogLevel)
	}

	logger.SetLevel(level)

	if settings.LogFile != "" {
		l, closer, openErr := logger.OpenFile(settings.LogFile)
		if openErr != nil {
			return fmt.Errorf("open log file: %w", openErr)
		}

		previous := logger.Logger()
		logger.SetLogger(l)
		ctx = logger.ToContext(ctx, l.Named("streamdeck-counter"))

		defer func() {
			logger.SetLogger(previous)

			if closeErr := closer.Close(); closeErr != nil {
				err = multierror.Append(err, fmt.Errorf("close log file: %w", closeErr))
			}
		}()
	}

	info, infoErr := streamdeck.ParseInfo(opts.Info)
	if infoErr != nil {
		logger.WarnKV(ctx, "Ignoring malformed host info", "error", infoErr)
	}

	logger.InfoKV(ctx, "Starting plugin",
		"version", version.Short(),
		"host_version", info.Application.Version,
		"platform", info.Application.Platform,
		"devices", len(info.Devices),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	recorder := metrics.New(registry)

	client, err := streamdeck.Dial(ctx, streamdeck.Options{
		Port:           opts.Port,
		PluginUUID:     opts.PluginUUID,
		RegisterEvent:  opts.RegisterEvent,
		ConnectTimeout: settings.ConnectTimeout,
		Metrics:        recorder,
	})
	if err != nil {
		return fmt.Errorf("connect to host: %w", err)
	}

	var (
		store   = globals.NewMemory()
		changes = newChangeQueue()
		engine  = controller.New(controller.Options{
			Store:        store,
			Display:      client,
			Publisher:    changes,
			Metrics:      recorder,
			LongPress:    settings.LongPress,
			TickInterval: settings.TickInterval,
		})
		d = newDispatcher(client, store, engine, changes)
	)

	var healthServer *health.Server
	if settings.HealthAddress != "" {
		healthServer = health.NewServer()
		d.onConnected = func() { healthServer.SetServing(true) }
		d.onDisconnected = func() { healthServer.SetServing(false) }
	}

	// The host connection outlives runCtx: the dispatcher still flushes and
	// closes it after the other goroutines were told to stop.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return client.Run(context.WithoutCancel(gctx))
	})

	g.Go(func() error {
		defer cancel()
		return d.run(gctx)
	})

	g.Go(func() error {
		return d.flushLoop(gctx)
	})

	if settings.MetricsAddress != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, settings.MetricsAddress, registry)
		})
	}

	if healthServer != nil {
		g.Go(func() error {
			return healthServer.Listen(gctx, settings.HealthAddress)
		})
	}

	if err = g.Wait(); err != nil {
		return fmt.Errorf("run plugin: %w", err)
	}

	return nil
}
