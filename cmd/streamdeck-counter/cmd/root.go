package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/VeeLume/streamdeck-counter/internal/config"
	"github.com/VeeLume/streamdeck-counter/internal/service/plugin"
	"github.com/VeeLume/streamdeck-counter/internal/version"
)

var (
	// options collects the flags passed by the Stream Deck application.
	options plugin.Options

	// rootCmd represents the plugin process started by the Stream Deck application.
	rootCmd = &cobra.Command{
		Use:   "streamdeck-counter",
		Short: "Counter, timer and stopwatch keys for the Stream Deck.",
		Long: `Runs the counter plugin for the Elgato Stream Deck.

The Stream Deck application starts this binary with the websocket port, the
plugin UUID, the registration event and a JSON description of the host.
Counters, timers and stopwatches keep their values in the plugin's global
settings, so they survive restarts of the application.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return plugin.Run(ctx, &options)
		},
	}
)

// hostFlags are the flags the Stream Deck application passes with a single dash.
var hostFlags = []string{"port", "pluginUUID", "registerEvent", "info"}

// Execute runs the plugin CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	rootCmd.SetArgs(NormalizeArgs(os.Args[1:]))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// NormalizeArgs rewrites the host's single-dash long flags (-port 28196) to
// the double-dash form cobra expects. Other arguments pass through unchanged.
func NormalizeArgs(args []string) []string {
	out := make([]string, len(args))

	for i, arg := range args {
		out[i] = arg

		if !strings.HasPrefix(arg, "-") || strings.HasPrefix(arg, "--") {
			continue
		}

		name, _, _ := strings.Cut(arg[1:], "=")
		for _, flag := range hostFlags {
			if name == flag {
				out[i] = "-" + arg
				break
			}
		}
	}

	return out
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.Flags()

	// Host-supplied connection flags.
	flags.IntVar(&options.Port, "port", 0, "websocket port of the Stream Deck application")
	flags.StringVar(&options.PluginUUID, "pluginUUID", "", "unique identifier of this plugin instance")
	flags.StringVar(&options.RegisterEvent, "registerEvent", "", "event used to register the plugin")
	flags.StringVar(&options.Info, "info", "", "JSON description of the Stream Deck application")

	// Local settings.
	flags.StringVarP(&options.ConfigPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	flags.StringVar(&options.LogLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
}
