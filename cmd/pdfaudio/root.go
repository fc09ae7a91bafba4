package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pdf-audio/internal/config"
	"pdf-audio/internal/domain"
	"pdf-audio/internal/gateway"
	"pdf-audio/internal/observe"
	"pdf-audio/internal/player"
)

var (
	version   = "dev"
	gitCommit string
)

// cli holds global flags and the dependencies built from them.
type cli struct {
	configPath string
	apiURL     string
	debug      bool
	newPlayer  func() player.Player

	settings domain.Settings
	logger   *zap.SugaredLogger
	client   *gateway.Client
}

func newRootCommand() *cobra.Command {
	c := &cli{
		newPlayer: func() player.Player { return player.New() },
	}
	return c.rootCommand()
}

func (c *cli) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pdfaudio",
		Short:         "Convert PDF documents to spoken audio",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.prepare(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.configPath, "config", config.DefaultPath(), "settings file path")
	flags.StringVar(&c.apiURL, "api-url", "", "backend base URL (overrides API_BASE_URL)")
	flags.BoolVar(&c.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		c.newVoicesCommand(),
		c.newConvertCommand(),
		c.newDoctorCommand(),
		newVersionCommand(),
	)
	return cmd
}

// prepare loads settings and builds the logger and backend client.
func (c *cli) prepare(cmd *cobra.Command) error {
	settings, err := config.NewJSONStore(c.configPath).Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if cmd.Flags().Changed("api-url") {
		settings.APIBaseURL = c.apiURL
	}
	if c.debug {
		settings.DebugMode = true
	}
	c.settings = settings

	logger, err := observe.NewLogger(settings.DebugMode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	if !settings.DebugMode {
		logger = logger.Desugar().WithOptions(zap.IncreaseLevel(zap.WarnLevel)).Sugar()
	}
	c.logger = logger

	client, err := gateway.New(settings.APIBaseURL,
		gateway.WithTimeout(settings.RequestTimeout),
		gateway.WithLogger(logger),
		gateway.WithMetrics(observe.Default()),
	)
	if err != nil {
		return fmt.Errorf("configure backend client: %w", err)
	}
	c.client = client
	return nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Show version information",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			v := version
			if gitCommit != "" {
				v += fmt.Sprintf(" (git: %s)", gitCommit)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pdfaudio %s\n", v)
			fmt.Fprintf(cmd.OutOrStdout(), "  Go: %s\n", runtime.Version())
		},
	}
}
