package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"starlingcal/internal/config"
	appLog "starlingcal/internal/log"
	"starlingcal/internal/web"
)

const version = "1.0.0"

// flagConfig holds CLI flag values applied on top of the loaded config.
type flagConfig struct {
	configPath string
	envFile    string
	listenHost string
	port       int
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags flagConfig

	root := &cobra.Command{
		Use:           "starlingcal",
		Short:         "Serve Starling Bank payments as an iCalendar feed",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Path to optional YAML config file")
	pf.StringVar(&flags.envFile, "env-file", ".env", "Path to optional dotenv file")
	pf.StringVar(&flags.listenHost, "host", "", "HTTP listen host (overrides config)")
	pf.IntVar(&flags.port, "port", 0, "HTTP listen port (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "init-config",
		Short: "Write the effective configuration to --config",
		RunE: func(_ *cobra.Command, _ []string) error {
			if flags.configPath == "" {
				return fmt.Errorf("--config is required")
			}
			conf, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if err := config.Save(flags.configPath, conf); err != nil {
				return err
			}
			appLog.Info("config written", "config_path", flags.configPath)
			return nil
		},
	})

	return root
}

func loadConfig(flags flagConfig) (*config.Config, error) {
	if err := config.LoadEnvFile(flags.envFile); err != nil {
		return nil, err
	}
	conf, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	// CLI flags override file and environment.
	if flags.listenHost != "" {
		conf.Host = flags.listenHost
	}
	if flags.port != 0 {
		conf.Port = flags.port
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func runServe(parent context.Context, flags flagConfig) error {
	appLog.Info("starlingcal starting", "version", version)

	conf, err := loadConfig(flags)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return err
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen(),
		"timezone", conf.Timezone,
		"window_days", conf.WindowDays,
		"api_base_url", conf.APIBaseURL,
		"redirect_https", conf.RedirectHTTPS,
		"log_level", conf.LogLevel,
	)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := web.StartServer(ctx, conf); err != nil {
		appLog.Error("http server failed", err)
		return err
	}

	appLog.Info("starlingcal exiting")
	return nil
}
