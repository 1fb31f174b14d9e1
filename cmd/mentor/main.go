// Command mentor runs the AI mentor API and its maintenance tasks.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-mentor-backend/internal/config"
	"github.com/tbourn/go-mentor-backend/internal/observability"
	"github.com/tbourn/go-mentor-backend/internal/sysutil"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = ""
)

var (
	envFile string

	cfg    config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "mentor",
	Short:         "AI mentor API",
	Long:          "mentor serves guided lesson conversations grounded in uploaded course documents.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(envFile); err != nil {
			return err
		}
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = c

		sysutil.SetLogLevel(cfg.LogLevel)
		logger = sysutil.NewLogger(os.Stderr, cfg.LogPretty, cfg.OTEL.ServiceName).Hook(observability.TraceHook{})
		log.Logger = logger
		return nil
	},
}

// loadEnv reads path into the environment without overriding variables that
// are already set. A missing default file is fine.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file read before the environment")
	rootCmd.AddCommand(serveCmd, migrateCmd, reingestCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mentor:", err)
		os.Exit(1)
	}
}
