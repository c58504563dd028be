package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pixelforge/forge/cmd/forgeapi/cmd/assignments"
	"github.com/pixelforge/forge/cmd/forgeapi/cmd/users"
	"github.com/pixelforge/forge/internal/config"
	"github.com/pixelforge/forge/internal/logging"
)

var (
	cfg        *config.Config
	logger     *zap.SugaredLogger
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "forgeapi",
	Short: "Forge API server for project and developer management",
	Long: `Forge API server manages accounts, projects, developer assignments and
project documents behind a role-checked HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file %s: %w", configFile, err)
			}
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger, err = logging.New(cfg.LogLevel, cfg.Debug)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML/TOML/JSON config file")
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: FORGE_DATABASE_URL)")
	rootCmd.PersistentFlags().String("server-addr", "", "Server bind address (env: FORGE_SERVER_ADDR)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: FORGE_DEBUG)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (env: FORGE_LOG_LEVEL)")

	bindFlag("database_url", "db-url")
	bindFlag("server_addr", "server-addr")
	bindFlag("debug", "debug")
	bindFlag("log_level", "log-level")

	// Add subcommands
	rootCmd.AddCommand(users.UsersCmd)
	rootCmd.AddCommand(assignments.AssignmentsCmd)
}

// bindFlag ties a persistent flag to a viper key so flags beat env and file values.
func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", flag, err))
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
