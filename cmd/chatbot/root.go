package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	internal "github.com/sagarreddypatil/nlp-discord-chatbot/chatbot"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/app"
	"github.com/sagarreddypatil/nlp-discord-chatbot/chatbot/config"
)

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the config file")
	rootCmd.PersistentFlags().String("log-level", "", "Override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Load environment variables from this file when it exists")

	rootCmd.AddCommand(replCmd, discordCmd, configCmd)
}

var rootCmd = &cobra.Command{
	Use:           internal.DefaultAppName,
	Short:         "Conversational chatbot backed by pretrained dialogue models",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// loadConfig reads the env file, the config file and the flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	return cfg, nil
}

// runApp builds the App, runs fn until it returns or the process is
// interrupted, then closes the App with a fresh context so sessions are
// flushed even after a signal.
func runApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start")
		return err
	}
	a.WatchConfig()

	runErr := fn(ctx, a)

	if err := a.Close(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Shutdown incomplete")
		if runErr == nil {
			runErr = err
		}
	}
	logger.Info().Msg("Stopped")
	return runErr
}
