package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/glasschat/glasschat-client/internal"
)

// Values swapped in by go-releaser at build time
var (
	version = "dev"
)

var logLevels = map[string]log.Level{
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarnLevel,
	"error": log.ErrorLevel,
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		token      string
	)

	root := &cobra.Command{
		Use:           "glasschat",
		Short:         "Terminal client for glasschat",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level, ok := logLevels[logLevel]
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			// init DebugBuffer
			db := &internal.DebugBuffer{}

			logHandler := log.New(db)

			// Force color output for logger.
			// By default, the charm logger package disables color for non-TTY.
			logHandler.SetColorProfile(termenv.TrueColor)
			logHandler.SetLevel(level)
			logHandler.SetReportTimestamp(true)

			logger := slog.New(logHandler)
			logger.Info("Started glasschat client", "Version", version, "config", configPath)

			model, err := internal.NewModel(configPath, token, logger, db)
			if err != nil {
				return err
			}
			if err := model.Start(); err != nil {
				logger.Error("Application error", "err", err)
				return err
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "Path to config file")
	root.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.Flags().StringVar(&token, "session", "", "Resume the session with this token")

	root.AddCommand(newSessionsCmd(&configPath))
	root.AddCommand(newVersionCmd())
	return root
}

func newSessionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := internal.ListSessions(*configPath)
			if err != nil {
				return err
			}
			tokens := make([]string, 0, len(sessions))
			for token := range sessions {
				tokens = append(tokens, token)
			}
			sort.Strings(tokens)

			out := cmd.OutOrStdout()
			if len(tokens) == 0 {
				_, err := fmt.Fprintln(out, "No saved sessions")
				return err
			}
			for _, token := range tokens {
				if _, err := fmt.Fprintf(out, "%s\t%s\n", token, sessions[token]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "glasschat %s\n", version)
			return err
		},
	}
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "glasschat-config.yaml"
	}
	return filepath.Join(dir, "glasschat", "config.yaml")
}
