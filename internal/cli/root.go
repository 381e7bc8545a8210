// Package cli defines the command-line surface. The TUI is the root
// command; utility subcommands cover scripting and debugging.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rhizome/internal/api"
	"rhizome/internal/config"
	"rhizome/internal/store"
	"rhizome/internal/tui"
)

var (
	flagConfig   string
	flagGraph    string
	flagPage     string
	flagDebugLog string
)

func Execute() int {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rhizome",
		Short: "Keyboard-driven outliner for a remote note graph",
		Long: `rhizome is a terminal client for a tree-structured note backend.
It edits today's daily note as an outline: blocks nest, fold, link to
each other, and sync to the server in the background while you type.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tui.Run(ctx, cfg, log, flagPage)
		},
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", defaultConfigPath(), "config file")
	root.PersistentFlags().StringVar(&flagGraph, "graph", "", "graph name (overrides config)")
	root.Flags().StringVar(&flagPage, "page", "", "page title or uid to open instead of the last visited")
	root.PersistentFlags().StringVar(&flagDebugLog, "debug-log", "", "write debug logs to this file")

	root.AddCommand(newPullCmd(), newJournalCmd())
	return root
}

func setup() (config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if flagGraph != "" {
		cfg.Graph.Name = flagGraph
	}
	if flagDebugLog != "" {
		cfg.Log.Path = flagDebugLog
		cfg.Log.Level = config.LogLevel{Level: slog.LevelDebug}
	}
	log, closeLog, err := cfg.Logger()
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, log, closeLog, nil
}

// newPullCmd fetches a page and prints it as JSON, for scripting and for
// checking connectivity without starting the TUI.
func newPullCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "pull [page-uid]",
		Short: "Fetch a page and print it as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			day := time.Now()
			if date != "" {
				day, err = time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("bad --date: %w", err)
				}
			}
			uid := api.DailyNoteUID(day)
			if len(args) == 1 {
				uid = args[0]
			}

			var client *api.Client
			if cfg.Graph.BaseURL != "" {
				client = api.NewWithBaseURL(cfg.Graph.BaseURL, cfg.Graph.Token)
			} else {
				client = api.New(cfg.Graph.Name, cfg.Graph.Token)
			}
			page, err := client.PullPage(cmd.Context(), uid, day)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(page)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "daily note date (YYYY-MM-DD)")
	return cmd
}

// newJournalCmd prints recent sync journal entries, the first stop when
// a write seems to have gone missing.
func newJournalCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent sync journal entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closeLog, err := setup()
			if err != nil {
				return err
			}
			defer closeLog()

			st, err := store.Open(cmd.Context(), cfg.State.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.JournalRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, e := range entries {
				detail := e.Detail
				if detail != "" {
					detail = "  " + detail
				}
				fmt.Printf("%s  %-9s  %-12s  %s%s\n",
					e.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
					e.Status, e.Action.Action, e.BlockUID, detail)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "number of entries")
	return cmd
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "rhizome.yaml"
	}
	return filepath.Join(dir, "rhizome", "config.yaml")
}
