package tui

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"rhizome/internal/api"
	"rhizome/internal/config"
	"rhizome/internal/store"
	"rhizome/internal/syncer"
)

// Run wires the client, sync engine, and state store together and blocks
// until the user quits or the context is cancelled. startPage, when
// non-empty, names the page (title or uid) to open instead of the last
// visited one.
func Run(ctx context.Context, cfg config.Config, log *slog.Logger, startPage string) error {
	var client *api.Client
	if cfg.Graph.BaseURL != "" {
		client = api.NewWithBaseURL(cfg.Graph.BaseURL, cfg.Graph.Token)
	} else {
		client = api.New(cfg.Graph.Name, cfg.Graph.Token)
	}

	eng := syncer.NewEngine(client, log)
	if cfg.Sync.MaxRetries > 0 {
		eng.MaxAttempts = cfg.Sync.MaxRetries
	}

	state, err := store.Open(ctx, cfg.State.Path)
	if err != nil {
		// Degraded but usable: the outline works without local state.
		log.Warn("state store unavailable", "path", cfg.State.Path, "err", err)
		state = nil
	}
	if state != nil {
		defer state.Close()
	}

	log.Info("starting", "graph", cfg.Graph.Name, "color_profile", ColorProfileName())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := eng.Run(ctx)
		if err != nil && err != context.Canceled {
			return err
		}
		return nil
	})

	m := newAppModel(ctx, cfg, log, client, eng, state)
	m.startPage = startPage
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	g.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			return fmt.Errorf("tui: %w", err)
		}
		return nil
	})

	return g.Wait()
}
