package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/stratustools/core/cli"
	"github.com/stratustools/core/config"
	"github.com/stratustools/core/internal/store"
	"github.com/stratustools/core/logging"
	"github.com/stratustools/core/tui"
	"github.com/stratustools/core/tui/status"
	"github.com/stratustools/core/tui/theme"
	"golang.org/x/sync/errgroup"
)

// NewWatchCmd creates the `watch` command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the server dashboard live",
		Long: `Keeps the event stream open and prints every state change until
interrupted. With --tui the dashboard is shown as an interactive view.

Changes to the loaded configuration files are picked up for the logging
level; server address changes need a restart.

Examples:
  # Interactive dashboard
  stratus watch --tui

  # One line per change, e.g. for a log pane
  stratus watch`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}
	cmd.Flags().BoolP("tui", "i", false, "Show the interactive dashboard")
	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	useTUI, _ := cmd.Flags().GetBool("tui")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	g, ctx := errgroup.WithContext(cmd.Context())

	if len(s.cfg.Sources) > 0 {
		w, err := config.NewWatcher(s.cfg.Sources, 200*time.Millisecond, s.logger, func(file string) {
			reloadConfig(cmd, s, file)
		})
		if err != nil {
			s.logger.WithError(err).Warn("Config watching disabled")
		} else {
			defer w.Close()
			g.Go(func() error {
				w.Start(ctx)
				return nil
			})
		}
	}

	s.start(ctx)

	if useTUI {
		tui.InitializeTUI()
		model := status.New(ctx, s.store)
		defer model.Close()

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		g.Go(func() error {
			_, err := p.Run()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				err = nil
			}
			// Quitting the view ends the command.
			return errQuit(err)
		})
	} else {
		updates := s.store.Subscribe()
		defer s.store.Unsubscribe(updates)
		g.Go(func() error {
			return printChanges(ctx, cmd.OutOrStdout(), s.store, updates)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, errStopped) {
		return err
	}
	return nil
}

// errStopped ends the errgroup when the interactive view is closed.
var errStopped = errors.New("stopped")

func errQuit(err error) error {
	if err != nil {
		return err
	}
	return errStopped
}

// printChanges writes one line per store notification.
func printChanges(ctx context.Context, w io.Writer, st *store.Store, updates chan store.Update) error {
	t := theme.DefaultTheme
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			fmt.Fprintln(w, describeChange(t, u, st.Get()))
		}
	}
}

func describeChange(t *theme.Theme, u store.Update, state store.State) string {
	stamp := t.Muted.Render(time.Now().Format("15:04:05"))
	kind := t.Info.Render(fmt.Sprintf("%-10s", u.Type))

	var detail string
	switch u.Type {
	case store.UpdateConnection:
		detail = t.Error.Render("disconnected")
		if state.Connected {
			detail = t.Success.Render("connected")
		}
	case store.UpdateSnapshot:
		switch {
		case state.Error != "":
			detail = t.Error.Render(state.Error)
		case state.Snapshot != nil:
			phase := "none"
			if active := state.Snapshot.Active(); active != nil {
				phase = active.Phase
			}
			detail = fmt.Sprintf("%d workflows, active phase %s", len(state.Snapshot.Workflows), phase)
		}
	case store.UpdateVersion:
		if state.Version != nil {
			detail = "server " + state.Version.Current
		}
	case store.UpdateTracker:
		detail = string(state.Update.Phase)
		if n := len(state.Update.Log); n > 0 {
			detail += ": " + state.Update.Log[n-1]
		}
	case store.UpdateSwarm:
		detail = fmt.Sprintf("%d workers, rev %d", len(state.Heartbeats), state.SwarmRevision)
	}

	line := fmt.Sprintf("%s %s %s", stamp, kind, detail)
	if u.Source != "" {
		line += t.Muted.Render(" (" + u.Source + ")")
	}
	return line
}

func reloadConfig(cmd *cobra.Command, s *session, file string) {
	logger := s.logger.WithField("file", file)

	loaded, err := cli.LoadConfig(cmd)
	if err != nil {
		logger.WithError(err).Warn("Reloaded configuration is invalid, keeping the current one")
		return
	}

	var logCfg logging.Config
	if err := loaded.UnmarshalExtension("logging", &logCfg); err == nil && logCfg.Level != "" {
		if err := logging.SetLevel(logCfg.Level); err != nil {
			logger.WithError(err).Warn("Invalid logging level")
		}
	}
	if loaded.BaseURL() != s.cfg.BaseURL() || loaded.StreamURL() != s.cfg.StreamURL() {
		logger.Info("Server address changed, restart watch to apply")
	}
	logger.Info("Configuration reloaded")
}
