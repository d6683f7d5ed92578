package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/internal/store"
	"github.com/stratustools/core/tui/theme"
)

// NewUpdateCmd creates the `update` command.
func NewUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Ask the server to update itself and follow the progress",
		Long: `Requests a self-update from the stratus server and prints progress
messages from the event stream until the update settles. The server
restarting onto the new build also counts as completion.`,
		Args: cobra.NoArgs,
		RunE: runUpdate,
	}
	cmd.Flags().Duration("timeout", 10*time.Minute, "Give up waiting after this long")
	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")

	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	updates := s.store.Subscribe()
	defer s.store.Unsubscribe(updates)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	s.start(ctx)
	if err := s.store.StartUpdate(ctx); err != nil {
		return err
	}
	return followUpdate(ctx, cmd, s.store, updates)
}

// followUpdate prints new tracker log lines until the update settles.
func followUpdate(ctx context.Context, cmd *cobra.Command, st *store.Store, updates chan store.Update) error {
	t := theme.DefaultTheme
	out := cmd.OutOrStdout()
	printed := 0

	for {
		tr := st.Get().Update
		for ; printed < len(tr.Log); printed++ {
			fmt.Fprintln(out, "  "+tr.Log[printed])
		}

		switch {
		case tr.Phase == store.PhaseCompleted:
			fmt.Fprintln(out, t.Success.Render("✓ Update complete"))
			return nil
		case tr.Failed():
			return errors.UpdateFailed(tr.Error)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrCodeUpdateFailed, "gave up waiting for the update to finish")
		case _, ok := <-updates:
			if !ok {
				return errors.New(errors.ErrCodeInternal, "store closed while waiting for the update")
			}
		}
	}
}
