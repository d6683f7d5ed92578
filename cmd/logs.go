package cmd

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
	"github.com/stratustools/core/pkg/paths"
	"github.com/stratustools/core/tui/theme"
	"golang.org/x/sync/errgroup"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show today's stratus log files",
		Long: `Prints the per-component log files written today, optionally
following them as they grow.

Examples:
  # Follow every component
  stratus logs -f

  # Only the event stream and store
  stratus logs -f --component stream,store`,
		Args: cobra.NoArgs,
		RunE: runLogs,
	}
	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().StringSlice("component", nil, "Only show these components (comma-separated)")
	cmd.Flags().IntP("lines", "n", 50, "Lines to show per file when not following")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	follow, _ := cmd.Flags().GetBool("follow")
	components, _ := cmd.Flags().GetStringSlice("component")
	lines, _ := cmd.Flags().GetInt("lines")

	files, err := logFiles(time.Now(), components)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "No log files for today in %s\n", paths.LogDir())
		return nil
	}

	if !follow {
		for _, component := range sortedComponents(files) {
			if err := tailLog(cmd.Context(), cmd.OutOrStdout(), component, files[component], false, lines); err != nil {
				return err
			}
		}
		return nil
	}

	out := &lockedWriter{w: cmd.OutOrStdout()}
	g, ctx := errgroup.WithContext(cmd.Context())
	for component, path := range files {
		g.Go(func() error {
			return tailLog(ctx, out, component, path, true, 0)
		})
	}
	return g.Wait()
}

// logFiles maps component names to today's log file, filtered by components.
func logFiles(day time.Time, components []string) (map[string]string, error) {
	suffix := "-" + day.Format("2006-01-02") + ".log"
	matches, err := filepath.Glob(filepath.Join(paths.LogDir(), "*"+suffix))
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(components))
	for _, c := range components {
		wanted[strings.TrimSpace(c)] = true
	}

	files := make(map[string]string)
	for _, path := range matches {
		component := strings.TrimSuffix(filepath.Base(path), suffix)
		if len(wanted) > 0 && !wanted[component] {
			continue
		}
		files[component] = path
	}
	return files, nil
}

func tailLog(ctx context.Context, out io.Writer, component, path string, follow bool, keep int) error {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    follow,
		ReOpen:    follow,
		MustExist: true,
		Logger:    stdlog.New(io.Discard, "", 0),
	})
	if err != nil {
		return fmt.Errorf("tail %s: %w", path, err)
	}
	defer t.Cleanup()

	prefix := theme.DefaultTheme.Info.Render(fmt.Sprintf("[%s]", component))
	var backlog []string

	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				for _, l := range backlog {
					fmt.Fprintln(out, prefix+" "+l)
				}
				return t.Wait()
			}
			if line.Err != nil {
				continue
			}
			if follow {
				fmt.Fprintln(out, prefix+" "+line.Text)
				continue
			}
			backlog = append(backlog, line.Text)
			if keep > 0 && len(backlog) > keep {
				backlog = backlog[len(backlog)-keep:]
			}
		}
	}
}

// lockedWriter serializes writes from the per-file tail goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// sortedComponents lists component names in a stable order.
func sortedComponents(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
