package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stratus.yml")
	writeFile(t, path, "server:\n  port: 1\n")
	other := filepath.Join(dir, "unrelated.txt")

	changed := make(chan string, 4)
	w, err := NewWatcher([]string{path}, 10*time.Millisecond, logrus.NewEntry(logrus.New()), func(file string) {
		changed <- file
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, os.WriteFile(other, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 2\n"), 0644))

	select {
	case file := <-changed:
		want, _ := filepath.Abs(path)
		assert.Equal(t, want, file)
	case <-time.After(5 * time.Second):
		t.Fatal("expected a change notification")
	}
}
