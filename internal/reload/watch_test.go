package reload

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	views := filepath.Join(dir, "views", "default")
	require.NoError(t, os.MkdirAll(views, 0o755))

	var calls atomic.Int32
	w, err := New([]string{filepath.Join(dir, "views"), filepath.Join(dir, "missing")}, 100*time.Millisecond,
		func(ctx context.Context) { calls.Add(1) }, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(views, "index.html"), []byte("v"), 0o644))
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, 3*time.Second, 20*time.Millisecond)

	// new directories are picked up
	sub := filepath.Join(views, "blog")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "post.html"), []byte("p"), 0o644))
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
