// Package reload watches the on-disk site tree and reports settled changes.
package reload

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is how long the tree must stay quiet before a change is
// reported.
const DefaultDelay = 200 * time.Millisecond

// Watcher calls OnChange once a burst of filesystem events has settled.
type Watcher struct {
	dirs     []string
	delay    time.Duration
	onChange func(ctx context.Context)
	log      *slog.Logger
	fsw      *fsnotify.Watcher
}

// New watches every directory below dirs, recursively. Missing directories
// are ignored.
func New(dirs []string, delay time.Duration, onChange func(ctx context.Context), log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	if log == nil {
		log = slog.Default()
	}
	w := &Watcher{dirs: dirs, delay: delay, onChange: onChange, log: log, fsw: fsw}
	for _, d := range dirs {
		w.addRecursive(d)
	}
	return w, nil
}

func (w *Watcher) addRecursive(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.log.Warn("watch failed", "dir", p, "error", err)
		}
		return nil
	})
}

// Run delivers changes until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	// settle fires once the tree has been quiet for the delay.
	var settle <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					w.addRecursive(ev.Name)
				}
			}
			w.log.Debug("file changed", "path", ev.Name, "op", ev.Op.String())
			settle = time.After(w.delay)

		case <-settle:
			settle = nil
			w.onChange(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}
