// Package watch monitors workspace platform files using fsnotify and
// emits debounced change batches for re-synchronization.
package watch

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alembic-run/alembic/internal/platform"
)

// Watcher monitors a workspace's platform files for changes.
type Watcher struct {
	Workspace string
	Changes   <-chan []string // read-only external channel, batches of changed files

	platforms []platform.Platform
	changes   chan []string
	done      chan struct{}
	watcher   *fsnotify.Watcher
	debounce  time.Duration
}

// New creates a watcher over the workspace's root files and platform
// directories.
func New(workspace string, platforms []platform.Platform) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan []string, 4)
	w := &Watcher{
		Workspace: workspace,
		Changes:   ch,
		platforms: platforms,
		changes:   ch,
		done:      make(chan struct{}),
		watcher:   fw,
		debounce:  250 * time.Millisecond,
	}
	return w, nil
}

// Start begins watching. The workspace root covers root files; each
// existing platform directory is watched individually.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Workspace); err != nil {
		return err
	}
	for _, p := range w.platforms {
		for _, spec := range p.Dirs {
			dir := filepath.Join(w.Workspace, spec.Dir)
			if _, err := os.Stat(dir); err != nil {
				continue
			}
			if err := w.watcher.Add(dir); err != nil {
				return err
			}
		}
		// Root files nested below the workspace root (copilot) need
		// their own parent dir.
		if parent := filepath.Dir(p.RootFile); parent != "." {
			dir := filepath.Join(w.Workspace, parent)
			if _, err := os.Stat(dir); err == nil {
				if err := w.watcher.Add(dir); err != nil {
					return err
				}
			}
		}
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels. Batches still in flight are
// discarded so the loop can always finish its final send.
func (w *Watcher) Stop() {
	w.watcher.Close() //nolint:errcheck // shutting down
	for {
		select {
		case <-w.changes:
		case <-w.done:
			close(w.changes)
			return
		}
	}
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: track last event time per file so editor write bursts
	// collapse into one batch.
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				if batch := keys(pending); len(batch) > 0 {
					w.changes <- batch
				}
				return
			}
			if !w.isPlatformFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			now := time.Now()
			var batch []string
			for file, t := range pending {
				if now.Sub(t) >= w.debounce {
					batch = append(batch, file)
					delete(pending, file)
				}
			}
			if len(batch) > 0 {
				w.changes <- batch
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal; the next pass re-reads.
		}
	}
}

// isPlatformFile reports whether an absolute path maps to a registry
// path under any watched platform.
func (w *Watcher) isPlatformFile(name string) bool {
	rel, err := filepath.Rel(w.Workspace, name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range w.platforms {
		if _, ok := p.RegistryPath(rel); ok {
			return true
		}
	}
	return false
}

func keys(m map[string]time.Time) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
