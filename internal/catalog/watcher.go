package catalog

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/Huntman1210/L.N.A.E.-sub000/internal/modes"
)

// DefaultDebounce is how long a file must be quiet before it is (re)loaded.
const DefaultDebounce = 250 * time.Millisecond

// Watcher registers profiles from catalog files that appear or change while the
// process runs. Profiles already registered are skipped; removals are ignored because
// the registry never forgets a profile.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	loader   *Loader
	reg      Registrar
	patterns []string
	debounce time.Duration
	pending  map[string]time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stats    WatcherStats
	log      zerolog.Logger
}

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	FilesLoaded   int
	Registered    int
	Skipped       int
	Errors        int
	LastEventPath string
	LastEventTime time.Time
}

// NewWatcher creates a watcher for patterns. Call Start to begin watching.
func NewWatcher(loader *Loader, reg Registrar, patterns []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	clean := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p != "" {
			clean = append(clean, filepath.Clean(p))
		}
	}
	return &Watcher{
		watcher:  fw,
		loader:   loader,
		reg:      reg,
		patterns: clean,
		debounce: DefaultDebounce,
		pending:  make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      loader.log.With().Str("subsystem", "watcher").Logger(),
	}, nil
}

// SetDebounce changes the quiet period. It must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Start adds the directories behind every pattern and begins watching. It does not
// block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, pattern := range w.patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		base = filepath.FromSlash(base)
		if !isGlob(pattern) {
			base = filepath.Dir(pattern)
		}
		if err := w.addTree(base); err != nil {
			w.log.Warn().Err(err).Str("dir", base).Msg("cannot watch catalog directory")
		}
	}

	go w.run(ctx)
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.log.Error().Err(err).Msg("close watcher")
	}
}

// Stats returns a copy of the watcher counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := time.NewTicker(w.debounce / 2)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("watch error")
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-tick.C:
			w.flush()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", event.Name).Msg("cannot watch new directory")
			}
			return
		}
	}
	if !w.matches(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.stats.LastEventPath = event.Name
	w.stats.LastEventTime = time.Now()
	w.mu.Unlock()
}

// flush loads every pending file that has been quiet for the debounce period.
func (w *Watcher) flush() {
	now := time.Now()
	var ready []string

	w.mu.Lock()
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.load(path)
	}
}

func (w *Watcher) load(path string) {
	profiles, err := w.loader.LoadFile(path)
	if err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("catalog file rejected")
		w.mu.Lock()
		w.stats.Errors++
		w.mu.Unlock()
		return
	}

	var registered, skipped, failed int
	for _, p := range profiles {
		_, err := w.reg.Register(p)
		switch {
		case err == nil:
			registered++
		case errors.Is(err, modes.ErrDuplicateSlug):
			skipped++
			w.log.Debug().Str("slug", p.Slug).Str("path", path).Msg("profile already registered")
		default:
			failed++
			w.log.Warn().Err(err).Str("slug", p.Slug).Str("path", path).Msg("profile rejected")
		}
	}

	w.mu.Lock()
	w.stats.FilesLoaded++
	w.stats.Registered += registered
	w.stats.Skipped += skipped
	w.stats.Errors += failed
	w.mu.Unlock()

	w.log.Info().Str("path", path).Int("registered", registered).Int("skipped", skipped).Msg("catalog file reloaded")
}

func (w *Watcher) matches(path string) bool {
	path = filepath.Clean(path)
	for _, pattern := range w.patterns {
		if !isGlob(pattern) {
			if path == pattern {
				return true
			}
			continue
		}
		if ok, _ := doublestar.PathMatch(pattern, path); ok {
			return true
		}
	}
	return false
}

// addTree watches dir and, for recursive patterns, every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}
