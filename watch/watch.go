// Package watch monitors the directories that loaded modules were read from
// and reports, after a debounce window, which loaded modules no longer match
// their on-disk object files. Events within the window are coalesced so the
// callback fires once per burst of filesystem activity.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/loader"
)

// defaultDebounce is the quiet period after the last filesystem event before
// the callback fires, long enough for a compiler writing then renaming a
// temp file to settle.
const defaultDebounce = 250 * time.Millisecond

// Config holds the parameters for a Watcher.
type Config struct {
	// Loader supplies the loaded-module set and status checks.
	Loader *loader.Loader

	// Debounce is the quiet period before OnModified fires. Zero or negative
	// values fall back to the default.
	Debounce time.Duration

	// OnModified is called with the loaded modules whose on-disk object
	// files changed or disappeared since load. A nil callback is a no-op.
	OnModified func(modules []string)

	// Logger receives watch lifecycle events. The zero value is silent.
	Logger zerolog.Logger
}

// Watcher reports modified modules. Create with New, drive with Run.
type Watcher struct {
	cfg Config
	fsw *fsnotify.Watcher
}

// New creates a Watcher over the origin directories of every currently
// loaded module. Origins that are not filesystem paths (binary loads with
// symbolic labels) are skipped.
func New(cfg Config) (*Watcher, error) {
	if cfg.Loader == nil {
		return nil, fmt.Errorf("watch: loader is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{cfg: cfg, fsw: fsw}
	seen := map[string]bool{}
	for _, m := range cfg.Loader.AllLoaded() {
		dir := filepath.Dir(m.Origin)
		if dir == "." || seen[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			cfg.Logger.Debug().Str("dir", dir).Err(err).Msg("skipping unwatchable origin")
			continue
		}
		seen[dir] = true
	}
	return w, nil
}

// Run blocks, dispatching debounced OnModified callbacks until ctx is done
// or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			w.cfg.Logger.Debug().Str("file", event.Name).Str("op", event.Op.String()).
				Msg("object file event")
			if timer == nil {
				timer = time.NewTimer(w.cfg.Debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.cfg.Debounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			w.notify()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.cfg.Logger.Warn().Err(err).Msg("watch error")
		}
	}
}

// Close releases the underlying filesystem watcher. Run returns after Close.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) notify() {
	loaded := w.cfg.Loader.AllLoaded()
	names := make([]string, len(loaded))
	for i, m := range loaded {
		names[i] = m.Name
	}
	var changed []string
	for name, status := range w.cfg.Loader.ModuleStatus(names) {
		if status == loader.StatusModified || status == loader.StatusRemoved {
			changed = append(changed, name)
		}
	}
	if len(changed) == 0 || w.cfg.OnModified == nil {
		return
	}
	sort.Strings(changed)
	w.cfg.Logger.Info().Strs("modules", changed).Msg("modules changed on disk")
	w.cfg.OnModified(changed)
}

// relevant filters events down to writes, creates, renames, and removals of
// object containers.
func relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, codeobj.Ext) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Rename) || event.Op.Has(fsnotify.Remove)
}
