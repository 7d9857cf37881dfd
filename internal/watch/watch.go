// Package watch reports changes to the files behind a connection, so the
// catalog can be refreshed when another process alters the database.
package watch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDelay is how long the watcher waits for writes to settle.
const DefaultDelay = 500 * time.Millisecond

// companions are the sidecar files engines write next to a database.
var companions = []string{"", "-wal", "-journal", ".wal"}

// Watcher sends one event per burst of changes to the watched files.
type Watcher struct {
	fs     *fsnotify.Watcher
	files  map[string]string
	delay  time.Duration
	logger *slog.Logger
	events chan string

	mu    sync.Mutex
	timer *time.Timer
	last  string
	done  chan struct{}
	once  sync.Once
}

// New watches paths. Directories are watched rather than files, since
// engines and editors often replace files instead of writing in place.
func New(paths []string, delay time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		fs:     fs,
		files:  make(map[string]string),
		delay:  delay,
		logger: logger,
		events: make(chan string, 1),
		done:   make(chan struct{}),
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		for _, suffix := range companions {
			w.files[abs+suffix] = abs
		}
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fs.Add(dir); err != nil {
			fs.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	go w.loop()
	return w, nil
}

// Next blocks until a watched database changes and its writes settle, and
// returns its path. It returns false once the watcher is closed.
func (w *Watcher) Next() (string, bool) {
	select {
	case path := <-w.events:
		return path, true
	case <-w.done:
		return "", false
	}
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	target, ok := w.files[filepath.Clean(ev.Name)]
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.last = target
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	path := w.last
	w.timer = nil
	w.mu.Unlock()
	select {
	case <-w.done:
		return
	default:
	}
	select {
	case w.events <- path:
		w.logger.Debug("database changed on disk", "path", path)
	default:
		// An undelivered event already covers this change.
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.fs.Close()
	})
	return err
}

// FilePaths returns the connection strings that name existing local files,
// with any scheme prefix or query string removed.
func FilePaths(connStr []string) []string {
	var out []string
	for _, s := range connStr {
		if scheme, rest, ok := strings.Cut(s, "://"); ok {
			switch scheme {
			case "duckdb", "sqlite", "file":
				s = rest
			default:
				continue
			}
		}
		s, _, _ = strings.Cut(s, "?")
		if s == "" || s == ":memory:" {
			continue
		}
		if info, err := os.Stat(s); err == nil && info.Mode().IsRegular() {
			out = append(out, s)
		}
	}
	return out
}
