package services

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 300 * time.Millisecond

// Watcher reports changed markdown files under the content directories. Rapid saves
// of the same file collapse into one callback after the debounce window.
type Watcher struct {
	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	repo     string
	dirs     []string
	debounce time.Duration
	onChange func(rel string)
	logger   *zap.Logger
	pending  map[string]*time.Timer
	running  bool
	stopped  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher watches dirs (repo-relative) and calls onChange with the repo-relative
// path of each changed file, after invalidating the post cache.
func NewWatcher(repo string, dirs []string, debounce time.Duration, logger *zap.Logger, onChange func(rel string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		fsw:      fsw,
		repo:     repo,
		dirs:     dirs,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		pending:  map[string]*time.Timer{},
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start registers the directories and begins delivering events. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running || w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		root := filepath.Join(w.repo, dir)
		if _, err := os.Stat(root); err != nil {
			w.logger.Debug("skipping missing watch dir", zap.String("dir", root))
			continue
		}
		if err := w.addTree(root); err != nil {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return err
		}
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			w.logger.Debug("watching", zap.String("dir", path))
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watch new dir", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}
	if !isMarkdown(event.Name) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	rel, err := filepath.Rel(w.repo, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.pending[rel]; ok {
		t.Stop()
	}
	w.pending[rel] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, rel)
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}
		InvalidateCache()
		if w.onChange != nil {
			w.onChange(rel)
		}
	})
}

// Stop ends the event loop and releases the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	running := w.running
	for rel, t := range w.pending {
		t.Stop()
		delete(w.pending, rel)
	}
	close(w.stopCh)
	w.mu.Unlock()

	if running {
		<-w.doneCh
	}
	return w.fsw.Close()
}
