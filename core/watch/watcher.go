package watch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Resolver maps a manifest path relative to the watched root to a module id.
type Resolver func(rel string) (string, bool)

// Watcher reports module ids whose manifest files change below a directory.
type Watcher struct {
	root     string
	resolve  Resolver
	onChange func(id string)
	log      *zap.Logger

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New creates a watcher over root. onChange runs on the watcher goroutine.
func New(root string, resolve Resolver, onChange func(id string), log *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		root:     abs,
		resolve:  resolve,
		onChange: onChange,
		log:      log,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start adds root and every directory below it and begins delivering events.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.watcher = watcher

	if err := w.addTree(w.root); err != nil {
		watcher.Close()
		w.watcher = nil
		return err
	}

	go w.loop()

	w.log.Info("Watching manifests", zap.String("root", w.root))
	return nil
}

// Stop ends the watch loop and releases the watcher.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		if w.watcher != nil {
			w.watcher.Close()
			<-w.done
		}
	})
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("watch directory %s: %w", p, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn("Failed to watch new directory", zap.String("dir", event.Name), zap.Error(err))
			}
			return
		}
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}
	id, ok := w.resolve(rel)
	if !ok {
		return
	}

	w.log.Debug("Manifest changed",
		zap.String("event", event.Op.String()),
		zap.String("file", rel),
		zap.String("module", id))
	w.onChange(id)
}
