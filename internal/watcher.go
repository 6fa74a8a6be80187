package internal

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchEvent is a file that has stopped changing for the settle delay.
type WatchEvent struct {
	Path string
}

// Watcher wraps an fsnotify watcher. It follows new subdirectories and
// reports a file once no write has touched it for the settle delay.
type Watcher struct {
	watcher *fsnotify.Watcher
	settle  time.Duration
	skip    []string
	events  chan *WatchEvent
	errors  chan error
	done    chan struct{}

	mu        sync.Mutex
	pending   map[string]*pendingFile
	seq       uint64
	closeOnce sync.Once
}

// pendingFile is a file waiting to settle. seq tells a stale timer, one
// that fired while being rescheduled, from the current one.
type pendingFile struct {
	timer *time.Timer
	seq   uint64
}

// NewWatcher watches dirs recursively. Directories listed in skip, and the
// session directory, are never descended into.
func NewWatcher(settle time.Duration, skip []string, dirs ...string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher: fsWatcher,
		settle:  settle,
		events:  make(chan *WatchEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
		pending: make(map[string]*pendingFile),
	}
	for _, s := range skip {
		if abs, err := filepath.Abs(s); err == nil {
			w.skip = append(w.skip, abs)
		}
	}

	for _, dir := range dirs {
		if err := w.addRecursive(dir, false); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}

	go w.processEvents()

	return w, nil
}

func (w *Watcher) skipped(path string) bool {
	if filepath.Base(path) == sessionDirName {
		return true
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, s := range w.skip {
		if abs == s {
			return true
		}
	}
	return false
}

// addRecursive adds a directory and all its subdirectories to the watcher.
// With schedule set, files already inside are reported too: they may have
// been written before the watch was in place.
func (w *Watcher) addRecursive(root string, schedule bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if w.skipped(path) {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		if schedule && d.Type().IsRegular() {
			w.schedule(path)
		}
		return nil
	})
}

// processEvents turns raw fsnotify events into settled file events
func (w *Watcher) processEvents() {
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
			select {
			case w.errors <- err:
			default:
				// Error channel is full, drop error
			}

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if isTempFile(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addRecursive(event.Name, true); err != nil {
				w.sendError(err)
			}
			return
		}
		w.schedule(event.Name)
	case event.Has(fsnotify.Write):
		w.schedule(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(event.Name)
	}
}

// schedule (re)starts the settle timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
	}
	w.seq++
	seq := w.seq
	w.pending[path] = &pendingFile{
		timer: time.AfterFunc(w.settle, func() { w.fire(path, seq) }),
		seq:   seq,
	}
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.timer.Stop()
		delete(w.pending, path)
	}
}

// fire reports path unless the timer that called it has been replaced.
func (w *Watcher) fire(path string, seq uint64) {
	w.mu.Lock()
	p, ok := w.pending[path]
	if !ok || p.seq != seq {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	select {
	case w.events <- &WatchEvent{Path: path}:
	case <-w.done:
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// Events returns the channel of settled files
func (w *Watcher) Events() <-chan *WatchEvent {
	return w.events
}

// Errors returns the channel of watcher errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops the watcher and drops pending files.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for path, p := range w.pending {
			p.timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

// isTempFile matches the temporary files written by copyFileAtomic.
func isTempFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, ".tmp")
}
