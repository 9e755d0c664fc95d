package assets

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/cgpu/engine/core"
)

// DefaultSettle is how long a file must stay quiet before it is reloaded.
const DefaultSettle = 100 * time.Millisecond

var ErrWatcherClosed = errors.New("watcher already closed")

// Watcher reloads shaders below the loader root when their files change
// and hands the new sources to the change callback.
type Watcher struct {
	loader   *ShaderLoader
	onChange func(ShaderSource)
	onError  func(error)
	settle   time.Duration

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup

	mutex    sync.Mutex
	isClosed bool
	pending  map[string]*time.Timer
}

type WatcherOption func(*Watcher)

// WithSettle overrides DefaultSettle.
func WithSettle(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.settle = d }
}

// WithErrorHandler receives compile and watch errors. They are logged
// either way.
func WithErrorHandler(fn func(error)) WatcherOption {
	return func(w *Watcher) { w.onError = fn }
}

func NewWatcher(loader *ShaderLoader, onChange func(ShaderSource), opts ...WatcherOption) (*Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		loader:   loader,
		onChange: onChange,
		settle:   DefaultSettle,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches the loader root and every directory below it.
func (w *Watcher) Start() error {
	if err := w.watchRecursive(w.loader.Dir()); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.run()
	return nil
}

// Close stops watching and waits for the event loop to exit. Reloads that
// have not settled yet are dropped.
func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return ErrWatcherClosed
	}
	w.isClosed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mutex.Unlock()

	close(w.done)
	w.wg.Wait()
	return w.fsnotify.Close()
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			w.handleEvent(e)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			w.reportError(err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(e fsnotify.Event) {
	if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
		if e.Has(fsnotify.Create) {
			if err := w.watchRecursive(e.Name); err != nil {
				w.reportError(err)
			}
		}
		return
	}
	if ShaderKindOf(e.Name) == ShaderKindNone {
		return
	}
	switch {
	case e.Has(fsnotify.Create) || e.Has(fsnotify.Write):
		w.schedule(e.Name)
	case e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename):
		w.cancel(e.Name)
		if name, err := w.loader.NameOf(e.Name); err == nil {
			w.loader.Forget(name)
		}
	}
}

// schedule reloads path once it has been quiet for the settle period.
// Editors often write a file in several steps.
func (w *Watcher) schedule(path string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.isClosed {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() { w.reload(path) })
}

func (w *Watcher) cancel(path string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) reload(path string) {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return
	}
	delete(w.pending, path)
	w.mutex.Unlock()

	src, err := w.loader.LoadFile(path)
	if err != nil {
		w.reportError(err)
		return
	}
	core.LogDebug("shader %s changed", src.Name)
	if w.onChange != nil {
		w.onChange(src)
	}
}

func (w *Watcher) reportError(err error) {
	core.LogError("shader watcher: %s", err)
	if w.onError != nil {
		w.onError(err)
	}
}

// watchRecursive adds every directory under path.
func (w *Watcher) watchRecursive(path string) error {
	return filepath.WalkDir(path, func(walkPath string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.fsnotify.Add(walkPath)
	})
}
