package shader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/asset"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/fsnotify/fsnotify"
)

// ErrWatcherClosed is returned by Watch after Close.
var ErrWatcherClosed = errors.New("shader: watcher closed")

// watcher is the implementation of the Watcher interface.
type watcher struct {
	mu       *sync.Mutex
	shaders  asset.Assets[Shader]
	fs       *fsnotify.Watcher
	debounce time.Duration

	// paths maps a cleaned absolute file path to the shader assets loaded from it.
	paths map[string][]asset.Handle
	// dirs counts the watched files per directory.
	dirs    map[string]int
	pending map[string]*time.Timer
	closed  bool
}

// Watcher reloads shader assets when their source files change. A reload replaces the asset
// through Assets.Set, so the Modified event invalidates every pipeline compiled from it on the
// next frame. The containing directories are watched, so saves by rename are observed.
type Watcher interface {
	// Watch reloads the shader asset h whenever path changes. The asset keeps its stage, label
	// and entry point across reloads.
	//
	// Parameters:
	//   - h: the shader asset
	//   - path: the WGSL file the asset was loaded from
	//
	// Returns:
	//   - error: an error if the directory cannot be watched or the watcher is closed
	Watch(h asset.Handle, path string) error

	// Unwatch stops reloading h. The directory watch is dropped with its last file.
	//
	// Parameters:
	//   - h: the shader asset
	Unwatch(h asset.Handle)

	// Run processes file events until ctx is done or the watcher is closed.
	//
	// Parameters:
	//   - ctx: stops the loop when done
	Run(ctx context.Context)

	// Close stops watching and cancels pending reloads. Safe to call twice.
	//
	// Returns:
	//   - error: an error from the underlying watcher
	Close() error
}

var _ Watcher = &watcher{}

// NewWatcher creates a watcher replacing assets in shaders. Run must be started for reloads
// to happen.
//
// Parameters:
//   - shaders: the shader store, usually Renderer.Shaders
//   - options: builder options
//
// Returns:
//   - Watcher: the watcher
//   - error: an error if the platform watcher cannot be created
func NewWatcher(shaders asset.Assets[Shader], options ...WatcherBuilderOption) (Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shader: create watcher: %w", err)
	}
	w := &watcher{
		mu:       &sync.Mutex{},
		shaders:  shaders,
		fs:       fs,
		debounce: 50 * time.Millisecond,
		paths:    make(map[string][]asset.Handle),
		dirs:     make(map[string]int),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range options {
		opt(w)
	}
	return w, nil
}

func (w *watcher) Watch(h asset.Handle, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("shader: watch %q: %w", path, err)
	}
	abs = filepath.Clean(abs)
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if slices.Contains(w.paths[abs], h) {
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("shader: watch %q: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.paths[abs] = append(w.paths[abs], h)
	return nil
}

func (w *watcher) Unwatch(h asset.Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, handles := range w.paths {
		i := slices.Index(handles, h)
		if i < 0 {
			continue
		}
		handles = slices.Delete(handles, i, i+1)
		if len(handles) > 0 {
			w.paths[path] = handles
			continue
		}
		delete(w.paths, path)
		dir := filepath.Dir(path)
		if w.dirs[dir]--; w.dirs[dir] <= 0 {
			delete(w.dirs, dir)
			if !w.closed {
				_ = w.fs.Remove(dir)
			}
		}
	}
}

func (w *watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.schedule(filepath.Clean(event.Name))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Logger().Warn("shader watcher error", "error", err)
		}
	}
}

// schedule coalesces the events of one path into a single reload after the debounce delay.
func (w *watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, ok := w.paths[path]; !ok {
		return
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() { w.reload(path) })
}

func (w *watcher) reload(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	handles := slices.Clone(w.paths[path])
	w.mu.Unlock()
	if len(handles) == 0 {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Logger().Warn("shader reload failed", "path", path, "error", err)
		return
	}
	source := string(data)
	for _, h := range handles {
		old, ok := w.shaders.Get(h)
		if !ok || old.Source() == source {
			continue
		}
		w.shaders.Set(h, NewShader(old.Stage(), source, WithLabel(old.Label()), WithEntryPoint(old.EntryPoint())))
		logger.Logger().Info("shader reloaded", "path", path, "handle", h)
	}
}

func (w *watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return w.fs.Close()
}
