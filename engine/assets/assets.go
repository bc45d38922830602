package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

// SourceSink receives shader sources, renderer.ShaderLibrary is one.
type SourceSink interface {
	Set(language, name, source string)
}

/**
 * @brief Feeds shader sources from a directory into a SourceSink and keeps
 * doing so while files are created or written.
 *
 * Files are laid out as <dir>/<language>/<name>.<ext>. The sink is called
 * from the watcher goroutine, ShaderLibrary queues the change until its next
 * Flush on the render thread.
 */
type ShaderWatcher struct {
	root string
	sink SourceSink

	mutex    sync.Mutex
	isClosed bool

	done     chan struct{}
	stopped  chan struct{}
	fsnotify *fsnotify.Watcher
}

/**
 * @brief Loads every source below dir into sink and starts watching dir
 * recursively.
 */
func NewShaderWatcher(dir string, sink SourceSink) (*ShaderWatcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	sw := &ShaderWatcher{
		root:     filepath.Clean(dir),
		sink:     sink,
		fsnotify: fsWatch,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	if err := sw.watchRecursive(sw.root); err != nil {
		fsWatch.Close()
		return nil, fmt.Errorf("shader watcher %s: %w", dir, err)
	}
	go sw.start()
	core.LogInfo("Watching shader sources in %s", sw.root)
	return sw, nil
}

// Close stops watching. It is safe to call more than once.
func (sw *ShaderWatcher) Close() error {
	sw.mutex.Lock()
	if sw.isClosed {
		sw.mutex.Unlock()
		return nil
	}
	sw.isClosed = true
	sw.mutex.Unlock()

	close(sw.done)
	<-sw.stopped
	return nil
}

func (sw *ShaderWatcher) start() {
	defer close(sw.stopped)
	for {
		select {
		case e, ok := <-sw.fsnotify.Events:
			if !ok {
				return
			}
			sw.handleEvent(e)

		case err, ok := <-sw.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError("Shader watcher: %s", err)

		case <-sw.done:
			sw.fsnotify.Close()
			return
		}
	}
}

func (sw *ShaderWatcher) handleEvent(e fsnotify.Event) {
	if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		if e.Op&fsnotify.Remove != 0 {
			// the last source stays in use
			core.LogDebug("Shader source %s removed", e.Name)
		}
		return
	}
	s, err := os.Stat(e.Name)
	if err != nil {
		return
	}
	if s.IsDir() {
		if e.Op&fsnotify.Create != 0 {
			if err := sw.watchRecursive(e.Name); err != nil {
				core.LogError("Shader watcher: %s", err)
			}
		}
		return
	}
	sw.handleFile(e.Name)
}

// watchRecursive adds dir and every directory below it to the watch list
// and loads the files found on the way.
func (sw *ShaderWatcher) watchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return sw.fsnotify.Add(p)
		}
		sw.handleFile(p)
		return nil
	})
}

func (sw *ShaderWatcher) handleFile(path string) {
	rel, err := filepath.Rel(sw.root, path)
	if err != nil {
		return
	}
	key, ok := renderer.ShaderSourceKeyFromPath(filepath.ToSlash(rel))
	if !ok {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			core.LogWarn("Shader source %s: %s", path, err)
		}
		return
	}
	core.LogDebug("Shader source %s/%s loaded from %s", key.Language, key.Name, path)
	sw.sink.Set(key.Language, key.Name, string(data))
}
