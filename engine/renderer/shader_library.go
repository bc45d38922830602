package renderer

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/spaghettifunk/lumen/engine/core"
)

// ShaderSourceKey names a source in the library.
type ShaderSourceKey struct {
	Language string
	Name     string
}

/**
 * @brief Shader sources by language and name.
 *
 * Set may be called from any goroutine, the change is queued until Flush
 * runs on the render thread and fires Changed for every source that
 * actually changed.
 */
type ShaderLibrary struct {
	mu      sync.Mutex
	sources map[ShaderSourceKey]string
	pending map[ShaderSourceKey]string
	changed core.Notifier[ShaderSourceKey]
}

func NewShaderLibrary() *ShaderLibrary {
	return &ShaderLibrary{
		sources: make(map[ShaderSourceKey]string),
		pending: make(map[ShaderSourceKey]string),
	}
}

// ShaderSourceKeyFromPath maps "<language>/<name>.<ext>" to a key.
func ShaderSourceKeyFromPath(p string) (ShaderSourceKey, bool) {
	dir, file := path.Split(path.Clean(p))
	language := path.Base(dir)
	name := strings.TrimSuffix(file, path.Ext(file))
	if language == "." || language == "/" || language == "" || name == "" {
		return ShaderSourceKey{}, false
	}
	return ShaderSourceKey{Language: language, Name: name}, true
}

/**
 * @brief Adds every file below root in fsys laid out as
 * root/<language>/<name>.<ext>. Existing sources are replaced without
 * notification.
 */
func (l *ShaderLibrary) AddFS(fsys fs.FS, root string) error {
	return l.addFS(fsys, root, true)
}

// SeedFS is AddFS without replacing sources that are already present.
func (l *ShaderLibrary) SeedFS(fsys fs.FS, root string) error {
	return l.addFS(fsys, root, false)
}

func (l *ShaderLibrary) addFS(fsys fs.FS, root string, replace bool) error {
	return fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		key, ok := ShaderSourceKeyFromPath(rel)
		if !ok {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("shader library: %w", err)
		}
		l.mu.Lock()
		if _, exists := l.sources[key]; replace || !exists {
			l.sources[key] = string(data)
		}
		l.mu.Unlock()
		return nil
	})
}

func (l *ShaderLibrary) Get(language, name string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	src, ok := l.sources[ShaderSourceKey{Language: language, Name: name}]
	return src, ok
}

// MustGet returns an empty string and logs an error for unknown sources.
func (l *ShaderLibrary) MustGet(language, name string) string {
	src, ok := l.Get(language, name)
	if !ok {
		core.LogError("Shader source %s/%s not found", language, name)
	}
	return src
}

// Set queues a source change. Safe for concurrent use.
func (l *ShaderLibrary) Set(language, name, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[ShaderSourceKey{Language: language, Name: name}] = source
}

/**
 * @brief Applies queued changes and notifies subscribers, on the render thread.
 * @returns The number of sources that changed.
 */
func (l *ShaderLibrary) Flush() int {
	l.mu.Lock()
	var changed []ShaderSourceKey
	for key, src := range l.pending {
		if old, ok := l.sources[key]; ok && old == src {
			continue
		}
		l.sources[key] = src
		changed = append(changed, key)
	}
	clear(l.pending)
	l.mu.Unlock()

	for _, key := range changed {
		core.LogInfo("Shader source %s/%s changed", key.Language, key.Name)
		l.changed.Emit(key)
	}
	return len(changed)
}

// Changed fires from Flush once per changed source.
func (l *ShaderLibrary) Changed() *core.Notifier[ShaderSourceKey] {
	return &l.changed
}
