package assets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/renderer"
)

type recordingSink struct {
	mu      sync.Mutex
	sources map[renderer.ShaderSourceKey]string
}

func (s *recordingSink) Set(language, name, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[renderer.ShaderSourceKey{Language: language, Name: name}] = source
}

func (s *recordingSink) get(language, name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sources[renderer.ShaderSourceKey{Language: language, Name: name}]
}

func writeFile(t *testing.T, path, content string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestShaderWatcherLoadsExisting(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "WGSL", "glow_blur_fs.wgsl"), "blur")
	writeFile(t, filepath.Join(dir, "Soft", "draw_vs.soft"), "#kernel draw_vs")
	// not in a language directory
	writeFile(t, filepath.Join(dir, "README"), "ignored")

	sink := &recordingSink{sources: map[renderer.ShaderSourceKey]string{}}
	sw, err := NewShaderWatcher(dir, sink)
	require.NoError(t, err)
	defer sw.Close()

	assert.Equal("blur", sink.get("WGSL", "glow_blur_fs"))
	assert.Equal("#kernel draw_vs", sink.get("Soft", "draw_vs"))
	sink.mu.Lock()
	assert.Len(sink.sources, 2)
	sink.mu.Unlock()
}

func TestShaderWatcherAppliesOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "WGSL"), 0o755))

	lib := renderer.NewShaderLibrary()
	lib.Set("WGSL", "glow_result_fs", "old")
	lib.Flush()

	sw, err := NewShaderWatcher(dir, lib)
	require.NoError(t, err)
	defer sw.Close()

	writeFile(t, filepath.Join(dir, "WGSL", "glow_result_fs.wgsl"), "new")
	require.Eventually(t, func() bool {
		lib.Flush()
		src, _ := lib.Get("WGSL", "glow_result_fs")
		return src == "new"
	}, 5*time.Second, 10*time.Millisecond)

	// directories created later are watched too
	writeFile(t, filepath.Join(dir, "Soft", "fullscreen_vs.soft"), "#kernel fullscreen_vs")
	require.Eventually(t, func() bool {
		lib.Flush()
		_, ok := lib.Get("Soft", "fullscreen_vs")
		return ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShaderWatcherClose(t *testing.T) {
	sink := &recordingSink{sources: map[renderer.ShaderSourceKey]string{}}
	sw, err := NewShaderWatcher(t.TempDir(), sink)
	require.NoError(t, err)
	assert.NoError(t, sw.Close())
	assert.NoError(t, sw.Close())

	_, err = NewShaderWatcher(filepath.Join(t.TempDir(), "missing"), sink)
	assert.Error(t, err)
}
