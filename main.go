/*
Headless demo of the lumen renderer: lights a synthetic G-buffer, blooms its
glow target, adapts to the average luminance and writes the last frame to a
PNG file.
*/
package main

import (
	"flag"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/soft"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
)

func init() {
	// glfw and the render thread must stay on the main thread
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "TOML configuration file, defaults are used when empty")
	output := flag.String("out", "lumen.png", "PNG file the last frame is written to")
	frames := flag.Int("frames", 60, "number of frames to render")
	fontPath := flag.String("font", "", "BMFont .fnt file for the overlay text")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			core.LogFatal(err.Error())
		}
	}
	if err := core.SetLogLevel(cfg.Log.Level); err != nil {
		core.LogWarn("Log level %q: %s", cfg.Log.Level, err)
	}

	if err := run(cfg, *frames, *output, *fontPath); err != nil {
		core.LogFatal(err.Error())
	}
}

func newBackend(name string) (renderer.RendererBackend, error) {
	switch name {
	case config.BackendSoft:
		return soft.New(), nil
	case config.BackendVulkan:
		return vulkan.New(), nil
	}
	return nil, fmt.Errorf("backend %q: %w", name, core.ErrInvalidParameter)
}

func run(cfg *config.Config, frames int, output, fontPath string) error {
	backend, err := newBackend(cfg.Renderer.Backend)
	if err != nil {
		return err
	}
	r, err := renderer.NewRenderer(backend, cfg.RendererSetup())
	if err != nil {
		return err
	}
	defer r.Shutdown()

	if dir := cfg.Shaders.OverrideDir; dir != "" {
		watcher, err := assets.NewShaderWatcher(dir, r.GetShaderLibrary())
		if err != nil {
			return err
		}
		if cfg.Shaders.Watch {
			defer watcher.Close()
		} else if err := watcher.Close(); err != nil {
			return err
		}
	}

	d, err := newDemo(r, cfg, fontPath)
	if err != nil {
		return err
	}
	defer d.destroy()

	// signal channel to stop rendering early
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigCh)

	clock := core.NewClock()
	metrics := core.NewFrameMetrics()
	clock.Start()
loop:
	for frame := 0; frame < frames; frame++ {
		select {
		case <-sigCh:
			core.LogInfo("Interrupted after %d frames", frame)
			break loop
		default:
		}

		clock.Update()
		if frame > 0 {
			metrics.Update(clock.Delta())
		}
		r.ResetStatistics()
		if err := d.frame(float32(clock.Delta())); err != nil {
			return err
		}

		if (frame+1)%int(core.AVG_COUNT) == 0 {
			fps, ms := metrics.Frame()
			stats := r.Statistics()
			core.LogInfo("Frame %d: %.1f fps, %.2f ms, %d draw calls, %d triangles, adapted luminance %.3f",
				frame+1, fps, ms, stats.DrawCalls, stats.Triangles, d.adapted)
		}
	}

	img, err := r.ReadBackbuffer()
	if err != nil {
		return err
	}
	goImg, err := renderer.ImageLevelToGo(img.Format, img.Levels[0])
	if err != nil {
		return err
	}
	file, err := os.Create(output)
	if err != nil {
		return err
	}
	defer file.Close()
	if err := png.Encode(file, goImg); err != nil {
		return fmt.Errorf("writing %s: %w", output, err)
	}
	core.LogInfo("Wrote %s", output)
	return nil
}
