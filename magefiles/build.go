//go:build mage

package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/naga"
	"github.com/magefile/mage/mg"

	"github.com/spaghettifunk/lumen/engine/renderer"
)

const shaderOutputDir = "build/shaders"

// shaderRoots hold the embedded shader sources, one directory per language.
var shaderRoots = []string{
	"engine/compositing/shaders",
	"engine/drawhelpers/shaders",
}

type Build mg.Namespace

// Builds every package and the demo binary.
func (Build) Engine() error {
	if _, err := executeCmd("go", withArgs("build", "./..."), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "-o", "build/lumen", "."), withStream()); err != nil {
		return err
	}
	return nil
}

// Compiles the WGSL sources to SPIR-V, one module per shader without feature defines.
func (Build) Shaders() error {
	if err := os.MkdirAll(shaderOutputDir, 0o755); err != nil {
		return err
	}
	compiled := 0
	for _, root := range shaderRoots {
		dir := filepath.Join(root, renderer.ShaderLanguageWGSL)
		err := filepath.WalkDir(dir, func(path string, e fs.DirEntry, err error) error {
			if err != nil || e.IsDir() || filepath.Ext(path) != ".wgsl" {
				return err
			}
			if err := compileShader(path); err != nil {
				return err
			}
			compiled++
			return nil
		})
		if err != nil {
			return err
		}
	}
	fmt.Printf("Compiled %d shaders into %s\n", compiled, shaderOutputDir)
	return nil
}

func compileShader(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	source, _, err := renderer.Preprocess(string(src), nil)
	if err != nil {
		return fmt.Errorf("preprocessing %s: %w", path, err)
	}
	spirv, err := naga.Compile(source)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".wgsl") + ".spv"
	out := filepath.Join(shaderOutputDir, name)
	if mg.Verbose() {
		fmt.Printf("%s -> %s (%d bytes)\n", path, out, len(spirv))
	}
	return os.WriteFile(out, spirv, 0o644)
}
