//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Renders the demo scene with the software backend and writes lumen.png.
func (Run) Demo() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run demo...")
	if _, err := executeCmd("go", withArgs("run", ".", "-out", "lumen.png"), withStream()); err != nil {
		return err
	}
	return nil
}

// Renders the demo scene with the Vulkan backend.
func (Run) Vulkan() error {
	if _, err := executeCmd("go", withArgs("run", ".", "-config", "configs/vulkan.toml", "-out", "lumen_vulkan.png"), withStream()); err != nil {
		return err
	}
	return nil
}
