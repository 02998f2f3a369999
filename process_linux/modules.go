//go:build linux

package process_linux

import (
	"fmt"
	"path/filepath"

	"mempatch/process"
	"mempatch/process/memory_map"
)

// Modules lists the shared objects and the executable mapped into the process,
// in address order. The memory map is re-read so modules loaded since Open show up.
func (p *LinuxProcess) Modules() ([]process.Module, error) {
	if err := p.UpdateMemoryMap(); err != nil {
		return nil, fmt.Errorf("cannot enumerate modules: %w", err)
	}

	mm, err := p.GetMemoryMap()
	if err != nil {
		return nil, err
	}

	return modulesFromMap(mm), nil
}

func modulesFromMap(mm []memory_map.MemoryMapItem) []process.Module {
	images := memory_map.Images(mm)
	modules := make([]process.Module, 0, len(images))
	for _, img := range images {
		modules = append(modules, process.Module{
			Name: filepath.Base(img.Path),
			Path: img.Path,
			Base: process.ProcessMemoryAddress(img.Base),
			Size: process.ProcessMemorySize(img.End - img.Base),
		})
	}
	return modules
}
