//go:build windows

package process_windows

import (
	"fmt"
	"path/filepath"
	"unsafe"

	"mempatch/process"

	"golang.org/x/sys/windows"
)

// Modules enumerates every module of the process, 32 and 64 bit, in the order
// EnumProcessModulesEx reports them. The handle buffer grows until the whole
// list fits, so nothing is silently truncated.
func (p *WindowsProcess) Modules() ([]process.Module, error) {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return nil, process.ErrProcessNotOpen
	}

	handles, err := enumProcessModules(handle)
	if err != nil {
		return nil, err
	}

	modules := make([]process.Module, 0, len(handles))
	for _, h := range handles {
		var path [windows.MAX_PATH]uint16
		if err := windows.GetModuleFileNameEx(handle, h, &path[0], uint32(len(path))); err != nil {
			// Modules can unload between the two calls
			continue
		}

		m := process.Module{
			Path: windows.UTF16ToString(path[:]),
			Base: process.ProcessMemoryAddress(h),
		}
		m.Name = filepath.Base(m.Path)

		var mi windows.ModuleInfo
		if err := windows.GetModuleInformation(handle, h, &mi, uint32(unsafe.Sizeof(mi))); err == nil {
			m.Base = process.ProcessMemoryAddress(mi.BaseOfDll)
			m.Size = process.ProcessMemorySize(mi.SizeOfImage)
		}

		modules = append(modules, m)
	}

	return modules, nil
}

func enumProcessModules(handle windows.Handle) ([]windows.Handle, error) {
	handles := make([]windows.Handle, 256)
	for {
		cb := uint32(len(handles)) * uint32(unsafe.Sizeof(handles[0]))
		var needed uint32
		err := windows.EnumProcessModulesEx(handle, &handles[0], cb, &needed, windows.LIST_MODULES_ALL)
		if err != nil {
			return nil, fmt.Errorf("EnumProcessModulesEx: %w", err)
		}

		count := int(needed / uint32(unsafe.Sizeof(handles[0])))
		if needed <= cb {
			return handles[:count], nil
		}
		handles = make([]windows.Handle, count+64)
	}
}
