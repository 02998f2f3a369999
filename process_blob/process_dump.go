// Package process_blob implements process.Process over memory held in this
// process. It stands in for a live target wherever one is not available.
package process_blob

import (
	"fmt"
	"sync"

	"mempatch/process"
	"mempatch/process/memory_map"
)

// ProcessDump implements process.Process for a set of in-memory regions
type ProcessDump struct {
	PID       process.ProcessID
	MemoryMap []memory_map.MemoryMapItem
	Blobs     map[uint64][]byte // Address -> Data
	Protect   process.ProtectPolicy

	// ReadFault, when set, is consulted before every read; a non-nil result fails the read
	ReadFault func(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) error
	// WriteFault is consulted once protection has been relaxed, so a failed
	// write still goes through the restore step
	WriteFault func(addr process.ProcessMemoryAddress, data []byte) error

	modules        []process.Module
	closed         bool
	releases       int
	closeCalls     int
	protectChanges int
	mu             sync.Mutex
}

var _ process.Process = (*ProcessDump)(nil)

// NewProcessDump creates a new, open ProcessDump with no regions
func NewProcessDump(pid process.ProcessID) *ProcessDump {
	return &ProcessDump{
		PID:   pid,
		Blobs: make(map[uint64][]byte),
	}
}

// AddRegion maps data at addr. The slice is copied.
func (p *ProcessDump) AddRegion(addr uint64, data []byte, perms string, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	blob := make([]byte, len(data))
	copy(blob, data)

	p.MemoryMap = append(p.MemoryMap, memory_map.MemoryMapItem{
		Address: addr,
		Size:    uint(len(data)),
		Perms:   perms,
		Path:    path,
	})
	memory_map.SortByAddress(p.MemoryMap)
	p.Blobs[addr] = blob
}

// AddModule maps image at base as a read/execute region and lists it as a module
func (p *ProcessDump) AddModule(name string, base uint64, image []byte) process.Module {
	p.AddRegion(base, image, "r-xp", name)

	m := process.Module{
		Name: name,
		Path: name,
		Base: process.ProcessMemoryAddress(base),
		Size: process.ProcessMemorySize(len(image)),
	}

	p.mu.Lock()
	p.modules = append(p.modules, m)
	p.mu.Unlock()
	return m
}

// Close marks the dump closed. Only the first call counts as a release.
func (p *ProcessDump) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeCalls++
	if p.closed {
		return nil
	}
	p.closed = true
	p.releases++
	return nil
}

// Releases returns how many times the handle was actually released
func (p *ProcessDump) Releases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases
}

// CloseCalls returns how many times Close was called
func (p *ProcessDump) CloseCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCalls
}

// ProtectChanges returns how many writes had to relax page protection
func (p *ProcessDump) ProtectChanges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.protectChanges
}

func (p *ProcessDump) GetPID() process.ProcessID {
	return p.PID
}

func (p *ProcessDump) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return process.ErrProcessNotOpen
	}
	return nil
}

func (p *ProcessDump) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.MemoryMap))
	copy(result, p.MemoryMap)
	return result, nil
}

func (p *ProcessDump) Modules() ([]process.Module, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]process.Module, len(p.modules))
	copy(result, p.modules)
	return result, nil
}

func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, process.ErrProcessNotOpen
	}

	if p.ReadFault != nil {
		if err := p.ReadFault(addr, size); err != nil {
			return nil, err
		}
	}

	result := make([]byte, size)
	err := p.walk(uint64(addr), uint(size), func(blob []byte, off uint64, pos int, n int) {
		copy(result[pos:pos+n], blob[off:off+uint64(n)])
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// WriteMemory relaxes non-writable regions to "rwxp" before writing, and puts
// the old permissions back afterwards under ProtectRestore
func (p *ProcessDump) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return process.ErrProcessNotOpen
	}

	regions, ok := memory_map.RegionsForRange(uint64(addr), uint(len(data)), p.MemoryMap)
	if !ok {
		return fmt.Errorf("%w: %s+%d", process.ErrAddressNotMapped, addr.ToString(), len(data))
	}

	saved := make(map[uint64]string)
	for _, region := range regions {
		if region.IsWritable() {
			continue
		}
		saved[region.Address] = region.Perms
		p.setPerms(region.Address, "rwxp")
		p.protectChanges++
	}

	var err error
	if p.WriteFault != nil {
		err = p.WriteFault(addr, data)
	}
	if err == nil {
		err = p.walk(uint64(addr), uint(len(data)), func(blob []byte, off uint64, pos int, n int) {
			copy(blob[off:off+uint64(n)], data[pos:pos+n])
		})
	}

	// Restored even when the write failed
	if p.Protect == process.ProtectRestore {
		for address, perms := range saved {
			p.setPerms(address, perms)
		}
	}

	return err
}

// Perms returns the current permissions of the region containing addr
func (p *ProcessDump) Perms(addr process.ProcessMemoryAddress) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	region := memory_map.GetMemoryRegionForAddress(uint64(addr), p.MemoryMap)
	if region == nil {
		return ""
	}
	return region.Perms
}

func (p *ProcessDump) setPerms(address uint64, perms string) {
	for i := range p.MemoryMap {
		if p.MemoryMap[i].Address == address {
			p.MemoryMap[i].Perms = perms
			return
		}
	}
}

// walk calls fn for each region piece of [addr, addr+size). The mutex must be held.
func (p *ProcessDump) walk(addr uint64, size uint, fn func(blob []byte, off uint64, pos int, n int)) error {
	regions, ok := memory_map.RegionsForRange(addr, size, p.MemoryMap)
	if !ok {
		return fmt.Errorf("%w: 0x%x+%d", process.ErrAddressNotMapped, addr, size)
	}

	end := addr + uint64(size)
	cur := addr
	for _, region := range regions {
		blob, ok := p.Blobs[region.Address]
		if !ok {
			return fmt.Errorf("no data for region 0x%x", region.Address)
		}
		stop := region.End()
		if stop > end {
			stop = end
		}
		fn(blob, cur-region.Address, int(cur-addr), int(stop-cur))
		cur = stop
	}
	return nil
}

// Opener returns an Opener that hands out this dump when asked for its PID
func (p *ProcessDump) Opener() process.Opener {
	return process.OpenerFunc(func(pid process.ProcessID) (process.Process, error) {
		if pid != p.PID {
			return nil, fmt.Errorf("%w: no process with PID %d", process.ErrAttach, pid)
		}
		return p, nil
	})
}
