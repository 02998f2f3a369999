package process

import (
	"mempatch/process/memory_map"
)

// ProtectPolicy decides what happens to page protection that had to be relaxed for a write
type ProtectPolicy int

const (
	// ProtectLeave keeps the relaxed protection in place after the write.
	ProtectLeave ProtectPolicy = iota

	// ProtectRestore puts the original protection back once the write is done.
	ProtectRestore
)

func (p ProtectPolicy) String() string {
	switch p {
	case ProtectLeave:
		return "leave"
	case ProtectRestore:
		return "restore"
	}
	return "unknown"
}

// Process is an exclusively owned, open handle on another process' memory
type Process interface {
	// Close releases the handle. Calling Close more than once is a no-op.
	Close() error

	// GetPID returns the process ID
	GetPID() ProcessID

	// UpdateMemoryMap refreshes the memory map for the process
	UpdateMemoryMap() error

	// GetMemoryMap returns a copy of the current memory map
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)

	// Modules returns the loaded modules in enumeration order
	Modules() ([]Module, error)

	// ReadMemory reads memory from the process at the specified address
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)

	// WriteMemory writes data to the process memory at the specified address,
	// relaxing page protection first when the pages are not writable
	WriteMemory(addr ProcessMemoryAddress, data []byte) error
}
