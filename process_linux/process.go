//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"mempatch/coloransi"
	"mempatch/process"
	"mempatch/process/memory_map"

	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/unix"
)

// LinuxProcess implements the process.Process interface for Linux systems.
// The open /proc/<pid>/mem file is the handle: holding it is what grants
// access, closing it releases the process.
type LinuxProcess struct {
	// Verbose logs attach, close and write details
	Verbose bool

	pid process.ProcessID
	log *logger.Logger
	mm  []memory_map.MemoryMapItem
	mem *os.File
	mu  sync.Mutex
}

var _ process.Process = (*LinuxProcess)(nil)

// New creates a new, unopened LinuxProcess instance
func New() *LinuxProcess {
	return &LinuxProcess{
		log: logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new LinuxProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID) (*LinuxProcess, error) {
	p := New()
	err := p.Open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Open attaches to pid. Attaching needs the same rights as ptrace: same uid
// and a permissive ptrace_scope, or CAP_SYS_PTRACE.
func (p *LinuxProcess) Open(pid process.ProcessID) error {
	procPath := fmt.Sprintf("/proc/%d", pid)
	if _, err := os.Stat(procPath); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: process with PID %d does not exist", process.ErrAttach, pid)
	}

	mem, err := os.OpenFile(filepath.Join(procPath, "mem"), os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
			return fmt.Errorf("%w: pid %d: insufficient privilege: %v", process.ErrAttach, pid, err)
		}
		return fmt.Errorf("%w: pid %d: %v", process.ErrAttach, pid, err)
	}

	p.mu.Lock()
	p.pid = pid
	p.mem = mem
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))
	p.mu.Unlock()

	if err := p.UpdateMemoryMap(); err != nil {
		p.Close()
		return fmt.Errorf("%w: failed to initialize memory map: %v", process.ErrAttach, err)
	}

	p.debug("Process opened")

	return nil
}

// Close releases the process. Closing an already closed process does nothing.
func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mem == nil {
		return nil
	}

	p.debug("Closing process")

	err := p.mem.Close()

	p.pid = 0
	p.mm = nil
	p.mem = nil
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	return err
}

func (p *LinuxProcess) debug(v ...interface{}) {
	if p.Verbose {
		p.log.Debugln(v...)
	}
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memoryMapHelper.ReadMemoryMap(int(p.pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	// the lookups in memory_map need the map sorted by address
	memory_map.SortByAddress(mm)

	p.mm = mm
	return nil
}

func (p *LinuxProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	// Make a copy of the memory map to prevent external modification
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)

	return result, nil
}

// isMappedInternal assumes the mutex is already locked
func (p *LinuxProcess) isMappedInternal(addr process.ProcessMemoryAddress) bool {
	if addr <= 0x10000 {
		return false
	}

	return memory_map.GetMemoryRegionForAddress(uint64(addr), p.mm) != nil
}

var memoryMapHelper = memory_map.NewLinuxMemoryMap()
