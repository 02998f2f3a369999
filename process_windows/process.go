//go:build windows

package process_windows

import (
	"fmt"
	"sync"
	"unsafe"

	"mempatch/coloransi"
	"mempatch/process"
	"mempatch/process/memory_map"

	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

// WindowsProcess implements the process.Process interface for Windows systems
type WindowsProcess struct {
	// Verbose logs attach, close and protection details
	Verbose bool

	pid     process.ProcessID
	handle  windows.Handle
	log     *logger.Logger
	mm      []memory_map.MemoryMapItem
	protect process.ProtectPolicy
	mu      sync.Mutex
}

var _ process.Process = (*WindowsProcess)(nil)

// New creates a new, unopened WindowsProcess instance
func New(policy process.ProtectPolicy) *WindowsProcess {
	return &WindowsProcess{
		protect: policy,
		log:     logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open")),
	}
}

// NewWithPID creates a new WindowsProcess instance and opens it with the given PID
func NewWithPID(pid process.ProcessID, policy process.ProtectPolicy) (*WindowsProcess, error) {
	p := New(policy)
	err := p.Open(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Open requests full access to pid. Access is denied for elevated or
// protected targets when the caller is not elevated itself.
func (p *WindowsProcess) Open(pid process.ProcessID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	handle, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("%w: OpenProcess(%d): %v", process.ErrAttach, pid, err)
	}

	p.pid = pid
	p.handle = handle
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid)))

	if err := p.updateMemoryMapInternal(); err != nil {
		p.log.Warn("Failed to initialize memory map: ", err)
	}

	p.debug("Process opened")
	return nil
}

// Close releases the process handle. Closing twice is a no-op.
func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle == 0 {
		return nil
	}

	err := windows.CloseHandle(p.handle)
	p.handle = 0
	p.pid = 0
	p.mm = nil
	p.debug("Process closed")
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	if err != nil {
		return fmt.Errorf("CloseHandle failed: %w", err)
	}
	return nil
}

func (p *WindowsProcess) debug(v ...interface{}) {
	if p.Verbose {
		p.log.Debugln(v...)
	}
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

func (p *WindowsProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateMemoryMapInternal()
}

func (p *WindowsProcess) updateMemoryMapInternal() error {
	if p.handle == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memoryMapHelper.ReadMemoryMapHandle(p.handle)
	if err != nil {
		return err
	}
	memory_map.SortByAddress(mm)
	p.mm = mm
	return nil
}

func (p *WindowsProcess) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handle == 0 {
		return nil, process.ErrProcessNotOpen
	}
	result := make([]memory_map.MemoryMapItem, len(p.mm))
	copy(result, p.mm)
	return result, nil
}

func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return nil, process.ErrProcessNotOpen
	}

	if size == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, size)
	var bytesRead uintptr
	err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &bytesRead)
	if err != nil {
		if err == windows.ERROR_PARTIAL_COPY || err == windows.ERROR_NOACCESS {
			return nil, fmt.Errorf("%w: %s: %v", process.ErrAddressNotMapped, addr.ToString(), err)
		}
		return nil, fmt.Errorf("ReadProcessMemory failed: %w", err)
	}

	if bytesRead != uintptr(size) {
		return nil, fmt.Errorf("read incomplete: expected %d, got %d", size, bytesRead)
	}

	return buf, nil
}

// WriteMemory makes the target range PAGE_EXECUTE_READWRITE when it is not
// writable yet, writes, and puts the old protection back only under ProtectRestore.
func (p *WindowsProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) (err error) {
	if len(data) == 0 {
		return nil
	}

	p.mu.Lock()
	handle := p.handle
	policy := p.protect
	log := p.log
	verbose := p.Verbose
	p.mu.Unlock()

	if handle == 0 {
		return process.ErrProcessNotOpen
	}

	size := uintptr(len(data))

	writable, err := p.isWritable(handle, addr, size)
	if err != nil {
		return err
	}

	var oldProtect uint32
	if !writable {
		err = windows.VirtualProtectEx(handle, uintptr(addr), size, windows.PAGE_EXECUTE_READWRITE, &oldProtect)
		if err != nil {
			return fmt.Errorf("VirtualProtectEx: %w", err)
		}
		if verbose {
			log.Debugln("Relaxed protection at", addr.ToString(), fmt.Sprintf("(was 0x%X)", oldProtect))
		}
		if policy == process.ProtectRestore {
			// Also runs when the write below fails
			defer func() {
				var prev uint32
				if rerr := windows.VirtualProtectEx(handle, uintptr(addr), size, oldProtect, &prev); rerr != nil && err == nil {
					err = fmt.Errorf("VirtualProtectEx (restore): %w", rerr)
				}
			}()
		}
	}

	var bytesWritten uintptr
	err = windows.WriteProcessMemory(handle, uintptr(addr), &data[0], size, &bytesWritten)
	if err != nil {
		return fmt.Errorf("WriteProcessMemory: %w", err)
	}
	if bytesWritten != size {
		return fmt.Errorf("only wrote %d of %d bytes", bytesWritten, size)
	}

	// Code pages may be cached by the CPU
	flushInstructionCache(handle, uintptr(addr), size)

	return nil
}

// isWritable queries every page of the range instead of trusting the cached map
func (p *WindowsProcess) isWritable(handle windows.Handle, addr process.ProcessMemoryAddress, size uintptr) (bool, error) {
	end := uintptr(addr) + size
	for cur := uintptr(addr); cur < end; {
		var mbi windows.MemoryBasicInformation
		if err := windows.VirtualQueryEx(handle, cur, &mbi, unsafe.Sizeof(mbi)); err != nil {
			return false, fmt.Errorf("VirtualQueryEx: %w", err)
		}
		if mbi.State != windows.MEM_COMMIT {
			return false, fmt.Errorf("%w: %s", process.ErrAddressNotMapped, process.ProcessMemoryAddress(cur).ToString())
		}
		if !memoryMapHelper.IsWritablePerms(memory_map.ProtectToPerms(mbi.Protect)) {
			return false, nil
		}
		cur = mbi.BaseAddress + mbi.RegionSize
	}
	return true, nil
}

var memoryMapHelper = memory_map.NewWindowsMemoryMap()
