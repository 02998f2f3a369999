//go:build linux

package process_linux

import (
	"fmt"

	"mempatch/process"

	"golang.org/x/sys/unix"
)

// process_vm_readv reads remote memory straight into localBuf
func process_vm_readv(pid process.ProcessID, localBuf []byte, remoteAddr process.ProcessMemoryAddress) error {
	localIov := []unix.Iovec{{Base: &localBuf[0]}}
	localIov[0].SetLen(len(localBuf))

	remoteIov := []unix.RemoteIovec{{
		Base: uintptr(remoteAddr),
		Len:  len(localBuf),
	}}

	n, err := unix.ProcessVMReadv(int(pid), localIov, remoteIov, 0)
	if err != nil {
		return fmt.Errorf("process_vm_readv failed: %w", err)
	}

	if n != len(localBuf) {
		return fmt.Errorf("partial read: %d of %d bytes", n, len(localBuf))
	}

	return nil
}

// ReadMemory reads memory from the process at the specified address.
// process_vm_readv honours page protection, so pages it refuses are retried
// through /proc/<pid>/mem.
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	p.mu.Lock()
	pid := p.pid
	mem := p.mem
	mapped := p.isMappedInternal(addr)
	p.mu.Unlock()

	if pid == 0 || mem == nil {
		return nil, process.ErrProcessNotOpen
	}

	if !mapped {
		return nil, process.ErrAddressNotMapped
	}

	if size == 0 {
		return []byte{}, nil
	}

	data := make([]byte, size)
	vmErr := process_vm_readv(pid, data, addr)
	if vmErr == nil {
		return data, nil
	}

	n, err := mem.ReadAt(data, int64(addr))
	if err != nil || n != len(data) {
		return nil, fmt.Errorf("failed to read %s at %s: %w", size.ToString(), addr.ToString(), vmErr)
	}

	return data, nil
}
