//go:build linux

package process_linux

import (
	"fmt"

	"mempatch/process"
	"mempatch/process/memory_map"

	"golang.org/x/sys/unix"
)

// process_vm_writev writes localBuf to the remote address and returns the number of bytes written
func process_vm_writev(pid process.ProcessID, localBuf []byte, remoteAddr process.ProcessMemoryAddress) (int, error) {
	localIov := []unix.Iovec{{Base: &localBuf[0]}}
	localIov[0].SetLen(len(localBuf))

	remoteIov := []unix.RemoteIovec{{
		Base: uintptr(remoteAddr),
		Len:  len(localBuf),
	}}

	n, err := unix.ProcessVMWritev(int(pid), localIov, remoteIov, 0)
	if err != nil {
		return 0, fmt.Errorf("process_vm_writev failed: %w", err)
	}

	return n, nil
}

// WriteMemory writes data to the process memory at the specified address.
//
// Writable mappings are written with process_vm_writev. Mappings without
// write permission (code) are written through /proc/<pid>/mem, which the
// kernel applies with FOLL_FORCE: the bytes land, the mapping's protection
// flags stay as they were. Nothing has to be relaxed or restored, so the
// ProtectPolicy has no effect on Linux.
func (p *LinuxProcess) WriteMemory(addr process.ProcessMemoryAddress, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	p.mu.Lock()
	pid := p.pid
	mem := p.mem
	regions, mapped := memory_map.RegionsForRange(uint64(addr), uint(len(data)), p.mm)
	p.mu.Unlock()

	if pid == 0 || mem == nil {
		return process.ErrProcessNotOpen
	}

	if !mapped || !p.isMappedAddress(addr) {
		return fmt.Errorf("%w: %s+%d", process.ErrAddressNotMapped, addr.ToString(), len(data))
	}

	writable := true
	for _, region := range regions {
		if !region.IsWritable() {
			writable = false
			break
		}
	}

	// Copy so the caller can't change the buffer under the syscall
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	var written int
	var err error
	if writable {
		written, err = process_vm_writev(pid, dataCopy, addr)
	} else {
		p.debug("Region at", addr.ToString(), "is not writable, writing through /proc mem")
		written, err = mem.WriteAt(dataCopy, int64(addr))
	}

	if err != nil {
		return fmt.Errorf("failed to write process memory: %w", err)
	}

	if written != len(data) {
		return fmt.Errorf("only wrote %d of %d bytes", written, len(data))
	}

	return nil
}

func (p *LinuxProcess) isMappedAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isMappedInternal(addr)
}
