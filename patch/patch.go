// Package patch writes replacement bytes over a located match
package patch

import (
	"bytes"
	"fmt"

	"mempatch/process"
)

// Options controls optional steps around the write
type Options struct {
	// Verify reads the bytes back after writing and compares them
	Verify bool
}

// Apply writes replacement at addr. The whole replacement must lie inside
// window, which is the module the match was found in.
func Apply(proc process.Process, window process.Module, addr process.ProcessMemoryAddress, replacement []byte, opts Options) error {
	if len(replacement) == 0 {
		return nil
	}

	end := addr + process.ProcessMemoryAddress(len(replacement))
	if addr < window.Base || end > window.End() || end < addr {
		return fmt.Errorf("%w: %d bytes at %s, module %s ends at %s",
			process.ErrPatchOutOfBounds, len(replacement), addr.ToString(), window.Name, window.End().ToString())
	}

	if err := proc.WriteMemory(addr, replacement); err != nil {
		return fmt.Errorf("%w: %d bytes at %s: %v", process.ErrWrite, len(replacement), addr.ToString(), err)
	}

	if !opts.Verify {
		return nil
	}

	ok, err := IsApplied(proc, addr, replacement)
	if err != nil {
		return fmt.Errorf("%w: read back %s: %v", process.ErrVerify, addr.ToString(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s does not read back as %s", process.ErrVerify, addr.ToString(),
			process.FormatBytes(replacement))
	}

	return nil
}

// IsApplied reports whether the bytes at addr already equal replacement
func IsApplied(proc process.Process, addr process.ProcessMemoryAddress, replacement []byte) (bool, error) {
	got, err := proc.ReadMemory(addr, process.ProcessMemorySize(len(replacement)))
	if err != nil {
		return false, err
	}
	return bytes.Equal(got, replacement), nil
}
