// Package process provides the platform independent types and interfaces used to
// inspect and patch the memory of another running process
package process

import "errors"

// The per-platform accessors live in process_linux and process_windows, the
// in-memory accessor used by tests lives in process_blob. Everything above this
// package (resolve, search, patch, engine) only talks to the interfaces below:
// - types.go: ProcessID, Module
// - memory_types.go: ProcessMemoryAddress, ProcessMemorySize, AOB
// - process_interface.go: Process, ProtectPolicy
// - process_finder.go: Locator
// - process_helper.go: Opener

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrAttach is returned when a located process cannot be opened for reading and writing.
	ErrAttach = errors.New("cannot attach to process")

	// ErrModuleNotFound is returned when the target module never shows up in the module list.
	ErrModuleNotFound = errors.New("module not found")

	// ErrBounds is returned when the in-memory image size of a module cannot be determined.
	ErrBounds = errors.New("cannot calculate module bounds")

	// ErrPatternNotFound is returned when a scan finishes without a match.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrWrite is returned when the replacement bytes cannot be written.
	ErrWrite = errors.New("cannot write process memory")

	// ErrPatchOutOfBounds is returned when the replacement would run past the end of the module.
	ErrPatchOutOfBounds = errors.New("patch exceeds module bounds")

	// ErrVerify is returned when a read-back after a write does not match what was written.
	ErrVerify = errors.New("patch verification failed")

	ErrInvalidPattern = errors.New("invalid pattern")
)
