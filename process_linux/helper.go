//go:build linux

package process_linux

import (
	"mempatch/process"
)

// LinuxOpener implements the process.Opener interface
type LinuxOpener struct {
	Verbose bool
}

// NewOpener creates a new LinuxOpener. Protection never has to be relaxed on
// Linux (see WriteMemory), so the policy is accepted for symmetry with Windows.
func NewOpener(policy process.ProtectPolicy, verbose bool) process.Opener {
	return &LinuxOpener{Verbose: verbose}
}

// Open attaches to pid, failures wrap process.ErrAttach
func (o *LinuxOpener) Open(pid process.ProcessID) (process.Process, error) {
	p := New()
	p.Verbose = o.Verbose
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}
