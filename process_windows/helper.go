//go:build windows

package process_windows

import (
	"mempatch/process"
)

// WindowsOpener implements the process.Opener interface
type WindowsOpener struct {
	Protect process.ProtectPolicy
	Verbose bool
}

// NewOpener creates an Opener whose processes follow policy when they relax page protection
func NewOpener(policy process.ProtectPolicy, verbose bool) process.Opener {
	return &WindowsOpener{Protect: policy, Verbose: verbose}
}

// Open attaches to pid with PROCESS_ALL_ACCESS, failures wrap process.ErrAttach
func (o *WindowsOpener) Open(pid process.ProcessID) (process.Process, error) {
	p := New(o.Protect)
	p.Verbose = o.Verbose
	if err := p.Open(pid); err != nil {
		return nil, err
	}
	return p, nil
}
