// Package resolve waits for the target process, attaches to it and finds the
// target module inside it
package resolve

import (
	"context"
	"fmt"
	"time"

	"mempatch/coloransi"
	"mempatch/process"

	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	DefaultPollInterval   = time.Second
	DefaultModuleAttempts = 31
)

// State is how far a Resolver got
type State int

const (
	Unattached State = iota
	ProcessFound
	ProcessOpened
	ModuleFound
)

func (s State) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case ProcessFound:
		return "process-found"
	case ProcessOpened:
		return "process-opened"
	case ModuleFound:
		return "module-found"
	}
	return "unknown"
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real clock
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Resolver turns a Locator and an Opener into an open process and one of its modules
type Resolver struct {
	Locator process.Locator
	Opener  process.Opener

	// PollInterval is the wait between locator polls and between module enumerations
	PollInterval time.Duration
	// ModuleAttempts bounds the module enumerations
	ModuleAttempts int
	Sleep          SleepFunc
	Verbose        bool

	// Waiting is called once when the first poll finds nothing
	Waiting func()

	state State
	log   *logger.Logger
}

// New returns a Resolver with the default interval, attempt count and clock
func New(locator process.Locator, opener process.Opener) *Resolver {
	return &Resolver{
		Locator:        locator,
		Opener:         opener,
		PollInterval:   DefaultPollInterval,
		ModuleAttempts: DefaultModuleAttempts,
		Sleep:          Sleep,
		log:            logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.Black, "resolver")),
	}
}

func (r *Resolver) State() State {
	return r.state
}

// WaitForProcess polls the locator until it reports a process. There is no
// attempt limit; only ctx ends the wait early.
func (r *Resolver) WaitForProcess(ctx context.Context) (process.ProcessID, error) {
	r.init()
	r.state = Unattached

	for polls := 1; ; polls++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		pid, found, err := r.Locator.Locate(ctx)
		switch {
		case err != nil:
			r.log.Warn("Locator failed: ", err)
		case found:
			r.state = ProcessFound
			if r.Verbose {
				r.log.Debugln("Found process", pid, "after", polls, "polls")
			}
			return pid, nil
		}

		if polls == 1 && r.Waiting != nil {
			r.Waiting()
		}
		if err := r.Sleep(ctx, r.PollInterval); err != nil {
			return 0, err
		}
	}
}

// Attach opens pid. There is no retry.
func (r *Resolver) Attach(pid process.ProcessID) (process.Process, error) {
	r.init()

	proc, err := r.Opener.Open(pid)
	if err != nil {
		return nil, fmt.Errorf("%w: pid %d: %v", process.ErrAttach, pid, err)
	}

	r.state = ProcessOpened
	return proc, nil
}

// FindModule enumerates the modules of proc up to ModuleAttempts times, sleeping
// PollInterval in between, and returns the first one named name. An
// enumeration error ends the search at once.
func (r *Resolver) FindModule(ctx context.Context, proc process.Process, name string) (process.Module, error) {
	r.init()

	attempts := r.ModuleAttempts
	if attempts < 1 {
		attempts = DefaultModuleAttempts
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		modules, err := proc.Modules()
		if err != nil {
			return process.Module{}, fmt.Errorf("%w: %s: enumerating modules: %v", process.ErrModuleNotFound, name, err)
		}

		for _, m := range modules {
			if m.Name == name {
				r.state = ModuleFound
				if r.Verbose {
					r.log.Debugln("Found", m.String(), "among", len(modules), "modules on attempt", attempt)
				}
				return m, nil
			}
		}

		if r.Verbose {
			r.log.Debugln("Module", name, "not loaded yet,", len(modules), "modules, attempt", attempt, "of", attempts)
		}

		if attempt == attempts {
			break
		}
		if err := r.Sleep(ctx, r.PollInterval); err != nil {
			return process.Module{}, err
		}
	}

	return process.Module{}, fmt.Errorf("%w: %s after %d attempts", process.ErrModuleNotFound, name, attempts)
}

// Resolve runs the three steps. On any failure after the process was opened
// the process is closed before returning.
func (r *Resolver) Resolve(ctx context.Context, moduleName string) (process.Process, process.Module, error) {
	pid, err := r.WaitForProcess(ctx)
	if err != nil {
		return nil, process.Module{}, err
	}

	proc, err := r.Attach(pid)
	if err != nil {
		return nil, process.Module{}, err
	}

	m, err := r.FindModule(ctx, proc, moduleName)
	if err != nil {
		proc.Close()
		return nil, process.Module{}, err
	}

	return proc, m, nil
}

func (r *Resolver) init() {
	if r.log == nil {
		r.log = logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.Black, "resolver"))
	}
	if r.Sleep == nil {
		r.Sleep = Sleep
	}
	if r.PollInterval <= 0 {
		r.PollInterval = DefaultPollInterval
	}
}
