package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"mempatch/process"
	"mempatch/process_blob"
)

// fakeClock records sleeps instead of waiting
type fakeClock struct {
	sleeps []time.Duration
	cancel context.CancelFunc
	// cancelAfter cancels the context on that sleep, 0 disables it
	cancelAfter int
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if c.cancelAfter > 0 && len(c.sleeps) >= c.cancelAfter {
		c.cancel()
	}
	return ctx.Err()
}

// afterPolls is found on poll n
func afterPolls(n int, pid process.ProcessID) (process.Locator, *int) {
	calls := 0
	return process.LocatorFunc(func(context.Context) (process.ProcessID, bool, error) {
		calls++
		if calls < n {
			return 0, false, nil
		}
		return pid, true, nil
	}), &calls
}

func newTestResolver(locator process.Locator, opener process.Opener) (*Resolver, *fakeClock) {
	clock := &fakeClock{}
	r := New(locator, opener)
	r.Sleep = clock.Sleep
	return r, clock
}

func TestWaitForProcessPollsUntilFound(t *testing.T) {
	locator, calls := afterPolls(100, 1234)
	r, clock := newTestResolver(locator, nil)
	waited := 0
	r.Waiting = func() { waited++ }

	pid, err := r.WaitForProcess(context.Background())
	if err != nil || pid != 1234 {
		t.Fatalf("expected pid 1234 - got %d, %v", pid, err)
	}
	if *calls != 100 || len(clock.sleeps) != 99 {
		t.Fatalf("expected 100 polls and 99 sleeps - got %d and %d", *calls, len(clock.sleeps))
	}
	if clock.sleeps[0] != time.Second {
		t.Fatalf("expected a 1s poll interval - got %v", clock.sleeps[0])
	}
	if waited != 1 {
		t.Fatalf("expected Waiting once - got %d", waited)
	}
	if r.State() != ProcessFound {
		t.Fatalf("expected state %v - got %v", ProcessFound, r.State())
	}
}

func TestWaitForProcessLocatorErrorsKeepPolling(t *testing.T) {
	calls := 0
	locator := process.LocatorFunc(func(context.Context) (process.ProcessID, bool, error) {
		calls++
		if calls < 3 {
			return 0, false, errors.New("transient")
		}
		return 55, true, nil
	})
	r, _ := newTestResolver(locator, nil)

	pid, err := r.WaitForProcess(context.Background())
	if err != nil || pid != 55 {
		t.Fatalf("expected pid 55 after errors - got %d, %v", pid, err)
	}
}

func TestWaitForProcessCancel(t *testing.T) {
	locator, _ := afterPolls(1<<30, 1)
	r, clock := newTestResolver(locator, nil)

	ctx, cancel := context.WithCancel(context.Background())
	clock.cancel = cancel
	clock.cancelAfter = 5

	_, err := r.WaitForProcess(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled - got %v", err)
	}
	if r.State() != Unattached {
		t.Fatalf("expected state %v - got %v", Unattached, r.State())
	}
}

func TestAttachFailure(t *testing.T) {
	dump := process_blob.NewProcessDump(10)
	r, _ := newTestResolver(nil, dump.Opener())

	_, err := r.Attach(11)
	if !errors.Is(err, process.ErrAttach) {
		t.Fatalf("expected ErrAttach - got %v", err)
	}

	proc, err := r.Attach(10)
	if err != nil || proc.GetPID() != 10 {
		t.Fatalf("expected to attach to pid 10 - got %v", err)
	}
	if r.State() != ProcessOpened {
		t.Fatalf("expected state %v - got %v", ProcessOpened, r.State())
	}
}

// lateModules lists its modules only from enumeration number visibleFrom on
type lateModules struct {
	*process_blob.ProcessDump
	visibleFrom int
	calls       int
	err         error
}

func (p *lateModules) Modules() ([]process.Module, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if p.calls < p.visibleFrom {
		return nil, nil
	}
	return p.ProcessDump.Modules()
}

func TestFindModuleRetries(t *testing.T) {
	dump := process_blob.NewProcessDump(10)
	dump.AddModule("engine.dll", 0x20000000, make([]byte, 0x100))
	dump.AddModule("client.dll", 0x30000000, make([]byte, 0x100))
	dump.AddModule("client.dll", 0x40000000, make([]byte, 0x100))
	proc := &lateModules{ProcessDump: dump, visibleFrom: 31}

	r, clock := newTestResolver(nil, nil)
	m, err := r.FindModule(context.Background(), proc, "client.dll")
	if err != nil {
		t.Fatalf("expected the module on the last attempt - got %v", err)
	}
	if m.Base != 0x30000000 {
		t.Fatalf("expected the first match in enumeration order - got %s", m.String())
	}
	if proc.calls != 31 || len(clock.sleeps) != 30 {
		t.Fatalf("expected 31 enumerations and 30 sleeps - got %d and %d", proc.calls, len(clock.sleeps))
	}
}

func TestFindModuleGivesUp(t *testing.T) {
	dump := process_blob.NewProcessDump(10)
	dump.AddModule("Client.dll", 0x30000000, make([]byte, 0x100))
	proc := &lateModules{ProcessDump: dump}

	r, clock := newTestResolver(nil, nil)
	_, err := r.FindModule(context.Background(), proc, "client.dll")
	if !errors.Is(err, process.ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound - got %v", err)
	}
	if proc.calls != DefaultModuleAttempts || len(clock.sleeps) != DefaultModuleAttempts-1 {
		t.Fatalf("expected %d enumerations - got %d (%d sleeps)", DefaultModuleAttempts, proc.calls, len(clock.sleeps))
	}
}

func TestFindModuleEnumerationError(t *testing.T) {
	proc := &lateModules{ProcessDump: process_blob.NewProcessDump(10), err: errors.New("ERROR_PARTIAL_COPY")}

	r, _ := newTestResolver(nil, nil)
	_, err := r.FindModule(context.Background(), proc, "client.dll")
	if !errors.Is(err, process.ErrModuleNotFound) || proc.calls != 1 {
		t.Fatalf("expected an immediate ErrModuleNotFound - got %v after %d calls", err, proc.calls)
	}
}

func TestResolveClosesOnModuleFailure(t *testing.T) {
	dump := process_blob.NewProcessDump(10)
	locator, _ := afterPolls(3, 10)
	r, _ := newTestResolver(locator, dump.Opener())
	r.ModuleAttempts = 2

	_, _, err := r.Resolve(context.Background(), "client.dll")
	if !errors.Is(err, process.ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound - got %v", err)
	}
	if dump.Releases() != 1 {
		t.Fatalf("expected the process to be released once - got %d", dump.Releases())
	}
}

func TestResolve(t *testing.T) {
	dump := process_blob.NewProcessDump(10)
	dump.AddModule("client.dll", 0x30000000, make([]byte, 0x100))
	r, _ := newTestResolver(process.LocatorFunc(func(context.Context) (process.ProcessID, bool, error) {
		return 10, true, nil
	}), dump.Opener())

	proc, m, err := r.Resolve(context.Background(), "client.dll")
	if err != nil {
		t.Fatalf("Resolve failed - got %v", err)
	}
	if proc.GetPID() != 10 || m.Name != "client.dll" || r.State() != ModuleFound {
		t.Fatalf("unexpected result - got pid %d, %s, %v", proc.GetPID(), m.String(), r.State())
	}
	if dump.Releases() != 0 {
		t.Fatalf("expected the process to stay open")
	}
}
