package locator

import (
	"context"
	"errors"
	"testing"

	"mempatch/process"
)

func list(candidates ...Candidate) Lister {
	return func(context.Context) ([]Candidate, error) {
		return candidates, nil
	}
}

func TestNameLocator(t *testing.T) {
	l := &NameLocator{Name: "hl2.exe", List: list(
		Candidate{PID: 900, Name: "steam.exe"},
		Candidate{PID: 812, Name: "hl2.exe"},
		Candidate{PID: 640, Name: "launcher", Exe: "/opt/games/hl2.exe"},
		Candidate{PID: 100, Name: "HL2.EXE"},
	)}

	pid, found, err := l.Locate(context.Background())
	if err != nil || !found || pid != 640 {
		t.Fatalf("expected the lowest exact match 640 - got %d, %v, %v", pid, found, err)
	}

	l.IgnoreCase = true
	pid, _, _ = l.Locate(context.Background())
	if pid != 100 {
		t.Fatalf("expected the case insensitive match 100 - got %d", pid)
	}
}

func TestNameLocatorMissAndError(t *testing.T) {
	l := &NameLocator{Name: "tf_linux64", List: list(Candidate{PID: 1, Name: "systemd"})}
	if _, found, err := l.Locate(context.Background()); found || err != nil {
		t.Fatalf("expected a clean miss - got %v, %v", found, err)
	}

	boom := errors.New("boom")
	l.List = func(context.Context) ([]Candidate, error) { return nil, boom }
	if _, _, err := l.Locate(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the lister error - got %v", err)
	}
}

func TestSystemProcessesIncludesSelf(t *testing.T) {
	candidates, err := SystemProcesses(context.Background())
	if err != nil {
		t.Skipf("process listing unavailable: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatalf("expected at least one process")
	}
	var _ process.Locator = NewNameLocator("anything", false)
}
