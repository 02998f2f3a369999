// Package locator holds the platform independent process locators
package locator

import (
	"context"
	"path/filepath"
	"strings"

	"mempatch/process"

	"github.com/samber/lo"
	gopsprocess "github.com/shirou/gopsutil/v3/process"
)

// Candidate is one running process as seen by a lister
type Candidate struct {
	PID  process.ProcessID
	Name string
	Exe  string
}

// Lister returns the running processes
type Lister func(ctx context.Context) ([]Candidate, error)

// NameLocator finds a process by exact executable name ("hl2.exe", "tf_linux64")
type NameLocator struct {
	Name       string
	IgnoreCase bool
	List       Lister
}

var _ process.Locator = (*NameLocator)(nil)

// NewNameLocator returns a locator backed by gopsutil's process list. Names
// compare case-insensitively on Windows only.
func NewNameLocator(name string, ignoreCase bool) *NameLocator {
	return &NameLocator{Name: name, IgnoreCase: ignoreCase, List: SystemProcesses}
}

// Locate returns the lowest PID whose name or executable base name equals Name
func (l *NameLocator) Locate(ctx context.Context) (process.ProcessID, bool, error) {
	list := l.List
	if list == nil {
		list = SystemProcesses
	}

	candidates, err := list(ctx)
	if err != nil {
		return 0, false, err
	}

	matches := lo.Filter(candidates, func(c Candidate, _ int) bool {
		return l.equal(c.Name) || (c.Exe != "" && l.equal(filepath.Base(c.Exe)))
	})
	if len(matches) == 0 {
		return 0, false, nil
	}

	best := lo.MinBy(matches, func(a, b Candidate) bool { return a.PID < b.PID })
	return best.PID, true, nil
}

func (l *NameLocator) equal(name string) bool {
	if l.IgnoreCase {
		return strings.EqualFold(name, l.Name)
	}
	return name == l.Name
}

// SystemProcesses lists processes with gopsutil. Processes that vanish or
// deny access while being inspected are skipped.
func SystemProcesses(ctx context.Context) ([]Candidate, error) {
	procs, err := gopsprocess.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		exe, _ := p.ExeWithContext(ctx)
		candidates = append(candidates, Candidate{
			PID:  process.ProcessID(p.Pid),
			Name: name,
			Exe:  exe,
		})
	}
	return candidates, nil
}
