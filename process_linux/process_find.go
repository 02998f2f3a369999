//go:build linux

package process_linux

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"mempatch/process"
)

// CmdlineLocator finds a process whose name, executable or argv[0] base name
// matches a pattern. Later arguments are ignored: a shell or sudo carrying the
// target name as a parameter is not the target. Linux has no portable notion
// of a window title, so this is the stand-in for the Windows title lookup.
type CmdlineLocator struct {
	Pattern *regexp.Regexp
	procDir string
}

var _ process.Locator = (*CmdlineLocator)(nil)

// NewCmdlineLocator compiles pattern and returns a locator over /proc
func NewCmdlineLocator(pattern string) (*CmdlineLocator, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}
	return &CmdlineLocator{Pattern: re, procDir: "/proc"}, nil
}

// Locate returns the lowest matching PID so repeated calls are deterministic
func (l *CmdlineLocator) Locate(ctx context.Context) (process.ProcessID, bool, error) {
	entries, err := os.ReadDir(l.procDir)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s: %w", l.procDir, err)
	}

	self := os.Getpid()
	best := process.ProcessID(0)

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}

		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid <= 0 || pid == self {
			continue
		}

		// Process may have terminated while we were reading
		info, err := l.processInfo(process.ProcessID(pid))
		if err != nil {
			continue
		}

		if !l.matches(info) {
			continue
		}

		if best == 0 || info.pid < best {
			best = info.pid
		}
	}

	return best, best != 0, nil
}

type procInfo struct {
	pid     process.ProcessID
	name    string
	exe     string
	cmdline []string
}

func (l *CmdlineLocator) matches(info *procInfo) bool {
	if l.Pattern.MatchString(info.name) {
		return true
	}
	if info.exe != "" && l.Pattern.MatchString(filepath.Base(info.exe)) {
		return true
	}
	if len(info.cmdline) > 0 && info.cmdline[0] != "" {
		return l.Pattern.MatchString(filepath.Base(info.cmdline[0]))
	}
	return false
}

func (l *CmdlineLocator) processInfo(pid process.ProcessID) (*procInfo, error) {
	procPath := filepath.Join(l.procDir, strconv.Itoa(int(pid)))

	nameBytes, err := os.ReadFile(filepath.Join(procPath, "comm"))
	if err != nil {
		return nil, fmt.Errorf("failed to read process name: %w", err)
	}

	// Kernel threads and zombies have no exe
	exe, _ := os.Readlink(filepath.Join(procPath, "exe"))

	cmdlineBytes, err := os.ReadFile(filepath.Join(procPath, "cmdline"))
	if err != nil {
		return nil, fmt.Errorf("failed to read process cmdline: %w", err)
	}

	var cmdline []string
	cmdlineBytes = bytes.TrimSuffix(cmdlineBytes, []byte{0})
	if len(cmdlineBytes) > 0 {
		for _, arg := range bytes.Split(cmdlineBytes, []byte{0}) {
			cmdline = append(cmdline, string(arg))
		}
	}

	return &procInfo{
		pid:     pid,
		name:    strings.TrimSpace(string(nameBytes)),
		exe:     exe,
		cmdline: cmdline,
	}, nil
}
