//go:build windows

package process_windows

import (
	"context"
	"strings"
	"sync"
	"unsafe"

	"mempatch/process"

	"golang.org/x/sys/windows"
)

// WindowLocator finds the process owning the first top level window whose
// title starts with TitlePrefix
type WindowLocator struct {
	TitlePrefix string
}

var _ process.Locator = (*WindowLocator)(nil)

func NewWindowLocator(titlePrefix string) *WindowLocator {
	return &WindowLocator{TitlePrefix: titlePrefix}
}

// windows.NewCallback slots are never freed, so one callback serves every search
var (
	enumOnce     sync.Once
	enumCallback uintptr
	enumMu       sync.Mutex
)

type enumState struct {
	prefix string
	hwnd   windows.HWND
}

func (l *WindowLocator) Locate(ctx context.Context) (process.ProcessID, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	enumOnce.Do(func() {
		enumCallback = windows.NewCallback(func(hwnd windows.HWND, lparam uintptr) uintptr {
			state := (*enumState)(unsafe.Pointer(lparam))
			if strings.HasPrefix(getWindowText(hwnd), state.prefix) {
				state.hwnd = hwnd
				return 0 // stop enumeration
			}
			return 1
		})
	})

	enumMu.Lock()
	state := &enumState{prefix: l.TitlePrefix}
	// EnumWindows reports an error when the callback stops early, so the
	// result is judged by whether a window was recorded
	err := windows.EnumWindows(enumCallback, unsafe.Pointer(state))
	hwnd := state.hwnd
	enumMu.Unlock()

	if hwnd == 0 {
		if err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil {
		return 0, false, err
	}

	return process.ProcessID(pid), pid != 0, nil
}
