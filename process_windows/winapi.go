//go:build windows

package process_windows

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// Calls golang.org/x/sys/windows has no wrapper for
var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	user32                    = windows.NewLazySystemDLL("user32.dll")
	procFlushInstructionCache = kernel32.NewProc("FlushInstructionCache")
	procGetWindowTextW        = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW  = user32.NewProc("GetWindowTextLengthW")
)

func flushInstructionCache(process windows.Handle, addr uintptr, size uintptr) {
	procFlushInstructionCache.Call(uintptr(process), addr, size)
}

func getWindowText(hwnd windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	ret, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if ret == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:ret])
}
