//go:build windows

package main

import (
	"mempatch/process"
	"mempatch/process_windows"
)

func newOpener() process.Opener {
	return process_windows.NewOpener(process.ProtectLeave, false)
}
