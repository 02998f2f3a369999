//go:build linux

package main

import (
	"mempatch/process"
	"mempatch/process_linux"
)

func newOpener() process.Opener {
	return process_linux.NewOpener(process.ProtectLeave, false)
}
