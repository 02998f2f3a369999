//go:build linux

package main

import (
	"errors"
	"regexp"

	"mempatch/config"
	"mempatch/process"
	"mempatch/process/locator"
	"mempatch/process_linux"
)

// There are no window titles to match on Linux, only process names
func newLocator(t config.Target) (process.Locator, error) {
	if t.ProcessName == "" {
		return nil, errors.New("-name is required on linux")
	}

	cmdline, err := process_linux.NewCmdlineLocator("^" + regexp.QuoteMeta(t.ProcessName) + "$")
	if err != nil {
		return nil, err
	}
	return process.FirstOf(cmdline, locator.NewNameLocator(t.ProcessName, false)), nil
}

func newOpener(policy process.ProtectPolicy, verbose bool) process.Opener {
	return process_linux.NewOpener(policy, verbose)
}
