//go:build windows

package main

import (
	"mempatch/config"
	"mempatch/process"
	"mempatch/process/locator"
	"mempatch/process_windows"
)

func newLocator(t config.Target) (process.Locator, error) {
	var locators []process.Locator
	if t.WindowTitle != "" {
		locators = append(locators, process_windows.NewWindowLocator(t.WindowTitle))
	}
	if t.ProcessName != "" {
		locators = append(locators, locator.NewNameLocator(t.ProcessName, true))
	}
	return process.FirstOf(locators...), nil
}

func newOpener(policy process.ProtectPolicy, verbose bool) process.Opener {
	return process_windows.NewOpener(policy, verbose)
}
