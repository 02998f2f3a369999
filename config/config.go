// Package config holds the patch target, the patch jobs and the command line
// flags that override them
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"runtime"
	"time"

	"mempatch/process"
)

// Target says which process and which module to patch
type Target struct {
	// WindowTitle is a prefix of the main window title (Windows only)
	WindowTitle string
	// ProcessName is the executable name, used when no window matches
	ProcessName string
	// Module is the base file name of the module to scan
	Module string
}

// Job is one pattern and the bytes written over its first match
type Job struct {
	Name        string
	Pattern     process.AOB
	Replacement []byte
}

type Config struct {
	Target         Target
	Jobs           []Job
	Verbose        bool
	Verify         bool
	Protect        process.ProtectPolicy
	PollInterval   time.Duration
	ModuleAttempts int
}

const (
	DefaultPattern     = "09 83 ?? ?? 00 00 ?? C7"
	DefaultReplacement = "90 90 90 90 90 90 FF C7 90 90 90 90 90 90 90"
)

// Default returns the built-in profile: the decal restriction check in the
// Team Fortress 2 client module
func Default() *Config {
	return DefaultFor(runtime.GOOS)
}

func DefaultFor(goos string) *Config {
	target := Target{
		WindowTitle: "Team Fortress 2",
		ProcessName: "hl2.exe",
		Module:      "client.dll",
	}
	if goos != "windows" {
		target.ProcessName = "tf_linux64"
		target.Module = "client.so"
	}

	return &Config{
		Target: target,
		Jobs: []Job{{
			Name:        "decals",
			Pattern:     mustParseAOB(DefaultPattern),
			Replacement: mustParseBytes(DefaultReplacement),
		}},
		PollInterval:   time.Second,
		ModuleAttempts: 31,
	}
}

// Validate checks that the config can drive a run
func (c *Config) Validate() error {
	if c.Target.WindowTitle == "" && c.Target.ProcessName == "" {
		return errors.New("no window title or process name to look for")
	}
	if c.Target.Module == "" {
		return errors.New("no module name")
	}
	if len(c.Jobs) == 0 {
		return errors.New("no patch jobs")
	}
	for _, j := range c.Jobs {
		if j.Pattern.Len() == 0 || !j.Pattern.IsValid() {
			return fmt.Errorf("job %q: %w", j.Name, process.ErrInvalidPattern)
		}
		if len(j.Replacement) == 0 {
			return fmt.Errorf("job %q: empty replacement", j.Name)
		}
	}
	return nil
}

// Parse applies args on top of Default, or on top of the profile named by
// -profile. Flags given explicitly win over the profile. flag.ErrHelp is
// returned for -h.
func Parse(name string, args []string, output io.Writer) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		pattern = DefaultPattern
		replace = DefaultReplacement
		profile string
		restore bool
	)

	fs.BoolVar(&cfg.Verbose, "v", false, "Print diagnostic information")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "Print diagnostic information")
	fs.StringVar(&profile, "profile", "", "YAML file with the target and its patches")
	fs.StringVar(&cfg.Target.WindowTitle, "window", cfg.Target.WindowTitle, "Window title prefix of the target (Windows)")
	fs.StringVar(&cfg.Target.ProcessName, "name", cfg.Target.ProcessName, "Executable name of the target")
	fs.StringVar(&cfg.Target.Module, "module", cfg.Target.Module, "Module to scan")
	fs.StringVar(&pattern, "pattern", pattern, "Byte pattern, ?? for a wildcard byte")
	fs.StringVar(&replace, "replace", replace, "Replacement bytes written at the match")
	fs.BoolVar(&cfg.Verify, "verify", false, "Read the patch back after writing")
	fs.BoolVar(&restore, "restore", false, "Restore page protection after writing")
	fs.DurationVar(&cfg.PollInterval, "interval", cfg.PollInterval, "Wait between polls")
	fs.IntVar(&cfg.ModuleAttempts, "attempts", cfg.ModuleAttempts, "Module lookup attempts")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	if restore {
		cfg.Protect = process.ProtectRestore
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if profile != "" {
		base := Default()
		if err := LoadProfileFile(profile, base); err != nil {
			return nil, err
		}
		base.Verbose = cfg.Verbose
		overlay(base, cfg, set)
		cfg = base
	}

	if set["pattern"] || set["replace"] {
		aob, err := process.ParseAOB(pattern)
		if err != nil {
			return nil, fmt.Errorf("-pattern: %w", err)
		}
		repl, err := process.ParseBytes(replace)
		if err != nil {
			return nil, fmt.Errorf("-replace: %w", err)
		}
		cfg.Jobs = []Job{{Name: "custom", Pattern: aob, Replacement: repl}}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlay copies the fields of the explicitly set flags from flags into dst
func overlay(dst, flags *Config, set map[string]bool) {
	if set["window"] {
		dst.Target.WindowTitle = flags.Target.WindowTitle
	}
	if set["name"] {
		dst.Target.ProcessName = flags.Target.ProcessName
	}
	if set["module"] {
		dst.Target.Module = flags.Target.Module
	}
	if set["verify"] {
		dst.Verify = flags.Verify
	}
	if set["restore"] {
		dst.Protect = flags.Protect
	}
	if set["interval"] {
		dst.PollInterval = flags.PollInterval
	}
	if set["attempts"] {
		dst.ModuleAttempts = flags.ModuleAttempts
	}
}

func mustParseAOB(s string) process.AOB {
	aob, err := process.ParseAOB(s)
	if err != nil {
		panic(err)
	}
	return aob
}

func mustParseBytes(s string) []byte {
	b, err := process.ParseBytes(s)
	if err != nil {
		panic(err)
	}
	return b
}
