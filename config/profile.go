package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"mempatch/process"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// A profile file describes a target and its patches, e.g.
//
//	target:
//	  window: Team Fortress 2
//	  name: hl2.exe
//	  module: client.dll
//	verify: true
//	patches:
//	  - name: decals
//	    pattern: 09 83 ?? ?? 00 00 ?? C7
//	    replace: 90 90 90 90 90 90 FF C7 90 90 90 90 90 90 90
type profile struct {
	Target   profileTarget  `yaml:"target"`
	Verify   *bool          `yaml:"verify,omitempty"`
	Restore  *bool          `yaml:"restore,omitempty"`
	Interval string         `yaml:"interval,omitempty"`
	Attempts int            `yaml:"attempts,omitempty"`
	Patches  []profilePatch `yaml:"patches"`
}

type profileTarget struct {
	Window string `yaml:"window,omitempty"`
	Name   string `yaml:"name,omitempty"`
	Module string `yaml:"module,omitempty"`
}

type profilePatch struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Enabled     *bool  `yaml:"enabled,omitempty"`
	Pattern     string `yaml:"pattern"`
	Replace     string `yaml:"replace"`
}

func (p profilePatch) enabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// LoadProfile applies the profile read from r on top of cfg. Target fields
// left out keep their value; a patch list replaces cfg's jobs.
func LoadProfile(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p profile
	if err := dec.Decode(&p); err != nil {
		return fmt.Errorf("profile: %w", err)
	}

	if p.Target.Window != "" {
		cfg.Target.WindowTitle = p.Target.Window
	}
	if p.Target.Name != "" {
		cfg.Target.ProcessName = p.Target.Name
	}
	if p.Target.Module != "" {
		cfg.Target.Module = p.Target.Module
	}
	if p.Verify != nil {
		cfg.Verify = *p.Verify
	}
	if p.Restore != nil {
		cfg.Protect = process.ProtectLeave
		if *p.Restore {
			cfg.Protect = process.ProtectRestore
		}
	}
	if p.Interval != "" {
		d, err := time.ParseDuration(p.Interval)
		if err != nil {
			return fmt.Errorf("profile: interval: %w", err)
		}
		cfg.PollInterval = d
	}
	if p.Attempts > 0 {
		cfg.ModuleAttempts = p.Attempts
	}

	if len(p.Patches) == 0 {
		return nil
	}

	enabled := lo.Filter(p.Patches, func(patch profilePatch, _ int) bool {
		return patch.enabled()
	})
	if len(enabled) == 0 {
		return fmt.Errorf("profile: all %d patches are disabled", len(p.Patches))
	}

	jobs := make([]Job, 0, len(enabled))
	for i, patch := range enabled {
		name := patch.Name
		if name == "" {
			name = fmt.Sprintf("patch-%d", i+1)
		}
		aob, err := process.ParseAOB(patch.Pattern)
		if err != nil {
			return fmt.Errorf("profile: %s: pattern: %w", name, err)
		}
		repl, err := process.ParseBytes(patch.Replace)
		if err != nil {
			return fmt.Errorf("profile: %s: replace: %w", name, err)
		}
		jobs = append(jobs, Job{Name: name, Pattern: aob, Replacement: repl})
	}

	if dup := lo.FindDuplicatesBy(jobs, func(j Job) string { return j.Name }); len(dup) > 0 {
		return fmt.Errorf("profile: duplicate patch name %q", dup[0].Name)
	}

	cfg.Jobs = jobs
	return nil
}

// LoadProfileFile is LoadProfile for a file on disk
func LoadProfileFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return LoadProfile(f, cfg)
}
