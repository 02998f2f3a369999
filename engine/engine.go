// Package engine runs a patch session: wait for the target, attach, find the
// module and its bounds, then scan and patch every job in order
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"mempatch/coloransi"
	"mempatch/config"
	"mempatch/hexdump"
	"mempatch/patch"
	"mempatch/process"
	"mempatch/process/image"
	"mempatch/resolve"
	"mempatch/search"

	"github.com/Moonlight-Companies/gologger/logger"
)

// Stage names the step of a run that failed
type Stage string

const (
	StageResolve Stage = "resolve"
	StageBounds  Stage = "bounds"
	StageScan    Stage = "scan"
	StagePatch   Stage = "patch"
)

// StageError is the error returned by Run. It unwraps to the sentinels of the
// process package.
type StageError struct {
	Stage Stage
	Job   string
	Err   error
}

func (e *StageError) Error() string {
	if e.Job != "" {
		return fmt.Sprintf("%s (%s): %v", e.Stage, e.Job, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// JobResult is where one job was applied
type JobResult struct {
	Name    string
	Address process.ProcessMemoryAddress
	// AlreadyPatched is set when the replacement was found instead of the pattern
	AlreadyPatched bool
}

type Result struct {
	PID    process.ProcessID
	Module process.Module
	Jobs   []JobResult
}

type Engine struct {
	Config   *config.Config
	Resolver *resolve.Resolver
	// Out receives the progress lines meant for the user
	Out io.Writer

	log *logger.Logger
}

// New wires a resolver from cfg around locator and opener
func New(cfg *config.Config, locator process.Locator, opener process.Opener) *Engine {
	r := resolve.New(locator, opener)
	if cfg.PollInterval > 0 {
		r.PollInterval = cfg.PollInterval
	}
	if cfg.ModuleAttempts > 0 {
		r.ModuleAttempts = cfg.ModuleAttempts
	}
	r.Verbose = cfg.Verbose

	return &Engine{
		Config:   cfg,
		Resolver: r,
		Out:      io.Discard,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorOrange, coloransi.Black, "engine")),
	}
}

// Run performs one session. The opened process is closed exactly once before
// Run returns, whatever the outcome.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	cfg := e.Config
	out := e.Out
	if out == nil {
		out = io.Discard
	}
	if e.log == nil {
		e.log = logger.NewLogger(coloransi.Color(coloransi.ColorOrange, coloransi.Black, "engine"))
	}

	if e.Resolver.Waiting == nil {
		e.Resolver.Waiting = func() {
			fmt.Fprintf(out, "Waiting for %s to start...\n", e.targetName())
		}
	}

	proc, mod, err := e.Resolver.Resolve(ctx, cfg.Target.Module)
	if err != nil {
		return nil, &StageError{Stage: StageResolve, Err: err}
	}
	defer func() {
		if err := proc.Close(); err != nil {
			e.log.Warn("Close failed: ", err)
		}
	}()

	mod, err = image.Describe(proc, mod)
	if err != nil {
		return nil, &StageError{Stage: StageBounds, Err: err}
	}
	e.verbose("Module", mod.String(), "spans", mod.Base.ToString(), "-", mod.End().ToString())

	result := &Result{PID: proc.GetPID(), Module: mod}

	fmt.Fprintln(out, "Patching...")

	for _, job := range cfg.Jobs {
		jr, err := e.runJob(proc, mod, job)
		if err != nil {
			return result, err
		}
		result.Jobs = append(result.Jobs, jr)
	}

	return result, nil
}

func (e *Engine) runJob(proc process.Process, mod process.Module, job config.Job) (JobResult, error) {
	jr := JobResult{Name: job.Name}

	addr, found, err := search.Find(proc, mod.Base, mod.Size, job.Pattern)
	if err != nil {
		return jr, &StageError{Stage: StageScan, Job: job.Name, Err: err}
	}

	if !found {
		applied, err := e.findApplied(proc, mod, job)
		if err != nil {
			return jr, &StageError{Stage: StageScan, Job: job.Name, Err: err}
		}
		if applied == nil {
			return jr, &StageError{Stage: StageScan, Job: job.Name,
				Err: fmt.Errorf("%w: %s in %s", process.ErrPatternNotFound, job.Pattern.String(), mod.Name)}
		}
		e.log.Infoln("Job", job.Name, "already applied at", applied.ToString())
		jr.Address = *applied
		jr.AlreadyPatched = true
		return jr, nil
	}

	jr.Address = addr
	e.verbose("Pattern addr:", addr.ToString(), fmt.Sprintf("(%s+0x%x)", mod.Name, uint64(addr-mod.Base)))
	if e.Config.Verbose {
		if dump, err := hexdump.Context(proc, mod, addr, job.Pattern.Len(), 16, 16); err == nil {
			e.log.Debugln("Match\n" + dump)
		}
	}

	var before []byte
	if e.Config.Verbose {
		before, _ = proc.ReadMemory(addr, process.ProcessMemorySize(len(job.Replacement)))
	}

	err = patch.Apply(proc, mod, addr, job.Replacement, patch.Options{Verify: e.Config.Verify})
	if err != nil {
		return jr, &StageError{Stage: StagePatch, Job: job.Name, Err: err}
	}

	e.verbose("Patched!")
	if before != nil {
		if after, err := proc.ReadMemory(addr, process.ProcessMemorySize(len(job.Replacement))); err == nil {
			e.log.Debugln("Write\n" + hexdump.Diff(addr, before, after))
		}
	}

	return jr, nil
}

// findApplied looks for the replacement bytes where the pattern used to be.
// A nil address means the module holds neither. Replacements no longer than
// the pattern are too likely to occur by chance and are never looked for.
func (e *Engine) findApplied(proc process.Process, mod process.Module, job config.Job) (*process.ProcessMemoryAddress, error) {
	if len(job.Replacement) <= job.Pattern.Len() {
		return nil, nil
	}
	aob, err := process.NewAOB(job.Replacement, nil)
	if err != nil {
		return nil, err
	}
	addr, found, err := search.Find(proc, mod.Base, mod.Size, aob)
	if err != nil || !found {
		return nil, err
	}
	return &addr, nil
}

func (e *Engine) targetName() string {
	if e.Config.Target.WindowTitle != "" {
		return e.Config.Target.WindowTitle
	}
	return e.Config.Target.ProcessName
}

func (e *Engine) verbose(v ...interface{}) {
	if e.Config.Verbose {
		e.log.Debugln(v...)
	}
}

// IsStage reports whether err is a StageError from stage
func IsStage(err error, stage Stage) bool {
	var se *StageError
	return errors.As(err, &se) && se.Stage == stage
}
