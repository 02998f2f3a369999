package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"mempatch/hexdump"
	"mempatch/process"
	"mempatch/process/image"
	"mempatch/resolve"
	"mempatch/search"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, newOpener()))
}

// run returns the exit code so deferred cleanup happens before os.Exit
func run(args []string, out io.Writer, opener process.Opener) int {
	fs := flag.NewFlagSet("module_aob", flag.ContinueOnError)
	fs.SetOutput(out)

	pidFlag := fs.Int("pid", 0, "Process ID to attach to")
	moduleFlag := fs.String("module", "", "Module to scan (e.g., 'client.dll')")
	aobFlag := fs.String("aob", "", "Array of bytes to scan for (e.g., '09 83 ?? ?? 00 00 ?? c7')")
	limitFlag := fs.Int("limit", 0, "Stop after this many matches (0 for all)")
	contextFlag := fs.Int("context", 16, "Bytes of context to dump around each match")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *pidFlag == 0 {
		fmt.Fprintln(out, "Error: --pid is required")
		fs.Usage()
		return 1
	}

	if *moduleFlag == "" || *aobFlag == "" {
		fmt.Fprintln(out, "Error: --module and --aob are required")
		fs.Usage()
		return 1
	}

	aob, err := process.ParseAOB(*aobFlag)
	if err != nil {
		fmt.Fprintf(out, "Error parsing AOB: %v\n", err)
		return 1
	}

	proc, err := opener.Open(process.ProcessID(*pidFlag))
	if err != nil {
		fmt.Fprintf(out, "Error attaching to process %d: %v\n", *pidFlag, err)
		return 1
	}
	defer proc.Close()

	fmt.Fprintf(out, "Attached to process %d\n", *pidFlag)

	r := resolve.New(nil, nil)
	r.ModuleAttempts = 1
	mod, err := r.FindModule(context.Background(), proc, *moduleFlag)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}

	mod, err = image.Describe(proc, mod)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(out, "Scanning %s for pattern: %s\n", mod.String(), aob.String())

	matches, err := search.FindAll(proc, mod.Base, mod.Size, aob, search.WithLimit(*limitFlag))
	if err != nil {
		fmt.Fprintf(out, "Error scanning memory: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Found %d matches:\n", len(matches))

	for _, match := range matches {
		fmt.Fprintf(out, "Match at %s (%s+0x%x):\n", match.ToString(), mod.Name, uint64(match-mod.Base))

		dump, err := hexdump.Context(proc, mod, match, aob.Len(), *contextFlag, *contextFlag)
		if err != nil {
			fmt.Fprintf(out, "  cannot read context: %v\n", err)
			continue
		}
		fmt.Fprintln(out, dump)
	}
	return 0
}
