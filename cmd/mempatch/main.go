package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"mempatch/config"
	"mempatch/engine"
)

const banner = `  --------------------------------------------
  |       process memory patcher 1.0.0       |
  --------------------------------------------
`

// printBanner writes the banner followed by one blank line
func printBanner(w io.Writer) {
	fmt.Fprint(w, banner+"\n")
}

func main() {
	printBanner(os.Stdout)

	cfg, err := config.Parse("mempatch", os.Args[1:], os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}

	if cfg.Verbose {
		fmt.Println("Running in verbose mode")
	}

	locator, err := newLocator(cfg.Target)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e := engine.New(cfg, locator, newOpener(cfg.Protect, cfg.Verbose))
	e.Out = os.Stdout

	result, err := e.Run(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		fmt.Println("Press any key to exit...")
		bufio.NewReader(os.Stdin).ReadByte()
		stop()
		os.Exit(1)
	}

	for _, j := range result.Jobs {
		if j.AlreadyPatched {
			fmt.Printf("%s: already patched at %s\n", j.Name, j.Address.ToString())
		}
	}
	fmt.Println("Done!")
}
