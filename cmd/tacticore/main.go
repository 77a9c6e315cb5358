// TactiCore runs deterministic, Lua-scripted tactical battles.
// Usage: tacticore [--version] [--sim] [--seed <n>] [--turns <n>] [--trace] <content_directory>
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/nathoo/tacticore/cli"
	"github.com/nathoo/tacticore/loader"
	"github.com/nathoo/tacticore/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	sim := false
	trace := false
	var seed int64 = 1
	turns := 200
	var contentDir string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("tacticore %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--sim":
			sim = true
		case "--trace":
			trace = true
		case "--seed":
			i++
			n, err := intArg(args, i, "--seed")
			if err != nil {
				fatal(err)
			}
			seed = int64(n)
		case "--turns":
			i++
			n, err := intArg(args, i, "--turns")
			if err != nil {
				fatal(err)
			}
			turns = n
		default:
			if contentDir == "" {
				contentDir = args[i]
			}
		}
	}

	if contentDir == "" {
		contentDir = "content/demo"
	}

	// Load and compile Lua battle content.
	defs, err := loader.Load(contentDir)
	if err != nil {
		fatal(fmt.Errorf("loading content: %w", err))
	}
	defer defs.Close()

	eng, err := cli.Build(defs, seed)
	if err != nil {
		fatal(err)
	}
	if trace {
		eng.Log.SetOutput(os.Stderr)
		eng.Log.SetLevel(logrus.DebugLevel)
	}

	// Headless simulation if --sim or stdout is not a terminal.
	if sim || !isTerminal() {
		fmt.Printf("%s v%s by %s\n\n", defs.Game.Title, defs.Game.Version, defs.Game.Author)
		s := cli.New(eng, defs)
		s.Turns = turns
		s.Trace = trace
		if err := s.Run(); err != nil {
			fatal(err)
		}
		return
	}

	if err := tui.Run(eng, defs); err != nil {
		fatal(err)
	}
}

func intArg(args []string, i int, flag string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%s requires a number", flag)
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", flag, err)
	}
	return n, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
