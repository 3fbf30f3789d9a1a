// docheck checks the DO, DO CONCURRENT, CYCLE and EXIT constraints of
// free-form Fortran source files and prints diagnostics with source excerpts.
//
// Usage:
//
//	docheck [flags] file.f90 [file2.f90 ...]
//
// Configuration is read from .docheck.yaml, then DOCHECK_STD,
// DOCHECK_WARN_REAL_DO and NO_COLOR, then the command-line flags:
//
//	std: pedantic
//	warn-real-do: true
//
// The exit status is 1 when any error diagnostic is reported.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

// errFound is returned by the command when a checked file has errors.
var errFound = errors.New("errors found")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := newCommand().Run(ctx, os.Args)
	if errors.Is(err, errFound) {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "docheck: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                   "docheck",
		Usage:                  "Check DO and DO CONCURRENT constructs of Fortran source",
		ArgsUsage:              "<file.f90>...",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "std",
				Usage: "conformance mode: extensions, pedantic or strict",
			},
			&cli.BoolFlag{
				Name:  "warn-real-do",
				Usage: "warn about REAL and DOUBLE PRECISION DO controls",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "configuration file (default " + defaultConfigFile + " if present)",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "check again whenever a file is written",
			},
			&cli.BoolFlag{
				Name:    "parallel",
				Aliases: []string{"p"},
				Usage:   "check program units concurrently",
			},
			&cli.BoolFlag{
				Name:    "no-color",
				Aliases: []string{"C"},
				Usage:   "disable ANSI color output",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "print progress to stderr",
			},
			&cli.BoolFlag{
				Name:  "ast",
				Usage: "print the syntax tree of each file to stderr",
			},
		},
		Action: checkAction,
	}
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() == 0 {
		return fmt.Errorf("usage: docheck [flags] <file.f90>...")
	}
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	cfg.applyEnv()
	if cmd.IsSet("std") {
		cfg.Std = cmd.String("std")
	}
	if cmd.IsSet("warn-real-do") {
		cfg.WarnRealDo = cmd.Bool("warn-real-do")
	}
	if cmd.IsSet("parallel") {
		cfg.Parallel = cmd.Bool("parallel")
	}
	if cmd.Bool("no-color") {
		cfg.NoColor = true
	}
	opts, err := cfg.options()
	if err != nil {
		return err
	}
	c := &checker{
		opts:     opts,
		color:    !cfg.NoColor && term.IsTerminal(int(os.Stdout.Fd())),
		parallel: cfg.Parallel,
		verbose:  cmd.Bool("verbose"),
		dumpAST:  cmd.Bool("ast"),
		out:      os.Stdout,
		log:      os.Stderr,
	}
	files := cmd.Args().Slice()
	failed, err := c.checkFiles(files)
	if err != nil {
		return err
	}
	if cmd.Bool("watch") {
		return c.watch(ctx, files)
	}
	if failed {
		return errFound
	}
	return nil
}

func (c *checker) checkFiles(files []string) (failed bool, err error) {
	for _, filename := range files {
		hasErrors, err := c.checkFile(filename)
		if err != nil {
			return failed, err
		}
		failed = failed || hasErrors
	}
	return failed, nil
}

// watch checks a file again each time it is written until ctx is done.
// Directories are watched rather than files so that editors replacing a
// file by rename are noticed.
func (c *checker) watch(ctx context.Context, files []string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	watched := make(map[string]bool)
	for _, filename := range files {
		abs, err := filepath.Abs(filename)
		if err != nil {
			return err
		}
		watched[abs] = true
		if err := w.Add(filepath.Dir(abs)); err != nil {
			return err
		}
	}
	c.logf("watching %d files", len(files))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !watched[ev.Name] || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, err := c.checkFile(ev.Name); err != nil {
				fmt.Fprintf(c.log, "docheck: %v\n", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(c.log, "docheck: watch: %v\n", err)
		}
	}
}
