package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	fortran "github.com/soypat/fortcheck"
	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/diag"
	"github.com/soypat/fortcheck/sema"
	"github.com/soypat/fortcheck/symbol"
)

// checker runs the parse, resolve and check phases over source files.
type checker struct {
	opts     sema.Options
	color    bool
	parallel bool
	verbose  bool
	dumpAST  bool
	out      io.Writer // diagnostics
	log      io.Writer // progress
}

func (c *checker) logf(format string, args ...any) {
	if c.verbose {
		fmt.Fprintf(c.log, "docheck: "+format+"\n", args...)
	}
}

// checkFile checks one file and reports whether any error was found.
func (c *checker) checkFile(filename string) (bool, error) {
	src, err := os.ReadFile(filename)
	if err != nil {
		return false, err
	}
	file := diag.NewFile(filename, src)
	msgs := c.checkSource(filename, src)
	if err := diag.Fprint(c.out, file, msgs, c.color); err != nil {
		return false, err
	}
	c.logf("%s: %d errors, %d warnings", filename, msgs.Count(diag.Error), msgs.Count(diag.Warning))
	return msgs.HasErrors(), nil
}

// checkSource returns the diagnostics of src. Parse and name resolution
// errors are reported as diagnostics and stop the pipeline before the
// DO checks run.
func (c *checker) checkSource(filename string, src []byte) *diag.Messages {
	var p fortran.Parser90
	msgs := &diag.Messages{}
	if err := p.Reset(filename, bytes.NewReader(src)); err != nil {
		msgs.Errorf(ast.Pos(0, 0), "%v", err)
		return msgs
	}
	c.logf("parsing %s", filename)
	prog := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		for i := range errs {
			off := errs[i].Offset()
			msgs.Errorf(ast.Pos(off, off+1), "%s", errs[i].Msg())
		}
		return msgs
	}
	if c.dumpAST {
		if err := ast.Fprint(c.log, prog, ast.NotNilFilter); err != nil {
			c.logf("printing syntax tree: %v", err)
		}
	}

	c.logf("resolving %d program units", len(prog.Units))
	table, err := symbol.Collect(prog)
	if err != nil {
		for _, err := range unwrapAll(err) {
			var rerr *symbol.ResolveError
			if errors.As(err, &rerr) {
				msgs.Errorf(rerr.Pos, "%s", rerr.Msg)
			} else {
				msgs.Errorf(ast.Pos(0, 0), "%v", err)
			}
		}
		return msgs
	}

	c.logf("checking DO constructs (conformance %s)", c.opts.Conformance)
	if c.parallel {
		return sema.CheckParallel(prog, table, c.opts)
	}
	return sema.New(table, c.opts).Check(prog)
}

// unwrapAll flattens an error created by errors.Join.
func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
