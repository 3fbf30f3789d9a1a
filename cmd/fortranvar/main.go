// fortranvar prints the symbols resolved in each scope of Fortran source
// files. It shows how names in DO CONCURRENT locality-specs, BLOCK and
// ASSOCIATE constructs and USE statements were resolved.
//
// Usage:
//
//	fortranvar [flags] file.f90 [file2.f90 ...]
//
// Output format:
//
//	SCOPE(name) KIND(TYPE:name): decl=file:line:col [flags] [-> root]
//
// Example output:
//
//	Program(main) Variable(INTEGER:i): decl=main.f90:3:14
//	Concurrent(main) Variable(REAL:x): decl=main.f90:6:35
//	Concurrent(main) AssocName(REAL:a): decl=main.f90:6:45 ARRAY -> Program.a
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	fortran "github.com/soypat/fortcheck"
	"github.com/soypat/fortcheck/diag"
	"github.com/soypat/fortcheck/symbol"
)

func main() {
	cmd := &cli.Command{
		Name:      "fortranvar",
		Usage:     "Print the resolved symbols of Fortran source files",
		ArgsUsage: "<file.f90>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "include intrinsic procedures and implicit typing flags",
			},
			&cli.StringFlag{
				Name:  "filter",
				Usage: "filter symbols by name (case-insensitive substring)",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "filter by type (INTEGER, REAL, CHARACTER, etc.)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() == 0 {
				return fmt.Errorf("usage: fortranvar [flags] file.f90 [file2.f90 ...]")
			}
			p := printer{
				w:       os.Stdout,
				verbose: cmd.Bool("verbose"),
				filter:  strings.ToUpper(cmd.String("filter")),
				typ:     cmd.String("type"),
			}
			for _, filename := range cmd.Args().Slice() {
				if err := p.processFile(filename); err != nil {
					return fmt.Errorf("processing %s: %w", filename, err)
				}
			}
			return nil
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type printer struct {
	w       io.Writer
	verbose bool
	filter  string
	typ     string
}

func (p *printer) processFile(filename string) error {
	src, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	var parser fortran.Parser90
	if err := parser.Reset(filename, strings.NewReader(string(src))); err != nil {
		return err
	}
	prog := parser.ParseProgram()
	if errs := parser.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "parse error: %s\n", e.Error())
		}
	}
	table, err := symbol.Collect(prog)
	if err != nil {
		// The table is still usable; report and print what was resolved.
		fmt.Fprintf(os.Stderr, "resolve error: %v\n", err)
	}
	p.printTable(diag.NewFile(filename, src), table)
	return nil
}

func (p *printer) printTable(file *diag.File, table *symbol.Table) {
	for scope := range table.Scopes() {
		sc := table.Scope(scope)
		if sc.Type() == symbol.ScopeGlobal {
			continue
		}
		scopeName := sc.Name()
		if scopeName == "" {
			scopeName = table.Scope(table.Unit(scope)).Name()
		}
		for _, id := range sc.Symbols() {
			sym := table.Symbol(id)
			if !p.verbose && (sym.Kind() == symbol.SymIntrinsic || sym.Decl().End() == 0) {
				continue
			}
			if p.filter != "" && !strings.Contains(strings.ToUpper(sym.Name()), p.filter) {
				continue
			}
			typeStr := formatType(table, sym.Type())
			if p.typ != "" && !strings.HasPrefix(typeStr, strings.ToUpper(p.typ)) {
				continue
			}
			fmt.Fprintf(p.w, "%s(%s) %s(%s:%s): decl=%s%s%s\n",
				sc.Type(), scopeName, sym.Kind(), typeStr, sym.Name(),
				file.Position(sym.Decl().Start()), p.formatFlags(sym), formatRoot(table, id))
		}
	}
}

func formatType(table *symbol.Table, typ symbol.ResolvedType) string {
	switch {
	case typ.Unlimited:
		return "CLASS(*)"
	case typ.Category == symbol.CatDerived && typ.Derived != 0:
		name := table.Symbol(typ.Derived).Name()
		if typ.Polymorphic {
			return "CLASS(" + name + ")"
		}
		return "TYPE(" + name + ")"
	case typ.Kind != 0:
		return typ.Category.String() + "(" + strconv.Itoa(typ.Kind) + ")"
	}
	return typ.Category.String()
}

func (p *printer) formatFlags(sym *symbol.Symbol) string {
	flags := sym.Flags()
	names := []struct {
		flag symbol.Flags
		name string
	}{
		{symbol.FlagAllocatable, "ALLOCATABLE"},
		{symbol.FlagPointer, "POINTER"},
		{symbol.FlagTarget, "TARGET"},
		{symbol.FlagSave, "SAVE"},
		{symbol.FlagCoarray, "CODIMENSION"},
		{symbol.FlagArray, "ARRAY"},
		{symbol.FlagDummy, "DUMMY"},
		{symbol.FlagPure, "PURE"},
		{symbol.FlagImpure, "IMPURE"},
		{symbol.FlagElemental, "ELEMENTAL"},
	}
	var parts []string
	for _, n := range names {
		if flags.HasAny(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if intent := sym.Intent(); intent != 0 {
		parts = append(parts, "INTENT("+intent.String()+")")
	}
	if p.verbose && flags.HasAny(symbol.FlagImplicit) {
		parts = append(parts, "IMPLICIT")
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

// formatRoot names the symbol an associated symbol resolves to.
func formatRoot(table *symbol.Table, id symbol.SymbolID) string {
	root := table.Root(id)
	if root == id {
		return ""
	}
	owner := table.Scope(table.Symbol(root).Owner())
	name := owner.Name()
	if name == "" {
		name = owner.Type().String()
	}
	return " -> " + name + "." + table.Symbol(root).Name()
}
