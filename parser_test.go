package fortran

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/token"
)

//go:embed testdata
var testdatadir embed.FS

func TestData_valid(t *testing.T) {
	entries, err := fs.ReadDir(testdatadir, "testdata")
	if err != nil || len(entries) == 0 {
		t.Fatal(err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "valid_") {
			continue
		}
		t.Run(entry.Name(), func(t *testing.T) {
			path := "testdata/" + name
			src, err := fs.ReadFile(testdatadir, path)
			if err != nil {
				t.Fatal(err)
			}
			checkErrors(t, path, string(src), false)
		})
	}
}

func TestData_invalid(t *testing.T) {
	entries, err := fs.ReadDir(testdatadir, "testdata")
	if err != nil || len(entries) == 0 {
		t.Fatal(err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "invalid_") {
			continue
		}
		t.Run(entry.Name(), func(t *testing.T) {
			srcpath := "testdata/" + name
			src, err := fs.ReadFile(testdatadir, srcpath)
			if err != nil {
				t.Fatal(err)
			}
			checkErrors(t, srcpath, string(src), true)
		})
	}
}

var errCommentRx = regexp.MustCompile(`!\s*ERROR\s+"([^"]*)"`)

// expectedErrors scans the source for error annotations and returns
// a map of line numbers to expected error patterns (as regexes).
func expectedErrors(src string) map[int]string {
	errors := make(map[int]string)
	lines := strings.Split(src, "\n")

	for lineNum, line := range lines {
		if m := errCommentRx.FindStringSubmatch(line); len(m) == 2 {
			// Line numbers are 1-based
			errors[lineNum+1] = m[1]
		}
	}
	return errors
}

// checkErrors is a test helper that parses source code and verifies errors match annotations.
// If expectErrors is false, it verifies that no errors occurred.
func checkErrors(t *testing.T, srcpath, src string, expectErrors bool) {
	t.Helper()

	expected := map[int]string{}
	if expectErrors {
		expected = expectedErrors(src)
	}

	parser := Parser90{}
	err := parser.Reset(srcpath, strings.NewReader(src))
	if err != nil {
		t.Fatalf("Failed to reset parser: %v", err)
	}
	parser.ParseProgram()
	actual := parser.Errors()

	if err := compareErrors(t, srcpath, expected, actual); err != nil {
		t.Error(err)
	}
}

// compareErrors compares expected errors (from annotations) with actual parser errors.
// Only the first error reported on an annotated line must match; later errors
// on the same line are follow-on errors and are ignored.
func compareErrors(t *testing.T, srcpath string, expected map[int]string, actual []ParserError) error {
	t.Helper()
	actualAreExpected := make([]bool, len(actual))
	for line, pattern := range expected {
		sp := sourcePos{
			Source: srcpath,
			Line:   line,
		}
		rx, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%s: invalid regex pattern %q: %v", sp.String(), pattern, err)
		}
		matched := false
		lineErrFound := ""
		for i := range actual {
			if actual[i].sp.Line != line {
				continue
			}
			if lineErrFound == "" {
				lineErrFound = actual[i].msg
				matched = rx.MatchString(actual[i].msg)
			}
			actualAreExpected[i] = true
		}
		if lineErrFound == "" {
			return fmt.Errorf("%s: expected error matching %q, but no error found", sp.String(), pattern)
		}
		if !matched {
			return fmt.Errorf("%s: expected error matching %q, but got: %v", sp.String(), pattern, lineErrFound)
		}
	}
	for i, isExpected := range actualAreExpected {
		if !isExpected {
			t.Errorf("unexpected error: %v", &actual[i])
		}
	}
	return nil
}

func newParser(t *testing.T, code string) *Parser90 {
	p := &Parser90{}
	err := p.Reset("test.f90", strings.NewReader(code))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// parseUnit parses code that must contain exactly one error-free program unit.
func parseUnit(t *testing.T, code string) ast.ProgramUnit {
	t.Helper()
	p := newParser(t, code)
	prog := p.ParseProgram()
	for _, err := range p.Errors() {
		t.Error(err.Error())
	}
	if len(prog.Units) != 1 {
		t.Fatalf("expected 1 program unit, got %d", len(prog.Units))
	}
	return prog.Units[0]
}

func firstDo(t *testing.T, stmts []ast.Statement) *ast.DoLoop {
	t.Helper()
	for _, stmt := range stmts {
		if dl, ok := stmt.(*ast.DoLoop); ok {
			return dl
		}
	}
	t.Fatal("no DO loop found")
	return nil
}

// sexpr prints an expression with full parenthesization to expose tree shape.
func sexpr(e ast.Expression) string {
	switch e := e.(type) {
	case *ast.BinaryExpr:
		return "(" + sexpr(e.Left) + " " + e.Op.String() + " " + sexpr(e.Right) + ")"
	case *ast.UnaryExpr:
		return "(" + e.Op.String() + " " + sexpr(e.Operand) + ")"
	}
	return ast.String(e)
}

func TestParseDoForms(t *testing.T) {
	cases := []struct {
		name  string
		src   string
		check func(t *testing.T, dl *ast.DoLoop)
	}{
		{
			name: "counted",
			src:  "do i = 1, n, 2\n  x = i\nend do",
			check: func(t *testing.T, dl *ast.DoLoop) {
				if !dl.IsCounted() || dl.Var.Name != "i" || dl.Step == nil {
					t.Errorf("bad counted loop: %s", ast.String(dl))
				}
				if len(dl.Body) != 1 {
					t.Errorf("want 1 body statement, got %d", len(dl.Body))
				}
			},
		},
		{
			name: "while",
			src:  "do while (x < 10)\n  x = x + 1\nenddo",
			check: func(t *testing.T, dl *ast.DoLoop) {
				if !dl.IsWhile() || dl.IsCounted() {
					t.Errorf("want DO WHILE, got %s", ast.String(dl))
				}
			},
		},
		{
			name: "infinite named",
			src:  "outer: do\n  exit outer\nend do outer",
			check: func(t *testing.T, dl *ast.DoLoop) {
				if dl.Name != "outer" || dl.IsCounted() || dl.IsWhile() || dl.IsConcurrent() {
					t.Errorf("want named infinite DO, got %s", ast.String(dl))
				}
				ex, ok := dl.Body[0].(*ast.ExitStmt)
				if !ok || ex.ConstructName != "outer" {
					t.Errorf("want EXIT outer, got %s", ast.String(dl.Body[0]))
				}
			},
		},
		{
			name: "concurrent",
			src:  "do concurrent (integer :: i = 1:n, j = 1:m:2, a(i) > 0) local(t) local_init(s) shared(a, b) default(none)\n  a(i) = t\nend do",
			check: func(t *testing.T, dl *ast.DoLoop) {
				ch := dl.Concurrent
				if ch == nil {
					t.Fatal("want DO CONCURRENT")
				}
				if ch.Type == nil || ch.Type.Keyword != token.INTEGER {
					t.Error("want integer type-spec")
				}
				if len(ch.Controls) != 2 || ch.Controls[1].Step == nil || ch.Controls[0].Step != nil {
					t.Errorf("bad controls: %s", ast.String(ch))
				}
				if ch.Mask == nil || sexpr(ch.Mask) != "(a(i) > 0)" {
					t.Errorf("bad mask: %v", ch.Mask)
				}
				kinds := []ast.LocalityKind{ast.LocalityLocal, ast.LocalityLocalInit, ast.LocalityShared, ast.LocalityDefaultNone}
				if len(ch.Locality) != len(kinds) {
					t.Fatalf("want %d locality specs, got %d", len(kinds), len(ch.Locality))
				}
				for i, k := range kinds {
					if ch.Locality[i].Kind != k {
						t.Errorf("locality %d: want %s got %s", i, k, ch.Locality[i].Kind)
					}
				}
				if len(ch.Locality[2].Names) != 2 || !ch.HasDefaultNone() {
					t.Error("bad SHARED names or missing DEFAULT(NONE)")
				}
			},
		},
		{
			name: "labeled",
			src:  "do 10, i = 1, n\n  x = i\n10 continue",
			check: func(t *testing.T, dl *ast.DoLoop) {
				if dl.TargetLabel != "10" || len(dl.Body) != 2 {
					t.Errorf("want label 10 with 2 statements, got %q with %d", dl.TargetLabel, len(dl.Body))
				}
				if dl.Body[1].Base().Label != "10" {
					t.Errorf("terminating statement label: want 10 got %q", dl.Body[1].Base().Label)
				}
			},
		},
		{
			name: "labeled end do",
			src:  "do 20 i = 1, n\n  x = i\n20 end do",
			check: func(t *testing.T, dl *ast.DoLoop) {
				if dl.TargetLabel != "20" || len(dl.Body) != 1 {
					t.Errorf("want label 20 with 1 statement, got %q with %d", dl.TargetLabel, len(dl.Body))
				}
			},
		},
	}
	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			src := "subroutine s(x, n, m, a, b)\n" + test.src + "\nend subroutine"
			unit := parseUnit(t, src)
			dl := firstDo(t, unit.Unit().Body)
			test.check(t, dl)
		})
	}
}

// Nested labeled DOs may share a terminating statement, and a label opened
// outside a block DO does not terminate loops inside it.
func TestParseDoSharedTermination(t *testing.T) {
	const src = `subroutine s(a, n)
  do 10 i = 1, n
    do 10 j = 1, n
      a(i, j) = 0
10 continue
  do 30 k = 1, n
    do
      exit
    end do
30 a(k, k) = 1
end subroutine`
	unit := parseUnit(t, src)
	body := unit.Unit().Body
	if len(body) != 2 {
		t.Fatalf("want 2 top-level DOs, got %d", len(body))
	}
	outer := body[0].(*ast.DoLoop)
	inner := firstDo(t, outer.Body)
	if len(outer.Body) != 1 || len(inner.Body) != 2 {
		t.Errorf("shared termination: outer has %d statements, inner %d", len(outer.Body), len(inner.Body))
	}
	if outer.Tail != inner.Tail {
		t.Errorf("shared termination tails differ: %v vs %v", outer.Tail, inner.Tail)
	}
	second := body[1].(*ast.DoLoop)
	if len(second.Body) != 2 || second.Body[1].Base().Label != "30" {
		t.Errorf("labeled DO around block DO: got %d statements", len(second.Body))
	}
}

func TestParsePositions(t *testing.T) {
	const src = `program p
  integer :: i, x(10)
  blk: block
    do i = 1, 10
      x(i) = undeclared
    end do
  end block blk
end program p`
	unit := parseUnit(t, src)
	if unit.SourcePos().Start() != 0 || unit.SourcePos().End() != len(src) {
		t.Errorf("unit span want [0,%d) got %v", len(src), unit.SourcePos())
	}
	bc := unit.Unit().Body[1].(*ast.BlockConstruct)
	wantStart := strings.Index(src, "blk:")
	wantEnd := strings.Index(src, "end block blk") + len("end block blk")
	if bc.Start() != wantStart || bc.End() != wantEnd {
		t.Errorf("block span want [%d,%d) got [%d,%d)", wantStart, wantEnd, bc.Start(), bc.End())
	}
	if !bc.SourcePos().Encloses(bc.Header) || !bc.SourcePos().Encloses(bc.Tail) {
		t.Error("block header and tail must be inside the construct")
	}
	if got := src[bc.Header.Start():bc.Header.End()]; got != "blk: block" {
		t.Errorf("block header %q", got)
	}
	dl := bc.Body[0].(*ast.DoLoop)
	if got := src[dl.Header.Start():dl.Header.End()]; got != "do i = 1, 10" {
		t.Errorf("DO header %q", got)
	}
	if got := src[dl.Tail.Start():dl.Tail.End()]; got != "end do" {
		t.Errorf("DO tail %q", got)
	}
	as := dl.Body[0].(*ast.AssignmentStmt)
	id := as.Value.(*ast.Identifier)
	if id.Start() != strings.Index(src, "undeclared") || id.End() != id.Start()+len("undeclared") {
		t.Errorf("identifier span %v", id.SourcePos())
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{src: "a + b * c", want: "(a + (b * c))"},
		{src: "a - b - c", want: "((a - b) - c)"},
		{src: "a ** b ** c", want: "(a ** (b ** c))"},
		{src: "-a ** 2", want: "(- (a ** 2))"},
		{src: "-a + b", want: "((- a) + b)"},
		{src: ".not. a .and. b", want: "((.NOT. a) .AND. b)"},
		{src: "a .or. b .and. c", want: "(a .OR. (b .AND. c))"},
		{src: "x < 1 .eqv. y == 2", want: "((x < 1) .EQV. (y == 2))"},
		{src: "s // t == u", want: "((s // t) == u)"},
		{src: "f(i, dim=2)%c(1:n:2)", want: "f(i, DIM=2)%c(1:n:2)"},
	}
	for _, test := range cases {
		p := newParser(t, "y = "+test.src+"\n")
		stmt := p.parseStatement()
		for _, err := range p.Errors() {
			t.Errorf("%q: %s", test.src, err.Error())
		}
		as, ok := stmt.(*ast.AssignmentStmt)
		if !ok {
			t.Errorf("%q: want assignment, got %T", test.src, stmt)
			continue
		}
		if got := sexpr(as.Value); !strings.EqualFold(got, test.want) {
			t.Errorf("%q: want %s got %s", test.src, test.want, got)
		}
	}
}

func TestParseStatements(t *testing.T) {
	const src = `subroutine s(a, u, obj, img)
  use ieee_arithmetic, only: ieee_set_halting_mode
  implicit none
  real, allocatable :: a(:)[:]
  class(*), pointer :: u
  type(t) :: obj
  integer :: img, st
  allocate(real :: a(10)[*], stat=st)
  call obj%method(a, n=3)
  read(5, *) a(1)
  write(*, '(a)', advance='no') 'x'
  print *, (a(i), i = 1, 3)
  open(unit=10, file='f')
  sync images(*, stat=st)
  event post(ev[img])
  lock(lk)
  critical
    a(1) = 0
  end critical
  change team (tm)
  end team
  associate (alias => a(1), e => a(2) + 1.0)
  end associate
  if (st /= 0) error stop 'bad'
  go to 10
10 return
end subroutine`
	unit := parseUnit(t, src)
	want := []string{
		"*ast.UseStmt", "*ast.ImplicitStmt", "*ast.TypeDecl", "*ast.TypeDecl", "*ast.TypeDecl", "*ast.TypeDecl",
		"*ast.AllocateStmt", "*ast.CallStmt", "*ast.ReadStmt", "*ast.WriteStmt", "*ast.PrintStmt", "*ast.OpenStmt",
		"*ast.ImageControlStmt", "*ast.ImageControlStmt", "*ast.ImageControlStmt",
		"*ast.CriticalConstruct", "*ast.ChangeTeamConstruct", "*ast.AssociateConstruct",
		"*ast.IfStmt", "*ast.GotoStmt", "*ast.ReturnStmt",
	}
	body := unit.Unit().Body
	if len(body) != len(want) {
		t.Fatalf("want %d statements, got %d", len(want), len(body))
	}
	for i, stmt := range body {
		if got := fmt.Sprintf("%T", stmt); got != want[i] {
			t.Errorf("statement %d: want %s got %s", i, want[i], got)
		}
	}
	alloc := body[6].(*ast.AllocateStmt)
	if alloc.Type == nil || len(alloc.Objects) != 1 || ast.Spec(alloc.Specs, "STAT") == nil {
		t.Errorf("bad ALLOCATE: %s", ast.String(alloc))
	}
	call := body[7].(*ast.CallStmt)
	if _, ok := call.Func.(*ast.ComponentAccess); !ok || len(call.Args) != 2 {
		t.Errorf("bad CALL: %s", ast.String(call))
	}
	write := body[9].(*ast.WriteStmt)
	if adv := ast.Spec(write.Specs, "ADVANCE"); adv == nil {
		t.Error("missing ADVANCE specifier")
	}
	if _, ok := write.Specs[0].Value.(*ast.Star); !ok {
		t.Errorf("want * unit, got %T", write.Specs[0].Value)
	}
	sync := body[12].(*ast.ImageControlStmt)
	if sync.Kind != ast.SyncImages || len(sync.Args) != 1 || len(sync.Specs) != 1 {
		t.Errorf("bad SYNC IMAGES: %s", ast.String(sync))
	}
	if body[15].(*ast.CriticalConstruct).Body == nil {
		t.Error("empty CRITICAL body")
	}
	ifs := body[18].(*ast.IfStmt)
	if stop, ok := ifs.Then.(*ast.StopStmt); !ok || !stop.Error {
		t.Errorf("want ERROR STOP action, got %T", ifs.Then)
	}
	if body[20].Base().Label != "10" || body[19].(*ast.GotoStmt).Target != "10" {
		t.Error("label mismatch between GO TO and its target")
	}
}

func TestParseUnits(t *testing.T) {
	const src = `module m
  abstract interface
    pure function iface(x) result(y)
      real, intent(in) :: x
      real :: y
    end function
  end interface
  type, extends(base) :: outer
    procedure(iface), pointer, nopass :: fn
  contains
    procedure :: bound
  end type outer
contains
  impure elemental real function f(x)
    real, intent(in) :: x
    f = x
  end function f
  recursive subroutine g()
  end subroutine
end module m
program main
end`
	p := newParser(t, src)
	prog := p.ParseProgram()
	for _, err := range p.Errors() {
		t.Error(err.Error())
	}
	if len(prog.Units) != 2 {
		t.Fatalf("want 2 units, got %d", len(prog.Units))
	}
	m := prog.Units[0].(*ast.Module)
	ib := m.Body[0].(*ast.InterfaceBlock)
	if ib.Name != "" || len(ib.Procs) != 1 {
		t.Errorf("bad abstract interface: %q with %d procs", ib.Name, len(ib.Procs))
	}
	if fn := ib.Procs[0].(*ast.Function); fn.ResultName() != "y" || len(fn.Prefix) != 1 {
		t.Errorf("bad interface function result %q", fn.ResultName())
	}
	def := m.Body[1].(*ast.DerivedTypeDef)
	if def.Name != "outer" || def.Extends != "base" || len(def.Components) != 1 {
		t.Errorf("bad derived type %q extends %q with %d components", def.Name, def.Extends, len(def.Components))
	}
	if len(m.Contains) != 2 {
		t.Fatalf("want 2 module procedures, got %d", len(m.Contains))
	}
	f := m.Contains[0].(*ast.Function)
	if f.Type == nil || f.Type.Keyword != token.REAL || len(f.Prefix) != 2 {
		t.Errorf("bad function prefix: %s", ast.String(f))
	}
	if prog.Units[1].Unit().Name != "main" {
		t.Errorf("want program main, got %q", prog.Units[1].Unit().Name)
	}
}

func TestParser90_reset(t *testing.T) {
	var p Parser90
	for _, src := range []string{"program a\nx = \nend", "program b\nend program b"} {
		if err := p.Reset("reset.f90", strings.NewReader(src)); err != nil {
			t.Fatal(err)
		}
		p.ParseProgram()
	}
	if len(p.Errors()) != 0 {
		t.Errorf("errors from previous parse survived reset: %v", p.Errors())
	}
}
