package sema

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fortran "github.com/soypat/fortcheck"
	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/diag"
	"github.com/soypat/fortcheck/symbol"
)

func resolve(t *testing.T, src string) (*symbol.Table, *ast.Program) {
	t.Helper()
	var p fortran.Parser90
	require.NoError(t, p.Reset("test.f90", strings.NewReader(src)))
	prog := p.ParseProgram()
	for _, err := range p.Errors() {
		t.Errorf("parse error: %v", err.Error())
	}
	require.False(t, t.Failed())
	table, err := symbol.Collect(prog)
	require.NoError(t, err)
	return table, prog
}

func check(t *testing.T, src string, opts Options) *diag.Messages {
	t.Helper()
	table, prog := resolve(t, src)
	c := New(table, opts)
	msgs := c.Check(prog)
	assert.Zero(t, c.stack.Len(), "construct stack not empty after check")
	assert.Zero(t, c.active.Len(), "DO variables still live after check")
	return msgs
}

func texts(msgs *diag.Messages) []string {
	var s []string
	for _, m := range msgs.All() {
		s = append(s, m.Text)
	}
	return s
}

func notes(m *diag.Message) []string {
	var s []string
	for _, a := range m.Attachments {
		s = append(s, a.Text)
	}
	return s
}

func firstLoop(t *testing.T, root ast.Node) *ast.DoLoop {
	t.Helper()
	var loop *ast.DoLoop
	ast.Inspect(root, func(n ast.Node) bool {
		if dl, ok := n.(*ast.DoLoop); ok && loop == nil {
			loop = dl
		}
		return loop == nil
	})
	require.NotNil(t, loop)
	return loop
}

func TestCleanConcurrentLoop(t *testing.T) {
	const src = `subroutine scale(a, n)
  integer :: n, i
  real :: a(n)
  do concurrent (i = 1:n, a(i) > 0.0)
    a(i) = 2.0 * a(i)
  end do
end subroutine
`
	msgs := check(t, src, Options{})
	assert.Zero(t, msgs.Len(), "%v", texts(msgs))
}

func TestReturnInConcurrent(t *testing.T) {
	const src = `subroutine s(a, n)
  integer :: n, i
  real :: a(n)
  do concurrent (i = 1:n)
    if (a(i) < 0.0) return
    a(i) = 1.0
  end do
end subroutine
`
	table, prog := resolve(t, src)
	msgs := New(table, Options{}).Check(prog)
	require.Equal(t, []string{"RETURN is not allowed in DO CONCURRENT"}, texts(msgs))
	m := msgs.All()[0]
	assert.Equal(t, diag.Error, m.Severity)
	assert.Equal(t, strings.Index(src, "return"), m.Pos.Start())
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "Enclosing DO CONCURRENT statement", m.Attachments[0].Text)
	assert.Equal(t, firstLoop(t, prog).Header, m.Attachments[0].Pos)
}

func TestImpureMask(t *testing.T) {
	const src = `module m
contains
  logical function check(k)
    integer, intent(in) :: k
    check = k > 0
  end function
  subroutine s(a, n)
    integer :: n, i
    real :: a(n)
    do concurrent (i = 1:n, check(i) .and. check(i+1))
      a(i) = 0.0
    end do
  end subroutine
end module
`
	msgs := check(t, src, Options{})
	require.Equal(t, []string{"Concurrent-header mask expression cannot reference an impure procedure"}, texts(msgs))
	assert.Contains(t, notes(msgs.All()[0]), "Declaration of 'check'")
}

func TestConcurrentHeader(t *testing.T) {
	tests := []struct {
		name string
		loop string
		want []string
	}{
		{
			name: "index in limit",
			loop: "do concurrent (i = 1:n, j = i:n)",
			want: []string{"concurrent-control expression references index-name 'i'"},
		},
		{
			name: "zero step",
			loop: "do concurrent (i = 1:n:0, j = 1:n)",
			want: []string{"DO CONCURRENT step expression should not be zero"},
		},
		{
			name: "local in step",
			loop: "do concurrent (i = 1:n:x, j = 1:n) local(x)",
			want: []string{"concurrent-header expression references variable 'x' in LOCAL locality-spec"},
		},
		{
			name: "local in mask",
			loop: "do concurrent (i = 1:n, j = 1:n, x > 0) local(x)",
			want: []string{"concurrent-header mask-expr references variable 'x' in LOCAL locality-spec"},
		},
		{
			name: "local_init in limit",
			loop: "do concurrent (i = 1:x, j = 1:n) local_init(x)",
		},
		{
			name: "duplicate default none",
			loop: "do concurrent (i = 1:n, j = 1:n) default(none) default(none) shared(a)",
			want: []string{"Only one DEFAULT(NONE) may appear"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `subroutine s(a, n)
  integer :: n, i, j, x
  real :: a(n, n)
  x = 1
  ` + tt.loop + `
    a(i, j) = 0.0
  end do
end subroutine
`
			msgs := check(t, src, Options{})
			assert.Equal(t, tt.want, texts(msgs))
		})
	}
}

func TestLocalInStepPosition(t *testing.T) {
	const src = `subroutine s(a, n)
  integer :: n, i, x
  real :: a(n)
  x = 1
  do concurrent (i = 1:n:x) local(x)
    x = i
    a(i) = 0.0
  end do
end subroutine
`
	msgs := check(t, src, Options{})
	require.Equal(t, 1, msgs.Len(), "%v", texts(msgs))
	m := msgs.All()[0]
	assert.Contains(t, m.Text, "'x'")
	assert.Equal(t, strings.Index(src, ":x)")+1, m.Pos.Start())
	assert.Contains(t, notes(m), "Declaration of 'x'")
}

func TestDefaultNone(t *testing.T) {
	const src = `subroutine s(a, n)
  integer :: n, i
  real :: a(n), t
  do concurrent (i = 1:n) default(none) shared(a)
    t = a(i)
    a(i) = 2.0
  end do
  do concurrent (i = 1:n) default(none) shared(a) local(t)
    t = a(i)
    a(i) = t
  end do
end subroutine
`
	msgs := check(t, src, Options{})
	require.Equal(t, []string{
		"Variable 't' from an enclosing scope referenced in DO CONCURRENT with DEFAULT(NONE) must appear in a locality-spec",
	}, texts(msgs))
	m := msgs.All()[0]
	assert.Equal(t, strings.Index(src, "t = a(i)"), m.Pos.Start())
	assert.Equal(t, []string{"Declaration of 't'", "Enclosing DO CONCURRENT statement"}, notes(m))
}

func TestConcurrentBody(t *testing.T) {
	tests := []struct {
		name  string
		decls string
		body  string
		want  []string
	}{
		{
			name: "image control",
			body: "sync all",
			want: []string{"An image control statement is not allowed in DO CONCURRENT"},
		},
		{
			name:  "coarray allocate",
			decls: "real, allocatable :: c(:)[:]",
			body:  "allocate(c(10)[*])",
			want:  []string{"An image control statement is not allowed in DO CONCURRENT"},
		},
		{
			name: "critical",
			body: "critical\n    end critical",
			want: []string{"An image control statement is not allowed in DO CONCURRENT"},
		},
		{
			name: "advance",
			body: "write(*, '(i0)', advance='no') i",
			want: []string{"ADVANCE specifier is not allowed in DO CONCURRENT"},
		},
		{
			name: "impure call",
			body: "call tick()",
			want: []string{"Call to an impure procedure is not allowed in DO CONCURRENT"},
		},
		{
			name: "pure intrinsic",
			body: "a(i) = sqrt(a(i))",
		},
		{
			name:  "halting mode",
			decls: "logical :: h",
			body:  "call ieee_get_halting_mode(ieee_overflow, h)",
			want:  []string{"IEEE_GET_HALTING_MODE is not allowed in DO CONCURRENT"},
		},
		{
			name: "pure halting mode setter",
			body: "call ieee_set_halting_mode(ieee_overflow, .true.)",
			want: []string{"IEEE_SET_HALTING_MODE is not allowed in DO CONCURRENT"},
		},
		{
			name:  "coarray deallocate",
			decls: "real, allocatable :: c(:)[:]",
			body:  "deallocate(c)",
			want:  []string{"An image control statement is not allowed in DO CONCURRENT"},
		},
		{
			name:  "coarray move_alloc",
			decls: "real, allocatable :: c(:)[:], d(:)[:]",
			body:  "call move_alloc(c, d)",
			want:  []string{"An image control statement is not allowed in DO CONCURRENT"},
		},
		{
			name:  "move_alloc",
			decls: "real, allocatable :: c(:), d(:)",
			body:  "call move_alloc(c, d)",
		},
		{
			name: "branch out",
			body: "if (a(i) < 0.0) go to 20",
			want: []string{"Control flow escapes from DO CONCURRENT"},
		},
		{
			name: "branch within",
			body: "if (a(i) < 0.0) go to 10\n    a(i) = 1.0\n10  continue",
		},
		{
			name:  "read err branch",
			decls: "integer :: v",
			body:  "read(*, *, err=20) v",
			want:  []string{"Control flow escapes from DO CONCURRENT"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `subroutine s(a, n)
  use, intrinsic :: ieee_exceptions
  integer :: n, i
  real :: a(n)
  ` + tt.decls + `
  do concurrent (i = 1:n)
    ` + tt.body + `
  end do
20 continue
end subroutine
`
			msgs := check(t, src, Options{})
			assert.Equal(t, tt.want, texts(msgs))
			for _, m := range msgs.All() {
				assert.Contains(t, notes(m), "Enclosing DO CONCURRENT statement")
			}
		})
	}
}

func TestCoarrayImageControlNote(t *testing.T) {
	tests := []struct {
		stmt string
		note string
	}{
		{"allocate(c(10)[*])", "ALLOCATE of a coarray is an image control statement"},
		{"deallocate(c)", "DEALLOCATE of a coarray is an image control statement"},
		{"call move_alloc(c, d)", "MOVE_ALLOC of a coarray is an image control statement"},
	}
	for _, tt := range tests {
		src := `subroutine s(n)
  integer :: n, i
  real, allocatable :: c(:)[:], d(:)[:]
  do concurrent (i = 1:n)
    ` + tt.stmt + `
  end do
end subroutine
`
		msgs := check(t, src, Options{})
		require.Equal(t, 1, msgs.Len(), tt.stmt)
		assert.Equal(t, []string{tt.note, "Enclosing DO CONCURRENT statement"}, notes(msgs.All()[0]), tt.stmt)
	}
}

func TestImpureProcedureComponent(t *testing.T) {
	const src = `module procs
  implicit none
  abstract interface
    pure function pure_iface(x) result(y)
      real, intent(in) :: x
      real :: y
    end function
  end interface
  type :: holder
    procedure(pure_iface), pointer, nopass :: fn
    procedure(impure_one), pointer, nopass :: bad
  end type
contains
  real function impure_one(x)
    real, intent(in) :: x
    impure_one = x
  end function
end module

subroutine s(a, n, h)
  use procs
  implicit none
  integer :: n, i
  real :: a(n)
  type(holder) :: h
  do concurrent (i = 1:n)
    a(i) = h%fn(a(i))
    a(i) = h%bad(a(i))
  end do
end subroutine
`
	msgs := check(t, src, Options{})
	assert.Equal(t, []string{"Call to an impure procedure component is not allowed in DO CONCURRENT"}, texts(msgs))
}

func TestConstructLabelEscape(t *testing.T) {
	const src = `subroutine s(tm)
  use, intrinsic :: iso_fortran_env, only: team_type
  type(team_type) :: tm
  integer :: k
  k = 0
  critical
    if (k > 0) go to 10
    k = 1
10  continue
  end critical
  critical
    if (k > 0) go to 20
  end critical
  change team (tm)
    if (k > 0) go to 20
  end team
20 continue
end subroutine
`
	msgs := check(t, src, Options{})
	require.Equal(t, []string{
		"Control flow escapes from CRITICAL",
		"Control flow escapes from CHANGE TEAM",
	}, texts(msgs))
	assert.Equal(t, []string{"Enclosing CRITICAL statement"}, notes(msgs.All()[0]))
	assert.Equal(t, []string{"Enclosing CHANGE TEAM statement"}, notes(msgs.All()[1]))
}

func TestPolymorphicDeallocation(t *testing.T) {
	const src = `module shapes
  type :: shape
    integer :: id
  end type
  type :: holder
    class(shape), allocatable :: item
  end type
end module

subroutine s(n)
  use shapes
  integer :: n, i
  class(shape), allocatable :: p
  class(shape), pointer :: q
  type(holder) :: h, g
  do concurrent (i = 1:n)
    deallocate(p)
    deallocate(q)
    h = g
    block
      class(shape), allocatable :: tmp
    end block
  end do
end subroutine
`
	msgs := check(t, src, Options{})
	assert.Equal(t, []string{
		"Deallocation of a polymorphic entity not allowed in DO CONCURRENT",
		"Deallocation of a polymorphic entity not allowed in DO CONCURRENT",
		"Deallocation of a polymorphic entity caused by assignment not allowed in DO CONCURRENT",
		"Deallocation of a polymorphic entity caused by block exit not allowed in DO CONCURRENT",
	}, texts(msgs))
	if msgs.Len() > 1 {
		assert.Equal(t, []string{"Declaration of 'p'", "Enclosing DO CONCURRENT statement"}, notes(msgs.All()[0]))
		assert.Equal(t, []string{"Declaration of 'q'", "Enclosing DO CONCURRENT statement"}, notes(msgs.All()[1]))
	}
}

func TestJumpNesting(t *testing.T) {
	const src = `program p
  integer :: i, j
  real :: a(10)
  outer: do i = 1, 10
    do concurrent (j = 1:10)
      if (a(j) > 0.0) cycle outer
      if (a(j) < 0.0) exit
      a(j) = 1.0
    end do
    critical
      if (i > 5) exit
    end critical
    blk: block
      exit blk
    end block blk
    if (i > 2) then
      cycle outer
    end if
  end do outer
  exit foo
  cycle
end program
`
	msgs := check(t, src, Options{})
	assert.Equal(t, []string{
		"CYCLE must not leave a DO CONCURRENT statement",
		"EXIT must not leave a DO CONCURRENT statement",
		"EXIT must not leave a CRITICAL statement",
		"No matching construct for EXIT statement",
		"No matching DO construct for CYCLE statement",
	}, texts(msgs))
	for _, m := range msgs.All()[:3] {
		assert.Equal(t, []string{"The construct that was left"}, notes(m))
	}
}

func TestRedefinition(t *testing.T) {
	const src = `program p
  integer :: i, st
  do i = 1, 10
    i = 2
    do i = 1, 3
    end do
    read(*, *) i
    call bump(i)
    call peek(i)
    open(unit=10, file='f', iostat=i)
  end do
  i = 0
contains
  subroutine bump(k)
    integer, intent(out) :: k
    k = 1
  end subroutine
  subroutine peek(k)
    integer, intent(inout) :: k
  end subroutine
end program
`
	msgs := check(t, src, Options{})
	assert.Equal(t, []string{
		"Cannot redefine DO variable 'i'",
		"Cannot redefine DO variable 'i'",
		"Cannot redefine DO variable 'i'",
		"Cannot redefine DO variable 'i'",
		"Possible redefinition of DO variable 'i'",
		"Cannot redefine DO variable 'i'",
	}, texts(msgs))
	assert.Equal(t, 1, msgs.Count(diag.Warning))
	for _, m := range msgs.All() {
		assert.Equal(t, []string{"Enclosing DO construct"}, notes(m))
	}
}

func TestRedefinitionConsumers(t *testing.T) {
	tests := []struct {
		name string
		stmt string
	}{
		{"newunit", "open(newunit=i, file='out.txt')"},
		{"inquire", "inquire(unit=10, number=i)"},
		{"allocate stat", "allocate(buf(3), stat=i)"},
		{"deallocate stat", "deallocate(buf, stat=i)"},
		{"output implied-do", "print *, (a(i), i = 1, 3)"},
		{"input implied-do", "read(*, *) (a(i), i = 1, 3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `program p
  integer :: i
  real :: a(3)
  real, allocatable :: buf(:)
  do i = 1, 3
    ` + tt.stmt + `
  end do
end program
`
			msgs := check(t, src, Options{})
			require.Equal(t, []string{"Cannot redefine DO variable 'i'"}, texts(msgs))
			assert.Equal(t, []string{"Enclosing DO construct"}, notes(msgs.All()[0]))
		})
	}
}

func TestConcurrentIndexRedefinition(t *testing.T) {
	const src = `subroutine s(a, n)
  integer :: n, i
  real :: a(n)
  do concurrent (i = 1:n)
    i = 1
    a(i) = 0.0
  end do
end subroutine
`
	msgs := check(t, src, Options{})
	require.Equal(t, []string{"Cannot redefine DO variable 'i'"}, texts(msgs))
	assert.Equal(t, []string{"Enclosing DO CONCURRENT construct"}, notes(msgs.All()[0]))
}

func TestCountedZeroStep(t *testing.T) {
	const src = `program p
  integer :: i, k
  k = 0
  do i = 1, 10, 0
    k = k + i
  end do
end program
`
	msgs := check(t, src, Options{})
	require.Equal(t, []string{"DO step expression should not be zero"}, texts(msgs))
	assert.Equal(t, diag.Warning, msgs.All()[0].Severity)

	msgs = check(t, src, Options{Conformance: Strict})
	require.Equal(t, 1, msgs.Len())
	assert.Equal(t, diag.Error, msgs.All()[0].Severity)
}

func TestRealDoControls(t *testing.T) {
	const src = `program p
  real :: x
  do x = 0.0, 1.0, 0.5
  end do
end program
`
	tests := []struct {
		opts     Options
		errors   int
		warnings int
	}{
		{Options{}, 0, 0},
		{Options{WarnRealDoControls: true}, 0, 4},
		{Options{Conformance: Pedantic}, 0, 4},
		{Options{Conformance: Strict}, 4, 0},
	}
	for _, tt := range tests {
		msgs := check(t, src, tt.opts)
		assert.Equal(t, tt.errors, msgs.Count(diag.Error), "%+v", tt.opts)
		assert.Equal(t, tt.warnings, msgs.Count(diag.Warning), "%+v", tt.opts)
		for _, m := range msgs.All() {
			assert.Equal(t, "DO controls should be INTEGER", m.Text)
		}
	}
}

func TestNonNumericDoControl(t *testing.T) {
	const src = `program p
  integer :: i
  logical :: b
  b = .true.
  do i = 1, b
  end do
end program
`
	msgs := check(t, src, Options{})
	require.Equal(t, []string{"DO controls should be INTEGER"}, texts(msgs))
	assert.Equal(t, diag.Error, msgs.All()[0].Severity)
}

func TestCheckIsRepeatable(t *testing.T) {
	const src = `subroutine s(a, n)
  integer :: n, i
  real :: a(n)
  do concurrent (i = 1:n)
    call tick()
    a(i) = 0.0
  end do
  exit
end subroutine
`
	table, prog := resolve(t, src)
	c := New(table, Options{})
	first := texts(c.Check(prog))
	second := texts(c.Check(prog))
	assert.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, second, texts(c.Messages()))
}

func TestCheckParallel(t *testing.T) {
	const src = `subroutine one(a, n)
  integer :: n, i
  real :: a(n)
  do concurrent (i = 1:n)
    a(i) = 0.0
    return
  end do
end subroutine

subroutine two(a, n)
  integer :: n, i
  real :: a(n)
  do concurrent (i = 1:n)
    sync all
  end do
  exit
end subroutine
`
	table, prog := resolve(t, src)
	serial := New(table, Options{}).Check(prog)
	parallel := CheckParallel(prog, table, Options{})
	assert.Equal(t, texts(serial), texts(parallel))
	assert.Equal(t, []string{
		"RETURN is not allowed in DO CONCURRENT",
		"An image control statement is not allowed in DO CONCURRENT",
		"No matching construct for EXIT statement",
	}, texts(parallel))
}

func TestCheckParallelKeepsTraversalOrder(t *testing.T) {
	const src = `subroutine s(a, n)
  integer :: n, i
  real :: a(n)
  do concurrent (i = 1:n:0)
    a(i) = 0.0
    exit
  end do
end subroutine
`
	table, prog := resolve(t, src)
	want := []string{
		"EXIT must not leave a DO CONCURRENT statement",
		"DO CONCURRENT step expression should not be zero",
	}
	assert.Equal(t, want, texts(New(table, Options{}).Check(prog)))
	assert.Equal(t, want, texts(CheckParallel(prog, table, Options{})))
}

func TestLeaveOutOfOrderPanics(t *testing.T) {
	const src = `program p
  integer :: i
  do i = 1, 2
    block
    end block
  end do
end program
`
	table, prog := resolve(t, src)
	loop := firstLoop(t, prog)
	block := loop.Body[0].(*ast.BlockConstruct)
	c := New(table, Options{})
	c.Enter(loop)
	c.Enter(block)
	assert.Equal(t, 2, c.stack.Len())
	assert.Equal(t, 1, c.active.Len())
	assert.Panics(t, func() { c.Leave(loop) })
	c.Leave(block)
	c.Leave(loop)
	assert.Zero(t, c.stack.Len())
	assert.Zero(t, c.active.Len())
	assert.Zero(t, c.Messages().Len())
}

func TestValidConstructsFile(t *testing.T) {
	src, err := os.ReadFile("../testdata/valid_do_constructs.f90")
	require.NoError(t, err)
	msgs := check(t, string(src), Options{Conformance: Strict})
	assert.Zero(t, msgs.Len(), "%v", texts(msgs))
}
