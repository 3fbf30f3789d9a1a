package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fortran "github.com/soypat/fortcheck"
	"github.com/soypat/fortcheck/diag"
	"github.com/soypat/fortcheck/symbol"
)

func TestPrintTable(t *testing.T) {
	const src = `program main
  integer :: i
  real, allocatable :: a(:)
  real :: x
  do concurrent (i = 1:10) local(x) shared(a)
    x = a(i)
  end do
end program
`
	var p fortran.Parser90
	require.NoError(t, p.Reset("main.f90", strings.NewReader(src)))
	prog := p.ParseProgram()
	require.Empty(t, p.Errors())
	table, err := symbol.Collect(prog)
	require.NoError(t, err)

	var buf bytes.Buffer
	pr := printer{w: &buf}
	pr.printTable(diag.NewFile("main.f90", []byte(src)), table)
	out := buf.String()
	assert.Contains(t, out, "Program(main) Variable(INTEGER:i): decl=main.f90:2:14\n")
	assert.Contains(t, out, "Program(main) Variable(REAL:a): decl=main.f90:3:24 ALLOCATABLE ARRAY\n")
	assert.Contains(t, out, "Concurrent(main) Variable(REAL:x): decl=main.f90:5:34\n")
	assert.Contains(t, out, "Concurrent(main) AssocName(REAL:a): decl=main.f90:5:44 ARRAY -> main.a\n")

	buf.Reset()
	pr = printer{w: &buf, filter: "X"}
	pr.printTable(diag.NewFile("main.f90", []byte(src)), table)
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"), buf.String())
}
