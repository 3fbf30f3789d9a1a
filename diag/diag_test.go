package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soypat/fortcheck/ast"
)

func TestFileLineCol(t *testing.T) {
	src := []byte("program p\n  x = 1\n\nend program")
	f := NewFile("p.f90", src)
	cases := []struct {
		off       int
		line, col int
	}{
		{0, 1, 1},
		{8, 1, 9},
		{9, 1, 10}, // newline belongs to its line
		{10, 2, 1},
		{12, 2, 3},
		{18, 3, 1},
		{19, 4, 1},
		{len(src), 4, 12},
		{len(src) + 5, 4, 12},
	}
	for _, c := range cases {
		line, col := f.LineCol(c.off)
		assert.Equal(t, c.line, line, "line of offset %d", c.off)
		assert.Equal(t, c.col, col, "col of offset %d", c.off)
	}
	assert.Equal(t, "  x = 1", string(f.Line(2)))
	assert.Empty(t, f.Line(3))
	assert.Nil(t, f.Line(5))
	assert.Equal(t, "p.f90:2:3", f.Position(12))
}

func TestMessages(t *testing.T) {
	var ms Messages
	assert.False(t, ms.HasErrors())
	ms.Warnf(ast.Pos(10, 11), "DO step expression should not be zero")
	assert.False(t, ms.HasErrors())
	m := ms.Errorf(ast.Pos(2, 4), "RETURN is not allowed in %s", "DO CONCURRENT")
	m.Attach(ast.Pos(0, 1), "Enclosing DO CONCURRENT statement")

	require.Equal(t, 2, ms.Len())
	assert.True(t, ms.HasErrors())
	assert.Equal(t, 1, ms.Count(Error))
	assert.Equal(t, 1, ms.Count(Warning))
	assert.Equal(t, "error: RETURN is not allowed in DO CONCURRENT", m.String())
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, ast.Pos(0, 1), m.Attachments[0].Pos)

	assert.Same(t, m, ms.All()[1])

	var other Messages
	other.Errorf(ast.Pos(1, 2), "merged")
	ms.Merge(&other)
	assert.Equal(t, 3, ms.Len())
	assert.Equal(t, "merged", ms.All()[2].Text)
}

func TestFprint(t *testing.T) {
	const src = "do concurrent (i = 1:n)\n\treturn\nend do\n"
	f := NewFile("loop.f90", []byte(src))
	ret := strings.Index(src, "return")
	var ms Messages
	ms.Errorf(ast.Pos(ret, ret+len("return")), "RETURN is not allowed in DO CONCURRENT").
		Attach(ast.Pos(0, 23), "Enclosing DO CONCURRENT statement")

	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, f, &ms, false))
	want := "loop.f90:2:2: error: RETURN is not allowed in DO CONCURRENT\n" +
		" 2 |     return\n" +
		"   |     ^^^^^^\n" +
		"loop.f90:1:1: note: Enclosing DO CONCURRENT statement\n" +
		" 1 | do concurrent (i = 1:n)\n" +
		"   | "+strings.Repeat("^", 23)+"\n"
	assert.Equal(t, want, buf.String())

	buf.Reset()
	require.NoError(t, Fprint(&buf, f, &ms, true))
	assert.Contains(t, buf.String(), ansiBold+ansiRed+"error"+ansiReset)
	assert.Contains(t, buf.String(), ansiCyan+"^^^^^^")
}

func TestFprintMultilineSpan(t *testing.T) {
	const src = "block\n  x = 1\nend block"
	f := NewFile("b.f90", []byte(src))
	var ms Messages
	ms.Warnf(ast.Pos(0, len(src)), "spans lines")
	var buf bytes.Buffer
	require.NoError(t, Fprint(&buf, f, &ms, false))
	assert.Equal(t, "b.f90:1:1: warning: spans lines\n 1 | block\n   | ^^^^^\n", buf.String())
}
