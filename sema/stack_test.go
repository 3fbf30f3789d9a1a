package sema

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/symbol"
)

func TestConstructStack(t *testing.T) {
	var s ConstructStack
	assert.Nil(t, s.Innermost())
	assert.Panics(t, func() { s.Pop() })

	outer := &ast.DoLoop{}
	block := &ast.BlockConstruct{}
	s.Push(outer)
	s.Push(block)
	assert.Equal(t, 2, s.Len())
	assert.Same(t, block, s.Innermost())
	assert.Equal(t, []ast.Construct{block, outer}, slices.Collect(s.Outward()))

	assert.Same(t, block, s.Pop())
	assert.Same(t, outer, s.Innermost())
	s.reset()
	assert.Zero(t, s.Len())
}

func TestMatchesConstruct(t *testing.T) {
	named := func(c ast.Construct, name string) ast.Construct {
		switch c := c.(type) {
		case *ast.DoLoop:
			c.Name = name
		case *ast.BlockConstruct:
			c.Name = name
		case *ast.IfConstruct:
			c.Name = name
		}
		return c
	}
	tests := []struct {
		kind      jumpKind
		name      string
		construct ast.Construct
		want      bool
	}{
		{jumpCycle, "", &ast.DoLoop{}, true},
		{jumpExit, "", &ast.DoLoop{}, true},
		{jumpExit, "", &ast.BlockConstruct{}, false},
		{jumpCycle, "outer", named(&ast.DoLoop{}, "OUTER"), true},
		{jumpCycle, "outer", named(&ast.DoLoop{}, "inner"), false},
		{jumpCycle, "blk", named(&ast.BlockConstruct{}, "blk"), false},
		{jumpExit, "blk", named(&ast.BlockConstruct{}, "blk"), true},
		{jumpExit, "test", named(&ast.IfConstruct{}, "Test"), true},
	}
	for _, tt := range tests {
		got := matchesConstruct(tt.kind, tt.name, tt.construct)
		assert.Equal(t, tt.want, got, "%s %q in %T %q", tt.kind, tt.name, tt.construct, tt.construct.ConstructName())
	}
}

func TestLeaveRestriction(t *testing.T) {
	assert.Equal(t, "DO CONCURRENT", leaveRestriction(&ast.DoLoop{Concurrent: &ast.ConcurrentHeader{}}))
	assert.Equal(t, "", leaveRestriction(&ast.DoLoop{}))
	assert.Equal(t, "CRITICAL", leaveRestriction(&ast.CriticalConstruct{}))
	assert.Equal(t, "CHANGE TEAM", leaveRestriction(&ast.ChangeTeamConstruct{}))
	assert.Equal(t, "", leaveRestriction(&ast.AssociateConstruct{}))
}

func TestActiveVars(t *testing.T) {
	var a ActiveVars
	outer, inner := &ast.DoLoop{}, &ast.DoLoop{}
	sym := symbol.SymbolID(3)
	assert.Nil(t, a.Loop(sym))

	a.Mark(sym, outer)
	a.Mark(sym, inner)
	assert.Equal(t, 2, a.Len())
	assert.Same(t, inner, a.Loop(sym))

	require.Panics(t, func() { a.Unmark(sym, outer) }, "unmark must nest")
	a.Unmark(sym, inner)
	assert.Same(t, outer, a.Loop(sym))
	a.Unmark(sym, outer)
	assert.Nil(t, a.Loop(sym))
	assert.Zero(t, a.Len())
	assert.Panics(t, func() { a.Unmark(sym, outer) })
}

func TestConformance(t *testing.T) {
	for _, c := range []Conformance{Extensions, Pedantic, Strict} {
		got, err := ParseConformance(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	got, err := ParseConformance("STRICT")
	require.NoError(t, err)
	assert.Equal(t, Strict, got)

	_, err = ParseConformance("f77")
	assert.EqualError(t, err, `unknown conformance mode "f77" (want extensions, pedantic or strict)`)

	assert.False(t, Options{}.warnNonstandard())
	assert.True(t, Options{Conformance: Pedantic}.warnNonstandard())
	assert.True(t, Options{Conformance: Strict}.warnNonstandard())
}
