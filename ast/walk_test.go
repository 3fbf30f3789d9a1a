package ast

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/soypat/fortcheck/token"
)

// countVisitor counts how many times Visit is called
type countVisitor struct {
	count int
}

func (v *countVisitor) Visit(node Node) Visitor {
	if node != nil {
		v.count++
	}
	return v
}

func ident(name string) *Identifier { return &Identifier{Name: name} }

func intLit(v int64) *IntegerLiteral {
	return &IntegerLiteral{Raw: strconv.FormatInt(v, 10), Value: v}
}

// concurrentLoop builds `do concurrent (i=1:n) local(x); a(i) = x; end do`.
func concurrentLoop() *DoLoop {
	return &DoLoop{
		Concurrent: &ConcurrentHeader{
			Controls: []*ConcurrentControl{{Index: ident("i"), Lower: intLit(1), Upper: ident("n")}},
			Locality: []*LocalitySpec{{Kind: LocalityLocal, Names: []*Identifier{ident("x")}}},
		},
		Body: []Statement{
			&AssignmentStmt{
				Target: &FunctionCall{Func: ident("a"), Args: []Expression{ident("i")}},
				Value:  ident("x"),
			},
		},
	}
}

func TestWalkProgramBlock(t *testing.T) {
	prog := &ProgramBlock{UnitBase: UnitBase{Name: "test"}}
	v := &countVisitor{}
	Walk(v, prog)
	if v.count != 1 {
		t.Errorf("Expected 1 visit, got %d", v.count)
	}
}

func TestWalkModuleContains(t *testing.T) {
	mod := &Module{UnitBase: UnitBase{
		Name: "mymodule",
		Contains: []ProgramUnit{
			&Subroutine{UnitBase: UnitBase{Name: "sub1"}},
			&Function{UnitBase: UnitBase{Name: "func1"}},
			&Subroutine{UnitBase: UnitBase{Name: "sub2"}},
		},
	}}
	v := &countVisitor{}
	Walk(v, mod)
	// Module + 3 contained procedures.
	if v.count != 4 {
		t.Errorf("Expected 4 visits, got %d", v.count)
	}
}

func TestWalkConcurrentHeader(t *testing.T) {
	var names []string
	Inspect(concurrentLoop(), func(n Node) bool {
		if id, ok := n.(*Identifier); ok {
			names = append(names, id.Name)
		}
		return true
	})
	// Header in source order, then locality names, then body.
	want := []string{"i", "n", "x", "a", "i", "x"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Expected identifiers %v, got %v", want, names)
	}
}

func TestInspectSkipsChildren(t *testing.T) {
	outer := &DoLoop{
		Var: ident("j"), Start: intLit(1), End: intLit(5),
		Body: []Statement{concurrentLoop()},
	}
	var visited int
	Inspect(outer, func(n Node) bool {
		if n == nil {
			return false
		}
		visited++
		if dl, ok := n.(*DoLoop); ok && dl.IsConcurrent() {
			return false
		}
		return true
	})
	// outer DO, j, 1, 5, inner DO (children skipped).
	if visited != 5 {
		t.Errorf("Expected 5 visits, got %d", visited)
	}
}

func TestWalkFuncOrder(t *testing.T) {
	stmt := &AssignmentStmt{
		Target: ident("x"),
		Value:  &BinaryExpr{Op: token.Plus, Left: ident("y"), Right: intLit(1)},
	}
	var trace []string
	WalkFunc(stmt, func(n Node) bool {
		trace = append(trace, "pre:"+typeName(n))
		_, isBinary := n.(*BinaryExpr)
		return !isBinary
	}, func(n Node) {
		trace = append(trace, "post:"+typeName(n))
	})
	want := []string{
		"pre:*ast.AssignmentStmt",
		"pre:*ast.Identifier",
		"post:*ast.Identifier",
		"pre:*ast.BinaryExpr",
		"post:*ast.AssignmentStmt",
	}
	if strings.Join(trace, " ") != strings.Join(want, " ") {
		t.Errorf("Expected trace\n%v\ngot\n%v", want, trace)
	}
}

func TestWalkFuncBalanced(t *testing.T) {
	prog := &Program{Units: []ProgramUnit{
		&ProgramBlock{UnitBase: UnitBase{Name: "p", Body: []Statement{
			&BlockConstruct{Body: []Statement{concurrentLoop(), &ReturnStmt{}}},
			&IfConstruct{
				Cond:    &LogicalLiteral{Value: true},
				Then:    []Statement{&ExitStmt{}},
				ElseIfs: []ElseIf{{Cond: ident("c"), Body: []Statement{&CycleStmt{}}}},
				Else:    []Statement{&ContinueStmt{}},
			},
			&WriteStmt{
				Specs: []*Specifier{{Value: &Star{}}, {Keyword: "ADVANCE", Value: &StringLiteral{Value: "no"}}},
				Items: []Expression{&ImpliedDoLoop{Items: []Expression{ident("k")}, Var: ident("k"), Start: intLit(1), End: intLit(3)}},
			},
			&ImageControlStmt{Kind: SyncAll},
		}}},
	}}
	var depth, maxDepth, pres, posts int
	WalkFunc(prog, func(Node) bool {
		depth++
		pres++
		maxDepth = max(maxDepth, depth)
		return true
	}, func(Node) {
		depth--
		posts++
	})
	if depth != 0 {
		t.Errorf("Expected balanced traversal, got depth %d", depth)
	}
	if pres != posts {
		t.Errorf("Expected equal pre and post calls, got %d and %d", pres, posts)
	}
	if maxDepth < 5 {
		t.Errorf("Expected nested traversal, got max depth %d", maxDepth)
	}
}

func TestAppendString(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{concurrentLoop(), "DO CONCURRENT (i=1:n) LOCAL(x)"},
		{&DoLoop{ConstructBase: ConstructBase{Name: "outer"}, Var: ident("i"), Start: intLit(1), End: ident("n"), Step: intLit(2)}, "outer: DO i = 1, n, 2"},
		{&ExitStmt{ConstructName: "outer"}, "EXIT outer"},
		{&CycleStmt{}, "CYCLE"},
		{&CallStmt{Func: &ComponentAccess{Base: ident("obj"), Component: ident("proc")}, Args: []Expression{ident("x")}}, "CALL obj%proc(x)"},
		{&ImageControlStmt{Kind: SyncImages, Args: []Expression{&Star{}}}, "SYNC IMAGES (*)"},
		{&TypeDecl{Type: TypeSpec{Keyword: token.CLASS, Unlimited: true}, Attrs: []Attribute{{Tok: token.ALLOCATABLE}}, Entities: []*Entity{{Name: ident("p")}}}, "CLASS(*), ALLOCATABLE :: p"},
		{&LocalitySpec{Kind: LocalityDefaultNone}, "DEFAULT(NONE)"},
	}
	for _, tt := range tests {
		got := String(tt.node)
		if got != tt.want {
			t.Errorf("Expected %q, got %q", tt.want, got)
		}
	}
}

func TestFprint(t *testing.T) {
	stmt := &ReturnStmt{StmtBase: StmtBase{Position: Pos(10, 16), Label: "20"}}
	var buf bytes.Buffer
	err := Fprint(&buf, stmt, NotNilFilter)
	if err != nil {
		t.Fatalf("Fprint failed: %v", err)
	}
	output := buf.String()
	for _, exp := range []string{"ReturnStmt", "Position: 10:16", `Label: "20"`} {
		if !strings.Contains(output, exp) {
			t.Errorf("Output missing expected string %q\nGot:\n%s", exp, output)
		}
	}
}

func TestPositionContains(t *testing.T) {
	p := Pos(5, 10)
	if !p.Contains(5) || !p.Contains(9) {
		t.Error("Expected span to contain its bounds")
	}
	if p.Contains(10) || p.Contains(4) {
		t.Error("Expected span to exclude end and earlier offsets")
	}
	if !p.Encloses(Pos(6, 10)) || p.Encloses(Pos(4, 8)) {
		t.Error("Encloses mismatch")
	}
}
