package ast

// A Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children
// of node with the visitor w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses an AST in depth-first order: It starts by calling
// v.Visit(node); node must not be nil. If the visitor w returned by
// v.Visit(node) is not nil, Walk is invoked recursively with visitor
// w for each of the non-nil children of node, followed by a call of
// w.Visit(nil).
//
// Children are visited in source order.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}

	switch n := node.(type) {
	// Root node
	case *Program:
		for _, unit := range n.Units {
			Walk(v, unit)
		}

	// Program units
	case *ProgramBlock:
		walkUnit(v, &n.UnitBase)

	case *Module:
		walkUnit(v, &n.UnitBase)

	case *Subroutine:
		walkIdents(v, n.Params)
		walkUnit(v, &n.UnitBase)

	case *Function:
		walkTypeSpec(v, n.Type)
		walkIdents(v, n.Params)
		if n.Result != nil {
			Walk(v, n.Result)
		}
		walkUnit(v, &n.UnitBase)

	// Specification statements
	case *TypeDecl:
		walkTypeSpec(v, &n.Type)
		walkAttrs(v, n.Attrs)
		walkEntities(v, n.Entities)

	case *ProcedureDecl:
		walkAttrs(v, n.Attrs)
		walkEntities(v, n.Entities)

	case *DerivedTypeDef:
		walkStmts(v, n.Components)

	case *InterfaceBlock:
		for _, proc := range n.Procs {
			Walk(v, proc)
		}

	case *UseStmt:
		// UseStmt has no child nodes

	case *ImplicitStmt:
		for i := range n.Rules {
			walkTypeSpec(v, &n.Rules[i].Type)
		}

	case *AttrStmt:
		walkIdents(v, n.Names)

	// Executable statements
	case *AssignmentStmt:
		Walk(v, n.Target)
		Walk(v, n.Value)

	case *PointerAssignStmt:
		Walk(v, n.Target)
		Walk(v, n.Value)

	case *CallStmt:
		Walk(v, n.Func)
		walkExprs(v, n.Args)

	case *IfStmt:
		Walk(v, n.Cond)
		Walk(v, n.Then)

	case *IfConstruct:
		Walk(v, n.Cond)
		walkStmts(v, n.Then)
		for _, elif := range n.ElseIfs {
			Walk(v, elif.Cond)
			walkStmts(v, elif.Body)
		}
		walkStmts(v, n.Else)

	case *DoLoop:
		if n.Var != nil {
			Walk(v, n.Var)
		}
		walkExpr(v, n.Start)
		walkExpr(v, n.End)
		walkExpr(v, n.Step)
		walkExpr(v, n.While)
		if h := n.Concurrent; h != nil {
			walkTypeSpec(v, h.Type)
			for _, c := range h.Controls {
				Walk(v, c.Index)
				Walk(v, c.Lower)
				Walk(v, c.Upper)
				walkExpr(v, c.Step)
			}
			walkExpr(v, h.Mask)
			for _, ls := range h.Locality {
				walkIdents(v, ls.Names)
			}
		}
		walkStmts(v, n.Body)

	case *BlockConstruct:
		walkStmts(v, n.Body)

	case *CriticalConstruct:
		walkSpecs(v, n.Specs)
		walkStmts(v, n.Body)

	case *ChangeTeamConstruct:
		Walk(v, n.Team)
		walkSpecs(v, n.Specs)
		walkStmts(v, n.Body)

	case *AssociateConstruct:
		for _, a := range n.Assocs {
			Walk(v, a.Selector)
			Walk(v, a.Name)
		}
		walkStmts(v, n.Body)

	case *CycleStmt, *ExitStmt, *GotoStmt, *ContinueStmt, *ReturnStmt:
		// Leaf statements.

	case *StopStmt:
		walkExpr(v, n.Code)

	case *AllocateStmt:
		walkTypeSpec(v, n.Type)
		walkExprs(v, n.Objects)
		walkSpecs(v, n.Specs)

	case *DeallocateStmt:
		walkExprs(v, n.Objects)
		walkSpecs(v, n.Specs)

	// I/O statements
	case *ReadStmt:
		walkExpr(v, n.Format)
		walkSpecs(v, n.Specs)
		walkExprs(v, n.Items)

	case *WriteStmt:
		walkSpecs(v, n.Specs)
		walkExprs(v, n.Items)

	case *PrintStmt:
		walkExpr(v, n.Format)
		walkExprs(v, n.Items)

	case *OpenStmt:
		walkSpecs(v, n.Specs)

	case *CloseStmt:
		walkSpecs(v, n.Specs)

	case *InquireStmt:
		walkSpecs(v, n.Specs)
		walkExprs(v, n.Items)

	case *ImageControlStmt:
		walkExprs(v, n.Args)
		walkSpecs(v, n.Specs)

	case *Specifier:
		Walk(v, n.Value)

	// Expressions
	case *Identifier, *IntegerLiteral, *RealLiteral, *StringLiteral, *LogicalLiteral, *Star:
		// Leaf nodes.

	case *BinaryExpr:
		Walk(v, n.Left)
		Walk(v, n.Right)

	case *UnaryExpr:
		Walk(v, n.Operand)

	case *ParenExpr:
		Walk(v, n.Expr)

	case *FunctionCall:
		Walk(v, n.Func)
		walkExprs(v, n.Args)

	case *ComponentAccess:
		Walk(v, n.Base)
		Walk(v, n.Component)

	case *CoarrayRef:
		Walk(v, n.Base)
		walkExprs(v, n.Cosubscripts)

	case *KeywordArg:
		// Keyword is a string, not a reference.
		Walk(v, n.Value)

	case *RangeExpr:
		walkExpr(v, n.Start)
		walkExpr(v, n.End)
		walkExpr(v, n.Stride)

	case *ImpliedDoLoop:
		walkExprs(v, n.Items)
		Walk(v, n.Var)
		Walk(v, n.Start)
		Walk(v, n.End)
		walkExpr(v, n.Stride)

	case *ArrayConstructor:
		walkExprs(v, n.Values)

	default:
		panic("ast.Walk: unexpected node type " + typeName(node))
	}

	v.Visit(nil)
}

func walkUnit(v Visitor, u *UnitBase) {
	walkStmts(v, u.Body)
	for _, proc := range u.Contains {
		Walk(v, proc)
	}
}

func walkStmts(v Visitor, list []Statement) {
	for _, stmt := range list {
		Walk(v, stmt)
	}
}

func walkExprs(v Visitor, list []Expression) {
	for _, expr := range list {
		Walk(v, expr)
	}
}

// walkExpr walks an optional expression.
func walkExpr(v Visitor, expr Expression) {
	if expr != nil {
		Walk(v, expr)
	}
}

func walkIdents(v Visitor, list []*Identifier) {
	for _, id := range list {
		Walk(v, id)
	}
}

func walkSpecs(v Visitor, list []*Specifier) {
	for _, spec := range list {
		Walk(v, spec)
	}
}

func walkTypeSpec(v Visitor, ts *TypeSpec) {
	if ts != nil && ts.Kind != nil {
		Walk(v, ts.Kind)
	}
}

func walkAttrs(v Visitor, attrs []Attribute) {
	for _, attr := range attrs {
		walkExprs(v, attr.Shape)
	}
}

func walkEntities(v Visitor, entities []*Entity) {
	for _, e := range entities {
		Walk(v, e.Name)
		walkExprs(v, e.Shape)
		walkExprs(v, e.Coshape)
		walkExpr(v, e.Init)
	}
}

// Inspect traverses an AST in depth-first order: It starts by calling
// f(node); node must not be nil. If f returns true, Inspect invokes f
// recursively for each of the non-nil children of node, followed by a
// call of f(nil).
//
// Inspect is a convenience wrapper around Walk that allows using a
// simple function instead of implementing the Visitor interface.
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// WalkFunc traverses an AST in depth-first order calling pre before the
// children of a node are visited and post after. If pre returns false the
// children of the node are skipped and post is not called for it.
// Either function may be nil.
func WalkFunc(node Node, pre func(Node) bool, post func(Node)) {
	Walk(&prepost{pre: pre, post: post}, node)
}

type prepost struct {
	pre   func(Node) bool
	post  func(Node)
	stack []Node
}

func (pp *prepost) Visit(node Node) Visitor {
	if node == nil {
		last := len(pp.stack) - 1
		n := pp.stack[last]
		pp.stack = pp.stack[:last]
		if pp.post != nil {
			pp.post(n)
		}
		return nil
	}
	if pp.pre != nil && !pp.pre(node) {
		return nil
	}
	pp.stack = append(pp.stack, node)
	return pp
}
