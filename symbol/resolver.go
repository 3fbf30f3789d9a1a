package symbol

import (
	"github.com/soypat/fortcheck/ast"
)

// resolver walks executable statements and binds identifier occurrences
// to symbols. Each construct with its own scope gets a new resolver.
type resolver struct {
	c     *collector
	scope ScopeID
}

func (r resolver) with(scope ScopeID) resolver { return resolver{c: r.c, scope: scope} }

// Visit implements the ast.Visitor interface for traversing the AST.
func (r resolver) Visit(node ast.Node) ast.Visitor {
	t := r.c.table
	switch n := node.(type) {
	case nil:
		return nil

	case ast.ProgramUnit:
		scope := t.ScopeOf(n)
		if scope == 0 {
			return nil
		}
		return r.with(scope)

	case *ast.DerivedTypeDef:
		return r.with(t.ScopeOf(n))

	case *ast.UseStmt, *ast.ImplicitStmt:
		return nil

	case *ast.TypeDecl:
		r.bindEntities(n.Entities)
		if n.Type.Kind != nil {
			ast.Walk(r, n.Type.Kind)
		}
		r.walkAttrs(n.Attrs)
		r.walkEntityExprs(n.Entities)
		return nil

	case *ast.ProcedureDecl:
		r.bindEntities(n.Entities)
		r.walkEntityExprs(n.Entities)
		return nil

	case *ast.AttrStmt:
		for _, name := range n.Names {
			t.Bind(name, t.Lookup(r.scope, name.Name))
		}
		return nil

	case *ast.BlockConstruct:
		scope := t.NewScope(r.scope, ScopeBlock, n.Position, n)
		t.scopes[scope].name = n.Name
		for _, stmt := range n.Body {
			r.c.declareSpec(scope, stmt)
		}
		r.c.resolveInterfaces()
		r.c.finishScope(scope)
		inner := r.with(scope)
		for _, stmt := range n.Body {
			ast.Walk(inner, stmt)
		}
		return nil

	case *ast.AssociateConstruct:
		for _, a := range n.Assocs {
			ast.Walk(r, a.Selector)
		}
		scope := t.NewScope(r.scope, ScopeAssociate, n.Position, n)
		t.scopes[scope].name = n.Name
		for _, a := range n.Assocs {
			sym := Symbol{name: a.Name.Name, kind: SymAssocName, typ: t.TypeOf(a.Selector), decl: a.Name.Position}
			if id, ok := a.Selector.(*ast.Identifier); ok {
				if target := t.SymbolOf(id); target != 0 && t.IsVariable(target) {
					sym.assoc = target
					sym.flags = t.symbols[target].flags & (FlagArray | FlagTarget | FlagCoarray)
				}
			}
			t.Bind(a.Name, r.c.define(scope, sym))
		}
		inner := r.with(scope)
		for _, stmt := range n.Body {
			ast.Walk(inner, stmt)
		}
		return nil

	case *ast.DoLoop:
		if n.Concurrent == nil {
			return r
		}
		r.resolveConcurrent(n)
		return nil

	case *ast.CallStmt:
		r.resolveProcedure(n.Func, true)
		for _, arg := range n.Args {
			ast.Walk(r, arg)
		}
		return nil

	case *ast.FunctionCall:
		r.resolveProcedure(n.Func, false)
		for _, arg := range n.Args {
			ast.Walk(r, arg)
		}
		return nil

	case *ast.ComponentAccess:
		ast.Walk(r, n.Base)
		r.resolveComponent(n)
		return nil

	case *ast.Identifier:
		r.resolveData(n)
		return nil
	}
	return r
}

func (r resolver) bindEntities(entities []*ast.Entity) {
	t := r.c.table
	for _, e := range entities {
		t.Bind(e.Name, t.LookupLocal(r.scope, e.Name.Name))
	}
}

func (r resolver) walkAttrs(attrs []ast.Attribute) {
	for _, attr := range attrs {
		for _, e := range attr.Shape {
			ast.Walk(r, e)
		}
	}
}

func (r resolver) walkEntityExprs(entities []*ast.Entity) {
	for _, e := range entities {
		for _, x := range e.Shape {
			ast.Walk(r, x)
		}
		for _, x := range e.Coshape {
			ast.Walk(r, x)
		}
		if e.Init != nil {
			ast.Walk(r, e.Init)
		}
	}
}

// resolveConcurrent opens the construct scope of a DO CONCURRENT, defines
// its index names, resolves the header against them, then defines the
// locality entities and resolves the body.
func (r resolver) resolveConcurrent(n *ast.DoLoop) {
	t := r.c.table
	h := n.Concurrent
	scope := t.NewScope(r.scope, ScopeConcurrent, n.Position, n)
	t.scopes[scope].name = n.Name
	inner := r.with(scope)

	var headerType ResolvedType
	if h.Type != nil {
		headerType = r.c.typeSpec(r.scope, h.Type)
	}
	for _, ctl := range h.Controls {
		sym := Symbol{name: ctl.Index.Name, kind: SymVariable, typ: headerType, decl: ctl.Index.Position}
		if sym.typ.Category == CatNone {
			if outer := t.Lookup(r.scope, ctl.Index.Name); outer != 0 {
				sym.typ = t.symbols[outer].typ
			} else if typ, err := ApplyImplicitType(ctl.Index.Name, t.scopes[scope].implicit); err == nil {
				sym.typ = typ
				sym.flags |= FlagImplicit
			} else {
				r.c.addError(ctl.Index.Position, "%v", err)
			}
		}
		t.Bind(ctl.Index, r.c.define(scope, sym))
	}
	for _, ctl := range h.Controls {
		ast.Walk(inner, ctl.Lower)
		ast.Walk(inner, ctl.Upper)
		if ctl.Step != nil {
			ast.Walk(inner, ctl.Step)
		}
	}
	if h.Mask != nil {
		ast.Walk(inner, h.Mask)
	}

	for _, ls := range h.Locality {
		for _, name := range ls.Names {
			outer := t.Lookup(r.scope, name.Name)
			if outer == 0 {
				outer = r.implicitVariable(name)
			}
			if outer == 0 {
				continue
			}
			os := t.symbols[outer]
			sym := Symbol{name: name.Name, typ: os.typ, decl: name.Position}
			switch ls.Kind {
			case ast.LocalityShared:
				sym.kind = SymAssocName
				sym.assoc = outer
				sym.flags = os.flags & (FlagArray | FlagCoarray | FlagTarget)
			default:
				sym.kind = SymVariable
				sym.flags = os.flags & (FlagArray | FlagAllocatable | FlagPointer | FlagTarget)
			}
			t.Bind(name, r.c.define(scope, sym))
		}
	}

	for _, stmt := range n.Body {
		ast.Walk(inner, stmt)
	}
}

// resolveProcedure binds the designator of a procedure reference. An
// unknown name becomes an intrinsic or an implicitly declared external
// procedure. A FunctionCall whose name is a data object is an array
// element or substring reference.
func (r resolver) resolveProcedure(designator ast.Expression, isCall bool) {
	t := r.c.table
	id, ok := designator.(*ast.Identifier)
	if !ok {
		ast.Walk(r, designator)
		return
	}
	sym := t.Lookup(r.scope, id.Name)
	if sym == 0 {
		sym = t.intrinsicSymbol(id.Name)
	}
	if sym == 0 {
		ext := Symbol{name: id.Name, kind: SymExternal, flags: FlagExternal, decl: id.Position}
		if !isCall {
			typ, err := ApplyImplicitType(id.Name, t.scopes[r.scope].implicit)
			if err != nil {
				r.c.addError(id.Position, "%v", err)
			}
			ext.typ = typ
			ext.flags |= FlagImplicit
		}
		sym = r.c.define(t.Unit(r.scope), ext)
	}
	t.Bind(id, sym)
}

func (r resolver) resolveComponent(n *ast.ComponentAccess) {
	t := r.c.table
	base := t.TypeOf(n.Base)
	if base.Category != CatDerived || base.Derived == 0 {
		if !base.Unlimited {
			r.c.addError(n.Position, "'%s' is not a derived type object", ast.String(n.Base))
		}
		return
	}
	comp := t.FindComponent(base.Derived, n.Component.Name)
	if comp == 0 {
		r.c.addError(n.Component.Position, "'%s' is not a component of '%s'", n.Component.Name, t.symbols[base.Derived].name)
		return
	}
	t.Bind(n.Component, comp)
}

// resolveData binds a name used as data. Unknown names are declared
// implicitly in the enclosing scoping unit.
func (r resolver) resolveData(id *ast.Identifier) {
	t := r.c.table
	sym := t.Lookup(r.scope, id.Name)
	if sym == 0 {
		sym = r.implicitVariable(id)
	}
	if sym != 0 {
		t.symbols[sym].flags |= FlagUsed
		t.Bind(id, sym)
	}
}

func (r resolver) implicitVariable(id *ast.Identifier) SymbolID {
	t := r.c.table
	typ, err := ApplyImplicitType(id.Name, t.scopes[r.scope].implicit)
	if err != nil {
		r.c.addError(id.Position, "%v", err)
		return 0
	}
	return r.c.define(t.Unit(r.scope), Symbol{name: id.Name, kind: SymVariable, typ: typ, flags: FlagImplicit, decl: id.Position})
}
