package symbol

import (
	"errors"
	"fmt"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/token"
)

// ResolveError is a name resolution error at a source position.
type ResolveError struct {
	Pos ast.Position
	Msg string
}

func (e *ResolveError) Error() string { return e.Msg }

// Collect builds the scope tree and symbol table for prog and binds every
// identifier occurrence to its symbol. The returned table is usable even
// when the error is non-nil; every error is a [*ResolveError].
func Collect(prog *ast.Program) (*Table, error) {
	t := NewTable()
	c := &collector{table: t}
	// Modules are declared first so that USE statements anywhere can see them.
	for _, unit := range prog.Units {
		if _, ok := unit.(*ast.Module); ok {
			c.declareUnit(t.global, unit, false)
		}
	}
	for _, unit := range prog.Units {
		if _, ok := unit.(*ast.Module); !ok {
			c.declareUnit(t.global, unit, false)
		}
	}
	c.resolveInterfaces()
	for _, unit := range prog.Units {
		ast.Walk(resolver{c: c, scope: t.global}, unit)
	}
	return t, errors.Join(c.errs...)
}

// collector declares the entities of program units and their specification
// parts before any executable statement is resolved.
type collector struct {
	table   *Table
	errs    []error
	pending []pendingInterface
}

// pendingInterface is a PROCEDURE(iface) declaration whose interface is
// looked up once every unit is declared.
type pendingInterface struct {
	sym   SymbolID
	scope ScopeID
	name  string
	pos   ast.Position
}

func (c *collector) addError(pos ast.Position, format string, args ...any) {
	c.errs = append(c.errs, &ResolveError{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (c *collector) define(scope ScopeID, sym Symbol) SymbolID {
	id, err := c.table.Define(scope, sym)
	if err != nil {
		c.addError(sym.decl, "%v", err)
	}
	return id
}

// declareUnit creates the scope of a program unit, declares its dummy
// arguments, result and specification part, then recurses into contained
// procedures. Interface bodies do not inherit the host's implicit rules.
func (c *collector) declareUnit(parent ScopeID, unit ast.ProgramUnit, isInterface bool) SymbolID {
	t := c.table
	ub := unit.Unit()
	sym := Symbol{name: ub.Name, decl: unit.SourcePos()}
	scopeKind := ScopeProcedure
	switch u := unit.(type) {
	case *ast.ProgramBlock:
		sym.kind, scopeKind = SymProgram, ScopeProgram
	case *ast.Module:
		sym.kind, scopeKind = SymModule, ScopeModule
	case *ast.Subroutine:
		sym.kind = SymSubroutine
		sym.flags = prefixFlags(u.Prefix)
	case *ast.Function:
		sym.kind = SymFunction
		sym.flags = prefixFlags(u.Prefix)
	}
	if isInterface {
		sym.kind = SymExternal
		sym.flags |= FlagExternal
	}
	scope := t.NewScope(parent, scopeKind, unit.SourcePos(), unit)
	t.scopes[scope].name = ub.Name
	if isInterface {
		t.scopes[scope].implicit = defaultImplicitRules()
	}
	sym.inner = scope
	var id SymbolID
	if ub.Name != "" {
		id = c.define(parent, sym)
		if sym.kind == SymModule {
			t.modules[normalizeCase(ub.Name)] = scope
		}
	}

	var params []*ast.Identifier
	var result *ast.Identifier
	var resultName string
	var fn *ast.Function
	switch u := unit.(type) {
	case *ast.Subroutine:
		params = u.Params
	case *ast.Function:
		fn = u
		params = u.Params
		resultName = u.ResultName()
		result = u.Result
	}
	dummies := make([]SymbolID, 0, len(params))
	for _, p := range params {
		dummies = append(dummies, c.define(scope, Symbol{name: p.Name, kind: SymVariable, flags: FlagDummy, decl: p.Position}))
	}
	var resultID SymbolID
	if fn != nil {
		pos := fn.SourcePos()
		if result != nil {
			pos = result.Position
		}
		rs := Symbol{name: resultName, kind: SymVariable, decl: pos}
		if fn.Type != nil {
			rs.typ = c.typeSpec(parent, fn.Type)
		}
		resultID = c.define(scope, rs)
	}
	if id != 0 {
		t.symbols[id].dummies = dummies
	}

	for _, stmt := range ub.Body {
		c.declareSpec(scope, stmt)
	}
	for _, proc := range ub.Contains {
		c.declareUnit(scope, proc, false)
	}
	c.finishScope(scope)
	if id != 0 && resultID != 0 {
		t.symbols[id].typ = t.symbols[resultID].typ
	}
	return id
}

func prefixFlags(prefix []token.Token) (flags Flags) {
	for _, tok := range prefix {
		switch tok {
		case token.PURE:
			flags |= FlagPure
		case token.IMPURE:
			flags |= FlagImpure
		case token.ELEMENTAL:
			flags |= FlagElemental
		case token.RECURSIVE:
			flags |= FlagRecursive
		}
	}
	return flags
}

// declareSpec declares the entities of a specification statement.
// Executable statements are ignored.
func (c *collector) declareSpec(scope ScopeID, stmt ast.Statement) {
	t := c.table
	switch s := stmt.(type) {
	case *ast.UseStmt:
		c.useModule(scope, s)

	case *ast.ImplicitStmt:
		t.scopes[scope].implicit = applyImplicitStmt(t.scopes[scope].implicit, s)

	case *ast.TypeDecl:
		typ := c.typeSpec(scope, &s.Type)
		kind := SymVariable
		if t.scopes[scope].kind == ScopeDerivedType {
			kind = SymComponent
		}
		flags, intent := attrFlags(s.Attrs)
		if hasAttr(s.Attrs, token.PARAMETER) {
			kind = SymParameter
		}
		for _, e := range s.Entities {
			sym := Symbol{name: e.Name.Name, kind: kind, typ: typ, flags: flags, intent: intent, decl: e.Name.Position, init: e.Init}
			if e.Shape != nil {
				sym.flags |= FlagArray
			}
			if e.Coshape != nil {
				sym.flags |= FlagCoarray
			}
			if flags.HasAny(FlagExternal) {
				sym.kind = SymExternal
			}
			c.declareOrUpdate(scope, sym)
		}

	case *ast.ProcedureDecl:
		flags, intent := attrFlags(s.Attrs)
		kind := SymExternal
		switch {
		case t.scopes[scope].kind == ScopeDerivedType:
			kind = SymProcComponent
		case flags.HasAny(FlagPointer):
			kind = SymProcPointer
		}
		for _, e := range s.Entities {
			id := c.declareOrUpdate(scope, Symbol{name: e.Name.Name, kind: kind, flags: flags, intent: intent, decl: e.Name.Position})
			if s.Interface != "" && id != 0 {
				c.pending = append(c.pending, pendingInterface{sym: id, scope: scope, name: s.Interface, pos: s.Position})
			}
		}

	case *ast.DerivedTypeDef:
		typeScope := t.NewScope(scope, ScopeDerivedType, s.Position, s)
		t.scopes[typeScope].name = s.Name
		sym := Symbol{name: s.Name, kind: SymDerivedType, inner: typeScope, decl: s.Position}
		if s.Extends != "" {
			parent := t.Lookup(scope, s.Extends)
			if parent == 0 || t.Symbol(t.Root(parent)).kind != SymDerivedType {
				c.addError(s.Position, "parent type '%s' of '%s' is not a derived type", s.Extends, s.Name)
			} else {
				sym.extends = t.Root(parent)
			}
		}
		id := c.define(scope, sym)
		if ext := t.symbols[id].extends; ext != 0 {
			// The parent component carries the name of the parent type.
			c.define(typeScope, Symbol{name: t.symbols[ext].name, kind: SymComponent, typ: ResolvedType{Category: CatDerived, Derived: ext}, decl: s.Position})
		}
		for _, comp := range s.Components {
			c.declareSpec(typeScope, comp)
		}

	case *ast.InterfaceBlock:
		pure := len(s.Procs) > 0
		for _, proc := range s.Procs {
			id := c.declareUnit(scope, proc, true)
			if id == 0 || !t.IsPureProcedure(id) {
				pure = false
			}
		}
		if s.Name != "" {
			sym := Symbol{name: s.Name, kind: SymExternal, flags: FlagExternal, decl: s.Position}
			if pure {
				sym.flags |= FlagPure
			}
			if len(s.Procs) > 0 {
				if first := t.LookupLocal(scope, s.Procs[0].Unit().Name); first != 0 {
					sym.typ = t.symbols[first].typ
				}
			}
			c.define(scope, sym)
		}

	case *ast.AttrStmt:
		for _, name := range s.Names {
			c.applyAttr(scope, s.Attr, name)
		}
	}
}

// declareOrUpdate defines sym in scope or merges it into an existing
// symbol created by a dummy argument, function result or attribute statement.
func (c *collector) declareOrUpdate(scope ScopeID, sym Symbol) SymbolID {
	t := c.table
	id := t.LookupLocal(scope, sym.name)
	if id == 0 {
		return c.define(scope, sym)
	}
	prev := &t.symbols[id]
	if prev.typ.Category != CatNone && sym.typ.Category != CatNone {
		c.addError(sym.decl, "the type of '%s' has already been declared", sym.name)
		return id
	}
	if sym.typ.Category != CatNone {
		prev.typ = sym.typ
	}
	prev.flags |= sym.flags
	if sym.intent != ast.IntentUnspecified {
		prev.intent = sym.intent
	}
	if sym.init != nil {
		prev.init = sym.init
	}
	switch {
	case sym.kind == SymParameter || sym.kind == SymExternal || sym.kind == SymProcPointer:
		prev.kind = sym.kind
	case prev.kind == SymUnknown:
		prev.kind = sym.kind
	}
	if !prev.flags.HasAny(FlagDummy) {
		prev.decl = sym.decl
	}
	return id
}

func (c *collector) applyAttr(scope ScopeID, attr token.Token, name *ast.Identifier) {
	t := c.table
	if attr == token.INTRINSIC {
		intr := t.intrinsicSymbol(name.Name)
		if intr == 0 {
			c.addError(name.Position, "'%s' is not a known intrinsic procedure", name.Name)
			return
		}
		c.define(scope, Symbol{name: name.Name, kind: SymIntrinsic, typ: t.symbols[intr].typ, flags: t.symbols[intr].flags, assoc: intr, decl: name.Position})
		return
	}
	sym := Symbol{name: name.Name, kind: SymUnknown, decl: name.Position}
	switch attr {
	case token.EXTERNAL:
		sym.kind = SymExternal
		sym.flags = FlagExternal
	case token.SAVE:
		sym.flags = FlagSave
	case token.POINTER:
		sym.flags = FlagPointer
	case token.TARGET:
		sym.flags = FlagTarget
	case token.ALLOCATABLE:
		sym.flags = FlagAllocatable
	case token.OPTIONAL:
		sym.flags = FlagOptional
	case token.DIMENSION:
		sym.flags = FlagArray
	case token.CODIMENSION:
		sym.flags = FlagCoarray
	}
	c.declareOrUpdate(scope, sym)
}

func attrFlags(attrs []ast.Attribute) (flags Flags, intent ast.Intent) {
	for _, attr := range attrs {
		switch attr.Tok {
		case token.ALLOCATABLE:
			flags |= FlagAllocatable
		case token.POINTER:
			flags |= FlagPointer
		case token.TARGET:
			flags |= FlagTarget
		case token.SAVE:
			flags |= FlagSave
		case token.OPTIONAL:
			flags |= FlagOptional
		case token.EXTERNAL:
			flags |= FlagExternal
		case token.DIMENSION:
			flags |= FlagArray
		case token.CODIMENSION:
			flags |= FlagCoarray
		case token.INTENT:
			intent = attr.Intent
		}
	}
	return flags, intent
}

func hasAttr(attrs []ast.Attribute, tok token.Token) bool {
	for _, attr := range attrs {
		if attr.Tok == tok {
			return true
		}
	}
	return false
}

// typeSpec resolves a declared type in scope.
func (c *collector) typeSpec(scope ScopeID, ts *ast.TypeSpec) ResolvedType {
	t := c.table
	typ := typeFromKeyword(ts.Keyword)
	switch typ.Category {
	case CatDerived:
		if ts.Unlimited {
			typ.Unlimited = true
			return typ
		}
		id := t.Lookup(scope, ts.Derived)
		if id == 0 || t.Symbol(t.Root(id)).kind != SymDerivedType {
			c.addError(ts.Position, "derived type '%s' not defined", ts.Derived)
			return typ
		}
		typ.Derived = t.Root(id)
	case CatCharacter:
		// Length selectors do not change the kind.
	default:
		if ts.Kind != nil {
			kindExpr := ts.Kind
			if kw, ok := kindExpr.(*ast.KeywordArg); ok {
				kindExpr = kw.Value
			}
			lookup := func(id *ast.Identifier) SymbolID { return t.Lookup(scope, id.Name) }
			if v, ok := t.constValue(kindExpr, lookup); ok && v.isInt {
				typ.Kind = int(v.i)
			}
		}
	}
	return typ
}

// finishScope applies implicit typing to untyped data entities of scope
// once its specification part has been declared.
func (c *collector) finishScope(scope ScopeID) {
	t := c.table
	rules := t.scopes[scope].implicit
	for _, id := range t.scopes[scope].order {
		sym := &t.symbols[id]
		if sym.kind == SymUnknown {
			sym.kind = SymVariable
		}
		if sym.typ.Category != CatNone || sym.assoc != 0 {
			continue
		}
		switch sym.kind {
		case SymVariable, SymParameter:
		default:
			continue
		}
		typ, err := ApplyImplicitType(sym.name, rules)
		if err != nil {
			c.addError(sym.decl, "%v", err)
			continue
		}
		sym.typ = typ
		sym.flags |= FlagImplicit
	}
}

// resolveInterfaces binds PROCEDURE(iface) declarations to their interface.
func (c *collector) resolveInterfaces() {
	t := c.table
	for _, p := range c.pending {
		iface := t.Lookup(p.scope, p.name)
		if iface == 0 {
			iface = t.intrinsicSymbol(p.name)
		}
		if iface == 0 || !t.Symbol(t.Root(iface)).IsProcedure() {
			c.addError(p.pos, "interface '%s' is not a procedure", p.name)
			continue
		}
		sym := &t.symbols[p.sym]
		sym.iface = iface
		root := t.Symbol(t.Root(iface))
		if sym.typ.Category == CatNone {
			sym.typ = root.typ
		}
		sym.dummies = root.dummies
	}
	c.pending = c.pending[:0]
}

// useModule makes the entities of a module accessible in scope through
// use association.
func (c *collector) useModule(scope ScopeID, use *ast.UseStmt) {
	t := c.table
	modScope := ScopeID(0)
	if !use.Intrinsic {
		modScope = t.modules[normalizeCase(use.Module)]
	}
	if modScope == 0 {
		modScope = t.intrinsicModuleScope(use.Module)
	}
	if modScope == 0 {
		c.addError(use.Position, "module '%s' not found", use.Module)
		return
	}
	only := make(map[string]bool, len(use.Only))
	for _, name := range use.Only {
		only[normalizeCase(name)] = false
	}
	for _, target := range t.scopes[modScope].order {
		ts := t.symbols[target]
		key := normalizeCase(ts.name)
		if use.Only != nil {
			if _, ok := only[key]; !ok {
				continue
			}
			only[key] = true
		}
		if prev := t.LookupLocal(scope, ts.name); prev != 0 {
			if t.Root(prev) != t.Root(target) {
				c.addError(use.Position, "'%s' from module '%s' conflicts with a local entity", ts.name, use.Module)
			}
			continue
		}
		t.Define(scope, Symbol{
			name:    ts.name,
			kind:    ts.kind,
			typ:     ts.typ,
			flags:   ts.flags,
			intent:  ts.intent,
			decl:    ts.decl,
			assoc:   target,
			iface:   ts.iface,
			inner:   ts.inner,
			dummies: ts.dummies,
			extends: ts.extends,
			init:    ts.init,
		})
	}
	for _, name := range use.Only {
		if !only[normalizeCase(name)] {
			c.addError(use.Position, "'%s' not found in module '%s'", name, use.Module)
		}
	}
}
