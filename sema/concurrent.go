package sema

import (
	"fmt"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/diag"
	"github.com/soypat/fortcheck/symbol"
)

const enclosingConcurrentNote = "Enclosing DO CONCURRENT statement"

// loopContext is the state shared by the walks over one DO CONCURRENT.
type loopContext struct {
	table *symbol.Table
	loop  *ast.DoLoop
	scope symbol.ScopeID // construct scope of the loop
}

func (c *Checker) newLoopContext(loop *ast.DoLoop) *loopContext {
	scope := c.table.ScopeOf(loop)
	if scope == 0 || c.table.Scope(scope).Type() != symbol.ScopeConcurrent {
		panic(fmt.Sprintf("sema: DO CONCURRENT at %d has no construct scope", loop.Header.Start()))
	}
	return &loopContext{table: c.table, loop: loop, scope: scope}
}

// sayWithDecl reports an error that attaches the declaration of sym when
// the declaration has a source position.
func (lc *loopContext) sayWithDecl(msgs *diag.Messages, sym symbol.SymbolID, pos ast.Position, format string, args ...any) *diag.Message {
	m := msgs.Errorf(pos, format, args...)
	s := lc.table.Symbol(sym)
	if decl := s.Decl(); decl.End() > decl.Start() {
		m.Attach(decl, "Declaration of '%s'", s.Name())
	}
	return m
}

// checkConcurrent runs the header checks then the body walks of a DO CONCURRENT.
func (c *Checker) checkConcurrent(loop *ast.DoLoop) {
	lc := c.newLoopContext(loop)
	header := lc.checkHeader()
	c.msgs.Merge(&header)
	body := lc.enforceBody()
	c.msgs.Merge(&body)
	labels := enforceLabels(loop.Body, collectLabels(loop.Body), "DO CONCURRENT", loop.Header)
	c.msgs.Merge(&labels)
}

// rootsOf returns the association roots of the symbols referenced by expr.
func (lc *loopContext) rootsOf(expr ast.Expression) *symbol.SymbolSet {
	roots := &symbol.SymbolSet{}
	for id := range lc.table.CollectSymbols(expr).All() {
		roots.Add(lc.table.Root(id))
	}
	return roots
}

// firstCollision reports the first symbol referenced by expr that is in
// uses. The message format receives the symbol name.
func (lc *loopContext) firstCollision(msgs *diag.Messages, expr ast.Expression, uses *symbol.SymbolSet, format string) {
	for ref := range lc.rootsOf(expr).All() {
		if uses.Has(ref) {
			lc.sayWithDecl(msgs, ref, expr.SourcePos(), format, lc.table.Symbol(ref).Name())
			return
		}
	}
}

// checkHeader validates the concurrent header: mask purity, index name
// collisions, zero steps, LOCAL collisions and DEFAULT(NONE).
func (lc *loopContext) checkHeader() (msgs diag.Messages) {
	h := lc.loop.Concurrent
	t := lc.table
	if h.Mask != nil {
		for ref := range lc.rootsOf(h.Mask).All() {
			if t.Symbol(ref).IsProcedure() && !t.IsPureProcedure(ref) {
				lc.sayWithDecl(&msgs, ref, lc.loop.Header, "Concurrent-header mask expression cannot reference an impure procedure")
				break
			}
		}
	}

	indexNames := &symbol.SymbolSet{}
	for _, ctl := range h.Controls {
		if id := t.SymbolOf(ctl.Index); id != 0 {
			indexNames.Add(id)
		}
	}
	const indexFormat = "concurrent-control expression references index-name '%s'"
	for _, ctl := range h.Controls {
		lc.firstCollision(&msgs, ctl.Lower, indexNames, indexFormat)
		lc.firstCollision(&msgs, ctl.Upper, indexNames, indexFormat)
		if ctl.Step != nil {
			lc.firstCollision(&msgs, ctl.Step, indexNames, indexFormat)
			if t.IsZero(ctl.Step) {
				msgs.Errorf(ctl.Step.SourcePos(), "DO CONCURRENT step expression should not be zero")
			}
		}
	}

	if len(h.Locality) == 0 {
		return msgs
	}
	locals := lc.gatherLocals()
	const format = "concurrent-header expression references variable '%s' in LOCAL locality-spec"
	for _, ctl := range h.Controls {
		lc.firstCollision(&msgs, ctl.Lower, locals, format)
		lc.firstCollision(&msgs, ctl.Upper, locals, format)
		if ctl.Step != nil {
			lc.firstCollision(&msgs, ctl.Step, locals, format)
		}
	}
	if h.Mask != nil {
		lc.firstCollision(&msgs, h.Mask, locals, "concurrent-header mask-expr references variable '%s' in LOCAL locality-spec")
	}

	defaultNone := 0
	for _, ls := range h.Locality {
		if ls.Kind != ast.LocalityDefaultNone {
			continue
		}
		defaultNone++
		if defaultNone == 2 {
			msgs.Errorf(ls.Position, "Only one DEFAULT(NONE) may appear")
		}
	}
	if defaultNone == 1 {
		vars := lc.enforceDefaultNone()
		msgs.Merge(&vars)
	}
	return msgs
}

// gatherLocals returns the roots of the names in LOCAL locality-specs.
// Names are looked up in the scope enclosing the loop so that the loop's
// own local entities are not found.
func (lc *loopContext) gatherLocals() *symbol.SymbolSet {
	t := lc.table
	parent := t.Scope(lc.scope).Parent()
	locals := &symbol.SymbolSet{}
	for _, ls := range lc.loop.Concurrent.Locality {
		if ls.Kind != ast.LocalityLocal {
			continue
		}
		for _, name := range ls.Names {
			if id := t.Lookup(parent, name.Name); id != 0 {
				locals.Add(t.Root(id))
			}
		}
	}
	return locals
}

// enforceDefaultNone reports every variable referenced in the body whose
// owning scope encloses the loop. Such variables need a locality-spec when
// DEFAULT(NONE) is given.
func (lc *loopContext) enforceDefaultNone() (msgs diag.Messages) {
	t := lc.table
	for _, stmt := range lc.loop.Body {
		ast.Inspect(stmt, func(n ast.Node) bool {
			id, ok := n.(*ast.Identifier)
			if !ok {
				return true
			}
			sym := t.SymbolOf(id)
			if sym == 0 || !t.IsVariable(sym) {
				return true
			}
			if t.Contains(t.Symbol(sym).Owner(), lc.scope) {
				lc.sayWithDecl(&msgs, sym, id.Position,
					"Variable '%s' from an enclosing scope referenced in DO CONCURRENT with DEFAULT(NONE) must appear in a locality-spec",
					t.Symbol(sym).Name()).
					Attach(lc.loop.Header, enclosingConcurrentNote)
			}
			return true
		})
	}
	return msgs
}

// deallocates selects the entities deallocated along with their parent.
type deallocates func(symbol.SymbolID) bool

func deallocatesAll(symbol.SymbolID) bool { return true }

// mightDeallocatePolymorphic reports whether deallocating sym may deallocate
// a polymorphic entity: sym itself or one of its ultimate components that
// will deallocates selects.
func (lc *loopContext) mightDeallocatePolymorphic(sym symbol.SymbolID, will deallocates) bool {
	t := lc.table
	root := t.Root(sym)
	if t.IsPolymorphicAllocatable(root) {
		return true
	}
	typ := t.Symbol(root).Type()
	if typ.Category != symbol.CatDerived || typ.Derived == 0 {
		return false
	}
	for comp := range t.UltimateComponents(typ.Derived) {
		if will(comp) && t.IsPolymorphicAllocatable(comp) {
			return true
		}
	}
	return false
}

// enforceBody walks the loop body applying the rules for statements
// inside a DO CONCURRENT. Nested DO CONCURRENT bodies are checked on their own.
func (lc *loopContext) enforceBody() (msgs diag.Messages) {
	t := lc.table
	header := lc.loop.Header
	sayWithDo := func(pos ast.Position, format string, args ...any) *diag.Message {
		return msgs.Errorf(pos, format, args...).Attach(header, enclosingConcurrentNote)
	}
	imageControl := func(pos ast.Position, coarrayNote string) {
		m := msgs.Errorf(pos, "An image control statement is not allowed in DO CONCURRENT")
		if coarrayNote != "" {
			m.Attach(pos, "%s", coarrayNote)
		}
		m.Attach(header, enclosingConcurrentNote)
	}
	nonCoarray := func(comp symbol.SymbolID) bool { return !t.IsCoarray(comp) }

	walkBody(lc.loop.Body, nil, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.BlockConstruct:
			scope := t.ScopeOf(n)
			if scope == 0 || !t.Contains(lc.scope, scope) {
				return
			}
			for _, id := range t.Scope(scope).Symbols() {
				sym := t.Symbol(id)
				if t.IsAllocatable(id) && !sym.Flags().HasAny(symbol.FlagSave) && lc.mightDeallocatePolymorphic(id, deallocatesAll) {
					lc.sayWithDecl(&msgs, id, n.Tail, "Deallocation of a polymorphic entity caused by block exit not allowed in DO CONCURRENT").
						Attach(header, enclosingConcurrentNote)
				}
			}

		case *ast.AssignmentStmt:
			name := symbol.LastName(n.Target)
			if name == nil {
				return
			}
			if sym := t.SymbolOf(name); sym != 0 && lc.mightDeallocatePolymorphic(sym, nonCoarray) {
				lc.sayWithDecl(&msgs, sym, n.Target.SourcePos(), "Deallocation of a polymorphic entity caused by assignment not allowed in DO CONCURRENT").
					Attach(header, enclosingConcurrentNote)
			}

		case *ast.DeallocateStmt:
			if lc.hasCoarray(n.Objects) {
				imageControl(n.Position, "DEALLOCATE of a coarray is an image control statement")
			}
			for _, obj := range n.Objects {
				name := symbol.LastName(obj)
				if name == nil {
					continue
				}
				sym := t.SymbolOf(name)
				if sym == 0 {
					continue
				}
				if t.Symbol(sym).Type().Polymorphic || lc.mightDeallocatePolymorphic(sym, deallocatesAll) {
					lc.sayWithDecl(&msgs, sym, obj.SourcePos(), "Deallocation of a polymorphic entity not allowed in DO CONCURRENT").
						Attach(header, enclosingConcurrentNote)
				}
			}

		case *ast.AllocateStmt:
			if lc.hasCoarray(n.Objects) {
				imageControl(n.Position, "ALLOCATE of a coarray is an image control statement")
			}

		case *ast.ImageControlStmt:
			imageControl(n.Position, "")
		case *ast.CriticalConstruct:
			imageControl(n.Header, "")
		case *ast.ChangeTeamConstruct:
			imageControl(n.Header, "")

		case *ast.ReturnStmt:
			sayWithDo(n.Position, "RETURN is not allowed in DO CONCURRENT")

		case *ast.CallStmt:
			if proc := t.ProcedureOf(n.Func); proc != 0 {
				intr := t.IntrinsicOf(proc)
				if intr != nil && intr.Name() == "MOVE_ALLOC" && intr.Module() == "" && lc.hasCoarray(n.Args) {
					imageControl(n.Position, "MOVE_ALLOC of a coarray is an image control statement")
				}
			}
			lc.checkProcedureRef(n.Func, n.Position, sayWithDo)
		case *ast.FunctionCall:
			lc.checkProcedureRef(n.Func, n.Position, sayWithDo)

		case *ast.ReadStmt:
			if s := ast.Spec(n.Specs, "ADVANCE"); s != nil {
				sayWithDo(s.Position, "ADVANCE specifier is not allowed in DO CONCURRENT")
			}
		case *ast.WriteStmt:
			if s := ast.Spec(n.Specs, "ADVANCE"); s != nil {
				sayWithDo(s.Position, "ADVANCE specifier is not allowed in DO CONCURRENT")
			}
		}
	})
	return msgs
}

// hasCoarray reports whether any of objects names a coarray.
func (lc *loopContext) hasCoarray(objects []ast.Expression) bool {
	for _, obj := range objects {
		if kw, ok := obj.(*ast.KeywordArg); ok {
			obj = kw.Value
		}
		name := symbol.LastName(obj)
		if name == nil {
			continue
		}
		if sym := lc.table.SymbolOf(name); sym != 0 && lc.table.IsCoarray(lc.table.Root(sym)) {
			return true
		}
	}
	return false
}

// haltingModeProcs are the IEEE_EXCEPTIONS procedures that may not be
// referenced in a DO CONCURRENT regardless of purity.
var haltingModeProcs = map[string]bool{
	"IEEE_SET_HALTING_MODE": true,
	"IEEE_GET_HALTING_MODE": true,
}

// checkProcedureRef checks a reference to the procedure named by
// designator. References to data such as array elements are ignored.
func (lc *loopContext) checkProcedureRef(designator ast.Expression, pos ast.Position, say func(ast.Position, string, ...any) *diag.Message) {
	t := lc.table
	proc := t.ProcedureOf(designator)
	if proc == 0 {
		return
	}
	if intr := t.IntrinsicOf(proc); intr != nil && intr.Module() == "IEEE_EXCEPTIONS" && haltingModeProcs[intr.Name()] {
		say(pos, "%s is not allowed in DO CONCURRENT", intr.Name())
		return
	}
	if t.IsPureProcedure(proc) {
		return
	}
	if _, ok := designator.(*ast.ComponentAccess); ok {
		say(pos, "Call to an impure procedure component is not allowed in DO CONCURRENT")
	} else {
		say(pos, "Call to an impure procedure is not allowed in DO CONCURRENT")
	}
}
