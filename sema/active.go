package sema

import (
	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/symbol"
)

// ActiveVars tracks the DO variables and DO CONCURRENT index names whose
// loop is being traversed. A variable live in several nested loops is
// recorded once per loop.
type ActiveVars struct {
	live map[symbol.SymbolID][]*ast.DoLoop
	n    int
}

// Mark records sym as live within loop.
func (a *ActiveVars) Mark(sym symbol.SymbolID, loop *ast.DoLoop) {
	if a.live == nil {
		a.live = make(map[symbol.SymbolID][]*ast.DoLoop)
	}
	a.live[sym] = append(a.live[sym], loop)
	a.n++
}

// Unmark ends the liveness of sym recorded by loop. It panics if loop did
// not mark sym, since marks and unmarks must nest.
func (a *ActiveVars) Unmark(sym symbol.SymbolID, loop *ast.DoLoop) {
	loops := a.live[sym]
	if len(loops) == 0 || loops[len(loops)-1] != loop {
		panic("sema: unbalanced DO variable unmark")
	}
	if len(loops) == 1 {
		delete(a.live, sym)
	} else {
		a.live[sym] = loops[:len(loops)-1]
	}
	a.n--
}

// Loop returns the innermost loop in which sym is live, or nil.
func (a *ActiveVars) Loop(sym symbol.SymbolID) *ast.DoLoop {
	loops := a.live[sym]
	if len(loops) == 0 {
		return nil
	}
	return loops[len(loops)-1]
}

// Len returns the number of live marks.
func (a *ActiveVars) Len() int { return a.n }

func (a *ActiveVars) reset() {
	clear(a.live)
	a.n = 0
}

// activate marks the DO variable or index names of loop live. A DO
// variable that is already live is being redefined by the nested loop.
func (c *Checker) activate(loop *ast.DoLoop) {
	for _, id := range doVariables(loop) {
		sym := c.table.SymbolOf(id)
		if sym == 0 {
			continue
		}
		root := c.table.Root(sym)
		c.CheckRedefine(id.Position, root)
		c.active.Mark(root, loop)
	}
}

func (c *Checker) deactivate(loop *ast.DoLoop) {
	ids := doVariables(loop)
	for i := len(ids) - 1; i >= 0; i-- {
		if sym := c.table.SymbolOf(ids[i]); sym != 0 {
			c.active.Unmark(c.table.Root(sym), loop)
		}
	}
}

func doVariables(loop *ast.DoLoop) []*ast.Identifier {
	switch {
	case loop.IsCounted():
		return []*ast.Identifier{loop.Var}
	case loop.IsConcurrent():
		ids := make([]*ast.Identifier, len(loop.Concurrent.Controls))
		for i, ctl := range loop.Concurrent.Controls {
			ids[i] = ctl.Index
		}
		return ids
	}
	return nil
}

// CheckRedefine reports an error if sym is a live DO variable.
func (c *Checker) CheckRedefine(pos ast.Position, sym symbol.SymbolID) {
	if loop := c.active.Loop(c.table.Root(sym)); loop != nil {
		c.msgs.Errorf(pos, "Cannot redefine DO variable '%s'", c.table.Symbol(sym).Name()).
			Attach(loop.Header, "%s", enclosingDoNote(loop))
	}
}

// WarnRedefine reports a warning if sym is a live DO variable. It is used
// where the variable may, but need not, be redefined.
func (c *Checker) WarnRedefine(pos ast.Position, sym symbol.SymbolID) {
	if loop := c.active.Loop(c.table.Root(sym)); loop != nil {
		c.msgs.Warnf(pos, "Possible redefinition of DO variable '%s'", c.table.Symbol(sym).Name()).
			Attach(loop.Header, "%s", enclosingDoNote(loop))
	}
}

func enclosingDoNote(loop *ast.DoLoop) string {
	if loop.IsConcurrent() {
		return "Enclosing DO CONCURRENT construct"
	}
	return "Enclosing DO construct"
}

// checkDefinition checks expr if it names a whole variable defined by the
// statement being visited.
func (c *Checker) checkDefinition(expr ast.Expression) {
	if expr == nil {
		return
	}
	if kw, ok := expr.(*ast.KeywordArg); ok {
		expr = kw.Value
	}
	if id, ok := expr.(*ast.Identifier); ok {
		if sym := c.table.SymbolOf(id); sym != 0 && c.table.IsVariable(sym) {
			c.CheckRedefine(expr.SourcePos(), sym)
		}
	}
}

// Specifiers whose variable is defined by the statement.
var definingSpecifiers = map[string]bool{
	"IOSTAT": true, "IOMSG": true, "SIZE": true, "NEWUNIT": true,
	"STAT": true, "ERRMSG": true, "ACQUIRED_LOCK": true,
}

// Specifiers of INQUIRE that are inputs. Every other INQUIRE specifier is defined.
var inquireInputs = map[string]bool{
	"": true, "UNIT": true, "FILE": true, "ERR": true, "ID": true,
}

func (c *Checker) checkSpecifiers(specs []*ast.Specifier, inquire bool) {
	for _, s := range specs {
		if (inquire && !inquireInputs[s.Keyword]) || (!inquire && definingSpecifiers[s.Keyword]) {
			c.checkDefinition(s.Value)
		}
	}
}

// checkInputItems checks the variables defined by a READ input list,
// including the variables of implied-DO loops.
func (c *Checker) checkInputItems(items []ast.Expression) {
	for _, item := range items {
		if ido, ok := item.(*ast.ImpliedDoLoop); ok {
			c.checkDefinition(ido.Var)
			c.checkInputItems(ido.Items)
			continue
		}
		c.checkDefinition(item)
	}
}

// checkOutputItems checks the implied-DO variables of an output list.
func (c *Checker) checkOutputItems(items []ast.Expression) {
	for _, item := range items {
		if ido, ok := item.(*ast.ImpliedDoLoop); ok {
			c.checkDefinition(ido.Var)
			c.checkOutputItems(ido.Items)
		}
	}
}

// checkActualArgs checks actual arguments associated with INTENT(OUT)
// dummies, which redefine a whole variable, and INTENT(INOUT) dummies,
// which may.
func (c *Checker) checkActualArgs(designator ast.Expression, args []ast.Expression) {
	proc := c.table.ProcedureOf(designator)
	if proc == 0 {
		return
	}
	for i, arg := range args {
		var keyword string
		value := arg
		if kw, ok := arg.(*ast.KeywordArg); ok {
			keyword, value = kw.Keyword, kw.Value
		}
		if !c.table.IsWholeVariable(value) {
			continue
		}
		sym := c.table.SymbolOf(value.(*ast.Identifier))
		switch c.table.DummyIntent(proc, i, keyword) {
		case ast.IntentOut:
			c.CheckRedefine(value.SourcePos(), sym)
		case ast.IntentInOut:
			c.WarnRedefine(value.SourcePos(), sym)
		}
	}
}
