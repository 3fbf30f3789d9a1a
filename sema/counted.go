package sema

import (
	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/symbol"
)

// checkCounted checks the DO variable and loop control expressions of a
// counted DO loop.
func (c *Checker) checkCounted(loop *ast.DoLoop) {
	t := c.table
	if sym := t.SymbolOf(loop.Var); sym != 0 {
		switch typ := t.Symbol(sym).Type(); {
		case !t.IsVariable(sym):
			c.msgs.Errorf(loop.Var.Position, "DO control must be an INTEGER variable")
		case typ.Category == symbol.CatNone:
			c.msgs.Errorf(loop.Var.Position, "DO controls should be INTEGER")
		case typ.Category != symbol.CatInteger:
			c.checkDoControl(loop.Var.Position, typ.Category == symbol.CatReal)
		}
	}
	for _, expr := range []ast.Expression{loop.Start, loop.End, loop.Step} {
		if expr == nil {
			continue
		}
		switch cat := t.TypeOf(expr).Category; cat {
		case symbol.CatNone, symbol.CatInteger:
		default:
			c.checkDoControl(expr.SourcePos(), cat == symbol.CatReal)
		}
	}
	if loop.Step != nil && t.IsZero(loop.Step) {
		if c.opts.Conformance == Strict {
			c.msgs.Errorf(loop.Step.SourcePos(), "DO step expression should not be zero")
		} else {
			c.msgs.Warnf(loop.Step.SourcePos(), "DO step expression should not be zero")
		}
	}
}

// checkDoControl diagnoses a DO control of a type other than INTEGER. REAL
// controls are a deleted feature still accepted as an extension.
func (c *Checker) checkDoControl(pos ast.Position, isReal bool) {
	switch {
	case !isReal:
		c.msgs.Errorf(pos, "DO controls should be INTEGER")
	case c.opts.Conformance == Strict:
		c.msgs.Errorf(pos, "DO controls should be INTEGER")
	case c.opts.warnNonstandard() || c.opts.WarnRealDoControls:
		c.msgs.Warnf(pos, "DO controls should be INTEGER")
	}
}
