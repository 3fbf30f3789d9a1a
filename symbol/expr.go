package symbol

import (
	"iter"
	"math"
	"strings"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/token"
)

// TypeOf returns the type of a resolved expression. The zero value is
// returned when the type cannot be determined.
func (t *Table) TypeOf(expr ast.Expression) ResolvedType {
	switch e := expr.(type) {
	case *ast.Identifier:
		if id := t.SymbolOf(e); id != 0 {
			return t.Symbol(id).typ
		}
	case *ast.IntegerLiteral:
		return ResolvedType{Category: CatInteger}
	case *ast.RealLiteral:
		if strings.ContainsAny(e.Raw, "dD") {
			return ResolvedType{Category: CatReal, Kind: 8}
		}
		return ResolvedType{Category: CatReal}
	case *ast.StringLiteral:
		return ResolvedType{Category: CatCharacter}
	case *ast.LogicalLiteral:
		return ResolvedType{Category: CatLogical}
	case *ast.ParenExpr:
		return t.TypeOf(e.Expr)
	case *ast.UnaryExpr:
		if e.Op == token.NOT {
			return ResolvedType{Category: CatLogical}
		}
		return t.TypeOf(e.Operand)
	case *ast.BinaryExpr:
		switch {
		case e.Op.IsRelational(), e.Op == token.AND, e.Op == token.OR, e.Op == token.EQV, e.Op == token.NEQV:
			return ResolvedType{Category: CatLogical}
		case e.Op == token.StringConcat:
			return ResolvedType{Category: CatCharacter}
		}
		return promoteNumeric(t.TypeOf(e.Left), t.TypeOf(e.Right))
	case *ast.FunctionCall:
		return t.callType(e)
	case *ast.ComponentAccess:
		if id := t.SymbolOf(e.Component); id != 0 {
			return t.Symbol(id).typ
		}
	case *ast.CoarrayRef:
		return t.TypeOf(e.Base)
	case *ast.KeywordArg:
		return t.TypeOf(e.Value)
	case *ast.ArrayConstructor:
		if len(e.Values) > 0 {
			return t.TypeOf(e.Values[0])
		}
	case *ast.ImpliedDoLoop:
		if len(e.Items) > 0 {
			return t.TypeOf(e.Items[0])
		}
	}
	return ResolvedType{}
}

func (t *Table) callType(call *ast.FunctionCall) ResolvedType {
	proc := t.ProcedureOf(call.Func)
	if proc == 0 {
		return t.TypeOf(call.Func)
	}
	sym := t.Symbol(proc)
	if intr := t.IntrinsicOf(proc); intr != nil && intr.result == CatNone && len(call.Args) > 0 {
		return t.TypeOf(call.Args[0])
	}
	return sym.typ
}

// promoteNumeric returns the type of an arithmetic operation on a and b.
func promoteNumeric(a, b ResolvedType) ResolvedType {
	if !a.IsNumeric() {
		return b
	}
	if !b.IsNumeric() {
		return a
	}
	result := a
	if b.Category > a.Category {
		result.Category = b.Category
	}
	result.Kind = max(a.Kind, b.Kind)
	return result
}

// IsCategory reports whether expr has type category cat.
func (t *Table) IsCategory(expr ast.Expression, cat Category) bool {
	return t.TypeOf(expr).Category == cat
}

type constant struct {
	isInt bool
	i     int64
	f     float64
}

func (c constant) float() float64 {
	if c.isInt {
		return float64(c.i)
	}
	return c.f
}

// constValue folds a scalar integer or real constant expression. Named
// constants are followed through lookup.
func (t *Table) constValue(expr ast.Expression, lookup func(*ast.Identifier) SymbolID) (constant, bool) {
	return t.fold(expr, lookup, 0)
}

func (t *Table) fold(expr ast.Expression, lookup func(*ast.Identifier) SymbolID, depth int) (constant, bool) {
	if depth > 32 {
		return constant{}, false
	}
	depth++
	switch e := expr.(type) {
	case *ast.IntegerLiteral:
		return constant{isInt: true, i: e.Value}, true
	case *ast.RealLiteral:
		return constant{f: e.Value}, true
	case *ast.ParenExpr:
		return t.fold(e.Expr, lookup, depth)
	case *ast.Identifier:
		id := lookup(e)
		if id == 0 {
			return constant{}, false
		}
		sym := t.Symbol(t.Root(id))
		if sym.kind != SymParameter || sym.init == nil {
			return constant{}, false
		}
		v, ok := t.fold(sym.init, t.lookupIn(sym.owner), depth)
		if ok && sym.typ.Category == CatInteger && !v.isInt {
			v = constant{isInt: true, i: int64(v.f)}
		}
		return v, ok
	case *ast.UnaryExpr:
		v, ok := t.fold(e.Operand, lookup, depth)
		if !ok {
			return v, false
		}
		switch e.Op {
		case token.Plus:
			return v, true
		case token.Minus:
			if v.isInt && v.i == math.MinInt64 {
				return constant{}, false
			}
			v.i, v.f = -v.i, -v.f
			return v, true
		}
	case *ast.BinaryExpr:
		l, ok := t.fold(e.Left, lookup, depth)
		if !ok {
			return l, false
		}
		r, ok := t.fold(e.Right, lookup, depth)
		if !ok {
			return r, false
		}
		return foldBinary(e.Op, l, r)
	}
	return constant{}, false
}

func foldBinary(op token.Token, l, r constant) (constant, bool) {
	if l.isInt && r.isInt {
		var v int64
		ok := true
		switch op {
		case token.Plus:
			v, ok = addInt(l.i, r.i)
		case token.Minus:
			if r.i == math.MinInt64 {
				return constant{}, false
			}
			v, ok = addInt(l.i, -r.i)
		case token.Asterisk:
			v, ok = mulInt(l.i, r.i)
		case token.Slash:
			if r.i == 0 || (l.i == math.MinInt64 && r.i == -1) {
				return constant{}, false
			}
			v = l.i / r.i
		case token.DoubleStar:
			if r.i < 0 || r.i > 63 {
				return constant{}, false
			}
			v = 1
			for range r.i {
				if v, ok = mulInt(v, l.i); !ok {
					break
				}
			}
		default:
			return constant{}, false
		}
		if !ok {
			// Folding gives up rather than wrap around.
			return constant{}, false
		}
		return constant{isInt: true, i: v}, true
	}
	a, b := l.float(), r.float()
	switch op {
	case token.Plus:
		return constant{f: a + b}, true
	case token.Minus:
		return constant{f: a - b}, true
	case token.Asterisk:
		return constant{f: a * b}, true
	case token.Slash:
		if b == 0 {
			return constant{}, false
		}
		return constant{f: a / b}, true
	case token.DoubleStar:
		return constant{f: math.Pow(a, b)}, true
	}
	return constant{}, false
}

// addInt returns a+b and whether the sum fits in an int64.
func addInt(a, b int64) (int64, bool) {
	sum := a + b
	if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
		return 0, false
	}
	return sum, true
}

// mulInt returns a*b and whether the product fits in an int64.
func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return p, true
}

// lookupIn returns a name lookup function for constant folding inside scope.
func (t *Table) lookupIn(scope ScopeID) func(*ast.Identifier) SymbolID {
	return func(id *ast.Identifier) SymbolID {
		if sym := t.SymbolOf(id); sym != 0 {
			return sym
		}
		return t.Lookup(scope, id.Name)
	}
}

// IsZero reports whether expr is a constant expression equal to zero.
func (t *Table) IsZero(expr ast.Expression) bool {
	v, ok := t.constValue(expr, t.SymbolOf)
	if !ok {
		return false
	}
	if v.isInt {
		return v.i == 0
	}
	return v.f == 0
}

// CollectSymbols returns the symbols referenced by expr in order of first
// appearance.
func (t *Table) CollectSymbols(expr ast.Expression) *SymbolSet {
	set := &SymbolSet{}
	if expr == nil {
		return set
	}
	ast.Inspect(expr, func(n ast.Node) bool {
		if id, ok := n.(*ast.Identifier); ok {
			if sym := t.SymbolOf(id); sym != 0 {
				set.Add(sym)
			}
		}
		return true
	})
	return set
}

// IsPureProcedure reports whether the symbol names a pure procedure. A
// procedure pointer or component is pure when its interface is.
func (t *Table) IsPureProcedure(id SymbolID) bool {
	for range 16 {
		sym := t.Symbol(t.Root(id))
		if sym.iface != 0 {
			id = sym.iface
			continue
		}
		if !sym.IsProcedure() {
			return false
		}
		return sym.flags.HasAny(FlagPure) || (sym.flags.HasAny(FlagElemental) && !sym.flags.HasAny(FlagImpure))
	}
	return false
}

// IsPolymorphicAllocatable reports whether the symbol is an allocatable
// entity declared with CLASS.
func (t *Table) IsPolymorphicAllocatable(id SymbolID) bool {
	sym := t.Symbol(id)
	return sym.flags.HasAny(FlagAllocatable) && sym.typ.Polymorphic
}

func (t *Table) IsAllocatable(id SymbolID) bool {
	return t.Symbol(id).flags.HasAny(FlagAllocatable)
}

func (t *Table) IsCoarray(id SymbolID) bool {
	return t.Symbol(id).flags.HasAny(FlagCoarray)
}

// IsVariable reports whether the symbol names a variable: a data object
// that is not a named constant, or an associate name.
func (t *Table) IsVariable(id SymbolID) bool {
	switch t.Symbol(t.Root(id)).kind {
	case SymVariable, SymAssocName:
		return true
	}
	return false
}

// FindComponent looks up a component of a derived type, including the
// components inherited from its parent types.
func (t *Table) FindComponent(derived SymbolID, name string) SymbolID {
	for range 64 {
		if derived == 0 {
			return 0
		}
		sym := t.Symbol(derived)
		if sym.inner != 0 {
			if id := t.LookupLocal(sym.inner, name); id != 0 {
				return id
			}
		}
		derived = sym.extends
	}
	return 0
}

// UltimateComponents iterates over the ultimate components of a derived
// type in declaration order. Non-allocatable, non-pointer components of
// derived type are expanded into their own components.
func (t *Table) UltimateComponents(derived SymbolID) iter.Seq[SymbolID] {
	return func(yield func(SymbolID) bool) {
		visiting := make(map[SymbolID]bool)
		t.ultimates(derived, visiting, yield)
	}
}

func (t *Table) ultimates(derived SymbolID, visiting map[SymbolID]bool, yield func(SymbolID) bool) bool {
	if derived == 0 || visiting[derived] {
		return true
	}
	visiting[derived] = true
	defer delete(visiting, derived)
	inner := t.Symbol(derived).inner
	if inner == 0 {
		return true
	}
	for _, id := range t.Scope(inner).order {
		comp := t.symbols[id]
		if comp.kind == SymComponent && comp.typ.Category == CatDerived && comp.typ.Derived != 0 &&
			!comp.flags.HasAny(FlagAllocatable|FlagPointer) {
			if !t.ultimates(comp.typ.Derived, visiting, yield) {
				return false
			}
			continue
		}
		if !yield(id) {
			return false
		}
	}
	return true
}

// DummyIntent returns the INTENT of the dummy argument of proc matched by
// an actual argument at position index or by keyword when keyword is not
// empty. IntentUnspecified is returned when the interface is unknown.
func (t *Table) DummyIntent(proc SymbolID, index int, keyword string) ast.Intent {
	if proc == 0 {
		return ast.IntentUnspecified
	}
	if intr := t.IntrinsicOf(proc); intr != nil {
		for i, arg := range intr.args {
			if (keyword != "" && strings.EqualFold(arg.Name, keyword)) || (keyword == "" && i == index) {
				return arg.Intent
			}
		}
		return ast.IntentUnspecified
	}
	root := t.Symbol(t.Root(proc))
	for i, d := range root.dummies {
		if d == 0 {
			continue
		}
		dummy := t.Symbol(d)
		if (keyword != "" && strings.EqualFold(dummy.name, keyword)) || (keyword == "" && i == index) {
			return dummy.intent
		}
	}
	return ast.IntentUnspecified
}

// ProcedureOf returns the symbol of a procedure designator: a name or
// a procedure component reference. Zero is returned if the designator
// does not resolve to a procedure.
func (t *Table) ProcedureOf(designator ast.Expression) SymbolID {
	var id SymbolID
	switch d := designator.(type) {
	case *ast.Identifier:
		id = t.SymbolOf(d)
	case *ast.ComponentAccess:
		id = t.SymbolOf(d.Component)
	}
	if id == 0 || !t.Symbol(id).IsProcedure() {
		return 0
	}
	return id
}

// LastName returns the rightmost part name of a designator:
// `b` in `a(i)%b(j)`. It returns nil for expressions that are not designators.
func LastName(expr ast.Expression) *ast.Identifier {
	switch e := expr.(type) {
	case *ast.Identifier:
		return e
	case *ast.FunctionCall:
		return LastName(e.Func)
	case *ast.ComponentAccess:
		return e.Component
	case *ast.CoarrayRef:
		return LastName(e.Base)
	}
	return nil
}

// FirstName returns the base name of a designator: `a` in `a(i)%b(j)`.
func FirstName(expr ast.Expression) *ast.Identifier {
	switch e := expr.(type) {
	case *ast.Identifier:
		return e
	case *ast.FunctionCall:
		return FirstName(e.Func)
	case *ast.ComponentAccess:
		return FirstName(e.Base)
	case *ast.CoarrayRef:
		return FirstName(e.Base)
	}
	return nil
}

// IsWholeVariable reports whether expr is a bare variable name.
func (t *Table) IsWholeVariable(expr ast.Expression) bool {
	id, ok := expr.(*ast.Identifier)
	if !ok {
		return false
	}
	sym := t.SymbolOf(id)
	return sym != 0 && t.IsVariable(sym)
}
