package symbol

import (
	"fmt"
	"iter"
	"math"

	"github.com/soypat/fortcheck/ast"
)

// Table owns every scope and symbol of a resolved program.
// Pointers returned by [Table.Symbol] and [Table.Scope] are valid until the
// next definition; the table is not modified once [Collect] returns.
type Table struct {
	symbols    []Symbol // index 0 unused
	scopes     []Scope  // index 0 unused
	global     ScopeID
	uses       map[*ast.Identifier]SymbolID
	scopeOf    map[ast.Node]ScopeID
	modules    map[string]ScopeID
	intrinsics map[string]*Intrinsic
}

// NewTable returns a table holding only the global scope.
func NewTable() *Table {
	t := &Table{
		symbols:    make([]Symbol, 1),
		scopes:     make([]Scope, 1),
		uses:       make(map[*ast.Identifier]SymbolID),
		scopeOf:    make(map[ast.Node]ScopeID),
		modules:    make(map[string]ScopeID),
		intrinsics: loadIntrinsics(),
	}
	t.global = t.NewScope(0, ScopeGlobal, ast.Pos(0, math.MaxInt), nil)
	t.scopes[t.global].implicit = defaultImplicitRules()
	return t
}

// Global returns the global scope.
func (t *Table) Global() ScopeID { return t.global }

// Symbol returns the symbol for id. It panics on an invalid id.
func (t *Table) Symbol(id SymbolID) *Symbol {
	if id <= 0 || int(id) >= len(t.symbols) {
		panic(fmt.Sprintf("symbol: invalid symbol id %d", id))
	}
	return &t.symbols[id]
}

// Scope returns the scope for id. It panics on an invalid id.
func (t *Table) Scope(id ScopeID) *Scope {
	if id <= 0 || int(id) >= len(t.scopes) {
		panic(fmt.Sprintf("symbol: invalid scope id %d", id))
	}
	return &t.scopes[id]
}

// Intrinsic returns the intrinsic procedure description for name or nil.
func (t *Table) Intrinsic(name string) *Intrinsic {
	return t.intrinsics[normalizeCase(name)]
}

// NewScope creates a child of parent. The implicit rules of the new scope
// are those of its parent until changed by an IMPLICIT statement.
func (t *Table) NewScope(parent ScopeID, kind ScopeType, span ast.Position, node ast.Node) ScopeID {
	id := ScopeID(len(t.scopes))
	sc := Scope{
		kind:    kind,
		parent:  parent,
		symbols: make(map[string]SymbolID),
		span:    span,
		node:    node,
	}
	if parent != 0 {
		p := t.Scope(parent)
		sc.implicit = p.implicit
		p.children = append(p.children, id)
	}
	t.scopes = append(t.scopes, sc)
	if node != nil {
		t.scopeOf[node] = id
	}
	return id
}

// Define adds sym to scope and returns its handle. It fails if the name is
// already defined in scope.
func (t *Table) Define(scope ScopeID, sym Symbol) (SymbolID, error) {
	sc := t.Scope(scope)
	name := normalizeCase(sym.name)
	if prev, ok := sc.symbols[name]; ok {
		return prev, fmt.Errorf("symbol %s already defined in scope", sym.name)
	}
	id := SymbolID(len(t.symbols))
	sym.owner = scope
	t.symbols = append(t.symbols, sym)
	sc.symbols[name] = id
	sc.order = append(sc.order, id)
	return id, nil
}

// Lookup searches for name in scope and its ancestors. Derived type
// component scopes are skipped when walking outward.
func (t *Table) Lookup(scope ScopeID, name string) SymbolID {
	name = normalizeCase(name)
	for s := scope; s != 0; s = t.scopes[s].parent {
		sc := &t.scopes[s]
		if sc.kind == ScopeDerivedType && s != scope {
			continue
		}
		if id, ok := sc.symbols[name]; ok {
			return id
		}
	}
	return 0
}

// LookupLocal searches for name only in scope.
func (t *Table) LookupLocal(scope ScopeID, name string) SymbolID {
	return t.Scope(scope).symbols[normalizeCase(name)]
}

// Contains reports whether ancestor strictly contains descendant.
// A scope does not contain itself.
func (t *Table) Contains(ancestor, descendant ScopeID) bool {
	if ancestor == 0 || descendant == 0 {
		return false
	}
	for s := t.Scope(descendant).parent; s != 0; s = t.scopes[s].parent {
		if s == ancestor {
			return true
		}
	}
	return false
}

// Root follows use, host and construct association links to the ultimate
// symbol. A symbol without association is its own root.
func (t *Table) Root(id SymbolID) SymbolID {
	for range len(t.symbols) {
		next := t.Symbol(id).assoc
		if next == 0 {
			return id
		}
		id = next
	}
	panic(fmt.Sprintf("symbol: association cycle through %q", t.Symbol(id).name))
}

// ScopeAt returns the innermost scope whose span encloses pos.
func (t *Table) ScopeAt(pos ast.Position) ScopeID {
	current := t.global
descend:
	for {
		for _, child := range t.scopes[current].children {
			if t.scopes[child].kind != ScopeDerivedType && t.scopes[child].span.Encloses(pos) {
				current = child
				continue descend
			}
		}
		return current
	}
}

// ScopeOf returns the scope introduced by a program unit or construct node.
func (t *Table) ScopeOf(node ast.Node) ScopeID { return t.scopeOf[node] }

// SymbolOf returns the symbol an identifier occurrence resolved to.
func (t *Table) SymbolOf(id *ast.Identifier) SymbolID { return t.uses[id] }

// Bind records that the identifier occurrence refers to sym.
func (t *Table) Bind(id *ast.Identifier, sym SymbolID) {
	t.uses[id] = sym
}

// Module returns the scope of a module by name.
func (t *Table) Module(name string) ScopeID { return t.modules[normalizeCase(name)] }

// Scopes iterates over every scope in creation order.
func (t *Table) Scopes() iter.Seq[ScopeID] {
	return func(yield func(ScopeID) bool) {
		for i := 1; i < len(t.scopes); i++ {
			if !yield(ScopeID(i)) {
				return
			}
		}
	}
}

// Unit returns the nearest enclosing scope that is not a construct or
// derived type scope.
func (t *Table) Unit(scope ScopeID) ScopeID {
	for s := scope; s != 0; s = t.scopes[s].parent {
		if k := t.scopes[s].kind; !k.IsConstruct() && k != ScopeDerivedType {
			return s
		}
	}
	return t.global
}

// SymbolSet is a set of symbols that remembers insertion order.
type SymbolSet struct {
	ids   []SymbolID
	index map[SymbolID]struct{}
}

// Add inserts id and reports whether it was not already present.
func (ss *SymbolSet) Add(id SymbolID) bool {
	if ss.index == nil {
		ss.index = make(map[SymbolID]struct{})
	}
	if _, ok := ss.index[id]; ok {
		return false
	}
	ss.index[id] = struct{}{}
	ss.ids = append(ss.ids, id)
	return true
}

func (ss *SymbolSet) Has(id SymbolID) bool {
	_, ok := ss.index[id]
	return ok
}

func (ss *SymbolSet) Len() int { return len(ss.ids) }

// All iterates over the set in insertion order.
func (ss *SymbolSet) All() iter.Seq[SymbolID] {
	return func(yield func(SymbolID) bool) {
		for _, id := range ss.ids {
			if !yield(id) {
				return
			}
		}
	}
}
