// Package symbol provides the scope tree and symbol table produced by name
// resolution of a Fortran program, along with the expression and symbol
// queries used during semantic checks.
//
// Symbols and scopes are stored in arenas owned by a [Table] and referred to
// by [SymbolID] and [ScopeID] handles. The zero handle is never valid.
package symbol

import (
	"strings"

	"github.com/soypat/fortcheck/ast"
)

// SymbolID identifies a symbol in a [Table]. The zero value is no symbol.
type SymbolID int32

// ScopeID identifies a scope in a [Table]. The zero value is no scope.
type ScopeID int32

// Flags
type Flags uint64

const (
	FlagImplicit Flags = 1 << iota // type comes from implicit rules
	FlagUsed
	FlagPointer
	FlagTarget
	FlagIntrinsic
	FlagAllocatable
	FlagSave
	FlagOptional
	FlagCoarray
	FlagDummy
	FlagPure
	FlagImpure
	FlagElemental
	FlagRecursive
	FlagExternal
	FlagArray
)

func (f Flags) HasAny(hasBits Flags) bool { return f&hasBits != 0 }
func (f Flags) HasAll(hasBits Flags) bool { return f&hasBits == hasBits }
func (f Flags) With(mask Flags, setBits bool) Flags {
	if setBits {
		return f | mask
	} else {
		return f &^ mask
	}
}

// Symbol represents a declared entity (variable, procedure, type, etc.)
type Symbol struct {
	name    string       // as first written
	kind    SymbolKind   // what kind of entity this is
	typ     ResolvedType // zero Category if untyped
	flags   Flags
	intent  ast.Intent
	owner   ScopeID      // scope the symbol is defined in
	decl    ast.Position // declaring occurrence of the name
	assoc   SymbolID     // use, host or construct association target
	iface   SymbolID     // explicit interface of a procedure pointer or component
	inner   ScopeID      // scope of a procedure, module or derived type
	dummies []SymbolID   // dummy arguments in order
	extends SymbolID     // parent type of an extended derived type
	init    ast.Expression
}

// Name returns the symbol name as first written.
func (s *Symbol) Name() string { return s.name }

func (s *Symbol) Kind() SymbolKind { return s.kind }

// Type returns the declared or implicit type. The zero value means untyped.
func (s *Symbol) Type() ResolvedType { return s.typ }

func (s *Symbol) Flags() Flags { return s.flags }

// Intent returns the INTENT of a dummy argument.
func (s *Symbol) Intent() ast.Intent { return s.intent }

// Owner returns the scope in which the symbol is defined.
func (s *Symbol) Owner() ScopeID { return s.owner }

// Decl returns the position of the declaring occurrence of the name.
func (s *Symbol) Decl() ast.Position { return s.decl }

// Assoc returns the symbol this one is associated with, if any.
func (s *Symbol) Assoc() SymbolID { return s.assoc }

// Interface returns the interface of a procedure pointer or procedure component.
func (s *Symbol) Interface() SymbolID { return s.iface }

// Inner returns the scope introduced by a procedure, module or derived type.
func (s *Symbol) Inner() ScopeID { return s.inner }

// Dummies returns the dummy arguments of a procedure in order.
func (s *Symbol) Dummies() []SymbolID { return s.dummies }

// Extends returns the parent type of an extended derived type.
func (s *Symbol) Extends() SymbolID { return s.extends }

// Init returns the initialization expression of a named constant.
func (s *Symbol) Init() ast.Expression { return s.init }

// IsProcedure reports whether the symbol names something that can be called.
func (s *Symbol) IsProcedure() bool {
	switch s.kind {
	case SymFunction, SymSubroutine, SymExternal, SymIntrinsic, SymProcPointer, SymProcComponent:
		return true
	}
	return false
}

// Category is the intrinsic type category of a [ResolvedType].
type Category uint8

const (
	CatNone Category = iota
	CatInteger
	CatReal
	CatComplex
	CatCharacter
	CatLogical
	CatDerived
)

func (c Category) String() string {
	switch c {
	case CatInteger:
		return "INTEGER"
	case CatReal:
		return "REAL"
	case CatComplex:
		return "COMPLEX"
	case CatCharacter:
		return "CHARACTER"
	case CatLogical:
		return "LOGICAL"
	case CatDerived:
		return "TYPE"
	}
	return "<untyped>"
}

// ResolvedType is the type of a data entity or function result.
type ResolvedType struct {
	Category    Category
	Kind        int      // Kind parameter value (0 = default kind)
	Derived     SymbolID // Derived type definition for CatDerived
	Polymorphic bool     // Declared with CLASS
	Unlimited   bool     // CLASS(*)
}

// IsNumeric reports whether the type is INTEGER, REAL or COMPLEX.
func (rt ResolvedType) IsNumeric() bool {
	return rt.Category == CatInteger || rt.Category == CatReal || rt.Category == CatComplex
}

// SymbolKind classifies what kind of entity a symbol represents
type SymbolKind int

const (
	SymUnknown       SymbolKind = iota
	SymVariable                 // Data object
	SymParameter                // Named constant
	SymFunction                 // Function (returns value)
	SymSubroutine               // Subroutine (no return value)
	SymModule                   // Module
	SymProgram                  // Main program
	SymDerivedType              // User-defined TYPE
	SymComponent                // Data component of a derived type
	SymProcComponent            // Procedure pointer component
	SymProcPointer              // Procedure pointer variable
	SymIntrinsic                // Intrinsic procedure
	SymExternal                 // External procedure or interface body
	SymAssocName                // ASSOCIATE name or SHARED locality entity
)

// String returns the string representation of SymbolKind
func (sk SymbolKind) String() string {
	switch sk {
	case SymVariable:
		return "Variable"
	case SymParameter:
		return "Parameter"
	case SymFunction:
		return "Function"
	case SymSubroutine:
		return "Subroutine"
	case SymModule:
		return "Module"
	case SymProgram:
		return "Program"
	case SymDerivedType:
		return "DerivedType"
	case SymComponent:
		return "Component"
	case SymProcComponent:
		return "ProcComponent"
	case SymProcPointer:
		return "ProcPointer"
	case SymIntrinsic:
		return "Intrinsic"
	case SymExternal:
		return "External"
	case SymAssocName:
		return "AssocName"
	default:
		return "Unknown"
	}
}

// ScopeType identifies the type of scope
type ScopeType int

const (
	ScopeGlobal      ScopeType = iota // Global scope (entire file)
	ScopeProgram                      // PROGRAM unit
	ScopeProcedure                    // SUBROUTINE, FUNCTION or interface body
	ScopeModule                       // MODULE
	ScopeBlock                        // BLOCK construct
	ScopeConcurrent                   // DO CONCURRENT construct
	ScopeAssociate                    // ASSOCIATE construct
	ScopeDerivedType                  // Components of a derived type
)

// String returns the string representation of ScopeType
func (st ScopeType) String() string {
	switch st {
	case ScopeGlobal:
		return "Global"
	case ScopeProgram:
		return "Program"
	case ScopeProcedure:
		return "Procedure"
	case ScopeModule:
		return "Module"
	case ScopeBlock:
		return "Block"
	case ScopeConcurrent:
		return "Concurrent"
	case ScopeAssociate:
		return "Associate"
	case ScopeDerivedType:
		return "DerivedType"
	default:
		return "Unknown"
	}
}

// IsConstruct reports whether the scope belongs to an executable construct
// rather than a scoping unit.
func (st ScopeType) IsConstruct() bool {
	return st == ScopeBlock || st == ScopeConcurrent || st == ScopeAssociate
}

// Scope represents a lexical scope with symbol table
type Scope struct {
	kind     ScopeType
	name     string
	parent   ScopeID
	children []ScopeID
	symbols  map[string]SymbolID // normalized names
	order    []SymbolID          // definition order
	span     ast.Position
	node     ast.Node
	implicit *ImplicitRules
}

func (s *Scope) Type() ScopeType { return s.kind }

// Name returns the name of the unit or construct owning the scope, if any.
func (s *Scope) Name() string { return s.name }

// Parent returns the parent scope (zero for global scope)
func (s *Scope) Parent() ScopeID { return s.parent }

// Children returns child scopes
func (s *Scope) Children() []ScopeID { return s.children }

// Symbols returns the symbols defined in the scope in definition order.
func (s *Scope) Symbols() []SymbolID { return s.order }

// Span returns the source span covered by the scope.
func (s *Scope) Span() ast.Position { return s.span }

// Node returns the program unit or construct that introduced the scope.
func (s *Scope) Node() ast.Node { return s.node }

// Implicit returns the implicit typing rules for this scope
func (s *Scope) Implicit() *ImplicitRules { return s.implicit }

func normalizeCase(name string) string {
	return strings.ToUpper(name)
}
