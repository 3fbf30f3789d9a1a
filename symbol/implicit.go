package symbol

import (
	"fmt"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/token"
)

// ImplicitRules stores implicit typing rules for a scope
type ImplicitRules struct {
	IsNone      bool         // IMPLICIT NONE specified?
	LetterTypes [26]Category // Type for each letter A-Z (CatNone = no rule)
	LetterKinds [26]int      // Kind for each letter (0 = default)
}

// Copy creates a deep copy of ImplicitRules
func (ir *ImplicitRules) Copy() *ImplicitRules {
	if ir == nil {
		return nil
	}
	cp := *ir
	return &cp
}

// defaultImplicitRules returns the default Fortran implicit typing rules:
// I-N are INTEGER, A-H and O-Z are REAL.
func defaultImplicitRules() *ImplicitRules {
	rules := &ImplicitRules{}
	for ch := 'A'; ch <= 'Z'; ch++ {
		rules.LetterTypes[ch-'A'] = CatReal
	}
	for ch := 'I'; ch <= 'N'; ch++ {
		rules.LetterTypes[ch-'A'] = CatInteger
	}
	return rules
}

// ApplyImplicitType determines the type for an identifier based on implicit typing rules.
// Returns an error if IMPLICIT NONE is active or no rule covers the first letter.
func ApplyImplicitType(name string, rules *ImplicitRules) (ResolvedType, error) {
	if name == "" {
		return ResolvedType{}, fmt.Errorf("cannot apply implicit type to empty name")
	}
	if rules == nil || rules.IsNone {
		return ResolvedType{}, fmt.Errorf("no explicit type declared for '%s'", name)
	}
	letter := name[0]
	if 'a' <= letter && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	if letter < 'A' || letter > 'Z' {
		return ResolvedType{}, fmt.Errorf("identifier %s does not start with a letter", name)
	}
	idx := letter - 'A'
	if rules.LetterTypes[idx] == CatNone {
		return ResolvedType{}, fmt.Errorf("no implicit type defined for letter %c", letter)
	}
	return ResolvedType{Category: rules.LetterTypes[idx], Kind: rules.LetterKinds[idx]}, nil
}

// applyImplicitStmt returns the rules in effect after stmt.
func applyImplicitStmt(rules *ImplicitRules, stmt *ast.ImplicitStmt) *ImplicitRules {
	if stmt.None {
		return &ImplicitRules{IsNone: true}
	}
	rules = rules.Copy()
	rules.IsNone = false
	for _, rule := range stmt.Rules {
		typ := typeFromKeyword(rule.Type.Keyword)
		for _, lr := range rule.Letters {
			for ch := lr.From; ch <= lr.To && ch <= 'Z'; ch++ {
				rules.LetterTypes[ch-'A'] = typ.Category
				rules.LetterKinds[ch-'A'] = typ.Kind
			}
		}
	}
	return rules
}

// typeFromKeyword maps an intrinsic type keyword to its category.
// DOUBLE PRECISION is REAL of kind 8.
func typeFromKeyword(tok token.Token) ResolvedType {
	switch tok {
	case token.INTEGER:
		return ResolvedType{Category: CatInteger}
	case token.REAL:
		return ResolvedType{Category: CatReal}
	case token.DOUBLEPRECISION, token.DOUBLE:
		return ResolvedType{Category: CatReal, Kind: 8}
	case token.COMPLEX:
		return ResolvedType{Category: CatComplex}
	case token.CHARACTER:
		return ResolvedType{Category: CatCharacter}
	case token.LOGICAL:
		return ResolvedType{Category: CatLogical}
	case token.TYPE, token.CLASS:
		return ResolvedType{Category: CatDerived, Polymorphic: tok == token.CLASS}
	}
	return ResolvedType{}
}
