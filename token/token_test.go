package token

import "testing"

func TestLookupKeyword(t *testing.T) {
	tests := []struct {
		lit  string
		want Token
	}{
		{"do", DO},
		{"Concurrent", CONCURRENT},
		{"ENDDO", ENDDO},
		{"critical", CRITICAL},
		{"sync", SYNC},
		{"impure", IMPURE},
		{"codimension", CODIMENSION},
		{"local", Identifier}, // locality keywords are matched by the parser
		{"x", Identifier},
		{"doubleprecision", DOUBLEPRECISION},
	}
	for _, tt := range tests {
		got := LookupKeyword([]byte(tt.lit))
		if got != tt.want {
			t.Errorf("LookupKeyword(%q): expected %s, got %s", tt.lit, tt.want, got)
		}
	}
}

func TestLookupDotOperator(t *testing.T) {
	tests := []struct {
		lit  string
		want Token
	}{
		{"and", AND},
		{"TRUE", TRUE},
		{"neqv", NEQV},
		{"foo", Illegal},
	}
	for _, tt := range tests {
		got := LookupDotOperator([]byte(tt.lit))
		if got != tt.want {
			t.Errorf("LookupDotOperator(%q): expected %s, got %s", tt.lit, tt.want, got)
		}
	}
}

func TestTokenNames(t *testing.T) {
	for tok := Undefined; tok < numToks; tok++ {
		if tok.String() == "" {
			t.Errorf("token %d has no name", int(tok))
		}
	}
	if Token(-1).String() != "<unknown>" {
		t.Error("expected out of range token to be unknown")
	}
}

func TestTokenClasses(t *testing.T) {
	if !ENDDO.IsEnd() || !ENDBLOCK.IsEndConstruct() || ENDPROGRAM.IsEndConstruct() {
		t.Error("END classification mismatch")
	}
	if !CLASS.IsTypeDeclaration() || CALL.IsTypeDeclaration() {
		t.Error("type declaration classification mismatch")
	}
	if !ALLOCATABLE.IsAttribute() || !CODIMENSION.IsAttribute() || IMPURE.IsAttribute() {
		t.Error("attribute classification mismatch")
	}
	if !IMPURE.IsProcedurePrefix() || !ELEMENTAL.IsProcedurePrefix() {
		t.Error("procedure prefix classification mismatch")
	}
	if !LessEq.IsRelational() || !NE.IsRelational() || AND.IsRelational() {
		t.Error("relational classification mismatch")
	}
}
