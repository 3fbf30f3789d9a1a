package token

import "bytes"

type Token int

// List of all tokens of the Fortran subset understood by the front end.
// When adding a new token add it in between blocks since we use comparison functions to check properties of tokens.
const (
	// Not to be used in code. Is to catch uninitialized tokens.
	Undefined Token = iota // <undefined>

	// ==================== KEYWORDS ====================

	// Type declaration keywords
	INTEGER         // INTEGER
	REAL            // REAL
	COMPLEX         // COMPLEX
	LOGICAL         // LOGICAL
	CHARACTER       // CHARACTER
	DOUBLE          // DOUBLE
	PRECISION       // PRECISION
	DOUBLEPRECISION // DOUBLEPRECISION
	TYPE            // TYPE
	CLASS           // CLASS

	// Program structure keywords
	PROGRAM       // PROGRAM
	END           // END
	ENDPROGRAM    // ENDPROGRAM
	SUBROUTINE    // SUBROUTINE
	ENDSUBROUTINE // ENDSUBROUTINE
	FUNCTION      // FUNCTION
	ENDFUNCTION   // ENDFUNCTION
	MODULE        // MODULE
	ENDMODULE     // ENDMODULE
	CONTAINS      // CONTAINS
	PROCEDURE     // PROCEDURE
	INTERFACE     // INTERFACE
	ENDINTERFACE  // ENDINTERFACE
	ENDTYPE       // ENDTYPE

	// Control flow keywords
	IF           // IF
	THEN         // THEN
	ELSE         // ELSE
	ELSEIF       // ELSEIF
	ENDIF        // ENDIF
	DO           // DO
	ENDDO        // ENDDO
	WHILE        // WHILE
	CONCURRENT   // CONCURRENT
	CYCLE        // CYCLE
	EXIT         // EXIT
	GOTO         // GOTO
	CONTINUE     // CONTINUE
	RETURN       // RETURN
	STOP         // STOP
	BLOCK        // BLOCK
	ENDBLOCK     // ENDBLOCK
	CRITICAL     // CRITICAL
	ENDCRITICAL  // ENDCRITICAL
	ENDTEAM      // ENDTEAM
	ASSOCIATE    // ASSOCIATE
	ENDASSOCIATE // ENDASSOCIATE

	// Image control keywords
	SYNC   // SYNC
	EVENT  // EVENT
	LOCK   // LOCK
	UNLOCK // UNLOCK

	// I/O keywords
	READ    // READ
	WRITE   // WRITE
	PRINT   // PRINT
	OPEN    // OPEN
	CLOSE   // CLOSE
	INQUIRE // INQUIRE

	// Declaration and specification keywords
	IMPLICIT    // IMPLICIT
	PARAMETER   // PARAMETER
	DIMENSION   // DIMENSION
	CODIMENSION // CODIMENSION
	SAVE        // SAVE
	EXTERNAL    // EXTERNAL
	INTRINSIC   // INTRINSIC
	USE         // USE

	// Miscellaneous keywords
	CALL // CALL

	// ==================== ATTRIBUTES ====================

	INTENT      // INTENT
	OPTIONAL    // OPTIONAL
	POINTER     // POINTER
	TARGET      // TARGET
	ALLOCATABLE // ALLOCATABLE
	ALLOCATE    // ALLOCATE
	DEALLOCATE  // DEALLOCATE
	NULLIFY     // NULLIFY
	RECURSIVE   // RECURSIVE
	ELEMENTAL   // ELEMENTAL
	PURE        // PURE
	IMPURE      // IMPURE
	RESULT      // RESULT

	// ==================== OPERATORS ====================

	// Arithmetic operators
	Plus       // +
	Minus      // -
	Asterisk   // *
	Slash      // /
	DoubleStar // **

	// Assignment operators
	Equals        // =
	PointerAssign // =>

	// Relational operators (Fortran 77 style)
	EQ // .EQ.
	NE // .NE.
	LT // .LT.
	LE // .LE.
	GT // .GT.
	GE // .GE.

	// Relational operators (Fortran 90 style)
	EqEq      // ==
	NotEquals // /=
	Less      // <
	LessEq    // <=
	Greater   // >
	GreaterEq // >=

	// Logical operators
	AND  // .AND.
	OR   // .OR.
	NOT  // .NOT.
	EQV  // .EQV.
	NEQV // .NEQV.

	// String operator
	StringConcat // //

	// ==================== DELIMITERS / PUNCTUATION ====================

	LParen      // (
	RParen      // )
	Comma       // ,
	Colon       // :
	DoubleColon // ::
	Semicolon   // ;
	LBracket    // [
	RBracket    // ]
	Percent     // %
	Ampersand   // &

	// ==================== LITERALS ====================

	// Logical constants
	TRUE  // .TRUE.
	FALSE // .FALSE.

	// User-defined literals
	Identifier // <identifier>
	IntLit     // <integer>
	FloatLit   // <float>
	StringLit  // <string>

	// ==================== SPECIAL TOKENS ====================

	LineComment // <linecomment>
	NewLine     // <newline>
	EOF         // <EOF>
	Illegal     // <illegal>
	numToks
)

var tokenNames = [numToks]string{
	Undefined:       "<undefined>",
	INTEGER:         "INTEGER",
	REAL:            "REAL",
	COMPLEX:         "COMPLEX",
	LOGICAL:         "LOGICAL",
	CHARACTER:       "CHARACTER",
	DOUBLE:          "DOUBLE",
	PRECISION:       "PRECISION",
	DOUBLEPRECISION: "DOUBLEPRECISION",
	TYPE:            "TYPE",
	CLASS:           "CLASS",
	PROGRAM:         "PROGRAM",
	END:             "END",
	ENDPROGRAM:      "ENDPROGRAM",
	SUBROUTINE:      "SUBROUTINE",
	ENDSUBROUTINE:   "ENDSUBROUTINE",
	FUNCTION:        "FUNCTION",
	ENDFUNCTION:     "ENDFUNCTION",
	MODULE:          "MODULE",
	ENDMODULE:       "ENDMODULE",
	CONTAINS:        "CONTAINS",
	PROCEDURE:       "PROCEDURE",
	INTERFACE:       "INTERFACE",
	ENDINTERFACE:    "ENDINTERFACE",
	ENDTYPE:         "ENDTYPE",
	IF:              "IF",
	THEN:            "THEN",
	ELSE:            "ELSE",
	ELSEIF:          "ELSEIF",
	ENDIF:           "ENDIF",
	DO:              "DO",
	ENDDO:           "ENDDO",
	WHILE:           "WHILE",
	CONCURRENT:      "CONCURRENT",
	CYCLE:           "CYCLE",
	EXIT:            "EXIT",
	GOTO:            "GOTO",
	CONTINUE:        "CONTINUE",
	RETURN:          "RETURN",
	STOP:            "STOP",
	BLOCK:           "BLOCK",
	ENDBLOCK:        "ENDBLOCK",
	CRITICAL:        "CRITICAL",
	ENDCRITICAL:     "ENDCRITICAL",
	ENDTEAM:         "ENDTEAM",
	ASSOCIATE:       "ASSOCIATE",
	ENDASSOCIATE:    "ENDASSOCIATE",
	SYNC:            "SYNC",
	EVENT:           "EVENT",
	LOCK:            "LOCK",
	UNLOCK:          "UNLOCK",
	READ:            "READ",
	WRITE:           "WRITE",
	PRINT:           "PRINT",
	OPEN:            "OPEN",
	CLOSE:           "CLOSE",
	INQUIRE:         "INQUIRE",
	IMPLICIT:        "IMPLICIT",
	PARAMETER:       "PARAMETER",
	DIMENSION:       "DIMENSION",
	CODIMENSION:     "CODIMENSION",
	SAVE:            "SAVE",
	EXTERNAL:        "EXTERNAL",
	INTRINSIC:       "INTRINSIC",
	USE:             "USE",
	CALL:            "CALL",
	INTENT:          "INTENT",
	OPTIONAL:        "OPTIONAL",
	POINTER:         "POINTER",
	TARGET:          "TARGET",
	ALLOCATABLE:     "ALLOCATABLE",
	ALLOCATE:        "ALLOCATE",
	DEALLOCATE:      "DEALLOCATE",
	NULLIFY:         "NULLIFY",
	RECURSIVE:       "RECURSIVE",
	ELEMENTAL:       "ELEMENTAL",
	PURE:            "PURE",
	IMPURE:          "IMPURE",
	RESULT:          "RESULT",
	Plus:            "+",
	Minus:           "-",
	Asterisk:        "*",
	Slash:           "/",
	DoubleStar:      "**",
	Equals:          "=",
	PointerAssign:   "=>",
	EQ:              ".EQ.",
	NE:              ".NE.",
	LT:              ".LT.",
	LE:              ".LE.",
	GT:              ".GT.",
	GE:              ".GE.",
	EqEq:            "==",
	NotEquals:       "/=",
	Less:            "<",
	LessEq:          "<=",
	Greater:         ">",
	GreaterEq:       ">=",
	AND:             ".AND.",
	OR:              ".OR.",
	NOT:             ".NOT.",
	EQV:             ".EQV.",
	NEQV:            ".NEQV.",
	StringConcat:    "//",
	LParen:          "(",
	RParen:          ")",
	Comma:           ",",
	Colon:           ":",
	DoubleColon:     "::",
	Semicolon:       ";",
	LBracket:        "[",
	RBracket:        "]",
	Percent:         "%",
	Ampersand:       "&",
	TRUE:            ".TRUE.",
	FALSE:           ".FALSE.",
	Identifier:      "<identifier>",
	IntLit:          "<integer>",
	FloatLit:        "<float>",
	StringLit:       "<string>",
	LineComment:     "<linecomment>",
	NewLine:         "<newline>",
	EOF:             "<EOF>",
	Illegal:         "<illegal>",
}

func (tok Token) String() string {
	if tok < 0 || tok >= numToks {
		return "<unknown>"
	}
	return tokenNames[tok]
}

// IsEndConstruct returns true for the single-word END forms of constructs contained
// within a program unit (ENDDO, ENDIF, ENDBLOCK...).
// Program unit endings like ENDSUBROUTINE are not included.
func (tok Token) IsEndConstruct() bool {
	switch tok {
	case ENDIF, ENDDO, ENDTYPE, ENDINTERFACE, ENDBLOCK, ENDCRITICAL, ENDTEAM, ENDASSOCIATE:
		return true
	}
	return false
}

// IsKeyword returns true if the token is a Fortran keyword.
func (tok Token) IsKeyword() bool {
	return tok >= INTEGER && tok <= RESULT
}

// IsProcedurePrefix returns true for the attributes that may prefix a SUBROUTINE or FUNCTION statement.
func (tok Token) IsProcedurePrefix() bool {
	return tok == PURE || tok == IMPURE || tok == RECURSIVE || tok == ELEMENTAL
}

// IsEnd returns true if the token starts with END. Includes composite ENDs like ENDDO, ENDIF, ENDPROGRAM, etc.
func (tok Token) IsEnd() bool {
	switch tok {
	case END, ENDPROGRAM, ENDSUBROUTINE, ENDFUNCTION, ENDMODULE:
		return true
	}
	return tok.IsEndConstruct()
}

// IsEndOrElse returns true if the token is a construct-ending keyword.
func (tok Token) IsEndOrElse() bool {
	return tok.IsEnd() || tok == ELSE || tok == ELSEIF
}

// IsTypeDeclaration returns true if the token starts a type declaration.
func (tok Token) IsTypeDeclaration() bool {
	return tok >= INTEGER && tok <= CLASS
}

// IsAttribute returns true if the token may appear as an attribute in a type declaration.
func (tok Token) IsAttribute() bool {
	switch tok {
	case PARAMETER, DIMENSION, CODIMENSION, SAVE, EXTERNAL, INTRINSIC:
		return true
	default:
		return tok >= INTENT && tok <= ALLOCATABLE
	}
}

// IsOperator returns true if the token is an operator.
func (tok Token) IsOperator() bool {
	return tok >= Plus && tok <= StringConcat
}

// IsRelational returns true for comparison operators of either spelling.
func (tok Token) IsRelational() bool {
	return tok >= EQ && tok <= GreaterEq
}

// IsDelimiter returns true if the token is a delimiter or punctuation.
func (tok Token) IsDelimiter() bool {
	return tok >= LParen && tok <= Ampersand
}

// IsLiteral returns true if the token is a literal value (logical constant or user-defined literal).
func (tok Token) IsLiteral() bool {
	return tok >= TRUE && tok <= StringLit
}

// IsIllegalOrEOF returns true for tokens that stop parsing.
func (tok Token) IsIllegalOrEOF() bool {
	return tok == EOF || tok == Illegal
}

// LookupKeyword returns [Identifier] or the token for keyword maybeKeyword represents if found.
func LookupKeyword(maybeKeyword []byte) Token {
	// Convert to uppercase for case-insensitive comparison
	upper := bytes.ToUpper(maybeKeyword)
	if tok, ok := keywords[string(upper)]; ok {
		return tok
	}
	return Identifier
}

var keywords = func() map[string]Token {
	m := make(map[string]Token, RESULT-INTEGER+1)
	for tok := INTEGER; tok <= RESULT; tok++ {
		m[tok.String()] = tok
	}
	return m
}()

// LookupDotOperator checks if the internal characters in a dot operator
// match with a token. Returns [Illegal] if no match found.
func LookupDotOperator(ident []byte) Token {
	// Convert to uppercase for case-insensitive comparison
	upper := bytes.ToUpper(ident)
	switch string(upper) {
	default:
		return Illegal
	case "TRUE":
		return TRUE
	case "FALSE":
		return FALSE
	case "EQ":
		return EQ
	case "NE":
		return NE
	case "LT":
		return LT
	case "LE":
		return LE
	case "GT":
		return GT
	case "GE":
		return GE
	case "AND":
		return AND
	case "OR":
		return OR
	case "NOT":
		return NOT
	case "EQV":
		return EQV
	case "NEQV":
		return NEQV
	}
}
