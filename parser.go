package fortran

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/token"
)

// Set via -ldflags: go test -ldflags="-X 'github.com/soypat/fortcheck.debugNoStuckCheck=1'"
var debugNoStuckCheck string

type statementParseFn func() ast.Statement

type ParserError struct {
	sp  sourcePos
	msg string
}

func (pe *ParserError) Error() string {
	var dst []byte
	dst = pe.sp.AppendString(dst)
	dst = append(dst, ':', ' ')
	dst = append(dst, pe.msg...)
	return string(dst)
}

// Offset returns the byte offset in the source at which the error was found.
func (pe *ParserError) Offset() int { return pe.sp.Pos }

// Msg returns the error message without position information.
func (pe *ParserError) Msg() string { return pe.msg }

type sourcePos struct {
	Source string
	Line   int
	Col    int
	Pos    int
}

func (l *sourcePos) String() string {
	return string(l.AppendString(nil))
}

func (l *sourcePos) AppendString(b []byte) []byte {
	if b == nil {
		b = make([]byte, 0, len(l.Source)+3+3)
	}
	b = append(b, l.Source...)
	b = append(b, ':')

	b = strconv.AppendInt(b, int64(l.Line), 10)
	if l.Col > 0 {
		b = append(b, ':')
		b = strconv.AppendInt(b, int64(l.Col), 10)
	}
	return b
}

// Parser90 parses free-form Fortran source into an [ast.Program].
type Parser90 struct {
	l        Lexer90
	current  toktuple
	peek     toktuple
	uberpeek toktuple
	prevEnd  int                              // end offset of the last consumed token
	stmtFns  map[token.Token]statementParseFn // Statement parsers
	errors   []ParserError                    // Collected parsing errors
	doLabels doLabelState

	// Statement prefix state set by parseStatement and taken by construct parsers.
	stmtStart     int
	constructName string
	label         string // label of the statement about to be parsed
	lastLabel     string // label of the most recently parsed statement
	lastStmtPos   ast.Position

	maxErrs int
	// nSamePosCheckCount counts amount of times a check was performed on the same sourcePosition
	// after reaching a threshold the parser dies.
	nSamePosCheckCount int
	lastPosCheck       int
	died               bool
}

// Reset discards all parser state and begins parsing input r.
// source is the name used in error positions, usually a filename.
func (p *Parser90) Reset(source string, r io.Reader) error {
	err := p.l.Reset(source, r)
	if err != nil {
		return err
	}
	if p.stmtFns == nil {
		p.stmtFns = make(map[token.Token]statementParseFn)
	}
	if p.maxErrs == 0 {
		p.maxErrs = 20
	}
	*p = Parser90{
		l: p.l,
		// Reuse memory but clear later.
		maxErrs:  p.maxErrs,
		stmtFns:  p.stmtFns,
		errors:   p.errors[:0],
		doLabels: p.doLabels,
	}
	clear(p.stmtFns)
	p.doLabels.reset()

	// Initialize token stream
	p.nextToken()
	p.nextToken()
	p.nextToken()

	p.registerStatementParsers()
	return nil
}

func (p *Parser90) nextToken() {
	if p.current.tok == token.EOF {
		return
	}
	p.prevEnd = p.current.end
	tok, start, lit := p.l.NextToken()
	end := p.l.Pos()
	line, col := p.l.TokenLineCol()
	// Cycle buffers towards current. The latest peek will use current buffer.
	currBuf := p.current.lit
	p.current = p.peek
	p.peek = p.uberpeek

	p.uberpeek.lit = append(currBuf[:0], lit...)
	p.uberpeek.tok = tok
	p.uberpeek.start = start
	p.uberpeek.end = end
	p.uberpeek.line = line
	p.uberpeek.col = col
	if tok == token.Illegal {
		msg := "illegal token"
		if p.l.Err() != nil {
			msg = p.l.Err().Error()
		}
		p.addErrorWithPos(sourcePos{Source: p.l.Source(), Line: line, Col: col, Pos: start}, msg)
	}
}

// posCheck is called in control structure methods like loop*, currentTokenIs, consumeIf* methods.
// Should not be called from higher level parser functions.
func (p *Parser90) posCheck() {
	if debugNoStuckCheck == "1" {
		return
	}
	if p.current.start == p.lastPosCheck {
		p.nSamePosCheckCount++
		if p.nSamePosCheckCount == 100000 {
			p.addErrorFatal("parser stuck in forever loop")
		}
	} else {
		p.lastPosCheck = p.current.start
		p.nSamePosCheckCount = 0
	}
}

func (p *Parser90) sourcePos() sourcePos {
	return sourcePos{
		Source: p.l.Source(),
		Line:   p.current.line,
		Col:    p.current.col,
		Pos:    p.current.start,
	}
}

// IsDone returns true if the parser is done parsing, whether it be by EOF or error(s) encountered.
func (p *Parser90) IsDone() bool {
	p.posCheck()
	return p.died || p.current.tok == token.EOF || len(p.errors) >= p.maxErrs
}

func (p *Parser90) registerStatement(tokenType token.Token, fn statementParseFn) {
	p.stmtFns[tokenType] = fn
}

type toktuple struct {
	tok   token.Token
	start int
	end   int
	lit   []byte
	line  int // Line number where this token starts
	col   int // Column number where this token starts
}

// ParseProgram parses all program units until EOF or until too many errors
// are found. Parsing errors are available through [Parser90.Errors].
func (p *Parser90) ParseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.IsDone() {
		unit := p.ParseNextProgramUnit()
		if unit != nil {
			prog.Units = append(prog.Units, unit)
		}
	}
	prog.Position = ast.Pos(0, p.prevEnd)
	return prog
}

// ParseNextProgramUnit parses and returns the next program unit from the input.
// Returns nil when EOF is reached or no more units are available.
// This method can be called repeatedly to incrementally parse a Fortran file.
func (p *Parser90) ParseNextProgramUnit() (unit ast.ProgramUnit) {
	for !p.IsDone() && unit == nil {
		p.skipNewlinesAndComments()
		if p.IsDone() {
			break
		}
		// Labeled DO bookkeeping is per program unit.
		p.doLabels.reset()
		unit = p.parseProgramUnit()
		p.skipNewlinesAndComments()
	}
	return unit
}

// registerStatementParsers registers all statement-level parsing functions.
func (p *Parser90) registerStatementParsers() {
	// Specification statements.
	for tok := token.INTEGER; tok <= token.DOUBLEPRECISION; tok++ {
		if tok != token.PRECISION {
			p.registerStatement(tok, p.parseTypeDecl)
		}
	}
	p.registerStatement(token.CLASS, p.parseTypeDecl)
	p.registerStatement(token.TYPE, p.parseTypeStmt)
	p.registerStatement(token.PROCEDURE, p.parseProcedureDecl)
	p.registerStatement(token.INTERFACE, p.parseInterfaceBlock)
	p.registerStatement(token.USE, p.parseUse)
	p.registerStatement(token.IMPLICIT, p.parseImplicit)
	for _, tok := range []token.Token{token.SAVE, token.EXTERNAL, token.INTRINSIC, token.POINTER,
		token.TARGET, token.ALLOCATABLE, token.OPTIONAL, token.DIMENSION, token.CODIMENSION} {
		p.registerStatement(tok, p.parseAttrStmt)
	}

	// Constructs.
	p.registerStatement(token.IF, p.parseIf)
	p.registerStatement(token.DO, p.parseDoLoop)
	p.registerStatement(token.BLOCK, p.parseBlock)
	p.registerStatement(token.CRITICAL, p.parseCritical)
	p.registerStatement(token.ASSOCIATE, p.parseAssociate)

	// Executable statements.
	p.registerStatement(token.CALL, p.parseCall)
	p.registerStatement(token.CYCLE, p.parseCycleExit)
	p.registerStatement(token.EXIT, p.parseCycleExit)
	p.registerStatement(token.GOTO, p.parseGoto)
	p.registerStatement(token.CONTINUE, p.parseContinue)
	p.registerStatement(token.RETURN, p.parseReturn)
	p.registerStatement(token.STOP, p.parseStop)
	p.registerStatement(token.ALLOCATE, p.parseAllocate)
	p.registerStatement(token.DEALLOCATE, p.parseDeallocate)
	p.registerStatement(token.READ, p.parseRead)
	p.registerStatement(token.WRITE, p.parseWrite)
	p.registerStatement(token.PRINT, p.parsePrint)
	p.registerStatement(token.OPEN, p.parseOpen)
	p.registerStatement(token.CLOSE, p.parseClose)
	p.registerStatement(token.INQUIRE, p.parseInquire)
	p.registerStatement(token.SYNC, p.parseImageControl)
	p.registerStatement(token.EVENT, p.parseImageControl)
	p.registerStatement(token.LOCK, p.parseImageControl)
	p.registerStatement(token.UNLOCK, p.parseImageControl)
	p.registerStatement(token.Identifier, p.parseIdentifierStmt)
}

//
// Program units.
//

// parseProgramUnit parses PROGRAM, MODULE, SUBROUTINE or FUNCTION with
// any prefix and its contained procedures.
func (p *Parser90) parseProgramUnit() ast.ProgramUnit {
	start := p.current.start
	var prefix []token.Token
	var typ *ast.TypeSpec
prefixLoop:
	for {
		switch {
		case p.current.tok.IsProcedurePrefix():
			prefix = append(prefix, p.current.tok)
			p.nextToken()
		case typ == nil && p.isTypeSpecStart():
			ts := p.parseTypeSpec()
			typ = &ts
		default:
			break prefixLoop
		}
	}
	switch p.current.tok {
	case token.PROGRAM, token.MODULE:
		if prefix != nil || typ != nil {
			p.addError(p.current.tok.String() + " statement cannot have a prefix")
		}
		if p.currentTokenIs(token.PROGRAM) {
			return p.parseProgramBlock(start)
		}
		return p.parseModule(start)
	case token.SUBROUTINE:
		if typ != nil {
			p.addError("SUBROUTINE cannot have a type prefix")
		}
		return p.parseSubroutine(start, prefix)
	case token.FUNCTION:
		return p.parseFunction(start, prefix, typ)
	}
	p.addError("expected program unit, got " + p.current.tok.String())
	p.skipStatement()
	return nil
}

func (p *Parser90) parseProgramBlock(start int) ast.ProgramUnit {
	pb := &ast.ProgramBlock{}
	p.nextToken() // PROGRAM
	pb.Name = p.parseName("program name")
	p.endStatement()
	end := p.parseUnitBody(&pb.UnitBase, token.PROGRAM, token.ENDPROGRAM)
	pb.Position = ast.Pos(start, end)
	return pb
}

func (p *Parser90) parseModule(start int) ast.ProgramUnit {
	m := &ast.Module{}
	p.nextToken() // MODULE
	m.Name = p.parseName("module name")
	p.endStatement()
	end := p.parseUnitBody(&m.UnitBase, token.MODULE, token.ENDMODULE)
	m.Position = ast.Pos(start, end)
	return m
}

func (p *Parser90) parseSubroutine(start int, prefix []token.Token) ast.ProgramUnit {
	sub := &ast.Subroutine{Prefix: prefix}
	p.nextToken() // SUBROUTINE
	sub.Name = p.parseName("subroutine name")
	if p.currentTokenIs(token.LParen) {
		sub.Params = p.parseParameterList()
	}
	p.skipBindSuffix()
	p.endStatement()
	end := p.parseUnitBody(&sub.UnitBase, token.SUBROUTINE, token.ENDSUBROUTINE)
	sub.Position = ast.Pos(start, end)
	return sub
}

func (p *Parser90) parseFunction(start int, prefix []token.Token, typ *ast.TypeSpec) ast.ProgramUnit {
	fn := &ast.Function{Prefix: prefix, Type: typ}
	p.nextToken() // FUNCTION
	fn.Name = p.parseName("function name")
	if p.expectCurrent(token.LParen) {
		fn.Params = p.parseParameterList()
	}
	for {
		if p.consumeIf(token.RESULT) {
			p.expect(token.LParen, "RESULT")
			fn.Result = p.parseIdent()
			p.expect(token.RParen, "RESULT")
		} else if !p.skipBindSuffix() {
			break
		}
	}
	p.endStatement()
	end := p.parseUnitBody(&fn.UnitBase, token.FUNCTION, token.ENDFUNCTION)
	fn.Position = ast.Pos(start, end)
	return fn
}

// skipBindSuffix skips a BIND(C[, NAME=...]) suffix if present.
func (p *Parser90) skipBindSuffix() bool {
	if p.currentIsIdent("BIND") && p.peekTokenIs(token.LParen) {
		p.nextToken()
		p.skipParens()
		return true
	}
	return false
}

// parseParameterList parses a dummy argument list like (a, b, c).
// Alternate return specifiers (*) are skipped.
func (p *Parser90) parseParameterList() []*ast.Identifier {
	params := []*ast.Identifier{}
	if !p.expect(token.LParen, "parameter list") {
		return params
	}
	for p.loopUntil(token.RParen, token.NewLine) {
		if p.consumeIf(token.Asterisk) {
		} else if id := p.parseIdent(); id != nil {
			params = append(params, id)
		} else {
			break
		}
		if !p.consumeIf(token.Comma) {
			break
		}
	}
	p.expect(token.RParen, "closing parameter list")
	return params
}

// parseUnitBody parses the statements, contained procedures and END
// statement of a program unit. It returns the end offset of the END statement.
func (p *Parser90) parseUnitBody(ub *ast.UnitBase, keyword, singleEnd token.Token) (end int) {
	for {
		body, _ := p.parseBody("")
		ub.Body = append(ub.Body, body...)
		if p.IsDone() || p.isUnitEnd() || p.currentTokenIs(token.CONTAINS) {
			break
		}
		p.addError("unexpected " + p.current.tok.String() + " in " + keyword.String())
		p.label = ""
		p.skipStatement()
	}
	if p.consumeIf(token.CONTAINS) {
		p.label = ""
		p.endStatement()
		for {
			p.skipNewlinesAndComments()
			if p.IsDone() || p.isUnitEnd() {
				break
			}
			if proc := p.parseProgramUnit(); proc != nil {
				ub.Contains = append(ub.Contains, proc)
			}
		}
	}
	p.label = ""
	return p.expectEndProgramUnit(keyword, singleEnd, ub.Name)
}

// isUnitEnd reports whether the current statement ends a program unit.
func (p *Parser90) isUnitEnd() bool {
	switch p.current.tok {
	case token.ENDPROGRAM, token.ENDSUBROUTINE, token.ENDFUNCTION, token.ENDMODULE:
		return true
	case token.END:
		switch p.peek.tok {
		case token.NewLine, token.EOF, token.Semicolon, token.LineComment,
			token.PROGRAM, token.SUBROUTINE, token.FUNCTION, token.MODULE:
			return true
		}
	}
	return false
}

// expectEndProgramUnit handles END [keyword [name]] for program units.
// END is required, but keyword and name after END are optional.
func (p *Parser90) expectEndProgramUnit(keyword, singleEnd token.Token, name string) (end int) {
	switch {
	case p.consumeIf(singleEnd):
	case p.consumeIf(token.END):
		p.consumeIf(keyword)
	default:
		p.addError("expected END " + keyword.String() + ", got " + p.current.tok.String())
		end = p.prevEnd
		p.skipStatement()
		return end
	}
	p.checkEndName(name)
	end = p.prevEnd
	p.endStatement()
	return end
}

//
// Statements.
//

// parseBody parses statements until a construct or unit end, ELSE,
// CONTAINS or EOF is found. When doLabel is not empty parsing also stops after
// the statement that terminates the labeled DO, in which case terminated is true.
// A label in front of the stopping statement is left pending in p.label.
func (p *Parser90) parseBody(doLabel string) (body []ast.Statement, terminated bool) {
	for {
		p.skipNewlinesAndComments()
		if p.IsDone() {
			break
		}
		p.takeLabel()
		if p.atBodyEnd() {
			break
		}
		stmt := p.parseStatement()
		if stmt != nil {
			body = append(body, stmt)
		}
		if doLabel != "" && p.lastLabel == doLabel && p.doLabels.isDoLabel(doLabel) {
			return body, true
		}
	}
	return body, false
}

func (p *Parser90) atBodyEnd() bool {
	tok := p.current.tok
	if tok == token.END && (p.peekTokenIs(token.Equals) || p.peekTokenIs(token.LParen)) {
		return false // END used as a variable name.
	}
	return tok.IsEndOrElse() || tok == token.CONTAINS
}

// takeLabel consumes a statement label, leaving it pending in p.label.
func (p *Parser90) takeLabel() {
	if p.currentTokenIs(token.IntLit) && !p.peekTokenIs(token.NewLine) && !p.peekTokenIs(token.EOF) {
		p.label = normalizeLabel(p.current.lit)
		p.nextToken()
	}
}

// takeTailLabel takes the pending label of a construct END statement.
func (p *Parser90) takeTailLabel() string {
	label := p.label
	p.label = ""
	p.lastLabel = label
	return label
}

func normalizeLabel(lit []byte) string {
	n, err := strconv.Atoi(string(lit))
	if err != nil {
		return string(lit)
	}
	return strconv.Itoa(n)
}

// parseStatement parses a single statement with its pending label and
// construct name, including the statement terminator.
func (p *Parser90) parseStatement() ast.Statement {
	label := p.label
	p.label = ""
	p.lastLabel = label
	p.constructName = ""
	if p.isIdentLike() && p.peekTokenIs(token.Colon) {
		p.stmtStart = p.current.start
		p.constructName = string(p.current.lit)
		p.nextToken()
		p.nextToken()
	} else {
		p.stmtStart = p.current.start
	}
	stmt := p.parseActionStmt()
	if p.constructName != "" {
		p.addError("construct name '" + p.constructName + "' on a statement that is not a construct")
		p.constructName = ""
	}
	if stmt == nil {
		p.skipStatement()
		return nil
	}
	stmt.Base().Label = label
	if _, isConstruct := stmt.(ast.Construct); isConstruct {
		return stmt // Constructs consume their END statement.
	}
	p.lastStmtPos = stmt.SourcePos()
	p.endStatement()
	return stmt
}

// parseActionStmt dispatches to the registered statement parser. It does not
// consume the statement terminator.
func (p *Parser90) parseActionStmt() ast.Statement {
	tok := p.current.tok
	if tok.IsKeyword() && (p.peekTokenIs(token.Equals) || p.peekTokenIs(token.PointerAssign) || p.peekTokenIs(token.Percent)) {
		return p.parseAssignment() // Keyword used as variable name.
	}
	fn := p.stmtFns[tok]
	if fn == nil {
		if tok.IsKeyword() {
			p.addError(tok.String() + " statement is not supported")
		} else {
			p.addError("unexpected " + tok.String() + " at start of statement")
		}
		return nil
	}
	return fn()
}

// parseIdentifierStmt parses statements that start with a word that is not
// a reserved keyword: CHANGE TEAM, ERROR STOP, FORM TEAM, GO TO,
// ABSTRACT INTERFACE, access statements and assignments.
func (p *Parser90) parseIdentifierStmt() ast.Statement {
	if p.peekTokenIs(token.Equals) || p.peekTokenIs(token.PointerAssign) {
		return p.parseAssignment()
	}
	switch strings.ToUpper(string(p.current.lit)) {
	case "CHANGE":
		if p.peekIsIdent("TEAM") {
			return p.parseChangeTeam()
		}
	case "ERROR":
		if p.peekTokenIs(token.STOP) {
			return p.parseStop()
		}
	case "FORM":
		if p.peekIsIdent("TEAM") {
			return p.parseImageControl()
		}
	case "GO":
		if p.peekIsIdent("TO") {
			return p.parseGoto()
		}
	case "ABSTRACT":
		if p.peekTokenIs(token.INTERFACE) {
			return p.parseInterfaceBlock()
		}
	case "PUBLIC", "PRIVATE", "PROTECTED", "SEQUENCE", "VALUE", "VOLATILE", "ASYNCHRONOUS", "CONTIGUOUS":
		switch p.peek.tok {
		case token.NewLine, token.EOF, token.Semicolon, token.LineComment, token.DoubleColon, token.Identifier:
			// Access and attribute statements do not affect checking.
			p.skipToEndOfStatement()
			return nil
		}
	case "IMPORT", "FINAL", "GENERIC", "EQUIVALENCE", "NAMELIST", "COMMON", "DATA", "FORMAT":
		// Statements that do not affect checking. Array element assignments
		// to variables with these names still parse as assignments.
		word := strings.ToUpper(string(p.current.lit))
		skip := !p.peekTokenIs(token.LParen)
		switch word {
		case "NAMELIST", "COMMON", "DATA":
			skip = p.peekTokenIs(token.Identifier) || p.peekTokenIs(token.Slash)
		case "EQUIVALENCE":
			skip = true
		case "FORMAT":
			skip = p.lastLabel != "" && p.peekTokenIs(token.LParen)
		}
		if skip {
			p.skipToEndOfStatement()
			return nil
		}
	case "SELECT":
		if p.peekIsIdent("CASE") || p.peekTokenIs(token.TYPE) || p.peekIsIdent("RANK") {
			p.addError("SELECT construct is not supported")
			return nil
		}
	case "WHERE", "FORALL":
		if p.peekTokenIs(token.LParen) {
			p.addError(strings.ToUpper(string(p.current.lit)) + " statement is not supported")
			return nil
		}
	}
	return p.parseAssignment()
}

// endStatement consumes the end of a statement: a newline, semicolon,
// trailing comment or EOF.
func (p *Parser90) endStatement() {
	switch p.current.tok {
	case token.Semicolon:
		p.nextToken()
		p.consumeIf(token.NewLine)
	case token.LineComment:
		p.nextToken()
		p.consumeIf(token.NewLine)
	case token.NewLine:
		p.nextToken()
	case token.EOF:
	default:
		p.addError("unexpected " + p.current.tok.String() + " at end of statement")
		p.skipStatement()
	}
}

func (p *Parser90) atEndOfStatement() bool {
	switch p.current.tok {
	case token.NewLine, token.Semicolon, token.LineComment, token.EOF:
		return true
	}
	return false
}

// skipToEndOfStatement skips tokens up to, not including, the statement terminator.
func (p *Parser90) skipToEndOfStatement() {
	for !p.atEndOfStatement() && !p.IsDone() {
		p.nextToken()
	}
}

// skipStatement skips the rest of the statement including its terminator.
func (p *Parser90) skipStatement() {
	p.skipToEndOfStatement()
	if p.currentTokenIs(token.LineComment) || p.currentTokenIs(token.Semicolon) {
		p.nextToken()
	}
	p.consumeIf(token.NewLine)
}

//
// Specification statements.
//

func (p *Parser90) isTypeSpecStart() bool {
	switch p.current.tok {
	case token.INTEGER, token.REAL, token.COMPLEX, token.LOGICAL, token.CHARACTER,
		token.DOUBLE, token.DOUBLEPRECISION, token.CLASS:
		return true
	case token.TYPE:
		return p.peekTokenIs(token.LParen)
	}
	return false
}

// parseTypeSpec parses an intrinsic or derived type specifier:
// INTEGER(8), REAL*8, DOUBLE PRECISION, CHARACTER(LEN=*), TYPE(t), CLASS(*).
func (p *Parser90) parseTypeSpec() ast.TypeSpec {
	ts := ast.TypeSpec{Keyword: p.current.tok}
	start := p.current.start
	switch p.current.tok {
	case token.INTEGER, token.REAL, token.COMPLEX, token.LOGICAL, token.CHARACTER:
		p.nextToken()
		if p.currentTokenIs(token.LParen) {
			p.nextToken()
			ts.Kind = p.parseSelectorItem()
			for p.consumeIf(token.Comma) {
				p.parseSelectorItem() // CHARACTER(len, kind): kind does not matter here.
			}
			p.expect(token.RParen, "type selector")
		} else if p.consumeIf(token.Asterisk) {
			if p.currentTokenIs(token.LParen) {
				start := p.current.start
				p.skipParens()
				ts.Kind = &ast.Star{Position: ast.Pos(start, p.prevEnd)}
			} else {
				ts.Kind = p.parsePrimary()
			}
		}
	case token.DOUBLE:
		p.nextToken()
		p.expect(token.PRECISION, "DOUBLE PRECISION")
		ts.Keyword = token.DOUBLEPRECISION
	case token.DOUBLEPRECISION:
		p.nextToken()
	case token.TYPE, token.CLASS:
		p.nextToken()
		p.expect(token.LParen, ts.Keyword.String()+" specifier")
		if p.consumeIf(token.Asterisk) {
			ts.Unlimited = true
		} else if p.isTypeSpecStart() {
			inner := p.parseTypeSpec() // TYPE(INTEGER)
			ts.Keyword, ts.Kind = inner.Keyword, inner.Kind
		} else {
			ts.Derived = p.parseName("derived type name")
		}
		p.expect(token.RParen, ts.Keyword.String()+" specifier")
	default:
		p.addError("expected type specifier, got " + p.current.tok.String())
	}
	ts.Position = ast.Pos(start, p.prevEnd)
	return ts
}

// parseSelectorItem parses `*`, `:`, `KIND=expr` or expr in a type selector.
func (p *Parser90) parseSelectorItem() ast.Expression {
	start := p.current.start
	if p.isIdentLike() && p.peekTokenIs(token.Equals) {
		kw := strings.ToUpper(string(p.current.lit))
		p.nextToken()
		p.nextToken()
		value := p.parseSelectorItem()
		return &ast.KeywordArg{Keyword: kw, Value: value, Position: ast.Pos(start, p.prevEnd)}
	}
	if p.currentTokenIs(token.Asterisk) || p.currentTokenIs(token.Colon) {
		p.nextToken()
		return &ast.Star{Position: ast.Pos(start, p.prevEnd)}
	}
	return p.parseExpression(precLowest)
}

// parseTypeStmt parses TYPE(t) declarations and derived type definitions.
func (p *Parser90) parseTypeStmt() ast.Statement {
	if p.peekTokenIs(token.LParen) {
		return p.parseTypeDecl()
	}
	return p.parseDerivedTypeDef()
}

func (p *Parser90) parseTypeDecl() ast.Statement {
	start := p.current.start
	decl := &ast.TypeDecl{Type: p.parseTypeSpec()}
	if p.currentTokenIs(token.FUNCTION) {
		p.addError("function definition not allowed here")
		return nil
	}
	decl.Attrs = p.parseAttributes()
	p.consumeIf(token.DoubleColon)
	decl.Entities = p.parseEntities()
	decl.Position = ast.Pos(start, p.prevEnd)
	return decl
}

func (p *Parser90) parseProcedureDecl() ast.Statement {
	start := p.current.start
	p.nextToken() // PROCEDURE
	decl := &ast.ProcedureDecl{}
	if p.consumeIf(token.LParen) {
		if p.isTypeSpecStart() {
			p.parseTypeSpec()
		} else if !p.currentTokenIs(token.RParen) {
			decl.Interface = p.parseName("procedure interface")
		}
		p.expect(token.RParen, "procedure interface")
	}
	decl.Attrs = p.parseAttributes()
	p.consumeIf(token.DoubleColon)
	decl.Entities = p.parseEntities()
	decl.Position = ast.Pos(start, p.prevEnd)
	return decl
}

// parseAttributes parses the `, attr` list of a declaration. Attributes
// that do not affect checking are skipped.
func (p *Parser90) parseAttributes() (attrs []ast.Attribute) {
	for p.consumeIf(token.Comma) {
		tok := p.current.tok
		switch {
		case tok == token.INTENT:
			p.nextToken()
			attrs = append(attrs, ast.Attribute{Tok: token.INTENT, Intent: p.parseIntentSpec()})
		case tok == token.DIMENSION:
			p.nextToken()
			attr := ast.Attribute{Tok: tok}
			if p.consumeIf(token.LParen) {
				attr.Shape = p.parseArgs(token.RParen)
			}
			attrs = append(attrs, attr)
		case tok == token.CODIMENSION:
			p.nextToken()
			attr := ast.Attribute{Tok: tok}
			if p.consumeIf(token.LBracket) {
				attr.Shape = p.parseArgs(token.RBracket)
			}
			attrs = append(attrs, attr)
		case tok.IsAttribute():
			p.nextToken()
			attrs = append(attrs, ast.Attribute{Tok: tok})
		case tok == token.Identifier:
			// PUBLIC, PRIVATE, VALUE, NOPASS, PASS(x), BIND(C), CONTIGUOUS...
			p.nextToken()
			if p.currentTokenIs(token.LParen) {
				p.skipParens()
			}
		default:
			p.addError("expected attribute, got " + tok.String())
			return attrs
		}
	}
	return attrs
}

func (p *Parser90) parseIntentSpec() ast.Intent {
	if !p.expect(token.LParen, "INTENT") {
		return ast.IntentUnspecified
	}
	var intent ast.Intent
	switch spec := strings.ToUpper(string(p.current.lit)); spec {
	case "IN":
		intent = ast.IntentIn
		p.nextToken()
		if p.currentIsIdent("OUT") {
			intent = ast.IntentInOut
			p.nextToken()
		}
	case "OUT":
		intent = ast.IntentOut
		p.nextToken()
	case "INOUT":
		intent = ast.IntentInOut
		p.nextToken()
	default:
		p.addError("invalid INTENT specifier " + strconv.Quote(spec))
	}
	p.expect(token.RParen, "INTENT")
	return intent
}

// parseEntities parses `name[(shape)][[coshape]][*len][= init | => init]` lists.
func (p *Parser90) parseEntities() (entities []*ast.Entity) {
	for {
		id := p.parseIdent()
		if id == nil {
			return entities
		}
		e := &ast.Entity{Name: id}
		if p.consumeIf(token.LParen) {
			e.Shape = p.parseArgs(token.RParen)
		}
		if p.consumeIf(token.LBracket) {
			e.Coshape = p.parseArgs(token.RBracket)
		}
		if p.consumeIf(token.Asterisk) {
			// Character length.
			if p.currentTokenIs(token.LParen) {
				p.skipParens()
			} else {
				p.nextToken()
			}
		}
		if p.consumeIf(token.Equals) || p.consumeIf(token.PointerAssign) {
			e.Init = p.parseExpression(precLowest)
		}
		entities = append(entities, e)
		if !p.consumeIf(token.Comma) {
			return entities
		}
	}
}

// parseDerivedTypeDef parses TYPE [, attrs] [::] name ... END TYPE [name].
// Type-bound procedures after CONTAINS are skipped.
func (p *Parser90) parseDerivedTypeDef() ast.Statement {
	start := p.current.start
	def := &ast.DerivedTypeDef{}
	p.nextToken() // TYPE
	for p.consumeIf(token.Comma) {
		switch {
		case p.currentIsIdent("EXTENDS"):
			p.nextToken()
			p.expect(token.LParen, "EXTENDS")
			def.Extends = p.parseName("parent type name")
			p.expect(token.RParen, "EXTENDS")
		case p.isIdentLike():
			// ABSTRACT, PUBLIC, PRIVATE, BIND(C).
			p.nextToken()
			if p.currentTokenIs(token.LParen) {
				p.skipParens()
			}
		default:
			p.addError("expected type attribute, got " + p.current.tok.String())
			return nil
		}
	}
	p.consumeIf(token.DoubleColon)
	def.Name = p.parseName("derived type name")
	p.endStatement()
	def.Components, _ = p.parseBody("")
	if p.consumeIf(token.CONTAINS) {
		for !p.IsDone() && !p.isEndOf(token.TYPE, token.ENDTYPE) && !p.isUnitEnd() {
			p.skipStatement()
		}
	}
	p.takeTailLabel()
	if p.expectEnd(token.TYPE, token.ENDTYPE) {
		p.checkEndName(def.Name)
	}
	def.Position = ast.Pos(start, p.prevEnd)
	return def
}

// parseInterfaceBlock parses [ABSTRACT] INTERFACE [name] ... END INTERFACE [name].
func (p *Parser90) parseInterfaceBlock() ast.Statement {
	start := p.current.start
	ib := &ast.InterfaceBlock{}
	if p.currentTokenIs(token.Identifier) {
		p.nextToken() // ABSTRACT
	}
	p.nextToken() // INTERFACE
	if p.isIdentLike() {
		ib.Name = string(p.current.lit)
		p.nextToken()
		if p.currentTokenIs(token.LParen) {
			// OPERATOR(+) and ASSIGNMENT(=) generics.
			p.skipParens()
			ib.Name = ""
		}
	}
	p.endStatement()
	for {
		p.skipNewlinesAndComments()
		if p.IsDone() || p.isEndOf(token.INTERFACE, token.ENDINTERFACE) || p.isUnitEnd() {
			break
		}
		if p.currentTokenIs(token.PROCEDURE) || (p.currentTokenIs(token.MODULE) && p.peekTokenIs(token.PROCEDURE)) {
			p.skipStatement()
			continue
		}
		if proc := p.parseProgramUnit(); proc != nil {
			ib.Procs = append(ib.Procs, proc)
		}
	}
	if p.expectEnd(token.INTERFACE, token.ENDINTERFACE) && !p.atEndOfStatement() {
		p.nextToken()
		if p.currentTokenIs(token.LParen) {
			p.skipParens()
		}
	}
	ib.Position = ast.Pos(start, p.prevEnd)
	return ib
}

// parseUse parses USE [, INTRINSIC | NON_INTRINSIC] [::] name [, ONLY: list].
// Renames in the ONLY list record the module entity name.
func (p *Parser90) parseUse() ast.Statement {
	start := p.current.start
	use := &ast.UseStmt{}
	p.nextToken() // USE
	if p.consumeIf(token.Comma) {
		use.Intrinsic = p.currentTokenIs(token.INTRINSIC)
		p.nextToken()
	}
	p.consumeIf(token.DoubleColon)
	use.Module = p.parseName("module name")
	if p.consumeIf(token.Comma) {
		if p.currentIsIdent("ONLY") && p.peekTokenIs(token.Colon) {
			p.nextToken()
			p.nextToken()
			use.Only = []string{}
			for p.isIdentLike() {
				name := string(p.current.lit)
				p.nextToken()
				if p.currentTokenIs(token.LParen) {
					p.skipParens() // OPERATOR(.op.) or ASSIGNMENT(=)
					name = ""
				} else if p.consumeIf(token.PointerAssign) {
					name = p.parseName("use name")
				}
				if name != "" {
					use.Only = append(use.Only, name)
				}
				if !p.consumeIf(token.Comma) {
					break
				}
			}
		} else {
			p.skipToEndOfStatement() // Rename list.
		}
	}
	use.Position = ast.Pos(start, p.prevEnd)
	return use
}

// parseImplicit parses IMPLICIT NONE and IMPLICIT type(letter-list) rules.
func (p *Parser90) parseImplicit() ast.Statement {
	start := p.current.start
	stmt := &ast.ImplicitStmt{}
	p.nextToken() // IMPLICIT
	if p.currentIsIdent("NONE") {
		p.nextToken()
		if p.currentTokenIs(token.LParen) {
			p.skipParens() // NONE(TYPE, EXTERNAL)
		}
		stmt.None = true
		stmt.Position = ast.Pos(start, p.prevEnd)
		return stmt
	}
	for {
		var rule ast.ImplicitRule
		var letters []ast.Expression
		switch p.current.tok {
		case token.INTEGER, token.REAL, token.COMPLEX, token.LOGICAL, token.CHARACTER:
			// The first parenthesized list is the letter list unless another follows.
			tsStart := p.current.start
			rule.Type.Keyword = p.current.tok
			p.nextToken()
			if p.consumeIf(token.Asterisk) {
				rule.Type.Kind = p.parsePrimary()
			}
			if !p.expect(token.LParen, "IMPLICIT letter list") {
				return nil
			}
			letters = p.parseArgs(token.RParen)
			rule.Type.Position = ast.Pos(tsStart, p.prevEnd)
			if p.consumeIf(token.LParen) {
				if len(letters) > 0 {
					rule.Type.Kind = letters[0]
				}
				letters = p.parseArgs(token.RParen)
			}
		default:
			rule.Type = p.parseTypeSpec()
			if !p.expect(token.LParen, "IMPLICIT letter list") {
				return nil
			}
			letters = p.parseArgs(token.RParen)
		}
		for _, l := range letters {
			lr, ok := letterRange(l)
			if !ok {
				p.addError("invalid IMPLICIT letter specification " + ast.String(l))
				continue
			}
			rule.Letters = append(rule.Letters, lr)
		}
		stmt.Rules = append(stmt.Rules, rule)
		if !p.consumeIf(token.Comma) {
			break
		}
	}
	stmt.Position = ast.Pos(start, p.prevEnd)
	return stmt
}

func letterRange(e ast.Expression) (ast.LetterRange, bool) {
	letter := func(e ast.Expression) (byte, bool) {
		id, ok := e.(*ast.Identifier)
		if !ok || len(id.Name) != 1 || !isIdentifierChar(rune(id.Name[0])) || id.Name[0] == '_' {
			return 0, false
		}
		return strings.ToUpper(id.Name)[0], true
	}
	if be, ok := e.(*ast.BinaryExpr); ok && be.Op == token.Minus {
		from, ok1 := letter(be.Left)
		to, ok2 := letter(be.Right)
		return ast.LetterRange{From: from, To: to}, ok1 && ok2 && from <= to
	}
	l, ok := letter(e)
	return ast.LetterRange{From: l, To: l}, ok
}

// parseAttrStmt parses attribute specification statements such as
// `save`, `external :: f, g` and `allocatable :: a(:)`.
func (p *Parser90) parseAttrStmt() ast.Statement {
	start := p.current.start
	stmt := &ast.AttrStmt{Attr: p.current.tok}
	p.nextToken()
	p.consumeIf(token.DoubleColon)
	for p.isIdentLike() {
		stmt.Names = append(stmt.Names, p.parseIdent())
		if p.currentTokenIs(token.LParen) {
			p.skipParens()
		}
		if p.currentTokenIs(token.LBracket) {
			p.skipBrackets()
		}
		if !p.consumeIf(token.Comma) {
			break
		}
	}
	stmt.Position = ast.Pos(start, p.prevEnd)
	return stmt
}

//
// Helper methods
//

// loopUntil returns true as long as current token not in set and EOF not hit.
func (p *Parser90) loopUntil(t ...token.Token) bool {
	if p.IsDone() {
		return false
	}
	for i := range t {
		if t[i] == p.current.tok {
			return false
		}
	}
	return true
}

func (p *Parser90) loopWhile(t ...token.Token) bool {
	if p.IsDone() {
		return false
	}
	for i := range t {
		if t[i] == p.current.tok {
			return true
		}
	}
	return false
}

func (p *Parser90) currentTokenIs(t token.Token) bool {
	p.posCheck()
	return p.current.tok == t
}

func (p *Parser90) peekTokenIs(t token.Token) bool {
	p.posCheck()
	return p.peek.tok == t
}

// currentIsIdent reports whether the current token is the non-reserved word w (uppercase).
func (p *Parser90) currentIsIdent(w string) bool {
	return p.current.tok == token.Identifier && strings.EqualFold(string(p.current.lit), w)
}

func (p *Parser90) peekIsIdent(w string) bool {
	return p.peek.tok == token.Identifier && strings.EqualFold(string(p.peek.lit), w)
}

// isIdentLike returns true if the current token can be used as a name.
// Keywords are not reserved and may name entities.
func (p *Parser90) isIdentLike() bool {
	return p.current.tok == token.Identifier || p.current.tok.IsKeyword()
}

func (p *Parser90) expectCurrent(t token.Token) bool {
	if !p.currentTokenIs(t) {
		p.addError("expected " + t.String() + ", got " + p.current.tok.String())
		return false
	}
	return true
}

// expect checks if current token matches t, consumes it if so, and reports error if not.
// Returns true if token matched and was consumed, false otherwise.
func (p *Parser90) expect(t token.Token, reason string) bool {
	if !p.currentTokenIs(t) {
		p.addError(reason + ": expected " + t.String() + ", got " + p.current.tok.String())
		return false
	}
	p.nextToken()
	return true
}

// consumeIf consumes the current token if it matches t, otherwise does nothing.
// Returns true if token was consumed, false otherwise.
func (p *Parser90) consumeIf(t token.Token) bool {
	if p.currentTokenIs(t) {
		p.nextToken()
		return true
	}
	return false
}

// isEndOf reports whether the current statement is END keyword or its single-token form.
func (p *Parser90) isEndOf(keyword, singleEnd token.Token) bool {
	return p.currentTokenIs(singleEnd) || (p.currentTokenIs(token.END) && p.peekTokenIs(keyword))
}

// expectEnd consumes END keyword or its single-token form (ENDDO, ENDIF).
// END without the keyword is not consumed since it likely belongs to the
// enclosing program unit.
func (p *Parser90) expectEnd(keyword, singleEnd token.Token) bool {
	switch {
	case p.consumeIf(singleEnd):
		return true
	case p.currentTokenIs(token.END) && p.peekTokenIs(keyword):
		p.nextToken()
		p.nextToken()
		return true
	}
	p.addError("expected END " + keyword.String() + ", got " + p.current.tok.String())
	return false
}

// checkEndName consumes the optional name after END and checks it matches name.
// A missing name is not an error.
func (p *Parser90) checkEndName(name string) {
	if p.atEndOfStatement() || !p.isIdentLike() {
		return
	}
	got := string(p.current.lit)
	p.nextToken()
	if !strings.EqualFold(got, name) {
		p.addError(fmt.Sprintf("END name '%s' does not match '%s'", got, name))
	}
}

func (p *Parser90) parseIdent() *ast.Identifier {
	if !p.isIdentLike() {
		p.addError("expected name, got " + p.current.tok.String())
		return nil
	}
	id := &ast.Identifier{Name: string(p.current.lit), Position: ast.Pos(p.current.start, p.current.end)}
	p.nextToken()
	return id
}

func (p *Parser90) parseName(context string) string {
	if !p.isIdentLike() {
		p.addError(context + ": expected name, got " + p.current.tok.String())
		return ""
	}
	name := string(p.current.lit)
	p.nextToken()
	return name
}

// skipParens skips a balanced parenthesized group starting at the current '('.
func (p *Parser90) skipParens() { p.skipGroup(token.LParen, token.RParen) }

func (p *Parser90) skipBrackets() { p.skipGroup(token.LBracket, token.RBracket) }

func (p *Parser90) skipGroup(open, close token.Token) {
	if !p.expect(open, "group") {
		return
	}
	depth := 1
	for depth > 0 && !p.atEndOfStatement() && !p.IsDone() {
		switch p.current.tok {
		case open:
			depth++
		case close:
			depth--
		}
		p.nextToken()
	}
}

func (p *Parser90) skipNewlinesAndComments() {
	for p.loopWhile(token.NewLine, token.LineComment, token.Semicolon) {
		p.nextToken()
	}
}

func (p *Parser90) addErrorWithPos(pos sourcePos, msg string) {
	if p.died {
		msg = "got error with terminated parser: " + msg
	}
	p.errors = append(p.errors, ParserError{
		sp:  pos,
		msg: msg,
	})
}

func (p *Parser90) addErrorFatal(msg string) {
	if !p.died {
		msg = "token state: " + p.strToks() + "\nfatal error encountered, terminating run early: " + msg
	}
	p.addError(msg)
	p.died = true
}

func (p *Parser90) addError(msg string) {
	p.addErrorWithPos(p.sourcePos(), msg)
}

func (p *Parser90) Errors() []ParserError {
	return p.errors
}

func (p *Parser90) strToks() string {
	return fmt.Sprintf("%q %s %q %s %q %s", p.current.lit, p.current.tok,
		p.peek.lit, p.peek.tok, p.uberpeek.lit, p.uberpeek.tok)
}

// doLabelState maps the label of each open labeled DO to the nesting depth
// of block DO constructs at which it appeared. A statement label terminates
// a labeled DO only when the label was opened at the current or a deeper
// nesting depth.
type doLabelState struct {
	labels map[string]int
	depth  int // nesting depth of block DO constructs
}

func (s *doLabelState) reset() {
	if s.labels == nil {
		s.labels = make(map[string]int)
	}
	clear(s.labels)
	s.depth = 0
}

func (s *doLabelState) isDoLabel(label string) bool {
	depth, ok := s.labels[label]
	return ok && depth >= s.depth
}

func (s *doLabelState) newDoLabel(label string) {
	s.labels[label] = s.depth
}

func (s *doLabelState) enterNonlabelDo() { s.depth++ }

func (s *doLabelState) leaveNonlabelDo() {
	if s.depth > 0 {
		s.depth--
	}
}
