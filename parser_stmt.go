package fortran

import (
	"strings"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/token"
)

//
// Constructs.
//

// takeConstructName returns the construct name of the statement being parsed
// and clears it so nested statements do not see it.
func (p *Parser90) takeConstructName() string {
	name := p.constructName
	p.constructName = ""
	return name
}

// isEndWord reports whether the current statement is END word or singleEnd.
// word is matched against the literal so END TEAM, where TEAM is not
// reserved, is recognized like END DO.
func (p *Parser90) isEndWord(word string, singleEnd token.Token) bool {
	if p.current.tok == singleEnd {
		return true
	}
	return p.current.tok == token.END && (p.peek.tok == token.Identifier || p.peek.tok.IsKeyword()) &&
		strings.EqualFold(string(p.peek.lit), word)
}

// parseEndConstruct parses the END statement of a construct named name and
// returns its position. A pending statement label is taken as the END
// statement label. On failure nothing is consumed and ok is false.
func (p *Parser90) parseEndConstruct(word string, singleEnd token.Token, name string) (pos ast.Position, ok bool) {
	if !p.isEndWord(word, singleEnd) {
		p.addError("expected END " + word + ", got " + p.current.tok.String())
		return ast.Position{}, false
	}
	p.takeTailLabel()
	start := p.current.start
	if !p.consumeIf(singleEnd) {
		p.nextToken() // END
		p.nextToken() // word
	}
	if p.currentTokenIs(token.LParen) {
		p.skipParens() // END TEAM (STAT=...)
	}
	switch {
	case p.atEndOfStatement():
		if name != "" {
			p.addError("END " + word + " statement must repeat construct name '" + name + "'")
		}
	case name == "":
		p.addError("END " + word + " statement has a name but the construct is unnamed")
		p.nextToken()
	default:
		p.checkEndName(name)
	}
	pos = ast.Pos(start, p.prevEnd)
	p.lastStmtPos = pos
	p.endStatement()
	return pos, true
}

// constructEnd returns the end offset of a construct with the given tail.
func (p *Parser90) constructEnd(tail ast.Position, ok bool) int {
	if ok {
		return tail.End()
	}
	return p.prevEnd
}

// parseDoLoop parses all DO forms:
//
//	DO [label [,]] var = start, end [, step]
//	DO [label [,]] WHILE (cond)
//	DO [label [,]] CONCURRENT (header) [locality]
//	DO [label]
//
// A labeled DO ends with the statement carrying its label or with a
// labeled END DO. Labeled DOs may share a terminating statement.
func (p *Parser90) parseDoLoop() ast.Statement {
	start := p.stmtStart
	dl := &ast.DoLoop{}
	dl.Name = p.takeConstructName()
	p.nextToken() // DO
	if p.currentTokenIs(token.IntLit) {
		dl.TargetLabel = normalizeLabel(p.current.lit)
		p.nextToken()
	}
	p.consumeIf(token.Comma)
	switch {
	case p.atEndOfStatement():
		// DO without loop control.
	case p.currentTokenIs(token.WHILE) && p.peekTokenIs(token.LParen):
		p.nextToken()
		p.nextToken()
		dl.While = p.parseExpression(precLowest)
		if dl.While == nil || !p.expect(token.RParen, "DO WHILE condition") {
			return nil
		}
	case p.currentTokenIs(token.CONCURRENT) && p.peekTokenIs(token.LParen):
		p.nextToken()
		dl.Concurrent = p.parseConcurrentHeader()
		if dl.Concurrent == nil {
			return nil
		}
	default:
		dl.Var = p.parseIdent()
		if dl.Var == nil || !p.expect(token.Equals, "DO control") {
			return nil
		}
		dl.Start = p.parseExpression(precLowest)
		if dl.Start == nil || !p.expect(token.Comma, "DO control") {
			return nil
		}
		dl.End = p.parseExpression(precLowest)
		if dl.End == nil {
			return nil
		}
		if p.consumeIf(token.Comma) {
			dl.Step = p.parseExpression(precLowest)
			if dl.Step == nil {
				return nil
			}
		}
	}
	dl.Header = ast.Pos(start, p.prevEnd)
	if !p.atEndOfStatement() {
		p.addError("unexpected " + p.current.tok.String() + " after DO statement")
		p.skipToEndOfStatement()
	}
	p.endStatement()

	if dl.TargetLabel != "" {
		p.doLabels.newDoLabel(dl.TargetLabel)
		body, terminated := p.parseBody(dl.TargetLabel)
		dl.Body = body
		switch {
		case terminated:
			dl.Tail = p.lastStmtPos
		case p.label == dl.TargetLabel && p.isEndWord("DO", token.ENDDO):
			tail, ok := p.parseEndConstruct("DO", token.ENDDO, dl.Name)
			dl.Tail = tail
			dl.Position = ast.Pos(start, p.constructEnd(tail, ok))
			return dl
		default:
			p.addError("DO loop is not terminated by a statement with label " + dl.TargetLabel)
			dl.Tail = ast.Pos(p.prevEnd, p.prevEnd)
		}
		dl.Position = ast.Pos(start, dl.Tail.End())
		return dl
	}

	p.doLabels.enterNonlabelDo()
	dl.Body, _ = p.parseBody("")
	p.doLabels.leaveNonlabelDo()
	tail, ok := p.parseEndConstruct("DO", token.ENDDO, dl.Name)
	dl.Tail = tail
	dl.Position = ast.Pos(start, p.constructEnd(tail, ok))
	return dl
}

// parseConcurrentHeader parses `([integer-type-spec ::] controls [, mask]) [locality...]`.
func (p *Parser90) parseConcurrentHeader() *ast.ConcurrentHeader {
	ch := &ast.ConcurrentHeader{}
	start := p.current.start
	p.nextToken() // (
	if p.currentTokenIs(token.INTEGER) {
		ts := p.parseTypeSpec()
		ch.Type = &ts
		if !p.expect(token.DoubleColon, "DO CONCURRENT type") {
			return nil
		}
	}
	for {
		if p.isIdentLike() && p.peekTokenIs(token.Equals) {
			cc := p.parseConcurrentControl()
			if cc == nil {
				return nil
			}
			if ch.Mask != nil {
				p.addError("concurrent-control must precede the mask expression")
			}
			ch.Controls = append(ch.Controls, cc)
		} else {
			mask := p.parseExpression(precLowest)
			if mask == nil {
				return nil
			}
			if ch.Mask != nil {
				p.addError("DO CONCURRENT header has more than one mask expression")
			}
			ch.Mask = mask
		}
		if !p.consumeIf(token.Comma) {
			break
		}
	}
	if !p.expect(token.RParen, "DO CONCURRENT header") {
		return nil
	}
	if len(ch.Controls) == 0 {
		p.addError("DO CONCURRENT header has no concurrent-control")
	}
	for p.currentTokenIs(token.Identifier) && p.peekTokenIs(token.LParen) {
		ls := p.parseLocalitySpec()
		if ls == nil {
			return nil
		}
		ch.Locality = append(ch.Locality, ls)
	}
	ch.Position = ast.Pos(start, p.prevEnd)
	return ch
}

func (p *Parser90) parseConcurrentControl() *ast.ConcurrentControl {
	start := p.current.start
	cc := &ast.ConcurrentControl{Index: p.parseIdent()}
	p.nextToken() // =
	cc.Lower = p.parseExpression(precLowest)
	if cc.Lower == nil || !p.expect(token.Colon, "concurrent-control") {
		return nil
	}
	cc.Upper = p.parseExpression(precLowest)
	if cc.Upper == nil {
		return nil
	}
	if p.consumeIf(token.Colon) {
		cc.Step = p.parseExpression(precLowest)
		if cc.Step == nil {
			return nil
		}
	}
	cc.Position = ast.Pos(start, p.prevEnd)
	return cc
}

// parseLocalitySpec parses LOCAL(names), LOCAL_INIT(names), SHARED(names) or DEFAULT(NONE).
func (p *Parser90) parseLocalitySpec() *ast.LocalitySpec {
	start := p.current.start
	ls := &ast.LocalitySpec{}
	word := strings.ToUpper(string(p.current.lit))
	switch word {
	case "LOCAL":
		ls.Kind = ast.LocalityLocal
	case "LOCAL_INIT":
		ls.Kind = ast.LocalityLocalInit
	case "SHARED":
		ls.Kind = ast.LocalityShared
	case "DEFAULT":
		ls.Kind = ast.LocalityDefaultNone
	default:
		p.addError("expected locality-spec, got " + string(p.current.lit))
		return nil
	}
	p.nextToken()
	p.nextToken() // (
	if ls.Kind == ast.LocalityDefaultNone {
		if !p.currentIsIdent("NONE") {
			p.addError("DEFAULT locality-spec: expected NONE, got " + p.current.tok.String())
			return nil
		}
		p.nextToken()
	} else {
		for {
			id := p.parseIdent()
			if id == nil {
				return nil
			}
			ls.Names = append(ls.Names, id)
			if !p.consumeIf(token.Comma) {
				break
			}
		}
	}
	if !p.expect(token.RParen, word+" locality-spec") {
		return nil
	}
	ls.Position = ast.Pos(start, p.prevEnd)
	return ls
}

// parseIf parses the logical IF statement and the IF construct with its
// ELSE IF and ELSE blocks.
func (p *Parser90) parseIf() ast.Statement {
	start := p.stmtStart
	name := p.takeConstructName()
	p.nextToken() // IF
	cond := p.parseCondition("IF")
	if cond == nil {
		return nil
	}
	if !p.consumeIf(token.THEN) {
		if name != "" {
			p.addError("IF statement cannot have a construct name")
		}
		p.stmtStart = p.current.start
		then := p.parseActionStmt()
		if then == nil {
			return nil
		}
		if _, ok := then.(ast.Construct); ok {
			p.addError("construct not allowed as the action of an IF statement")
			return nil
		}
		is := &ast.IfStmt{Cond: cond, Then: then}
		is.Position = ast.Pos(start, p.prevEnd)
		return is
	}
	ic := &ast.IfConstruct{Cond: cond}
	ic.Name = name
	ic.Header = ast.Pos(start, p.prevEnd)
	p.endStatement()
	ic.Then, _ = p.parseBody("")
	for {
		if p.currentTokenIs(token.ELSEIF) || (p.currentTokenIs(token.ELSE) && p.peekTokenIs(token.IF)) {
			p.takeTailLabel()
			if p.consumeIf(token.ELSE) {
				p.nextToken() // IF
			} else {
				p.nextToken() // ELSEIF
			}
			cond := p.parseCondition("ELSE IF")
			if cond == nil || !p.expect(token.THEN, "ELSE IF") {
				p.skipStatement()
			} else {
				p.checkElseName(name)
				p.endStatement()
			}
			var elif ast.ElseIf
			elif.Cond = cond
			elif.Body, _ = p.parseBody("")
			ic.ElseIfs = append(ic.ElseIfs, elif)
			continue
		}
		if p.currentTokenIs(token.ELSE) {
			p.takeTailLabel()
			p.nextToken()
			p.checkElseName(name)
			p.endStatement()
			ic.Else, _ = p.parseBody("")
			if p.currentTokenIs(token.ELSE) || p.currentTokenIs(token.ELSEIF) {
				p.addError("ELSE block must be the last block of an IF construct")
			}
		}
		break
	}
	tail, ok := p.parseEndConstruct("IF", token.ENDIF, name)
	ic.Tail = tail
	ic.Position = ast.Pos(start, p.constructEnd(tail, ok))
	return ic
}

// parseCondition parses `(expr)`.
func (p *Parser90) parseCondition(context string) ast.Expression {
	if !p.expect(token.LParen, context+" condition") {
		return nil
	}
	cond := p.parseExpression(precLowest)
	if cond == nil || !p.expect(token.RParen, context+" condition") {
		return nil
	}
	return cond
}

func (p *Parser90) checkElseName(name string) {
	if p.atEndOfStatement() {
		return
	}
	if name == "" {
		p.addError("ELSE statement has a name but the IF construct is unnamed")
		p.nextToken()
		return
	}
	p.checkEndName(name)
}

func (p *Parser90) parseBlock() ast.Statement {
	start := p.stmtStart
	bc := &ast.BlockConstruct{}
	bc.Name = p.takeConstructName()
	p.nextToken() // BLOCK
	bc.Header = ast.Pos(start, p.prevEnd)
	p.endStatement()
	bc.Body, _ = p.parseBody("")
	tail, ok := p.parseEndConstruct("BLOCK", token.ENDBLOCK, bc.Name)
	bc.Tail = tail
	bc.Position = ast.Pos(start, p.constructEnd(tail, ok))
	return bc
}

func (p *Parser90) parseCritical() ast.Statement {
	start := p.stmtStart
	cc := &ast.CriticalConstruct{}
	cc.Name = p.takeConstructName()
	p.nextToken() // CRITICAL
	if p.consumeIf(token.LParen) {
		cc.Specs = p.parseSpecifiers(token.RParen)
	}
	cc.Header = ast.Pos(start, p.prevEnd)
	p.endStatement()
	cc.Body, _ = p.parseBody("")
	tail, ok := p.parseEndConstruct("CRITICAL", token.ENDCRITICAL, cc.Name)
	cc.Tail = tail
	cc.Position = ast.Pos(start, p.constructEnd(tail, ok))
	return cc
}

// parseChangeTeam parses CHANGE TEAM (team [, sync-stat-list]) ... END TEAM.
func (p *Parser90) parseChangeTeam() ast.Statement {
	start := p.stmtStart
	ct := &ast.ChangeTeamConstruct{}
	ct.Name = p.takeConstructName()
	p.nextToken() // CHANGE
	p.nextToken() // TEAM
	if !p.expect(token.LParen, "CHANGE TEAM") {
		return nil
	}
	for _, spec := range p.parseSpecifiers(token.RParen) {
		if spec.Keyword == "" && ct.Team == nil {
			ct.Team = spec.Value
		} else {
			ct.Specs = append(ct.Specs, spec)
		}
	}
	if ct.Team == nil {
		p.addError("CHANGE TEAM requires a team value")
		return nil
	}
	ct.Header = ast.Pos(start, p.prevEnd)
	p.endStatement()
	ct.Body, _ = p.parseBody("")
	tail, ok := p.parseEndConstruct("TEAM", token.ENDTEAM, ct.Name)
	ct.Tail = tail
	ct.Position = ast.Pos(start, p.constructEnd(tail, ok))
	return ct
}

// parseAssociate parses ASSOCIATE (name => selector, ...) ... END ASSOCIATE.
func (p *Parser90) parseAssociate() ast.Statement {
	start := p.stmtStart
	ac := &ast.AssociateConstruct{}
	ac.Name = p.takeConstructName()
	p.nextToken() // ASSOCIATE
	if !p.expect(token.LParen, "ASSOCIATE") {
		return nil
	}
	for {
		assocStart := p.current.start
		name := p.parseIdent()
		if name == nil || !p.expect(token.PointerAssign, "association") {
			return nil
		}
		sel := p.parseExpression(precLowest)
		if sel == nil {
			return nil
		}
		ac.Assocs = append(ac.Assocs, &ast.Association{
			Position: ast.Pos(assocStart, p.prevEnd),
			Name:     name,
			Selector: sel,
		})
		if !p.consumeIf(token.Comma) {
			break
		}
	}
	if !p.expect(token.RParen, "ASSOCIATE") {
		return nil
	}
	ac.Header = ast.Pos(start, p.prevEnd)
	p.endStatement()
	ac.Body, _ = p.parseBody("")
	tail, ok := p.parseEndConstruct("ASSOCIATE", token.ENDASSOCIATE, ac.Name)
	ac.Tail = tail
	ac.Position = ast.Pos(start, p.constructEnd(tail, ok))
	return ac
}

//
// Action statements.
//

// parseAssignment parses `designator = expr` and `designator => target`.
func (p *Parser90) parseAssignment() ast.Statement {
	start := p.current.start
	target := p.parseDesignator()
	if target == nil {
		return nil
	}
	switch p.current.tok {
	case token.Equals:
		p.nextToken()
		value := p.parseExpression(precLowest)
		if value == nil {
			return nil
		}
		as := &ast.AssignmentStmt{Target: target, Value: value}
		as.Position = ast.Pos(start, p.prevEnd)
		return as
	case token.PointerAssign:
		p.nextToken()
		value := p.parseExpression(precLowest)
		if value == nil {
			return nil
		}
		ps := &ast.PointerAssignStmt{Target: target, Value: value}
		ps.Position = ast.Pos(start, p.prevEnd)
		return ps
	}
	p.addError("expected assignment, got " + p.current.tok.String())
	return nil
}

// parseCall parses CALL name[(args)] including type-bound calls like `call obj%proc(x)`.
func (p *Parser90) parseCall() ast.Statement {
	start := p.current.start
	p.nextToken() // CALL
	callee := p.parseDesignator()
	if callee == nil {
		return nil
	}
	cs := &ast.CallStmt{Func: callee}
	if fc, ok := callee.(*ast.FunctionCall); ok {
		cs.Func = fc.Func
		cs.Args = fc.Args
	}
	cs.Position = ast.Pos(start, p.prevEnd)
	return cs
}

func (p *Parser90) parseCycleExit() ast.Statement {
	start := p.current.start
	isCycle := p.currentTokenIs(token.CYCLE)
	p.nextToken()
	var name string
	if p.isIdentLike() {
		name = string(p.current.lit)
		p.nextToken()
	}
	if isCycle {
		cs := &ast.CycleStmt{ConstructName: name}
		cs.Position = ast.Pos(start, p.prevEnd)
		return cs
	}
	es := &ast.ExitStmt{ConstructName: name}
	es.Position = ast.Pos(start, p.prevEnd)
	return es
}

// parseGoto parses GOTO label and GO TO label.
func (p *Parser90) parseGoto() ast.Statement {
	start := p.current.start
	if p.consumeIf(token.Identifier) {
		p.nextToken() // TO
	} else {
		p.nextToken() // GOTO
	}
	if !p.currentTokenIs(token.IntLit) {
		p.addError("computed and assigned GO TO statements are not supported")
		return nil
	}
	gs := &ast.GotoStmt{Target: normalizeLabel(p.current.lit)}
	p.nextToken()
	gs.Position = ast.Pos(start, p.prevEnd)
	return gs
}

func (p *Parser90) parseContinue() ast.Statement {
	cs := &ast.ContinueStmt{}
	cs.Position = ast.Pos(p.current.start, p.current.end)
	p.nextToken()
	return cs
}

func (p *Parser90) parseReturn() ast.Statement {
	start := p.current.start
	p.nextToken() // RETURN
	if !p.atEndOfStatement() {
		// Alternate return.
		if p.parseExpression(precLowest) == nil {
			return nil
		}
	}
	rs := &ast.ReturnStmt{}
	rs.Position = ast.Pos(start, p.prevEnd)
	return rs
}

// parseStop parses STOP [code] and ERROR STOP [code].
func (p *Parser90) parseStop() ast.Statement {
	start := p.current.start
	ss := &ast.StopStmt{}
	if p.consumeIf(token.Identifier) {
		ss.Error = true
	}
	p.nextToken() // STOP
	if !p.atEndOfStatement() && !p.currentTokenIs(token.Comma) {
		ss.Code = p.parseExpression(precLowest)
		if ss.Code == nil {
			return nil
		}
	}
	if p.consumeIf(token.Comma) {
		p.skipToEndOfStatement() // QUIET=
	}
	ss.Position = ast.Pos(start, p.prevEnd)
	return ss
}

// parseAllocate parses ALLOCATE([type-spec ::] objects [, specs]).
func (p *Parser90) parseAllocate() ast.Statement {
	start := p.current.start
	p.nextToken() // ALLOCATE
	if !p.expect(token.LParen, "ALLOCATE") {
		return nil
	}
	as := &ast.AllocateStmt{}
	switch {
	case p.isTypeSpecStart():
		ts := p.parseTypeSpec()
		as.Type = &ts
		if !p.expect(token.DoubleColon, "ALLOCATE type-spec") {
			return nil
		}
	case p.isIdentLike() && p.peekTokenIs(token.DoubleColon):
		as.Type = &ast.TypeSpec{
			Position: ast.Pos(p.current.start, p.current.end),
			Keyword:  token.TYPE,
			Derived:  string(p.current.lit),
		}
		p.nextToken()
		p.nextToken()
	}
	as.Objects, as.Specs = splitSpecifiers(p.parseSpecifiers(token.RParen))
	as.Position = ast.Pos(start, p.prevEnd)
	return as
}

func (p *Parser90) parseDeallocate() ast.Statement {
	start := p.current.start
	p.nextToken() // DEALLOCATE
	if !p.expect(token.LParen, "DEALLOCATE") {
		return nil
	}
	ds := &ast.DeallocateStmt{}
	ds.Objects, ds.Specs = splitSpecifiers(p.parseSpecifiers(token.RParen))
	ds.Position = ast.Pos(start, p.prevEnd)
	return ds
}

// splitSpecifiers separates positional items from keyword specifiers.
func splitSpecifiers(specs []*ast.Specifier) (positional []ast.Expression, keyword []*ast.Specifier) {
	for _, s := range specs {
		if s.Keyword == "" {
			positional = append(positional, s.Value)
		} else {
			keyword = append(keyword, s)
		}
	}
	return positional, keyword
}

// parseRead parses READ (control-list) items and READ format [, items].
func (p *Parser90) parseRead() ast.Statement {
	start := p.current.start
	p.nextToken() // READ
	rs := &ast.ReadStmt{}
	if p.consumeIf(token.LParen) {
		rs.Specs = p.parseSpecifiers(token.RParen)
		rs.Items = p.parseItemList()
	} else {
		rs.Format = p.parseFormat()
		if rs.Format == nil {
			return nil
		}
		if p.consumeIf(token.Comma) {
			rs.Items = p.parseItemList()
		}
	}
	rs.Position = ast.Pos(start, p.prevEnd)
	return rs
}

func (p *Parser90) parseWrite() ast.Statement {
	start := p.current.start
	p.nextToken() // WRITE
	if !p.expect(token.LParen, "WRITE") {
		return nil
	}
	ws := &ast.WriteStmt{Specs: p.parseSpecifiers(token.RParen)}
	p.consumeIf(token.Comma)
	ws.Items = p.parseItemList()
	ws.Position = ast.Pos(start, p.prevEnd)
	return ws
}

func (p *Parser90) parsePrint() ast.Statement {
	start := p.current.start
	p.nextToken() // PRINT
	ps := &ast.PrintStmt{Format: p.parseFormat()}
	if ps.Format == nil {
		return nil
	}
	if p.consumeIf(token.Comma) {
		ps.Items = p.parseItemList()
	}
	ps.Position = ast.Pos(start, p.prevEnd)
	return ps
}

func (p *Parser90) parseOpen() ast.Statement {
	start := p.current.start
	p.nextToken() // OPEN
	if !p.expect(token.LParen, "OPEN") {
		return nil
	}
	os := &ast.OpenStmt{Specs: p.parseSpecifiers(token.RParen)}
	os.Position = ast.Pos(start, p.prevEnd)
	return os
}

func (p *Parser90) parseClose() ast.Statement {
	start := p.current.start
	p.nextToken() // CLOSE
	if !p.expect(token.LParen, "CLOSE") {
		return nil
	}
	cs := &ast.CloseStmt{Specs: p.parseSpecifiers(token.RParen)}
	cs.Position = ast.Pos(start, p.prevEnd)
	return cs
}

func (p *Parser90) parseInquire() ast.Statement {
	start := p.current.start
	p.nextToken() // INQUIRE
	if !p.expect(token.LParen, "INQUIRE") {
		return nil
	}
	is := &ast.InquireStmt{Specs: p.parseSpecifiers(token.RParen)}
	is.Items = p.parseItemList()
	is.Position = ast.Pos(start, p.prevEnd)
	return is
}

// parseFormat parses the format of `print fmt` and `read fmt`.
func (p *Parser90) parseFormat() ast.Expression {
	if p.currentTokenIs(token.Asterisk) {
		star := &ast.Star{Position: ast.Pos(p.current.start, p.current.end)}
		p.nextToken()
		return star
	}
	return p.parseExpression(precLowest)
}

// parseItemList parses a comma separated input/output item list up to the
// end of the statement.
func (p *Parser90) parseItemList() []ast.Expression {
	var items []ast.Expression
	for !p.atEndOfStatement() {
		item := p.parseExpression(precLowest)
		if item == nil {
			break
		}
		items = append(items, item)
		if !p.consumeIf(token.Comma) {
			break
		}
	}
	return items
}

// parseSpecifiers parses a `[KEYWORD=]value` list and the closing token.
// The opening token must already be consumed.
func (p *Parser90) parseSpecifiers(close token.Token) []*ast.Specifier {
	var specs []*ast.Specifier
	if p.consumeIf(close) {
		return specs
	}
	for {
		start := p.current.start
		spec := &ast.Specifier{}
		if p.isIdentLike() && p.peekTokenIs(token.Equals) {
			spec.Keyword = strings.ToUpper(string(p.current.lit))
			p.nextToken()
			p.nextToken()
		}
		if p.currentTokenIs(token.Asterisk) && (p.peekTokenIs(token.Comma) || p.peekTokenIs(close)) {
			spec.Value = &ast.Star{Position: ast.Pos(p.current.start, p.current.end)}
			p.nextToken()
		} else {
			spec.Value = p.parseExpression(precLowest)
		}
		if spec.Value == nil {
			p.skipGroupRest(close)
			return specs
		}
		spec.Position = ast.Pos(start, p.prevEnd)
		specs = append(specs, spec)
		if !p.consumeIf(token.Comma) {
			break
		}
	}
	p.expect(close, "specifier list")
	return specs
}

// skipGroupRest skips to past close within the current statement.
func (p *Parser90) skipGroupRest(close token.Token) {
	for !p.atEndOfStatement() && !p.IsDone() {
		if p.consumeIf(close) {
			return
		}
		p.nextToken()
	}
}

// parseImageControl parses SYNC ALL, SYNC IMAGES, SYNC MEMORY, SYNC TEAM,
// EVENT POST, EVENT WAIT, FORM TEAM, LOCK and UNLOCK statements.
func (p *Parser90) parseImageControl() ast.Statement {
	start := p.current.start
	ic := &ast.ImageControlStmt{}
	first := p.current.tok
	second := strings.ToUpper(string(p.peek.lit))
	switch {
	case first == token.SYNC && second == "ALL":
		ic.Kind = ast.SyncAll
	case first == token.SYNC && second == "IMAGES":
		ic.Kind = ast.SyncImages
	case first == token.SYNC && second == "MEMORY":
		ic.Kind = ast.SyncMemory
	case first == token.SYNC && second == "TEAM":
		ic.Kind = ast.SyncTeam
	case first == token.EVENT && second == "POST":
		ic.Kind = ast.EventPost
	case first == token.EVENT && second == "WAIT":
		ic.Kind = ast.EventWait
	case first == token.Identifier && second == "TEAM":
		ic.Kind = ast.FormTeam
	case first == token.LOCK:
		ic.Kind = ast.Lock
	case first == token.UNLOCK:
		ic.Kind = ast.Unlock
	default:
		p.addError("unknown image control statement " + first.String() + " " + second)
		return nil
	}
	p.nextToken()
	if first != token.LOCK && first != token.UNLOCK {
		p.nextToken()
	}
	if p.consumeIf(token.LParen) {
		ic.Args, ic.Specs = splitSpecifiers(p.parseSpecifiers(token.RParen))
	}
	ic.Position = ast.Pos(start, p.prevEnd)
	return ic
}
