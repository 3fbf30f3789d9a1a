package fortran

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/soypat/fortcheck/token"
)

// Lexer90 is a lexer for free-form Fortran source.
// Token start positions are byte offsets from the start of the input.
type Lexer90 struct {
	input bufio.Reader
	ch    rune // current character (utf8)
	peek  rune // next character (utf8)
	err   error
	idbuf []byte // accumulation buffer.

	// Higher level statistics fields:

	source    string // filename or source name.
	line      int    // file line number (position of current char)
	col       int    // column number in line (position of current char)
	pos       int    // byte offset of current char.
	parens    int    // '(',')' counter to pick up on unbalanced parentheses early.
	tokenLine int    // line number where the last token started
	tokenCol  int    // column number where the last token started
}

func (l *Lexer90) IsDone() bool {
	return l.err != nil && l.ch == 0
}

func (l *Lexer90) isUnitialized() bool {
	return l.source == ""
}

// Reset discards all state and buffered data and begins a new lexing
// procedure on the input r. It reads two runes to fill the lookahead.
func (l *Lexer90) Reset(source string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader")
	} else if source == "" {
		return errors.New("no source name")
	}
	*l = Lexer90{
		input:  l.input,
		line:   1,
		col:    1,
		idbuf:  l.idbuf,
		source: source,
	}
	l.input.Reset(r)
	if l.idbuf == nil {
		l.idbuf = make([]byte, 0, 1024)
	}
	// Fill up peek and current character.
	l.readCharLL()
	l.readCharLL()
	return l.Err()
}

// Source returns the name the lexer was reset/initialized with. Usually a filename.
func (l *Lexer90) Source() string {
	return l.source
}

// Err returns the lexer error.
func (l *Lexer90) Err() error {
	if l.err == io.EOF {
		return nil
	}
	return l.err
}

// LineCol returns the current line number and column number (utf8 relative).
func (l *Lexer90) LineCol() (line, col int) {
	return l.line, l.col
}

// TokenLineCol returns the line/col where the last returned token started.
func (l *Lexer90) TokenLineCol() (line, col int) {
	return l.tokenLine, l.tokenCol
}

// Pos returns the byte offset of the current character. Right after
// [Lexer90.NextToken] it is the end offset of the returned token.
func (l *Lexer90) Pos() int { return l.pos }

// Parens returns the parentheses depth at the current position.
func (l *Lexer90) Parens() int { return l.parens }

// NextToken parses the upcoming token and returns the literal representation
// of the token for identifiers, strings and numbers.
// The returned byte slice is reused between calls to NextToken.
func (l *Lexer90) NextToken() (tok token.Token, startPos int, literal []byte) {
	if l.isUnitialized() {
		l.err = errors.New("lexer unitilialized")
		return token.Illegal, 0, nil
	}
	l.skipWhitespace()
	startPos = l.pos
	l.tokenLine, l.tokenCol = l.line, l.col
	// With lookahead buffer, l.err might be EOF while l.ch still has a valid character.
	// Only return EOF when current character is exhausted.
	if l.ch == 0 {
		return token.EOF, startPos, nil
	} else if l.err != nil && l.err != io.EOF {
		return token.Illegal, startPos, nil
	}
	ch := l.ch
	// '!' starts a comment at any column.
	if ch == '!' {
		l.readCharLL() // skip the '!' without continuation handling
		data := l.readCommentContent()
		return token.LineComment, startPos, data
	}
	switch ch {
	case '\n':
		tok = token.NewLine
		l.readChar()
	case '=':
		if l.peekChar() == '>' {
			tok = token.PointerAssign
			l.readChar()
			l.readChar()
		} else if l.peekChar() == '=' {
			tok = token.EqEq
			l.readChar()
			l.readChar()
		} else {
			tok = token.Equals
			l.readChar()
		}
	case '+':
		tok = token.Plus
		l.readChar()
	case '-':
		tok = token.Minus
		l.readChar()
	case '*':
		if l.peekChar() == '*' {
			tok = token.DoubleStar
			l.readChar()
			l.readChar()
		} else {
			tok = token.Asterisk
			l.readChar()
		}
	case '/':
		switch l.peekChar() {
		case '=':
			tok = token.NotEquals
			l.readChar()
			l.readChar()
		case '/':
			tok = token.StringConcat
			l.readChar()
			l.readChar()
		default:
			tok = token.Slash
			l.readChar()
		}
	case '<':
		if l.peekChar() == '=' {
			tok = token.LessEq
			l.readChar()
			l.readChar()
		} else {
			tok = token.Less
			l.readChar()
		}
	case '>':
		if l.peekChar() == '=' {
			tok = token.GreaterEq
			l.readChar()
			l.readChar()
		} else {
			tok = token.Greater
			l.readChar()
		}
	case '(':
		tok = token.LParen
		l.parens++
		l.readChar()
	case ')':
		tok = token.RParen
		l.parens--
		l.readChar()
	case ',':
		tok = token.Comma
		l.readChar()
	case ':':
		if l.peekChar() == ':' {
			tok = token.DoubleColon
			l.readChar()
			l.readChar()
		} else {
			tok = token.Colon
			l.readChar()
		}
	case ';':
		tok = token.Semicolon
		l.readChar()
	case '[':
		tok = token.LBracket
		l.readChar()
	case ']':
		tok = token.RBracket
		l.readChar()
	case '%':
		tok = token.Percent
		l.readChar()
	case '&':
		tok = token.Ampersand
		l.readChar()
	case '\'', '"':
		literal = l.readString(ch)
		tok = token.StringLit
	case '.':
		// Could be a decimal number, a logical operator, or logical constant
		next := l.peekChar()
		if isDigit(next) {
			literal, _ = l.readNumber()
			tok = token.FloatLit
		} else if isIdentifierChar(next) {
			// Read the identifier between dots (e.g., .TRUE., .AND., .EQ.)
			literal = l.readDotOperator()
			tok = token.LookupDotOperator(literal)
		} else {
			tok = token.Illegal
			l.readChar()
		}
	default:
		if isIdentifierChar(ch) {
			literal = l.readIdentifier()
			tok = token.LookupKeyword(literal)

			// BOZ literals: Z'...', O'...', B'...'
			if tok == token.Identifier && len(literal) == 1 && (l.ch == '\'' || l.ch == '"') {
				switch literal[0] {
				case 'Z', 'z', 'O', 'o', 'B', 'b':
					literal = l.readBOZLiteral(rune(literal[0]), l.ch)
					return token.IntLit, startPos, literal
				}
			}
		} else if isDigit(ch) {
			var isFloat bool
			literal, isFloat = l.readNumber()
			if l.ch == '_' {
				// Kind specifiers preserve the float/int distinction: 1_INT32, 1.5_8.
				literal = l.readKindSpecifier(literal)
			}
			if isFloat {
				tok = token.FloatLit
			} else {
				tok = token.IntLit
			}
		} else {
			tok = token.Illegal
			l.readChar()
		}
	}
	return tok, startPos, literal
}

// readCommentContent reads comment text until newline without processing line continuations.
// '&' inside comments is regular text, not a continuation character.
func (l *Lexer90) readCommentContent() []byte {
	start := l.bufstart()
	for l.ch != '\n' && l.ch != 0 {
		l.idbuf = utf8.AppendRune(l.idbuf, l.ch)
		l.readCharLL()
	}
	return l.idbuf[start:]
}

func (l *Lexer90) readIdentifier() []byte {
	start := l.bufstart()
	for isIdentifierChar(l.ch) || isDigit(l.ch) {
		l.idbuf = utf8.AppendRune(l.idbuf, l.ch)
		l.readChar()
	}
	return l.idbuf[start:]
}

// readBOZLiteral reads a BOZ (Binary/Octal/heXadecimal) literal: Z'...', O'...', B'...'
// Returns the literal as a decimal integer string.
func (l *Lexer90) readBOZLiteral(prefix rune, quote rune) []byte {
	start := l.bufstart()
	l.readChar() // consume opening quote

	var digits []byte
	for l.ch != 0 && l.ch != quote {
		if l.ch == '\n' {
			l.err = errors.New("unterminated BOZ literal")
			return l.idbuf[start:]
		}
		if isDigit(l.ch) || (l.ch >= 'A' && l.ch <= 'F') || (l.ch >= 'a' && l.ch <= 'f') {
			digits = append(digits, byte(l.ch))
		}
		l.readChar()
	}
	if l.ch != quote {
		l.err = errors.New("unterminated BOZ literal")
		return l.idbuf[start:]
	}
	l.readChar() // consume closing quote

	var base int
	switch prefix {
	case 'Z', 'z':
		base = 16
	case 'O', 'o':
		base = 8
	case 'B', 'b':
		base = 2
	}
	value, err := strconv.ParseUint(string(digits), base, 64)
	if err != nil {
		l.err = fmt.Errorf("invalid BOZ literal: %w", err)
		return l.idbuf[start:]
	}
	l.idbuf = strconv.AppendUint(l.idbuf, value, 10)
	return l.idbuf[start:]
}

func (l *Lexer90) readString(quote rune) []byte {
	start := l.bufstart()
	l.readChar() // consume opening quote
	for l.ch != 0 {
		if l.ch == '\n' {
			// Newline without continuation.
			l.err = errors.New("unterminated string literal")
			return l.idbuf[start:]
		}
		if l.ch == quote {
			if l.peek == quote {
				// Doubled quote is an escaped quote.
				l.idbuf = utf8.AppendRune(l.idbuf, quote)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // consume closing quote
			break
		}
		l.idbuf = utf8.AppendRune(l.idbuf, l.ch)
		l.readChar()
	}
	return l.idbuf[start:]
}

func (l *Lexer90) readDotOperator() []byte {
	start := l.bufstart()
	l.readChar() // consume opening '.'
	for isIdentifierChar(l.ch) {
		l.idbuf = utf8.AppendRune(l.idbuf, l.ch)
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar() // consume closing '.'
	}
	return l.idbuf[start:]
}

func (l *Lexer90) readNumber() ([]byte, bool) {
	start := l.bufstart()
	seenDot := false
	for {
		ch := l.ch
		if isDigit(ch) {
			l.idbuf = utf8.AppendRune(l.idbuf, ch)
			l.readChar()
			continue
		}
		if !seenDot && ch == '.' {
			// The '.' belongs to the number unless it opens a dot operator:
			// 1.OR., 1.EQ.1 are operators while 1.E5 and 1. + 2 are numbers.
			next := l.peekChar()
			if isIdentifierChar(next) {
				if !isExponentLetter(next) {
					break
				}
				// Scientific notation requires digit, +, or - after E/D/Q.
				if peek2 := l.peek2Char(); !isDigit(peek2) && peek2 != '+' && peek2 != '-' {
					break
				}
			}
			seenDot = true
			l.idbuf = utf8.AppendRune(l.idbuf, ch)
			l.readChar()
			continue
		}
		if isExponentLetter(ch) && (isDigit(l.peek) || l.peek == '+' || l.peek == '-') {
			seenDot = true // Numbers with exponents are always floats
			l.idbuf = utf8.AppendRune(l.idbuf, ch)
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.idbuf = utf8.AppendRune(l.idbuf, l.ch)
				l.readChar()
			}
			for isDigit(l.ch) {
				l.idbuf = utf8.AppendRune(l.idbuf, l.ch)
				l.readChar()
			}
		}
		break
	}
	return l.idbuf[start:], seenDot
}

// readKindSpecifier reads a kind specifier after a number (e.g., _INT32, _8, _REAL64).
// The underscore has already been detected, this function consumes it and the kind value.
func (l *Lexer90) readKindSpecifier(prefix []byte) []byte {
	// prefix aliases idbuf which is not cleared here.
	l.idbuf = l.idbuf[:len(prefix)]
	l.idbuf = utf8.AppendRune(l.idbuf, l.ch)
	l.readChar()
	for isDigit(l.ch) || isIdentifierChar(l.ch) {
		l.idbuf = utf8.AppendRune(l.idbuf, l.ch)
		l.readChar()
	}
	return l.idbuf
}

func (l *Lexer90) bufstart() int {
	l.idbuf = l.idbuf[:0]
	return 0
}

func (l *Lexer90) skipWhitespace() {
	for isWhitespace(l.ch) {
		l.readChar()
	}
}

// readChar reads the next character with line continuation processing:
// an '&' followed only by blanks or a comment continues the statement on the
// next line. The continuation, along with any surrounding whitespace and
// optional '&' on the next line, is consumed transparently.
//
// Comments must use readCharLL since '&' is literal text there.
func (l *Lexer90) readChar() {
	l.readCharLL()
	for l.ch == '&' && l.isContinuationChar() {
		l.readCharLL() // consume the '&'
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
			l.readCharLL()
		}
		if l.ch == '!' {
			l.skipLineLL()
		}
		if l.ch == '\n' {
			l.readCharLL()
		}
		// Comment lines may appear between continuation lines.
		for {
			for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
				l.readCharLL()
			}
			if l.ch != '!' {
				break
			}
			l.skipLineLL()
			if l.ch == '\n' {
				l.readCharLL()
			}
		}
		if l.ch == '&' && l.peek != '\n' {
			l.readCharLL()
		}
	}
}

// skipLineLL skips to the next newline without consuming it.
func (l *Lexer90) skipLineLL() {
	for l.ch != '\n' && l.ch != 0 {
		l.readCharLL()
	}
}

// isContinuationChar checks if the current '&' is a continuation character.
// It returns true if '&' is followed by only whitespace and/or a comment before newline.
// This does NOT consume any characters.
func (l *Lexer90) isContinuationChar() bool {
	if l.ch != '&' {
		return false
	}
	for i := 1; ; i++ {
		ch := l.peekAhead(i)
		switch ch {
		case 0:
			return false
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		case '!':
			for {
				i++
				ch = l.peekAhead(i)
				if ch == '\n' || ch == 0 {
					return ch == '\n'
				}
			}
		}
		return false
	}
}

func (l *Lexer90) peekChar() rune {
	return l.peek
}

// peek2Char looks two characters ahead of l.ch without consuming.
// Returns 0 if not available. Only ASCII is decoded.
func (l *Lexer90) peek2Char() rune {
	return l.peekAhead(2)
}

// peekAhead looks n characters ahead without consuming. Returns 0 if not available.
// n=1 looks at l.peek, n=2 looks at the character after l.peek, etc.
func (l *Lexer90) peekAhead(n int) rune {
	if n <= 0 {
		return l.ch
	}
	if n == 1 {
		return l.peek
	}
	b, err := l.input.Peek(n - 1)
	if err != nil || len(b) < n-1 {
		return 0
	}
	return rune(b[n-2])
}

// readCharLL reads the next character at the lowest level without any processing.
// The byte offset and column advance past the character being discarded.
func (l *Lexer90) readCharLL() {
	if l.ch != 0 {
		l.pos += utf8.RuneLen(l.ch)
		l.col++
	}
	if l.ch == '\n' {
		l.line++
		l.col = 1
	}
	l.ch = l.peek
	ch, _, err := l.input.ReadRune()
	if err != nil {
		l.peek = 0
		if l.err == nil {
			l.err = err
		}
		return
	}
	l.peek = ch
}

// PositionString returns the "source:line:column" representation of the lexer's current position.
func (l *Lexer90) PositionString() string {
	sp := l.sourcePos()
	return sp.String()
}

func (l *Lexer90) sourcePos() sourcePos {
	return sourcePos{
		Source: l.source,
		Line:   l.line,
		Col:    l.col,
		Pos:    l.pos,
	}
}

func isIdentifierChar(ch rune) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func isExponentLetter(ch rune) bool {
	switch ch {
	case 'E', 'e', 'D', 'd', 'Q', 'q':
		return true
	}
	return false
}

func isWhitespace(ch rune) bool {
	return ch == ' ' || ch == '\t' || ch == '\r'
}
