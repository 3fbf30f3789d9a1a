package fortran

import (
	"strconv"
	"strings"
	"testing"

	"github.com/soypat/fortcheck/token"
)

type testtoktuple struct {
	tok     token.Token
	literal string
}

func TestLexer90_tokens(t *testing.T) {
	cases := []struct {
		src    string
		expect []testtoktuple
	}{
		0: {
			src: "do concurrent (integer :: i = 1:n, a(i) > 0) local(x) default(none)",
			expect: []testtoktuple{
				{tok: token.DO, literal: "do"},
				{tok: token.CONCURRENT, literal: "concurrent"},
				{tok: token.LParen, literal: ""},
				{tok: token.INTEGER, literal: "integer"},
				{tok: token.DoubleColon, literal: ""},
				{tok: token.Identifier, literal: "i"},
				{tok: token.Equals, literal: ""},
				{tok: token.IntLit, literal: "1"},
				{tok: token.Colon, literal: ""},
				{tok: token.Identifier, literal: "n"},
				{tok: token.Comma, literal: ""},
				{tok: token.Identifier, literal: "a"},
				{tok: token.LParen, literal: ""},
				{tok: token.Identifier, literal: "i"},
				{tok: token.RParen, literal: ""},
				{tok: token.Greater, literal: ""},
				{tok: token.IntLit, literal: "0"},
				{tok: token.RParen, literal: ""},
				{tok: token.Identifier, literal: "local"},
				{tok: token.LParen, literal: ""},
				{tok: token.Identifier, literal: "x"},
				{tok: token.RParen, literal: ""},
				{tok: token.Identifier, literal: "default"},
				{tok: token.LParen, literal: ""},
				{tok: token.Identifier, literal: "none"},
				{tok: token.RParen, literal: ""},
			},
		},
		1: {
			src: "DO 10, I = 1, N\n10 CONTINUE",
			expect: []testtoktuple{
				{tok: token.DO, literal: "DO"},
				{tok: token.IntLit, literal: "10"},
				{tok: token.Comma, literal: ""},
				{tok: token.Identifier, literal: "I"},
				{tok: token.Equals, literal: ""},
				{tok: token.IntLit, literal: "1"},
				{tok: token.Comma, literal: ""},
				{tok: token.Identifier, literal: "N"},
				{tok: token.NewLine, literal: ""},
				{tok: token.IntLit, literal: "10"},
				{tok: token.CONTINUE, literal: "CONTINUE"},
			},
		},
		2: {
			src: "x = 1.5d0 + 2_8*1.e-3_dp - z'ff'",
			expect: []testtoktuple{
				{tok: token.Identifier, literal: "x"},
				{tok: token.Equals, literal: ""},
				{tok: token.FloatLit, literal: "1.5d0"},
				{tok: token.Plus, literal: ""},
				{tok: token.IntLit, literal: "2_8"},
				{tok: token.Asterisk, literal: ""},
				{tok: token.FloatLit, literal: "1.e-3_dp"},
				{tok: token.Minus, literal: ""},
				{tok: token.IntLit, literal: "255"},
			},
		},
		3: {
			src: "if (k.eq.1.and..not.done) exit outer ! leave & stay",
			expect: []testtoktuple{
				{tok: token.IF, literal: "if"},
				{tok: token.LParen, literal: ""},
				{tok: token.Identifier, literal: "k"},
				{tok: token.EQ, literal: "eq"},
				{tok: token.IntLit, literal: "1"},
				{tok: token.AND, literal: "and"},
				{tok: token.NOT, literal: "not"},
				{tok: token.Identifier, literal: "done"},
				{tok: token.RParen, literal: ""},
				{tok: token.EXIT, literal: "exit"},
				{tok: token.Identifier, literal: "outer"},
				{tok: token.LineComment, literal: " leave & stay"},
			},
		},
		4: {
			src: "write(*, '(a)', advance='no') 'it''s', \"q\" // s",
			expect: []testtoktuple{
				{tok: token.WRITE, literal: "write"},
				{tok: token.LParen, literal: ""},
				{tok: token.Asterisk, literal: ""},
				{tok: token.Comma, literal: ""},
				{tok: token.StringLit, literal: "(a)"},
				{tok: token.Comma, literal: ""},
				{tok: token.Identifier, literal: "advance"},
				{tok: token.Equals, literal: ""},
				{tok: token.StringLit, literal: "no"},
				{tok: token.RParen, literal: ""},
				{tok: token.StringLit, literal: "it's"},
				{tok: token.Comma, literal: ""},
				{tok: token.StringLit, literal: "q"},
				{tok: token.StringConcat, literal: ""},
				{tok: token.Identifier, literal: "s"},
			},
		},
		5: {
			src: "a(i) = b(i) + &  ! continued\n    & c(i)",
			expect: []testtoktuple{
				{tok: token.Identifier, literal: "a"},
				{tok: token.LParen, literal: ""},
				{tok: token.Identifier, literal: "i"},
				{tok: token.RParen, literal: ""},
				{tok: token.Equals, literal: ""},
				{tok: token.Identifier, literal: "b"},
				{tok: token.LParen, literal: ""},
				{tok: token.Identifier, literal: "i"},
				{tok: token.RParen, literal: ""},
				{tok: token.Plus, literal: ""},
				{tok: token.Identifier, literal: "c"},
				{tok: token.LParen, literal: ""},
				{tok: token.Identifier, literal: "i"},
				{tok: token.RParen, literal: ""},
			},
		},
		6: {
			src: "p => t%next; c[2] = c(1)[*] /= 0",
			expect: []testtoktuple{
				{tok: token.Identifier, literal: "p"},
				{tok: token.PointerAssign, literal: ""},
				{tok: token.Identifier, literal: "t"},
				{tok: token.Percent, literal: ""},
				{tok: token.Identifier, literal: "next"},
				{tok: token.Semicolon, literal: ""},
				{tok: token.Identifier, literal: "c"},
				{tok: token.LBracket, literal: ""},
				{tok: token.IntLit, literal: "2"},
				{tok: token.RBracket, literal: ""},
				{tok: token.Equals, literal: ""},
				{tok: token.Identifier, literal: "c"},
				{tok: token.LParen, literal: ""},
				{tok: token.IntLit, literal: "1"},
				{tok: token.RParen, literal: ""},
				{tok: token.LBracket, literal: ""},
				{tok: token.Asterisk, literal: ""},
				{tok: token.RBracket, literal: ""},
				{tok: token.NotEquals, literal: ""},
				{tok: token.IntLit, literal: "0"},
			},
		},
		7: {
			src: "enddo; end do; endteam; end critical",
			expect: []testtoktuple{
				{tok: token.ENDDO, literal: "enddo"},
				{tok: token.Semicolon, literal: ""},
				{tok: token.END, literal: "end"},
				{tok: token.DO, literal: "do"},
				{tok: token.Semicolon, literal: ""},
				{tok: token.ENDTEAM, literal: "endteam"},
				{tok: token.Semicolon, literal: ""},
				{tok: token.END, literal: "end"},
				{tok: token.CRITICAL, literal: "critical"},
			},
		},
	}
	var l Lexer90
	for i, test := range cases {
		err := l.Reset("TestLexer"+strconv.Itoa(i), strings.NewReader(test.src))
		if err != nil {
			t.Error(err)
			continue
		}
		for i, expect := range test.expect {
			tok, _, literal := l.NextToken()
			if tok == token.EOF {
				t.Errorf("%s tok %d early EOF", l.Source(), i)
				break
			}
			if tok != expect.tok {
				t.Errorf("%s tok %d TokenMismatch want %s got %s", l.Source(), i, expect.tok.String(), tok.String())
			}
			if string(literal) != expect.literal {
				t.Errorf("%s tok %d LiteralMismatch want %q got %q", l.Source(), i, expect.literal, literal)
			}
		}
		if !l.IsDone() {
			tok, _, lit := l.NextToken()
			t.Errorf("%s expected lexer to be done, got %s (%s)", l.Source(), lit, tok.String())
		}
	}
}

// Token offsets must index the source exactly so diagnostics can point at names.
func TestLexer90_offsets(t *testing.T) {
	const src = "program p\n  do i = 1, n\n    x(i) = undeclared\n  end do\nend program"
	var l Lexer90
	if err := l.Reset("offsets.f90", strings.NewReader(src)); err != nil {
		t.Fatal(err)
	}
	for {
		tok, start, lit := l.NextToken()
		if tok == token.EOF {
			if start != len(src) {
				t.Errorf("EOF offset want %d got %d", len(src), start)
			}
			break
		}
		end := l.Pos()
		if tok == token.Identifier || tok.IsKeyword() {
			if got := src[start:end]; got != string(lit) {
				t.Errorf("%s at %d: source span %q does not match literal %q", tok, start, got, lit)
			}
		}
		if tok == token.Identifier && string(lit) == "undeclared" {
			if want := strings.Index(src, "undeclared"); start != want {
				t.Errorf("undeclared offset want %d got %d", want, start)
			}
			line, col := l.TokenLineCol()
			if line != 3 || col != 12 {
				t.Errorf("undeclared line:col want 3:12 got %d:%d", line, col)
			}
		}
	}
}

func TestLexer90_illegal(t *testing.T) {
	cases := []struct {
		src  string
		want token.Token
	}{
		{src: "x = 'unterminated\n", want: token.StringLit},
		{src: "x = b'102'", want: token.IntLit},
		{src: "x = ?", want: token.Illegal},
	}
	var l Lexer90
	for _, test := range cases {
		if err := l.Reset("illegal.f90", strings.NewReader(test.src)); err != nil {
			t.Fatal(err)
		}
		l.NextToken() // x
		l.NextToken() // =
		tok, _, _ := l.NextToken()
		if tok != test.want {
			t.Errorf("%q: want %s got %s", test.src, test.want, tok)
		}
		if test.want != token.Illegal && l.Err() == nil {
			t.Errorf("%q: expected lexer error", test.src)
		}
	}
}
