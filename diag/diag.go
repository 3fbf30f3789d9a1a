// Package diag holds the diagnostics produced while checking Fortran source
// and renders them with an excerpt of the offending line.
package diag

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/soypat/fortcheck/ast"
)

// Severity of a [Message].
type Severity uint8

const (
	Error Severity = iota
	Warning
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	}
	return "<invalid severity>"
}

// Attachment is a secondary note of a message pointing at related source.
type Attachment struct {
	Pos  ast.Position
	Text string
}

// Message is a single diagnostic.
type Message struct {
	Pos         ast.Position
	Text        string
	Severity    Severity
	Attachments []Attachment
}

// Attach appends a note to m and returns m so calls may be chained.
func (m *Message) Attach(pos ast.Position, format string, args ...any) *Message {
	m.Attachments = append(m.Attachments, Attachment{Pos: pos, Text: fmt.Sprintf(format, args...)})
	return m
}

func (m *Message) String() string {
	return m.Severity.String() + ": " + m.Text
}

// Messages is an append-only diagnostic sink. Messages are kept in the order
// they were reported. The zero value is ready to use.
type Messages struct {
	list []*Message
}

// Say reports a message with the given severity.
func (ms *Messages) Say(sev Severity, pos ast.Position, format string, args ...any) *Message {
	m := &Message{Pos: pos, Text: fmt.Sprintf(format, args...), Severity: sev}
	ms.list = append(ms.list, m)
	return m
}

func (ms *Messages) Errorf(pos ast.Position, format string, args ...any) *Message {
	return ms.Say(Error, pos, format, args...)
}

func (ms *Messages) Warnf(pos ast.Position, format string, args ...any) *Message {
	return ms.Say(Warning, pos, format, args...)
}

func (ms *Messages) Len() int { return len(ms.list) }

// All returns the messages in report order. The returned slice must not be modified.
func (ms *Messages) All() []*Message { return ms.list }

// Count returns the number of messages with severity sev.
func (ms *Messages) Count(sev Severity) (n int) {
	for _, m := range ms.list {
		if m.Severity == sev {
			n++
		}
	}
	return n
}

func (ms *Messages) HasErrors() bool { return ms.Count(Error) > 0 }

// Merge appends the messages of other to ms.
func (ms *Messages) Merge(other *Messages) {
	ms.list = append(ms.list, other.list...)
}

// File is a source file with a table of line start offsets used to turn
// byte offsets into line and column numbers.
type File struct {
	name  string
	src   []byte
	lines []int // offset of first byte of each line
}

// NewFile indexes the lines of src.
func NewFile(name string, src []byte) *File {
	f := &File{name: name, src: src, lines: []int{0}}
	for i, c := range src {
		if c == '\n' {
			f.lines = append(f.lines, i+1)
		}
	}
	return f
}

func (f *File) Name() string { return f.name }

// LineCol returns the 1-based line and column of byte offset off.
func (f *File) LineCol(off int) (line, col int) {
	off = min(max(off, 0), len(f.src))
	i, found := slices.BinarySearch(f.lines, off)
	if !found {
		i--
	}
	return i + 1, off - f.lines[i] + 1
}

// Line returns the text of 1-based line n without its line terminator.
func (f *File) Line(n int) []byte {
	if n < 1 || n > len(f.lines) {
		return nil
	}
	start := f.lines[n-1]
	end := len(f.src)
	if n < len(f.lines) {
		end = f.lines[n] - 1
	}
	return bytes.TrimSuffix(f.src[start:end], []byte{'\r'})
}

// Position renders off as file:line:col.
func (f *File) Position(off int) string {
	line, col := f.LineCol(off)
	return f.name + ":" + strconv.Itoa(line) + ":" + strconv.Itoa(col)
}

const (
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
	ansiReset  = "\033[0m"
)

// Fprint writes every message of msgs followed by its attachments. Each
// entry has a `file:line:col: severity: text` header and the source line
// with the span underlined by carets. Escape sequences are emitted only
// when color is true.
func Fprint(w io.Writer, f *File, msgs *Messages, color bool) error {
	var buf []byte
	for _, m := range msgs.All() {
		label, paint := m.Severity.String(), ansiRed
		if m.Severity == Warning {
			paint = ansiYellow
		}
		buf = appendEntry(buf, f, m.Pos, label, m.Text, paint, color)
		for _, a := range m.Attachments {
			buf = appendEntry(buf, f, a.Pos, "note", a.Text, ansiCyan, color)
		}
	}
	_, err := w.Write(buf)
	return err
}

func appendEntry(dst []byte, f *File, pos ast.Position, label, text, paint string, color bool) []byte {
	dst = append(dst, f.Position(pos.Start())...)
	dst = append(dst, ": "...)
	if color {
		dst = append(dst, ansiBold+paint...)
	}
	dst = append(dst, label...)
	if color {
		dst = append(dst, ansiReset...)
	}
	dst = append(dst, ": "...)
	dst = append(dst, text...)
	dst = append(dst, '\n')
	return appendSelection(dst, f, pos, paint, color)
}

// appendSelection writes the first line of pos with a caret underline.
// Tabs are expanded to four spaces to keep the carets aligned.
func appendSelection(dst []byte, f *File, pos ast.Position, paint string, color bool) []byte {
	line, col := f.LineCol(pos.Start())
	text := f.Line(line)
	if text == nil {
		return dst
	}
	width := len(strconv.Itoa(line))
	gutter := strings.Repeat(" ", width+2) + "| "
	dst = fmt.Appendf(dst, "%*d | ", width+1, line)
	dst = append(dst, bytes.ReplaceAll(text, []byte{'\t'}, []byte("    "))...)
	dst = append(dst, '\n')

	lead := text[:min(col-1, len(text))]
	pad := len(lead) + 3*bytes.Count(lead, []byte{'\t'})
	n := max(min(pos.End(), pos.Start()+len(text)-len(lead))-pos.Start(), 1)
	dst = append(dst, gutter...)
	dst = append(dst, strings.Repeat(" ", pad)...)
	if color {
		dst = append(dst, paint...)
	}
	dst = append(dst, strings.Repeat("^", n)...)
	if color {
		dst = append(dst, ansiReset...)
	}
	return append(dst, '\n')
}
