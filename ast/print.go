package ast

import (
	"fmt"
	"io"
	"reflect"
	"strings"
)

// A FieldFilter is used to filter fields when printing AST nodes.
// If it returns false, the field is excluded from the output.
type FieldFilter func(name string, value reflect.Value) bool

// NotNilFilter returns true for all fields that are not nil or zero-value.
// This is useful for excluding nil pointers, slices, maps, and false bools from the output.
func NotNilFilter(_ string, v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return !v.IsNil()
	case reflect.Bool:
		return v.Bool()
	case reflect.String:
		return v.Len() > 0
	}
	return true
}

// Fprint prints the AST node x to w in an indented tree format.
// If a non-nil FieldFilter f is provided, only fields for which f returns true are printed.
// Embedded base structs are flattened into their parent and positions
// print on a single line as `start:end`.
func Fprint(w io.Writer, x any, f FieldFilter) error {
	p := &printer{
		output: w,
		filter: f,
		ptrmap: make(map[any]int),
	}
	p.print(reflect.ValueOf(x))
	p.printf("\n")
	return p.err
}

type printer struct {
	output io.Writer
	filter FieldFilter
	ptrmap map[any]int
	indent int
	err    error
}

var positionType = reflect.TypeOf(Position{})

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.output, format, args...)
}

func (p *printer) print(v reflect.Value) {
	if !v.IsValid() {
		p.printf("nil")
		return
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			p.printf("nil")
			return
		}
		v = v.Elem()
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			p.printf("nil")
			return
		}
		ptr := v.Interface()
		if id, seen := p.ptrmap[ptr]; seen {
			p.printf("(obj @ %d)", id)
			return
		}
		p.ptrmap[ptr] = len(p.ptrmap)
		v = v.Elem()
	}

	t := v.Type()
	if t == positionType {
		pos := v.Interface().(Position)
		p.printf("%d:%d", pos.Start(), pos.End())
		return
	}

	switch v.Kind() {
	case reflect.Struct:
		p.printf("%s {", t.Name())
		p.indent++
		printed := p.printFields(v)
		p.indent--
		if printed {
			p.printf("\n")
			p.printIndent()
		}
		p.printf("}")

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			p.printf("nil")
			return
		}
		p.printf("%s (len=%d) [", t.Elem().String(), v.Len())
		if v.Len() > 0 {
			p.indent++
			for i := 0; i < v.Len(); i++ {
				p.printf("\n")
				p.printIndent()
				p.printf("%d: ", i)
				p.print(v.Index(i))
			}
			p.indent--
			p.printf("\n")
			p.printIndent()
		}
		p.printf("]")

	case reflect.String:
		s := strings.ReplaceAll(v.String(), "\n", "\\n")
		p.printf("%q", s)

	default:
		if s, ok := v.Interface().(fmt.Stringer); ok {
			p.printf("%s", s.String())
			return
		}
		p.printf("%v", v.Interface())
	}
}

// printFields prints exported fields of struct v and the fields of embedded
// base structs at the same level. It returns true if any field was printed.
func (p *printer) printFields(v reflect.Value) (printed bool) {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		fv := v.Field(i)
		if field.Anonymous && fv.Kind() == reflect.Struct && field.Type != positionType {
			printed = p.printFields(fv) || printed
			continue
		}
		if !field.IsExported() && field.Type != positionType {
			continue
		}
		if p.filter != nil && !p.filter(field.Name, fv) {
			continue
		}
		p.printf("\n")
		p.printIndent()
		p.printf("%s: ", field.Name)
		p.print(fv)
		printed = true
	}
	return printed
}

func (p *printer) printIndent() {
	for i := 0; i < p.indent; i++ {
		p.printf("  ")
	}
}

func typeName(n Node) string {
	return reflect.TypeOf(n).String()
}
