package sema

import (
	"fmt"
	"iter"
	"strings"

	"github.com/soypat/fortcheck/ast"
)

// ConstructStack holds the constructs enclosing the current statement,
// innermost last.
type ConstructStack struct {
	nodes []ast.Construct
}

func (s *ConstructStack) Push(c ast.Construct) {
	s.nodes = append(s.nodes, c)
}

// Pop removes the innermost construct. It panics if the stack is empty.
func (s *ConstructStack) Pop() ast.Construct {
	if len(s.nodes) == 0 {
		panic("sema: pop of empty construct stack")
	}
	last := len(s.nodes) - 1
	c := s.nodes[last]
	s.nodes[last] = nil
	s.nodes = s.nodes[:last]
	return c
}

func (s *ConstructStack) Len() int { return len(s.nodes) }

// Innermost returns the innermost construct or nil if the stack is empty.
func (s *ConstructStack) Innermost() ast.Construct {
	if len(s.nodes) == 0 {
		return nil
	}
	return s.nodes[len(s.nodes)-1]
}

// Outward iterates from the innermost construct to the outermost.
func (s *ConstructStack) Outward() iter.Seq[ast.Construct] {
	return func(yield func(ast.Construct) bool) {
		for i := len(s.nodes) - 1; i >= 0; i-- {
			if !yield(s.nodes[i]) {
				return
			}
		}
	}
}

func (s *ConstructStack) reset() {
	clear(s.nodes)
	s.nodes = s.nodes[:0]
}

// jumpKind is the kind of a statement that transfers control out of a construct.
type jumpKind uint8

const (
	jumpCycle jumpKind = iota
	jumpExit
)

func (k jumpKind) String() string {
	if k == jumpCycle {
		return "CYCLE"
	}
	return "EXIT"
}

// matchesConstruct reports whether a CYCLE or EXIT with optional construct
// name targets c. Without a name the nearest DO is the target. With a name
// EXIT may leave any construct but CYCLE only a DO.
func matchesConstruct(kind jumpKind, name string, c ast.Construct) bool {
	_, isDo := c.(*ast.DoLoop)
	if name == "" {
		return isDo
	}
	if !strings.EqualFold(c.ConstructName(), name) {
		return false
	}
	return kind == jumpExit || isDo
}

// leaveRestriction returns the name of a construct that no CYCLE or EXIT
// may leave, or the empty string if leaving c is allowed.
func leaveRestriction(c ast.Construct) string {
	switch c := c.(type) {
	case *ast.DoLoop:
		if c.IsConcurrent() {
			return "DO CONCURRENT"
		}
	case *ast.CriticalConstruct:
		return "CRITICAL"
	case *ast.ChangeTeamConstruct:
		return "CHANGE TEAM"
	case *ast.IfConstruct, *ast.BlockConstruct, *ast.AssociateConstruct:
	default:
		panic(fmt.Sprintf("sema: unexpected construct %T", c))
	}
	return ""
}

// Jump checks a CYCLE or EXIT statement against the enclosing constructs.
// Every restricted construct left on the way to the target is reported and
// an EXIT may never target a DO CONCURRENT.
func (c *Checker) Jump(stmt ast.Statement) {
	var kind jumpKind
	var name string
	switch s := stmt.(type) {
	case *ast.CycleStmt:
		kind, name = jumpCycle, s.ConstructName
	case *ast.ExitStmt:
		kind, name = jumpExit, s.ConstructName
	default:
		panic(fmt.Sprintf("sema: Jump called with %T", stmt))
	}
	pos := stmt.SourcePos()
	for construct := range c.stack.Outward() {
		if matchesConstruct(kind, name, construct) {
			if kind == jumpExit {
				if do, ok := construct.(*ast.DoLoop); ok && do.IsConcurrent() {
					c.sayBadLeave(pos, kind, "DO CONCURRENT", construct)
				}
			}
			return
		}
		if restricted := leaveRestriction(construct); restricted != "" {
			c.sayBadLeave(pos, kind, restricted, construct)
		}
	}
	if kind == jumpExit {
		c.msgs.Errorf(pos, "No matching construct for EXIT statement")
	} else {
		c.msgs.Errorf(pos, "No matching DO construct for CYCLE statement")
	}
}

func (c *Checker) sayBadLeave(pos ast.Position, kind jumpKind, restricted string, construct ast.Construct) {
	c.msgs.Errorf(pos, "%s must not leave a %s statement", kind, restricted).
		Attach(construct.HeaderPos(), "The construct that was left")
}
