// Package sema checks the constraints on DO and DO CONCURRENT constructs of
// a resolved Fortran program: CYCLE and EXIT nesting, redefinition of DO
// variables, the DO CONCURRENT header and body restrictions, branches out
// of DO CONCURRENT, CRITICAL and CHANGE TEAM, and the types of counted DO
// controls.
//
// A [Checker] is driven by a depth-first traversal. [Checker.Enter] is
// called when a construct is entered and [Checker.Leave] after its body has
// been traversed. [Checker.Check] performs the traversal of a whole program.
package sema

import (
	"fmt"
	"sync"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/diag"
	"github.com/soypat/fortcheck/symbol"
)

// Checker holds the traversal state of the DO construct checks. A Checker
// is not safe for concurrent use; see [CheckParallel].
type Checker struct {
	table  *symbol.Table
	opts   Options
	msgs   *diag.Messages
	stack  ConstructStack
	active ActiveVars
}

// New returns a checker over the resolved names in table.
func New(table *symbol.Table, opts Options) *Checker {
	if table == nil {
		panic("sema: nil symbol table")
	}
	return &Checker{table: table, opts: opts, msgs: &diag.Messages{}}
}

// Messages returns the diagnostics reported since the last call to Check.
func (c *Checker) Messages() *diag.Messages { return c.msgs }

// Check checks every program unit of prog and returns the diagnostics in
// traversal order. Each call starts with an empty set of diagnostics.
func (c *Checker) Check(prog *ast.Program) *diag.Messages {
	c.msgs = &diag.Messages{}
	c.stack.reset()
	c.active.reset()
	for _, unit := range prog.Units {
		c.checkUnit(unit)
	}
	return c.msgs
}

func (c *Checker) checkUnit(unit ast.ProgramUnit) {
	ast.WalkFunc(unit, c.pre, c.post)
	if c.stack.Len() != 0 || c.active.Len() != 0 {
		panic(fmt.Sprintf("sema: traversal of %s left %d constructs and %d DO variables",
			unit.Unit().Name, c.stack.Len(), c.active.Len()))
	}
}

func (c *Checker) pre(n ast.Node) bool {
	switch n := n.(type) {
	case ast.ProgramUnit:
		if c.stack.Len() != 0 {
			panic(fmt.Sprintf("sema: program unit %s inside a construct", n.Unit().Name))
		}
	case ast.Construct:
		c.Enter(n)
	case *ast.CycleStmt:
		c.Jump(n)
	case *ast.ExitStmt:
		c.Jump(n)
	}
	return true
}

func (c *Checker) post(n ast.Node) {
	switch n := n.(type) {
	case *ast.AssignmentStmt:
		c.checkDefinition(n.Target)
	case *ast.CallStmt:
		c.checkActualArgs(n.Func, n.Args)
	case *ast.FunctionCall:
		c.checkActualArgs(n.Func, n.Args)
	case *ast.ReadStmt:
		c.checkSpecifiers(n.Specs, false)
		c.checkInputItems(n.Items)
	case *ast.WriteStmt:
		c.checkSpecifiers(n.Specs, false)
		c.checkOutputItems(n.Items)
	case *ast.PrintStmt:
		c.checkOutputItems(n.Items)
	case *ast.OpenStmt:
		c.checkSpecifiers(n.Specs, false)
	case *ast.CloseStmt:
		c.checkSpecifiers(n.Specs, false)
	case *ast.InquireStmt:
		c.checkSpecifiers(n.Specs, true)
	case *ast.AllocateStmt:
		c.checkSpecifiers(n.Specs, false)
	case *ast.DeallocateStmt:
		c.checkSpecifiers(n.Specs, false)
	case *ast.ImageControlStmt:
		c.checkSpecifiers(n.Specs, false)
	case ast.Construct:
		switch n := n.(type) {
		case *ast.CriticalConstruct:
			c.checkSpecifiers(n.Specs, false)
		case *ast.ChangeTeamConstruct:
			c.checkSpecifiers(n.Specs, false)
		}
		c.Leave(n)
	}
}

// Enter pushes a construct onto the construct stack. Entering a DO loop
// makes its DO variable or index names live.
func (c *Checker) Enter(node ast.Construct) {
	c.stack.Push(node)
	if do, ok := node.(*ast.DoLoop); ok {
		c.activate(do)
	}
}

// Leave checks a construct whose body has been traversed and pops it from
// the construct stack. node must be the innermost construct.
func (c *Checker) Leave(node ast.Construct) {
	if c.stack.Innermost() != node {
		panic(fmt.Sprintf("sema: leaving %T that is not the innermost construct", node))
	}
	switch n := node.(type) {
	case *ast.DoLoop:
		switch {
		case n.IsConcurrent():
			c.checkConcurrent(n)
		case n.IsCounted():
			c.checkCounted(n)
		}
	case *ast.CriticalConstruct:
		labels := enforceLabels(n.Body, collectLabels(n.Body), "CRITICAL", n.Header)
		c.msgs.Merge(&labels)
	case *ast.ChangeTeamConstruct:
		labels := enforceLabels(n.Body, collectLabels(n.Body), "CHANGE TEAM", n.Header)
		c.msgs.Merge(&labels)
	}
	c.stack.Pop()
	if do, ok := node.(*ast.DoLoop); ok {
		c.deactivate(do)
	}
}

// CheckParallel checks the program units of prog concurrently with one
// checker per unit. The result holds the diagnostics of each unit in unit
// order, each unit's diagnostics in traversal order as Check reports them.
func CheckParallel(prog *ast.Program, table *symbol.Table, opts Options) *diag.Messages {
	sinks := make([]*diag.Messages, len(prog.Units))
	var wg sync.WaitGroup
	for i, unit := range prog.Units {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := New(table, opts)
			c.checkUnit(unit)
			sinks[i] = c.msgs
		}()
	}
	wg.Wait()
	all := &diag.Messages{}
	for _, sink := range sinks {
		all.Merge(sink)
	}
	return all
}
