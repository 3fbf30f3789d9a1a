package sema

import (
	"strconv"

	"github.com/soypat/fortcheck/ast"
	"github.com/soypat/fortcheck/diag"
)

// walkBody walks the statements of a construct body in source order,
// calling pre and post around each node like [ast.WalkFunc]. The body of a
// nested DO CONCURRENT is not entered, only its header expressions.
func walkBody(body []ast.Statement, pre func(ast.Node) bool, post func(ast.Node)) {
	var visit func(ast.Node) bool
	visit = func(n ast.Node) bool {
		if pre != nil && !pre(n) {
			return false
		}
		if do, ok := n.(*ast.DoLoop); ok && do.IsConcurrent() {
			for _, e := range headerExprs(do.Concurrent) {
				ast.WalkFunc(e, visit, post)
			}
			if post != nil {
				post(n)
			}
			return false
		}
		return true
	}
	for _, stmt := range body {
		ast.WalkFunc(stmt, visit, post)
	}
}

// headerExprs returns the limit, step and mask expressions of h in source order.
func headerExprs(h *ast.ConcurrentHeader) []ast.Expression {
	var exprs []ast.Expression
	for _, ctl := range h.Controls {
		exprs = append(exprs, ctl.Lower, ctl.Upper)
		if ctl.Step != nil {
			exprs = append(exprs, ctl.Step)
		}
	}
	if h.Mask != nil {
		exprs = append(exprs, h.Mask)
	}
	return exprs
}

// collectLabels returns the labels defined by statements in body, not
// counting those inside nested DO CONCURRENT bodies.
func collectLabels(body []ast.Statement) map[string]bool {
	labels := make(map[string]bool)
	walkBody(body, func(n ast.Node) bool {
		if stmt, ok := n.(ast.Statement); ok && stmt.Base().Label != "" {
			labels[stmt.Base().Label] = true
		}
		return true
	}, nil)
	return labels
}

// Specifiers whose value is a branch target label.
var branchSpecifiers = map[string]bool{"ERR": true, "END": true, "EOR": true}

// enforceLabels reports every branch in body to a label not in labels.
// construct names the construct being checked and header is its opening
// statement.
func enforceLabels(body []ast.Statement, labels map[string]bool, construct string, header ast.Position) (msgs diag.Messages) {
	check := func(pos ast.Position, label string) {
		if !labels[label] {
			msgs.Errorf(pos, "Control flow escapes from %s", construct).
				Attach(header, "Enclosing %s statement", construct)
		}
	}
	walkBody(body, nil, func(n ast.Node) {
		switch n := n.(type) {
		case *ast.GotoStmt:
			check(n.Position, n.Target)
		case *ast.Specifier:
			if branchSpecifiers[n.Keyword] {
				if label, ok := labelOf(n.Value); ok {
					check(n.Position, label)
				}
			}
		}
	})
	return msgs
}

// labelOf returns the label referenced by a branch specifier such as ERR=10.
func labelOf(expr ast.Expression) (string, bool) {
	lit, ok := expr.(*ast.IntegerLiteral)
	if !ok {
		return "", false
	}
	return strconv.FormatInt(lit.Value, 10), true
}
