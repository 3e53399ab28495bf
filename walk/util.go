package walk

import (
	"ruse/sem"
	"ruse/syntax"
)

// getDecl returns the Decl object that represents the value of an expression,
// if it has one: the bound decl of a DeclRefExpr, the materialized child of a
// MemberExpr, or the synthesized temporary of a deref.  The second result is
// false for expressions that carry no decl (e.g. a BinaryExpr).
func getDecl(e syntax.Expr) (sem.Decl, bool) {
	switch e := e.(type) {
	case *syntax.DeclRefExpr:
		return e.Decl, true
	case *syntax.MemberExpr:
		if e.Decl == nil {
			return nil, false
		}
		return e.Decl, true
	case *syntax.UnaryExpr:
		switch e.Kind {
		case syntax.UnaryParen:
			return getDecl(e.Operand)
		case syntax.UnaryDeref:
			if e.TempDecl == nil {
				return nil, false
			}
			return e.TempDecl, true
		}
	}

	return nil, false
}

// hasDecl reports whether an expression denotes a named value rather than a
// temporary
func hasDecl(e syntax.Expr) bool {
	_, ok := getDecl(e)
	return ok
}

// isLvalue reports whether an expression denotes a storage location
func isLvalue(e syntax.Expr) bool {
	d, ok := getDecl(e)
	if !ok {
		return false
	}

	v, ok := d.(*syntax.VarDecl)
	return ok && v != nil
}

// lvalueDecl returns the VarDecl that binds to an l-value expression, or nil
func lvalueDecl(e syntax.Expr) *syntax.VarDecl {
	d, ok := getDecl(e)
	if !ok {
		return nil
	}

	if v, ok := d.(*syntax.VarDecl); ok {
		return v
	}
	return nil
}

// isRefExpr reports whether an expression is a borrowing expression, i.e.
// `&e` or `&var e`
func isRefExpr(e syntax.Expr) bool {
	u, ok := e.(*syntax.UnaryExpr)
	return ok && (u.Kind == syntax.UnaryRef || u.Kind == syntax.UnaryVarRef)
}

// isDerefExpr reports whether an expression is a dereference, i.e. `*e`
func isDerefExpr(e syntax.Expr) bool {
	u, ok := e.(*syntax.UnaryExpr)
	return ok && u.Kind == syntax.UnaryDeref
}

// behindRef returns the reference variable an expression reads through, if
// any.  `p` alone does not go through p; `*p` and `p.m` (with p a reference)
// do.  Used to reject moves that would invalidate later accesses through a
// reference.
func behindRef(e syntax.Expr) *syntax.VarDecl {
	switch e := e.(type) {
	case *syntax.MemberExpr:
		return behindRef(e.StructExpr)
	case *syntax.UnaryExpr:
		switch e.Kind {
		case syntax.UnaryParen:
			return behindRef(e.Operand)
		case syntax.UnaryRef, syntax.UnaryVarRef:
			return nil
		case syntax.UnaryDeref:
			if _, ok := e.Operand.(*syntax.DeclRefExpr); ok {
				return lvalueDecl(e.Operand)
			}
			return behindRef(e.Operand)
		}
	}

	return nil
}

// exprText returns the source text of an expression for diagnostics
func (w *Walker) exprText(e syntax.Expr) string {
	return w.src.Text(e.Pos(), e.End())
}
