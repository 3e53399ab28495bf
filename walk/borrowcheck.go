package walk

import (
	"ruse/logging"
	"ruse/sem"
	"ruse/syntax"
)

// borrowChecker is the final semantic pass.  It enforces the aliasing and
// lifetime discipline: per-variable borrow counts, exact and annotated
// lifetimes, move invalidation, and the lifetime annotation rules on
// function signatures.
type borrowChecker struct {
	*Walker

	// inAnnotatedFunc is set while checking a function whose signature
	// carries lifetime annotations
	inAnnotatedFunc bool
}

func (bc *borrowChecker) visitFile(f *syntax.File) {
	for _, d := range f.Decls {
		bc.visitDecl(d)
	}
}

func (bc *borrowChecker) visitDecl(d syntax.Decl) {
	switch d := d.(type) {
	case *syntax.VarDecl:
		bc.visitVarDecl(d)
	case *syntax.FuncDecl:
		bc.visitFuncDecl(d)
	case *syntax.ExternDecl:
		bc.visitFuncDecl(d.Func)
	case *syntax.StructDecl, *syntax.EnumDecl:
		// type declarations carry no borrow state
	}
}

// ---------------------------------------------------------------------------
// lifetimes

// startLifetime makes a new lifetime introduced by `decl` starting at the
// current scope.  It is automatically destroyed on scope close.
func (bc *borrowChecker) startLifetime(decl sem.Decl) *sem.Lifetime {
	lt := sem.NewExactLifetime(decl)
	bc.lifetimeTable.Insert(lt, lt)
	return lt
}

// startLifetimeOfRef makes a new annotated lifetime for a reference variable.
// The annotation is the only information available when the referee's decl
// cannot be pinpointed, which is the case for reference parameters.
func (bc *borrowChecker) startLifetimeOfRef(annot *sem.Name) *sem.Lifetime {
	lt := sem.NewAnnotatedLifetime(annot)
	bc.lifetimeTable.Insert(lt, lt)
	return lt
}

// lifetimeOfReference finds the lifetime of the value a reference-valued
// expression refers to.  Note this is about the *referee*, not about the
// reference variable itself.
func (bc *borrowChecker) lifetimeOfReference(refExpr syntax.Expr) *sem.Lifetime {
	ty := refExpr.Type()
	if ty == nil || !ty.IsRef() {
		return nil
	}

	if u, ok := refExpr.(*syntax.UnaryExpr); ok && u.Kind == syntax.UnaryParen {
		return bc.lifetimeOfReference(u.Operand)
	}

	switch {
	case isLvalue(refExpr):
		// an l-value reference variable, e.g. `r: &int`
		return lvalueDecl(refExpr).BorroweeLifetime
	case isRefExpr(refExpr):
		// an explicit borrowing expression, e.g. `&a`
		operand := refExpr.(*syntax.UnaryExpr).Operand
		vd := lvalueDecl(operand)
		if vd == nil {
			return nil
		}

		// borrowing from a field borrows from the whole struct, so the
		// lifetime of the root of the member chain is the one that matters
		root := vd.Root()
		if root.Lifetime != nil {
			return root.Lifetime
		}

		// the chain roots at a deref temporary; the borrow then lives as
		// long as whatever the dereferenced pointer borrowed
		if ref := behindRef(operand); ref != nil {
			return ref.BorroweeLifetime
		}
		return nil
	default:
		call, ok := refExpr.(*syntax.CallExpr)
		if !ok || call.CalleeDecl == nil {
			return nil
		}
		return bc.lifetimeOfCall(call)
	}
}

// lifetimeOfCall resolves the lifetime of a reference returned from a
// function call by consulting the callee's annotations.  Lifetime coercion
// happens here: if several argument lifetimes match the return annotation,
// the shortest-living one (deepest scope) wins.  From inside the callee,
// whether a coercion happened at a call site does not affect the borrow
// check of its body.
func (bc *borrowChecker) lifetimeOfCall(call *syntax.CallExpr) *sem.Lifetime {
	callee := call.CalleeDecl
	if callee.RetLifetimeAnnot == nil {
		return nil
	}

	var shortest *sem.Lifetime
	shortestLevel := 0

	for i, p := range callee.Params {
		if i >= len(call.Args) {
			break
		}
		if p.Ty == nil || !p.Ty.IsRef() {
			continue
		}
		// note that it is the parameter's *borrowee* lifetime that carries
		// the annotation, not its own
		if p.BorroweeLifetime == nil || p.BorroweeLifetime.Annot != callee.RetLifetimeAnnot {
			continue
		}

		argLt := bc.lifetimeOfReference(call.Args[i])
		if argLt == nil {
			continue
		}

		found, ok := bc.lifetimeTable.Find(argLt)
		if !ok {
			continue
		}

		if shortest == nil || found.Level > shortestLevel {
			shortest = argLt
			shortestLevel = found.Level
		}
	}

	return shortest
}

// ---------------------------------------------------------------------------
// borrows

// registerBorrowCount marks a variable as borrowed in the current scope.
// A new borrow of either kind conflicts with an outstanding mutable borrow,
// and a new mutable borrow conflicts with an outstanding immutable one.
func (bc *borrowChecker) registerBorrowCount(borrowee *syntax.VarDecl, mut bool, pos int) {
	immutableOld := 0
	mutableOld := 0

	if found, ok := bc.borrowTable.Find(borrowee); ok {
		immutableOld = found.Value.ImmutableBorrowCount
		mutableOld = found.Value.MutableBorrowCount
	}

	if mutableOld > 0 {
		bc.errorf(logging.LMKBorrow, pos,
			"cannot borrow '%s' as immutable because it was borrowed as mutable before",
			borrowee.Name.Text)
		return
	}
	if immutableOld > 0 && mut {
		bc.errorf(logging.LMKBorrow, pos,
			"cannot borrow '%s' as mutable because it was borrowed as immutable before",
			borrowee.Name.Text)
		return
	}

	entry := sem.BorrowMap{
		ImmutableBorrowCount: immutableOld,
		MutableBorrowCount:   mutableOld,
	}
	if mut {
		entry.MutableBorrowCount++
	} else {
		entry.ImmutableBorrowCount++
	}
	bc.borrowTable.Insert(borrowee, entry)
}

// borrowcheckAssign records the borrow-and-lifetime consequences of the value
// flow `v = rhs` (or `v <- rhs` for a move)
func (bc *borrowChecker) borrowcheckAssign(v *syntax.VarDecl, rhs syntax.Expr, move bool) {
	rhsTy := rhs.Type()
	if rhsTy == nil || bc.IsBuiltinType(rhsTy) {
		return
	}

	// recurse into struct literals per designator; every l-value has a
	// VarDecl, so the children line up by field name
	if sd, ok := rhs.(*syntax.StructDefExpr); ok {
		for _, desig := range sd.Desigs {
			if initTy := desig.Init.Type(); initTy != nil && initTy.IsRef() {
				if child := v.Child(desig.Name); child != nil {
					bc.borrowcheckAssign(child, desig.Init, move)
				}
			}
		}
		return
	}

	if rhsTy.IsRef() {
		v.BorroweeLifetime = bc.lifetimeOfReference(rhs)

		if isRefExpr(rhs) {
			// an explicit borrowing statement, e.g. `a = &b`; a move with an
			// rvalue RHS is the same as a copy, so both land here
			operand := rhs.(*syntax.UnaryExpr).Operand
			if vd := lvalueDecl(operand); vd != nil {
				vd.Root().Borrowed = true
			}
		}
		// An l-value RHS is an implicit copy of a borrow, e.g.
		// `r1: &int = r2`; the borrowee lifetime above is all that flows.
		// A function call RHS resolved its lifetime through the callee's
		// annotations above.
		return
	}

	if move && isLvalue(rhs) {
		// moving through a reference, e.g. `a <- *p`, would invalidate all
		// later accesses through 'p'
		if ref := behindRef(rhs); ref != nil {
			bc.errorf(logging.LMKMove, rhs.Pos(),
				"cannot move out of '%s' because it will invalidate '%s'",
				bc.exprText(rhs), ref.Name.Text)
			return
		}

		rhsDecl := lvalueDecl(rhs)
		if found, ok := bc.borrowTable.Find(rhsDecl); ok &&
			(found.Value.MutableBorrowCount > 0 || found.Value.ImmutableBorrowCount > 0) {
			bc.errorf(logging.LMKMove, rhs.Pos(),
				"cannot move out of '%s' because it is borrowed", bc.exprText(rhs))
			return
		}

		rhsDecl.Moved = true
	}
}

// ---------------------------------------------------------------------------
// traversal

func (bc *borrowChecker) visitCompoundStmt(cs *syntax.CompoundStmt) {
	bc.scopeOpen()
	defer bc.scopeClose()

	for _, s := range cs.Stmts {
		bc.visitStmt(s)
	}
}

func (bc *borrowChecker) visitStmt(s syntax.Stmt) {
	switch s := s.(type) {
	case *syntax.DeclStmt:
		bc.visitDecl(s.Decl)
	case *syntax.ExprStmt:
		bc.visitExpr(s.Expr)
	case *syntax.AssignStmt:
		bc.visitAssignStmt(s)
	case *syntax.ReturnStmt:
		bc.visitReturnStmt(s)
	case *syntax.IfStmt:
		bc.visitIfStmt(s)
	case *syntax.CompoundStmt:
		bc.visitCompoundStmt(s)
	case *syntax.BuiltinStmt, *syntax.BadStmt:
	}
}

func (bc *borrowChecker) visitIfStmt(is *syntax.IfStmt) {
	bc.visitExpr(is.Cond)
	bc.visitCompoundStmt(is.Then)
	if is.ElseIf != nil {
		bc.visitIfStmt(is.ElseIf)
	}
	if is.Else != nil {
		bc.visitCompoundStmt(is.Else)
	}
}

// visitAssignStmt visits the RHS before the LHS so that moves are detected
// before the LHS is rewritten; borrow state and lifetimes are updated after
// the value flow is resolved
func (bc *borrowChecker) visitAssignStmt(as *syntax.AssignStmt) {
	bc.visitExpr(as.RHS)
	bc.visitExpr(as.LHS)

	lhsDecl := lvalueDecl(as.LHS)
	if lhsDecl == nil || as.RHS.Type() == nil {
		return
	}

	bc.borrowcheckAssign(lhsDecl, as.RHS, as.Move)
}

func (bc *borrowChecker) visitReturnStmt(rs *syntax.ReturnStmt) {
	if rs.Expr == nil {
		return
	}
	bc.visitExpr(rs.Expr)

	// Return statement borrow check.  Other errors such as use-after-free in
	// the returned expression were caught by the visit above.
	ty := rs.Expr.Type()
	if ty == nil || !ty.IsRef() {
		return
	}

	lt := bc.lifetimeOfReference(rs.Expr)
	if lt == nil {
		return
	}

	f := bc.currFunc()
	if f == nil {
		return
	}

	if lt.Kind == sem.LifetimeAnnotated {
		var want *sem.Name
		if f.RetTypeExpr != nil {
			want = f.RetTypeExpr.LifetimeAnnot
		}
		if want != nil && lt.Annot != want {
			bc.errorf(logging.LMKLifetime, rs.Expr.Pos(),
				"lifetime mismatch: expected .%s, got .%s", want.Text, lt.Annot.Text)
		}
		return
	}

	// detect a reference to a local escaping through the return value
	if f.ScopeLifetime == nil {
		return
	}
	funcScope, ok := bc.lifetimeTable.Find(f.ScopeLifetime)
	if !ok {
		return
	}
	borrowee, ok := bc.lifetimeTable.Find(lt)
	if !ok {
		return
	}

	if borrowee.Level > funcScope.Level {
		name := ""
		if lt.Decl != nil && lt.Decl.DeclName() != nil {
			name = lt.Decl.DeclName().Text
		}
		bc.errorf(logging.LMKLifetime, rs.Expr.Pos(),
			"cannot return value that references local variable '%s'", name)
	}
}

// visitExpr checks use-of-moved as a pre-order step, so that once a
// use-after-move is detected the traversal stops
func (bc *borrowChecker) visitExpr(e syntax.Expr) {
	if isLvalue(e) && lvalueDecl(e).Moved {
		bc.errorf(logging.LMKMove, e.Pos(), "use of moved value")
		return
	}

	switch e := e.(type) {
	case *syntax.DeclRefExpr:
		bc.visitDeclRefExpr(e)
	case *syntax.CallExpr:
		for _, a := range e.Args {
			bc.visitExpr(a)
		}
	case *syntax.MemberExpr:
		bc.visitExpr(e.StructExpr)
	case *syntax.StructDefExpr:
		for _, d := range e.Desigs {
			bc.visitExpr(d.Init)
		}
	case *syntax.CastExpr:
		bc.visitExpr(e.Target)
	case *syntax.UnaryExpr:
		bc.visitUnaryExpr(e)
	case *syntax.BinaryExpr:
		bc.visitExpr(e.LHS)
		bc.visitExpr(e.RHS)
	case *syntax.IntegerLiteral, *syntax.StringLiteral, *syntax.TypeExpr, *syntax.BadExpr:
	}
}

// visitDeclRefExpr checks that at each use of a reference variable its
// borrowee is still alive: a variable of some lifetime should only refer to
// values whose lifetimes enclose it
func (bc *borrowChecker) visitDeclRefExpr(d *syntax.DeclRefExpr) {
	vd, ok := d.Decl.(*syntax.VarDecl)
	if !ok || vd == nil {
		return
	}

	if vd.BorroweeLifetime == nil || vd.BorroweeLifetime.Kind != sem.LifetimeExact {
		return
	}

	found, ok := bc.lifetimeTable.Find(vd.BorroweeLifetime)
	if !ok || found.Value != vd.BorroweeLifetime {
		name := ""
		if vd.BorroweeLifetime.Decl != nil && vd.BorroweeLifetime.Decl.DeclName() != nil {
			name = vd.BorroweeLifetime.Decl.DeclName().Text
		}
		bc.errorf(logging.LMKLifetime, d.Pos(), "'%s' does not live long enough", name)
	}
}

func (bc *borrowChecker) visitUnaryExpr(u *syntax.UnaryExpr) {
	switch u.Kind {
	case syntax.UnaryParen, syntax.UnaryDeref:
		bc.visitExpr(u.Operand)
	case syntax.UnaryRef, syntax.UnaryVarRef:
		bc.visitExpr(u.Operand)
		if vd := lvalueDecl(u.Operand); vd != nil {
			bc.registerBorrowCount(vd, u.Kind == syntax.UnaryVarRef, u.Pos())
		}
	}
}

// visitVarDecl starts the lifetimes of a declared variable and its children
// and resolves the value flow of its initializer
func (bc *borrowChecker) visitVarDecl(v *syntax.VarDecl) {
	if v.AssignExpr != nil {
		bc.visitExpr(v.AssignExpr)
	}

	v.Lifetime = bc.startLifetime(v)
	for _, c := range v.Children {
		c.Decl.Lifetime = bc.startLifetime(c.Decl)
	}

	if v.AssignExpr != nil {
		if v.AssignExpr.Type() != nil {
			// an initializer is a copy assignment; moves into a fresh
			// binding go through an explicit move statement instead
			bc.borrowcheckAssign(v, v.AssignExpr, false)
		}
	} else if v.TypeExpr != nil && v.TypeExpr.LifetimeAnnot != nil {
		// annotated reference parameters carry their referee lifetime in
		// the annotation
		v.BorroweeLifetime = bc.startLifetimeOfRef(v.TypeExpr.LifetimeAnnot)
	}
}

// visitFuncDecl enforces the signature annotation rules and walks the body.
// If any parameter carries a lifetime annotation the whole signature must be
// annotated consistently.
func (bc *borrowChecker) visitFuncDecl(f *syntax.FuncDecl) {
	save := bc.inAnnotatedFunc
	defer func() { bc.inAnnotatedFunc = save }()

	bc.inAnnotatedFunc = false
	for _, p := range f.Params {
		if p.TypeExpr != nil && p.TypeExpr.LifetimeAnnot != nil {
			bc.inAnnotatedFunc = true
			break
		}
	}

	if bc.inAnnotatedFunc {
		var declared []*sem.Name

		// every reference parameter has to be annotated
		for _, p := range f.Params {
			if p.Ty != nil && p.Ty.IsRef() &&
				(p.TypeExpr == nil || p.TypeExpr.LifetimeAnnot == nil) {
				bc.errorf(logging.LMKLifetime, p.Pos(), "missing lifetime annotation")
				return
			}
			if p.TypeExpr != nil && p.TypeExpr.LifetimeAnnot != nil {
				declared = append(declared, p.TypeExpr.LifetimeAnnot)
			}
		}

		// so does a reference return value, and its annotation has to be one
		// declared by the parameters
		if f.RetType != nil && f.RetType.IsRef() {
			if f.RetTypeExpr.LifetimeAnnot == nil {
				bc.errorf(logging.LMKLifetime, f.RetTypeExpr.Pos(), "missing lifetime annotation")
				return
			}

			seen := false
			for _, lt := range declared {
				if f.RetTypeExpr.LifetimeAnnot == lt {
					seen = true
					break
				}
			}
			if !seen {
				bc.errorf(logging.LMKLifetime, f.RetTypeExpr.Pos(),
					"unknown lifetime annotation '.%s'", f.RetTypeExpr.LifetimeAnnot.Text)
				return
			}

			f.RetLifetimeAnnot = f.RetTypeExpr.LifetimeAnnot
		}
	}

	// a scope for the parameters and the function's own lifetime, used for
	// local variable escape detection
	bc.scopeOpen()
	defer bc.scopeClose()

	f.ScopeLifetime = bc.startLifetime(f)

	bc.pushFunc(f)
	defer bc.popFunc()

	for _, p := range f.Params {
		bc.visitVarDecl(p)
	}

	if f.Body != nil {
		bc.visitCompoundStmt(f.Body)
	}
}
