package walk

import (
	"ruse/logging"
	"ruse/sem"
	"ruse/syntax"
	"ruse/typing"
)

// typeChecker is the second semantic pass: a bottom-up walk that computes a
// canonical type for every expression, validates assignments, calls, member
// accesses, casts, struct literals, and returns, and materializes per-use
// child decls for struct l-values.  A visitor that fails emits a diagnostic
// and returns nil; downstream visitors treat a nil type as a silent no-op to
// avoid cascading errors.
type typeChecker struct {
	*Walker
}

func (tc *typeChecker) visitFile(f *syntax.File) {
	for _, d := range f.Decls {
		tc.visitDecl(d)
	}
}

func (tc *typeChecker) visitDecl(d syntax.Decl) *typing.Type {
	switch d := d.(type) {
	case *syntax.VarDecl:
		return tc.checkVarDecl(d)
	case *syntax.FuncDecl:
		return tc.checkFuncDecl(d)
	case *syntax.StructDecl:
		return tc.checkStructDecl(d)
	case *syntax.EnumDecl:
		return tc.checkEnumDecl(d)
	case *syntax.ExternDecl:
		return tc.checkFuncDecl(d.Func)
	}

	return nil
}

// ---------------------------------------------------------------------------
// statements

func (tc *typeChecker) visitCompoundStmt(cs *syntax.CompoundStmt) {
	for _, s := range cs.Stmts {
		tc.visitStmt(s)
	}
}

func (tc *typeChecker) visitStmt(s syntax.Stmt) {
	switch s := s.(type) {
	case *syntax.DeclStmt:
		tc.visitDecl(s.Decl)
	case *syntax.ExprStmt:
		tc.checkExpr(s.Expr)
	case *syntax.AssignStmt:
		tc.checkAssignStmt(s)
	case *syntax.ReturnStmt:
		tc.checkReturnStmt(s)
	case *syntax.IfStmt:
		tc.visitIfStmt(s)
	case *syntax.CompoundStmt:
		tc.visitCompoundStmt(s)
	case *syntax.BuiltinStmt, *syntax.BadStmt:
	}
}

func (tc *typeChecker) visitIfStmt(is *syntax.IfStmt) {
	tc.checkExpr(is.Cond)
	tc.visitCompoundStmt(is.Then)
	if is.ElseIf != nil {
		tc.visitIfStmt(is.ElseIf)
	}
	if is.Else != nil {
		tc.visitCompoundStmt(is.Else)
	}
}

// typecheckAssign checks the assignability of `lhs = rhs`:
//
//  1. Exact same canonical type.
//  2. Promotion from mutable to immutable reference, recursively through the
//     referee types.
func typecheckAssign(lhs, rhs *typing.Type) bool {
	if lhs.Kind == typing.KindRef && rhs.IsRef() {
		return typecheckAssign(lhs.Referee, rhs.Referee)
	}
	return lhs == rhs
}

// mutcheckAssign checks that the LHS of an assignment is mutable.  For member
// expressions, assignability is inherited from the struct side of the chain;
// for derefs it depends on the mutability of the reference.
func (tc *typeChecker) mutcheckAssign(lhs syntax.Expr) bool {
	if m, ok := lhs.(*syntax.MemberExpr); ok {
		return tc.mutcheckAssign(m.StructExpr)
	}

	if isDerefExpr(lhs) {
		u := lhs.(*syntax.UnaryExpr)
		if u.Operand.Type() != nil && u.Operand.Type().Kind != typing.KindVarRef {
			tc.errorf(logging.LMKImmut, u.Pos(), "'%s' is not a mutable reference",
				tc.refExprName(u.Operand))
			return false
		}
		return true
	}

	if vd := lvalueDecl(lhs); vd != nil && !vd.Mut {
		tc.errorf(logging.LMKImmut, lhs.Pos(), "'%s' is not declared as mutable", vd.Name.Text)
		return false
	}

	return true
}

// refExprName names a reference-valued expression for diagnostics
func (tc *typeChecker) refExprName(e syntax.Expr) string {
	if vd := lvalueDecl(e); vd != nil && vd.Name != nil {
		return vd.Name.Text
	}
	return tc.exprText(e)
}

// checkAssignStmt checks an assignment statement.  The l-value check cannot
// be done reliably in the parsing stage because it depends on the actual type
// of the expression, not just its kind, e.g. `(v)` vs `(3)`.
func (tc *typeChecker) checkAssignStmt(as *syntax.AssignStmt) *typing.Type {
	lhsTy := tc.checkExpr(as.LHS)
	rhsTy := tc.checkExpr(as.RHS)

	if lhsTy == nil || rhsTy == nil {
		return nil
	}

	if !isLvalue(as.LHS) {
		tc.errorf(logging.LMKImmut, as.Pos(), "cannot assign to an rvalue")
		return nil
	}

	if !typecheckAssign(lhsTy, rhsTy) {
		tc.errorf(logging.LMKTyping, as.Pos(), "cannot assign '%s' type to '%s'",
			rhsTy.Name.Text, lhsTy.Name.Text)
		return nil
	}

	// The type compatibility check precedes this one, because a type mismatch
	// is likely to signify a larger error in the source than a mutability
	// error.
	if !tc.mutcheckAssign(as.LHS) {
		return nil
	}

	// Copyability only constrains copy assignments; a move transfers the
	// value instead of duplicating it.  Even for a copy, a temporary RHS is
	// allowed: copying a temporary is the same as moving it.
	if !as.Move && hasDecl(as.RHS) && !rhsTy.Copyable {
		tc.errorf(logging.LMKMove, as.RHS.Pos(), "cannot copy non-copyable type '%s'",
			rhsTy.Name.Text)
		return nil
	}

	return lhsTy
}

func (tc *typeChecker) checkReturnStmt(rs *syntax.ReturnStmt) *typing.Type {
	f := tc.currFunc()
	if f == nil || f.RetType == nil {
		return nil
	}

	if rs.Expr == nil {
		if f.RetType != tc.VoidType {
			tc.errorf(logging.LMKTyping, rs.Pos(),
				"return type mismatch: function returns '%s', but got 'void'",
				f.RetType.Name.Text)
		}
		return nil
	}

	ty := tc.checkExpr(rs.Expr)
	if ty == nil {
		return nil
	}

	if f.RetType == tc.VoidType {
		tc.errorf(logging.LMKTyping, rs.Expr.Pos(), "function '%s' should not return a value",
			f.Name.Text)
		return nil
	}

	if !typecheckAssign(f.RetType, ty) {
		tc.errorf(logging.LMKTyping, rs.Expr.Pos(),
			"return type mismatch: function returns '%s', but got '%s'",
			f.RetType.Name.Text, ty.Name.Text)
		return nil
	}

	return ty
}

// ---------------------------------------------------------------------------
// expressions

func (tc *typeChecker) checkExpr(e syntax.Expr) *typing.Type {
	switch e := e.(type) {
	case *syntax.IntegerLiteral:
		e.SetType(tc.IntType)
	case *syntax.StringLiteral:
		e.SetType(tc.StringType)
	case *syntax.DeclRefExpr:
		e.SetType(tc.checkDeclRefExpr(e))
	case *syntax.CallExpr:
		e.SetType(tc.checkCallExpr(e))
	case *syntax.MemberExpr:
		e.SetType(tc.checkMemberExpr(e))
	case *syntax.StructDefExpr:
		e.SetType(tc.checkStructDefExpr(e))
	case *syntax.CastExpr:
		tc.checkExpr(e.Target)
		e.SetType(tc.checkTypeExpr(e.TypeExpr))
	case *syntax.UnaryExpr:
		e.SetType(tc.checkUnaryExpr(e))
	case *syntax.BinaryExpr:
		e.SetType(tc.checkBinaryExpr(e))
	case *syntax.TypeExpr:
		return tc.checkTypeExpr(e)
	case *syntax.BadExpr:
	}

	return e.Type()
}

func (tc *typeChecker) checkDeclRefExpr(d *syntax.DeclRefExpr) *typing.Type {
	if d.Decl == nil {
		return nil
	}

	// Variables have their types determined at declaration, so a variable
	// that survived name binding always exposes one.  Struct and enum names
	// expose the nominal type they declare.  Functions are not first-class
	// values.
	td, ok := d.Decl.(typing.TypedDecl)
	if !ok {
		tc.errorf(logging.LMKTyping, d.Pos(), "'%s' is not a first-class value", d.Name.Text)
		return nil
	}

	return td.TypeMaybe()
}

func (tc *typeChecker) checkCallExpr(c *syntax.CallExpr) *typing.Type {
	for _, a := range c.Args {
		tc.checkExpr(a)
	}

	callee := c.CalleeDecl
	if callee == nil || callee.RetType == nil {
		return nil
	}

	// check argument type match; equality is identity on canonical types
	for i, p := range callee.Params {
		if i >= len(c.Args) {
			break
		}

		argTy := c.Args[i].Type()
		if argTy == nil {
			return nil
		}
		if p.Ty != nil && argTy != p.Ty {
			tc.errorf(logging.LMKTyping, c.Args[i].Pos(),
				"argument type mismatch: expects '%s', got '%s'",
				p.Ty.Name.Text, argTy.Name.Text)
			return nil
		}
	}

	return callee.RetType
}

// checkMemberExpr completes the name binding of `s.m`, which was deferred to
// this phase because it needs the type of the struct side.
func (tc *typeChecker) checkMemberExpr(m *syntax.MemberExpr) *typing.Type {
	structTy := tc.checkExpr(m.StructExpr)
	if structTy == nil {
		return nil
	}

	if !structTy.IsStruct() {
		tc.errorf(logging.LMKTyping, m.StructExpr.Pos(), "type '%s' is not a struct",
			structTy.Name.Text)
		return nil
	}

	sd := structTy.Decl.(*syntax.StructDecl)
	fd := sd.Field(m.MemberName)
	if fd == nil {
		tc.errorf(logging.LMKTyping, m.StructExpr.Pos(), "'%s' is not a member of '%s'",
			m.MemberName.Text, structTy.Name.Text)
		return nil
	}
	if fd.Ty == nil {
		return nil
	}

	// If the struct side is an l-value, this member is one too and needs a
	// decl of its own.  Two l-values `x.a` and `y.a` denote different storage
	// even with the same struct type and field name, so each root decl gets
	// its own children, materialized on first use.
	if isLvalue(m.StructExpr) {
		root := lvalueDecl(m.StructExpr)
		child := root.Child(m.MemberName)
		if child == nil {
			child = tc.addField(root, m.MemberName, fd.Ty)
		}
		m.Decl = child
	}

	return fd.Ty
}

// addField materializes the child decl for a field under a struct-typed
// variable.  Mutability is inherited from the parent, and the child gets a
// fresh lifetime of its own.
func (tc *typeChecker) addField(parent *syntax.VarDecl, name *sem.Name, ty *typing.Type) *syntax.VarDecl {
	child := &syntax.VarDecl{
		Name:   name,
		Kind:   syntax.VarField,
		Mut:    parent.Mut,
		Ty:     ty,
		Parent: parent,
	}
	child.Lifetime = sem.NewExactLifetime(child)
	parent.Children = append(parent.Children, syntax.ChildField{Name: name, Decl: child})
	return child
}

func (tc *typeChecker) checkStructDefExpr(s *syntax.StructDefExpr) *typing.Type {
	ty := tc.checkExpr(s.NameExpr)
	for _, d := range s.Desigs {
		tc.checkExpr(d.Init)
	}

	if ty == nil {
		return nil
	}
	if !ty.IsStruct() {
		tc.errorf(logging.LMKTyping, s.NameExpr.Pos(), "type '%s' is not a struct",
			ty.Name.Text)
		return nil
	}

	sd := ty.Decl.(*syntax.StructDecl)
	for _, d := range s.Desigs {
		initTy := d.Init.Type()
		if initTy == nil {
			return nil
		}

		fd := sd.Field(d.Name)
		if fd == nil {
			tc.errorf(logging.LMKTyping, d.Init.Pos(), "'%s' is not a member of '%s'",
				d.Name.Text, sd.Name.Text)
			return nil
		}

		if fd.Ty != nil && !typecheckAssign(fd.Ty, initTy) {
			tc.errorf(logging.LMKTyping, d.Init.Pos(), "cannot assign '%s' type to '%s'",
				initTy.Name.Text, fd.Ty.Name.Text)
			return nil
		}
	}

	return ty
}

func (tc *typeChecker) checkUnaryExpr(u *syntax.UnaryExpr) *typing.Type {
	switch u.Kind {
	case syntax.UnaryParen:
		return tc.checkExpr(u.Operand)
	case syntax.UnaryDeref:
		opTy := tc.checkExpr(u.Operand)
		if opTy == nil {
			return nil
		}
		if !opTy.IsRef() {
			tc.errorf(logging.LMKTyping, u.Operand.Pos(),
				"dereference of a non-reference type '%s'", opTy.Name.Text)
			return nil
		}

		// Bind a temporary VarDecl to this expression that respects the
		// mutability of the reference, so that `*e` is assignable iff the
		// reference is mutable.  Temporaries are not pushed to the scoped
		// decl table: they have no name to query them by.
		u.TempDecl = &syntax.VarDecl{
			Mut: opTy.Kind == typing.KindVarRef,
			Ty:  opTy.Referee,
		}
		return opTy.Referee
	case syntax.UnaryRef, syntax.UnaryVarRef:
		opTy := tc.checkExpr(u.Operand)
		if opTy == nil {
			return nil
		}

		if !isLvalue(u.Operand) {
			tc.errorf(logging.LMKImmut, u.Pos(), "cannot take address of an rvalue")
			return nil
		}

		kind := typing.KindRef
		if u.Kind == syntax.UnaryVarRef {
			kind = typing.KindVarRef

			vd := lvalueDecl(u.Operand)
			if !vd.Mut {
				tc.errorf(logging.LMKImmut, u.Pos(),
					"cannot borrow '%s' as mutable because it is declared immutable",
					tc.refExprName(u.Operand))
				return nil
			}
		}

		return tc.derivedType(kind, opTy)
	}

	return nil
}

func (tc *typeChecker) checkBinaryExpr(b *syntax.BinaryExpr) *typing.Type {
	lhsTy := tc.checkExpr(b.LHS)
	rhsTy := tc.checkExpr(b.RHS)

	if lhsTy == nil || rhsTy == nil {
		return nil
	}

	if lhsTy != rhsTy {
		tc.errorf(logging.LMKTyping, b.Pos(),
			"incompatible types to binary expression ('%s' and '%s')",
			lhsTy.Name.Text, rhsTy.Name.Text)
		return nil
	}

	return lhsTy
}

// derivedType gets or constructs the canonical derived type of a given kind
// over a referee.  Derived types are only present in the type table if they
// occur in the source; pushing them on every occurrence keeps that invariant.
func (tc *typeChecker) derivedType(kind typing.TypeKind, referee *typing.Type) *typing.Type {
	name := typing.DerivedTypeName(tc.names, kind, referee.Name)
	if found, ok := tc.typeTable.Find(name); ok {
		return found.Value
	}

	derived := typing.NewDerivedType(kind, name, referee)
	tc.typeTable.Insert(name, derived)
	return derived
}

// checkTypeExpr tags a TypeExpr with the canonical Type object matching its
// syntactic form
func (tc *typeChecker) checkTypeExpr(t *syntax.TypeExpr) *typing.Type {
	if t == nil {
		return nil
	}

	switch t.Kind {
	case typing.KindValue:
		if t.Decl == nil {
			return nil
		}
		// the decl is bound after name binding, and since the walk is a
		// single pass its type is resolved by now
		td := t.Decl.(typing.TypedDecl)
		t.SetType(td.TypeMaybe())
	default:
		sub := tc.checkTypeExpr(t.Subexpr)
		if sub == nil {
			return nil
		}
		t.SetType(tc.derivedType(t.Kind, sub))
	}

	return t.Type()
}

// ---------------------------------------------------------------------------
// declarations

func (tc *typeChecker) checkVarDecl(v *syntax.VarDecl) *typing.Type {
	tc.checkTypeExpr(v.TypeExpr)
	if v.AssignExpr != nil {
		tc.checkExpr(v.AssignExpr)
	}

	if v.TypeExpr != nil {
		v.Ty = v.TypeExpr.Type()

		// check the initializer against the declared type
		if v.AssignExpr != nil && v.Ty != nil {
			if initTy := v.AssignExpr.Type(); initTy != nil && !typecheckAssign(v.Ty, initTy) {
				tc.errorf(logging.LMKTyping, v.AssignExpr.Pos(),
					"cannot assign '%s' type to '%s'", initTy.Name.Text, v.Ty.Name.Text)
				return nil
			}
		}
	} else if v.AssignExpr != nil {
		initTy := v.AssignExpr.Type()

		// Copyability check.  A temporary RHS is exempt: copying a temporary
		// is the same as moving it, so with `S` non-copyable,
		// `let s1 = S {...}` stays legal.
		if initTy != nil && hasDecl(v.AssignExpr) && !initTy.Copyable {
			tc.errorf(logging.LMKMove, v.AssignExpr.Pos(),
				"cannot copy non-copyable type '%s'", initTy.Name.Text)
			return nil
		}

		v.Ty = initTy
	}

	// eagerly materialize children decls for struct-typed variables
	if v.Ty != nil && v.Ty.IsStruct() && len(v.Children) == 0 {
		sd := v.Ty.Decl.(*syntax.StructDecl)
		for _, fd := range sd.Fields {
			tc.addField(v, fd.Name, fd.Ty)
		}
	}

	return v.Ty
}

func (tc *typeChecker) checkFuncDecl(f *syntax.FuncDecl) *typing.Type {
	// the return type has to be checked before walking the body
	if f.RetTypeExpr != nil {
		if tc.checkTypeExpr(f.RetTypeExpr) == nil {
			return nil
		}
		f.RetType = f.RetTypeExpr.Type()
	} else {
		f.RetType = tc.VoidType
	}

	for _, p := range f.Params {
		tc.checkVarDecl(p)
	}

	if f.Body != nil {
		tc.pushFunc(f)
		tc.visitCompoundStmt(f.Body)
		tc.popFunc()
	}

	return f.RetType
}

func (tc *typeChecker) checkStructDecl(s *syntax.StructDecl) *typing.Type {
	// create the type before walking the fields so that recursive struct
	// definitions are legal
	s.Ty = typing.NewValueType(s.Name, s)

	for _, f := range s.Fields {
		tc.checkVarDecl(f)
	}

	for _, f := range s.Fields {
		// one non-copyable field makes the whole struct non-copyable; a
		// struct holding a mutable reference cannot be copy-assigned
		if f.Ty != nil && !f.Ty.Copyable {
			s.Ty.Copyable = false
		}
	}

	return s.Ty
}

func (tc *typeChecker) checkEnumDecl(e *syntax.EnumDecl) *typing.Type {
	e.Ty = typing.NewValueType(e.Name, e)

	for _, v := range e.Variants {
		v.Ty = typing.NewValueType(v.Name, v)
		for _, fe := range v.Fields {
			tc.checkTypeExpr(fe)
		}
	}

	return e.Ty
}
