package walk

import (
	"ruse/logging"
	"ruse/sem"
	"ruse/syntax"
	"ruse/typing"
)

// nameBinder is the first semantic pass: it links every Name to a Decl.  It
// handles variable/function/struct/enum declaration, redefinition and
// undeclared-use checks, and function argument count checks.
type nameBinder struct {
	*Walker
}

func (b *nameBinder) visitFile(f *syntax.File) {
	for _, d := range f.Decls {
		b.visitDecl(d)
	}
}

// declare semantically declares a name.  Redefinition detection is strictly
// scope-local: shadowing an outer binding is allowed.
func (b *nameBinder) declare(pos int, name *sem.Name, decl sem.Decl) bool {
	if found, ok := b.declTable.Find(name); ok && found.Level == b.declTable.Level() {
		b.errorf(logging.LMKDef, pos, "redefinition of '%s'", name.Text)
		return false
	}

	b.declTable.Insert(name, decl)
	return true
}

func (b *nameBinder) visitDecl(d syntax.Decl) {
	switch d := d.(type) {
	case *syntax.VarDecl:
		b.visitVarDecl(d)
	case *syntax.FuncDecl:
		b.visitFuncDecl(d)
	case *syntax.StructDecl:
		b.visitStructDecl(d)
	case *syntax.EnumDecl:
		b.visitEnumDecl(d)
	case *syntax.ExternDecl:
		b.visitFuncDecl(d.Func)
	case *syntax.BadDecl:
	}
}

func (b *nameBinder) visitVarDecl(v *syntax.VarDecl) {
	b.visitTypeExpr(v.TypeExpr)
	if v.AssignExpr != nil {
		b.visitExpr(v.AssignExpr)
	}

	b.declare(v.Pos(), v.Name, v)
}

func (b *nameBinder) visitFuncDecl(f *syntax.FuncDecl) {
	if f.Name == nil || !b.declare(f.Pos(), f.Name, f) {
		return
	}

	// a fresh scope for the parameters, so that they may shadow freely
	b.scopeOpen()
	defer b.scopeClose()

	b.pushFunc(f)
	defer b.popFunc()

	for _, p := range f.Params {
		b.visitVarDecl(p)
	}
	b.visitTypeExpr(f.RetTypeExpr)

	if f.Body != nil {
		b.visitCompoundStmt(f.Body)
	}
}

func (b *nameBinder) visitStructDecl(s *syntax.StructDecl) {
	if s.Name == nil || !b.declare(s.Pos(), s.Name, s) {
		return
	}

	// the decl table is used for checking field redefinition
	b.scopeOpen()
	defer b.scopeClose()

	for _, f := range s.Fields {
		b.visitVarDecl(f)
	}
}

func (b *nameBinder) visitEnumDecl(e *syntax.EnumDecl) {
	if e.Name == nil || !b.declare(e.Pos(), e.Name, e) {
		return
	}

	b.scopeOpen()
	defer b.scopeClose()

	for _, v := range e.Variants {
		for _, fe := range v.Fields {
			b.visitTypeExpr(fe)
		}
	}
}

func (b *nameBinder) visitCompoundStmt(cs *syntax.CompoundStmt) {
	b.scopeOpen()
	defer b.scopeClose()

	for _, s := range cs.Stmts {
		b.visitStmt(s)
	}
}

func (b *nameBinder) visitStmt(s syntax.Stmt) {
	switch s := s.(type) {
	case *syntax.DeclStmt:
		b.visitDecl(s.Decl)
	case *syntax.ExprStmt:
		b.visitExpr(s.Expr)
	case *syntax.AssignStmt:
		b.visitExpr(s.RHS)
		b.visitExpr(s.LHS)
	case *syntax.ReturnStmt:
		if s.Expr != nil {
			b.visitExpr(s.Expr)
		}
	case *syntax.IfStmt:
		b.visitIfStmt(s)
	case *syntax.CompoundStmt:
		b.visitCompoundStmt(s)
	case *syntax.BuiltinStmt, *syntax.BadStmt:
	}
}

func (b *nameBinder) visitIfStmt(is *syntax.IfStmt) {
	b.visitExpr(is.Cond)
	b.visitCompoundStmt(is.Then)
	if is.ElseIf != nil {
		b.visitIfStmt(is.ElseIf)
	}
	if is.Else != nil {
		b.visitCompoundStmt(is.Else)
	}
}

func (b *nameBinder) visitExpr(e syntax.Expr) {
	switch e := e.(type) {
	case *syntax.DeclRefExpr:
		found, ok := b.declTable.Find(e.Name)
		if !ok {
			b.errorf(logging.LMKName, e.Pos(), "use of undeclared identifier '%s'", e.Name.Text)
			return
		}
		e.Decl = found.Value
	case *syntax.CallExpr:
		b.visitCallExpr(e)
	case *syntax.MemberExpr:
		// member names cannot be bound without types (e.g. f().mem), so their
		// binding is deferred to the type checking phase
		b.visitExpr(e.StructExpr)
	case *syntax.StructDefExpr:
		b.visitExpr(e.NameExpr)
		for _, d := range e.Desigs {
			b.visitExpr(d.Init)
		}
	case *syntax.CastExpr:
		b.visitTypeExpr(e.TypeExpr)
		b.visitExpr(e.Target)
	case *syntax.UnaryExpr:
		b.visitExpr(e.Operand)
	case *syntax.BinaryExpr:
		b.visitExpr(e.LHS)
		b.visitExpr(e.RHS)
	case *syntax.TypeExpr:
		b.visitTypeExpr(e)
	case *syntax.IntegerLiteral, *syntax.StringLiteral, *syntax.BadExpr:
	}
}

func (b *nameBinder) visitCallExpr(c *syntax.CallExpr) {
	found, ok := b.declTable.Find(c.FuncName)
	if !ok {
		b.errorf(logging.LMKName, c.Pos(), "undeclared function '%s'", c.FuncName.Text)
		return
	}

	fd, ok := found.Value.(*syntax.FuncDecl)
	if !ok {
		b.errorf(logging.LMKName, c.Pos(), "'%s' is not a function", c.FuncName.Text)
		return
	}
	c.CalleeDecl = fd

	for _, a := range c.Args {
		b.visitExpr(a)
	}

	if len(c.Args) != len(fd.Params) {
		b.errorf(logging.LMKArg, c.Pos(), "'%s' accepts %d arguments, got %d",
			c.FuncName.Text, len(fd.Params), len(c.Args))
	}
}

// visitTypeExpr binds value-kind type expressions to their decls.  Reference
// and pointer forms bind their subexpression only; the derived type itself is
// resolved during type checking.
func (b *nameBinder) visitTypeExpr(t *syntax.TypeExpr) {
	if t == nil {
		return
	}

	if t.Subexpr != nil {
		b.visitTypeExpr(t.Subexpr)
		return
	}

	found, ok := b.declTable.Find(t.Name)
	if ok {
		if td, isTyped := found.Value.(typing.TypedDecl); isTyped {
			t.Decl = td
			return
		}
	}

	b.errorf(logging.LMKName, t.Pos(), "use of undeclared type '%s'", t.Name.Text)
}
