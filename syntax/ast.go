package syntax

import (
	"ruse/sem"
	"ruse/typing"
)

// The AST is a tagged-variant tree.  Nodes carry byte-offset positions for
// diagnostics and reserve annotation slots that the analysis passes fill in:
// the name binder writes decl links, the type checker writes types and
// materialized child decls, the borrow checker writes lifetimes.  Each slot
// has a single writing pass; later passes only read.

// Node is the interface implemented by every AST node
type Node interface {
	// Pos returns the byte offset of the node's first character
	Pos() int

	// End returns the byte offset one past the node's last character
	End() int
}

type nodeBase struct {
	PosStart int
	PosEnd   int
}

func (n *nodeBase) Pos() int { return n.PosStart }
func (n *nodeBase) End() int { return n.PosEnd }

// SetRange records the source extent of a node
func (n *nodeBase) SetRange(pos, end int) {
	n.PosStart = pos
	n.PosEnd = end
}

// File is the root node: a group of toplevel declarations
type File struct {
	nodeBase

	Decls []Decl
}

// =============
//   Statement
// =============

// Stmt is the interface implemented by all statement nodes
type Stmt interface {
	Node
	stmtNode()
}

type stmtBase struct{ nodeBase }

func (*stmtBase) stmtNode() {}

// DeclStmt is a declaration in statement position, e.g. `let a = 1`
type DeclStmt struct {
	stmtBase

	Decl Decl
}

// ExprStmt is an expression in statement position
type ExprStmt struct {
	stmtBase

	Expr Expr
}

// AssignStmt is `lhs = rhs` (copy) or `lhs <- rhs` (move).  Both sides are
// parsed as generic expressions; l-value-ness of the LHS depends on types and
// is checked in the semantic phase.
type AssignStmt struct {
	stmtBase

	LHS  Expr
	RHS  Expr
	Move bool
}

// ReturnStmt is `return` with an optional value
type ReturnStmt struct {
	stmtBase

	Expr Expr // may be nil
}

// IfStmt represents an if-elseif-else chain.  An `else if` is a separate
// IfStmt embedded under the else position.
type IfStmt struct {
	stmtBase

	Cond   Expr
	Then   *CompoundStmt
	ElseIf *IfStmt       // `else if ...`, or nil
	Else   *CompoundStmt // `else { ... }`, or nil
}

// CompoundStmt is a braced, scoped block of statements
type CompoundStmt struct {
	stmtBase

	Stmts []Stmt
}

// BuiltinStmt is a `#`-prefixed line passed through to the emitted code
type BuiltinStmt struct {
	stmtBase

	Text string
}

// BadStmt is a placeholder for a statement that failed to parse
type BadStmt struct {
	stmtBase
}

// ==============
//   Expression
// ==============

// Expr is the interface implemented by all expression nodes.  Every
// expression carries a type annotation slot filled by the type checker;
// a nil type after checking means the expression failed to check.
type Expr interface {
	Node
	Type() *typing.Type
	SetType(ty *typing.Type)
	exprNode()
}

type exprBase struct {
	nodeBase

	Ty *typing.Type
}

func (e *exprBase) Type() *typing.Type      { return e.Ty }
func (e *exprBase) SetType(ty *typing.Type) { e.Ty = ty }
func (*exprBase) exprNode()                 {}

// IntegerLiteral is an integer constant
type IntegerLiteral struct {
	exprBase

	Value int64
}

// StringLiteral is a double-quoted string constant
type StringLiteral struct {
	exprBase

	Value string
}

// DeclRefExpr is a bare identifier.  The name binder resolves Decl; whether
// the identifier denotes a variable or a struct/enum name is only decided by
// the type checker.
type DeclRefExpr struct {
	exprBase

	Name *sem.Name
	Decl sem.Decl
}

// CallExpr is a function call `f(a, b)`
type CallExpr struct {
	exprBase

	FuncName *sem.Name
	Args     []Expr

	// CalleeDecl is resolved by the name binder
	CalleeDecl *FuncDecl
}

// MemberExpr is `struct_expr.member`.  If the struct side is an l-value the
// member is one too, and Decl points at the child VarDecl materialized under
// the struct side's decl.
type MemberExpr struct {
	exprBase

	StructExpr Expr
	MemberName *sem.Name

	Decl *VarDecl
}

// StructFieldDesig is one `.field = expr` designator in a struct literal
type StructFieldDesig struct {
	Name *sem.Name
	Init Expr
}

// StructDefExpr is a struct literal `T { .f = e, ... }`
type StructDefExpr struct {
	exprBase

	NameExpr Expr
	Desigs   []StructFieldDesig
}

// CastExpr is `[T](e)`
type CastExpr struct {
	exprBase

	TypeExpr *TypeExpr
	Target   Expr
}

// UnaryKind discriminates the unary expression forms
type UnaryKind int

// Enumeration of unary expression kinds
const (
	UnaryParen  UnaryKind = iota // (e)
	UnaryRef                     // &e
	UnaryVarRef                  // &var e
	UnaryDeref                   // *e
)

// UnaryExpr is a parenthesized, borrowing, or dereferencing expression
type UnaryExpr struct {
	exprBase

	Kind    UnaryKind
	Operand Expr

	// TempDecl is a synthesized VarDecl attached to a deref so that `*e` is
	// assignable iff the reference is mutable.  It is never inserted into the
	// scoped decl table: temporaries have no name to query them by.
	TempDecl *VarDecl
}

// BinaryExpr is a binary operation `lhs op rhs`
type BinaryExpr struct {
	exprBase

	LHS Expr
	Op  Token
	RHS Expr
}

// TypeExpr is the syntactic form of a type: `T`, `&T`, `&var T`, or `*T`,
// optionally carrying a lifetime annotation (`&.a T`)
type TypeExpr struct {
	exprBase

	Kind          typing.TypeKind
	Name          *sem.Name
	Mut           bool
	LifetimeAnnot *sem.Name
	Subexpr       *TypeExpr // `T` part of `&T`; nil for value kinds

	// Decl is bound by the name binder for value kinds
	Decl sem.Decl
}

// BadExpr is a placeholder for an expression that failed to parse
type BadExpr struct {
	exprBase
}

// ================
//   Declarations
// ================

// Decl is the interface implemented by all declaration nodes
type Decl interface {
	Node
	DeclName() *sem.Name
	declNode()
}

type declBase struct{ nodeBase }

func (*declBase) declNode() {}

// VarDeclKind discriminates the syntactic positions a variable can be
// declared in
type VarDeclKind int

// Enumeration of variable declaration kinds
const (
	VarLocal VarDeclKind = iota
	VarParam
	VarField
)

// ChildField pairs a field name with the child VarDecl materialized for it
type ChildField struct {
	Name *sem.Name
	Decl *VarDecl
}

// VarDecl declares a variable, parameter, or struct field.  Child decls are
// materialized lazily under struct-typed variables so that `x.a` and `y.a`
// resolve to distinct decls.
type VarDecl struct {
	declBase

	Name       *sem.Name
	Kind       VarDeclKind
	Mut        bool
	TypeExpr   *TypeExpr // nil means the type is inferred from AssignExpr
	AssignExpr Expr      // initial value, or nil

	// annotations
	Ty       *typing.Type
	Parent   *VarDecl
	Children []ChildField

	// Lifetime is the exact lifetime of this variable itself
	Lifetime *sem.Lifetime

	// BorroweeLifetime is, for reference-typed variables, the lifetime of the
	// value the reference points at
	BorroweeLifetime *sem.Lifetime

	Moved    bool
	Borrowed bool
}

func (v *VarDecl) DeclName() *sem.Name { return v.Name }

// TypeMaybe implements typing.TypedDecl
func (v *VarDecl) TypeMaybe() *typing.Type { return v.Ty }

// Child returns the materialized child decl for a field name, or nil
func (v *VarDecl) Child(name *sem.Name) *VarDecl {
	for _, c := range v.Children {
		if c.Name == name {
			return c.Decl
		}
	}
	return nil
}

// Root follows parent links to the root of a member chain.  Borrowing from a
// field borrows from the whole struct, so lifetimes are taken from the root.
func (v *VarDecl) Root() *VarDecl {
	r := v
	for r.Parent != nil {
		r = r.Parent
	}
	return r
}

// FuncDecl declares a function.  A nil body means the function was declared
// `extern`.
type FuncDecl struct {
	declBase

	Name        *sem.Name
	Params      []*VarDecl
	RetTypeExpr *TypeExpr // nil means void
	Body        *CompoundStmt

	// annotations
	RetType          *typing.Type
	ScopeLifetime    *sem.Lifetime
	RetLifetimeAnnot *sem.Name
}

func (f *FuncDecl) DeclName() *sem.Name { return f.Name }

// StructDecl declares a struct type
type StructDecl struct {
	declBase

	Name   *sem.Name
	Fields []*VarDecl

	Ty *typing.Type
}

func (s *StructDecl) DeclName() *sem.Name { return s.Name }

// TypeMaybe implements typing.TypedDecl
func (s *StructDecl) TypeMaybe() *typing.Type { return s.Ty }

// FieldByName implements typing.StructLike
func (s *StructDecl) FieldByName(name *sem.Name) typing.TypedDecl {
	for _, f := range s.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Field returns the field decl with the given name, or nil
func (s *StructDecl) Field(name *sem.Name) *VarDecl {
	for _, f := range s.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// EnumVariantDecl declares one variant of an enum with positional field types
type EnumVariantDecl struct {
	declBase

	Name   *sem.Name
	Fields []*TypeExpr

	Ty *typing.Type
}

func (v *EnumVariantDecl) DeclName() *sem.Name { return v.Name }

// TypeMaybe implements typing.TypedDecl
func (v *EnumVariantDecl) TypeMaybe() *typing.Type { return v.Ty }

// EnumDecl declares an enum type
type EnumDecl struct {
	declBase

	Name     *sem.Name
	Variants []*EnumVariantDecl

	Ty *typing.Type
}

func (e *EnumDecl) DeclName() *sem.Name { return e.Name }

// TypeMaybe implements typing.TypedDecl
func (e *EnumDecl) TypeMaybe() *typing.Type { return e.Ty }

// ExternDecl wraps a body-less function header declared `extern`
type ExternDecl struct {
	declBase

	Func *FuncDecl
}

func (e *ExternDecl) DeclName() *sem.Name { return e.Func.Name }

// BadDecl is a placeholder for a declaration that failed to parse
type BadDecl struct {
	declBase
}

func (*BadDecl) DeclName() *sem.Name { return nil }
