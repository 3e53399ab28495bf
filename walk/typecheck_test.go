package walk

import (
	"testing"

	"ruse/logging"
	"ruse/sem"
	"ruse/syntax"
	"ruse/typing"
)

func TestMutableReferencePromotion(t *testing.T) {
	res := analyze(t, "fn f() { var a = 1; let r: &var int = &var a; let s: &int = r; }")
	expectOK(t, res)
}

func TestImmutableToMutableReferenceRejected(t *testing.T) {
	res := analyze(t, "fn f() { let a = 1; let r: &int = &a; let s: &var int = r; }")
	expectErrors(t, res, "cannot assign '&int' type to '&var int'")
}

// typecheckAssign is reflexive on identical types, admits Ref <- VarRef, and
// rejects VarRef <- Ref, recursively through reference nesting
func TestTypecheckAssignMatrix(t *testing.T) {
	nt := sem.NewNameTable()
	intTy := typing.NewValueType(nt.Push("int"), nil)

	derive := func(kind typing.TypeKind, ref *typing.Type) *typing.Type {
		return typing.NewDerivedType(kind, typing.DerivedTypeName(nt, kind, ref.Name), ref)
	}

	ref := derive(typing.KindRef, intTy)
	varRef := derive(typing.KindVarRef, intTy)
	refRef := derive(typing.KindRef, ref)
	refVarRef := derive(typing.KindRef, varRef)

	tests := []struct {
		name     string
		lhs, rhs *typing.Type
		want     bool
	}{
		{"int <- int", intTy, intTy, true},
		{"&int <- &int", ref, ref, true},
		{"&int <- &var int", ref, varRef, true},
		{"&var int <- &int", varRef, ref, false},
		{"&var int <- &var int", varRef, varRef, true},
		{"int <- &int", intTy, ref, false},
		{"&&int <- &&var int", refRef, refVarRef, true},
		{"&&var int <- &&int", refVarRef, refRef, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := typecheckAssign(tt.lhs, tt.rhs); got != tt.want {
				t.Errorf("typecheckAssign = %v, want %v", got, tt.want)
			}
		})
	}
}

// derived types are canonical: every occurrence of `&T` in a compilation
// resolves to the same Type object
func TestDerivedTypesAreCanonical(t *testing.T) {
	res := analyze(t, `
fn g(p: &int) -> &int { return p }
fn f(q: &int) {
	let r: &int = g(q)
}
`)
	expectOK(t, res)

	g := fn(t, res, "g")
	f := fn(t, res, "f")

	p := g.Params[0]
	q := f.Params[0]
	r := f.Body.Stmts[0].(*syntax.DeclStmt).Decl.(*syntax.VarDecl)

	if p.Ty == nil || p.Ty != q.Ty || q.Ty != r.Ty {
		t.Error("all &int occurrences should share one canonical Type")
	}
	if g.RetType != p.Ty {
		t.Error("return type &int should be the same canonical Type")
	}
}

func TestEveryExpressionTyped(t *testing.T) {
	res := analyze(t, `
struct S { a: int }
fn g(x: int) -> int { return x + 1 }
fn f() -> int {
	var s = S { .a = 2 }
	let p = &s
	return g(s.a) + (*p).a
}
`)
	expectOK(t, res)

	var untyped int
	var walkExpr func(e syntax.Expr)
	walkExpr = func(e syntax.Expr) {
		if e.Type() == nil {
			untyped++
		}
		switch e := e.(type) {
		case *syntax.CallExpr:
			for _, a := range e.Args {
				walkExpr(a)
			}
		case *syntax.MemberExpr:
			walkExpr(e.StructExpr)
		case *syntax.StructDefExpr:
			for _, d := range e.Desigs {
				walkExpr(d.Init)
			}
		case *syntax.UnaryExpr:
			walkExpr(e.Operand)
		case *syntax.BinaryExpr:
			walkExpr(e.LHS)
			walkExpr(e.RHS)
		}
	}

	f := fn(t, res, "f")
	for _, s := range f.Body.Stmts {
		switch s := s.(type) {
		case *syntax.DeclStmt:
			if v, ok := s.Decl.(*syntax.VarDecl); ok && v.AssignExpr != nil {
				walkExpr(v.AssignExpr)
			}
		case *syntax.ReturnStmt:
			walkExpr(s.Expr)
		}
	}

	if untyped != 0 {
		t.Errorf("%d expressions left untyped after a successful check", untyped)
	}
}

func TestBinaryExprTypeMismatch(t *testing.T) {
	res := analyze(t, `fn f() { let x = 1 + "a" }`)
	expectErrors(t, res, "incompatible types to binary expression ('int' and 'string')")
}

func TestIntegerAndStringLiterals(t *testing.T) {
	res := analyze(t, `
fn f() {
	let i = 1
	let s = "hello"
}
`)
	expectOK(t, res)

	f := fn(t, res, "f")
	i := f.Body.Stmts[0].(*syntax.DeclStmt).Decl.(*syntax.VarDecl)
	s := f.Body.Stmts[1].(*syntax.DeclStmt).Decl.(*syntax.VarDecl)

	if i.Ty != res.walker.IntType {
		t.Error("integer literal should type as int")
	}
	if s.Ty != res.walker.StringType {
		t.Error("string literal should type as string")
	}
}

func TestAssignToRvalue(t *testing.T) {
	res := analyze(t, "fn f() { 3 = 4 }")
	expectErrors(t, res, "cannot assign to an rvalue")
}

func TestAssignToImmutableVariable(t *testing.T) {
	res := analyze(t, "fn f() { let a = 1; a = 2 }")
	expectErrors(t, res, "'a' is not declared as mutable")
}

func TestAssignThroughImmutableReference(t *testing.T) {
	res := analyze(t, "fn f() { var a = 1; let p = &a; *p = 2 }")
	expectErrors(t, res, "'p' is not a mutable reference")
}

func TestAssignThroughMutableReference(t *testing.T) {
	res := analyze(t, "fn f() { var a = 1; let p = &var a; *p = 2 }")
	expectOK(t, res)
}

func TestMemberMutabilityInheritedFromRoot(t *testing.T) {
	res := analyze(t, `
struct S { a: int }
fn f() {
	let s = S { .a = 1 }
	s.a = 2
}
`)
	expectErrors(t, res, "'s' is not declared as mutable")
}

func TestAddressOfRvalue(t *testing.T) {
	res := analyze(t, "fn f() { let p = &3 }")
	expectErrors(t, res, "cannot take address of an rvalue")
}

func TestMutableBorrowOfImmutable(t *testing.T) {
	res := analyze(t, "fn f() { let a = 1; let p = &var a }")
	expectErrors(t, res, "cannot borrow 'a' as mutable because it is declared immutable")
}

func TestDerefOfNonReference(t *testing.T) {
	res := analyze(t, "fn f() { let x = 1; let y = *x }")
	expectErrors(t, res, "dereference of a non-reference type 'int'")
}

func TestMemberOfNonStruct(t *testing.T) {
	res := analyze(t, "fn f() { let x = 1; let y = x.a }")
	expectErrors(t, res, "type 'int' is not a struct")
}

func TestUnknownMember(t *testing.T) {
	res := analyze(t, `
struct S { a: int }
fn f() {
	let s = S { .a = 1 }
	let y = s.b
}
`)
	expectErrors(t, res, "'b' is not a member of 'S'")
}

func TestStructLiteralUnknownField(t *testing.T) {
	res := analyze(t, `
struct S { a: int }
fn f() {
	let s = S { .b = 1 }
}
`)
	expectErrors(t, res, "'b' is not a member of 'S'")
}

func TestStructLiteralFieldTypeMismatch(t *testing.T) {
	res := analyze(t, `
struct S { a: int }
fn f() {
	let s = S { .a = "x" }
}
`)
	expectErrors(t, res, "cannot assign 'string' type to 'int'")
}

func TestStructLiteralOfNonStruct(t *testing.T) {
	res := analyze(t, `
enum E { A }
fn f() {
	let e = E { .a = 1 }
}
`)
	expectErrors(t, res, "type 'E' is not a struct")
}

func TestCallArgumentTypeMismatch(t *testing.T) {
	res := analyze(t, `
fn g(a: int) { }
fn f() { g("s") }
`)
	expectErrors(t, res, "argument type mismatch: expects 'int', got 'string'")
}

func TestReturnTypeMismatch(t *testing.T) {
	res := analyze(t, `fn f() -> int { return "s" }`)
	expectErrors(t, res, "return type mismatch: function returns 'int', but got 'string'")
}

func TestReturnValueFromVoidFunction(t *testing.T) {
	res := analyze(t, "fn f() { return 1 }")
	expectErrors(t, res, "function 'f' should not return a value")
}

func TestBareReturnFromValueFunction(t *testing.T) {
	res := analyze(t, "fn f() -> int { return }")
	expectErrors(t, res, "return type mismatch: function returns 'int', but got 'void'")
}

func TestCastIsUnchecked(t *testing.T) {
	res := analyze(t, `
fn f() {
	let c = [char](65)
	let i = [int](c)
}
`)
	expectOK(t, res)

	f := fn(t, res, "f")
	c := f.Body.Stmts[0].(*syntax.DeclStmt).Decl.(*syntax.VarDecl)
	if c.Ty != res.walker.CharType {
		t.Error("cast should take the target type")
	}
}

func TestCopyNonCopyableVarRef(t *testing.T) {
	res := analyze(t, `
fn f() {
	var a = 1
	let p = &var a
	let q = p
}
`)
	expectErrors(t, res, "cannot copy non-copyable type '&var int'")
}

func TestStructCopyabilityPropagates(t *testing.T) {
	res := analyze(t, `
struct Wrap { r: &var int }
fn f(p: &var int) {
	let w1 = Wrap { .r = p }
	let w2 = w1
}
`)
	expectErrors(t, res, "cannot copy non-copyable type 'Wrap'")
}

func TestCopyableStructAssignmentOK(t *testing.T) {
	res := analyze(t, `
struct Pos { x: int, y: int }
fn f() {
	var a = Pos { .x = 1, .y = 2 }
	var b = Pos { .x = 3, .y = 4 }
	a = b
}
`)
	expectOK(t, res)
}

func TestCopyNonCopyableInAssignStmt(t *testing.T) {
	res := analyze(t, `
struct Wrap { r: &var int }
fn f(p: &var int, q: &var int) {
	var w1 = Wrap { .r = p }
	var w2 = Wrap { .r = q }
	w1 = w2
}
`)
	expectErrors(t, res, "cannot copy non-copyable type 'Wrap'")
}

func TestMoveAssignmentSkipsCopyCheck(t *testing.T) {
	res := analyze(t, `
struct Wrap { r: &var int }
fn f(p: &var int, q: &var int) {
	var w1 = Wrap { .r = p }
	var w2 = Wrap { .r = q }
	w1 <- w2
}
`)
	expectOK(t, res)
}

func TestFunctionIsNotFirstClass(t *testing.T) {
	res := analyze(t, `
fn g() { }
fn f() { let x = g }
`)
	expectErrors(t, res, "'g' is not a first-class value")
}

func TestChildDeclsMaterializedPerRoot(t *testing.T) {
	res := analyze(t, `
struct S { a: int }
fn f() {
	var x = S { .a = 1 }
	var y = S { .a = 2 }
	x.a = 3
	y.a = 4
}
`)
	expectOK(t, res)

	f := fn(t, res, "f")
	x := f.Body.Stmts[0].(*syntax.DeclStmt).Decl.(*syntax.VarDecl)
	y := f.Body.Stmts[1].(*syntax.DeclStmt).Decl.(*syntax.VarDecl)

	xa := f.Body.Stmts[2].(*syntax.AssignStmt).LHS.(*syntax.MemberExpr).Decl
	ya := f.Body.Stmts[3].(*syntax.AssignStmt).LHS.(*syntax.MemberExpr).Decl

	if xa == nil || ya == nil {
		t.Fatal("member l-values should carry decls")
	}
	if xa == ya {
		t.Error("x.a and y.a must resolve to distinct decls")
	}
	if xa.Parent != x || ya.Parent != y {
		t.Error("children should hang off their own roots")
	}
}

func TestRecursiveStructIsLegal(t *testing.T) {
	res := analyze(t, `
struct Node {
	value: int,
	next: &Node,
}
`)
	expectOK(t, res)
}

// diagnostics carry 1-based positions in the machine format
func TestDiagnosticFormat(t *testing.T) {
	log := logging.NewLogger("silent")
	src := syntax.NewSource("prog.ruse", []byte("fn f() {\n\tlet x = y\n}\n"))
	names := sem.NewNameTable()
	file := syntax.NewParser(src, names, log).Parse()
	NewWalker(src, names, log).Analyze(file)

	if len(log.Errors()) != 1 {
		t.Fatalf("got %d errors", len(log.Errors()))
	}
	got := log.Errors()[0].String()
	want := "prog.ruse:2:10: error: use of undeclared identifier 'y'"
	if got != want {
		t.Errorf("diagnostic = %q, want %q", got, want)
	}
}
