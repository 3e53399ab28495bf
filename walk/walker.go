package walk

import (
	"fmt"

	"ruse/logging"
	"ruse/sem"
	"ruse/syntax"
	"ruse/typing"
)

// Walker is the central analysis context shared by all semantic passes.  It
// owns the scoped symbol tables, the canonical type table, and the builtin
// types, and provides error reporting against the source being analyzed.
type Walker struct {
	src   *syntax.Source
	names *sem.NameTable
	log   *logging.Logger
	lctx  *logging.LogContext

	// declTable holds the declarations visible at the current scope
	declTable *sem.ScopedTable[*sem.Name, sem.Decl]

	// typeTable holds the canonical derived types, keyed by their synthesized
	// names.  The type checker never opens scopes, so derived types are
	// canonical for the whole compilation.
	typeTable *sem.ScopedTable[*sem.Name, *typing.Type]

	// lifetimeTable stores the lifetimes alive at the current program point
	lifetimeTable *sem.ScopedTable[*sem.Lifetime, *sem.Lifetime]

	// borrowTable tracks outstanding borrows per borrowee decl
	borrowTable *sem.ScopedTable[*syntax.VarDecl, sem.BorrowMap]

	// funcStack tracks the enclosing function declarations
	funcStack []*syntax.FuncDecl

	// builtin types, seeded before any pass runs
	VoidType   *typing.Type
	IntType    *typing.Type
	CharType   *typing.Type
	StringType *typing.Type
	BoolType   *typing.Type
}

// NewWalker creates an analysis context for a source file and installs the
// builtin types into the global scope of the decl table
func NewWalker(src *syntax.Source, names *sem.NameTable, log *logging.Logger) *Walker {
	w := &Walker{
		src:           src,
		names:         names,
		log:           log,
		lctx:          &logging.LogContext{FilePath: src.Path},
		declTable:     sem.NewScopedTable[*sem.Name, sem.Decl](),
		typeTable:     sem.NewScopedTable[*sem.Name, *typing.Type](),
		lifetimeTable: sem.NewScopedTable[*sem.Lifetime, *sem.Lifetime](),
		borrowTable:   sem.NewScopedTable[*syntax.VarDecl, sem.BorrowMap](),
	}

	w.VoidType = w.installBuiltin("void")
	w.IntType = w.installBuiltin("int")
	w.CharType = w.installBuiltin("char")
	w.StringType = w.installBuiltin("string")
	w.BoolType = w.installBuiltin("bool")

	return w
}

// installBuiltin pushes a decl for a builtin type into the global scope of
// the decl table so that it is visible from any point in the AST.  Builtins
// are backed by synthesized field-less struct decls, but their types carry no
// decl backreference so they do not act as struct types.
func (w *Walker) installBuiltin(text string) *typing.Type {
	name := w.names.Push(text)
	decl := &syntax.StructDecl{Name: name}
	decl.Ty = typing.NewValueType(name, nil)
	w.declTable.Insert(name, decl)
	return decl.Ty
}

// IsBuiltinType reports whether t is one of the seeded builtin types
func (w *Walker) IsBuiltinType(t *typing.Type) bool {
	return t == w.VoidType || t == w.IntType || t == w.CharType ||
		t == w.StringType || t == w.BoolType
}

// Analyze runs the semantic passes over a parsed file in order: name
// binding, type checking, return checking, and borrow checking.  Each pass
// continues past local errors where possible.  Errors from name binding or
// type checking stop the pipeline since later passes depend on their
// annotations; the borrow checker runs even if the return checker reported
// errors.  The return value indicates whether the file is semantically valid.
func (w *Walker) Analyze(file *syntax.File) bool {
	before := w.log.ErrorCount()

	nb := &nameBinder{w}
	nb.visitFile(file)
	if w.log.ErrorCount() > before {
		return false
	}

	tc := &typeChecker{w}
	tc.visitFile(file)
	if w.log.ErrorCount() > before {
		return false
	}

	rc := &returnChecker{w}
	rc.visitFile(file)

	bc := &borrowChecker{Walker: w}
	bc.visitFile(file)

	return w.log.ErrorCount() == before
}

// scopeOpen opens a scope on all four tables together
func (w *Walker) scopeOpen() {
	w.declTable.Open()
	w.typeTable.Open()
	w.lifetimeTable.Open()
	w.borrowTable.Open()
}

// scopeClose closes the scope opened by the matching scopeOpen
func (w *Walker) scopeClose() {
	w.declTable.Close()
	w.typeTable.Close()
	w.lifetimeTable.Close()
	w.borrowTable.Close()
}

func (w *Walker) pushFunc(f *syntax.FuncDecl) {
	w.funcStack = append(w.funcStack, f)
}

func (w *Walker) popFunc() {
	w.funcStack = w.funcStack[:len(w.funcStack)-1]
}

// currFunc returns the innermost enclosing function declaration, or nil
func (w *Walker) currFunc() *syntax.FuncDecl {
	if len(w.funcStack) == 0 {
		return nil
	}
	return w.funcStack[len(w.funcStack)-1]
}

// errorf reports a compile error at a byte offset in the source
func (w *Walker) errorf(kind int, pos int, format string, args ...interface{}) {
	line, col := w.src.Locate(pos)
	w.log.LogCompileError(
		w.lctx,
		fmt.Sprintf(format, args...),
		kind,
		&logging.TextPosition{StartLn: line, StartCol: col, EndLn: line, EndCol: col + 1},
	)
}
