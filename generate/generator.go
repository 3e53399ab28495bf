package generate

import (
	"fmt"
	"os"
	"strings"

	"ruse/syntax"
	"ruse/typing"

	"github.com/pkg/errors"
)

// Generator emits C source for a fully checked AST.  The emitted code is a
// trivial mirror of the tree: structs become C structs, references and
// pointers become C pointers, and builtin statements pass through verbatim.
type Generator struct {
	sb strings.Builder

	// indent is threaded through the statement emitters explicitly
	indent int
}

// NewGenerator creates a C code generator
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate emits the C translation of a checked file and returns it as a
// string
func (g *Generator) Generate(file *syntax.File) string {
	for _, d := range file.Decls {
		g.genToplevel(d)
		g.emit("\n")
	}

	return g.sb.String()
}

// GenerateToFile emits the C translation of a checked file to an output path
func (g *Generator) GenerateToFile(file *syntax.File, outPath string) error {
	text := g.Generate(file)
	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		return errors.Wrap(err, "failed to write output file")
	}
	return nil
}

func (g *Generator) emit(format string, args ...interface{}) {
	fmt.Fprintf(&g.sb, format, args...)
}

func (g *Generator) emitIndent() {
	g.emit("%s", strings.Repeat(" ", g.indent))
}

// ctype renders the C spelling of a canonical type
func ctype(t *typing.Type) string {
	if t == nil {
		return "void"
	}

	switch t.Kind {
	case typing.KindValue:
		switch t.Name.Text {
		case "void", "int", "char":
			return t.Name.Text
		case "string":
			return "char*"
		case "bool":
			return "int"
		default:
			return "struct " + t.Name.Text
		}
	default:
		return ctype(t.Referee) + "*"
	}
}

func (g *Generator) genToplevel(d syntax.Decl) {
	switch d := d.(type) {
	case *syntax.FuncDecl:
		g.genFuncDecl(d)
	case *syntax.StructDecl:
		g.genStructDecl(d)
	case *syntax.EnumDecl:
		// enum variants are not constructible yet; emit a plain tag enum
		g.genEnumDecl(d)
	case *syntax.ExternDecl:
		g.genFuncHeader(d.Func)
		g.emit(";\n")
	}
}

func (g *Generator) genFuncHeader(f *syntax.FuncDecl) {
	g.emit("%s %s(", ctype(f.RetType), f.Name.Text)
	for i, p := range f.Params {
		if i > 0 {
			g.emit(", ")
		}
		g.emit("%s %s", ctype(p.Ty), p.Name.Text)
	}
	g.emit(")")
}

func (g *Generator) genFuncDecl(f *syntax.FuncDecl) {
	g.genFuncHeader(f)
	g.emit(" ")
	g.genCompoundStmt(f.Body)
	g.emit("\n")
}

func (g *Generator) genStructDecl(s *syntax.StructDecl) {
	g.emit("struct %s {\n", s.Name.Text)
	g.indent += 2
	for _, f := range s.Fields {
		g.emitIndent()
		g.emit("%s %s;\n", ctype(f.Ty), f.Name.Text)
	}
	g.indent -= 2
	g.emit("};\n")
}

func (g *Generator) genEnumDecl(e *syntax.EnumDecl) {
	g.emit("enum %s {\n", e.Name.Text)
	g.indent += 2
	for i, v := range e.Variants {
		g.emitIndent()
		g.emit("%s_%s", e.Name.Text, v.Name.Text)
		if i < len(e.Variants)-1 {
			g.emit(",")
		}
		g.emit("\n")
	}
	g.indent -= 2
	g.emit("};\n")
}

func (g *Generator) genCompoundStmt(cs *syntax.CompoundStmt) {
	g.emit("{\n")
	g.indent += 2
	for _, s := range cs.Stmts {
		g.genStmt(s)
	}
	g.indent -= 2
	g.emitIndent()
	g.emit("}")
}

func (g *Generator) genStmt(s syntax.Stmt) {
	switch s := s.(type) {
	case *syntax.DeclStmt:
		g.genDeclStmt(s)
	case *syntax.ExprStmt:
		g.emitIndent()
		g.genExpr(s.Expr)
		g.emit(";\n")
	case *syntax.AssignStmt:
		// moves mirror to plain assignment; invalidation of the source was
		// already enforced by the checker
		g.emitIndent()
		g.genExpr(s.LHS)
		g.emit(" = ")
		g.genExpr(s.RHS)
		g.emit(";\n")
	case *syntax.ReturnStmt:
		g.emitIndent()
		if s.Expr == nil {
			g.emit("return;\n")
		} else {
			g.emit("return ")
			g.genExpr(s.Expr)
			g.emit(";\n")
		}
	case *syntax.IfStmt:
		g.emitIndent()
		g.genIfStmt(s)
		g.emit("\n")
	case *syntax.CompoundStmt:
		g.emitIndent()
		g.genCompoundStmt(s)
		g.emit("\n")
	case *syntax.BuiltinStmt:
		// pass the text through, minus the leading '#'
		g.emitIndent()
		g.emit("%s;\n", strings.TrimPrefix(s.Text, "#"))
	}
}

func (g *Generator) genDeclStmt(ds *syntax.DeclStmt) {
	switch d := ds.Decl.(type) {
	case *syntax.VarDecl:
		g.emitIndent()
		g.emit("%s %s", ctype(d.Ty), d.Name.Text)
		if d.AssignExpr != nil {
			g.emit(" = ")
			g.genExpr(d.AssignExpr)
		}
		g.emit(";\n")
	case *syntax.StructDecl:
		g.emitIndent()
		g.genStructDecl(d)
	case *syntax.FuncDecl:
		g.emitIndent()
		g.genFuncDecl(d)
	}
}

func (g *Generator) genIfStmt(is *syntax.IfStmt) {
	// a parenthesized condition already supplies the parens C requires
	cond := is.Cond
	if u, ok := cond.(*syntax.UnaryExpr); ok && u.Kind == syntax.UnaryParen {
		cond = u.Operand
	}

	g.emit("if (")
	g.genExpr(cond)
	g.emit(") ")
	g.genCompoundStmt(is.Then)

	if is.ElseIf != nil {
		g.emit(" else ")
		g.genIfStmt(is.ElseIf)
	} else if is.Else != nil {
		g.emit(" else ")
		g.genCompoundStmt(is.Else)
	}
}

func (g *Generator) genExpr(e syntax.Expr) {
	switch e := e.(type) {
	case *syntax.IntegerLiteral:
		g.emit("%d", e.Value)
	case *syntax.StringLiteral:
		g.emit("%s", e.Value)
	case *syntax.DeclRefExpr:
		g.emit("%s", e.Name.Text)
	case *syntax.CallExpr:
		g.emit("%s(", e.FuncName.Text)
		for i, a := range e.Args {
			if i > 0 {
				g.emit(", ")
			}
			g.genExpr(a)
		}
		g.emit(")")
	case *syntax.MemberExpr:
		g.genExpr(e.StructExpr)
		g.emit(".%s", e.MemberName.Text)
	case *syntax.StructDefExpr:
		g.emit("(%s){", ctype(e.Type()))
		for i, d := range e.Desigs {
			if i > 0 {
				g.emit(", ")
			}
			g.emit(".%s = ", d.Name.Text)
			g.genExpr(d.Init)
		}
		g.emit("}")
	case *syntax.CastExpr:
		g.emit("(%s)(", ctype(e.TypeExpr.Type()))
		g.genExpr(e.Target)
		g.emit(")")
	case *syntax.UnaryExpr:
		switch e.Kind {
		case syntax.UnaryParen:
			g.emit("(")
			g.genExpr(e.Operand)
			g.emit(")")
		case syntax.UnaryRef, syntax.UnaryVarRef:
			g.emit("&")
			g.genExpr(e.Operand)
		case syntax.UnaryDeref:
			g.emit("*")
			g.genExpr(e.Operand)
		}
	case *syntax.BinaryExpr:
		g.genExpr(e.LHS)
		g.emit(" %s ", e.Op.Value)
		g.genExpr(e.RHS)
	}
}
