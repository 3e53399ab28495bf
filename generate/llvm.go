package generate

import (
	"fmt"
	"os"
	"strings"

	"ruse/syntax"
	"ruse/typing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"
)

// LLVMGenerator lowers a fully checked AST into LLVM IR source text.  The
// resulting `.ll` file can be fed to `opt`/`llc` to produce native code,
// which avoids depending on the LLVM C bindings entirely.
type LLVMGenerator struct {
	m *ir.Module

	// fns maps function decls to their emitted functions
	fns map[*syntax.FuncDecl]*ir.Func

	// vars maps variable decls to their stack slots
	vars map[*syntax.VarDecl]value.Value

	// lltypes caches the lowering of canonical types
	lltypes map[*typing.Type]types.Type

	f   *ir.Func
	cur *ir.Block

	strCount int
}

// NewLLVMGenerator creates an LLVM IR generator
func NewLLVMGenerator() *LLVMGenerator {
	return &LLVMGenerator{
		m:       ir.NewModule(),
		fns:     make(map[*syntax.FuncDecl]*ir.Func),
		vars:    make(map[*syntax.VarDecl]value.Value),
		lltypes: make(map[*typing.Type]types.Type),
	}
}

// Generate lowers a checked file and returns the module's IR text
func (g *LLVMGenerator) Generate(file *syntax.File) string {
	// declare struct typedefs up front so that reference fields can point
	// back at their own struct
	for _, d := range file.Decls {
		if sd, ok := d.(*syntax.StructDecl); ok && sd.Ty != nil {
			st := types.NewStruct()
			g.m.NewTypeDef(sd.Name.Text, st)
			g.lltypes[sd.Ty] = st
		}
	}
	for _, d := range file.Decls {
		if sd, ok := d.(*syntax.StructDecl); ok && sd.Ty != nil {
			st := g.lltypes[sd.Ty].(*types.StructType)
			for _, f := range sd.Fields {
				st.Fields = append(st.Fields, g.lltype(f.Ty))
			}
		}
	}

	// declare all function headers before any body so calls resolve
	for _, d := range file.Decls {
		switch d := d.(type) {
		case *syntax.FuncDecl:
			g.declareFunc(d)
		case *syntax.ExternDecl:
			g.declareFunc(d.Func)
		}
	}

	for _, d := range file.Decls {
		if fd, ok := d.(*syntax.FuncDecl); ok && fd.Body != nil {
			g.genFuncBody(fd)
		}
	}

	return g.m.String()
}

// GenerateToFile lowers a checked file and writes the IR text to a path
func (g *LLVMGenerator) GenerateToFile(file *syntax.File, outPath string) error {
	text := g.Generate(file)
	if err := os.WriteFile(outPath, []byte(text), 0o644); err != nil {
		return errors.Wrap(err, "failed to write LLVM IR file")
	}
	return nil
}

// lltype lowers a canonical type to its LLVM representation
func (g *LLVMGenerator) lltype(t *typing.Type) types.Type {
	if t == nil {
		return types.Void
	}
	if ll, ok := g.lltypes[t]; ok {
		return ll
	}

	var ll types.Type
	switch t.Kind {
	case typing.KindValue:
		switch t.Name.Text {
		case "void":
			ll = types.Void
		case "int":
			ll = types.I64
		case "char":
			ll = types.I8
		case "bool":
			ll = types.I1
		case "string":
			ll = types.NewPointer(types.I8)
		default:
			// enums lower to a plain tag for now
			ll = types.I32
		}
	default:
		ll = types.NewPointer(g.lltype(t.Referee))
	}

	g.lltypes[t] = ll
	return ll
}

func (g *LLVMGenerator) declareFunc(f *syntax.FuncDecl) {
	var params []*ir.Param
	for _, p := range f.Params {
		params = append(params, ir.NewParam(p.Name.Text, g.lltype(p.Ty)))
	}

	g.fns[f] = g.m.NewFunc(f.Name.Text, g.lltype(f.RetType), params...)
}

func (g *LLVMGenerator) genFuncBody(f *syntax.FuncDecl) {
	g.f = g.fns[f]
	g.cur = g.f.NewBlock("entry")

	// spill parameters into stack slots so they are addressable like locals
	for i, p := range f.Params {
		slot := g.cur.NewAlloca(g.lltype(p.Ty))
		g.cur.NewStore(g.f.Params[i], slot)
		g.vars[p] = slot
	}

	g.genCompoundStmt(f.Body)

	// close the function off: a void function returns implicitly, and for a
	// value-returning one the return checker has proven the trailing block
	// unreachable
	if g.cur != nil {
		if f.RetType != nil && f.RetType.Name.Text == "void" {
			g.cur.NewRet(nil)
		} else {
			g.cur.NewUnreachable()
		}
		g.cur = nil
	}
}

func (g *LLVMGenerator) genCompoundStmt(cs *syntax.CompoundStmt) {
	for _, s := range cs.Stmts {
		g.genStmt(s)
	}
}

func (g *LLVMGenerator) genStmt(s syntax.Stmt) {
	if g.cur == nil {
		// unreachable code after a return
		return
	}

	switch s := s.(type) {
	case *syntax.DeclStmt:
		if v, ok := s.Decl.(*syntax.VarDecl); ok {
			g.genVarDecl(v)
		}
	case *syntax.ExprStmt:
		g.genValue(s.Expr)
	case *syntax.AssignStmt:
		val := g.genValue(s.RHS)
		g.cur.NewStore(val, g.genAddr(s.LHS))
	case *syntax.ReturnStmt:
		if s.Expr == nil {
			g.cur.NewRet(nil)
		} else {
			g.cur.NewRet(g.genValue(s.Expr))
		}
		g.cur = nil
	case *syntax.IfStmt:
		g.genIfStmt(s)
	case *syntax.CompoundStmt:
		g.genCompoundStmt(s)
	case *syntax.BuiltinStmt:
		// builtin lines are C text; they have no LLVM lowering
	}
}

func (g *LLVMGenerator) genVarDecl(v *syntax.VarDecl) {
	slot := g.cur.NewAlloca(g.lltype(v.Ty))
	g.vars[v] = slot

	if v.AssignExpr != nil {
		g.cur.NewStore(g.genValue(v.AssignExpr), slot)
	}
}

func (g *LLVMGenerator) genIfStmt(is *syntax.IfStmt) {
	cond := g.genCond(is.Cond)

	thenBlk := g.f.NewBlock("")
	joinBlk := g.f.NewBlock("")
	elseTarget := joinBlk

	var elseBlk *ir.Block
	if is.ElseIf != nil || is.Else != nil {
		elseBlk = g.f.NewBlock("")
		elseTarget = elseBlk
	}

	g.cur.NewCondBr(cond, thenBlk, elseTarget)

	g.cur = thenBlk
	g.genCompoundStmt(is.Then)
	if g.cur != nil {
		g.cur.NewBr(joinBlk)
	}

	if elseBlk != nil {
		g.cur = elseBlk
		if is.ElseIf != nil {
			g.genIfStmt(is.ElseIf)
		} else {
			g.genCompoundStmt(is.Else)
		}
		if g.cur != nil {
			g.cur.NewBr(joinBlk)
		}
	}

	g.cur = joinBlk
}

// genCond lowers an expression used as a branch condition to an i1
func (g *LLVMGenerator) genCond(e syntax.Expr) value.Value {
	v := g.genValue(e)
	if types.Equal(v.Type(), types.I1) {
		return v
	}
	return g.cur.NewICmp(enum.IPredNE, v, constant.NewInt(v.Type().(*types.IntType), 0))
}

// genAddr lowers an l-value expression to the address of its storage
func (g *LLVMGenerator) genAddr(e syntax.Expr) value.Value {
	switch e := e.(type) {
	case *syntax.DeclRefExpr:
		return g.vars[e.Decl.(*syntax.VarDecl)]
	case *syntax.MemberExpr:
		structTy := e.StructExpr.Type()
		sd := structTy.Decl.(*syntax.StructDecl)
		base := g.genAddr(e.StructExpr)
		return g.cur.NewGetElementPtr(g.lltype(structTy), base,
			constant.NewInt(types.I32, 0),
			constant.NewInt(types.I32, int64(fieldIndex(sd, e.MemberName.Text))))
	case *syntax.UnaryExpr:
		switch e.Kind {
		case syntax.UnaryParen:
			return g.genAddr(e.Operand)
		case syntax.UnaryDeref:
			// the address of `*p` is the value of `p`
			return g.genValue(e.Operand)
		}
	}

	panic("llvm: address of a non-lvalue")
}

func fieldIndex(sd *syntax.StructDecl, name string) int {
	for i, f := range sd.Fields {
		if f.Name.Text == name {
			return i
		}
	}
	return 0
}

func (g *LLVMGenerator) genValue(e syntax.Expr) value.Value {
	switch e := e.(type) {
	case *syntax.IntegerLiteral:
		return constant.NewInt(types.I64, e.Value)
	case *syntax.StringLiteral:
		return g.genStringLiteral(e)
	case *syntax.DeclRefExpr:
		slot := g.genAddr(e)
		return g.cur.NewLoad(g.lltype(e.Type()), slot)
	case *syntax.MemberExpr:
		return g.cur.NewLoad(g.lltype(e.Type()), g.genAddr(e))
	case *syntax.CallExpr:
		var args []value.Value
		for _, a := range e.Args {
			args = append(args, g.genValue(a))
		}
		return g.cur.NewCall(g.fns[e.CalleeDecl], args...)
	case *syntax.StructDefExpr:
		return g.genStructDefExpr(e)
	case *syntax.CastExpr:
		// casts are unchecked in the front-end; pass the value through
		return g.genValue(e.Target)
	case *syntax.UnaryExpr:
		switch e.Kind {
		case syntax.UnaryParen:
			return g.genValue(e.Operand)
		case syntax.UnaryRef, syntax.UnaryVarRef:
			return g.genAddr(e.Operand)
		case syntax.UnaryDeref:
			return g.cur.NewLoad(g.lltype(e.Type()), g.genValue(e.Operand))
		}
	case *syntax.BinaryExpr:
		return g.genBinaryExpr(e)
	}

	panic("llvm: expression kind not lowered")
}

func (g *LLVMGenerator) genStringLiteral(e *syntax.StringLiteral) value.Value {
	text := strings.Trim(e.Value, "\"")
	text = strings.ReplaceAll(text, "\\n", "\n")
	text = strings.ReplaceAll(text, "\\\"", "\"")

	g.strCount++
	arr := constant.NewCharArrayFromString(text + "\x00")
	glob := g.m.NewGlobalDef(fmt.Sprintf(".str.%d", g.strCount), arr)
	glob.Immutable = true

	zero := constant.NewInt(types.I32, 0)
	return g.cur.NewGetElementPtr(arr.Typ, glob, zero, zero)
}

func (g *LLVMGenerator) genStructDefExpr(e *syntax.StructDefExpr) value.Value {
	structTy := e.Type()
	sd := structTy.Decl.(*syntax.StructDecl)
	ll := g.lltype(structTy)

	tmp := g.cur.NewAlloca(ll)
	for _, d := range e.Desigs {
		val := g.genValue(d.Init)
		fp := g.cur.NewGetElementPtr(ll, tmp,
			constant.NewInt(types.I32, 0),
			constant.NewInt(types.I32, int64(fieldIndex(sd, d.Name.Text))))
		g.cur.NewStore(val, fp)
	}

	return g.cur.NewLoad(ll, tmp)
}

func (g *LLVMGenerator) genBinaryExpr(e *syntax.BinaryExpr) value.Value {
	lhs := g.genValue(e.LHS)
	rhs := g.genValue(e.RHS)

	switch e.Op.Kind {
	case syntax.PLUS:
		return g.cur.NewAdd(lhs, rhs)
	case syntax.MINUS:
		return g.cur.NewSub(lhs, rhs)
	case syntax.STAR:
		return g.cur.NewMul(lhs, rhs)
	case syntax.SLASH:
		return g.cur.NewSDiv(lhs, rhs)
	}

	// comparisons keep their operand type in the surface language, so the
	// i1 widens back after the compare
	var pred enum.IPred
	switch e.Op.Kind {
	case syntax.EQ:
		pred = enum.IPredEQ
	case syntax.LT:
		pred = enum.IPredSLT
	case syntax.GT:
		pred = enum.IPredSGT
	default:
		panic("llvm: operator not lowered")
	}

	cmp := g.cur.NewICmp(pred, lhs, rhs)
	if it, ok := lhs.Type().(*types.IntType); ok && it.BitSize > 1 {
		return g.cur.NewZExt(cmp, it)
	}
	return cmp
}
