package syntax

import (
	"fmt"
	"strconv"

	"ruse/logging"
	"ruse/sem"
	"ruse/typing"
)

// Parser is a recursive-descent parser producing the annotated AST consumed
// by the analysis passes.  It recovers from syntax errors at statement
// boundaries so that a single bad line does not hide the rest of the file.
type Parser struct {
	src   *Source
	names *sem.NameTable
	log   *logging.Logger
	lctx  *logging.LogContext

	toks    []Token
	idx     int
	tok     Token
	lastEnd int
}

// NewParser creates a parser over a scanned source
func NewParser(src *Source, names *sem.NameTable, log *logging.Logger) *Parser {
	sc := NewScanner(src, log)
	p := &Parser{
		src:   src,
		names: names,
		log:   log,
		lctx:  &logging.LogContext{FilePath: src.Path},
		toks:  sc.ScanAll(),
	}
	p.tok = p.toks[0]
	return p
}

// Parse parses the whole source into a File
func (p *Parser) Parse() *File {
	return p.parseFile()
}

func (p *Parser) next() {
	if p.tok.Kind == EOF {
		return
	}

	p.lastEnd = p.tok.End()
	p.idx++
	p.tok = p.toks[p.idx]
}

func (p *Parser) error(pos int, format string, args ...interface{}) {
	line, col := p.src.Locate(pos)
	p.log.LogCompileError(
		p.lctx,
		fmt.Sprintf(format, args...),
		logging.LMKSyntax,
		&logging.TextPosition{StartLn: line, StartCol: col, EndLn: line, EndCol: col + 1},
	)
}

func (p *Parser) errorExpected(what string) {
	p.error(p.tok.Pos, "expected %s, found '%s'", what, p.tokText())
}

func (p *Parser) tokText() string {
	if p.tok.Kind == EOF {
		return "end of file"
	}
	if p.tok.Kind == NEWLINE {
		return "newline"
	}
	return p.tok.Value
}

// expect consumes a token of the given kind, or reports an error without
// making progress
func (p *Parser) expect(kind int) bool {
	if p.tok.Kind != kind {
		p.errorExpected("'" + KindString(kind) + "'")
		return false
	}
	p.next()
	return true
}

func (p *Parser) pushTok() *sem.Name {
	return p.names.Push(p.tok.Value)
}

// ---------------------------------------------------------------------------
// statement boundaries and recovery

func (p *Parser) isEOS() bool {
	return p.tok.Kind == EOF
}

// isEndOfStmt reports whether the current token terminates a statement.  The
// language is newline-aware; semicolons work the same way, and a closing
// brace ends the last statement of a block.
func (p *Parser) isEndOfStmt() bool {
	switch p.tok.Kind {
	case NEWLINE, SEMICOLON, RBRACE, EOF:
		return true
	}
	return false
}

func (p *Parser) skipUntil(kind int) {
	for !p.isEOS() && p.tok.Kind != kind {
		p.next()
	}
}

func (p *Parser) skipUntilEndOfStmt() {
	for !p.isEndOfStmt() {
		p.next()
	}
}

// skipTerminators skips over newline and semicolon tokens
func (p *Parser) skipTerminators() {
	for p.tok.Kind == NEWLINE || p.tok.Kind == SEMICOLON {
		p.next()
	}
}

// ---------------------------------------------------------------------------
// declarations

func (p *Parser) parseFile() *File {
	file := &File{}

	p.skipTerminators()
	for !p.isEOS() {
		if d := p.parseToplevel(); d != nil {
			file.Decls = append(file.Decls, d)
		}
		p.skipTerminators()
	}

	file.SetRange(0, len(p.src.Buf))
	return file
}

func (p *Parser) parseToplevel() Decl {
	switch p.tok.Kind {
	case FN:
		return p.parseFuncDecl()
	case STRUCT:
		return p.parseStructDecl()
	case ENUM:
		return p.parseEnumDecl()
	case EXTERN:
		return p.parseExternDecl()
	default:
		p.error(p.tok.Pos, "unexpected '%s' at toplevel", p.tokText())
		p.next()
		p.skipUntilEndOfStmt()
		p.skipTerminators()
		return nil
	}
}

// parseFuncHeader parses `fn name(params) [-> type]` without the body
func (p *Parser) parseFuncHeader() *FuncDecl {
	pos := p.tok.Pos
	p.expect(FN)

	f := &FuncDecl{}
	if p.tok.Kind != IDENT {
		p.errorExpected("an identifier")
	} else {
		f.Name = p.pushTok()
		p.next()
	}

	p.expect(LPAREN)
	for p.tok.Kind != RPAREN && !p.isEOS() {
		p.skipTerminators()
		if p.tok.Kind == RPAREN {
			break
		}

		if param := p.parseVarDecl(VarParam); param != nil {
			f.Params = append(f.Params, param)
		} else {
			p.skipUntil(RPAREN)
			break
		}

		if p.tok.Kind == COMMA {
			p.next()
		}
	}
	p.expect(RPAREN)

	if p.tok.Kind == ARROW {
		p.next()
		f.RetTypeExpr = p.parseTypeExpr()
	}

	f.SetRange(pos, p.lastEnd)
	return f
}

func (p *Parser) parseFuncDecl() Decl {
	f := p.parseFuncHeader()

	if p.tok.Kind != LBRACE {
		p.errorExpected("'->' or '{'")
		p.skipUntil(LBRACE)
	}

	f.Body = p.parseCompoundStmt()
	f.PosEnd = p.lastEnd
	return f
}

func (p *Parser) parseExternDecl() Decl {
	pos := p.tok.Pos
	p.expect(EXTERN)

	e := &ExternDecl{Func: p.parseFuncHeader()}
	e.SetRange(pos, p.lastEnd)
	return e
}

func (p *Parser) parseStructDecl() Decl {
	pos := p.tok.Pos
	p.expect(STRUCT)

	s := &StructDecl{}
	if p.tok.Kind != IDENT {
		p.errorExpected("an identifier")
		p.skipUntil(LBRACE)
	} else {
		s.Name = p.pushTok()
		p.next()
	}

	p.expect(LBRACE)
	for !p.isEOS() {
		p.skipTerminators()
		if p.tok.Kind == RBRACE {
			break
		}

		if field := p.parseVarDecl(VarField); field != nil {
			s.Fields = append(s.Fields, field)
		} else {
			p.skipUntilEndOfStmt()
		}

		if p.tok.Kind == COMMA {
			p.next()
		}
	}
	p.expect(RBRACE)

	s.SetRange(pos, p.lastEnd)
	return s
}

func (p *Parser) parseEnumVariant() *EnumVariantDecl {
	pos := p.tok.Pos

	v := &EnumVariantDecl{Name: p.pushTok()}
	p.next()

	if p.tok.Kind == LPAREN {
		p.next()
		for p.tok.Kind != RPAREN && !p.isEOS() {
			if te := p.parseTypeExpr(); te != nil {
				v.Fields = append(v.Fields, te)
			} else {
				p.skipUntil(RPAREN)
				break
			}
			if p.tok.Kind == COMMA {
				p.next()
			}
		}
		p.expect(RPAREN)
	}

	v.SetRange(pos, p.lastEnd)
	return v
}

func (p *Parser) parseEnumDecl() Decl {
	pos := p.tok.Pos
	p.expect(ENUM)

	e := &EnumDecl{}
	if p.tok.Kind != IDENT {
		p.errorExpected("an identifier")
	} else {
		e.Name = p.pushTok()
		p.next()
	}

	p.expect(LBRACE)
	for !p.isEOS() {
		p.skipTerminators()
		if p.tok.Kind != IDENT {
			break
		}
		e.Variants = append(e.Variants, p.parseEnumVariant())
	}
	p.expect(RBRACE)

	e.SetRange(pos, p.lastEnd)
	return e
}

// parseVarDecl parses `name [: type] [= expr]`.  The leading `let`/`var`
// keyword, if any, is consumed by the caller.
func (p *Parser) parseVarDecl(kind VarDeclKind) *VarDecl {
	pos := p.tok.Pos

	if p.tok.Kind != IDENT {
		p.errorExpected("an identifier")
		return nil
	}

	v := &VarDecl{Name: p.pushTok(), Kind: kind}
	p.next()

	if p.tok.Kind == COLON {
		p.next()
		v.TypeExpr = p.parseTypeExpr()
	}
	if p.tok.Kind == ASSIGN {
		p.next()
		v.AssignExpr = p.parseExpr()
	}

	if v.TypeExpr == nil && v.AssignExpr == nil {
		p.errorExpected("'=' or ':' after variable name")
		return nil
	}

	v.SetRange(pos, p.lastEnd)
	return v
}

// ---------------------------------------------------------------------------
// statements

func (p *Parser) isStartOfDecl() bool {
	switch p.tok.Kind {
	case LET, VAR, STRUCT, FN:
		return true
	}
	return false
}

func (p *Parser) parseStmt() Stmt {
	var stmt Stmt

	switch {
	case p.tok.Kind == LBRACE:
		stmt = p.parseCompoundStmt()
	case p.tok.Kind == RETURN:
		stmt = p.parseReturnStmt()
	case p.tok.Kind == IF:
		stmt = p.parseIfStmt()
	case p.tok.Kind == BUILTIN:
		stmt = p.parseBuiltinStmt()
	case p.isStartOfDecl():
		stmt = p.parseDeclStmt()
	default:
		stmt = p.parseExprOrAssignStmt()
	}

	return stmt
}

func (p *Parser) parseReturnStmt() Stmt {
	pos := p.tok.Pos
	p.expect(RETURN)

	rs := &ReturnStmt{}
	if !p.isEndOfStmt() {
		rs.Expr = p.parseExpr()
	}
	if !p.isEndOfStmt() {
		p.errorExpected("end of statement")
		p.skipUntilEndOfStmt()
	}

	rs.SetRange(pos, p.lastEnd)
	return rs
}

func (p *Parser) parseIfStmt() *IfStmt {
	pos := p.tok.Pos
	p.expect(IF)

	is := &IfStmt{Cond: p.parseExpr()}
	is.Then = p.parseCompoundStmt()

	if p.tok.Kind == ELSE {
		p.next()

		switch p.tok.Kind {
		case IF:
			is.ElseIf = p.parseIfStmt()
		case LBRACE:
			is.Else = p.parseCompoundStmt()
		default:
			p.errorExpected("'if' or '{'")
			p.skipUntilEndOfStmt()
		}
	}

	is.SetRange(pos, p.lastEnd)
	return is
}

func (p *Parser) parseDeclStmt() Stmt {
	pos := p.tok.Pos
	ds := &DeclStmt{Decl: p.parseDecl()}

	if !p.isEndOfStmt() {
		if _, bad := ds.Decl.(*BadDecl); !bad {
			p.errorExpected("end of statement")
		}
		p.skipUntilEndOfStmt()
	}

	ds.SetRange(pos, p.lastEnd)
	return ds
}

func (p *Parser) parseDecl() Decl {
	switch p.tok.Kind {
	case LET:
		p.next()
		if v := p.parseVarDecl(VarLocal); v != nil {
			return v
		}
	case VAR:
		p.next()
		if v := p.parseVarDecl(VarLocal); v != nil {
			v.Mut = true
			return v
		}
	case STRUCT:
		return p.parseStructDecl()
	case FN:
		return p.parseFuncDecl()
	}

	bad := &BadDecl{}
	bad.SetRange(p.tok.Pos, p.tok.End())
	return bad
}

// parseExprOrAssignStmt parses either an expression statement or an
// assignment.  Which one it is only becomes clear after the LHS: an `=` makes
// it a copy assignment, a `<-` a move.
func (p *Parser) parseExprOrAssignStmt() Stmt {
	pos := p.tok.Pos
	lhs := p.parseExpr()

	if p.isEndOfStmt() {
		es := &ExprStmt{Expr: lhs}
		es.SetRange(pos, p.lastEnd)
		return es
	}

	move := false
	switch p.tok.Kind {
	case REVARROW:
		move = true
		p.next()
	case ASSIGN:
		p.next()
	default:
		p.errorExpected("'=' or end of statement after expression")
		p.skipUntilEndOfStmt()
		bad := &BadStmt{}
		bad.SetRange(pos, p.lastEnd)
		return bad
	}

	as := &AssignStmt{LHS: lhs, RHS: p.parseExpr(), Move: move}
	as.SetRange(pos, p.lastEnd)
	return as
}

func (p *Parser) parseCompoundStmt() *CompoundStmt {
	pos := p.tok.Pos
	p.expect(LBRACE)

	cs := &CompoundStmt{}
	for !p.isEOS() {
		p.skipTerminators()
		if p.tok.Kind == RBRACE {
			break
		}

		cs.Stmts = append(cs.Stmts, p.parseStmt())
		p.skipTerminators()
	}
	p.expect(RBRACE)

	cs.SetRange(pos, p.lastEnd)
	return cs
}

func (p *Parser) parseBuiltinStmt() Stmt {
	bs := &BuiltinStmt{Text: p.tok.Value}
	bs.SetRange(p.tok.Pos, p.tok.End())
	p.next()
	return bs
}

// ---------------------------------------------------------------------------
// expressions

func (p *Parser) parseLiteralExpr() Expr {
	pos := p.tok.Pos

	switch p.tok.Kind {
	case NUMBER:
		value, err := strconv.ParseInt(p.tok.Value, 10, 64)
		if err != nil {
			p.error(pos, "invalid integer literal '%s'", p.tok.Value)
		}
		lit := &IntegerLiteral{Value: value}
		lit.SetRange(pos, p.tok.End())
		p.next()
		return lit
	case STRING:
		lit := &StringLiteral{Value: p.tok.Value}
		lit.SetRange(pos, p.tok.End())
		p.next()
		return lit
	}

	p.errorExpected("a literal")
	bad := &BadExpr{}
	bad.SetRange(pos, p.tok.End())
	return bad
}

// parseCallOrDeclRefExpr handles expressions starting with an identifier.
// Whether the name is a variable, a function call, or a struct name cannot be
// told apart without lookahead, so both forms are parsed in one go.
func (p *Parser) parseCallOrDeclRefExpr() Expr {
	pos := p.tok.Pos
	name := p.pushTok()
	p.next()

	if p.tok.Kind != LPAREN {
		d := &DeclRefExpr{Name: name}
		d.SetRange(pos, p.lastEnd)
		return d
	}

	p.expect(LPAREN)
	call := &CallExpr{FuncName: name}
	for p.tok.Kind != RPAREN && !p.isEOS() {
		before := p.idx
		call.Args = append(call.Args, p.parseExpr())
		if p.idx == before {
			// the argument made no progress; bail out to recovery
			p.skipUntil(RPAREN)
			break
		}
		if p.tok.Kind == COMMA {
			p.next()
		}
	}
	p.expect(RPAREN)

	call.SetRange(pos, p.lastEnd)
	return call
}

func (p *Parser) parseCastExpr() Expr {
	pos := p.tok.Pos

	p.expect(LBRACKET)
	te := p.parseTypeExpr()
	p.expect(RBRACKET)

	p.expect(LPAREN)
	target := p.parseExpr()
	p.expect(RPAREN)

	c := &CastExpr{TypeExpr: te, Target: target}
	c.SetRange(pos, p.lastEnd)
	return c
}

// parseTypeExpr parses a type expression:
//
//	type-expression:
//	    '&' 'var'? ('.' lifetime)? type-expression
//	    '*' type-expression
//	    ident
func (p *Parser) parseTypeExpr() *TypeExpr {
	pos := p.tok.Pos
	te := &TypeExpr{}

	switch p.tok.Kind {
	case AMP:
		p.next()
		te.Kind = typing.KindRef
		if p.tok.Kind == VAR {
			p.next()
			te.Kind = typing.KindVarRef
			te.Mut = true
		}
		if p.tok.Kind == DOT {
			p.next()
			if p.tok.Kind != IDENT {
				p.errorExpected("a lifetime name")
				return nil
			}
			te.LifetimeAnnot = p.pushTok()
			p.next()
		}

		te.Subexpr = p.parseTypeExpr()
		if te.Subexpr == nil {
			return nil
		}
		te.Name = typing.DerivedTypeName(p.names, te.Kind, te.Subexpr.Name)
	case STAR:
		p.next()
		te.Kind = typing.KindPtr

		te.Subexpr = p.parseTypeExpr()
		if te.Subexpr == nil {
			return nil
		}
		te.Name = typing.DerivedTypeName(p.names, typing.KindPtr, te.Subexpr.Name)
	case IDENT:
		te.Kind = typing.KindValue
		te.Name = p.pushTok()
		p.next()
	default:
		p.errorExpected("a type name")
		return nil
	}

	te.SetRange(pos, p.lastEnd)
	return te
}

func (p *Parser) parseUnaryExpr() Expr {
	pos := p.tok.Pos

	switch p.tok.Kind {
	case NUMBER, STRING:
		return p.parseLiteralExpr()
	case IDENT:
		expr := p.parseCallOrDeclRefExpr()
		expr = p.parseMemberExprMaybe(expr)
		if p.lookaheadStructDef() {
			expr = p.parseStructDefMaybe(expr)
		}
		return expr
	case LBRACKET:
		return p.parseCastExpr()
	case STAR:
		p.next()
		u := &UnaryExpr{Kind: UnaryDeref, Operand: p.parseUnaryExpr()}
		u.SetRange(pos, p.lastEnd)
		return p.parseMemberExprMaybe(u)
	case AMP:
		p.next()
		kind := UnaryRef
		if p.tok.Kind == VAR {
			p.next()
			kind = UnaryVarRef
		}
		u := &UnaryExpr{Kind: kind, Operand: p.parseUnaryExpr()}
		u.SetRange(pos, p.lastEnd)
		return u
	case LPAREN:
		p.expect(LPAREN)
		inner := p.parseExpr()
		p.expect(RPAREN)
		u := &UnaryExpr{Kind: UnaryParen, Operand: inner}
		u.SetRange(pos, p.lastEnd)
		return p.parseMemberExprMaybe(u)
	default:
		// every expression starts with a unary expression, so nothing else
		// could have matched either
		p.errorExpected("an expression")
		bad := &BadExpr{}
		bad.SetRange(pos, p.tok.End())
		return bad
	}
}

func binaryOpPrecedence(tok Token) int {
	switch tok.Kind {
	case STAR, SLASH:
		return 2
	case PLUS, MINUS:
		return 1
	case EQ, GT, LT:
		return 0
	default:
		// not an operator
		return -1
	}
}

// parseBinaryExprRHS extends a unary expression into a binary one by parsing
// any attached RHS terms.  Parsing goes on as long as operators with at least
// the given precedence are seen; left associativity comes from re-rooting.
func (p *Parser) parseBinaryExprRHS(lhs Expr, precedence int) Expr {
	root := lhs

	for !p.isEOS() {
		thisPrec := binaryOpPrecedence(p.tok)
		if thisPrec < precedence {
			return root
		}

		op := p.tok
		p.next()

		rhs := p.parseUnaryExpr()

		// decide association by looking at the operator that follows the term
		if thisPrec < binaryOpPrecedence(p.tok) {
			rhs = p.parseBinaryExprRHS(rhs, thisPrec+1)
		}

		b := &BinaryExpr{LHS: root, Op: op, RHS: rhs}
		b.SetRange(root.Pos(), p.lastEnd)
		root = b
	}

	return root
}

// parseMemberExprMaybe wraps an expression in member accesses for as long as
// dot operators follow it
func (p *Parser) parseMemberExprMaybe(expr Expr) Expr {
	result := expr

	for p.tok.Kind == DOT {
		p.expect(DOT)

		if p.tok.Kind != IDENT {
			p.errorExpected("a member name")
			return result
		}

		m := &MemberExpr{StructExpr: result, MemberName: p.pushTok()}
		p.next()
		m.SetRange(result.Pos(), p.lastEnd)
		result = m
	}

	return result
}

// lookaheadStructDef reports whether the upcoming tokens begin a struct
// literal body, i.e. `{` followed by a field designator
func (p *Parser) lookaheadStructDef() bool {
	return p.tok.Kind == LBRACE && p.toks[p.idx+1].Kind == DOT
}

// parseStructDefMaybe parses the `{ .f = e, ... }` tail of a struct literal
func (p *Parser) parseStructDefMaybe(expr Expr) Expr {
	pos := expr.Pos()

	declref, ok := expr.(*DeclRefExpr)
	if !ok {
		p.error(pos, "qualified struct names are not yet supported")
		return expr
	}

	p.expect(LBRACE)

	s := &StructDefExpr{NameExpr: declref}
	for !p.isEOS() {
		p.skipTerminators()
		if p.tok.Kind == RBRACE {
			break
		}

		if !p.expect(DOT) {
			p.skipUntil(RBRACE)
			break
		}
		if p.tok.Kind != IDENT {
			p.errorExpected("a field name")
			p.skipUntil(RBRACE)
			break
		}
		name := p.pushTok()
		p.next()

		if !p.expect(ASSIGN) {
			p.skipUntil(RBRACE)
			break
		}

		s.Desigs = append(s.Desigs, StructFieldDesig{Name: name, Init: p.parseExpr()})

		if p.tok.Kind == COMMA {
			p.next()
		}
	}
	p.expect(RBRACE)

	s.SetRange(pos, p.lastEnd)
	return s
}

func (p *Parser) parseExpr() Expr {
	unary := p.parseUnaryExpr()
	return p.parseBinaryExprRHS(unary, 0)
}
