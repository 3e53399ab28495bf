package syntax

import (
	"testing"

	"ruse/logging"
)

func scanKinds(t *testing.T, text string) []int {
	t.Helper()

	log := logging.NewLogger("silent")
	toks := NewScanner(NewSource("test.ruse", []byte(text)), log).ScanAll()
	if !log.ShouldProceed() {
		t.Fatalf("scan errors for %q", text)
	}

	var kinds []int
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	return kinds
}

func TestScanSimpleFunction(t *testing.T) {
	got := scanKinds(t, "fn f() -> int { return 1 }")
	want := []int{FN, IDENT, LPAREN, RPAREN, ARROW, IDENT, LBRACE, RETURN, NUMBER, RBRACE, EOF}

	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got kind %d, want %d", i, got[i], want[i])
		}
	}
}

func TestScanOperators(t *testing.T) {
	got := scanKinds(t, "a = b <- c == d -> e < f > g")
	want := []int{IDENT, ASSIGN, IDENT, REVARROW, IDENT, EQ, IDENT, ARROW,
		IDENT, LT, IDENT, GT, IDENT, EOF}

	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got kind %d, want %d", i, got[i], want[i])
		}
	}
}

func TestScanRefTokens(t *testing.T) {
	got := scanKinds(t, "&var a; &.lt int; *p")
	want := []int{AMP, VAR, IDENT, SEMICOLON, AMP, DOT, IDENT, IDENT, SEMICOLON, STAR, IDENT, EOF}

	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got kind %d, want %d", i, got[i], want[i])
		}
	}
}

func TestScanCommentsActAsNewlines(t *testing.T) {
	got := scanKinds(t, "let x = 1 // trailing\nlet y = 2")
	want := []int{LET, IDENT, ASSIGN, NUMBER, NEWLINE, LET, IDENT, ASSIGN, NUMBER, EOF}

	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got kind %d, want %d", i, got[i], want[i])
		}
	}
}

func TestScanBuiltinLine(t *testing.T) {
	log := logging.NewLogger("silent")
	toks := NewScanner(NewSource("test.ruse", []byte("#include <stdio.h>\n")), log).ScanAll()

	if toks[0].Kind != BUILTIN {
		t.Fatalf("first token kind = %d, want BUILTIN", toks[0].Kind)
	}
	if toks[0].Value != "#include <stdio.h>" {
		t.Errorf("builtin text = %q", toks[0].Value)
	}
}

func TestScanStringLiteral(t *testing.T) {
	log := logging.NewLogger("silent")
	toks := NewScanner(NewSource("test.ruse", []byte(`let s = "hi there"`)), log).ScanAll()

	if toks[3].Kind != STRING || toks[3].Value != `"hi there"` {
		t.Errorf("string token = %+v", toks[3])
	}
}

func TestScanPositions(t *testing.T) {
	src := NewSource("test.ruse", []byte("let x = 10"))
	log := logging.NewLogger("silent")
	toks := NewScanner(src, log).ScanAll()

	if toks[1].Pos != 4 {
		t.Errorf("x at offset %d, want 4", toks[1].Pos)
	}
	if toks[3].Pos != 8 || toks[3].End() != 10 {
		t.Errorf("literal spans [%d,%d), want [8,10)", toks[3].Pos, toks[3].End())
	}

	line, col := src.Locate(toks[3].Pos)
	if line != 1 || col != 9 {
		t.Errorf("Locate = (%d,%d), want (1,9)", line, col)
	}
}

func TestLocateMultiline(t *testing.T) {
	src := NewSource("test.ruse", []byte("ab\ncd\nef"))

	line, col := src.Locate(3)
	if line != 2 || col != 1 {
		t.Errorf("Locate(3) = (%d,%d), want (2,1)", line, col)
	}
	line, col = src.Locate(7)
	if line != 3 || col != 2 {
		t.Errorf("Locate(7) = (%d,%d), want (3,2)", line, col)
	}
}
