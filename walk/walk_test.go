package walk

import (
	"strings"
	"testing"

	"ruse/logging"
	"ruse/sem"
	"ruse/syntax"
)

// analyzeResult bundles what the pass tests need to poke at
type analyzeResult struct {
	file   *syntax.File
	walker *Walker
	log    *logging.Logger
	ok     bool
}

// analyze parses and runs the full pass pipeline over a source snippet
func analyze(t *testing.T, text string) analyzeResult {
	t.Helper()

	log := logging.NewLogger("silent")
	src := syntax.NewSource("test.ruse", []byte(text))
	names := sem.NewNameTable()

	file := syntax.NewParser(src, names, log).Parse()
	if !log.ShouldProceed() {
		for _, e := range log.Errors() {
			t.Logf("parse error: %s", e)
		}
		t.Fatalf("test source does not parse:\n%s", text)
	}

	w := NewWalker(src, names, log)
	ok := w.Analyze(file)

	return analyzeResult{file: file, walker: w, log: log, ok: ok}
}

// expectErrors asserts that analysis failed with exactly the given messages,
// in order
func expectErrors(t *testing.T, res analyzeResult, want ...string) {
	t.Helper()

	if res.ok {
		t.Fatalf("analysis unexpectedly succeeded, want errors %q", want)
	}

	errs := res.log.Errors()
	if len(errs) != len(want) {
		for _, e := range errs {
			t.Logf("got error: %s", e)
		}
		t.Fatalf("got %d errors, want %d", len(errs), len(want))
	}

	for i, e := range errs {
		if e.Message != want[i] {
			t.Errorf("error %d = %q, want %q", i, e.Message, want[i])
		}
	}
}

// expectOK asserts that analysis succeeded with no diagnostics
func expectOK(t *testing.T, res analyzeResult) {
	t.Helper()

	if !res.ok {
		var msgs []string
		for _, e := range res.log.Errors() {
			msgs = append(msgs, e.Message)
		}
		t.Fatalf("analysis failed: %s", strings.Join(msgs, "; "))
	}
}

// fn returns the named function declaration from an analyzed file
func fn(t *testing.T, res analyzeResult, name string) *syntax.FuncDecl {
	t.Helper()

	for _, d := range res.file.Decls {
		if f, ok := d.(*syntax.FuncDecl); ok && f.Name.Text == name {
			return f
		}
	}

	t.Fatalf("no function named %s", name)
	return nil
}
