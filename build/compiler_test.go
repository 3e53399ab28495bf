package build

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ruse/logging"
	"ruse/mods"
)

// runPipeline writes a source snippet to disk and runs the compiler front
// half over it the way the CLI `check` command would
func runPipeline(t *testing.T, text string) *logging.Logger {
	t.Helper()

	srcPath := filepath.Join(t.TempDir(), "main.ruse")
	if err := os.WriteFile(srcPath, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	log := logging.NewLogger("silent")
	c := NewCompiler(mods.DefaultProject(srcPath), srcPath, log)
	c.Analyze()
	return log
}

func expectDiagnostic(t *testing.T, log *logging.Logger, want string) {
	t.Helper()

	if log.ShouldProceed() {
		t.Fatalf("expected diagnostic %q, got none", want)
	}
	for _, e := range log.Errors() {
		if e.Message == want {
			return
		}
	}
	for _, e := range log.Errors() {
		t.Logf("got error: %s", e)
	}
	t.Fatalf("diagnostic %q not reported", want)
}

func TestScenarioRedefinitionInSameScope(t *testing.T) {
	log := runPipeline(t, "fn f() { let x = 1; let x = 2; }")
	expectDiagnostic(t, log, "redefinition of 'x'")
}

func TestScenarioShadowingAcrossScopes(t *testing.T) {
	log := runPipeline(t, "fn f() { let x = 1; { let x = 2; } }")
	if !log.ShouldProceed() {
		t.Fatalf("expected no diagnostics, got %s", log.Errors()[0])
	}
}

func TestScenarioMutableReferencePromotion(t *testing.T) {
	log := runPipeline(t, "fn f() { var a = 1; let r: &var int = &var a; let s: &int = r; }")
	if !log.ShouldProceed() {
		t.Fatalf("expected no diagnostics, got %s", log.Errors()[0])
	}
}

func TestScenarioImmutableToMutableRejected(t *testing.T) {
	log := runPipeline(t, "fn f() { let a = 1; let r: &int = &a; let s: &var int = r; }")
	expectDiagnostic(t, log, "cannot assign '&int' type to '&var int'")
}

func TestScenarioReturnOfLocalReference(t *testing.T) {
	log := runPipeline(t, "fn f() -> &int { let a = 1; return &a; }")
	expectDiagnostic(t, log, "cannot return value that references local variable 'a'")
}

func TestScenarioMissingReturnPath(t *testing.T) {
	log := runPipeline(t, "fn f(b: bool) -> int { if (b) { return 1 } }")
	expectDiagnostic(t, log, "function not guaranteed to return a value")
}

func TestScenarioConflictingBorrows(t *testing.T) {
	log := runPipeline(t, "fn f() { var a = 1; let p = &var a; let q = &a; }")
	expectDiagnostic(t, log, "cannot borrow 'a' as immutable because it was borrowed as mutable before")
}

func TestCompileWritesOutput(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.ruse")
	src := `
struct Pos { x: int, y: int }

fn dist(p: Pos) -> int {
	return p.x + p.y
}

fn main() -> int {
	let p = Pos { .x = 1, .y = 2 }
	return dist(p)
}
`
	if err := os.WriteFile(srcPath, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	log := logging.NewLogger("silent")
	proj := mods.DefaultProject(srcPath)
	if !NewCompiler(proj, srcPath, log).Compile() {
		t.Fatalf("compile failed: %v", log.Errors())
	}

	out, err := os.ReadFile(proj.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	text := string(out)
	for _, want := range []string{"struct Pos {", "int dist(struct Pos p)", "int main()"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestCompileLLVMBackend(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.ruse")
	src := `
fn add(a: int, b: int) -> int {
	return a + b
}
`
	if err := os.WriteFile(srcPath, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	log := logging.NewLogger("silent")
	proj := mods.DefaultProject(srcPath)
	proj.Backend = mods.BackendLLVM
	proj.OutputPath = filepath.Join(dir, "main.ll")

	if !NewCompiler(proj, srcPath, log).Compile() {
		t.Fatalf("compile failed: %v", log.Errors())
	}

	out, err := os.ReadFile(proj.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "define i64 @add(i64 %a, i64 %b)") {
		t.Errorf("IR missing function definition:\n%s", out)
	}
}

func TestFailedAnalysisProducesNoOutput(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "main.ruse")
	if err := os.WriteFile(srcPath, []byte("fn f() { let x = y }"), 0o644); err != nil {
		t.Fatal(err)
	}

	log := logging.NewLogger("silent")
	proj := mods.DefaultProject(srcPath)
	if NewCompiler(proj, srcPath, log).Compile() {
		t.Fatal("compile should fail")
	}
	if _, err := os.Stat(proj.OutputPath); err == nil {
		t.Error("no output should be written for a failed compile")
	}
}
