package cmd

import (
	"fmt"
	"strings"

	"ruse/logging"
	"ruse/sem"
	"ruse/syntax"
	"ruse/walk"

	"github.com/peterh/liner"
)

// execReplCommand runs an interactive loop that accepts toplevel declarations
// and re-analyzes the accumulated program after each one.  Declarations that
// fail to check are dropped, so the session always holds a valid program.
func execReplCommand() int {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	logging.PrintInfoMessage("Ruse REPL", "enter toplevel declarations; :quit to exit")

	var accepted []string
	for {
		input, ok := readDecl(line)
		if !ok {
			return 0
		}
		if strings.TrimSpace(input) == "" {
			continue
		}

		line.AppendHistory(input)

		program := strings.Join(append(append([]string{}, accepted...), input), "\n")
		if analyzeSnippet(program) {
			accepted = append(accepted, input)
			fmt.Println("ok")
		}
	}
}

// readDecl reads one declaration, continuing across lines until braces
// balance.  It returns false when the session ends.
func readDecl(line *liner.State) (string, bool) {
	var parts []string
	depth := 0

	for {
		prompt := "ruse> "
		if len(parts) > 0 {
			prompt = "  ... "
		}

		input, err := line.Prompt(prompt)
		if err != nil {
			return "", false
		}
		if len(parts) == 0 && strings.TrimSpace(input) == ":quit" {
			return "", false
		}

		parts = append(parts, input)
		depth += strings.Count(input, "{") - strings.Count(input, "}")
		if depth <= 0 {
			return strings.Join(parts, "\n"), true
		}
	}
}

// analyzeSnippet parses and checks a program held in memory, reporting any
// diagnostics the way the compiler would
func analyzeSnippet(text string) bool {
	log := logging.NewLogger("error")
	src := syntax.NewSource("<repl>", []byte(text))
	names := sem.NewNameTable()

	file := syntax.NewParser(src, names, log).Parse()
	if !log.ShouldProceed() {
		return false
	}

	return walk.NewWalker(src, names, log).Analyze(file)
}
