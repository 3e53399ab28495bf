package build

import (
	"ruse/generate"
	"ruse/logging"
	"ruse/mods"
	"ruse/sem"
	"ruse/syntax"
	"ruse/walk"

	"github.com/pkg/errors"
)

// Compiler maintains the high-level state of one compilation: the project
// being built, the logger, and the intermediate results of the pipeline.
type Compiler struct {
	proj *mods.Project
	log  *logging.Logger

	// srcPath is the source file being compiled
	srcPath string
}

// NewCompiler creates a new compiler for a source file under a project
func NewCompiler(proj *mods.Project, srcPath string, log *logging.Logger) *Compiler {
	return &Compiler{
		proj:    proj,
		log:     log,
		srcPath: srcPath,
	}
}

// Analyze runs just the front half of the pipeline: scanning, parsing, and
// the semantic passes.  This is exported separately for usage in the CLI
// `check` command (editors, IDEs, etc.).  It returns the checked file and a
// boolean indicating whether analysis succeeded.
func (c *Compiler) Analyze() (*syntax.File, bool) {
	src, err := syntax.SourceFromFile(c.srcPath)
	if err != nil {
		logging.PrintErrorMessage("File Error", err)
		return nil, false
	}

	c.beginPhase("Parsing")
	names := sem.NewNameTable()
	file := syntax.NewParser(src, names, c.log).Parse()
	if !c.log.ShouldProceed() {
		c.endPhase(false)
		return nil, false
	}
	c.endPhase(true)

	c.beginPhase("Analyzing")
	w := walk.NewWalker(src, names, c.log)
	if !w.Analyze(file) {
		c.endPhase(false)
		return nil, false
	}
	c.endPhase(true)

	return file, true
}

// Compile runs the full compilation pipeline and writes the generated code
// to the project's output path
func (c *Compiler) Compile() bool {
	file, ok := c.Analyze()
	if !ok {
		return false
	}

	c.beginPhase("Generating")
	if err := c.generate(file); err != nil {
		c.endPhase(false)
		logging.PrintErrorMessage("Generation Error", err)
		return false
	}
	c.endPhase(true)

	return true
}

func (c *Compiler) generate(file *syntax.File) error {
	switch c.proj.Backend {
	case mods.BackendLLVM:
		return generate.NewLLVMGenerator().GenerateToFile(file, c.proj.OutputPath)
	case mods.BackendC:
		return generate.NewGenerator().GenerateToFile(file, c.proj.OutputPath)
	default:
		return errors.Errorf("unknown backend '%s'", c.proj.Backend)
	}
}

func (c *Compiler) beginPhase(phase string) {
	if c.log.LogLevel >= logging.LogLevelVerbose {
		logging.DisplayBeginPhase(phase)
	}
}

func (c *Compiler) endPhase(success bool) {
	if c.log.LogLevel >= logging.LogLevelVerbose {
		logging.DisplayEndPhase(success)
	}
}
