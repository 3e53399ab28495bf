package cmd

import (
	"os"
	"path/filepath"

	"ruse/build"
	"ruse/common"
	"ruse/logging"
	"ruse/mods"

	"github.com/ComedicChimera/olive"
)

// Execute runs the main `ruse` application
func Execute() int {
	// set up the argument parser and all its commands and arguments
	cli := olive.NewCLI("ruse", "ruse is a tool for compiling ruse source code", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the compiler log level", false,
		[]string{"silent", "error", "warning", "verbose"})
	logLvlArg.SetDefaultValue("verbose")

	buildCmd := cli.AddSubcommand("build", "compile source code", true)
	buildCmd.AddPrimaryArg("file-path", "the path to the file to compile", true)

	checkCmd := cli.AddSubcommand("check", "analyze source code and report errors", true)
	checkCmd.AddPrimaryArg("file-path", "the path to the file to check", true)

	cli.AddSubcommand("repl", "analyze declarations interactively", false)

	modCmd := cli.AddSubcommand("mod", "manage projects", true)
	modInitCmd := modCmd.AddSubcommand("init", "initialize a project", true)
	modInitCmd.AddPrimaryArg("project-path", "the path to the project directory", true)

	cli.AddSubcommand("version", "print the ruse version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		logging.PrintErrorMessage("CLI Usage Error", err)
		return 1
	}

	loglevel := result.Arguments["loglevel"].(string)

	// process the inputed command line
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "build":
		return execBuildCommand(subResult, loglevel, false)
	case "check":
		return execBuildCommand(subResult, loglevel, true)
	case "repl":
		return execReplCommand()
	case "mod":
		return execModCommand(subResult)
	case "version":
		logging.PrintInfoMessage("Ruse Version", common.RuseVersion)
	}

	return 0
}

// execBuildCommand executes the build and check subcommands.  With checkOnly
// set, the pipeline stops after semantic analysis.
func execBuildCommand(result *olive.ArgParseResult, loglevel string, checkOnly bool) int {
	fileRelPath, _ := result.PrimaryArg()

	srcPath, err := filepath.Abs(fileRelPath)
	if err != nil {
		logging.PrintErrorMessage("Path Error", err)
		return 1
	}

	// a project file next to the source is used when present; a bare source
	// file compiles under default settings
	proj, err := mods.LoadProject(filepath.Dir(srcPath))
	if err != nil {
		proj = mods.DefaultProject(srcPath)
	}

	log := logging.NewLogger(loglevel)
	if log.LogLevel >= logging.LogLevelVerbose {
		logging.DisplayCompileHeader(common.RuseVersion, proj.Backend)
	}

	c := build.NewCompiler(proj, srcPath, log)

	ok := false
	if checkOnly {
		_, ok = c.Analyze()
	} else {
		ok = c.Compile()
	}

	log.Finish()
	if !ok {
		return 1
	}
	return 0
}

// execModCommand executes the `mod` subcommand and its subcommands
func execModCommand(result *olive.ArgParseResult) int {
	subcmdName, subResult, _ := result.Subcommand()

	switch subcmdName {
	case "init":
		projPath, _ := subResult.PrimaryArg()
		if err := mods.InitProject(projPath); err != nil {
			logging.PrintErrorMessage("Project Init Error", err)
			return 1
		}
	}

	return 0
}
