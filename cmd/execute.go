package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"milc/mil"
	"milc/report"

	"github.com/ComedicChimera/olive"
)

// Version is the current compiler version string.
const Version = "milc 0.1.0"

// Frontend produces the input program of a compilation.  The surface
// language parser registers itself here so that the driver stays independent
// of any particular syntax.
type Frontend func(rootPath string, rep *report.Reporter) (*mil.Program, bool)

var frontend Frontend

// RegisterFrontend installs the frontend used by Execute.
func RegisterFrontend(fn Frontend) {
	frontend = fn
}

// Execute is the main entry point of the `milc` CLI utility.  It returns the
// process exit code.
func Execute() int {
	// set up the argument parser and all its commands and arguments
	cli := olive.NewCLI("milc", "milc is a tool for compiling MIL units", true)
	logLvlArg := cli.AddSelectorArg("loglevel", "ll", "the compiler log level", false, []string{"silent", "error", "warn", "verbose"})
	logLvlArg.SetDefaultValue("")

	buildCmd := cli.AddSubcommand("build", "compile a unit", true)
	buildCmd.AddPrimaryArg("unit-path", "the path to the unit to build", true)
	buildCmd.AddStringArg("output", "o", "the output path for the LLVM module", false)

	cli.AddSubcommand("version", "print the milc version", false)

	// run the argument parser
	result, err := olive.ParseArgs(cli, os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}

	// process the inputed command line
	subcmdName, subResult, _ := result.Subcommand()
	switch subcmdName {
	case "build":
		return execBuildCommand(subResult, result.Arguments["loglevel"].(string))
	case "version":
		fmt.Println(Version)
	}

	return 0
}

// execBuildCommand executes the build subcommand and handles all errors.
func execBuildCommand(result *olive.ArgParseResult, loglevel string) int {
	// get the primary argument: the root path
	rootPath, _ := result.PrimaryArg()

	// the command line overrides both the manifest and the environment
	profile := LoadProfile(rootPath)
	if loglevel != "" {
		profile.LogLevel = loglevel
	}

	if out, ok := result.Arguments["output"]; ok {
		if s, ok := out.(string); ok && s != "" {
			profile.OutputPath = s
		}
	}

	if profile.OutputPath == "" {
		profile.OutputPath = filepath.Join(rootPath, profile.Name+".ll")
	}

	c := NewCompiler(profile)

	if frontend == nil {
		c.rep.Fatal("no frontend registered")
	}

	if prog, ok := frontend(rootPath, c.rep); ok && !c.rep.AnyErrors() {
		if mod := c.Compile(prog); mod != nil && !c.rep.AnyErrors() {
			writeOutputFile(c.rep, profile.OutputPath, mod.String())
		}
	}

	c.rep.Flush()

	if c.rep.AnyErrors() {
		return 1
	}

	return 0
}

// writeOutputFile is used to quickly write an output file for the compiler.
func writeOutputFile(rep *report.Reporter, fpath, content string) {
	file, err := os.OpenFile(fpath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		rep.Fatal("failed to open output file %s: %s", fpath, err.Error())
	}
	defer file.Close()

	if _, err = file.WriteString(content); err != nil {
		rep.Fatal("failed to write output to file %s: %s", fpath, err.Error())
	}
}
