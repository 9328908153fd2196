package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/dartleaf/miniscript/internal/interp"
	"github.com/dartleaf/miniscript/internal/value"
	"github.com/dartleaf/miniscript/internal/vm"
)

const version = "1.6.0"

const historyFile = ".miniscript_history"

var errColor = color.New(color.FgRed)

func hostInfo() vm.HostInfo {
	return vm.HostInfo{
		Name:    "miniscript (Go)",
		Info:    "https://miniscript.org",
		Version: 1.0,
	}
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		os.Exit(runRepl())
	}

	switch args[0] {
	case "--help", "-h":
		usage()
	case "--version", "-v":
		fmt.Println("miniscript", version)
	case "--dump-tac":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "--dump-tac requires a script file")
			usage()
			os.Exit(1)
		}
		runFile(args[1], true)
	case "--test":
		integration := ""
		if len(args) >= 3 && args[1] == "--integration" {
			integration = args[2]
		}
		runTests(integration)
	default:
		runFile(args[0], false)
	}
}

func usage() {
	fmt.Println(`MiniScript interpreter

Usage:
  miniscript                      Interactive REPL
  miniscript <file>               Compile and run a script
  miniscript --dump-tac <file>    Dump TAC before and after execution
  miniscript --test [--integration <file>]
                                  Run the built-in checks, or a test
                                  suite file (blocks separated by ====,
                                  expected output after ----)
  miniscript --version | -v       Print the version
  miniscript --help | -h          This help`)
}

func newInterpreter(source string) *interp.Interpreter {
	i := interp.New(source)
	i.Host = hostInfo()
	i.ErrorOutput = func(text string, addLineBreak bool) {
		if addLineBreak {
			errColor.Fprintln(os.Stderr, text)
		} else {
			errColor.Fprint(os.Stderr, text)
		}
	}
	return i
}

func runFile(path string, dumpTAC bool) {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't read %s: %v\n", path, err)
		return
	}

	i := newInterpreter(string(src))
	if err := i.Compile(); err != nil {
		return
	}
	if dumpTAC {
		fmt.Println("TAC before execution:")
		dump(i.TAC())
	}
	_ = i.RunUntilDone(60, false)
	if dumpTAC {
		fmt.Println("TAC after execution:")
		dump(i.TAC())
	}
}

func dump(code []value.Line) {
	for idx, line := range code {
		fmt.Printf("%4d: %s\n", idx, line)
	}
}

// -----------------------------------------------------------------------------
// REPL
// -----------------------------------------------------------------------------

func runRepl() int {
	fmt.Printf("MiniScript %s REPL\nCtrl+C cancels input, Ctrl+D exits.\n", version)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	i := newInterpreter("")
	i.ImplicitOutput = func(text string, addLineBreak bool) {
		if addLineBreak {
			fmt.Println(text)
		} else {
			fmt.Print(text)
		}
	}

	for {
		prompt := "> "
		if i.NeedMoreInput() {
			prompt = ">>> "
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return 0
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return 0
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		i.REPL(line, 60)
	}
}

// -----------------------------------------------------------------------------
// tests
// -----------------------------------------------------------------------------

// builtinChecks is a small smoke suite in the integration format, run
// when --test is given without a suite file.
const builtinChecks = `print 6*7
----
42
====
f = function(x)
  return x*3
end function
print f(14)
----
42
====
x = [1,2,3]
x.push 42
print x.sum
----
48
====
for i in range(3,1)
  print i
end for
----
3
2
1
====
d = {"a":1}
d.b = 2
print d.values.sum
----
3
====
print "Hi""There"
----
Hi"There
====
if 1 < 2 < 3 then print "ok" else print "no"
----
ok
====
a = [3,1,2]; a.sort; print a.join("-")
----
1-2-3
`

func runTests(integrationFile string) {
	if integrationFile == "" {
		result := interp.RunSuite(builtinChecks, nil)
		if result.Failed > 0 {
			errColor.Fprintf(os.Stderr, "%d of %d checks failed\n", result.Failed, result.Total)
		}
		return
	}
	result, err := interp.RunSuiteFile(integrationFile, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "can't read %s: %v\n", integrationFile, err)
		return
	}
	if result.Failed > 0 {
		errColor.Fprintf(os.Stderr, "%d of %d tests failed\n", result.Failed, result.Total)
	}
}
