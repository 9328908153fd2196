// Package interp is the embeddable host API: it owns a parser and a
// machine, wires up output sinks, and drives compilation, execution, and
// the REPL loop.
package interp

import (
	"fmt"
	"os"

	"github.com/dartleaf/miniscript/internal/parser"
	"github.com/dartleaf/miniscript/internal/value"
	"github.com/dartleaf/miniscript/internal/vm"

	_ "github.com/dartleaf/miniscript/internal/intrinsics"
)

// TextOutput is an output sink: a chunk of text plus whether to append a
// line break.
type TextOutput func(text string, addLineBreak bool)

// Interpreter compiles and runs one script. Create one per script; a
// machine must not be shared across goroutines.
type Interpreter struct {
	// StandardOutput receives print output. Defaults to stdout.
	StandardOutput TextOutput
	// ImplicitOutput, when set, receives the value of bare expression
	// statements (the REPL uses this). Defaults to nil.
	ImplicitOutput TextOutput
	// ErrorOutput receives error reports. Defaults to stderr.
	ErrorOutput TextOutput

	// Host describes the embedding program, surfaced by the version
	// intrinsic.
	Host vm.HostInfo

	source  string
	parser  *parser.Parser
	machine *vm.Machine
	started bool
}

// New creates an interpreter for the given source.
func New(source string) *Interpreter {
	i := &Interpreter{source: source}
	i.StandardOutput = func(text string, addLineBreak bool) {
		if addLineBreak {
			fmt.Fprintln(os.Stdout, text)
		} else {
			fmt.Fprint(os.Stdout, text)
		}
	}
	i.ErrorOutput = func(text string, addLineBreak bool) {
		if addLineBreak {
			fmt.Fprintln(os.Stderr, text)
		} else {
			fmt.Fprint(os.Stderr, text)
		}
	}
	return i
}

// FromLines creates an interpreter from individual source lines.
func FromLines(lines ...string) *Interpreter {
	src := ""
	for _, line := range lines {
		src += line + "\n"
	}
	return New(src)
}

// Source returns the current source code.
func (i *Interpreter) Source() string {
	return i.source
}

// SetSource replaces the source and discards any compiled state.
func (i *Interpreter) SetSource(source string) {
	i.source = source
	i.parser = nil
	i.machine = nil
	i.started = false
}

// Reset is SetSource under the name hosts expect.
func (i *Interpreter) Reset(source string) {
	i.SetSource(source)
}

// Compile parses the source, reporting any compiler error through
// ErrorOutput. It is idempotent.
func (i *Interpreter) Compile() error {
	if i.machine != nil {
		return nil
	}
	if i.parser == nil {
		i.parser = parser.NewParser()
	}
	if err := i.parser.Parse(i.source, false); err != nil {
		i.report(err)
		i.parser = nil
		return err
	}
	i.machine = vm.New(i.parser.Program())
	i.machine.StandardOutput = i.stdout
	i.machine.Host = i.Host
	return nil
}

// TAC returns the compiled program, compiling first if needed.
func (i *Interpreter) TAC() []value.Line {
	if err := i.Compile(); err != nil {
		return nil
	}
	return i.parser.Program()
}

func (i *Interpreter) stdout(text string, addLineBreak bool) {
	if i.StandardOutput != nil {
		i.StandardOutput(text, addLineBreak)
	}
}

func (i *Interpreter) report(err error) {
	if i.ErrorOutput != nil {
		i.ErrorOutput(err.Error(), true)
	}
}

// Restart rewinds the compiled program to the beginning, clearing
// globals.
func (i *Interpreter) Restart() {
	if i.machine != nil {
		i.machine.Reset(true)
	}
	i.started = false
}

// Stop terminates a running program.
func (i *Interpreter) Stop() {
	if i.machine != nil {
		i.machine.Stop()
	}
}

// Running reports whether a program is compiled and not yet finished.
func (i *Interpreter) Running() bool {
	return i.machine != nil && !i.machine.Done()
}

// Done reports whether the program has run to completion.
func (i *Interpreter) Done() bool {
	return i.machine != nil && i.machine.Done()
}

// NeedMoreInput reports whether REPL input so far is an incomplete
// statement or block.
func (i *Interpreter) NeedMoreInput() bool {
	return i.parser != nil && i.parser.NeedMoreInput()
}

// RunUntilDone runs until completion, a yield, a pending partial result
// (when returnEarly), or the time limit. Runtime errors are reported and
// stop the program.
func (i *Interpreter) RunUntilDone(timeLimit float64, returnEarly bool) error {
	if err := i.Compile(); err != nil {
		return err
	}
	if !i.started {
		i.machine.RestartClock()
		i.started = true
	}
	if err := i.machine.RunUntilDone(timeLimit, returnEarly); err != nil {
		i.report(err)
		i.machine.Stop()
		return err
	}
	return nil
}

// Step executes a single TAC line.
func (i *Interpreter) Step() error {
	if err := i.Compile(); err != nil {
		return err
	}
	if err := i.machine.Step(); err != nil {
		i.report(err)
		i.machine.Stop()
		return err
	}
	return nil
}

// REPL feeds one line of input to the persistent parser and, when a
// complete statement is available, runs it. Compile errors are reported
// and the half-parsed input discarded; the session continues.
func (i *Interpreter) REPL(line string, timeLimit float64) {
	if i.parser == nil {
		i.parser = parser.NewParser()
	}
	if i.machine == nil {
		i.machine = vm.New(i.parser.Program())
		i.machine.StandardOutput = i.stdout
		i.machine.Host = i.Host
	}
	i.machine.StoreImplicit = i.ImplicitOutput != nil

	global := i.machine.GlobalContext()
	counterBefore := global.ImplicitResultCounter

	if err := i.parser.Parse(line, true); err != nil {
		i.report(err)
		i.parser.PartialReset()
		global.Code = i.parser.Program()
		global.PC = len(global.Code)
		return
	}
	if i.parser.NeedMoreInput() {
		return
	}

	global.Code = i.parser.Program()
	if err := i.machine.RunUntilDone(timeLimit, false); err != nil {
		i.report(err)
		i.machine.Stop()
		return
	}

	if i.ImplicitOutput != nil && global.ImplicitResultCounter > counterBefore {
		if v, ok := i.GetGlobalValue("_"); ok && !v.IsNull() {
			i.ImplicitOutput(value.ToString(v), true)
		}
	}
}

// GetGlobalValue reads a global variable.
func (i *Interpreter) GetGlobalValue(name string) (value.Value, bool) {
	if i.machine == nil {
		return value.Value{}, false
	}
	global := i.machine.GlobalContext()
	if global.Variables == nil {
		return value.Value{}, false
	}
	return global.Variables.GetString(name)
}

// SetGlobalValue writes a global variable, compiling the source first if
// needed so the value lands in the program's global context.
func (i *Interpreter) SetGlobalValue(name string, v value.Value) {
	if i.machine == nil && i.Compile() != nil {
		return
	}
	_ = i.machine.GlobalContext().SetVar(name, v)
}
