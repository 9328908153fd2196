// Package vm executes compiled TAC programs on a stack of call-frame
// contexts, with cooperative yield and resumable intrinsic calls.
package vm

import (
	"fmt"
	"os"
	"time"

	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/value"
)

// OutputFn is a text sink: a line of output plus whether to append a
// line break.
type OutputFn func(text string, addLineBreak bool)

// HostInfo is the metadata an embedding host provides about itself.
type HostInfo struct {
	Name    string
	Info    string
	Version float64
}

// Machine runs one script. It owns the call stack (global context at the
// bottom), the per-VM type prototype maps, and the cooperative-scheduling
// flags. A Machine is single-threaded; two scripts need two machines.
type Machine struct {
	stack []*Context

	StandardOutput OutputFn
	StoreImplicit  bool
	Yielding       bool

	// Host describes the embedding host, surfaced by the version
	// intrinsic.
	Host HostInfo

	VersionMap *value.Map // cached by the version intrinsic

	startTime time.Time

	protos map[value.Kind]*value.Map
}

// New creates a machine around a global context running code.
func New(code []value.Line) *Machine {
	m := &Machine{
		StandardOutput: func(text string, addLineBreak bool) {
			if addLineBreak {
				fmt.Fprintln(os.Stdout, text)
			} else {
				fmt.Fprint(os.Stdout, text)
			}
		},
		startTime: time.Now(),
		protos:    make(map[value.Kind]*value.Map),
	}
	global := NewContext(code)
	global.VM = m
	m.stack = []*Context{global}
	return m
}

// Output writes to the machine's standard output sink.
func (m *Machine) Output(text string, addLineBreak bool) {
	if m.StandardOutput != nil {
		m.StandardOutput(text, addLineBreak)
	}
}

// GlobalContext returns the bottom-of-stack context.
func (m *Machine) GlobalContext() *Context {
	return m.stack[0]
}

// CurrentContext returns the top of the call stack.
func (m *Machine) CurrentContext() *Context {
	return m.stack[len(m.stack)-1]
}

// Done reports whether the program has run to completion.
func (m *Machine) Done() bool {
	return len(m.stack) == 1 && m.stack[0].Done()
}

// RunTime is the seconds elapsed on the machine's monotonic stopwatch.
func (m *Machine) RunTime() float64 {
	return time.Since(m.startTime).Seconds()
}

// RestartClock resets the stopwatch, as when a program (re)starts.
func (m *Machine) RestartClock() {
	m.startTime = time.Now()
}

// Step executes one TAC line. Finished contexts are popped first; their
// results land in the caller's result-storage slot.
func (m *Machine) Step() error {
	ctx := m.CurrentContext()
	for ctx.Done() {
		if len(m.stack) == 1 {
			return nil
		}
		if err := m.popContext(); err != nil {
			errs.SetLocation(err, m.nearestLoc())
			return err
		}
		ctx = m.CurrentContext()
	}

	line := ctx.Code[ctx.PC]
	ctx.PC++
	if err := m.execLine(ctx, line); err != nil {
		if errs.Location(err) == nil {
			loc := line.Loc
			if loc == nil {
				loc = m.nearestLoc()
			}
			errs.SetLocation(err, loc)
		}
		return err
	}
	return nil
}

// RunUntilDone steps until the program ends, the script yields, a
// partial (resumable) intrinsic result is pending and returnEarly is
// set, or the wall-clock budget runs out. It uses a monotonic clock for
// the budget.
func (m *Machine) RunUntilDone(timeLimit float64, returnEarly bool) error {
	deadline := time.Now().Add(time.Duration(timeLimit * float64(time.Second)))
	for !m.Done() {
		if err := m.Step(); err != nil {
			return err
		}
		if m.Yielding {
			m.Yielding = false
			return nil
		}
		if returnEarly && m.CurrentContext().Partial != nil {
			return nil
		}
		if timeLimit >= 0 && !time.Now().Before(deadline) {
			return nil
		}
	}
	return nil
}

// Stop truncates the call stack to the global context and moves its pc
// past the end of code.
func (m *Machine) Stop() {
	m.stack = m.stack[:1]
	global := m.stack[0]
	global.PC = len(global.Code)
	global.Partial = nil
}

// Reset clears the call stack and rewinds the global context. Global
// variables survive unless clearVariables is set.
func (m *Machine) Reset(clearVariables bool) {
	m.stack = m.stack[:1]
	global := m.stack[0]
	global.PC = 0
	global.Partial = nil
	global.Temps = nil
	if clearVariables {
		global.Variables = nil
	}
	m.Yielding = false
	m.RestartClock()
}

func (m *Machine) pushContext(c *Context) {
	c.VM = m
	m.stack = append(m.stack, c)
}

func (m *Machine) popContext() error {
	if len(m.stack) == 1 {
		return nil
	}
	old := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	parent := m.stack[len(m.stack)-1]
	if !old.ResultStorage.IsNull() {
		// storage errors surface on the caller's next step instead
		return parent.StoreValue(old.ResultStorage, old.resultValue)
	}
	return nil
}

// StackLocs returns the source locations of all frames, newest first.
func (m *Machine) StackLocs() []*errs.SourceLoc {
	out := make([]*errs.SourceLoc, 0, len(m.stack))
	for i := len(m.stack) - 1; i >= 0; i-- {
		out = append(out, m.stack[i].CurrentLoc())
	}
	return out
}

func (m *Machine) nearestLoc() *errs.SourceLoc {
	for i := len(m.stack) - 1; i >= 0; i-- {
		if loc := m.stack[i].CurrentLoc(); loc != nil {
			return loc
		}
	}
	return nil
}

// ProtoMap returns the per-VM prototype map for a primitive kind,
// cloning the intrinsic library's template on first use so scripts can
// extend it without affecting other machines.
func (m *Machine) ProtoMap(kind value.Kind) *value.Map {
	if p, ok := m.protos[kind]; ok {
		return p
	}
	build := typeTemplates[kind]
	if build == nil {
		return nil
	}
	p := build().ShallowClone()
	m.protos[kind] = p
	return p
}
