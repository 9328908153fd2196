package vm

import (
	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/value"
)

// maxPendingArgs caps a frame's pending-argument stack, shared by all
// calls in flight from that frame.
const maxPendingArgs = 255

// Context is one call frame: an immutable code vector, a program
// counter, locals, temporaries, and the slot in the caller that receives
// the result.
type Context struct {
	Code []value.Line
	PC   int

	Variables *value.Map // locals; created lazily
	OuterVars *value.Map // captured module scope, or nil

	self value.Value
	args []value.Value // pending call arguments

	Parent        *Context
	ResultStorage value.Value // lhs node in the parent, or null to discard
	resultValue   value.Value

	VM      *Machine
	Partial *Result // in-progress intrinsic result, if any

	Temps []value.Value

	ImplicitResultCounter int
}

func NewContext(code []value.Line) *Context {
	return &Context{Code: code}
}

// Done reports whether execution has moved past the end of the code.
func (c *Context) Done() bool {
	return c.PC >= len(c.Code)
}

// Root returns the bottom of the call chain: the global context.
func (c *Context) Root() *Context {
	root := c
	for root.Parent != nil {
		root = root.Parent
	}
	return root
}

// Self returns the frame's self value (null when unbound).
func (c *Context) Self() value.Value {
	return c.self
}

func (c *Context) SetSelf(v value.Value) {
	c.self = v
}

// GetTemp returns the temporary at num, or null if it was never set.
func (c *Context) GetTemp(num int) value.Value {
	if num < 0 || num >= len(c.Temps) {
		return value.Null()
	}
	return c.Temps[num]
}

func (c *Context) SetTemp(num int, v value.Value) {
	for len(c.Temps) <= num {
		c.Temps = append(c.Temps, value.Value{})
	}
	c.Temps[num] = v
}

func (c *Context) locals() *value.Map {
	if c.Variables == nil {
		c.Variables = value.NewMap()
	}
	return c.Variables
}

// GetVar resolves an identifier: special names, locals, outer vars,
// globals, then the intrinsic table.
func (c *Context) GetVar(ident string, localOnly value.LocalOnlyMode) (value.Value, error) {
	switch ident {
	case "self":
		return c.self, nil
	case "locals":
		return value.NewMapValue(c.locals()), nil
	case "globals":
		return value.NewMapValue(c.Root().locals()), nil
	case "outer":
		if c.OuterVars != nil {
			return value.NewMapValue(c.OuterVars), nil
		}
		return value.NewMapValue(c.Root().locals()), nil
	}

	if c.Variables != nil {
		if v, ok := c.Variables.GetString(ident); ok {
			return v, nil
		}
	}

	if localOnly != value.LocalOnlyOff {
		if localOnly == value.LocalOnlyStrict {
			return value.Value{}, errs.NewUndefinedLocal(ident)
		}
		if c.VM != nil {
			c.VM.Output("Warning: '"+ident+"' is not defined locally; accessing outer scope (deprecated)", true)
		}
	}

	if c.OuterVars != nil {
		if v, ok := c.OuterVars.GetString(ident); ok {
			return v, nil
		}
	}

	if root := c.Root(); root != c && root.Variables != nil {
		if v, ok := root.Variables.GetString(ident); ok {
			return v, nil
		}
	}

	if in := ByName(ident); in != nil {
		return in.FuncValue(), nil
	}

	return value.Value{}, errs.NewUndefinedIdentifier(ident)
}

// SetVar assigns an identifier in this frame. self is the frame's self
// slot; globals and locals refuse direct assignment.
func (c *Context) SetVar(ident string, v value.Value) error {
	switch ident {
	case "self":
		c.self = v
		return nil
	case "globals", "locals":
		return errs.NewRuntimeError("can't assign to %s", ident)
	}
	return c.locals().Assign(value.NewString(ident), v)
}

// StoreValue writes v into an lhs node: a temp, a variable, or a
// sequence element. A null lhs discards the value.
func (c *Context) StoreValue(lhs, v value.Value) error {
	switch lhs.Kind {
	case value.KindNull:
		return nil
	case value.KindTemp:
		c.SetTemp(lhs.TempNum, v)
		return nil
	case value.KindVar:
		return c.SetVar(lhs.Str, v)
	case value.KindSeqElem:
		seq, err := lhs.Seq.Sequence.Val(c)
		if err != nil {
			return err
		}
		idx, err := lhs.Seq.Index.Val(c)
		if err != nil {
			return err
		}
		switch seq.Kind {
		case value.KindMap:
			return seq.Map.Assign(idx, v)
		case value.KindList:
			if idx.Kind != value.KindNumber {
				return errs.NewTypeError("Type Error (list index must be a number)")
			}
			return seq.List.Set(idx.Num, v)
		case value.KindString:
			return errs.NewTypeError("Type Error (strings are immutable)")
		default:
			return errs.NewTypeError("Type Error (can't set an element of %s)", seq.Kind)
		}
	default:
		return errs.NewRuntimeError("not an lvalue: %s", value.CodeForm(lhs, 1))
	}
}

// PushArg pushes a pending call argument, capped at 255 in flight.
func (c *Context) PushArg(v value.Value) error {
	if len(c.args) >= maxPendingArgs {
		return errs.NewTooManyArguments()
	}
	c.args = append(c.args, v)
	return nil
}

// PopArg pops the most recently pushed pending argument.
func (c *Context) PopArg() value.Value {
	if len(c.args) == 0 {
		return value.Null()
	}
	v := c.args[len(c.args)-1]
	c.args = c.args[:len(c.args)-1]
	return v
}

// ProtoMap implements value.Context: the machine's per-VM prototype map
// for a primitive kind.
func (c *Context) ProtoMap(kind value.Kind) *value.Map {
	if c.VM == nil {
		return nil
	}
	return c.VM.ProtoMap(kind)
}

// Machine returns the owning machine.
func (c *Context) Machine() *Machine {
	return c.VM
}

// GetParam is the intrinsic-side accessor for a bound parameter. A
// parameter named self lives in the frame's self slot, whichever way it
// was bound.
func (c *Context) GetParam(name string) value.Value {
	if name == "self" {
		return c.self
	}
	if c.Variables == nil {
		return value.Null()
	}
	v, _ := c.Variables.GetString(name)
	return v
}

// CurrentLoc returns the source location of the line about to execute,
// or the nearest earlier one.
func (c *Context) CurrentLoc() *errs.SourceLoc {
	for i := c.PC; i >= 0; i-- {
		if i < len(c.Code) && c.Code[i].Loc != nil {
			return c.Code[i].Loc
		}
	}
	return nil
}
