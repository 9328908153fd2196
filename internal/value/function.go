package value

import "strings"

// Param is one declared function parameter, with an optional literal
// default value.
type Param struct {
	Name    string
	Default Value
}

// Function is compiled function code: an ordered parameter list plus the
// TAC lines of the body.
type Function struct {
	Params []Param
	Code   []Line
}

// FuncValue is a function at runtime. Outer carries the defining frame's
// variables, captured by reference when BindAssignA runs.
type FuncValue struct {
	id    uint64
	Func  *Function
	Outer *Map
}

// BindAndCopy returns a function value over the same code with outer
// variables bound to vars.
func (fv *FuncValue) BindAndCopy(vars *Map) Value {
	return NewFunctionValue(fv.Func, vars)
}

func (f *Function) String() string {
	var b strings.Builder
	b.WriteString("FUNCTION(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		if !p.Default.IsNull() {
			b.WriteString("=")
			b.WriteString(CodeForm(p.Default, 1))
		}
	}
	b.WriteString(")")
	return b.String()
}
