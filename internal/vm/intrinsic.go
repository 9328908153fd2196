package vm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dartleaf/miniscript/internal/value"
)

// Result is what an intrinsic returns: either a final value (Done), or
// an opaque in-progress value the VM stores on the context and hands back
// on the next step.
type Result struct {
	Done  bool
	Value value.Value
}

// Fn is an intrinsic implementation. It reads its arguments from the
// context (they are bound to the declared parameter names) and receives
// the prior partial result when re-entered.
type Fn func(c *Context, partial *Result) (Result, error)

// Intrinsic is one registered built-in function. Intrinsics are
// registered once, process-wide, keyed by name and by a small integer id
// that CallIntrinsicA dispatches on.
type Intrinsic struct {
	Name string

	id     int
	params []value.Param
	fn     Fn

	valFunc value.Value // cached wrapper function value
}

type registry struct {
	mu     sync.RWMutex
	all    []*Intrinsic
	byName map[string]*Intrinsic
}

var intrinsics = &registry{byName: make(map[string]*Intrinsic)}

// Register creates and registers an intrinsic. Panics if the name is
// taken; registration happens from init functions, where a duplicate is
// a programming error.
func Register(name string, fn Fn) *Intrinsic {
	intrinsics.mu.Lock()
	defer intrinsics.mu.Unlock()
	if _, exists := intrinsics.byName[name]; exists {
		panic(fmt.Sprintf("intrinsic %q is already registered", name))
	}
	i := &Intrinsic{Name: name, id: len(intrinsics.all), fn: fn}
	intrinsics.all = append(intrinsics.all, i)
	intrinsics.byName[name] = i
	return i
}

// AddParam declares the next parameter, with a default used when the
// caller omits it.
func (i *Intrinsic) AddParam(name string, def value.Value) *Intrinsic {
	i.params = append(i.params, value.Param{Name: name, Default: def})
	return i
}

// ID returns the dispatch id embedded into CallIntrinsicA lines.
func (i *Intrinsic) ID() int {
	return i.id
}

// FuncValue returns the function value a script sees for this intrinsic:
// a two-line wrapper that dispatches by id and returns temp 0.
func (i *Intrinsic) FuncValue() value.Value {
	if i.valFunc.Kind == value.KindFunction {
		return i.valFunc
	}
	fn := &value.Function{
		Params: i.params,
		Code: []value.Line{
			value.NewLine(value.NewTemp(0), value.OpCallIntrinsicA, value.NewNumber(float64(i.id)), value.Null()),
			value.NewLine(value.NewTemp(0), value.OpReturnA, value.NewTemp(0), value.Null()),
		},
	}
	i.valFunc = value.NewFunctionValue(fn, nil)
	return i.valFunc
}

// ByName finds a registered intrinsic, or nil.
func ByName(name string) *Intrinsic {
	intrinsics.mu.RLock()
	defer intrinsics.mu.RUnlock()
	return intrinsics.byName[name]
}

// ByID finds a registered intrinsic by dispatch id, or nil.
func ByID(id int) *Intrinsic {
	intrinsics.mu.RLock()
	defer intrinsics.mu.RUnlock()
	if id < 0 || id >= len(intrinsics.all) {
		return nil
	}
	return intrinsics.all[id]
}

// Names returns all registered intrinsic names, sorted.
func Names() []string {
	intrinsics.mu.RLock()
	defer intrinsics.mu.RUnlock()
	out := make([]string, 0, len(intrinsics.all))
	for _, i := range intrinsics.all {
		out = append(out, i.Name)
	}
	sort.Strings(out)
	return out
}

// Type prototype templates, registered by the intrinsic library. A
// Machine clones a template the first time a script touches the
// corresponding prototype, so per-VM extensions stay per-VM.
var typeTemplates = map[value.Kind]func() *value.Map{}

// RegisterTypeTemplate installs the template builder for one primitive
// kind's prototype map.
func RegisterTypeTemplate(kind value.Kind, build func() *value.Map) {
	typeTemplates[kind] = build
}
