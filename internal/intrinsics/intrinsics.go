// Package intrinsics implements the built-in function library. Each
// intrinsic registers itself with the VM's table in an init function;
// importing this package (usually blank) makes the library available.
package intrinsics

import (
	"sync"

	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/value"
	"github.com/dartleaf/miniscript/internal/vm"
)

// LanguageVersion is reported by the version intrinsic.
const LanguageVersion = 1.6

func ok(v value.Value) (vm.Result, error) {
	return vm.Result{Done: true, Value: v}, nil
}

func okNull() (vm.Result, error) {
	return vm.Result{Done: true, Value: value.Null()}, nil
}

func fail(err error) (vm.Result, error) {
	return vm.Result{}, err
}

func numParam(c *vm.Context, name string) float64 {
	v := c.GetParam(name)
	if v.Kind == value.KindNumber {
		return v.Num
	}
	return 0
}

func init() {
	vm.Register("print", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		text := value.ToString(c.GetParam("s"))
		delim := c.GetParam("delimiter")
		if delim.IsNull() {
			c.Machine().Output(text, true)
		} else {
			c.Machine().Output(text+value.ToString(delim), false)
		}
		return okNull()
	}).AddParam("s", value.NewString("")).AddParam("delimiter", value.Null())

	vm.Register("yield", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		c.Machine().Yielding = true
		return okNull()
	})

	vm.Register("wait", func(c *vm.Context, partial *vm.Result) (vm.Result, error) {
		m := c.Machine()
		if partial == nil {
			target := m.RunTime() + numParam(c, "seconds")
			return vm.Result{Done: false, Value: value.NewNumber(target)}, nil
		}
		if m.RunTime() >= partial.Value.Num {
			return okNull()
		}
		return *partial, nil
	}).AddParam("seconds", value.NewNumber(1))

	vm.Register("time", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		return ok(value.NewNumber(c.Machine().RunTime()))
	})

	vm.Register("stackTrace", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		root := c.Root()
		if root.Variables != nil {
			if cached, found := root.Variables.GetString("_stackAtBreak"); found {
				return ok(cached)
			}
		}
		l := value.NewList()
		for _, loc := range c.Machine().StackLocs() {
			if loc == nil {
				continue
			}
			l.Values = append(l.Values, value.NewString(loc.String()))
		}
		return ok(value.NewListValue(l))
	})

	vm.Register("intrinsics", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		m := value.NewMap()
		for _, name := range vm.Names() {
			m.SetString(name, vm.ByName(name).FuncValue())
		}
		m.AssignOverride = func(key, val value.Value) (bool, error) {
			return false, errs.NewRuntimeError("can't assign to the intrinsics map")
		}
		return ok(value.NewMapValue(m))
	})

	vm.Register("version", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		m := c.Machine()
		if m.VersionMap == nil {
			info := value.NewMap()
			info.SetString("miniscript", value.NewNumber(LanguageVersion))
			info.SetString("host", value.NewNumber(m.Host.Version))
			info.SetString("hostName", value.NewString(m.Host.Name))
			info.SetString("hostInfo", value.NewString(m.Host.Info))
			m.VersionMap = info
		}
		return ok(value.NewMapValue(m.VersionMap))
	})
}

// Type prototype intrinsics and templates. Each machine clones a
// template the first time a script touches the prototype, so per-VM
// extensions do not leak between machines.

var (
	templateOnce sync.Once
	templates    map[value.Kind]*value.Map
)

func typeTemplate(kind value.Kind) *value.Map {
	templateOnce.Do(buildTemplates)
	return templates[kind]
}

func buildTemplates() {
	named := func(names ...string) *value.Map {
		m := value.NewMap()
		for _, n := range names {
			if in := vm.ByName(n); in != nil {
				m.SetString(n, in.FuncValue())
			}
		}
		return m
	}
	templates = map[value.Kind]*value.Map{
		value.KindNumber: value.NewMap(),
		value.KindString: named("hasIndex", "indexes", "indexOf", "insert", "code",
			"len", "lower", "remove", "replace", "split", "upper", "val", "values"),
		value.KindList: named("hasIndex", "indexes", "indexOf", "insert", "join",
			"len", "pop", "pull", "push", "remove", "replace", "shuffle", "sort",
			"sum", "values"),
		value.KindMap: named("hasIndex", "indexes", "indexOf", "len", "pop",
			"pull", "push", "remove", "replace", "shuffle", "sum", "values"),
		value.KindFunction: value.NewMap(),
	}
}

func init() {
	for _, kind := range []value.Kind{value.KindNumber, value.KindString,
		value.KindList, value.KindMap, value.KindFunction} {
		k := kind
		vm.RegisterTypeTemplate(k, func() *value.Map { return typeTemplate(k) })
	}

	protoIntrinsic := func(name string, kind value.Kind) {
		vm.Register(name, func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
			return ok(value.NewMapValue(c.Machine().ProtoMap(kind)))
		})
	}
	protoIntrinsic("number", value.KindNumber)
	protoIntrinsic("string", value.KindString)
	protoIntrinsic("list", value.KindList)
	protoIntrinsic("map", value.KindMap)
	protoIntrinsic("funcRef", value.KindFunction)
}
