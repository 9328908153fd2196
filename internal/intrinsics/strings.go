package intrinsics

import (
	"strconv"
	"strings"

	"github.com/dartleaf/miniscript/internal/value"
	"github.com/dartleaf/miniscript/internal/vm"
)

func init() {
	vm.Register("lower", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		if self.Kind != value.KindString {
			return ok(self)
		}
		return ok(value.NewString(strings.ToLower(self.Str)))
	}).AddParam("self", value.Null())

	vm.Register("upper", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		if self.Kind != value.KindString {
			return ok(self)
		}
		return ok(value.NewString(strings.ToUpper(self.Str)))
	}).AddParam("self", value.Null())

	vm.Register("str", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		return ok(value.NewString(value.ToString(c.GetParam("x"))))
	}).AddParam("x", value.NewString(""))

	vm.Register("val", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		self := c.GetParam("self")
		switch self.Kind {
		case value.KindNumber:
			return ok(self)
		case value.KindString:
			n, err := strconv.ParseFloat(strings.TrimSpace(self.Str), 64)
			if err != nil {
				return ok(value.NewNumber(0))
			}
			return ok(value.NewNumber(n))
		default:
			return okNull()
		}
	}).AddParam("self", value.NewNumber(0))

	vm.Register("hash", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		h := value.Hash(c.GetParam("obj"))
		return ok(value.NewNumber(float64(int32(h))))
	}).AddParam("obj", value.Null())

	vm.Register("refEquals", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		a, b := c.GetParam("a"), c.GetParam("b")
		if a.Kind != b.Kind {
			return ok(value.Truth01(false))
		}
		same := false
		switch a.Kind {
		case value.KindNull:
			same = true
		case value.KindNumber:
			same = a.Num == b.Num
		case value.KindString:
			same = a.Str == b.Str
		case value.KindList:
			same = a.List == b.List
		case value.KindMap:
			same = a.Map == b.Map
		case value.KindFunction:
			same = a.Fn == b.Fn
		}
		return ok(value.Truth01(same))
	}).AddParam("a", value.Null()).AddParam("b", value.Null())
}
