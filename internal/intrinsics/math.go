package intrinsics

import (
	"math"

	"github.com/dartleaf/miniscript/internal/value"
	"github.com/dartleaf/miniscript/internal/vm"
)

func mathIntrinsic(name string, f func(x float64) float64) {
	vm.Register(name, func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		return ok(value.NewNumber(f(numParam(c, "x"))))
	}).AddParam("x", value.NewNumber(0))
}

func init() {
	mathIntrinsic("abs", math.Abs)
	mathIntrinsic("acos", math.Acos)
	mathIntrinsic("asin", math.Asin)
	mathIntrinsic("ceil", math.Ceil)
	mathIntrinsic("cos", math.Cos)
	mathIntrinsic("floor", math.Floor)
	mathIntrinsic("sin", math.Sin)
	mathIntrinsic("sqrt", math.Sqrt)
	mathIntrinsic("tan", math.Tan)

	mathIntrinsic("sign", func(x float64) float64 {
		if x > 0 {
			return 1
		}
		if x < 0 {
			return -1
		}
		return 0
	})

	vm.Register("atan", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		y, x := numParam(c, "y"), numParam(c, "x")
		if x == 1 {
			return ok(value.NewNumber(math.Atan(y)))
		}
		return ok(value.NewNumber(math.Atan2(y, x)))
	}).AddParam("y", value.NewNumber(0)).AddParam("x", value.NewNumber(1))

	vm.Register("log", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		x, base := numParam(c, "x"), numParam(c, "base")
		return ok(value.NewNumber(math.Log(x) / math.Log(base)))
	}).AddParam("x", value.NewNumber(0)).AddParam("base", value.NewNumber(10))

	vm.Register("pi", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		return ok(value.NewNumber(math.Pi))
	})

	vm.Register("round", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		x := numParam(c, "x")
		// negative decimalPlaces rounds to powers of 10
		pow := math.Pow(10, numParam(c, "decimalPlaces"))
		return ok(value.NewNumber(math.Round(x*pow) / pow))
	}).AddParam("x", value.NewNumber(0)).AddParam("decimalPlaces", value.NewNumber(0))

	bitwise := func(name string, f func(a, b uint32) uint32, negWhen func(na, nb bool) bool) {
		vm.Register(name, func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
			i, j := numParam(c, "i"), numParam(c, "j")
			// sign-magnitude: operate on 32-bit magnitudes, recombine sign
			ni, nj := i < 0, j < 0
			r := float64(f(uint32(math.Abs(i)), uint32(math.Abs(j))))
			if negWhen(ni, nj) {
				r = -r
			}
			return ok(value.NewNumber(r))
		}).AddParam("i", value.NewNumber(0)).AddParam("j", value.NewNumber(0))
	}
	bitwise("bitAnd", func(a, b uint32) uint32 { return a & b }, func(na, nb bool) bool { return na && nb })
	bitwise("bitOr", func(a, b uint32) uint32 { return a | b }, func(na, nb bool) bool { return na || nb })
	bitwise("bitXor", func(a, b uint32) uint32 { return a ^ b }, func(na, nb bool) bool { return na != nb })

	vm.Register("char", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		return ok(value.NewString(string(rune(int(numParam(c, "codePoint"))))))
	}).AddParam("codePoint", value.NewNumber(65))

	vm.Register("code", func(c *vm.Context, _ *vm.Result) (vm.Result, error) {
		s := value.ToString(c.GetParam("self"))
		for _, r := range s {
			return ok(value.NewNumber(float64(r)))
		}
		return ok(value.NewNumber(0))
	}).AddParam("self", value.Null())
}
