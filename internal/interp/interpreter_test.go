package interp_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dartleaf/miniscript/internal/interp"
	"github.com/dartleaf/miniscript/internal/value"
)

type capture struct {
	out strings.Builder
	err strings.Builder
}

func newCaptured(source string) (*interp.Interpreter, *capture) {
	c := &capture{}
	i := interp.New(source)
	i.StandardOutput = func(text string, eol bool) {
		c.out.WriteString(text)
		if eol {
			c.out.WriteString("\n")
		}
	}
	i.ErrorOutput = func(text string, eol bool) {
		c.err.WriteString(text)
		if eol {
			c.err.WriteString("\n")
		}
	}
	return i, c
}

func runSource(t *testing.T, source string) string {
	t.Helper()
	i, c := newCaptured(source)
	require.NoError(t, i.Compile())
	require.NoError(t, i.RunUntilDone(10, false))
	return c.out.String()
}

func TestEndToEndScenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"arith", "print 6*7", "42\n"},
		{"function", "f = function(x)\n  return x*3\nend function\nprint f(14)", "42\n"},
		{"push sum", "x = [1,2,3]\nx.push 42\nprint x.sum", "48\n"},
		{"range", "for i in range(3,1)\n  print i\nend for", "3\n2\n1\n"},
		{"map values", "d = {\"a\":1}\nd.b = 2\nprint d.values.sum", "3\n"},
		{"quote escape", "print \"Hi\"\"There\"", "Hi\"There\n"},
		{"chained compare", "if 1 < 2 < 3 then print \"ok\" else print \"no\"", "ok\n"},
		{"sort join", "a = [3,1,2]; a.sort; print a.join(\"-\")", "1-2-3\n"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, runSource(t, tt.src), tt.name)
	}
}

func TestFromLines(t *testing.T) {
	var out strings.Builder
	i := interp.FromLines("x = 40", "print x + 2")
	i.StandardOutput = func(text string, eol bool) {
		out.WriteString(text)
		if eol {
			out.WriteString("\n")
		}
	}
	require.NoError(t, i.RunUntilDone(10, false))
	assert.Equal(t, "42\n", out.String())
}

func TestCompileErrorReported(t *testing.T) {
	i, c := newCaptured("if 1 then\nx = 2")
	err := i.Compile()
	require.Error(t, err)
	assert.Contains(t, c.err.String(), "Compiler Error:")
	assert.False(t, i.Running())
}

func TestRuntimeErrorReportedAndStops(t *testing.T) {
	i, c := newCaptured("x = undefinedThing")
	err := i.RunUntilDone(10, false)
	require.Error(t, err)
	assert.Contains(t, c.err.String(), "Runtime Error:")
	assert.Contains(t, c.err.String(), "undefinedThing")
	assert.Contains(t, c.err.String(), "line 1")
	assert.True(t, i.Done())
}

func TestReplSession(t *testing.T) {
	i, c := newCaptured("")
	i.ImplicitOutput = func(text string, eol bool) {
		c.out.WriteString("= " + text)
		if eol {
			c.out.WriteString("\n")
		}
	}

	i.REPL("x = 40", 10)
	assert.False(t, i.NeedMoreInput())
	i.REPL("x + 2", 10)
	assert.Equal(t, "= 42\n", c.out.String())

	// multi-line function definition across prompts
	i.REPL("f = function(n)", 10)
	assert.True(t, i.NeedMoreInput())
	i.REPL("return n * 2", 10)
	assert.True(t, i.NeedMoreInput())
	i.REPL("end function", 10)
	assert.False(t, i.NeedMoreInput())
	i.REPL("print f(21)", 10)
	assert.Contains(t, c.out.String(), "42\n")
}

func TestReplContinuesAfterError(t *testing.T) {
	i, c := newCaptured("")
	i.REPL("x = 1", 10)
	i.REPL("x = ]", 10)
	assert.Contains(t, c.err.String(), "Compiler Error:")
	i.REPL("print x + 1", 10)
	assert.Contains(t, c.out.String(), "2\n")
}

func TestReplLineContinuation(t *testing.T) {
	i, c := newCaptured("")
	i.REPL("x = 1 +", 10)
	assert.True(t, i.NeedMoreInput())
	i.REPL("2", 10)
	assert.False(t, i.NeedMoreInput())
	i.REPL("print x", 10)
	assert.Equal(t, "3\n", c.out.String())
}

func TestGetSetGlobal(t *testing.T) {
	i, _ := newCaptured("y = x * 2")
	i.SetGlobalValue("x", value.NewNumber(21))
	require.NoError(t, i.RunUntilDone(10, false))
	v, ok := i.GetGlobalValue("y")
	require.True(t, ok)
	assert.Equal(t, 42.0, v.Num)
}

func TestRestart(t *testing.T) {
	i, c := newCaptured("print \"hi\"")
	require.NoError(t, i.RunUntilDone(10, false))
	assert.True(t, i.Done())
	i.Restart()
	assert.True(t, i.Running())
	require.NoError(t, i.RunUntilDone(10, false))
	assert.Equal(t, "hi\nhi\n", c.out.String())
}

func TestStop(t *testing.T) {
	i, _ := newCaptured("while true\nend while")
	require.NoError(t, i.Compile())
	require.NoError(t, i.Step())
	i.Stop()
	assert.True(t, i.Done())
}

func TestVersionIntrinsicUsesHost(t *testing.T) {
	i, c := newCaptured("print version.hostName")
	i.Host.Name = "test host"
	require.NoError(t, i.RunUntilDone(10, false))
	assert.Equal(t, "test host\n", c.out.String())
}

func TestParseSuite(t *testing.T) {
	content := "print 1\n----\n1\n====\nprint 2\n----\n2\n"
	cases := interp.ParseSuite(content)
	require.Len(t, cases, 2)
	assert.Equal(t, "print 1", cases[0].Source)
	assert.Equal(t, []string{"1"}, cases[0].Expected)
	assert.Equal(t, "print 2", cases[1].Source)
}

func TestRunSuite(t *testing.T) {
	var report strings.Builder
	sink := func(text string, eol bool) {
		report.WriteString(text)
		if eol {
			report.WriteString("\n")
		}
	}

	result := interp.RunSuite("print 6*7\n----\n42\n", sink)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 0, result.Failed)

	result = interp.RunSuite("print 6*7\n----\n43\n", sink)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, report.String(), "TEST FAILED")
}

func TestRunSuiteFile(t *testing.T) {
	var report strings.Builder
	sink := func(text string, eol bool) {
		report.WriteString(text)
		if eol {
			report.WriteString("\n")
		}
	}
	result, err := interp.RunSuiteFile("../../testdata/integration.txt", sink)
	require.NoError(t, err)
	assert.Greater(t, result.Total, 0)
	assert.Equal(t, 0, result.Failed, report.String())
}

func TestYieldPausesRepl(t *testing.T) {
	i, c := newCaptured("")
	i.REPL("yield", 10)
	i.REPL("print 42", 10)
	assert.Contains(t, c.out.String(), "42\n")
}
