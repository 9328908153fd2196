package interp

import (
	"fmt"
	"os"
	"strings"
)

// SuiteCase is one block of an integration-suite file: a script and the
// stdout it is expected to produce.
type SuiteCase struct {
	Source   string
	Expected []string
	Line     int // 1-based line of the block start, for reporting
}

// SuiteResult summarizes one suite run.
type SuiteResult struct {
	Total    int
	Failed   int
	Failures []string
}

// ParseSuite reads the integration-suite format: test blocks separated
// by lines starting with ====, with the expected output following a
// ---- line inside each block.
func ParseSuite(content string) []SuiteCase {
	var cases []SuiteCase
	var src, expected []string
	inExpected := false
	blockLine := 1

	flush := func(endLine int) {
		if len(src) == 0 && len(expected) == 0 {
			blockLine = endLine + 1
			return
		}
		cases = append(cases, SuiteCase{
			Source:   strings.Join(src, "\n"),
			Expected: expected,
			Line:     blockLine,
		})
		src, expected = nil, nil
		inExpected = false
		blockLine = endLine + 1
	}

	lines := strings.Split(content, "\n")
	for n, line := range lines {
		switch {
		case strings.HasPrefix(line, "===="):
			flush(n + 1)
		case strings.HasPrefix(line, "----"):
			inExpected = true
		case inExpected:
			expected = append(expected, line)
		default:
			src = append(src, line)
		}
	}
	flush(len(lines))
	return cases
}

// RunSuite executes each case in a fresh interpreter and compares its
// output (including reported errors) against the expectation.
func RunSuite(content string, report TextOutput) SuiteResult {
	if report == nil {
		report = func(text string, addLineBreak bool) {
			if addLineBreak {
				fmt.Fprintln(os.Stdout, text)
			} else {
				fmt.Fprint(os.Stdout, text)
			}
		}
	}

	var result SuiteResult
	for _, tc := range ParseSuite(content) {
		result.Total++
		got := runCase(tc.Source)
		want := tc.Expected
		for len(want) > 0 && want[len(want)-1] == "" {
			want = want[:len(want)-1]
		}
		if !equalLines(got, want) {
			result.Failed++
			msg := fmt.Sprintf("TEST FAILED (block at line %d)\nexpected:\n  %s\nactual:\n  %s",
				tc.Line, strings.Join(want, "\n  "), strings.Join(got, "\n  "))
			result.Failures = append(result.Failures, msg)
			report(msg, true)
		}
	}
	report(fmt.Sprintf("Integration tests: %d/%d passed", result.Total-result.Failed, result.Total), true)
	return result
}

// RunSuiteFile is RunSuite over a file on disk.
func RunSuiteFile(path string, report TextOutput) (SuiteResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return SuiteResult{}, err
	}
	return RunSuite(string(content), report), nil
}

func runCase(source string) []string {
	var buf strings.Builder
	sink := func(text string, addLineBreak bool) {
		buf.WriteString(text)
		if addLineBreak {
			buf.WriteString("\n")
		}
	}
	i := New(source)
	i.StandardOutput = sink
	i.ErrorOutput = sink
	if err := i.Compile(); err == nil {
		_ = i.RunUntilDone(60, false)
	}
	out := strings.TrimRight(buf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
