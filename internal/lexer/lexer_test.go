package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dartleaf/miniscript/internal/lexer"
	"github.com/dartleaf/miniscript/internal/token"
)

func TestDequeue_BasicProgram(t *testing.T) {
	input := `x = 3.14
while x > 0
	x -= 1
end while`

	tests := []struct {
		kind token.Kind
		text string
	}{
		{token.Identifier, "x"},
		{token.OpAssign, "="},
		{token.Number, "3.14"},
		{token.EOL, "\n"},

		{token.Keyword, "while"},
		{token.Identifier, "x"},
		{token.OpGreater, ">"},
		{token.Number, "0"},
		{token.EOL, "\n"},

		{token.Identifier, "x"},
		{token.OpAssignMinus, "-="},
		{token.Number, "1"},
		{token.EOL, "\n"},

		{token.Keyword, "end while"},
		{token.EOF, ""},
	}

	l := lexer.New(input)
	for i, tt := range tests {
		tok, err := l.Dequeue()
		require.NoError(t, err, "tests[%d]", i)
		if tok.Kind != tt.kind {
			t.Fatalf("tests[%d] - kind wrong. expected=%s, got=%s (text=%q)",
				i, tt.kind, tok.Kind, tok.Text)
		}
		if tok.Text != tt.text {
			t.Fatalf("tests[%d] - text wrong. expected=%q, got=%q", i, tt.text, tok.Text)
		}
	}
	assert.True(t, l.AtEnd())
}

func TestCompoundKeywords(t *testing.T) {
	tests := []struct {
		input string
		text  string
	}{
		{"end if", "end if"},
		{"end while", "end while"},
		{"end for", "end for"},
		{"end function", "end function"},
		{"else if", "else if"},
	}
	for _, tt := range tests {
		l := lexer.New(tt.input)
		tok, err := l.Dequeue()
		require.NoError(t, err, tt.input)
		assert.Equal(t, token.Keyword, tok.Kind, tt.input)
		assert.Equal(t, tt.text, tok.Text, tt.input)
	}
}

func TestEndWithoutKeyword(t *testing.T) {
	for _, input := range []string{"end", "end\n", "end 3"} {
		l := lexer.New(input)
		_, err := l.Dequeue()
		assert.Error(t, err, "input %q", input)
	}
}

func TestElseIfOrdering(t *testing.T) {
	// "else iffy" must stay two tokens; "else if" collapses to one.
	l := lexer.New("else iffy")
	tok, err := l.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "else", tok.Text)
	tok, err = l.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, token.Identifier, tok.Kind)
	assert.Equal(t, "iffy", tok.Text)
}

func TestDoubledQuoteEscape(t *testing.T) {
	l := lexer.New(`"Hi""There"`)
	tok, err := l.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, token.String, tok.Kind)
	assert.Equal(t, `Hi"There`, tok.Text)
	assert.True(t, l.AtEnd())
}

func TestUnclosedString(t *testing.T) {
	for _, input := range []string{`"oops`, "\"oops\nmore"} {
		l := lexer.New(input)
		_, err := l.Dequeue()
		assert.Error(t, err, "input %q", input)
	}
}

func TestNumbers(t *testing.T) {
	tests := []string{"0", "42", "3.14", ".5", "1e10", "2.5E-3", "7e+2"}
	for _, tt := range tests {
		l := lexer.New(tt)
		tok, err := l.Dequeue()
		require.NoError(t, err, tt)
		assert.Equal(t, token.Number, tok.Kind, tt)
		assert.Equal(t, tt, tok.Text, tt)
		assert.True(t, l.AtEnd(), tt)
	}
}

func TestPeekIdempotent(t *testing.T) {
	l := lexer.New("foo bar")
	a, err := l.Peek()
	require.NoError(t, err)
	b, err := l.Peek()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	c, err := l.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestLineNumbering(t *testing.T) {
	l := lexer.New("a\nb\r\nc;d")
	counts := map[string]int{}
	for !l.AtEnd() {
		tok, err := l.Dequeue()
		require.NoError(t, err)
		if tok.Kind == token.Identifier {
			counts[tok.Text] = l.LineNum()
		}
	}
	assert.Equal(t, 1, counts["a"])
	assert.Equal(t, 2, counts["b"])
	assert.Equal(t, 3, counts["c"])
	// ';' separates statements without advancing the line number
	assert.Equal(t, 3, counts["d"])
}

func TestComments(t *testing.T) {
	l := lexer.New("x = 1 // set x\ny = 2")
	var idents []string
	for !l.AtEnd() {
		tok, err := l.Dequeue()
		require.NoError(t, err)
		if tok.Kind == token.Identifier {
			idents = append(idents, tok.Text)
		}
	}
	assert.Equal(t, []string{"x", "y"}, idents)
}

func TestTrimComment(t *testing.T) {
	assert.Equal(t, "x = 1 ", lexer.TrimComment("x = 1 // comment"))
	assert.Equal(t, `s = "//not a comment"`, lexer.TrimComment(`s = "//not a comment"`))
	assert.Equal(t, `s = "// quoted" `, lexer.TrimComment(`s = "// quoted" // real`))
}

func TestLastToken(t *testing.T) {
	tests := []struct {
		input string
		text  string
	}{
		{"x = 1 +", "+"},
		{"x = 1 + // trailing", "+"},
		{"foo = bar,", ","},
		{"x = 1\ny = 2", "2"},
	}
	for _, tt := range tests {
		tok := lexer.LastToken(tt.input)
		assert.Equal(t, tt.text, tok.Text, tt.input)
	}
}

func TestIsInStringLiteral(t *testing.T) {
	src := `s = "ab" + c`
	assert.True(t, lexer.IsInStringLiteral(6, src, 0))
	assert.False(t, lexer.IsInStringLiteral(10, src, 0))
}

func TestUnicodeIdentifier(t *testing.T) {
	l := lexer.New("π = 3")
	tok, err := l.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, token.Identifier, tok.Kind)
	assert.Equal(t, "π", tok.Text)
}
