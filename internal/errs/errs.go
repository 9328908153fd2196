// Package errs defines the script-facing error taxonomy: lexer, compiler,
// and runtime errors, each carrying a message and an optional source
// location. Host-level misuse is reported with plain errors instead.
package errs

import "fmt"

// SourceLoc identifies a script position: a context name (file or chunk)
// and a 1-based line number.
type SourceLoc struct {
	Context string
	LineNum int
}

func NewSourceLoc(context string, lineNum int) *SourceLoc {
	return &SourceLoc{Context: context, LineNum: lineNum}
}

func (l *SourceLoc) String() string {
	ctx := l.Context
	if ctx == "" {
		ctx = "?"
	}
	return fmt.Sprintf("[%s line %d]", ctx, l.LineNum)
}

// LexerError reports a tokenization failure.
type LexerError struct {
	Message string
	Loc     *SourceLoc
}

func NewLexerError(format string, args ...any) *LexerError {
	return &LexerError{Message: fmt.Sprintf(format, args...)}
}

func (e *LexerError) Error() string {
	return describe("Lexer Error", e.Message, e.Loc)
}

// CompilerError reports a parse-time failure.
type CompilerError struct {
	Message string
	Loc     *SourceLoc
}

func NewCompilerError(format string, args ...any) *CompilerError {
	return &CompilerError{Message: fmt.Sprintf(format, args...)}
}

func (e *CompilerError) Error() string {
	return describe("Compiler Error", e.Message, e.Loc)
}

// RuntimeKind discriminates the runtime error sub-kinds.
type RuntimeKind int

const (
	Generic RuntimeKind = iota
	Index
	Key
	Type
	UndefinedIdentifier
	UndefinedLocal
	TooManyArguments
	LimitExceeded
)

// RuntimeError reports an execution failure.
type RuntimeError struct {
	Kind    RuntimeKind
	Message string
	Loc     *SourceLoc
}

func NewRuntimeError(format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: Generic, Message: fmt.Sprintf(format, args...)}
}

func NewIndexError(index float64) *RuntimeError {
	return &RuntimeError{Kind: Index,
		Message: fmt.Sprintf("Index Error (index %g out of range)", index)}
}

func NewKeyError(key string) *RuntimeError {
	return &RuntimeError{Kind: Key,
		Message: fmt.Sprintf("Key Not Found: '%s' not found in map", key)}
}

func NewTypeError(format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: Type, Message: fmt.Sprintf(format, args...)}
}

func NewUndefinedIdentifier(name string) *RuntimeError {
	return &RuntimeError{Kind: UndefinedIdentifier,
		Message: fmt.Sprintf("Undefined Identifier: '%s' is unknown in this context", name)}
}

func NewUndefinedLocal(name string) *RuntimeError {
	return &RuntimeError{Kind: UndefinedLocal,
		Message: fmt.Sprintf("Undefined Local Identifier: '%s' is unknown in this context", name)}
}

func NewTooManyArguments() *RuntimeError {
	return &RuntimeError{Kind: TooManyArguments, Message: "Too Many Arguments"}
}

func NewLimitExceeded(format string, args ...any) *RuntimeError {
	return &RuntimeError{Kind: LimitExceeded, Message: fmt.Sprintf(format, args...)}
}

func (e *RuntimeError) Error() string {
	return describe("Runtime Error", e.Message, e.Loc)
}

func describe(prefix, msg string, loc *SourceLoc) string {
	if loc == nil {
		return prefix + ": " + msg
	}
	return prefix + ": " + msg + " " + loc.String()
}

// Location returns the source location attached to a script error, or nil.
func Location(err error) *SourceLoc {
	switch e := err.(type) {
	case *LexerError:
		return e.Loc
	case *CompilerError:
		return e.Loc
	case *RuntimeError:
		return e.Loc
	}
	return nil
}

// SetLocation attaches loc to a script error that does not have one yet.
func SetLocation(err error, loc *SourceLoc) {
	if loc == nil {
		return
	}
	switch e := err.(type) {
	case *LexerError:
		if e.Loc == nil {
			e.Loc = loc
		}
	case *CompilerError:
		if e.Loc == nil {
			e.Loc = loc
		}
	case *RuntimeError:
		if e.Loc == nil {
			e.Loc = loc
		}
	}
}
