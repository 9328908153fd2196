// Package parser compiles MiniScript source into TAC in a single pass,
// resolving forward branches through per-block backpatch lists.
package parser

import (
	"strconv"

	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/lexer"
	"github.com/dartleaf/miniscript/internal/token"
	"github.com/dartleaf/miniscript/internal/value"
)

// Parser holds compilation state across Parse calls, which is what lets
// a REPL feed it one line at a time.
type Parser struct {
	// ErrorContext names the chunk in error locations (a file name, or
	// "input" for the REPL).
	ErrorContext string

	partialInput string

	outputStack []*parseState
	pending     *parseState
}

func NewParser() *Parser {
	return &Parser{
		ErrorContext: "input",
		outputStack:  []*parseState{{}},
	}
}

func (p *Parser) output() *parseState {
	return p.outputStack[len(p.outputStack)-1]
}

// Program returns the compiled top-level code.
func (p *Parser) Program() []value.Line {
	return p.outputStack[0].code
}

// NeedMoreInput reports whether parsed input so far ends in the middle
// of a block (or a continued line), so a REPL should keep prompting.
func (p *Parser) NeedMoreInput() bool {
	if p.partialInput != "" {
		return true
	}
	if len(p.outputStack) > 1 {
		return true
	}
	return len(p.output().backpatches) > 0
}

// Reset discards all parse state.
func (p *Parser) Reset() {
	p.partialInput = ""
	p.outputStack = []*parseState{{}}
	p.pending = nil
}

// PartialReset abandons any half-parsed input (buffered continuation,
// open function bodies, open blocks) while keeping the compiled program,
// so a REPL can recover from a compile error and continue.
func (p *Parser) PartialReset() {
	p.partialInput = ""
	p.pending = nil
	p.outputStack = p.outputStack[:1]
	out := p.output()
	out.backpatches = nil
	out.jumpPoints = nil
}

// EndsWithLineContinuation reports whether the last significant token of
// source extends the statement onto the next line.
func EndsWithLineContinuation(source string) bool {
	last := lexer.LastToken(source)
	switch last.Kind {
	case token.OpAssign, token.OpPlus, token.OpMinus, token.OpTimes, token.OpDivide,
		token.OpMod, token.OpPower, token.OpEqual, token.OpNotEqual,
		token.OpGreater, token.OpGreatEqual, token.OpLesser, token.OpLessEqual,
		token.OpAssignPlus, token.OpAssignMinus, token.OpAssignTimes,
		token.OpAssignDivide, token.OpAssignMod, token.OpAssignPower,
		token.LParen, token.LSquare, token.LCurly,
		token.Comma, token.Dot, token.Colon, token.AddressOf:
		return true
	case token.Keyword:
		switch last.Text {
		case "and", "or", "isa", "not", "new":
			return true
		}
	}
	return false
}

// Parse compiles source, appending to the program. In REPL mode a line
// ending in a continuation token is buffered until the statement is
// complete.
func (p *Parser) Parse(source string, replMode bool) error {
	if replMode {
		if p.partialInput != "" {
			source = p.partialInput + source
			p.partialInput = ""
		}
		if EndsWithLineContinuation(source) {
			p.partialInput = lexer.TrimComment(source)
			return nil
		}
	}

	tokens := lexer.New(source)
	if err := p.parseMultipleLines(tokens); err != nil {
		return err
	}

	if !replMode && p.NeedMoreInput() {
		return p.openBlockError()
	}
	return nil
}

func (p *Parser) openBlockError() error {
	if len(p.outputStack) > 1 {
		return errs.NewCompilerError("'function' without matching 'end function'")
	}
	out := p.output()
	if len(out.backpatches) > 0 {
		switch out.backpatches[len(out.backpatches)-1].waitingFor {
		case "end for":
			return errs.NewCompilerError("'for' without matching 'end for'")
		case "end while":
			return errs.NewCompilerError("'while' without matching 'end while'")
		case "end if", "else", ifMark:
			return errs.NewCompilerError("'if' without matching 'end if'")
		case "break":
			return errs.NewCompilerError("'break' without a loop to break out of")
		}
	}
	return errs.NewCompilerError("unexpected end of script")
}

func (p *Parser) parseMultipleLines(tokens *lexer.Lexer) error {
	for !tokens.AtEnd() {
		tok, err := tokens.Peek()
		if err != nil {
			p.locate(err, tokens)
			return err
		}
		if tok.Kind == token.EOL || tok.Kind == token.EOF {
			if _, err := tokens.Dequeue(); err != nil {
				return err
			}
			continue
		}

		loc := errs.NewSourceLoc(p.ErrorContext, tokens.LineNum())
		out := p.output()
		outputStart := len(out.code)

		if err := p.parseStatement(tokens, false); err != nil {
			errs.SetLocation(err, loc)
			return err
		}

		for i := outputStart; i < len(out.code); i++ {
			out.code[i].Loc = loc
		}
	}
	return nil
}

func (p *Parser) locate(err error, tokens *lexer.Lexer) {
	errs.SetLocation(err, errs.NewSourceLoc(p.ErrorContext, tokens.LineNum()))
}

func (p *Parser) parseStatement(tokens *lexer.Lexer, allowExtra bool) error {
	tok, err := tokens.Peek()
	if err != nil {
		return err
	}

	if tok.Kind == token.Keyword {
		switch tok.Text {
		case "return":
			tokens.Dequeue()
			if err := p.parseReturn(tokens); err != nil {
				return err
			}
		case "if":
			tokens.Dequeue()
			if err := p.parseIf(tokens); err != nil {
				return err
			}
		case "else", "else if":
			tokens.Dequeue()
			if err := p.parseElse(tokens, tok.Text); err != nil {
				return err
			}
		case "end if":
			tokens.Dequeue()
			if err := p.output().patchIfBlock(false); err != nil {
				return err
			}
		case "while":
			tokens.Dequeue()
			if err := p.parseWhile(tokens); err != nil {
				return err
			}
		case "end while":
			tokens.Dequeue()
			out := p.output()
			jp, err := out.closeJumpPoint("while")
			if err != nil {
				return err
			}
			out.add(value.NewLine(value.Null(), value.OpGotoA, value.NewNumber(float64(jp.lineNum)), value.Null()))
			if err := out.patch("end while", true); err != nil {
				return err
			}
		case "for":
			tokens.Dequeue()
			if err := p.parseFor(tokens); err != nil {
				return err
			}
		case "end for":
			tokens.Dequeue()
			out := p.output()
			jp, err := out.closeJumpPoint("for")
			if err != nil {
				return err
			}
			out.add(value.NewLine(value.Null(), value.OpGotoA, value.NewNumber(float64(jp.lineNum)), value.Null()))
			if err := out.patch("end for", true); err != nil {
				return err
			}
		case "break":
			tokens.Dequeue()
			out := p.output()
			if len(out.jumpPoints) == 0 {
				return errs.NewCompilerError("'break' without a loop to break out of")
			}
			out.add(value.NewLine(value.Null(), value.OpGotoA, value.Null(), value.Null()))
			out.addBackpatch("break")
		case "continue":
			tokens.Dequeue()
			out := p.output()
			if len(out.jumpPoints) == 0 {
				return errs.NewCompilerError("'continue' without a loop to continue")
			}
			jp := out.jumpPoints[len(out.jumpPoints)-1]
			out.add(value.NewLine(value.Null(), value.OpGotoA, value.NewNumber(float64(jp.lineNum)), value.Null()))
		case "end function":
			tokens.Dequeue()
			if err := p.finishFunction(); err != nil {
				return err
			}
		case "function", "not", "new", "null", "true", "false":
			if err := p.parseAssignment(tokens, allowExtra); err != nil {
				return err
			}
		default:
			return errs.NewCompilerError("unexpected keyword '%s' at start of line", tok.Text)
		}
	} else {
		if err := p.parseAssignment(tokens, allowExtra); err != nil {
			return err
		}
	}

	// a function literal in this statement opens its body now
	if p.pending != nil {
		p.outputStack = append(p.outputStack, p.pending)
		p.pending = nil
	}

	if !allowExtra {
		tok, err := tokens.Dequeue()
		if err != nil {
			return err
		}
		if tok.Kind != token.EOL && tok.Kind != token.EOF {
			return errs.NewCompilerError("got %s where end of line is required", tok)
		}
	}
	return nil
}

func (p *Parser) parseReturn(tokens *lexer.Lexer) error {
	out := p.output()
	result := value.Null()
	tok, err := tokens.Peek()
	if err != nil {
		return err
	}
	if tok.Kind != token.EOL && tok.Kind != token.EOF &&
		!(tok.Kind == token.Keyword && (tok.Text == "else" || tok.Text == "else if")) {
		result, err = p.parseExpr(tokens, false, false)
		if err != nil {
			return err
		}
	}
	out.add(value.NewLine(value.NewTemp(0), value.OpReturnA, result, value.Null()))
	return nil
}

func (p *Parser) parseIf(tokens *lexer.Lexer) error {
	out := p.output()
	cond, err := p.parseExpr(tokens, false, false)
	if err != nil {
		return err
	}
	tok, err := tokens.Peek()
	if err != nil {
		return err
	}
	if tok.Kind == token.OpAssign {
		return errs.NewCompilerError("found = instead of == in if condition")
	}
	if err := p.requireKeyword(tokens, "then"); err != nil {
		return err
	}

	out.add(value.NewLine(value.Null(), value.OpGotoAifNotB, value.Null(), cond))
	out.addBackpatch(ifMark)
	out.addBackpatch("else")

	tok, err = tokens.Peek()
	if err != nil {
		return err
	}
	if tok.Kind == token.EOL || tok.Kind == token.EOF {
		return nil // multi-line if: block closed by a later "end if"
	}

	// single-line if, possibly with else clauses on the same line
	if err := p.parseStatement(tokens, true); err != nil {
		return err
	}
	for {
		tok, err = tokens.Peek()
		if err != nil {
			return err
		}
		if tok.Kind != token.Keyword {
			break
		}
		if tok.Text == "else" {
			tokens.Dequeue()
			p.startElseClause()
			if err := p.parseStatement(tokens, true); err != nil {
				return err
			}
			break
		}
		if tok.Text == "else if" {
			tokens.Dequeue()
			p.startElseClause()
			cond, err := p.parseExpr(tokens, false, false)
			if err != nil {
				return err
			}
			if err := p.requireKeyword(tokens, "then"); err != nil {
				return err
			}
			out.add(value.NewLine(value.Null(), value.OpGotoAifNotB, value.Null(), cond))
			out.addBackpatch("else")
			if err := p.parseStatement(tokens, true); err != nil {
				return err
			}
			continue
		}
		break
	}
	return out.patchIfBlock(true)
}

// startElseClause ends the preceding then/else-if block with a jump to
// the (eventual) end if, and lands the pending else branch here.
func (p *Parser) startElseClause() {
	out := p.output()
	out.add(value.NewLine(value.Null(), value.OpGotoA, value.Null(), value.Null()))
	// a failed patch (an else with no open if) is not reported here; the
	// "end if" pushed below is then left unmatched and fails a later
	// block check or the end-of-script check
	_ = out.patch("else", false)
	out.addBackpatch("end if")
}

func (p *Parser) parseElse(tokens *lexer.Lexer, keyword string) error {
	out := p.output()
	p.startElseClause()
	if keyword == "else if" {
		cond, err := p.parseExpr(tokens, false, false)
		if err != nil {
			return err
		}
		if err := p.requireKeyword(tokens, "then"); err != nil {
			return err
		}
		out.add(value.NewLine(value.Null(), value.OpGotoAifNotB, value.Null(), cond))
		out.addBackpatch("else")
	}
	tok, err := tokens.Peek()
	if err != nil {
		return err
	}
	if tok.Kind != token.EOL && tok.Kind != token.EOF {
		// body on the same line
		return p.parseStatement(tokens, true)
	}
	return nil
}

func (p *Parser) parseWhile(tokens *lexer.Lexer) error {
	out := p.output()
	out.addJumpPoint("while")
	cond, err := p.parseExpr(tokens, false, false)
	if err != nil {
		return err
	}
	out.add(value.NewLine(value.Null(), value.OpGotoAifNotB, value.Null(), cond))
	out.addBackpatch("end while")
	return nil
}

func (p *Parser) parseFor(tokens *lexer.Lexer) error {
	out := p.output()
	loopVar, err := p.requireToken(tokens, token.Identifier)
	if err != nil {
		return err
	}
	if err := p.requireKeyword(tokens, "in"); err != nil {
		return err
	}
	seq, err := p.parseExpr(tokens, false, false)
	if err != nil {
		return err
	}

	idxVar := value.NewVar("__" + loopVar.Text + "_idx")
	out.add(value.NewLine(idxVar, value.OpAssignA, value.NewNumber(-1), value.Null()))
	out.addJumpPoint("for")
	out.add(value.NewLine(idxVar, value.OpAPlusB, idxVar, value.NewNumber(1)))
	size := out.nextTemp()
	out.add(value.NewLine(size, value.OpLengthOfA, seq, value.Null()))
	tooBig := out.nextTemp()
	out.add(value.NewLine(tooBig, value.OpAGreatOrEqualB, idxVar, size))
	out.add(value.NewLine(value.Null(), value.OpGotoAifB, value.Null(), tooBig))
	out.addBackpatch("end for")
	out.add(value.NewLine(value.NewVar(loopVar.Text), value.OpElemBofIterA, seq, idxVar))
	return nil
}

func (p *Parser) finishFunction() error {
	if len(p.outputStack) < 2 {
		return errs.NewCompilerError("'end function' without matching 'function'")
	}
	cur := p.output()
	if len(cur.backpatches) > 0 || len(cur.jumpPoints) > 0 {
		return p.openBlockError()
	}
	cur.fn.Code = cur.code
	p.outputStack = p.outputStack[:len(p.outputStack)-1]
	return nil
}

func (p *Parser) parseAssignment(tokens *lexer.Lexer, allowExtra bool) error {
	out := p.output()
	expr, err := p.parseExpr(tokens, true, true)
	if err != nil {
		return err
	}

	tok, err := tokens.Peek()
	if err != nil {
		return err
	}

	switch {
	case tok.Kind == token.EOL || tok.Kind == token.EOF ||
		(tok.Kind == token.Keyword && (tok.Text == "else" || tok.Text == "else if")):
		// bare expression statement: auto-invoke and keep the implicit
		// result for the REPL
		rhs := p.fullyEvaluate(expr)
		out.add(value.NewLine(value.Null(), value.OpAssignImplicit, rhs, value.Null()))
		return nil

	case tok.Kind == token.OpAssign:
		tokens.Dequeue()
		if expr.Kind != value.KindVar && expr.Kind != value.KindSeqElem {
			return errs.NewCompilerError("invalid assignment target: %s", value.CodeForm(expr, 1))
		}
		if expr.Kind == value.KindVar {
			out.localOnlyIdentifier = expr.Str
			out.localOnlyStrict = false
		}
		rhs, err := p.parseExpr(tokens, false, false)
		out.localOnlyIdentifier = ""
		if err != nil {
			return err
		}
		p.emitAssignment(expr, rhs)
		return nil

	case isCompoundAssign(tok.Kind):
		tokens.Dequeue()
		if expr.Kind != value.KindVar && expr.Kind != value.KindSeqElem {
			return errs.NewCompilerError("invalid assignment target: %s", value.CodeForm(expr, 1))
		}
		if expr.Kind == value.KindVar {
			out.localOnlyIdentifier = expr.Str
			out.localOnlyStrict = true
		}
		rhs, err := p.parseExpr(tokens, false, false)
		out.localOnlyIdentifier = ""
		if err != nil {
			return err
		}
		op := compoundOp(tok.Kind)
		opA := expr
		if opA.Kind == value.KindVar {
			opA = value.Value{Kind: value.KindVar, Str: opA.Str, LocalOnly: value.LocalOnlyStrict}
		}
		out.add(value.NewLine(expr, op, opA, rhs))
		return nil

	default:
		// command statement: the expression is a call target, and the
		// rest of the line is its arguments
		argCount := 0
		for {
			arg, err := p.parseExpr(tokens, false, false)
			if err != nil {
				return err
			}
			out.add(value.NewLine(value.Null(), value.OpPushParam, arg, value.Null()))
			argCount++
			tok, err = tokens.Peek()
			if err != nil {
				return err
			}
			if tok.Kind == token.EOL || tok.Kind == token.EOF ||
				(tok.Kind == token.Keyword && (tok.Text == "else" || tok.Text == "else if")) {
				break
			}
			if tok.Kind == token.Comma {
				tokens.Dequeue()
				continue
			}
		}
		result := out.nextTemp()
		out.add(value.NewLine(result, value.OpCallFunctionA, expr, value.NewNumber(float64(argCount))))
		out.add(value.NewLine(value.Null(), value.OpAssignImplicit, result, value.Null()))
		return nil
	}
}

// emitAssignment stores rhs into lhs, retargeting the line that produced
// rhs when it safely can (no jump lands on the would-be next line).
func (p *Parser) emitAssignment(lhs, rhs value.Value) {
	out := p.output()
	if rhs.Kind == value.KindTemp && len(out.code) > 0 {
		last := &out.code[len(out.code)-1]
		if last.LHS.Kind == value.KindTemp && last.LHS.TempNum == rhs.TempNum &&
			!out.isJumpTarget(len(out.code)) {
			last.LHS = lhs
			return
		}
	}
	out.add(value.NewLine(lhs, value.OpAssignA, rhs, value.Null()))
}

func isCompoundAssign(k token.Kind) bool {
	switch k {
	case token.OpAssignPlus, token.OpAssignMinus, token.OpAssignTimes,
		token.OpAssignDivide, token.OpAssignMod, token.OpAssignPower:
		return true
	}
	return false
}

func compoundOp(k token.Kind) value.Op {
	switch k {
	case token.OpAssignPlus:
		return value.OpAPlusB
	case token.OpAssignMinus:
		return value.OpAMinusB
	case token.OpAssignTimes:
		return value.OpATimesB
	case token.OpAssignDivide:
		return value.OpADividedByB
	case token.OpAssignMod:
		return value.OpAModB
	case token.OpAssignPower:
		return value.OpAPowB
	}
	return value.OpNoop
}

// fullyEvaluate compiles an auto-invoking read of a variable or sequence
// element: a zero-argument CallFunctionA, which the VM turns into a
// plain load when the value is not a function. self, super, and
// @-prefixed reads stay as they are.
func (p *Parser) fullyEvaluate(val value.Value) value.Value {
	out := p.output()
	switch val.Kind {
	case value.KindVar:
		if val.NoInvoke || val.Str == "self" || val.Str == "super" {
			return val
		}
	case value.KindSeqElem:
		if val.Seq.NoInvoke {
			return val
		}
	default:
		return val
	}
	t := out.nextTemp()
	out.add(value.NewLine(t, value.OpCallFunctionA, val, value.NewNumber(0)))
	return t
}

// requireToken dequeues the next token, which must be of the given kind.
func (p *Parser) requireToken(tokens *lexer.Lexer, kind token.Kind) (token.Token, error) {
	tok, err := tokens.Dequeue()
	if err != nil {
		return tok, err
	}
	if tok.Kind != kind {
		return tok, errs.NewCompilerError("got %s where %s is required", tok, kind)
	}
	return tok, nil
}

func (p *Parser) requireKeyword(tokens *lexer.Lexer, text string) error {
	tok, err := tokens.Dequeue()
	if err != nil {
		return err
	}
	if tok.Kind != token.Keyword || tok.Text != text {
		return errs.NewCompilerError("got %s where '%s' is required", tok, text)
	}
	return nil
}

func (p *Parser) allowLineBreak(tokens *lexer.Lexer) error {
	for {
		tok, err := tokens.Peek()
		if err != nil {
			return err
		}
		if tok.Kind != token.EOL {
			return nil
		}
		tokens.Dequeue()
	}
}

func parseNumberLiteral(text string) (value.Value, error) {
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return value.Value{}, errs.NewCompilerError("invalid numeric literal: %s", text)
	}
	return value.NewNumber(n), nil
}
