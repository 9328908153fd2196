package parser

import (
	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/lexer"
	"github.com/dartleaf/miniscript/internal/token"
	"github.com/dartleaf/miniscript/internal/value"
	"github.com/dartleaf/miniscript/internal/vm"
)

// parseExpr is the top of the expression ladder. With asLval the result
// is left as an uncompiled Var or SeqElem so the caller can turn it into
// an assignment target; otherwise a trailing variable read auto-invokes.
func (p *Parser) parseExpr(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	val, err := p.parseFunction(tokens, asLval, statementStart)
	if err != nil {
		return value.Value{}, err
	}
	if !asLval {
		val = p.fullyEvaluate(val)
	}
	return val, nil
}

func (p *Parser) parseFunction(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	tok, err := tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind != token.Keyword || tok.Text != "function" {
		return p.parseOr(tokens, asLval, statementStart)
	}
	tokens.Dequeue()

	if p.pending != nil {
		return value.Value{}, errs.NewCompilerError("can't start two functions in one statement")
	}

	fn := &value.Function{}
	tok, err = tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind == token.LParen {
		tokens.Dequeue()
		for {
			if err := p.allowLineBreak(tokens); err != nil {
				return value.Value{}, err
			}
			tok, err = tokens.Peek()
			if err != nil {
				return value.Value{}, err
			}
			if tok.Kind == token.RParen {
				tokens.Dequeue()
				break
			}
			name, err := p.requireToken(tokens, token.Identifier)
			if err != nil {
				return value.Value{}, err
			}
			param := value.Param{Name: name.Text}
			tok, err = tokens.Peek()
			if err != nil {
				return value.Value{}, err
			}
			if tok.Kind == token.OpAssign {
				tokens.Dequeue()
				def, err := p.parseExpr(tokens, false, false)
				if err != nil {
					return value.Value{}, err
				}
				if def.Kind == value.KindTemp || def.Kind == value.KindVar || def.Kind == value.KindSeqElem {
					return value.Value{}, errs.NewCompilerError(
						"parameter default value must be a literal")
				}
				param.Default = def
			}
			fn.Params = append(fn.Params, param)
			tok, err = tokens.Peek()
			if err != nil {
				return value.Value{}, err
			}
			if tok.Kind == token.Comma {
				tokens.Dequeue()
			}
		}
	}

	// the body compiles into its own state, pushed once this statement
	// finishes
	p.pending = &parseState{nextTempNum: 1, fn: fn}

	out := p.output()
	t := out.nextTemp()
	out.add(value.NewLine(t, value.OpBindAssignA, value.NewFunctionValue(fn, nil), value.Null()))
	return t, nil
}

func (p *Parser) parseOr(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	val, err := p.parseAnd(tokens, asLval, statementStart)
	if err != nil {
		return value.Value{}, err
	}
	var jumpLines []int
	for {
		tok, err := tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		if tok.Kind != token.Keyword || tok.Text != "or" {
			break
		}
		tokens.Dequeue()

		val = p.fullyEvaluate(val)
		// short-circuit: skip the rest when the left side is truly true
		out.add(value.NewLine(value.Null(), value.OpGotoAifTrulyB, value.Null(), val))
		jumpLines = append(jumpLines, len(out.code)-1)

		opB, err := p.parseAnd(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		opB = p.fullyEvaluate(opB)
		t := out.nextTemp()
		out.add(value.NewLine(t, value.OpAOrB, val, opB))
		val = t
	}
	if len(jumpLines) > 0 {
		// force the result to exactly 1 on the short-circuit path
		out.add(value.NewLine(value.Null(), value.OpGotoA, value.NewNumber(float64(len(out.code)+2)), value.Null()))
		out.add(value.NewLine(val, value.OpAssignA, value.NewNumber(1), value.Null()))
		target := value.NewNumber(float64(len(out.code) - 1))
		for _, idx := range jumpLines {
			out.code[idx].A = target
		}
	}
	return val, nil
}

func (p *Parser) parseAnd(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	val, err := p.parseNot(tokens, asLval, statementStart)
	if err != nil {
		return value.Value{}, err
	}
	var jumpLines []int
	for {
		tok, err := tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		if tok.Kind != token.Keyword || tok.Text != "and" {
			break
		}
		tokens.Dequeue()

		val = p.fullyEvaluate(val)
		out.add(value.NewLine(value.Null(), value.OpGotoAifNotB, value.Null(), val))
		jumpLines = append(jumpLines, len(out.code)-1)

		opB, err := p.parseNot(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		opB = p.fullyEvaluate(opB)
		t := out.nextTemp()
		out.add(value.NewLine(t, value.OpAAndB, val, opB))
		val = t
	}
	if len(jumpLines) > 0 {
		out.add(value.NewLine(value.Null(), value.OpGotoA, value.NewNumber(float64(len(out.code)+2)), value.Null()))
		out.add(value.NewLine(val, value.OpAssignA, value.NewNumber(0), value.Null()))
		target := value.NewNumber(float64(len(out.code) - 1))
		for _, idx := range jumpLines {
			out.code[idx].A = target
		}
	}
	return val, nil
}

func (p *Parser) parseNot(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	tok, err := tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind == token.Keyword && tok.Text == "not" {
		tokens.Dequeue()
		val, err := p.parseIsA(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		val = p.fullyEvaluate(val)
		t := out.nextTemp()
		out.add(value.NewLine(t, value.OpNotA, val, value.Null()))
		return t, nil
	}
	return p.parseIsA(tokens, asLval, statementStart)
}

func (p *Parser) parseIsA(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	val, err := p.parseComparisons(tokens, asLval, statementStart)
	if err != nil {
		return value.Value{}, err
	}
	tok, err := tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind == token.Keyword && tok.Text == "isa" {
		tokens.Dequeue()
		val = p.fullyEvaluate(val)
		opB, err := p.parseComparisons(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		opB = p.fullyEvaluate(opB)
		t := out.nextTemp()
		out.add(value.NewLine(t, value.OpAisaB, val, opB))
		val = t
	}
	return val, nil
}

func comparisonOp(k token.Kind) (value.Op, bool) {
	switch k {
	case token.OpEqual:
		return value.OpAEqualB, true
	case token.OpNotEqual:
		return value.OpANotEqualB, true
	case token.OpGreater:
		return value.OpAGreaterThanB, true
	case token.OpGreatEqual:
		return value.OpAGreatOrEqualB, true
	case token.OpLesser:
		return value.OpALessThanB, true
	case token.OpLessEqual:
		return value.OpALessOrEqualB, true
	}
	return value.OpNoop, false
}

// parseComparisons handles the chaining form a < b < c, combining the
// pairwise truths by multiplication.
func (p *Parser) parseComparisons(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	val, err := p.parseAddSub(tokens, asLval, statementStart)
	if err != nil {
		return value.Value{}, err
	}
	opA := val
	result := value.Value{}
	for {
		tok, err := tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		op, ok := comparisonOp(tok.Kind)
		if !ok {
			break
		}
		tokens.Dequeue()

		opA = p.fullyEvaluate(opA)
		opB, err := p.parseAddSub(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		opB = p.fullyEvaluate(opB)
		t := out.nextTemp()
		out.add(value.NewLine(t, op, opA, opB))
		if result.IsNull() {
			result = t
		} else {
			combined := out.nextTemp()
			out.add(value.NewLine(combined, value.OpATimesB, result, t))
			result = combined
		}
		opA = opB
	}
	if result.IsNull() {
		return val, nil
	}
	return result, nil
}

func (p *Parser) parseAddSub(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	val, err := p.parseMultDiv(tokens, asLval, statementStart)
	if err != nil {
		return value.Value{}, err
	}
	for {
		tok, err := tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		var op value.Op
		switch tok.Kind {
		case token.OpPlus:
			op = value.OpAPlusB
		case token.OpMinus:
			op = value.OpAMinusB
		default:
			return val, nil
		}
		tokens.Dequeue()
		val = p.fullyEvaluate(val)
		opB, err := p.parseMultDiv(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		opB = p.fullyEvaluate(opB)
		t := out.nextTemp()
		out.add(value.NewLine(t, op, val, opB))
		val = t
	}
}

func (p *Parser) parseMultDiv(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	val, err := p.parseUnaryMinus(tokens, asLval, statementStart)
	if err != nil {
		return value.Value{}, err
	}
	for {
		tok, err := tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		var op value.Op
		switch tok.Kind {
		case token.OpTimes:
			op = value.OpATimesB
		case token.OpDivide:
			op = value.OpADividedByB
		case token.OpMod:
			op = value.OpAModB
		default:
			return val, nil
		}
		tokens.Dequeue()
		val = p.fullyEvaluate(val)
		opB, err := p.parseUnaryMinus(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		opB = p.fullyEvaluate(opB)
		t := out.nextTemp()
		out.add(value.NewLine(t, op, val, opB))
		val = t
	}
}

func (p *Parser) parseUnaryMinus(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	tok, err := tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind != token.OpMinus {
		return p.parseNew(tokens, asLval, statementStart)
	}
	tokens.Dequeue()
	val, err := p.parseNew(tokens, false, false)
	if err != nil {
		return value.Value{}, err
	}
	if val.Kind == value.KindNumber {
		return value.NewNumber(-val.Num), nil
	}
	val = p.fullyEvaluate(val)
	t := out.nextTemp()
	out.add(value.NewLine(t, value.OpAMinusB, value.NewNumber(0), val))
	return t, nil
}

func (p *Parser) parseNew(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	tok, err := tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind != token.Keyword || tok.Text != "new" {
		return p.parsePower(tokens, asLval, statementStart)
	}
	tokens.Dequeue()
	isa, err := p.parseNew(tokens, false, false)
	if err != nil {
		return value.Value{}, err
	}
	isa = p.fullyEvaluate(isa)
	t := out.nextTemp()
	out.add(value.NewLine(t, value.OpNewA, isa, value.Null()))
	return t, nil
}

func (p *Parser) parsePower(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	val, err := p.parseAddressOf(tokens, asLval, statementStart)
	if err != nil {
		return value.Value{}, err
	}
	for {
		tok, err := tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		if tok.Kind != token.OpPower {
			return val, nil
		}
		tokens.Dequeue()
		val = p.fullyEvaluate(val)
		opB, err := p.parseAddressOf(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		opB = p.fullyEvaluate(opB)
		t := out.nextTemp()
		out.add(value.NewLine(t, value.OpAPowB, val, opB))
		val = t
	}
}

func (p *Parser) parseAddressOf(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	tok, err := tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind != token.AddressOf {
		return p.parseCallExpr(tokens, asLval, statementStart)
	}
	tokens.Dequeue()
	val, err := p.parseCallExpr(tokens, true, statementStart)
	if err != nil {
		return value.Value{}, err
	}
	switch val.Kind {
	case value.KindVar:
		val.NoInvoke = true
	case value.KindSeqElem:
		val.Seq.NoInvoke = true
	}
	return val, nil
}

func (p *Parser) parseCallExpr(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	val, err := p.parseMap(tokens, asLval, statementStart)
	if err != nil {
		return value.Value{}, err
	}

	// deferredIndex marks a bracket lookup left uncompiled for a possible
	// assignment; it compiles as a plain ElemBofA if the chain continues.
	deferredIndex := false
	compileDeferred := func() {
		if !deferredIndex {
			val = p.fullyEvaluate(val)
			return
		}
		t := out.nextTemp()
		out.add(value.NewLine(t, value.OpElemBofA, val.Seq.Sequence, val.Seq.Index))
		val = t
		deferredIndex = false
	}

	for {
		tok, err := tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		switch {
		case tok.Kind == token.Dot:
			tokens.Dequeue()
			ident, err := p.requireToken(tokens, token.Identifier)
			if err != nil {
				return value.Value{}, err
			}
			compileDeferred()
			val = value.NewSeqElem(val, value.NewString(ident.Text))

		case tok.Kind == token.LSquare && !tok.AfterSpace:
			tokens.Dequeue()
			compileDeferred()
			if err := p.allowLineBreak(tokens); err != nil {
				return value.Value{}, err
			}
			tok, err = tokens.Peek()
			if err != nil {
				return value.Value{}, err
			}
			if tok.Kind == token.Colon {
				// seq[:to]
				tokens.Dequeue()
				var to value.Value
				tok, err = tokens.Peek()
				if err != nil {
					return value.Value{}, err
				}
				if tok.Kind != token.RSquare {
					to, err = p.parseExpr(tokens, false, false)
					if err != nil {
						return value.Value{}, err
					}
				}
				if _, err := p.requireToken(tokens, token.RSquare); err != nil {
					return value.Value{}, err
				}
				val = p.emitSlice(val, value.NewNumber(0), to)
				continue
			}
			index, err := p.parseExpr(tokens, false, false)
			if err != nil {
				return value.Value{}, err
			}
			tok, err = tokens.Peek()
			if err != nil {
				return value.Value{}, err
			}
			if tok.Kind == token.Colon {
				// seq[from:to]
				tokens.Dequeue()
				var to value.Value
				tok, err = tokens.Peek()
				if err != nil {
					return value.Value{}, err
				}
				if tok.Kind != token.RSquare {
					to, err = p.parseExpr(tokens, false, false)
					if err != nil {
						return value.Value{}, err
					}
				}
				if _, err := p.requireToken(tokens, token.RSquare); err != nil {
					return value.Value{}, err
				}
				val = p.emitSlice(val, index, to)
				continue
			}
			if _, err := p.requireToken(tokens, token.RSquare); err != nil {
				return value.Value{}, err
			}
			if asLval && statementStart {
				// leave the lookup uncompiled; it may become a SetElem
				val = value.NewSeqElem(val, index)
				deferredIndex = true
			} else {
				t := out.nextTemp()
				out.add(value.NewLine(t, value.OpElemBofA, val, index))
				val = t
			}

		case tok.Kind == token.LParen && !tok.AfterSpace:
			if deferredIndex {
				compileDeferred()
			}
			val, err = p.parseCallArgs(tokens, val)
			if err != nil {
				return value.Value{}, err
			}

		default:
			return val, nil
		}
	}
}

// emitSlice compiles seq[from:to] as a call to the slice intrinsic.
func (p *Parser) emitSlice(seq, from, to value.Value) value.Value {
	out := p.output()
	seq = p.fullyEvaluate(seq)
	out.add(value.NewLine(value.Null(), value.OpPushParam, seq, value.Null()))
	out.add(value.NewLine(value.Null(), value.OpPushParam, from, value.Null()))
	out.add(value.NewLine(value.Null(), value.OpPushParam, to, value.Null()))
	t := out.nextTemp()
	sliceFn := value.Null()
	if in := vm.ByName("slice"); in != nil {
		sliceFn = in.FuncValue()
	}
	out.add(value.NewLine(t, value.OpCallFunctionA, sliceFn, value.NewNumber(3)))
	return t
}

// parseCallArgs compiles a parenthesized argument list and the call
// itself. Line breaks are allowed after ( and after each comma.
func (p *Parser) parseCallArgs(tokens *lexer.Lexer, funcRef value.Value) (value.Value, error) {
	out := p.output()
	if _, err := p.requireToken(tokens, token.LParen); err != nil {
		return value.Value{}, err
	}
	argCount := 0
	if err := p.allowLineBreak(tokens); err != nil {
		return value.Value{}, err
	}
	tok, err := tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind != token.RParen {
		for {
			arg, err := p.parseExpr(tokens, false, false)
			if err != nil {
				return value.Value{}, err
			}
			out.add(value.NewLine(value.Null(), value.OpPushParam, arg, value.Null()))
			argCount++
			tok, err = tokens.Peek()
			if err != nil {
				return value.Value{}, err
			}
			if tok.Kind != token.Comma {
				break
			}
			tokens.Dequeue()
			if err := p.allowLineBreak(tokens); err != nil {
				return value.Value{}, err
			}
		}
	}
	if _, err := p.requireToken(tokens, token.RParen); err != nil {
		return value.Value{}, err
	}
	t := out.nextTemp()
	out.add(value.NewLine(t, value.OpCallFunctionA, funcRef, value.NewNumber(float64(argCount))))
	return t, nil
}

func (p *Parser) parseMap(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	tok, err := tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind != token.LCurly {
		return p.parseList(tokens, asLval, statementStart)
	}
	tokens.Dequeue()

	m := value.NewMap()
	for {
		if err := p.allowLineBreak(tokens); err != nil {
			return value.Value{}, err
		}
		tok, err = tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		if tok.Kind == token.RCurly {
			tokens.Dequeue()
			break
		}
		key, err := p.parseExpr(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		if _, err := p.requireToken(tokens, token.Colon); err != nil {
			return value.Value{}, err
		}
		if err := p.allowLineBreak(tokens); err != nil {
			return value.Value{}, err
		}
		val, err := p.parseExpr(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		m.Set(key, val)

		if err := p.allowLineBreak(tokens); err != nil {
			return value.Value{}, err
		}
		tok, err = tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		if tok.Kind == token.Comma {
			tokens.Dequeue()
			continue
		}
		if _, err := p.requireToken(tokens, token.RCurly); err != nil {
			return value.Value{}, err
		}
		break
	}
	t := out.nextTemp()
	out.add(value.NewLine(t, value.OpCopyA, value.NewMapValue(m), value.Null()))
	return t, nil
}

func (p *Parser) parseList(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	tok, err := tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind != token.LSquare {
		return p.parseParens(tokens, asLval, statementStart)
	}
	tokens.Dequeue()

	l := value.NewList()
	for {
		if err := p.allowLineBreak(tokens); err != nil {
			return value.Value{}, err
		}
		tok, err = tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		if tok.Kind == token.RSquare {
			tokens.Dequeue()
			break
		}
		el, err := p.parseExpr(tokens, false, false)
		if err != nil {
			return value.Value{}, err
		}
		l.Values = append(l.Values, el)

		if err := p.allowLineBreak(tokens); err != nil {
			return value.Value{}, err
		}
		tok, err = tokens.Peek()
		if err != nil {
			return value.Value{}, err
		}
		if tok.Kind == token.Comma {
			tokens.Dequeue()
			continue
		}
		if _, err := p.requireToken(tokens, token.RSquare); err != nil {
			return value.Value{}, err
		}
		break
	}
	t := out.nextTemp()
	out.add(value.NewLine(t, value.OpCopyA, value.NewListValue(l), value.Null()))
	return t, nil
}

func (p *Parser) parseParens(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	tok, err := tokens.Peek()
	if err != nil {
		return value.Value{}, err
	}
	if tok.Kind != token.LParen {
		return p.parseAtom(tokens, asLval, statementStart)
	}
	tokens.Dequeue()
	val, err := p.parseExpr(tokens, false, false)
	if err != nil {
		return value.Value{}, err
	}
	if _, err := p.requireToken(tokens, token.RParen); err != nil {
		return value.Value{}, err
	}
	return val, nil
}

func (p *Parser) parseAtom(tokens *lexer.Lexer, asLval, statementStart bool) (value.Value, error) {
	out := p.output()
	tok, err := tokens.Dequeue()
	if err != nil {
		return value.Value{}, err
	}
	switch tok.Kind {
	case token.Number:
		return parseNumberLiteral(tok.Text)
	case token.String:
		return value.NewString(tok.Text), nil
	case token.Identifier:
		v := value.NewVar(tok.Text)
		if out.localOnlyIdentifier != "" && tok.Text == out.localOnlyIdentifier {
			if out.localOnlyStrict {
				v.LocalOnly = value.LocalOnlyStrict
			} else {
				v.LocalOnly = value.LocalOnlyWarn
			}
		}
		return v, nil
	case token.Keyword:
		switch tok.Text {
		case "null":
			return value.Null(), nil
		case "true":
			return value.NewNumber(1), nil
		case "false":
			return value.NewNumber(0), nil
		}
	}
	return value.Value{}, errs.NewCompilerError("got %s where an expression is required", tok)
}
