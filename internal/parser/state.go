package parser

import (
	"github.com/dartleaf/miniscript/internal/errs"
	"github.com/dartleaf/miniscript/internal/value"
)

// backpatch is a pending edit to a TAC line's jump operand, filled in
// once the forward label it waits for is reached.
type backpatch struct {
	lineNum    int
	waitingFor string
}

// jumpPoint is a recorded position inside a loop, targeted by continue
// and by the unconditional jump at the loop's end.
type jumpPoint struct {
	lineNum int
	keyword string
}

// ifMark is the sentinel backpatch tag that bounds one if block on the
// backpatch stack.
const ifMark = "if:MARK"

// parseState is the per-function-body compilation state. A fresh one is
// pushed when a function literal begins and popped at "end function".
type parseState struct {
	code        []value.Line
	backpatches []backpatch
	jumpPoints  []jumpPoint

	nextTempNum int

	localOnlyIdentifier string
	localOnlyStrict     bool

	// fn receives the emitted code when this state pops.
	fn *value.Function
}

func (s *parseState) add(line value.Line) {
	s.code = append(s.code, line)
}

func (s *parseState) nextTemp() value.Value {
	t := value.NewTemp(s.nextTempNum)
	s.nextTempNum++
	return t
}

// addBackpatch registers the most recently added line as waiting for the
// given tag.
func (s *parseState) addBackpatch(waitingFor string) {
	s.backpatches = append(s.backpatches, backpatch{lineNum: len(s.code) - 1, waitingFor: waitingFor})
}

func (s *parseState) addJumpPoint(keyword string) {
	s.jumpPoints = append(s.jumpPoints, jumpPoint{lineNum: len(s.code), keyword: keyword})
}

func (s *parseState) closeJumpPoint(keyword string) (jumpPoint, error) {
	if len(s.jumpPoints) == 0 {
		return jumpPoint{}, errs.NewCompilerError("'end %s' without matching '%s'", keyword, keyword)
	}
	jp := s.jumpPoints[len(s.jumpPoints)-1]
	if jp.keyword != keyword {
		return jumpPoint{}, errs.NewCompilerError("'end %s' without matching '%s'", keyword, keyword)
	}
	s.jumpPoints = s.jumpPoints[:len(s.jumpPoints)-1]
	return jp, nil
}

// isJumpTarget reports whether any emitted jump or open jump point lands
// on the given line index. Guards the assignment peephole.
func (s *parseState) isJumpTarget(idx int) bool {
	for _, line := range s.code {
		if line.IsJump() && line.A.Kind == value.KindNumber && line.A.IntValue() == idx {
			return true
		}
	}
	for _, jp := range s.jumpPoints {
		if jp.lineNum == idx {
			return true
		}
	}
	return false
}

// patch resolves backpatches waiting for keywordFound, pointing them at
// the current end of code. With alsoBreak, pending break jumps patch to
// the same target (the loop exit).
func (s *parseState) patch(keywordFound string, alsoBreak bool) error {
	target := value.NewNumber(float64(len(s.code)))
	done := false
	for idx := len(s.backpatches) - 1; idx >= 0 && !done; idx-- {
		bp := s.backpatches[idx]
		switch {
		case bp.waitingFor == keywordFound:
			done = true
		case bp.waitingFor == "break" && alsoBreak:
			// fall through and patch
		default:
			return errs.NewCompilerError("'%s' skips expected '%s'", keywordFound, bp.waitingFor)
		}
		s.code[bp.lineNum].A = target
		s.backpatches = append(s.backpatches[:idx], s.backpatches[idx+1:]...)
	}
	if !done {
		return errs.NewCompilerError("'%s' without matching block opener", keywordFound)
	}
	return nil
}

// patchIfBlock closes one if block: every "end if" and "else" entry
// newer than the bounding sentinel patches to the current end of code.
// Unrelated entries (a break pending for an enclosing loop) are left
// alone, except that a single-line if must not contain a loop.
func (s *parseState) patchIfBlock(singleLine bool) error {
	target := value.NewNumber(float64(len(s.code)))
	for idx := len(s.backpatches) - 1; idx >= 0; idx-- {
		bp := s.backpatches[idx]
		switch bp.waitingFor {
		case ifMark:
			s.backpatches = append(s.backpatches[:idx], s.backpatches[idx+1:]...)
			return nil
		case "end if", "else":
			s.code[bp.lineNum].A = target
			s.backpatches = append(s.backpatches[:idx], s.backpatches[idx+1:]...)
		case "end for", "end while":
			if singleLine {
				return errs.NewCompilerError("loop is not allowed within a single-line 'if'")
			}
		}
	}
	return errs.NewCompilerError("'end if' without matching 'if'")
}
