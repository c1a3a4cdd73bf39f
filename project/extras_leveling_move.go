package project

import (
	"fmt"
	"strconv"
	"strings"
)

type MovementMode int

const (
	Absolute MovementMode = iota
	Relative
)

func (self MovementMode) String() string {
	switch self {
	case Absolute:
		return "absolute"
	case Relative:
		return "relative"
	}
	return fmt.Sprintf("MovementMode(%d)", int(self))
}

// PositionState remembers the last leveled absolute position of one motion
// stream. The zero value is fresh. A state must never be shared by two
// streams.
type PositionState struct {
	previous Vector3
	tracking bool
}

func (self *PositionState) Reset() {
	*self = PositionState{}
}

// Previous returns the last recorded leveled position. A fresh state reports
// the origin and false.
func (self PositionState) Previous() (Vector3, bool) {
	return self.previous, self.tracking
}

func (self PositionState) Tracking() bool {
	return self.tracking
}

func (self *PositionState) Record(leveled Vector3) {
	self.previous = leveled
	self.tracking = true
}

// ParseError reports a motion line whose coordinates could not be rewritten.
// Callers send the original line instead.
type ParseError struct {
	Line   string
	Token  string
	Reason string
	Err    error
}

func (self *ParseError) Error() string {
	msg := "leveling parse error: " + self.Reason
	if self.Token != "" {
		msg += fmt.Sprintf(" (token %q)", self.Token)
	}
	if self.Err != nil {
		msg += ": " + self.Err.Error()
	}
	return msg
}

func (self *ParseError) Unwrap() error {
	return self.Err
}

type MoveRewriter struct {
	leveler Leveler
}

func NewMoveRewriter(leveler Leveler) *MoveRewriter {
	if leveler == nil {
		leveler = IdentityLeveling{}
	}
	return &MoveRewriter{leveler: leveler}
}

func (self *MoveRewriter) Leveler() Leveler {
	return self.leveler
}

// coordinate token positions inside a split line, -1 when absent
type coordTokens struct {
	idx    [3]int
	suffix [3]string
}

// ApplyLeveling rewrites the X/Y/Z words of a G0/G1 line for the leveled
// destination. destination is the un-leveled absolute target already
// resolved by the caller. In relative mode the words become the delta from
// the previous leveled position in state. Axes the line does not name are
// left out, and every other token is copied through in place. state only
// takes the leveled value of the axes that were actually sent.
func (self *MoveRewriter) ApplyLeveling(line string, destination Vector3, mode MovementMode, state *PositionState) (string, error) {
	if state == nil {
		state = &PositionState{}
	}

	tokens := strings.Split(line, " ")
	coords, err := locateCoordinates(line, tokens)
	if err != nil {
		return line, err
	}

	leveled := self.leveler.LeveledPosition(destination)
	prev, _ := state.Previous()
	out := leveled
	if mode == Relative {
		out = leveled.Sub(prev)
	}

	values := [3]float64{out.X, out.Y, out.Z}
	reached := [3]float64{prev.X, prev.Y, prev.Z}
	target := [3]float64{leveled.X, leveled.Y, leveled.Z}
	sent := false
	for axis, i := range coords.idx {
		if i < 0 {
			continue
		}
		letter := tokens[i][:1]
		tokens[i] = letter + formatAxis(axis, values[axis]) + coords.suffix[axis]
		reached[axis] = target[axis]
		sent = true
	}
	// axes left out of the line stay where the machine last was
	if sent {
		state.Record(Vector3{X: reached[0], Y: reached[1], Z: reached[2]})
	}
	return strings.Join(tokens, " "), nil
}

func locateCoordinates(line string, tokens []string) (coordTokens, error) {
	coords := coordTokens{idx: [3]int{-1, -1, -1}}

	cmd := -1
	for i, token := range tokens {
		if token != "" {
			cmd = i
			break
		}
	}
	if cmd < 0 {
		return coords, &ParseError{Line: line, Reason: "empty motion line"}
	}
	if !isLinearMove(tokens[cmd]) {
		return coords, &ParseError{Line: line, Token: tokens[cmd], Reason: "not a linear move"}
	}

	for i := cmd + 1; i < len(tokens); i++ {
		token := tokens[i]
		if token == "" {
			continue
		}
		if token[0] == ';' {
			break
		}
		field, suffix := token, ""
		if semi := strings.IndexByte(token, ';'); semi >= 0 {
			field, suffix = token[:semi], token[semi:]
		}
		axis := strings.IndexByte("XYZ", upper(field[0]))
		if axis < 0 {
			if suffix != "" {
				break
			}
			continue
		}
		if coords.idx[axis] >= 0 {
			return coords, &ParseError{Line: line, Token: token, Reason: "axis given twice"}
		}
		if len(field) < 2 {
			return coords, &ParseError{Line: line, Token: token, Reason: "missing coordinate value"}
		}
		v, err := strconv.ParseFloat(field[1:], 64)
		if err != nil {
			return coords, &ParseError{Line: line, Token: token, Reason: "invalid coordinate value", Err: err}
		}
		if !isFinite(v) {
			return coords, &ParseError{Line: line, Token: token, Reason: "coordinate value is not finite"}
		}
		coords.idx[axis] = i
		coords.suffix[axis] = suffix
		if suffix != "" {
			break
		}
	}
	return coords, nil
}

func isLinearMove(word string) bool {
	switch strings.ToUpper(word) {
	case "G0", "G1", "G00", "G01":
		return true
	}
	return false
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// formatAxis prints X and Y with 2 decimals and Z with 3. Values that round
// to zero never carry a minus sign.
func formatAxis(axis int, v float64) string {
	prec := 2
	if axis == 2 {
		prec = 3
	}
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.HasPrefix(s, "-") && strings.Trim(s[1:], "0.") == "" {
		s = s[1:]
	}
	return s
}
