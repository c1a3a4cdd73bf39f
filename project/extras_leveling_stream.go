package project

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	uuid "github.com/satori/go.uuid"

	"k3clevel/common/config"
	"k3clevel/common/logger"
	"k3clevel/common/utils/sys"
)

const maxStreamLine = 1024 * 1024

type StreamStats struct {
	Leveled     int
	Passthrough int
	ParseErrors int
}

// LevelingStream applies bed leveling to one G-code motion stream, e.g. the
// live print or an export preview. It tracks the modal G90/G91 state and
// the un-leveled position so each G0/G1 line can be resolved to an absolute
// destination before it is rewritten. A stream is owned by one goroutine at
// a time; independent streams may share a Leveler.
type LevelingStream struct {
	id       string
	name     string
	rewriter *MoveRewriter
	metrics  *LevelingMetrics
	debug    bool
	owner    uint64

	state PositionState
	raw   Vector3
	mode  MovementMode
	stats StreamStats
}

type StreamOption func(*LevelingStream)

func WithStreamName(name string) StreamOption {
	return func(self *LevelingStream) {
		self.name = name
	}
}

func WithMetrics(metrics *LevelingMetrics) StreamOption {
	return func(self *LevelingStream) {
		self.metrics = metrics
	}
}

// WithDebug logs every rewritten line at debug level.
func WithDebug(debug bool) StreamOption {
	return func(self *LevelingStream) {
		self.debug = debug
	}
}

func NewLevelingStream(leveler Leveler, opts ...StreamOption) *LevelingStream {
	self := &LevelingStream{
		id:       uuid.NewV4().String(),
		rewriter: NewMoveRewriter(leveler),
		owner:    sys.GetGID(),
		mode:     Absolute,
	}
	for _, opt := range opts {
		opt(self)
	}
	if self.name == "" {
		self.name = "stream-" + self.id[:8]
	}
	logger.Debugf("leveling stream %s (%s) created on goroutine %d", self.name, self.id, self.owner)
	return self
}

// NewLevelingStreamFromConfig builds a stream from the stream section of the
// config. metrics may be nil; opts are applied after the config.
func NewLevelingStreamFromConfig(leveler Leveler, cfg config.StreamConfig, metrics *LevelingMetrics, opts ...StreamOption) *LevelingStream {
	base := []StreamOption{WithDebug(cfg.Debug)}
	if metrics != nil {
		base = append(base, WithMetrics(metrics))
	}
	return NewLevelingStream(leveler, append(base, opts...)...)
}

func (self *LevelingStream) ID() string {
	return self.id
}

func (self *LevelingStream) Name() string {
	return self.name
}

func (self *LevelingStream) Mode() MovementMode {
	return self.mode
}

// Position is the current un-leveled position in G-code coordinates.
func (self *LevelingStream) Position() Vector3 {
	return self.raw
}

func (self *LevelingStream) State() PositionState {
	return self.state
}

func (self *LevelingStream) Stats() StreamStats {
	return self.stats
}

// Reset prepares the stream for a new job.
func (self *LevelingStream) Reset() {
	self.state.Reset()
	self.raw = Vector3{}
	self.mode = Absolute
	self.stats = StreamStats{}
	self.metrics.reset(self.name)
	logger.Debugf("leveling stream %s reset on goroutine %d", self.name, sys.GetGID())
}

// ProcessLine returns the line to send in place of line. Lines that cannot
// be leveled are returned unmodified.
func (self *LevelingStream) ProcessLine(line string) string {
	self.checkOwner()

	code := line
	if idx := strings.Index(code, ";"); idx >= 0 {
		code = code[:idx]
	}
	tokens := strings.Fields(code)
	if len(tokens) == 0 {
		return self.passthrough(line)
	}
	cmd := strings.ToUpper(tokens[0])

	switch {
	case cmd == "G90":
		self.mode = Absolute
		return self.passthrough(line)
	case cmd == "G91":
		self.mode = Relative
		return self.passthrough(line)
	case cmd == "G92":
		return self.setPosition(line, tokens)
	case cmd == "G28":
		self.home(tokens)
		return self.passthrough(line)
	case isLinearMove(cmd):
		return self.levelMove(line, tokens)
	}
	return self.passthrough(line)
}

func (self *LevelingStream) levelMove(line string, tokens []string) string {
	mv, err := parseLinearMove(tokens)
	if err != nil {
		return self.reject(line, &ParseError{Line: line, Reason: "invalid move word", Err: err})
	}
	if !(mv.HasX || mv.HasY || mv.HasZ) {
		return self.passthrough(line)
	}

	dest := applyMove(self.raw, mv, self.mode == Absolute)
	out, err := self.rewriter.ApplyLeveling(line, dest, self.mode, &self.state)
	if err != nil {
		return self.reject(line, err)
	}
	self.raw = dest
	self.stats.Leveled++
	self.metrics.leveled(self.name)
	if self.debug {
		logger.Debugf("leveling stream %s (%s): %q -> %q", self.name, self.mode, line, out)
	}
	return out
}

// setPosition handles G92. The line is sent as is, so the machine now
// stands at the raw coordinates of the named axes.
func (self *LevelingStream) setPosition(line string, tokens []string) string {
	mv := moveCommand{HasX: true, HasY: true, HasZ: true}
	if len(tokens) > 1 {
		var err error
		if mv, err = parseLinearMove(tokens); err != nil {
			return self.reject(line, &ParseError{Line: line, Reason: "invalid G92 word", Err: err})
		}
	}
	if !(mv.HasX || mv.HasY || mv.HasZ) {
		return self.passthrough(line)
	}
	self.raw = applyMove(self.raw, mv, true)
	prev, _ := self.state.Previous()
	self.state.Record(applyMove(prev, mv, true))
	return self.passthrough(line)
}

func (self *LevelingStream) home(tokens []string) {
	x, y, z := false, false, false
	for _, token := range tokens[1:] {
		switch upper(token[0]) {
		case 'X':
			x = true
		case 'Y':
			y = true
		case 'Z':
			z = true
		}
	}
	if !(x || y || z) {
		x, y, z = true, true, true
	}
	if x {
		self.raw.X = 0
	}
	if y {
		self.raw.Y = 0
	}
	if z {
		self.raw.Z = 0
	}
	self.state.Reset()
}

func (self *LevelingStream) passthrough(line string) string {
	self.stats.Passthrough++
	self.metrics.passthrough(self.name)
	return line
}

func (self *LevelingStream) reject(line string, err error) string {
	self.stats.ParseErrors++
	self.metrics.parseError(self.name)
	logger.Warnf("leveling stream %s: sending line unmodified: %v", self.name, err)
	return line
}

func (self *LevelingStream) checkOwner() {
	if gid := sys.GetGID(); gid != self.owner {
		logger.Debugf("leveling stream %s moved from goroutine %d to %d", self.name, self.owner, gid)
		self.owner = gid
	}
}

// Run levels every line read from r and writes the result to w.
func (self *LevelingStream) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024), maxStreamLine)
	out := bufio.NewWriter(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			_ = out.Flush()
			return err
		}
		if _, err := out.WriteString(self.ProcessLine(strings.TrimSuffix(scanner.Text(), "\r")) + "\n"); err != nil {
			return fmt.Errorf("leveling stream %s: write: %w", self.name, err)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = out.Flush()
		return fmt.Errorf("leveling stream %s: read: %w", self.name, err)
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("leveling stream %s: write: %w", self.name, err)
	}
	logger.Debugf("leveling stream %s finished: %+v", self.name, self.stats)
	return nil
}

type moveCommand struct {
	X    float64
	Y    float64
	Z    float64
	HasX bool
	HasY bool
	HasZ bool
}

func parseLinearMove(tokens []string) (moveCommand, error) {
	var mv moveCommand
	for _, token := range tokens[1:] {
		if len(token) < 2 {
			continue
		}
		axis := upper(token[0])
		if !strings.ContainsRune("XYZEF", rune(axis)) {
			continue
		}
		val, err := strconv.ParseFloat(token[1:], 64)
		if err != nil {
			return moveCommand{}, err
		}
		switch axis {
		case 'X':
			mv.X = val
			mv.HasX = true
		case 'Y':
			mv.Y = val
			mv.HasY = true
		case 'Z':
			mv.Z = val
			mv.HasZ = true
		}
	}
	return mv, nil
}

func applyMove(state Vector3, move moveCommand, absolute bool) Vector3 {
	newState := state
	if move.HasX {
		if absolute {
			newState.X = move.X
		} else {
			newState.X += move.X
		}
	}
	if move.HasY {
		if absolute {
			newState.Y = move.Y
		} else {
			newState.Y += move.Y
		}
	}
	if move.HasZ {
		if absolute {
			newState.Z = move.Z
		} else {
			newState.Z += move.Z
		}
	}
	return newState
}
