package project

import (
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gcodeString(v Vector3) string {
	return "G1 X" + formatAxis(0, v.X) + " Y" + formatAxis(1, v.Y) + " Z" + formatAxis(2, v.Z)
}

func TestApplyLevelingAbsoluteIsByteExact(t *testing.T) {
	lf, _ := sixPointLeveling(t)
	rw := NewMoveRewriter(lf)

	cases := []struct {
		name string
		line string
		dest Vector3
		want string
	}{
		{"sample 0", "G1 X100 Y0 Z0", Vector3{X: 100}, "G1 X100.00 Y0.00 Z0.000"},
		{"extra words kept", "G1 X50 Y0 Z0.2 E1.5 F3000 ; perimeter", Vector3{X: 50, Z: 0.2}, "G1 X50.00 Y0.00 Z3.200 E1.5 F3000 ; perimeter"},
		{"missing axis not invented", "G1 X50 F1200", Vector3{X: 50}, "G1 X50.00 F1200"},
		{"lower case letters", "g1 x50 y0 z0", Vector3{X: 50}, "g1 x50.00 y0.00 z3.000"},
		{"glued comment", "G1 X50 Y0 Z0;first layer", Vector3{X: 50}, "G1 X50.00 Y0.00 Z3.000;first layer"},
		{"spacing kept", "G0  X50  Y0", Vector3{X: 50}, "G0  X50.00  Y0.00"},
		{"comment letters ignored", "G1 X50 ; Z is lifted", Vector3{X: 50}, "G1 X50.00 ; Z is lifted"},
		{"center", "G1 X0 Y0 Z0.3", Vector3{Z: 0.3}, "G1 X0.00 Y0.00 Z6.300"},
		{"only z", "G1 Z5 F3000", Vector3{Z: 5}, "G1 Z11.000 F3000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var state PositionState
			got, err := rw.ApplyLeveling(tc.line, tc.dest, Absolute, &state)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.True(t, state.Tracking())
		})
	}
}

func TestApplyLevelingMatchesLeveledPosition(t *testing.T) {
	lf, samples := sixPointLeveling(t)
	rw := NewMoveRewriter(lf)
	var state PositionState

	for i := 0; i < 6; i++ {
		next := samples[(i+1)%6]
		points := []Vector3{
			{X: samples[i].X, Y: samples[i].Y},
			{X: (samples[i].X + next.X) / 2, Y: (samples[i].Y + next.Y) / 2, Z: 3},
			pointOnCircle(100, 2*math.Pi/6*(float64(i)+0.5)),
			pointOnCircle(50, 2*math.Pi/6*float64(i)),
		}
		for _, dest := range points {
			got, err := rw.ApplyLeveling(gcodeString(dest), dest, Absolute, &state)
			require.NoError(t, err)
			assert.Equal(t, gcodeString(lf.LeveledPosition(dest)), got)
		}
	}
}

func TestApplyLevelingRelativeUsesLeveledDeltas(t *testing.T) {
	lf, samples := sixPointLeveling(t)
	rw := NewMoveRewriter(lf)
	var state PositionState

	first := Vector3{X: samples[0].X, Y: samples[0].Y}
	_, err := rw.ApplyLeveling(gcodeString(first), first, Absolute, &state)
	require.NoError(t, err)
	prevOut := lf.LeveledPosition(first)

	for i := 1; i < 6; i++ {
		dest := Vector3{X: samples[i].X, Y: samples[i].Y}
		out := lf.LeveledPosition(dest)

		got, err := rw.ApplyLeveling(gcodeString(dest), dest, Relative, &state)
		require.NoError(t, err)
		assert.Equal(t, gcodeString(out.Sub(prevOut)), got, "move to sample %d", i)

		// raw deltas would give a z of 0 here, the leveled delta is +1
		assert.Contains(t, got, "Z1.000")
		prevOut = out
	}
}

func TestApplyLevelingRelativeFromFreshState(t *testing.T) {
	lf, _ := sixPointLeveling(t)
	rw := NewMoveRewriter(lf)
	var state PositionState

	got, err := rw.ApplyLeveling("G1 X0 Y0 Z0.2", Vector3{Z: 0.2}, Relative, &state)
	require.NoError(t, err)
	assert.Equal(t, "G1 X0.00 Y0.00 Z6.200", got)

	prev, ok := state.Previous()
	assert.True(t, ok)
	if diff := cmp.Diff(Vector3{Z: 6.2}, prev, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("unexpected recorded position (-want +got):\n%s", diff)
	}
}

func TestApplyLevelingRecordsOnlySentAxes(t *testing.T) {
	lf, _ := sixPointLeveling(t)
	rw := NewMoveRewriter(lf)
	var state PositionState

	_, err := rw.ApplyLeveling("G1 X0 Y0 Z0", Vector3{}, Absolute, &state)
	require.NoError(t, err)

	got, err := rw.ApplyLeveling("G1 X50", Vector3{X: 50}, Absolute, &state)
	require.NoError(t, err)
	assert.Equal(t, "G1 X50.00", got)
	prev, _ := state.Previous()
	assert.Equal(t, 50.0, prev.X)
	assert.InDelta(t, 6, prev.Z, 1e-9)

	got, err = rw.ApplyLeveling("G1 E1.5 F1800", Vector3{X: 50}, Relative, &state)
	require.NoError(t, err)
	assert.Equal(t, "G1 E1.5 F1800", got)
	after, _ := state.Previous()
	assert.Equal(t, prev, after)

	var fresh PositionState
	_, err = rw.ApplyLeveling("G1 F600", Vector3{}, Absolute, &fresh)
	require.NoError(t, err)
	assert.False(t, fresh.Tracking())
}

func TestPositionStateLifecycle(t *testing.T) {
	var state PositionState
	prev, ok := state.Previous()
	assert.False(t, ok)
	assert.Equal(t, Vector3{}, prev)

	state.Record(Vector3{X: 1, Y: 2, Z: 3})
	assert.True(t, state.Tracking())

	state.Reset()
	assert.False(t, state.Tracking())
	prev, _ = state.Previous()
	assert.Equal(t, Vector3{}, prev)
}

func TestIndependentStatesDoNotInterfere(t *testing.T) {
	lf, samples := sixPointLeveling(t)
	rw := NewMoveRewriter(lf)

	run := func(dests []Vector3, state *PositionState) []string {
		out := make([]string, 0, len(dests))
		for _, d := range dests {
			line, err := rw.ApplyLeveling(gcodeString(d), d, Relative, state)
			require.NoError(t, err)
			out = append(out, line)
		}
		return out
	}

	printDests := []Vector3{{X: samples[0].X, Y: samples[0].Y}, {X: samples[1].X, Y: samples[1].Y}, {X: 10, Y: 10, Z: 1}}
	previewDests := []Vector3{{X: samples[3].X, Y: samples[3].Y}, {Z: 2}, {X: samples[5].X, Y: samples[5].Y}}

	var a, b PositionState
	wantPrint := run(printDests, &a)
	wantPreview := run(previewDests, &b)

	var printState, previewState PositionState
	var gotPrint, gotPreview []string
	for i := range printDests {
		gotPrint = append(gotPrint, run(printDests[i:i+1], &printState)...)
		gotPreview = append(gotPreview, run(previewDests[i:i+1], &previewState)...)
	}
	assert.Equal(t, wantPrint, gotPrint)
	assert.Equal(t, wantPreview, gotPreview)
}

func TestApplyLevelingParseErrors(t *testing.T) {
	rw := NewMoveRewriter(IdentityLeveling{})

	cases := []struct {
		name   string
		line   string
		reason string
	}{
		{"empty", "", "empty motion line"},
		{"blank", "   ", "empty motion line"},
		{"not a move", "M104 S200", "not a linear move"},
		{"comment only", "; G1 X10", "not a linear move"},
		{"bad number", "G1 Xabc Y0", "invalid coordinate value"},
		{"missing number", "G1 X Y0", "missing coordinate value"},
		{"repeated axis", "G1 X1 X2", "axis given twice"},
		{"not finite", "G1 Z+Inf", "coordinate value is not finite"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var state PositionState
			got, err := rw.ApplyLeveling(tc.line, Vector3{X: 1}, Absolute, &state)
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "got %v", err)
			assert.Equal(t, tc.reason, parseErr.Reason)
			assert.Equal(t, tc.line, parseErr.Line)
			assert.Equal(t, tc.line, got)
			assert.False(t, state.Tracking())
		})
	}
}

func TestParseErrorUnwrapsNumberError(t *testing.T) {
	_, err := NewMoveRewriter(nil).ApplyLeveling("G1 X1..2", Vector3{}, Absolute, nil)
	var numErr *strconv.NumError
	require.True(t, errors.As(err, &numErr))
	assert.Contains(t, err.Error(), `token "X1..2"`)
}

func TestApplyLevelingWithoutCoordinates(t *testing.T) {
	rw := NewMoveRewriter(IdentityLeveling{})
	got, err := rw.ApplyLeveling("G1 E2.5 F1800", Vector3{X: 3}, Absolute, nil)
	require.NoError(t, err)
	assert.Equal(t, "G1 E2.5 F1800", got)
}

func TestFormatAxis(t *testing.T) {
	assert.Equal(t, "130.00", formatAxis(0, 130))
	assert.Equal(t, "112.58", formatAxis(1, 112.5833))
	assert.Equal(t, "0.00", formatAxis(0, -0.001))
	assert.Equal(t, "0.000", formatAxis(2, -0.0004))
	assert.Equal(t, "-0.001", formatAxis(2, -0.0006))
	assert.Equal(t, "-12.35", formatAxis(1, -12.345001))
}

func TestMovementModeString(t *testing.T) {
	assert.Equal(t, "absolute", Absolute.String())
	assert.Equal(t, "relative", Relative.String())
	assert.Equal(t, "MovementMode(7)", MovementMode(7).String())
}
