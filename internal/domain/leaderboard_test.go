package domain

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positions(n int) []Position {
	out := make([]Position, n)
	for i := range out {
		out[i] = Position{
			ID:      uuid.New(),
			Name:    fmt.Sprintf("player%d", i),
			Seconds: int64(1000 - i),
		}
	}
	return out
}

func TestNewTopTenTruncates(t *testing.T) {
	top := NewTopTen(positions(15))
	assert.Equal(t, TopTenSize, top.Len())
}

func TestTopTenPositionIsOneIndexed(t *testing.T) {
	input := positions(3)
	top := NewTopTen(input)

	first, ok := top.Position(1)
	require.True(t, ok)
	assert.Equal(t, input[0], first)

	_, ok = top.Position(0)
	assert.False(t, ok)
	_, ok = top.Position(4)
	assert.False(t, ok)
}

func TestTopTenPositionsReturnsCopy(t *testing.T) {
	top := NewTopTen(positions(3))

	view := top.Positions()
	view[0].Seconds = -1

	first, ok := top.Position(1)
	require.True(t, ok)
	assert.Equal(t, int64(1000), first.Seconds)
}

func TestQualifiesAsMovement(t *testing.T) {
	// Sub-block jitter keeps the same integer coordinate and does not
	// count as movement.
	assert.False(t, QualifiesAsMovement(BlockPos{X: 1, Y: 64, Z: 2}, BlockPos{X: 1, Y: 64, Z: 2}))
	assert.True(t, QualifiesAsMovement(BlockPos{X: 1, Y: 64, Z: 2}, BlockPos{X: 2, Y: 64, Z: 2}))
}
