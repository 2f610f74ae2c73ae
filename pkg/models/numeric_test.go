package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiv(t *testing.T) {
	assert.Nil(t, Div(10, 0))
	assert.Nil(t, Div(0, 0))

	got := Div(45, 12)
	require.NotNil(t, got)
	assert.Equal(t, 3.75, *got)
}

func TestRound(t *testing.T) {
	tests := []struct {
		v      float64
		places int
		want   float64
	}{
		{3.14159, 2, 3.14},
		{2.344, 1, 2.3},
		{2.35, 1, 2.4},
		{0.05, 1, 0.1},
		{-1.25, 1, -1.3},
		{12, 2, 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.v, tt.places), "Round(%v, %d)", tt.v, tt.places)
	}
}

func TestRoundPtr(t *testing.T) {
	assert.Nil(t, RoundPtr(nil, 2))
	assert.Equal(t, 1.23, *RoundPtr(Float(1.2349), 2))
}

func TestMaxOf(t *testing.T) {
	assert.Nil(t, MaxOf())
	assert.Nil(t, MaxOf(nil, nil))
	assert.Equal(t, 2.5, *MaxOf(Float(1.0), nil, Float(2.5), Float(1.8)))
	assert.Equal(t, -1.0, *MaxOf(Float(-3), Float(-1)))
}

func TestMeanOf(t *testing.T) {
	assert.Nil(t, MeanOf())
	assert.Nil(t, MeanOf(nil))

	got := MeanOf(Float(2), nil, Float(4))
	require.NotNil(t, got)
	assert.Equal(t, 3.0, *got)
	assert.False(t, math.IsNaN(*got))
}

func TestMinOf(t *testing.T) {
	assert.Nil(t, MinOf(nil, nil))
	assert.Equal(t, 2.0, *MinOf(nil, Float(2)))
	assert.Equal(t, 2.0, *MinOf(Float(2), nil))
	assert.Equal(t, 1.5, *MinOf(Float(2), Float(1.5)))
	assert.Equal(t, 1.5, *MinOf(Float(1.5), Float(2)))
}
