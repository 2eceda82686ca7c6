package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	require.NoError(t, err)
	b, err := NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSequence(t *testing.T) {
	src := Sequence(41)
	assert.Equal(t, int64(41), src())
	assert.Equal(t, int64(42), src())
}

func TestNew_SameSeedSamePermutation(t *testing.T) {
	assert.Equal(t, New(7).Perm(10), New(7).Perm(10))
}
