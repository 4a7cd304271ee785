package safeconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustUintToInt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, MustUintToInt(0))
	assert.Equal(t, 42, MustUintToInt(42))
	assert.Panics(t, func() { MustUintToInt(uint(MaxInt) + 1) })
}

func TestMustIntToUint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint(7), MustIntToUint(7))
	assert.Panics(t, func() { MustIntToUint(-1) })
}
