package storage

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(math.NaN()))
	assert.Nil(t, nullable(math.Inf(1)))
	assert.Nil(t, nullable(math.Inf(-1)))
	assert.Equal(t, 0.0, nullable(0))
	assert.Equal(t, 42.5, nullable(42.5))
}
