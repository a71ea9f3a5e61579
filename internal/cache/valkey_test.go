package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(1), asInt64(int64(1)))
	assert.Equal(t, int64(7), asInt64(7))
	assert.Equal(t, int64(3), asInt64(3.9))
	assert.Equal(t, int64(42), asInt64("42"))
	assert.Zero(t, asInt64("nope"))
	assert.Zero(t, asInt64(nil))
}
