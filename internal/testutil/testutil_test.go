package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock(t *testing.T) {
	c := NewDeterministicClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())

	c.Reset()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
}

func TestFixedIDGenerator(t *testing.T) {
	g := NewFixedIDGenerator("evt")
	assert.Equal(t, "evt-0001", g.NewID())
	assert.Equal(t, "evt-0002", g.NewID())
	assert.Equal(t, "evt-0003", g.NewID())
}
