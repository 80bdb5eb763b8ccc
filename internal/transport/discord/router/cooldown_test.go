package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldowns_Take(t *testing.T) {
	c := newCooldowns()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Zero(t, c.take("ping", "u1", 0, now))
	assert.Zero(t, c.size())

	assert.Zero(t, c.take("ping", "u1", 10*time.Second, now))
	assert.InDelta(t, float64(4*time.Second), float64(c.take("ping", "u1", 10*time.Second, now.Add(6*time.Second))), float64(time.Millisecond))
	// A refused attempt does not push the window further out.
	assert.InDelta(t, float64(2*time.Second), float64(c.take("ping", "u1", 10*time.Second, now.Add(8*time.Second))), float64(time.Millisecond))
	assert.Zero(t, c.take("ping", "u1", 10*time.Second, now.Add(10*time.Second+time.Millisecond)))
}

func TestCooldowns_Prune(t *testing.T) {
	c := newCooldowns()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	c.take("ping", "u1", time.Second, now)
	c.take("ping", "u2", time.Hour, now)
	assert.Equal(t, 2, c.size())

	c.take("ping", "u3", time.Second, now.Add(2*time.Minute))
	assert.Equal(t, 2, c.size())
}
