package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_SingleSlot(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Active())
	assert.True(t, r.TryAcquire("a"))
	assert.True(t, r.Active())

	assert.False(t, r.TryAcquire("b"), "slot is exclusive")
	assert.True(t, r.TryAcquire("a"), "re-acquire by the holder is fine")

	r.Release("b")
	assert.True(t, r.Active(), "release by a non-holder is a no-op")

	r.Release("a")
	assert.False(t, r.Active())
	assert.True(t, r.TryAcquire("b"))
}
