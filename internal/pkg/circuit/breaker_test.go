package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreaker(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b := NewBreaker("test", 3, time.Minute)
	b.nowFn = func() time.Time { return now }

	t.Run("opens after threshold failures", func(t *testing.T) {
		assert.True(t, b.Allow())
		b.RecordFailure()
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.State())
		b.RecordFailure()
		assert.Equal(t, StateOpen, b.State())
		assert.False(t, b.Allow())
	})

	t.Run("half open probe after timeout", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		assert.True(t, b.Allow())
		assert.Equal(t, StateHalfOpen, b.State())
	})

	t.Run("probe failure reopens", func(t *testing.T) {
		b.RecordFailure()
		assert.Equal(t, StateOpen, b.State())
	})

	t.Run("probe success closes", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		assert.True(t, b.Allow())
		b.RecordSuccess()
		assert.Equal(t, StateClosed, b.State())
		assert.True(t, b.Allow())
	})
}
