package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// runManagerContract checks behaviour every backend must share.
func runManagerContract(t *testing.T, newManager func(t *testing.T) Manager) {
	ctx := context.Background()

	t.Run("add then has", func(t *testing.T) {
		m := newManager(t)
		require.NoError(t, m.AddSession(ctx, "tok-a"))

		ok, err := m.HasSession(ctx, "tok-a")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = m.HasSession(ctx, "tok-never")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("duplicate add", func(t *testing.T) {
		m := newManager(t)
		require.NoError(t, m.AddSession(ctx, "tok-a"))
		assert.ErrorIs(t, m.AddSession(ctx, "tok-a"), ErrDuplicateSession)
	})

	t.Run("empty token", func(t *testing.T) {
		m := newManager(t)
		assert.ErrorIs(t, m.AddSession(ctx, ""), ErrEmptyToken)

		ok, err := m.HasSession(ctx, "")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, m.AddSession(ctx, "tok-a"))
		assert.ErrorIs(t, m.PatchSession(ctx, "tok-a", ""), ErrEmptyToken)
		ok, _ = m.HasSession(ctx, "tok-a")
		assert.True(t, ok, "failed patch must leave the old token live")
	})

	t.Run("remove", func(t *testing.T) {
		m := newManager(t)
		require.NoError(t, m.AddSession(ctx, "tok-a"))
		require.NoError(t, m.RemoveSession(ctx, "tok-a"))

		ok, err := m.HasSession(ctx, "tok-a")
		require.NoError(t, err)
		assert.False(t, ok)

		assert.ErrorIs(t, m.RemoveSession(ctx, "tok-a"), ErrSessionNotFound)
		assert.ErrorIs(t, m.RemoveSession(ctx, "tok-never"), ErrSessionNotFound)
	})

	t.Run("patch swaps tokens", func(t *testing.T) {
		m := newManager(t)
		require.NoError(t, m.AddSession(ctx, "tok-a"))
		require.NoError(t, m.PatchSession(ctx, "tok-a", "tok-b"))

		ok, _ := m.HasSession(ctx, "tok-a")
		assert.False(t, ok)
		ok, _ = m.HasSession(ctx, "tok-b")
		assert.True(t, ok)

		assert.ErrorIs(t, m.PatchSession(ctx, "tok-a", "tok-c"), ErrSessionNotFound)
		ok, _ = m.HasSession(ctx, "tok-c")
		assert.False(t, ok, "failed patch must not register the new token")
	})

	t.Run("patch onto live token", func(t *testing.T) {
		m := newManager(t)
		require.NoError(t, m.AddSession(ctx, "tok-a"))
		require.NoError(t, m.AddSession(ctx, "tok-b"))

		assert.ErrorIs(t, m.PatchSession(ctx, "tok-a", "tok-b"), ErrDuplicateSession)
		ok, _ := m.HasSession(ctx, "tok-a")
		assert.True(t, ok)
	})

	t.Run("concurrent patch has one winner", func(t *testing.T) {
		m := newManager(t)
		require.NoError(t, m.AddSession(ctx, "tok-a"))

		const n = 16
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = m.PatchSession(ctx, "tok-a", fmt.Sprintf("tok-next-%d", i))
			}(i)
		}
		wg.Wait()

		wins := 0
		for i, err := range errs {
			if err == nil {
				wins++
				ok, _ := m.HasSession(ctx, fmt.Sprintf("tok-next-%d", i))
				assert.True(t, ok)
				continue
			}
			assert.ErrorIs(t, err, ErrSessionNotFound)
			ok, _ := m.HasSession(ctx, fmt.Sprintf("tok-next-%d", i))
			assert.False(t, ok)
		}
		assert.Equal(t, 1, wins)
	})
}
