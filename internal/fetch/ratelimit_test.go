package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterUnlimitedWhenRPSUnset(t *testing.T) {
	t.Parallel()

	l := newLimiter(0, 0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.wait(context.Background(), "https://pokeapi.co/api/v2/pokemon/25"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterThrottlesBeyondBurst(t *testing.T) {
	t.Parallel()

	// 20 rps with a burst of 2: the third call must wait roughly 50ms.
	l := newLimiter(20, 2)
	ctx := context.Background()
	require.NoError(t, l.wait(ctx, "https://pokeapi.co/a"))
	require.NoError(t, l.wait(ctx, "https://pokeapi.co/b"))

	start := time.Now()
	require.NoError(t, l.wait(ctx, "https://pokeapi.co/c"))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestLimiterTracksHostsIndependently(t *testing.T) {
	t.Parallel()

	l := newLimiter(20, 1)
	ctx := context.Background()
	require.NoError(t, l.wait(ctx, "https://pokeapi.co/a"))

	// A different host has its own bucket and is not delayed.
	start := time.Now()
	require.NoError(t, l.wait(ctx, "https://www.pokepedia.fr/api.php"))
	assert.Less(t, time.Since(start), 25*time.Millisecond)
}

func TestLimiterHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	l := newLimiter(1, 1)
	ctx := context.Background()
	require.NoError(t, l.wait(ctx, "https://pokeapi.co/a"))

	canceled, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err := l.wait(canceled, "https://pokeapi.co/b")
	require.Error(t, err)
}
