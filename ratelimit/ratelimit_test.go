package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAllowRespectsBurst(t *testing.T) {
	l := New(1, 2)

	require.True(t, l.Allow("1.2.3.4"))
	require.True(t, l.Allow("1.2.3.4"))
	require.False(t, l.Allow("1.2.3.4"))
}

func TestAllowIsPerIP(t *testing.T) {
	l := New(1, 1)

	require.True(t, l.Allow("1.2.3.4"))
	require.False(t, l.Allow("1.2.3.4"))
	require.True(t, l.Allow("5.6.7.8"))
}

func TestSweepDropsIdleEntries(t *testing.T) {
	l := New(1, 1)
	l.Allow("1.2.3.4")
	require.Len(t, l.limiters, 1)

	l.Sweep(time.Millisecond)
	time.Sleep(2 * time.Millisecond)
	l.Sweep(time.Millisecond)
	require.Len(t, l.limiters, 0)
}
