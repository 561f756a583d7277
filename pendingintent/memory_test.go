package pendingintent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryPutIfAbsentRejectsOverwrite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory(ctx)

	require.NoError(t, m.PutIfAbsent(ctx, "code-1", "value-1", time.Minute))
	err := m.PutIfAbsent(ctx, "code-1", "value-2", time.Minute)
	require.ErrorIs(t, err, ErrAlreadyUsed)

	got, err := m.Get(ctx, "code-1")
	require.NoError(t, err)
	require.Equal(t, "value-1", got)
}

func TestMemoryGetMissing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory(ctx)

	_, err := m.Get(ctx, "no-such-code")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryDeleteThenGetMisses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory(ctx)

	require.NoError(t, m.PutIfAbsent(ctx, "code-1", "value-1", time.Minute))
	require.NoError(t, m.Delete(ctx, "code-1"))

	_, err := m.Get(ctx, "code-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryExpiresByTTL(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewMemory(ctx)
	base := time.Now()
	m.now = func() time.Time { return base }

	require.NoError(t, m.PutIfAbsent(ctx, "code-1", "value-1", time.Minute))
	m.now = func() time.Time { return base.Add(2 * time.Minute) }

	_, err := m.Get(ctx, "code-1")
	require.ErrorIs(t, err, ErrNotFound)

	// A fresh PutIfAbsent after expiry must succeed, not report already_used.
	require.NoError(t, m.PutIfAbsent(ctx, "code-1", "value-2", time.Minute))
}
