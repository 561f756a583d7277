package refreshtoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ohx-cloud/authd/token"
)

func TestMemoryPutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	record := NewRecord("user-1", "addoncli", token.NewScopeSet("addons", "offline_access"), "refresh-token-value", time.Now())
	hash := Hash("refresh-token-value")

	require.NoError(t, m.Put(ctx, hash, record))

	got, err := m.Get(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.UserID)
	require.True(t, got.ScopeSet().Has("offline_access"))

	require.NoError(t, m.Delete(ctx, hash))
	_, err = m.Get(ctx, hash)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Delete(ctx, "never-existed"))
	require.NoError(t, m.Delete(ctx, "never-existed"))
}

func TestHashIsDeterministic(t *testing.T) {
	require.Equal(t, Hash("abc"), Hash("abc"))
	require.NotEqual(t, Hash("abc"), Hash("abd"))
}
