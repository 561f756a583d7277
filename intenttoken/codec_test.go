package intenttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ohx-cloud/authd/token"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcde")
	c, err := New(key)
	require.NoError(t, err)
	return c
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	want := token.NewIntentToken("issuer@example.com", "key-1", "client-a", token.NewScopeSet("profile", "device"), time.Now())

	wrapped, err := c.Wrap(want)
	require.NoError(t, err)
	require.NotEmpty(t, wrapped)

	got, err := c.Unwrap(wrapped)
	require.NoError(t, err)
	require.Equal(t, want.Claims.Issuer, got.Claims.Issuer)
	require.Equal(t, want.Claims.ID, got.Claims.ID)
	require.Equal(t, want.Claims.Scope.String(), got.Claims.Scope.String())
	require.Equal(t, token.AlgorithmNone, got.Header.Algorithm)
}

func TestWrapDiffersByKey(t *testing.T) {
	tok := token.NewIntentToken("issuer@example.com", "key-1", "client-a", token.NewScopeSet("profile"), time.Now())

	var keyA, keyB [32]byte
	copy(keyA[:], "0123456789abcdef0123456789abcde")
	copy(keyB[:], "fedcba9876543210fedcba9876543210"[:32])

	a, err := New(keyA)
	require.NoError(t, err)
	b, err := New(keyB)
	require.NoError(t, err)

	wrappedA, err := a.Wrap(tok)
	require.NoError(t, err)
	wrappedB, err := b.Wrap(tok)
	require.NoError(t, err)

	require.NotEqual(t, wrappedA, wrappedB)

	_, err = b.Unwrap(wrappedA)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestWrapRejectsSignedHeader(t *testing.T) {
	c := newTestCodec(t)
	tok := token.NewIntentToken("issuer@example.com", "key-1", "client-a", token.NewScopeSet(), time.Now())
	tok.Header.Algorithm = token.AlgorithmRS256

	_, err := c.Wrap(tok)
	require.ErrorIs(t, err, ErrMalformedToken)
}

func TestCodeIsStableHash(t *testing.T) {
	wrapped := "abc.def"
	require.Equal(t, Code(wrapped), Code(wrapped))
	require.Len(t, Code(wrapped), 43)
}

func TestUnwrapMalformedBase64(t *testing.T) {
	c := newTestCodec(t)
	_, err := c.Unwrap("not valid base64!!")
	require.ErrorIs(t, err, ErrMalformedBase64)
}
