package credential

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ohx-cloud/authd/token"
)

func generateTestCredential(t *testing.T, issuer, clientID, kid string) *Credential {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return New(issuer, clientID, kid, key)
}

func pemEncode(t *testing.T, key *rsa.PrivateKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func TestSignVerifyRoundTrip(t *testing.T) {
	c := generateTestCredential(t, "issuer@example.com", "1", "key-1")

	tok := token.NewIntentToken("issuer@example.com", "key-1", "client-a", token.NewScopeSet("profile"), time.Now())
	signed, err := c.Sign(tok)
	require.NoError(t, err)

	got, err := c.Verify(signed)
	require.NoError(t, err)
	require.Equal(t, "issuer@example.com", got.Claims.Issuer)
	require.True(t, got.Claims.Scope.Has("profile"))
	require.Equal(t, token.AlgorithmRS256, got.Header.Algorithm)
}

func TestVerifyNoMatchingKid(t *testing.T) {
	c := generateTestCredential(t, "issuer@example.com", "1", "key-1")
	other := generateTestCredential(t, "other@example.com", "2", "key-2")

	tok := token.NewIntentToken("other@example.com", "key-2", "client-a", token.NewScopeSet(), time.Now())
	signed, err := other.Sign(tok)
	require.NoError(t, err)

	_, err = c.Verify(signed)
	require.ErrorIs(t, err, ErrNoMatchingKid)
}

func TestVerifySignatureInvalid(t *testing.T) {
	c := generateTestCredential(t, "issuer@example.com", "1", "key-1")
	impostorKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	impostor := New("issuer@example.com", "1", "key-1", impostorKey)

	tok := token.NewIntentToken("issuer@example.com", "key-1", "client-a", token.NewScopeSet(), time.Now())
	signed, err := impostor.Sign(tok)
	require.NoError(t, err)

	// impostor signed with a different key under the same kid; c only knows
	// its own public key for "key-1", so verification must fail the
	// signature check, not silently succeed.
	_, err = c.Verify(signed)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestLoadAndSelfCheck(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pemEncode(t, key)

	c, err := LoadAndSelfCheck(pemBytes, "issuer@example.com", "1", "key-1", nil, token.NewScopeSet("profile"))
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestListVerifyAnyStopsOnTerminalError(t *testing.T) {
	first := generateTestCredential(t, "sys@example.com", "1", "key-1")
	second := generateTestCredential(t, "user@example.com", "2", "key-2")
	list := List{first, second}

	// A token signed under key-2 but tampered so its signature no longer
	// matches must not fall through to a later credential that might
	// otherwise also hold key-2 in its verification table; first has no
	// matching kid (continues), second's signature must be checked and
	// rejected (terminal), not retried against a third credential.
	second.AddTrustedKey("key-2", &second.private.PublicKey)
	tok := token.NewIntentToken("user@example.com", "key-2", "client-a", token.NewScopeSet(), time.Now())
	signed, err := second.Sign(tok)
	require.NoError(t, err)
	tampered := signed[:len(signed)-4] + "abcd"

	idx, _, err := list.VerifyAny(tampered)
	require.ErrorIs(t, err, ErrSignatureInvalid)
	require.Equal(t, -1, idx)
}

func TestListVerifyAnySucceedsOnSecondCredential(t *testing.T) {
	first := generateTestCredential(t, "sys@example.com", "1", "key-1")
	second := generateTestCredential(t, "user@example.com", "2", "key-2")
	list := List{first, second}

	tok := token.NewIntentToken("user@example.com", "key-2", "client-a", token.NewScopeSet("profile"), time.Now())
	signed, err := second.Sign(tok)
	require.NoError(t, err)

	idx, claims, err := list.VerifyAny(signed)
	require.NoError(t, err)
	require.Equal(t, 1, idx)
	require.True(t, claims.Claims.Scope.Has("profile"))
}
