// Package intenttoken implements the intent-token envelope: an unsigned
// (alg=none) token is JSON-encoded, DEFLATE-compressed, sealed with
// ChaCha20-Poly1305 under a process-wide secret and a fixed zero nonce, and
// base64url-encoded without padding. See SPEC_FULL.md §4.B and §9 for the
// nonce-reuse rationale this codec depends on: a unique per-process key, a
// fresh jti/iat in every plaintext, and a sub-six-minute ciphertext
// lifetime.
package intenttoken

import (
	"bytes"
	"compress/flate"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ohx-cloud/authd/token"
)

var (
	ErrMalformedBase64   = errors.New("intenttoken: malformed base64")
	ErrDecryptionFailed  = errors.New("intenttoken: decryption failed")
	ErrDecompressFailed  = errors.New("intenttoken: decompression failed")
	ErrMalformedToken    = errors.New("intenttoken: malformed token")
)

// zeroNonce is the fixed 12-byte nonce used for every seal operation. Safe
// only under the conditions documented in SPEC_FULL.md §9 (Nonce discipline).
var zeroNonce = make([]byte, chacha20poly1305.NonceSize)

// Codec wraps and unwraps intent tokens under a single process-wide secret.
type Codec struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// New builds a Codec from a 32-byte ChaCha20-Poly1305 key.
func New(key [chacha20poly1305.KeySize]byte) (*Codec, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("intenttoken: building aead: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Wrap serializes t (whose header.Algorithm MUST be token.AlgorithmNone),
// deflates it, seals it under the codec's key with a zero nonce and empty
// associated data, and returns the base64url-no-padding encoding.
func (c *Codec) Wrap(t token.Token) (string, error) {
	if t.Header.Algorithm != token.AlgorithmNone {
		return "", fmt.Errorf("%w: intent token must carry alg=none before wrapping", ErrMalformedToken)
	}
	plain, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	compressed, err := deflate(plain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	sealed := c.aead.Seal(nil, zeroNonce, compressed, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Unwrap is Wrap's inverse. The returned token's header.Algorithm remains
// "none"; the caller (the grant endpoint) is responsible for rewriting it to
// RS256 before signing.
func (c *Codec) Unwrap(wrapped string) (token.Token, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(wrapped)
	if err != nil {
		return token.Token{}, fmt.Errorf("%w: %v", ErrMalformedBase64, err)
	}
	compressed, err := c.aead.Open(nil, zeroNonce, sealed, nil)
	if err != nil {
		return token.Token{}, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	plain, err := inflate(compressed)
	if err != nil {
		return token.Token{}, fmt.Errorf("%w: %v", ErrDecompressFailed, err)
	}
	var t token.Token
	if err := json.Unmarshal(plain, &t); err != nil {
		return token.Token{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return t, nil
}

// Code computes the opaque pending-intent-store key for a wrapped intent
// token: base64url_nopad(SHA-256(wrapped-bytes)).
func Code(wrapped string) string {
	sum := sha256.Sum256([]byte(wrapped))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func deflate(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(p); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(p []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(p))
	defer r.Close()
	return io.ReadAll(r)
}
