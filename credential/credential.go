// Package credential implements the credential store: the material needed to
// sign outgoing tokens for one issuer identity and to verify incoming tokens
// against that issuer's own key plus any number of trusted peer keys.
package credential

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	jose "gopkg.in/square/go-jose.v2"

	"github.com/ohx-cloud/authd/token"
)

var (
	// ErrNoPrivateKey is returned by Sign when the credential has no private
	// signing key loaded.
	ErrNoPrivateKey = errors.New("credential: no private signing key loaded")
	// ErrNoMatchingKid is returned by Verify when the token's kid is not
	// present in this credential's verification key table. Callers treat
	// this as "not our token" and try the next credential in the list.
	ErrNoMatchingKid = errors.New("credential: no matching kid")
	// ErrSignatureInvalid is returned by Verify when the kid matched but the
	// signature did not verify. Unlike ErrNoMatchingKid this is terminal:
	// callers must not fall through to the next credential.
	ErrSignatureInvalid = errors.New("credential: signature invalid")
	// ErrClaimInvalid is returned by Verify when the signature verified but
	// the registered claims failed the strict presence/value check.
	ErrClaimInvalid = errors.New("credential: claim invalid")
)

// Credential bundles one issuer's private signing key with a table of
// trusted verification public keys (which includes the issuer's own key
// whenever New/Load was given a private key).
type Credential struct {
	IssuerEmail string
	ClientID    string
	KeyID       string

	private *rsa.PrivateKey
	verify  map[string]*rsa.PublicKey
}

// New constructs a Credential able to both sign (with privateKey, may be nil
// for a verify-only peer credential) and verify its own tokens.
func New(issuerEmail, clientID, keyID string, privateKey *rsa.PrivateKey) *Credential {
	c := &Credential{
		IssuerEmail: issuerEmail,
		ClientID:    clientID,
		KeyID:       keyID,
		private:     privateKey,
		verify:      map[string]*rsa.PublicKey{},
	}
	if privateKey != nil {
		c.verify[keyID] = &privateKey.PublicKey
	}
	return c
}

// AddTrustedKey registers an additional public key, trusted under kid, for
// verifying tokens minted by a peer issuer.
func (c *Credential) AddTrustedKey(kid string, pub *rsa.PublicKey) {
	c.verify[kid] = pub
}

// AddJWKS merges every RSA key in a JSON Web Key Set document into the
// verification table.
func (c *Credential) AddJWKS(jwksJSON []byte) error {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(jwksJSON, &set); err != nil {
		return fmt.Errorf("credential: parsing jwks: %w", err)
	}
	for _, k := range set.Keys {
		pub, ok := k.Key.(*rsa.PublicKey)
		if !ok {
			continue
		}
		c.AddTrustedKey(k.KeyID, pub)
	}
	return nil
}

// Load parses a PEM-encoded PKCS8 RSA private key and constructs a
// Credential able to sign as issuerEmail/clientID/keyID, additionally
// trusting every key found in jwksBundles (peer JWKS documents).
func Load(privateKeyPEM []byte, issuerEmail, clientID, keyID string, jwksBundles [][]byte) (*Credential, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("credential: no PEM block found in private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("credential: parsing PKCS8 private key: %w", err)
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("credential: private key is not RSA")
	}
	c := New(issuerEmail, clientID, keyID, rsaKey)
	for _, bundle := range jwksBundles {
		if err := c.AddJWKS(bundle); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadAndSelfCheck is Load followed by a self-signed round trip: it mints a
// token for requestedScope (or an empty scope), signs it, and verifies it
// against the same credential. A process should refuse to start if this
// fails, since it proves the loaded key material is internally consistent.
func LoadAndSelfCheck(privateKeyPEM []byte, issuerEmail, clientID, keyID string, jwksBundles [][]byte, requestedScope token.ScopeSet) (*Credential, error) {
	c, err := Load(privateKeyPEM, issuerEmail, clientID, keyID, jwksBundles)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	probe := token.Token{
		Header: token.Header{Algorithm: token.AlgorithmRS256, KeyID: keyID},
		Claims: token.Claims{
			Issuer:    issuerEmail,
			Subject:   issuerEmail,
			Audience:  token.Audience,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			Expiry:    now.Add(time.Hour).Unix(),
			ID:        "self-check",
			Scope:     requestedScope,
		},
	}
	signed, err := c.Sign(probe)
	if err != nil {
		return nil, fmt.Errorf("credential: self-check sign failed: %w", err)
	}
	if _, err := c.Verify(signed); err != nil {
		return nil, fmt.Errorf("credential: self-check verify failed: %w", err)
	}
	return c, nil
}

// Sign serializes t as a compact RS256 JWS. t.Header.KeyID is replaced by
// c.KeyID and t.Header.Algorithm is forced to RS256 regardless of their input
// values, matching the grant endpoint's contract that it rewrites the header
// before signing.
func (c *Credential) Sign(t token.Token) (string, error) {
	if c.private == nil {
		return "", ErrNoPrivateKey
	}
	t.Header.Algorithm = token.AlgorithmRS256
	t.Header.KeyID = c.KeyID

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: c.private}, &jose.SignerOptions{
		ExtraHeaders: map[jose.HeaderKey]interface{}{"kid": c.KeyID},
	})
	if err != nil {
		return "", fmt.Errorf("credential: building signer: %w", err)
	}
	payload, err := json.Marshal(t.Claims)
	if err != nil {
		return "", fmt.Errorf("credential: marshaling claims: %w", err)
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("credential: signing: %w", err)
	}
	return jws.CompactSerialize()
}

// Verify parses signed as a compact JWS, looks up its kid in the
// verification table, checks the signature, and on success enforces strict
// registered-claim presence and aud == token.Audience.
func (c *Credential) Verify(signed string) (token.Token, error) {
	obj, err := jose.ParseSigned(signed)
	if err != nil {
		return token.Token{}, fmt.Errorf("%w: %v", ErrClaimInvalid, err)
	}
	if len(obj.Signatures) == 0 {
		return token.Token{}, ErrClaimInvalid
	}
	kid := obj.Signatures[0].Header.KeyID
	pub, ok := c.verify[kid]
	if !ok {
		return token.Token{}, ErrNoMatchingKid
	}
	payload, err := obj.Verify(pub)
	if err != nil {
		return token.Token{}, ErrSignatureInvalid
	}
	var claims token.Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return token.Token{}, fmt.Errorf("%w: %v", ErrClaimInvalid, err)
	}
	if err := claims.RequirePresent(); err != nil {
		return token.Token{}, fmt.Errorf("%w: %v", ErrClaimInvalid, err)
	}
	return token.Token{
		Header: token.Header{Algorithm: token.AlgorithmRS256, KeyID: kid},
		Claims: claims,
	}, nil
}

// JWKS renders this credential's own public key as a JSON Web Key Set
// document, for the discovery endpoint.
func (c *Credential) JWKS() (jose.JSONWebKeySet, error) {
	if c.private == nil {
		return jose.JSONWebKeySet{}, ErrNoPrivateKey
	}
	return jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       &c.private.PublicKey,
				KeyID:     c.KeyID,
				Algorithm: string(jose.RS256),
				Use:       "sig",
			},
		},
	}, nil
}
