package main

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io/ioutil"

	"golang.org/x/crypto/chacha20poly1305"
)

// Config is the on-disk YAML configuration for the authd binary, unmarshaled
// with ghodss/yaml the way cmd/dex/config.go does.
type Config struct {
	Issuer       string `json:"issuer"`
	GrantPageURL string `json:"grantPageURL"`

	Web struct {
		HTTP    string `json:"http"`
		HTTPS   string `json:"https"`
		TLSCert string `json:"tlsCert"`
		TLSKey  string `json:"tlsKey"`
	} `json:"web"`

	Telemetry struct {
		HTTP string `json:"http"`
	} `json:"telemetry"`

	Logger struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"logger"`

	RateLimit struct {
		RequestsPerSecond float64 `json:"requestsPerSecond"`
		Burst             int     `json:"burst"`
	} `json:"rateLimit"`

	IntentSecretFile string `json:"intentSecretFile"`
	ClientsFile      string `json:"clientsFile"`

	Credentials []CredentialConfig `json:"credentials"`

	PendingIntents struct {
		Type      string `json:"type"` // "memory" or "redis"
		RedisAddr string `json:"redisAddr"`
	} `json:"pendingIntents"`

	RefreshTokens struct {
		Type        string `json:"type"` // "memory" or "postgres"
		PostgresDSN string `json:"postgresDSN"`
	} `json:"refreshTokens"`

	Identity struct {
		BaseURL     string `json:"baseURL"`
		ServiceAuth string `json:"serviceAuth"`
	} `json:"identity"`
}

// CredentialConfig describes one entry of the ordered credential list. Index
// 0 is conventionally the system credential, index 1 the user credential
// (server.SystemCredentialIndex / server.UserCredentialIndex).
type CredentialConfig struct {
	IssuerEmail    string   `json:"issuerEmail"`
	ClientID       string   `json:"clientID"`
	KeyID          string   `json:"keyID"`
	PrivateKeyFile string   `json:"privateKeyFile"`
	TrustedJWKS    []string `json:"trustedJWKS"`
	JWKSURL        string   `json:"jwksURL"`
}

func (c *Config) Validate() error {
	if c.Issuer == "" {
		return fmt.Errorf("invalid config: no issuer specified")
	}
	if c.GrantPageURL == "" {
		return fmt.Errorf("invalid config: no grantPageURL specified")
	}
	if len(c.Credentials) < 2 {
		return fmt.Errorf("invalid config: at least two credentials are required (system, user)")
	}
	if c.IntentSecretFile == "" {
		return fmt.Errorf("invalid config: no intentSecretFile specified")
	}
	if c.ClientsFile == "" {
		return fmt.Errorf("invalid config: no clientsFile specified")
	}
	return nil
}

// loadIntentSecret reads the 32-byte ChaCha20-Poly1305 key from path.
func loadIntentSecret(path string) ([chacha20poly1305.KeySize]byte, error) {
	var key [chacha20poly1305.KeySize]byte
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return key, fmt.Errorf("reading intent secret file %s: %w", path, err)
	}
	decoded, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(string(raw))
	if err != nil {
		return key, fmt.Errorf("decoding intent secret file %s: %w", path, err)
	}
	if len(decoded) != chacha20poly1305.KeySize {
		return key, fmt.Errorf("intent secret file %s: expected %d bytes, got %d", path, chacha20poly1305.KeySize, len(decoded))
	}
	copy(key[:], decoded)
	return key, nil
}

// generateIntentSecret is used only by the "genkey" helper command; it is
// not part of normal server startup.
func generateIntentSecret() ([chacha20poly1305.KeySize]byte, error) {
	var key [chacha20poly1305.KeySize]byte
	_, err := rand.Read(key[:])
	return key, err
}
