// Package clientregistry implements the scope/client registry: an immutable,
// statically-loaded table of client descriptors keyed by client_id.
package clientregistry

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ohx-cloud/authd/token"
)

var (
	ErrUnknownClient    = errors.New("clientregistry: unknown client_id")
	ErrMissingSecret    = errors.New("clientregistry: missing client_secret")
	ErrWrongSecret      = errors.New("clientregistry: client_secret does not match")
	ErrScopesNotAllowed = errors.New("clientregistry: requested scopes are invalid")
)

// Client is the static descriptor of one OAuth2 client.
type Client struct {
	ID           string          `json:"id"`
	Secret       string          `json:"secret,omitempty"`
	Title        string          `json:"title"`
	Author       string          `json:"author,omitempty"`
	LogoURL      string          `json:"logo_url,omitempty"`
	RedirectURIs []string        `json:"redirect_uri"`
	Scopes       token.ScopeSet  `json:"scopes"`
}

// Registry is an immutable, in-memory map of client_id to Client.
type Registry struct {
	clients map[string]Client
}

// Load parses a JSON document of the form {"client_id": Client, ...},
// matching the static client-descriptor document the original implementation
// loads at startup.
func Load(data []byte) (*Registry, error) {
	var clients map[string]Client
	if err := json.Unmarshal(data, &clients); err != nil {
		return nil, fmt.Errorf("clientregistry: parsing client document: %w", err)
	}
	for id, c := range clients {
		c.ID = id
		clients[id] = c
	}
	return &Registry{clients: clients}, nil
}

// Lookup returns the descriptor for clientID, or ErrUnknownClient.
func (r *Registry) Lookup(clientID string) (Client, error) {
	c, ok := r.clients[clientID]
	if !ok {
		return Client{}, ErrUnknownClient
	}
	return c, nil
}

// Authenticate validates a request's client_id/client_secret/requested scope
// trio against the registry, in the order spec.md §4.C requires: unknown
// client first, then secret, then scope subset.
func (r *Registry) Authenticate(clientID, secret string, requested token.ScopeSet) (Client, error) {
	c, err := r.Lookup(clientID)
	if err != nil {
		return Client{}, err
	}
	if c.Secret != "" {
		if secret == "" {
			return Client{}, ErrMissingSecret
		}
		if subtle.ConstantTimeCompare([]byte(secret), []byte(c.Secret)) != 1 {
			return Client{}, ErrWrongSecret
		}
	}
	if !requested.IsSubsetOf(c.Scopes) {
		return Client{}, ErrScopesNotAllowed
	}
	return c, nil
}
