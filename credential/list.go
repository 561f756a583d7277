package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ohx-cloud/authd/token"
)

// ErrNoCredentialMatched is returned by List.VerifyAny when no credential in
// the list holds the token's kid (or the list is empty). A token that cannot
// be parsed fails with the first credential's ErrClaimInvalid instead.
var ErrNoCredentialMatched = errors.New("credential: no credential in the list matched")

// List is the server's ordered list of issuer credentials. Index 0 is, by
// convention, the system credential; index 1 the user/first-party
// credential. Privileged endpoints gate on this index.
type List []*Credential

// VerifyAny verifies signed against each credential in order. A
// ErrNoMatchingKid result continues to the next credential; any other
// failure is terminal and is returned immediately without trying the
// remaining credentials.
func (l List) VerifyAny(signed string) (index int, claims token.Token, err error) {
	for i, c := range l {
		claims, err = c.Verify(signed)
		if err == nil {
			return i, claims, nil
		}
		if errors.Is(err, ErrNoMatchingKid) {
			continue
		}
		return -1, token.Token{}, err
	}
	return -1, token.Token{}, ErrNoCredentialMatched
}

// FetchJWKS retrieves a JWKS document over HTTP and merges its keys into c's
// verification table, for peer issuers that publish a live JWKS endpoint
// rather than shipping a static bundle at construction time.
func FetchJWKS(ctx context.Context, c *Credential, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("credential: building jwks request: %w", err)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("credential: fetching jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("credential: fetching jwks: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("credential: reading jwks response: %w", err)
	}
	return c.AddJWKS(body)
}
