package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvider is the production Provider backend: a thin client against the
// external identity provider's own HTTP API (SPEC_FULL.md §1 treats that
// service as an out-of-scope collaborator, so only the contract below is
// specified, not its implementation). Session authentication is delegated by
// forwarding the caller's cookies; profile lookup and the removal queue are
// plain authenticated GETs against BaseURL.
type HTTPProvider struct {
	BaseURL     string
	ServiceAuth string // bearer token this server authenticates to the identity provider with

	client *http.Client
}

// NewHTTPProvider builds a Provider with the 5-second total request timeout
// SPEC_FULL.md §5 requires of the identity-provider client.
func NewHTTPProvider(baseURL, serviceAuth string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL:     baseURL,
		ServiceAuth: serviceAuth,
		client:      &http.Client{Timeout: 5 * time.Second},
	}
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("identity: building request: %w", err)
	}
	if p.ServiceAuth != "" {
		req.Header.Set("Authorization", "Bearer "+p.ServiceAuth)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity: unexpected status %d from %s", resp.StatusCode, path)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// AuthenticateSession forwards the caller's session cookie to the identity
// provider's whoami endpoint and trusts its answer.
func (p *HTTPProvider) AuthenticateSession(r *http.Request) (string, bool, error) {
	cookie, err := r.Cookie("session")
	if err != nil {
		return "", false, nil
	}
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, p.BaseURL+"/internal/whoami", nil)
	if err != nil {
		return "", false, fmt.Errorf("identity: building whoami request: %w", err)
	}
	req.AddCookie(cookie)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("identity: whoami request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return "", false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("identity: unexpected status %d from whoami", resp.StatusCode)
	}
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false, fmt.Errorf("identity: decoding whoami response: %w", err)
	}
	if body.UserID == "" {
		return "", false, nil
	}
	return body.UserID, true, nil
}

// Profile fetches /internal/users/{userID}.
func (p *HTTPProvider) Profile(ctx context.Context, userID string) (Profile, error) {
	var prof Profile
	if err := p.do(ctx, http.MethodGet, "/internal/users/"+userID, &prof); err != nil {
		return Profile{}, err
	}
	return prof, nil
}

// QueuedRemovals fetches /internal/users/queued_removals.
func (p *HTTPProvider) QueuedRemovals(ctx context.Context) ([]QueuedRemoval, error) {
	var raw []struct {
		UserID       string `json:"user_id"`
		QueuedRemove int64  `json:"queued_remove"`
	}
	if err := p.do(ctx, http.MethodGet, "/internal/users/queued_removals", &raw); err != nil {
		return nil, err
	}
	out := make([]QueuedRemoval, 0, len(raw))
	for _, r := range raw {
		out = append(out, QueuedRemoval{
			UserID:       r.UserID,
			QueuedRemove: time.UnixMilli(r.QueuedRemove),
		})
	}
	return out, nil
}

// DeleteUser issues DELETE /internal/users/{userID}.
func (p *HTTPProvider) DeleteUser(ctx context.Context, userID string) error {
	return p.do(ctx, http.MethodDelete, "/internal/users/"+userID, nil)
}
