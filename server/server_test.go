package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohx-cloud/authd/clientregistry"
	"github.com/ohx-cloud/authd/credential"
	"github.com/ohx-cloud/authd/identity"
	"github.com/ohx-cloud/authd/intenttoken"
	"github.com/ohx-cloud/authd/pendingintent"
	"github.com/ohx-cloud/authd/pkg/log"
	"github.com/ohx-cloud/authd/ratelimit"
	"github.com/ohx-cloud/authd/refreshtoken"
	"github.com/ohx-cloud/authd/token"
)

// nullLogger discards everything; the scenarios in this file assert on HTTP
// responses, not log output.
type nullLogger struct{}

var _ log.Logger = nullLogger{}

func (nullLogger) Debug(...interface{})          {}
func (nullLogger) Info(...interface{})           {}
func (nullLogger) Warn(...interface{})           {}
func (nullLogger) Error(...interface{})          {}
func (nullLogger) Debugf(string, ...interface{}) {}
func (nullLogger) Infof(string, ...interface{})  {}
func (nullLogger) Warnf(string, ...interface{})  {}
func (nullLogger) Errorf(string, ...interface{}) {}

const testClientsDoc = `{
	"ohx": {"id": "ohx", "title": "OHX", "redirect_uri": ["https://ohx.example/cb"], "scopes": "device profile offline_access"},
	"addoncli": {"id": "addoncli", "title": "Addon CLI", "redirect_uri": ["https://cli.example/cb"], "scopes": "addons offline_access"}
}`

func newTestServer(t *testing.T) (*Server, *identity.Mock) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	sysCred := credential.New("system@ohx.example", "1", "sys-key-1", key)

	userKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	userCred := credential.New("user@ohx.example", "2", "user-key-1", userKey)

	clients, err := clientregistry.Load([]byte(testClientsDoc))
	require.NoError(t, err)

	var intentKey [32]byte
	copy(intentKey[:], "0123456789abcdef0123456789abcde")
	codec, err := intenttoken.New(intentKey)
	require.NoError(t, err)

	idp := identity.NewMock()
	idp.DefaultUser = "user-1"

	cfg := Config{
		Issuer:         "https://auth.ohx.example",
		GrantPageURL:   "https://grant.ohx.example/oauth",
		Credentials:    credential.List{sysCred, userCred},
		Clients:        clients,
		IntentCodec:    codec,
		PendingIntents: pendingintent.NewMemory(context.Background()),
		RefreshTokens:  refreshtoken.NewMemory(),
		Identity:       idp,
		RateLimiter:    ratelimit.New(1000, 1000),
		Logger:         nullLogger{},
	}
	return New(cfg), idp
}

func doForm(t *testing.T, s *Server, method, path string, form url.Values, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, s *Server, method, path string, payload interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

// Scenario 1 (SPEC_FULL.md §8): authorize with an unknown client.
func TestAuthorizeUnknownClient(t *testing.T) {
	s, _ := newTestServer(t)
	w := doForm(t, s, http.MethodPost, "/authorize", url.Values{
		"client_id":     {"demo_client"},
		"response_type": {"code"},
	}, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "client_id unknown", decodeError(t, w))
}

// Scenario 2: authorize requesting a scope the client isn't permitted.
func TestAuthorizeScopeNotPermitted(t *testing.T) {
	s, _ := newTestServer(t)
	w := doForm(t, s, http.MethodPost, "/authorize", url.Values{
		"client_id":     {"ohx"},
		"response_type": {"code"},
		"scope":         {"admin"},
	}, nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Requested scopes are invalid", decodeError(t, w))
}

// Scenario 3: full code-flow round trip with no offline_access.
func TestCodeFlowRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	w := doForm(t, s, http.MethodPost, "/authorize", url.Values{
		"client_id":     {"ohx"},
		"response_type": {"code"},
		"scope":         {"device"},
		"state":         {"test"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	q := loc.Query()
	require.Equal(t, "ohx", q.Get("client_id"))
	require.Equal(t, "test", q.Get("state"))
	require.Len(t, q.Get("code"), 43)
	require.NotEmpty(t, q.Get("unsigned"))

	gw := doJSON(t, s, http.MethodPost, "/grant_scopes", map[string]interface{}{
		"unsigned": q.Get("unsigned"),
		"code":     q.Get("code"),
		"scopes":   []string{"device"},
	}, nil)
	require.Equal(t, http.StatusOK, gw.Code)
	grantedCode := gw.Body.String()
	require.Equal(t, q.Get("code"), grantedCode)

	// Re-granting the same code fails (idempotence guard).
	gw2 := doJSON(t, s, http.MethodPost, "/grant_scopes", map[string]interface{}{
		"unsigned": q.Get("unsigned"),
		"code":     q.Get("code"),
		"scopes":   []string{"device"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, gw2.Code)
	require.Equal(t, "already_used", decodeError(t, gw2))

	tw := doForm(t, s, http.MethodPost, "/token", url.Values{
		"grant_type": {"authorization_code"},
		"code":       {grantedCode},
		"client_id":  {"ohx"},
	}, nil)
	require.Equal(t, http.StatusOK, tw.Code)

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(tw.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "bearer", resp.TokenType)
	require.Equal(t, 3600, resp.ExpiresIn)
	require.Equal(t, "device", resp.Scope)
	require.Empty(t, resp.RefreshToken)

	// A second exchange of the same code is expired, not repeatable.
	tw2 := doForm(t, s, http.MethodPost, "/token", url.Values{
		"grant_type": {"authorization_code"},
		"code":       {grantedCode},
		"client_id":  {"ohx"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, tw2.Code)
	require.Equal(t, "expired_token", decodeError(t, tw2))
}

// Scenario 4: device flow with offline_access, then refresh-token reuse
// (Scenario 5), then revoke (Scenario 6).
func TestDeviceFlowOfflineAccessAndRefresh(t *testing.T) {
	s, _ := newTestServer(t)

	aw := doForm(t, s, http.MethodPost, "/authorize", url.Values{
		"client_id":     {"addoncli"},
		"response_type": {"device"},
		"scope":         {"addons offline_access"},
	}, nil)
	require.Equal(t, http.StatusOK, aw.Code)

	var device struct {
		DeviceCode      string `json:"device_code"`
		UserCode        string `json:"user_code"`
		VerificationURI string `json:"verification_uri"`
		Interval        int    `json:"interval"`
		ExpiresIn       int    `json:"expires_in"`
		Unsigned        string `json:"unsigned"`
	}
	require.NoError(t, json.Unmarshal(aw.Body.Bytes(), &device))
	require.Equal(t, "", device.UserCode)
	require.Equal(t, 2, device.Interval)
	require.NotEmpty(t, device.Unsigned)

	pw := doForm(t, s, http.MethodPost, "/token", url.Values{
		"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		"device_code": {device.DeviceCode},
		"client_id":   {"addoncli"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, pw.Code)
	require.Equal(t, "authorization_pending", decodeError(t, pw))

	gw := doJSON(t, s, http.MethodPost, "/grant_scopes", map[string]interface{}{
		"unsigned": device.Unsigned,
		"code":     device.DeviceCode,
		"scopes":   []string{"addons", "offline_access"},
	}, nil)
	require.Equal(t, http.StatusOK, gw.Code)

	tw := doForm(t, s, http.MethodPost, "/token", url.Values{
		"grant_type":  {"device_code"},
		"device_code": {device.DeviceCode},
		"client_id":   {"addoncli"},
	}, nil)
	require.Equal(t, http.StatusOK, tw.Code)

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(tw.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RefreshToken)
	require.Contains(t, resp.Scope, "addons")
	require.Contains(t, resp.Scope, "offline_access")

	// Scenario 5: refresh-token reuse, ten times, same refresh token, fresh
	// access tokens.
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		rw := doForm(t, s, http.MethodPost, "/token", url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {resp.RefreshToken},
			"client_id":     {"addoncli"},
		}, nil)
		require.Equal(t, http.StatusOK, rw.Code)
		var rresp tokenResponse
		require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &rresp))
		require.Equal(t, resp.RefreshToken, rresp.RefreshToken)
		require.False(t, seen[rresp.AccessToken])
		seen[rresp.AccessToken] = true
	}

	// Scenario 6: revoke then refresh.
	now := s.cfg.now()
	probe := token.Token{
		Header: token.Header{Algorithm: token.AlgorithmRS256, KeyID: s.systemKeyID()},
		Claims: token.Claims{
			Issuer:    s.cfg.Issuer,
			Subject:   s.cfg.Issuer,
			Audience:  token.Audience,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			Expiry:    now.Add(token.AccessTokenLifetime).Unix(),
			ID:        "revoke-probe",
			ClientID:  "addoncli",
		},
	}
	revokeTok, err := s.cfg.Credentials[SystemCredentialIndex].Sign(probe)
	require.NoError(t, err)
	rv := doForm(t, s, http.MethodGet, "/revoke?token="+url.QueryEscape(resp.RefreshToken), nil, map[string]string{
		"Authorization": "Bearer " + revokeTok,
	})
	require.Equal(t, http.StatusOK, rv.Code)

	rw := doForm(t, s, http.MethodPost, "/token", url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {resp.RefreshToken},
		"client_id":     {"addoncli"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, rw.Code)
	require.Equal(t, "Access Token not valid. It may have been revoked!", decodeError(t, rw))
}
