package clientregistry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohx-cloud/authd/token"
)

const testDoc = `{
	"ohx": {"id": "ohx", "title": "OHX", "redirect_uri": ["https://ohx.example/cb"], "scopes": "profile device offline_access"},
	"addoncli": {"id": "addoncli", "secret": "s3cret", "title": "Addon CLI", "redirect_uri": ["https://cli.example/cb"], "scopes": "addons offline_access"}
}`

func TestAuthenticateUnknownClient(t *testing.T) {
	r, err := Load([]byte(testDoc))
	require.NoError(t, err)

	_, err = r.Authenticate("demo_client", "", token.NewScopeSet())
	require.ErrorIs(t, err, ErrUnknownClient)
}

func TestAuthenticateScopesNotAllowed(t *testing.T) {
	r, err := Load([]byte(testDoc))
	require.NoError(t, err)

	_, err = r.Authenticate("ohx", "", token.NewScopeSet("admin"))
	require.ErrorIs(t, err, ErrScopesNotAllowed)
}

func TestAuthenticateRequiresSecret(t *testing.T) {
	r, err := Load([]byte(testDoc))
	require.NoError(t, err)

	_, err = r.Authenticate("addoncli", "", token.NewScopeSet("addons"))
	require.ErrorIs(t, err, ErrMissingSecret)

	_, err = r.Authenticate("addoncli", "wrong", token.NewScopeSet("addons"))
	require.ErrorIs(t, err, ErrWrongSecret)

	c, err := r.Authenticate("addoncli", "s3cret", token.NewScopeSet("addons"))
	require.NoError(t, err)
	require.Equal(t, "addoncli", c.ID)
}

func TestAuthenticateSuccessNoSecretRequired(t *testing.T) {
	r, err := Load([]byte(testDoc))
	require.NoError(t, err)

	c, err := r.Authenticate("ohx", "", token.NewScopeSet("device"))
	require.NoError(t, err)
	require.Equal(t, "OHX", c.Title)
}
