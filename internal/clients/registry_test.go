package clients

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpauth/authserver/internal/errs"
	"github.com/mcpauth/authserver/internal/store"
)

func newTestRegistry() *Registry {
	return New(store.NewMemory(), 0, func(id string) string { return "https://auth.example/register/" + id })
}

func TestRegisterHappyPath(t *testing.T) {
	r := newTestRegistry()
	reg, err := r.Register(context.Background(), Metadata{RedirectURIs: []string{"https://client.example/cb"}, ClientName: "t1"})
	require.NoError(t, err)

	assert.NotEmpty(t, reg.Client.ClientID)
	assert.NotEmpty(t, reg.ClientSecret)
	assert.NotEmpty(t, reg.RegistrationAccessToken)
	assert.Equal(t, []string{"authorization_code", "refresh_token"}, reg.Client.GrantTypes)
	assert.Equal(t, []string{"code"}, reg.Client.ResponseTypes)
	assert.Equal(t, "https://auth.example/register/"+reg.Client.ClientID, reg.RegistrationClientURI)
}

func TestRegisterPublicClientHasNoSecret(t *testing.T) {
	r := newTestRegistry()
	reg, err := r.Register(context.Background(), Metadata{
		RedirectURIs:            []string{"https://client.example/cb"},
		TokenEndpointAuthMethod: "none",
	})
	require.NoError(t, err)
	assert.Empty(t, reg.ClientSecret)
	assert.Empty(t, reg.Client.ClientSecretHash)
}

func TestRegisterRejectsEmptyRedirectURIs(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Register(context.Background(), Metadata{})
	assertRegisteredErr(t, err, errEmptyRedirectURIs)
}

func TestRegisterRejectsPlainHTTPForNonLoopback(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Register(context.Background(), Metadata{RedirectURIs: []string{"http://evil.example/cb"}})
	assertRegisteredErr(t, err, errInsecureRedirectURI)
}

func TestRegisterAllowsPlainHTTPForLoopback(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Register(context.Background(), Metadata{RedirectURIs: []string{"http://127.0.0.1:51234/cb"}})
	assert.NoError(t, err)
}

func TestRegisterRejectsUnsupportedGrantType(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Register(context.Background(), Metadata{
		RedirectURIs: []string{"https://client.example/cb"},
		GrantTypes:   []string{"client_credentials"},
	})
	assertRegisteredErr(t, err, errUnsupportedGrantType)
}

func TestRegisterRejectsNonCodeResponseType(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Register(context.Background(), Metadata{
		RedirectURIs:  []string{"https://client.example/cb"},
		ResponseTypes: []string{"token"},
	})
	assertRegisteredErr(t, err, errUnsupportedResponseType)
}

func TestClientJSONRoundTripPreservesUnknownMetadata(t *testing.T) {
	raw := []byte(`{"client_id":"c1","registration_access_token_hash":"h","created_at":1,"client_secret_expires_at":0,"redirect_uris":["https://a.example/cb"],"custom_field":"keep-me"}`)

	var c Client
	require.NoError(t, c.UnmarshalJSON(raw))
	assert.Contains(t, c.Extra, "custom_field")

	out, err := c.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(out), `"custom_field":"keep-me"`)
}

func TestAuthenticateAcceptsOwnTokenRejectsOthers(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	reg1, err := r.Register(ctx, Metadata{RedirectURIs: []string{"https://a.example/cb"}})
	require.NoError(t, err)
	reg2, err := r.Register(ctx, Metadata{RedirectURIs: []string{"https://b.example/cb"}})
	require.NoError(t, err)

	_, err = r.Authenticate(ctx, reg1.Client.ClientID, reg1.RegistrationAccessToken)
	assert.NoError(t, err)

	_, err = r.Authenticate(ctx, reg1.Client.ClientID, reg2.RegistrationAccessToken)
	assertRegisteredErr(t, err, errBadRegistrationToken)
}

func TestGetUnknownClientIsNotFound(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Get(context.Background(), "does-not-exist")
	assertRegisteredErr(t, err, errClientNotFound)
}

func TestUpdateRejectsClientIDMismatch(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	reg, err := r.Register(ctx, Metadata{RedirectURIs: []string{"https://a.example/cb"}})
	require.NoError(t, err)

	_, err = r.Update(ctx, &reg.Client, "someone-else", Metadata{RedirectURIs: []string{"https://a.example/cb"}})
	assertRegisteredErr(t, err, errClientIDMismatch)
}

func TestUpdateReplacesMetadata(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	reg, err := r.Register(ctx, Metadata{RedirectURIs: []string{"https://a.example/cb"}, ClientName: "old"})
	require.NoError(t, err)

	updated, err := r.Update(ctx, &reg.Client, reg.Client.ClientID, Metadata{
		RedirectURIs: []string{"https://a.example/cb2"}, ClientName: "new",
	})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.ClientName)

	fetched, err := r.Get(ctx, reg.Client.ClientID)
	require.NoError(t, err)
	assert.Equal(t, "new", fetched.ClientName)
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()
	reg, err := r.Register(ctx, Metadata{RedirectURIs: []string{"https://a.example/cb"}})
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, reg.Client.ClientID))

	_, err = r.Get(ctx, reg.Client.ClientID)
	assertRegisteredErr(t, err, errClientNotFound)
}

// ttlRecordingStore records the ttl of the most recent Put.
type ttlRecordingStore struct {
	store.Store
	lastTTL time.Duration
}

func (s *ttlRecordingStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.lastTTL = ttl
	return s.Store.Put(ctx, key, value, ttl)
}

func TestClientLifetimeAppliesStoreTTL(t *testing.T) {
	s := &ttlRecordingStore{Store: store.NewMemory()}
	r := New(s, 90*24*time.Hour, func(id string) string { return id })
	_, err := r.Register(context.Background(), Metadata{RedirectURIs: []string{"https://a.example/cb"}})
	require.NoError(t, err)
	assert.Equal(t, 90*24*time.Hour, s.lastTTL)
}

func assertRegisteredErr(t *testing.T, err error, code *errs.Code) {
	t.Helper()
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errs.As(err, &e), "expected a *errs.Error, got %T: %v", err, err)
	assert.Equal(t, code.Code, e.Code)
}
