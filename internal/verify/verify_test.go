package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpauth/authserver/internal/errs"
	"github.com/mcpauth/authserver/internal/keys"
	"github.com/mcpauth/authserver/internal/store"
)

func newTestVerifier(t *testing.T) (*Verifier, *keys.Manager, store.Store) {
	t.Helper()
	km, err := keys.LoadOrGenerate(filepath.Join(t.TempDir(), "key.pem"), []byte("01234567890123456789012345678901"))
	require.NoError(t, err)
	s := store.NewMemory()
	return New(km, s), km, s
}

func signAccessToken(t *testing.T, km *keys.Manager, jti, sub, username string, aud string) string {
	t.Helper()
	now := time.Now()
	tok, err := km.Sign(jwt.MapClaims{
		"iss": "https://auth.example", "sub": sub, "aud": aud,
		"exp": now.Add(time.Hour).Unix(), "iat": now.Unix(),
		"jti": jti, "client_id": "c1", "username": username, "email": username + "@example.com", "scope": "",
	})
	require.NoError(t, err)
	return tok
}

func TestVerifySucceedsForLiveToken(t *testing.T) {
	v, km, s := newTestVerifier(t)
	tok := signAccessToken(t, km, "jti-1", "user-1", "octocat", "mcp-gateway")
	require.NoError(t, s.Put(context.Background(), store.AccessTokenKey("jti-1"), []byte(`{"username":"octocat"}`), time.Hour))

	res, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", res.UserID)
	assert.Equal(t, "octocat", res.Username)
}

func TestVerifyFailsWhenJtiRecordMissing(t *testing.T) {
	v, km, _ := newTestVerifier(t)
	tok := signAccessToken(t, km, "jti-missing", "user-1", "octocat", "mcp-gateway")

	_, err := v.Verify(context.Background(), tok)
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errs.As(err, &e))
	assert.Equal(t, errTokenInvalid.Code, e.Code)
}

func TestVerifyRejectsWrongAudience(t *testing.T) {
	v, km, s := newTestVerifier(t)
	tok := signAccessToken(t, km, "jti-2", "user-1", "octocat", "someone-else")
	require.NoError(t, s.Put(context.Background(), store.AccessTokenKey("jti-2"), []byte(`{}`), time.Hour))

	_, err := v.Verify(context.Background(), tok)
	require.Error(t, err)
}

// unavailableStore simulates a State Store outage: every Get fails with
// store.ErrUnavailable rather than store.ErrNotFound.
type unavailableStore struct{ store.Store }

func (unavailableStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, store.ErrUnavailable
}

func TestVerifyReportsStoreUnavailableAsDistinctFromInvalidToken(t *testing.T) {
	km, err := keys.LoadOrGenerate(filepath.Join(t.TempDir(), "key.pem"), []byte("01234567890123456789012345678901"))
	require.NoError(t, err)
	v := New(km, unavailableStore{})
	tok := signAccessToken(t, km, "jti-3", "user-1", "octocat", "mcp-gateway")

	_, err = v.Verify(context.Background(), tok)
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errs.As(err, &e))
	assert.Equal(t, errStoreUnavailable.Code, e.Code)
	assert.Equal(t, http.StatusServiceUnavailable, e.HTTPStatus)
	assert.NotEqual(t, errTokenInvalid.Code, e.Code)
}

func TestVerifyRejectsEmptyBearer(t *testing.T) {
	v, _, _ := newTestVerifier(t)
	_, err := v.Verify(context.Background(), "")
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errs.As(err, &e))
	assert.Equal(t, errMissingBearer.Code, e.Code)
}

func TestExtractBearerFromAuthorizationHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", ExtractBearer(req))
}

func TestExtractBearerMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/verify", nil)
	assert.Equal(t, "", ExtractBearer(req))
}

func TestWriteHeadersSetsExpectedHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	res := &Result{UserID: "u1", Username: "octocat", Token: "tok"}
	res.WriteHeaders(w)
	assert.Equal(t, "u1", w.Header().Get("X-User-Id"))
	assert.Equal(t, "octocat", w.Header().Get("X-User-Name"))
	assert.Equal(t, "tok", w.Header().Get("X-Auth-Token"))
}
