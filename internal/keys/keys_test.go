package keys

import (
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signing.pem")
	m, err := LoadOrGenerate(path, []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return m
}

func TestLoadOrGenerateCreatesKeyOnFirstRun(t *testing.T) {
	m := newTestManager(t)
	assert.NotEmpty(t, m.CurrentKID())
}

func TestLoadOrGenerateIsStableAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")
	secret := []byte("0123456789abcdef0123456789abcdef")

	m1, err := LoadOrGenerate(path, secret)
	require.NoError(t, err)

	m2, err := LoadOrGenerate(path, secret)
	require.NoError(t, err)

	assert.Equal(t, m1.CurrentKID(), m2.CurrentKID())
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, err := m.Sign(jwt.MapClaims{"sub": "42", "aud": "mcp-gateway"})
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims["sub"])
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Sign(jwt.MapClaims{"sub": "42"})
	require.NoError(t, err)

	_, err = m.Verify(token + "tampered")
	assert.Error(t, err)
}

func TestRotateKeepsPreviousKeyVerifiable(t *testing.T) {
	m := newTestManager(t)
	token, err := m.Sign(jwt.MapClaims{"sub": "42"})
	require.NoError(t, err)

	require.NoError(t, m.Rotate())

	_, err = m.Verify(token)
	assert.NoError(t, err, "token signed by the previous key must still verify during the grace window")

	jwks := m.JWKS()
	assert.Len(t, jwks.Keys, 2)
}

func TestJWKSContainsOnlyPublicMaterial(t *testing.T) {
	m := newTestManager(t)
	jwks := m.JWKS()
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, m.CurrentKID(), jwks.Keys[0].KeyID)
	assert.Equal(t, "RS256", jwks.Keys[0].Algorithm)
}
