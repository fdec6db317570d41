package oauth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const audience = "mcp-gateway"

// issuedTokens is what /token returns to the client on a successful grant.
type issuedTokens struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	Scope        string
}

// identity is the subset of a federated user's profile carried into issued
// tokens.
type identity struct {
	UserID   string
	Username string
	Email    string
}

func (e *Engine) issueAccessToken(issuer string, id identity, clientID, scope string, lifetime time.Duration) (string, string, error) {
	jti := uuid.NewString()
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":       issuer,
		"sub":       id.UserID,
		"aud":       audience,
		"exp":       now.Add(lifetime).Unix(),
		"iat":       now.Unix(),
		"jti":       jti,
		"client_id": clientID,
		"username":  id.Username,
		"email":     id.Email,
		"scope":     scope,
	}
	signed, err := e.keys.Sign(claims)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// hashRefreshToken derives the deterministic lookup key for a refresh token
// value: HMAC-SHA256 keyed by the Key Manager's dedicated secret, not
// bcrypt, because the hash itself is used as the Redis key rather than
// compared against a stored value.
func (e *Engine) hashRefreshToken(token string) string {
	mac := hmac.New(sha256.New, e.keys.HMACSecret())
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateOpaqueToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
