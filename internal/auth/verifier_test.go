// file: internal/auth/verifier_test.go
// version: 1.0.0
// guid: fcef4162-a225-469a-be14-6da0ebd54795

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jdfalk/bookmeta/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, secret string, claims Claims, method jwt.SigningMethod) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func validClaims(sub string, ttl time.Duration) Claims {
	return Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    "identity",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}}
}

func TestJWTVerifier_Valid(t *testing.T) {
	v, err := NewJWTVerifier("s3cret", "identity", "")
	require.NoError(t, err)

	user, err := v.Verify(context.Background(), sign(t, "s3cret", validClaims("user-42", time.Hour), jwt.SigningMethodHS256))
	require.NoError(t, err)
	assert.Equal(t, "user-42", user)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v, err := NewJWTVerifier("s3cret", "identity", "")
	require.NoError(t, err)

	noSubject := validClaims("", time.Hour)
	wrongIssuer := validClaims("u", time.Hour)
	wrongIssuer.Issuer = "elsewhere"

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": sign(t, "other", validClaims("u", time.Hour), jwt.SigningMethodHS256),
		"expired":      sign(t, "s3cret", validClaims("u", -time.Minute), jwt.SigningMethodHS256),
		"wrong alg":    sign(t, "s3cret", validClaims("u", time.Hour), jwt.SigningMethodHS512),
		"no subject":   sign(t, "s3cret", noSubject, jwt.SigningMethodHS256),
		"wrong issuer": sign(t, "s3cret", wrongIssuer, jwt.SigningMethodHS256),
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tok)
			assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
		})
	}
}

func TestNewJWTVerifier_RequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("", "", "")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tok, ok := BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", tok)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}

func TestStaticVerifier(t *testing.T) {
	v := StaticVerifier{"tok": "u1"}
	user, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", user)
	_, err = v.Verify(context.Background(), "nope")
	assert.Error(t, err)
}
