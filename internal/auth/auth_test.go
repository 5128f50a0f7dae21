package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docservice/internal/config"
)

func TestJWT_Verify(t *testing.T) {
	secret := []byte("super-secret")
	v := NewJWT(secret, "https://issuer.example")
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		tok, err := IssueToken(secret, "user-123", "https://issuer.example", time.Hour)
		require.NoError(t, err)

		p, err := v.Verify(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, "user-123", p.Subject)
		assert.Equal(t, "https://issuer.example", p.Issuer)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tok, err := IssueToken(secret, "user-123", "https://other.example", time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := IssueToken(secret, "user-123", "https://issuer.example", -time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := IssueToken([]byte("other"), "user-123", "https://issuer.example", time.Hour)
		require.NoError(t, err)

		_, err = v.Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("rejects none algorithm", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}})
		s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.Verify(ctx, s)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Verify(ctx, "not.a.token")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestJWT_AnyIssuer(t *testing.T) {
	secret := []byte("s")
	tok, err := IssueToken(secret, "u", "whoever", time.Hour)
	require.NoError(t, err)

	p, err := NewJWT(secret, "").Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "whoever", p.Issuer)
}

func TestNew(t *testing.T) {
	v, err := New(context.Background(), config.AuthConfig{JWTSecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &JWT{}, v)

	_, err = New(context.Background(), config.AuthConfig{})
	assert.Error(t, err)
}
