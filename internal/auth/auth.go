// Package auth verifies bearer tokens presented to the document API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"docservice/internal/config"
)

// ErrUnauthorized is returned for missing, malformed, expired or foreign tokens.
var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Issuer  string
}

// Verifier validates a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// New returns an OIDC verifier when an issuer URL is configured, otherwise
// an HMAC JWT verifier.
func New(ctx context.Context, cfg config.AuthConfig) (Verifier, error) {
	if cfg.OIDCIssuerURL != "" {
		return NewOIDC(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID)
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return NewJWT([]byte(cfg.JWTSecret), cfg.JWTAllowedIssuer), nil
}

// Claims are the registered claims carried by HMAC tokens.
type Claims struct {
	jwt.RegisteredClaims
}

// JWT verifies HS256 tokens signed with a shared secret. When issuer is set
// the iss claim must equal it.
type JWT struct {
	secret []byte
	issuer string
}

func NewJWT(secret []byte, issuer string) *JWT {
	return &JWT{secret: secret, issuer: issuer}
}

func (v *JWT) Verify(_ context.Context, tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid {
		return nil, ErrUnauthorized
	}

	return &Principal{Subject: claims.Subject, Issuer: claims.Issuer}, nil
}

// IssueToken signs an HS256 token for subject. It serves local tooling and tests.
func IssueToken(secret []byte, subject, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}

// OIDC verifies ID tokens against an OpenID Connect issuer's signing keys.
type OIDC struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDC discovers issuerURL. An empty clientID skips the audience check.
// Discovery and key fetches are traced through otelhttp.
func NewOIDC(ctx context.Context, issuerURL, clientID string) (*OIDC, error) {
	client := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	ctx = oidc.ClientContext(ctx, client)

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}
	return &OIDC{verifier: provider.Verifier(&oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: clientID == "",
	})}, nil
}

func (v *OIDC) Verify(ctx context.Context, token string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return &Principal{Subject: idToken.Subject, Issuer: idToken.Issuer}, nil
}
