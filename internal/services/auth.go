package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Identity is the verified subject of an identity provider token
type Identity struct {
	Subject string
	Name    string
}

// Claims is the token payload issued by the identity provider
type Claims struct {
	Name   string `json:"name,omitempty"`
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates bearer tokens either against the identity
// provider's JWKS or a shared HMAC secret
type TokenVerifier struct {
	keyFunc jwt.Keyfunc
	parser  *jwt.Parser
	jwks    *keyfunc.JWKS
}

// NewHMACVerifier verifies HS256 tokens signed with secret
func NewHMACVerifier(secret, issuer string) *TokenVerifier {
	key := []byte(secret)
	return &TokenVerifier{
		keyFunc: func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		},
		parser: newParser(issuer, "HS256", "HS384", "HS512"),
	}
}

// NewJWKSVerifier fetches the JWKS at url and keeps it refreshed in the
// background until Close is called
func NewJWKSVerifier(ctx context.Context, url, issuer string) (*TokenVerifier, error) {
	jwks, err := keyfunc.Get(url, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Error().Err(err).Str("jwks_url", url).Msg("Failed to refresh JWKS")
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS: %w", err)
	}

	return &TokenVerifier{
		keyFunc: jwks.Keyfunc,
		parser:  newParser(issuer, "RS256", "RS384", "RS512", "ES256", "ES384", "EdDSA"),
		jwks:    jwks,
	}, nil
}

func newParser(issuer string, methods ...string) *jwt.Parser {
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods)}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return jwt.NewParser(opts...)
}

// Verify validates a token and returns its identity
func (v *TokenVerifier) Verify(tokenString string) (Identity, error) {
	if tokenString == "" {
		return Identity{}, errors.New("token required")
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	if subject == "" {
		return Identity{}, errors.New("subject not found in token")
	}

	return Identity{Subject: subject, Name: claims.Name}, nil
}

// Close stops the background JWKS refresh
func (v *TokenVerifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
