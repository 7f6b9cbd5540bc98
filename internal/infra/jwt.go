// README: HS256 JWT verifier for self-hosted deployments without Firebase.
package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type hmacVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier verifies HS256 tokens signed with secret. The subject claim
// becomes the UID. issuer is checked when non-empty.
func NewHMACVerifier(secret, issuer string) (TokenVerifier, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	return &hmacVerifier{secret: []byte(secret), issuer: issuer}, nil
}

func (v *hmacVerifier) VerifyIDToken(_ context.Context, raw string) (*AuthToken, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("verify jwt: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("verify jwt: missing subject")
	}
	return &AuthToken{UID: sub, Claims: claims}, nil
}
