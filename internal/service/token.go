package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/msomdec/todo-api/internal/domain"
)

// TokenClaims is the signed payload of a session token. There is no exp
// claim: sessions end only when they are revoked from the ledger.
type TokenClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenPayload is what a verified token asserts.
type TokenPayload struct {
	UserID string
	Scope  string
}

// VerificationError is returned by TokenCodec.Verify for every token that
// must not be trusted. It matches domain.ErrUnauthenticated with errors.Is.
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return "token verification failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "token verification failed: " + e.Reason
}

func (e *VerificationError) Unwrap() error { return e.Err }

func (e *VerificationError) Is(target error) bool {
	return target == domain.ErrUnauthenticated
}

// TokenCodec signs and verifies session tokens with a single process-wide
// HMAC secret. The secret is fixed for the life of the codec; changing it
// invalidates every outstanding token.
type TokenCodec struct {
	secret []byte
	parser *jwt.Parser
}

// NewTokenCodec creates a codec for the given secret. An empty secret is an error.
func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	return &TokenCodec{
		secret: secret,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// Issue signs a full-access token for userID. Each call yields a different
// token, even for the same user, because of the random jti.
func (c *TokenCodec) Issue(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("issue token: empty user id")
	}

	claims := TokenClaims{
		Scope: domain.ScopeAuth,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verify checks the signature and payload shape of token. It says nothing
// about whether the token was revoked; that is the ledger's job.
func (c *TokenCodec) Verify(token string) (TokenPayload, error) {
	claims := &TokenClaims{}
	parsed, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil {
		return TokenPayload{}, &VerificationError{Reason: verificationReason(err), Err: err}
	}
	if !parsed.Valid {
		return TokenPayload{}, &VerificationError{Reason: "invalid token"}
	}

	if claims.Subject == "" {
		return TokenPayload{}, &VerificationError{Reason: "missing subject"}
	}
	if claims.Scope != domain.ScopeAuth {
		return TokenPayload{}, &VerificationError{Reason: "unknown scope"}
	}

	return TokenPayload{UserID: claims.Subject, Scope: claims.Scope}, nil
}

func verificationReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "bad signature"
	default:
		return "invalid token"
	}
}
