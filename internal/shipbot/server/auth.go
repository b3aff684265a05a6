package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nurjigit18/shipledger/internal/common/apperrors"
	"github.com/nurjigit18/shipledger/internal/common/httpx"
)

const (
	AuthHeaderPrefix = "Bearer "
	GenericAuthError = "authentication failed"

	tokenIssuer   = "shipledger"
	tokenAudience = "shipledger-admin"
)

var (
	ErrAuth            apperrors.Error = apperrors.New("auth error").SetStatusCode(http.StatusInternalServerError)
	ErrInvalidToken    apperrors.Error = ErrAuth.New("invalid token").SetStatusCode(http.StatusUnauthorized)
	ErrTokenGeneration apperrors.Error = ErrAuth.New("failed to generate token")
	ErrMissingSecret   apperrors.Error = ErrAuth.New("signing secret is not configured")
	ErrMissingSubject  apperrors.Error = ErrAuth.New("token subject is required").SetStatusCode(http.StatusBadRequest)
)

type subjectKey struct{}

// Subject returns the authenticated token subject stored by AuthMiddleware.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// IssueToken signs an HS256 admin token for subject valid for ttl from now.
func IssueToken(secret []byte, subject string, ttl time.Duration, now time.Time) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, ErrMissingSubject
	}
	expiry := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-2 * time.Minute)), // clock skew
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, ErrTokenGeneration.MsgErr("unable to sign token", err)
	}
	return signed, expiry, nil
}

// ValidateToken parses an admin token and returns its subject.
func ValidateToken(secret []byte, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken.Msg("empty token")
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", ErrInvalidToken.Err(err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, AuthHeaderPrefix) {
				log.Ctx(ctx).Debug().Msg("missing or invalid authorization header")
				httpx.ErrUnAuthorized(GenericAuthError).Send(w)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authHeader, AuthHeaderPrefix))
			sub, err := ValidateToken(secret, token)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("token validation failed")
				httpx.ErrUnAuthorized(GenericAuthError).Send(w)
				return
			}
			ctx = log.Ctx(ctx).With().Str("subject", sub).Logger().WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, subjectKey{}, sub)))
		})
	}
}
