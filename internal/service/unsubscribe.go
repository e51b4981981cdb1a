// internal/service/unsubscribe.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/leadgrid/leadgrid-backend/internal/model"
	"github.com/leadgrid/leadgrid-backend/internal/repository"
)

var ErrInvalidToken = errors.New("invalid or expired unsubscribe token")

// UnsubscribeTokens issues and verifies the signed, time-limited tokens
// embedded in unsubscribe links. A token binds (email, organizer) and expires
// after TTL (90 days by default).
type UnsubscribeTokens struct {
	Secret []byte
	TTL    time.Duration
}

type unsubscribeClaims struct {
	Email       string `json:"email"`
	OrganizerID int64  `json:"organizer_id"`
	jwt.RegisteredClaims
}

func (t *UnsubscribeTokens) Create(email string, organizerID int64) (string, error) {
	now := time.Now()
	claims := unsubscribeClaims{
		Email:       email,
		OrganizerID: organizerID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

func (t *UnsubscribeTokens) Parse(token string) (email string, organizerID int64, err error) {
	var claims unsubscribeClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.Secret, nil
	})
	if err != nil || !parsed.Valid || claims.Email == "" || claims.OrganizerID == 0 {
		return "", 0, ErrInvalidToken
	}
	return claims.Email, claims.OrganizerID, nil
}

// URL builds the full unsubscribe link for a recipient.
func (t *UnsubscribeTokens) URL(baseURL, email string, organizerID int64) (string, error) {
	token, err := t.Create(email, organizerID)
	if err != nil {
		return "", err
	}
	return baseURL + "/unsubscribe/" + token, nil
}

// UnsubscribeService backs the user-facing unsubscribe confirmation flow.
type UnsubscribeService struct {
	Tokens      *UnsubscribeTokens
	Suppression repository.SuppressionRepositoryInterface
}

// Lookup verifies a token without recording anything (the GET page), and
// reports whether the suppression is already on file.
func (s *UnsubscribeService) Lookup(ctx context.Context, token string) (email string, confirmed bool, err error) {
	email, organizerID, err := s.Tokens.Parse(token)
	if err != nil {
		return "", false, err
	}
	confirmed, err = s.Suppression.IsSuppressed(ctx, organizerID, email)
	if err != nil {
		return "", false, err
	}
	return email, confirmed, nil
}

// Confirm records the suppression entry for the token's (email, organizer).
// Re-confirming is a no-op.
func (s *UnsubscribeService) Confirm(ctx context.Context, token string) error {
	email, organizerID, err := s.Tokens.Parse(token)
	if err != nil {
		return err
	}
	return s.Suppression.Suppress(ctx, organizerID, email, model.SuppressionSourceUnsubscribe)
}
