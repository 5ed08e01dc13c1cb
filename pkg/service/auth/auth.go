// Package auth resolves the caller identity the ledger operations act on.
// Tokens are HS256 JWTs carrying the owner id in the "user_id" claim.
package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirasaad/ledger/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrUnauthenticated is returned when no usable identity can be read from a
// token.
var ErrUnauthenticated = errors.New("missing or invalid identity")

const userIDClaim = "user_id"

// Service issues and reads identity tokens.
type Service struct {
	cfg    *config.Jwt
	logger *slog.Logger
	now    func() time.Time
}

// NewWithJWT creates a Service signing with cfg.Secret.
func NewWithJWT(cfg *config.Jwt, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, logger: logger, now: time.Now}
}

// GenerateToken signs a token for userID that expires after cfg.Expiry.
func (s *Service) GenerateToken(userID uuid.UUID) (string, error) {
	log := s.logger.With("userID", userID)
	log.Debug("GenerateToken called")
	if userID == uuid.Nil {
		return "", ErrUnauthenticated
	}
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIDClaim: userID.String(),
		"iat":       now.Unix(),
		"exp":       now.Add(s.cfg.Expiry).Unix(),
	})
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		log.Error("GenerateToken failed", "error", err)
		return "", err
	}
	log.Info("GenerateToken successful")
	return signed, nil
}

// ParseToken verifies raw and returns the decoded token.
func (s *Service) ParseToken(raw string) (*jwt.Token, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return token, nil
}

// GetCurrentUserID extracts the owner id from a verified token.
func (s *Service) GetCurrentUserID(token *jwt.Token) (uuid.UUID, error) {
	log := s.logger.With("context", "GetCurrentUserID")
	if token == nil {
		log.Warn("GetCurrentUserID failed", "error", ErrUnauthenticated)
		return uuid.Nil, ErrUnauthenticated
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		log.Warn("GetCurrentUserID failed: unexpected claims type")
		return uuid.Nil, ErrUnauthenticated
	}
	raw, ok := claims[userIDClaim].(string)
	if !ok {
		log.Warn("GetCurrentUserID failed: claim missing", "claim", userIDClaim)
		return uuid.Nil, ErrUnauthenticated
	}
	userID, err := uuid.Parse(raw)
	if err != nil || userID == uuid.Nil {
		log.Warn("GetCurrentUserID failed: malformed claim", "error", err)
		return uuid.Nil, ErrUnauthenticated
	}
	return userID, nil
}
