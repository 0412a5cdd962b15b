package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// AuthService mints and checks the bearer tokens that guard the admin API
type AuthService struct {
	config *Config
}

func NewAuthService(config *Config) *AuthService {
	return &AuthService{config: config}
}

func (s *AuthService) IsEnabled() bool {
	return s.config.Enabled
}

// IssueToken mints an admin token for subject. expiry overrides the
// configured expiry when non-zero. Tokens can be minted with auth disabled
// so they are ready before the server enables it.
func (s *AuthService) IssueToken(subject string, expiry time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}
	if s.config.TokenSecret == "" {
		return "", ErrMissingSecret
	}

	if expiry == 0 {
		expiry = s.config.TokenExpiry
	}

	token, err := NewToken(subject, s.issuer(), s.config.TokenSecret, expiry, AdminToken)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	slog.Debug("admin token issued", "subject", subject, "expiry", expiry)
	return token, nil
}

func (s *AuthService) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := ParseClaims(token, s.config.TokenSecret, s.issuer())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Type != AdminToken {
		return nil, fmt.Errorf("%w: wrong token type got %q", ErrInvalidToken, claims.Type)
	}

	return claims, nil
}

func (s *AuthService) issuer() string {
	if s.config.TokenIssuer == "" {
		return DefaultTokenIssuer
	}
	return s.config.TokenIssuer
}
