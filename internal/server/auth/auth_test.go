package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123"

func testService() *AuthService {
	return NewAuthService(&Config{
		Enabled:     true,
		TokenIssuer: "https://notify.example.com",
		TokenSecret: testSecret,
		TokenExpiry: time.Hour,
	})
}

func TestAuthService_IssueAndValidate(t *testing.T) {
	svc := testService()

	token, err := svc.IssueToken("ops@example.com", 0)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, AdminToken, claims.Type)
	assert.Equal(t, "https://notify.example.com", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestAuthService_Expired(t *testing.T) {
	svc := testService()

	token, err := NewToken("ops", "https://notify.example.com", testSecret, -time.Minute, AdminToken)
	require.NoError(t, err)
	// negative expiry means no exp claim
	_, err = svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)

	claims := Claims{
		Type: AdminToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			Issuer:    "https://notify.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuthService_Rejects(t *testing.T) {
	svc := testService()
	ctx := context.Background()

	_, err := svc.ValidateToken(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongSecret, err := NewToken("ops", "https://notify.example.com", "another-secret-value", time.Hour, AdminToken)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, wrongSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewToken("ops", "someone-else", testSecret, time.Hour, AdminToken)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongType, err := NewToken("ops", "https://notify.example.com", testSecret, time.Hour, AuthTokenType("refresh"))
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, wrongType)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_IssueErrors(t *testing.T) {
	_, err := testService().IssueToken("", 0)
	assert.ErrorIs(t, err, ErrEmptySubject)

	_, err = NewAuthService(&Config{}).IssueToken("ops", 0)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())
	assert.Error(t, (&Config{Enabled: true}).Validate())
	assert.Error(t, (&Config{Enabled: true, TokenIssuer: "x"}).Validate())
	assert.Error(t, (&Config{Enabled: true, TokenIssuer: "x", TokenSecret: "short"}).Validate())
	assert.NoError(t, (&Config{Enabled: true, TokenIssuer: "x", TokenSecret: testSecret}).Validate())
}
