package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/cadence-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	t.Parallel()
	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret, TokenLifetimeMinutes: 60})
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Parallel()
	fixedTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newHMACJWTService(testSecret, time.Hour, func() time.Time { return fixedTime })
	ctx := context.Background()

	token, err := svc.GenerateToken(ctx, "user-42")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)

	_, err = svc.GenerateToken(ctx, " ")
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()
	fixedTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	issuer := newHMACJWTService(testSecret, time.Hour, func() time.Time { return fixedTime })
	valid, err := issuer.GenerateToken(ctx, "user-1")
	require.NoError(t, err)

	tests := []struct {
		name    string
		svc     *hmacJWTService
		token   string
		wantErr error
	}{
		{
			name:    "expired token",
			svc:     newHMACJWTService(testSecret, time.Hour, func() time.Time { return fixedTime.Add(2 * time.Hour) }),
			token:   valid,
			wantErr: ErrExpiredToken,
		},
		{
			name:    "within clock skew",
			svc:     newHMACJWTService(testSecret, time.Hour, func() time.Time { return fixedTime.Add(61 * time.Minute) }),
			token:   valid,
			wantErr: nil,
		},
		{
			name:    "wrong secret",
			svc:     newHMACJWTService("wrong-secret-that-is-long-enough-for-testing", time.Hour, func() time.Time { return fixedTime }),
			token:   valid,
			wantErr: ErrInvalidToken,
		},
		{
			name:    "malformed",
			svc:     issuer,
			token:   "not.a.token",
			wantErr: ErrInvalidToken,
		},
		{
			name:    "empty",
			svc:     issuer,
			token:   "",
			wantErr: ErrMissingToken,
		},
		{
			name:    "missing subject",
			svc:     issuer,
			token:   signRaw(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour))}),
			wantErr: ErrMissingSubject,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims, err := tt.svc.ValidateToken(ctx, tt.token)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "user-1", claims.UserID)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, claims)
		})
	}
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	svc := newHMACJWTService(testSecret, time.Hour, time.Now)

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func signRaw(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}
