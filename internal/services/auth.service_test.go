package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/high001/webpanel/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	auth, err := InitAuthService(config.AuthConfig{
		Operators: []config.Operator{{Username: "admin", PasswordHash: string(hash)}},
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
	}, zerolog.Nop())
	require.NoError(t, err)
	return auth
}

func TestAuthenticate(t *testing.T) {
	auth := newTestAuth(t)

	assert.NoError(t, auth.Authenticate("admin", "hunter2"))
	assert.ErrorIs(t, auth.Authenticate("admin", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, auth.Authenticate("nobody", "hunter2"), ErrInvalidCredentials)
}

func TestTokenRoundTrip(t *testing.T) {
	auth := newTestAuth(t)

	token, issued, err := auth.GenerateToken("admin")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)
	assert.Equal(t, time.Hour, issued.ExpiresAt.Sub(issued.IssuedAt.Time))

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, issued.ID, claims.ID)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	auth := newTestAuth(t)
	token, _, err := auth.GenerateToken("admin")
	require.NoError(t, err)

	other := newTestAuth(t)
	other.secretKey = []byte("another-secret-another-secret-xx")
	_, err = other.ValidateToken(token)
	assert.Error(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged, _, err := other.GenerateToken("admin")
	require.NoError(t, err)
	forgedParts := strings.Split(forged, ".")
	_, err = auth.ValidateToken(parts[0] + "." + forgedParts[1] + "." + parts[2])
	assert.Error(t, err)

	_, err = auth.ValidateToken("")
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	auth := newTestAuth(t)
	start := time.Now()
	auth.now = func() time.Time { return start }

	token, _, err := auth.GenerateToken("admin")
	require.NoError(t, err)

	auth.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestValidateTokenUnknownOperator(t *testing.T) {
	auth := newTestAuth(t)
	token, _, err := auth.GenerateToken("admin")
	require.NoError(t, err)

	delete(auth.operators, "admin")
	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRevokeAndPrune(t *testing.T) {
	auth := newTestAuth(t)
	start := time.Now()
	auth.now = func() time.Time { return start }

	token, claims, err := auth.GenerateToken("admin")
	require.NoError(t, err)
	auth.Revoke(claims)

	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, ErrSessionRevoked)

	assert.Zero(t, auth.PruneRevoked(), "still within lifetime")
	auth.now = func() time.Time { return start.Add(2 * time.Hour) }
	assert.Equal(t, 1, auth.PruneRevoked())

	auth.Revoke(nil)
	assert.Empty(t, auth.revoked)
}

func TestSecretPersistedAcrossRestarts(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "secret")
	cfg := config.AuthConfig{SecretFile: keyFile}

	first, err := InitAuthService(cfg, zerolog.Nop())
	require.NoError(t, err)
	data, err := os.ReadFile(keyFile)
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(string(data)), 64)

	second, err := InitAuthService(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, first.secretKey, second.secretKey)
	assert.Equal(t, 12*time.Hour, second.TokenTTL())
}
