package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"vawter.tech/stopper"

	"github.com/high001/webpanel/internal/config"
)

const issuer = "webpanel-agent"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionRevoked     = errors.New("session revoked")
)

// SessionClaims represents the JWT claims of an operator session
type SessionClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService issues and validates operator session tokens
type AuthService struct {
	secretKey []byte
	tokenTTL  time.Duration
	operators map[string][]byte
	dummy     []byte
	now       func() time.Time
	logger    zerolog.Logger

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

// InitAuthService builds the auth service. An empty jwt_secret falls back to a
// key persisted in secret_file (generated on first start).
func InitAuthService(cfg config.AuthConfig, logger zerolog.Logger) (*AuthService, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		var err error
		secret, err = loadOrCreateSecret(cfg.SecretFile, logger)
		if err != nil {
			return nil, err
		}
	}
	if len(secret) < 32 {
		logger.Warn().Int("length", len(secret)).Msg("jwt secret is shorter than 32 bytes")
	}

	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("webpanel"), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password check: %w", err)
	}

	a := &AuthService{
		secretKey: []byte(secret),
		tokenTTL:  tokenTTL,
		operators: make(map[string][]byte, len(cfg.Operators)),
		dummy:     dummy,
		now:       time.Now,
		logger:    logger,
		revoked:   make(map[string]time.Time),
	}
	for _, op := range cfg.Operators {
		a.operators[op.Username] = []byte(op.PasswordHash)
	}
	return a, nil
}

func loadOrCreateSecret(keyFile string, logger zerolog.Logger) (string, error) {
	if keyFile == "" {
		homeDir, _ := os.UserHomeDir()
		if homeDir == "" {
			homeDir = os.TempDir()
		}
		keyFile = filepath.Join(homeDir, ".webpanel-secret-key")
	}

	if data, err := os.ReadFile(keyFile); err == nil && len(strings.TrimSpace(string(data))) > 0 {
		logger.Info().Str("file", keyFile).Msg("loaded persisted jwt secret")
		return strings.TrimSpace(string(data)), nil
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}
	secret := hex.EncodeToString(randomBytes)

	if err := renameio.WriteFile(keyFile, []byte(secret), 0o600); err != nil {
		logger.Warn().Err(err).Str("file", keyFile).Msg("could not persist jwt secret, sessions end on restart")
	} else {
		logger.Info().Str("file", keyFile).Msg("generated and persisted jwt secret")
	}
	return secret, nil
}

// Authenticate checks the operator credentials against the configured bcrypt hashes
func (a *AuthService) Authenticate(username, password string) error {
	hash, ok := a.operators[username]
	if !ok {
		// keep the timing of unknown users close to known ones
		_ = bcrypt.CompareHashAndPassword(a.dummy, []byte(password))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateToken creates a signed session token for username
func (a *AuthService) GenerateToken(username string) (string, *SessionClaims, error) {
	now := a.now()
	claims := &SessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secretKey)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken verifies signature, expiry and revocation of a session token
func (a *AuthService) ValidateToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secretKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if _, known := a.operators[claims.Username]; !known {
		return nil, ErrInvalidCredentials
	}

	a.mu.Lock()
	_, revoked := a.revoked[claims.ID]
	a.mu.Unlock()
	if revoked {
		return nil, ErrSessionRevoked
	}
	return claims, nil
}

// Revoke invalidates the session until its natural expiry
func (a *AuthService) Revoke(claims *SessionClaims) {
	if claims == nil || claims.ID == "" {
		return
	}
	expires := a.now().Add(a.tokenTTL)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	a.mu.Lock()
	a.revoked[claims.ID] = expires
	a.mu.Unlock()
}

// PruneRevoked forgets revocations of tokens that have expired anyway
func (a *AuthService) PruneRevoked() int {
	now := a.now()
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for id, exp := range a.revoked {
		if now.After(exp) {
			delete(a.revoked, id)
			n++
		}
	}
	return n
}

// RunJanitor prunes the revocation list every interval until ctx stops
func (a *AuthService) RunJanitor(ctx *stopper.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Stopping():
			return nil
		case <-ticker.C:
			if n := a.PruneRevoked(); n > 0 {
				a.logger.Debug().Int("pruned", n).Msg("revocation list pruned")
			}
		}
	}
}

// TokenTTL returns the lifetime of newly issued tokens
func (a *AuthService) TokenTTL() time.Duration {
	return a.tokenTTL
}
