package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voicebot-server/internal/observability"
	"voicebot-server/internal/store"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// AdminProcessor backs the operator dashboard API: login, live settings and
// call log access. There is a single operator account, configured through
// the environment.
type AdminProcessor struct {
	store        *store.Store
	jwtSecret    string
	passwordHash string
	logger       *observability.Logger
}

func New(st *store.Store, jwtSecret, passwordHash string, logger *observability.Logger) AdminProcessor {
	return AdminProcessor{
		store:        st,
		jwtSecret:    jwtSecret,
		passwordHash: passwordHash,
		logger:       logger,
	}
}

// Login verifies the operator password and returns a signed token.
func (p *AdminProcessor) Login(ctx context.Context, password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword([]byte(p.passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	expirationTime := time.Now().Add(24 * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": expirationTime.Unix(),
		"iat": time.Now().Unix(),
	})
	tokenString, err := token.SignedString([]byte(p.jwtSecret))
	if err != nil {
		p.logger.Error(ctx, "failed to sign admin token", err)
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken checks signature and expiry of an operator token.
func (p *AdminProcessor) ValidateToken(ctx context.Context, tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(p.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// Settings returns the current live settings, defaults merged in.
func (p *AdminProcessor) Settings(ctx context.Context) (store.LiveSettings, error) {
	return p.store.GetLiveSettings(ctx)
}

// UpdateSettings validates and persists new live settings.
func (p *AdminProcessor) UpdateSettings(ctx context.Context, settings store.LiveSettings) error {
	if err := store.ValidateLiveSettings(settings); err != nil {
		return err
	}
	return p.store.UpdateLiveSettings(ctx, settings)
}

// Logs returns recent call events, optionally filtered.
func (p *AdminProcessor) Logs(ctx context.Context, event, search string, limit int) ([]store.CallEvent, error) {
	return p.store.GetCallEvents(ctx, event, search, limit)
}
