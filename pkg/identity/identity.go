// Package identity authenticates Supabase access tokens and carries the
// resulting user through request contexts.
//
// With SUPABASE_JWT_SECRET set, tokens are verified locally (HS256). Without
// it, every token is checked against the project's /auth/v1/user endpoint.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User is the authenticated caller.
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
	Role  string    `json:"role,omitempty"`
}

// Config configures token verification.
type Config struct {
	URL       string        `env:"SUPABASE_URL"`
	AnonKey   string        `env:"SUPABASE_ANON_KEY"`
	JWTSecret string        `env:"SUPABASE_JWT_SECRET"`
	Audience  string        `env:"SUPABASE_JWT_AUDIENCE" envDefault:"authenticated"`
	Timeout   time.Duration `env:"SUPABASE_AUTH_TIMEOUT" envDefault:"5s"`
}

// Verifier turns bearer tokens into users.
type Verifier struct {
	cfg    Config
	client *http.Client
	now    func() time.Time
}

// NewVerifier fails with ErrNotConfigured when neither verification mode
// is possible.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.JWTSecret == "" && (cfg.URL == "" || cfg.AnonKey == "") {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Verifier{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}, nil
}

// Verify authenticates token.
func (v *Verifier) Verify(ctx context.Context, token string) (*User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}
	if v.cfg.JWTSecret != "" {
		return v.verifyLocal(token)
	}
	return v.verifyRemote(ctx, token)
}

type supabaseClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (v *Verifier) verifyLocal(token string) (*User, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	var claims supabaseClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return []byte(v.cfg.JWTSecret), nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.Join(ErrInvalidSubject, err)
	}
	return &User{ID: id, Email: claims.Email, Role: claims.Role}, nil
}

type remoteUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (v *Verifier) verifyRemote(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.URL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.cfg.AnonKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRemoteUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var u remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return nil, errors.Join(ErrInvalidSubject, err)
	}
	return &User{ID: id, Email: u.Email, Role: u.Role}, nil
}
