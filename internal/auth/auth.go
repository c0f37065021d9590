// Package auth implements the optional password gate in front of synthesis.
//
// The gate is a pure check: callers pass the submitted password and act on
// the returned Decision. No session state is kept between requests.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/nadzzz/narrator/internal/config"
)

// ErrInvalidPassword is the reason attached to a refused Decision.
var ErrInvalidPassword = errors.New("invalid password")

// Decision is the result of one gate check.
type Decision struct {
	Allowed bool
	Reason  error
}

// Gate checks passwords against a plaintext secret or a bcrypt hash.
type Gate struct {
	enabled  bool
	password []byte
	hash     []byte
}

// New builds a gate from config. A configured hash wins over a plaintext
// password.
func New(cfg config.AuthConfig) (*Gate, error) {
	g := &Gate{enabled: cfg.Enabled}
	if !cfg.Enabled {
		return g, nil
	}
	switch {
	case cfg.PasswordHash != "":
		if _, err := bcrypt.Cost([]byte(cfg.PasswordHash)); err != nil {
			return nil, fmt.Errorf("auth.password_hash: %w", err)
		}
		g.hash = []byte(cfg.PasswordHash)
	case cfg.Password != "":
		g.password = []byte(cfg.Password)
	default:
		return nil, errors.New("auth enabled without a password")
	}
	return g, nil
}

// Enabled reports whether requests need a password.
func (g *Gate) Enabled() bool { return g != nil && g.enabled }

// Check decides whether a request carrying password may proceed.
func (g *Gate) Check(password string) Decision {
	if !g.Enabled() {
		return Decision{Allowed: true}
	}
	if password == "" {
		return Decision{Reason: ErrInvalidPassword}
	}

	var ok bool
	if g.hash != nil {
		ok = bcrypt.CompareHashAndPassword(g.hash, []byte(password)) == nil
	} else {
		ok = subtle.ConstantTimeCompare(g.password, []byte(password)) == 1
	}
	if !ok {
		return Decision{Reason: ErrInvalidPassword}
	}
	return Decision{Allowed: true}
}

// HashPassword returns a bcrypt hash suitable for auth.password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
