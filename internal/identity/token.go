package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/smallbiznis/roomwatt/internal/clock"
	"github.com/smallbiznis/roomwatt/internal/config"
)

var (
	ErrMissingSecret = errors.New("missing_jwt_secret")
	ErrInvalidToken  = errors.New("invalid_token")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret []byte
	Issuer string
}

func TokenConfigFrom(cfg config.Config) TokenConfig {
	return TokenConfig{
		Secret: []byte(cfg.AuthJWTSecret),
		Issuer: cfg.AuthJWTIssuer,
	}
}

// Issuer signs HS256 bearer tokens.
type Issuer struct {
	cfg   TokenConfig
	clock clock.Clock
}

func NewIssuer(cfg TokenConfig, clk clock.Clock) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Issuer{cfg: cfg, clock: clk}, nil
}

func (i *Issuer) Issue(actor Actor, ttl time.Duration) (string, error) {
	if err := actor.Validate(); err != nil {
		return "", err
	}
	now := i.clock.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.cfg.Issuer,
			Subject:   strings.TrimSpace(actor.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
}

// Verifier parses bearer tokens back into actors.
type Verifier struct {
	cfg   TokenConfig
	clock clock.Clock
}

func NewVerifier(cfg TokenConfig, clk clock.Clock) (*Verifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Verifier{cfg: cfg, clock: clk}, nil
}

func (v *Verifier) Verify(raw string) (Actor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Actor{}, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
	}
	if v.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.Issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return v.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		return Actor{}, ErrInvalidToken
	}
	actor := Actor{ID: strings.TrimSpace(claims.Subject), Role: role}
	if err := actor.Validate(); err != nil {
		return Actor{}, ErrInvalidToken
	}
	return actor, nil
}
