package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"bankgame/internal/game"

	"github.com/golang-jwt/jwt/v4"
	lru "github.com/hashicorp/golang-lru"
)

var ErrInvalidToken = fmt.Errorf("%w: invalid or expired token", game.ErrUnauthorized)

const tokenIssuer = "bankgame"

// Identity is what a verified token proves.
type Identity struct {
	AccountID string
	Username  string
	ExpiresAt time.Time
}

type claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 login tokens. Verified tokens are cached so
// the hot path skips signature checks.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	cache  *lru.Cache
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, cacheSize int) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("token cache: %w", err)
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, cache: cache, now: time.Now}, nil
}

// GenerateSecret returns a random secret for processes started without one.
// Tokens signed with it die with the process.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (i *Issuer) Issue(accountID, username string) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (i *Issuer) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	if cached, ok := i.cache.Get(token); ok {
		id := cached.(Identity)
		if i.now().Before(id.ExpiresAt) {
			return id, nil
		}
		i.cache.Remove(token)
		return Identity{}, ErrInvalidToken
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if c.Issuer != tokenIssuer || c.Subject == "" || c.ExpiresAt == nil {
		return Identity{}, ErrInvalidToken
	}
	id := Identity{AccountID: c.Subject, Username: c.Username, ExpiresAt: c.ExpiresAt.Time}
	i.cache.Add(token, id)
	return id, nil
}
