package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smitsergei/tma-subscription-sub002/internal/domain/ports/adapter"
)

var _ adapter.SessionManager = (*SessionManager)(nil)

const sessionIssuer = "tma-subscription"

var ErrSessionDisabled = errors.New("session secret is not configured")

type sessionClaims struct {
	jwt.RegisteredClaims
}

// SessionManager mints HS256 tokens whose subject is the caller's Telegram id.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionManager returns nil when secret is empty; callers treat that as sessions disabled.
func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *SessionManager) Issue(tgID int64) (string, time.Time, error) {
	if m == nil {
		return "", time.Time{}, ErrSessionDisabled
	}
	now := m.now()
	exp := now.Add(m.ttl)
	claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   strconv.FormatInt(tgID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (m *SessionManager) Parse(token string) (int64, error) {
	if m == nil {
		return 0, ErrSessionDisabled
	}
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session subject %q", claims.Subject)
	}
	return id, nil
}
