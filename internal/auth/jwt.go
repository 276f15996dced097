package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload shared with the HR backend.
type Claims struct {
	Subject    string `json:"sub"`
	Role       string `json:"role"`
	EmployeeID int64  `json:"employeeId,omitempty"`
	jwt.RegisteredClaims
}

// Token is a signed bearer token and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// ErrNoSigningKey is returned when a token would be signed or checked with an
// empty key, which HS256 otherwise accepts.
var ErrNoSigningKey = errors.New("empty signing key")

// Issue signs a bearer token for subject valid for ttl.
func Issue(subject, role string, employeeID int64, issuer, key string, ttl time.Duration) (Token, error) {
	return issueAt(time.Now(), subject, role, employeeID, issuer, key, ttl)
}

func issueAt(now time.Time, subject, role string, employeeID int64, issuer, key string, ttl time.Duration) (Token, error) {
	if key == "" {
		return Token{}, ErrNoSigningKey
	}
	exp := now.Add(ttl)
	claims := Claims{
		Subject:    subject,
		Role:       role,
		EmployeeID: employeeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	if key == "" {
		return Claims{}, ErrNoSigningKey
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}

// ServiceTokenSource issues short-lived tokens for calls made on the
// service's own behalf, such as the settings sync worker. A token is reused
// until it is within a minute of expiring.
type ServiceTokenSource struct {
	subject string
	issuer  string
	key     string
	ttl     time.Duration
	now     func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewServiceTokenSource creates a token source for the "service" role.
func NewServiceTokenSource(subject, issuer, key string, ttl time.Duration) *ServiceTokenSource {
	return &ServiceTokenSource{
		subject: subject,
		issuer:  issuer,
		key:     key,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Token returns the cached token or issues a new one.
func (s *ServiceTokenSource) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Add(time.Minute).Before(s.expiry) {
		return s.token, nil
	}
	tok, err := issueAt(s.now(), s.subject, "service", 0, s.issuer, s.key, s.ttl)
	if err != nil {
		return "", err
	}
	s.token = tok.Value
	s.expiry = tok.ExpiresAt
	return s.token, nil
}
