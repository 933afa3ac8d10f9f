package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
)

type Config struct {
	// Secret signs and verifies HMAC bearer tokens.
	Secret string
}

type Service struct {
	secret []byte
}

func NewService(c Config) *Service {
	return &Service{secret: []byte(c.Secret)}
}

// Claims is the identity carried by a bearer token.
type Claims struct {
	UserID string      `json:"user_id"`
	Name   string      `json:"name"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken verifies the token signature and expiry and returns the claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New(errors.CodeUnauthenticated,
				errors.WithMessagef("unexpected signing method: %v", t.Header["alg"]))
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("invalid token"),
			errors.WithCause(err))
	}

	if claims.UserID == "" {
		return nil, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("token has no user id"))
	}

	return claims, nil
}

// SignToken issues a token for the given claims. Used by tests and the
// account provisioning path.
func (s *Service) SignToken(claims *Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", errors.Internal(err)
	}

	return signed, nil
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(header string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return strings.TrimPrefix(header, prefix)
	}

	return ""
}
