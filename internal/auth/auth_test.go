package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimaru/luyenthi/internal/auth"
	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
)

func TestSignAndParseToken(t *testing.T) {
	t.Parallel()

	s := auth.NewService(auth.Config{Secret: "test-secret"})

	signed, err := s.SignToken(&auth.Claims{
		UserID: "u1",
		Name:   "Nguyen Van An",
		Role:   domain.RoleTeacher,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	require.NoError(t, err)

	claims, err := s.ParseToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Nguyen Van An", claims.Name)
	assert.Equal(t, domain.RoleTeacher, claims.Role)
}

func TestParseToken_Rejections(t *testing.T) {
	t.Parallel()

	s := auth.NewService(auth.Config{Secret: "test-secret"})

	sign := func(svc *auth.Service, claims *auth.Claims) string {
		signed, err := svc.SignToken(claims)
		require.NoError(t, err)
		return signed
	}

	tests := map[string]string{
		"garbage": "not.a.token",
		"wrong secret": sign(auth.NewService(auth.Config{Secret: "other"}), &auth.Claims{
			UserID: "u1",
		}),
		"expired": sign(s, &auth.Claims{
			UserID: "u1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		}),
		"no user id": sign(s, &auth.Claims{Name: "anonymous"}),
	}

	for name, token := range tests {
		token := token
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := s.ParseToken(token)
			assert.True(t, errors.Is(err, errors.CodeUnauthenticated))
		})
	}
}

func TestExtractBearer(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", auth.ExtractBearer("Bearer abc"))
	assert.Empty(t, auth.ExtractBearer("Basic abc"))
	assert.Empty(t, auth.ExtractBearer(""))
}

func TestCapabilitiesFor(t *testing.T) {
	t.Parallel()

	all := auth.Capabilities{
		CanManageRooms:   true,
		CanSendBroadcast: true,
		CanViewAnalytics: true,
		CanManageClasses: true,
		CanKick:          true,
	}

	tests := map[string]struct {
		role domain.Role
		want auth.Capabilities
	}{
		"admin":    {domain.RoleAdmin, all},
		"lanh dao": {domain.RoleLanhDao, all},
		"quan ly":  {domain.RoleQuanLy, all},
		"teacher": {domain.RoleTeacher, auth.Capabilities{
			CanManageRooms: true,
			CanKick:        true,
		}},
		"student": {domain.RoleStudent, auth.Capabilities{}},
		"guest":   {domain.RoleGuest, auth.Capabilities{}},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, auth.CapabilitiesFor(tt.role))
		})
	}
}
