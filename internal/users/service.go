package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
)

type Config struct {
	DB *pgxpool.Pool
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	const stmt = `
SELECT user_id, name, COALESCE(email, ''), role, vip, verified,
       COALESCE(course_id, ''), COALESCE(course_name, ''), COALESCE(class_name, ''), COALESCE(license_id, '')
FROM user_profiles
WHERE user_id = $1;`

	var u domain.UserProfile
	err := s.db.QueryRow(ctx, stmt, userID).Scan(
		&u.UserID, &u.Name, &u.Email, &u.Role, &u.VIP, &u.Verified,
		&u.CourseID, &u.CourseName, &u.ClassName, &u.LicenseID)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: %s", userID))
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &u, nil
}
