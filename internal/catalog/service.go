package catalog

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

// Service serves the read-mostly license/subject/question catalog.
type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

func (s *Service) ListLicenses(ctx context.Context) ([]domain.License, error) {
	const stmt = `
SELECT license_id, name, position
FROM licenses
ORDER BY position;`

	rows, err := s.db.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}

	licenses, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.License, error) {
		var l domain.License
		if err := r.Scan(&l.LicenseID, &l.Name, &l.Position); err != nil {
			return domain.License{}, err
		}
		return l, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list licenses: %w", err)
	}

	return licenses, nil
}

// GetLicense returns the license with its ordered subjects.
func (s *Service) GetLicense(ctx context.Context, licenseID string) (*domain.License, error) {
	const licStmt = `
SELECT license_id, name, position
FROM licenses
WHERE license_id = $1;`

	var l domain.License
	err := s.db.QueryRow(ctx, licStmt, licenseID).Scan(&l.LicenseID, &l.Name, &l.Position)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("license not found: %s", licenseID))
	}
	if err != nil {
		return nil, fmt.Errorf("get license: %w", err)
	}

	const subStmt = `
SELECT subject_id, license_id, name, position
FROM subjects
WHERE license_id = $1
ORDER BY position;`

	rows, err := s.db.Query(ctx, subStmt, licenseID)
	if err != nil {
		return nil, fmt.Errorf("get license subjects: %w", err)
	}

	l.Subjects, err = pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Subject, error) {
		var sub domain.Subject
		if err := r.Scan(&sub.SubjectID, &sub.LicenseID, &sub.Name, &sub.Position); err != nil {
			return domain.Subject{}, err
		}
		return sub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("get license subjects: %w", err)
	}

	return &l, nil
}

// ListQuestions returns every question under the license with answers
// attached, ordered by subject then question position. An empty result
// is not an error.
func (s *Service) ListQuestions(ctx context.Context, licenseID string) ([]domain.Question, error) {
	const stmt = `
SELECT q.question_id, q.subject_id, q.text, COALESCE(q.image_url, ''), q.correct_answer_id
FROM questions q
JOIN subjects s ON s.subject_id = q.subject_id
WHERE s.license_id = $1
ORDER BY s.position, q.position;`

	rows, err := s.db.Query(ctx, stmt, licenseID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	qs, err := pgx.CollectRows(rows, scanQuestion)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	return s.attachAnswers(ctx, qs)
}

// ListSubjectQuestions returns the questions of one subject, answers
// attached, in position order.
func (s *Service) ListSubjectQuestions(ctx context.Context, subjectID string) ([]domain.Question, error) {
	const stmt = `
SELECT question_id, subject_id, text, COALESCE(image_url, ''), correct_answer_id
FROM questions
WHERE subject_id = $1
ORDER BY position;`

	rows, err := s.db.Query(ctx, stmt, subjectID)
	if err != nil {
		return nil, fmt.Errorf("list subject questions: %w", err)
	}

	qs, err := pgx.CollectRows(rows, scanQuestion)
	if err != nil {
		return nil, fmt.Errorf("list subject questions: %w", err)
	}

	return s.attachAnswers(ctx, qs)
}

func scanQuestion(r pgx.CollectableRow) (domain.Question, error) {
	var q domain.Question
	if err := r.Scan(&q.QuestionID, &q.SubjectID, &q.Text, &q.ImageURL, &q.CorrectAnswerID); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func (s *Service) attachAnswers(ctx context.Context, qs []domain.Question) ([]domain.Question, error) {
	if len(qs) == 0 {
		return qs, nil
	}

	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.QuestionID)
	}

	const stmt = `
SELECT question_id, answer_id, text, position
FROM answers
WHERE question_id = ANY($1)
ORDER BY question_id, position;`

	rows, err := s.db.Query(ctx, stmt, ids)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	byQuestion := make(map[string][]domain.Answer, len(qs))
	for rows.Next() {
		var qid string
		var a domain.Answer
		if err := rows.Scan(&qid, &a.AnswerID, &a.Text, &a.Position); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		byQuestion[qid] = append(byQuestion[qid], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	for i := range qs {
		qs[i].Answers = byQuestion[qs[i].QuestionID]
	}

	return qs, nil
}
