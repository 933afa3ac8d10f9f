package examroom

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/errors"
	"github.com/vimaru/luyenthi/internal/event"
	"github.com/vimaru/luyenthi/internal/quiz"
)

// Catalog provides the question pool an exam is issued from.
type Catalog interface {
	ListQuestions(ctx context.Context, licenseID string) ([]domain.Question, error)
}

type Config struct {
	DB       *pgxpool.Pool
	EventBus *event.Bus
	Catalog  Catalog
	Roster   *Roster
	// ExamSize is the number of questions per issued exam.
	ExamSize int
}

// Service coordinates live exam rooms: one teacher issues a freshly
// shuffled question set, all connected students receive the identical
// embedded quiz, and per-participant progress flows through the roster.
type Service struct {
	db       *pgxpool.Pool
	eb       *event.Bus
	catalog  Catalog
	roster   *Roster
	examSize int
}

func NewService(c Config) *Service {
	size := c.ExamSize
	if size <= 0 {
		size = quiz.DefaultExamSize
	}

	return &Service{
		db:       c.DB,
		eb:       c.EventBus,
		catalog:  c.Catalog,
		roster:   c.Roster,
		examSize: size,
	}
}

// ValidateTransition enforces the forward-only room lifecycle:
// waiting -> in_progress -> finished.
func ValidateTransition(from, to domain.RoomStatus) error {
	valid := (from == domain.RoomStatusWaiting && to == domain.RoomStatusInProgress) ||
		(from == domain.RoomStatusInProgress && to == domain.RoomStatusFinished)
	if !valid {
		return errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("invalid room transition: %s -> %s", from, to))
	}

	return nil
}

type CreateRoomRequest struct {
	Name        string
	LicenseID   string
	TeacherID   string
	TeacherName string
	// Duration in seconds.
	Duration int
	Password string
}

// CreateRoom opens a new room in waiting state. There is no
// idempotency key: a teacher double-clicking create gets two rooms,
// last write wins on any subsequent racing status update.
func (s *Service) CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.ExamRoom, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate room ID: %w", err)
	}

	room := &domain.ExamRoom{
		RoomID:      id.String(),
		Name:        req.Name,
		LicenseID:   req.LicenseID,
		TeacherID:   req.TeacherID,
		TeacherName: req.TeacherName,
		Status:      domain.RoomStatusWaiting,
		Duration:    req.Duration,
		Password:    req.Password,
		CreateTime:  time.Now(),
	}

	const stmt = `
INSERT INTO exam_rooms (room_id, name, license_id, teacher_id, teacher_name, status, duration, password, create_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err = s.db.Exec(ctx, stmt,
		room.RoomID, room.Name, room.LicenseID, room.TeacherID, room.TeacherName,
		room.Status, room.Duration, room.Password, room.CreateTime)
	if err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	return room, nil
}

func (s *Service) GetRoom(ctx context.Context, roomID string) (*domain.ExamRoom, error) {
	const stmt = `
SELECT room_id, name, license_id, teacher_id, teacher_name, status, duration, password, quiz, create_time, start_time
FROM exam_rooms
WHERE room_id = $1;`

	var (
		room  domain.ExamRoom
		quizB []byte
	)
	err := s.db.QueryRow(ctx, stmt, roomID).Scan(
		&room.RoomID, &room.Name, &room.LicenseID, &room.TeacherID, &room.TeacherName,
		&room.Status, &room.Duration, &room.Password, &quizB, &room.CreateTime, &room.StartTime)
	if err == pgx.ErrNoRows {
		return nil, errors.New(errors.CodeNotFound, errors.WithMessagef("room not found: %s", roomID))
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	if len(quizB) > 0 {
		var q domain.Quiz
		if err := json.Unmarshal(quizB, &q); err != nil {
			return nil, fmt.Errorf("decode embedded quiz: %w", err)
		}
		room.Quiz = &q
	}

	return &room, nil
}

// StartExam issues the exam: fetch the license's question pool,
// shuffle and truncate, embed the quiz into the room row and move the
// room to in_progress. Every observer then reads the identical set.
func (s *Service) StartExam(ctx context.Context, roomID string) (*domain.ExamRoom, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err := ValidateTransition(room.Status, domain.RoomStatusInProgress); err != nil {
		return nil, err
	}

	pool, err := s.catalog.ListQuestions(ctx, room.LicenseID)
	if err != nil {
		return nil, fmt.Errorf("load question pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("no questions available for license %s", room.LicenseID))
	}

	q, err := quiz.Build(room.Name, pool, s.examSize, room.Duration)
	if err != nil {
		return nil, err
	}

	quizB, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("encode quiz: %w", err)
	}

	now := time.Now()

	const stmt = `
UPDATE exam_rooms
SET status = $2, quiz = $3, start_time = $4
WHERE room_id = $1;`

	if _, err := s.db.Exec(ctx, stmt, roomID, domain.RoomStatusInProgress, quizB, now); err != nil {
		return nil, fmt.Errorf("start exam: %w", err)
	}

	room.Status = domain.RoomStatusInProgress
	room.Quiz = q
	room.StartTime = &now

	s.eb.Publish(ctx, domain.EventRoomStarted{Room: *room})

	return room, nil
}

// FinishExam moves the room to finished. Connected students observe
// the transition and are navigated away by their clients.
func (s *Service) FinishExam(ctx context.Context, roomID string) (*domain.ExamRoom, error) {
	room, err := s.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if err := ValidateTransition(room.Status, domain.RoomStatusFinished); err != nil {
		return nil, err
	}

	const stmt = `UPDATE exam_rooms SET status = $2 WHERE room_id = $1;`
	if _, err := s.db.Exec(ctx, stmt, roomID, domain.RoomStatusFinished); err != nil {
		return nil, fmt.Errorf("finish exam: %w", err)
	}

	room.Status = domain.RoomStatusFinished
	s.eb.Publish(ctx, domain.EventRoomFinished{Room: *room})

	return room, nil
}

type SubmitResultRequest struct {
	RoomID  string
	UserID  string
	Score   int
	Total   int
	Answers map[string]string
}

// SubmitResult records a participant's submission. The score is
// client-computed and trusted; when the embedded quiz is available the
// server recomputes its own score for audit, but never rejects a
// mismatch.
func (s *Service) SubmitResult(ctx context.Context, req SubmitResultRequest) (*domain.ExamResult, error) {
	room, err := s.GetRoom(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate result ID: %w", err)
	}

	res := &domain.ExamResult{
		ResultID:   id.String(),
		RoomID:     req.RoomID,
		UserID:     req.UserID,
		Score:      decimal.NewFromInt(int64(req.Score)),
		Total:      req.Total,
		SubmitTime: time.Now(),
	}

	if room.Quiz != nil {
		res.ServerScore = decimal.NewFromInt(int64(quiz.Score(room.Quiz, req.Answers)))
	}

	const stmt = `
INSERT INTO exam_results (result_id, room_id, user_id, score, server_score, total, submit_time)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err = s.db.Exec(ctx, stmt,
		res.ResultID, res.RoomID, res.UserID, res.Score, res.ServerScore, res.Total, res.SubmitTime)
	if err != nil {
		return nil, fmt.Errorf("insert result: %w", err)
	}

	if err := s.roster.SetStatus(ctx, req.RoomID, req.UserID, domain.ParticipantSubmitted); err != nil {
		return nil, err
	}

	return res, nil
}

// ForceSubmit flags a participant as submitted and nudges their client
// through the relay. Best-effort: a disconnected client cannot be
// forced.
func (s *Service) ForceSubmit(ctx context.Context, roomID, userID string) error {
	if err := s.roster.SetStatus(ctx, roomID, userID, domain.ParticipantSubmitted); err != nil {
		return err
	}

	s.eb.Publish(ctx, domain.EventForceSubmit{RoomID: roomID, UserID: userID})

	return nil
}
