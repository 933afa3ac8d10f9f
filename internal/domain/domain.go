package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// License is a certification track (a mariner rank) grouping subjects.
// Reference data, immutable once published.
type License struct {
	LicenseID string
	Name      string
	Position  int
	Subjects  []Subject
}

type Subject struct {
	SubjectID string
	LicenseID string
	Name      string
	Position  int
}

type Question struct {
	QuestionID      string   `json:"question_id"`
	SubjectID       string   `json:"subject_id"`
	Text            string   `json:"text"`
	ImageURL        string   `json:"image_url,omitempty"`
	Answers         []Answer `json:"answers"`
	CorrectAnswerID string   `json:"correct_answer_id"`
}

type Answer struct {
	AnswerID string `json:"answer_id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// Quiz is an ephemeral, ordered subset of questions assembled for one
// practice session or one exam room issue.
type Quiz struct {
	QuizID    string     `json:"quiz_id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	// TimeLimit in seconds, 0 means untimed.
	TimeLimit int `json:"time_limit"`
}

// RoomStatus is the lifecycle state of an exam room. Status only
// moves forward: waiting -> in_progress -> finished.
type RoomStatus string

const (
	RoomStatusWaiting    RoomStatus = "waiting"
	RoomStatusInProgress RoomStatus = "in_progress"
	RoomStatusFinished   RoomStatus = "finished"
)

// ExamRoom is one live exam session shared by a teacher and all
// connected students. The issued quiz is embedded in the room so every
// observer reads the identical set.
type ExamRoom struct {
	RoomID      string
	Name        string
	LicenseID   string
	TeacherID   string
	TeacherName string
	Status      RoomStatus
	// Duration in seconds.
	Duration   int
	Password   string
	Quiz       *Quiz
	CreateTime time.Time
	StartTime  *time.Time
}

type ParticipantStatus string

const (
	ParticipantJoined    ParticipantStatus = "joined"
	ParticipantDoing     ParticipantStatus = "doing"
	ParticipantSubmitted ParticipantStatus = "submitted"
	ParticipantOffline   ParticipantStatus = "offline"
)

// Participant is the live per-student record within a room. It lives
// in the ephemeral store, not the room row, so participants never
// collide with each other on write.
type Participant struct {
	UID      string            `json:"uid"`
	Name     string            `json:"name"`
	SBD      string            `json:"sbd"`
	Status   ParticipantStatus `json:"status"`
	Score    int               `json:"score"`
	TimeLeft int               `json:"time_left"`
	Answered int               `json:"answered"`
}

// ExamResult records one participant's submission.
type ExamResult struct {
	ResultID string
	RoomID   string
	UserID   string
	// Score as self-reported by the client.
	Score decimal.Decimal
	// ServerScore is recomputed from the embedded quiz when present,
	// kept for audit only and never used to reject a submission.
	ServerScore decimal.Decimal
	Total       int
	SubmitTime  time.Time
}

type NotificationType string

const (
	NotificationSystem    NotificationType = "system"
	NotificationClass     NotificationType = "class"
	NotificationPersonal  NotificationType = "personal"
	NotificationReminder  NotificationType = "reminder"
	NotificationSpecial   NotificationType = "special"
	NotificationAttention NotificationType = "attention"
)

type TargetType string

const (
	TargetAll   TargetType = "all"
	TargetClass TargetType = "class"
	TargetUser  TargetType = "user"
)

// RefScope tags where a notification physically lives, so mutations
// never have to probe both storage shapes.
type RefScope string

const (
	ScopePersonal RefScope = "personal"
	ScopeGlobal   RefScope = "global"
)

// NotificationRef points at exactly one stored notification row.
type NotificationRef struct {
	Scope  RefScope `json:"scope"`
	UserID string   `json:"user_id,omitempty"`
	ID     string   `json:"id"`
}

type Notification struct {
	ID         string
	Ref        NotificationRef
	Title      string
	Message    string
	Type       NotificationType
	TargetType TargetType
	TargetID   string
	SenderID   string
	SenderName string
	CreateTime time.Time
	ExpireTime *time.Time
	Read       bool
	ReadBy     []string
	DeletedBy  []string
}

// Role is the sole authorization axis.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleLanhDao Role = "lanh_dao"
	RoleQuanLy  Role = "quan_ly"
	RoleTeacher Role = "giao_vien"
	RoleStudent Role = "hoc_vien"
	RoleGuest   Role = ""
)

type UserProfile struct {
	UserID     string
	Name       string
	Email      string
	Role       Role
	VIP        bool
	Verified   bool
	CourseID   string
	CourseName string
	ClassName  string
	LicenseID  string
}

// ChatMessage is the durable record behind the relay's best-effort
// delivery.
type ChatMessage struct {
	MessageID  string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreateTime time.Time `json:"create_time"`
}
