package quiz

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/vimaru/luyenthi/internal/domain"
)

// DefaultExamSize is how many questions an issued exam carries.
const DefaultExamSize = 30

// Build assembles a quiz from the question pool: uniform random
// shuffle, truncated to limit. The shuffle seed is not persisted, so
// two builds over the same pool produce different orders.
func Build(title string, pool []domain.Question, limit, timeLimit int) (*domain.Quiz, error) {
	if len(pool) == 0 {
		return nil, fmt.Errorf("build quiz: empty question pool")
	}

	if limit <= 0 {
		limit = DefaultExamSize
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate quiz ID: %w", err)
	}

	qs := make([]domain.Question, len(pool))
	copy(qs, pool)
	rand.Shuffle(len(qs), func(i, j int) {
		qs[i], qs[j] = qs[j], qs[i]
	})

	if len(qs) > limit {
		qs = qs[:limit]
	}

	return &domain.Quiz{
		QuizID:    id.String(),
		Title:     title,
		Questions: qs,
		TimeLimit: timeLimit,
	}, nil
}

// Score counts the questions whose chosen answer matches the correct
// answer id. Unanswered questions never count as correct.
func Score(q *domain.Quiz, answers map[string]string) int {
	if q == nil {
		return 0
	}

	score := 0
	for _, question := range q.Questions {
		chosen, ok := answers[question.QuestionID]
		if ok && chosen == question.CorrectAnswerID {
			score++
		}
	}

	return score
}
