package quiz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimaru/luyenthi/internal/domain"
	"github.com/vimaru/luyenthi/internal/quiz"
)

func makePool(n int) []domain.Question {
	pool := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		pool = append(pool, domain.Question{
			QuestionID:      "q" + id,
			Text:            "question " + id,
			CorrectAnswerID: "a" + id,
		})
	}
	return pool
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("truncates to limit and keeps question identity", func(t *testing.T) {
		pool := makePool(10)

		q, err := quiz.Build("test", pool, 5, 600)
		require.NoError(t, err)

		require.Len(t, q.Questions, 5)
		assert.Equal(t, 600, q.TimeLimit)
		assert.NotEmpty(t, q.QuizID)

		ids := make(map[string]struct{})
		for _, p := range pool {
			ids[p.QuestionID] = struct{}{}
		}
		for _, got := range q.Questions {
			_, ok := ids[got.QuestionID]
			assert.True(t, ok, "built quiz contains a question not in the pool: %s", got.QuestionID)
		}
	})

	t.Run("pool smaller than limit keeps every question", func(t *testing.T) {
		q, err := quiz.Build("test", makePool(3), 30, 0)
		require.NoError(t, err)
		require.Len(t, q.Questions, 3)
	})

	t.Run("empty pool is an error", func(t *testing.T) {
		_, err := quiz.Build("test", nil, 30, 0)
		require.Error(t, err)
	})

	t.Run("does not mutate the caller's pool", func(t *testing.T) {
		pool := makePool(10)
		first := pool[0].QuestionID

		_, err := quiz.Build("test", pool, 5, 0)
		require.NoError(t, err)
		assert.Equal(t, first, pool[0].QuestionID)
	})
}

func TestScore(t *testing.T) {
	t.Parallel()

	q := &domain.Quiz{
		Questions: []domain.Question{
			{QuestionID: "q1", CorrectAnswerID: "a1"},
			{QuestionID: "q2", CorrectAnswerID: "a2"},
			{QuestionID: "q3", CorrectAnswerID: "a3"},
		},
	}

	tests := map[string]struct {
		answers map[string]string
		want    int
	}{
		"two correct one omitted": {
			answers: map[string]string{"q1": "a1", "q2": "a2"},
			want:    2,
		},
		"all correct": {
			answers: map[string]string{"q1": "a1", "q2": "a2", "q3": "a3"},
			want:    3,
		},
		"wrong answers count zero": {
			answers: map[string]string{"q1": "a2", "q2": "a1", "q3": "a1"},
			want:    0,
		},
		"no answers": {
			answers: nil,
			want:    0,
		},
		"answer for unknown question is ignored": {
			answers: map[string]string{"q9": "a9", "q1": "a1"},
			want:    1,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, quiz.Score(q, tt.answers))
		})
	}
}

func TestScore_NilQuiz(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, quiz.Score(nil, map[string]string{"q1": "a1"}))
}
