package service

import (
	"lms_backend/internal/model"
	"math/rand"
	"time"
)

// 学生作答视图：隐藏正确答案、选项分值和判分规则

type OptionView struct {
	ID         uint   `json:"id"`
	OptionText string `json:"optionText"`
	OrderIndex int    `json:"orderIndex"`
}

type QuestionView struct {
	ID           uint               `json:"id"`
	QuestionType model.QuestionType `json:"questionType"`
	QuestionText string             `json:"questionText"`
	Points       float64            `json:"points"`
	IsRequired   bool               `json:"isRequired"`
	OrderIndex   int                `json:"orderIndex"`
	Options      []OptionView       `json:"options,omitempty"`
	// matching 题的左右两列，右列乱序呈现
	MatchLefts  []string `json:"matchLefts,omitempty"`
	MatchRights []string `json:"matchRights,omitempty"`
}

type AttemptView struct {
	Attempt          *model.Attempt `json:"attempt"`
	QuizTitle        string         `json:"quizTitle"`
	DurationMinutes  int            `json:"durationMinutes"`
	PassingScore     float64        `json:"passingScore"`
	RemainingSeconds int            `json:"remainingSeconds"`
	Questions        []QuestionView `json:"questions"`
}

// BuildAttemptView 组装一次作答的学生视图，题序按作答种子稳定打乱
func BuildAttemptView(quiz *model.Quiz, attempt *model.Attempt, now time.Time) *AttemptView {
	questions := ShuffledQuestions(quiz, attempt)
	views := make([]QuestionView, 0, len(questions))
	for i := range questions {
		views = append(views, buildQuestionView(&questions[i], attempt))
	}
	return &AttemptView{
		Attempt:          attempt,
		QuizTitle:        quiz.Title,
		DurationMinutes:  quiz.DurationMinutes,
		PassingScore:     quiz.PassingScore,
		RemainingSeconds: attempt.RemainingSeconds(now),
		Questions:        views,
	}
}

func buildQuestionView(q *model.Question, attempt *model.Attempt) QuestionView {
	view := QuestionView{
		ID:           q.ID,
		QuestionType: q.QuestionType,
		QuestionText: q.QuestionText,
		Points:       q.Points,
		IsRequired:   q.IsRequired,
		OrderIndex:   q.OrderIndex,
	}

	switch q.QuestionType {
	case model.QuestionSingle, model.QuestionMultiple, model.QuestionPoints:
		for _, o := range q.ActiveOptions() {
			view.Options = append(view.Options, OptionView{
				ID:         o.ID,
				OptionText: o.OptionText,
				OrderIndex: o.OrderIndex,
			})
		}
	case model.QuestionMatching:
		meta, err := q.ParseMetadata()
		if err != nil {
			break
		}
		for _, p := range meta.Pairs {
			view.MatchLefts = append(view.MatchLefts, p.Left)
			view.MatchRights = append(view.MatchRights, p.Right)
		}
		// 右列乱序，种子和题序打乱保持同一派生规则
		seed := int64(q.ID)<<32 | int64(attempt.UserID)<<8 | int64(attempt.AttemptNumber)
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(view.MatchRights), func(i, j int) {
			view.MatchRights[i], view.MatchRights[j] = view.MatchRights[j], view.MatchRights[i]
		})
	}
	return view
}
