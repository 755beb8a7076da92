package model

import (
	"encoding/json"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptExpired    AttemptStatus = "expired"
	AttemptCancelled  AttemptStatus = "cancelled"
)

// Terminal 终止态不可再转换
func (s AttemptStatus) Terminal() bool {
	return s == AttemptCompleted || s == AttemptExpired || s == AttemptCancelled
}

// swagger:model Attempt
type Attempt struct {
	BaseModel
	QuizID        uint          `gorm:"uniqueIndex:uq_attempts_quiz_user_number;type:bigint unsigned;not null" json:"quizId"`
	UserID        uint          `gorm:"uniqueIndex:uq_attempts_quiz_user_number;index;type:bigint unsigned;not null" json:"userId"`
	AttemptNumber int           `gorm:"uniqueIndex:uq_attempts_quiz_user_number;not null" json:"attemptNumber"` // 1 起，同一 (quiz,user) 单调递增
	Status        AttemptStatus `gorm:"size:20;index;default:'in_progress'" json:"status"`
	StartedAt     time.Time     `gorm:"not null" json:"startedAt"`
	ExpiresAt     *time.Time    `gorm:"index" json:"expiresAt,omitempty"` // StartedAt + 测验时长；不限时为空
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
	EarnedPoints  float64       `json:"earnedPoints"`
	TotalPoints   float64       `json:"totalPoints"`
	Score         float64       `json:"score"`              // 最终百分比
	TimeTaken     int           `json:"timeTaken"`          // 秒
	Version       uint          `gorm:"default:0" json:"-"` // finalize 的乐观锁

	Answers []AttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// Overdue 是否已超过截止时间
func (a *Attempt) Overdue(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// RemainingSeconds 剩余作答秒数，不限时或已结束返回 0
func (a *Attempt) RemainingSeconds(now time.Time) int {
	if a.Status != AttemptInProgress || a.ExpiresAt == nil {
		return 0
	}
	remaining := int(a.ExpiresAt.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// swagger:model AttemptAnswer
type AttemptAnswer struct {
	BaseModel
	AttemptID     uint            `gorm:"uniqueIndex:uq_attempt_answers_attempt_question;type:bigint unsigned;not null" json:"attemptId"`
	QuestionID    uint            `gorm:"uniqueIndex:uq_attempt_answers_attempt_question;type:bigint unsigned;not null" json:"questionId"`
	Answer        json.RawMessage `gorm:"type:json" json:"answer"` // 原始提交值，按题型解释
	PointsAwarded float64         `json:"pointsAwarded"`
	SubmittedAt   time.Time       `json:"submittedAt"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}
