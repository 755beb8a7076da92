package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"time"
)

// 作答流程依赖的存储入口。生产环境由 repository 包的 gorm 实现承接，
// 测试里用内存实现替换。

type QuizReader interface {
	QuizWithQuestions(id uint) (*model.Quiz, error)
}

type AttemptStore interface {
	Create(a *model.Attempt) error
	CountByQuizUser(quizID, userID uint) (int64, error)
	NextAttemptNumber(quizID, userID uint) (int, error)
	FindByID(id uint) (*model.Attempt, error)
	MarkExpired(a *model.Attempt) error
	MarkCancelled(a *model.Attempt) error
	UpsertAnswer(ans *model.AttemptAnswer) error
	ListOverdue(now time.Time, limit int) ([]model.Attempt, error)
	Finalize(a *model.Attempt, answers []model.AttemptAnswer, cascade func(tx repository.CascadeTx) error) error
	ListByUser(userID uint, page, limit int) ([]model.Attempt, int64, error)
	ListByQuiz(quizID uint, page, limit int) ([]model.Attempt, int64, error)
	StatsByQuiz(quizID uint, passingScore float64) (*repository.QuizStats, error)
}

type LessonReader interface {
	LessonByID(id uint) (*model.Lesson, error)
}

type EnrollmentReader interface {
	Find(userID, courseID uint) (*model.Enrollment, error)
}

// Notifier 收卷后的站内通知出口，失败不影响主流程
type Notifier interface {
	Notify(userID uint, kind model.NotificationKind, payload interface{})
}
