package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

// AttemptService 作答生命周期：开考、逐题作答、交卷、过期与取消
type AttemptService struct {
	Attempts    AttemptStore
	Quizzes     QuizReader
	Lessons     LessonReader
	Enrollments EnrollmentReader
	Notifier    Notifier
	Scorer      *Scorer
	Cascade     *ProgressCascade

	// Now 可注入的时钟，零值走 time.Now
	Now func() time.Time
}

func NewAttemptService(attempts AttemptStore, quizzes QuizReader, lessons LessonReader,
	enrollments EnrollmentReader, notifier Notifier, scorer *Scorer) *AttemptService {
	return &AttemptService{
		Attempts:    attempts,
		Quizzes:     quizzes,
		Lessons:     lessons,
		Enrollments: enrollments,
		Notifier:    notifier,
		Scorer:      scorer,
		Cascade:     &ProgressCascade{},
	}
}

func (s *AttemptService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// StartAttempt 开始一次新的作答。
// 选课校验、可用性校验通过后写入新纪录，attempt_number 唯一索引
// 兜底并发重复开考，冲突时重算序号再试一次。
func (s *AttemptService) StartAttempt(userID, quizID uint) (*model.Attempt, *model.Quiz, error) {
	quiz, err := s.Quizzes.QuizWithQuestions(quizID)
	if err != nil {
		return nil, nil, err
	}
	lesson, err := s.Lessons.LessonByID(quiz.LessonID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := s.Enrollments.Find(userID, lesson.CourseID); err != nil {
		return nil, nil, err
	}

	now := s.now()
	prior, err := s.Attempts.CountByQuizUser(quizID, userID)
	if err != nil {
		return nil, nil, err
	}
	if err := CanAttempt(quiz, prior, now); err != nil {
		return nil, nil, err
	}

	attempt, err := s.createAttempt(quiz, userID, now)
	if errors.Is(err, util.ErrAttemptConflict) {
		// 并发开考撞了唯一索引，重算次数确认还有余量后再试一次
		prior, err = s.Attempts.CountByQuizUser(quizID, userID)
		if err != nil {
			return nil, nil, err
		}
		if err = CanAttempt(quiz, prior, now); err != nil {
			return nil, nil, err
		}
		attempt, err = s.createAttempt(quiz, userID, now)
	}
	if err != nil {
		return nil, nil, err
	}

	monitoring.AttemptsStarted.Inc()
	logger.Log.Info("attempt started",
		zap.Uint("quizId", quizID),
		zap.Uint("userId", userID),
		zap.Int("attemptNumber", attempt.AttemptNumber))
	return attempt, quiz, nil
}

func (s *AttemptService) createAttempt(quiz *model.Quiz, userID uint, now time.Time) (*model.Attempt, error) {
	number, err := s.Attempts.NextAttemptNumber(quiz.ID, userID)
	if err != nil {
		return nil, err
	}
	attempt := &model.Attempt{
		QuizID:        quiz.ID,
		UserID:        userID,
		AttemptNumber: number,
		Status:        model.AttemptInProgress,
		StartedAt:     now,
	}
	if quiz.DurationMinutes > 0 {
		expires := now.Add(time.Duration(quiz.DurationMinutes) * time.Minute)
		attempt.ExpiresAt = &expires
	}
	if err := s.Attempts.Create(attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// RecordAnswer 记录或覆盖一题的作答。同一题后写覆盖先写，
// 截止时间已过则就地标记过期并拒绝。
func (s *AttemptService) RecordAnswer(userID, attemptID, questionID uint, raw json.RawMessage) (*model.Attempt, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptNotActive
	}

	now := s.now()
	if attempt.Overdue(now) {
		if err := s.Attempts.MarkExpired(attempt); err != nil {
			return nil, err
		}
		return nil, util.ErrAttemptExpired
	}

	quiz, err := s.Quizzes.QuizWithQuestions(attempt.QuizID)
	if err != nil {
		return nil, err
	}
	question := findQuestion(quiz, questionID)
	if question == nil {
		return nil, util.ErrInvalidQuestion
	}
	if err := s.Scorer.ValidateAnswer(question, raw); err != nil {
		return nil, err
	}

	// 得分在收卷时统一计算，作答阶段只留痕
	err = s.Attempts.UpsertAnswer(&model.AttemptAnswer{
		AttemptID:   attempt.ID,
		QuestionID:  questionID,
		Answer:      raw,
		SubmittedAt: now,
	})
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// SubmitAttempt 交卷。必答题未作答拒绝交卷，收卷后幂等。
func (s *AttemptService) SubmitAttempt(userID, attemptID uint) (*model.Attempt, *CascadeResult, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.UserID != userID {
		return nil, nil, util.ErrPermissionDenied
	}
	return s.finalize(attempt, false)
}

// CancelAttempt 放弃本次作答，不计分、不级联，已用次数不退还
func (s *AttemptService) CancelAttempt(userID, attemptID uint) (*model.Attempt, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if err := s.Attempts.MarkCancelled(attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

// GetAttempt 本人或教学角色可见
func (s *AttemptService) GetAttempt(userID uint, isStaff bool, attemptID uint) (*model.Attempt, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID && !isStaff {
		return nil, util.ErrPermissionDenied
	}

	// 读取时惰性过期，避免前端一直显示进行中
	if attempt.Status == model.AttemptInProgress && attempt.Overdue(s.now()) {
		if err := s.Attempts.MarkExpired(attempt); err != nil {
			return nil, err
		}
	}
	return attempt, nil
}

func (s *AttemptService) ListUserAttempts(userID uint, page, limit int) ([]model.Attempt, int64, error) {
	return s.Attempts.ListByUser(userID, page, limit)
}

func (s *AttemptService) ListQuizAttempts(quizID uint, page, limit int) ([]model.Attempt, int64, error) {
	return s.Attempts.ListByQuiz(quizID, page, limit)
}

func (s *AttemptService) QuizStats(quizID uint) (*repository.QuizStats, error) {
	quiz, err := s.Quizzes.QuizWithQuestions(quizID)
	if err != nil {
		return nil, err
	}
	return s.Attempts.StatsByQuiz(quizID, quiz.PassingScore)
}

// SweepExpired 批量收卷已超时的作答。过期收卷不做必答题校验，
// 已答的题照常判分，级联照常执行。
func (s *AttemptService) SweepExpired(limit int) int {
	overdue, err := s.Attempts.ListOverdue(s.now(), limit)
	if err != nil {
		logger.Log.Error("expiry sweep query failed", zap.Error(err))
		return 0
	}

	swept := 0
	for i := range overdue {
		if _, _, err := s.finalize(&overdue[i], true); err != nil {
			logger.Log.Warn("expiry sweep finalize failed",
				zap.Uint("attemptId", overdue[i].ID), zap.Error(err))
			continue
		}
		swept++
	}
	if swept > 0 {
		logger.Log.Info("expiry sweep finished", zap.Int("swept", swept))
	}
	return swept
}

// finalize 统一收卷路径。asExpired 表示由超时触发，
// 最终状态留 expired 且跳过必答题校验，其余与正常交卷一致。
func (s *AttemptService) finalize(attempt *model.Attempt, asExpired bool) (*model.Attempt, *CascadeResult, error) {
	attempt, result, err := s.finalizeOnce(attempt, asExpired)
	if errors.Is(err, util.ErrAttemptConflict) {
		// 版本冲突说明有并发收卷，重读后重试一次
		fresh, ferr := s.Attempts.FindByID(attempt.ID)
		if ferr != nil {
			return nil, nil, ferr
		}
		return s.finalizeOnce(fresh, asExpired)
	}
	return attempt, result, err
}

func (s *AttemptService) finalizeOnce(attempt *model.Attempt, asExpired bool) (*model.Attempt, *CascadeResult, error) {
	// 幂等：已经收过卷直接返回当时的结果
	if attempt.Status == model.AttemptCompleted {
		return attempt, nil, nil
	}
	if attempt.Status == model.AttemptExpired && attempt.CompletedAt != nil {
		return attempt, nil, nil
	}
	if attempt.Status == model.AttemptCancelled {
		return attempt, nil, util.ErrAttemptNotActive
	}

	now := s.now()
	if attempt.Overdue(now) {
		asExpired = true
	}

	quiz, err := s.Quizzes.QuizWithQuestions(attempt.QuizID)
	if err != nil {
		return nil, nil, err
	}
	lesson, err := s.Lessons.LessonByID(quiz.LessonID)
	if err != nil {
		return nil, nil, err
	}

	submitted := make(map[uint]json.RawMessage, len(attempt.Answers))
	for _, a := range attempt.Answers {
		submitted[a.QuestionID] = a.Answer
	}

	if !asExpired {
		for i := range quiz.Questions {
			q := &quiz.Questions[i]
			if q.Status == model.QuestionActive && q.IsRequired {
				if _, ok := submitted[q.ID]; !ok {
					return nil, nil, util.ErrMissingRequiredAnswer
				}
			}
		}
	}

	agg := s.Scorer.Aggregate(quiz.Questions, submitted)

	completedAt := now
	attempt.CompletedAt = &completedAt
	attempt.EarnedPoints = agg.EarnedPoints
	attempt.TotalPoints = agg.TotalPoints
	attempt.Score = agg.Score
	attempt.TimeTaken = int(now.Sub(attempt.StartedAt).Seconds())
	if asExpired {
		attempt.Status = model.AttemptExpired
	} else {
		attempt.Status = model.AttemptCompleted
	}

	answers := make([]model.AttemptAnswer, 0, len(attempt.Answers))
	for _, a := range attempt.Answers {
		a.PointsAwarded = agg.PerQuestion[a.QuestionID]
		answers = append(answers, a)
	}

	passed := attempt.Score >= quiz.PassingScore
	var cascadeResult *CascadeResult
	err = s.Attempts.Finalize(attempt, answers, func(tx repository.CascadeTx) error {
		var cerr error
		cascadeResult, cerr = s.Cascade.Apply(tx, attempt.UserID, lesson.CourseID, quiz.LessonID, attempt.Score, passed, now)
		return cerr
	})
	if err != nil {
		return attempt, nil, err
	}

	s.afterFinalize(attempt, quiz, passed, cascadeResult)
	return attempt, cascadeResult, nil
}

// afterFinalize 事务提交后的指标与通知，失败只记日志
func (s *AttemptService) afterFinalize(attempt *model.Attempt, quiz *model.Quiz, passed bool, result *CascadeResult) {
	monitoring.AttemptsFinalized.WithLabelValues(string(attempt.Status), fmt.Sprintf("%t", passed)).Inc()
	if result != nil && result.CertificateIssued {
		monitoring.CertificatesIssued.Inc()
	}

	if s.Notifier == nil {
		return
	}
	kind := model.NotifyQuizFailed
	if passed {
		kind = model.NotifyQuizPassed
	}
	s.Notifier.Notify(attempt.UserID, kind, map[string]interface{}{
		"quizId":    quiz.ID,
		"quizTitle": quiz.Title,
		"attemptId": attempt.ID,
		"score":     attempt.Score,
	})
	if result != nil && result.CertificateIssued && result.Certificate != nil {
		s.Notifier.Notify(attempt.UserID, model.NotifyCertificateIssued, map[string]interface{}{
			"courseId":          result.Certificate.CourseID,
			"certificateNumber": result.Certificate.CertificateNumber,
		})
	}
}

func findQuestion(quiz *model.Quiz, questionID uint) *model.Question {
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if q.ID == questionID && q.Status == model.QuestionActive {
			return q
		}
	}
	return nil
}
