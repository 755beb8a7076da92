package service

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"time"
)

// CanAttempt 判断此刻能否开始新的作答。
// 依次检查发布状态、时间窗口、剩余次数，返回第一个不满足的原因。
func CanAttempt(quiz *model.Quiz, priorAttempts int64, now time.Time) error {
	if !quiz.IsPublished {
		return util.ErrQuizNotPublished
	}
	if quiz.AvailableFrom != nil && now.Before(*quiz.AvailableFrom) {
		return util.ErrQuizNotAvailableYet
	}
	if quiz.AvailableUntil != nil && now.After(*quiz.AvailableUntil) {
		return util.ErrQuizNoLongerAvailable
	}
	if quiz.AttemptsAllowed > 0 && priorAttempts >= int64(quiz.AttemptsAllowed) {
		return util.ErrAttemptsExhausted
	}
	return nil
}
