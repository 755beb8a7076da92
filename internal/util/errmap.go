package util

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ServiceError 将业务错误映射为 HTTP 响应。
// 未识别的错误按 500 处理并记录日志。
func ServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrQuizNotFound),
		errors.Is(err, ErrQuestionNotFound),
		errors.Is(err, ErrOptionNotFound),
		errors.Is(err, ErrAttemptNotFound),
		errors.Is(err, ErrLessonNotFound),
		errors.Is(err, ErrCertificateNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c)

	case errors.Is(err, ErrQuizNotPublished),
		errors.Is(err, ErrQuizNotAvailableYet),
		errors.Is(err, ErrQuizNoLongerAvailable),
		errors.Is(err, ErrAttemptsExhausted),
		errors.Is(err, ErrAttemptNotActive),
		errors.Is(err, ErrAttemptExpired),
		errors.Is(err, ErrInvalidQuestion),
		errors.Is(err, ErrInvalidOption),
		errors.Is(err, ErrInvalidOptionCount),
		errors.Is(err, ErrMissingRequiredAnswer),
		errors.Is(err, ErrInvalidAnswerFormat),
		errors.Is(err, ErrSingleChoiceCorrect),
		errors.Is(err, ErrNoCorrectOption),
		errors.Is(err, ErrTooFewOptions),
		errors.Is(err, ErrTooFewPairs),
		errors.Is(err, ErrMissingValidation),
		errors.Is(err, ErrBadValidationPattern),
		errors.Is(err, ErrNoActiveQuestions),
		errors.Is(err, ErrNotEnrolled):
		BadRequest(c, err.Error())

	case errors.Is(err, ErrQuizLocked),
		errors.Is(err, ErrAlreadyEnrolled),
		errors.Is(err, ErrAttemptConflict):
		Conflict(c, err.Error())

	case errors.Is(err, ErrPermissionDenied):
		Forbidden(c)

	default:
		_ = c.Error(err)
		Error(c, http.StatusInternalServerError, "Internal server error")
	}
}
