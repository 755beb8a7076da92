package util

import "errors"

var (
	// 引用类错误（404）
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrOptionNotFound      = errors.New("option not found")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrLessonNotFound      = errors.New("lesson not found")
	ErrCertificateNotFound = errors.New("certificate not found")

	// 开始测验失败（用户可自行纠正）
	ErrQuizNotPublished      = errors.New("quiz not published")
	ErrQuizNotAvailableYet   = errors.New("quiz not yet available")
	ErrQuizNoLongerAvailable = errors.New("quiz no longer available")
	ErrAttemptsExhausted     = errors.New("no attempts remaining for this quiz")

	// 作答/提交失败
	ErrAttemptNotActive      = errors.New("attempt is not in progress")
	ErrAttemptExpired        = errors.New("attempt has expired")
	ErrInvalidQuestion       = errors.New("question does not belong to this quiz")
	ErrInvalidOption         = errors.New("option does not belong to this question")
	ErrInvalidOptionCount    = errors.New("single choice accepts exactly one option")
	ErrMissingRequiredAnswer = errors.New("required question not answered")
	ErrInvalidAnswerFormat   = errors.New("answer format does not match question type")

	// 出题校验
	ErrQuizLocked           = errors.New("quiz has attempts; duration, passing score and attempts allowed are locked")
	ErrSingleChoiceCorrect  = errors.New("single choice questions must have exactly one correct option")
	ErrNoCorrectOption      = errors.New("multiple choice questions must have at least one correct option")
	ErrTooFewOptions        = errors.New("choice questions must have at least 2 active options")
	ErrTooFewPairs          = errors.New("matching questions must define at least 2 pairs")
	ErrMissingValidation    = errors.New("text questions must define a validation rule")
	ErrBadValidationPattern = errors.New("text validation regex does not compile")
	ErrNoActiveQuestions    = errors.New("cannot publish quiz without any active questions")

	// 并发冲突：内部重试一次后仍失败才对外暴露
	ErrAttemptConflict = errors.New("attempt operation conflicted, please retry")

	ErrUserNotFound     = errors.New("用户不存在")
	ErrEmailRegistered  = errors.New("该邮箱已被注册")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotEnrolled      = errors.New("user is not enrolled in this course")
	ErrAlreadyEnrolled  = errors.New("user is already enrolled in this course")
)
