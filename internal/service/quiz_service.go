package service

import (
	"encoding/json"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"math/rand"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// QuizService 测验出题与发布
type QuizService struct {
	Repo        *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
	CourseRepo  *repository.CourseRepository
}

func NewQuizService(repo *repository.QuizRepository, attemptRepo *repository.AttemptRepository, courseRepo *repository.CourseRepository) *QuizService {
	return &QuizService{Repo: repo, AttemptRepo: attemptRepo, CourseRepo: courseRepo}
}

// CreateQuizInput 创建/更新测验的入参
type CreateQuizInput struct {
	LessonID         uint       `json:"lessonId" binding:"required"`
	Title            string     `json:"title" binding:"required,max=200"`
	Description      string     `json:"description"`
	DurationMinutes  int        `json:"durationMinutes" binding:"min=0"`
	PassingScore     float64    `json:"passingScore" binding:"min=0,max=100"`
	AttemptsAllowed  int        `json:"attemptsAllowed" binding:"min=0"`
	ShuffleQuestions bool       `json:"shuffleQuestions"`
	AvailableFrom    *time.Time `json:"availableFrom"`
	AvailableUntil   *time.Time `json:"availableUntil"`
}

func (s *QuizService) CreateQuiz(creatorID uint, input *CreateQuizInput) (*model.Quiz, error) {
	if _, err := s.CourseRepo.LessonByID(input.LessonID); err != nil {
		return nil, err
	}

	quiz := &model.Quiz{
		LessonID:         input.LessonID,
		Title:            input.Title,
		Description:      input.Description,
		DurationMinutes:  input.DurationMinutes,
		PassingScore:     input.PassingScore,
		AttemptsAllowed:  input.AttemptsAllowed,
		ShuffleQuestions: input.ShuffleQuestions,
		AvailableFrom:    input.AvailableFrom,
		AvailableUntil:   input.AvailableUntil,
		CreatedBy:        creatorID,
	}
	if err := s.Repo.Create(quiz); err != nil {
		return nil, err
	}
	logger.Log.Info("quiz created", zap.Uint("quizId", quiz.ID), zap.Uint("lessonId", quiz.LessonID))
	return quiz, nil
}

// UpdateQuiz 已有作答记录后计分口径字段冻结，
// 避免同一份测验出现两种判分规则
func (s *QuizService) UpdateQuiz(id uint, input *CreateQuizInput) (*model.Quiz, error) {
	quiz, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, err
	}

	attempts, err := s.AttemptRepo.CountByQuiz(id)
	if err != nil {
		return nil, err
	}
	if attempts > 0 {
		if input.DurationMinutes != quiz.DurationMinutes ||
			input.PassingScore != quiz.PassingScore ||
			input.AttemptsAllowed != quiz.AttemptsAllowed {
			return nil, util.ErrQuizLocked
		}
	}

	quiz.Title = input.Title
	quiz.Description = input.Description
	quiz.DurationMinutes = input.DurationMinutes
	quiz.PassingScore = input.PassingScore
	quiz.AttemptsAllowed = input.AttemptsAllowed
	quiz.ShuffleQuestions = input.ShuffleQuestions
	quiz.AvailableFrom = input.AvailableFrom
	quiz.AvailableUntil = input.AvailableUntil
	if err := s.Repo.Save(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) DeleteQuiz(id uint) error {
	if _, err := s.Repo.FindByID(id); err != nil {
		return err
	}
	return s.Repo.Delete(id)
}

func (s *QuizService) GetQuiz(id uint) (*model.Quiz, error) {
	return s.Repo.QuizWithQuestions(id)
}

func (s *QuizService) ListByLesson(lessonID uint) ([]model.Quiz, error) {
	if _, err := s.CourseRepo.LessonByID(lessonID); err != nil {
		return nil, err
	}
	return s.Repo.ListByLesson(lessonID)
}

// Publish 发布前整卷校验：至少一道活跃题，且每道活跃题定义合法
func (s *QuizService) Publish(id uint) (*model.Quiz, error) {
	quiz, err := s.Repo.QuizWithQuestions(id)
	if err != nil {
		return nil, err
	}

	active := 0
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		if q.Status != model.QuestionActive {
			continue
		}
		active++
		if err := ValidateQuestionDefinition(q); err != nil {
			return nil, err
		}
	}
	if active == 0 {
		return nil, util.ErrNoActiveQuestions
	}

	quiz.IsPublished = true
	if err := s.Repo.Save(quiz); err != nil {
		return nil, err
	}
	logger.Log.Info("quiz published", zap.Uint("quizId", quiz.ID), zap.Int("activeQuestions", active))
	return quiz, nil
}

func (s *QuizService) Unpublish(id uint) (*model.Quiz, error) {
	quiz, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	quiz.IsPublished = false
	if err := s.Repo.Save(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// ValidateQuestionDefinition 题目定义的题型约束
func ValidateQuestionDefinition(q *model.Question) error {
	switch q.QuestionType {
	case model.QuestionSingle:
		options := q.ActiveOptions()
		if len(options) < 2 {
			return util.ErrTooFewOptions
		}
		correct := 0
		for _, o := range options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return util.ErrSingleChoiceCorrect
		}
	case model.QuestionMultiple:
		options := q.ActiveOptions()
		if len(options) < 2 {
			return util.ErrTooFewOptions
		}
		correct := 0
		for _, o := range options {
			if o.IsCorrect {
				correct++
			}
		}
		if correct == 0 {
			return util.ErrNoCorrectOption
		}
	case model.QuestionPoints:
		if len(q.ActiveOptions()) < 2 {
			return util.ErrTooFewOptions
		}
	case model.QuestionText:
		meta, err := q.ParseMetadata()
		if err != nil || meta.Validation == nil {
			return util.ErrMissingValidation
		}
		switch meta.Validation.Type {
		case "exact":
			if meta.Validation.Answer == "" {
				return util.ErrMissingValidation
			}
		case "contains":
			if len(meta.Validation.Required) == 0 {
				return util.ErrMissingValidation
			}
		case "regex":
			if meta.Validation.Pattern == "" {
				return util.ErrMissingValidation
			}
			if _, err := regexp.Compile(meta.Validation.Pattern); err != nil {
				return util.ErrBadValidationPattern
			}
		default:
			return util.ErrMissingValidation
		}
	case model.QuestionMatching:
		meta, err := q.ParseMetadata()
		if err != nil || len(meta.Pairs) < 2 {
			return util.ErrTooFewPairs
		}
	default:
		return util.ErrInvalidQuestion
	}
	return nil
}

// QuestionInput 出题入参，Metadata 按题型解释
type QuestionInput struct {
	QuestionType  model.QuestionType `json:"questionType" binding:"required"`
	QuestionText  string             `json:"questionText" binding:"required"`
	Points        float64            `json:"points" binding:"min=0"`
	PartialCredit bool               `json:"partialCredit"`
	OrderIndex    int                `json:"orderIndex"`
	IsRequired    *bool              `json:"isRequired"`
	Metadata      json.RawMessage    `json:"metadata"`
	Explanation   string             `json:"explanation"`
}

func (s *QuizService) AddQuestion(quizID uint, input *QuestionInput) (*model.Question, error) {
	if _, err := s.Repo.FindByID(quizID); err != nil {
		return nil, err
	}

	required := true
	if input.IsRequired != nil {
		required = *input.IsRequired
	}
	points := input.Points
	if points == 0 {
		points = 1
	}
	question := &model.Question{
		QuizID:        quizID,
		QuestionType:  input.QuestionType,
		QuestionText:  input.QuestionText,
		Points:        points,
		PartialCredit: input.PartialCredit,
		OrderIndex:    input.OrderIndex,
		IsRequired:    required,
		Status:        model.QuestionActive,
		Metadata:      input.Metadata,
		Explanation:   input.Explanation,
	}
	if err := s.Repo.CreateQuestion(question); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuizService) UpdateQuestion(questionID uint, input *QuestionInput) (*model.Question, error) {
	question, err := s.Repo.FindQuestion(questionID)
	if err != nil {
		return nil, err
	}

	question.QuestionType = input.QuestionType
	question.QuestionText = input.QuestionText
	if input.Points > 0 {
		question.Points = input.Points
	}
	question.PartialCredit = input.PartialCredit
	question.OrderIndex = input.OrderIndex
	if input.IsRequired != nil {
		question.IsRequired = *input.IsRequired
	}
	if input.Metadata != nil {
		question.Metadata = input.Metadata
	}
	question.Explanation = input.Explanation
	if err := s.Repo.SaveQuestion(question); err != nil {
		return nil, err
	}
	return question, nil
}

// RemoveQuestion 软删除，历史作答里的引用保持可追溯
func (s *QuizService) RemoveQuestion(questionID uint) error {
	question, err := s.Repo.FindQuestion(questionID)
	if err != nil {
		return err
	}
	question.Status = model.QuestionDeleted
	return s.Repo.SaveQuestion(question)
}

func (s *QuizService) ReorderQuestions(quizID uint, questionIDs []uint) error {
	if _, err := s.Repo.FindByID(quizID); err != nil {
		return err
	}
	return s.Repo.ReorderQuestions(quizID, questionIDs)
}

// OptionInput 选项入参
type OptionInput struct {
	OptionText string  `json:"optionText" binding:"required"`
	IsCorrect  bool    `json:"isCorrect"`
	Score      float64 `json:"score"`
	OrderIndex int     `json:"orderIndex"`
}

func (s *QuizService) AddOption(questionID uint, input *OptionInput) (*model.Option, error) {
	if _, err := s.Repo.FindQuestion(questionID); err != nil {
		return nil, err
	}
	option := &model.Option{
		QuestionID: questionID,
		OptionText: input.OptionText,
		IsCorrect:  input.IsCorrect,
		Score:      input.Score,
		OrderIndex: input.OrderIndex,
		Status:     model.QuestionActive,
	}
	if err := s.Repo.CreateOption(option); err != nil {
		return nil, err
	}
	return option, nil
}

func (s *QuizService) UpdateOption(optionID uint, input *OptionInput) (*model.Option, error) {
	option, err := s.Repo.FindOption(optionID)
	if err != nil {
		return nil, err
	}
	option.OptionText = input.OptionText
	option.IsCorrect = input.IsCorrect
	option.Score = input.Score
	option.OrderIndex = input.OrderIndex
	if err := s.Repo.SaveOption(option); err != nil {
		return nil, err
	}
	return option, nil
}

func (s *QuizService) RemoveOption(optionID uint) error {
	option, err := s.Repo.FindOption(optionID)
	if err != nil {
		return err
	}
	option.Status = model.QuestionDeleted
	return s.Repo.SaveOption(option)
}

// ShuffledQuestions 按作答纪录派生的种子打乱题序。
// 同一次作答每次读取得到同样的顺序，不同作答之间顺序不同。
func ShuffledQuestions(quiz *model.Quiz, attempt *model.Attempt) []model.Question {
	questions := make([]model.Question, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		if q.Status == model.QuestionActive {
			questions = append(questions, q)
		}
	}
	if !quiz.ShuffleQuestions {
		return questions
	}

	seed := int64(quiz.ID)<<32 | int64(attempt.UserID)<<8 | int64(attempt.AttemptNumber)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	return questions
}
