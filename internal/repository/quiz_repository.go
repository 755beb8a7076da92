package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lms_backend/pkg/logger"
)

type QuizRepository struct {
	DB       *gorm.DB
	Redis    *redis.Client
	CacheTTL time.Duration
}

func NewQuizRepository(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration) *QuizRepository {
	return &QuizRepository{DB: db, Redis: rdb, CacheTTL: cacheTTL}
}

func quizCacheKey(id uint) string {
	return fmt.Sprintf("quiz:def:%d", id)
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) Save(quiz *model.Quiz) error {
	if err := r.DB.Save(quiz).Error; err != nil {
		return err
	}
	r.InvalidateQuiz(quiz.ID)
	return nil
}

func (r *QuizRepository) Delete(id uint) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var questionIDs []uint
		if err := tx.Model(&model.Question{}).Where("quiz_id = ?", id).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.Option{}).Error; err != nil {
				return err
			}
			if err := tx.Where("quiz_id = ?", id).Delete(&model.Question{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Quiz{}, id).Error
	})
	if err != nil {
		return err
	}
	r.InvalidateQuiz(id)
	return nil
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.First(&quiz, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	return &quiz, err
}

// QuizWithQuestions 返回测验及其活跃题目与活跃选项，带 redis 读缓存
func (r *QuizRepository) QuizWithQuestions(id uint) (*model.Quiz, error) {
	if cached := r.CachedQuiz(id); cached != nil {
		return cached, nil
	}

	var quiz model.Quiz
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", model.QuestionActive).Order("order_index asc, id asc")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Where("status = ?", model.QuestionActive).Order("order_index asc, id asc")
		}).
		First(&quiz, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}

	r.CacheQuiz(&quiz)
	return &quiz, nil
}

// CachedQuiz 从 redis 读取测验定义，未命中或反序列化失败返回 nil
func (r *QuizRepository) CachedQuiz(id uint) *model.Quiz {
	if r.Redis == nil {
		return nil
	}
	ctx := context.Background()
	data, err := r.Redis.Get(ctx, quizCacheKey(id)).Bytes()
	if err != nil {
		return nil
	}
	var quiz model.Quiz
	if err := json.Unmarshal(data, &quiz); err != nil {
		return nil
	}
	return &quiz
}

func (r *QuizRepository) CacheQuiz(quiz *model.Quiz) {
	if r.Redis == nil || r.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(quiz)
	if err != nil {
		return
	}
	ctx := context.Background()
	if err := r.Redis.Set(ctx, quizCacheKey(quiz.ID), data, r.CacheTTL).Err(); err != nil {
		logger.Log.Warn("quiz cache set failed", zap.Uint("quizId", quiz.ID), zap.Error(err))
	}
}

func (r *QuizRepository) InvalidateQuiz(id uint) {
	if r.Redis == nil {
		return
	}
	ctx := context.Background()
	if err := r.Redis.Del(ctx, quizCacheKey(id)).Err(); err != nil {
		logger.Log.Warn("quiz cache invalidate failed", zap.Uint("quizId", id), zap.Error(err))
	}
}

func (r *QuizRepository) ListByLesson(lessonID uint) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.Where("lesson_id = ?", lessonID).Order("created_at desc").Find(&quizzes).Error
	return quizzes, err
}

func (r *QuizRepository) CreateQuestion(q *model.Question) error {
	if err := r.DB.Create(q).Error; err != nil {
		return err
	}
	return r.RecomputeTotalPoints(q.QuizID)
}

func (r *QuizRepository) SaveQuestion(q *model.Question) error {
	if err := r.DB.Save(q).Error; err != nil {
		return err
	}
	return r.RecomputeTotalPoints(q.QuizID)
}

func (r *QuizRepository) FindQuestion(id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.Preload("Options").First(&q, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	return &q, err
}

func (r *QuizRepository) ListQuestions(quizID uint, onlyActive bool) ([]model.Question, error) {
	query := r.DB.Preload("Options").Where("quiz_id = ?", quizID)
	if onlyActive {
		query = query.Where("status = ?", model.QuestionActive)
	} else {
		query = query.Where("status <> ?", model.QuestionDeleted)
	}
	var qs []model.Question
	err := query.Order("order_index asc, id asc").Find(&qs).Error
	return qs, err
}

func (r *QuizRepository) CreateOption(o *model.Option) error {
	if err := r.DB.Create(o).Error; err != nil {
		return err
	}
	r.invalidateQuizOfQuestion(o.QuestionID)
	return nil
}

func (r *QuizRepository) SaveOption(o *model.Option) error {
	if err := r.DB.Save(o).Error; err != nil {
		return err
	}
	r.invalidateQuizOfQuestion(o.QuestionID)
	return nil
}

// invalidateQuizOfQuestion 选项挂在题目下，缓存键挂在测验上，
// 选项写入后按题目反查测验 id 再失效
func (r *QuizRepository) invalidateQuizOfQuestion(questionID uint) {
	var quizID uint
	err := r.DB.Model(&model.Question{}).
		Select("quiz_id").
		Where("id = ?", questionID).
		Scan(&quizID).Error
	if err != nil {
		logger.Log.Warn("quiz cache invalidate lookup failed",
			zap.Uint("questionId", questionID), zap.Error(err))
		return
	}
	if quizID != 0 {
		r.InvalidateQuiz(quizID)
	}
}

func (r *QuizRepository) FindOption(id uint) (*model.Option, error) {
	var o model.Option
	err := r.DB.First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrOptionNotFound
	}
	return &o, err
}

// RecomputeTotalPoints 活跃题目分值之和写回 quiz.total_points
func (r *QuizRepository) RecomputeTotalPoints(quizID uint) error {
	var total float64
	err := r.DB.Model(&model.Question{}).
		Where("quiz_id = ? AND status = ?", quizID, model.QuestionActive).
		Select("COALESCE(SUM(points), 0)").
		Scan(&total).Error
	if err != nil {
		return err
	}
	if err := r.DB.Model(&model.Quiz{}).Where("id = ?", quizID).
		Update("total_points", total).Error; err != nil {
		return err
	}
	r.InvalidateQuiz(quizID)
	return nil
}

// ReorderQuestions 按给定顺序重排题目
func (r *QuizRepository) ReorderQuestions(quizID uint, questionIDs []uint) error {
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		for idx, qid := range questionIDs {
			res := tx.Model(&model.Question{}).
				Where("id = ? AND quiz_id = ?", qid, quizID).
				Update("order_index", idx)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return util.ErrQuestionNotFound
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.InvalidateQuiz(quizID)
	return nil
}
