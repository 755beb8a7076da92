package repository

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// isDuplicateKey MySQL 1062 或 gorm 的统一重复键错误
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1062
}

// Create 依赖 (quiz_id, user_id, attempt_number) 唯一索引关闭并发开考竞态，
// 冲突时返回 util.ErrAttemptConflict 由上层重试
func (r *AttemptRepository) Create(a *model.Attempt) error {
	err := r.DB.Create(a).Error
	if isDuplicateKey(err) {
		return util.ErrAttemptConflict
	}
	return err
}

func (r *AttemptRepository) CountByQuizUser(quizID, userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Count(&count).Error
	return count, err
}

func (r *AttemptRepository) CountByQuiz(quizID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).Where("quiz_id = ?", quizID).Count(&count).Error
	return count, err
}

func (r *AttemptRepository) NextAttemptNumber(quizID, userID uint) (int, error) {
	var max int
	err := r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&max).Error
	return max + 1, err
}

func (r *AttemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.Preload("Answers").First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	return &a, err
}

// MarkExpired 仅允许 in_progress -> expired，幂等
func (r *AttemptRepository) MarkExpired(a *model.Attempt) error {
	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND status = ?", a.ID, model.AttemptInProgress).
		Update("status", model.AttemptExpired)
	if res.Error != nil {
		return res.Error
	}
	a.Status = model.AttemptExpired
	return nil
}

// MarkCancelled 仅允许 in_progress -> cancelled
func (r *AttemptRepository) MarkCancelled(a *model.Attempt) error {
	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND status = ?", a.ID, model.AttemptInProgress).
		Update("status", model.AttemptCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrAttemptNotActive
	}
	a.Status = model.AttemptCancelled
	return nil
}

// UpsertAnswer 以 (attempt_id, question_id) 唯一索引实现按题覆盖写
func (r *AttemptRepository) UpsertAnswer(ans *model.AttemptAnswer) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answer", "points_awarded", "submitted_at", "updated_at"}),
	}).Create(ans).Error
}

// ListOverdue 找出待收卷的超时作答。除了仍是 in_progress 的超时纪录，
// 还要捞出读取路径惰性标记成 expired 但尚未判分(completed_at 为空)的纪录，
// 两类都交给 sweep 统一判分并执行级联。
func (r *AttemptRepository) ListOverdue(now time.Time, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Preload("Answers").
		Where("(status = ? AND expires_at IS NOT NULL AND expires_at < ?) OR (status = ? AND completed_at IS NULL)",
			model.AttemptInProgress, now, model.AttemptExpired).
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// Finalize 在单个事务里完成收卷：带乐观版本校验的状态落库、逐题得分落库、
// 以及 Progress/Enrollment/Certificate 级联。版本不匹配返回 util.ErrAttemptConflict，
// 任何级联失败整体回滚，保证 completed 必然伴随一致的级联状态。
func (r *AttemptRepository) Finalize(a *model.Attempt, answers []model.AttemptAnswer, cascade func(tx CascadeTx) error) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Attempt{}).
			Where("id = ? AND version = ? AND status IN ?", a.ID, a.Version,
				[]model.AttemptStatus{model.AttemptInProgress, model.AttemptExpired}).
			Updates(map[string]interface{}{
				"status":        a.Status,
				"completed_at":  a.CompletedAt,
				"earned_points": a.EarnedPoints,
				"total_points":  a.TotalPoints,
				"score":         a.Score,
				"time_taken":    a.TimeTaken,
				"version":       a.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrAttemptConflict
		}
		a.Version++

		for i := range answers {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"answer", "points_awarded", "submitted_at", "updated_at"}),
			}).Create(&answers[i]).Error; err != nil {
				return err
			}
		}

		if cascade != nil {
			return cascade(&gormCascadeTx{tx: tx})
		}
		return nil
	})
}

func (r *AttemptRepository) ListByUser(userID uint, page, limit int) ([]model.Attempt, int64, error) {
	var total int64
	query := r.DB.Model(&model.Attempt{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.Attempt
	offset := (page - 1) * limit
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at desc").Offset(offset).Limit(limit).
		Find(&attempts).Error
	return attempts, total, err
}

func (r *AttemptRepository) ListByQuiz(quizID uint, page, limit int) ([]model.Attempt, int64, error) {
	var total int64
	query := r.DB.Model(&model.Attempt{}).Where("quiz_id = ?", quizID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.Attempt
	offset := (page - 1) * limit
	err := r.DB.Preload("Answers").Where("quiz_id = ?", quizID).
		Order("created_at desc").Offset(offset).Limit(limit).
		Find(&attempts).Error
	return attempts, total, err
}

// QuizStats 单个测验的聚合统计
type QuizStats struct {
	TotalAttempts     int64   `json:"totalAttempts"`
	CompletedAttempts int64   `json:"completedAttempts"`
	AverageScore      float64 `json:"averageScore"`
	PassedAttempts    int64   `json:"passedAttempts"`
	PassRate          float64 `json:"passRate"`
}

func (r *AttemptRepository) StatsByQuiz(quizID uint, passingScore float64) (*QuizStats, error) {
	stats := &QuizStats{}

	if err := r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ?", quizID).
		Count(&stats.TotalAttempts).Error; err != nil {
		return nil, err
	}

	completed := r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ? AND status = ?", quizID, model.AttemptCompleted)
	if err := completed.Count(&stats.CompletedAttempts).Error; err != nil {
		return nil, err
	}

	if stats.CompletedAttempts > 0 {
		if err := r.DB.Model(&model.Attempt{}).
			Where("quiz_id = ? AND status = ?", quizID, model.AttemptCompleted).
			Select("COALESCE(AVG(score), 0)").
			Scan(&stats.AverageScore).Error; err != nil {
			return nil, err
		}
		if err := r.DB.Model(&model.Attempt{}).
			Where("quiz_id = ? AND status = ? AND score >= ?", quizID, model.AttemptCompleted, passingScore).
			Count(&stats.PassedAttempts).Error; err != nil {
			return nil, err
		}
		stats.PassRate = float64(stats.PassedAttempts) / float64(stats.CompletedAttempts) * 100
	}

	return stats, nil
}
