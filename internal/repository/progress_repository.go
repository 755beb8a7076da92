package repository

import (
	"errors"
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) Find(userID, courseID, lessonID uint) (*model.Progress, error) {
	var p model.Progress
	err := r.DB.Where("user_id = ? AND course_id = ? AND lesson_id = ?", userID, courseID, lessonID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProgressRepository) ListByCourse(userID, courseID uint) ([]model.Progress, error) {
	var records []model.Progress
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("lesson_id asc").
		Find(&records).Error
	return records, err
}

func (r *ProgressRepository) ListByUser(userID uint) ([]model.Progress, error) {
	var records []model.Progress
	err := r.DB.Where("user_id = ?", userID).Order("course_id asc, lesson_id asc").Find(&records).Error
	return records, err
}

func (r *ProgressRepository) Save(p *model.Progress) error {
	return r.DB.Save(p).Error
}

func (r *ProgressRepository) CountCompleted(userID, courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Progress{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.ProgressCompleted).
		Count(&count).Error
	return count, err
}
