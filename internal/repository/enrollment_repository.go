package repository

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/util"
	"time"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) Create(e *model.Enrollment) error {
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now()
	}
	err := r.DB.Create(e).Error
	if isDuplicateKey(err) {
		return util.ErrAlreadyEnrolled
	}
	return err
}

func (r *EnrollmentRepository) Find(userID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNotEnrolled
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EnrollmentRepository) ListByUser(userID uint) ([]model.Enrollment, error) {
	var records []model.Enrollment
	err := r.DB.Where("user_id = ?", userID).Order("enrolled_at desc").Find(&records).Error
	return records, err
}

func (r *EnrollmentRepository) ListByCourse(courseID uint, page, limit int) ([]model.Enrollment, int64, error) {
	var total int64
	if err := r.DB.Model(&model.Enrollment{}).Where("course_id = ?", courseID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.Enrollment
	offset := (page - 1) * limit
	err := r.DB.Where("course_id = ?", courseID).
		Order("enrolled_at desc").Offset(offset).Limit(limit).
		Find(&records).Error
	return records, total, err
}

func (r *EnrollmentRepository) Save(e *model.Enrollment) error {
	return r.DB.Save(e).Error
}
