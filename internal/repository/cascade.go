package repository

import (
	"errors"
	"lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CascadeTx 收卷事务内可见的级联写入口。Progress、Enrollment、Certificate
// 的联动更新全部通过它执行，和 Attempt 状态落库共享同一个事务。
type CascadeTx interface {
	FindProgress(userID, courseID, lessonID uint) (*model.Progress, error)
	SaveProgress(p *model.Progress) error
	CountCompletedLessons(userID, courseID uint) (int64, error)
	CountLessons(courseID uint) (int64, error)
	FindEnrollment(userID, courseID uint) (*model.Enrollment, error)
	SaveEnrollment(e *model.Enrollment) error
	FindOrCreateCertificate(cert *model.Certificate) (created bool, err error)
}

type gormCascadeTx struct {
	tx *gorm.DB
}

func (g *gormCascadeTx) FindProgress(userID, courseID, lessonID uint) (*model.Progress, error) {
	var p model.Progress
	err := g.tx.Where("user_id = ? AND course_id = ? AND lesson_id = ?", userID, courseID, lessonID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *gormCascadeTx) SaveProgress(p *model.Progress) error {
	return g.tx.Save(p).Error
}

func (g *gormCascadeTx) CountCompletedLessons(userID, courseID uint) (int64, error) {
	var count int64
	err := g.tx.Model(&model.Progress{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, model.ProgressCompleted).
		Count(&count).Error
	return count, err
}

func (g *gormCascadeTx) CountLessons(courseID uint) (int64, error) {
	var count int64
	err := g.tx.Model(&model.Lesson{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}

func (g *gormCascadeTx) FindEnrollment(userID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := g.tx.Where("user_id = ? AND course_id = ?", userID, courseID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (g *gormCascadeTx) SaveEnrollment(e *model.Enrollment) error {
	return g.tx.Save(e).Error
}

// FindOrCreateCertificate 以 (user_id, course_id) 唯一索引保证同课程只发一张证书，
// 并发下重复键按已存在处理
func (g *gormCascadeTx) FindOrCreateCertificate(cert *model.Certificate) (bool, error) {
	var existing model.Certificate
	err := g.tx.Where("user_id = ? AND course_id = ?", cert.UserID, cert.CourseID).First(&existing).Error
	if err == nil {
		*cert = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if err := g.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(cert).Error; err != nil {
		if isDuplicateKey(err) {
			if ferr := g.tx.Where("user_id = ? AND course_id = ?", cert.UserID, cert.CourseID).
				First(&existing).Error; ferr == nil {
				*cert = existing
				return false, nil
			}
		}
		return false, err
	}
	if cert.ID == 0 {
		// DoNothing 命中时没有回填主键，按并发创建成功处理
		if ferr := g.tx.Where("user_id = ? AND course_id = ?", cert.UserID, cert.CourseID).
			First(&existing).Error; ferr == nil {
			*cert = existing
			return false, nil
		}
	}
	return true, nil
}
