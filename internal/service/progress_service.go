package service

import (
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ProgressService 课时进度查询与收卷级联
type ProgressService struct {
	ProgressRepo *repository.ProgressRepository
	CourseRepo   *repository.CourseRepository
}

func NewProgressService(progressRepo *repository.ProgressRepository, courseRepo *repository.CourseRepository) *ProgressService {
	return &ProgressService{ProgressRepo: progressRepo, CourseRepo: courseRepo}
}

// CourseProgress 单门课程的进度概览
type CourseProgress struct {
	CourseID         uint             `json:"courseId"`
	TotalLessons     int64            `json:"totalLessons"`
	CompletedLessons int64            `json:"completedLessons"`
	Percent          float64          `json:"percent"`
	Lessons          []model.Progress `json:"lessons"`
}

func (s *ProgressService) GetCourseProgress(userID, courseID uint) (*CourseProgress, error) {
	records, err := s.ProgressRepo.ListByCourse(userID, courseID)
	if err != nil {
		return nil, err
	}
	total, err := s.CourseRepo.CountLessonsByCourse(courseID)
	if err != nil {
		return nil, err
	}

	var completed int64
	for _, p := range records {
		if p.Status == model.ProgressCompleted {
			completed++
		}
	}

	overview := &CourseProgress{
		CourseID:         courseID,
		TotalLessons:     total,
		CompletedLessons: completed,
		Lessons:          records,
	}
	if total > 0 {
		overview.Percent = float64(completed) / float64(total) * 100
	}
	return overview, nil
}

// CascadeResult 一次收卷级联实际产生的状态变化
type CascadeResult struct {
	LessonCompleted   bool
	CourseCompleted   bool
	CertificateIssued bool
	Certificate       *model.Certificate
}

// ProgressCascade 把一次通过的测验转化为课时、课程、证书三级状态推进。
// 全部写入走同一个 CascadeTx，和收卷落库同生共死。
type ProgressCascade struct{}

// Apply 规则：
//  1. 课时进度 findOrCreate，记录历史最高分；通过则标记 completed。
//  2. 已选课时刷新选课进度百分比；全部课时完成则选课转 completed。
//  3. 课程完成时签发证书，(user, course) 唯一，重复完成不重发。
func (pc *ProgressCascade) Apply(tx repository.CascadeTx, userID, courseID, lessonID uint, score float64, passed bool, now time.Time) (*CascadeResult, error) {
	result := &CascadeResult{}

	progress, err := tx.FindProgress(userID, courseID, lessonID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = &model.Progress{
			UserID:   userID,
			CourseID: courseID,
			LessonID: lessonID,
			Status:   model.ProgressInProgress,
		}
	}
	if score > progress.Score {
		progress.Score = score
	}
	progress.LastAccessDate = &now
	if passed && progress.Status != model.ProgressCompleted {
		progress.Status = model.ProgressCompleted
		progress.CompletionDate = &now
		result.LessonCompleted = true
	}
	if progress.Status == model.ProgressNotStarted {
		progress.Status = model.ProgressInProgress
	}
	if err := tx.SaveProgress(progress); err != nil {
		return nil, err
	}

	if !passed {
		return result, nil
	}

	totalLessons, err := tx.CountLessons(courseID)
	if err != nil {
		return nil, err
	}
	completedLessons, err := tx.CountCompletedLessons(userID, courseID)
	if err != nil {
		return nil, err
	}

	enrollment, err := tx.FindEnrollment(userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrollment != nil && totalLessons > 0 {
		enrollment.Progress = float64(completedLessons) / float64(totalLessons) * 100
		if completedLessons >= totalLessons && enrollment.Status != model.EnrollmentCompleted {
			enrollment.Status = model.EnrollmentCompleted
			enrollment.CompletedAt = &now
			result.CourseCompleted = true
		}
		if err := tx.SaveEnrollment(enrollment); err != nil {
			return nil, err
		}
	}

	if totalLessons > 0 && completedLessons >= totalLessons {
		cert := &model.Certificate{
			UserID:            userID,
			CourseID:          courseID,
			CertificateNumber: newCertificateNumber(now),
			IssueDate:         now,
			CompletionDate:    now,
			Status:            model.CertificateActive,
		}
		created, err := tx.FindOrCreateCertificate(cert)
		if err != nil {
			return nil, err
		}
		result.Certificate = cert
		result.CertificateIssued = created
		if created {
			logger.Log.Info("certificate issued",
				zap.Uint("userId", userID),
				zap.Uint("courseId", courseID),
				zap.String("number", cert.CertificateNumber))
		}
	}

	return result, nil
}

func newCertificateNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(model.GenerateUUID(), "-", ""))[:12]
	return fmt.Sprintf("CERT-%d-%s", now.Year(), suffix)
}
