package service

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"time"
)

type EnrollmentService struct {
	Repo       *repository.EnrollmentRepository
	CourseRepo *repository.CourseRepository
}

func NewEnrollmentService(repo *repository.EnrollmentRepository, courseRepo *repository.CourseRepository) *EnrollmentService {
	return &EnrollmentService{Repo: repo, CourseRepo: courseRepo}
}

func (s *EnrollmentService) Enroll(userID, courseID uint) (*model.Enrollment, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		return nil, err
	}

	enrollment := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		Status:     model.EnrollmentActive,
		EnrolledAt: time.Now(),
	}
	if err := s.Repo.Create(enrollment); err != nil {
		if errors.Is(err, util.ErrAlreadyEnrolled) {
			return s.Repo.Find(userID, courseID)
		}
		return nil, err
	}
	return enrollment, nil
}

func (s *EnrollmentService) Drop(userID, courseID uint) (*model.Enrollment, error) {
	enrollment, err := s.Repo.Find(userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status == model.EnrollmentCompleted {
		return nil, util.ErrPermissionDenied
	}
	enrollment.Status = model.EnrollmentDropped
	if err := s.Repo.Save(enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *EnrollmentService) Get(userID, courseID uint) (*model.Enrollment, error) {
	return s.Repo.Find(userID, courseID)
}

func (s *EnrollmentService) ListUserEnrollments(userID uint) ([]model.Enrollment, error) {
	return s.Repo.ListByUser(userID)
}

func (s *EnrollmentService) ListCourseEnrollments(courseID uint, page, limit int) ([]model.Enrollment, int64, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		return nil, 0, err
	}
	return s.Repo.ListByCourse(courseID, page, limit)
}
