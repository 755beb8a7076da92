package model

import "time"

type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not-started"
	ProgressInProgress ProgressStatus = "in-progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// swagger:model Progress
type Progress struct {
	BaseModel
	UserID         uint           `gorm:"uniqueIndex:uq_progress_user_course_lesson;type:bigint unsigned;not null" json:"userId"`
	CourseID       uint           `gorm:"uniqueIndex:uq_progress_user_course_lesson;index;type:bigint unsigned;not null" json:"courseId"`
	LessonID       uint           `gorm:"uniqueIndex:uq_progress_user_course_lesson;type:bigint unsigned;not null" json:"lessonId"`
	Status         ProgressStatus `gorm:"size:20;default:'not-started'" json:"status"`
	Score          float64        `json:"score"`
	CompletionDate *time.Time     `json:"completionDate,omitempty"`
	TimeSpent      int            `gorm:"default:0" json:"timeSpent"` // 分钟
	LastAccessDate *time.Time     `json:"lastAccessDate,omitempty"`
}

func (Progress) TableName() string {
	return "progress"
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	UserID      uint             `gorm:"uniqueIndex:uq_enrollments_user_course;type:bigint unsigned;not null" json:"userId"`
	CourseID    uint             `gorm:"uniqueIndex:uq_enrollments_user_course;index;type:bigint unsigned;not null" json:"courseId"`
	Progress    float64          `gorm:"default:0" json:"progress"` // 完成课时百分比 0-100
	Status      EnrollmentStatus `gorm:"size:20;default:'active'" json:"status"`
	EnrolledAt  time.Time        `json:"enrolledAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
