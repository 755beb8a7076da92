package model

import "time"

type CertificateStatus string

const (
	CertificateActive  CertificateStatus = "active"
	CertificateRevoked CertificateStatus = "revoked"
)

// swagger:model Certificate
type Certificate struct {
	BaseModel
	UserID            uint              `gorm:"uniqueIndex:uq_certificates_user_course;type:bigint unsigned;not null" json:"userId"`
	CourseID          uint              `gorm:"uniqueIndex:uq_certificates_user_course;index;type:bigint unsigned;not null" json:"courseId"`
	CertificateNumber string            `gorm:"size:50;uniqueIndex" json:"certificateNumber"`
	IssueDate         time.Time         `gorm:"not null" json:"issueDate"`
	CompletionDate    time.Time         `gorm:"not null" json:"completionDate"`
	Status            CertificateStatus `gorm:"size:20;default:'active'" json:"status"`
	FileURL           string            `gorm:"size:500" json:"fileUrl,omitempty"` // 归档文件地址（可选）
}

func (Certificate) TableName() string {
	return "certificates"
}
