package model

import "encoding/json"

type NotificationKind string

const (
	NotifyQuizPassed        NotificationKind = "quiz_passed"
	NotifyQuizFailed        NotificationKind = "quiz_failed"
	NotifyCertificateIssued NotificationKind = "certificate_issued"
)

// swagger:model Notification
type Notification struct {
	BaseModel
	UserID  uint             `gorm:"index;type:bigint unsigned;not null" json:"userId"`
	Kind    NotificationKind `gorm:"size:50;not null" json:"kind"`
	Payload json.RawMessage  `gorm:"type:json" json:"payload,omitempty"`
	IsRead  bool             `gorm:"default:false" json:"isRead"`
}

func (Notification) TableName() string {
	return "notifications"
}
