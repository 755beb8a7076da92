package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	DB *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{DB: db}
}

func (r *NotificationRepository) Create(n *model.Notification) error {
	return r.DB.Create(n).Error
}

func (r *NotificationRepository) ListByUser(userID uint, page, limit int) ([]model.Notification, int64, error) {
	var total int64
	if err := r.DB.Model(&model.Notification{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.Notification
	offset := (page - 1) * limit
	err := r.DB.Where("user_id = ?", userID).
		Order("created_at desc").Offset(offset).Limit(limit).
		Find(&records).Error
	return records, total, err
}

func (r *NotificationRepository) MarkRead(id, userID uint) error {
	return r.DB.Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true).Error
}
