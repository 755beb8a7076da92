package service

import (
	"encoding/json"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/logger"

	"go.uber.org/zap"
)

// NotificationService 站内通知。写入失败只记日志，不打断业务主流程。
type NotificationService struct {
	Repo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{Repo: repo}
}

// Notify 实现 Notifier
func (s *NotificationService) Notify(userID uint, kind model.NotificationKind, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Warn("notification payload marshal failed",
			zap.Uint("userId", userID), zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	n := &model.Notification{
		UserID:  userID,
		Kind:    kind,
		Payload: raw,
	}
	if err := s.Repo.Create(n); err != nil {
		logger.Log.Warn("notification create failed",
			zap.Uint("userId", userID), zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *NotificationService) ListForUser(userID uint, page, limit int) ([]model.Notification, int64, error) {
	return s.Repo.ListByUser(userID, page, limit)
}

func (s *NotificationService) MarkRead(id, userID uint) error {
	return s.Repo.MarkRead(id, userID)
}
