package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// CertificateService 证书查询、对外验真、吊销与归档
type CertificateService struct {
	Repo     *repository.CertificateRepository
	UserRepo *repository.UserRepository
	Storage  *StorageService
}

func NewCertificateService(repo *repository.CertificateRepository, userRepo *repository.UserRepository, storage *StorageService) *CertificateService {
	return &CertificateService{Repo: repo, UserRepo: userRepo, Storage: storage}
}

func (s *CertificateService) GetCertificate(id uint) (*model.Certificate, error) {
	return s.Repo.FindByID(id)
}

func (s *CertificateService) ListUserCertificates(userID uint) ([]model.Certificate, error) {
	return s.Repo.ListByUser(userID)
}

// VerificationResult 对外验真响应，吊销的证书也会返回基础信息
type VerificationResult struct {
	Valid             bool      `json:"valid"`
	CertificateNumber string    `json:"certificateNumber"`
	CourseID          uint      `json:"courseId"`
	IssueDate         time.Time `json:"issueDate"`
	Status            string    `json:"status"`
}

// Verify 按证书编号验真，公开接口，不泄露持有人信息
func (s *CertificateService) Verify(number string) (*VerificationResult, error) {
	cert, err := s.Repo.FindByNumber(number)
	if err != nil {
		return nil, err
	}
	return &VerificationResult{
		Valid:             cert.Status == model.CertificateActive,
		CertificateNumber: cert.CertificateNumber,
		CourseID:          cert.CourseID,
		IssueDate:         cert.IssueDate,
		Status:            string(cert.Status),
	}, nil
}

// Revoke 吊销证书，幂等
func (s *CertificateService) Revoke(id uint) (*model.Certificate, error) {
	cert, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if cert.Status == model.CertificateRevoked {
		return cert, nil
	}
	cert.Status = model.CertificateRevoked
	if err := s.Repo.Save(cert); err != nil {
		return nil, err
	}
	logger.Log.Info("certificate revoked",
		zap.Uint("certificateId", cert.ID),
		zap.String("number", cert.CertificateNumber))
	return cert, nil
}

// certificateArtifact 归档到对象存储的证书快照
type certificateArtifact struct {
	CertificateNumber string    `json:"certificateNumber"`
	HolderName        string    `json:"holderName"`
	CourseID          uint      `json:"courseId"`
	IssueDate         time.Time `json:"issueDate"`
	CompletionDate    time.Time `json:"completionDate"`
}

// Archive 把证书快照写入对象存储并回填 FileURL。
// 归档失败不影响证书本身的有效性。
func (s *CertificateService) Archive(ctx context.Context, id uint) (*model.Certificate, error) {
	cert, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	user, err := s.UserRepo.FindByID(cert.UserID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(certificateArtifact{
		CertificateNumber: cert.CertificateNumber,
		HolderName:        user.Name,
		CourseID:          cert.CourseID,
		IssueDate:         cert.IssueDate,
		CompletionDate:    cert.CompletionDate,
	})
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("certificates/%s.json", cert.CertificateNumber)
	url, err := s.Storage.Upload(ctx, filename, bytes.NewReader(payload), int64(len(payload)), "application/json")
	if err != nil {
		return nil, err
	}

	cert.FileURL = url
	if err := s.Repo.Save(cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// EnsureOwnership 学生只能查看自己的证书
func (s *CertificateService) EnsureOwnership(cert *model.Certificate, userID uint, isStaff bool) error {
	if cert.UserID != userID && !isStaff {
		return util.ErrPermissionDenied
	}
	return nil
}
