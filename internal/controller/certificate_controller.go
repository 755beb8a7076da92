package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

// ListMine godoc
// @Summary 我的证书列表
// @Tags 证书
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Certificate} "成功"
// @Router /api/certificates [get]
func (c *CertificateController) ListMine(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	certs, err := c.CertificateService.ListUserCertificates(claims.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}

// Get godoc
// @Summary 证书详情
// @Description 本人或教学角色可见
// @Tags 证书
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "证书ID"
// @Success 200 {object} util.Response{data=model.Certificate} "成功"
// @Failure 403 {object} util.Response "无权查看"
// @Router /api/certificates/{id} [get]
func (c *CertificateController) Get(ctx *gin.Context) {
	cert, err := c.CertificateService.GetCertificate(parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	claims := util.GetUserFromContext(ctx)
	if err := c.CertificateService.EnsureOwnership(cert, claims.UserID, isStaff(claims)); err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}

// Verify godoc
// @Summary 证书验真
// @Description 公开接口，按证书编号查询有效性，不返回持有人信息
// @Tags 证书
// @Produce  json
// @Param   number path string true "证书编号"
// @Success 200 {object} util.Response{data=service.VerificationResult} "成功"
// @Failure 404 {object} util.Response "证书不存在"
// @Router /api/certificates/verify/{number} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	result, err := c.CertificateService.Verify(ctx.Param("number"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Revoke godoc
// @Summary 吊销证书
// @Description 仅管理员，重复吊销幂等
// @Tags 证书
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "证书ID"
// @Success 200 {object} util.Response{data=model.Certificate} "成功"
// @Router /api/certificates/{id}/revoke [post]
func (c *CertificateController) Revoke(ctx *gin.Context) {
	cert, err := c.CertificateService.Revoke(parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}

// Archive godoc
// @Summary 归档证书
// @Description 把证书快照写入对象存储并回填文件地址
// @Tags 证书
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "证书ID"
// @Success 200 {object} util.Response{data=model.Certificate} "成功"
// @Router /api/certificates/{id}/archive [post]
func (c *CertificateController) Archive(ctx *gin.Context) {
	cert, err := c.CertificateService.Archive(ctx.Request.Context(), parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}
