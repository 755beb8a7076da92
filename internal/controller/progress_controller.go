package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// GetCourseProgress godoc
// @Summary 课程进度概览
// @Description 当前用户在某门课程下的课时完成情况
// @Tags 进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=service.CourseProgress} "成功"
// @Router /api/courses/{courseId}/progress [get]
func (c *ProgressController) GetCourseProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	overview, err := c.ProgressService.GetCourseProgress(claims.UserID, parseID(ctx, "courseId"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, overview)
}
