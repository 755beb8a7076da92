package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
}

func NewEnrollmentController(enrollmentService *service.EnrollmentService) *EnrollmentController {
	return &EnrollmentController{EnrollmentService: enrollmentService}
}

// Enroll godoc
// @Summary 选课
// @Description 重复选课返回已有记录
// @Tags 选课
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "课程ID"
// @Success 201 {object} util.Response{data=model.Enrollment} "成功"
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{courseId}/enroll [post]
func (c *EnrollmentController) Enroll(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	enrollment, err := c.EnrollmentService.Enroll(claims.UserID, parseID(ctx, "courseId"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, enrollment)
}

// Drop godoc
// @Summary 退课
// @Description 已完成的课程不可退
// @Tags 选课
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Enrollment} "成功"
// @Router /api/courses/{courseId}/enroll [delete]
func (c *EnrollmentController) Drop(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	enrollment, err := c.EnrollmentService.Drop(claims.UserID, parseID(ctx, "courseId"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, enrollment)
}

// ListMine godoc
// @Summary 我的选课列表
// @Tags 选课
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Enrollment} "成功"
// @Router /api/enrollments [get]
func (c *EnrollmentController) ListMine(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	enrollments, err := c.EnrollmentService.ListUserEnrollments(claims.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, enrollments)
}

// ListByCourse godoc
// @Summary 课程下的选课记录
// @Description 教学角色查看课程的选课情况
// @Tags 选课
// @Produce  json
// @Security ApiKeyAuth
// @Param   courseId path int true "课程ID"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/courses/{courseId}/enrollments [get]
func (c *EnrollmentController) ListByCourse(ctx *gin.Context) {
	page, limit := pagination(ctx)
	enrollments, total, err := c.EnrollmentService.ListCourseEnrollments(parseID(ctx, "courseId"), page, limit)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: enrollments, Total: total, Page: page, Limit: limit})
}
