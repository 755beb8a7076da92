package controller

import (
	"encoding/json"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

// AttemptController 作答接口：开考、逐题作答、交卷、取消
type AttemptController struct {
	AttemptService *service.AttemptService
	QuizService    *service.QuizService
}

func NewAttemptController(attemptService *service.AttemptService, quizService *service.QuizService) *AttemptController {
	return &AttemptController{AttemptService: attemptService, QuizService: quizService}
}

// Start godoc
// @Summary 开始作答
// @Description 校验选课、发布状态、时间窗口和剩余次数后开始一次新作答
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Success 201 {object} util.Response{data=service.AttemptView} "开始成功"
// @Failure 400 {object} util.Response "不满足开始条件"
// @Failure 409 {object} util.Response "并发冲突"
// @Router /api/quizzes/{id}/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attempt, quiz, err := c.AttemptService.StartAttempt(claims.UserID, parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, service.BuildAttemptView(quiz, attempt, time.Now()))
}

// AnswerRequest 单题作答入参，answer 的形态由题型决定
type AnswerRequest struct {
	QuestionID uint            `json:"questionId" binding:"required"`
	Answer     json.RawMessage `json:"answer" binding:"required"`
}

// Answer godoc
// @Summary 提交单题作答
// @Description 同一题重复提交以后写覆盖先写
// @Tags 作答
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "作答ID"
// @Param   body body AnswerRequest true "作答内容"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "作答非法或已过期"
// @Router /api/attempts/{id}/answers [put]
func (c *AttemptController) Answer(ctx *gin.Context) {
	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	attempt, err := c.AttemptService.RecordAnswer(claims.UserID, parseID(ctx, "id"), req.QuestionID, req.Answer)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"attemptId":        attempt.ID,
		"questionId":       req.QuestionID,
		"remainingSeconds": attempt.RemainingSeconds(time.Now()),
	})
}

// Submit godoc
// @Summary 交卷
// @Description 判分并触发课时、课程、证书级联，重复交卷幂等
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "作答ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "必答题未作答"
// @Failure 409 {object} util.Response "并发冲突"
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attempt, cascade, err := c.AttemptService.SubmitAttempt(claims.UserID, parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}

	resp := gin.H{"attempt": attempt}
	if cascade != nil {
		resp["lessonCompleted"] = cascade.LessonCompleted
		resp["courseCompleted"] = cascade.CourseCompleted
		resp["certificateIssued"] = cascade.CertificateIssued
	}
	util.Success(ctx, resp)
}

// Cancel godoc
// @Summary 放弃作答
// @Description 不判分、不级联，已用次数不退还
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "作答ID"
// @Success 200 {object} util.Response{data=model.Attempt} "成功"
// @Router /api/attempts/{id}/cancel [post]
func (c *AttemptController) Cancel(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attempt, err := c.AttemptService.CancelAttempt(claims.UserID, parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// Get godoc
// @Summary 获取作答详情
// @Description 本人或教学角色可见，进行中的作答会惰性检查过期
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "作答ID"
// @Success 200 {object} util.Response{data=model.Attempt} "成功"
// @Failure 403 {object} util.Response "无权查看"
// @Router /api/attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attempt, err := c.AttemptService.GetAttempt(claims.UserID, isStaff(claims), parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// ListMine godoc
// @Summary 我的作答历史
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/attempts [get]
func (c *AttemptController) ListMine(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, limit := pagination(ctx)
	attempts, total, err := c.AttemptService.ListUserAttempts(claims.UserID, page, limit)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}

// ListByQuiz godoc
// @Summary 测验下的全部作答
// @Description 教学角色查看测验的作答记录
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/quizzes/{id}/attempts/all [get]
func (c *AttemptController) ListByQuiz(ctx *gin.Context) {
	page, limit := pagination(ctx)
	attempts, total, err := c.AttemptService.ListQuizAttempts(parseID(ctx, "id"), page, limit)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}
