package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// QuizController 测验出题与发布接口，仅教学角色可写
type QuizController struct {
	QuizService    *service.QuizService
	AttemptService *service.AttemptService
}

func NewQuizController(quizService *service.QuizService, attemptService *service.AttemptService) *QuizController {
	return &QuizController{QuizService: quizService, AttemptService: attemptService}
}

// CreateQuiz godoc
// @Summary 创建测验
// @Description 在指定课时下创建一份新测验
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateQuizInput true "测验定义"
// @Success 201 {object} util.Response{data=model.Quiz} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 404 {object} util.Response "课时不存在"
// @Router /api/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	var input service.CreateQuizInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	claims := util.GetUserFromContext(ctx)
	quiz, err := c.QuizService.CreateQuiz(claims.UserID, &input)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// UpdateQuiz godoc
// @Summary 更新测验
// @Description 更新测验定义，已有作答记录后计分相关字段不可修改
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Param   body body service.CreateQuizInput true "测验定义"
// @Success 200 {object} util.Response{data=model.Quiz} "成功"
// @Failure 409 {object} util.Response "字段已冻结"
// @Router /api/quizzes/{id} [put]
func (c *QuizController) UpdateQuiz(ctx *gin.Context) {
	var input service.CreateQuizInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.QuizService.UpdateQuiz(parseID(ctx, "id"), &input)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// DeleteQuiz godoc
// @Summary 删除测验
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/quizzes/{id} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	if err := c.QuizService.DeleteQuiz(parseID(ctx, "id")); err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// GetQuiz godoc
// @Summary 获取测验详情
// @Description 教学角色返回完整定义，学生不应使用此接口
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz} "成功"
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	quiz, err := c.QuizService.GetQuiz(parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// ListByLesson godoc
// @Summary 课时下的测验列表
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   lessonId path int true "课时ID"
// @Success 200 {object} util.Response{data=[]model.Quiz} "成功"
// @Router /api/lessons/{lessonId}/quizzes [get]
func (c *QuizController) ListByLesson(ctx *gin.Context) {
	quizzes, err := c.QuizService.ListByLesson(parseID(ctx, "lessonId"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}

// Publish godoc
// @Summary 发布测验
// @Description 发布前校验所有活跃题目的定义
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz} "成功"
// @Failure 400 {object} util.Response "题目定义不合法"
// @Router /api/quizzes/{id}/publish [post]
func (c *QuizController) Publish(ctx *gin.Context) {
	quiz, err := c.QuizService.Publish(parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// Unpublish godoc
// @Summary 下线测验
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz} "成功"
// @Router /api/quizzes/{id}/unpublish [post]
func (c *QuizController) Unpublish(ctx *gin.Context) {
	quiz, err := c.QuizService.Unpublish(parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// AddQuestion godoc
// @Summary 新增题目
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Param   body body service.QuestionInput true "题目定义"
// @Success 201 {object} util.Response{data=model.Question} "创建成功"
// @Router /api/quizzes/{id}/questions [post]
func (c *QuizController) AddQuestion(ctx *gin.Context) {
	var input service.QuestionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.QuizService.AddQuestion(parseID(ctx, "id"), &input)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   questionId path int true "题目ID"
// @Param   body body service.QuestionInput true "题目定义"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Router /api/questions/{questionId} [put]
func (c *QuizController) UpdateQuestion(ctx *gin.Context) {
	var input service.QuestionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.QuizService.UpdateQuestion(parseID(ctx, "questionId"), &input)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, question)
}

// RemoveQuestion godoc
// @Summary 删除题目
// @Description 软删除，历史作答保持可追溯
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   questionId path int true "题目ID"
// @Success 200 {object} util.Response "成功"
// @Router /api/questions/{questionId} [delete]
func (c *QuizController) RemoveQuestion(ctx *gin.Context) {
	if err := c.QuizService.RemoveQuestion(parseID(ctx, "questionId")); err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ReorderRequest 题目重排入参
type ReorderRequest struct {
	QuestionIDs []uint `json:"questionIds" binding:"required,min=1"`
}

// ReorderQuestions godoc
// @Summary 调整题序
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Param   body body ReorderRequest true "题目ID顺序"
// @Success 200 {object} util.Response "成功"
// @Router /api/quizzes/{id}/questions/reorder [post]
func (c *QuizController) ReorderQuestions(ctx *gin.Context) {
	var req ReorderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.QuizService.ReorderQuestions(parseID(ctx, "id"), req.QuestionIDs); err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AddOption godoc
// @Summary 新增选项
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   questionId path int true "题目ID"
// @Param   body body service.OptionInput true "选项定义"
// @Success 201 {object} util.Response{data=model.Option} "创建成功"
// @Router /api/questions/{questionId}/options [post]
func (c *QuizController) AddOption(ctx *gin.Context) {
	var input service.OptionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	option, err := c.QuizService.AddOption(parseID(ctx, "questionId"), &input)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, option)
}

// UpdateOption godoc
// @Summary 更新选项
// @Tags 测验
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   optionId path int true "选项ID"
// @Param   body body service.OptionInput true "选项定义"
// @Success 200 {object} util.Response{data=model.Option} "成功"
// @Router /api/options/{optionId} [put]
func (c *QuizController) UpdateOption(ctx *gin.Context) {
	var input service.OptionInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	option, err := c.QuizService.UpdateOption(parseID(ctx, "optionId"), &input)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, option)
}

// RemoveOption godoc
// @Summary 删除选项
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   optionId path int true "选项ID"
// @Success 200 {object} util.Response "成功"
// @Router /api/options/{optionId} [delete]
func (c *QuizController) RemoveOption(ctx *gin.Context) {
	if err := c.QuizService.RemoveOption(parseID(ctx, "optionId")); err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// Stats godoc
// @Summary 测验统计
// @Description 作答次数、完成数、平均分与通过率
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=repository.QuizStats} "成功"
// @Router /api/quizzes/{id}/stats [get]
func (c *QuizController) Stats(ctx *gin.Context) {
	stats, err := c.AttemptService.QuizStats(parseID(ctx, "id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}
