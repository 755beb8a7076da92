package app

import (
	"lms_backend/docs"
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		// 证书验真对外开放
		public.GET("/certificates/verify/:number", c.certificate.Verify)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)

	// 选课
	rg.POST("/courses/:courseId/enroll", c.enrollment.Enroll)
	rg.DELETE("/courses/:courseId/enroll", c.enrollment.Drop)
	rg.GET("/enrollments", c.enrollment.ListMine)

	// 作答
	rg.POST("/quizzes/:id/attempts", c.attempt.Start)
	rg.GET("/attempts", c.attempt.ListMine)
	rg.GET("/attempts/:id", c.attempt.Get)
	rg.PUT("/attempts/:id/answers", c.attempt.Answer)
	rg.POST("/attempts/:id/submit", c.attempt.Submit)
	rg.POST("/attempts/:id/cancel", c.attempt.Cancel)

	// 进度与证书
	rg.GET("/courses/:courseId/progress", c.progress.GetCourseProgress)
	rg.GET("/certificates", c.certificate.ListMine)
	rg.GET("/certificates/:id", c.certificate.Get)

	// 通知
	rg.GET("/notifications", c.notification.ListMine)
	rg.POST("/notifications/:id/read", c.notification.MarkRead)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/")
	teacher.Use(middleware.RoleMiddleware(model.Instructor))
	{
		// 测验定义
		teacher.POST("/quizzes", c.quiz.CreateQuiz)
		teacher.GET("/quizzes/:id", c.quiz.GetQuiz)
		teacher.PUT("/quizzes/:id", c.quiz.UpdateQuiz)
		teacher.DELETE("/quizzes/:id", c.quiz.DeleteQuiz)
		teacher.GET("/lessons/:lessonId/quizzes", c.quiz.ListByLesson)
		teacher.POST("/quizzes/:id/publish", c.quiz.Publish)
		teacher.POST("/quizzes/:id/unpublish", c.quiz.Unpublish)

		// 题目与选项
		teacher.POST("/quizzes/:id/questions", c.quiz.AddQuestion)
		teacher.POST("/quizzes/:id/questions/reorder", c.quiz.ReorderQuestions)
		teacher.PUT("/questions/:questionId", c.quiz.UpdateQuestion)
		teacher.DELETE("/questions/:questionId", c.quiz.RemoveQuestion)
		teacher.POST("/questions/:questionId/options", c.quiz.AddOption)
		teacher.PUT("/options/:optionId", c.quiz.UpdateOption)
		teacher.DELETE("/options/:optionId", c.quiz.RemoveOption)

		// 统计与作答查询
		teacher.GET("/quizzes/:id/stats", c.quiz.Stats)
		teacher.GET("/quizzes/:id/attempts/all", c.attempt.ListByQuiz)
		teacher.GET("/courses/:courseId/enrollments", c.enrollment.ListByCourse)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/certificates/:id/revoke", c.certificate.Revoke)
		admin.POST("/certificates/:id/archive", c.certificate.Archive)
	}
}
