package app

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/controller"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/pkg/configwatcher"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"
	"lms_backend/pkg/monitoring"
	"lms_backend/pkg/security"
	"lms_backend/pkg/tracing"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *gorm.DB
	Redis    *redis.Client
	services *services

	sweepStop chan struct{}
}

type repositories struct {
	user         *repository.UserRepository
	course       *repository.CourseRepository
	quiz         *repository.QuizRepository
	attempt      *repository.AttemptRepository
	progress     *repository.ProgressRepository
	enrollment   *repository.EnrollmentRepository
	certificate  *repository.CertificateRepository
	notification *repository.NotificationRepository
}

type services struct {
	scorer       *service.Scorer
	auth         *service.AuthService
	storage      *service.StorageService
	quiz         *service.QuizService
	attempt      *service.AttemptService
	progress     *service.ProgressService
	enrollment   *service.EnrollmentService
	certificate  *service.CertificateService
	notification *service.NotificationService
}

type controllers struct {
	auth         *controller.AuthController
	quiz         *controller.QuizController
	attempt      *controller.AttemptController
	progress     *controller.ProgressController
	enrollment   *controller.EnrollmentController
	certificate  *controller.CertificateController
	notification *controller.NotificationController
	health       *controller.HealthController
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	quizRepo := repository.NewQuizRepository(db, rdb,
		time.Duration(a.Config.Assessment.QuizCacheSeconds)*time.Second)
	return &repositories{
		user:         repository.NewUserRepository(db),
		course:       repository.NewCourseRepository(db),
		quiz:         quizRepo,
		attempt:      repository.NewAttemptRepository(db),
		progress:     repository.NewProgressRepository(db),
		enrollment:   repository.NewEnrollmentRepository(db),
		certificate:  repository.NewCertificateRepository(db),
		notification: repository.NewNotificationRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.notification = service.NewNotificationService(repos.notification)

	s.scorer = &service.Scorer{ClampPointsQuestions: cfg.Assessment.ClampPointsQuestions}
	s.attempt = service.NewAttemptService(repos.attempt, repos.quiz, repos.course,
		repos.enrollment, s.notification, s.scorer)
	s.quiz = service.NewQuizService(repos.quiz, repos.attempt, repos.course)
	s.progress = service.NewProgressService(repos.progress, repos.course)
	s.enrollment = service.NewEnrollmentService(repos.enrollment, repos.course)
	s.certificate = service.NewCertificateService(repos.certificate, repos.user, s.storage)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:         controller.NewAuthController(s.auth),
		quiz:         controller.NewQuizController(s.quiz, s.attempt),
		attempt:      controller.NewAttemptController(s.attempt, s.quiz),
		progress:     controller.NewProgressController(s.progress),
		enrollment:   controller.NewEnrollmentController(s.enrollment),
		certificate:  controller.NewCertificateController(s.certificate),
		notification: controller.NewNotificationController(s.notification),
		health:       controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// startBackgroundTasks 周期性收卷已超时的作答
func (a *App) startBackgroundTasks(s *services) {
	interval := a.Config.Assessment.ExpirySweepSeconds
	if interval <= 0 {
		return
	}

	a.sweepStop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(interval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.attempt.SweepExpired(100)
			case <-a.sweepStop:
				return
			}
		}
	}()
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer("lms-backend", cfg.Tracing.CollectorEndpoint); err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.startBackgroundTasks(services)

	// 配置热更新：目前只有测验参数支持运行中调整
	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(raw interface{}) {
		newCfg, ok := raw.(*config.Config)
		if !ok {
			return
		}
		app.Config.Assessment = newCfg.Assessment
		services.scorer.ClampPointsQuestions = newCfg.Assessment.ClampPointsQuestions
		logger.Log.Info("assessment config reloaded",
			zap.Bool("clampPointsQuestions", newCfg.Assessment.ClampPointsQuestions))
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	if a.sweepStop != nil {
		close(a.sweepStop)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
