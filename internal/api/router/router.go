package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rigo1357/saprotmon/config"
	"github.com/rigo1357/saprotmon/internal/api/handler"
	"github.com/rigo1357/saprotmon/internal/api/middleware"
	"github.com/rigo1357/saprotmon/pkg/jwt"
	"github.com/rigo1357/saprotmon/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 为 nil 时（未启用 Redis）生成接口不限流
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		if rdb != nil {
			if err := rdb.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 避免把 nil *redis.Client 装进接口
	var limiter middleware.RateLimiter
	if rdb != nil {
		limiter = rdb
	}
	generateLimit := middleware.RateLimit(limiter, cfg.RateLimit.GenerateLimit, cfg.RateLimit.GenerateWindow)

	// ── API v1（全部需要认证） ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr))
	{
		// 课程目录
		catalog := v1.Group("/catalog")
		{
			catalog.GET("/metadata", h.Catalog.Metadata)
			catalog.GET("/courses", h.Catalog.ListCourses)
		}

		// 排课会话
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", h.Session.CreateSession)
			sessions.GET("/:id", h.Session.GetSession)
			sessions.DELETE("/:id", h.Session.DeleteSession)

			sessions.PUT("/:id/study-info", h.Session.UpdateStudyInfo)
			sessions.PUT("/:id/max-credits", h.Session.SetMaxCredits)
			sessions.PUT("/:id/tab", h.Session.SetTab)

			sessions.POST("/:id/subjects/toggle", h.Session.ToggleSubject)
			sessions.POST("/:id/subjects/reorder", h.Session.ReorderSubject)
			sessions.DELETE("/:id/subjects/:code", h.Session.RemoveSubject)

			sessions.PUT("/:id/free-time", h.Session.SetFreeTime)
			sessions.POST("/:id/free-time/toggle", h.Session.ToggleFreeTime)
			sessions.PUT("/:id/constraints", h.Session.UpdateConstraints)

			sessions.GET("/:id/request", h.Session.PreviewRequest)
			sessions.POST("/:id/generate", generateLimit, h.Session.Generate)
			sessions.GET("/:id/result", h.Session.GetResult)
			sessions.GET("/:id/export", h.Export.ExportSchedule)
		}
	}

	return r
}
