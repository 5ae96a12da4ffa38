package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskboard/internal/handler"
)

func NewRouter(
	authHandler *handler.AuthHandler,
	taskHandler *handler.TaskHandler,
	dashboardHandler *handler.DashboardHandler,
	jwtSecret string,
	logger *zap.Logger,
	db *pgxpool.Pool,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/login", authHandler.Login)
	r.POST("/register", authHandler.Register)

	authed := r.Group("/")
	authed.Use(AuthMiddleware(jwtSecret))
	{
		authed.POST("/logout", authHandler.Logout)
		authed.GET("/session", authHandler.Session)
		authed.POST("/session/retry", authHandler.RetryConnection)

		authed.GET("/tasks", taskHandler.ListTasks)
		authed.POST("/tasks", taskHandler.CreateTask)
		authed.GET("/tasks/:id", taskHandler.GetTask)
		authed.PATCH("/tasks/:id/status", taskHandler.UpdateStatus)
		authed.PATCH("/tasks/:id/progress", taskHandler.UpdateProgress)
		authed.POST("/tasks/:id/comments", taskHandler.AddComment)
		authed.POST("/tasks/:id/reassign", taskHandler.Reassign)
		authed.DELETE("/tasks/:id", taskHandler.DeleteTask)

		authed.GET("/dashboard", dashboardHandler.Dashboard)
	}

	return r
}
