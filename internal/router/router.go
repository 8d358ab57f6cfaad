package router

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/agep/exam-backend/internal/config"
	"github.com/agep/exam-backend/internal/handler"
	"github.com/agep/exam-backend/internal/middleware"
	"github.com/agep/exam-backend/internal/response"
	"github.com/agep/exam-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Student    *handler.StudentHandler
	Instructor *handler.InstructorHandler
	Feed       *handler.FeedHandler
	WS         *handler.WSHandler
	System     *handler.SystemHandler
}

// Limiters holds the rate limiters whose lifetime is owned by main.
type Limiters struct {
	Submit *middleware.RateLimiter
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	limiters *Limiters,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After", "Content-Disposition"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	// Exports are already-compressed xlsx or downloads the browser saves
	// as-is; everything else is JSON worth compressing.
	router.Use(middleware.BrotliWithConfig(middleware.BrotliConfig{
		Quality:   middleware.DefaultBrotliConfig.Quality,
		MinLength: middleware.DefaultBrotliConfig.MinLength,
		Skipper: func(c *gin.Context) bool {
			return strings.HasSuffix(c.Request.URL.Path, "/export")
		},
	}))

	router.GET("/health", handlers.System.Health)
	router.GET("/health/ready", handlers.System.Ready)

	api := router.Group("/api/v1")
	api.Use(middleware.NoStore())

	api.GET("/me", middleware.RequireJWT(authService), handlers.Auth.Me)

	// ─── 1. Student Group ──────────────────────────────────────────────
	studentAPI := api.Group("/student")
	studentAPI.Use(middleware.RequireJWT(authService))
	{
		studentAPI.GET("/lobby", handlers.Student.GetLobby)
		studentAPI.GET("/exams/:exam_id/session", handlers.Student.OpenSession)
		studentAPI.PUT("/exams/:exam_id/draft", handlers.Student.SaveDraft)
		studentAPI.POST("/exams/:exam_id/submit", limiters.Submit.Middleware(), handlers.Student.Submit)
		studentAPI.GET("/attempts/:attempt_id", handlers.Student.GetAttempt)
	}

	// ─── 2. Instructor Group (JWT + role) ──────────────────────────────
	instructorAPI := api.Group("/instructor")
	instructorAPI.Use(
		middleware.RequireJWT(authService),
		middleware.RequireAnyRole(response.ErrInstructorOnly, service.RoleInstructor, service.RoleAdministrator),
	)
	{
		instructorAPI.GET("/exams", handlers.Instructor.ListExams)
		instructorAPI.POST("/exams", handlers.Instructor.CreateExam)
		instructorAPI.GET("/exams/:id", handlers.Instructor.GetExam)
		instructorAPI.PUT("/exams/:id", handlers.Instructor.UpdateExam)
		instructorAPI.DELETE("/exams/:id", handlers.Instructor.DeleteExam)
		instructorAPI.GET("/exams/:id/report", handlers.Instructor.GetReport)
		instructorAPI.GET("/exams/:id/export", handlers.Instructor.Export)
		instructorAPI.GET("/exams/:id/feed", handlers.Feed.SubmissionFeedSSE)
		instructorAPI.GET("/attempts/:attempt_id", handlers.Instructor.GetAttempt)
	}

	// ─── 3. WebSocket Group ────────────────────────────────────────────
	// Browsers cannot set headers on the upgrade request, so RequireJWT
	// also accepts ?token=.
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireJWT(authService))
	{
		ws.GET("/student/exams/:exam_id/stream", handlers.WS.ExamWebSocketStream)
	}

	return router
}
