package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/falsumairi/ielts-sub001/internal/config"
	"github.com/falsumairi/ielts-sub001/internal/handler"
	"github.com/falsumairi/ielts-sub001/internal/middleware"
	"github.com/falsumairi/ielts-sub001/internal/response"
	"github.com/falsumairi/ielts-sub001/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Test    *handler.TestHandler
	Session *handler.SessionHandler
	Audio   *handler.AudioHandler
	WS      *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokenService *service.TokenService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", handler.HeaderClientProfile}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Starting an attempt touches Postgres and warms a session; keep
	// retry storms from impatient clients in check.
	startLimiter := middleware.NewRateLimiter(10, time.Minute)

	// ─── Taker API (JWT) ───────────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireUserJWT(tokenService), middleware.NoStore())
	{
		api.GET("/tests", handlers.Test.ListTests)
		api.GET("/tests/:test_id", handlers.Test.GetTest)
		api.GET("/tests/:test_id/paper", handlers.Test.GetPaper)

		api.POST("/tests/:test_id/attempts", startLimiter.Middleware(), handlers.Session.StartAttempt)

		api.GET("/tests/:test_id/passages/:passage_id/audio", handlers.Audio.GetPlayState)
		api.POST("/tests/:test_id/passages/:passage_id/audio/played", handlers.Audio.MarkPlayed)
		api.GET("/tests/:test_id/questions/:question_id/audio", handlers.Audio.GetQuestionPlayState)
		api.POST("/tests/:test_id/questions/:question_id/audio/played", handlers.Audio.MarkQuestionPlayed)

		api.GET("/attempts", handlers.Session.ListAttempts)
		api.POST("/attempts/:attempt_id/pause", handlers.Session.PauseAttempt)
		api.POST("/attempts/:attempt_id/resume", handlers.Session.ResumeAttempt)
		api.POST("/attempts/:attempt_id/complete", handlers.Session.CompleteAttempt)
		api.POST("/attempts/:attempt_id/abandon", handlers.Session.AbandonAttempt)
		api.PUT("/attempts/:attempt_id/answers/:question_id", handlers.Session.SubmitAnswer)
		api.GET("/attempts/:attempt_id/state", handlers.Session.GetState)
		api.GET("/attempts/:attempt_id/progress", handlers.Session.GetProgress)
	}

	// ─── WebSocket Group (WS Auth via ?token=) ─────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireUserWSAuth(tokenService))
	{
		ws.GET("/attempts/:attempt_id/stream", handlers.WS.AttemptStream)
	}

	return router
}
