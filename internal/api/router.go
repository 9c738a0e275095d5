package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig configures the HTTP router.
type RouterConfig struct {
	CORSOrigins []string // empty allows any origin
	Gatherer    prometheus.Gatherer // nil uses the default registry
}

// NewRouter wires the handler into a gin engine.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Content-Length", "Accept", "Origin", LearnerHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.CORSOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sessions := r.Group("/sessions")
	{
		sessions.POST("", h.StartSession)
		sessions.GET("/:id", h.GetSession)
		sessions.GET("/:id/content", h.StepContent)
		sessions.GET("/:id/steps/:index", h.RevisitStep)
		sessions.POST("/:id/mini-quiz", h.MiniQuiz)
		sessions.POST("/:id/mini-quiz/answers", h.SubmitMiniQuiz)
		sessions.POST("/:id/final-quiz", h.FinalQuiz)
		sessions.POST("/:id/final-quiz/answers", h.SubmitFinalQuiz)
		sessions.PUT("/:id/level", h.SetLevel)
		sessions.GET("/:id/progress", h.Progress)
		sessions.GET("/:id/attempts", h.Attempts)
		sessions.GET("/:id/attempts/:attemptID/feedback", h.Feedback)
		sessions.GET("/:id/conversation", h.Conversation)
		sessions.POST("/:id/questions", h.Ask)
	}

	if h.sources != nil {
		sources := r.Group("/sources")
		sources.POST("/pdf", h.PDFSource)
		sources.POST("/video", h.VideoSource)
	}

	return r
}
