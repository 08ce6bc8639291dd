package server

import (
	"net/http"
	"time"

	"squares/internal/board"
	"squares/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	engine *board.Engine
	auth   *Authenticator
	hub    *Hub
	cfg    config.Config
	logger *zap.Logger
}

func New(engine *board.Engine, hub *Hub, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub(logger)
	}
	registerValidators()
	return &Server{
		engine: engine,
		auth:   NewAuthenticator(cfg.AuthSecret, nil),
		hub:    hub,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	if len(s.cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     s.cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", s.handleHealth)

	api := router.Group("/api", s.authenticate())
	api.POST("/games", s.handleCreateGame)
	api.GET("/games/:gameId", s.handleGetGame)
	api.GET("/games/:gameId/squares", s.handleListSquares)
	api.POST("/games/:gameId/lock", s.handleLockGame)
	api.POST("/games/:gameId/scores", s.handleSubmitScore)

	squares := api.Group("/games/:gameId/squares/:squareId")
	squares.POST("/reserve", s.handleReserve)
	squares.POST("/payment-intent", s.handlePaymentIntent)
	squares.POST("/confirm-payment", s.handleConfirmPayment)
	squares.POST("/void", s.handleVoid)
	squares.POST("/proxy-assign", s.handleProxyAssign)

	router.GET("/ws/games/:gameId", s.handleWebsocket)
	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
