package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classpoll/config"
	"classpoll/internal/handler"
	"classpoll/internal/middleware"
	"classpoll/internal/redis"
	"classpoll/internal/transport/httpdto"
	"classpoll/pkg/database"
	"classpoll/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Participant *handler.ParticipantHandler
	Poll        *handler.PollHandler
	Vote        *handler.VoteHandler
	State       *handler.StateHandler
	Chat        *handler.ChatHandler
	WebSocket   *WebSocketHandler
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.AppPort),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	s.engine.GET("/ws", middleware.ConnectionRateLimitMiddleware(limiter), handlers.WebSocket.Handle)

	participants := s.engine.Group("/api/participants")
	{
		participants.POST("", handlers.Participant.Register)
		participants.GET("/online", handlers.Participant.ListOnline)
		participants.GET("/:id", handlers.Participant.Get)
		participants.DELETE("/:id", handlers.Participant.Kick)
	}

	polls := s.engine.Group("/api/polls")
	{
		polls.POST("", middleware.PollRateLimitMiddleware(limiter), handlers.Poll.Create)
		polls.GET("/active", handlers.Poll.Active)
		polls.GET("/history", handlers.Poll.History)
		polls.GET("/:id", handlers.Poll.Get)
		polls.GET("/:id/results", handlers.Poll.Results)
		polls.POST("/:id/start", middleware.PollRateLimitMiddleware(limiter), handlers.Poll.Start)
		polls.POST("/:id/end", middleware.PollRateLimitMiddleware(limiter), handlers.Poll.End)
	}

	votes := s.engine.Group("/api/votes")
	{
		votes.POST("", middleware.VoteRateLimitMiddleware(limiter), handlers.Vote.Submit)
		votes.GET("/check", handlers.Vote.Check)
	}

	state := s.engine.Group("/api/state")
	{
		state.GET("/participant", handlers.State.Me)
		state.GET("/operator", handlers.State.Operator)
	}

	chat := s.engine.Group("/api/chat")
	{
		chat.GET("", handlers.Chat.List)
		chat.POST("", handlers.Chat.Send)
		chat.DELETE("/:id", handlers.Chat.Delete)
		chat.DELETE("", handlers.Chat.Clear)
	}
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
