package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sahayak-app/sahayak/pkg/assist"
	"github.com/sahayak-app/sahayak/pkg/config"
	"github.com/sahayak-app/sahayak/pkg/intake"
	"github.com/sahayak-app/sahayak/pkg/logger"
	"github.com/sahayak-app/sahayak/pkg/store"
)

// Server is the HTTP surface consumed by the mobile app.
type Server struct {
	cfg    *config.Config
	engine *gin.Engine

	convs  store.ConversationStore
	memory store.MemoryStore
	intake *intake.Service
	chat   *assist.Service
}

func New(cfg *config.Config, convs store.ConversationStore, memory store.MemoryStore, intakeSvc *intake.Service, chatSvc *assist.Service) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:    cfg,
		engine: engine,
		convs:  convs,
		memory: memory,
		intake: intakeSvc,
		chat:   chatSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	v1 := s.engine.Group("/v1")
	v1.POST("/conversations", s.handleGetOrCreateConversation)
	v1.GET("/conversations/:id/messages", s.handleListMessages)
	v1.DELETE("/conversations/:id/messages", s.handleClearMessages)
	v1.POST("/conversations/:id/intake", s.handleIntakeTurn)
	v1.POST("/conversations/:id/chat", s.handleChatTurn)
	v1.GET("/memory/:user_id", s.handleListFacts)
	v1.PUT("/memory/:user_id/:key", s.handleUpsertFact)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the listener and shuts down gracefully when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("server", "listening", map[string]interface{}{
			"addr": addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.InfoCF("server", "shutting down", nil)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
