// Package server assembles the advisor HTTP service from configuration.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/axonworks/advisor-go/pkg/catalog"
	"github.com/axonworks/advisor-go/pkg/chat"
	"github.com/axonworks/advisor-go/pkg/core"
	"github.com/axonworks/advisor-go/pkg/embedder"
	"github.com/axonworks/advisor-go/pkg/knowledge"
	"github.com/axonworks/advisor-go/pkg/llm"
	"github.com/axonworks/advisor-go/pkg/ratelimit"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// Server is the advisor HTTP service.
type Server struct {
	config   *core.Config
	engine   *gin.Engine
	limiter  *ratelimit.Limiter
	provider llm.Provider
	embedder embedder.Provider
	store    *knowledge.Store
}

// New validates cfg and wires every component.
func New(cfg *core.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider, err := NewLLM(cfg.LLM)
	if err != nil {
		return nil, err
	}

	var emb embedder.Provider
	if cfg.Embedder.APIKey != "" {
		emb, err = NewEmbedder(cfg.Embedder)
		if err != nil {
			return nil, err
		}
	}

	store := NewKnowledgeStore(cfg)
	retriever := chat.NewRetriever(emb, store, cfg.Knowledge.TopK)
	if !retriever.Enabled() {
		log.Printf("Retrieval disabled: embedding key or knowledge store not configured")
	}

	search := catalog.NewClient(&catalog.Config{
		APIKey:  cfg.Catalog.APIKey,
		BaseURL: cfg.Catalog.BaseURL,
	})

	temperature := core.DefaultTemperature
	if cfg.LLM.Temperature != nil {
		temperature = *cfg.LLM.Temperature
	}

	limiter := ratelimit.New()
	handler, err := chat.NewHandler(&chat.HandlerConfig{
		Limiter:   limiter,
		Retriever: retriever,
		Provider:  provider,
		Tools:     []llm.Tool{search.Tool()},
		Options: []llm.GenerateOption{
			llm.WithTemperature(temperature),
			llm.WithMaxSteps(cfg.LLM.MaxSteps),
		},
		Timeout: cfg.Server.RequestTimeout.Std(),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())
	handler.Register(engine, cfg.Server.ChatPath)
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"retrieval": retriever.Enabled(),
		})
	})

	return &Server{
		config:   cfg,
		engine:   engine,
		limiter:  limiter,
		provider: provider,
		embedder: emb,
		store:    store,
	}, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.limiter.Run(ctx)

	srv := &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Advisor listening on %s (chat: POST %s)", s.config.Server.Addr, s.config.Server.ChatPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close releases provider and store resources.
func (s *Server) Close() {
	if err := s.provider.Close(); err != nil {
		log.Printf("Warning: closing completion provider: %v", err)
	}
	if s.embedder != nil {
		if err := s.embedder.Close(); err != nil {
			log.Printf("Warning: closing embedder: %v", err)
		}
	}
	if err := s.store.Close(); err != nil {
		log.Printf("Warning: closing knowledge store: %v", err)
	}
}
