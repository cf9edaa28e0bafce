package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/uiucchat/chatcore/internal/llm"
	"github.com/uiucchat/chatcore/internal/profile"
	"github.com/uiucchat/chatcore/plugin/provider"
	"github.com/uiucchat/chatcore/plugin/storage/s3"
	"github.com/uiucchat/chatcore/plugin/tokenizer"
	"github.com/uiucchat/chatcore/plugin/vectorstore"
	"github.com/uiucchat/chatcore/server/metrics"
	apiv1 "github.com/uiucchat/chatcore/server/router/api/v1"
	"github.com/uiucchat/chatcore/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store
	Metrics *metrics.Metrics

	echoServer *echo.Echo
	httpServer *http.Server
	api        *apiv1.APIV1Service
}

// NewServer wires the API from the profile. store may be nil, in which case
// conversations are not persisted.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
		Metrics: metrics.NewMetrics(),
	}

	tokens := tokenizer.NewLazy(profile.TokenizerEncoding)
	router := llm.NewRouter(provider.Invokers(&http.Client{}))
	s.api = apiv1.NewAPIV1Service(profile, router, tokens, s.Metrics)
	if store != nil {
		s.api.Store = store
	}

	if profile.OpenAIAPIKey != "" && profile.EmbeddingModel != "" {
		embed := vectorstore.OpenAIEmbedding(profile.OpenAIBaseURL, profile.OpenAIAPIKey, profile.EmbeddingModel)
		vs, err := vectorstore.New(profile.Data, embed, tokens)
		if err != nil {
			return nil, err
		}
		s.api.Retriever = vs
	} else {
		slog.Info("retrieval disabled: no embedding model configured")
	}

	if profile.S3Bucket != "" {
		client, err := s3.NewClient(ctx, s3.Config{
			Bucket:       profile.S3Bucket,
			Region:       profile.S3Region,
			Endpoint:     profile.S3Endpoint,
			UsePathStyle: profile.S3Endpoint != "",
			PresignTTL:   profile.S3PresignTTL,
		})
		if err != nil {
			return nil, err
		}
		s.api.Links = client
	}

	s.echoServer = s.newEcho()
	return s, nil
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(s.observe)
	if s.Profile.RateLimit > 0 {
		e.Use(newRateLimiter(s.Profile.RateLimit, s.Profile.RateBurst).middleware)
	}

	e.GET("/healthz", func(c *echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": s.Profile.Version})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{})))
	s.api.RegisterRoutes(e)
	return e
}

// Handler exposes the routed echo instance.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// API returns the v1 service so callers can swap collaborators.
func (s *Server) API() *apiv1.APIV1Service {
	return s.api
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.httpServer = &http.Server{
		Handler:           s.echoServer,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start http server", "err", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	// Shutdown HTTP server.
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown server", slog.String("error", err.Error()))
		}
	}

	// Close database connection.
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			slog.Error("failed to close database", slog.String("error", err.Error()))
		}
	}

	slog.Info("server stopped properly")
}

// observe logs each request and records its metrics.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		start := time.Now()
		err := next(c)

		status := http.StatusOK
		if resp, uerr := echo.UnwrapResponse(c.Response()); uerr == nil && resp.Status != 0 {
			status = resp.Status
		}
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			} else {
				status = http.StatusInternalServerError
			}
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		duration := time.Since(start)
		s.Metrics.RecordHTTPRequest(c.Request().Method, route, status, duration)
		slog.Debug("request", "method", c.Request().Method, "route", route, "status", status, "duration", duration)
		return err
	}
}
