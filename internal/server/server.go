package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cryptoMarketAnalysis/internal/config"
	"cryptoMarketAnalysis/internal/finance"
	"cryptoMarketAnalysis/internal/report"
	"cryptoMarketAnalysis/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// Analyst is implemented by *service.Service.
type Analyst interface {
	Analyze(ctx context.Context, req service.Request) (*service.Result, error)
	Universe() finance.Universe
	Defaults() config.AnalysisConfig
	Cache() *report.Cache
}

type Server struct {
	router *gin.Engine
	svc    Analyst
	logger *zap.Logger
}

// New builds the router. webhook may be nil when Telegram is disabled.
func New(svc Analyst, webhook http.HandlerFunc, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	router.SetHTMLTemplate(tmpl)

	s := &Server{router: router, svc: svc, logger: logger.Named("http")}
	s.registerRoutes(webhook)
	return s, nil
}

// Router returns the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) registerRoutes(webhook http.HandlerFunc) {
	s.router.GET("/", s.index)
	s.router.GET("/analysis", s.analysisPage)
	s.router.GET("/charts/:run/:file", s.chart)
	s.router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")
	{
		api.GET("/analysis", s.apiAnalysis)
		api.GET("/analysis/:run", s.apiRun)
		api.GET("/assets", s.apiAssets)
	}

	if webhook != nil {
		s.router.POST("/telegram/webhook", gin.WrapF(webhook))
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}
