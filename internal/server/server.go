package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/orgstore/internal/auth"
	authdomain "github.com/smallbiznis/orgstore/internal/auth/domain"
	"github.com/smallbiznis/orgstore/internal/config"
	"github.com/smallbiznis/orgstore/internal/locking"
	obsmetrics "github.com/smallbiznis/orgstore/internal/observability/metrics"
	"github.com/smallbiznis/orgstore/internal/organization"
	orgdomain "github.com/smallbiznis/orgstore/internal/organization/domain"
	"github.com/smallbiznis/orgstore/internal/partition"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	obsmetrics.Module,
	locking.Module,
	partition.Module,
	auth.Module,
	organization.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

type Server struct {
	cfg      config.Config
	log      *zap.Logger
	engine   *gin.Engine
	orgsvc   orgdomain.Service
	authsvc  authdomain.Service
	registry *prometheus.Registry
}

func NewEngine(httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())
	return r
}

func NewServer(
	cfg config.Config,
	log *zap.Logger,
	engine *gin.Engine,
	orgsvc orgdomain.Service,
	authsvc authdomain.Service,
	registry *prometheus.Registry,
) *Server {
	return &Server{
		cfg:      cfg,
		log:      log.Named("http.server"),
		engine:   engine,
		orgsvc:   orgsvc,
		authsvc:  authsvc,
		registry: registry,
	}
}

func registerRoutes(s *Server) {
	r := s.engine

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": s.cfg.AppName,
			"version": s.cfg.AppVersion,
		})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	r.POST("/admin/login", s.Login)

	org := r.Group("/org")
	org.POST("/create", s.CreateOrganization)
	org.GET("/get", s.GetOrganization)
	org.PUT("/update", s.AuthRequired(), s.UpdateOrganization)
	org.DELETE("/delete", s.AuthRequired(), s.DeleteOrganization)
	org.POST("/records", s.AuthRequired(), s.InsertRecord)
	org.GET("/records", s.AuthRequired(), s.ListRecords)

	r.GET("/ops/orphans", s.ListOrphans)
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			go func() {
				s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
