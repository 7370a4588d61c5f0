package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/buildhub/internal/auth"
	"github.com/geocoder89/buildhub/internal/cache"
	"github.com/geocoder89/buildhub/internal/config"
	"github.com/geocoder89/buildhub/internal/http/handlers"
	"github.com/geocoder89/buildhub/internal/http/middlewares"
	"github.com/geocoder89/buildhub/internal/observability"
	"github.com/geocoder89/buildhub/internal/repo/postgres"
	"github.com/geocoder89/buildhub/internal/upload"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(
	log *slog.Logger,
	pool *pgxpool.Pool,
	cfg config.Config,
	pipeline *upload.Pipeline,
	store cache.Store,
	prom *observability.Prom,
	reg *prometheus.Registry,
) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(log))
	r.Use(otelgin.Middleware("buildhub"))
	r.Use(prom.GinHandleMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	// uploads dominate body size; everything else is small JSON
	r.Use(middlewares.MaxBodyBytes(cfg.MaxUploadBytes + 1<<20))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/health", h.Health)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// uploaded images are served straight off disk
	r.Static(upload.PublicPrefix, pipeline.Dir())

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	projectsRepo := postgres.NewProjectsRepo(pool, prom)
	bannersRepo := postgres.NewBannersRepo(pool, prom)

	// auth plumbing
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.JWTExpiry)
	authMW := middlewares.NewAuthMiddleware(jwtManager, usersRepo)
	authLimiter := middlewares.NewRateLimiter(20, time.Minute)

	authHandler := handlers.NewAuthHandler(usersRepo, usersRepo, jwtManager)
	projectsHandler := handlers.NewProjectsHandler(projectsRepo, pipeline, store)
	bannersHandler := handlers.NewBannersHandler(bannersRepo, pipeline, store)

	authRoutes := r.Group("/auth")
	authRoutes.Use(authLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/profile", authMW.RequireAuth(), authHandler.Profile)
	}

	projects := r.Group("/projects")
	{
		projects.GET("", projectsHandler.ListProjects)
		projects.GET("/:id", projectsHandler.GetProjectByID)

		admin := projects.Group("", authMW.RequireAuth(), authMW.RequireAdmin())
		admin.POST("", projectsHandler.CreateProject)
		admin.PUT("/:id", projectsHandler.UpdateProject)
		admin.PATCH("/:id/status", projectsHandler.UpdateProjectStatus)
		admin.PATCH("/:id/update-date", projectsHandler.UpdateProjectDate)
		admin.DELETE("/:id", projectsHandler.DeleteProject)
	}

	banners := r.Group("/banner")
	{
		banners.GET("", bannersHandler.GetActiveBanner)

		admin := banners.Group("", authMW.RequireAuth(), authMW.RequireAdmin())
		admin.GET("/all", bannersHandler.ListBanners)
		admin.POST("", bannersHandler.UploadBanner)
		admin.PUT("/:id", bannersHandler.UpdateBannerStatus)
		admin.DELETE("/:id", bannersHandler.DeleteBanner)
	}

	return r
}
