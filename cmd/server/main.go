// Package main runs the Invoica HTTP server with live table updates and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/invoica/backend/config"
	"github.com/invoica/backend/internal/auth"
	"github.com/invoica/backend/internal/changefeed"
	"github.com/invoica/backend/internal/dashboard"
	"github.com/invoica/backend/internal/files"
	"github.com/invoica/backend/internal/layout"
	"github.com/invoica/backend/internal/middleware"
	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/internal/organizations"
	"github.com/invoica/backend/internal/payroll"
	"github.com/invoica/backend/internal/purchasing"
	"github.com/invoica/backend/internal/realtime"
	"github.com/invoica/backend/internal/resources"
	"github.com/invoica/backend/pkg/database"
	"github.com/invoica/backend/pkg/logger"
	"github.com/invoica/backend/pkg/queue"
	"github.com/invoica/backend/pkg/redis"
	"github.com/invoica/backend/pkg/response"
	"github.com/invoica/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.Log)
	defer log.Sync()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := database.NewGorm(pool)
	if err != nil {
		log.Fatal("gorm", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			DocumentsBucket: cfg.AWS.DocumentsBucket,
			PhotosBucket:    cfg.AWS.PhotosBucket,
			PublicBaseURL:   cfg.AWS.PublicBaseURL,
		}, log)
		if err != nil {
			log.Warn("s3 disabled", zap.Error(err))
		}
	}

	// Change feed: database triggers -> Redis channels -> live collections
	feed := changefeed.NewRedisPubSub(rdb.Client, log)
	listener := changefeed.NewPGListener(pool, feed, log)

	registry, err := resources.Build(resources.GormSources{DB: db}, feed, log)
	if err != nil {
		log.Fatal("resources", zap.Error(err))
	}

	codec := auth.NewCodec(cfg.Session.Secret, time.Duration(cfg.Session.MaxAgeHours)*time.Hour, cfg.Production())
	layoutSvc := layout.NewService(layout.NewRedisCache(rdb.Client), log)
	resolver := auth.NewResolver(auth.NewRepository(pool), layoutSvc, cfg.Tenancy.EmployeeLegacyPassword, log)
	authHandler := auth.NewHandler(resolver, codec, log)

	jobQueue := queue.NewQueue(rdb.Client, log)
	resourceHandler := resources.NewHandler(registry, jobQueue, log)
	dashboardSvc := dashboard.NewService(registry, log)
	purchasingSvc := purchasing.NewService(registry, log)
	payrollSvc := payroll.NewService(registry, log)
	hub := realtime.NewHub(log)
	orgHandler := organizations.NewHandler(organizations.NewRepository(pool), realtime.LayoutNotifier{Next: layoutSvc, Hub: hub}, cfg.Tenancy.DefaultAdminPassword, log)
	wsServer := realtime.NewServer(hub, registry, codec, cfg.Server.AllowedOrigins(), log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(log))

	// Health
	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Check(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Auth (public)
	authHandler.Register(router)

	// WebSocket (session cookie checked in handler)
	router.GET("/ws", wsServer.ServeWs)

	// Session required
	app := router.Group("", middleware.Session(codec))
	{
		app.GET("/layout", layoutSvc.Handle)
		app.GET("/dashboard", dashboardSvc.Handle)

		resourceHandler.Register(app.Group("/api"))

		purchasingSvc.Register(app.Group("", middleware.RequirePlan(models.PlanGold)))
		payrollSvc.Register(app.Group("",
			middleware.RequireRole(models.RoleAdmin, models.RoleSuperadmin),
			middleware.RequirePlan(layout.MinPlan("payroll")),
		))

		if s3Client != nil {
			files.NewHandler(s3Client, log).Register(app)
		}

		orgHandler.Register(app.Group("/superadmin", middleware.RequireRole(models.RoleSuperadmin)))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background database change listener
	listenCtx, listenCancel := context.WithCancel(context.Background())
	defer listenCancel()
	go listener.Run(listenCtx)

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	listenCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
