package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamedash/internal/accounts"
	"gamedash/internal/config"
	"gamedash/internal/handlers"
	"gamedash/internal/logger"
	"gamedash/internal/middleware"
	"gamedash/internal/orchestrator"
	"gamedash/internal/poller"
	"gamedash/internal/power"
	"gamedash/internal/reconcile"
	"gamedash/internal/registry"
	"gamedash/internal/storage"
	"gamedash/internal/telemetry"
	"gamedash/internal/version"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type app struct {
	auth        *middleware.AuthService
	users       *accounts.Store
	hub         *middleware.Hub
	rateLimiter *middleware.RateLimiter
	server      *handlers.ServerHandlers
	authRoutes  *handlers.AuthHandlers
}

func main() {
	cfg := config.Parse()
	logger.Setup(cfg.Logger)
	log.Info().Str("version", version.String()).Msg("Starting gamedash")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Storage backend: sqlite when a path is configured, in-memory otherwise.
	var reg registry.Registry
	var samples telemetry.Store
	if cfg.Storage.Path != "" {
		repo, err := storage.New(cfg.Storage.Path)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open database")
		}
		defer func() { _ = repo.Close() }()
		reg = repo
		samples = repo
	} else {
		reg = registry.NewMemory()
		samples = telemetry.NewMemoryStore()
	}

	users := accounts.NewStore(cfg.Auth.UsersFile)
	if err := users.Load(); err != nil {
		log.Fatal().Err(err).Str("path", cfg.Auth.UsersFile).Msg("Failed to load user store")
	}
	if users.IsEmpty() {
		log.Warn().Str("path", cfg.Auth.UsersFile).Msg("User store is empty, no account can log in")
	}

	client := orchestrator.NewClient(cfg.Panel.URL, cfg.Panel.Timeout)
	reconciler := reconcile.New(client, reg)
	controller := power.NewController(client, reg)
	collector := telemetry.NewCollector(client, samples, cfg.Poll.Workers)

	perMinute := cfg.Server.RatePerMinute
	if perMinute <= 0 {
		perMinute = 100
	}
	a := &app{
		auth:        middleware.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		users:       users,
		hub:         middleware.NewHub(),
		rateLimiter: middleware.NewRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), cfg.Server.RateBurst),
		server:      handlers.NewServerHandlers(users, reg, reconciler, controller, collector, samples, client),
	}
	a.authRoutes = handlers.NewAuthHandlers(a.auth, users)

	go a.hub.Run()

	pollCtx, stopPolling := context.WithCancel(context.Background())
	bg := poller.New(users, reconciler, collector, a.hub, cfg.Poll.Interval)
	go bg.Run(pollCtx)

	srv := &http.Server{
		Addr:           cfg.Server.Address,
		Handler:        setupRouter(a),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		var err error
		if cfg.Server.TLSCert != "" && cfg.Server.TLSKey != "" {
			log.Info().Str("address", cfg.Server.Address).Msg("Starting HTTPS server")
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			log.Info().Str("address", cfg.Server.Address).Msg("Starting server")
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	stopPolling()
	a.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func setupRouter(a *app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginLogger())

	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	r.Use(a.rateLimiter.Middleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.String()})
	})

	api := r.Group("/api")
	api.POST("/login", a.authRoutes.APILogin)

	authed := api.Group("")
	authed.Use(a.auth.RequireAPIAuth())
	{
		authed.GET("/logout", a.authRoutes.Logout)
		authed.GET("/system", handlers.APISystem)
		authed.GET("/servers", a.server.APIServers)
		authed.GET("/servers/:external_id", a.server.APIServer)
		authed.GET("/server-stats", a.server.APIServerStats)
		authed.GET("/servers/:external_id/stats", a.server.APIServerHistory)
		authed.POST("/servers/:external_id/power", a.server.APIServerPower)
		authed.POST("/servers/:external_id/command", a.server.APIServerCommand)
	}

	r.GET("/ws", a.hub.HandleWebSocket())

	return r
}

// ginLogger bridges gin's request logging into zerolog.
func ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("ip", c.ClientIP()).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request")
	}
}
