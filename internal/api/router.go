package api

import (
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/vikasavnish/mfbroker/internal/config"
	"github.com/vikasavnish/mfbroker/internal/handlers"
	"github.com/vikasavnish/mfbroker/internal/middleware"
	"github.com/vikasavnish/mfbroker/internal/observability"
	"github.com/vikasavnish/mfbroker/internal/services"
	"github.com/vikasavnish/mfbroker/internal/tasks"
	"github.com/vikasavnish/mfbroker/internal/websocket"
)

// RefreshLockKey is the Redis key guarding NAV refresh runs
const RefreshLockKey = "mfb:lock:nav-refresh"

// Dependencies are the process-wide collaborators the router is built from.
// Redis and Metrics may be nil.
type Dependencies struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Hub     *websocket.Hub
	Funds   services.FundSource
	Metrics *observability.Metrics
	Config  *config.Config
	Logger  logrus.FieldLogger
}

// Server is the assembled HTTP surface
type Server struct {
	Router *mux.Router
	Job    *tasks.NAVRefreshJob
}

// SetupRouter configures all routes and returns the router with the NAV
// refresh job it drives.
func SetupRouter(deps Dependencies) (*Server, error) {
	cfg := deps.Config
	logger := deps.Logger

	// Create services
	tokenService, err := services.NewTokenService(cfg.JWT.SecretKeyBytes(), cfg.JWT.Algorithm)
	if err != nil {
		return nil, err
	}
	userService := services.NewUserService(deps.DB)
	investmentService := services.NewInvestmentService(deps.DB)
	authService := services.NewAuthService(userService, services.NewPasswordHasher(0), tokenService, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	fundService := services.NewFundService(deps.Funds)

	var locker tasks.Locker
	if deps.Redis != nil {
		locker = tasks.NewRedisLocker(deps.Redis, RefreshLockKey, cfg.Scheduler.LockTTL)
	}
	var notifier tasks.Notifier
	if deps.Hub != nil {
		notifier = deps.Hub
	}
	job := tasks.NewNAVRefreshJob(investmentService, deps.Funds, locker, notifier, deps.Metrics, logger)

	// Create handlers using services
	authHandler := handlers.NewAuthHandler(authService, userService, logger)
	investmentHandler := handlers.NewInvestmentHandler(investmentService, logger)
	fundHandler := handlers.NewFundHandler(fundService, logger)
	refreshHandler := handlers.NewRefreshHandler(job, logger)

	router := mux.NewRouter()
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(deps.Metrics.Middleware)

	router.HandleFunc("/api/health", NewHealthHandler(deps.DB, job)).Methods("GET")
	router.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	if deps.Hub != nil {
		router.HandleFunc("/ws", deps.Hub.HandleWebSocket)
	}

	// Public auth endpoints, rate limited per client IP
	authPublic := router.PathPrefix("/mfb/auth").Subrouter()
	authPublic.Use(middleware.RateLimit(20, time.Minute))
	authHandler.RegisterPublicRoutes(authPublic)

	authAccess := router.PathPrefix("/mfb/auth").Subrouter()
	authAccess.Use(middleware.Guard(tokenService, middleware.AccessOnly))
	authHandler.RegisterRoutes(authAccess)

	authRefresh := router.PathPrefix("/mfb/auth").Subrouter()
	authRefresh.Use(middleware.Guard(tokenService, middleware.RefreshOnly))
	authHandler.RegisterRefreshRoutes(authRefresh)

	investmentRouter := router.PathPrefix("/mfb/investment").Subrouter()
	investmentRouter.Use(middleware.Guard(tokenService, middleware.AccessOnly))
	investmentHandler.RegisterRoutes(investmentRouter)
	fundHandler.RegisterRoutes(investmentRouter)
	refreshHandler.RegisterRoutes(investmentRouter)

	if !cfg.IsProduction() {
		router.HandleFunc("/api/routes", PrintRoutesHandler(router)).Methods("GET")
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Not Found"}`))
	})

	return &Server{Router: router, Job: job}, nil
}

// WrapHandler applies the outer middleware that must see every request,
// including those no route matches.
func WrapHandler(router http.Handler, cfg *config.Config, logger logrus.FieldLogger) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization", handlers.RefreshTokenHeader},
		AllowCredentials: true,
	})
	return middleware.SecureHeaders(cfg.IsProduction(), logger)(c.Handler(router))
}
