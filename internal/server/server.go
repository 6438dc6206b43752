package server

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/auth"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/booking"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/config"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/payment"
)

// Deps are the collaborators the HTTP layer routes to.
type Deps struct {
	DB       *sqlx.DB
	Redis    *redis.Client
	Bookings booking.Service
	Ledger   payment.Repository
}

type Server struct {
	router *gin.Engine
	http   *http.Server
}

func New(cfg *config.Config, deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLoggingMiddleware(), MetricsMiddleware(), corsMiddleware(cfg.CORSOrigins))

	bookingHandler := booking.NewHandler(deps.Bookings)
	paymentHandler := payment.NewHandler(deps.Bookings, deps.Ledger)
	limiter := NewRateLimiter(deps.Redis, cfg.RateLimitPerMinute, time.Minute)

	router.GET("/health", Health(deps.DB, deps.Redis))
	router.GET("/metrics", Metrics())

	protected := router.Group("/")
	protected.Use(auth.AuthMiddleware(cfg.JWTSecret), limiter.Middleware())
	{
		protected.POST("/bookings", auth.RequireRole(auth.RoleClient, auth.RoleAdmin), bookingHandler.Create)
		protected.GET("/bookings", bookingHandler.List)
		protected.GET("/bookings/:id", bookingHandler.Get)
		protected.POST("/bookings/:id", bookingHandler.Manage)
		protected.GET("/bookings/:id/transactions", paymentHandler.ListTransactions)
		protected.GET("/masters/:masterID/slots", bookingHandler.AvailableSlots)
	}

	return &Server{
		router: router,
		http: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port string) error {
	s.http.Addr = ":" + port
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
