package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"seminarbuchung/internal/cache"
	"seminarbuchung/internal/config"
	"seminarbuchung/internal/database"
	"seminarbuchung/internal/external"
	"seminarbuchung/internal/handlers"
	"seminarbuchung/internal/logger"
	"seminarbuchung/internal/messaging"
	"seminarbuchung/internal/middleware"
	"seminarbuchung/internal/repository"
	"seminarbuchung/internal/search"
	"seminarbuchung/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	es       *search.ElasticsearchClient
	services *service.Services
}

// NewServer connects the stores, builds the services and registers routes.
// NATS, Valkey and Elasticsearch are optional.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := db.RegisterMetrics(cfg.Database.DBName); err != nil {
		logger.Get().Warn("Database pool metrics not registered", "error", err)
	}

	s := &Server{config: cfg, db: db}
	deps := service.Dependencies{Pricing: cfg.Pricing}

	var publisher service.Publisher = messaging.NopPublisher{}
	if cfg.NATSEnabled {
		natsClient, err := messaging.NewNATSClient(cfg.NATS)
		if err != nil {
			// события не критичны для бронирования
			logger.Get().Warn("NATS unavailable, events are dropped", "error", err)
		} else {
			s.nats = natsClient
			publisher = natsClient
		}
	}
	deps.Publisher = publisher

	var tokens external.TokenCache
	if cfg.ValkeyEnabled {
		valkeyClient, err := cache.NewValkeyClient(cfg.Valkey)
		if err != nil {
			logger.Get().Warn("Valkey unavailable, running without cache", "error", err)
		} else {
			s.valkey = valkeyClient
			tokens = valkeyClient
			deps.Ledger = valkeyClient
			deps.Cache = valkeyClient
		}
	}

	if cfg.ElasticsearchEnabled {
		esClient, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			logger.Get().Warn("Elasticsearch unavailable, search disabled", "error", err)
		} else {
			s.es = esClient
			deps.Searcher = esClient
		}
	}

	repos := repository.NewRepositories(db)
	deps.Bookings = repos.Bookings
	deps.Customers = repos.Customers
	deps.Catalog = repos.Catalog
	deps.Vouchers = repos.Vouchers
	deps.Gateway = external.NewPayPalClient(cfg.PayPal, tokens)

	s.services = service.NewServices(deps)

	s.router = gin.New()
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.Metrics())

	s.setupRoutes()

	return s, nil
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services.Bookings, s.services.Vouchers, s.services.Webhooks, s.services.Catalog)

	var limiter middleware.TokenTaker
	if s.valkey != nil {
		limiter = s.valkey
	}
	rateLimit := middleware.RateLimit(s.config.RateLimit, limiter)

	public := s.router.Group("/public")
	{
		public.POST("/bookings", rateLimit, h.CreateBooking)
		public.GET("/bookings/:id", h.GetBooking)
		public.POST("/vouchers/validate", rateLimit, h.ValidateVoucher)
		// PayPal is not rate limited: dropped deliveries would only be retried
		public.POST("/payment-webhook", h.PaymentWebhook)
		public.GET("/seminars", h.ListSeminars)
		public.GET("/seminars/:slug", h.GetSeminar)
	}

	admin := s.router.Group("/admin")
	admin.Use(middleware.BasicAuth(s.config.Admin.User, s.config.Admin.Password))
	{
		admin.PATCH("/bookings/:id", h.UpdateBooking)
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	dbHealth := s.db.HealthCheck(ctx)
	if dbHealth.Status != database.StatusHealthy {
		status = http.StatusServiceUnavailable
	}

	components := gin.H{"database": dbHealth}
	if s.valkey != nil {
		components["valkey"] = componentStatus(s.valkey.Ping(ctx))
	}
	if s.es != nil {
		components["elasticsearch"] = componentStatus(s.es.HealthCheck(ctx))
	}
	components["nats"] = s.nats != nil

	c.JSON(status, gin.H{
		"status":     http.StatusText(status),
		"service":    "seminarbuchung-api",
		"components": components,
	})
}

func componentStatus(err error) string {
	if err != nil {
		return err.Error()
	}
	return database.StatusHealthy
}

// Handler возвращает роутер для http.Server и тестов
func (s *Server) Handler() http.Handler {
	return s.router
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			logger.Get().Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
