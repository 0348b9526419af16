package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"ecommerce-api/internal/config"
	"ecommerce-api/internal/database"
	"ecommerce-api/internal/events"
	custommiddleware "ecommerce-api/internal/middleware"
	"ecommerce-api/internal/repository"
	"ecommerce-api/internal/service"
	"ecommerce-api/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the router is built from. NewServer
// fills them from Postgres, Redis and Kafka; tests use in-memory fakes.
type Dependencies struct {
	Users         repository.UserRepository
	RefreshTokens repository.RefreshTokenRepository
	Categories    repository.CategoryRepository
	Products      repository.ProductRepository
	Carts         repository.CartRepository
	Orders        repository.OrderRepository
	Tx            repository.TxManager
	Publisher     events.Publisher
	Limiter       custommiddleware.Limiter
	// Health reports backing store status for /health. Optional.
	Health func() map[string]string
}

type Server struct {
	*http.Server
	config    *config.Config
	logger    *zap.Logger
	db        database.Service
	redis     *redis.Client
	publisher events.Publisher
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service) *Server {
	sqlDB := db.DB()

	var productRepo repository.ProductRepository = repository.NewProductRepository(sqlDB)
	var limiter custommiddleware.Limiter

	rateConfig := rateLimitConfig(cfg)
	redisClient := connectRedis(cfg.Redis, logger)
	if redisClient != nil {
		productRepo = repository.NewCachedProductRepository(productRepo, redisClient, cfg.Catalog.CacheTTL, logger)
	}
	switch {
	case rateConfig.RequestsPerWindow <= 0 || rateConfig.Window <= 0:
		logger.Warn("Rate limiting disabled")
	case redisClient != nil:
		limiter = custommiddleware.NewRedisLimiter(redisClient, rateConfig)
	default:
		limiter = custommiddleware.NewLocalLimiter(rateConfig)
	}

	var publisher events.Publisher
	if cfg.Kafka.Enabled {
		writer := events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.BatchTimeout, logger)
		publisher = events.NewKafkaPublisher(writer, logger)
		logger.Info("Publishing order events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	} else {
		publisher = events.NewLogPublisher(logger)
	}

	router := NewRouter(cfg, logger, Dependencies{
		Users:         repository.NewUserRepository(sqlDB),
		RefreshTokens: repository.NewRefreshTokenRepository(sqlDB),
		Categories:    repository.NewCategoryRepository(sqlDB),
		Products:      productRepo,
		Carts:         repository.NewCartRepository(sqlDB),
		Orders:        repository.NewOrderRepository(sqlDB),
		Tx:            repository.NewTxManager(sqlDB),
		Publisher:     publisher,
		Limiter:       limiter,
		Health:        db.Health,
	})

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:    cfg,
		logger:    logger,
		db:        db,
		redis:     redisClient,
		publisher: publisher,
	}
}

// connectRedis returns nil when Redis is disabled or unreachable, in which
// case the catalog is served uncached and rate limits are kept in process
func connectRedis(cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, falling back to in-process rate limiting without catalog cache",
			zap.String("addr", client.Options().Addr),
			zap.Error(err),
		)
		_ = client.Close()
		return nil
	}
	return client
}

func rateLimitConfig(cfg *config.Config) custommiddleware.RateLimitConfig {
	return custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "rate_limit",
	}
}

// NewRouter wires services and handlers onto a chi router
func NewRouter(cfg *config.Config, logger *zap.Logger, deps Dependencies) http.Handler {
	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack(logger)...)
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))
	if deps.Limiter != nil {
		router.Use(custommiddleware.RateLimitMiddleware(deps.Limiter, rateLimitConfig(cfg), logger))
	}

	router.NotFound(custommiddleware.NotFoundHandler)
	router.MethodNotAllowed(custommiddleware.MethodNotAllowedHandler)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if deps.Health != nil {
			status = deps.Health()
			if status["status"] != "up" {
				custommiddleware.RespondWithJSON(w, http.StatusServiceUnavailable, status)
				return
			}
		}
		custommiddleware.RespondWithJSON(w, http.StatusOK, status)
	})

	userService := service.NewUserService(
		deps.Users,
		deps.RefreshTokens,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessExpiry)*time.Minute,
		time.Duration(cfg.JWT.RefreshExpiry)*24*time.Hour,
	)
	catalogService := service.NewCatalogService(deps.Categories, deps.Products)
	cartService := service.NewCartService(deps.Carts, deps.Products, deps.Tx, logger)
	checkoutService := service.NewCheckoutService(deps.Tx, deps.Publisher, logger)
	orderService := service.NewOrderService(deps.Orders, deps.Tx, deps.Publisher, cfg.Orders.StrictTransitions, logger)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)

	transport.NewUserHandler(userService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCatalogHandler(catalogService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCartHandler(cartService, checkoutService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, authMiddleware)

	return router
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			s.logger.Error("Failed to close event publisher", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	_ = s.logger.Sync()
	return nil
}
