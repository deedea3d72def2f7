package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/agendasync/agendasync/handlers"
	"github.com/agendasync/agendasync/internal/calendar"
	"github.com/agendasync/agendasync/internal/config"
	"github.com/agendasync/agendasync/internal/database"
	"github.com/agendasync/agendasync/internal/identities"
	"github.com/agendasync/agendasync/internal/oauth"
	"github.com/agendasync/agendasync/internal/password"
	"github.com/agendasync/agendasync/internal/reconcile"
	"github.com/agendasync/agendasync/internal/sessions"
	"github.com/agendasync/agendasync/pkg/logger"
	"github.com/agendasync/agendasync/pkg/metrics"
	"github.com/agendasync/agendasync/pkg/middleware"
)

var startTime = time.Now()

func main() {
	// logging verbosity is controlled with LOG_LEVEL: debug|info|warn|error|fatal
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Infof("config loaded: google=%v mongo=%v redis=%v", cfg.Google.ClientID != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "")

	ctx := context.Background()

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// Lightweight CORS middleware for dev/test: set common headers and
	// respond to OPTIONS. Production should use a stricter policy.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	})

	// Connect to Redis early so both sessions and the rate limiter can use it
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			redisClient = nil
		} else {
			logger.Infof("connected to Redis at %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// Optional global rate limiter (per-identity when authenticated, otherwise per-IP)
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && redisClient != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			r.Use(middleware.RedisRateLimitMiddleware(redisClient, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			r.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}

	// MongoDB holds the identities; sessions prefer Redis when available
	var identityRepo identities.Repository
	var sessionRepo sessions.Repository
	var mongoOK bool

	if cfg.MongoDB.URI != "" {
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
		if err != nil {
			logger.Fatalf("could not connect to MongoDB: %v", err)
		}
		defer func() { _ = client.Disconnect(ctx) }()
		mongoOK = true

		identityCol := client.Database(cfg.MongoDB.Database).Collection("identities")
		if err := identities.EnsureIndexes(ctx, identityCol); err != nil {
			logger.Fatalf("failed to create identity indexes: %v", err)
		}
		identityRepo = identities.NewMongoRepository(identityCol)

		if redisClient == nil {
			sessionRepo = sessions.NewMongoRepository(client.Database(cfg.MongoDB.Database).Collection("sessions"))
		}
	} else {
		logger.Warnf("MONGODB_URI not set; using in-memory identity store (data is lost on restart)")
		identityRepo = identities.NewMemoryRepository()
	}

	if redisClient != nil {
		sessionRepo = sessions.NewRedisRepository(redisClient, "session:")
		logger.Infof("using Redis for session storage")
	}
	if sessionRepo == nil {
		logger.Fatalf("no session store available: configure REDIS_HOST or MONGODB_URI")
	}

	manager := sessions.NewManager(sessionRepo, identityRepo, cfg.Session.TTL)
	passwordSvc := password.NewService(identityRepo)
	reconciler := reconcile.NewService(identityRepo)

	// The Google provider is optional: without credentials the service still
	// offers local registration and login.
	var provider *oauth.GoogleProvider
	if cfg.Google.ClientID != "" && cfg.Google.ClientSecret != "" {
		provider, err = oauth.NewGoogle(ctx, cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
		if err != nil {
			logger.Fatalf("failed to initialize Google OAuth provider: %v", err)
		}
	}

	root := r.Group("/")
	if provider != nil {
		handlers.NewAuthHandler(cfg, passwordSvc, reconciler, manager, provider).Register(root)
		handlers.NewEventsHandler(provider, calendar.NewClient("")).Register(root, manager)
	} else {
		handlers.NewAuthHandler(cfg, passwordSvc, reconciler, manager, nil).Register(root)
		logger.Warnf("Google OAuth disabled: /auth/google and /calendar/events are not registered")
	}
	handlers.RegisterSwagger(r)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ready := true
		deps := map[string]bool{
			"sessions": sessionRepo != nil,
			"oauth":    provider != nil || cfg.Google.ClientID == "",
		}
		if cfg.MongoDB.URI != "" {
			deps["mongodb"] = mongoOK
			if !mongoOK {
				ready = false
			}
		}
		if cfg.Redis.Host != "" {
			deps["redis"] = redisClient != nil && redisClient.Ping(c.Request.Context()).Err() == nil
			if !deps["redis"] {
				ready = false
			}
		}
		status := http.StatusOK
		label := "ready"
		if !ready {
			status = http.StatusServiceUnavailable
			label = "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Infof("starting agendasync on %s", addr)
	if err := r.Run(addr); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
