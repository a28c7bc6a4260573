package ratelimit

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/TranslaFox/internal/pkg/cache"
	"github.com/ManuelReschke/TranslaFox/internal/pkg/env"
)

const (
	DefaultMax        = 120
	DefaultExpiration = time.Minute
	// Redis database for limiter counters; the cache uses DB 0.
	storageDatabase = 1
)

// NewStorage returns Redis-backed limiter storage derived from the cache
// client, or nil when the cache is unreachable so the limiter falls back to
// in-memory counters.
func NewStorage() fiber.Storage {
	cacheClient := cache.GetClient()
	if err := cacheClient.Ping(context.Background()).Err(); err != nil {
		log.Warnf("[RateLimit] Cache unreachable, using in-memory limiter: %v", err)
		return nil
	}
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")

	addr := cacheClient.Options().Addr
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	if p := cacheClient.Options().Password; p != "" {
		password = p
	}

	log.Infof("[RateLimit] Using redis storage at %s:%d db %d", host, port, storageDatabase)
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: storageDatabase,
		Reset:    false,
	})
}

// Config returns the limiter configuration for the API group. Max and window
// come from API_RATE_LIMIT and API_RATE_WINDOW_SECONDS.
func Config(storage fiber.Storage) limiter.Config {
	max := env.GetEnvInt("API_RATE_LIMIT", DefaultMax)
	if max <= 0 {
		max = DefaultMax
	}
	window := time.Duration(env.GetEnvInt("API_RATE_WINDOW_SECONDS", int(DefaultExpiration/time.Second))) * time.Second
	if window <= 0 {
		window = DefaultExpiration
	}
	return limiter.Config{
		Max:          max,
		Expiration:   window,
		KeyGenerator: KeyFor,
		Storage:      storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Too many requests",
			})
		},
	}
}

// New builds the API limiter middleware.
func New(storage fiber.Storage) fiber.Handler {
	return limiter.New(Config(storage))
}

// KeyFor counts requests per client IP. Keys are not trusted before
// authentication, so rotating invalid keys cannot reset the window.
func KeyFor(c *fiber.Ctx) string {
	return "ip:" + c.IP()
}
