package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	headerAdminKey      = "X-Admin-Key"
	headerServiceKey    = "X-Service-Key"
	headerOwnerToken    = "X-Owner-Token"
	headerAuthorization = "Authorization"

	limiterIdleTTL = 10 * time.Minute
)

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			"Content-Type",
			headerAuthorization,
			headerAdminKey,
			headerServiceKey,
			headerOwnerToken,
		},
		MaxAge: 12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// RateLimitConfig bounds how often one client may create records.
// A zero PerMinute disables limiting.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// clientLimiter hands out one token bucket per client IP and forgets idle clients.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*clientBucket
	clock   func() time.Time
	sweptAt time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(cfg RateLimitConfig, clock func() time.Time) *clientLimiter {
	if cfg.PerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if clock == nil {
		clock = time.Now
	}
	return &clientLimiter{
		limit:   rate.Every(time.Minute / time.Duration(cfg.PerMinute)),
		burst:   burst,
		clients: make(map[string]*clientBucket),
		clock:   clock,
		sweptAt: clock(),
	}
}

func (l *clientLimiter) allow(clientKey string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if now.Sub(l.sweptAt) > limiterIdleTTL {
		for key, bucket := range l.clients {
			if now.Sub(bucket.lastSeen) > limiterIdleTTL {
				delete(l.clients, key)
			}
		}
		l.sweptAt = now
	}

	bucket, ok := l.clients[clientKey]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[clientKey] = bucket
	}
	bucket.lastSeen = now
	return bucket.limiter.AllowN(now, 1)
}

func (l *clientLimiter) middleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		if !l.allow(c.ClientIP()) {
			logger.Info("rate limit exceeded", zap.String("client_ip", c.ClientIP()), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": errorRateLimited})
			return
		}
		c.Next()
	}
}

func serviceCredential(c *gin.Context) string {
	if key := c.GetHeader(headerServiceKey); key != "" {
		return key
	}
	return c.GetHeader(headerAuthorization)
}
