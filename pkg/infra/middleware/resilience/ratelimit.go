package resilience

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"

	"github.com/kart-io/codequery/pkg/errors"
	"github.com/kart-io/codequery/pkg/infra/middleware/internal/pathutil"
	"github.com/kart-io/codequery/pkg/infra/pool"
	mwopts "github.com/kart-io/codequery/pkg/options/middleware"
	"github.com/kart-io/codequery/pkg/utils/response"
)

// RateLimiter defines the interface for rate limiting implementations.
type RateLimiter interface {
	// Allow checks if a request with the given key is allowed.
	// Returns true if allowed, false if rate limit exceeded.
	Allow(ctx context.Context, key string) (bool, error)

	// Reset resets the rate limit counter for the given key.
	Reset(ctx context.Context, key string) error
}

// RateLimitConfig defines the config for the RateLimit middleware.
type RateLimitConfig struct {
	// Limit is the maximum number of requests allowed within the window.
	Limit int

	// Window is the rate limiting time window.
	Window time.Duration

	// SkipPaths is a list of paths to skip rate limiting.
	SkipPaths []string

	// KeyFunc extracts the rate limit key from the request.
	// Defaults to the client IP.
	KeyFunc func(c *gin.Context) string

	// OnLimitReached is called when the rate limit is exceeded.
	// Defaults to writing a 429 error response.
	OnLimitReached func(c *gin.Context)

	// Limiter is the rate limiter implementation.
	// Defaults to a memory limiter built from Limit and Window.
	Limiter RateLimiter
}

// RateLimit returns a rate limiting middleware with default configuration.
func RateLimit() gin.HandlerFunc {
	opts := mwopts.NewRateLimitOptions()
	limiter := NewMemoryRateLimiter(opts.Limit, opts.GetWindow())
	return RateLimitWithOptions(*opts, limiter)
}

// RateLimitWithConfig returns a rate limiting middleware with custom config.
func RateLimitWithConfig(config RateLimitConfig) gin.HandlerFunc {
	if config.Limit == 0 {
		config.Limit = mwopts.NewRateLimitOptions().Limit
	}
	if config.Window == 0 {
		config.Window = mwopts.NewRateLimitOptions().GetWindow()
	}
	if config.Limiter == nil {
		config.Limiter = NewMemoryRateLimiter(config.Limit, config.Window)
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string {
			return getRemoteIP(c.Request)
		}
	}
	if config.OnLimitReached == nil {
		config.OnLimitReached = handleRateLimitExceeded
	}

	pathMatcher := pathutil.NewPathMatcher(config.SkipPaths, nil)

	return func(c *gin.Context) {
		if pathMatcher(c.Request.URL.Path) {
			c.Next()
			return
		}

		key := config.KeyFunc(c)
		if key == "" {
			key = getRemoteIP(c.Request)
		}

		allowed, err := config.Limiter.Allow(c.Request.Context(), key)
		if err != nil {
			// Fail open so limiter outages do not take the service down.
			logRateLimitError(err, key)
			c.Next()
			return
		}

		if !allowed {
			config.OnLimitReached(c)
			return
		}

		c.Next()
	}
}

// RateLimitWithOptions returns a rate limiting middleware with custom options.
// 这是推荐的 API，使用纯配置选项和运行时依赖注入。
//
// 参数：
//   - opts: RateLimit 配置选项（纯配置，可 JSON 序列化）
//   - limiter: 限流器实现（运行时依赖注入）
//
// 示例：
//
//	opts := mwopts.NewRateLimitOptions()
//	opts.Limit = 200
//	limiter := resilience.NewMemoryRateLimiter(opts.Limit, opts.GetWindow())
//	middleware.RateLimitWithOptions(*opts, limiter)
func RateLimitWithOptions(opts mwopts.RateLimitOptions, limiter RateLimiter) gin.HandlerFunc {
	return RateLimitWithConfig(RateLimitConfig{
		Limit:     opts.Limit,
		Window:    opts.GetWindow(),
		SkipPaths: opts.SkipPaths,
		KeyFunc: func(c *gin.Context) string {
			return extractClientIP(c, opts)
		},
		Limiter: limiter,
	})
}

// ============================================================================
// Key Extraction
// ============================================================================

// extractClientIP extracts the real client IP from the request.
// It only trusts proxy headers (X-Forwarded-For, X-Real-IP) when:
// 1. TrustProxyHeaders is enabled in opts
// 2. The request comes from a trusted proxy IP/CIDR
// This prevents IP spoofing attacks via forged headers.
func extractClientIP(c *gin.Context, opts mwopts.RateLimitOptions) string {
	req := c.Request
	remoteIP := getRemoteIP(req)

	if opts.TrustProxyHeaders && isTrustedProxy(remoteIP, opts.TrustedProxies) {
		// X-Forwarded-For can contain multiple IPs (client, proxy1, proxy2, ...).
		// The first entry is the original client.
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			ips := strings.Split(xff, ",")
			if len(ips) > 0 {
				ip := strings.TrimSpace(ips[0])
				if isValidIP(ip) {
					return ip
				}
			}
		}

		if xri := req.Header.Get("X-Real-IP"); xri != "" {
			xri = strings.TrimSpace(xri)
			if isValidIP(xri) {
				return xri
			}
		}
	}

	// Fall back to the directly connected address, which cannot be spoofed.
	return remoteIP
}

// getRemoteIP extracts the IP address from http.Request.RemoteAddr.
// RemoteAddr is in the form "IP:port", so we need to split it.
func getRemoteIP(req *http.Request) string {
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return ip
}

// isTrustedProxy checks if the given IP is in the list of trusted proxies.
// Supports both individual IPs and CIDR ranges.
func isTrustedProxy(ip string, trustedCIDRs []string) bool {
	if len(trustedCIDRs) == 0 {
		return false
	}

	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, cidr := range trustedCIDRs {
		if !strings.Contains(cidr, "/") {
			if cidr == ip {
				return true
			}
			continue
		}

		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			logger.Warnw("invalid CIDR in trusted proxies",
				"cidr", cidr,
				"error", err.Error(),
			)
			continue
		}

		if network.Contains(parsedIP) {
			return true
		}
	}

	return false
}

// isValidIP validates that the given string is a valid IP address.
// This prevents injection of invalid data into rate limiting keys.
func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}

// ============================================================================
// Response Handling
// ============================================================================

// handleRateLimitExceeded handles the case when rate limit is exceeded.
func handleRateLimitExceeded(c *gin.Context) {
	response.Fail(c, errors.ErrTooManyRequests)
	c.Abort()
}

// logRateLimitError logs rate limiter errors.
func logRateLimitError(err error, key string) {
	logger.Errorw("rate limiter error",
		"error", err.Error(),
		"key", key,
	)
}

// ============================================================================
// Memory Rate Limiter Implementation
// ============================================================================

// MemoryRateLimiter implements rate limiting using in-memory storage.
// It uses a fixed window counter per key with periodic cleanup of idle keys.
type MemoryRateLimiter struct {
	limit  int
	window time.Duration
	store  *sync.Map
	// cleanup goroutine cancellation
	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

// rateLimitEntry 存储单个键的限流数据（固定窗口计数器方案）
type rateLimitEntry struct {
	count       int        // 当前窗口内的请求计数
	windowStart time.Time  // 窗口起始时间
	mu          sync.Mutex // 保护并发访问
}

// NewMemoryRateLimiter 创建基于内存的限流器
func NewMemoryRateLimiter(limit int, window time.Duration) *MemoryRateLimiter {
	limiter := &MemoryRateLimiter{
		limit:       limit,
		window:      window,
		store:       &sync.Map{},
		stopCleanup: make(chan struct{}),
	}

	// 使用 ants 池提交清理任务，而非直接创建 goroutine
	if err := pool.SubmitToType(pool.BackgroundPool, func() {
		limiter.cleanupExpiredEntries()
	}); err != nil {
		// 池不可用时降级为直接启动 goroutine
		go limiter.cleanupExpiredEntries()
	}

	return limiter
}

// Allow 检查给定键的请求是否被允许（固定窗口计数器方案）
func (m *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := time.Now()

	value, _ := m.store.LoadOrStore(key, &rateLimitEntry{
		count:       0,
		windowStart: now,
	})

	entry := value.(*rateLimitEntry)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	// 窗口过期则重置计数器
	if now.Sub(entry.windowStart) >= m.window {
		entry.windowStart = now
		entry.count = 0
	}

	if entry.count >= m.limit {
		return false, nil
	}

	entry.count++

	return true, nil
}

// Reset resets the rate limit counter for the given key.
func (m *MemoryRateLimiter) Reset(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

// Stop stops the cleanup goroutine.
func (m *MemoryRateLimiter) Stop() {
	m.cleanupOnce.Do(func() {
		close(m.stopCleanup)
	})
}

// cleanupExpiredEntries periodically removes expired entries from memory.
func (m *MemoryRateLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(m.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performCleanup()
		case <-m.stopCleanup:
			return
		}
	}
}

// performCleanup 清理过期的限流条目
func (m *MemoryRateLimiter) performCleanup() {
	now := time.Now()

	m.store.Range(func(key, value interface{}) bool {
		entry := value.(*rateLimitEntry)
		entry.mu.Lock()
		windowStart := entry.windowStart
		entry.mu.Unlock()

		// 删除超过两个窗口周期未活动的条目
		if now.Sub(windowStart) > m.window*2 {
			m.store.Delete(key)
		}
		return true
	})
}

// ============================================================================
// Redis Rate Limiter Implementation
// ============================================================================

// RedisRateLimiter implements rate limiting using Redis.
// It uses Redis sorted sets for accurate sliding window rate limiting,
// so multiple instances share a single quota per key.
type RedisRateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client *redis.Client, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
	}
}

// Allow checks if a request with the given key is allowed using Redis.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now()
	redisKey := r.prefix + key

	// Sliding window over a sorted set: score is the request timestamp.
	pipe := r.client.Pipeline()

	minScore := float64(now.Add(-r.window).UnixNano())
	pipe.ZRemRangeByScore(ctx, redisKey, "0", fmt.Sprintf("%.0f", minScore))

	countCmd := pipe.ZCard(ctx, redisKey)

	score := float64(now.UnixNano())
	member := fmt.Sprintf("%d", now.UnixNano())
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: score, Member: member})

	pipe.Expire(ctx, redisKey, r.window*2)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis pipeline error: %w", err)
	}

	count := countCmd.Val()
	if count >= int64(r.limit) {
		return false, nil
	}

	return true, nil
}

// Reset resets the rate limit counter for the given key in Redis.
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
