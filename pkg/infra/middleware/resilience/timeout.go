package resilience

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/codequery/pkg/errors"
	"github.com/kart-io/codequery/pkg/infra/middleware/internal/pathutil"
	mwopts "github.com/kart-io/codequery/pkg/options/middleware"
	"github.com/kart-io/codequery/pkg/utils/response"
)

// Timeout returns a middleware that limits request processing time.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	opts := mwopts.NewTimeoutOptions()
	opts.Timeout = timeout
	return TimeoutWithOptions(*opts)
}

// TimeoutWithOptions returns a Timeout middleware with custom options.
// 这是推荐的构造函数，直接使用 pkg/options/middleware.TimeoutOptions。
func TimeoutWithOptions(opts mwopts.TimeoutOptions) gin.HandlerFunc {
	if opts.Timeout <= 0 {
		opts.Timeout = mwopts.NewTimeoutOptions().Timeout
	}

	pathMatcher := pathutil.NewPathMatcher(opts.SkipPaths, nil)

	return func(c *gin.Context) {
		if pathMatcher(c.Request.URL.Path) {
			c.Next()
			return
		}

		// Propagate cancellation to downstream handlers.
		ctx, cancel := context.WithTimeout(c.Request.Context(), opts.Timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		// Buffered so the handler goroutine can always finish its send.
		done := make(chan struct{}, 1)

		go func() {
			defer func() {
				if r := recover(); r != nil {
					logTimeoutPanic(r, c.Request.URL.Path)
				}
				done <- struct{}{}
			}()

			c.Next()
		}()

		select {
		case <-done:
			// Request completed before the deadline.
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
				response.Fail(c, errors.ErrHandlerTimeout)
			}
			c.Abort()
		}
	}
}

// logTimeoutPanic logs panic information with stack trace for debugging.
func logTimeoutPanic(r interface{}, path string) {
	stack := debug.Stack()
	logger.Errorw("panic recovered in timeout middleware",
		"panic", fmt.Sprintf("%v", r),
		"path", path,
		"stack", string(stack),
	)
}
