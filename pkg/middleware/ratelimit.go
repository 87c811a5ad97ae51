package middleware

import (
	"net/http"

	"github.com/ulule/limiter/v3"
	stdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// NewIPRateLimiter returns middleware that limits requests per client IP
// using an in-memory store. rateFormatted follows limiter's format:
// "20-M", "1000-H", "5-S". An empty rate disables limiting.
func NewIPRateLimiter(rateFormatted string, logger *zap.Logger) (func(next http.Handler) http.Handler, error) {
	if rateFormatted == "" {
		return noopMiddleware, nil
	}
	rate, err := limiter.NewRateFromFormatted(rateFormatted)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(memory.NewStore(), rate)

	return stdlib.NewMiddleware(instance,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			if logger != nil {
				logger.Warn("Rate limit reached",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr))
			}
			http.Error(w, "Too many attempts. Please wait a minute and try again.", http.StatusTooManyRequests)
		}),
	).Handler, nil
}

func noopMiddleware(next http.Handler) http.Handler {
	return next
}
