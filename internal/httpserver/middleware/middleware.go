package middleware

import (
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/promptforge/tally/internal/config"
	"github.com/promptforge/tally/internal/observability"
)

// Middleware wraps an http.Handler with additional functionality.
// Middlewares can be composed using the Chain function.
type Middleware func(http.Handler) http.Handler

// Chain composes multiple middlewares into a single middleware.
// Middlewares are applied in the order they are provided, with the first
// middleware being the outermost wrapper (executed first on request).
func Chain(middlewares ...Middleware) Middleware {
	return func(final http.Handler) http.Handler {
		// Apply in reverse order so first middleware wraps outermost.
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// BuildMiddlewareChain composes the middleware chain for production.
// Order matters: CORS -> Trace.
func BuildMiddlewareChain(corsConfig *config.CORSConfig) Middleware {
	return Chain(
		CORS(corsConfig),
		Trace(),
	)
}

// CORS creates a middleware that handles Cross-Origin Resource Sharing (CORS)
// using the github.com/rs/cors library.
func CORS(cfg *config.CORSConfig) Middleware {
	if cfg == nil {
		// Return no-op middleware if config is nil.
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	})

	return func(next http.Handler) http.Handler {
		return c.Handler(next)
	}
}

// Trace creates a middleware that injects trace ID and request ID into every request.
func Trace() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			traceID := observability.GenerateTraceID()
			ctx = observability.WithTraceID(ctx, traceID)

			spanID := observability.GenerateSpanID()
			ctx = observability.WithSpanID(ctx, spanID)

			requestID := observability.GenerateRequestID()
			ctx = observability.WithRequestID(ctx, requestID)

			w.Header().Set("X-Trace-Id", traceID)
			w.Header().Set("X-Request-Id", requestID)

			contextLogger := observability.FromContext(ctx)
			contextLogger.Info("request started",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
