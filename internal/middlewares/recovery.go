package middlewares

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/onlinecourse/backend/internal/logger"
	"go.uber.org/zap"
)

// RecoveryMiddleware recovers from panics, logs them and reports them to Rollbar
func RecoveryMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					requestID := GetRequestID(r.Context())
					log.Error("panic recovered",
						zap.String("request_id", requestID),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Any("error", err),
						zap.ByteString("stack", debug.Stack()),
					)
					logger.ReportPanic(err, map[string]any{
						"request_id": requestID,
						"method":     r.Method,
						"path":       r.URL.Path,
					})

					body := map[string]string{"error": "internal server error"}
					if requestID != "" {
						body["requestId"] = requestID
					}
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(body)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
