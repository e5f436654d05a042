// middleware/logger/middleware.go
package logger

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/funcgate/funcgate-core/pkg/config"
	"go.uber.org/zap"
)

// Middleware logs one access line per request. Body logging is gated and
// truncated by the live logging configuration, re-read per request so a
// config reload takes effect without restart.
func (m *Middleware) Middleware(cfg *config.Holder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lc := cfg.Current().Logging
			if !lc.EnableRequestLogging {
				next.ServeHTTP(w, r)
				return
			}

			l := httpAccessLogger
			ww := chimd.NewWrapResponseWriter(w, r.ProtoMajor)

			// Read and RESTORE request body so downstream can consume it
			var body []byte
			if r.Body != nil {
				if b, err := io.ReadAll(r.Body); err == nil {
					body = b
				}
				r.Body.Close()
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			start := time.Now()
			defer func() {
				lat := time.Since(start)
				log := l.With(
					zap.String("requestId", chimd.GetReqID(r.Context())),
					zap.String("httpMethod", r.Method),
					zap.String("remoteAddr", r.RemoteAddr),
					zap.String("uri", r.URL.Path),
					zap.Duration("lat", lat),
					zap.Int("responseSize", ww.BytesWritten()),
					zap.Int("status", ww.Status()),
				)
				if lc.LogRequestBody && shouldLogBody(r, body) {
					log.Info("request", zap.String("requestData", truncate(body, lc.MaxBodySize)))
				} else {
					log.Info("request")
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Only small JSON request bodies get recorded.
func shouldLogBody(r *http.Request, body []byte) bool {
	if r.Method != http.MethodPost {
		return false
	}
	if len(body) == 0 || len(body) > 1<<16 { // 64 KiB cap
		return false
	}
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/json")
}

func truncate(body []byte, max int) string {
	if max > 0 && len(body) > max {
		return string(body[:max]) + "...[truncated]"
	}
	return string(body)
}
