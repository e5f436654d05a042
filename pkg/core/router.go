// core/router.go
package core

import (
	"net/http"

	chimd "github.com/go-chi/chi/v5/middleware"

	"github.com/funcgate/funcgate-core/pkg/config"
	"github.com/funcgate/funcgate-core/pkg/middleware/logger"
	hmetrics "github.com/funcgate/funcgate-core/pkg/middleware/metrics"
	httpx "github.com/funcgate/funcgate-core/pkg/transport/httpx"
)

type BuildDeps struct {
	Cfg     *config.Holder
	LogMW   *logger.Middleware
	Metrics http.Handler
	Router  httpx.Router
}

// BuildRouter assembles the full route table. Admin routes are registered
// before the dynamic wildcard so they always win resolution.
func BuildRouter(d *Dispatcher, deps BuildDeps) http.Handler {
	r := deps.Router
	r.Use(chimd.RequestID, chimd.Recoverer)
	if deps.LogMW != nil {
		r.Use(deps.LogMW.Middleware(deps.Cfg))
	}
	r.Use(hmetrics.Collect())

	r.Handle(http.MethodGet, "/metrics", deps.Metrics)

	r.Get("/", http.HandlerFunc(d.HandleStatus))

	r.Get("/api/reload", http.HandlerFunc(d.HandleReload))
	r.Post("/api/reload", http.HandlerFunc(d.HandleReload))
	r.Get("/api/reload-config", http.HandlerFunc(d.HandleReloadConfig))
	r.Post("/api/reload-config", http.HandlerFunc(d.HandleReloadConfig))

	r.Get("/{module}/{function}", http.HandlerFunc(d.HandleDynamic))
	r.Post("/{module}/{function}", http.HandlerFunc(d.HandleDynamic))

	return r.Mux()
}
