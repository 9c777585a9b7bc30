// Package kernel assembles the HTTP handler: global middleware, the ops
// endpoints and the API routes.
package kernel

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/shashiranjanraj/catalog/app/controllers"
	"github.com/shashiranjanraj/catalog/app/routes"
	"github.com/shashiranjanraj/catalog/config"
	"github.com/shashiranjanraj/catalog/internal/app"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/metrics"
	"github.com/shashiranjanraj/catalog/pkg/middleware"
	"github.com/shashiranjanraj/catalog/pkg/reqid"
	"github.com/shashiranjanraj/catalog/pkg/response"
	"github.com/shashiranjanraj/catalog/pkg/router"
)

const healthTimeout = 2 * time.Second

// Handler builds the complete handler for a.
func Handler(a *app.App) http.Handler {
	r := router.New()

	// Global middleware stack, outermost first:
	//  1. Prometheus metrics
	//  2. Recovery
	//  3. Request ID, set before anything logs
	//  4. Logger
	//  5. CORS
	//  6. Rate limiter
	cors := middleware.DefaultCORSOptions()
	cors.AllowedOrigins = config.CORSOrigins()

	r.Use(metrics.Middleware())
	r.Use(middleware.Recovery)
	r.Use(reqid.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(cors))
	r.Use(middleware.RateLimit(a.Limiter))

	Routes(r, a)
	return r.Handler()
}

// Routes registers every endpoint on r. It only references a's components,
// so route:list can call it with an unconnected App.
func Routes(r *router.Router, a *app.App) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.NotFound(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/metrics", "metrics", metrics.Handler())
	r.Get("/health", "health", health(a))

	if root, ok := a.LocalRoot(); ok {
		if prefix := config.StorageURL(); strings.HasPrefix(prefix, "/") {
			r.Handle(prefix, "uploads", http.StripPrefix(prefix, storedFiles(root)))
		}
	}

	routes.RegisterAPI(r, routes.Controllers{
		Auth:       controllers.NewAuthController(a.Auth, config.CookieSecure()),
		Products:   controllers.NewProductController(a.Products, a.Imager),
		Favourites: controllers.NewFavouriteController(a.Favourites),
	}, a.Authn)
}

func health(a *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := a.Ping(ctx); err != nil {
			logger.WithCtx(r.Context()).Warn("health check failed", "error", err)
			response.Error(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		response.Success(w, map[string]string{"status": "ok", "db": a.DB.Driver})
	}
}

// storedFiles serves regular files under root. Directories and missing
// paths get the JSON 404, so stored filenames are never listed.
func storedFiles(root string) http.Handler {
	files := http.FileServer(http.Dir(root))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.FromSlash(path.Clean("/" + r.URL.Path))
		info, err := os.Stat(filepath.Join(root, name))
		if err != nil || !info.Mode().IsRegular() {
			response.NotFound(w)
			return
		}
		files.ServeHTTP(w, r)
	})
}
