package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"reelstream/internal/auth"
	"reelstream/internal/catalog"
	"reelstream/internal/featured"
	"reelstream/internal/settings"
	tokenauth "reelstream/pkg/auth"
)

// gateway is the part of the catalog client the handlers use.
type gateway interface {
	List(ctx context.Context) ([]catalog.Movie, error)
	Get(ctx context.Context, id int64) (catalog.Movie, error)
}

type app struct {
	log          zerolog.Logger
	movies       gateway
	store        settings.Store
	latest       *featured.Selection
	shelf        *featured.Service
	auth         *auth.Service
	metricsToken string
	placeholder  string
	loginLimit   int
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(a.log), middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.With(tokenauth.TokenMiddleware(a.metricsToken)).Handle("/metrics", promhttp.Handler())

	limit := a.loginLimit
	if limit <= 0 {
		limit = 10
	}
	r.With(loginRateLimit(limit, time.Minute)).Post("/auth/login", handleLogin(a.auth))
	r.Post("/auth/refresh", handleRefresh(a.auth))

	cfg := a.shelf.Config()
	r.Get("/movies", handleListMovies(a.movies, cfg))
	r.Get("/movies/{id}", handleGetMovie(a.movies, a.placeholder))
	r.Get("/movies/{id}/sources", handleSources(a.movies))
	r.Get("/movies/{id}/related", handleRelated(a.movies, cfg.RelatedLimit))
	r.Get("/home", handleHome(a.shelf))
	r.Get("/latest", handleLatest(a.shelf))

	r.Group(func(r chi.Router) {
		r.Use(a.auth.RequireRole(auth.RoleAdmin))
		r.Get("/api/admin/settings", handleGetSettings(a.store))
		r.Post("/api/admin/settings", handlePostSettings(a.store, a.latest, a.shelf, a.log))
		r.Post("/admin/latest/{id}", handleAddLatest(a.latest, a.shelf))
		r.Delete("/admin/latest/{id}", handleRemoveLatest(a.latest, a.shelf))
		r.Get("/admin/movies", handleAvailable(a.latest, a.shelf))
	})
	return r
}

func loginRateLimit(n int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		n,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			errorJSON(w, http.StatusTooManyRequests, "too many login attempts")
		}),
	)
}

// requestLogger logs one line per request after chi has assigned its id.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())
			reqLog := log.With().Str("request_id", reqID).Logger()
			r = r.WithContext(reqLog.WithContext(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := reqLog.Info()
			if status >= 500 {
				ev = reqLog.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
