// source-checker periodically probes every video link in the catalog and
// reports the ones that stopped answering.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"reelstream/internal/assets"
	"reelstream/internal/catalog"
	"reelstream/internal/featured"
	"reelstream/internal/metrics"
	"reelstream/internal/watch"
	"reelstream/pkg/logger"
)

type config struct {
	CatalogBase string
	Interval    time.Duration
	Timeout     time.Duration
	Concurrent  int
	MetricsAddr string
}

func loadConfig() (config, error) {
	interval, _ := time.ParseDuration(getenv("CHECK_INTERVAL", "10m"))
	timeout, _ := time.ParseDuration(getenv("CHECK_TIMEOUT", "5s"))
	cfg := config{
		CatalogBase: os.Getenv("CATALOG_BASE_URL"),
		Interval:    interval,
		Timeout:     timeout,
		Concurrent:  atoiDefault(os.Getenv("CHECK_CONCURRENCY"), 8),
		MetricsAddr: os.Getenv("CHECK_METRICS_ADDR"),
	}
	if cfg.CatalogBase == "" {
		return cfg, fmt.Errorf("CATALOG_BASE_URL required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Concurrent <= 0 {
		cfg.Concurrent = 8
	}
	return cfg, nil
}

// result is one probed source.
type result struct {
	MovieID int64
	Title   string
	Quality assets.Quality
	URL     string
	Status  int
	Err     error
}

func (r result) outcome() string {
	switch {
	case r.Err != nil:
		return "error"
	case r.Status >= 200 && r.Status < 400:
		return "up"
	default:
		return "down"
	}
}

func main() {
	log := logger.New(getenv("LOG_LEVEL", "info"))
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics listener stopped")
			}
		}()
		defer srv.Close()
	}

	client := &http.Client{Timeout: cfg.Timeout}
	movies := catalog.New(cfg.CatalogBase, catalog.WithLogger(log))
	probe := watch.HeadProbe(client)
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		runChecks(ctx, movies, probe, cfg.Concurrent, log)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runChecks probes every variant of every movie, at most concurrent at a time.
func runChecks(ctx context.Context, movies featured.Lister, probe watch.ProbeFunc, concurrent int, log zerolog.Logger) []result {
	all, err := movies.List(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list movies")
		return nil
	}
	var (
		mu      sync.Mutex
		results []result
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, concurrent)
	for _, m := range all {
		for _, v := range assets.Resolve(m) {
			wg.Add(1)
			sem <- struct{}{}
			go func(m catalog.Movie, v assets.Variant) {
				defer wg.Done()
				defer func() { <-sem }()
				status, err := probe(ctx, v.URL)
				r := result{MovieID: m.ID, Title: m.Title, Quality: v.Quality, URL: v.URL, Status: status, Err: err}
				metrics.SourceCheckTotal.WithLabelValues(v.Quality.String(), r.outcome()).Inc()
				if r.outcome() != "up" {
					log.Warn().Err(err).Int64("movie", m.ID).Str("quality", v.Quality.String()).Int("status", status).Msg("source unreachable")
				}
				mu.Lock()
				results = append(results, r)
				mu.Unlock()
			}(m, v)
		}
	}
	wg.Wait()
	log.Info().Int("movies", len(all)).Int("sources", len(results)).Msg("source sweep done")
	return results
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoiDefault(v string, def int) int {
	if v == "" {
		return def
	}
	var out int
	_, err := fmt.Sscanf(v, "%d", &out)
	if err != nil {
		return def
	}
	return out
}
