package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"reelstream/internal/auth"
	"reelstream/internal/catalog"
	"reelstream/internal/db"
	"reelstream/internal/featured"
	"reelstream/internal/settings"
	pgdb "reelstream/pkg/db"
	"reelstream/pkg/logger"
)

type config struct {
	Port            string
	AppSecret       string
	AdminUser       string
	AdminPass       string
	AdminPassHash   string
	MetricsToken    string
	CatalogBase     string
	CatalogTimeout  time.Duration
	CatalogCacheTTL time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SettingsBackend string
	DatabaseURL     string
	ScyllaHosts     []string
	ScyllaPort      int
	Keyspace        string
	Consistency     string
	Replication     int
	LatestSeed      []int64
	Placeholder     string
	LogLevel        string
}

func loadConfig() (config, error) {
	hosts := strings.Split(os.Getenv("SCYLLA_HOSTS"), ",")
	for i := range hosts {
		hosts[i] = strings.TrimSpace(hosts[i])
	}
	cfg := config{
		Port:            envDefault("API_PORT", envDefault("PORT", "8080")),
		AppSecret:       os.Getenv("APP_SECRET"),
		AdminUser:       envDefault("ADMIN_USER", "admin"),
		AdminPass:       os.Getenv("ADMIN_PASSWORD"),
		AdminPassHash:   os.Getenv("ADMIN_PASSWORD_HASH"),
		MetricsToken:    os.Getenv("METRICS_TOKEN"),
		CatalogBase:     os.Getenv("CATALOG_BASE_URL"),
		CatalogTimeout:  envDefaultDuration("CATALOG_TIMEOUT", 15*time.Second),
		CatalogCacheTTL: envDefaultDuration("CATALOG_CACHE_TTL", time.Minute),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         envDefaultInt("REDIS_DB", 0),
		SettingsBackend: strings.ToLower(envDefault("SETTINGS_BACKEND", "postgres")),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ScyllaHosts:     hosts,
		ScyllaPort:      envDefaultInt("SCYLLA_PORT", 9042),
		Keyspace:        envDefault("SCYLLA_KEYSPACE", "reelstream"),
		Consistency:     envDefault("SCYLLA_CONSISTENCY", "QUORUM"),
		Replication:     envDefaultInt("SCYLLA_RF", 3),
		LatestSeed:      featured.ParseIDs(os.Getenv("LATEST_SEED_IDS")),
		Placeholder:     envDefault("POSTER_PLACEHOLDER", "/static/placeholder.png"),
		LogLevel:        envDefault("LOG_LEVEL", "info"),
	}
	if cfg.AppSecret == "" {
		return cfg, fmt.Errorf("APP_SECRET is required")
	}
	if cfg.CatalogBase == "" {
		return cfg, fmt.Errorf("CATALOG_BASE_URL is required")
	}
	switch cfg.SettingsBackend {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for the postgres settings backend")
		}
	case "scylla":
		if len(cfg.ScyllaHosts) == 0 || cfg.ScyllaHosts[0] == "" {
			return cfg, fmt.Errorf("SCYLLA_HOSTS is required for the scylla settings backend")
		}
	case "memory":
	default:
		return cfg, fmt.Errorf("unknown SETTINGS_BACKEND %q", cfg.SettingsBackend)
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	log := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openSettingsStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("settings store not ready")
	}
	defer closeStore()

	catalogOpts := []catalog.Option{
		catalog.WithHTTPClient(&http.Client{Timeout: cfg.CatalogTimeout}),
		catalog.WithLogger(log.With().Str("component", "catalog").Logger()),
	}
	if cfg.RedisAddr != "" {
		rc, err := catalog.NewRedisCache(ctx, catalog.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-memory catalog cache")
			catalogOpts = append(catalogOpts, catalog.WithCache(catalog.NewMemoryCache(), cfg.CatalogCacheTTL))
		} else {
			defer rc.Close()
			catalogOpts = append(catalogOpts, catalog.WithCache(rc, cfg.CatalogCacheTTL))
		}
	} else {
		catalogOpts = append(catalogOpts, catalog.WithCache(catalog.NewMemoryCache(), cfg.CatalogCacheTTL))
	}
	movies := catalog.New(cfg.CatalogBase, catalogOpts...)

	authSvc, err := auth.NewService(cfg.AppSecret, cfg.AdminUser, cfg.AdminPass, cfg.AdminPassHash)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid admin credentials")
	}
	if cfg.AdminPass == "" && cfg.AdminPassHash == "" {
		log.Warn().Msg("no admin password configured, admin routes are unreachable")
	}

	shelfCfg := featured.LoadConfigFromEnv()
	a := &app{
		log:          log,
		movies:       movies,
		store:        store,
		latest:       featured.NewSelection(store, shelfCfg.Limit, log),
		shelf:        featured.NewService(movies, store, shelfCfg),
		auth:         authSvc,
		metricsToken: cfg.MetricsToken,
		placeholder:  cfg.Placeholder,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", cfg.Port).Str("settings", cfg.SettingsBackend).Msg("api listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// openSettingsStore connects the configured backend, retrying while the
// database comes up.
func openSettingsStore(ctx context.Context, cfg config, log zerolog.Logger) (settings.Store, func(), error) {
	switch cfg.SettingsBackend {
	case "memory":
		return settings.NewMemory(cfg.LatestSeed...), func() {}, nil
	case "scylla":
		for i := 0; i < 20; i++ {
			s, err := db.Connect(db.ScyllaConfig{
				Hosts:       cfg.ScyllaHosts,
				Port:        cfg.ScyllaPort,
				Keyspace:    cfg.Keyspace,
				Consistency: cfg.Consistency,
				Replication: cfg.Replication,
			}, log)
			if err != nil {
				log.Warn().Err(err).Int("attempt", i+1).Msg("scylla connect retry")
				if !sleepCtx(ctx, 5*time.Second) {
					return nil, nil, ctx.Err()
				}
				continue
			}
			if err := db.EnsureSchema(s, cfg.Keyspace); err != nil {
				s.Close()
				log.Warn().Err(err).Int("attempt", i+1).Msg("ensure schema retry")
				if !sleepCtx(ctx, 5*time.Second) {
					return nil, nil, ctx.Err()
				}
				continue
			}
			return settings.NewScylla(s, cfg.Keyspace), s.Close, nil
		}
		return nil, nil, errors.New("scylla not ready after retries")
	default:
		for i := 0; i < 20; i++ {
			pool, err := pgdb.Connect(ctx, cfg.DatabaseURL)
			if err == nil {
				err = pgdb.EnsureSettingsSchema(ctx, pool)
				if err != nil {
					pool.Close()
				}
			}
			if err != nil {
				log.Warn().Err(err).Int("attempt", i+1).Msg("postgres connect retry")
				if !sleepCtx(ctx, 5*time.Second) {
					return nil, nil, ctx.Err()
				}
				continue
			}
			return settings.NewPostgres(pool), pool.Close, nil
		}
		return nil, nil, errors.New("postgres not ready after retries")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func envDefault(key, val string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return val
}

func envDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		if _, err := fmt.Sscanf(v, "%d", &out); err == nil {
			return out
		}
	}
	return def
}

// envDefaultDuration accepts "15s" style durations or plain seconds.
func envDefaultDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
