package featured

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// MaxLatest is the hard cap on the latest shelf.
const MaxLatest = 12

// Example env config:
// FEATURED_LIMIT=12
// FEATURED_PAGE_SIZE=24
// FEATURED_SEARCH_LIMIT=8
// FEATURED_RELATED_LIMIT=6
// FEATURED_CACHE_TTL_SECONDS=30
// FEATURED_SHOW_LATEST=true
type Config struct {
	Limit        int
	PageSize     int
	SearchLimit  int
	RelatedLimit int
	CacheTTL     time.Duration
	ShowLatest   bool
}

func DefaultConfig() Config {
	return Config{
		Limit:        MaxLatest,
		PageSize:     24,
		SearchLimit:  8,
		RelatedLimit: 6,
		CacheTTL:     30 * time.Second,
		ShowLatest:   true,
	}
}

func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if n, ok := envInt("FEATURED_LIMIT"); ok {
		cfg.Limit = n
	}
	if n, ok := envInt("FEATURED_PAGE_SIZE"); ok {
		cfg.PageSize = n
	}
	if n, ok := envInt("FEATURED_SEARCH_LIMIT"); ok {
		cfg.SearchLimit = n
	}
	if n, ok := envInt("FEATURED_RELATED_LIMIT"); ok {
		cfg.RelatedLimit = n
	}
	if n, ok := envInt("FEATURED_CACHE_TTL_SECONDS"); ok {
		cfg.CacheTTL = time.Duration(n) * time.Second
	}
	if v := os.Getenv("FEATURED_SHOW_LATEST"); v != "" {
		cfg.ShowLatest = parseBool(v, cfg.ShowLatest)
	}

	return cfg.normalize()
}

func (c Config) normalize() Config {
	if c.Limit <= 0 || c.Limit > MaxLatest {
		c.Limit = MaxLatest
	}
	if c.PageSize <= 0 {
		c.PageSize = 24
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 8
	}
	if c.RelatedLimit <= 0 {
		c.RelatedLimit = 6
	}
	if c.CacheTTL < 0 {
		c.CacheTTL = 0
	}
	return c
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseIDs reads a comma separated id list, skipping blanks and garbage.
func ParseIDs(raw string) []int64 {
	parts := splitCSV(raw)
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil && id > 0 {
			out = append(out, id)
		}
	}
	return out
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
