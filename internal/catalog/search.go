package catalog

import (
	"math/rand"
	"strings"
)

// Search filters movies whose title or details contain query, case
// insensitive. A blank query returns nil.
func Search(movies []Movie, query string, limit int) []Movie {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	if limit <= 0 {
		limit = 8
	}
	out := make([]Movie, 0, limit)
	for _, m := range movies {
		if strings.Contains(strings.ToLower(m.Title), q) || strings.Contains(strings.ToLower(m.Details), q) {
			out = append(out, m)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// FilterTitle keeps movies whose title contains query. Blank query keeps all.
func FilterTitle(movies []Movie, query string) []Movie {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if q == "" || strings.Contains(strings.ToLower(m.Title), q) {
			out = append(out, m)
		}
	}
	return out
}

type Page struct {
	Items   []Movie `json:"items"`
	Page    int     `json:"page"`
	Total   int     `json:"total"`
	HasPrev bool    `json:"hasPrev"`
	HasNext bool    `json:"hasNext"`
}

// Paginate returns one page of movies, skipping ids in exclude.
func Paginate(movies []Movie, exclude map[int64]bool, page, perPage int) Page {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 24
	}
	pool := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if !exclude[m.ID] {
			pool = append(pool, m)
		}
	}
	start := (page - 1) * perPage
	end := start + perPage
	items := []Movie{}
	if start < len(pool) {
		items = pool[start:min(end, len(pool))]
	}
	return Page{
		Items:   items,
		Page:    page,
		Total:   len(pool),
		HasPrev: page > 1,
		HasNext: len(pool) > end,
	}
}

// Related picks n random movies other than excludeID.
func Related(movies []Movie, excludeID int64, n int, rng *rand.Rand) []Movie {
	pool := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if m.ID != excludeID {
			pool = append(pool, m)
		}
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if n > 0 && len(pool) > n {
		pool = pool[:n]
	}
	return pool
}
