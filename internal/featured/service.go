package featured

import (
	"context"
	"time"

	"reelstream/internal/catalog"
	"reelstream/internal/settings"
)

// Lister is the part of the catalog gateway the shelf needs.
type Lister interface {
	List(ctx context.Context) ([]catalog.Movie, error)
}

type Home struct {
	Latest []catalog.Movie `json:"latest"`
	All    catalog.Page    `json:"all"`
}

type Service struct {
	movies Lister
	store  settings.Store
	cfg    Config
	cache  *cacheStore
	now    func() time.Time
}

func NewService(movies Lister, store settings.Store, cfg Config) *Service {
	return &Service{
		movies: movies,
		store:  store,
		cfg:    cfg.normalize(),
		cache:  newCache(),
		now:    time.Now,
	}
}

func (s *Service) Config() Config {
	return s.cfg
}

// Latest returns the shelf movies in stored id order. Ids the catalog no
// longer knows are skipped.
func (s *Service) Latest(ctx context.Context) ([]catalog.Movie, error) {
	now := s.now()
	if cached, ok := s.cache.Get("latest", now); ok {
		return cached, nil
	}
	all, err := s.movies.List(ctx)
	if err != nil {
		return nil, err
	}
	cur, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	latest := pickLatest(all, cur.LatestMovieIDs, s.cfg.Limit)
	s.cache.Set("latest", latest, s.cfg.CacheTTL, now)
	return latest, nil
}

// Home is the landing feed: the latest shelf plus one page of every other movie.
func (s *Service) Home(ctx context.Context, page int) (Home, error) {
	all, err := s.movies.List(ctx)
	if err != nil {
		return Home{}, err
	}
	var latest []catalog.Movie
	if s.cfg.ShowLatest {
		if latest, err = s.Latest(ctx); err != nil {
			return Home{}, err
		}
	}
	exclude := make(map[int64]bool, len(latest))
	for _, m := range latest {
		exclude[m.ID] = true
	}
	if latest == nil {
		latest = []catalog.Movie{}
	}
	return Home{
		Latest: latest,
		All:    catalog.Paginate(all, exclude, page, s.cfg.PageSize),
	}, nil
}

// Available lists movies not on the shelf whose title matches query.
func (s *Service) Available(ctx context.Context, ids []int64, query string) ([]catalog.Movie, error) {
	all, err := s.movies.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Movie, 0, len(all))
	for _, m := range catalog.FilterTitle(all, query) {
		if !contains(ids, m.ID) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Invalidate drops the cached shelf after an edit.
func (s *Service) Invalidate() {
	s.cache.Clear()
}

func pickLatest(all []catalog.Movie, ids []int64, limit int) []catalog.Movie {
	byID := make(map[int64]catalog.Movie, len(all))
	for _, m := range all {
		byID[m.ID] = m
	}
	out := make([]catalog.Movie, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			continue
		}
		m.IsLatest = true
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
