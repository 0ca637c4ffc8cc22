package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"reelstream/internal/assets"
	"reelstream/internal/auth"
	"reelstream/internal/catalog"
	"reelstream/internal/featured"
	"reelstream/internal/settings"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case catalog.IsNotFound(err):
		errorJSON(w, http.StatusNotFound, "movie not found")
	case errors.Is(err, assets.ErrNoPlayableSource):
		errorJSON(w, http.StatusNotFound, "no playable source")
	case errors.Is(err, featured.ErrLatestFull):
		errorJSON(w, http.StatusConflict, err.Error())
	case errors.Is(err, settings.ErrInvalidPayload):
		errorJSON(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		errorJSON(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, catalog.ErrUpstream), errors.Is(err, catalog.ErrTimeout), errors.Is(err, catalog.ErrBadResponse):
		errorJSON(w, http.StatusBadGateway, "movie service unavailable")
	case r.Context().Err() != nil:
		errorJSON(w, http.StatusServiceUnavailable, "request canceled")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		errorJSON(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, key string, def int) int {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func handleLogin(authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid body")
			return
		}
		tokens, err := authSvc.Login(strings.TrimSpace(req.Username), req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tokens)
	}
}

func handleRefresh(authSvc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			errorJSON(w, http.StatusBadRequest, "invalid body")
			return
		}
		tokens, err := authSvc.Refresh(req.RefreshToken)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tokens)
	}
}

// handleListMovies serves ?q= search results or one ?page= of the catalog.
func handleListMovies(movies gateway, cfg featured.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := movies.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
			results := catalog.Search(all, q, cfg.SearchLimit)
			if results == nil {
				results = []catalog.Movie{}
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"query": q, "items": results})
			return
		}
		writeJSON(w, http.StatusOK, catalog.Paginate(all, nil, queryInt(r, "page", 1), cfg.PageSize))
	}
}

func handleGetMovie(movies gateway, placeholder string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			errorJSON(w, http.StatusBadRequest, "invalid movie id")
			return
		}
		m, err := movies.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		m.ThumbnailURL = m.Poster(placeholder)
		writeJSON(w, http.StatusOK, m)
	}
}

type sourcesResponse struct {
	MovieID  int64            `json:"movieId"`
	Title    string           `json:"title"`
	Variants []assets.Variant `json:"variants"`
	Default  assets.Quality   `json:"default"`
}

// handleSources resolves the playable variants and the starting quality.
// ?prefer= wins over the ?kbps= bandwidth hint.
func handleSources(movies gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			errorJSON(w, http.StatusBadRequest, "invalid movie id")
			return
		}
		m, err := movies.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var prefs []assets.Quality
		if raw := r.URL.Query().Get("prefer"); raw != "" {
			q, ok := assets.ParseQuality(raw)
			if !ok {
				errorJSON(w, http.StatusBadRequest, "invalid quality")
				return
			}
			prefs = append(prefs, q)
		}
		if raw := r.URL.Query().Get("kbps"); raw != "" {
			kbps, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				errorJSON(w, http.StatusBadRequest, "invalid kbps")
				return
			}
			prefs = append(prefs, assets.PreferenceForBandwidth(kbps))
		}
		variants := assets.Resolve(m)
		def, err := assets.DefaultQuality(variants, prefs...)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sourcesResponse{MovieID: m.ID, Title: m.Title, Variants: variants, Default: def})
	}
}

func handleRelated(movies gateway, n int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			errorJSON(w, http.StatusBadRequest, "invalid movie id")
			return
		}
		all, err := movies.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, catalog.Related(all, id, n, nil))
	}
}

func handleHome(shelf *featured.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		home, err := shelf.Home(r.Context(), queryInt(r, "page", 1))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, home)
	}
}

func handleLatest(shelf *featured.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, err := shelf.Latest(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, latest)
	}
}

func handleGetSettings(store settings.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := store.Load(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// handlePostSettings stores the payload as is. The shelf cap is not applied
// here; the editor endpoints below enforce it.
func handlePostSettings(store settings.Store, sel *featured.Selection, shelf *featured.Service, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := settings.Decode(r.Body)
		if err != nil {
			writeError(w, r, err)
			return
		}
		saved, err := store.Save(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		shelf.Invalidate()
		if err := sel.Refresh(r.Context()); err != nil {
			log.Warn().Err(err).Msg("latest selection refresh failed")
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleAddLatest(sel *featured.Selection, shelf *featured.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			errorJSON(w, http.StatusBadRequest, "invalid movie id")
			return
		}
		ids, err := sel.Add(r.Context(), id)
		if errors.Is(err, featured.ErrLatestFull) {
			writeJSON(w, http.StatusConflict, map[string]interface{}{"error": err.Error(), "latestMovieIds": ids})
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		shelf.Invalidate()
		writeJSON(w, http.StatusOK, settings.Settings{LatestMovieIDs: ids})
	}
}

func handleRemoveLatest(sel *featured.Selection, shelf *featured.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			errorJSON(w, http.StatusBadRequest, "invalid movie id")
			return
		}
		ids, err := sel.Remove(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		shelf.Invalidate()
		writeJSON(w, http.StatusOK, settings.Settings{LatestMovieIDs: ids})
	}
}

// handleAvailable lists movies that can still be added to the shelf.
func handleAvailable(sel *featured.Selection, shelf *featured.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := sel.Current(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		movies, err := shelf.Available(r.Context(), ids, r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"latestMovieIds": ids,
			"limit":          sel.Limit(),
			"movies":         movies,
		})
	}
}
