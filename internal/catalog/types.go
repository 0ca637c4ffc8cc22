package catalog

import (
	"strings"
	"time"
)

// Movie is the record served by the external movie API. It is never
// mutated after decoding; callers refetch instead.
type Movie struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Details        string `json:"details"`
	ReleaseDate    string `json:"release_date,omitempty"`
	ThumbnailURL   string `json:"thumbnail_url,omitempty"`
	VideoLink480p  string `json:"video_link_480p,omitempty"`
	VideoLink720p  string `json:"video_link_720p,omitempty"`
	VideoLink1080p string `json:"video_link_1080p,omitempty"`
	IsHero         bool   `json:"is_hero,omitempty"`
	IsLatest       bool   `json:"is_latest,omitempty"`
}

// ReleasedAt parses the release date when present.
func (m Movie) ReleasedAt() (time.Time, bool) {
	raw := strings.TrimSpace(m.ReleaseDate)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// Poster returns the thumbnail or the placeholder when the record has none.
func (m Movie) Poster(placeholder string) string {
	if v := strings.TrimSpace(m.ThumbnailURL); v != "" {
		return v
	}
	return placeholder
}
