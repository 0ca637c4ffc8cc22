// Package assets maps a catalog record to its playable quality variants.
package assets

import (
	"errors"
	"net/url"
	"strings"

	"reelstream/internal/catalog"
)

// ErrNoPlayableSource is returned when a record has no usable variant URL.
var ErrNoPlayableSource = errors.New("no playable source")

// Quality is one of the fixed resolution variants. Values order ascending.
type Quality int

const (
	Q480  Quality = 480
	Q720  Quality = 720
	Q1080 Quality = 1080
)

var ordered = []Quality{Q480, Q720, Q1080}

// Qualities returns the fixed variant keys in ascending order.
func Qualities() []Quality {
	return append([]Quality(nil), ordered...)
}

func (q Quality) String() string {
	switch q {
	case Q480:
		return "480p"
	case Q720:
		return "720p"
	case Q1080:
		return "1080p"
	default:
		return "unknown"
	}
}

// Valid reports whether q is one of the fixed keys.
func (q Quality) Valid() bool {
	return q == Q480 || q == Q720 || q == Q1080
}

// MarshalText encodes the quality as "720p".
func (q Quality) MarshalText() ([]byte, error) {
	if !q.Valid() {
		return nil, errors.New("invalid quality")
	}
	return []byte(q.String()), nil
}

// UnmarshalText accepts "720p" or "720".
func (q *Quality) UnmarshalText(b []byte) error {
	parsed, ok := ParseQuality(string(b))
	if !ok {
		return errors.New("invalid quality " + string(b))
	}
	*q = parsed
	return nil
}

// ParseQuality accepts "480p", "720", "1080P" and friends.
func ParseQuality(raw string) (Quality, bool) {
	s := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "p")
	switch s {
	case "480":
		return Q480, true
	case "720":
		return Q720, true
	case "1080":
		return Q1080, true
	}
	return 0, false
}

// Variant is one resolution-specific rendition.
type Variant struct {
	Quality Quality `json:"quality"`
	URL     string  `json:"url"`
}

// Resolve lists the record's usable variants in ascending quality order.
func Resolve(m catalog.Movie) []Variant {
	raw := map[Quality]string{
		Q480:  m.VideoLink480p,
		Q720:  m.VideoLink720p,
		Q1080: m.VideoLink1080p,
	}
	out := make([]Variant, 0, len(ordered))
	for _, q := range ordered {
		link := strings.TrimSpace(raw[q])
		if link == "" {
			continue
		}
		out = append(out, Variant{Quality: q, URL: Normalize(link)})
	}
	return out
}

// Lookup finds the variant for q.
func Lookup(variants []Variant, q Quality) (Variant, bool) {
	for _, v := range variants {
		if v.Quality == q {
			return v, true
		}
	}
	return Variant{}, false
}

// DefaultQuality picks the starting variant. The first preferred quality
// that is present wins, then 720p, then the lowest available.
func DefaultQuality(variants []Variant, pref ...Quality) (Quality, error) {
	if len(variants) == 0 {
		return 0, ErrNoPlayableSource
	}
	for _, p := range pref {
		if _, ok := Lookup(variants, p); ok {
			return p, nil
		}
	}
	if _, ok := Lookup(variants, Q720); ok {
		return Q720, nil
	}
	return variants[0].Quality, nil
}

// PreferenceForBandwidth maps a measured downlink to a preferred quality.
// Unknown bandwidth (<= 0) keeps the 720p default.
func PreferenceForBandwidth(kbps float64) Quality {
	switch {
	case kbps <= 0:
		return Q720
	case kbps < 2500:
		return Q480
	case kbps >= 8000:
		return Q1080
	default:
		return Q720
	}
}

// Normalize rewrites file-viewer links of known hosts into direct download
// links. Unknown hosts and unparsable input come back unchanged.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "drive.google.com":
		if id := driveFileID(u); id != "" {
			return "https://drive.google.com/uc?export=download&id=" + url.QueryEscape(id)
		}
	case "dropbox.com":
		q := u.Query()
		if q.Get("dl") == "0" || q.Get("dl") == "" {
			q.Set("dl", "1")
			u.RawQuery = q.Encode()
			return u.String()
		}
	case "pixeldrain.com":
		if rest, ok := strings.CutPrefix(u.Path, "/u/"); ok && rest != "" {
			id := strings.SplitN(rest, "/", 2)[0]
			return "https://pixeldrain.com/api/file/" + id
		}
	}
	return raw
}

func driveFileID(u *url.URL) string {
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "file" && parts[i+1] == "d" {
			return parts[i+2]
		}
	}
	if u.Path == "/open" {
		return u.Query().Get("id")
	}
	return ""
}
