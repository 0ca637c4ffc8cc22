package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelstream/internal/catalog"
)

func TestResolve_SkipsEmptyLinks(t *testing.T) {
	m := catalog.Movie{
		ID:             1,
		VideoLink480p:  "",
		VideoLink720p:  " https://cdn.example/a-720.mp4 ",
		VideoLink1080p: "https://cdn.example/a-1080.mp4",
	}
	got := Resolve(m)
	require.Len(t, got, 2)
	assert.Equal(t, Variant{Quality: Q720, URL: "https://cdn.example/a-720.mp4"}, got[0])
	assert.Equal(t, Q1080, got[1].Quality)

	q, err := DefaultQuality(got)
	require.NoError(t, err)
	assert.Equal(t, Q720, q)
}

func TestResolve_NoLinks(t *testing.T) {
	got := Resolve(catalog.Movie{ID: 2, VideoLink720p: "   "})
	assert.Empty(t, got)

	_, err := DefaultQuality(got)
	assert.ErrorIs(t, err, ErrNoPlayableSource)
}

func TestDefaultQuality(t *testing.T) {
	only480 := []Variant{{Quality: Q480, URL: "a"}}
	all := []Variant{{Quality: Q480, URL: "a"}, {Quality: Q720, URL: "b"}, {Quality: Q1080, URL: "c"}}

	tests := []struct {
		name     string
		variants []Variant
		pref     []Quality
		want     Quality
	}{
		{"720 default", all, nil, Q720},
		{"preferred present", all, []Quality{Q1080}, Q1080},
		{"preferred missing", only480, []Quality{Q1080}, Q480},
		{"lowest when no 720", []Variant{{Quality: Q480}, {Quality: Q1080}}, nil, Q480},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultQuality(tt.variants, tt.pref...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseQuality(t *testing.T) {
	for raw, want := range map[string]Quality{"480p": Q480, "720": Q720, " 1080P ": Q1080} {
		got, ok := ParseQuality(raw)
		require.True(t, ok, raw)
		assert.Equal(t, want, got)
	}
	_, ok := ParseQuality("4k")
	assert.False(t, ok)

	var q Quality
	assert.Error(t, q.UnmarshalText([]byte("360p")))
	require.NoError(t, q.UnmarshalText([]byte("1080p")))
	assert.Equal(t, "1080p", q.String())
}

func TestPreferenceForBandwidth(t *testing.T) {
	assert.Equal(t, Q720, PreferenceForBandwidth(0))
	assert.Equal(t, Q480, PreferenceForBandwidth(1200))
	assert.Equal(t, Q720, PreferenceForBandwidth(5000))
	assert.Equal(t, Q1080, PreferenceForBandwidth(12000))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{
			"https://drive.google.com/file/d/abc123/view?usp=sharing",
			"https://drive.google.com/uc?export=download&id=abc123",
		},
		{
			"https://drive.google.com/open?id=xyz",
			"https://drive.google.com/uc?export=download&id=xyz",
		},
		{
			"https://www.dropbox.com/s/k3y/movie.mp4?dl=0",
			"https://www.dropbox.com/s/k3y/movie.mp4?dl=1",
		},
		{
			"https://pixeldrain.com/u/AbCd",
			"https://pixeldrain.com/api/file/AbCd",
		},
		{"https://cdn.example/movie.mp4", "https://cdn.example/movie.mp4"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}
