package catalog

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMovies(n int) []Movie {
	out := make([]Movie, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Movie{ID: int64(i), Title: "Movie " + string(rune('A'+i%26)), Details: "plain"})
	}
	return out
}

func TestSearch_TitleOrDetails(t *testing.T) {
	movies := []Movie{
		{ID: 1, Title: "The Matrix", Details: "simulation"},
		{ID: 2, Title: "Heat", Details: "A MATRIX of crime"},
		{ID: 3, Title: "Up", Details: "balloons"},
	}
	got := Search(movies, "  matrix ", 8)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(2), got[1].ID)

	assert.Nil(t, Search(movies, "   ", 8))
}

func TestSearch_Limit(t *testing.T) {
	got := Search(sampleMovies(20), "movie", 0)
	assert.Len(t, got, 8)
}

func TestFilterTitle(t *testing.T) {
	movies := []Movie{{ID: 1, Title: "Alien"}, {ID: 2, Title: "Aliens", Details: "x"}, {ID: 3, Title: "Up", Details: "alien"}}
	assert.Len(t, FilterTitle(movies, "ALIEN"), 2)
	assert.Len(t, FilterTitle(movies, ""), 3)
}

func TestPaginate(t *testing.T) {
	movies := sampleMovies(50)
	exclude := map[int64]bool{1: true, 2: true}

	first := Paginate(movies, exclude, 1, 24)
	assert.Len(t, first.Items, 24)
	assert.Equal(t, int64(3), first.Items[0].ID)
	assert.False(t, first.HasPrev)
	assert.True(t, first.HasNext)
	assert.Equal(t, 48, first.Total)

	second := Paginate(movies, exclude, 2, 24)
	assert.True(t, second.HasPrev)
	assert.False(t, second.HasNext)

	beyond := Paginate(movies, exclude, 9, 24)
	assert.Empty(t, beyond.Items)
	assert.NotNil(t, beyond.Items)

	clamped := Paginate(movies, nil, -3, 0)
	assert.Equal(t, 1, clamped.Page)
	assert.Len(t, clamped.Items, 24)
}

func TestRelated_ExcludesCurrent(t *testing.T) {
	movies := sampleMovies(10)
	rng := rand.New(rand.NewSource(1))
	got := Related(movies, 4, 6, rng)
	require.Len(t, got, 6)
	for _, m := range got {
		assert.NotEqual(t, int64(4), m.ID)
	}
	// Input order untouched.
	assert.Equal(t, int64(1), movies[0].ID)
}

func TestMovie_PosterFallback(t *testing.T) {
	assert.Equal(t, "/placeholder.svg", Movie{}.Poster("/placeholder.svg"))
	assert.Equal(t, "https://img/x.jpg", Movie{ThumbnailURL: " https://img/x.jpg "}.Poster("/p"))
}
