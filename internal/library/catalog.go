package library

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
)

const (
	// DefaultSearchLimit caps search results when no limit is given.
	DefaultSearchLimit = 20
	// MatchThreshold is the minimum Jaro-Winkler similarity for a fuzzy hit.
	MatchThreshold = 0.85
)

// SearchResult is a ranked track hit.
type SearchResult struct {
	Track models.Track `json:"track"`
	Score float64      `json:"score"`
}

// Catalog derives aggregate views from the stored tracks.
type Catalog struct {
	tracks TrackStore
}

// NewCatalog creates a Catalog over tracks.
func NewCatalog(tracks TrackStore) *Catalog {
	return &Catalog{tracks: tracks}
}

// Albums groups tracks by album title and artist in order of first appearance.
// Tracks without an album are not counted.
func (c *Catalog) Albums(ctx context.Context) ([]models.Album, error) {
	tracks, err := c.tracks.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	type key struct{ title, artist string }
	index := map[key]int{}
	albums := []models.Album{}

	for _, t := range tracks {
		if strings.TrimSpace(t.Album) == "" {
			continue
		}
		k := key{t.Album, t.Artist}
		i, ok := index[k]
		if !ok {
			i = len(albums)
			index[k] = i
			albums = append(albums, models.Album{Title: t.Album, Artist: t.Artist})
		}

		a := &albums[i]
		a.Tracks++
		a.Duration += t.Duration
		if a.Image == "" {
			a.Image = t.Image
		}
	}
	return albums, nil
}

// Artists groups tracks by artist in order of first appearance.
func (c *Catalog) Artists(ctx context.Context) ([]models.Artist, error) {
	tracks, err := c.tracks.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	index := map[string]int{}
	albums := map[string]map[string]bool{}
	artists := []models.Artist{}

	for _, t := range tracks {
		i, ok := index[t.Artist]
		if !ok {
			i = len(artists)
			index[t.Artist] = i
			albums[t.Artist] = map[string]bool{}
			artists = append(artists, models.Artist{Name: t.Artist, Genres: []string{}})
		}

		a := &artists[i]
		a.Tracks++
		if t.Album != "" && !albums[t.Artist][t.Album] {
			albums[t.Artist][t.Album] = true
			a.Albums++
		}
		if t.Genre != "" && !slices.Contains(a.Genres, t.Genre) {
			a.Genres = append(a.Genres, t.Genre)
		}
	}
	return artists, nil
}

// Search ranks stored tracks against query by title, artist and album.
//
// Substring matches always qualify and rank above fuzzy matches. Fuzzy matches
// need a Jaro-Winkler similarity of at least [MatchThreshold]. Ties keep catalog order.
func (c *Catalog) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	tracks, err := c.tracks.List(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}

	results := []SearchResult{}
	for _, t := range tracks {
		if score, ok := scoreTrack(q, t); ok {
			results = append(results, SearchResult{Track: t, Score: score})
		}
	}

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// scoreTrack returns the best field score for q. Substring hits score in (1, 2].
func scoreTrack(q string, t models.Track) (float64, bool) {
	jw := metrics.NewJaroWinkler()
	best := 0.0
	for _, field := range []string{t.Title, t.Artist, t.Album, t.Artist + " " + t.Title} {
		f := strings.ToLower(field)
		if f == "" {
			continue
		}

		score := strutil.Similarity(q, f, jw)
		if strings.Contains(f, q) {
			score = 1 + float64(len(q))/float64(len(f))
		}
		best = max(best, score)
	}
	return best, best >= MatchThreshold
}
