// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/services"
	"github.com/desertthunder/playdeck/internal/shared"
)

// MockService is a test double for [services.Service] serving canned playlist exports.
type MockService struct {
	mu      sync.Mutex
	Exports map[string]*services.PlaylistExport
	Errors  map[string]error
	Calls   []string
}

// NewMockService returns a service that knows the given exports by playlist ID.
func NewMockService(exports ...*services.PlaylistExport) *MockService {
	m := &MockService{Exports: map[string]*services.PlaylistExport{}, Errors: map[string]error{}}
	for _, e := range exports {
		m.Exports[e.Playlist.ID] = e
	}
	return m
}

func (m *MockService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (m *MockService) GetPlaylists(ctx context.Context) ([]services.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	playlists := make([]services.Playlist, 0, len(m.Exports))
	for _, e := range m.Exports {
		playlists = append(playlists, e.Playlist)
	}
	slices.SortFunc(playlists, func(a, b services.Playlist) int { return strings.Compare(a.ID, b.ID) })
	return playlists, nil
}

func (m *MockService) GetPlaylist(ctx context.Context, playlistID string) (*services.Playlist, error) {
	e, err := m.ExportPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	return &e.Playlist, nil
}

func (m *MockService) ExportPlaylist(ctx context.Context, playlistID string) (*services.PlaylistExport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, playlistID)
	if err, ok := m.Errors[playlistID]; ok {
		return nil, err
	}
	e, ok := m.Exports[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
	}
	return e, nil
}

func (m *MockService) SearchTrack(ctx context.Context, title, artist string) (*services.CatalogTrack, error) {
	return nil, shared.ErrTrackNotFound
}

func (m *MockService) Name() string { return "mock" }

// RawTracks builds n importable descriptors with URLs under prefix.
func RawTracks(prefix string, n int) []models.RawTrack {
	tracks := make([]models.RawTrack, n)
	for i := range tracks {
		tracks[i] = models.RawTrack{
			Title:    fmt.Sprintf("%s Song %d", prefix, i+1),
			Artist:   fmt.Sprintf("%s Artist", prefix),
			Album:    fmt.Sprintf("%s Album", prefix),
			Duration: float64(120 + i),
			URL:      fmt.Sprintf("https://example.com/%s/%d", prefix, i+1),
		}
	}
	return tracks
}

// SamplePlaylist returns a populated two-track playlist.
func SamplePlaylist() *models.Playlist {
	return &models.Playlist{
		ID:          "test123",
		UserID:      "user-1",
		Name:        "Test Playlist",
		Description: "A test playlist",
		Public:      true,
		TrackIDs:    []string{"track1", "track2"},
		Tracks: []models.Track{
			{ID: "track1", Title: "Song One", Artist: "Artist One", Album: "Album One", Duration: 180, URL: "https://example.com/1"},
			{ID: "track2", Title: "Song Two", Artist: "Artist Two", Album: "Album Two", Duration: 240, URL: "https://example.com/2"},
		},
	}
}

// NewTestDB opens a migrated in-memory SQLite database closed on cleanup.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
