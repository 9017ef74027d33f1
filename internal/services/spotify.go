// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	defaultRedirectURI = "http://localhost:3000/callback"
	defaultRateLimit   = 10.0
	maxPageSize        = 50
	playlistPageSize   = 100
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	Explicit     bool            `json:"explicit"`
	ExternalIDs  externalIDs     `json:"external_ids"`
	ExternalURLs externalURLs    `json:"external_urls"`
	PreviewURL   string          `json:"preview_url"`
	Popularity   int             `json:"popularity"`
	URI          string          `json:"uri"`
	IsLocal      bool            `json:"is_local"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

type albumTracks struct {
	Items []SpotifyTrack `json:"items"`
	Next  *string        `json:"next"`
}

// SpotifyAlbum represents a Spotify album.
//
// Tracks is only present on the full album object.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
	Tracks      *albumTracks    `json:"tracks,omitempty"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTrack struct {
	Total int                    `json:"total"`
	Items []SpotifyPlaylistTrack `json:"items"`
	Next  *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       Owner          `json:"owner"`
	Public      bool           `json:"public"`
	Tracks      playlistTrack  `json:"tracks"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
//
// Track is nil for episodes and items removed from the catalog.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items    []SpotifySimplePlaylist `json:"items"`
	Total    int                     `json:"total"`
	Limit    int                     `json:"limit"`
	Offset   int                     `json:"offset"`
	Next     *string                 `json:"next"`
	Previous *string                 `json:"previous"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Owner       Owner               `json:"owner"`
	Public      bool                `json:"public"`
	Tracks      simplePlaylistTrack `json:"tracks"`
	Images      []SpotifyImage      `json:"images"`
	URI         string              `json:"uri"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
	Playlists struct {
		Items []*SpotifySimplePlaylist `json:"items"`
	} `json:"playlists"`
	Artists struct {
		Items []SpotifyArtist `json:"items"`
	} `json:"artists"`
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points API requests at baseURL instead of api.spotify.com.
func WithBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithEndpoint overrides the OAuth2 authorize and token endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint = endpoint }
}

// WithRateLimit caps outgoing requests per second. A non-positive value disables the limit.
func WithRateLimit(rps float64) SpotifyOption {
	return func(s *SpotifyService) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// SpotifyService implements the Service interface for Spotify API interactions.
// Uses [oauth2] for authentication and provides methods for playlist and track operations.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	credentials    map[string]string
	baseURL        string
	limiter        *rate.Limiter
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"user-read-email",
			"playlist-read-private",
			"playlist-read-collaborative",
			"user-library-read",
			"user-top-read",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:      config,
		httpClient:  http.DefaultClient,
		credentials: credentials,
		baseURL:     spotifyBaseURL,
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), int(defaultRateLimit)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Authenticate performs OAuth2 authentication with Spotify. Expects either an "access_token" or "auth_code" in credentials.
//
// An optional "refresh_token" accompanying an access token enables automatic refresh.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.bind(ctx, &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		})
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.Exchange(ctx, authCode)
		if err != nil {
			return err
		}
		s.bind(ctx, token)
		return nil
	}

	return fmt.Errorf("%w: missing access_token or auth_code in credentials", shared.ErrMissingCredentials)
}

// bind sets token and builds a client that refreshes it through the callback.
func (s *SpotifyService) bind(ctx context.Context, token *oauth2.Token) {
	s.token = token
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(context.WithoutCancel(ctx), token),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	}
	s.httpClient = oauth2.NewClient(context.WithoutCancel(ctx), source)
}

// ForToken returns a copy of the service bound to token. The copy shares the rate limiter.
func (s *SpotifyService) ForToken(ctx context.Context, token *oauth2.Token) *SpotifyService {
	c := *s
	c.bind(ctx, token)
	return &c
}

// ForTokenWithRefresh is [SpotifyService.ForToken] with fn receiving the tokens the copy refreshes.
func (s *SpotifyService) ForTokenWithRefresh(ctx context.Context, token *oauth2.Token, fn func(*oauth2.Token)) *SpotifyService {
	c := *s
	c.onTokenRefresh = fn
	c.bind(ctx, token)
	return &c
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetOAuthConfig returns the OAuth2 configuration, used by the CLI loopback callback handler.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// Token returns the bound token, or nil before authentication.
func (s *SpotifyService) Token() *oauth2.Token {
	return s.token
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
//
// The consent dialog is always shown so users can switch accounts.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Exchange trades an authorization code for a token.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: authorization code is required", shared.ErrInvalidInput)
	}
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// SetTokenRefreshCallback registers fn to receive every newly issued token.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// refreshableTokenSource reports tokens to callback whenever the access token changes.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken != r.last {
		r.last = token.AccessToken
		if r.callback != nil {
			r.callback(token)
		}
	}
	return token, nil
}

// doRequest performs an authenticated GET request to the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited, retry after %ss", shared.ErrServiceUnavailable, resp.Header.Get("Retry-After"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func page(limit, offset int) url.Values {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(max(offset, 0)))
	return q
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Profile returns the normalized profile of the authenticated user.
func (s *SpotifyService) Profile(ctx context.Context) (*Profile, error) {
	user, err := s.UserProfile(ctx)
	if err != nil {
		return nil, err
	}
	p := normalizeProfile(*user)
	return &p, nil
}

// SavedTracks retrieves a page of the user's saved tracks.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) ([]CatalogTrack, error) {
	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, "/me/tracks", page(limit, offset), &response); err != nil {
		return nil, err
	}

	tracks := make([]CatalogTrack, 0, len(response.Items))
	for _, item := range response.Items {
		tracks = append(tracks, normalizeTrack(item.Track, item.AddedAt))
	}
	return tracks, nil
}

// TopTracks retrieves the user's top tracks. timeRange is short_term, medium_term or long_term.
func (s *SpotifyService) TopTracks(ctx context.Context, limit int, timeRange string) ([]CatalogTrack, error) {
	q := page(limit, 0)
	switch timeRange {
	case "short_term", "medium_term", "long_term":
		q.Set("time_range", timeRange)
	case "":
		q.Set("time_range", "medium_term")
	default:
		return nil, fmt.Errorf("%w: unknown time range %q", shared.ErrInvalidInput, timeRange)
	}

	var response struct {
		Items []SpotifyTrack `json:"items"`
	}
	if err := s.doRequest(ctx, "/me/top/tracks", q, &response); err != nil {
		return nil, err
	}
	return normalizeTracks(response.Items), nil
}

// UserPlaylists retrieves the current user's playlists with pagination.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*SpotifyPaginatedPlaylists, error) {
	var response SpotifyPaginatedPlaylists
	if err := s.doRequest(ctx, "/me/playlists", page(limit, offset), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// Playlist retrieves a playlist by ID, including its first page of tracks.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, "/playlists/"+url.PathEscape(playlistID), nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracks retrieves every track of a playlist, following pagination.
// Episodes and unavailable items are dropped.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]CatalogTrack, error) {
	if strings.TrimSpace(playlistID) == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}

	var tracks []CatalogTrack
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	for offset := 0; ; offset += playlistPageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(playlistPageSize))
		q.Set("offset", strconv.Itoa(offset))

		var response playlistTrack
		if err := s.doRequest(ctx, endpoint, q, &response); err != nil {
			return nil, err
		}

		for _, item := range response.Items {
			if item.Track == nil || item.Track.Name == "" {
				continue
			}
			tracks = append(tracks, normalizeTrack(*item.Track, item.AddedAt))
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
	}
	return tracks, nil
}

// AlbumTracks retrieves the tracks of an album, each carrying the album name and cover.
func (s *SpotifyService) AlbumTracks(ctx context.Context, albumID string) ([]CatalogTrack, error) {
	if strings.TrimSpace(albumID) == "" {
		return nil, fmt.Errorf("%w: album id is required", shared.ErrInvalidInput)
	}

	var album SpotifyAlbum
	if err := s.doRequest(ctx, "/albums/"+url.PathEscape(albumID), nil, &album); err != nil {
		return nil, err
	}
	if album.Tracks == nil {
		return []CatalogTrack{}, nil
	}

	parent := album
	parent.Tracks = nil
	tracks := make([]CatalogTrack, 0, len(album.Tracks.Items))
	for _, t := range album.Tracks.Items {
		t.Album = parent
		tracks = append(tracks, normalizeTrack(t, ""))
	}
	return tracks, nil
}

// ArtistTopTracks retrieves an artist's top tracks in the US market.
func (s *SpotifyService) ArtistTopTracks(ctx context.Context, artistID string) ([]CatalogTrack, error) {
	if strings.TrimSpace(artistID) == "" {
		return nil, fmt.Errorf("%w: artist id is required", shared.ErrInvalidInput)
	}

	q := url.Values{}
	q.Set("market", "US")

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, "/artists/"+url.PathEscape(artistID)+"/top-tracks", q, &response); err != nil {
		return nil, err
	}
	return normalizeTracks(response.Tracks), nil
}

// Search queries tracks, playlists and artists.
func (s *SpotifyService) Search(ctx context.Context, query string, limit int) (*SearchResults, error) {
	return s.search(ctx, query, "track,playlist,artist", limit)
}

func (s *SpotifyService) search(ctx context.Context, query, types string, limit int) (*SearchResults, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrInvalidInput)
	}

	q := page(limit, 0)
	q.Set("q", query)
	q.Set("type", types)

	var response spotifySearchResponse
	if err := s.doRequest(ctx, "/search", q, &response); err != nil {
		return nil, err
	}

	results := &SearchResults{
		Tracks:    normalizeTracks(response.Tracks.Items),
		Playlists: make([]Playlist, 0, len(response.Playlists.Items)),
		Artists:   make([]ArtistSummary, 0, len(response.Artists.Items)),
	}
	for _, p := range response.Playlists.Items {
		if p != nil {
			results.Playlists = append(results.Playlists, normalizePlaylist(*p))
		}
	}
	for _, a := range response.Artists.Items {
		results.Artists = append(results.Artists, normalizeArtist(a))
	}
	return results, nil
}

// Service interface implementation

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]Playlist, error) {
	var allPlaylists []Playlist
	offset := 0

	for {
		response, err := s.UserPlaylists(ctx, maxPageSize, offset)
		if err != nil {
			return nil, err
		}

		for _, sp := range response.Items {
			allPlaylists = append(allPlaylists, normalizePlaylist(sp))
		}

		if response.Next == nil || len(response.Items) == 0 {
			break
		}
		offset += maxPageSize
	}

	return allPlaylists, nil
}

// GetPlaylist retrieves a specific playlist by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*Playlist, error) {
	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	p := normalizeFullPlaylist(*sp)
	return &p, nil
}

// ExportPlaylist reads a playlist and all its tracks as import descriptors.
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*PlaylistExport, error) {
	playlist, err := s.GetPlaylist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	tracks, err := s.PlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	export := &PlaylistExport{Playlist: *playlist, Tracks: make([]models.RawTrack, 0, len(tracks))}
	for _, t := range tracks {
		export.Tracks = append(export.Tracks, t.RawTrack)
	}
	return export, nil
}

// SearchTrack searches for a track by title and artist and returns the closest match.
func (s *SpotifyService) SearchTrack(ctx context.Context, title, artist string) (*CatalogTrack, error) {
	query := fmt.Sprintf("track:%s artist:%s", title, artist)
	results, err := s.search(ctx, query, "track", 5)
	if err != nil {
		return nil, err
	}
	if len(results.Tracks) == 0 {
		return nil, fmt.Errorf("%w: %s - %s", shared.ErrTrackNotFound, artist, title)
	}

	want := strings.ToLower(artist + " " + title)
	jw := metrics.NewJaroWinkler()
	best, bestScore := 0, -1.0
	for i, t := range results.Tracks {
		score := strutil.Similarity(want, strings.ToLower(t.Artist+" "+t.Title), jw)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return &results.Tracks[best], nil
}
