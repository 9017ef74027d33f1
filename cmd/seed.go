package main

import "github.com/desertthunder/playdeck/internal/models"

type seedUser struct {
	email, name, password string
	playlists             []seedPlaylist
}

type seedPlaylist struct {
	name, description string
	public            bool
	tracks            []int // indexes into seedTracks
}

var seedTracks = []models.RawTrack{
	{Title: "Blinding Lights", Artist: "The Weeknd", Album: "After Hours", Duration: 200, Genre: "R&B",
		URL: "https://example.com/audio/blinding-lights.mp3", PreviewURL: "https://example.com/preview/blinding-lights.mp3"},
	{Title: "Cardigan", Artist: "Taylor Swift", Album: "Folklore", Duration: 238, Genre: "Pop",
		URL: "https://example.com/audio/cardigan.mp3", PreviewURL: "https://example.com/preview/cardigan.mp3"},
	{Title: "Certified Lover Boy", Artist: "Drake", Album: "Certified Lover Boy", Duration: 253, Genre: "Hip-Hop",
		URL: "https://example.com/audio/clb.mp3", PreviewURL: "https://example.com/preview/clb.mp3"},
	{Title: "good 4 u", Artist: "Ariana Grande", Album: "Positions", Duration: 178, Genre: "Pop",
		URL: "https://example.com/audio/good4u.mp3", PreviewURL: "https://example.com/preview/good4u.mp3"},
	{Title: "Un x100to", Artist: "Bad Bunny", Album: "Un x100to", Duration: 252, Genre: "Reggaeton",
		URL: "https://example.com/audio/unx100to.mp3", PreviewURL: "https://example.com/preview/unx100to.mp3"},
	{Title: "After Hours", Artist: "The Weeknd", Album: "After Hours", Duration: 360, Genre: "R&B",
		URL: "https://example.com/audio/after-hours.mp3", PreviewURL: "https://example.com/preview/after-hours.mp3"},
}

// seedUsers returns the demo accounts; the first one takes the given credentials.
func seedUsers(email, password string) []seedUser {
	return []seedUser{
		{
			email: email, name: "Demo User", password: password,
			playlists: []seedPlaylist{
				{name: "My Favorites", description: "My favorite tracks", public: true, tracks: []int{0, 1, 4}},
				{name: "Chill Vibes", description: "Relaxing music", tracks: []int{1, 5}},
			},
		},
		{
			email: "test@example.com", name: "Test User", password: "test1234",
			playlists: []seedPlaylist{
				{name: "Workout Mix", description: "High energy tracks", public: true, tracks: []int{0, 2, 4}},
			},
		},
	}
}

func (p seedPlaylist) request(userID string) models.ImportRequest {
	req := models.ImportRequest{
		Name:        p.name,
		Description: p.description,
		UserID:      userID,
		Public:      p.public,
	}
	for _, i := range p.tracks {
		req.Tracks = append(req.Tracks, seedTracks[i])
	}
	return req
}
