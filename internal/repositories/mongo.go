package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playdeck/internal/models"
	"github.com/desertthunder/playdeck/internal/shared"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoOpTimeout    = 5 * time.Second
	mongoQueryTimeout = 10 * time.Second
)

// OpenMongo connects to uri and returns the named database.
// The returned func disconnects the client.
func OpenMongo(ctx context.Context, uri, database string) (*mongo.Database, func(context.Context) error, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoQueryTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client.Database(database), client.Disconnect, nil
}

type trackDoc struct {
	ID         string    `bson:"_id"`
	Title      string    `bson:"title"`
	Artist     string    `bson:"artist"`
	Album      string    `bson:"album"`
	Duration   int       `bson:"duration"`
	URL        string    `bson:"url"`
	PreviewURL string    `bson:"previewUrl"`
	Image      string    `bson:"image"`
	Genre      string    `bson:"genre"`
	Plays      int       `bson:"plays"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

type playlistDoc struct {
	ID          string    `bson:"_id"`
	UserID      string    `bson:"userId"`
	Name        string    `bson:"name"`
	Description string    `bson:"description"`
	Image       string    `bson:"image"`
	Public      bool      `bson:"isPublic"`
	TrackIDs    []string  `bson:"trackIds"`
	CreatedAt   time.Time `bson:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt"`
}

func toTrackDoc(t *models.Track) trackDoc {
	return trackDoc{
		ID: t.ID, Title: t.Title, Artist: t.Artist, Album: t.Album, Duration: t.Duration,
		URL: t.URL, PreviewURL: t.PreviewURL, Image: t.Image, Genre: t.Genre, Plays: t.Plays,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	}
}

func (d trackDoc) track() models.Track {
	return models.Track{
		ID: d.ID, Title: d.Title, Artist: d.Artist, Album: d.Album, Duration: d.Duration,
		URL: d.URL, PreviewURL: d.PreviewURL, Image: d.Image, Genre: d.Genre, Plays: d.Plays,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
}

func toPlaylistDoc(p *models.Playlist) playlistDoc {
	ids := p.TrackIDs
	if ids == nil {
		ids = []string{}
	}
	return playlistDoc{
		ID: p.ID, UserID: p.UserID, Name: p.Name, Description: p.Description, Image: p.Image,
		Public: p.Public, TrackIDs: ids, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
	}
}

// playlist resolves the document's references against byID, keeping order and duplicates.
// References missing from byID are kept in TrackIDs only.
func (d playlistDoc) playlist(byID map[string]models.Track) *models.Playlist {
	p := &models.Playlist{
		ID: d.ID, UserID: d.UserID, Name: d.Name, Description: d.Description, Image: d.Image,
		Public: d.Public, TrackIDs: append([]string{}, d.TrackIDs...), Tracks: []models.Track{},
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}
	for _, id := range d.TrackIDs {
		if t, ok := byID[id]; ok {
			p.Tracks = append(p.Tracks, t)
		}
	}
	return p
}

// MongoTrackStore keeps tracks in a Mongo collection with a unique url index.
type MongoTrackStore struct {
	col *mongo.Collection
}

// NewMongoTrackStore returns a store over db's "tracks" collection and ensures its indexes.
func NewMongoTrackStore(db *mongo.Database) (*MongoTrackStore, error) {
	col := db.Collection("tracks")

	ctx, cancel := context.WithTimeout(context.Background(), mongoQueryTimeout)
	defer cancel()
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "artist", Value: 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create track indexes: %w", err)
	}
	return &MongoTrackStore{col: col}, nil
}

// Create inserts track, returning [shared.ErrDuplicateTrack] when the url is taken.
func (s *MongoTrackStore) Create(ctx context.Context, track *models.Track) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := toTrackDoc(track)
	doc.ID = shared.GenerateID()
	doc.CreatedAt, doc.UpdatedAt = now, now

	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", shared.ErrDuplicateTrack, track.URL)
		}
		return fmt.Errorf("failed to insert track: %w", err)
	}

	track.ID = doc.ID
	track.CreatedAt, track.UpdatedAt = now, now
	return nil
}

// Get retrieves a track by ID.
func (s *MongoTrackStore) Get(ctx context.Context, id string) (*models.Track, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByURL retrieves the track with the given url.
func (s *MongoTrackStore) GetByURL(ctx context.Context, url string) (*models.Track, error) {
	return s.findOne(ctx, bson.M{"url": url})
}

// List returns up to limit tracks oldest first. A non-positive limit returns all.
func (s *MongoTrackStore) List(ctx context.Context, limit int) ([]models.Track, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.find(ctx, bson.M{}, opts)
}

func (s *MongoTrackStore) byIDs(ctx context.Context, ids []string) (map[string]models.Track, error) {
	out := map[string]models.Track{}
	if len(ids) == 0 {
		return out, nil
	}
	tracks, err := s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
	if err != nil {
		return nil, err
	}
	for _, t := range tracks {
		out[t.ID] = t
	}
	return out, nil
}

func (s *MongoTrackStore) findOne(ctx context.Context, filter bson.M) (*models.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc trackDoc
	err := s.col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query track: %w", err)
	}
	t := doc.track()
	return &t, nil
}

func (s *MongoTrackStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoQueryTimeout)
	defer cancel()

	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer cur.Close(ctx)

	out := []models.Track{}
	for cur.Next(ctx) {
		var doc trackDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode track: %w", err)
		}
		out = append(out, doc.track())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

// MongoPlaylistStore keeps playlists as documents holding an ordered trackIds array.
type MongoPlaylistStore struct {
	col    *mongo.Collection
	tracks *MongoTrackStore
}

// NewMongoPlaylistStore returns a store over db's "playlists" collection.
// Reads are populated through tracks.
func NewMongoPlaylistStore(db *mongo.Database, tracks *MongoTrackStore) (*MongoPlaylistStore, error) {
	col := db.Collection("playlists")

	ctx, cancel := context.WithTimeout(context.Background(), mongoQueryTimeout)
	defer cancel()
	if _, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}}}); err != nil {
		return nil, fmt.Errorf("failed to create playlist indexes: %w", err)
	}
	return &MongoPlaylistStore{col: col, tracks: tracks}, nil
}

// Create inserts playlist with its track references.
func (s *MongoPlaylistStore) Create(ctx context.Context, playlist *models.Playlist) error {
	if err := playlist.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := toPlaylistDoc(playlist)
	doc.ID = shared.GenerateID()
	doc.CreatedAt, doc.UpdatedAt = now, now

	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	playlist.ID = doc.ID
	playlist.CreatedAt, playlist.UpdatedAt = now, now
	return nil
}

// Get retrieves a playlist by ID populated with its tracks.
func (s *MongoPlaylistStore) Get(ctx context.Context, id string) (*models.Playlist, error) {
	opCtx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	var doc playlistDoc
	err := s.col.FindOne(opCtx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, shared.ErrPlaylistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist: %w", err)
	}

	byID, err := s.tracks.byIDs(ctx, doc.TrackIDs)
	if err != nil {
		return nil, err
	}
	return doc.playlist(byID), nil
}

// ListByUser returns the user's playlists oldest first, each populated.
func (s *MongoPlaylistStore) ListByUser(ctx context.Context, userID string) ([]models.Playlist, error) {
	opCtx, cancel := context.WithTimeout(ctx, mongoQueryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.col.Find(opCtx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer cur.Close(opCtx)

	var docs []playlistDoc
	if err := cur.All(opCtx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode playlists: %w", err)
	}

	out := make([]models.Playlist, 0, len(docs))
	for _, doc := range docs {
		byID, err := s.tracks.byIDs(ctx, doc.TrackIDs)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc.playlist(byID))
	}
	return out, nil
}

// AppendTrack pushes trackID onto the playlist's references.
func (s *MongoPlaylistStore) AppendTrack(ctx context.Context, playlistID, trackID string) (*models.Playlist, error) {
	if _, err := s.tracks.Get(ctx, trackID); err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	defer cancel()

	update := bson.M{
		"$push": bson.M{"trackIds": trackID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	}
	result, err := s.col.UpdateOne(opCtx, bson.M{"_id": playlistID}, update)
	if err != nil {
		return nil, fmt.Errorf("failed to append track: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, shared.ErrPlaylistNotFound
	}
	return s.Get(ctx, playlistID)
}
