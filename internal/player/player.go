// Package player implements the playback controller: a transport state machine
// over an in-memory playlist snapshot that drives a single [MediaResource].
//
// The [Controller] is single-owner. Callers serialize access, typically from one
// event loop, and feed resource callbacks back through the Handle* methods tagged
// with the generation returned at load time. Callbacks from a superseded load are
// dropped.
package player

import (
	"io"
	"math"
	"math/rand/v2"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/models"
)

// State is the transport state of a session.
type State int

const (
	Idle State = iota
	Playing
	Paused
	Stopped
)

// String returns the display name of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MediaResource is the audio sink the controller drives.
//
// Load replaces whatever was loaded before. The generation must accompany every
// callback the resource reports for that load.
type MediaResource interface {
	Load(track models.Track, generation uint64) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(v float64) error
}

// Session is a read-only snapshot of the controller state.
type Session struct {
	Track      *models.Track     `json:"track"`
	Playlist   []models.Track    `json:"playlist"`
	Index      int               `json:"index"`
	State      State             `json:"-"`
	Position   float64           `json:"position"`
	Duration   float64           `json:"duration"`
	Volume     float64           `json:"volume"`
	Shuffle    bool              `json:"shuffle"`
	Repeat     models.RepeatMode `json:"repeat"`
	Generation uint64            `json:"-"`
}

// Playing reports whether audio is advancing.
func (s Session) Playing() bool { return s.State == Playing }

// Progress returns position/duration in [0,1], or 0 when the duration is unknown.
func (s Session) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return min(max(s.Position/s.Duration, 0), 1)
}

// Option configures a [Controller].
type Option func(*Controller)

// WithRand sets the random source used for shuffle.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rng = r }
}

// WithLogger sets the logger used to report resource failures.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller owns a playback session and the resource it drives.
type Controller struct {
	resource MediaResource
	rng      *rand.Rand
	logger   *log.Logger

	track    *models.Track
	playlist []models.Track
	index    int
	state    State
	position float64
	duration float64
	volume   float64
	shuffle  bool
	repeat   models.RepeatMode
	gen      uint64
}

// New creates an idle controller at full volume with shuffle and repeat off.
func New(resource MediaResource, opts ...Option) *Controller {
	c := &Controller{
		resource: resource,
		index:    -1,
		volume:   1,
		repeat:   models.RepeatOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resource == nil {
		c.resource = nopResource{}
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// Play starts track within playlist.
//
// The track is located in the playlist by ID, or by URL when either ID is empty.
// A track that is not in the playlist plays as a one-track playlist.
func (c *Controller) Play(track models.Track, playlist []models.Track) {
	idx := indexOf(playlist, track)
	if idx < 0 {
		c.playAt([]models.Track{track}, 0)
		return
	}
	c.playAt(playlist, idx)
}

// playAt replaces the snapshot, loads playlist[idx] under a new generation and starts it.
func (c *Controller) playAt(playlist []models.Track, idx int) {
	snapshot := append([]models.Track(nil), playlist...)
	track := snapshot[idx]

	c.gen++
	c.playlist = snapshot
	c.index = idx
	c.track = &track
	c.state = Playing
	c.position = 0
	c.duration = float64(track.Duration)

	if err := c.resource.Load(track, c.gen); err != nil {
		c.logger.Error("failed to load track", "title", track.Title, "url", track.URL, "error", err)
	}
	if err := c.resource.Play(); err != nil {
		c.logger.Error("playback failed", "title", track.Title, "error", err)
	}
}

// Pause freezes a playing session. It has no effect in any other state.
func (c *Controller) Pause() {
	if c.state != Playing {
		return
	}
	c.state = Paused
	if err := c.resource.Pause(); err != nil {
		c.logger.Error("pause failed", "error", err)
	}
}

// Resume continues a paused session from its frozen position.
// A stopped session restarts its current track from the beginning.
func (c *Controller) Resume() {
	switch c.state {
	case Paused:
	case Stopped:
		c.position = 0
		if err := c.resource.Seek(0); err != nil {
			c.logger.Error("seek failed", "error", err)
		}
	default:
		return
	}

	c.state = Playing
	if err := c.resource.Play(); err != nil {
		c.logger.Error("playback failed", "error", err)
	}
}

// TogglePlay pauses a playing session and resumes a paused or stopped one.
func (c *Controller) TogglePlay() {
	if c.state == Playing {
		c.Pause()
		return
	}
	c.Resume()
}

// Seek moves the position to t clamped to [0, duration]. NaN seeks to 0.
func (c *Controller) Seek(t float64) {
	if c.state == Idle {
		return
	}
	c.position = clamp(t, 0, c.duration)
	if err := c.resource.Seek(c.position); err != nil {
		c.logger.Error("seek failed", "error", err)
	}
}

// SetVolume sets the volume clamped to [0,1]. NaN mutes.
func (c *Controller) SetVolume(v float64) {
	c.volume = clamp(v, 0, 1)
	if err := c.resource.SetVolume(c.volume); err != nil {
		c.logger.Error("volume change failed", "error", err)
	}
}

// PlayNext skips forward.
//
// On the last track with repeat off, skipping replays the last track.
func (c *Controller) PlayNext() {
	c.advance(false)
}

// PlayPrevious moves back one track, wrapping to the end regardless of repeat mode.
// With shuffle on it picks a random other track.
func (c *Controller) PlayPrevious() {
	n := len(c.playlist)
	if n == 0 {
		return
	}

	var prev int
	switch {
	case c.shuffle:
		prev = c.randomIndex()
	case c.index <= 0:
		prev = n - 1
	default:
		prev = c.index - 1
	}
	c.playAt(c.playlist, prev)
}

func (c *Controller) advance(fromNaturalEnd bool) {
	n := len(c.playlist)
	if n == 0 {
		return
	}

	if fromNaturalEnd && c.repeat == models.RepeatOff && c.index == n-1 {
		c.stop()
		return
	}
	c.playAt(c.playlist, c.nextIndex())
}

func (c *Controller) nextIndex() int {
	if c.shuffle {
		return c.randomIndex()
	}

	next := c.index + 1
	if next >= len(c.playlist) {
		if c.repeat == models.RepeatAll {
			return 0
		}
		return len(c.playlist) - 1
	}
	return next
}

// randomIndex draws uniformly from every index except the current one.
func (c *Controller) randomIndex() int {
	n := len(c.playlist)
	if n == 1 {
		return 0
	}
	if c.index < 0 || c.index >= n {
		return c.rng.IntN(n)
	}
	i := c.rng.IntN(n - 1)
	if i >= c.index {
		i++
	}
	return i
}

// stop ends playback at the last track: position rewinds and the index stays put.
func (c *Controller) stop() {
	c.state = Stopped
	c.position = 0
	if err := c.resource.Pause(); err != nil {
		c.logger.Error("pause failed", "error", err)
	}
	if err := c.resource.Seek(0); err != nil {
		c.logger.Error("seek failed", "error", err)
	}
}

// HandleEnded reacts to the resource finishing the track loaded under gen.
//
// Repeat one restarts the same track without reloading it. Otherwise the
// controller advances, stopping after the last track when repeat is off.
func (c *Controller) HandleEnded(gen uint64) {
	if gen != c.gen || c.state == Idle {
		return
	}

	if c.repeat == models.RepeatOne {
		c.position = 0
		c.state = Playing
		if err := c.resource.Seek(0); err != nil {
			c.logger.Error("seek failed", "error", err)
		}
		if err := c.resource.Play(); err != nil {
			c.logger.Error("playback failed", "error", err)
		}
		return
	}
	c.advance(true)
}

// HandleTimeUpdate records the resource position for the load tagged gen.
func (c *Controller) HandleTimeUpdate(gen uint64, position float64) {
	if gen != c.gen || c.state == Idle {
		return
	}
	if math.IsNaN(position) || position < 0 {
		position = 0
	}
	c.position = position
}

// HandleMetadata replaces the provisional duration once the resource knows it.
func (c *Controller) HandleMetadata(gen uint64, duration float64) {
	if gen != c.gen || c.state == Idle {
		return
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return
	}
	c.duration = duration
	c.position = min(c.position, duration)
}

// ToggleShuffle flips shuffle and returns the new value.
func (c *Controller) ToggleShuffle() bool {
	c.shuffle = !c.shuffle
	return c.shuffle
}

// SetShuffle sets the shuffle flag.
func (c *Controller) SetShuffle(on bool) {
	c.shuffle = on
}

// CycleRepeatMode advances off → all → one → off and returns the new mode.
func (c *Controller) CycleRepeatMode() models.RepeatMode {
	c.repeat = c.repeat.Next()
	return c.repeat
}

// SetRepeatMode sets the repeat mode. Unknown modes are treated as off.
func (c *Controller) SetRepeatMode(mode models.RepeatMode) {
	switch mode {
	case models.RepeatAll, models.RepeatOne:
		c.repeat = mode
	default:
		c.repeat = models.RepeatOff
	}
}

// ApplySettings seeds shuffle, repeat and volume from stored user settings.
func (c *Controller) ApplySettings(s models.Settings) {
	c.SetShuffle(s.ShuffleMode)
	c.SetRepeatMode(s.RepeatMode)
	c.SetVolume(s.Volume())
}

// Generation returns the tag of the current load.
func (c *Controller) Generation() uint64 {
	return c.gen
}

// Session returns a copy of the current state.
func (c *Controller) Session() Session {
	s := Session{
		Playlist:   append([]models.Track{}, c.playlist...),
		Index:      c.index,
		State:      c.state,
		Position:   c.position,
		Duration:   c.duration,
		Volume:     c.volume,
		Shuffle:    c.shuffle,
		Repeat:     c.repeat,
		Generation: c.gen,
	}
	if c.track != nil {
		t := *c.track
		s.Track = &t
	}
	return s
}

func indexOf(playlist []models.Track, track models.Track) int {
	for i, t := range playlist {
		if t.SameAs(track) {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return max(lo, min(v, hi))
}

type nopResource struct{}

func (nopResource) Load(models.Track, uint64) error { return nil }
func (nopResource) Play() error                     { return nil }
func (nopResource) Pause() error                    { return nil }
func (nopResource) Seek(float64) error              { return nil }
func (nopResource) SetVolume(float64) error         { return nil }
