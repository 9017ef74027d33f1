package player

import (
	"sync"
	"time"

	"github.com/desertthunder/playdeck/internal/models"
)

// EventKind identifies a resource callback.
type EventKind int

const (
	EventMetadata EventKind = iota
	EventTimeUpdate
	EventEnded
)

// Event is a resource callback tagged with the generation of the load that produced it.
type Event struct {
	Kind       EventKind
	Generation uint64
	Value      float64
}

// Dispatch routes ev to the matching Handle* method.
func (c *Controller) Dispatch(ev Event) {
	switch ev.Kind {
	case EventMetadata:
		c.HandleMetadata(ev.Generation, ev.Value)
	case EventTimeUpdate:
		c.HandleTimeUpdate(ev.Generation, ev.Value)
	case EventEnded:
		c.HandleEnded(ev.Generation)
	}
}

// Simulator is a [MediaResource] backed by a virtual clock instead of audio output.
//
// The terminal player advances it on every tick and dispatches the returned events,
// which keeps the controller logic identical to a real audio backend.
type Simulator struct {
	mu       sync.Mutex
	gen      uint64
	loaded   bool
	playing  bool
	position float64
	duration float64
	volume   float64
	pending  []Event
}

// NewSimulator returns an empty simulator at full volume.
func NewSimulator() *Simulator {
	return &Simulator{volume: 1}
}

// Load resets the clock for track and queues a metadata event with its duration.
// Tracks without a duration get a 30 second preview length.
func (s *Simulator) Load(track models.Track, generation uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen = generation
	s.loaded = true
	s.playing = false
	s.position = 0
	s.duration = float64(track.Duration)
	if s.duration <= 0 {
		s.duration = 30
	}
	s.pending = append(s.pending[:0], Event{Kind: EventMetadata, Generation: generation, Value: s.duration})
	return nil
}

func (s *Simulator) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		s.playing = true
	}
	return nil
}

func (s *Simulator) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	return nil
}

func (s *Simulator) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = clamp(seconds, 0, s.duration)
	return nil
}

func (s *Simulator) SetVolume(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	return nil
}

// Volume returns the last volume set.
func (s *Simulator) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Advance moves the clock forward by d while playing and returns the events produced,
// oldest first. Reaching the end stops the clock and emits [EventEnded].
func (s *Simulator) Advance(d time.Duration) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.pending
	s.pending = nil

	if !s.playing {
		return events
	}

	s.position += d.Seconds()
	if s.position >= s.duration {
		s.position = s.duration
		s.playing = false
		return append(events,
			Event{Kind: EventTimeUpdate, Generation: s.gen, Value: s.position},
			Event{Kind: EventEnded, Generation: s.gen},
		)
	}
	return append(events, Event{Kind: EventTimeUpdate, Generation: s.gen, Value: s.position})
}
