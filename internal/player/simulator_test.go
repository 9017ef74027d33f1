package player

import (
	"testing"
	"time"

	"github.com/desertthunder/playdeck/internal/models"
)

func drive(c *Controller, sim *Simulator, d time.Duration) {
	for _, ev := range sim.Advance(d) {
		c.Dispatch(ev)
	}
}

func TestSimulator(t *testing.T) {
	t.Run("reports metadata then time", func(t *testing.T) {
		sim := NewSimulator()
		c := New(sim)
		list := tracks(2)
		list[0].Duration = 10
		c.Play(list[0], list)

		drive(c, sim, 3*time.Second)
		s := c.Session()
		if s.Duration != 10 || s.Position != 3 {
			t.Errorf("expected 3/10, got %v/%v", s.Position, s.Duration)
		}
	})

	t.Run("paused clock does not move", func(t *testing.T) {
		sim := NewSimulator()
		c := New(sim)
		list := tracks(1)
		c.Play(list[0], list)
		drive(c, sim, time.Second)
		c.Pause()

		drive(c, sim, 5*time.Second)
		if got := c.Session().Position; got != 1 {
			t.Errorf("expected position 1, got %v", got)
		}
	})

	t.Run("end of track advances the controller", func(t *testing.T) {
		sim := NewSimulator()
		c := New(sim)
		list := tracks(2)
		list[0].Duration = 2
		list[1].Duration = 2
		c.Play(list[0], list)

		drive(c, sim, 3*time.Second)
		if got := c.Session().Index; got != 1 {
			t.Fatalf("expected index 1, got %d", got)
		}

		drive(c, sim, 3*time.Second)
		if s := c.Session(); s.State != Stopped || s.Index != 1 {
			t.Errorf("expected stopped on last track, got %v index %d", s.State, s.Index)
		}
	})

	t.Run("events from a replaced load are dropped", func(t *testing.T) {
		sim := NewSimulator()
		c := New(sim)
		list := tracks(2)
		c.Play(list[0], list)
		old := c.Generation()
		c.Play(list[1], list)

		for _, ev := range sim.Advance(time.Second) {
			if ev.Generation == old {
				t.Errorf("simulator emitted an event for superseded generation %d", old)
			}
		}
	})

	t.Run("tracks without duration use preview length", func(t *testing.T) {
		sim := NewSimulator()
		c := New(sim)
		c.Play(models.Track{ID: "x", Title: "X", Artist: "A", URL: "u"}, nil)

		drive(c, sim, time.Second)
		if got := c.Session().Duration; got != 30 {
			t.Errorf("expected 30s preview, got %v", got)
		}
	})

	t.Run("volume forwarded", func(t *testing.T) {
		sim := NewSimulator()
		c := New(sim)
		c.SetVolume(0.4)
		if sim.Volume() != 0.4 {
			t.Errorf("expected 0.4, got %v", sim.Volume())
		}
	})
}
