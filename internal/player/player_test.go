package player

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/desertthunder/playdeck/internal/models"
)

type call struct {
	op    string
	value float64
	id    string
}

type fakeResource struct {
	calls   []call
	playErr error
}

func (f *fakeResource) Load(t models.Track, gen uint64) error {
	f.calls = append(f.calls, call{op: "load", id: t.ID, value: float64(gen)})
	return nil
}

func (f *fakeResource) Play() error {
	f.calls = append(f.calls, call{op: "play"})
	return f.playErr
}

func (f *fakeResource) Pause() error {
	f.calls = append(f.calls, call{op: "pause"})
	return nil
}

func (f *fakeResource) Seek(s float64) error {
	f.calls = append(f.calls, call{op: "seek", value: s})
	return nil
}

func (f *fakeResource) SetVolume(v float64) error {
	f.calls = append(f.calls, call{op: "volume", value: v})
	return nil
}

func (f *fakeResource) count(op string) int {
	n := 0
	for _, c := range f.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (f *fakeResource) reset() { f.calls = nil }

func tracks(n int) []models.Track {
	out := make([]models.Track, n)
	for i := range out {
		out[i] = models.Track{
			ID:       fmt.Sprintf("t%d", i),
			Title:    fmt.Sprintf("Track %d", i),
			Artist:   "Artist",
			URL:      fmt.Sprintf("https://example.com/%d", i),
			Duration: 180,
		}
	}
	return out
}

func newController(t *testing.T) (*Controller, *fakeResource) {
	t.Helper()
	res := &fakeResource{}
	return New(res, WithRand(rand.New(rand.NewPCG(1, 2)))), res
}

func TestControllerPlay(t *testing.T) {
	t.Run("locates track in playlist", func(t *testing.T) {
		c, res := newController(t)
		list := tracks(3)

		c.Play(list[1], list)
		s := c.Session()

		if s.State != Playing || s.Index != 1 || s.Track.ID != "t1" {
			t.Errorf("unexpected session: state=%v index=%d", s.State, s.Index)
		}
		if s.Position != 0 || s.Duration != 180 {
			t.Errorf("expected position 0 and provisional duration 180, got %v/%v", s.Position, s.Duration)
		}
		if len(s.Playlist) != 3 {
			t.Errorf("expected snapshot of 3, got %d", len(s.Playlist))
		}
		if res.count("load") != 1 || res.count("play") != 1 {
			t.Errorf("expected one load and one play, got %+v", res.calls)
		}
	})

	t.Run("absent track becomes a one track playlist", func(t *testing.T) {
		c, _ := newController(t)
		stranger := models.Track{ID: "x", Title: "X", Artist: "A", URL: "https://example.com/x"}

		c.Play(stranger, tracks(3))
		s := c.Session()

		if len(s.Playlist) != 1 || s.Index != 0 || s.Track.ID != "x" {
			t.Errorf("expected single-track playlist, got %+v", s)
		}
	})

	t.Run("empty playlist", func(t *testing.T) {
		c, _ := newController(t)
		one := tracks(1)[0]

		c.Play(one, nil)
		s := c.Session()
		if len(s.Playlist) != 1 || s.State != Playing {
			t.Errorf("expected single-track playlist, got %+v", s)
		}
	})

	t.Run("falls back to url identity", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(3)
		byURL := models.Track{Title: "unsaved", URL: list[2].URL}

		c.Play(byURL, list)
		if got := c.Session().Index; got != 2 {
			t.Errorf("expected index 2, got %d", got)
		}
	})

	t.Run("snapshot is isolated from caller", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(2)

		c.Play(list[0], list)
		list[1].Title = "mutated"

		if c.Session().Playlist[1].Title == "mutated" {
			t.Error("controller playlist shares memory with the caller")
		}
	})

	t.Run("each play bumps the generation", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(2)

		c.Play(list[0], list)
		first := c.Generation()
		c.Play(list[1], list)

		if c.Generation() != first+1 {
			t.Errorf("expected generation %d, got %d", first+1, c.Generation())
		}
	})

	t.Run("resource play errors are swallowed", func(t *testing.T) {
		res := &fakeResource{playErr: errors.New("autoplay blocked")}
		c := New(res)
		list := tracks(1)

		c.Play(list[0], list)
		if c.Session().State != Playing {
			t.Error("state should stay Playing when the resource fails")
		}
	})
}

func TestControllerTransport(t *testing.T) {
	t.Run("pause and resume", func(t *testing.T) {
		c, res := newController(t)
		list := tracks(2)
		c.Play(list[0], list)
		c.HandleTimeUpdate(c.Generation(), 42)
		res.reset()

		c.Pause()
		if s := c.Session(); s.State != Paused || s.Position != 42 {
			t.Errorf("expected paused at 42, got %v at %v", s.State, s.Position)
		}

		c.Resume()
		if s := c.Session(); s.State != Playing || s.Position != 42 {
			t.Errorf("expected playing from 42, got %v at %v", s.State, s.Position)
		}
		if res.count("load") != 0 {
			t.Error("resume must not reload the resource")
		}
	})

	t.Run("invalid transitions are no-ops", func(t *testing.T) {
		c, res := newController(t)

		c.Pause()
		c.Resume()
		if c.Session().State != Idle || len(res.calls) != 0 {
			t.Errorf("expected idle with no resource calls, got %v %+v", c.Session().State, res.calls)
		}

		list := tracks(1)
		c.Play(list[0], list)
		res.reset()
		c.Resume()
		if c.Session().State != Playing || len(res.calls) != 0 {
			t.Error("resume while playing should do nothing")
		}

		c.Pause()
		res.reset()
		c.Pause()
		if len(res.calls) != 0 {
			t.Error("pause while paused should do nothing")
		}
	})

	t.Run("toggle", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(1)
		c.Play(list[0], list)

		c.TogglePlay()
		if c.Session().State != Paused {
			t.Error("expected paused after toggle")
		}
		c.TogglePlay()
		if c.Session().State != Playing {
			t.Error("expected playing after second toggle")
		}
	})

	t.Run("seek clamps", func(t *testing.T) {
		tests := []struct {
			name string
			in   float64
			want float64
		}{
			{"inside", 90, 90},
			{"negative", -5, 0},
			{"past end", 500, 180},
			{"nan", math.NaN(), 0},
			{"infinite", math.Inf(1), 180},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c, _ := newController(t)
				list := tracks(1)
				c.Play(list[0], list)
				c.Pause()

				c.Seek(tt.in)
				s := c.Session()
				if s.Position != tt.want {
					t.Errorf("expected %v, got %v", tt.want, s.Position)
				}
				if s.State != Paused {
					t.Error("seek must not change state")
				}
			})
		}
	})

	t.Run("volume clamps", func(t *testing.T) {
		tests := []struct {
			in, want float64
		}{
			{0.5, 0.5}, {-1, 0}, {2, 1}, {math.NaN(), 0},
		}

		for _, tt := range tests {
			c, res := newController(t)
			c.SetVolume(tt.in)
			if got := c.Session().Volume; got != tt.want {
				t.Errorf("SetVolume(%v): expected %v, got %v", tt.in, tt.want, got)
			}
			if res.count("volume") != 1 {
				t.Error("expected volume forwarded to the resource")
			}
		}
	})
}

func TestControllerNext(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		start  int
		repeat models.RepeatMode
		want   int
	}{
		{"middle advances", 3, 0, models.RepeatOff, 1},
		{"last with repeat off replays last", 3, 2, models.RepeatOff, 2},
		{"last with repeat all wraps", 3, 2, models.RepeatAll, 0},
		{"last with repeat one clamps", 3, 2, models.RepeatOne, 2},
		{"single track", 1, 0, models.RepeatOff, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, res := newController(t)
			list := tracks(tt.size)
			c.SetRepeatMode(tt.repeat)
			c.Play(list[tt.start], list)
			res.reset()

			c.PlayNext()
			s := c.Session()
			if s.Index != tt.want {
				t.Errorf("expected index %d, got %d", tt.want, s.Index)
			}
			if s.State != Playing {
				t.Errorf("manual skip should always play, got %v", s.State)
			}
			if res.count("load") != 1 {
				t.Error("skip should reload the resource")
			}
		})
	}

	t.Run("empty playlist is a no-op", func(t *testing.T) {
		c, res := newController(t)
		c.PlayNext()
		c.PlayPrevious()
		if c.Session().State != Idle || len(res.calls) != 0 {
			t.Error("expected nothing to happen without a playlist")
		}
	})

	t.Run("duplicate tracks advance by position", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(2)
		list = append(list, list[0])
		c.Play(list[1], list)

		c.PlayNext()
		if got := c.Session().Index; got != 2 {
			t.Errorf("expected index 2, got %d", got)
		}
	})
}

func TestControllerPrevious(t *testing.T) {
	tests := []struct {
		name   string
		start  int
		repeat models.RepeatMode
		want   int
	}{
		{"middle goes back", 1, models.RepeatOff, 0},
		{"first wraps with repeat off", 0, models.RepeatOff, 2},
		{"first wraps with repeat all", 0, models.RepeatAll, 2},
		{"last goes back", 2, models.RepeatOne, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(t)
			list := tracks(3)
			c.SetRepeatMode(tt.repeat)
			c.Play(list[tt.start], list)

			c.PlayPrevious()
			if got := c.Session().Index; got != tt.want {
				t.Errorf("expected index %d, got %d", tt.want, got)
			}
		})
	}
}

func TestControllerShuffle(t *testing.T) {
	t.Run("never repeats the current index", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(4)
		c.SetShuffle(true)
		c.Play(list[0], list)

		seen := map[int]bool{}
		for range 200 {
			before := c.Session().Index
			c.PlayNext()
			after := c.Session().Index
			if after == before {
				t.Fatalf("shuffle picked the current index %d", before)
			}
			seen[after] = true
		}
		if len(seen) != 4 {
			t.Errorf("expected every index to be drawn, saw %v", seen)
		}
	})

	t.Run("previous under shuffle", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(3)
		c.SetShuffle(true)
		c.Play(list[1], list)

		for range 50 {
			before := c.Session().Index
			c.PlayPrevious()
			if c.Session().Index == before {
				t.Fatalf("shuffle previous picked the current index %d", before)
			}
		}
	})

	t.Run("single track", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(1)
		c.SetShuffle(true)
		c.Play(list[0], list)

		c.PlayNext()
		if c.Session().Index != 0 {
			t.Error("expected index 0 for a one-track playlist")
		}
	})

	t.Run("deterministic with seeded source", func(t *testing.T) {
		run := func() []int {
			c := New(nil, WithRand(rand.New(rand.NewPCG(7, 7))))
			list := tracks(5)
			c.SetShuffle(true)
			c.Play(list[0], list)
			var out []int
			for range 10 {
				c.PlayNext()
				out = append(out, c.Session().Index)
			}
			return out
		}

		a, b := run(), run()
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("sequences differ at %d: %v vs %v", i, a, b)
			}
		}
	})

	t.Run("flags do not touch the current track", func(t *testing.T) {
		c, res := newController(t)
		list := tracks(3)
		c.Play(list[1], list)
		res.reset()

		if !c.ToggleShuffle() {
			t.Error("expected shuffle on")
		}
		if got := c.CycleRepeatMode(); got != models.RepeatAll {
			t.Errorf("expected all, got %s", got)
		}
		if got := c.CycleRepeatMode(); got != models.RepeatOne {
			t.Errorf("expected one, got %s", got)
		}
		if got := c.CycleRepeatMode(); got != models.RepeatOff {
			t.Errorf("expected off, got %s", got)
		}
		if len(res.calls) != 0 || c.Session().Index != 1 {
			t.Error("flag changes must not affect playback")
		}
	})
}

func TestControllerNaturalEnd(t *testing.T) {
	t.Run("advances mid playlist", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(3)
		c.Play(list[0], list)

		c.HandleEnded(c.Generation())
		if s := c.Session(); s.Index != 1 || s.State != Playing {
			t.Errorf("expected playing index 1, got %v index %d", s.State, s.Index)
		}
	})

	t.Run("last track with repeat off stops", func(t *testing.T) {
		c, res := newController(t)
		list := tracks(3)
		c.Play(list[2], list)
		c.HandleTimeUpdate(c.Generation(), 179)
		res.reset()

		c.HandleEnded(c.Generation())
		s := c.Session()
		if s.State != Stopped || s.Playing() {
			t.Errorf("expected stopped, got %v", s.State)
		}
		if s.Index != 2 || s.Position != 0 {
			t.Errorf("expected index 2 at 0, got %d at %v", s.Index, s.Position)
		}
		if res.count("pause") != 1 || res.count("seek") != 1 || res.count("load") != 0 {
			t.Errorf("expected pause and rewind without reload, got %+v", res.calls)
		}
	})

	t.Run("stopped session restarts on resume", func(t *testing.T) {
		c, res := newController(t)
		list := tracks(2)
		c.Play(list[1], list)
		c.HandleEnded(c.Generation())
		res.reset()

		c.Resume()
		s := c.Session()
		if s.State != Playing || s.Index != 1 || s.Position != 0 {
			t.Errorf("expected replay of index 1 from 0, got %v %d %v", s.State, s.Index, s.Position)
		}
		if res.count("load") != 0 {
			t.Error("restart should reuse the loaded resource")
		}
	})

	t.Run("last track with repeat all wraps", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(3)
		c.SetRepeatMode(models.RepeatAll)
		c.Play(list[2], list)

		c.HandleEnded(c.Generation())
		if s := c.Session(); s.Index != 0 || s.State != Playing {
			t.Errorf("expected wrap to 0, got %v index %d", s.State, s.Index)
		}
	})

	t.Run("repeat one restarts without reload", func(t *testing.T) {
		c, res := newController(t)
		list := tracks(3)
		c.SetRepeatMode(models.RepeatOne)
		c.Play(list[2], list)
		gen := c.Generation()
		c.HandleTimeUpdate(gen, 179)
		res.reset()

		c.HandleEnded(gen)
		s := c.Session()
		if s.Index != 2 || s.Position != 0 || s.State != Playing {
			t.Errorf("expected index 2 playing from 0, got %d %v %v", s.Index, s.Position, s.State)
		}
		if res.count("load") != 0 || c.Generation() != gen {
			t.Error("repeat one must not reload")
		}
	})

	t.Run("stale callbacks are ignored", func(t *testing.T) {
		c, _ := newController(t)
		list := tracks(3)
		c.Play(list[0], list)
		stale := c.Generation()
		c.Play(list[1], list)

		c.HandleEnded(stale)
		c.HandleTimeUpdate(stale, 99)
		c.HandleMetadata(stale, 999)

		s := c.Session()
		if s.Index != 1 || s.Position != 0 || s.Duration != 180 {
			t.Errorf("stale callbacks leaked into the session: %+v", s)
		}
	})
}

func TestControllerMetadata(t *testing.T) {
	c, _ := newController(t)
	list := tracks(1)
	list[0].Duration = 0
	c.Play(list[0], list)
	gen := c.Generation()

	c.HandleMetadata(gen, math.NaN())
	if c.Session().Duration != 0 {
		t.Error("NaN duration should be ignored")
	}

	c.HandleMetadata(gen, 200.5)
	if c.Session().Duration != 200.5 {
		t.Errorf("expected duration 200.5, got %v", c.Session().Duration)
	}

	c.Seek(1000)
	if c.Session().Position != 200.5 {
		t.Errorf("expected clamp to reported duration, got %v", c.Session().Position)
	}
}

func TestControllerApplySettings(t *testing.T) {
	c, _ := newController(t)
	s := models.DefaultSettings()
	s.ShuffleMode = true
	s.RepeatMode = models.RepeatOne
	s.DefaultVolume = 35

	c.ApplySettings(s)
	got := c.Session()
	if !got.Shuffle || got.Repeat != models.RepeatOne || got.Volume != 0.35 {
		t.Errorf("settings not applied: %+v", got)
	}
}

func TestSessionProgress(t *testing.T) {
	tests := []struct {
		s    Session
		want float64
	}{
		{Session{Position: 30, Duration: 120}, 0.25},
		{Session{Position: 30, Duration: 0}, 0},
		{Session{Position: 200, Duration: 100}, 1},
	}
	for _, tt := range tests {
		if got := tt.s.Progress(); got != tt.want {
			t.Errorf("Progress(%v/%v) = %v, want %v", tt.s.Position, tt.s.Duration, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Playing: "playing", Paused: "paused", Stopped: "stopped", State(9): "unknown"} {
		if s.String() != want {
			t.Errorf("expected %s, got %s", want, s.String())
		}
	}
}
