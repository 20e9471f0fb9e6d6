package game

// Score is the session's running score. It only goes up by awards and only
// goes down by a full reset.
type Score struct {
	value int
}

// Award adds points (negative values are ignored) and returns the new total.
func (s *Score) Award(points int) int {
	if points > 0 {
		s.value += points
	}
	return s.value
}

func (s *Score) Reset() { s.value = 0 }

func (s *Score) Value() int { return s.value }

// Soundtrack mirrors the looping background track. The server only tracks
// its state; the client does the playing.
type Soundtrack struct {
	playing bool
	volume  float64
}

func newSoundtrack() Soundtrack { return Soundtrack{playing: true, volume: 1} }

func (m *Soundtrack) Play()  { m.playing = true }
func (m *Soundtrack) Pause() { m.playing = false }

// SetVolume clamps v into [0,1].
func (m *Soundtrack) SetVolume(v float64) {
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	m.volume = v
}

func (m *Soundtrack) State() MusicState {
	return MusicState{Playing: m.playing, Volume: m.volume}
}
