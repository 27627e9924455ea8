// Package playback maps a playback position onto transcript segments.
//
// A Session follows one listener: which audio is loaded, which segment was
// clicked ("active"), and which segments contain the current position
// ("playing"). Active and playing are independent and may overlap.
package playback

import (
	"errors"
	"fmt"

	"github.com/codebuildervaibhav/audio-library/internal/types"
)

// State of a playback session
type State int

const (
	Idle State = iota
	Loaded
	Seeking
	PlayingHighlighted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loaded:
		return "loaded"
	case Seeking:
		return "seeking"
	case PlayingHighlighted:
		return "playing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	ErrNoAudio      = errors.New("no audio loaded")
	ErrSegmentRange = errors.New("segment index out of range")
)

// SeekCommand tells the player where to jump and whether to start playing
type SeekCommand struct {
	Position float64 `json:"position"`
	Play     bool    `json:"play"`
}

// Session is not safe for concurrent use; it is driven from one event loop
type Session struct {
	state    State
	audioID  string
	audioURL string
	segments []types.Segment
	active   int
	playing  []int
}

// NewSession returns an idle session
func NewSession() *Session {
	return &Session{active: -1}
}

// State returns the current state
func (s *Session) State() State { return s.state }

// AudioID returns the loaded audio id, empty when idle
func (s *Session) AudioID() string { return s.audioID }

// AudioURL returns the source set on the player
func (s *Session) AudioURL() string { return s.audioURL }

// Segments returns the loaded segments
func (s *Session) Segments() []types.Segment { return s.segments }

// Active returns the clicked segment index, or -1
func (s *Session) Active() int { return s.active }

// Playing returns the indexes highlighted by the last tick
func (s *Session) Playing() []int { return s.playing }

// Load selects a library item. Any previous selection is replaced.
func (s *Session) Load(audioID, audioURL string, segments []types.Segment) {
	s.state = Loaded
	s.audioID = audioID
	s.audioURL = audioURL
	s.segments = segments
	s.active = -1
	s.playing = nil
}

// Click marks segment index active and returns the seek that starts
// playback at its start
func (s *Session) Click(index int) (SeekCommand, error) {
	if s.state == Idle {
		return SeekCommand{}, ErrNoAudio
	}
	if index < 0 || index >= len(s.segments) {
		return SeekCommand{}, fmt.Errorf("%w: %d of %d", ErrSegmentRange, index, len(s.segments))
	}
	s.state = Seeking
	s.active = index
	return SeekCommand{Position: s.segments[index].Start, Play: true}, nil
}

// Tick recomputes the playing set for the player's current position. It is
// called at the player's time-update cadence and ignored while idle.
func (s *Session) Tick(position float64) []int {
	if s.state == Idle {
		return nil
	}
	if s.state == Loaded || s.state == Seeking {
		s.state = PlayingHighlighted
	}
	s.playing = Highlight(s.segments, position)
	return s.playing
}

// Unload returns to Idle if audioID is the loaded audio, as after a delete
func (s *Session) Unload(audioID string) bool {
	if s.state == Idle || s.audioID != audioID {
		return false
	}
	*s = Session{active: -1}
	return true
}

// Highlight returns the indexes of all segments whose [start, end] contains
// position. It is a linear scan; transcripts hold tens to hundreds of segments.
func Highlight(segments []types.Segment, position float64) []int {
	var out []int
	for i, seg := range segments {
		if position >= seg.Start && position <= seg.End {
			out = append(out, i)
		}
	}
	return out
}
