// Package autocomplete implements the debounced, keyboard-navigable suggestion
// session behind a single search input. A Session is a plain state machine;
// renderers subscribe to it through an Observer and receive immutable Views.
package autocomplete

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seniorliving/directory-search/internal/search/ranker"
	"github.com/seniorliving/directory-search/internal/search/textmatch"
)

const (
	DefaultDebounce       = 200 * time.Millisecond
	DefaultMinInputLength = 2
	DefaultMaxSuggestions = 10
)

type State int

const (
	Idle State = iota
	Debouncing
	Suggesting
	Navigating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Suggesting:
		return "suggesting"
	case Navigating:
		return "navigating"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{Idle, Debouncing, Suggesting, Navigating} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("autocomplete: unknown state %q", b)
}

// Key is a navigation key understood by the session.
type Key string

const (
	KeyDown   Key = "down"
	KeyUp     Key = "up"
	KeyEnter  Key = "enter"
	KeyEscape Key = "escape"
)

// ParseKey accepts the session's key names and the DOM key names.
func ParseKey(s string) (Key, bool) {
	switch s {
	case "down", "ArrowDown":
		return KeyDown, true
	case "up", "ArrowUp":
		return KeyUp, true
	case "enter", "Enter":
		return KeyEnter, true
	case "escape", "Escape", "Esc":
		return KeyEscape, true
	}
	return "", false
}

// Suggester produces the ranked city suggestions for a normalised term.
type Suggester interface {
	Suggest(term string, limit int) []ranker.CityResult
}

// SuggesterFunc adapts a function to Suggester.
type SuggesterFunc func(term string, limit int) []ranker.CityResult

func (f SuggesterFunc) Suggest(term string, limit int) []ranker.CityResult {
	return f(term, limit)
}

// View is a copy of the session's observable state.
type View struct {
	State       State               `json:"state"`
	Input       string              `json:"input"`
	Term        string              `json:"term"`
	Suggestions []ranker.CityResult `json:"suggestions"`
	// Focus indexes Suggestions; -1 when nothing is focused.
	Focus int `json:"focus"`
	// Committed is set on the view emitted by a commit.
	Committed *ranker.CityResult `json:"committed,omitempty"`
	Seq       uint64             `json:"seq"`
}

// Observer receives every state change. It must not call back into the
// session synchronously.
type Observer func(View)

type Config struct {
	Debounce       time.Duration
	MinInputLength int
	MaxSuggestions int
	Clock          Clock
	// OnEvaluate runs after each debounced evaluation.
	OnEvaluate func(term string, suggestions int)
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.MinInputLength <= 0 {
		c.MinInputLength = DefaultMinInputLength
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = DefaultMaxSuggestions
	}
	if c.Clock == nil {
		c.Clock = RealClock()
	}
	return c
}

type Session struct {
	cfg       Config
	suggester Suggester
	observer  Observer
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	input       string
	term        string
	suggestions []ranker.CityResult
	focus       int
	timer       Timer
	gen         uint64
	seq         uint64
	closed      bool

	// notifyMu keeps observer calls in state-change order.
	notifyMu sync.Mutex
}

// NewSession starts a session in Idle. observer may be nil.
func NewSession(suggester Suggester, observer Observer, cfg Config) *Session {
	return &Session{
		cfg:       cfg.withDefaults(),
		suggester: suggester,
		observer:  observer,
		logger:    slog.Default().With("component", "autocomplete"),
		focus:     -1,
	}
}

// Input records a new input value and restarts the debounce timer. Only the
// value present when the timer fires is evaluated.
func (s *Session) Input(value string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.input = value
	s.state = Debouncing
	s.focus = -1
	s.stopTimerLocked()
	gen := s.gen
	s.timer = s.cfg.Clock.AfterFunc(s.cfg.Debounce, func() { s.fire(gen) })
	s.emitLocked(nil)
}

func (s *Session) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.state != Debouncing {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	term := textmatch.Normalize(s.input)
	if textmatch.Len(term) < s.cfg.MinInputLength {
		s.resetLocked()
		s.emitLocked(nil)
		return
	}

	suggestions := s.suggester.Suggest(term, s.cfg.MaxSuggestions)
	if len(suggestions) > s.cfg.MaxSuggestions {
		suggestions = suggestions[:s.cfg.MaxSuggestions]
	}
	s.suggestions = suggestions
	s.state = Suggesting
	s.focus = -1
	s.logger.Debug("suggestions evaluated", "term", term, "count", len(suggestions))
	if s.cfg.OnEvaluate != nil {
		s.cfg.OnEvaluate(term, len(suggestions))
	}
	s.emitLocked(nil)
}

// Press applies a navigation key. It reports whether the key changed state.
func (s *Session) Press(k Key) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	switch k {
	case KeyDown, KeyUp:
		n := len(s.suggestions)
		if (s.state != Suggesting && s.state != Navigating) || n == 0 {
			break
		}
		switch {
		case s.state == Suggesting && k == KeyDown:
			s.focus = 0
		case s.state == Suggesting:
			s.focus = n - 1
		case k == KeyDown:
			s.focus = (s.focus + 1) % n
		default:
			s.focus = (s.focus - 1 + n) % n
		}
		s.state = Navigating
		s.emitLocked(nil)
		return true
	case KeyEnter:
		if s.state != Navigating || s.focus < 0 || s.focus >= len(s.suggestions) {
			break
		}
		chosen := s.suggestions[s.focus]
		s.term = chosen.Name
		s.input = chosen.Name
		s.resetLocked()
		s.emitLocked(&chosen)
		return true
	case KeyEscape:
		if s.state == Idle {
			break
		}
		s.resetLocked()
		s.emitLocked(nil)
		return true
	}
	s.mu.Unlock()
	return false
}

// Blur handles focus moving outside the input and its list.
func (s *Session) Blur() {
	s.mu.Lock()
	if s.closed || s.state == Idle {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	s.emitLocked(nil)
}

// View returns the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(nil)
}

// Close cancels any pending evaluation. Later calls are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.closed = true
}

// resetLocked returns to Idle and discards suggestions and any pending
// evaluation. The committed term survives.
func (s *Session) resetLocked() {
	s.stopTimerLocked()
	s.state = Idle
	s.suggestions = nil
	s.focus = -1
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Session) viewLocked(committed *ranker.CityResult) View {
	suggestions := make([]ranker.CityResult, len(s.suggestions))
	copy(suggestions, s.suggestions)
	return View{
		State:       s.state,
		Input:       s.input,
		Term:        s.term,
		Suggestions: suggestions,
		Focus:       s.focus,
		Committed:   committed,
		Seq:         s.seq,
	}
}

// emitLocked publishes the new state and releases s.mu.
func (s *Session) emitLocked(committed *ranker.CityResult) {
	s.seq++
	v := s.viewLocked(committed)
	if s.observer == nil {
		s.mu.Unlock()
		return
	}
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()
	s.observer(v)
}
