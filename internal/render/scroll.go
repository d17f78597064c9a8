package render

import "sync"

// ScrollState tracks whether a wrapped table overflows its viewport. The
// answer is recomputed on every content or viewport size change, not only
// on first layout.
type ScrollState struct {
	mu         sync.Mutex
	content    int
	viewport   int
	scrollable bool
	onChange   func(scrollable bool)
}

// NewScrollState calls onChange, if set, whenever scrollability flips.
func NewScrollState(onChange func(scrollable bool)) *ScrollState {
	return &ScrollState{onChange: onChange}
}

func (s *ScrollState) SetContentWidth(w int) bool {
	return s.update(func() { s.content = w })
}

func (s *ScrollState) SetViewportWidth(w int) bool {
	return s.update(func() { s.viewport = w })
}

func (s *ScrollState) Scrollable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrollable
}

func (s *ScrollState) update(set func()) bool {
	s.mu.Lock()
	set()
	next := s.viewport > 0 && s.content > s.viewport
	changed := next != s.scrollable
	s.scrollable = next
	cb := s.onChange
	s.mu.Unlock()

	if changed && cb != nil {
		cb(next)
	}
	return next
}
