package tracker

import (
	"sync"
	"time"
)

type editKey struct {
	id    int64
	field string
}

type pendingSave struct {
	timer *time.Timer
	fn    func()
}

// saveScheduler debounces keystroke-triggered saves: each Schedule replaces
// the pending save for the same record/field, so only the last edit within
// the delay window is persisted. Flush runs a pending save immediately (the
// blur path) and CancelAll drops everything (the page-change path).
type saveScheduler struct {
	delay time.Duration

	mu      sync.Mutex
	pending map[editKey]*pendingSave
}

func newSaveScheduler(delay time.Duration) *saveScheduler {
	return &saveScheduler{
		delay:   delay,
		pending: make(map[editKey]*pendingSave),
	}
}

func (s *saveScheduler) Schedule(id int64, field string, fn func()) {
	key := editKey{id: id, field: field}

	s.mu.Lock()
	defer s.mu.Unlock()

	if previous, ok := s.pending[key]; ok {
		previous.timer.Stop()
	}
	if s.delay <= 0 {
		// Debouncing disabled: hold the save until an explicit flush.
		s.pending[key] = &pendingSave{fn: fn}
		return
	}

	save := &pendingSave{fn: fn}
	save.timer = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		current, ok := s.pending[key]
		if ok && current == save {
			delete(s.pending, key)
		}
		s.mu.Unlock()
		if ok && current == save {
			fn()
		}
	})
	s.pending[key] = save
}

func (s *saveScheduler) Flush(id int64, field string) {
	key := editKey{id: id, field: field}

	s.mu.Lock()
	save, ok := s.pending[key]
	if ok {
		if save.timer != nil {
			save.timer.Stop()
		}
		delete(s.pending, key)
	}
	s.mu.Unlock()

	if ok {
		save.fn()
	}
}

func (s *saveScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, save := range s.pending {
		if save.timer != nil {
			save.timer.Stop()
		}
		delete(s.pending, key)
	}
}
