package agent

import (
	"sync"

	"github.com/aatumaykin/skillbot/internal/skills"
)

// Teaching accumulates one interactive teaching exchange for the
// single admin conversation. It lives in memory only; a restart
// abandons an unfinished lesson.
type Teaching struct {
	mu       sync.Mutex
	active   bool
	request  string
	exchange []skills.TeachingMessage
}

func NewTeaching() *Teaching {
	return &Teaching{}
}

// Start begins a lesson for the given request, discarding any
// exchange left over from an earlier one.
func (t *Teaching) Start(request string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = true
	t.request = request
	t.exchange = nil
}

// Active reports whether a lesson is in progress.
func (t *Teaching) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Add appends one turn to the exchange.
func (t *Teaching) Add(role, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return
	}
	t.exchange = append(t.exchange, skills.TeachingMessage{Role: role, Content: content})
}

// Turns returns the number of accumulated turns.
func (t *Teaching) Turns() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.exchange)
}

// Finish ends the lesson and returns the request with the full
// exchange for the generator.
func (t *Teaching) Finish() (string, []skills.TeachingMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	request := t.request
	exchange := t.exchange
	t.active = false
	t.request = ""
	t.exchange = nil

	return request, exchange
}

// Cancel discards the lesson.
func (t *Teaching) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = false
	t.request = ""
	t.exchange = nil
}
