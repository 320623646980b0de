// Package notify broadcasts session updates and status messages to
// subscribers.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wbialy/lektor/internal/app/session/state"
	"github.com/wbialy/lektor/internal/app/spoiler"
	"github.com/wbialy/lektor/internal/domain/book"
)

// Update is one snapshot pushed to subscribers. It carries everything a
// display needs so subscribers never have to query the session back.
type Update struct {
	SequenceNo uint64

	UnitIndex int
	UnitTitle string
	Position  time.Duration
	Duration  time.Duration
	Speed     float64
	Volume    float64
	Status    state.Status

	Chapters  []spoiler.Entry
	Bookmarks []book.Bookmark

	// Message is the status bar line, empty when nothing is shown.
	Message string
}

// subscription represents one subscriber's channel.
type subscription struct {
	id string
	ch chan Update
}

// Manager manages update subscriptions and the status message bar.
// Messages queue up and are shown one at a time; each stays visible
// until the timeout elapses or a newer message displaces it, then moves
// to the history.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription

	sequenceNo   uint64
	sequenceNoMu sync.Mutex

	msgMu    sync.Mutex
	current  string
	lastTime time.Time
	timeout  time.Duration
	queue    []string
	history  []string
}

// NewManager creates a notify manager with the given message timeout.
func NewManager(timeout time.Duration) *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		timeout:       timeout,
	}
}

// Subscribe adds a subscriber and returns its ID and update channel.
func (m *Manager) Subscribe() (string, <-chan Update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	sub := &subscription{id: id, ch: make(chan Update, 8)}
	m.subscriptions[id] = sub
	return id, sub.ch
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subscriptions[subscriptionID]; ok {
		delete(m.subscriptions, subscriptionID)
		close(sub.ch)
	}
}

// Broadcast stamps the update with a sequence number and the current
// status message, then sends it to all subscribers. Sends never block;
// a slow subscriber misses intermediate snapshots, not the stream.
func (m *Manager) Broadcast(update Update) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	update.SequenceNo = m.sequenceNo
	m.sequenceNoMu.Unlock()

	update.Message = m.Message()

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.subscriptions {
		select {
		case sub.ch <- update:
		default:
		}
	}
}

// Push queues a status message for display.
func (m *Manager) Push(msg string) {
	m.msgMu.Lock()
	defer m.msgMu.Unlock()
	m.queue = append(m.queue, msg)
}

// Tick advances the message bar. The newest queued message displaces
// the current one; an undisturbed message expires after the timeout.
// It reports whether the displayed message changed.
func (m *Manager) Tick() bool {
	m.msgMu.Lock()
	defer m.msgMu.Unlock()

	if n := len(m.queue); n > 0 {
		next := m.queue[n-1]
		m.queue = m.queue[:n-1]
		if m.current != "" {
			m.history = append(m.history, m.current)
		}
		m.current = next
		m.lastTime = time.Now()
		return true
	}

	if m.current != "" && time.Since(m.lastTime) >= m.timeout {
		m.history = append(m.history, m.current)
		m.current = ""
		return true
	}

	return false
}

// Message returns the currently displayed status message.
func (m *Manager) Message() string {
	m.msgMu.Lock()
	defer m.msgMu.Unlock()
	return m.current
}

// History returns the messages already shown, oldest first.
func (m *Manager) History() []string {
	m.msgMu.Lock()
	defer m.msgMu.Unlock()
	out := make([]string, len(m.history))
	copy(out, m.history)
	return out
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subscriptions {
		close(sub.ch)
	}
	m.subscriptions = make(map[string]*subscription)
}
