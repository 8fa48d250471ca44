package tracer

import "sync"

// mailbox is an unbounded FIFO of worker messages.
//
// It never blocks senders; instrumentation can push events at any rate and a
// slow callback only delays their processing. Control requests share the
// queue, so they are served in arrival order with the events around them.
type mailbox struct {
	mu     sync.Mutex
	msgs   []any
	closed bool
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		msgs:   make([]any, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// push appends msg. It returns false once the mailbox is closed.
func (m *mailbox) push(msg any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.msgs = append(m.msgs, msg)

	// Coalescing, non-blocking signal
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// pop removes the oldest message without blocking.
func (m *mailbox) pop() (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.msgs) == 0 {
		return nil, false
	}
	msg := m.msgs[0]
	m.msgs[0] = nil // release the reference for GC
	if len(m.msgs) == 1 {
		m.msgs = m.msgs[:0]
	} else {
		m.msgs = m.msgs[1:]
	}
	return msg, true
}

// take removes the oldest message matching match, leaving the others
// queued in order.
func (m *mailbox) take(match func(any) bool) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, msg := range m.msgs {
		if match(msg) {
			last := len(m.msgs) - 1
			copy(m.msgs[i:], m.msgs[i+1:])
			m.msgs[last] = nil
			m.msgs = m.msgs[:last]
			return msg, true
		}
	}
	return nil, false
}

// has reports whether a queued message matches match.
func (m *mailbox) has(match func(any) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.msgs {
		if match(msg) {
			return true
		}
	}
	return false
}

// ready is signaled after a push.
func (m *mailbox) ready() <-chan struct{} {
	return m.signal
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

// close drops pending messages and rejects further pushes.
func (m *mailbox) close() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	dropped := len(m.msgs)
	m.closed = true
	m.msgs = nil
	return dropped
}
