package log

import (
	"io"
	"sync"
)

const backlogSize = 64

// Broadcaster is an io.Writer that fans out every Write to all registered
// subscriber channels. It keeps the last few lines so a new subscriber
// starts with some context. It is safe for concurrent use.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan []byte]struct{}
	backlog     [][]byte
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan []byte]struct{}),
	}
}

// Write copies p (typically one log line) to every subscriber. Slow
// subscribers are skipped so a stuck client never blocks the logger.
func (b *Broadcaster) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	copy(buf, p)

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.backlog) == backlogSize {
		b.backlog = append(b.backlog[:0], b.backlog[1:]...)
	}
	b.backlog = append(b.backlog, buf)

	for ch := range b.subscribers {
		select {
		case ch <- buf:
		default:
		}
	}
	return len(p), nil
}

// Subscribe registers a new subscriber. The returned channel first receives
// the backlog, then every new line. Call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan []byte {
	ch := make(chan []byte, 256)
	b.mu.Lock()
	for _, line := range b.backlog {
		ch <- line
	}
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (b *Broadcaster) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

var _ io.Writer = (*Broadcaster)(nil)
