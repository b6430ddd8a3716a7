package store

import "sync"

// Notifier topics.
const (
	TopicSubmissions = "submissions"
	TopicEvents      = "events"
)

// Notifier fans out change signals per topic. Signals carry no data and
// coalesce: a listener that has not consumed the previous signal does not
// receive a second one.
type Notifier struct {
	mu        sync.Mutex
	listeners map[string]map[chan struct{}]struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{listeners: make(map[string]map[chan struct{}]struct{})}
}

// Listen registers for signals on topic. Call the returned function to
// unregister.
func (n *Notifier) Listen(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.listeners[topic] == nil {
		n.listeners[topic] = make(map[chan struct{}]struct{})
	}
	n.listeners[topic][ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners[topic], ch)
			n.mu.Unlock()
		})
	}
}

// Notify signals every listener of topic without blocking.
func (n *Notifier) Notify(topic string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.listeners[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
