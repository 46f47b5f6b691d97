package job

import "sync"

// Notifier fans out job change signals to in-process subscribers, such as
// HTTP requests waiting for a job to finish.
type Notifier interface {
	Subscribe(jobID string) (func(), <-chan struct{})
	Notify(jobID string)
	StopAll()
}

// DefaultNotifier is the default implementation of Notifier.
type DefaultNotifier struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewNotifier constructs the default notifier implementation.
func NewNotifier() *DefaultNotifier {
	return &DefaultNotifier{
		subs: make(map[string]map[chan struct{}]struct{}),
	}
}

// Subscribe registers interest in changes to jobID. The returned function
// removes the subscription and closes the channel.
func (n *DefaultNotifier) Subscribe(jobID string) (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan struct{}, 1)
	if n.subs[jobID] == nil {
		n.subs[jobID] = make(map[chan struct{}]struct{})
	}
	n.subs[jobID][ch] = struct{}{}

	unsub := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subscribers := n.subs[jobID]
		if subscribers == nil {
			return
		}
		if _, ok := subscribers[ch]; !ok {
			return
		}
		delete(subscribers, ch)
		drainAndClose(ch)
		if len(subscribers) == 0 {
			delete(n.subs, jobID)
		}
	}

	return unsub, ch
}

// Notify signals every subscriber of jobID without blocking.
func (n *DefaultNotifier) Notify(jobID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs[jobID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// StopAll closes every subscription.
func (n *DefaultNotifier) StopAll() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for jobID, subscribers := range n.subs {
		for ch := range subscribers {
			drainAndClose(ch)
		}
		delete(n.subs, jobID)
	}
}

// drainAndClose removes any buffered notifications before closing the channel so
// receivers observe a closed channel immediately.
func drainAndClose(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			close(ch)
			return
		}
	}
}

var _ Notifier = (*DefaultNotifier)(nil)
