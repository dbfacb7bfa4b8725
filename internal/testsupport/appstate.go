package testsupport

import "sync"

// ManualAppState is an app-state source driven by the test.
type ManualAppState struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]subscription
}

type subscription struct {
	onForeground func()
	onBackground func()
}

// NewManualAppState returns a source with no subscribers.
func NewManualAppState() *ManualAppState {
	return &ManualAppState{subs: make(map[int]subscription)}
}

// Subscribe registers the callbacks and returns the function that removes them.
func (m *ManualAppState) Subscribe(onForeground, onBackground func()) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.subs[id] = subscription{onForeground: onForeground, onBackground: onBackground}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Foreground notifies every subscriber synchronously.
func (m *ManualAppState) Foreground() {
	for _, s := range m.snapshot() {
		s.onForeground()
	}
}

// Background notifies every subscriber synchronously.
func (m *ManualAppState) Background() {
	for _, s := range m.snapshot() {
		s.onBackground()
	}
}

// Subscribers returns the number of active subscriptions.
func (m *ManualAppState) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.subs)
}

func (m *ManualAppState) snapshot() []subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]subscription, 0, len(m.subs))
	for _, s := range m.subs {
		out = append(out, s)
	}
	return out
}
