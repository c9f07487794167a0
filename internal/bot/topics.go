package bot

import "sync"

// TopicStore tracks which conversation topic currently owns a source
// (user/group/room). It replaces the original single global topic with a
// keyed registry so concurrent conversations do not clobber each other.
type TopicStore struct {
	mu     sync.Mutex
	topics map[string]string
}

// NewTopicStore creates an empty registry.
func NewTopicStore() *TopicStore {
	return &TopicStore{topics: make(map[string]string)}
}

// Get returns the active topic for a source, or "" when none.
func (t *TopicStore) Get(sourceID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.topics[sourceID]
}

// Set records the active topic for a source.
func (t *TopicStore) Set(sourceID, topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.topics[sourceID] = topic
}

// Clear removes the active topic for a source.
func (t *TopicStore) Clear(sourceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.topics, sourceID)
}
