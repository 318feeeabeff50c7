package triage

// Corpus is the append-only, insertion-ordered collection of processed
// messages that FindSimilar scans. It is owned by exactly one Engine;
// the engine's mutex is the only synchronization it needs.
type Corpus struct {
	messages []*Message
	byID     map[string]int
}

// NewCorpus returns an empty corpus.
func NewCorpus() *Corpus {
	return &Corpus{byID: map[string]int{}}
}

// Append stores a message. Messages are never reordered, updated, or
// pruned; reprocessing the same text appends a new entry.
func (c *Corpus) Append(m *Message) {
	c.byID[m.ID] = len(c.messages)
	c.messages = append(c.messages, m)
}

// All returns the stored messages in insertion order. The slice is
// shared with the corpus; callers must not mutate it.
func (c *Corpus) All() []*Message {
	return c.messages
}

// Get looks a message up by id. The most recently appended message
// wins when ids collide.
func (c *Corpus) Get(id string) (*Message, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	return c.messages[idx], true
}

// Len reports the number of stored messages.
func (c *Corpus) Len() int {
	return len(c.messages)
}
