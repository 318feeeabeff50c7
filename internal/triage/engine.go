package triage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hurttlocker/triage/internal/embed"
)

// Config configures an Engine. The zero value gets the default
// taxonomy, default weights, and lexical-only similarity.
type Config struct {
	Categories []Category     // nil = DefaultCategories()
	Weights    *Weights       // nil = DefaultWeights()
	Embedder   embed.Embedder // nil = lexical-only similarity
	TopK       int            // similar messages per query, default 5

	// Logf receives one line per skipped record during batch
	// processing. nil disables it.
	Logf func(format string, args ...interface{})

	// Now overrides the clock, for tests. nil = time.Now.
	Now func() time.Time
}

// Engine runs the triage pipeline and owns the message corpus. One
// engine instance per corpus; there are no package-level singletons.
//
// Engine methods are safe for concurrent use: a single mutex makes the
// scan-then-append sequence in Process atomic, so two concurrently
// ingested messages cannot each miss the other in similarity results.
type Engine struct {
	mu         sync.Mutex
	categories []Category
	fallback   Category
	weights    Weights
	embedder   embed.Embedder
	vectors    map[string][]float32
	corpus     *Corpus
	topK       int
	logf       func(string, ...interface{})
	now        func() time.Time
}

// New builds an Engine, validating the taxonomy. An empty category set
// or a missing fallback is a construction error: the engine refuses to
// initialize rather than categorize unpredictably.
func New(cfg Config) (*Engine, error) {
	cats := cfg.Categories
	if cats == nil {
		cats = DefaultCategories()
	}
	if err := validateCategories(cats); err != nil {
		return nil, fmt.Errorf("invalid category configuration: %w", err)
	}

	weights := DefaultWeights()
	if cfg.Weights != nil {
		weights = *cfg.Weights
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	e := &Engine{
		categories: cats,
		weights:    weights,
		embedder:   cfg.Embedder,
		vectors:    map[string][]float32{},
		corpus:     NewCorpus(),
		topK:       topK,
		logf:       cfg.Logf,
		now:        now,
	}
	for _, c := range cats {
		if c.Fallback {
			e.fallback = c
			break
		}
	}
	return e, nil
}

// Process runs one record through the full pipeline and appends the
// result to the corpus. Malformed fields (missing id, user, channel,
// unparsable ts) are defaulted, never rejected; the only error source
// is the optional embedding collaborator.
func (e *Engine) Process(ctx context.Context, rec Record) (*Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.processLocked(ctx, rec)
}

func (e *Engine) processLocked(ctx context.Context, rec Record) (*Message, error) {
	now := e.now()
	msg := newMessage(rec, now)

	msg.Category, msg.Confidence = e.Categorize(msg.Text)
	msg.Color = e.categoryByName(msg.Category).Color
	msg.PriorityScore = e.Score(msg, now)

	similar, err := e.findSimilarLocked(ctx, msg, e.topK)
	if err != nil {
		return nil, err
	}
	msg.SimilarTo = similar

	e.corpus.Append(msg)
	return msg, nil
}

// ProcessBatch triages records strictly in input order. A record that
// fails is logged, counted, and skipped; the batch never aborts, and
// survivors keep their relative order. Callers compare input and
// output counts to detect partial failure.
func (e *Engine) ProcessBatch(ctx context.Context, records []Record) ([]*Message, *BatchResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &BatchResult{Total: len(records)}
	messages := make([]*Message, 0, len(records))

	for i, rec := range records {
		msg, err := e.processLocked(ctx, rec)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, BatchError{Index: i, Message: err.Error()})
			if e.logf != nil {
				e.logf("skipping record %d: %v", i, err)
			}
			continue
		}
		result.Processed++
		messages = append(messages, msg)
	}

	return messages, result
}

// Messages returns the corpus contents in insertion order.
func (e *Engine) Messages() []*Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Message, len(e.corpus.All()))
	copy(out, e.corpus.All())
	return out
}

// BatchResult summarizes a ProcessBatch run.
type BatchResult struct {
	Total     int
	Processed int
	Skipped   int
	Errors    []BatchError
}

// BatchError records one skipped record.
type BatchError struct {
	Index   int
	Message string
}
