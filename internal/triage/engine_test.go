package triage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// failingEmbedder fails on one specific text and succeeds elsewhere,
// to exercise the batch skip path.
type failingEmbedder struct {
	failOn string
}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == f.failOn {
		return nil, errors.New("embedding backend unavailable")
	}
	return []float32{1, 0, 0}, nil
}

func (f *failingEmbedder) Dimensions() int { return 3 }

func TestProcessBatchOrderAndDefaults(t *testing.T) {
	e := newTestEngine(t, Config{})

	// Ten records; number five carries an unparsable timestamp. Bad
	// fields are defaulted, never rejected, so all ten survive.
	var records []Record
	for i := 0; i < 10; i++ {
		rec := Record{ID: fmt.Sprintf("r%d", i), Text: fmt.Sprintf("message number %d", i)}
		if i == 5 {
			rec.TS = "not-a-timestamp"
		}
		records = append(records, rec)
	}

	messages, result := e.ProcessBatch(context.Background(), records)
	if result.Total != 10 || result.Processed != 10 || result.Skipped != 0 {
		t.Fatalf("result = %+v, want 10 processed", result)
	}
	if len(messages) != 10 {
		t.Fatalf("got %d messages, want 10", len(messages))
	}
	for i, msg := range messages {
		if msg.ID != fmt.Sprintf("r%d", i) {
			t.Fatalf("message %d has id %q, order not preserved", i, msg.ID)
		}
	}
	if messages[5].Timestamp.IsZero() {
		t.Fatal("bad timestamp should default to now, not zero")
	}
}

func TestProcessBatchSkipsFailedRecords(t *testing.T) {
	var logged []string
	e := newTestEngine(t, Config{
		Embedder: &failingEmbedder{failOn: "poison pill"},
		Logf: func(format string, args ...interface{}) {
			logged = append(logged, fmt.Sprintf(format, args...))
		},
	})

	records := []Record{
		{ID: "a", Text: "first fine message"},
		{ID: "b", Text: "poison pill"},
		{ID: "c", Text: "third fine message"},
	}
	messages, result := e.ProcessBatch(context.Background(), records)

	if result.Total != 3 || result.Processed != 2 || result.Skipped != 1 {
		t.Fatalf("result = %+v, want 2 processed 1 skipped", result)
	}
	if len(messages) != 2 || messages[0].ID != "a" || messages[1].ID != "c" {
		t.Fatalf("survivors wrong: %v", messages)
	}
	if len(result.Errors) != 1 || result.Errors[0].Index != 1 {
		t.Fatalf("errors = %+v, want index 1", result.Errors)
	}
	if len(logged) != 1 || !strings.Contains(logged[0], "record 1") {
		t.Fatalf("logged = %v", logged)
	}
	// Skipped records must not enter the corpus.
	for _, msg := range e.Messages() {
		if msg.ID == "b" {
			t.Fatal("skipped record reached the corpus")
		}
	}
}

func TestProcessAppendsToCorpus(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()

	if _, err := e.Process(ctx, Record{ID: "m1", Text: "first"}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := e.Process(ctx, Record{ID: "m2", Text: "second"}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	all := e.Messages()
	if len(all) != 2 || all[0].ID != "m1" || all[1].ID != "m2" {
		t.Fatalf("corpus = %v, want m1 then m2", all)
	}
}

func TestProcessWithinBatchVisibility(t *testing.T) {
	e := newTestEngine(t, Config{})

	// Two near-identical records in one batch: the second must see the
	// first in its similarity results.
	records := []Record{
		{ID: "dup1", Text: "server down in prod"},
		{ID: "dup2", Text: "prod server is down"},
	}
	messages, result := e.ProcessBatch(context.Background(), records)
	if result.Processed != 2 {
		t.Fatalf("result = %+v", result)
	}
	if len(messages[0].SimilarTo) != 0 {
		t.Fatalf("first message should see an empty corpus, got %v", messages[0].SimilarTo)
	}
	if len(messages[1].SimilarTo) != 1 || messages[1].SimilarTo[0].TicketID != "dup1" {
		t.Fatalf("second message should match the first, got %v", messages[1].SimilarTo)
	}
}

// Hosts ingest and query in parallel; both paths must hold the engine
// mutex. Run with -race to catch unlocked corpus or vector-cache access.
func TestEngineConcurrentProcessAndFindSimilar(t *testing.T) {
	e := newTestEngine(t, Config{Embedder: &fakeEmbedder{}})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := e.Process(ctx, Record{
				ID:   fmt.Sprintf("c%d", i),
				Text: fmt.Sprintf("disk alert on node %d", i),
			})
			if err != nil {
				t.Errorf("Process: %v", err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			query := &Message{ID: fmt.Sprintf("q%d", i), Text: "disk alert on some node"}
			if _, err := e.FindSimilar(ctx, query, 5); err != nil {
				t.Errorf("FindSimilar: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(e.Messages()); got != 50 {
		t.Fatalf("corpus has %d messages, want 50", got)
	}
}

func TestProcessAssignsPipelineFields(t *testing.T) {
	e := newTestEngine(t, Config{})

	msg, err := e.Process(context.Background(), Record{ID: "m1", Text: "please fix this bug, it throws an error"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if msg.Category != "bug_report" {
		t.Fatalf("category = %q", msg.Category)
	}
	if msg.Confidence <= 0 {
		t.Fatalf("confidence = %f", msg.Confidence)
	}
	if msg.PriorityScore < 0 || msg.PriorityScore > 1 {
		t.Fatalf("priority = %f", msg.PriorityScore)
	}
	if msg.Color == "" {
		t.Fatal("missing category color")
	}
}
