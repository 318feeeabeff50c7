package triage

import (
	"context"
	"testing"
	"time"
)

func TestScoreBounds(t *testing.T) {
	e := newTestEngine(t, Config{})
	now := time.Now()

	texts := []string{
		"",
		"ok",
		"URGENT!!! production down outage critical asap emergency help immediately?!?!?!",
		"a very long message " + longText(300),
	}
	for _, text := range texts {
		msg := &Message{Text: text, Category: "urgent", Timestamp: now, Reactions: []string{"fire", "x", "y", "z", "w", "v"}}
		score := e.Score(msg, now)
		if score < 0 || score > 1 {
			t.Fatalf("Score(%q) = %f, out of [0,1]", text, score)
		}
	}
}

func TestScoreUrgencyBonusAppliesOnce(t *testing.T) {
	e := newTestEngine(t, Config{})
	now := time.Now().Add(48 * time.Hour) // push both messages out of the recency window

	one := &Message{Text: "urgent", Category: "general"}
	many := &Message{Text: "urgent asap critical outage", Category: "general"}

	if a, b := e.Score(one, now), e.Score(many, now); a != b {
		t.Fatalf("urgency bonus should be flat: one term %f, four terms %f", a, b)
	}
}

func TestScorePunctuationCaps(t *testing.T) {
	e := newTestEngine(t, Config{})
	now := time.Now().Add(48 * time.Hour)

	q3 := &Message{Text: "why? how? when?", Category: "general"}
	q9 := &Message{Text: "?????????", Category: "general"}
	if a, b := e.Score(q3, now), e.Score(q9, now); a != b {
		t.Fatalf("question bonus should cap at 0.3: got %f vs %f", a, b)
	}

	e4 := &Message{Text: "go!!!!", Category: "general"}
	e12 := &Message{Text: "go!!!!!!!!!!!!", Category: "general"}
	if a, b := e.Score(e4, now), e.Score(e12, now); a != b {
		t.Fatalf("exclamation bonus should cap at 0.2: got %f vs %f", a, b)
	}
}

func TestScoreLengthTiersAreExclusive(t *testing.T) {
	e := newTestEngine(t, Config{})
	now := time.Now().Add(48 * time.Hour)

	short := &Message{Text: longText(50), Category: "general"}
	medium := &Message{Text: longText(150), Category: "general"}
	long := &Message{Text: longText(250), Category: "general"}

	base := e.Score(short, now)
	if got, want := e.Score(medium, now), base+0.1; !approxEqual(got, want) {
		t.Fatalf("medium tier: got %f, want %f", got, want)
	}
	// Only the higher tier applies, not 0.1+0.2.
	if got, want := e.Score(long, now), base+0.2; !approxEqual(got, want) {
		t.Fatalf("long tier: got %f, want %f", got, want)
	}
}

func TestScoreRecencyTiers(t *testing.T) {
	e := newTestEngine(t, Config{})
	now := time.Now()

	tests := []struct {
		age   time.Duration
		bonus float64
	}{
		{30 * time.Minute, 0.15},
		{3 * time.Hour, 0.1},
		{12 * time.Hour, 0.05},
		{48 * time.Hour, 0},
	}

	base := e.Score(&Message{Text: "hello there", Category: "general"}, now)
	for _, tt := range tests {
		msg := &Message{Text: "hello there", Category: "general", Timestamp: now.Add(-tt.age)}
		if got, want := e.Score(msg, now), base+tt.bonus; !approxEqual(got, want) {
			t.Fatalf("age %v: got %f, want %f", tt.age, got, want)
		}
	}
}

func TestScoreReactionsRequireMoreThanOne(t *testing.T) {
	e := newTestEngine(t, Config{})
	now := time.Now().Add(48 * time.Hour)

	none := e.Score(&Message{Text: "hi all", Category: "general"}, now)
	one := e.Score(&Message{Text: "hi all", Category: "general", Reactions: []string{"eyes"}}, now)
	two := e.Score(&Message{Text: "hi all", Category: "general", Reactions: []string{"eyes", "fire"}}, now)
	six := e.Score(&Message{Text: "hi all", Category: "general", Reactions: []string{"a", "b", "c", "d", "e", "f"}}, now)

	if one != none {
		t.Fatalf("a single reaction should add nothing: %f vs %f", one, none)
	}
	if !approxEqual(two, none+0.1) {
		t.Fatalf("two reactions: got %f, want %f", two, none+0.1)
	}
	if !approxEqual(six, none+0.2) {
		t.Fatalf("reaction bonus should cap at 0.2: got %f, want %f", six, none+0.2)
	}
}

func TestScoreMissingOptionalFieldsContributeZero(t *testing.T) {
	e := newTestEngine(t, Config{})
	now := time.Now()

	msg := &Message{Text: "hello there", Category: "general"}
	withTS := &Message{Text: "hello there", Category: "general", Timestamp: now.Add(-30 * time.Minute)}

	if e.Score(msg, now) >= e.Score(withTS, now) {
		t.Fatal("zero timestamp should score below a recent timestamp")
	}
}

// Scenario from the reference profile: an urgent production outage
// must clear the high-priority tier.
func TestUrgentProductionScenario(t *testing.T) {
	e := newTestEngine(t, Config{Now: func() time.Time { return time.Unix(1700000000, 0) }})

	msg, err := e.Process(context.Background(), Record{
		Text: "production is down, URGENT!!! please help asap",
		TS:   "1699999900.000100", // 100s old: recency bonus applies
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if msg.Category != "urgent" {
		t.Fatalf("category = %q, want urgent", msg.Category)
	}
	if msg.Confidence <= 0.5 {
		t.Fatalf("confidence = %f, want > 0.5", msg.Confidence)
	}
	if msg.PriorityScore < 0.8 {
		t.Fatalf("priority = %f, want >= 0.8", msg.PriorityScore)
	}
	if msg.Color != "#FF4757" {
		t.Fatalf("color = %q, want urgent red", msg.Color)
	}
}

func longText(n int) string {
	s := ""
	for len(s) < n {
		s += "lorem ipsum dolor sit amet "
	}
	return s
}

func approxEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

