package triage

import (
	"fmt"
	"sort"
	"strings"
)

// Priority tier boundaries for the batch summary.
const (
	highPriorityMin = 0.7
	lowPriorityMax  = 0.3
)

// Summary aggregates a processed corpus for analytics consumers.
type Summary struct {
	TotalMessages int             `json:"total_messages"`
	Categories    map[string]int  `json:"categories"`
	Priority      PriorityTiers   `json:"priority_distribution"`
	RecentCount   int             `json:"recent_messages"`
	TopUsers      []NameCount     `json:"top_users"`
	TopChannels   []NameCount     `json:"top_channels"`
	TopWords      []NameCount     `json:"top_words"`
	AvgPriority   float64         `json:"avg_priority"`
	Suggestions   []Suggestion    `json:"automation_suggestions,omitempty"`
}

// PriorityTiers buckets messages by priority score: high > 0.7,
// medium in (0.3, 0.7], low <= 0.3.
type PriorityTiers struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// NameCount is one histogram entry, ordered by count descending.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Suggestion is a workflow automation hint derived from category
// volume.
type Suggestion struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
	Text     string `json:"text"`
}

// Summarize computes the batch summary over the current corpus. An
// empty corpus yields a zero summary, not an error.
func (e *Engine) Summarize() *Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	msgs := e.corpus.All()
	s := &Summary{Categories: map[string]int{}}
	s.TotalMessages = len(msgs)
	if len(msgs) == 0 {
		return s
	}

	users := map[string]int{}
	channels := map[string]int{}
	wordFreq := map[string]int{}
	var prioritySum float64
	now := e.now()

	for _, m := range msgs {
		s.Categories[m.Category]++
		prioritySum += m.PriorityScore

		switch {
		case m.PriorityScore > highPriorityMin:
			s.Priority.High++
		case m.PriorityScore > lowPriorityMax:
			s.Priority.Medium++
		default:
			s.Priority.Low++
		}

		if !m.Timestamp.IsZero() && now.Sub(m.Timestamp).Hours() < 24 {
			s.RecentCount++
		}

		users[m.User]++
		channels[m.Channel]++
		for _, w := range strings.Fields(Normalize(m.Text)) {
			wordFreq[w]++
		}
	}

	s.AvgPriority = prioritySum / float64(len(msgs))
	s.TopUsers = topN(users, 5)
	s.TopChannels = topN(channels, 5)
	s.TopWords = topN(wordFreq, 10)
	s.Suggestions = e.suggestions(s.Categories)
	return s
}

// suggestions proposes automations for categories with enough volume
// to be worth a workflow.
func (e *Engine) suggestions(categories map[string]int) []Suggestion {
	type rule struct {
		category string
		min      int
		text     string
	}
	rules := []rule{
		{"access_request", 2, "Set up a self-service access request workflow"},
		{"bug_report", 3, "Route bug reports into the issue tracker automatically"},
		{"question", 3, "Build an FAQ from recurring questions"},
		{"deployment", 2, "Post deployment status to a dedicated channel"},
	}

	var out []Suggestion
	for _, r := range rules {
		if n := categories[r.category]; n >= r.min {
			out = append(out, Suggestion{
				Category: r.category,
				Count:    n,
				Text:     fmt.Sprintf("%s (%d messages)", r.text, n),
			})
		}
	}
	return out
}

// topN converts a count map into its n largest entries, count
// descending with name ascending on ties for stable output.
func topN(counts map[string]int, n int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
