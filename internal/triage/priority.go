package triage

import (
	"strings"
	"time"
)

// Weights is the priority model: independent additive signals, each
// capped on its own, with the final sum clamped to [0,1]. The zero
// value is not useful; DefaultWeights is the reference profile.
type Weights struct {
	UrgencyBonus    float64  // added once if any urgent term appears
	UrgentTerms     []string // checked against normalized text
	QuestionWeight  float64  // per '?', capped by QuestionCap
	QuestionCap     float64
	ExclaimWeight   float64 // per '!', capped by ExclaimCap
	ExclaimCap      float64
	LengthThreshold int     // normalized length for the lower bonus tier
	LengthBonus     float64 // lower tier bonus
	LongThreshold   int     // higher tier; only one tier applies
	LongBonus       float64
	RecentHour      float64 // age < 1h
	RecentSixHours  float64 // age < 6h
	RecentDay       float64 // age < 24h
	ReactionWeight  float64 // per reaction when count > 1, capped
	ReactionCap     float64
}

// DefaultWeights is the canonical priority table.
func DefaultWeights() Weights {
	return Weights{
		UrgencyBonus:    0.2,
		UrgentTerms:     []string{"urgent", "asap", "emergency", "critical", "production", "down", "outage", "immediately"},
		QuestionWeight:  0.1,
		QuestionCap:     0.3,
		ExclaimWeight:   0.05,
		ExclaimCap:      0.2,
		LengthThreshold: 100,
		LengthBonus:     0.1,
		LongThreshold:   200,
		LongBonus:       0.2,
		RecentHour:      0.15,
		RecentSixHours:  0.1,
		RecentDay:       0.05,
		ReactionWeight:  0.05,
		ReactionCap:     0.2,
	}
}

// Score computes the priority of a triaged message in [0,1]. The
// category must already be assigned; a missing timestamp or reaction
// list simply contributes zero. Score never fails.
func (e *Engine) Score(msg *Message, now time.Time) float64 {
	normalized := Normalize(msg.Text)
	score := e.categoryByName(msg.Category).PriorityBoost
	w := e.weights

	// One fixed increment regardless of how many urgent terms appear;
	// counting per term would double-dip with the category boost.
	for _, term := range w.UrgentTerms {
		if strings.Contains(normalized, term) {
			score += w.UrgencyBonus
			break
		}
	}

	score += capped(float64(strings.Count(normalized, "?"))*w.QuestionWeight, w.QuestionCap)
	score += capped(float64(strings.Count(normalized, "!"))*w.ExclaimWeight, w.ExclaimCap)

	// Two-tier length bonus; only the higher tier applies.
	switch {
	case len(normalized) > w.LongThreshold:
		score += w.LongBonus
	case len(normalized) > w.LengthThreshold:
		score += w.LengthBonus
	}

	if !msg.Timestamp.IsZero() {
		switch age := now.Sub(msg.Timestamp); {
		case age < time.Hour:
			score += w.RecentHour
		case age < 6*time.Hour:
			score += w.RecentSixHours
		case age < 24*time.Hour:
			score += w.RecentDay
		}
	}

	if n := len(msg.Reactions); n > 1 {
		score += capped(float64(n)*w.ReactionWeight, w.ReactionCap)
	}

	if score > 1.0 {
		return 1.0
	}
	if score < 0 {
		return 0
	}
	return score
}

func capped(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	return v
}
