package triage

import "strings"

// confidenceNorm is the calibration constant dividing the raw rule
// score into a confidence. A message hitting five keyword-equivalents
// saturates at 1.0.
const confidenceNorm = 5.0

// fallbackConfidence is assigned when no category rule matches at all.
const fallbackConfidence = 0.1

// Categorize scores normalized text against every category and returns
// the winner with a confidence in [0,1].
//
// Each keyword substring hit scores 1, each pattern match scores 2.
// Ties are broken by configuration order: the slice is scanned front to
// back and a later category must strictly exceed the running maximum to
// win. A zero maximum forces the fallback category at confidence 0.1.
func (e *Engine) Categorize(text string) (string, float64) {
	normalized := Normalize(text)

	best := -1
	bestScore := 0
	for i, cat := range e.categories {
		score := 0
		for _, kw := range cat.Keywords {
			if strings.Contains(normalized, kw) {
				score++
			}
		}
		for _, p := range cat.Patterns {
			if p.MatchString(normalized) {
				score += 2
			}
		}
		if score > bestScore || best == -1 {
			best = i
			bestScore = score
		}
	}

	if bestScore == 0 {
		return e.fallback.Name, fallbackConfidence
	}

	confidence := float64(bestScore) / confidenceNorm
	if confidence > 1.0 {
		confidence = 1.0
	}
	return e.categories[best].Name, confidence
}

// categoryByName returns the definition for a name, falling back to the
// designated fallback category for unknown names.
func (e *Engine) categoryByName(name string) Category {
	for _, c := range e.categories {
		if c.Name == name {
			return c
		}
	}
	return e.fallback
}
