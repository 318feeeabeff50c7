package triage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hurttlocker/triage/internal/embed"
)

// Similarity thresholds for the two operating modes. Semantic scores
// run hotter than raw word overlap, so the blended mode uses the
// stricter cutoff.
const (
	lexicalThreshold = 0.2
	blendedThreshold = 0.3

	semanticWeight = 0.7
	fuzzyWeight    = 0.3

	// DefaultTopK is the default number of similar messages returned.
	DefaultTopK = 5

	keyPhraseMax     = 3
	keyPhraseMinWord = 3
	previewLen       = 100
)

// FindSimilar compares a message against every previously stored
// message and returns the top-k matches above the active threshold,
// ordered by score descending with insertion order breaking exact ties.
//
// With no embedder configured the score is the Jaccard similarity of
// the normalized word sets. With an embedder it is a blend of cosine
// similarity over embeddings (0.7) and normalized Levenshtein
// similarity (0.3); embedding vectors for stored messages are cached so
// each text is embedded once, not once per comparison.
//
// Every query scans the whole corpus, so processing a batch of n
// messages costs O(n^2) comparisons total. The corpus is never pruned;
// this is the accepted trade-off for small-to-moderate corpora.
//
// An empty corpus (or one holding only the query message) yields an
// empty result, never an error.
func (e *Engine) FindSimilar(ctx context.Context, msg *Message, topK int) ([]SimilarMatch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.findSimilarLocked(ctx, msg, topK)
}

// findSimilarLocked is the scan itself; callers hold e.mu, which guards
// both the corpus slice and the vector cache.
func (e *Engine) findSimilarLocked(ctx context.Context, msg *Message, topK int) ([]SimilarMatch, error) {
	stored := e.corpus.All()
	if len(stored) == 0 {
		return nil, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryNorm := Normalize(msg.Text)
	queryWords := words(queryNorm)

	var queryVec []float32
	if e.embedder != nil {
		vec, err := e.vectorFor(ctx, msg.ID, queryNorm)
		if err != nil {
			return nil, fmt.Errorf("embedding query message %s: %w", msg.ID, err)
		}
		queryVec = vec
	}

	threshold := lexicalThreshold
	if e.embedder != nil {
		threshold = blendedThreshold
	}

	// Candidates are collected in corpus insertion order so the stable
	// sort below keeps earlier-stored messages first on exact ties.
	var matches []SimilarMatch
	for _, other := range stored {
		if other.ID == msg.ID {
			continue
		}

		otherNorm := Normalize(other.Text)
		var score float64
		if e.embedder != nil {
			otherVec, err := e.vectorFor(ctx, other.ID, otherNorm)
			if err != nil {
				return nil, fmt.Errorf("embedding stored message %s: %w", other.ID, err)
			}
			score = semanticWeight*embed.Cosine(queryVec, otherVec) +
				fuzzyWeight*levenshteinSimilarity(queryNorm, otherNorm)
		} else {
			score = jaccard(queryWords, words(otherNorm))
		}

		if score <= threshold {
			continue
		}

		matches = append(matches, SimilarMatch{
			TicketID:        other.ID,
			SimilarityScore: score,
			Category:        other.Category,
			KeyPhrases:      sharedKeyPhrases(queryNorm, otherNorm, keyPhraseMax),
			TextPreview:     preview(other.Text, previewLen),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SimilarityScore > matches[j].SimilarityScore
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// vectorFor returns the cached embedding for a message id, computing
// and caching it on first use.
func (e *Engine) vectorFor(ctx context.Context, id, normalized string) ([]float32, error) {
	if vec, ok := e.vectors[id]; ok {
		return vec, nil
	}
	vec, err := e.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, err
	}
	e.vectors[id] = vec
	return vec, nil
}

// jaccard computes word-set overlap: |A∩B| / |A∪B|, 0 if either set is
// empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// levenshteinSimilarity is edit distance normalized to [0,1], where 1
// means identical strings.
func levenshteinSimilarity(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	if len(ar) == 0 && len(br) == 0 {
		return 1
	}
	maxLen := len(ar)
	if len(br) > maxLen {
		maxLen = len(br)
	}

	prev := make([]int, len(br)+1)
	cur := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		cur[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 0
			if ar[i-1] != br[j-1] {
				cost = 1
			}
			cur[j] = minInt(prev[j]+1, minInt(cur[j-1]+1, prev[j-1]+cost))
		}
		prev, cur = cur, prev
	}
	return 1 - float64(prev[len(br)])/float64(maxLen)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// sharedKeyPhrases extracts up to max contiguous two-word phrases that
// appear in both normalized texts, skipping short words. Phrases are
// compared against b's own bigrams so a phrase never matches inside
// larger words. Display only.
func sharedKeyPhrases(a, b string, max int) []string {
	inB := bigrams(b)
	fields := strings.Fields(a)
	seen := map[string]bool{}
	var phrases []string
	for i := 0; i+1 < len(fields) && len(phrases) < max; i++ {
		if len(fields[i]) <= keyPhraseMinWord || len(fields[i+1]) <= keyPhraseMinWord {
			continue
		}
		phrase := fields[i] + " " + fields[i+1]
		if seen[phrase] || !inB[phrase] {
			continue
		}
		seen[phrase] = true
		phrases = append(phrases, phrase)
	}
	return phrases
}

// bigrams returns the set of adjacent word pairs in normalized text.
func bigrams(text string) map[string]bool {
	fields := strings.Fields(text)
	set := make(map[string]bool, len(fields))
	for i := 0; i+1 < len(fields); i++ {
		set[fields[i]+" "+fields[i+1]] = true
	}
	return set
}
