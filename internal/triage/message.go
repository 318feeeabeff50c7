// Package triage classifies short free-text messages into a fixed
// taxonomy, assigns each an urgency score, and retrieves previously
// processed messages similar to a new one.
//
// The pipeline per record is: normalize -> categorize -> score ->
// find similar -> append to the corpus. It is synchronous and owns no
// I/O; loading exports and persisting results belong to the ingest and
// store packages.
package triage

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is one raw message as supplied by an ingestion collaborator.
// Every field except Text is optional; Process fills defaults.
type Record struct {
	ID        string   `json:"id,omitempty"`
	Text      string   `json:"text"`
	User      string   `json:"user,omitempty"`
	Channel   string   `json:"channel,omitempty"`
	TS        string   `json:"ts,omitempty"`
	ThreadTS  string   `json:"thread_ts,omitempty"`
	Reactions []string `json:"reactions,omitempty"`
}

// Message is a fully triaged record. Fields up to Reactions mirror the
// input; the rest are assigned by the pipeline.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	User      string    `json:"user"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	ThreadTS  string    `json:"thread_ts,omitempty"`
	Reactions []string  `json:"reactions,omitempty"`

	Category      string         `json:"category"`
	Confidence    float64        `json:"confidence"`
	PriorityScore float64        `json:"priority_score"`
	Color         string         `json:"color"`
	SimilarTo     []SimilarMatch `json:"similar_tickets"`
}

// SimilarMatch references a previously stored message judged related
// to a query message. KeyPhrases are for display only and never feed
// back into scoring.
type SimilarMatch struct {
	TicketID        string   `json:"ticket_id"`
	SimilarityScore float64  `json:"similarity_score"`
	Category        string   `json:"category"`
	KeyPhrases      []string `json:"key_phrases"`
	TextPreview     string   `json:"text_preview"`
}

const (
	defaultUser    = "unknown"
	defaultChannel = "general"
)

// newMessage builds a Message from a raw record, applying the
// defaulting rules: derived id, sentinel user/channel, and best-effort
// timestamp parsing (unparsable ts falls back to now). It never fails.
func newMessage(rec Record, now time.Time) *Message {
	user := rec.User
	if user == "" {
		user = defaultUser
	}
	channel := rec.Channel
	if channel == "" {
		channel = defaultChannel
	}

	id := rec.ID
	if id == "" {
		id = DeriveID(channel, user, rec.Text)
	}

	return &Message{
		ID:        id,
		Text:      rec.Text,
		User:      user,
		Channel:   channel,
		Timestamp: parseTS(rec.TS, now),
		ThreadTS:  rec.ThreadTS,
		Reactions: rec.Reactions,
	}
}

// DeriveID computes a deterministic identifier for records that carry
// none. Channel and user are part of the identity so the same text
// posted by two people yields two distinct ids; the same text from the
// same person in the same channel collapses to one id, which is the
// behavior dedup consumers want.
func DeriveID(channel, user, text string) string {
	h := sha256.New()
	h.Write([]byte(channel))
	h.Write([]byte{0})
	h.Write([]byte(user))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// parseTS converts a Slack-style timestamp ("1640995200.000100", or a
// bare integer/float of epoch seconds) to time.Time. Anything
// unparsable maps to the fallback.
func parseTS(ts string, fallback time.Time) time.Time {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return fallback
	}
	sec, err := strconv.ParseFloat(ts, 64)
	if err != nil || sec <= 0 {
		return fallback
	}
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*1e9))
}

// preview truncates raw text for display alongside a similarity match.
// Truncation counts runes so a multi-byte character is never split.
func preview(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return text
}
