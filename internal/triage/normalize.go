package triage

import (
	"regexp"
	"strings"
)

// Patterns for the Slack noise stripped before any scoring: links,
// <@USER> mentions, <#CHAN|name> references, and :emoji: shortcodes.
var (
	reURL     = regexp.MustCompile(`https?://[^\s<>]+`)
	reMention = regexp.MustCompile(`<@[A-Z0-9]+>`)
	reChanRef = regexp.MustCompile(`<#[A-Z0-9]+\|[^>]+>`)
	reEmoji   = regexp.MustCompile(`:[a-zA-Z0-9_+-]+:`)
	reNoise   = regexp.MustCompile(`[^\p{L}\p{N}\s?!._]`)
)

// Normalize strips markup noise from raw message text and lowercases
// it. The result keeps only letters, digits, whitespace, and ? ! . _
// with runs of whitespace collapsed to single spaces.
//
// Normalize is total and idempotent: it never fails, empty input yields
// empty output, and Normalize(Normalize(t)) == Normalize(t).
func Normalize(text string) string {
	text = reURL.ReplaceAllString(text, "")
	text = reMention.ReplaceAllString(text, "")
	text = reChanRef.ReplaceAllString(text, "")
	text = reEmoji.ReplaceAllString(text, "")
	text = reNoise.ReplaceAllString(text, " ")
	text = strings.Join(strings.Fields(text), " ")
	return strings.ToLower(text)
}

// words returns the unique word set of normalized text.
func words(normalized string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(normalized) {
		set[w] = struct{}{}
	}
	return set
}
