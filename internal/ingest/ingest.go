// Package ingest loads Slack export data and turns it into triage
// records.
//
// Three layouts are supported: a single JSON file (an array of message
// objects, or an object with a "messages" key), a Slack export ZIP
// (per-channel directories of JSON files), and an unzipped export
// directory tree. Each layout has its own Loader; LoadExport
// auto-detects by path.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/hurttlocker/triage/internal/triage"
)

// Loader handles one export layout.
type Loader interface {
	// CanHandle returns true if this loader supports the given path.
	CanHandle(path string) bool

	// Load parses the export and returns raw messages with the channel
	// resolved from the export structure where possible.
	Load(path string) ([]rawMessage, error)
}

// loaders in detection order. The directory loader goes last since it
// accepts anything that stats as a directory.
var loaders = []Loader{
	&ZipLoader{},
	&JSONLoader{},
	&DirLoader{},
}

// LoadExport loads an export at path and returns preprocessed triage
// records plus a count of raw entries that were filtered out
// (system messages, entries without text).
func LoadExport(path string) ([]triage.Record, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("export path: %w", err)
	}

	for _, l := range loaders {
		if _, isDir := l.(*DirLoader); isDir != info.IsDir() {
			continue
		}
		if !l.CanHandle(path) {
			continue
		}
		raw, err := l.Load(path)
		if err != nil {
			return nil, 0, err
		}
		records, skipped := Preprocess(raw)
		return records, skipped, nil
	}

	return nil, 0, fmt.Errorf("unsupported export format: %s (want .json, .zip, or a directory)", path)
}

// rawMessage mirrors a message object in a Slack export file.
type rawMessage struct {
	ClientMsgID string        `json:"client_msg_id"`
	Type        string        `json:"type"`
	SubType     string        `json:"subtype"`
	Text        string        `json:"text"`
	User        string        `json:"user"`
	Channel     string        `json:"channel"`
	TS          json.Number   `json:"ts"`
	ThreadTS    string        `json:"thread_ts"`
	Reactions   []rawReaction `json:"reactions"`
}

type rawReaction struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Subtypes dropped during preprocessing. Bot chatter and join/leave
// noise would otherwise dominate the general category.
var skipSubtypes = map[string]bool{
	"bot_message":   true,
	"channel_join":  true,
	"channel_leave": true,
}

// Preprocess converts raw export messages to triage records, dropping
// system messages and entries without text. The second return value is
// the number of dropped entries.
func Preprocess(raw []rawMessage) ([]triage.Record, int) {
	records := make([]triage.Record, 0, len(raw))
	skipped := 0

	for _, m := range raw {
		if m.Text == "" || skipSubtypes[m.SubType] {
			skipped++
			continue
		}

		id := m.ClientMsgID
		if id == "" {
			id = m.TS.String()
		}

		var reactions []string
		for _, r := range m.Reactions {
			if r.Name != "" {
				reactions = append(reactions, r.Name)
			}
		}

		records = append(records, triage.Record{
			ID:        id,
			Text:      m.Text,
			User:      m.User,
			Channel:   m.Channel,
			TS:        m.TS.String(),
			ThreadTS:  m.ThreadTS,
			Reactions: reactions,
		})
	}

	return records, skipped
}

// parseMessageList decodes one export JSON document: either a bare
// array of messages or an object with a "messages" key.
func parseMessageList(data []byte, channel string) ([]rawMessage, error) {
	var msgs []rawMessage
	if err := json.Unmarshal(data, &msgs); err == nil {
		return tagChannel(msgs, channel), nil
	}

	var wrapper struct {
		Messages []rawMessage `json:"messages"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("invalid export JSON: %w", err)
	}
	if wrapper.Messages == nil {
		return nil, fmt.Errorf("invalid export JSON: expected a message array or an object with a \"messages\" key")
	}
	return tagChannel(wrapper.Messages, channel), nil
}

// tagChannel fills the channel field for messages that lack one; the
// export layout carries the channel in the directory name, not in each
// message object.
func tagChannel(msgs []rawMessage, channel string) []rawMessage {
	if channel == "" {
		return msgs
	}
	for i := range msgs {
		if msgs[i].Channel == "" {
			msgs[i].Channel = channel
		}
	}
	return msgs
}
