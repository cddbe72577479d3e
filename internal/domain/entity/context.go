package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type EntryKind string

const (
	EntryThought     EntryKind = "thought"
	EntryAction      EntryKind = "action"
	EntryObservation EntryKind = "observation"
	EntrySummary     EntryKind = "summary"
)

// CompactionTail is the number of most recent entries kept verbatim after a summary.
const CompactionTail = 3

// ContextEntry is one immutable step of the transcript shown to the reasoning step.
type ContextEntry interface {
	Kind() EntryKind
	Render() string
}

type Thought struct {
	Text string
}

func (Thought) Kind() EntryKind { return EntryThought }

func (t Thought) Render() string {
	return "<thought>\n" + t.Text + "\n</thought>"
}

type ActionRecord struct {
	ToolName ToolName
	Reason   string
	Input    json.RawMessage
}

func (ActionRecord) Kind() EntryKind { return EntryAction }

func (a ActionRecord) Render() string {
	return "<action><reason>\n" + a.Reason + "\n</reason><name>" + a.ToolName.String() +
		"</name><input>" + compactJSON(a.Input) + "</input></action>"
}

type Observation struct {
	Text string
}

func (Observation) Kind() EntryKind { return EntryObservation }

func (o Observation) Render() string {
	return "<observation>\n" + o.Text + "\n</observation>"
}

// Summary is produced by compaction and replaces everything but the tail of a log.
type Summary struct {
	Text string
}

func (Summary) Kind() EntryKind { return EntrySummary }

func (s Summary) Render() string { return s.Text }

// ContextLog is the ordered transcript of a generation. Append returns a new log and never
// mutates the receiver's backing array, so a log handed to a step stays stable.
type ContextLog struct {
	entries []ContextEntry
}

func NewContextLog(entries ...ContextEntry) ContextLog {
	return ContextLog{entries: append([]ContextEntry(nil), entries...)}
}

func (l ContextLog) Append(entries ...ContextEntry) ContextLog {
	next := make([]ContextEntry, 0, len(l.entries)+len(entries))
	next = append(next, l.entries...)
	next = append(next, entries...)
	return ContextLog{entries: next}
}

func (l ContextLog) Len() int { return len(l.entries) }

func (l ContextLog) Entries() []ContextEntry {
	return append([]ContextEntry(nil), l.entries...)
}

// Tail returns the last min(n, Len()) entries.
func (l ContextLog) Tail(n int) []ContextEntry {
	if n > len(l.entries) {
		n = len(l.entries)
	}
	if n <= 0 {
		return nil
	}
	return append([]ContextEntry(nil), l.entries[len(l.entries)-n:]...)
}

// Compacted builds the continuation log: the summary followed by the verbatim tail.
func (l ContextLog) Compacted(summary string) ContextLog {
	return NewContextLog(append([]ContextEntry{Summary{Text: summary}}, l.Tail(CompactionTail)...)...)
}

// Render produces the "previous steps" text handed to the model steps.
func (l ContextLog) Render() string {
	parts := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		parts = append(parts, e.Render())
	}
	return strings.Join(parts, "\n")
}

type entryJSON struct {
	Kind   EntryKind       `json:"kind"`
	Text   string          `json:"text,omitempty"`
	Tool   ToolName        `json:"tool,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Input  json.RawMessage `json:"input,omitempty"`
}

func (l ContextLog) MarshalJSON() ([]byte, error) {
	out := make([]entryJSON, 0, len(l.entries))
	for _, e := range l.entries {
		switch v := e.(type) {
		case Thought:
			out = append(out, entryJSON{Kind: EntryThought, Text: v.Text})
		case ActionRecord:
			out = append(out, entryJSON{Kind: EntryAction, Tool: v.ToolName, Reason: v.Reason, Input: v.Input})
		case Observation:
			out = append(out, entryJSON{Kind: EntryObservation, Text: v.Text})
		case Summary:
			out = append(out, entryJSON{Kind: EntrySummary, Text: v.Text})
		default:
			return nil, fmt.Errorf("unknown context entry %T", e)
		}
	}
	return json.Marshal(out)
}

func (l *ContextLog) UnmarshalJSON(data []byte) error {
	var raw []entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	entries := make([]ContextEntry, 0, len(raw))
	for _, r := range raw {
		switch r.Kind {
		case EntryThought:
			entries = append(entries, Thought{Text: r.Text})
		case EntryAction:
			entries = append(entries, ActionRecord{ToolName: r.Tool, Reason: r.Reason, Input: r.Input})
		case EntryObservation:
			entries = append(entries, Observation{Text: r.Text})
		case EntrySummary:
			entries = append(entries, Summary{Text: r.Text})
		default:
			return fmt.Errorf("unknown context entry kind %q", r.Kind)
		}
	}
	l.entries = entries
	return nil
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
