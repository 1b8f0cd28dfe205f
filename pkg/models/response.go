package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SearchEvent is one decoded frame of the answer stream.
type SearchEvent struct {
	Answer      string      `json:"answer,omitempty"`
	WebResults  []WebResult `json:"web_results"`
	BackendUUID string      `json:"backend_uuid,omitempty"`
	Attachments []string    `json:"attachments"`
	// Chunks holds the flat citation-chunk list of older FINAL answers.
	// It is a compatibility fallback for that protocol shape.
	Chunks []json.RawMessage `json:"chunks,omitempty"`
	Raw    RawFields         `json:"raw"`
}

// FollowUp returns the context needed to continue from this event.
func (e *SearchEvent) FollowUp() FollowUpContext {
	return FollowUpContext{
		BackendUUID: e.BackendUUID,
		Attachments: append(make([]string, 0, len(e.Attachments)), e.Attachments...),
	}
}

// WebResult represents a citation from the FINAL answer.
type WebResult struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResponse is the materialized result of draining an answer stream.
type SearchResponse struct {
	Answer     string          `json:"answer,omitempty"`
	WebResults []WebResult     `json:"web_results"`
	FollowUp   FollowUpContext `json:"follow_up"`
	// Raw is the JSON encoding of the last event.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// RawField is one top-level payload field kept verbatim.
type RawField struct {
	Key   string
	Value json.RawMessage
}

// RawFields is an ordered JSON object. It keeps backend fields the decoder
// does not model and marshals back to an object in the original key order.
type RawFields []RawField

// Get returns the value stored under key.
func (r RawFields) Get(key string) (json.RawMessage, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the field names in order.
func (r RawFields) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// Set replaces the value under key, or appends it.
func (r *RawFields) Set(key string, value json.RawMessage) {
	for i, f := range *r {
		if f.Key == key {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, RawField{Key: key, Value: value})
}

// MarshalJSON encodes the fields as a JSON object.
func (r RawFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(f.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(f.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping key order. Duplicate keys
// keep their first position and last value.
func (r *RawFields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	fields := RawFields{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		fields.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = fields
	return nil
}

// HistoryEntry represents a query in the history file.
type HistoryEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Query       string    `json:"query"`
	Mode        string    `json:"mode"`
	Model       string    `json:"model,omitempty"`
	Response    string    `json:"response,omitempty"`
	BackendUUID string    `json:"backend_uuid,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	Citations   int       `json:"citations,omitempty"`
	Thread      string    `json:"thread,omitempty"`
}
