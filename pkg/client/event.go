package client

import (
	"encoding/json"
	"fmt"

	"github.com/diogo/perplexity-web-api-go/pkg/models"
)

const finalStepType = "FINAL"

// Top-level keys lifted out of the residual map.
var extractedKeys = map[string]bool{
	"answer":       true,
	"backend_uuid": true,
	"attachments":  true,
	"chunks":       true,
}

type step struct {
	StepType string          `json:"step_type"`
	Content  json.RawMessage `json:"content"`
}

type finalAnswer struct {
	Answer     *string           `json:"answer"`
	WebResults []json.RawMessage `json:"web_results"`
	Chunks     []json.RawMessage `json:"chunks"`
}

type webResult struct {
	Name    *string `json:"name"`
	URL     *string `json:"url"`
	Snippet *string `json:"snippet"`
}

// DecodeEvent turns one frame payload into a SearchEvent.
//
// Only a payload that is not a JSON object fails, with ErrMalformedPayload.
// Problems inside the nested "text" steps fall back to the top-level
// answer with no web results. The same holds for a FINAL answer without
// an "answer" key.
func DecodeEvent(data []byte) (*models.SearchEvent, error) {
	var fields models.RawFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	event := &models.SearchEvent{
		WebResults:  []models.WebResult{},
		Attachments: []string{},
	}

	var final *finalAnswer
	if text, ok := fields.Get("text"); ok {
		parsed, steps := parseText(text)
		fields.Set("text", parsed)
		final = findFinal(steps)
	}

	if final != nil && final.Answer != nil {
		event.Answer = *final.Answer
		event.WebResults = webResults(final.WebResults)
	} else {
		event.Answer = stringField(fields, "answer")
	}

	if final != nil && len(final.Chunks) > 0 {
		event.Chunks = final.Chunks
	} else if raw, ok := fields.Get("chunks"); ok {
		_ = json.Unmarshal(raw, &event.Chunks)
	}

	event.BackendUUID = stringField(fields, "backend_uuid")
	if raw, ok := fields.Get("attachments"); ok {
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) == nil {
			for _, item := range items {
				var s *string
				if json.Unmarshal(item, &s) == nil && s != nil {
					event.Attachments = append(event.Attachments, *s)
				}
			}
		}
	}

	event.Raw = make(models.RawFields, 0, len(fields))
	for _, f := range fields {
		if !extractedKeys[f.Key] {
			event.Raw = append(event.Raw, f)
		}
	}

	return event, nil
}

// parseText returns the structured form of a "text" field and its steps.
// A string holding JSON is parsed; anything else is kept as is.
func parseText(raw json.RawMessage) (json.RawMessage, []step) {
	var encoded string
	if json.Unmarshal(raw, &encoded) == nil {
		if !json.Valid([]byte(encoded)) {
			return raw, nil
		}
		raw = json.RawMessage(encoded)
	}

	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return raw, nil
	}

	// steps that are not objects with a string step_type are skipped
	steps := make([]step, 0, len(items))
	for _, item := range items {
		var s step
		if json.Unmarshal(item, &s) == nil {
			steps = append(steps, s)
		}
	}
	return raw, steps
}

// findFinal parses the answer of the first FINAL step.
func findFinal(steps []step) *finalAnswer {
	for _, s := range steps {
		if s.StepType != finalStepType {
			continue
		}

		var content struct {
			Answer json.RawMessage `json:"answer"`
		}
		if json.Unmarshal(s.Content, &content) != nil || content.Answer == nil {
			return nil
		}

		// the answer is usually a JSON document encoded as a string
		var encoded string
		if json.Unmarshal(content.Answer, &encoded) == nil {
			content.Answer = json.RawMessage(encoded)
		}

		var final finalAnswer
		if json.Unmarshal(content.Answer, &final) != nil {
			return nil
		}
		return &final
	}
	return nil
}

// webResults keeps entries carrying name, url and snippet.
func webResults(raw []json.RawMessage) []models.WebResult {
	results := make([]models.WebResult, 0, len(raw))
	for _, item := range raw {
		var r webResult
		if json.Unmarshal(item, &r) != nil {
			continue
		}
		if r.Name == nil || r.URL == nil || r.Snippet == nil {
			continue
		}
		results = append(results, models.WebResult{Name: *r.Name, URL: *r.URL, Snippet: *r.Snippet})
	}
	return results
}

func stringField(fields models.RawFields, key string) string {
	raw, ok := fields.Get(key)
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}
