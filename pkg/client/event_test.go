package client

import (
	"encoding/json"
	"testing"

	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nestedText builds a "text" field value: a JSON string holding the steps,
// whose FINAL content.answer is itself a JSON string.
func nestedText(t *testing.T, steps ...any) string {
	t.Helper()
	data, err := json.Marshal(steps)
	require.NoError(t, err)
	encoded, err := json.Marshal(string(data))
	require.NoError(t, err)
	return string(encoded)
}

func finalStep(t *testing.T, answer any) map[string]any {
	t.Helper()
	data, err := json.Marshal(answer)
	require.NoError(t, err)
	return map[string]any{
		"step_type": "FINAL",
		"content":   map[string]any{"answer": string(data)},
	}
}

func TestDecodeEventFlatAnswer(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"status":"done","answer":"Paris","final":true,"backend_uuid":"b-1"}`))
	require.NoError(t, err)

	assert.Equal(t, "Paris", event.Answer)
	assert.Empty(t, event.WebResults)
	assert.NotNil(t, event.WebResults)
	assert.Equal(t, "b-1", event.BackendUUID)
	assert.Equal(t, []string{"status", "final"}, event.Raw.Keys())

	status, _ := event.Raw.Get("status")
	assert.JSONEq(t, `"done"`, string(status))
}

func TestDecodeEventNestedFinal(t *testing.T) {
	text := nestedText(t,
		map[string]any{"step_type": "INITIAL_QUERY", "content": map[string]any{"query": "q"}},
		finalStep(t, map[string]any{
			"answer":      "A",
			"web_results": []map[string]string{{"name": "N", "url": "U", "snippet": "S"}},
		}),
	)
	payload := `{"answer":"top","text":` + text + `,"backend_uuid":"b-2","attachments":["https://x/1","https://x/2"]}`

	event, err := DecodeEvent([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "A", event.Answer)
	assert.Equal(t, []models.WebResult{{Name: "N", URL: "U", Snippet: "S"}}, event.WebResults)
	assert.Equal(t, "b-2", event.BackendUUID)
	assert.Equal(t, []string{"https://x/1", "https://x/2"}, event.Attachments)

	// text stays in the residual map, parsed
	require.Equal(t, []string{"text"}, event.Raw.Keys())
	raw, _ := event.Raw.Get("text")
	var steps []map[string]any
	require.NoError(t, json.Unmarshal(raw, &steps))
	require.Len(t, steps, 2)
	assert.Equal(t, "FINAL", steps[1]["step_type"])
}

func TestDecodeEventFallbacks(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no final step", `"[{\"step_type\":\"SEARCH_WEB\",\"content\":{}}]"`},
		{"text is not json", `"just words"`},
		{"final answer is not json", `"[{\"step_type\":\"FINAL\",\"content\":{\"answer\":\"{broken\"}}]"`},
		{"final without content", `"[{\"step_type\":\"FINAL\"}]"`},
		{"text is an object", `{"step_type":"FINAL"}`},
		{"steps are not objects", `"[1,2,3]"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := DecodeEvent([]byte(`{"answer":"top","text":` + tt.text + `}`))
			require.NoError(t, err)

			assert.Equal(t, "top", event.Answer)
			assert.Empty(t, event.WebResults)
			_, ok := event.Raw.Get("text")
			assert.True(t, ok)
		})
	}
}

func TestDecodeEventFirstFinalWins(t *testing.T) {
	text := nestedText(t,
		finalStep(t, map[string]any{"answer": "first"}),
		finalStep(t, map[string]any{"answer": "second"}),
	)

	event, err := DecodeEvent([]byte(`{"text":` + text + `}`))
	require.NoError(t, err)
	assert.Equal(t, "first", event.Answer)
}

func TestDecodeEventAlreadyStructuredText(t *testing.T) {
	payload := `{"text":[{"step_type":"FINAL","content":{"answer":"{\"answer\":\"S\",\"web_results\":[]}"}}]}`

	event, err := DecodeEvent([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, "S", event.Answer)
}

func TestDecodeEventFinalWithoutAnswerUsesTopLevel(t *testing.T) {
	text := nestedText(t, finalStep(t, map[string]any{
		"web_results": []map[string]string{{"name": "N", "url": "U", "snippet": "S"}},
	}))

	event, err := DecodeEvent([]byte(`{"answer":"top","text":` + text + `}`))
	require.NoError(t, err)
	assert.Equal(t, "top", event.Answer)
	assert.NotNil(t, event.WebResults)
	assert.Empty(t, event.WebResults)
}

func TestDecodeEventSkipsUnusableSteps(t *testing.T) {
	final := finalStep(t, map[string]any{"answer": "A"})

	tests := []struct {
		name  string
		steps []any
	}{
		{"string before final", []any{"note", final}},
		{"numeric step type", []any{map[string]any{"step_type": 7}, final}},
		{"null and array entries", []any{nil, []int{1}, final}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := nestedText(t, tt.steps...)

			event, err := DecodeEvent([]byte(`{"answer":"top","text":` + text + `}`))
			require.NoError(t, err)
			assert.Equal(t, "A", event.Answer)
		})
	}
}

func TestDecodeEventDropsPartialCitations(t *testing.T) {
	text := nestedText(t, finalStep(t, map[string]any{
		"answer": "A",
		"web_results": []any{
			map[string]any{"name": "full", "url": "u1", "snippet": "s1"},
			map[string]any{"name": "no snippet", "url": "u2"},
			map[string]any{"url": "u3", "snippet": "s3"},
			map[string]any{"name": "null url", "url": nil, "snippet": "s4"},
			map[string]any{"name": "wrong type", "url": 5, "snippet": "s5"},
			"not an object",
			map[string]any{"name": "", "url": "u6", "snippet": ""},
		},
	}))

	event, err := DecodeEvent([]byte(`{"text":` + text + `}`))
	require.NoError(t, err)
	assert.Equal(t, []models.WebResult{
		{Name: "full", URL: "u1", Snippet: "s1"},
		{Name: "", URL: "u6", Snippet: ""},
	}, event.WebResults)
}

func TestDecodeEventChunks(t *testing.T) {
	text := nestedText(t, finalStep(t, map[string]any{
		"answer": "A",
		"chunks": []string{"c1", "c2"},
	}))

	event, err := DecodeEvent([]byte(`{"text":` + text + `}`))
	require.NoError(t, err)
	require.Len(t, event.Chunks, 2)
	assert.JSONEq(t, `"c1"`, string(event.Chunks[0]))

	event, err = DecodeEvent([]byte(`{"answer":"x","chunks":[{"id":1}],"other":1}`))
	require.NoError(t, err)
	require.Len(t, event.Chunks, 1)
	assert.Equal(t, []string{"other"}, event.Raw.Keys())
}

func TestDecodeEventAttachmentsSkipNonStrings(t *testing.T) {
	event, err := DecodeEvent([]byte(`{"attachments":["a",1,null,"b",{"url":"c"},""]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", ""}, event.Attachments)
	assert.Equal(t, []string{"a", "b", ""}, event.FollowUp().Attachments)

	event, err = DecodeEvent([]byte(`{"attachments":"nope","backend_uuid":7}`))
	require.NoError(t, err)
	assert.Empty(t, event.Attachments)
	assert.Empty(t, event.BackendUUID)
}

func TestDecodeEventMalformed(t *testing.T) {
	inputs := []string{``, `not json`, `[1,2]`, `"string"`, `{"a":`}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := DecodeEvent([]byte(input))
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}

func TestDecodeEventRawRoundTrip(t *testing.T) {
	payload := `{"z":{"deep":[1,{"k":"v"}]},"answer":"A","a":null,"m":"x"}`

	event, err := DecodeEvent([]byte(payload))
	require.NoError(t, err)

	out, err := json.Marshal(event.Raw)
	require.NoError(t, err)
	assert.Equal(t, `{"z":{"deep":[1,{"k":"v"}]},"a":null,"m":"x"}`, string(out))
}
