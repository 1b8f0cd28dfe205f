package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewSearchRequest(t *testing.T) {
	query := "test query"
	req := NewSearchRequest(query)

	if req.Query != query {
		t.Errorf("Query = %q, want %q", req.Query, query)
	}
	if req.Mode != ModeAuto {
		t.Errorf("Mode = %q, want %q", req.Mode, ModeAuto)
	}
	if req.Model != ModelDefault {
		t.Errorf("Model = %q, want default", req.Model)
	}
	if len(req.Sources) != 1 || req.Sources[0] != SourceWeb {
		t.Errorf("Sources = %v, want [web]", req.Sources)
	}
	if req.Language != "en-US" {
		t.Errorf("Language = %q, want %q", req.Language, "en-US")
	}
	if req.Incognito {
		t.Error("Incognito should be false by default")
	}
	if req.FollowUp != nil {
		t.Error("FollowUp should be nil by default")
	}
}

func TestSearchRequestBuilder(t *testing.T) {
	base := NewSearchRequest("q")
	req := base.
		WithMode(ModeReasoning).
		WithModel(ModelGemini30Pro).
		WithSources(SourceScholar, SourceWeb, SourceScholar).
		WithLanguage("pt-BR").
		WithIncognito(true).
		WithFile(FileFromText("notes.txt", "hello")).
		WithFollowUp(FollowUpContext{BackendUUID: "b-1", Attachments: []string{"https://x/a"}})

	if req.Mode != ModeReasoning || req.Model != ModelGemini30Pro {
		t.Errorf("mode/model = %q/%q", req.Mode, req.Model)
	}
	want := []Source{SourceScholar, SourceWeb, SourceScholar}
	if len(req.Sources) != len(want) {
		t.Fatalf("Sources = %v, want %v", req.Sources, want)
	}
	for i := range want {
		if req.Sources[i] != want[i] {
			t.Errorf("Sources[%d] = %q, want %q", i, req.Sources[i], want[i])
		}
	}
	if req.Language != "pt-BR" || !req.Incognito {
		t.Errorf("language/incognito = %q/%v", req.Language, req.Incognito)
	}
	if len(req.Files) != 1 || req.Files[0].Filename != "notes.txt" || req.Files[0].Size() != 5 {
		t.Errorf("Files = %+v", req.Files)
	}
	if req.FollowUp == nil || req.FollowUp.BackendUUID != "b-1" {
		t.Errorf("FollowUp = %+v", req.FollowUp)
	}

	// the builder works on copies
	if base.Mode != ModeAuto || len(base.Files) != 0 {
		t.Error("base request was modified")
	}
}

func TestWithSourcesEmptyKeepsCurrent(t *testing.T) {
	req := NewSearchRequest("q").WithSources(SourceSocial).WithSources()
	if len(req.Sources) != 1 || req.Sources[0] != SourceSocial {
		t.Errorf("Sources = %v, want [social]", req.Sources)
	}
}

func TestWithFileDoesNotAlias(t *testing.T) {
	base := NewSearchRequest("q").WithFile(FileFromBytes("a.bin", []byte{1}))
	a := base.WithFile(FileFromBytes("b.bin", []byte{2}))
	b := base.WithFile(FileFromBytes("c.bin", []byte{3}))

	if a.Files[1].Filename != "b.bin" || b.Files[1].Filename != "c.bin" {
		t.Errorf("files aliased: %q %q", a.Files[1].Filename, b.Files[1].Filename)
	}
}

func TestAskPayloadOmitsLastBackendUUID(t *testing.T) {
	payload := AskPayload{
		Query: "test",
		Params: AskParams{
			Attachments: []string{},
			Mode:        "concise",
			Sources:     []string{"web"},
			Version:     "2.18",
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "last_backend_uuid") {
		t.Errorf("payload contains last_backend_uuid: %s", data)
	}
	if !strings.Contains(string(data), `"attachments":[]`) {
		t.Errorf("payload attachments should be an empty array: %s", data)
	}

	payload.Params.LastBackendUUID = "prev"
	data, _ = json.Marshal(payload)
	if !strings.Contains(string(data), `"last_backend_uuid":"prev"`) {
		t.Errorf("payload missing last_backend_uuid: %s", data)
	}
}

func TestUploadURLRequest(t *testing.T) {
	req := UploadURLRequest{
		ContentType: "application/pdf",
		FileSize:    1024,
		Filename:    "test.pdf",
		Source:      "default",
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"content_type":"application/pdf","file_size":1024,"filename":"test.pdf","force_image":false,"source":"default"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
