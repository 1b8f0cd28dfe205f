package models

// DefaultLanguage is the language tag used when none is given.
const DefaultLanguage = "en-US"

// SearchRequest contains user-configurable search parameters.
// Build it with NewSearchRequest and the With* methods; construction never
// fails and invalid mode/model pairs are only reported on submission.
type SearchRequest struct {
	Query     string
	Mode      Mode
	Model     Model
	Sources   []Source
	Files     []UploadFile
	Language  string
	FollowUp  *FollowUpContext
	Incognito bool
}

// NewSearchRequest returns a request with sensible defaults.
func NewSearchRequest(query string) SearchRequest {
	return SearchRequest{
		Query:    query,
		Mode:     ModeAuto,
		Sources:  []Source{SourceWeb},
		Language: DefaultLanguage,
	}
}

// WithMode sets the search mode.
func (r SearchRequest) WithMode(mode Mode) SearchRequest {
	r.Mode = mode
	return r
}

// WithModel sets the model selector.
func (r SearchRequest) WithModel(model Model) SearchRequest {
	r.Model = model
	return r
}

// WithSources sets the information sources. An empty list leaves the
// current sources in place so a request never loses its last source.
func (r SearchRequest) WithSources(sources ...Source) SearchRequest {
	if len(sources) == 0 {
		return r
	}
	r.Sources = append([]Source(nil), sources...)
	return r
}

// WithFile appends a file to upload with the query.
func (r SearchRequest) WithFile(file UploadFile) SearchRequest {
	r.Files = append(append([]UploadFile(nil), r.Files...), file)
	return r
}

// WithLanguage sets the response language.
func (r SearchRequest) WithLanguage(language string) SearchRequest {
	r.Language = language
	return r
}

// WithFollowUp continues a previous exchange.
func (r SearchRequest) WithFollowUp(ctx FollowUpContext) SearchRequest {
	r.FollowUp = &ctx
	return r
}

// WithIncognito enables or disables incognito mode.
func (r SearchRequest) WithIncognito(incognito bool) SearchRequest {
	r.Incognito = incognito
	return r
}

// UploadFile is a file attached to a query.
type UploadFile struct {
	Filename string
	Data     []byte
}

// FileFromBytes creates an UploadFile from raw bytes.
func FileFromBytes(filename string, data []byte) UploadFile {
	return UploadFile{Filename: filename, Data: data}
}

// FileFromText creates an UploadFile from text content.
func FileFromText(filename, content string) UploadFile {
	return UploadFile{Filename: filename, Data: []byte(content)}
}

// Size returns the payload length in bytes.
func (f UploadFile) Size() int {
	return len(f.Data)
}

// FollowUpContext carries conversation state from one exchange to the next.
type FollowUpContext struct {
	BackendUUID string   `json:"backend_uuid,omitempty"`
	Attachments []string `json:"attachments"`
}

// AskPayload is the body of a perplexity_ask request.
type AskPayload struct {
	Query  string    `json:"query_str"`
	Params AskParams `json:"params"`
}

// AskParams holds the request parameters of an AskPayload.
type AskParams struct {
	Attachments         []string `json:"attachments"`
	FrontendContextUUID string   `json:"frontend_context_uuid"`
	FrontendUUID        string   `json:"frontend_uuid"`
	IsIncognito         bool     `json:"is_incognito"`
	Language            string   `json:"language"`
	LastBackendUUID     string   `json:"last_backend_uuid,omitempty"`
	Mode                string   `json:"mode"`
	ModelPreference     string   `json:"model_preference"`
	Source              string   `json:"source"`
	Sources             []string `json:"sources"`
	Version             string   `json:"version"`
}

// UploadURLRequest represents a request to get an upload URL.
type UploadURLRequest struct {
	ContentType string `json:"content_type"`
	FileSize    int    `json:"file_size"`
	Filename    string `json:"filename"`
	ForceImage  bool   `json:"force_image"`
	Source      string `json:"source"`
}

// UploadURLResponse contains the storage target negotiated for an upload.
type UploadURLResponse struct {
	Fields      map[string]string `json:"fields"`
	S3BucketURL string            `json:"s3_bucket_url"`
	S3ObjectURL string            `json:"s3_object_url"`
}

// StorageUploadResponse is returned by the image-processing storage backend.
type StorageUploadResponse struct {
	SecureURL string `json:"secure_url"`
}
