package client

import (
	"context"

	http "github.com/bogdanfinn/fhttp"
)

// Transport is the network layer used by Client. HTTPClient is the
// production implementation; tests substitute a fake.
//
// Implementations must be safe for concurrent use. Returned responses are
// owned by the caller, which closes the body.
type Transport interface {
	// OpenSession warms up the session. It is idempotent.
	OpenSession(ctx context.Context) error

	// PostJSON posts payload as JSON to a path on the service.
	PostJSON(ctx context.Context, path string, payload any) (*http.Response, error)

	// PostMultipart posts a multipart form to an absolute URL. Fields are
	// written before the file part.
	PostMultipart(ctx context.Context, url string, fields map[string]string, file FilePart) (*http.Response, error)

	// HasCredentials reports whether authentication cookies are configured.
	HasCredentials() bool
}

// FilePart is the file section of a multipart upload.
type FilePart struct {
	FieldName   string
	Filename    string
	ContentType string
	Data        []byte
}
