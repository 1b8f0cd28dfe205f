package client

import (
	"context"
	"io"
	"strings"
	"sync"

	http "github.com/bogdanfinn/fhttp"
)

type transportCall struct {
	Method  string
	Target  string
	Payload any
	Fields  map[string]string
	File    FilePart
}

// fakeTransport records calls and answers them with the configured funcs.
type fakeTransport struct {
	credentials bool

	openSession   func(ctx context.Context) error
	postJSON      func(ctx context.Context, path string, payload any) (*http.Response, error)
	postMultipart func(ctx context.Context, url string, fields map[string]string, file FilePart) (*http.Response, error)

	mu    sync.Mutex
	calls []transportCall
}

var _ Transport = (*fakeTransport)(nil)

func (f *fakeTransport) record(c transportCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeTransport) Calls() []transportCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transportCall(nil), f.calls...)
}

func (f *fakeTransport) OpenSession(ctx context.Context) error {
	f.record(transportCall{Method: "GET", Target: sessionPath})
	if f.openSession != nil {
		return f.openSession(ctx)
	}
	return nil
}

func (f *fakeTransport) PostJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	f.record(transportCall{Method: "POST", Target: path, Payload: payload})
	if f.postJSON != nil {
		return f.postJSON(ctx, path, payload)
	}
	return respond(200, ""), nil
}

func (f *fakeTransport) PostMultipart(ctx context.Context, url string, fields map[string]string, file FilePart) (*http.Response, error) {
	f.record(transportCall{Method: "POST", Target: url, Fields: fields, File: file})
	if f.postMultipart != nil {
		return f.postMultipart(ctx, url, fields, file)
	}
	return respond(204, ""), nil
}

func (f *fakeTransport) HasCredentials() bool {
	return f.credentials
}

// trackedBody reports whether it was closed.
type trackedBody struct {
	io.Reader
	mu     sync.Mutex
	closed bool
}

func (b *trackedBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *trackedBody) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func respondBody(status int, body io.ReadCloser) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{},
		Body:       body,
	}
}

// blockUntilDone waits for the request context, the way a stalled server
// would look to the client.
func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// frames renders message frames followed by the end-of-stream marker.
func frames(payloads ...string) string {
	var sb strings.Builder
	for _, p := range payloads {
		sb.WriteString("event: message\r\ndata: ")
		sb.WriteString(p)
		sb.WriteString("\r\n\r\n")
	}
	sb.WriteString("event: end_of_stream\r\ndata: {}\r\n\r\n")
	return sb.String()
}
