package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"sort"
	"strings"
	"sync"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

const (
	baseURL     = "https://www.perplexity.ai"
	searchPath  = "/rest/sse/perplexity_ask"
	sessionPath = "/api/auth/session"
	uploadPath  = "/rest/uploads/create_upload_url"
	userAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36"

	// maxErrorBody caps how much of a failed response ends up in an error.
	maxErrorBody = 4 << 10
)

// HTTPClient wraps tls-client to provide Chrome-impersonating HTTP requests.
// It implements Transport.
type HTTPClient struct {
	client tls_client.HttpClient

	mu      sync.RWMutex
	cookies []*http.Cookie
}

var _ Transport = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client with Chrome TLS fingerprint.
func NewHTTPClient() (*HTTPClient, error) {
	jar := tls_client.NewCookieJar()

	options := []tls_client.HttpClientOption{
		// each leg is bounded by its own context deadline
		tls_client.WithTimeoutSeconds(0),
		tls_client.WithClientProfile(profiles.Chrome_133),
		tls_client.WithCookieJar(jar),
		tls_client.WithRandomTLSExtensionOrder(),
	}

	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS client: %w", err)
	}

	return &HTTPClient{
		client:  client,
		cookies: make([]*http.Cookie, 0),
	}, nil
}

// cookiesMapToSlice converts a map of cookies to a slice of http.Cookie.
func cookiesMapToSlice(cookies map[string]string) []*http.Cookie {
	names := make([]string, 0, len(cookies))
	for name := range cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	cookieSlice := make([]*http.Cookie, 0, len(cookies))
	for _, name := range names {
		cookieSlice = append(cookieSlice, &http.Cookie{
			Name:  name,
			Value: cookies[name],
		})
	}
	return cookieSlice
}

// buildHeaders returns common headers for Perplexity API requests.
// It merges custom headers with default headers.
func (c *HTTPClient) buildHeaders(customHeaders map[string]string) http.Header {
	headers := http.Header{
		"Accept":             {"*/*"},
		"Accept-Encoding":    {"gzip, deflate, br, zstd"},
		"Accept-Language":    {"en-US,en;q=0.9"},
		"Content-Type":       {"application/json"},
		"Origin":             {baseURL},
		"Referer":            {baseURL + "/"},
		"User-Agent":         {userAgent},
		"sec-ch-ua":          {`"Chromium";v="133", "Not(A:Brand";v="99", "Google Chrome";v="133"`},
		"sec-ch-ua-mobile":   {"?0"},
		"sec-ch-ua-platform": {`"Linux"`},
		"sec-fetch-dest":     {"empty"},
		"sec-fetch-mode":     {"cors"},
		"sec-fetch-site":     {"same-origin"},
		"priority":           {"u=1, i"},
	}

	// an empty value removes a default header
	for key, value := range customHeaders {
		if value == "" {
			headers.Del(key)
			continue
		}
		headers.Set(key, value)
	}

	return headers
}

// normalizeURL converts a path to a full URL if needed.
func normalizeURL(urlStr string) string {
	if strings.HasPrefix(urlStr, "http://") || strings.HasPrefix(urlStr, "https://") {
		return urlStr
	}
	return baseURL + urlStr
}

func (c *HTTPClient) do(ctx context.Context, method, urlStr string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, normalizeURL(urlStr), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = c.buildHeaders(headers)
	return c.client.Do(req)
}

// OpenSession fetches the auth session endpoint so the service sets its
// session cookies on the jar.
func (c *HTTPClient) OpenSession(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, sessionPath, nil, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(LegSession, resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// PostJSON posts payload encoded as JSON.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), nil)
}

// PostMultipart posts a multipart form. Fields are written in name order,
// then the file part.
func (c *HTTPClient) PostMultipart(ctx context.Context, urlStr string, fields map[string]string, file FilePart) (*http.Response, error) {
	body, contentType, err := buildMultipart(fields, file)
	if err != nil {
		return nil, err
	}

	return c.do(ctx, http.MethodPost, urlStr, body, map[string]string{
		"Content-Type":   contentType,
		"Origin":         "",
		"Referer":        "",
		"sec-fetch-site": "cross-site",
	})
}

func buildMultipart(fields map[string]string, file FilePart) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := writer.WriteField(name, fields[name]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}

	fieldName := file.FieldName
	if fieldName == "" {
		fieldName = "file"
	}

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(fieldName), escapeQuotes(file.Filename)),
	}
	if file.ContentType != "" {
		header["Content-Type"] = []string{file.ContentType}
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// HasCredentials reports whether any cookie was configured.
func (c *HTTPClient) HasCredentials() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cookies) > 0
}

// SetCookies sets cookies for the client using a map of name-value pairs.
func (c *HTTPClient) SetCookies(cookies map[string]string) {
	c.SetCookieList(cookiesMapToSlice(cookies))
}

// SetCookieList sets cookies for the client.
func (c *HTTPClient) SetCookieList(cookies []*http.Cookie) {
	c.mu.Lock()
	c.cookies = cookies
	c.mu.Unlock()

	u, _ := url.Parse(baseURL)
	c.client.SetCookies(u, cookies)
}

// GetCookies returns current cookies.
func (c *HTTPClient) GetCookies() []*http.Cookie {
	u, _ := url.Parse(baseURL)
	return c.client.GetCookies(u)
}

// Close closes the HTTP client.
func (c *HTTPClient) Close() error {
	// tls-client doesn't have explicit close
	return nil
}

// checkStatus turns a non-2xx response into a *StatusError. The body is
// left open for the caller to close.
func checkStatus(leg Leg, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Leg:        leg,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}
