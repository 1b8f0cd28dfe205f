// Package auth loads and stores the browser cookies that authenticate
// requests against perplexity.ai.
package auth

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	http "github.com/bogdanfinn/fhttp"
)

const (
	// SessionCookie carries the signed-in session.
	SessionCookie = "next-auth.session-token"
	// CSRFCookie carries "token|hash".
	CSRFCookie = "next-auth.csrf-token"

	// EnvSessionToken and EnvCSRFToken name the variables read by FromEnv.
	EnvSessionToken = "PERPLEXITY_SESSION_TOKEN"
	EnvCSRFToken    = "PERPLEXITY_CSRF_TOKEN"

	cookieDomain = ".perplexity.ai"
)

// ErrNoCookies is returned when a source yields no perplexity.ai cookie.
var ErrNoCookies = errors.New("no perplexity.ai cookies found")

// JSONCookie is one entry of a browser cookie export.
type JSONCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expirationDate,omitempty"`
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	SameSite string  `json:"sameSite,omitempty"`
}

func (jc JSONCookie) toCookie() *http.Cookie {
	cookie := &http.Cookie{
		Name:     jc.Name,
		Value:    jc.Value,
		Domain:   jc.Domain,
		Path:     jc.Path,
		Secure:   jc.Secure,
		HttpOnly: jc.HTTPOnly,
		SameSite: parseSameSite(jc.SameSite),
	}
	if jc.Expires > 0 {
		cookie.Expires = time.Unix(int64(jc.Expires), 0)
	}
	return cookie
}

func fromCookie(c *http.Cookie) JSONCookie {
	jc := JSONCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HttpOnly,
		SameSite: formatSameSite(c.SameSite),
	}
	if !c.Expires.IsZero() {
		jc.Expires = float64(c.Expires.Unix())
	}
	return jc
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none", "no_restriction":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

func formatSameSite(s http.SameSite) string {
	switch s {
	case http.SameSiteStrictMode:
		return "Strict"
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteNoneMode:
		return "None"
	default:
		return ""
	}
}

func isPerplexityDomain(domain string) bool {
	return strings.Contains(domain, "perplexity.ai")
}

// LoadCookies reads a cookie file in either JSON export or Netscape
// format, picked by the first non-blank byte.
func LoadCookies(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		return parseJSONCookies(data)
	}
	return parseNetscapeCookies(data)
}

// LoadCookiesFromFile loads cookies from a JSON export.
func LoadCookiesFromFile(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	return parseJSONCookies(data)
}

// LoadCookiesFromNetscape loads cookies from a Netscape cookies.txt file.
func LoadCookiesFromNetscape(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cookie file: %w", err)
	}
	return parseNetscapeCookies(data)
}

func parseJSONCookies(data []byte) ([]*http.Cookie, error) {
	var jsonCookies []JSONCookie
	if err := json.Unmarshal(data, &jsonCookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie JSON: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(jsonCookies))
	for _, jc := range jsonCookies {
		if !isPerplexityDomain(jc.Domain) {
			continue
		}
		cookies = append(cookies, jc.toCookie())
	}
	return cookies, nil
}

// parseNetscapeCookies reads tab separated lines:
// domain, tailmatch, path, secure, expiration, name, value.
func parseNetscapeCookies(data []byte) ([]*http.Cookie, error) {
	var cookies []*http.Cookie
	scanner := bufio.NewScanner(bytes.NewReader(data))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// curl marks HttpOnly cookies with this prefix
		httpOnly := strings.HasPrefix(line, "#HttpOnly_")
		line = strings.TrimPrefix(line, "#HttpOnly_")

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 || !isPerplexityDomain(fields[0]) {
			continue
		}

		cookie := &http.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   fields[3] == "TRUE",
			Name:     fields[5],
			Value:    fields[6],
			HttpOnly: httpOnly,
		}
		if exp, err := strconv.ParseInt(fields[4], 10, 64); err == nil && exp > 0 {
			cookie.Expires = time.Unix(exp, 0)
		}

		cookies = append(cookies, cookie)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading cookie file: %w", err)
	}
	return cookies, nil
}

// FromTokens builds the two auth cookies. Empty values are left out.
func FromTokens(sessionToken, csrfToken string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, kv := range [][2]string{{SessionCookie, sessionToken}, {CSRFCookie, csrfToken}} {
		if kv[1] == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:     kv[0],
			Value:    kv[1],
			Domain:   cookieDomain,
			Path:     "/",
			Secure:   true,
			HttpOnly: true,
		})
	}
	return cookies
}

// FromEnv reads PERPLEXITY_SESSION_TOKEN and PERPLEXITY_CSRF_TOKEN. It
// returns nil when neither is set.
func FromEnv() []*http.Cookie {
	return FromTokens(os.Getenv(EnvSessionToken), os.Getenv(EnvCSRFToken))
}

// Resolve returns cookies from path when it exists, otherwise from the
// environment. A missing file is not an error; a broken one is.
func Resolve(path string) ([]*http.Cookie, error) {
	if path != "" {
		cookies, err := LoadCookies(path)
		switch {
		case err == nil:
			return cookies, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	if cookies := FromEnv(); len(cookies) > 0 {
		return cookies, nil
	}
	return nil, ErrNoCookies
}

// GetDefaultCookiePath returns the default cookie file path.
func GetDefaultCookiePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".perplexity-cli", "cookies.json"), nil
}

// SaveCookiesToFile writes cookies as a JSON export readable by LoadCookies.
func SaveCookiesToFile(cookies []*http.Cookie, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	jsonCookies := make([]JSONCookie, 0, len(cookies))
	for _, c := range cookies {
		jsonCookies = append(jsonCookies, fromCookie(c))
	}

	data, err := json.MarshalIndent(jsonCookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}

// HasCSRFToken checks if cookies contain a non-empty CSRF token.
func HasCSRFToken(cookies []*http.Cookie) bool {
	return ExtractCSRFToken(cookies) != ""
}

// HasSession reports whether a session cookie is present.
func HasSession(cookies []*http.Cookie) bool {
	for _, c := range cookies {
		if c.Name == SessionCookie && c.Value != "" {
			return true
		}
	}
	return false
}

// ExtractCSRFToken returns the token half of the CSRF cookie.
func ExtractCSRFToken(cookies []*http.Cookie) string {
	for _, c := range cookies {
		if c.Name == CSRFCookie {
			value, _, _ := strings.Cut(c.Value, "|")
			return value
		}
	}
	return ""
}

// CookieMap converts cookie slice to map for easier access.
func CookieMap(cookies []*http.Cookie) map[string]string {
	m := make(map[string]string, len(cookies))
	for _, c := range cookies {
		m[c.Name] = c.Value
	}
	return m
}
