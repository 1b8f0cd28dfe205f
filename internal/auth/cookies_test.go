package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	http "github.com/bogdanfinn/fhttp"
)

const jsonExport = `[
	{"name": "next-auth.session-token", "value": "sess", "domain": ".perplexity.ai", "path": "/", "secure": true, "httpOnly": true, "sameSite": "Lax", "expirationDate": 1900000000.5},
	{"name": "next-auth.csrf-token", "value": "csrf_token_value|hash", "domain": "www.perplexity.ai", "path": "/"},
	{"name": "other_cookie", "value": "other_value", "domain": ".example.com", "path": "/"}
]`

const netscapeExport = `# Netscape HTTP Cookie File
.perplexity.ai	TRUE	/	TRUE	1900000000	next-auth.session-token	sess
#HttpOnly_.perplexity.ai	TRUE	/	TRUE	0	next-auth.csrf-token	tok|hash
.example.com	TRUE	/	TRUE	1900000000	other	other_value
too	few	fields
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadCookies(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json export", "cookies.json", jsonExport},
		{"json with leading blank", "cookies.json", "\n  " + jsonExport},
		{"netscape", "cookies.txt", netscapeExport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookies, err := LoadCookies(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadCookies() error = %v", err)
			}
			if len(cookies) != 2 {
				t.Fatalf("len(cookies) = %d, want 2", len(cookies))
			}
			if !HasSession(cookies) {
				t.Error("session cookie missing")
			}
			if !HasCSRFToken(cookies) {
				t.Error("csrf cookie missing")
			}
		})
	}
}

func TestLoadCookiesFromFile(t *testing.T) {
	cookies, err := LoadCookiesFromFile(writeFile(t, "cookies.json", jsonExport))
	if err != nil {
		t.Fatalf("LoadCookiesFromFile() error = %v", err)
	}

	session := cookies[0]
	if session.Name != SessionCookie || session.Value != "sess" {
		t.Errorf("first cookie = %s=%s", session.Name, session.Value)
	}
	if !session.Secure || !session.HttpOnly {
		t.Error("Secure and HttpOnly should be kept")
	}
	if session.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", session.SameSite)
	}
	if session.Expires.Unix() != 1900000000 {
		t.Errorf("Expires = %v", session.Expires)
	}
}

func TestLoadCookiesErrors(t *testing.T) {
	tests := []struct {
		name string
		load func(string) ([]*http.Cookie, error)
		path func(t *testing.T) string
	}{
		{"json missing", LoadCookiesFromFile, func(*testing.T) string { return "/nonexistent/cookies.json" }},
		{"json invalid", LoadCookiesFromFile, func(t *testing.T) string { return writeFile(t, "bad.json", "not valid json") }},
		{"detect invalid json", LoadCookies, func(t *testing.T) string { return writeFile(t, "bad.json", "[{") }},
		{"netscape missing", LoadCookiesFromNetscape, func(*testing.T) string { return "/nonexistent/cookies.txt" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.load(tt.path(t)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadCookiesFromNetscape(t *testing.T) {
	cookies, err := LoadCookiesFromNetscape(writeFile(t, "cookies.txt", netscapeExport))
	if err != nil {
		t.Fatalf("LoadCookiesFromNetscape() error = %v", err)
	}

	m := make(map[string]*http.Cookie)
	for _, c := range cookies {
		m[c.Name] = c
	}

	if c := m[SessionCookie]; c == nil || !c.Secure || c.Expires.IsZero() || c.HttpOnly {
		t.Errorf("session cookie = %+v", c)
	}
	if c := m[CSRFCookie]; c == nil || !c.HttpOnly || !c.Expires.IsZero() {
		t.Errorf("csrf cookie = %+v", c)
	}
	if _, ok := m["other"]; ok {
		t.Error("foreign domain cookie should be skipped")
	}
}

func TestFromTokens(t *testing.T) {
	tests := []struct {
		name    string
		session string
		csrf    string
		want    []string
	}{
		{"both", "s", "c|h", []string{SessionCookie, CSRFCookie}},
		{"session only", "s", "", []string{SessionCookie}},
		{"csrf only", "", "c", []string{CSRFCookie}},
		{"none", "", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookies := FromTokens(tt.session, tt.csrf)
			if len(cookies) != len(tt.want) {
				t.Fatalf("len(cookies) = %d, want %d", len(cookies), len(tt.want))
			}
			for i, c := range cookies {
				if c.Name != tt.want[i] {
					t.Errorf("cookies[%d].Name = %q, want %q", i, c.Name, tt.want[i])
				}
				if c.Domain != ".perplexity.ai" || c.Path != "/" {
					t.Errorf("cookies[%d] scope = %s%s", i, c.Domain, c.Path)
				}
			}
		})
	}
}

func TestResolve(t *testing.T) {
	file := writeFile(t, "cookies.json", jsonExport)

	t.Run("file wins", func(t *testing.T) {
		t.Setenv(EnvSessionToken, "env")
		cookies, err := Resolve(file)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if CookieMap(cookies)[SessionCookie] != "sess" {
			t.Error("expected cookies from file")
		}
	})

	t.Run("missing file falls back to env", func(t *testing.T) {
		t.Setenv(EnvSessionToken, "env")
		t.Setenv(EnvCSRFToken, "tok|h")
		cookies, err := Resolve(filepath.Join(t.TempDir(), "missing.json"))
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got := ExtractCSRFToken(cookies); got != "tok" {
			t.Errorf("csrf = %q, want tok", got)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Setenv(EnvSessionToken, "")
		t.Setenv(EnvCSRFToken, "")
		_, err := Resolve("")
		if !errors.Is(err, ErrNoCookies) {
			t.Errorf("Resolve() error = %v, want ErrNoCookies", err)
		}
	})

	t.Run("broken file is an error", func(t *testing.T) {
		t.Setenv(EnvSessionToken, "env")
		if _, err := Resolve(writeFile(t, "bad.json", "[")); err == nil {
			t.Error("expected an error for a broken file")
		}
	})
}

func TestExtractCSRFToken(t *testing.T) {
	tests := []struct {
		name    string
		cookies []*http.Cookie
		want    string
		has     bool
	}{
		{"token with hash", []*http.Cookie{{Name: CSRFCookie, Value: "mytoken|somehash"}}, "mytoken", true},
		{"token without hash", []*http.Cookie{{Name: CSRFCookie, Value: "justtoken"}}, "justtoken", true},
		{"empty token", []*http.Cookie{{Name: CSRFCookie, Value: ""}}, "", false},
		{"no token", []*http.Cookie{{Name: "other", Value: "value"}}, "", false},
		{"nil cookies", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCSRFToken(tt.cookies); got != tt.want {
				t.Errorf("ExtractCSRFToken() = %q, want %q", got, tt.want)
			}
			if got := HasCSRFToken(tt.cookies); got != tt.has {
				t.Errorf("HasCSRFToken() = %v, want %v", got, tt.has)
			}
		})
	}
}

func TestSaveCookiesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "saved.json")
	cookies := []*http.Cookie{
		{Name: SessionCookie, Value: "v", Domain: ".perplexity.ai", Path: "/", Secure: true, HttpOnly: true, SameSite: http.SameSiteStrictMode},
		{Name: "foreign", Value: "x", Domain: ".example.com"},
	}

	if err := SaveCookiesToFile(cookies, path); err != nil {
		t.Fatalf("SaveCookiesToFile() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("cookie file was not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadCookies(path)
	if err != nil {
		t.Fatalf("LoadCookies() error = %v", err)
	}
	if len(loaded) != 1 || loaded[0].SameSite != http.SameSiteStrictMode {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestCookieMap(t *testing.T) {
	m := CookieMap([]*http.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}})
	if len(m) != 2 || m["a"] != "1" || m["b"] != "2" {
		t.Errorf("CookieMap() = %v", m)
	}
}

func TestGetDefaultCookiePath(t *testing.T) {
	path, err := GetDefaultCookiePath()
	if err != nil {
		t.Fatalf("GetDefaultCookiePath() error = %v", err)
	}
	if !filepath.IsAbs(path) || filepath.Base(filepath.Dir(path)) != ".perplexity-cli" {
		t.Errorf("GetDefaultCookiePath() = %q", path)
	}
}
