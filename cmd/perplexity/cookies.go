package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	http "github.com/bogdanfinn/fhttp"
	"github.com/diogo/perplexity-web-api-go/internal/auth"
	"github.com/spf13/cobra"
)

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Manage authentication cookies",
	Long: `Manage authentication cookies for Perplexity API access.

Credentials come from the cookie file when it exists, otherwise from the
PERPLEXITY_SESSION_TOKEN and PERPLEXITY_CSRF_TOKEN environment variables.
Queries without credentials run anonymously; file attachments need them.`,
}

var importCookiesCmd = &cobra.Command{
	Use:   "import-cookies <file>",
	Short: "Import cookies from file",
	Long: `Import cookies from a JSON or Netscape format file.

Supported formats:
  - JSON: Browser extension export (cookies.json)
  - Netscape: curl/wget format (cookies.txt)

Example:
  perplexity import-cookies ~/Downloads/cookies.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := importCookies(args[0], cfg.CookieFile)
		if err != nil {
			return err
		}
		render.RenderSuccess(fmt.Sprintf("Imported %d cookies to %s", n, cfg.CookieFile))
		return nil
	},
}

// importCookies copies the Perplexity cookies found in src to dst and
// returns how many were written.
func importCookies(src, dst string) (int, error) {
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("file not found: %s", src)
	}

	cookies, err := auth.LoadCookies(src)
	switch {
	case err != nil:
		return 0, fmt.Errorf("failed to parse cookies: %w", err)
	case len(cookies) == 0:
		return 0, errors.New("no Perplexity cookies found in file")
	}

	if err := auth.SaveCookiesToFile(cookies, dst); err != nil {
		return 0, fmt.Errorf("failed to save cookies: %w", err)
	}
	if !auth.HasCSRFToken(cookies) {
		render.RenderWarning("CSRF token not found, session may not work")
	}
	return len(cookies), nil
}

var cookiesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cookiePath()
		cookies, err := auth.Resolve(path)
		switch {
		case errors.Is(err, auth.ErrNoCookies):
			render.RenderWarning("Not authenticated")
			render.RenderInfo("Run 'perplexity import-cookies <file>' or set " + auth.EnvSessionToken)
			return nil
		case err != nil:
			return fmt.Errorf("failed to load cookies: %w", err)
		case len(cookies) == 0:
			render.RenderWarning("No Perplexity cookies found in " + path)
			return nil
		case !auth.HasCSRFToken(cookies):
			render.RenderWarning("Cookies found but CSRF token missing")
			render.RenderInfo("Session may be expired. Re-export cookies from browser.")
			return nil
		}

		render.RenderSuccess("Authenticated")
		printCookieReport(cmd.OutOrStdout(), cookieSource(path), cookies)
		if !auth.HasSession(cookies) {
			render.RenderWarning("No session cookie, requests run as a guest")
		}
		return nil
	},
}

// cookieSource names where Resolve found the credentials.
func cookieSource(path string) string {
	if _, err := os.Stat(path); err == nil {
		return "Cookie file: " + path
	}
	return "Environment: " + auth.EnvSessionToken + ", " + auth.EnvCSRFToken
}

func printCookieReport(out io.Writer, source string, cookies []*http.Cookie) {
	fmt.Fprintln(out, source)
	fmt.Fprintf(out, "Cookies loaded: %d\n\nCookies:\n", len(cookies))
	for _, c := range cookies {
		fmt.Fprintf(out, "  - %s\n", c.Name)
	}
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear saved cookies",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := os.Remove(cfg.CookieFile)
		if errors.Is(err, os.ErrNotExist) {
			render.RenderInfo("No cookies to clear")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to remove cookies: %w", err)
		}

		render.RenderSuccess("Cookies cleared")
		return nil
	},
}

var cookiesPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cookie file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), cookiePath())
		return nil
	},
}

func init() {
	cookiesCmd.AddCommand(cookiesStatusCmd, cookiesClearCmd, cookiesPathCmd)
}
