// Package ui handles terminal output and formatting.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/diogo/perplexity-web-api-go/pkg/models"
)

// ResponseContainerHorizontalOverhead is the width taken by the response
// container: a rounded border (1+1) plus horizontal padding (2+2).
const ResponseContainerHorizontalOverhead = 6

// internalResultURL marks calculator and similar built-in results.
const internalResultURL = "https://perplexity.ai"

// Renderer handles terminal output formatting.
type Renderer struct {
	out       io.Writer
	mdRender  *glamour.TermRenderer
	width     int
	useColors bool
}

// Styles for different output elements.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	CitationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Underline(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	ContainerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(1, 2)

	SpinnerChars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
)

// NewRenderer creates a new output renderer.
func NewRenderer() (*Renderer, error) {
	return NewRendererWithOptions(os.Stdout, 80, true)
}

// NewRendererWithOptions creates a renderer with custom options. Markdown
// wraps at the width left inside the response container.
func NewRendererWithOptions(out io.Writer, width int, useColors bool) (*Renderer, error) {
	style := "dark"
	if !useColors {
		style = "notty"
	}

	contentWidth := max(width-ResponseContainerHorizontalOverhead, 1)

	mdRender, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(contentWidth),
	)
	if err != nil {
		mdRender, _ = glamour.NewTermRenderer(
			glamour.WithWordWrap(contentWidth),
		)
	}

	return &Renderer{
		out:       out,
		mdRender:  mdRender,
		width:     width,
		useColors: useColors,
	}, nil
}

func (r *Renderer) markdown(content string) string {
	if r.mdRender == nil {
		return content
	}
	rendered, err := r.mdRender.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}

// RenderMarkdown renders markdown content.
func (r *Renderer) RenderMarkdown(content string) error {
	if r.mdRender == nil {
		fmt.Fprintln(r.out, content)
		return nil
	}
	fmt.Fprintln(r.out, r.markdown(content))
	return nil
}

// RenderStyledResponse renders an answer inside the response container.
// Without a markdown renderer the text is printed as is.
func (r *Renderer) RenderStyledResponse(content string) error {
	if r.mdRender == nil {
		fmt.Fprintln(r.out, content)
		return nil
	}

	body := r.markdown(normalizeMarkdownText(content))
	fmt.Fprintln(r.out, ContainerStyle.Width(max(r.width-2, 1)).Render(body))
	return nil
}

// RenderResponse renders the answer followed by its sources.
func (r *Renderer) RenderResponse(resp *models.SearchResponse) error {
	if resp.Answer == "" {
		r.RenderWarning("the answer stream carried no answer text")
	} else if err := r.RenderStyledResponse(resp.Answer); err != nil {
		return err
	}

	r.RenderWebResults(resp.WebResults)
	return nil
}

// RenderWebResults renders numbered sources, skipping built-in results.
func (r *Renderer) RenderWebResults(results []models.WebResult) {
	filtered := make([]models.WebResult, 0, len(results))
	for _, wr := range results {
		if wr.URL != internalResultURL && wr.URL != "" {
			filtered = append(filtered, wr)
		}
	}
	if len(filtered) == 0 {
		return
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, DimStyle.Render("Sources:"))

	for i, wr := range filtered {
		title := wr.Name
		if title == "" {
			title = wr.URL
		}

		num := fmt.Sprintf("[%d]", i+1)
		fmt.Fprintf(r.out, "%s %s\n", DimStyle.Render(num), CitationStyle.Render(title))
		if wr.URL != title {
			fmt.Fprintf(r.out, "    %s\n", DimStyle.Render(wr.URL))
		}
	}
}

// RenderFollowUp prints how to continue the conversation.
func (r *Renderer) RenderFollowUp(followUp models.FollowUpContext, thread string) {
	if followUp.BackendUUID == "" {
		return
	}
	fmt.Fprintln(r.out)
	if thread != "" {
		fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("Thread %q saved; continue with --thread %s", thread, thread)))
		return
	}
	fmt.Fprintln(r.out, DimStyle.Render("Follow-up id: "+followUp.BackendUUID))
}

// RenderJSON writes v as indented JSON.
func (r *Renderer) RenderJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// RenderError renders an error message.
func (r *Renderer) RenderError(err error) {
	r.styled(ErrorStyle, "Error: "+err.Error())
}

// RenderSuccess renders a success message.
func (r *Renderer) RenderSuccess(msg string) {
	r.styled(SuccessStyle, msg)
}

// RenderWarning renders a warning message.
func (r *Renderer) RenderWarning(msg string) {
	r.styled(WarningStyle, "Warning: "+msg)
}

// RenderInfo renders an info message.
func (r *Renderer) RenderInfo(msg string) {
	r.styled(InfoStyle, msg)
}

func (r *Renderer) styled(style lipgloss.Style, msg string) {
	if r.useColors {
		msg = style.Render(msg)
	}
	fmt.Fprintln(r.out, msg)
}

// RenderTitle renders a title.
func (r *Renderer) RenderTitle(title string) {
	if r.useColors {
		fmt.Fprintln(r.out, TitleStyle.Render(title))
		return
	}
	fmt.Fprintln(r.out, strings.ToUpper(title))
	fmt.Fprintln(r.out, strings.Repeat("=", len(title)))
}

// RenderSpinner renders a spinner character.
func (r *Renderer) RenderSpinner(frame int) {
	fmt.Fprintf(r.out, "\r%s ", SpinnerChars[frame%len(SpinnerChars)])
}

// ClearLine clears the current line.
func (r *Renderer) ClearLine() {
	fmt.Fprint(r.out, "\r\033[K")
}

// NewLine prints a newline.
func (r *Renderer) NewLine() {
	fmt.Fprintln(r.out)
}

// StreamPrinter prints a growing answer as events arrive. Each event
// carries the whole answer so far; only the new suffix is written.
type StreamPrinter struct {
	out     io.Writer
	printed string
	events  int
}

// NewStreamPrinter returns a printer writing to the renderer's output.
func (r *Renderer) NewStreamPrinter() *StreamPrinter {
	return &StreamPrinter{out: r.out}
}

// Print writes the part of event's answer not yet shown. An answer that
// does not extend the printed text starts over on a new line.
func (p *StreamPrinter) Print(event *models.SearchEvent) {
	p.events++
	answer := event.Answer
	if answer == "" || answer == p.printed {
		return
	}

	if strings.HasPrefix(answer, p.printed) {
		fmt.Fprint(p.out, answer[len(p.printed):])
	} else {
		fmt.Fprint(p.out, "\n\n"+answer)
	}
	p.printed = answer
}

// Finish ends the printed answer with a newline.
func (p *StreamPrinter) Finish() {
	if p.printed != "" && !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.out)
	}
}

// Printed returns the answer text written so far.
func (p *StreamPrinter) Printed() string {
	return p.printed
}

var orderedItem = regexp.MustCompile(`^\d+[.)]\s`)

// normalizeMarkdownText joins prose lines the backend hard-wrapped while
// keeping headers, list items, tables, quotes and code blocks intact.
func normalizeMarkdownText(text string) string {
	if text == "" {
		return ""
	}

	var out []string
	joinable := false
	inCode := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "```") {
			out = append(out, line)
			inCode = !inCode
			joinable = false
			continue
		}

		switch {
		case inCode:
			out = append(out, line)
			joinable = false
		case trimmed == "":
			out = append(out, "")
			joinable = false
		case strings.HasPrefix(trimmed, "#"), strings.HasPrefix(trimmed, "|"):
			out = append(out, line)
			joinable = false
		case isListItem(trimmed), strings.HasPrefix(trimmed, ">"):
			out = append(out, line)
			joinable = true
		case joinable:
			out[len(out)-1] = strings.TrimRight(out[len(out)-1], " ") + " " + trimmed
		default:
			out = append(out, line)
			joinable = true
		}
	}

	return strings.Join(out, "\n")
}

func isListItem(line string) bool {
	for _, marker := range []string{"• ", "- ", "* ", "+ "} {
		if strings.HasPrefix(line, marker) {
			return true
		}
	}
	return orderedItem.MatchString(line)
}
