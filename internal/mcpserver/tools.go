package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type toolSpec struct {
	name        string
	mode        models.Mode
	description string
}

var tools = []toolSpec{
	{
		name:        "perplexity_search",
		mode:        models.ModeAuto,
		description: "Quick web search with Perplexity. Returns an answer with cited web results. Use for facts, current events and short lookups.",
	},
	{
		name:        "perplexity_research",
		mode:        models.ModeDeepResearch,
		description: "Deep research with Perplexity. Reads many sources and writes a long, cited report. Slow; use for open-ended topics that need thorough coverage.",
	},
	{
		name:        "perplexity_reason",
		mode:        models.ModeReasoning,
		description: "Step-by-step reasoning with Perplexity backed by web search. Use for analysis, comparisons and multi-step problems.",
	},
}

// QueryInput is the argument object shared by every tool.
type QueryInput struct {
	Query    string         `json:"query" jsonschema:"the question to ask"`
	Sources  []string       `json:"sources,omitempty" jsonschema:"information sources to search: web, scholar or social (default: web)"`
	Language string         `json:"language,omitempty" jsonschema:"response language tag such as en-US (default: en-US)"`
	FollowUp *FollowUpInput `json:"follow_up,omitempty" jsonschema:"follow_up value of a previous result, to continue that conversation"`
}

// FollowUpInput continues a previous answer.
type FollowUpInput struct {
	BackendUUID string   `json:"backend_uuid,omitempty" jsonschema:"backend id of the previous answer"`
	Attachments []string `json:"attachments,omitempty" jsonschema:"attachment URLs carried over from the previous answer"`
}

// QueryOutput is the structured tool result.
type QueryOutput struct {
	Answer     string             `json:"answer"`
	WebResults []models.WebResult `json:"web_results"`
	FollowUp   FollowUpInput      `json:"follow_up"`
}

func (in QueryInput) request(mode models.Mode) (models.SearchRequest, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return models.SearchRequest{}, fmt.Errorf("query is required")
	}

	req := models.NewSearchRequest(query).
		WithMode(mode).
		WithIncognito(true)

	if len(in.Sources) > 0 {
		sources := make([]models.Source, 0, len(in.Sources))
		for _, raw := range in.Sources {
			source := models.Source(strings.TrimSpace(raw))
			if !models.IsValidSource(source) {
				return models.SearchRequest{}, fmt.Errorf("invalid source %q (expected web, scholar or social)", raw)
			}
			sources = append(sources, source)
		}
		req = req.WithSources(sources...)
	}
	if in.Language != "" {
		req = req.WithLanguage(in.Language)
	}
	if in.FollowUp != nil && (in.FollowUp.BackendUUID != "" || len(in.FollowUp.Attachments) > 0) {
		req = req.WithFollowUp(models.FollowUpContext{
			BackendUUID: in.FollowUp.BackendUUID,
			Attachments: in.FollowUp.Attachments,
		})
	}
	return req, nil
}

// emptyOutput is a result that satisfies the output schema: lists are
// empty, never null.
func emptyOutput() QueryOutput {
	return QueryOutput{
		WebResults: []models.WebResult{},
		FollowUp:   FollowUpInput{Attachments: []string{}},
	}
}

func outputFrom(resp *models.SearchResponse) QueryOutput {
	out := emptyOutput()
	out.Answer = resp.Answer
	out.FollowUp.BackendUUID = resp.FollowUp.BackendUUID
	if resp.WebResults != nil {
		out.WebResults = resp.WebResults
	}
	if resp.FollowUp.Attachments != nil {
		out.FollowUp.Attachments = resp.FollowUp.Attachments
	}
	return out
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// queryHandler runs one tool call as an incognito query in the tool's mode.
func (s *Server) queryHandler(tool toolSpec) mcp.ToolHandlerFor[QueryInput, QueryOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
		logger := s.config.Logger.With(
			zap.String("tool", tool.name),
			zap.String("call_id", uuid.NewString()),
		)

		req, err := input.request(tool.mode)
		if err != nil {
			logger.Debug("rejected tool call", zap.Error(err))
			return toolError("Invalid arguments: %v", err), emptyOutput(), nil
		}

		logger.Debug("MCP query request",
			zap.String("mode", string(tool.mode)),
			zap.Int("sources", len(req.Sources)),
			zap.Bool("follow_up", req.FollowUp != nil),
		)

		resp, err := s.config.Searcher.Search(ctx, req)
		if err != nil {
			logger.Error("query failed", zap.Error(err))
			return toolError("Perplexity query failed: %v", err), emptyOutput(), nil
		}

		output := outputFrom(resp)
		jsonBytes, err := json.Marshal(output)
		if err != nil {
			logger.Error("failed to marshal query output", zap.Error(err))
			return toolError("Failed to serialize results: %v", err), emptyOutput(), nil
		}

		logger.Debug("MCP query answered",
			zap.Int("answer_len", len(output.Answer)),
			zap.Int("web_results", len(output.WebResults)),
		)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(jsonBytes)},
			},
		}, output, nil
	}
}
