package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/studymesh/logging"
)

// DefaultTavilyURL is the Tavily search endpoint.
const DefaultTavilyURL = "https://api.tavily.com/search"

// WebSearchOptions configures the web search tool.
type WebSearchOptions struct {
	APIKey     string
	Endpoint   string
	MaxResults int
	HTTPClient *http.Client
	Logger     logging.Logger
}

// WebSearch queries the Tavily search API and returns a plain text digest of
// the top results for the model to read.
type WebSearch struct {
	opts WebSearchOptions
}

// NewWebSearch creates a WebSearch tool.
func NewWebSearch(optFns ...func(o *WebSearchOptions)) *WebSearch {
	opts := WebSearchOptions{
		Endpoint:   DefaultTavilyURL,
		MaxResults: 5,
		HTTPClient: &http.Client{Timeout: 20 * time.Second},
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &WebSearch{opts: opts}
}

// Name implements Tool.
func (w *WebSearch) Name() string { return "web_search" }

// Description implements Tool.
func (w *WebSearch) Description() string {
	return "Search the web for current events and up-to-date information. Input is a search query."
}

// Parameters implements Tool.
func (w *WebSearch) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "The search query"},
		},
		"required": []string{"query"},
	}
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type tavilyResponse struct {
	Answer  string         `json:"answer"`
	Results []tavilyResult `json:"results"`
}

// Call implements Tool.
func (w *WebSearch) Call(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, NewToolError(w.Name(), "query must be a non-empty string", CodeValidation)
	}

	payload, err := json.Marshal(tavilyRequest{APIKey: w.opts.APIKey, Query: query, MaxResults: w.opts.MaxResults})
	if err != nil {
		return nil, NewToolError(w.Name(), err.Error(), CodeExecution)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.opts.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, NewToolError(w.Name(), err.Error(), CodeExecution)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := w.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, NewToolError(w.Name(), err.Error(), CodeUpstream)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, NewToolError(w.Name(), err.Error(), CodeUpstream)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ToolError{
			Tool:    w.Name(),
			Message: fmt.Sprintf("search returned status %d", resp.StatusCode),
			Code:    CodeUpstream,
			Details: strings.TrimSpace(string(body)),
		}
	}

	var out tavilyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, NewToolError(w.Name(), fmt.Sprintf("decode response: %v", err), CodeUpstream)
	}

	w.opts.Logger.Debug("tool.web_search.done",
		"results", len(out.Results),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return formatResults(out), nil
}

func formatResults(r tavilyResponse) string {
	if len(r.Results) == 0 && r.Answer == "" {
		return "No results found."
	}

	var sb strings.Builder
	if r.Answer != "" {
		sb.WriteString(r.Answer)
		sb.WriteString("\n\n")
	}
	for i, res := range r.Results {
		fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n", i+1, res.Title, res.URL, strings.TrimSpace(res.Content))
	}
	return strings.TrimSpace(sb.String())
}
