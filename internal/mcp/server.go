package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/synexpand/internal/backend"
	"github.com/Aman-CERP/synexpand/internal/config"
	synerrors "github.com/Aman-CERP/synexpand/internal/errors"
	esquery "github.com/Aman-CERP/synexpand/internal/query"
	"github.com/Aman-CERP/synexpand/internal/rewrite"
	"github.com/Aman-CERP/synexpand/internal/synonym"
	"github.com/Aman-CERP/synexpand/internal/telemetry"
	"github.com/Aman-CERP/synexpand/pkg/version"
)

// ServerName is the implementation name announced to clients.
const ServerName = "synexpand"

// Tool names.
const (
	ToolRewriteQuery    = "rewrite_query"
	ToolExplainSynonyms = "explain_synonyms"
	ToolSearch          = "search"
)

// maxSearchLimit caps the number of hits a single search tool call returns.
const maxSearchLimit = 100

// Server is the MCP server for synexpand. It exposes the query rewriter to AI
// clients and, when an index is attached, searches it with expanded queries.
type Server struct {
	mcp      *mcp.Server
	rewriter *rewrite.Rewriter
	provider synonym.Provider
	config   *config.Config
	refresh  time.Duration
	logger   *slog.Logger

	// Optional embedded backend (nil until SetIndex)
	index *backend.Index

	// Optional rewrite telemetry (nil until SetMetrics)
	metrics *telemetry.Metrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

// RewriteInput defines the input schema for the rewrite_query tool.
type RewriteInput struct {
	Body              string `json:"body" jsonschema:"Elasticsearch search body as a JSON object"`
	SynonymsSupported *bool  `json:"synonyms_supported,omitempty" jsonschema:"whether the target index supports synonyms, defaults to the server setting"`
}

// RewriteOutput defines the output schema for the rewrite_query tool.
type RewriteOutput struct {
	Body        string   `json:"body" jsonschema:"the search body to send to the backend"`
	Rewritten   bool     `json:"rewritten" jsonschema:"true if the query was expanded with synonyms"`
	Stage       string   `json:"stage" jsonschema:"final rewrite stage: noop or merged"`
	Reason      string   `json:"reason,omitempty" jsonschema:"why the query was left unchanged"`
	ToExpand    []string `json:"to_expand,omitempty" jsonschema:"phrases that were expanded"`
	NotToExpand []string `json:"not_to_expand,omitempty" jsonschema:"terms kept in the original clause"`
}

// ExplainInput defines the input schema for the explain_synonyms tool.
type ExplainInput struct {
	Query string `json:"query" jsonschema:"the raw free-text query to expand"`
}

// ExplainOutput defines the output schema for the explain_synonyms tool.
type ExplainOutput struct {
	Query       string              `json:"query"`
	Terms       []string            `json:"terms,omitempty"`
	ToExpand    []string            `json:"to_expand,omitempty"`
	NotToExpand []string            `json:"not_to_expand,omitempty"`
	Fragments   []string            `json:"fragments,omitempty"`
	Expanded    string              `json:"expanded,omitempty" jsonschema:"query_string text of the expanded clause"`
	Remainder   string              `json:"remainder,omitempty" jsonschema:"escaped query_string text of the non-expanded clause"`
	Synonyms    map[string][]string `json:"synonyms,omitempty" jsonschema:"dictionary entries of the expanded phrases"`
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the free-text query to search for"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Total     uint64               `json:"total" jsonschema:"number of matching documents"`
	Rewritten bool                 `json:"rewritten" jsonschema:"true if the query was expanded with synonyms"`
	Results   []SearchResultOutput `json:"results" jsonschema:"list of search results"`
}

// SearchResultOutput is a single search hit.
type SearchResultOutput struct {
	ID     string         `json:"id"`
	Score  float64        `json:"score"`
	Fields map[string]any `json:"fields,omitempty"`
}

// NewServer creates a new MCP server around a rewriter. The provider backs
// the synonyms resource and should be the one the rewriter uses.
func NewServer(rw *rewrite.Rewriter, provider synonym.Provider, cfg *config.Config) (*Server, error) {
	if rw == nil {
		return nil, errors.New("rewriter is required")
	}
	if provider == nil {
		return nil, errors.New("synonym provider is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	refresh, err := cfg.RefreshInterval()
	if err != nil {
		return nil, err
	}

	s := &Server{
		rewriter: rw,
		provider: provider,
		config:   cfg,
		refresh:  refresh,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// SetLogger replaces the server logger.
func (s *Server) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = l
}

// SetIndex attaches a search index and registers the search tool. It may be
// called once.
func (s *Server) SetIndex(ix *backend.Index) {
	if ix == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return
	}
	s.index = ix

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolSearch,
		Description: searchDescription,
	}, s.mcpSearchHandler)
	s.logger.Debug("Registered tool", slog.String("name", ToolSearch))
}

// SetMetrics records every rewrite and search into m.
func (s *Server) SetMetrics(m *telemetry.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// record feeds one finished rewrite to the metrics collector, if any.
func (s *Server) record(text string, res *rewrite.Result, took time.Duration) {
	s.mu.RLock()
	m := s.metrics
	s.mu.RUnlock()
	if m == nil || res == nil {
		return
	}

	outcome := telemetry.OutcomeMerged
	if !res.Rewritten() {
		outcome = string(res.Reason)
	}
	if text == "" {
		text = synonym.Join(res.Partition.Terms)
	}
	m.Record(telemetry.RewriteEvent{
		Query:    text,
		Outcome:  outcome,
		Expanded: res.Partition.ToExpand,
		Latency:  took,
	})
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return ServerName, version.Version
}

const (
	rewriteDescription = "Expand the free-text query_string clause of an Elasticsearch search body with synonyms. " +
		"Returns the body to send; when nothing matches the dictionary the body comes back unchanged."
	explainDescription = "Show how a raw query would be expanded: its terms, which phrases have synonyms, " +
		"and the query_string text of the expanded and remaining clauses."
	searchDescription = "Search the attached document index with synonym expansion applied to the query."
)

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	tools := []ToolInfo{
		{Name: ToolRewriteQuery, Description: rewriteDescription},
		{Name: ToolExplainSynonyms, Description: explainDescription},
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.index != nil {
		tools = append(tools, ToolInfo{Name: ToolSearch, Description: searchDescription})
	}
	return tools
}

// CallTool invokes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolRewriteQuery:
		in := RewriteInput{}
		in.Body, _ = args["body"].(string)
		if v, ok := args["synonyms_supported"].(bool); ok {
			in.SynonymsSupported = &v
		}
		return s.rewriteQuery(ctx, in)
	case ToolExplainSynonyms:
		q, _ := args["query"].(string)
		out, err := s.explain(ctx, q)
		if err != nil {
			return "", err
		}
		return FormatPlan(out), nil
	case ToolSearch:
		s.mu.RLock()
		attached := s.index != nil
		s.mu.RUnlock()
		if !attached {
			return nil, NewMethodNotFoundError(name)
		}
		in := SearchInput{}
		in.Query, _ = args["query"].(string)
		if l, ok := args["limit"].(float64); ok {
			in.Limit = int(l)
		}
		out, err := s.search(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatSearchResults(in.Query, out), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	s.logger.Debug("Registering MCP tools")

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolRewriteQuery,
		Description: rewriteDescription,
	}, s.mcpRewriteHandler)
	s.logger.Debug("Registered tool", slog.String("name", ToolRewriteQuery))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        ToolExplainSynonyms,
		Description: explainDescription,
	}, s.mcpExplainHandler)
	s.logger.Debug("Registered tool", slog.String("name", ToolExplainSynonyms))

	s.logger.Info("MCP tools registered", slog.Int("count", 2))
}

// mcpRewriteHandler is the MCP SDK handler for the rewrite_query tool.
func (s *Server) mcpRewriteHandler(ctx context.Context, _ *mcp.CallToolRequest, input RewriteInput) (
	*mcp.CallToolResult,
	RewriteOutput,
	error,
) {
	out, err := s.rewriteQuery(ctx, input)
	if err != nil {
		return nil, RewriteOutput{}, err
	}
	return nil, *out, nil
}

// mcpExplainHandler is the MCP SDK handler for the explain_synonyms tool.
// The text content is markdown; the structured content carries the plan.
func (s *Server) mcpExplainHandler(ctx context.Context, _ *mcp.CallToolRequest, input ExplainInput) (
	*mcp.CallToolResult,
	ExplainOutput,
	error,
) {
	out, err := s.explain(ctx, input.Query)
	if err != nil {
		return nil, ExplainOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatPlan(out)}},
	}, *out, nil
}

// mcpSearchHandler is the MCP SDK handler for the search tool.
func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: FormatSearchResults(input.Query, out)}},
	}, *out, nil
}

func (s *Server) rewriteQuery(ctx context.Context, in RewriteInput) (*RewriteOutput, error) {
	if strings.TrimSpace(in.Body) == "" {
		return nil, NewInvalidParamsError("body parameter is required and must be a JSON object")
	}
	supported := s.config.Rewrite.SynonymsSupported
	if in.SynonymsSupported != nil {
		supported = *in.SynonymsSupported
	}

	start := time.Now()
	requestID := generateRequestID()
	s.log().Info("rewrite started", slog.String("request_id", requestID), slog.Int("body_bytes", len(in.Body)))

	body, res, err := s.rewriter.RewriteBody(ctx, []byte(in.Body), supported, s.refresh)
	if err != nil {
		args := append([]any{
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
		}, synerrors.LogArgs(err)...)
		s.log().Error("rewrite failed", args...)
		return nil, MapError(err)
	}

	took := time.Since(start)
	s.log().Info("rewrite completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", took),
		slog.String("stage", res.Stage.String()))
	s.record("", res, took)

	return &RewriteOutput{
		Body:        string(body),
		Rewritten:   res.Rewritten(),
		Stage:       res.Stage.String(),
		Reason:      string(res.Reason),
		ToExpand:    res.Partition.ToExpand,
		NotToExpand: res.Partition.NotToExpand,
	}, nil
}

func (s *Server) explain(ctx context.Context, text string) (*ExplainOutput, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	plan, err := s.rewriter.Explain(ctx, text, s.refresh)
	if err != nil {
		return nil, MapError(err)
	}
	return &ExplainOutput{
		Query:       plan.Query,
		Terms:       plan.Terms,
		ToExpand:    plan.Partition.ToExpand,
		NotToExpand: plan.Partition.NotToExpand,
		Fragments:   plan.Fragments,
		Expanded:    plan.Expanded,
		Remainder:   plan.Remainder,
		Synonyms:    plan.Synonyms,
	}, nil
}

// search runs text as a default search, the way an upstream search builder
// would, so the rewriter picks up the tagged clause.
func (s *Server) search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	s.mu.RLock()
	ix := s.index
	s.mu.RUnlock()
	if ix == nil {
		return nil, MapError(ErrNoIndex)
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	defaultLimit := s.config.Backend.MaxResults
	if defaultLimit <= 0 {
		defaultLimit = backend.DefaultSize
	}
	limit := clampLimit(in.Limit, defaultLimit, 1, maxSearchLimit)

	start := time.Now()
	requestID := generateRequestID()
	s.log().Info("search started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.Int("limit", limit))

	req := &esquery.Request{
		SynonymsSupported: s.config.Rewrite.SynonymsSupported,
		Query:             esquery.DefaultSearch(esquery.NewText(in.Query)),
	}
	res, err := s.rewriter.Rewrite(ctx, req, s.refresh)
	if err != nil {
		return nil, MapError(err)
	}
	s.record(in.Query, res, time.Since(start))

	hits, err := ix.SearchClause(ctx, res.Request.Query, limit, 0)
	if err != nil {
		args := append([]any{
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
		}, synerrors.LogArgs(err)...)
		s.log().Error("search failed", args...)
		return nil, MapError(err)
	}

	s.log().Info("search completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("rewritten", res.Rewritten()),
		slog.Int("result_count", len(hits.Hits)))

	out := &SearchOutput{
		Total:     hits.Total,
		Rewritten: res.Rewritten(),
		Results:   make([]SearchResultOutput, 0, len(hits.Hits)),
	}
	for _, h := range hits.Hits {
		out.Results = append(out.Results, ToSearchResultOutput(h))
	}
	return out, nil
}

// Serve starts the server with the specified transport.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.log().Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log().Error("MCP server stopped with error",
				slog.String("error", err.Error()))
		} else {
			s.log().Info("MCP server stopped gracefully")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

func (s *Server) log() *slog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logger
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	return uuid.NewString()[:8]
}
