package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/engram/pkg/memory"
)

var (
	queryToolName    = "memory_query"
	queryDescription = "Search a user's stored memory nodes by semantic similarity. Returns the most relevant memories for the query text, or the user's profile when no memories are stored yet."

	profileToolName    = "memory_profile"
	profileDescription = "Fetch a user's free-text memory profile."
)

// QueryInput represents the input arguments for the memory_query tool.
type QueryInput struct {
	UID   string `json:"uid" jsonschema:"the user whose memories to search"`
	Query string `json:"query" jsonschema:"the search query text"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"maximum number of results to return"`
}

// QueryOutput represents the output of the memory_query tool.
type QueryOutput struct {
	Query   string         `json:"query"`
	Matches []memory.Match `json:"matches"`
	Count   int            `json:"count"`
}

// handleQuery processes a memory retrieval request.
func (s *Server) handleQuery(ctx context.Context, _ *mcp.CallToolRequest, input QueryInput) (*mcp.CallToolResult, QueryOutput, error) {
	logger := s.config.Logger

	logger.Debug("MCP memory query",
		zap.String("uid", input.UID),
		zap.String("query", input.Query),
		zap.Int("topK", input.TopK),
	)

	matches, err := s.config.Service.Query(ctx, input.UID, input.Query, input.TopK)
	if err != nil {
		logger.Error("failed to query memory", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to query memory: %v", err)},
			},
		}, QueryOutput{}, nil
	}

	return nil, QueryOutput{
		Query:   input.Query,
		Matches: matches,
		Count:   len(matches),
	}, nil
}

// ProfileInput represents the input arguments for the memory_profile tool.
type ProfileInput struct {
	UID string `json:"uid" jsonschema:"the user whose profile to fetch"`
}

// ProfileOutput represents the output of the memory_profile tool.
type ProfileOutput struct {
	MemoryVersion string `json:"memoryVersion"`
	Text          string `json:"text"`
}

// handleProfile fetches the profile for a user.
func (s *Server) handleProfile(ctx context.Context, _ *mcp.CallToolRequest, input ProfileInput) (*mcp.CallToolResult, ProfileOutput, error) {
	profile, err := s.config.Service.Profile(ctx, input.UID)
	if err != nil {
		s.config.Logger.Error("failed to fetch profile", zap.Error(err))
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Failed to fetch profile: %v", err)},
			},
		}, ProfileOutput{}, nil
	}

	return nil, ProfileOutput{
		MemoryVersion: profile.MemoryVersion,
		Text:          profile.Text,
	}, nil
}
