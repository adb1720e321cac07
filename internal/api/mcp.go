package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/seald/internal/feedback"
	"github.com/kalambet/seald/internal/model"
	"github.com/kalambet/seald/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Models      Generator
	Coordinator FeedbackSink
	MaxTokens   int
}

// NewMCPServer creates an MCP server exposing generation, feedback and
// status over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"seald",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("seald — self-adapting local language model: generate text, submit corrections, watch it retrain."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate",
			mcp.WithDescription("Generate a text completion from the current model."),
			mcp.WithString("prompt", mcp.Description("Prompt to complete"), mcp.Required()),
			mcp.WithNumber("max_tokens", mcp.Description("Maximum new tokens (default from server config)")),
		),
		mcpGenerate(deps),
	)

	s.AddTool(
		mcp.NewTool("submit_feedback",
			mcp.WithDescription("Submit a corrected completion; enough corrections trigger an adaptation cycle."),
			mcp.WithString("prompt", mcp.Description("The original prompt"), mcp.Required()),
			mcp.WithString("original_completion", mcp.Description("What the model produced")),
			mcp.WithString("corrected_completion", mcp.Description("What it should have produced"), mcp.Required()),
		),
		mcpSubmitFeedback(deps),
	)

	s.AddTool(
		mcp.NewTool("adaptation_status",
			mcp.WithDescription("Report model state, feedback counters and the adaptation log."),
		),
		mcpAdaptationStatus(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"seal://status",
			"Service Status",
			mcp.WithResourceDescription("Aggregate service status as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStatus(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"seal://log",
			"Adaptation Log",
			mcp.WithResourceDescription("Full adaptation audit trail as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLog(deps),
	)

	return s
}

func mcpGenerate(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}
		maxTokens := req.GetInt("max_tokens", deps.MaxTokens)
		if maxTokens <= 0 {
			maxTokens = deps.MaxTokens
		}

		completion, err := deps.Models.Generate(ctx, prompt, maxTokens)
		if err != nil {
			if errors.Is(err, model.ErrNotReady) {
				return mcpError("model is not ready"), nil
			}
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}
		return mcpText(completion), nil
	}
}

func mcpSubmitFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcpError("prompt is required"), nil
		}
		corrected, err := req.RequireString("corrected_completion")
		if err != nil {
			return mcpError("corrected_completion is required"), nil
		}
		original := req.GetString("original_completion", "")

		msg, err := deps.Coordinator.SubmitFeedback(ctx, feedback.Record{
			ID:                  uuid.New().String(),
			CreatedAt:           time.Now().UTC(),
			Prompt:              prompt,
			OriginalCompletion:  original,
			CorrectedCompletion: corrected,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("submitting feedback: %v", err)), nil
		}
		return mcpText(msg), nil
	}
}

func mcpAdaptationStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := deps.Coordinator.Status()
		if err != nil {
			return mcpError(fmt.Sprintf("reading status: %v", err)), nil
		}
		b, err := json.Marshal(st)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceStatus(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		st, err := deps.Coordinator.Status()
		if err != nil {
			return nil, fmt.Errorf("reading status: %w", err)
		}
		b, err := json.Marshal(st)
		if err != nil {
			return nil, fmt.Errorf("marshaling status: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceLog(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		st, err := deps.Coordinator.Status()
		if err != nil {
			return nil, fmt.Errorf("reading status: %w", err)
		}
		events := st.AdaptationLog
		if events == nil {
			events = []storage.AdaptationEvent{}
		}
		b, err := json.Marshal(events)
		if err != nil {
			return nil, fmt.Errorf("marshaling adaptation log: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
