// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"

	"github.com/stacklok/hivechat/pkg/hive"
)

// OllamaTools converts the aggregated tool catalog into the representation
// advertised to the model. Tools keep their qualified names so the reply's
// tool calls route straight back through the catalog.
func OllamaTools(tools []hive.Tool) ([]api.Tool, error) {
	out := make([]api.Tool, 0, len(tools))
	for _, tool := range tools {
		params, err := toolParameters(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s has an unusable schema: %w", tool.QualifiedName, err)
		}
		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.QualifiedName,
				Description: tool.Description,
				Parameters:  params,
			},
		})
	}
	return out, nil
}

// toolParameters maps a JSON Schema document onto the API's typed parameter
// struct through a JSON round-trip. Schemas come from arbitrary servers, so
// fields the struct does not model are dropped rather than rejected.
func toolParameters(schema map[string]any) (api.ToolFunctionParameters, error) {
	var params api.ToolFunctionParameters
	if len(schema) == 0 {
		params.Type = "object"
		return params, nil
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return params, err
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, err
	}
	if params.Type == "" {
		params.Type = "object"
	}
	return params, nil
}

// ResultText flattens a tool result into the text fed back to the model.
// Non-text content blocks are summarized by type rather than dropped
// silently.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var parts []string
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image content, %s]", c.MIMEType))
		case mcp.EmbeddedResource:
			parts = append(parts, "[embedded resource]")
		default:
			parts = append(parts, "[non-text content]")
		}
	}

	text := strings.Join(parts, "\n")
	if result.IsError && text == "" {
		text = "tool reported an error with no message"
	}
	return text
}
