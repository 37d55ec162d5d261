package toolfacade

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolSessionContext carries the opaque session id a transport extracted
// before calling into the facade (spec.md §6 "Session identification").
// An empty SessionID means the transport found none; NO_SESSION is
// raised by the facade itself, not by ChannelStore, matching the
// original's get_session_id() + explicit check in every handler.
type ToolSessionContext struct {
	SessionID string
}

// ToolDescriptor names and documents one spec.md §6 operation for
// transports that enumerate tools (e.g. MCP's list_tools).
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// ToolHandler executes one operation; args is the already-decoded
// request body and the return value is the already-encoded result body.
type ToolHandler func(ctx context.Context, session ToolSessionContext, args map[string]any) (map[string]any, *Error)

// BuildToolErrorResult renders a failed call in MCP CallToolResult shape.
func BuildToolErrorResult(message string) map[string]any {
	return map[string]any{
		"isError": true,
		"content": []map[string]any{{"type": "text", "text": message}},
	}
}

// BuildToolSuccessResult renders a successful call in MCP CallToolResult
// shape, carrying the structured data alongside a human-readable summary.
func BuildToolSuccessResult(data map[string]any) map[string]any {
	return map[string]any{
		"isError": false,
		"content": []map[string]any{{"type": "text", "text": "ok"}},
		"data":    data,
	}
}

// FirstStringArg returns the string value of the first key present in
// args among keys, or "" if none match or match a non-string value.
func FirstStringArg(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// BoolArg returns args[key] as a bool, or def if absent or not a bool.
func BoolArg(args map[string]any, key string, def bool) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}
