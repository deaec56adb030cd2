package domref

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domref/internal/connectivity"
	"github.com/hazyhaar/domref/internal/idgen"
	"github.com/hazyhaar/domref/internal/kit"
)

// ToolPrefix prefixes every MCP tool name.
const ToolPrefix = "domref_"

type toolSpec struct {
	op          string
	description string
	properties  map[string]any
	required    []string
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

var (
	selectorProp = prop("string", "Ref from a snapshot or find (@e3), or a CSS/XPath selector")
	indexProp    = prop("integer", "Zero-based index among the matches (default 0)")
)

var tools = []toolSpec{
	{
		op:          "snapshot",
		description: "Project the page into an accessibility tree. Starts a new ref epoch: refs from earlier calls stop resolving.",
		properties: map[string]any{
			"interactive": prop("boolean", "Keep only interactive nodes and their structural ancestors"),
			"compact":     prop("boolean", "Drop nodes with no role, name or interactivity"),
			"depth":       prop("integer", "Maximum depth below the root"),
			"scope":       prop("string", "CSS or XPath selector of the subtree to project"),
		},
	},
	{
		op:          "findByRole",
		description: "Find an element by ARIA role and optional accessible name. Returns one ref and the match count.",
		properties: map[string]any{
			"role":  prop("string", "Role, e.g. button, textbox, link"),
			"name":  prop("string", "Substring of the accessible name, case-insensitive"),
			"index": indexProp,
		},
		required: []string{"role"},
	},
	{
		op:          "findByText",
		description: "Find the most specific element containing the given visible text.",
		properties: map[string]any{
			"text":  prop("string", "Text to look for"),
			"exact": prop("boolean", "Require the whole text to match exactly"),
			"index": indexProp,
		},
		required: []string{"text"},
	},
	{
		op:          "findByLabel",
		description: "Find a form control by its label, aria-label or placeholder.",
		properties: map[string]any{
			"label": prop("string", "Substring of the label, case-insensitive"),
			"index": indexProp,
		},
		required: []string{"label"},
	},
	{
		op:          "findByPlaceholder",
		description: "Find an input by placeholder text.",
		properties: map[string]any{
			"placeholder": prop("string", "Substring of the placeholder, case-insensitive"),
			"index":       indexProp,
		},
		required: []string{"placeholder"},
	},
	{op: "click", description: "Click an element.", properties: map[string]any{"selector": selectorProp}, required: []string{"selector"}},
	{
		op:          "fill",
		description: "Replace the value of a text input, textarea or contenteditable.",
		properties:  map[string]any{"selector": selectorProp, "value": prop("string", "Text to enter")},
		required:    []string{"selector", "value"},
	},
	{op: "check", description: "Check a checkbox, radio or switch.", properties: map[string]any{"selector": selectorProp}, required: []string{"selector"}},
	{op: "uncheck", description: "Uncheck a checkbox or switch.", properties: map[string]any{"selector": selectorProp}, required: []string{"selector"}},
	{
		op:          "select",
		description: "Choose an option of a select element by value or visible text.",
		properties:  map[string]any{"selector": selectorProp, "value": prop("string", "Option value or text")},
		required:    []string{"selector", "value"},
	},
	{
		op:          "navigate",
		description: "Load a URL, relative to the current page. Refs from the previous page stop resolving.",
		properties:  map[string]any{"url": prop("string", "Absolute or relative URL")},
		required:    []string{"url"},
	},
	{op: "getText", description: "Get an element's text content.", properties: map[string]any{"selector": selectorProp}, required: []string{"selector"}},
	{op: "getValue", description: "Get the current value of an input, textarea or select.", properties: map[string]any{"selector": selectorProp}, required: []string{"selector"}},
	{op: "getHTML", description: "Get an element's sanitised outer HTML.", properties: map[string]any{"selector": selectorProp}, required: []string{"selector"}},
	{op: "getMarkdown", description: "Get an element's content as Markdown.", properties: map[string]any{"selector": selectorProp}, required: []string{"selector"}},
	{op: "isVisible", description: "Report whether an element is visible.", properties: map[string]any{"selector": selectorProp}, required: []string{"selector"}},
	{op: "count", description: "Count the elements a CSS or XPath selector matches.", properties: map[string]any{"selector": prop("string", "CSS or XPath selector")}, required: []string{"selector"}},
	{
		op:          "waitFor",
		description: "Wait until an element is visible and return a ref to it.",
		properties:  map[string]any{"selector": selectorProp, "timeout_ms": prop("integer", "Timeout in milliseconds")},
		required:    []string{"selector"},
	},
}

// RegisterMCP registers one tool per operation on srv. Calls are
// dispatched through router, like Handler.
func (s *Session) RegisterMCP(srv *mcp.Server, router *connectivity.Router) {
	s.attach(router)
	newID := idgen.Prefixed("req_", idgen.Default)
	for _, t := range tools {
		registerTool(srv, router, t, newID)
	}
}

func registerTool(srv *mcp.Server, router *connectivity.Router, t toolSpec, newID idgen.Generator) {
	tool := &mcp.Tool{
		Name:        ToolPrefix + t.op,
		Description: t.description,
		InputSchema: inputSchema(t.properties, t.required),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		return dispatch(ctx, router, t.op, *r.(*json.RawMessage)), nil
	}

	decode := func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		p := json.RawMessage(r.Params.Arguments)
		return &kit.MCPDecodeResult{
			Request: &p,
			EnrichCtx: func(ctx context.Context) context.Context {
				return kit.WithRequestID(ctx, newID())
			},
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
