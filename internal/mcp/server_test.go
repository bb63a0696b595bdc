package mcp

import (
	"errors"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
)

func TestDescribeRequest(t *testing.T) {
	cases := []struct {
		method string
		req    sdkmcp.Request
		name   string
		attr   attribute.Key
	}{
		{"tools/call", &sdkmcp.CallToolRequest{Params: &sdkmcp.CallToolParamsRaw{Name: " signals_list "}}, "mcp.tool.signals_list", "mcp.tool"},
		{"tools/call", &sdkmcp.CallToolRequest{Params: &sdkmcp.CallToolParamsRaw{}}, "mcp.tool.call", ""},
		{"resources/read", &sdkmcp.ReadResourceRequest{Params: &sdkmcp.ReadResourceParams{URI: "triangle://legs"}}, "mcp.resource.read", "mcp.resource.uri"},
		{"tools/list", nil, "mcp.tools.list", ""},
	}
	for _, tc := range cases {
		name, attrs := describeRequest(tc.method, tc.req)
		if name != tc.name {
			t.Fatalf("%s: expected span %q, got %q", tc.method, tc.name, name)
		}
		if attrs[0].Key != "mcp.method" || attrs[0].Value.AsString() != tc.method {
			t.Fatalf("%s: method attribute missing: %v", tc.method, attrs)
		}
		if tc.attr != "" && (len(attrs) != 2 || attrs[1].Key != tc.attr) {
			t.Fatalf("%s: expected %s attribute, got %v", tc.method, tc.attr, attrs)
		}
	}
}

func TestRequestOutcome(t *testing.T) {
	if got := requestOutcome(&sdkmcp.CallToolResult{}, nil); got != "ok" {
		t.Fatalf("expected ok, got %s", got)
	}
	if got := requestOutcome(&sdkmcp.CallToolResult{IsError: true}, nil); got != "tool_error" {
		t.Fatalf("expected tool_error, got %s", got)
	}
	if got := requestOutcome(nil, errors.New("boom")); got != "error" {
		t.Fatalf("expected error, got %s", got)
	}
}
