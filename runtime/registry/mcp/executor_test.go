package mcp

import (
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"
)

func TestFlattenTextJoinsTextContentBlocks(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "first"},
			&mcp.TextContent{Text: "second"},
		},
	}
	require.Equal(t, "first\nsecond", flattenText(result))
}

func TestFlattenTextSkipsNonTextContent(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "only this"},
			&mcp.ImageContent{Data: []byte("x"), MIMEType: "image/png"},
		},
	}
	require.Equal(t, "only this", flattenText(result))
}

func TestFlattenTextReturnsEmptyForNoContent(t *testing.T) {
	result := &mcp.CallToolResult{}
	require.Equal(t, "", flattenText(result))
}
