package streamscan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripFencesRemovesBareFenceLines(t *testing.T) {
	in := "before\n```\ncode\n```\nafter\n"
	require.Equal(t, "before\ncode\nafter\n", string(StripFences([]byte(in))))
}

func TestStripFencesRemovesLanguageTaggedFences(t *testing.T) {
	in := "```json\n{\"a\":1}\n```\n"
	require.Equal(t, "{\"a\":1}\n", string(StripFences([]byte(in))))
}

func TestStripFencesLeavesInlineBackticksAlone(t *testing.T) {
	in := "use `code` inline\n"
	require.Equal(t, in, string(StripFences([]byte(in))))
}

func TestStripFencesHandlesEmptyInput(t *testing.T) {
	require.Equal(t, []byte{}, StripFences([]byte{}))
}

func TestStripFencesHandlesNoTrailingNewline(t *testing.T) {
	in := "before\n```"
	require.Equal(t, "before\n", string(StripFences([]byte(in))))
}

func TestStripFencesTrimsLeadingWhitespaceBeforeFence(t *testing.T) {
	in := "  ```\ncode\n  ```\n"
	require.Equal(t, "code\n", string(StripFences([]byte(in))))
}
