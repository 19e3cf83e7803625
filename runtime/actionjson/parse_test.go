package actionjson

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Trafexofive/Cortex-MK1/runtime/action"
)

func fixedGen(id string) IDGenerator {
	return func() string { return id }
}

func TestParseAppliesDefaults(t *testing.T) {
	body := `{"name": "fetch_url", "parameters": {"url": "https://example.com"}}`
	result, err := Parse(body, map[string]string{}, false, fixedGen("gen-1"))
	require.NoError(t, err)
	require.True(t, result.IDSynthesized)
	require.Equal(t, "gen-1", result.Action.ID)
	require.Equal(t, action.Tool, result.Action.Type)
	require.Equal(t, action.Async, result.Action.Mode)
	require.Equal(t, "fetch_url", result.Action.Name)
	require.Equal(t, "gen-1", result.Action.OutputKey)
	require.Equal(t, 30, result.Action.TimeoutSecs)
	require.Equal(t, 0, result.Action.RetryCount)
	require.False(t, result.Action.SkipOnError)
}

func TestParseHonorsExplicitAttrsAndFields(t *testing.T) {
	body := `{
		"name": "run_agent",
		"output_key": "agent_out",
		"depends_on": ["a1", "a2"],
		"timeout_secs": 60,
		"retry_count": 2,
		"skip_on_error": true
	}`
	attrs := map[string]string{"id": "a3", "type": "agent", "mode": "sync"}

	result, err := Parse(body, attrs, true, fixedGen("unused"))
	require.NoError(t, err)
	require.False(t, result.IDSynthesized)
	require.Equal(t, "a3", result.Action.ID)
	require.Equal(t, action.Agent, result.Action.Type)
	require.Equal(t, action.Sync, result.Action.Mode)
	require.Equal(t, "agent_out", result.Action.OutputKey)
	require.Equal(t, []string{"a1", "a2"}, result.Action.DependsOn)
	require.Equal(t, 60, result.Action.TimeoutSecs)
	require.Equal(t, 2, result.Action.RetryCount)
	require.True(t, result.Action.SkipOnError)
	require.True(t, result.Action.EmbeddedInThought)
}

func TestParseMissingNameFails(t *testing.T) {
	_, err := Parse(`{"parameters": {}}`, map[string]string{}, false, fixedGen("x"))
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseInvalidJSONFails(t *testing.T) {
	_, err := Parse(`{not json`, map[string]string{}, false, fixedGen("x"))
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Contains(t, parseErr.Error(), "action parse:")
}

func TestParseToleratesTrailingCommaAndComments(t *testing.T) {
	body := "{\n  \"name\": \"echo\", // note\n  \"parameters\": {\"msg\": \"hi\",},\n}"
	result, err := Parse(body, map[string]string{"id": "a1"}, false, fixedGen("unused"))
	require.NoError(t, err)
	require.Equal(t, "echo", result.Action.Name)
	require.Equal(t, "hi", result.Action.Parameters["msg"])
}

func TestParseDefaultsEmptyParametersToEmptyMap(t *testing.T) {
	result, err := Parse(`{"name": "noop"}`, map[string]string{"id": "a1"}, false, fixedGen("unused"))
	require.NoError(t, err)
	require.NotNil(t, result.Action.Parameters)
	require.Empty(t, result.Action.Parameters)
}

func TestExcerptTruncatesLongInput(t *testing.T) {
	long := make([]byte, excerptLimit+50)
	for i := range long {
		long[i] = 'a'
	}
	got := excerpt(string(long))
	require.Len(t, got, excerptLimit)
}
