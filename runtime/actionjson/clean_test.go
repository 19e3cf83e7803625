package actionjson

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestCleanStripsLineComments(t *testing.T) {
	in := "{\n  \"a\": 1, // trailing note\n  \"b\": 2\n}"
	require.Equal(t, "{\n  \"a\": 1, \n  \"b\": 2\n}", Clean(in))
}

func TestCleanStripsBlockComments(t *testing.T) {
	in := `{"a": /* inline */ 1}`
	require.Equal(t, `{"a":  1}`, Clean(in))
}

func TestCleanStripsTrailingCommas(t *testing.T) {
	require.Equal(t, `{"a": 1}`, Clean(`{"a": 1,}`))
	require.Equal(t, `[1, 2]`, Clean(`[1, 2,]`))
}

func TestCleanLeavesSlashesInsideStringsAlone(t *testing.T) {
	in := `{"path": "a//b", "note": "/* not a comment */"}`
	require.Equal(t, in, Clean(in))
}

func TestCleanTrimsSurroundingWhitespace(t *testing.T) {
	require.Equal(t, `{"a": 1}`, Clean("  \n"+`{"a": 1}`+"  \n"))
}

func TestCleanNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Clean never panics on arbitrary input", prop.ForAll(
		func(input string) bool {
			Clean(input)
			return true
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
