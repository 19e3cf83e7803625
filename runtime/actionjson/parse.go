// Package actionjson cleans the JSON body of an <action> tag (stripping
// comments and trailing commas) and maps the result, together with the
// tag's XML attributes, onto an action.Action, applying field defaults for
// anything the model omitted.
package actionjson

import (
	"encoding/json"
	"fmt"

	"github.com/Trafexofive/Cortex-MK1/runtime/action"
)

const excerptLimit = 200

// ParseError reports that an action body failed to clean into valid JSON.
// Callers should emit an Error event carrying Excerpt and continue the
// stream: a parse error is never fatal.
type ParseError struct {
	Excerpt string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("action parse: %v (excerpt: %q)", e.Cause, e.Excerpt)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Result is the outcome of parsing a single <action> tag.
type Result struct {
	Action action.Action
	// IDSynthesized is true when no id attribute was present and one was
	// generated; callers should emit a warning.
	IDSynthesized bool
}

// IDGenerator produces a fresh random identifier, used only when the model
// omits the id attribute.
type IDGenerator func() string

// Parse cleans body and decodes it into an action.Action, combining the
// JSON fields with the tag's XML attrs (id, type, mode). embeddedInThought
// records whether the <action> tag was nested inside an open <thought>.
func Parse(body string, attrs map[string]string, embeddedInThought bool, gen IDGenerator) (Result, error) {
	cleaned := Clean(body)

	var raw map[string]any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Result{}, &ParseError{Excerpt: excerpt(cleaned), Cause: err}
	}

	name, _ := raw["name"].(string)
	if name == "" {
		return Result{}, &ParseError{Excerpt: excerpt(cleaned), Cause: fmt.Errorf("missing required field %q", "name")}
	}

	id := attrs["id"]
	synthesized := false
	if id == "" {
		id = gen()
		synthesized = true
	}

	typ := action.Type(attrs["type"])
	if typ == "" {
		typ = action.Tool
	}
	if !typ.Valid() {
		return Result{}, &ParseError{Excerpt: excerpt(cleaned), Cause: fmt.Errorf("unrecognized action type %q", typ)}
	}
	mode := action.Mode(attrs["mode"])
	if mode == "" {
		mode = action.Async
	}

	outputKey, _ := raw["output_key"].(string)
	if outputKey == "" {
		outputKey = id
	}

	params, _ := raw["parameters"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	dependsOn := stringSlice(raw["depends_on"])

	timeoutSecs := intField(raw, "timeout_secs", 30)
	retryCount := intField(raw, "retry_count", 0)
	skipOnError, _ := raw["skip_on_error"].(bool)

	return Result{
		Action: action.Action{
			ID:                id,
			Type:              typ,
			Mode:              mode,
			Name:              name,
			Parameters:        params,
			OutputKey:         outputKey,
			DependsOn:         dependsOn,
			TimeoutSecs:       timeoutSecs,
			RetryCount:        retryCount,
			SkipOnError:       skipOnError,
			EmbeddedInThought: embeddedInThought,
		},
		IDSynthesized: synthesized,
	}, nil
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intField(raw map[string]any, key string, def int) int {
	v, ok := raw[key]
	if !ok {
		return def
	}
	f, ok := v.(float64)
	if !ok {
		return def
	}
	return int(f)
}

func excerpt(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	return s[:excerptLimit]
}
