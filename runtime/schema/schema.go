// Package schema validates an action's parameters against an optional
// JSON Schema registered for its (type, name) pair, using
// github.com/santhosh-tekuri/jsonschema/v6.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/Trafexofive/Cortex-MK1/runtime/action"
)

// Key identifies the (type, name) pair a schema is registered against.
type Key struct {
	Type action.Type
	Name string
}

// Validator compiles and caches JSON Schemas, one per registered Key, and
// validates action parameters against them.
type Validator struct {
	mu       sync.RWMutex
	compiled map[Key]*jsonschema.Schema
}

// New constructs an empty Validator.
func New() *Validator {
	return &Validator{compiled: make(map[Key]*jsonschema.Schema)}
}

// Register compiles schemaJSON and associates it with key. Subsequent
// Validate calls for that key check parameters against it.
func (v *Validator) Register(key Key, schemaJSON []byte) error {
	var doc any
	if err := json.Unmarshal(schemaJSON, &doc); err != nil {
		return fmt.Errorf("schema: unmarshal schema for %s/%s: %w", key.Type, key.Name, err)
	}

	resourceID := fmt.Sprintf("%s/%s.json", key.Type, key.Name)
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceID, doc); err != nil {
		return fmt.Errorf("schema: add resource for %s/%s: %w", key.Type, key.Name, err)
	}
	compiled, err := c.Compile(resourceID)
	if err != nil {
		return fmt.Errorf("schema: compile schema for %s/%s: %w", key.Type, key.Name, err)
	}

	v.mu.Lock()
	v.compiled[key] = compiled
	v.mu.Unlock()
	return nil
}

// Validate checks params against the schema registered for key. Keys with
// no registered schema are not an error: validation is opt-in, matching
// the protocol's lenient-parsing philosophy.
func (v *Validator) Validate(key Key, params map[string]any) error {
	v.mu.RLock()
	s, ok := v.compiled[key]
	v.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := s.Validate(params); err != nil {
		return fmt.Errorf("schema: %s/%s: %w", key.Type, key.Name, err)
	}
	return nil
}
