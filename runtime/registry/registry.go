// Package registry implements the dispatch registry: a configured
// collaborator, owned by the AgentLoop's caller, mapping an Action's
// (Type, Name) to the scheduler.Executor that runs it. It is an explicit
// value passed into the loop rather than a global tool-registry
// singleton.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Trafexofive/Cortex-MK1/runtime/action"
	"github.com/Trafexofive/Cortex-MK1/runtime/schema"
	"github.com/Trafexofive/Cortex-MK1/runtime/scheduler"
)

// Key identifies a registered executor by the action type and name it
// serves.
type Key struct {
	Type action.Type
	Name string
}

// Registry resolves an Action to the scheduler.Executor that runs it.
// Validation against a registered JSON Schema, if any, runs before the
// executor is invoked.
type Registry struct {
	mu        sync.RWMutex
	executors map[Key]scheduler.Executor
	validator *schema.Validator
}

// Options configures a new Registry.
type Options struct {
	// Validator is consulted before every dispatch. Defaults to an empty
	// Validator (nothing registered means nothing validated).
	Validator *schema.Validator
}

// New constructs an empty Registry.
func New(opts Options) *Registry {
	v := opts.Validator
	if v == nil {
		v = schema.New()
	}
	return &Registry{executors: make(map[Key]scheduler.Executor), validator: v}
}

// Register associates exec with (typ, name). A relic registration's name
// is the service portion only (see Dispatch for the split).
func (r *Registry) Register(typ action.Type, name string, exec scheduler.Executor) {
	r.mu.Lock()
	r.executors[Key{Type: typ, Name: name}] = exec
	r.mu.Unlock()
}

// RegisterSchema associates a JSON Schema with (typ, name), validated
// against an action's parameters before Dispatch invokes its executor.
func (r *Registry) RegisterSchema(typ action.Type, name string, schemaJSON []byte) error {
	return r.validator.Register(schema.Key{Type: typ, Name: name}, schemaJSON)
}

// Dispatch resolves act to its registered executor and runs it. For
// type=relic, act.Name is split on the first '.' into service/endpoint;
// only the service portion is looked up, and the endpoint is forwarded to
// the executor as parameters["__endpoint"].
func (r *Registry) Dispatch(ctx context.Context, act action.Action) (any, error) {
	lookupName := act.Name
	if act.Type == action.Relic {
		service, endpoint, ok := strings.Cut(act.Name, ".")
		if ok {
			lookupName = service
			if act.Parameters == nil {
				act.Parameters = map[string]any{}
			}
			act.Parameters["__endpoint"] = endpoint
		}
	}

	if err := r.validator.Validate(schema.Key{Type: act.Type, Name: lookupName}, act.Parameters); err != nil {
		return nil, err
	}

	r.mu.RLock()
	exec, ok := r.executors[Key{Type: act.Type, Name: lookupName}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: no executor registered for %s/%s", act.Type, lookupName)
	}
	return exec(ctx, act)
}
