package loop

import (
	"context"
	"fmt"
	"time"

	"github.com/Trafexofive/Cortex-MK1/runtime/action"
	"github.com/Trafexofive/Cortex-MK1/runtime/contextfeed"
	"github.com/Trafexofive/Cortex-MK1/runtime/scheduler"
)

// buildExecutor wraps the caller-supplied external executor so that
// type=internal actions never reach it: they are handled in-process here
// instead.
func (l *Loop) buildExecutor() scheduler.Executor {
	return func(ctx context.Context, act action.Action) (any, error) {
		if act.Type != action.Internal {
			if l.executor == nil {
				return nil, fmt.Errorf("loop: no executor configured for action type %q", act.Type)
			}
			return l.executor(ctx, act)
		}
		return l.handleInternal(ctx, act)
	}
}

func (l *Loop) handleInternal(ctx context.Context, act action.Action) (any, error) {
	switch act.Name {
	case "add_context_feed":
		return l.handleAddContextFeed(ctx, act.Parameters)
	case "remove_context_feed":
		id, _ := act.Parameters["id"].(string)
		l.feeds.Remove(id)
		l.store.DeleteFeed(id)
		return map[string]any{"status": "removed", "id": id}, nil
	case "set_variable":
		key, _ := act.Parameters["key"].(string)
		if key == "" {
			return nil, fmt.Errorf("loop: set_variable requires a non-empty key")
		}
		l.store.Put(key, act.Parameters["value"])
		return map[string]any{"status": "set", "key": key}, nil
	case "delete_variable":
		key, _ := act.Parameters["key"].(string)
		l.store.Delete(key)
		return map[string]any{"status": "deleted", "key": key}, nil
	case "clear_context":
		l.store.Clear()
		return map[string]any{"status": "cleared"}, nil
	default:
		return nil, fmt.Errorf("loop: unrecognized internal action %q", act.Name)
	}
}

func (l *Loop) handleAddContextFeed(ctx context.Context, params map[string]any) (any, error) {
	id, _ := params["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("loop: add_context_feed requires a non-empty id")
	}
	feed := contextfeed.Feed{
		ID:   id,
		Type: contextfeed.Type(stringField(params, "type")),
	}
	if src, ok := params["source"].(map[string]any); ok {
		feed.Source = contextfeed.Source{
			Action:   stringField(src, "action"),
			Params:   mapField(src, "params"),
			Schedule: stringField(src, "schedule"),
			Signal:   stringField(src, "signal"),
			Content:  stringField(src, "content"),
		}
	}
	if ttl, ok := params["cache_ttl"].(float64); ok {
		feed.CacheTTL = time.Duration(ttl) * time.Second
	}
	if maxTokens, ok := params["max_tokens"].(float64); ok {
		feed.MaxTokens = int(maxTokens)
	}
	if err := l.feeds.Add(ctx, feed); err != nil {
		return nil, err
	}
	return map[string]any{"status": "added", "id": id}, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func mapField(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}
