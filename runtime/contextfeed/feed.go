// Package contextfeed implements the registry of named content blocks
// injected into every augmented prompt. Four kinds are supported:
// on_demand (re-invoked through the same executor surface the scheduler
// uses), periodic (re-invoked on a cron schedule), static (a fixed string
// set once), and internal (materialized from a process-local signal such
// as wall-clock time).
package contextfeed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Trafexofive/Cortex-MK1/runtime/telemetry"
)

// Type enumerates the four feed kinds the manager recognizes.
type Type string

const (
	OnDemand Type = "on_demand"
	Periodic Type = "periodic"
	Static   Type = "static"
	Internal Type = "internal"
)

// Source describes where a feed's content comes from, mirroring the
// add_context_feed internal action's payload.
type Source struct {
	// Action and Params drive on_demand and periodic feeds: Action is
	// looked up and invoked through the Manager's Invoker.
	Action string
	Params map[string]any
	// Schedule is a standard five-field cron expression, required for
	// Periodic feeds.
	Schedule string
	// Signal names the process-local value an internal feed materializes
	// ("current_datetime" is the only one this runtime defines).
	Signal string
	// Content is the fixed body of a static feed.
	Content string
}

// Feed is one registered context feed.
type Feed struct {
	ID        string
	Type      Type
	Source    Source
	CacheTTL  time.Duration
	MaxTokens int

	content    string
	lastFilled time.Time
}

// Invoker resolves an on_demand or periodic feed's content by calling out
// to whatever executes named actions elsewhere in the runtime. It is the
// same shape as scheduler.Executor's callable surface, scoped down to
// "run this and give me a result".
type Invoker func(ctx context.Context, action string, params map[string]any) (any, error)

// Manager owns the live set of context feeds for one conversation and
// refreshes periodic feeds on their cron schedules.
type Manager struct {
	mu     sync.RWMutex
	feeds  map[string]*Feed
	invoke Invoker
	logger telemetry.Logger

	cron    *cron.Cron
	entries map[string]cron.EntryID
}

// Options configures a new Manager.
type Options struct {
	Invoker Invoker
	Logger  telemetry.Logger
}

// New constructs a Manager with its periodic-refresh scheduler started.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger, _, _ = telemetry.Noop()
	}
	m := &Manager{
		feeds:   make(map[string]*Feed),
		invoke:  opts.Invoker,
		logger:  logger,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
	m.cron.Start()
	return m
}

// Add registers feed, materializing static and internal content
// immediately. Periodic feeds are registered with cron and also refreshed
// once right away, before the first tick.
// on_demand feeds are materialized lazily by BuildPrompt instead, so a
// feed just registered but never yet prompted carries empty content.
func (m *Manager) Add(ctx context.Context, feed Feed) error {
	switch feed.Type {
	case Static:
		feed.content = feed.Source.Content
	case Internal:
		feed.content = m.materializeInternal(feed.Source.Signal)
	case Periodic:
		if feed.Source.Schedule == "" {
			return fmt.Errorf("contextfeed: periodic feed %q requires source.schedule", feed.ID)
		}
	case OnDemand:
		// left empty until first prompt build.
	default:
		return fmt.Errorf("contextfeed: unrecognized feed type %q", feed.Type)
	}

	m.mu.Lock()
	m.feeds[feed.ID] = &feed
	m.mu.Unlock()

	if feed.Type == Periodic {
		if err := m.schedulePeriodic(feed.ID, feed.Source.Schedule); err != nil {
			m.mu.Lock()
			delete(m.feeds, feed.ID)
			m.mu.Unlock()
			return err
		}
	}
	return nil
}

// Remove unregisters a feed and stops its periodic refresh, if any. This
// is the single code path both the internal remove_context_feed action and
// any external holder of a *Manager use — see DESIGN.md's note on the
// remove_context_feed symmetry open question.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.feeds, id)
	entryID, scheduled := m.entries[id]
	delete(m.entries, id)
	m.mu.Unlock()
	if scheduled {
		m.cron.Remove(entryID)
	}
}

// Get returns a copy of the feed registered under id.
func (m *Manager) Get(id string) (Feed, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.feeds[id]
	if !ok {
		return Feed{}, false
	}
	return *f, true
}

// Close stops the periodic-refresh scheduler. Call once the owning
// conversation ends.
func (m *Manager) Close() {
	<-m.cron.Stop().Done()
}

// Refresh materializes every on_demand feed by invoking its source action,
// skipping any whose cached content is still within CacheTTL. Called once
// per prompt-build pass.
func (m *Manager) Refresh(ctx context.Context) {
	m.mu.RLock()
	due := make([]*Feed, 0, len(m.feeds))
	for _, f := range m.feeds {
		if f.Type != OnDemand {
			continue
		}
		if f.CacheTTL > 0 && !f.lastFilled.IsZero() && time.Since(f.lastFilled) < f.CacheTTL {
			continue
		}
		due = append(due, f)
	}
	m.mu.RUnlock()

	for _, f := range due {
		m.refreshOne(ctx, f.ID)
	}
}

func (m *Manager) refreshOne(ctx context.Context, id string) {
	m.mu.RLock()
	f, ok := m.feeds[id]
	var action string
	var params map[string]any
	if ok {
		action = f.Source.Action
		params = f.Source.Params
	}
	invoke := m.invoke
	m.mu.RUnlock()
	if !ok || invoke == nil {
		return
	}

	result, err := invoke(ctx, action, params)
	if err != nil {
		m.logger.Warn(ctx, "context feed refresh failed", "feed_id", id, "error", err)
		return
	}
	content := renderContent(result)
	m.mu.Lock()
	if f, ok := m.feeds[id]; ok {
		f.content = truncate(content, f.MaxTokens)
		f.lastFilled = time.Now()
	}
	m.mu.Unlock()
}

// Snapshot returns every feed currently carrying non-empty content, in a
// stable order suitable for prompt injection.
func (m *Manager) Snapshot() []Feed {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Feed, 0, len(m.feeds))
	for _, f := range m.feeds {
		if f.content == "" {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) schedulePeriodic(id, schedule string) error {
	entryID, err := m.cron.AddFunc(schedule, func() {
		m.refreshOne(context.Background(), id)
	})
	if err != nil {
		return fmt.Errorf("contextfeed: invalid schedule for feed %q: %w", id, err)
	}
	m.mu.Lock()
	m.entries[id] = entryID
	m.mu.Unlock()
	// Fill once immediately rather than waiting for the first tick.
	m.refreshOne(context.Background(), id)
	return nil
}

func (m *Manager) materializeInternal(signal string) string {
	switch signal {
	case "current_datetime", "":
		return time.Now().UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

func renderContent(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func truncate(s string, maxTokens int) string {
	if maxTokens <= 0 {
		return s
	}
	// Tokens aren't counted here (no tokenizer dependency in this layer);
	// approximate with a 4-bytes-per-token rule of thumb.
	limit := maxTokens * 4
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
