// Package parser implements the state machine that consumes token chunks
// from a model's output, drives the scanner, action parser, variable
// store, and scheduler, and emits a totally ordered sequence of typed
// events to a hooks.Bus.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Trafexofive/Cortex-MK1/runtime/actionjson"
	"github.com/Trafexofive/Cortex-MK1/runtime/hooks"
	"github.com/Trafexofive/Cortex-MK1/runtime/scheduler"
	"github.com/Trafexofive/Cortex-MK1/runtime/streamscan"
	"github.com/Trafexofive/Cortex-MK1/runtime/varstore"
)

// state enumerates the five positions the parser can occupy.
type state int

const (
	idle state = iota
	inThought
	inAction
	inResponse
	inContextFeed
)

// thoughtChunkBytes is the accumulation threshold of the thought-chunking
// policy: emit once this many bytes have accumulated since the last
// emission, even without a newline or a fully drained buffer.
const thoughtChunkBytes = 10

// Parser is a single conversation turn's worth of streaming state. It is
// not safe for concurrent use — the protocol's single-emitter invariant
// means exactly one goroutine ever calls Feed for a given Parser.
type Parser struct {
	store     *varstore.Store
	scheduler *scheduler.Scheduler
	bus       hooks.Bus
	runID     string

	raw   []byte // everything fed so far, minus bytes already consumed
	state state

	thoughtAcc       []byte
	actionBuf        []byte
	actionAttrs      map[string]string
	actionEmbedded   bool
	responseBuf      []byte
	responseAttrs    map[string]string
	feedBuf          []byte
	feedAttrs        map[string]string

	sawFinalResponse bool
	finalContent     string
}

// Options configures a new Parser.
type Options struct {
	Store     *varstore.Store
	Scheduler *scheduler.Scheduler
	Bus       hooks.Bus
	RunID     string
}

// New constructs a Parser positioned at Idle with an empty buffer.
func New(opts Options) *Parser {
	return &Parser{
		store:     opts.Store,
		scheduler: opts.Scheduler,
		bus:       opts.Bus,
		runID:     opts.RunID,
		state:     idle,
	}
}

// SawFinalResponse reports whether a Response with IsFinal=true was
// emitted during this Parser's lifetime, and the resolved content of the
// last one seen. The agent loop polls this after a TokenSource drains.
func (p *Parser) SawFinalResponse() (string, bool) {
	return p.finalContent, p.sawFinalResponse
}

// Feed appends chunk to the internal buffer and drives the state machine
// forward as far as it can go given what has arrived so far. isFinal
// signals that the token source has no more chunks; if the parser is
// still Idle with unconsumed bytes at that point, Feed emits the lenient
// fallback Response for untagged plain-text output.
func (p *Parser) Feed(ctx context.Context, chunk string, isFinal bool) error {
	p.raw = append(p.raw, chunk...)
	if err := p.drain(ctx); err != nil {
		return err
	}
	if isFinal && p.state == idle && strings.TrimSpace(string(p.raw)) != "" {
		content := p.store.ResolveString(string(p.raw))
		p.raw = nil
		p.finalContent = content
		p.sawFinalResponse = true
		return p.publish(ctx, hooks.Response{
			Base: hooks.Base{RunIDValue: p.runID}, Content: content, IsFinal: true, Fallback: true,
		})
	}
	return nil
}

// drain repeatedly strips fences and looks for the next recognized tag,
// processing text-before content and tag transitions until no complete
// tag remains in the buffer.
func (p *Parser) drain(ctx context.Context) error {
	for {
		view := streamscan.StripFences(p.raw)
		tag, ok := streamscan.NextTag(view)
		if !ok {
			return p.drainNoTag(ctx, view)
		}
		if err := p.handleTextBefore(ctx, tag.TextBefore); err != nil {
			return err
		}
		if err := p.handleTag(ctx, tag); err != nil {
			return err
		}
		p.raw = view[tag.End:]
	}
}

// drainNoTag handles the case where no complete tag is present yet: it
// applies the thought/response chunking policy to whatever text has
// accumulated and otherwise leaves the buffer untouched for more bytes.
// A trailing '<' with no '>' after it may be the start of a tag split
// across chunks, so those bytes stay in the buffer until more arrive.
func (p *Parser) drainNoTag(ctx context.Context, view []byte) error {
	if p.state == idle {
		// Idle junk between tags is discarded, but kept in p.raw until
		// isFinal so the fallback path can see it.
		return nil
	}
	var held []byte
	if lt := bytes.LastIndexByte(view, '<'); lt >= 0 && bytes.IndexByte(view[lt:], '>') < 0 {
		held = append(held, view[lt:]...)
		view = view[:lt]
	}
	p.raw = held
	switch p.state {
	case inThought:
		return p.accumulateThought(ctx, view, true)
	case inResponse:
		p.responseBuf = append(p.responseBuf, view...)
	case inAction:
		p.actionBuf = append(p.actionBuf, view...)
	case inContextFeed:
		p.feedBuf = append(p.feedBuf, view...)
	}
	return nil
}

// handleTextBefore routes the bytes preceding a just-recognized tag to
// whichever accumulator the current state implies.
func (p *Parser) handleTextBefore(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	switch p.state {
	case inThought:
		return p.accumulateThought(ctx, []byte(text), false)
	case inResponse:
		p.responseBuf = append(p.responseBuf, text...)
	case inAction:
		p.actionBuf = append(p.actionBuf, text...)
	case inContextFeed:
		p.feedBuf = append(p.feedBuf, text...)
	}
	return nil
}

// accumulateThought appends text to the pending thought accumulator and
// emits a Thought event once at least thoughtChunkBytes have accumulated,
// a newline was just consumed, or (when draining, i.e. the buffer is
// fully exhausted) whatever remains.
func (p *Parser) accumulateThought(ctx context.Context, text []byte, draining bool) error {
	p.thoughtAcc = append(p.thoughtAcc, text...)
	for {
		if len(p.thoughtAcc) == 0 {
			return nil
		}
		nl := indexByte(p.thoughtAcc, '\n')
		switch {
		case nl >= 0:
			chunk := p.thoughtAcc[:nl+1]
			p.thoughtAcc = p.thoughtAcc[nl+1:]
			if err := p.emitThought(ctx, chunk); err != nil {
				return err
			}
		case len(p.thoughtAcc) >= thoughtChunkBytes:
			chunk := p.thoughtAcc[:thoughtChunkBytes]
			p.thoughtAcc = p.thoughtAcc[thoughtChunkBytes:]
			if err := p.emitThought(ctx, chunk); err != nil {
				return err
			}
		case draining:
			chunk := p.thoughtAcc
			p.thoughtAcc = nil
			return p.emitThought(ctx, chunk)
		default:
			return nil
		}
	}
}

func (p *Parser) emitThought(ctx context.Context, content []byte) error {
	if len(content) == 0 {
		return nil
	}
	return p.publish(ctx, hooks.Thought{Base: hooks.Base{RunIDValue: p.runID}, Content: string(content)})
}

// flushThought drains and emits whatever remains in the thought
// accumulator unconditionally, used on </thought> close and on the
// InThought -> InAction / InResponse edge transitions.
func (p *Parser) flushThought(ctx context.Context) error {
	if len(p.thoughtAcc) == 0 {
		return nil
	}
	content := p.thoughtAcc
	p.thoughtAcc = nil
	return p.emitThought(ctx, content)
}

// handleTag applies the side effect and state transition for a single
// recognized open or close tag.
func (p *Parser) handleTag(ctx context.Context, tag streamscan.Tag) error {
	switch tag.Name {
	case "thought":
		return p.handleThoughtTag(ctx, tag)
	case "action":
		return p.handleActionTag(ctx, tag)
	case "response":
		return p.handleResponseTag(ctx, tag)
	case "context_feed":
		return p.handleContextFeedTag(ctx, tag)
	default:
		return fmt.Errorf("parser: unrecognized tag %q", tag.Name)
	}
}

func (p *Parser) handleThoughtTag(ctx context.Context, tag streamscan.Tag) error {
	if tag.Closing {
		if err := p.flushThought(ctx); err != nil {
			return err
		}
		p.state = idle
		return nil
	}
	p.state = inThought
	return nil
}

func (p *Parser) handleActionTag(ctx context.Context, tag streamscan.Tag) error {
	if !tag.Closing {
		wasInThought := p.state == inThought
		if wasInThought {
			if err := p.flushThought(ctx); err != nil {
				return err
			}
		}
		p.state = inAction
		p.actionBuf = nil
		p.actionAttrs = streamscan.ParseAttrs(tag.Attrs)
		p.actionEmbedded = wasInThought
		return nil
	}

	result, err := actionjson.Parse(string(p.actionBuf), p.actionAttrs, p.actionEmbedded, genID)
	wasEmbedded := p.actionEmbedded
	if wasEmbedded {
		p.state = inThought
	} else {
		p.state = idle
	}
	if err != nil {
		return p.publish(ctx, hooks.Error{
			Base: hooks.Base{RunIDValue: p.runID}, Message: err.Error(),
			Context: map[string]any{"stage": "action_parse"},
		})
	}

	if result.IDSynthesized {
		if err := p.publish(ctx, hooks.Error{
			Base:    hooks.Base{RunIDValue: p.runID},
			Message: fmt.Sprintf("action %q omitted id, synthesized %q", result.Action.Name, result.Action.ID),
			Context: map[string]any{"stage": "action_id_synthesized", "id": result.Action.ID},
		}); err != nil {
			return err
		}
	}

	act := result.Action
	act.Parameters = anyMap(p.store.Resolve(act.Parameters))
	p.scheduler.Submit(ctx, act)
	return nil
}

func (p *Parser) handleResponseTag(ctx context.Context, tag streamscan.Tag) error {
	if !tag.Closing {
		if p.state == inThought {
			if err := p.flushThought(ctx); err != nil {
				return err
			}
		}
		p.state = inResponse
		p.responseBuf = nil
		p.responseAttrs = streamscan.ParseAttrs(tag.Attrs)
		return nil
	}

	isFinal := !strings.EqualFold(p.responseAttrs["final"], "false")
	content := p.store.ResolveString(string(p.responseBuf))
	p.responseBuf = nil
	p.state = idle
	if isFinal {
		p.sawFinalResponse = true
		p.finalContent = content
	}
	return p.publish(ctx, hooks.Response{
		Base: hooks.Base{RunIDValue: p.runID}, Content: content, IsFinal: isFinal,
	})
}

func (p *Parser) handleContextFeedTag(ctx context.Context, tag streamscan.Tag) error {
	if !tag.Closing {
		p.state = inContextFeed
		p.feedBuf = nil
		p.feedAttrs = streamscan.ParseAttrs(tag.Attrs)
		return nil
	}

	feedID := p.feedAttrs["id"]
	if feedID == "" {
		feedID = "unknown"
	}
	content := string(p.feedBuf)
	p.feedBuf = nil
	p.state = idle
	p.store.PutFeed(feedID, content)
	return p.publish(ctx, hooks.ContextFeedDelivered{
		Base: hooks.Base{RunIDValue: p.runID}, FeedID: feedID, Content: content,
	})
}

func (p *Parser) publish(ctx context.Context, ev hooks.Event) error {
	if p.bus == nil {
		return nil
	}
	return p.bus.Publish(ctx, ev)
}

func genID() string { return uuid.NewString() }

func indexByte(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}

func anyMap(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}
