// Package predictor implements the predictive-continuation controller: after
// the user settles a piece of input, it asks a prediction engine for a likely
// continuation, inserts it as a distinguishable trailing segment, and manages
// how subsequent key events and context changes accept, replace, or discard
// it. The controller supports both composition styles of the host pipeline:
// fluid (confirmed segments stay visible and editable) and auto-commit
// (confirmed text commits immediately and the composition empties).
package predictor

import (
	"log/slog"
	"strings"

	"predictd/internal/composer"
	"predictd/internal/keys"
)

// Engine is the prediction provider: it computes whether a continuation
// exists for a query and materializes it as a new trailing segment.
type Engine interface {
	// Predict computes a prediction for query against ctx. It returns
	// false, changing nothing, when no continuation is available.
	Predict(ctx *composer.Context, query string) bool

	// CreatePredictSegment appends the most recent prediction as a
	// prediction-tagged trailing segment of ctx's composition.
	CreatePredictSegment(ctx *composer.Context)

	// Clear resets the engine's staged prediction state.
	Clear()

	// MaxIterations bounds consecutive accepted continuations; zero or
	// negative means unbounded.
	MaxIterations() int
}

// action classifies the most recently processed key event. The context-update
// handler reads it to suppress spurious continuation after a deletion or a
// fresh composition.
type action int

const (
	actionUnspecified action = iota
	actionInitiate
	actionDelete
	actionSelect
)

// Config carries the schema-derived settings the controller reads once at
// construction.
type Config struct {
	// SelectorKeys is the ordered string of characters that pick a paged
	// candidate directly; empty falls back to digit-key selection.
	SelectorKeys string

	// Initials is the set of characters that start a new input unit, used
	// to detect a prediction chain being broken by fresh typing.
	Initials string

	// PageSize is the candidate page size from the active schema.
	PageSize int

	// Logger receives controller diagnostics; nil uses slog.Default.
	Logger *slog.Logger
}

// DefaultPageSize is used when the schema does not specify one.
const DefaultPageSize = 5

// Predictor drives the predicted-segment lifecycle for one session. It
// intercepts key events ahead of normal dispatch and subscribes to the
// context's select, update, and option notifiers at construction.
//
// Predictor is single-threaded, like the pipeline it lives in. The only
// reentrancy hazard is the update notifier firing for the controller's own
// mutation, which the selfUpdating flag suppresses.
type Predictor struct {
	ctx    *composer.Context
	engine Engine
	cfg    Config
	log    *slog.Logger

	iterationCounter int
	lastAction       action
	selfUpdating     bool

	subs []composer.Subscription
}

// New builds a controller bound to ctx and engine and subscribes it to the
// context's three notification channels. Close releases the subscriptions.
func New(ctx *composer.Context, engine Engine, cfg Config) *Predictor {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Predictor{ctx: ctx, engine: engine, cfg: cfg, log: log}
	p.subs = []composer.Subscription{
		ctx.SelectNotifier().Subscribe(p.onSelect),
		ctx.UpdateNotifier().Subscribe(p.onContextUpdate),
		ctx.OptionNotifier().Subscribe(p.onOptionUpdate),
	}
	return p
}

// Close unsubscribes the controller from all three notification channels.
// Safe to call more than once.
func (p *Predictor) Close() {
	for i := range p.subs {
		p.subs[i].Cancel()
	}
	p.subs = nil
}

// ProcessKeyEvent inspects one key event ahead of normal dispatch. It
// returns true when the event was fully consumed; false lets the host's
// normal handling proceed. Sessions without an engine, a context, or the
// prediction option enabled always decline unchanged. Frontends filter key
// releases before dispatch.
func (p *Predictor) ProcessKeyEvent(ev keys.Event) bool {
	ctx := p.ctx
	if p.engine == nil || ctx == nil || !ctx.GetOption(composer.OptionPrediction) {
		return false
	}
	comp := ctx.Composition()
	if comp.Empty() {
		p.lastAction = actionInitiate
		if p.iterationCounter > 0 {
			p.engine.Clear()
			p.iterationCounter = 0
		}
		return false
	}
	cls := keys.Classify(ev, p.cfg.SelectorKeys)
	switch cls.Kind {
	case keys.KindBackspace:
		p.lastAction = actionDelete
		if comp.Back().HasTag(composer.TagPrediction) {
			p.engine.Clear()
			comp.PopBack()
			p.iterationCounter--
			return true
		}

	case keys.KindEscape:
		p.lastAction = actionDelete
		if comp.Back().HasTag(composer.TagPrediction) {
			p.engine.Clear()
			p.iterationCounter = 0
			if ctx.HasMenu() && ctx.InputLen() > 0 {
				comp.Back().Clear()
			} else {
				ctx.Clear()
			}
			return true
		}

	case keys.KindConfirm:
		if ev.Modifiers != 0 || ctx.GetOption(composer.OptionAutoCommit) {
			// Not a commit trigger here; treat like any other key.
			p.fallthroughKey(ctx, cls)
			return false
		}
		p.lastAction = actionSelect
		if comp.Back().HasTag(composer.TagPrediction) {
			comp.Back().Clear()
		}
		p.engine.Clear()
		p.iterationCounter = 0
		ctx.Commit()
		return true

	case keys.KindSelector, keys.KindDigit:
		if comp.Back().HasTag(composer.TagPrediction) {
			pageStart := (comp.Back().SelectedIndex / p.cfg.PageSize) * p.cfg.PageSize
			if cls.Index < p.cfg.PageSize && ctx.Select(pageStart+cls.Index) {
				p.lastAction = actionSelect
				return true
			}
		}

	default:
		p.fallthroughKey(ctx, cls)
	}
	return false
}

// fallthroughKey handles keys that no specific branch claimed. Typing a
// fresh initial over a prediction clears the predicted content so the new
// syllable replaces it; when the segment before it is also a prediction,
// the chain is being broken mid-stream, so the settled part commits.
func (p *Predictor) fallthroughKey(ctx *composer.Context, cls keys.Class) {
	p.lastAction = actionUnspecified
	comp := ctx.Composition()
	back := comp.Back()
	if back.HasTag(composer.TagPrediction) && cls.Char > 0x20 &&
		strings.ContainsRune(p.cfg.Initials, cls.Char) {
		back.Clear()
		if prev := comp.NextToBack(); prev != nil && prev.HasTag(composer.TagPrediction) {
			p.engine.Clear()
			p.iterationCounter = 0
			ctx.Commit()
		}
	}
}

// onSelect drives the fluid composition style: a confirmed segment at the
// tail seeds the next continuation.
func (p *Predictor) onSelect(ctx *composer.Context) {
	p.lastAction = actionSelect
	if p.engine == nil || ctx == nil || !ctx.GetOption(composer.OptionPrediction) ||
		ctx.GetOption(composer.OptionAutoCommit) {
		return
	}
	comp := ctx.Composition()
	back := comp.Back()
	if back == nil {
		return
	}
	end := ctx.InputLen()
	if back.End != end || back.End != back.Start {
		return
	}
	if back.Status == composer.StatusConfirmed && back.HasTag(composer.TagPrediction) {
		cand := back.SelectedCandidate()
		if cand == nil {
			return
		}
		text := cand.Text
		p.iterationCounter++
		comp.PushBack(composer.NewSegment(end, end))
		if max := p.engine.MaxIterations(); max > 0 && p.iterationCounter >= max {
			p.engine.Clear()
			p.iterationCounter = 0
			return
		}
		p.predictAndUpdate(ctx, text)
	} else if prev := comp.NextToBack(); prev != nil && prev.Status == composer.StatusConfirmed {
		cand := prev.SelectedCandidate()
		if cand == nil || cand.Type == composer.CommitTypePunct {
			// Punctuation never seeds a continuation.
			p.engine.Clear()
			p.iterationCounter = 0
			return
		}
		p.predictAndUpdate(ctx, cand.Text)
	}
}

// onOptionUpdate reacts to ascii_mode toggles: a mode switch must not leave
// a stale predicted segment behind.
func (p *Predictor) onOptionUpdate(ctx *composer.Context, option string) {
	if option != composer.OptionASCIIMode || ctx == nil ||
		!ctx.GetOption(composer.OptionPrediction) {
		return
	}
	p.iterationCounter = 0
	comp := ctx.Composition()
	if back := comp.Back(); back != nil && back.HasTag(composer.TagPrediction) {
		if ctx.GetOption(composer.OptionAutoCommit) {
			comp.Clear()
		} else {
			comp.PopBack()
		}
	}
}

// onContextUpdate drives the auto-commit composition style: when a commit
// empties the composition, the committed text seeds the next continuation.
// The selfUpdating guard keeps the handler from reacting to the update the
// controller itself fires in predictAndUpdate.
func (p *Predictor) onContextUpdate(ctx *composer.Context) {
	if p.selfUpdating || p.engine == nil || ctx == nil ||
		!ctx.GetOption(composer.OptionPrediction) ||
		!ctx.GetOption(composer.OptionAutoCommit) ||
		!ctx.Composition().Empty() || ctx.History().Empty() ||
		p.lastAction == actionDelete || p.lastAction == actionInitiate {
		return
	}
	last := ctx.History().Back()
	p.log.Debug("predictor: context update", "commit_type", last.Type)
	switch last.Type {
	case composer.CommitTypePunct, composer.CommitTypeRaw, composer.CommitTypeThru:
		p.engine.Clear()
		p.iterationCounter = 0
		return
	case composer.CommitTypePrediction:
		p.iterationCounter++
		if max := p.engine.MaxIterations(); max > 0 && p.iterationCounter >= max {
			p.engine.Clear()
			p.iterationCounter = 0
			return
		}
	}
	p.predictAndUpdate(ctx, last.Text)
}

// predictAndUpdate asks the engine for a continuation of query and, if one
// exists, materializes it as the new trailing segment and publishes the
// change. The reentrancy flag is held only for the synchronous extent of the
// notification and is cleared on every exit path.
func (p *Predictor) predictAndUpdate(ctx *composer.Context, query string) {
	if !p.engine.Predict(ctx, query) {
		return
	}
	p.engine.CreatePredictSegment(ctx)
	p.selfUpdating = true
	defer func() { p.selfUpdating = false }()
	ctx.NotifyUpdate()
}
