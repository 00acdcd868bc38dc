// Package session wires one composition session: a context configured from
// the active schema, a prediction engine acquired per ticket, and the
// prediction controller intercepting key events ahead of default handling.
package session

import (
	"fmt"
	"log/slog"
	"sync"

	"predictd/internal/composer"
	"predictd/internal/keys"
	"predictd/internal/predictor"
	"predictd/internal/schema"
)

// Session is one live composition session. The composition pipeline itself
// is single-threaded; the mutex serializes key processing with schema
// reloads, which arrive from a watcher goroutine and swap the controller.
type Session struct {
	mu      sync.Mutex
	ctx     *composer.Context
	pred    *predictor.Predictor
	factory *predictor.Factory
	log     *slog.Logger
}

// New creates a session for the given schema. Session options come from the
// schema's defaults; the prediction controller is bound before any input is
// processed.
func New(factory *predictor.Factory, sch *schema.Schema, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		ctx:     composer.New(),
		factory: factory,
		log:     log,
	}
	if err := s.attach(sch); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) attach(sch *schema.Schema) error {
	for name, value := range sch.Options {
		s.ctx.SetOption(name, value)
	}
	pred, err := s.factory.Create(
		predictor.Ticket{SchemaID: sch.ID()},
		s.ctx,
		predictor.Config{
			SelectorKeys: sch.SelectKeys(),
			Initials:     sch.Initials(),
			PageSize:     sch.PageSize(),
			Logger:       s.log,
		},
	)
	if err != nil {
		return fmt.Errorf("bind predictor for schema %q: %w", sch.ID(), err)
	}
	s.pred = pred
	return nil
}

// ReloadSchema rebinds the session to a changed schema: the old controller
// is released, option defaults are reapplied, and a fresh controller is
// created with the new selector keys, initials, and page size.
func (s *Session) ReloadSchema(sch *schema.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pred.Close()
	if err := s.attach(sch); err != nil {
		return err
	}
	s.log.Info("schema reloaded", "schema_id", sch.ID())
	return nil
}

// Context exposes the session's composition context.
func (s *Session) Context() *composer.Context {
	return s.ctx
}

// ProcessKeyEvent feeds one key event through the session: the prediction
// controller sees it first; undeclined events fall back to default editing.
// Returns true when the event was consumed.
func (s *Session) ProcessKeyEvent(ev keys.Event) bool {
	if ev.IsRelease() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pred.ProcessKeyEvent(ev) {
		s.commitSettled()
		return true
	}
	return s.defaultProcess(ev)
}

// Select confirms the candidate at index in the trailing segment, as if it
// had been picked with a selector key. Returns false if there is no such
// candidate.
func (s *Session) Select(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ctx.Select(index) {
		return false
	}
	s.commitSettled()
	return true
}

// commitSettled finalizes a prediction the controller just confirmed. In
// auto-commit style the host editor commits confirmed text immediately; the
// resulting commit record is what seeds the next continuation.
func (s *Session) commitSettled() {
	ctx := s.ctx
	if !ctx.GetOption(composer.OptionAutoCommit) {
		return
	}
	back := ctx.Composition().Back()
	if back != nil && back.Status == composer.StatusConfirmed {
		ctx.Commit()
	}
}

// defaultProcess is the host-side editing fallback: printable characters
// extend the input buffer, space settles the buffer as a word commit, and
// the control keys edit or commit the raw buffer.
func (s *Session) defaultProcess(ev keys.Event) bool {
	ctx := s.ctx
	switch ev.Keycode {
	case keys.BackSpace:
		if ctx.InputLen() == 0 {
			return false
		}
		input := ctx.Input()
		ctx.SetInput(input[:len(input)-1])
		return true

	case keys.Escape:
		if ctx.InputLen() == 0 && ctx.Composition().Empty() {
			return false
		}
		ctx.Clear()
		return true

	case keys.Return, keys.KPEnter:
		if ctx.InputLen() == 0 && ctx.Composition().Empty() {
			return false
		}
		ctx.Commit()
		return true

	case ' ':
		if ctx.InputLen() == 0 {
			return false
		}
		s.settleWord()
		return true
	}

	if ev.Modifiers == 0 && ev.Keycode > 0x20 && ev.Keycode < 0x7f {
		ctx.PushInput(rune(ev.Keycode))
		s.extendComposing()
		return true
	}
	return false
}

// extendComposing keeps a raw segment covering the typed input, so the
// composition is non-empty while the user is mid-word. Typing over a
// prediction segment claims it for user text.
func (s *Session) extendComposing() {
	comp := s.ctx.Composition()
	end := s.ctx.InputLen()
	back := comp.Back()
	if back == nil {
		comp.PushBack(composer.NewSegment(end-1, end))
		return
	}
	if back.HasTag(composer.TagPrediction) {
		back.RemoveTag(composer.TagPrediction)
		back.Start = end - 1
	}
	back.End = end
}

// settleWord converts the raw input buffer into a confirmed word segment and
// commits it, so the committed text can seed a prediction.
func (s *Session) settleWord() {
	ctx := s.ctx
	word := ctx.Input()
	comp := ctx.Composition()
	back := comp.Back()
	if back == nil || back.HasTag(composer.TagPrediction) {
		back = composer.NewSegment(0, len(word))
		comp.PushBack(back)
	}
	back.SetCandidates([]composer.Candidate{{Text: word, Type: "word"}})
	back.Status = composer.StatusConfirmed
	ctx.Commit()
}

// Close releases the session's controller.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pred.Close()
}
