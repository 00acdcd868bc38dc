// Package composer models the in-progress state of a text composition
// session: the raw input buffer, the ordered segment composition over it,
// the append-only commit history, and the named boolean options that steer
// processing. Interested parties observe the context through three
// synchronous notification channels (selection made, composition updated,
// option toggled).
//
// The package is single-threaded by design. All mutation and notification
// happens on the caller's goroutine, and handlers run to completion before
// the mutating call returns.
package composer

// Option names recognized by the prediction pipeline.
const (
	// OptionPrediction enables predictive continuation.
	OptionPrediction = "prediction"
	// OptionAutoCommit selects the auto-commit composition style, where
	// confirmed text is committed immediately and the composition empties.
	OptionAutoCommit = "_auto_commit"
	// OptionASCIIMode switches the session to verbatim ASCII input.
	OptionASCIIMode = "ascii_mode"
)

// Context is one composition session: input buffer, segment composition,
// commit history, and options. It is externally owned relative to the
// processors observing it; processors mutate only the trailing segment(s)
// of the composition.
type Context struct {
	input       string
	composition Composition
	history     CommitHistory
	options     map[string]bool

	selectNotifier Notifier
	updateNotifier Notifier
	optionNotifier OptionNotifier
}

// New creates an empty context with no options set.
func New() *Context {
	return &Context{options: make(map[string]bool)}
}

// Input returns the current input buffer.
func (c *Context) Input() string {
	return c.input
}

// InputLen returns the input buffer length in bytes.
func (c *Context) InputLen() int {
	return len(c.input)
}

// SetInput replaces the input buffer and fires the update notifier.
func (c *Context) SetInput(s string) {
	c.input = s
	c.updateNotifier.Notify(c)
}

// PushInput appends one character to the input buffer and fires the update
// notifier.
func (c *Context) PushInput(r rune) {
	c.input += string(r)
	c.updateNotifier.Notify(c)
}

// Composition returns the segment composition for tail inspection and
// mutation.
func (c *Context) Composition() *Composition {
	return &c.composition
}

// History returns the commit history.
func (c *Context) History() *CommitHistory {
	return &c.history
}

// GetOption returns the value of a named boolean option; unset options read
// as false.
func (c *Context) GetOption(name string) bool {
	return c.options[name]
}

// SetOption sets a named boolean option and fires the option notifier.
func (c *Context) SetOption(name string, value bool) {
	c.options[name] = value
	c.optionNotifier.Notify(c, name)
}

// HasMenu reports whether the trailing segment is showing a candidate menu.
func (c *Context) HasMenu() bool {
	back := c.composition.Back()
	return back != nil && back.CandidateCount() > 0
}

// SelectedCandidate returns the trailing segment's selected candidate, or
// nil if there is none.
func (c *Context) SelectedCandidate() *Candidate {
	back := c.composition.Back()
	if back == nil {
		return nil
	}
	return back.SelectedCandidate()
}

// Select confirms the candidate at index in the trailing segment and fires
// the select notifier. Returns false, with no state change, if the
// composition is empty or the index is out of range.
func (c *Context) Select(index int) bool {
	back := c.composition.Back()
	if back == nil {
		return false
	}
	if back.CandidateAt(index) == nil {
		return false
	}
	back.SelectedIndex = index
	back.Status = StatusConfirmed
	c.selectNotifier.Notify(c)
	return true
}

// Commit finalizes the composition: the selected text of every settled
// segment is appended to the commit history as one record, the composition
// and input buffer are emptied, and the update notifier fires. The record's
// type is that of the last contributing candidate; input with no settled
// conversion is committed verbatim as a raw record.
func (c *Context) Commit() {
	var text string
	typ := CommitTypeRaw
	c.composition.forEach(func(seg *Segment) {
		if seg.Status < StatusSelected {
			return
		}
		if cand := seg.SelectedCandidate(); cand != nil {
			text += cand.Text
			typ = cand.Type
		}
	})
	if text == "" && c.input != "" {
		text = c.input
		typ = CommitTypeRaw
	}
	if text != "" {
		c.history.Push(CommitRecord{Text: text, Type: typ})
	}
	c.input = ""
	c.composition.Clear()
	c.updateNotifier.Notify(c)
}

// Clear discards the input buffer and composition without committing, then
// fires the update notifier.
func (c *Context) Clear() {
	c.input = ""
	c.composition.Clear()
	c.updateNotifier.Notify(c)
}

// NotifyUpdate fires the composition-update notifier without any state
// change. Processors that mutate the composition in place use this to
// publish the change.
func (c *Context) NotifyUpdate() {
	c.updateNotifier.Notify(c)
}

// SelectNotifier fires whenever a candidate is confirmed via Select.
func (c *Context) SelectNotifier() *Notifier {
	return &c.selectNotifier
}

// UpdateNotifier fires whenever the composition or input buffer changes.
func (c *Context) UpdateNotifier() *Notifier {
	return &c.updateNotifier
}

// OptionNotifier fires whenever a named option is set.
func (c *Context) OptionNotifier() *OptionNotifier {
	return &c.optionNotifier
}
