package composer

// Subscription is an opaque cancellation token returned by Subscribe.
// Cancel is idempotent and safe to call on the zero value.
type Subscription struct {
	remove func()
}

// Cancel removes the handler from its notifier.
func (s *Subscription) Cancel() {
	if s.remove != nil {
		s.remove()
		s.remove = nil
	}
}

// Notifier invokes handlers synchronously, in registration order. It is not
// safe for concurrent use; the composition pipeline is single-threaded and
// callback-driven. Handlers may subscribe or cancel during notification
// without affecting the in-flight delivery.
type Notifier struct {
	nextID   uint64
	handlers []notifierEntry
}

type notifierEntry struct {
	id uint64
	fn func(*Context)
}

// Subscribe registers fn and returns its cancellation token.
func (n *Notifier) Subscribe(fn func(*Context)) Subscription {
	n.nextID++
	id := n.nextID
	n.handlers = append(n.handlers, notifierEntry{id: id, fn: fn})
	return Subscription{remove: func() { n.remove(id) }}
}

func (n *Notifier) remove(id uint64) {
	for i, h := range n.handlers {
		if h.id == id {
			n.handlers = append(n.handlers[:i], n.handlers[i+1:]...)
			return
		}
	}
}

// Notify invokes all handlers with ctx. The handler list is snapshotted so
// reentrant subscribe/cancel cannot disturb the current delivery.
func (n *Notifier) Notify(ctx *Context) {
	snapshot := make([]notifierEntry, len(n.handlers))
	copy(snapshot, n.handlers)
	for _, h := range snapshot {
		h.fn(ctx)
	}
}

// OptionNotifier is a Notifier variant whose handlers also receive the name
// of the option that changed.
type OptionNotifier struct {
	nextID   uint64
	handlers []optionEntry
}

type optionEntry struct {
	id uint64
	fn func(*Context, string)
}

// Subscribe registers fn and returns its cancellation token.
func (n *OptionNotifier) Subscribe(fn func(*Context, string)) Subscription {
	n.nextID++
	id := n.nextID
	n.handlers = append(n.handlers, optionEntry{id: id, fn: fn})
	return Subscription{remove: func() { n.remove(id) }}
}

func (n *OptionNotifier) remove(id uint64) {
	for i, h := range n.handlers {
		if h.id == id {
			n.handlers = append(n.handlers[:i], n.handlers[i+1:]...)
			return
		}
	}
}

// Notify invokes all handlers with ctx and the changed option name.
func (n *OptionNotifier) Notify(ctx *Context, option string) {
	snapshot := make([]optionEntry, len(n.handlers))
	copy(snapshot, n.handlers)
	for _, h := range snapshot {
		h.fn(ctx, option)
	}
}
