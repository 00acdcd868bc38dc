//go:build linux

// Package frontend exposes a composition session to desktop input-method
// frameworks. The linux frontend registers as an IBus engine on the session
// bus, forwards key events into the prediction pipeline, and publishes
// preedit and committed text back to the client.
package frontend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"predictd/internal/composer"
	"predictd/internal/keys"
	"predictd/internal/session"
)

// IBus D-Bus constants.
const (
	BusName          = "dev.predictd.IBus"
	EngineName       = "predictd"
	FactoryPath      = "/org/freedesktop/IBus/Factory"
	EnginePathBase   = "/org/freedesktop/IBus/Engine/predictd"
	FactoryInterface = "org.freedesktop.IBus.Factory"
	EngineInterface  = "org.freedesktop.IBus.Engine"
)

// IBusEngine bridges one composition session to IBus. Key events arrive as
// D-Bus method calls on the bus connection's goroutine; the mutex serializes
// them into the single-threaded session.
type IBusEngine struct {
	conn *dbus.Conn
	sess *session.Session
	log  *slog.Logger

	mu        sync.Mutex
	enabled   bool
	focused   bool
	path      dbus.ObjectPath
	committed uint64
}

// NewIBusEngine wraps a session for IBus registration.
func NewIBusEngine(sess *session.Session, log *slog.Logger) *IBusEngine {
	if log == nil {
		log = slog.Default()
	}
	return &IBusEngine{
		sess:    sess,
		log:     log,
		enabled: true,
		path:    dbus.ObjectPath(EnginePathBase),
	}
}

// Start connects to the session bus, claims the engine bus name, and exports
// the factory and engine objects. The context bounds only the startup
// handshake; Stop tears the connection down.
func (e *IBusEngine) Start(ctx context.Context) error {
	conn, err := dbus.SessionBusPrivate(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	if err := conn.Auth(nil); err != nil {
		conn.Close()
		return fmt.Errorf("authenticate with session bus: %w", err)
	}
	if err := conn.Hello(); err != nil {
		conn.Close()
		return fmt.Errorf("register with session bus: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("request bus name %s: %w", BusName, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return errors.New("bus name already taken; another instance is running")
	}

	e.conn = conn
	if err := conn.Export(&ibusFactory{engine: e}, FactoryPath, FactoryInterface); err != nil {
		conn.Close()
		return fmt.Errorf("export factory: %w", err)
	}
	if err := conn.Export(e, e.path, EngineInterface); err != nil {
		conn.Close()
		return fmt.Errorf("export engine: %w", err)
	}

	e.log.Info("ibus engine registered", "bus_name", BusName, "path", string(e.path))
	return nil
}

// Stop closes the bus connection and the underlying session.
func (e *IBusEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Close()
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

// ProcessKeyEvent handles one key event from IBus. Returns true when the
// event was consumed by the composition; false passes it through to the
// client application.
func (e *IBusEngine) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled {
		return false, nil
	}
	consumed := e.sess.ProcessKeyEvent(keys.Event{Keycode: keyval, Modifiers: state})
	e.flushCommits()
	e.publishPreedit()
	return consumed, nil
}

// flushCommits emits CommitText for every record committed since the last
// flush. Caller holds e.mu.
func (e *IBusEngine) flushCommits() {
	hist := e.sess.Context().History()
	delta := hist.Total() - e.committed
	e.committed = hist.Total()
	if delta == 0 {
		return
	}
	for _, rec := range hist.Recent(int(delta)) {
		e.emit("CommitText", rec.Text)
		e.log.Debug("commit", "text", rec.Text, "type", rec.Type)
	}
}

// publishPreedit shows the input buffer plus the pending continuation, with
// the cursor at the end of what the user actually typed. Caller holds e.mu.
func (e *IBusEngine) publishPreedit() {
	ctx := e.sess.Context()
	text := ctx.Input()
	cursor := uint32(len(text))
	if back := ctx.Composition().Back(); back != nil && back.HasTag(composer.TagPrediction) {
		if cand := back.SelectedCandidate(); cand != nil {
			text += cand.Text
		}
	}
	e.emit("UpdatePreeditText", text, cursor, text != "")
}

func (e *IBusEngine) emit(signal string, values ...interface{}) {
	if e.conn == nil {
		return
	}
	if err := e.conn.Emit(e.path, EngineInterface+"."+signal, values...); err != nil {
		e.log.Warn("signal emit failed", "signal", signal, "error", err)
	}
}

// FocusIn is called when the engine gains input focus.
func (e *IBusEngine) FocusIn() *dbus.Error {
	e.mu.Lock()
	e.focused = true
	e.mu.Unlock()
	return nil
}

// FocusOut discards any in-progress composition; half-typed input must not
// leak into the next focus target.
func (e *IBusEngine) FocusOut() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.focused = false
	e.sess.Context().Clear()
	e.publishPreedit()
	return nil
}

// Enable is called when the user switches to this engine.
func (e *IBusEngine) Enable() *dbus.Error {
	e.mu.Lock()
	e.enabled = true
	e.mu.Unlock()
	return nil
}

// Disable clears composition state when the user switches away.
func (e *IBusEngine) Disable() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = false
	e.sess.Context().Clear()
	e.publishPreedit()
	return nil
}

// Reset is called when the client discards the composition context.
func (e *IBusEngine) Reset() *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Context().Clear()
	e.publishPreedit()
	return nil
}

// CandidateClicked confirms a candidate picked with the pointer.
func (e *IBusEngine) CandidateClicked(index, button, state uint32) *dbus.Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled {
		return nil
	}
	if e.sess.Select(int(index)) {
		e.flushCommits()
		e.publishPreedit()
	}
	return nil
}

// SetCapabilities informs about client capabilities.
func (e *IBusEngine) SetCapabilities(caps uint32) *dbus.Error {
	return nil
}

// SetCursorLocation informs about cursor position.
func (e *IBusEngine) SetCursorLocation(x, y, w, h int32) *dbus.Error {
	return nil
}

// SetSurroundingText provides context around the cursor.
func (e *IBusEngine) SetSurroundingText(text string, cursorPos, anchorPos uint32) *dbus.Error {
	return nil
}

// ibusFactory implements the IBus Factory D-Bus interface. Its counter and
// the engine fields it touches are guarded by the engine mutex; factory and
// engine calls arrive on the same bus connection but must not interleave.
type ibusFactory struct {
	engine   *IBusEngine
	engineID uint32
}

// CreateEngine hands out an object path for a new engine instance. The
// single session is re-exported at the new path; IBus multiplexes focus.
func (f *ibusFactory) CreateEngine(engineName string) (dbus.ObjectPath, *dbus.Error) {
	if engineName != EngineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine",
			[]interface{}{"unknown engine: " + engineName})
	}
	f.engine.mu.Lock()
	defer f.engine.mu.Unlock()
	f.engineID++
	path := dbus.ObjectPath(fmt.Sprintf("%s/%d", EnginePathBase, f.engineID))
	if f.engine.conn != nil {
		if err := f.engine.conn.Export(f.engine, path, EngineInterface); err != nil {
			return "", dbus.NewError("org.freedesktop.IBus.Failed",
				[]interface{}{err.Error()})
		}
	}
	f.engine.path = path
	return path, nil
}
