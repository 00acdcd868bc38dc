// Package keys defines the key-event representation shared by frontends and
// processors, and a single classification step that maps raw keysyms onto
// the small closed set of inputs the prediction controller cares about.
// Classifying once per event keeps the dispatch policy independent of any
// frontend's native key-code representation.
package keys

import "strings"

// X11/GDK keysym values, the common currency of Linux input methods.
const (
	BackSpace = 0xff08
	Tab       = 0xff09
	Return    = 0xff0d
	Escape    = 0xff1b
	Delete    = 0xffff
	KPEnter   = 0xff8d
	KP0       = 0xffb0
	KP9       = 0xffb9
)

// Modifier state masks, matching the IBus/GDK bit layout.
const (
	ShiftMask   uint32 = 1 << 0
	LockMask    uint32 = 1 << 1
	ControlMask uint32 = 1 << 2
	Mod1Mask    uint32 = 1 << 3 // Alt
	Mod4Mask    uint32 = 1 << 6 // Super/Meta
	ReleaseMask uint32 = 1 << 30
)

// Event is one key press as delivered by a frontend.
type Event struct {
	// Keycode is the keysym value.
	Keycode uint32

	// Modifiers is the modifier state at press time.
	Modifiers uint32
}

// IsRelease reports whether the event is a key release rather than a press.
func (e Event) IsRelease() bool {
	return e.Modifiers&ReleaseMask != 0
}

// Kind is the closed classification of a key event.
type Kind int

const (
	// KindOther is anything not claimed by a more specific kind.
	KindOther Kind = iota
	// KindBackspace deletes backward.
	KindBackspace
	// KindEscape cancels the current conversion.
	KindEscape
	// KindConfirm is Enter or keypad Enter.
	KindConfirm
	// KindSelector is an unmodified printable key found in the configured
	// selector string.
	KindSelector
	// KindDigit is an unmodified digit key (main row or keypad) when no
	// selector keys are configured.
	KindDigit
)

// Class is the result of classifying one event.
type Class struct {
	Kind Kind

	// Char is the printable character for KindSelector and KindOther
	// events in the ASCII range; zero otherwise.
	Char rune

	// Index is the page-relative candidate index for KindSelector and
	// KindDigit events.
	Index int
}

// Classify maps ev onto the closed Kind set. selectorKeys is the ordered
// string of candidate-selection characters from the active schema; when it
// is empty, digit keys select candidates instead.
//
// Digit keys map in the conventional "1..9,0" page order: key 1 selects
// index 0 and key 0 selects index 9. The keypad digits share the mapping
// because their keysyms agree with the main row modulo 0x10.
func Classify(ev Event, selectorKeys string) Class {
	switch ev.Keycode {
	case BackSpace:
		return Class{Kind: KindBackspace}
	case Escape:
		return Class{Kind: KindEscape}
	case Return, KPEnter:
		return Class{Kind: KindConfirm}
	}
	printable := ev.Keycode >= 0x20 && ev.Keycode < 0x7f
	if selectorKeys != "" && ev.Modifiers == 0 && printable {
		if i := strings.IndexByte(selectorKeys, byte(ev.Keycode)); i >= 0 {
			return Class{Kind: KindSelector, Char: rune(ev.Keycode), Index: i}
		}
	}
	if selectorKeys == "" && ev.Modifiers == 0 &&
		(ev.Keycode >= '0' && ev.Keycode <= '9' ||
			ev.Keycode >= KP0 && ev.Keycode <= KP9) {
		return Class{Kind: KindDigit, Index: int(ev.Keycode%0x10+9) % 10}
	}
	cls := Class{Kind: KindOther}
	if printable {
		cls.Char = rune(ev.Keycode)
	}
	return cls
}
