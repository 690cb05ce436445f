package screen

import "errors"

var (
	// ErrKeyboardLocked is returned when input is attempted while the host owns the keyboard.
	// Callers recover by waiting with WaitForKeyboard.
	ErrKeyboardLocked = errors.New("screen: keyboard is locked")

	ErrFieldNotFound    = errors.New("screen: no unprotected field found")
	ErrTextNotFound     = errors.New("screen: text not found on screen")
	ErrProtectedField   = errors.New("screen: cursor is not in an unprotected field")
	ErrFieldOverflow    = errors.New("screen: text does not fit in field")
	ErrCursorOutOfRange = errors.New("screen: cursor position is outside of the screen")
	ErrTimeout          = errors.New("screen: timed out")
)
