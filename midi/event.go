package midi

// NoteEvent is a key press or release from a MIDI keyboard.
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
	On       bool
}

// Keyboard is the interface for MIDI note input devices.
type Keyboard interface {
	ID() string

	// NoteEvents streams presses and releases. Closed when the device
	// goes away.
	NoteEvents() <-chan NoteEvent

	Close() error
}
