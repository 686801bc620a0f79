package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-duet/debug"
)

// DeviceEvent is emitted when keyboards connect/disconnect.
type DeviceEvent struct {
	Type     DeviceEventType
	Keyboard Keyboard
	ID       string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug detection of MIDI keyboards. Connect a
// keyboard any time; it is picked up on the next poll.
type DeviceManager struct {
	keyboards map[string]Keyboard
	mu        sync.RWMutex
	events    chan DeviceEvent
	pollRate  time.Duration
	ignore    []string // port name substrings that are not keyboards
}

// NewDeviceManager creates a device manager. ignore lists port-name
// substrings to skip (the synth output loops back as an input on some
// systems).
func NewDeviceManager(ignore []string) *DeviceManager {
	return &DeviceManager{
		keyboards: make(map[string]Keyboard),
		events:    make(chan DeviceEvent, 16),
		pollRate:  time.Second,
		ignore:    ignore,
	}
}

// Events returns a channel of device connect/disconnect events.
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Keyboards returns a snapshot of connected keyboards.
func (dm *DeviceManager) Keyboards() map[string]Keyboard {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make(map[string]Keyboard, len(dm.keyboards))
	for k, v := range dm.keyboards {
		out[k] = v
	}
	return out
}

// Run starts the polling loop (blocking - run in goroutine).
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()

	var inPorts []drivers.In
	select {
	case inPorts = <-ch:
	case <-time.After(3 * time.Second):
		// CoreMIDI is hung - skip this scan.
		// User needs to run: sudo killall coreaudiod midiserver
		return
	}

	seenIDs := make(map[string]bool)

	for i, inPort := range inPorts {
		if !dm.isKeyboard(inPort.String()) {
			continue
		}
		id := inPort.String()
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.keyboards[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		kb, err := NewKeyboardController(id, inPorts[i])
		if err != nil {
			debug.Error("midi", "open keyboard %q: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.keyboards[id] = kb
		dm.mu.Unlock()

		debug.Log("midi", "keyboard connected: %s", id)
		dm.events <- DeviceEvent{Type: DeviceConnected, Keyboard: kb, ID: id}
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.keyboards {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		kb := dm.keyboards[id]
		kb.Close()
		delete(dm.keyboards, id)
		debug.Log("midi", "keyboard disconnected: %s", id)
		dm.events <- DeviceEvent{Type: DeviceDisconnected, ID: id}
	}
	dm.mu.Unlock()
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, kb := range dm.keyboards {
		kb.Close()
	}
	dm.keyboards = make(map[string]Keyboard)
}

// isKeyboard treats any input port as a keyboard except software
// through-ports and anything explicitly ignored.
func (dm *DeviceManager) isKeyboard(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "through") || strings.Contains(lower, "rtmidi") {
		return false
	}
	for _, ig := range dm.ignore {
		if ig != "" && strings.Contains(lower, strings.ToLower(ig)) {
			return false
		}
	}
	return true
}
