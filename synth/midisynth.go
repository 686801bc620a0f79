package synth

import (
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-duet/debug"
)

// Velocity used for every outgoing note.
const velocity = 100

// MIDISynth sends notes to a MIDI output port.
type MIDISynth struct {
	port    drivers.Out
	send    func(msg gomidi.Message) error
	channel uint8
}

// NewMIDISynth opens the first output port whose name contains portName
// (case-insensitive).
func NewMIDISynth(portName string, channel uint8) (*MIDISynth, error) {
	want := strings.ToLower(portName)

	var port drivers.Out
	for _, p := range gomidi.GetOutPorts() {
		if strings.Contains(strings.ToLower(p.String()), want) {
			port = p
			break
		}
	}
	if port == nil {
		return nil, fmt.Errorf("no MIDI output port matching %q", portName)
	}

	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %q: %w", port.String(), err)
	}

	debug.Log("synth", "opened output %q channel %d", port.String(), channel)
	return &MIDISynth{port: port, send: send, channel: channel}, nil
}

func (s *MIDISynth) Attack(pitch uint8) {
	if err := s.send(gomidi.NoteOn(s.channel, pitch, velocity)); err != nil {
		debug.Error("synth", "note on %d: %v", pitch, err)
	}
}

func (s *MIDISynth) Release(pitch uint8) {
	if err := s.send(gomidi.NoteOff(s.channel, pitch)); err != nil {
		debug.Error("synth", "note off %d: %v", pitch, err)
	}
}

// AttackRelease sounds the pitch and schedules its release.
func (s *MIDISynth) AttackRelease(pitch uint8, d time.Duration) {
	s.Attack(pitch)
	go func() {
		time.Sleep(d)
		s.Release(pitch)
	}()
}

func (s *MIDISynth) Close() error {
	gomidi.CloseDriver()
	return nil
}
