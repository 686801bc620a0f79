package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "poll":
		pollDevices()
	case "keys":
		watchKeys(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI port utility")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list         - List all MIDI ports")
	fmt.Println("  poll         - Poll for device changes")
	fmt.Println("  keys <name>  - Print notes from a keyboard port")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a keyboard to test. Ctrl+C to exit.")

	last := ""

	for {
		ins := midi.GetInPorts()

		var names []string
		for _, p := range ins {
			names = append(names, p.String())
		}

		current := strings.Join(names, ",")
		if current != last {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", names)
			last = current
		}

		time.Sleep(2 * time.Second)
	}
}

func watchKeys(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: midiports keys <port name substring>")
		return
	}
	want := strings.ToLower(args[0])

	var inPort drivers.In
	for _, p := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(p.String()), want) {
			inPort = p
			break
		}
	}
	if inPort == nil {
		fmt.Printf("No input port matching %q\n", args[0])
		return
	}

	fmt.Printf("Listening on %s (Ctrl+C to exit)\n", inPort.String())

	stop, err := midi.ListenTo(inPort, func(msg midi.Message, timestampms int32) {
		var ch, note, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &note, &vel):
			fmt.Printf("  on  note=%3d vel=%3d ch=%d\n", note, vel, ch)
		case msg.GetNoteEnd(&ch, &note):
			fmt.Printf("  off note=%3d         ch=%d\n", note, ch)
		}
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer stop()

	select {} // run until killed
}
