package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"go-duet/config"
	"go-duet/debug"
	"go-duet/duet"
	"go-duet/midi"
	"go-duet/model"
	"go-duet/synth"
	"go-duet/theme"
	"go-duet/tui"
)

func main() {
	if os.Getenv("DUET_DEBUG") != "" {
		debug.Enable()
		defer debug.Disable()
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Load theme
	palette := theme.Default()
	if cfg.UI.Palette != "" {
		if p, err := theme.LoadGPL(cfg.UI.Palette); err == nil {
			palette = p
		} else {
			debug.Error("main", "palette %q: %v", cfg.UI.Palette, err)
		}
	}
	th := theme.New(palette)

	// Sound output: MIDI port if configured, otherwise silent
	var syn synth.Synth = synth.Null{}
	if cfg.Synth.PortName != "" {
		ms, err := synth.NewMIDISynth(cfg.Synth.PortName, uint8(cfg.Synth.Channel))
		if err != nil {
			fmt.Printf("Synth port unavailable (%v), running silent\n", err)
		} else {
			syn = ms
		}
	}
	defer syn.Close()

	// Generative model
	var mdl model.Model
	switch cfg.Model.Kind {
	case config.ModelRemote:
		mdl = model.NewRemote(cfg.Model.URL)
	default:
		mdl = model.NewMarkov()
	}

	// Core session
	sess := duet.NewSession(duet.NewClock(), mdl, syn, duet.Config{
		Enabled: !cfg.UI.StartOff,
	})

	// MIDI keyboard manager (handles hot-plug)
	ignore := append([]string{cfg.Synth.PortName}, cfg.IgnorePorts...)
	deviceMgr := midi.NewDeviceManager(ignore)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go deviceMgr.Run(ctx)
	sess.Start(ctx)

	fmt.Println("go-duet")
	fmt.Println("Play the home row; pause and the AI answers")
	fmt.Println("Connect a MIDI keyboard any time - it'll be detected automatically")
	fmt.Println("")

	// Create and run TUI
	m := tui.NewModel(sess, deviceMgr, th)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
