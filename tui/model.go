package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-duet/duet"
	"go-duet/midi"
	"go-duet/theme"
)

// pianoKey is one renderable key of the on-screen keyboard.
type pianoKey struct {
	pitch uint8
	label string
	black bool
}

// Two-row QWERTY piano: home row is the white keys, the row above is
// the black keys. Covers the full playable span chromatically.
var whiteKeys = []string{"a", "s", "d", "f", "g", "h", "j", "k", "l", ";", "'"}
var whiteOffsets = []int{0, 2, 4, 5, 7, 9, 11, 12, 14, 16, 17}
var blackKeys = []string{"w", "e", "t", "y", "u", "o", "p"}
var blackOffsets = []int{1, 3, 6, 8, 10, 13, 15}

type Model struct {
	Session   *duet.Session
	DeviceMgr *midi.DeviceManager
	Theme     *theme.Theme

	keymap   map[string]uint8
	keys     []pianoKey // ascending by pitch
	spin     spinner.Model
	keyboard string // connected MIDI keyboard name
	quitting bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(session *duet.Session, deviceMgr *midi.DeviceManager, th *theme.Theme) Model {
	low := session.Snapshot().Range.Low

	keymap := make(map[string]uint8)
	var keys []pianoKey
	for i, k := range whiteKeys {
		p := low + uint8(whiteOffsets[i])
		keymap[k] = p
		keys = append(keys, pianoKey{pitch: p, label: k})
	}
	for i, k := range blackKeys {
		p := low + uint8(blackOffsets[i])
		keymap[k] = p
		keys = append(keys, pianoKey{pitch: p, label: k, black: true})
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	return Model{
		Session:   session,
		DeviceMgr: deviceMgr,
		Theme:     th,
		keymap:    keymap,
		keys:      keys,
		spin:      sp,
	}
}

func ListenForUpdates(session *duet.Session) tea.Cmd {
	return func() tea.Msg {
		<-session.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event := <-deviceMgr.Events()
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Session),
		ListenForDevices(m.DeviceMgr),
		m.spin.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "tab":
			m.Session.Toggle()

		default:
			// One always-registered handler; the session's turn gate
			// decides whether a press does anything.
			if pitch, ok := m.keymap[msg.String()]; ok {
				m.Session.Tap(pitch)
			}
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Session)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		if event.Type == midi.DeviceConnected {
			m.keyboard = event.ID

			// Forward keyboard notes into the session.
			kb := event.Keyboard
			go func() {
				for ev := range kb.NoteEvents() {
					if ev.On {
						m.Session.KeyDown(ev.Note)
					} else {
						m.Session.KeyUp(ev.Note)
					}
				}
			}()
		} else if event.Type == midi.DeviceDisconnected {
			if m.keyboard == event.ID {
				m.keyboard = ""
			}
		}
		return m, ListenForDevices(m.DeviceMgr)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	snap := m.Session.Snapshot()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())

	ai := "AI:off"
	if snap.Enabled {
		ai = "AI:on"
	}
	kb := ""
	if m.keyboard != "" {
		kb = "  kb:" + m.keyboard
	}
	header := headerStyle.Render(fmt.Sprintf("go-duet  %s%s", ai, kb))

	piano := m.renderPiano(snap)
	status := m.renderStatus(snap)
	help := dimStyle.Render("a-' / w-p:play  tab:toggle ai  q:quit")

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(piano)
	out.WriteString("\n")
	out.WriteString(status)
	out.WriteString("\n\n")
	out.WriteString(help)

	return out.String()
}

// renderPiano draws the black-key row above the white-key row. Held keys
// light up in the human color, AI-played keys in the accent color.
func (m Model) renderPiano(snap duet.Snapshot) string {
	held := make(map[uint8]bool, len(snap.Held))
	for _, p := range snap.Held {
		held[p] = true
	}
	lit := make(map[uint8]bool, len(snap.Lit))
	for _, p := range snap.Lit {
		lit[p] = true
	}

	keyStyle := func(k pianoKey) lipgloss.Style {
		st := lipgloss.NewStyle().Foreground(m.Theme.BG())
		switch {
		case held[k.pitch]:
			return st.Background(m.Theme.HumanKey())
		case lit[k.pitch]:
			return st.Background(m.Theme.AiKey())
		case k.black:
			return lipgloss.NewStyle().Foreground(m.Theme.FG()).Background(m.Theme.BG())
		default:
			return lipgloss.NewStyle().Foreground(m.Theme.BG()).Background(m.Theme.FG())
		}
	}

	// Black row: a cell in each gap between whites that has a black key.
	blackByOffset := make(map[int]pianoKey)
	for _, k := range m.keys {
		if k.black {
			blackByOffset[int(k.pitch-snap.Range.Low)] = k
		}
	}

	var top strings.Builder
	top.WriteString("  ")
	for i := 0; i < len(whiteKeys)-1; i++ {
		if bk, ok := blackByOffset[whiteOffsets[i]+1]; ok {
			top.WriteString(keyStyle(bk).Render(bk.label + " "))
			top.WriteString("  ")
		} else {
			top.WriteString("    ")
		}
	}

	var bottom strings.Builder
	for _, k := range m.keys {
		if k.black {
			continue
		}
		bottom.WriteString(keyStyle(k).Render(" " + k.label + " "))
		bottom.WriteString(" ")
	}

	return top.String() + "\n" + bottom.String() + "\n"
}

func (m Model) renderStatus(snap duet.Snapshot) string {
	fgStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	switch snap.Status {
	case duet.StatusLoading:
		return m.spin.View() + fgStyle.Render("warming up the model...")
	case duet.StatusReady:
		return fgStyle.Render("play something")
	case duet.StatusListening:
		if snap.Turn == duet.AiTurn {
			return fgStyle.Render("listening... responding")
		}
		return fgStyle.Render("listening...")
	case duet.StatusYourTurn:
		return fgStyle.Render("your turn!")
	case duet.StatusError:
		if snap.Err != nil {
			return warnStyle.Render(fmt.Sprintf("ai stumbled: %v", snap.Err))
		}
		return warnStyle.Render("ai stumbled, keep playing")
	case duet.StatusOff:
		return warnStyle.Render("ai off")
	}
	return ""
}
