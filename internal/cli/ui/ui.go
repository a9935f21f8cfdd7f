// internal/cli/ui/ui.go
// Bubble Tea front end for the flasher. The model never touches the bus;
// cmd/cli runs session operations in the background and feeds results in as
// messages.

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	psutil "github.com/shirou/gopsutil/v3/cpu"
	psmem "github.com/shirou/gopsutil/v3/mem"
)

// Action is a menu entry the operator can launch.
type Action int

const (
	ActionIdentifiers Action = iota
	ActionReadFlash
	ActionWriteFlash
	ActionWriteVin
	ActionRecover
	ActionQuit
)

var actionLabels = map[Action]string{
	ActionIdentifiers: "Read identifiers (VIN, serial, BCC, MEC, OS)",
	ActionReadFlash:   "Read flash image",
	ActionWriteFlash:  "Write flash image",
	ActionWriteVin:    "Write VIN",
	ActionRecover:     "Recovery: exit kernel, force 1x",
	ActionQuit:        "Quit",
}

var menuOrder = []Action{
	ActionIdentifiers, ActionReadFlash, ActionWriteFlash,
	ActionWriteVin, ActionRecover, ActionQuit,
}

// Messages from the operation goroutines.
type (
	// LogMsg appends one line to the log pane.
	LogMsg struct{ Line string }

	// ProgressMsg updates the transfer bar.
	ProgressMsg struct{ Percent int }

	// OpDoneMsg reports the end of a background operation.
	OpDoneMsg struct {
		Label string
		Err   error
	}

	// IdentifiersMsg carries the results of an identifier sweep.
	IdentifiersMsg struct {
		Vin    string
		Serial string
		Bcc    string
		Mec    string
		OsID   uint32
	}

	statsTickMsg time.Time
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
)

// Model is the TUI state machine: a menu, a running pane with a progress
// bar, and a scrolling log.
type Model struct {
	// Dispatch launches the selected action; cmd/cli installs it.
	Dispatch func(Action)

	cursor  int
	busy    bool
	opLabel string

	progress progress.Model
	percent  int

	logs     []string
	viewport viewport.Model
	ready    bool

	vin    string
	serial string
	notice string

	cpuPercent float64
	memPercent float64

	width  int
	height int
}

func NewModel() Model {
	return Model{
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

func (m Model) Init() tea.Cmd {
	return statsTick()
}

func statsTick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return statsTickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 8
		logHeight := msg.Height - 12
		if logHeight < 3 {
			logHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, logHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = logHeight
		}
		m.refreshLog()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.busy {
				return m, tea.Quit
			}
		case "up", "k":
			if !m.busy && m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if !m.busy && m.cursor < len(menuOrder)-1 {
				m.cursor++
			}
		case "enter":
			if m.busy {
				return m, nil
			}
			action := menuOrder[m.cursor]
			if action == ActionQuit {
				return m, tea.Quit
			}
			if m.Dispatch != nil {
				m.busy = true
				m.percent = 0
				m.opLabel = actionLabels[action]
				m.Dispatch(action)
			}
		case "c":
			if m.vin != "" {
				if err := clipboard.WriteAll(m.vin); err == nil {
					m.notice = "VIN copied to clipboard"
				}
			}
		}
		return m, nil

	case LogMsg:
		m.logs = append(m.logs, msg.Line)
		m.refreshLog()
		return m, nil

	case ProgressMsg:
		m.percent = msg.Percent
		return m, nil

	case OpDoneMsg:
		m.busy = false
		if msg.Err != nil {
			m.logs = append(m.logs, errStyle.Render(fmt.Sprintf("%s failed: %v", msg.Label, msg.Err)))
		} else {
			m.logs = append(m.logs, okStyle.Render(msg.Label+" finished"))
		}
		m.refreshLog()
		return m, nil

	case IdentifiersMsg:
		m.vin = msg.Vin
		m.serial = msg.Serial
		m.notice = "press c to copy the VIN"
		m.logs = append(m.logs,
			fmt.Sprintf("VIN %s  serial %s  BCC %s  MEC %s  OS %d", msg.Vin, msg.Serial, msg.Bcc, msg.Mec, msg.OsID))
		m.refreshLog()
		return m, nil

	case statsTickMsg:
		if percents, err := psutil.Percent(0, false); err == nil && len(percents) > 0 {
			m.cpuPercent = percents[0]
		}
		if vm, err := psmem.VirtualMemory(); err == nil {
			m.memPercent = vm.UsedPercent
		}
		return m, statsTick()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) refreshLog() {
	if !m.ready {
		return
	}
	lines := make([]string, len(m.logs))
	for i, l := range m.logs {
		lines[i] = ansi.Truncate(l, m.viewport.Width, "…")
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("pcmflash") + dimStyle.Render("  GM VPW reflashing tool") + "\n\n")

	if m.busy {
		b.WriteString(m.opLabel + "\n")
		b.WriteString(m.progress.ViewAs(float64(m.percent)/100.0) + "\n\n")
	} else {
		for i, action := range menuOrder {
			cursor := "  "
			label := actionLabels[action]
			if i == m.cursor {
				cursor = "> "
				label = selectedStyle.Render(label)
			}
			b.WriteString(cursor + label + "\n")
		}
		b.WriteString("\n")
	}

	if m.ready {
		b.WriteString(dimStyle.Render("log") + "\n")
		b.WriteString(m.viewport.View() + "\n")
	}

	status := fmt.Sprintf(" cpu %.0f%%  mem %.0f%% ", m.cpuPercent, m.memPercent)
	if m.notice != "" {
		status += "· " + m.notice + " "
	}
	if m.width > 0 {
		status = ansi.Truncate(status, m.width, "")
	}
	b.WriteString(statusStyle.Render(status))

	return b.String()
}
