// Package ui renders run progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"arbor/internal/checker"
)

// maxRows bounds the file list; older finished files scroll away.
const maxRows = 12

type progressModel struct {
	title    string
	events   <-chan checker.Event
	spinner  spinner.Model
	prog     progress.Model
	items    []fileItem
	index    map[string]int
	finished int
	reported int // доставленные события по всем файлам
	failed   int
	width    int
	done     bool
}

type fileItem struct {
	path   string
	phase  phase
	events int
}

func (it fileItem) final() bool { return it.phase >= phaseDone }

// phase сворачивает Stage и Status одного файла в одну шкалу.
type phase uint8

const (
	phaseQueued phase = iota
	phaseParse
	phaseWalk
	phaseReport
	phaseDone
	phaseCached
	phaseFailed
)

var phaseNames = [...]string{"queued", "parsing", "walking", "reporting", "done", "cached", "error"}

// phaseWeight is the share of a file's work counted towards the bar.
var phaseWeight = [...]float64{0, 0.3, 0.7, 0.9, 1, 1, 1}

var phaseColor = [...]lipgloss.Color{"7", "6", "6", "6", "2", "8", "1"}

func (p phase) String() string { return phaseNames[p] }

func (p phase) render() string {
	return lipgloss.NewStyle().Foreground(phaseColor[p]).Render(fmt.Sprintf("%10s", p))
}

func phaseOf(ev checker.Event) phase {
	switch ev.Status {
	case checker.StatusDone:
		return phaseDone
	case checker.StatusCached:
		return phaseCached
	case checker.StatusError:
		return phaseFailed
	case checker.StatusWorking:
		switch ev.Stage {
		case checker.StageParse:
			return phaseParse
		case checker.StageWalk:
			return phaseWalk
		case checker.StageReport:
			return phaseReport
		}
	}
	return phaseQueued
}

type eventMsg checker.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders the progress of
// a check run over files. The model quits when events is closed.
func NewProgressModel(title string, files []string, events <-chan checker.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]fileItem, 0, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		items = append(items, fileItem{path: file})
		index[file] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(checker.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	var b strings.Builder
	lead := m.spinner.View()
	if m.done {
		lead = "done:"
	}
	header := fmt.Sprintf("%s %s (%d/%d files, %d events)", lead, m.title, m.finished, len(m.items), m.reported)
	b.WriteString(lipgloss.NewStyle().Bold(true).Render(header) + "\n\n")

	nameWidth := max(m.width-24, 20)
	for _, item := range m.visible() {
		row := "  " + item.phase.render() + " " + truncate(item.path, nameWidth)
		if item.events > 0 {
			row += fmt.Sprintf(" (%d)", item.events)
		}
		b.WriteString(row + "\n")
	}
	if m.failed > 0 {
		msg := fmt.Sprintf("%d file(s) failed", m.failed)
		b.WriteString("\n  " + lipgloss.NewStyle().Foreground(phaseColor[phaseFailed]).Render(msg) + "\n")
	}

	bar := m.prog.View()
	if m.done {
		bar = m.prog.ViewAs(1.0)
	}
	b.WriteString("\n" + bar + "\n")
	return b.String()
}

// visible picks at most maxRows items: files in progress first, then the
// most recently finished ones, in input order.
func (m *progressModel) visible() []fileItem {
	if len(m.items) <= maxRows {
		return m.items
	}
	start := 0
	for start < len(m.items) && m.items[start].final() {
		start++
	}
	start = max(min(start, len(m.items)-maxRows), 0)
	return m.items[start : start+maxRows]
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev checker.Event) tea.Cmd {
	if ev.File == "" {
		// событие всего прогона
		if ev.Status == checker.StatusDone {
			m.reported = ev.Events
		}
		return nil
	}
	idx, ok := m.index[ev.File]
	if !ok || m.items[idx].final() {
		return nil
	}
	item := &m.items[idx]
	item.phase = phaseOf(ev)
	if item.final() {
		item.events = ev.Events
		m.finished++
		m.reported += ev.Events
		if item.phase == phaseFailed {
			m.failed++
		}
	}
	return m.prog.SetPercent(m.completion())
}

// completion is the weighted share of work done over all files.
func (m *progressModel) completion() float64 {
	var sum float64
	for _, it := range m.items {
		sum += phaseWeight[it.phase]
	}
	return sum / float64(len(m.items))
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	// ширина хвоста уже входит в width
	return runewidth.Truncate(value, width, "...")
}
