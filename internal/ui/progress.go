// Package ui renders generation progress in the terminal.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"piecemeal/internal/buildpipeline"
)

type progressModel struct {
	title      string
	events     <-chan buildpipeline.Event
	spinner    spinner.Model
	prog       progress.Model
	items      []pkgItem
	index      map[string]int
	stageLabel string
	width      int
	done       bool
}

type pkgItem struct {
	path    string
	status  buildpipeline.Status
	stage   buildpipeline.Stage
	elapsed time.Duration
}

type eventMsg buildpipeline.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders per-package
// progress. Packages unknown up front are added when their first event
// arrives. The model quits once events is closed.
func NewProgressModel(title string, packages []string, events <-chan buildpipeline.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	m := &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		index:   make(map[string]int, len(packages)),
		width:   80,
	}
	for _, p := range packages {
		m.item(p)
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(buildpipeline.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
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
			m.prog.Width = max(msg.Width-4, 10)
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	header := m.title
	if m.stageLabel != "" {
		header += " (" + m.stageLabel + ")"
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", titleStyle.Render(header))
	nameWidth := max(m.width-26, 20)
	for _, item := range m.items {
		fmt.Fprintf(&b, "  %s %s", styleStatus(item.status).Render(fmt.Sprintf("%12s", itemLabel(item))), truncate(item.path, nameWidth))
		if item.status.Terminal() && item.elapsed > 0 {
			b.WriteString(elapsedStyle.Render("  " + item.elapsed.Round(time.Millisecond).String()))
		}
		b.WriteByte('\n')
	}

	pct := m.prog.View()
	if m.done {
		pct = m.prog.ViewAs(1.0)
	}
	fmt.Fprintf(&b, "\n%s\n", pct)
	return b.String()
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

func (m *progressModel) item(path string) *pkgItem {
	if idx, ok := m.index[path]; ok {
		return &m.items[idx]
	}
	m.index[path] = len(m.items)
	m.items = append(m.items, pkgItem{path: path, status: buildpipeline.StatusQueued})
	return &m.items[len(m.items)-1]
}

func (m *progressModel) applyEvent(ev buildpipeline.Event) tea.Cmd {
	if ev.Package == "" {
		if ev.Status == buildpipeline.StatusWorking {
			m.stageLabel = stageLabel(ev.Stage)
		} else {
			m.stageLabel = ""
		}
		return nil
	}
	it := m.item(ev.Package)
	if it.status.Terminal() {
		return nil
	}
	it.status = ev.Status
	it.stage = ev.Stage
	it.elapsed = ev.Elapsed
	return m.prog.SetPercent(m.percent())
}

// percent is the mean progress of all packages; a working package counts
// by the weight of its stage.
func (m *progressModel) percent() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		if item.status.Terminal() {
			total++
			continue
		}
		total += stages[item.stage].weight
	}
	return total / float64(len(m.items))
}

var stages = map[buildpipeline.Stage]struct {
	label  string
	weight float64
}{
	buildpipeline.StageLoad:     {"loading", 0.1},
	buildpipeline.StageResolve:  {"resolving", 0.4},
	buildpipeline.StageGenerate: {"generating", 0.7},
	buildpipeline.StageWrite:    {"writing", 0.9},
}

func stageLabel(stage buildpipeline.Stage) string { return stages[stage].label }

func itemLabel(item pkgItem) string {
	if item.status == buildpipeline.StatusWorking {
		return stageLabel(item.stage)
	}
	return string(item.status)
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	elapsedStyle = lipgloss.NewStyle().Faint(true)
	statusColors = map[buildpipeline.Status]lipgloss.Color{
		buildpipeline.StatusDone:    "2",
		buildpipeline.StatusError:   "1",
		buildpipeline.StatusWorking: "6",
	}
)

func styleStatus(status buildpipeline.Status) lipgloss.Style {
	c, ok := statusColors[status]
	if !ok {
		c = "7"
	}
	return lipgloss.NewStyle().Foreground(c)
}

// truncate cuts value to width terminal cells, marking the cut with "...".
// The marker counts towards width.
func truncate(value string, width int) string {
	switch {
	case width <= 0 || runewidth.StringWidth(value) <= width:
		return value
	case width <= 3:
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
