package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/upnpctl/internal/protocol"
)

const (
	pruneInterval = 5 * time.Second
	maxLogLines   = 6
)

// Source supplies the monitor's network operations. Search and Describe run
// inside tea.Cmd goroutines; Events may be nil to disable live updates.
type Source struct {
	Search   func(ctx context.Context) ([]protocol.Announcement, error)
	Events   <-chan protocol.PresenceEvent
	Describe func(ctx context.Context, location string) (protocol.DeviceDescription, error)
}

// Messages for async operations
type searchStartMsg struct{}

type searchDoneMsg struct {
	devices []protocol.Announcement
	err     error
}

type presenceMsg struct {
	event protocol.PresenceEvent
}

type feedClosedMsg struct{}

type describeDoneMsg struct {
	key  string
	desc protocol.DeviceDescription
	err  error
}

type pruneTickMsg time.Time

// monitorKeyMap defines key bindings for the monitor screen
type monitorKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Describe key.Binding
	Rescan   key.Binding
	Clear    key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Describe, k.Rescan, k.Clear, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Describe},
		{k.Rescan, k.Clear, k.Quit},
	}
}

func newMonitorKeyMap() monitorKeyMap {
	return monitorKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Describe: key.NewBinding(
			key.WithKeys("enter", "d"),
			key.WithHelp("enter", "describe"),
		),
		Rescan: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "rescan"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// entryItem wraps an Entry for use with bubbles/list
type entryItem struct {
	entry Entry
}

func (i entryItem) FilterValue() string {
	return i.entry.Name() + " " + i.entry.Device.USN + " " + i.entry.Device.Location
}

func (i entryItem) Title() string {
	return statusBadge(i.entry.Status) + " " + i.entry.Name()
}

func (i entryItem) Description() string {
	parts := []string{i.entry.Device.Location}
	if i.entry.Device.ST != "" {
		parts = append(parts, i.entry.Device.ST)
	}
	parts = append(parts, "seen "+i.entry.LastSeen.Format("15:04:05"))
	return strings.Join(parts, " • ")
}

func statusBadge(s Status) string {
	switch s {
	case StatusUpdated:
		return UpdateStyle.Render("◆")
	case StatusGone:
		return GoneStyle.Render("○")
	default:
		return AliveStyle.Render("●")
	}
}

// MonitorModel is the live device monitor screen
type MonitorModel struct {
	ctx      context.Context
	source   Source
	registry *Registry

	Searching   bool
	SearchStart time.Time
	Err         error
	FeedClosed  bool
	Describing  string
	Log         []string

	DeviceList list.Model
	Spinner    spinner.Model
	Help       help.Model
	Keys       monitorKeyMap
	Width      int
	Height     int
}

// NewMonitorModel creates a monitor bound to ctx. Cancelling ctx aborts any
// in-flight search or description fetch.
func NewMonitorModel(ctx context.Context, source Source) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	delegate := list.NewDefaultDelegate()
	deviceList := list.New([]list.Item{}, delegate, DefaultWidth-4, DefaultHeight-12)
	deviceList.Title = "Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetShowHelp(false)
	deviceList.SetFilteringEnabled(true)
	deviceList.Styles.Title = TitleStyle

	return MonitorModel{
		ctx:        ctx,
		source:     source,
		registry:   NewRegistry(),
		DeviceList: deviceList,
		Spinner:    s,
		Help:       help.New(),
		Keys:       newMonitorKeyMap(),
	}
}

// Registry exposes the model's device registry
func (m MonitorModel) Registry() *Registry {
	return m.registry
}

// Init starts the first search, the presence feed and the prune ticker
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return searchStartMsg{} },
		m.searchCmd(),
		m.waitForPresence(),
		pruneTick(),
		m.Spinner.Tick,
	)
}

// Update handles messages and updates the model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// typing into the filter must not trigger shortcuts
		if m.DeviceList.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Rescan):
			if !m.Searching {
				m.Err = nil
				return m, tea.Batch(
					func() tea.Msg { return searchStartMsg{} },
					m.searchCmd(),
					m.Spinner.Tick,
				)
			}
			return m, nil
		case key.Matches(msg, m.Keys.Clear):
			m.registry.Clear()
			m.Log = nil
			return m, m.refreshList()
		case key.Matches(msg, m.Keys.Describe):
			return m, m.describeSelected()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetSize(msg.Width-4, max(msg.Height-12-maxLogLines, 4))
		return m, nil

	case searchStartMsg:
		m.Searching = true
		m.SearchStart = time.Now()
		return m, nil

	case searchDoneMsg:
		m.Searching = false
		m.Err = msg.err
		added := 0
		for _, a := range msg.devices {
			if m.registry.Observe(a, "search") {
				added++
			}
		}
		m.appendLog(fmt.Sprintf("search: %d responses, %d new", len(msg.devices), added))
		return m, m.refreshList()

	case presenceMsg:
		if changed := m.registry.Apply(msg.event); changed != "" {
			m.appendLog(msg.event.String())
		}
		return m, tea.Batch(m.refreshList(), m.waitForPresence())

	case feedClosedMsg:
		m.FeedClosed = true
		m.appendLog("notification listener stopped")
		return m, nil

	case describeDoneMsg:
		m.Describing = ""
		if msg.err != nil {
			m.appendLog("describe failed: " + msg.err.Error())
			return m, nil
		}
		m.registry.SetDescription(msg.key, msg.desc)
		return m, m.refreshList()

	case pruneTickMsg:
		for _, k := range m.registry.Prune() {
			m.appendLog("expired " + k)
		}
		return m, tea.Batch(m.refreshList(), pruneTick())

	case spinner.TickMsg:
		if !m.Searching && m.Describing == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.DeviceList, cmd = m.DeviceList.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *MonitorModel) appendLog(line string) {
	line = time.Now().Format("15:04:05") + "  " + line
	m.Log = append(m.Log, line)
	if len(m.Log) > maxLogLines {
		m.Log = m.Log[len(m.Log)-maxLogLines:]
	}
}

func (m *MonitorModel) refreshList() tea.Cmd {
	entries := m.registry.Entries()
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = entryItem{entry: e}
	}
	return m.DeviceList.SetItems(items)
}

func (m *MonitorModel) selected() (Entry, bool) {
	item, ok := m.DeviceList.SelectedItem().(entryItem)
	if !ok {
		return Entry{}, false
	}
	return m.registry.Get(item.entry.Key())
}

func (m *MonitorModel) describeSelected() tea.Cmd {
	e, ok := m.selected()
	if !ok || m.source.Describe == nil || e.Device.Location == "" || m.Describing != "" {
		return nil
	}
	m.Describing = e.Key()

	ctx, describe := m.ctx, m.source.Describe
	entryKey, location := e.Key(), e.Device.Location
	return tea.Batch(m.Spinner.Tick, func() tea.Msg {
		desc, err := describe(ctx, location)
		return describeDoneMsg{key: entryKey, desc: desc, err: err}
	})
}

func (m MonitorModel) searchCmd() tea.Cmd {
	if m.source.Search == nil {
		return nil
	}
	ctx, search := m.ctx, m.source.Search
	return func() tea.Msg {
		devices, err := search(ctx)
		return searchDoneMsg{devices: devices, err: err}
	}
}

func (m MonitorModel) waitForPresence() tea.Cmd {
	if m.source.Events == nil {
		return nil
	}
	ch := m.source.Events
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return feedClosedMsg{}
		}
		return presenceMsg{event: ev}
	}
}

func pruneTick() tea.Cmd {
	return tea.Tick(pruneInterval, func(t time.Time) tea.Msg {
		return pruneTickMsg(t)
	})
}

// View renders the monitor screen
func (m MonitorModel) View() string {
	width := m.Width
	if width == 0 {
		width = DefaultWidth
	}

	var b strings.Builder
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")

	if m.registry.Len() == 0 && !m.Searching {
		b.WriteString(SubtitleStyle.Render("  No devices yet. Waiting for announcements, press r to search again."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.DeviceList.View())
		b.WriteString("\n")
	}

	if e, ok := m.selected(); ok && e.Description != nil {
		b.WriteString(m.renderDetail(e, width))
		b.WriteString("\n")
	}

	if len(m.Log) > 0 {
		b.WriteString("\n")
		b.WriteString(LogStyle.Render(strings.Join(m.Log, "\n")))
	}

	return RenderApplicationContainer(b.String(), m.Help.View(m.Keys), m.Width, m.Height)
}

func (m MonitorModel) renderStatus() string {
	present, gone := m.registry.Counts()
	status := fmt.Sprintf("%d present • %d gone", present, gone)

	var parts []string
	switch {
	case m.Searching:
		elapsed := time.Since(m.SearchStart).Round(time.Second)
		parts = append(parts, SpinnerStyle.Render(m.Spinner.View()+" searching ("+elapsed.String()+")"))
	case m.Describing != "":
		parts = append(parts, SpinnerStyle.Render(m.Spinner.View()+" describing"))
	}
	parts = append(parts, SubtitleStyle.Render(status))
	if m.FeedClosed {
		parts = append(parts, GoneStyle.Render("live updates off"))
	}
	if m.Err != nil {
		parts = append(parts, RenderError("search failed: "+m.Err.Error()))
	}
	return "  " + strings.Join(parts, "  ")
}

func (m MonitorModel) renderDetail(e Entry, width int) string {
	d := e.Description
	rows := [][2]string{
		{"Name", d.FriendlyName},
		{"Type", d.DeviceType},
		{"Manufacturer", d.Manufacturer},
		{"Model", strings.TrimSpace(d.ModelName + " " + d.ModelNumber)},
		{"UDN", d.UDN},
		{"Server", e.Device.Server},
	}

	var lines []string
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		lines = append(lines, DetailKeyStyle.Render(r[0]+":")+" "+r[1])
	}
	for _, s := range d.Services {
		lines = append(lines, DetailKeyStyle.Render("Service:")+" "+s.ServiceType)
	}

	boxWidth := min(width-8, MaxContentWidth)
	return lipgloss.NewStyle().MarginLeft(2).Render(
		DetailBoxStyle.Width(boxWidth).Render(strings.Join(lines, "\n")),
	)
}
