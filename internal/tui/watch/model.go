package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/hookgate/internal/journal"
)

const historyLimit = 50

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	source    Source
	publicURL string

	width  int
	height int

	// State
	totals    map[journal.Outcome]int64
	lastFetch time.Time

	// UI state
	theme Theme
	table table.Model

	// Error display
	lastError string
}

// New creates a new watch TUI model. publicURL may be empty when the server
// is not connected.
func New(source Source, publicURL string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 12},
			{Title: "Feed", Width: 20},
			{Title: "Outcome", Width: 12},
			{Title: "Bytes", Width: 8},
			{Title: "Remote", Width: 21},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		source:    source,
		publicURL: publicURL,
		totals:    make(map[journal.Outcome]int64),
		theme:     NewDefaultTheme(),
		table:     t,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchSnapshot(m.source, historyLimit),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 10; h > 3 {
			m.table.SetHeight(h)
		}

	case tickMsg:
		return m, tea.Batch(
			fetchSnapshot(m.source, historyLimit),
			tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		)

	case snapshotMsg:
		m.totals = msg.totals
		m.table.SetRows(deliveryRows(msg.deliveries))
		m.lastFetch = time.Now()
		m.lastError = ""
		return m, nil

	case errMsg:
		m.lastError = msg.Error()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func deliveryRows(deliveries []*journal.Delivery) []table.Row {
	rows := make([]table.Row, 0, len(deliveries))
	for _, d := range deliveries {
		rows = append(rows, table.Row{
			d.ReceivedAt.Local().Format("15:04:05"),
			d.Feed,
			string(d.Outcome),
			fmt.Sprintf("%d", d.BodyBytes),
			d.RemoteAddr,
		})
	}
	return rows
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing watch..."
	}

	header := m.renderHeader()
	deliveries := m.theme.Border.Render(m.table.View())

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.Error.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := m.theme.Dim.Render(" [q] Quit • [↑/↓] Scroll Deliveries")

	parts := []string{header, deliveries}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

// renderHeader shows the public endpoint and running outcome totals.
func (m Model) renderHeader() string {
	title := m.theme.Title.Render("hookgate watch")

	endpoint := m.theme.Dim.Render("endpoint: ")
	if m.publicURL != "" {
		endpoint += m.theme.Highlight.Render(m.publicURL)
	} else {
		endpoint += m.theme.Dim.Render("(not connected)")
	}

	totals := lipgloss.JoinHorizontal(lipgloss.Top,
		m.theme.Accepted.Render(fmt.Sprintf(" accepted %d ", m.totals[journal.OutcomeAccepted])),
		m.theme.Rejected.Render(fmt.Sprintf(" rejected %d ", m.totals[journal.OutcomeRejected])),
		m.theme.Unknown.Render(fmt.Sprintf(" unknown %d ", m.totals[journal.OutcomeUnknownFeed])),
	)

	var freshness string
	if !m.lastFetch.IsZero() {
		freshness = m.theme.Dim.Render(fmt.Sprintf(" updated %s", m.lastFetch.Format("15:04:05")))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, title, freshness),
		endpoint,
		totals,
	)
}
