package review

import (
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dozie/my-job-hunter/internal/model"
)

// Store is the slice of the job store the review surface mutates.
type Store interface {
	MarkApplied(id int64) error
}

// Lines per record item in the list view (title + subtitle + blank separator).
const recordItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")) // bright blue

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	recordTitleStyle = lipgloss.NewStyle().
				Bold(true)

	recordSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")). // bright white
				Background(lipgloss.Color("24"))  // dark blue bg

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	scoreHighStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42")) // green

	scoreMidStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")) // orange

	scoreLowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")) // dim gray

	appliedBadgeStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(16)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)

	bodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// appliedMsg is sent when an async MarkApplied call completes.
type appliedMsg struct {
	id  int64
	err error
}

type reviewModel struct {
	records      []model.JobRecord
	listViewport viewport.Model
	cursor       int
	width        int
	height       int
	ready        bool

	// Detail view state
	view            viewState
	detailRecord    model.JobRecord
	detailViewport  viewport.Model
	showDescription bool
	applyError      string

	store Store
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case appliedMsg:
		if msg.err != nil {
			m.applyError = fmt.Sprintf("mark applied failed: %v", msg.err)
		} else {
			m.applyError = ""
			now := time.Now().UTC()
			m.setApplied(msg.id, &now)
		}
		if m.view == viewDetail {
			m.detailViewport.SetContent(m.renderDetail())
		}
		m.recalcContent()
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m reviewModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		m.cursor = clamp(m.cursor-1, 0, max(len(m.records)-1, 0))
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.cursor = clamp(m.cursor+1, 0, max(len(m.records)-1, 0))
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	case "a":
		if len(m.records) > 0 && m.records[m.cursor].AppliedAt == nil {
			return m, m.markAppliedCmd(m.records[m.cursor].ID)
		}
		return m, nil
	case "o":
		if len(m.records) > 0 {
			openURL(m.records[m.cursor].Link)
		}
		return m, nil
	}

	// Forward other keys (pgup/pgdn/home/end) to the viewport.
	var cmd tea.Cmd
	m.listViewport, cmd = m.listViewport.Update(msg)
	return m, cmd
}

func (m reviewModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		m.applyError = ""
		return m, nil
	case "o":
		openURL(m.detailRecord.Link)
		return m, nil
	case "a":
		if m.detailRecord.AppliedAt == nil {
			return m, m.markAppliedCmd(m.detailRecord.ID)
		}
		return m, nil
	case "d":
		if m.detailRecord.Description != "" {
			m.showDescription = !m.showDescription
			m.detailViewport.SetContent(m.renderDetail())
			m.detailViewport.SetYOffset(0)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m reviewModel) markAppliedCmd(id int64) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return appliedMsg{id: id, err: store.MarkApplied(id)}
	}
}

// setApplied stamps the record in the list and, when open, the detail copy.
func (m *reviewModel) setApplied(id int64, at *time.Time) {
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].AppliedAt = at
			break
		}
	}
	if m.detailRecord.ID == id {
		m.detailRecord.AppliedAt = at
	}
}

func (m *reviewModel) ensureCursorVisible() {
	cursorTop := m.cursor * recordItemHeight
	cursorBottom := cursorTop + recordItemHeight - 1

	if cursorTop < m.listViewport.YOffset {
		m.listViewport.SetYOffset(cursorTop)
	} else if cursorBottom >= m.listViewport.YOffset+m.listViewport.Height {
		m.listViewport.SetYOffset(cursorBottom - m.listViewport.Height + 1)
	}
}

func (m reviewModel) openDetailView() (tea.Model, tea.Cmd) {
	if len(m.records) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailRecord = m.records[m.cursor]
	m.showDescription = false
	m.applyError = ""
	m.detailViewport = viewport.New(m.width-4, m.height-4)
	m.detailViewport.SetContent(m.renderDetail())
	return m, nil
}

func (m *reviewModel) recalcLayout() {
	// Border left/right (2) on the single pane.
	paneWidth := max(m.width-2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.listViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.listViewport.Width = paneWidth
		m.listViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *reviewModel) recalcContent() {
	m.listViewport.SetContent(renderRecords(m.records, m.cursor))
}

func (m reviewModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.view == viewDetail {
		return m.viewDetail()
	}

	return m.viewList()
}

func (m reviewModel) viewList() string {
	header := headerStyle.Render(fmt.Sprintf(" Ranked postings (%d)", len(m.records)))
	pane := borderStyle.Width(m.listViewport.Width).Render(m.listViewport.View())

	statusText := " ↑/↓ cursor  Enter detail  a applied  o open URL  q quit"
	if m.applyError != "" {
		statusText = " " + m.applyError
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return header + "\n" + pane + "\n" + statusBar
}

func (m reviewModel) viewDetail() string {
	title := detailTitleStyle.Render("Posting Details")

	border := borderStyle.Width(m.width - 2)
	content := border.Render(m.detailViewport.View())

	statusText := " o open URL  a applied  esc/backspace back  ↑/↓ scroll  q quit"
	if m.detailRecord.Description != "" {
		statusText = " o open URL  a applied  d description  esc/backspace back  ↑/↓ scroll  q quit"
	}
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return title + "\n" + content + "\n" + statusBar
}

func (m reviewModel) renderDetail() string {
	rec := m.detailRecord
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	addField("Title", rec.Title)
	addField("Company", rec.Company)
	addField("Location", rec.Location)
	addField("Source", rec.SourceName)

	b.WriteByte('\n')
	b.WriteString(detailLabelStyle.Render("Score"))
	b.WriteString(scoreStyle(rec.Score).Render(fmt.Sprintf("%.2f", rec.Score)))
	if rec.ScoredFromDefaults {
		b.WriteString(hintStyle.Render("  (scored from fallback metadata)"))
	}
	b.WriteByte('\n')
	for _, dim := range sortedDimensions(rec.ScoreBreakdown) {
		b.WriteString(detailLabelStyle.Render("  " + dim))
		b.WriteString(detailValueStyle.Render(fmt.Sprintf("%.2f", rec.ScoreBreakdown[dim])))
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	addField("Seniority", rec.Seniority)
	addField("Role type", rec.RoleType)
	addField("Interview", rec.InterviewStyle)
	if rec.RemoteEligible {
		addField("Remote", "yes")
	}
	addField("Compensation", rec.Compensation)

	b.WriteByte('\n')
	addField("First seen", fmtUTC(rec.CreatedAt))
	addField("Last seen", fmtUTC(rec.UpdatedAt))
	if rec.AppliedAt != nil {
		addField("Applied", fmtUTC(*rec.AppliedAt))
	}
	addField("Link", rec.Link)

	if m.applyError != "" {
		b.WriteByte('\n')
		b.WriteString(errorStyle.Render("⚠ "+m.applyError) + "\n")
	}

	wrapWidth := max(m.width-8, 20)
	divider := func(label string) string {
		fill := strings.Repeat("─", max(wrapWidth-len(label), 3))
		return dividerStyle.Render(label + fill)
	}

	if rec.Summary != "" {
		b.WriteByte('\n')
		b.WriteString(divider("── Summary ") + "\n\n")
		b.WriteString(bodyStyle.Render(wordWrap(rec.Summary, wrapWidth)) + "\n")
	}

	if rec.Description != "" {
		b.WriteByte('\n')
		if m.showDescription {
			b.WriteString(divider("── Description ") + "\n\n")
			b.WriteString(bodyStyle.Render(wordWrap(rec.Description, wrapWidth)) + "\n")
		} else {
			b.WriteString(hintStyle.Render("  press d to read the posting description") + "\n")
		}
	}

	return b.String()
}

func scoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 7.0:
		return scoreHighStyle
	case score >= 4.0:
		return scoreMidStyle
	default:
		return scoreLowStyle
	}
}

func sortedDimensions(breakdown map[string]float64) []string {
	dims := make([]string, 0, len(breakdown))
	for dim := range breakdown {
		dims = append(dims, dim)
	}
	sort.Strings(dims)
	return dims
}

func fmtUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 MST")
}

func renderRecords(records []model.JobRecord, cursor int) string {
	if len(records) == 0 {
		return "  (no postings)"
	}

	var b strings.Builder
	for i, rec := range records {
		isSelected := i == cursor

		titleSt := recordTitleStyle
		subtitleSt := recordSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedTitleStyle
			subtitleSt = selectedSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(scoreStyle(rec.Score).Render(fmt.Sprintf("%5.2f", rec.Score)))
		b.WriteString("  ")
		b.WriteString(titleSt.Render(rec.Title))
		if rec.AppliedAt != nil {
			b.WriteString(appliedBadgeStyle.Render("  ✓ applied"))
		}
		b.WriteByte('\n')

		subtitle := rec.Company
		if rec.Location != "" {
			subtitle += " · " + rec.Location
		}
		if rec.Seniority != "" {
			subtitle += " · " + rec.Seniority
		}
		b.WriteString(prefix)
		b.WriteString("       ")
		b.WriteString(subtitleSt.Render(subtitle))
		b.WriteByte('\n')

		if i < len(records)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// openURL opens url in the default system browser, fire-and-forget.
func openURL(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

// RunReviewTUI launches the interactive ranked-posting browser over records,
// which arrive already ordered by score. The store is only used to stamp
// AppliedAt when the user marks a posting applied.
func RunReviewTUI(records []model.JobRecord, store Store) error {
	m := reviewModel{
		records: records,
		store:   store,
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
