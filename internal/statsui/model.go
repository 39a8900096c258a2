// Package statsui provides the Bubble Tea report viewer.
package statsui

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/keyscore/internal/analysis"
	"github.com/verte-zerg/keyscore/internal/model"
	"github.com/verte-zerg/keyscore/internal/recording"
	"github.com/verte-zerg/keyscore/internal/song"
	"github.com/verte-zerg/keyscore/internal/stats"
)

const (
	tabOverview = iota
	tabAttempts
	tabGaps
)

const plotHeight = 8

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#3A9AC8"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#3A9AC8")).
			Padding(1, 2)
)

// Model implements the Bubble Tea report viewer. It re-runs the analysis
// whenever the thresholds are edited.
type Model struct {
	score   *song.Score
	session *recording.Session
	cfg     model.AnalysisConfig
	indices []int
	window  int

	report model.Report
	gaps   analysis.GapScan
	errMsg string

	tabs         []string
	activeTab    int
	viewports    []viewport.Model
	attemptTable table.Model

	width  int
	height int

	settingsMode   bool
	settingsInputs []textinput.Model
	settingsIndex  int
	settingsError  string

	detailMode bool
}

// NewModel constructs a viewer for the given attempts; nil indices selects every attempt.
func NewModel(score *song.Score, session *recording.Session, cfg model.AnalysisConfig, indices []int) *Model {
	m := &Model{
		score:   score,
		session: session,
		cfg:     cfg,
		indices: indices,
		window:  1,
		tabs:    []string{"Overview", "Attempts", "Gaps"},
	}
	m.initInputs()
	m.attemptTable = buildAttemptTable(nil, 0, 1)
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
	m.refreshReport()
	return m
}

// Report returns the report currently shown.
func (m *Model) Report() model.Report {
	return m.report
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || (msg.String() == "q" && !m.settingsMode) {
			return m, tea.Quit
		}
		if m.settingsMode {
			return m.updateSettings(msg)
		}
		if m.detailMode {
			if msg.Type == tea.KeyEsc || msg.Type == tea.KeyEnter {
				m.detailMode = false
			}
			return m, nil
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.window = nextCurveWindow(m.window)
			m.renderTabContents()
			return m, nil
		case "-":
			m.window = prevCurveWindow(m.window)
			m.renderTabContents()
			return m, nil
		case "/":
			return m.startSettings()
		case "enter":
			if m.activeTab == tabAttempts && len(m.report.Attempts) > 0 {
				m.detailMode = true
			}
			return m, nil
		case "g", "home":
			if m.activeTab == tabAttempts {
				m.attemptTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabAttempts {
				m.attemptTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabAttempts {
				var cmd tea.Cmd
				m.attemptTable, cmd = m.attemptTable.Update(msg)
				return m, cmd
			}
			var cmd tea.Cmd
			m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.detailMode {
		return fitLines(m.renderDetailModal(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initInputs() {
	m.settingsInputs = []textinput.Model{
		newInput("Tolerance (s): "),
		newInput("Time gap (s): "),
		newInput("Focus away (s): "),
		newInput("Attempts: "),
	}
	m.setInputsFromConfig()
}

func newInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.settingsInputs[0].SetValue(formatFloat(m.cfg.Tolerance))
	m.settingsInputs[1].SetValue(formatFloat(m.cfg.TimeGapThreshold))
	m.settingsInputs[2].SetValue(formatFloat(m.cfg.FocusAwayThreshold))
	m.settingsInputs[3].SetValue(joinIndices(m.indices))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := maxInt(1, lipgloss.Height(activeNavStyle.Render("X")))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.settingsMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = maxInt(1, m.height-headerHeight-footerHeight)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	m.attemptTable.SetWidth(m.width)
	m.attemptTable.SetHeight(maxInt(1, bodyHeight-1))
	for i := range m.settingsInputs {
		promptWidth := lipgloss.Width(m.settingsInputs[i].Prompt)
		m.settingsInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	m.activeTab = (m.activeTab + delta + count) % count
	if m.activeTab == tabAttempts {
		m.attemptTable.Focus()
	} else {
		m.attemptTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := fmt.Sprintf("Song: %s  user: %s  tolerance=%s  time-gap=%s  focus-away=%s  window=%d",
		m.score.Name(), m.session.User,
		formatFloat(m.cfg.Tolerance), formatFloat(m.cfg.TimeGapThreshold), formatFloat(m.cfg.FocusAwayThreshold),
		m.window)
	return tabs + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Settings: /  Quit: q"
	if m.activeTab == tabAttempts {
		help = "Nav: left/right  Select: up/down  Details: enter  Settings: /  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.settingsMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderSettingsForm() string {
	lines := []string{"Settings (enter to apply, esc to cancel)"}
	for _, input := range m.settingsInputs {
		lines = append(lines, input.View())
	}
	lines = append(lines, headerStyle.Render("Attempts: comma separated indices, empty for all"))
	if m.settingsError != "" {
		lines = append(lines, errorStyle.Render(m.settingsError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.settingsMode {
		return fitLines(m.renderSettingsForm(), m.width, height)
	}
	if m.activeTab == tabAttempts {
		if len(m.report.Attempts) == 0 {
			return fitLines("No attempts analyzed.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.attemptTable.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

// refreshReport re-runs the analysis with the current settings.
func (m *Model) refreshReport() {
	a, err := analysis.NewAnalyzer(m.score, m.session, m.cfg)
	if err != nil {
		m.errMsg = err.Error()
		m.renderTabContents()
		return
	}
	indices := m.indices
	if len(indices) == 0 {
		indices = a.AllAttempts()
	}
	report, err := a.Analyze(indices)
	if err != nil {
		m.errMsg = err.Error()
		m.renderTabContents()
		return
	}
	m.errMsg = ""
	m.report = report
	m.gaps = a.ScanGaps(m.cfg.TimeGapThreshold)
	m.attemptTable.SetRows(attemptRows(report))
	m.renderTabContents()
}

func (m *Model) renderTabContents() {
	if m.errMsg != "" {
		for i := range m.viewports {
			m.viewports[i].SetContent("Failed to analyze session.")
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabOverview].SetContent(renderOverview(m.report, m.window, width))
	m.viewports[tabGaps].SetContent(renderGaps(m.gaps))
}

func renderOverview(r model.Report, window, width int) string {
	cards := renderSummaryCards(r, width)
	var buf bytes.Buffer
	if err := stats.RenderCurvesWithSize(&buf, r, window, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render curves: %v", err)
	}
	if buf.Len() == 0 {
		return cards
	}
	return strings.TrimRight(cards+"\n\n"+buf.String(), "\n")
}

func renderSummaryCards(r model.Report, width int) string {
	cards := []string{
		metricCard("Attempts", strconv.Itoa(r.AttemptCount)),
		metricCard("Start error", r.StartTimeErrorAvg.String()+" s"),
		metricCard("Matched", r.MatchedStartAvg.String()),
		metricCard("Extra", r.ExtraStartAvg.String()),
		metricCard("Eye data", strconv.Itoa(r.EyeDataCount)),
		metricCard("On target", r.OnTargetTimeAvg.String()+" s"),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2], cards[3])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[4], cards[5])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderGaps(scan analysis.GapScan) string {
	var buf bytes.Buffer
	if err := stats.RenderGaps(&buf, scan); err != nil {
		return fmt.Sprintf("Failed to render gaps: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func attemptColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 3},
		{Title: "Start", Width: 8},
		{Title: "STE", Width: 7},
		{Title: "ETE", Width: 7},
		{Title: "Matched", Width: 8},
		{Title: "Missed", Width: 7},
		{Title: "Extra", Width: 6},
		{Title: "Left", Width: 12},
		{Title: "Right", Width: 12},
	}
}

func attemptRows(r model.Report) []table.Row {
	rows := make([]table.Row, 0, len(r.Attempts))
	for _, res := range r.Attempts {
		p := res.Press
		rows = append(rows, table.Row{
			strconv.Itoa(res.Window.Index),
			fmt.Sprintf("%.2f", res.Window.PredictedStart),
			fmt.Sprintf("%.3f", p.StartTimeError),
			fmt.Sprintf("%.3f", p.EndTimeError),
			strconv.Itoa(p.MatchedStart),
			strconv.Itoa(p.MissedStart),
			strconv.Itoa(p.ExtraStart),
			stats.StreamLabel(res.Left),
			stats.StreamLabel(res.Right),
		})
	}
	return rows
}

func buildAttemptTable(rows []table.Row, width, height int) table.Model {
	t := table.New(
		table.WithColumns(attemptColumns()),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(attemptTableStyles())
	return t
}

func attemptTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

// selectedAttempt returns the result under the table cursor.
func (m *Model) selectedAttempt() (model.AttemptResult, bool) {
	i := m.attemptTable.Cursor()
	if i < 0 || i >= len(m.report.Attempts) {
		return model.AttemptResult{}, false
	}
	return m.report.Attempts[i], true
}

func (m *Model) renderDetailModal() string {
	res, ok := m.selectedAttempt()
	if !ok {
		return ""
	}
	w, p := res.Window, res.Press
	body := []string{
		cardValueStyle.Render(fmt.Sprintf("Attempt %d", w.Index)),
		fmt.Sprintf("Roll: %s to %s", formatSeconds(w.RollStart), formatSeconds(w.RollEnd)),
		fmt.Sprintf("Soft start: %s", formatSeconds(w.SoftStart)),
		fmt.Sprintf("Predicted: %s to %s (%d offset samples)", formatSeconds(w.PredictedStart), formatSeconds(w.PredictedEnd), w.OffsetSamples),
		fmt.Sprintf("Starts: %d matched, %d missed, %d extra, error %.3f s", p.MatchedStart, p.MissedStart, p.ExtraStart, p.StartTimeError),
		fmt.Sprintf("Ends: %d matched, %d missed, %d extra, error %.3f s", p.MatchedEnd, p.MissedEnd, p.ExtraEnd, p.EndTimeError),
		streamLine("Left", res.Left),
		streamLine("Right", res.Right),
		headerStyle.Render("Enter or Esc to close"),
	}
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func streamLine(label string, a model.AttentionMetrics) string {
	if !a.Clean() {
		return fmt.Sprintf("%s gaze: %s after %d samples", label, stats.StreamLabel(a), a.Samples)
	}
	return fmt.Sprintf("%s gaze: %.1f deg, %d switches, %.2f s on target, depth %.2f",
		label, a.AngularMovement, a.FocusSwitches, a.OnTargetTime, a.MeanFocusDepth)
}

func (m *Model) startSettings() (tea.Model, tea.Cmd) {
	m.settingsMode = true
	m.settingsError = ""
	m.setInputsFromConfig()
	return m, m.setSettingsIndex(0)
}

func (m *Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.settingsMode = false
		m.settingsError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applySettings(); err != nil {
			m.settingsError = err.Error()
			return m, nil
		}
		m.settingsMode = false
		m.settingsError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setSettingsIndex(m.settingsIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setSettingsIndex(m.settingsIndex - 1)
	}
	var cmd tea.Cmd
	m.settingsInputs[m.settingsIndex], cmd = m.settingsInputs[m.settingsIndex].Update(msg)
	return m, cmd
}

func (m *Model) setSettingsIndex(idx int) tea.Cmd {
	count := len(m.settingsInputs)
	m.settingsIndex = (idx + count) % count
	var cmd tea.Cmd
	for i := range m.settingsInputs {
		if i == m.settingsIndex {
			cmd = m.settingsInputs[i].Focus()
		} else {
			m.settingsInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applySettings() error {
	cfg := m.cfg
	fields := []*float64{&cfg.Tolerance, &cfg.TimeGapThreshold, &cfg.FocusAwayThreshold}
	names := []string{"tolerance", "time gap", "focus away"}
	for i, dst := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(m.settingsInputs[i].Value()), 64)
		if err != nil {
			return fmt.Errorf("invalid %s (use a number)", names[i])
		}
		*dst = v
	}
	if err := analysis.ValidateConfig(cfg); err != nil {
		return err
	}
	indices, err := parseIndices(m.settingsInputs[3].Value())
	if err != nil {
		return err
	}
	m.cfg = cfg
	m.indices = indices
	return nil
}

func parseIndices(input string) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	parts := strings.Split(input, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid attempt index %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func joinIndices(indices []int) string {
	parts := make([]string, len(indices))
	for i, n := range indices {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatSeconds(v float64) string {
	if math.IsInf(v, 1) {
		return "end"
	}
	return fmt.Sprintf("%.2f s", v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func nextCurveWindow(n int) int {
	if n < 5 {
		return 5
	}
	return (n/5 + 1) * 5
}

func prevCurveWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}

func modalWidth(width int) int {
	return maxInt(40, minInt(width-4, 80))
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}
