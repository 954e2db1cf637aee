package riskconsole

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"policyguard/internal/bootstrap/logging"
	"policyguard/internal/domain/risk"
	"policyguard/internal/usecase/compliance"
)

const maxShownViolations = 15
const maxAdviceLines = 6

// RiskSource is the part of compliance.Service the console reads from.
type RiskSource interface {
	Dashboard(ctx context.Context, scanID *uint64) (compliance.Dashboard, error)
	RiskAnalysis(ctx context.Context, scanID *uint64) (compliance.RiskAnalysis, error)
	ListViolations(ctx context.Context, limit int, scanID *uint64) ([]compliance.ViolationItem, error)
	SuggestRemediation(ctx context.Context, violationID uint64) (compliance.Remediation, error)
}

type Options struct {
	// ScanID limits the violation list to one scan; zero shows every scan.
	ScanID          uint64
	RefreshInterval time.Duration
}

type riskModel struct {
	ctx             context.Context
	source          RiskSource
	scanID          *uint64
	refreshInterval time.Duration

	dashboard     compliance.Dashboard
	analysis      compliance.RiskAnalysis
	hasSummary    bool
	violations    []compliance.ViolationItem
	selectedIndex int
	advice        compliance.Remediation
	hasAdvice     bool
	status        string
}

type summaryLoadedMsg struct {
	dashboard compliance.Dashboard
	analysis  compliance.RiskAnalysis
	err       error
}

type violationsLoadedMsg struct {
	items []compliance.ViolationItem
	err   error
}

type adviceLoadedMsg struct {
	violationID uint64
	advice      compliance.Remediation
	err         error
}

type tickMsg struct{}

func NewRiskModel(ctx context.Context, source RiskSource, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	var scanID *uint64
	if options.ScanID > 0 {
		id := options.ScanID
		scanID = &id
	}

	return &riskModel{
		ctx:             ctx,
		source:          source,
		scanID:          scanID,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *riskModel) Init() tea.Cmd {
	return tea.Batch(m.loadSummaryCmd(), m.loadViolationsCmd(), m.tickCmd())
}

func (m *riskModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadSummaryCmd(), m.loadViolationsCmd(), m.tickCmd())
	case summaryLoadedMsg:
		if msg.err != nil {
			m.status = "summary refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.dashboard = msg.dashboard
		m.analysis = msg.analysis
		m.hasSummary = true
		return m, nil
	case violationsLoadedMsg:
		if msg.err != nil {
			m.status = "violations refresh failed: " + msg.err.Error()
			return m, nil
		}
		m.violations = msg.items
		if m.selectedIndex >= len(m.violations) {
			m.selectedIndex = len(m.violations) - 1
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		if len(m.violations) == 0 {
			m.status = "no violations"
		} else {
			m.status = fmt.Sprintf("refreshed, %d violations", len(m.violations))
		}
		return m, nil
	case adviceLoadedMsg:
		selected, ok := m.selectedViolation()
		if !ok || selected.ViolationID != msg.violationID {
			return m, nil
		}
		if msg.err != nil {
			m.hasAdvice = false
			m.status = "remediation failed: " + msg.err.Error()
			return m, nil
		}
		m.advice = msg.advice
		m.hasAdvice = true
		m.status = fmt.Sprintf("remediation for v%d", msg.violationID)
		logging.Info(m.ctx, "risk console remediation",
			slog.Uint64("violation_id", msg.violationID),
			slog.Bool("generated", msg.advice.Generated),
		)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, tea.Batch(m.loadSummaryCmd(), m.loadViolationsCmd())
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				m.hasAdvice = false
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.violations)-1 {
				m.selectedIndex++
				m.hasAdvice = false
			}
			return m, nil
		case "enter", "r":
			return m, m.loadAdviceCmd()
		}
	}
	return m, nil
}

func (m *riskModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	scope := "all scans"
	if m.scanID != nil {
		scope = fmt.Sprintf("scan %d", *m.scanID)
	}

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("PolicyGuard Risk Console"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf("scope=%s refresh=%s", scope, m.refreshInterval)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Overview"))
	builder.WriteString("\n")
	if !m.hasSummary {
		builder.WriteString(dimStyle.Render("- no data"))
		builder.WriteString("\n\n")
	} else {
		d := m.dashboard
		builder.WriteString(fmt.Sprintf("Status: %s (by average)  %s (by total)\n",
			statusStyle(d.Status).Render(string(d.Status)),
			statusStyle(m.analysis.Status).Render(string(m.analysis.Status)),
		))
		builder.WriteString(fmt.Sprintf("Violations: %d  Rules triggered: %d\n", d.TotalViolations, d.TriggeredRules))
		builder.WriteString(fmt.Sprintf("Risk: total=%d avg=%.2f high=%.2f%%\n", d.TotalRisk, d.AverageRisk, m.analysis.HighRiskPercentage))
		if d.TopRiskyTable != nil {
			builder.WriteString(fmt.Sprintf("Top table: %s (risk %d)\n", d.TopRiskyTable.TableName, d.TopRiskyTable.TotalRisk))
		} else {
			builder.WriteString("Top table: -\n")
		}
		builder.WriteString("Distribution: " + formatDistribution(m.analysis.Distribution) + "\n")
		if len(m.analysis.TopRules) > 0 {
			parts := make([]string, 0, len(m.analysis.TopRules))
			for _, rule := range m.analysis.TopRules {
				parts = append(parts, fmt.Sprintf("r%d=%d", rule.RuleID, rule.TotalRisk))
			}
			builder.WriteString("Top rules: " + strings.Join(parts, " ") + "\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Violations"))
	builder.WriteString("\n")
	if len(m.violations) == 0 {
		builder.WriteString(dimStyle.Render("- no violations"))
		builder.WriteString("\n\n")
	} else {
		start, end := visibleWindow(len(m.violations), m.selectedIndex, maxShownViolations)
		for index := start; index < end; index++ {
			item := m.violations[index]
			line := fmt.Sprintf("v%d scan=%d risk=%d %s.%s record=%s value=%q expected %s",
				item.ViolationID,
				item.ScanID,
				item.RiskValue,
				item.TableName,
				item.FieldName,
				item.RecordID,
				item.ActualValue,
				item.ExpectedCondition,
			)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Remediation"))
	builder.WriteString("\n")
	if !m.hasAdvice {
		builder.WriteString(dimStyle.Render("- press enter for advice"))
		builder.WriteString("\n\n")
	} else {
		lines := strings.Split(m.advice.Advice, "\n")
		if len(lines) > maxAdviceLines {
			lines = lines[:maxAdviceLines]
		}
		for _, line := range lines {
			builder.WriteString(line)
			builder.WriteString("\n")
		}
		if !m.advice.Generated {
			builder.WriteString(dimStyle.Render("(fallback advice)"))
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  enter/r advice  g refresh  q quit"))
	return builder.String()
}

func (m *riskModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *riskModel) loadSummaryCmd() tea.Cmd {
	return func() tea.Msg {
		dashboard, err := m.source.Dashboard(m.ctx, m.scanID)
		if err != nil {
			return summaryLoadedMsg{err: err}
		}
		analysis, err := m.source.RiskAnalysis(m.ctx, m.scanID)
		if err != nil {
			return summaryLoadedMsg{err: err}
		}
		return summaryLoadedMsg{dashboard: dashboard, analysis: analysis}
	}
}

func (m *riskModel) loadViolationsCmd() tea.Cmd {
	return func() tea.Msg {
		items, err := m.source.ListViolations(m.ctx, 0, m.scanID)
		if err != nil {
			return violationsLoadedMsg{err: err}
		}
		return violationsLoadedMsg{items: items}
	}
}

func (m *riskModel) loadAdviceCmd() tea.Cmd {
	selected, ok := m.selectedViolation()
	if !ok {
		return nil
	}
	m.status = fmt.Sprintf("asking for remediation of v%d", selected.ViolationID)

	return func() tea.Msg {
		advice, err := m.source.SuggestRemediation(m.ctx, selected.ViolationID)
		return adviceLoadedMsg{violationID: selected.ViolationID, advice: advice, err: err}
	}
}

func (m *riskModel) selectedViolation() (compliance.ViolationItem, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.violations) {
		return compliance.ViolationItem{}, false
	}
	return m.violations[m.selectedIndex], true
}

func statusStyle(status risk.Status) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch status {
	case risk.StatusCritical:
		return style.Foreground(lipgloss.Color("196"))
	case risk.StatusHigh:
		return style.Foreground(lipgloss.Color("208"))
	case risk.StatusMedium:
		return style.Foreground(lipgloss.Color("220"))
	default:
		return style.Foreground(lipgloss.Color("42"))
	}
}

// formatDistribution renders risk buckets in ascending risk order.
func formatDistribution(distribution map[string]int) string {
	if len(distribution) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(distribution))
	for key := range distribution {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", key, distribution[key]))
	}
	return strings.Join(parts, " ")
}

// visibleWindow keeps the selected row inside a window of at most size rows.
func visibleWindow(total int, selected int, size int) (int, int) {
	if total <= size {
		return 0, total
	}
	start := selected - size/2
	if start < 0 {
		start = 0
	}
	if start+size > total {
		start = total - size
	}
	return start, start + size
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
