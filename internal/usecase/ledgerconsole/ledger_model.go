package ledgerconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dirsync/internal/bootstrap/logging"
	"dirsync/internal/domain/identity"
	"dirsync/internal/ports"
	"dirsync/internal/usecase/reconcile"
)

const maxShownRows = 20

// LedgerReader is the read side of reconcile.Service used by the console.
type LedgerReader interface {
	ListChanges(ctx context.Context, filter ports.ChangeFilter) ([]identity.ChangeRecord, error)
	SnapshotStatus(ctx context.Context) (reconcile.SnapshotStatus, error)
}

type Options struct {
	Username        string
	StatusFilter    string
	Limit           int
	RefreshInterval time.Duration
}

type ledgerModel struct {
	ctx             context.Context
	reader          LedgerReader
	username        string
	statusFilter    string
	limit           int
	refreshInterval time.Duration

	records       []identity.ChangeRecord
	snapshots     reconcile.SnapshotStatus
	selectedIndex int
	status        string
}

type changesLoadedMsg struct {
	records   []identity.ChangeRecord
	snapshots reconcile.SnapshotStatus
	err       error
}

type tickMsg struct{}

func NewLedgerModel(ctx context.Context, reader LedgerReader, options Options) tea.Model {
	interval := options.RefreshInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	limit := options.Limit
	if limit <= 0 {
		limit = 200
	}

	return &ledgerModel{
		ctx:             ctx,
		reader:          reader,
		username:        strings.TrimSpace(options.Username),
		statusFilter:    normalizeStatusFilter(options.StatusFilter),
		limit:           limit,
		refreshInterval: interval,
		status:          "loading",
	}
}

func (m *ledgerModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.tickCmd())
}

func (m *ledgerModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())
	case changesLoadedMsg:
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
			logging.Warn(m.ctx, "ledger console refresh failed", slog.String("err", msg.err.Error()))
			return m, nil
		}
		m.records = msg.records
		m.snapshots = msg.snapshots
		if len(m.records) == 0 {
			m.selectedIndex = 0
			m.status = "ledger is empty"
			return m, nil
		}
		if m.selectedIndex >= len(m.records) {
			m.selectedIndex = len(m.records) - 1
		}
		if m.selectedIndex < 0 {
			m.selectedIndex = 0
		}
		m.status = fmt.Sprintf("refreshed, %d rows", len(m.records))
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.status = "refreshing"
			return m, m.loadCmd()
		case "s":
			if m.statusFilter == "" {
				m.statusFilter = string(identity.StatusNew)
			} else {
				m.statusFilter = ""
			}
			m.status = "status filter: " + firstNonEmpty(m.statusFilter, "all")
			return m, m.loadCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.records)-1 {
				m.selectedIndex++
			}
			return m, nil
		}
	}
	return m, nil
}

func (m *ledgerModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Change Ledger"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf(
		"status=%s username=%s limit=%d refresh=%s",
		firstNonEmpty(m.statusFilter, "all"),
		firstNonEmpty(m.username, "*"),
		m.limit,
		m.refreshInterval,
	)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Snapshots"))
	builder.WriteString("\n")
	builder.WriteString("Latest:   " + describeCapture(m.snapshots.Latest) + "\n")
	builder.WriteString("Previous: " + describeCapture(m.snapshots.Previous) + "\n\n")

	builder.WriteString(sectionStyle.Render("Changes"))
	builder.WriteString("\n")
	if len(m.records) == 0 {
		builder.WriteString(dimStyle.Render("- no changes"))
		builder.WriteString("\n\n")
	} else {
		start, end := visibleWindow(len(m.records), m.selectedIndex, maxShownRows)
		for index := start; index < end; index++ {
			line := summaryLine(m.records[index])
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Detail"))
	builder.WriteString("\n")
	if record, ok := m.selectedRecord(); ok {
		builder.WriteString(fmt.Sprintf("Account: %s\n", record.AccountID))
		builder.WriteString(fmt.Sprintf("Status: %s\n", record.Status))
		builder.WriteString(fmt.Sprintf("Username: %s -> %s\n", previousOrDash(record.PreviousUsername), record.Username))
		builder.WriteString(fmt.Sprintf("Email: %s -> %s\n", previousOrDash(record.PreviousEmail), firstNonEmpty(record.Email, "-")))
		builder.WriteString(fmt.Sprintf("Name: %s\n", firstNonEmpty(record.DisplayName, "-")))
		builder.WriteString(fmt.Sprintf("Org: %s / %s\n", firstNonEmpty(record.Company, "-"), firstNonEmpty(record.Department, "-")))
		builder.WriteString(fmt.Sprintf("Employee: %s\n", firstNonEmpty(record.EmployeeNumber, "-")))
		builder.WriteString(fmt.Sprintf("Detected: %s  Created: %s\n", formatTime(record.DetectedAt), formatTime(record.CreatedAt)))
		builder.WriteString("\n")
	} else {
		builder.WriteString(dimStyle.Render("- no detail"))
		builder.WriteString("\n\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  g refresh  s toggle NEW filter  q quit"))
	return builder.String()
}

func (m *ledgerModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *ledgerModel) loadCmd() tea.Cmd {
	filter := ports.ChangeFilter{
		Status:   identity.Status(m.statusFilter),
		Username: m.username,
		Limit:    m.limit,
	}
	return func() tea.Msg {
		records, err := m.reader.ListChanges(m.ctx, filter)
		if err != nil {
			return changesLoadedMsg{err: err}
		}
		snapshots, err := m.reader.SnapshotStatus(m.ctx)
		if err != nil {
			return changesLoadedMsg{err: err}
		}
		return changesLoadedMsg{records: records, snapshots: snapshots}
	}
}

func (m *ledgerModel) selectedRecord() (identity.ChangeRecord, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.records) {
		return identity.ChangeRecord{}, false
	}
	return m.records[m.selectedIndex], true
}

func summaryLine(record identity.ChangeRecord) string {
	kind := "new"
	if record.PreviousUsername != nil || record.PreviousEmail != nil {
		kind = "changed"
	}
	return fmt.Sprintf("%s [%s/%s] %s %s", formatTime(record.UpdatedAt), record.Status, kind, record.Username, firstNonEmpty(record.Email, "-"))
}

// visibleWindow keeps the selected row inside a window of size rows.
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

func describeCapture(info *reconcile.CaptureInfo) string {
	if info == nil {
		return "none"
	}
	return fmt.Sprintf("%s (%d entries)", formatTime(info.CapturedAt), info.Entries)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func previousOrDash(value *string) string {
	if value == nil {
		return "-"
	}
	return firstNonEmpty(*value, "-")
}

func normalizeStatusFilter(input string) string {
	value := strings.ToUpper(strings.TrimSpace(input))
	if value == "ALL" {
		return ""
	}
	return value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized != "" {
			return normalized
		}
	}
	return ""
}
