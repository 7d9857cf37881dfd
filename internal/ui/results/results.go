// Package results renders a query's result set as a scrollable grid.
// Cells are formatted lazily a page at a time, so large results only pay
// for the rows that have been scrolled to.
package results

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/sadopc/sqlharbor/internal/adapter"
	appmsg "github.com/sadopc/sqlharbor/internal/msg"
	"github.com/sadopc/sqlharbor/internal/theme"
)

// NullText is shown for SQL NULL.
const NullText = "∅ null"

const (
	defaultPageSize    = 1000
	defaultMaxColWidth = 50
	minColWidth        = 4
	widthSample        = 100
)

var writeClipboard = clipboard.WriteAll

// Model is the results grid for one buffer.
type Model struct {
	columns []adapter.Column
	raw     [][]any
	cells   [][]string // formatted prefix of raw
	nulls   [][]bool
	widths  []int

	cursor    int
	viewTop   int
	colOffset int

	pageSize    int
	maxColWidth int

	width   int
	height  int
	focused bool
	loading bool

	message    string
	queryTime  time.Duration
	truncated  bool
	statements int
	err        error
}

func New() Model {
	return Model{pageSize: defaultPageSize, maxColWidth: defaultMaxColWidth}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// SetLimits sets how many rows are formatted per page and the widest a
// column may grow. Non-positive values keep the defaults.
func (m *Model) SetLimits(pageSize, maxColWidth int) {
	if pageSize > 0 {
		m.pageSize = pageSize
	}
	if maxColWidth > 0 {
		m.maxColWidth = maxColWidth
	}
}

// SetResults shows the outcome of a run. A nil result set means no
// statement returned rows.
func (m *Model) SetResults(rs *adapter.ResultSet, d time.Duration, truncated bool, statements int) {
	m.reset()
	m.queryTime = d
	m.truncated = truncated
	m.statements = statements
	if rs == nil {
		m.message = "Query OK, no rows returned."
		if statements > 1 {
			m.message = fmt.Sprintf("Executed %d statements, none returned rows.", statements)
		}
		return
	}
	m.columns = rs.Columns
	m.raw = rs.Rows
	m.format(min(m.pageSize, len(m.raw)))
	m.widths = m.columnWidths()
}

// SetCancelled shows that the last run was cancelled.
func (m *Model) SetCancelled() {
	m.reset()
	m.message = "Query cancelled."
}

func (m *Model) reset() {
	*m = Model{
		pageSize:    m.pageSize,
		maxColWidth: m.maxColWidth,
		width:       m.width,
		height:      m.height,
		focused:     m.focused,
	}
}

// SetLoading marks a run in flight.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
	if loading {
		m.err = nil
	}
}

// SetError shows err in place of the grid.
func (m *Model) SetError(err error) {
	m.err = err
	m.loading = false
}

func (m Model) Loading() bool { return m.loading }

// RowCount returns the number of rows in the result set.
func (m Model) RowCount() int { return len(m.raw) }

// Columns returns the result's columns.
func (m Model) Columns() []adapter.Column { return m.columns }

func (m Model) QueryDuration() time.Duration { return m.queryTime }

// Cell returns the formatted value at row r, column c.
func (m *Model) Cell(r, c int) string {
	if r < 0 || r >= len(m.raw) || c < 0 || c >= len(m.columns) {
		return ""
	}
	m.format(r + 1)
	return m.cells[r][c]
}

// format extends the formatted prefix to at least n rows, a page at a
// time.
func (m *Model) format(n int) {
	if n <= len(m.cells) {
		return
	}
	end := min(max(n, len(m.cells)+m.pageSize), len(m.raw))
	for _, row := range m.raw[len(m.cells):end] {
		cells := make([]string, len(m.columns))
		nulls := make([]bool, len(m.columns))
		for j := range cells {
			if j < len(row) {
				cells[j] = FormatValue(row[j])
				nulls[j] = row[j] == nil
			}
		}
		m.cells = append(m.cells, cells)
		m.nulls = append(m.nulls, nulls)
	}
}

// FormatValue renders one cell value for display.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return NullText
	case string:
		return strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(v)
	case []byte:
		if utf8.Valid(v) {
			return FormatValue(string(v))
		}
		return `\x` + hex.EncodeToString(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format(time.DateOnly)
		}
		return v.Format("2006-01-02 15:04:05.999999")
	default:
		return fmt.Sprint(v)
	}
}

// columnWidths sizes each column to its header and a sample of rows,
// capped at maxColWidth.
func (m *Model) columnWidths() []int {
	widths := make([]int, len(m.columns))
	for i, c := range m.columns {
		widths[i] = max(runewidth.StringWidth(header(c)), minColWidth)
	}
	for _, row := range m.cells[:min(widthSample, len(m.cells))] {
		for j, cell := range row {
			widths[j] = max(widths[j], runewidth.StringWidth(cell))
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], m.maxColWidth)
	}
	return widths
}

func header(c adapter.Column) string {
	if c.Type == "" {
		return c.Name
	}
	return c.Name + " " + c.Type
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.focused || len(m.raw) == 0 {
		return m, nil
	}
	page := m.visibleRows()
	switch key.String() {
	case "up", "k":
		m.cursor--
	case "down", "j":
		m.cursor++
	case "pgup":
		m.cursor -= page
	case "pgdown":
		m.cursor += page
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = len(m.raw) - 1
	case "left", "h":
		m.colOffset = max(m.colOffset-1, 0)
	case "right", "l":
		m.colOffset = min(m.colOffset+1, max(len(m.columns)-1, 0))
	case "y":
		text := m.Cell(m.cursor, m.colOffset)
		return m, func() tea.Msg {
			if err := writeClipboard(text); err != nil {
				return appmsg.StatusMsg{Text: "Copy failed: " + err.Error(), IsError: true}
			}
			return appmsg.StatusMsg{Text: "Copied cell"}
		}
	}
	m.cursor = min(max(m.cursor, 0), len(m.raw)-1)
	if m.cursor < m.viewTop {
		m.viewTop = m.cursor
	}
	if m.cursor >= m.viewTop+page {
		m.viewTop = m.cursor - page + 1
	}
	m.format(m.viewTop + page)
	return m, nil
}

// Cursor returns the selected row and first visible column.
func (m Model) Cursor() (row, col int) { return m.cursor, m.colOffset }

func (m Model) contentWidth() int { return max(m.width-2, 10) }

// visibleRows is the grid height less the border, header, rule and
// footer lines.
func (m Model) visibleRows() int { return max(m.height-5, 1) }

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	th := theme.Current
	innerH := max(m.height-2, 1)

	var content string
	switch {
	case m.loading:
		content = th.MutedText.Render("  Executing query...")
	case m.err != nil:
		content = th.ErrorText.Render("  Error: " + m.err.Error())
	case m.message != "":
		content = th.SuccessText.Render("  "+m.message) + "\n" + m.footer(th)
	case len(m.columns) == 0:
		content = th.MutedText.Render("  No results. Write a query and press Ctrl+Enter to run it.")
	default:
		content = lipgloss.JoinVertical(lipgloss.Left, m.renderGrid(th), m.footer(th))
	}

	border := th.UnfocusedBorder
	if m.focused {
		border = th.FocusedBorder
	}
	return border.Width(max(m.width-2, 0)).Height(innerH).Render(content)
}

func (m Model) renderGrid(th *theme.Theme) string {
	width := m.contentWidth()
	m.format(m.viewTop + m.visibleRows())

	// Columns from colOffset that fit, always at least one.
	var cols []int
	used := 0
	for j := m.colOffset; j < len(m.columns); j++ {
		w := m.widths[j] + 2
		if len(cols) > 0 && used+w > width {
			break
		}
		cols = append(cols, j)
		used += w
	}

	var sb strings.Builder
	for _, j := range cols {
		sb.WriteString(th.ResultsHeader.Render(cell(m.columns[j].Name, m.widths[j])))
	}
	sb.WriteString("\n")
	sb.WriteString(th.ResultsColumnType.Render(strings.Repeat("─", min(used, width))))

	for i := m.viewTop; i < min(m.viewTop+m.visibleRows(), len(m.cells)); i++ {
		sb.WriteString("\n")
		for _, j := range cols {
			style := th.ResultsCell
			switch {
			case i == m.cursor:
				style = th.ResultsSelectedRow
			case m.nulls[i][j]:
				style = th.ResultsNull
			}
			sb.WriteString(style.Render(cell(m.cells[i][j], m.widths[j])))
		}
	}
	return sb.String()
}

func cell(s string, w int) string {
	return " " + runewidth.FillRight(runewidth.Truncate(s, w, "…"), w) + " "
}

func (m Model) footer(th *theme.Theme) string {
	var parts []string
	if len(m.columns) > 0 {
		rows := humanize.Comma(int64(len(m.raw))) + " rows"
		if len(m.raw) == 1 {
			rows = "1 row"
		}
		if m.truncated {
			rows += " (limit reached)"
		}
		parts = append(parts, rows)
		if len(m.columns) > 1 && m.colOffset > 0 {
			parts = append(parts, fmt.Sprintf("col %d/%d", m.colOffset+1, len(m.columns)))
		}
	}
	if m.statements > 1 {
		parts = append(parts, fmt.Sprintf("%d statements", m.statements))
	}
	if m.queryTime > 0 {
		parts = append(parts, FormatDuration(m.queryTime))
	}
	if len(parts) == 0 {
		return ""
	}
	return th.MutedText.Render("  " + strings.Join(parts, " | "))
}

// FormatDuration renders d at a precision suited to its size.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d µs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2f s", d.Seconds())
	default:
		return fmt.Sprintf("%.1f min", d.Minutes())
	}
}

func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func (m *Model) Focus() { m.focused = true }

func (m *Model) Blur() { m.focused = false }

func (m Model) Focused() bool { return m.focused }
