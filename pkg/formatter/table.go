package formatter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Table renders rows of cells with ASCII borders. Widths are measured in terminal cells,
// so wide characters in object keys keep the columns aligned
type Table struct {
	Headers []string
	Rows    [][]string

	align    map[int]Align
	maxWidth map[int]int
}

func NewTable(headers []string) *Table {
	return &Table{
		Headers:  headers,
		Rows:     [][]string{},
		align:    make(map[int]Align),
		maxWidth: make(map[int]int),
	}
}

func (t *Table) AddRow(row []string) {
	t.Rows = append(t.Rows, row)
}

// AlignRight right-aligns the given columns, for sizes and percentages
func (t *Table) AlignRight(cols ...int) *Table {
	for _, c := range cols {
		t.align[c] = AlignRight
	}
	return t
}

// Truncate caps a column at width cells; longer cells end in "…"
func (t *Table) Truncate(col, width int) *Table {
	t.maxWidth[col] = width
	return t
}

func (t *Table) cell(col int, value string) string {
	if limit, ok := t.maxWidth[col]; ok && limit > 0 {
		return ansi.Truncate(value, limit, "…")
	}
	return value
}

func (t *Table) columnWidths() []int {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(t.cell(i, h))
	}
	for _, row := range t.Rows {
		for i, c := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(t.cell(i, c)))
			}
		}
	}
	return widths
}

// Returns the string representation of the table
func (t *Table) String() string {
	if len(t.Headers) == 0 {
		return ""
	}

	widths := t.columnWidths()
	var sb strings.Builder

	writeBorder(&sb, widths)
	t.writeRow(&sb, widths, t.Headers)
	writeBorder(&sb, widths)
	for _, row := range t.Rows {
		t.writeRow(&sb, widths, row)
	}
	writeBorder(&sb, widths)

	return strings.TrimSuffix(sb.String(), "\n")
}

// writeRow pads missing cells so short rows still close every column
func (t *Table) writeRow(sb *strings.Builder, widths []int, row []string) {
	sb.WriteString("| ")
	for i, width := range widths {
		value := ""
		if i < len(row) {
			value = t.cell(i, row[i])
		}
		pad := strings.Repeat(" ", width-lipgloss.Width(value))
		if t.align[i] == AlignRight {
			sb.WriteString(pad + value)
		} else {
			sb.WriteString(value + pad)
		}
		sb.WriteString(" | ")
	}
	sb.WriteString("\n")
}

func writeBorder(sb *strings.Builder, widths []int) {
	sb.WriteString("+")
	for _, width := range widths {
		sb.WriteString(strings.Repeat("-", width+2))
		sb.WriteString("+")
	}
	sb.WriteString("\n")
}

// Formats a section header with a title
func FormatHeaderSection(title string) string {
	borderLine := strings.Repeat("=", lipgloss.Width(title)+30)
	return borderLine + "\n  " + title + "  \n" + borderLine
}

// Formats a simple section title
func FormatSectionTitle(title string) string {
	return "-- " + title + " --"
}
