package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/stackrank/pkg/catalog"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listCheckedStyle  = lipgloss.NewStyle().Foreground(colorGreen)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// PickerModel - Interactive package selection
// =============================================================================

// PickerModel is the bubbletea model for picking packages to compare from
// a suggestion list. Several packages can be checked.
type PickerModel struct {
	Items     []catalog.Suggestion
	Cursor    int
	Checked   map[int]bool
	Confirmed bool
	Height    int
	Offset    int
}

// NewPickerModel creates a picker over items.
func NewPickerModel(items []catalog.Suggestion) PickerModel {
	return PickerModel{
		Items:   items,
		Checked: make(map[int]bool),
		Height:  15,
	}
}

func (m PickerModel) Init() tea.Cmd {
	return nil
}

func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Items)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "x":
			if len(m.Items) == 0 {
				return m, nil
			}
			if m.Checked[m.Cursor] {
				delete(m.Checked, m.Cursor)
			} else {
				m.Checked[m.Cursor] = true
			}
		case "enter":
			if len(m.Items) == 0 {
				return m, nil
			}
			if len(m.Checked) == 0 {
				m.Checked[m.Cursor] = true
			}
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-7, 5)
	}
	return m, nil
}

// Selection returns the checked suggestions in list order, or nil when the
// picker was cancelled.
func (m PickerModel) Selection() []catalog.Suggestion {
	if !m.Confirmed {
		return nil
	}
	var out []catalog.Suggestion
	for i, it := range m.Items {
		if m.Checked[i] {
			out = append(out, it)
		}
	}
	return out
}

func (m PickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Packages"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  ⏎ compare  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Items))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		it := m.Items[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if m.Checked[i] {
			check = "[" + iconSuccess + "]"
		}
		rows = append(rows, []string{cursor + check, it.Name, orMissing(it.Version), truncate(it.Description, 48)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Version", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			idx := m.Offset + row
			switch {
			case idx == m.Cursor:
				return listSelectedStyle
			case m.Checked[idx]:
				return listCheckedStyle
			case col == 3:
				return listDimStyle
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]  %d selected", m.Cursor+1, len(m.Items), len(m.Checked))))

	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
