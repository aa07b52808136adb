package tui

import (
	"fmt"
	"strings"

	"mealplan-cli/internal/dragdrop"
	"mealplan-cli/internal/viewmodel"

	"github.com/charmbracelet/lipgloss"
)

const defaultTitle = "Meal plan"

type boardSelection struct {
	Col    int
	Row    int
	DragID string
}

func (m *boardModel) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}

	header := m.renderHeader(width)
	status := m.renderStatus(width)
	helpView := m.help.View(m.keys)
	boardH := height - lipgloss.Height(header) - lipgloss.Height(status) - lipgloss.Height(helpView)

	if m.modal != modalNone {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, m.renderModal(width))
	}

	dragID, _ := m.ctrl.Dragging()
	sel := boardSelection{Col: m.col, Row: m.row, DragID: dragID}
	board := renderBoard(m.board.Columns(), sel, m.vm.RecipeName, m.saved, width, max(boardH, 3))
	return strings.Join([]string{header, board, status, helpView}, "\n")
}

func (m *boardModel) renderHeader(width int) string {
	title := strings.TrimSpace(m.opts.Title)
	if title == "" {
		title = defaultTitle
	}
	left := lipgloss.NewStyle().Bold(true).Render(title)
	right := styleMuted().Render(fmt.Sprintf("grouped by %s · %s", m.vm.Active(), m.ctrl.Mode()))
	gap := max(1, width-lipgloss.Width(left)-lipgloss.Width(right))
	return normalizePane(left+strings.Repeat(" ", gap)+right, width, 1)
}

func (m *boardModel) renderStatus(width int) string {
	st := styleMuted()
	switch m.statusLevel {
	case statusError:
		st = lipgloss.NewStyle().Foreground(colorError)
	case statusWarn:
		st = lipgloss.NewStyle().Foreground(colorSaved)
	default:
		if m.status != "" {
			st = lipgloss.NewStyle().Foreground(colorOK)
		}
	}
	return normalizePane(st.Render(truncateText(m.status, width)), width, 1)
}

func (m *boardModel) renderModal(width int) string {
	switch m.modal {
	case modalRename:
		bodyW := modalBodyWidth(width)
		help := styleMuted().Width(bodyW).Render("enter: save   esc: cancel")
		body := strings.Join([]string{renderInputLine(bodyW, m.input.View()), "", help}, "\n")
		return renderModalBox(width, "Rename group", body)
	case modalConfirmRemove:
		groupName := ""
		if g, ok := m.vm.Group(m.removeGroup); ok {
			groupName = g.Name
		}
		prompt := viewmodel.RemovePrompt(m.vm.RecipeName(m.removeRecipe), groupName)
		return renderConfirmModal(width, "Remove recipe", prompt, "Remove", "Cancel", m.confirmFocus)
	case modalAddRecipe:
		return m.renderAddRecipe(width)
	}
	return ""
}

func (m *boardModel) renderAddRecipe(width int) string {
	bodyW := modalBodyWidth(width)
	title := "Add recipe"
	if g, ok := m.vm.Group(m.addGroup); ok {
		title = "Add recipe to " + g.Name
	}
	itemStyle := lipgloss.NewStyle().Width(bodyW).Padding(0, 1)
	selStyle := itemStyle.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)

	lines := []string{renderInputLine(bodyW, m.input.View()), ""}
	cands := m.candidates()
	// Keep the highlighted match inside the visible window.
	start := max(0, m.pick-pickerRows+1)
	for i := start; i < len(cands) && i < start+pickerRows; i++ {
		label := truncateText(m.vm.RecipeName(cands[i].ID), max(bodyW-2, 0))
		if i == m.pick {
			lines = append(lines, selStyle.Render(label))
		} else {
			lines = append(lines, itemStyle.Render(label))
		}
	}
	if len(cands) == 0 {
		lines = append(lines, styleMuted().Render(" (no matches)"))
	} else if len(cands) > pickerRows {
		lines = append(lines, styleMuted().Render(fmt.Sprintf(" %d matches", len(cands))))
	}
	lines = append(lines, "", styleMuted().Width(bodyW).Render("type to search   ↑/↓: choose   enter: add   esc: cancel"))
	return renderModalBox(width, title, strings.Join(lines, "\n"))
}

// renderBoard lays the columns out side by side, each normalized to the same width and
// height.
func renderBoard(cols []*dragdrop.Column, sel boardSelection, name func(string) string, saved map[string]bool, width, height int) string {
	width = max(width, 0)
	height = max(height, 0)
	n := len(cols)
	if n == 0 {
		return normalizePane(styleMuted().Render("(no groups)"), width, height)
	}

	gap := 2
	avail := max(width-gap*(n-1), n)
	colW := max(avail/n, 12)

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg)
	headerSelectedStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSelectedFg).Background(colorSelectedBg)
	itemStyle := lipgloss.NewStyle().Width(colW).Padding(0, 1)
	itemSelectedStyle := itemStyle.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	itemDraggedStyle := itemStyle.Foreground(colorAccentFg).Background(colorAccent).Bold(true)
	innerW := max(colW-2, 0)

	renderCol := func(ci int, c *dragdrop.Column) string {
		ids := c.ItemIDs()
		lines := make([]string, 0, max(2, height))
		hs := headerStyle
		if ci == sel.Col {
			hs = headerSelectedStyle
		}
		lines = append(lines, hs.Width(colW).Render(truncateText(fmt.Sprintf("%s (%d)", c.Title, len(ids)), colW)))
		lines = append(lines, "")

		row := 0
		for _, node := range c.Nodes() {
			selected := ci == sel.Col && row == sel.Row
			if node.Control {
				label := truncateText("+ add recipe", innerW)
				if selected {
					lines = append(lines, itemSelectedStyle.Render(label))
				} else {
					lines = append(lines, itemStyle.Render(styleMuted().Render(label)))
				}
				row++
				continue
			}
			marker := "  "
			if saved[node.ID] {
				marker = lipgloss.NewStyle().Foreground(colorSaved).Render("★ ")
			}
			label := truncateText(name(node.ID), max(innerW-2, 0))
			switch {
			case node.ID == sel.DragID:
				lines = append(lines, itemDraggedStyle.Render(marker+label))
			case selected:
				lines = append(lines, itemSelectedStyle.Render(marker+label))
			default:
				lines = append(lines, itemStyle.Render(marker+label))
			}
			row++
		}
		if len(ids) == 0 {
			lines = append(lines, styleMuted().Render(" (empty)"))
		}
		return normalizePane(strings.Join(lines, "\n"), colW, height)
	}

	out := renderCol(0, cols[0])
	sep := strings.Repeat(" ", gap)
	for i := 1; i < n; i++ {
		out = lipgloss.JoinHorizontal(lipgloss.Top, out, sep, renderCol(i, cols[i]))
	}
	return normalizePane(out, width, height)
}
