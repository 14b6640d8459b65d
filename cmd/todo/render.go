package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/lipgloss"

	"todo-list/domain"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	boxChecked   = "☑"
	boxUnchecked = "☐"
)

const dateLayout = "2006-01-02"

func ok(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render("✔ "+msg))
}

func fail(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("✖ "+msg))
}

func writeJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// importanceBar draws importance as filled and empty pips.
func importanceBar(n int) string {
	if n < 0 {
		n = 0
	}
	if n > domain.MaxImportance {
		n = domain.MaxImportance
	}
	return strings.Repeat("●", n) + strings.Repeat("○", domain.MaxImportance-n)
}

func itemLine(item domain.Item) string {
	box := boxUnchecked
	name := titleStyle.Render(item.Name)
	if item.Completed {
		box = boxChecked
		name = doneStyle.Render(item.Name)
	}
	return fmt.Sprintf("%s %s %s %s %s",
		mutedStyle.Render(fmt.Sprintf("%4s", item.ID)),
		box,
		accentStyle.Render(importanceBar(item.Importance)),
		mutedStyle.Render(item.DueDate.Format(dateLayout)),
		name,
	)
}

// renderList prints items one per line followed by a summary of how many of
// total tasks are shown.
func renderList(w io.Writer, items []domain.Item, total int) {
	if len(items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no tasks"))
		return
	}
	done := 0
	for _, it := range items {
		fmt.Fprintln(w, itemLine(it))
		if it.Completed {
			done++
		}
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d shown, %d done, %d total", len(items), done, total)))
}

func renderItem(w io.Writer, item domain.Item) {
	status := "open"
	if item.Completed {
		status = "done"
	}
	lines := []string{
		titleStyle.Render(item.Name),
		"",
		"id          " + item.ID,
		"status      " + status,
		"importance  " + importanceBar(item.Importance),
		"due         " + item.DueDate.Format(dateLayout),
		"created     " + item.CreatedDate.Local().Format("2006-01-02 15:04"),
		"edited      " + item.LastEditDate.Local().Format("2006-01-02 15:04"),
	}
	if item.Description != "" {
		lines = append(lines, "", mutedStyle.Render(item.Description))
	}
	fmt.Fprintln(w, panelStyle.Render(strings.Join(lines, "\n")))
}
