// Package ux renders the CLI's console progress output: section
// banners, ✓/✗ status lines, and key/value detail rows.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	detailStyle  = lipgloss.NewStyle().Faint(true)
)

// Console writes styled progress lines to a single output stream.
type Console struct {
	w io.Writer
}

// New returns a Console writing to w.
func New(w io.Writer) *Console {
	return &Console{w: w}
}

// Banner prints a ruled section header.
func (c *Console) Banner(title string) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(c.w, "\n%s\n%s\n%s\n", rule, headerStyle.Render(title), rule)
}

// Successf prints a ✓ status line.
func (c *Console) Successf(format string, args ...any) {
	fmt.Fprintf(c.w, "%s %s\n", successStyle.Render("✓"), fmt.Sprintf(format, args...))
}

// Failf prints a ✗ status line.
func (c *Console) Failf(format string, args ...any) {
	fmt.Fprintf(c.w, "%s %s\n", failureStyle.Render("✗"), fmt.Sprintf(format, args...))
}

// Printf prints an unstyled line.
func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.w, format+"\n", args...)
}

// Detailf prints an indented, dimmed detail line.
func (c *Console) Detailf(format string, args ...any) {
	fmt.Fprintf(c.w, "  %s\n", detailStyle.Render(fmt.Sprintf(format, args...)))
}

// List prints a numbered list of items.
func (c *Console) List(items []string) {
	for i, it := range items {
		fmt.Fprintf(c.w, "  %d. %s\n", i+1, it)
	}
}
