// Package output provides consistent CLI output, styled with lipgloss when
// the destination is a terminal.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out      io.Writer
	useColor bool

	heading lipgloss.Style
	key     lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	dim     lipgloss.Style
}

// New creates a Writer. Color is enabled only when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return NewWithColor(out, IsTerminal(out) && os.Getenv("NO_COLOR") == "")
}

// NewWithColor creates a Writer with color forced on or off.
func NewWithColor(out io.Writer, color bool) *Writer {
	w := &Writer{out: out, useColor: color}
	if color {
		w.heading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
		w.key = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
		w.ok = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
		w.warn = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
		w.fail = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
		w.dim = lipgloss.NewStyle().Faint(true)
	}
	return w
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Color reports whether styling is enabled.
func (w *Writer) Color() bool {
	return w.useColor
}

func (w *Writer) render(s lipgloss.Style, text string) string {
	if !w.useColor {
		return text
	}
	return s.Render(text)
}

// Status prints a message prefixed by an icon. Write errors are ignored for
// console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Status(w.render(w.ok, "✓"), fmt.Sprintf(format, args...))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Status(w.render(w.warn, "!"), fmt.Sprintf(format, args...))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Status(w.render(w.fail, "✗"), fmt.Sprintf(format, args...))
}

// Heading prints a section title.
func (w *Writer) Heading(title string) {
	_, _ = fmt.Fprintln(w.out, w.render(w.heading, title))
}

// KeyValue prints an indented "key: value" line.
func (w *Writer) KeyValue(key, value string) {
	_, _ = fmt.Fprintf(w.out, "  %s %s\n", w.render(w.key, key+":"), value)
}

// List prints items as an indented bullet list, or a dim "(none)".
func (w *Writer) List(items []string) {
	if len(items) == 0 {
		_, _ = fmt.Fprintf(w.out, "  %s\n", w.render(w.dim, "(none)"))
		return
	}
	for _, it := range items {
		_, _ = fmt.Fprintf(w.out, "  - %s\n", it)
	}
}

// Code prints a block indented by two spaces.
func (w *Writer) Code(content string) {
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
}

// Line prints text unchanged followed by a newline.
func (w *Writer) Line(text string) {
	_, _ = fmt.Fprintln(w.out, text)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}
