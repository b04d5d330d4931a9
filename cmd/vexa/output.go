package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Writer prints styled terminal output. Assistant replies are rendered as
// markdown; everything else is plain styled text. No TUI framework.
type Writer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
	mu       sync.Mutex

	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
	promptStyle  lipgloss.Style
}

func newWriter(out io.Writer) *Writer {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)

	return &Writer{
		out:      out,
		renderer: renderer,

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).
			Bold(true),

		successStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"}),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"}),

		boldStyle: lipgloss.NewStyle().Bold(true),

		promptStyle: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0066CC", Dark: "#5599FF"}).
			Bold(true),
	}
}

func newStdoutWriter() *Writer {
	return newWriter(os.Stdout)
}

// Println writes a plain formatted line.
func (w *Writer) Println(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, format+"\n", args...)
}

// Success writes a green checkmarked line.
func (w *Writer) Success(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// Error writes a red line to the same stream so ordering is stable.
func (w *Writer) Error(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.errorStyle.Render("✗ "+fmt.Sprintf(format, args...)))
}

// Dim writes secondary content.
func (w *Writer) Dim(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.dimStyle.Render(fmt.Sprintf(format, args...)))
}

// Bold writes emphasized content.
func (w *Writer) Bold(format string, args ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, w.boldStyle.Render(fmt.Sprintf(format, args...)))
}

// Prompt writes the chat input prompt without a trailing newline.
func (w *Writer) Prompt(label string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprint(w.out, w.promptStyle.Render(label)+" ")
}

// Markdown renders md through glamour, falling back to plain text when the
// renderer is unavailable (dumb terminals, tests).
func (w *Writer) Markdown(md string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.renderer == nil {
		fmt.Fprintln(w.out, md)
		return
	}
	rendered, err := w.renderer.Render(md)
	if err != nil {
		fmt.Fprintln(w.out, md)
		return
	}
	fmt.Fprintln(w.out, strings.TrimRight(rendered, "\n"))
}
