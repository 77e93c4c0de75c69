package handlers

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/net2share/go-corelib/tui"
	"github.com/net2share/meshtun/internal/actions"
)

// TUIOutput implements OutputWriter on top of the tui package. While a
// progress view is open every line goes into it.
type TUIOutput struct {
	progressView *tui.ProgressView
}

// NewTUIOutput creates a new TUI output writer.
func NewTUIOutput() *TUIOutput {
	return &TUIOutput{}
}

// text writes a plain line, to the progress view when one is open.
func (t *TUIOutput) text(line string, print func()) {
	if t.progressView != nil {
		t.progressView.AddText(line)
		return
	}
	print()
}

func (t *TUIOutput) Print(msg string) {
	t.text(msg, func() { fmt.Print(msg) })
}

func (t *TUIOutput) Println(args ...interface{}) {
	line := fmt.Sprint(args...)
	t.text(line, func() { fmt.Println(args...) })
}

func (t *TUIOutput) Info(msg string) {
	if t.progressView != nil {
		t.progressView.AddInfo(msg)
		return
	}
	tui.PrintInfo(msg)
}

func (t *TUIOutput) Success(msg string) {
	if t.progressView != nil {
		t.progressView.AddSuccess(msg)
		return
	}
	tui.PrintSuccess(msg)
}

func (t *TUIOutput) Warning(msg string) {
	if t.progressView != nil {
		t.progressView.AddWarning(msg)
		return
	}
	tui.PrintWarning(msg)
}

func (t *TUIOutput) Error(msg string) {
	if t.progressView != nil {
		t.progressView.AddError(msg)
		return
	}
	tui.PrintError(msg)
}

func (t *TUIOutput) Status(msg string) {
	if t.progressView != nil {
		t.progressView.AddStatus(msg)
		return
	}
	tui.PrintStatus(msg)
}

func (t *TUIOutput) Box(title string, lines []string) {
	if t.progressView == nil {
		tui.PrintBox(title, lines)
		return
	}
	if title != "" {
		t.progressView.AddText(title)
	}
	for _, line := range lines {
		t.progressView.AddText("  " + line)
	}
}

func (t *TUIOutput) KV(key, value string) string {
	return tui.KV(key+": ", value)
}

func (t *TUIOutput) Table(headers []string, rows [][]string) {
	header, body, width := formatTable(headers, rows)
	t.text(header, func() { fmt.Println(header) })
	if t.progressView == nil {
		t.separator(width)
	}
	for _, line := range body {
		t.text(line, func() { fmt.Println(line) })
	}
}

// formatTable pads every cell to its column's display width. Peer URIs and
// state symbols are not all one byte per column.
func formatTable(headers []string, rows [][]string) (header string, body []string, width int) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], runewidth.StringWidth(cell))
			}
		}
	}

	line := func(cells []string) string {
		var b strings.Builder
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			b.WriteString(runewidth.FillRight(cell, widths[i]+2))
		}
		return strings.TrimRight(b.String(), " ")
	}

	for _, w := range widths {
		width += w + 2
	}
	for _, row := range rows {
		body = append(body, line(row))
	}
	return line(headers), body, width
}

func (t *TUIOutput) separator(length int) {
	sep := strings.Repeat("-", length)
	t.text(sep, func() { fmt.Println(sep) })
}

func (t *TUIOutput) ShowInfo(cfg actions.InfoConfig) error {
	tuiCfg := tui.InfoConfig{
		Title:       cfg.Title,
		Description: cfg.Description,
	}
	for _, section := range cfg.Sections {
		tuiSection := tui.InfoSection{Title: section.Title}
		for _, row := range section.Rows {
			tuiSection.Rows = append(tuiSection.Rows, tui.InfoRow{
				Key:     row.Key,
				Value:   row.Value,
				Columns: row.Columns,
			})
		}
		tuiCfg.Sections = append(tuiCfg.Sections, tuiSection)
	}
	return tui.ShowInfo(tuiCfg)
}

func (t *TUIOutput) BeginProgress(title string) {
	t.progressView = tui.NewProgressView(title)
}

func (t *TUIOutput) EndProgress() {
	if t.progressView != nil {
		t.progressView.Done()
		t.progressView = nil
	}
}

var _ actions.OutputWriter = (*TUIOutput)(nil)
