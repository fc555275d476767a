package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	keyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
)

// progressPrinter redraws a single status line with a progress bar.
type progressPrinter struct {
	mu    sync.Mutex
	w     io.Writer
	bar   progress.Model
	width int
	drawn bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{
		w:   w,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(32)),
	}
}

// Update matches speech.ProgressFunc.
func (p *progressPrinter) Update(percent int, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := fmt.Sprintf("%s %s", p.bar.ViewAs(float64(percent)/100), dimStyle.Render(message))
	pad := ""
	if n := lipgloss.Width(line); n < p.width {
		pad = strings.Repeat(" ", p.width-n)
	} else {
		p.width = n
	}
	fmt.Fprintf(p.w, "\r%s%s", line, pad)
	p.drawn = true
}

// Done ends the status line so later output starts on a fresh line.
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}
