// Package logview renders console lines in a scrolling terminal view.
//
// The newest line sits at the bottom above a one-row status bar. Scrolling
// up holds the view steady while new lines keep arriving.
package logview

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"

	"github.com/dshills/jsinspect/internal/integration/inspector/console"
)

// DefaultMaxLines bounds the retained history.
const DefaultMaxLines = 10000

const tabWidth = 4

// View is a scrolling log of console lines drawn on a tcell screen.
type View struct {
	mu       sync.Mutex
	screen   tcell.Screen
	lines    []console.Line
	maxLines int

	// scroll is how many lines the view is scrolled up from the newest.
	scroll int

	status      string
	statusStyle tcell.Style
}

// Option configures a View.
type Option func(*View)

// WithMaxLines sets how many lines are retained.
func WithMaxLines(n int) Option {
	return func(v *View) {
		if n > 0 {
			v.maxLines = n
		}
	}
}

// New creates a View drawing on screen. The screen must already be initialized.
func New(screen tcell.Screen, opts ...Option) *View {
	v := &View{
		screen:      screen,
		maxLines:    DefaultMaxLines,
		statusStyle: tcell.StyleDefault.Reverse(true),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Append adds a line and requests a redraw. It is safe to call from any goroutine.
func (v *View) Append(line console.Line) {
	v.mu.Lock()
	v.lines = append(v.lines, line)
	if over := len(v.lines) - v.maxLines; over > 0 {
		v.lines = append(v.lines[:0], v.lines[over:]...)
	}
	if v.scroll > 0 {
		v.scroll++
	}
	v.clampScroll()
	v.mu.Unlock()

	v.requestRedraw()
}

// SetStatus replaces the status bar text.
func (v *View) SetStatus(status string) {
	v.mu.Lock()
	v.status = status
	v.mu.Unlock()

	v.requestRedraw()
}

// Len returns the number of retained lines.
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.lines)
}

// Scroll moves the view by delta lines; positive scrolls toward older lines.
func (v *View) Scroll(delta int) {
	v.mu.Lock()
	v.scroll += delta
	v.clampScroll()
	v.mu.Unlock()
}

// clampScroll keeps scroll within range. Caller holds mu.
func (v *View) clampScroll() {
	maxScroll := len(v.lines) - v.bodyHeight()
	if maxScroll < 0 {
		maxScroll = 0
	}
	if v.scroll > maxScroll {
		v.scroll = maxScroll
	}
	if v.scroll < 0 {
		v.scroll = 0
	}
}

func (v *View) bodyHeight() int {
	_, h := v.screen.Size()
	if h < 1 {
		return 0
	}
	return h - 1
}

func (v *View) requestRedraw() {
	// Best-effort; the queue may be full or the screen finalized.
	_ = v.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// Render draws the visible lines and the status bar and shows the screen.
func (v *View) Render() {
	v.mu.Lock()
	defer v.mu.Unlock()

	width, height := v.screen.Size()
	v.screen.Clear()
	if width <= 0 || height <= 0 {
		return
	}

	body := height - 1
	end := len(v.lines) - v.scroll
	start := end - body
	if start < 0 {
		start = 0
	}
	for row, line := range v.lines[start:end] {
		drawText(v.screen, 0, row, width, line.Text, line.Style)
	}

	status := v.status
	if v.scroll > 0 {
		status = fmt.Sprintf("%s [+%d]", status, v.scroll)
	}
	for x := 0; x < width; x++ {
		v.screen.SetContent(x, height-1, ' ', nil, v.statusStyle)
	}
	drawText(v.screen, 0, height-1, width, status, v.statusStyle)

	v.screen.Show()
}

// drawText writes text at row y, expanding tabs and clipping at width.
// It returns the column after the last cell written.
func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) int {
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		runes := g.Runes()
		if runes[0] == '\t' {
			next := (x/tabWidth + 1) * tabWidth
			for ; x < next && x < width; x++ {
				screen.SetContent(x, y, ' ', nil, style)
			}
			continue
		}
		if runes[0] == '\n' || runes[0] == '\r' {
			continue
		}

		w := g.Width()
		if x+w > width {
			break
		}
		screen.SetContent(x, y, runes[0], runes[1:], style)
		x += w
	}
	return x
}

// HandleEvent applies a key or resize event and reports whether the user
// asked to quit.
func (v *View) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		v.mu.Lock()
		v.clampScroll()
		v.mu.Unlock()
		v.screen.Sync()
	case *tcell.EventKey:
		page := v.bodyHeight()
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyUp:
			v.Scroll(1)
		case tcell.KeyDown:
			v.Scroll(-1)
		case tcell.KeyPgUp:
			v.Scroll(page)
		case tcell.KeyPgDn:
			v.Scroll(-page)
		case tcell.KeyHome:
			v.Scroll(v.Len())
		case tcell.KeyEnd:
			v.Scroll(-v.Len())
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return true
			case 'k':
				v.Scroll(1)
			case 'j':
				v.Scroll(-1)
			case 'G':
				v.Scroll(-v.Len())
			}
		}
	}
	return false
}

// Run draws and handles input until the user quits, ctx is done, or the
// screen is finalized.
func (v *View) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			v.requestRedraw()
		case <-stop:
		}
	}()

	v.Render()
	for {
		ev := v.screen.PollEvent()
		if ev == nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if v.HandleEvent(ev) {
			return nil
		}
		v.Render()
	}
}

// Lines returns a copy of the retained text, oldest first.
func (v *View) Lines() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]string, len(v.lines))
	for i, l := range v.lines {
		out[i] = strings.TrimRight(l.Text, "\n")
	}
	return out
}
