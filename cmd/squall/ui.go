package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/squall/internal/editor"
	"github.com/dshills/squall/internal/highlight"
	"github.com/dshills/squall/internal/lsp"
)

// tickInterval is the synchronization loop cadence. Fast enough that
// streamed batches appear continuous, slow enough to stay idle-cheap.
const tickInterval = 15 * time.Millisecond

// UI drives the terminal: it polls input on a goroutine, ticks the
// editor on a timer, and redraws when either reports a change.
type UI struct {
	screen tcell.Screen
	ed     *editor.Editor
	log    *editor.Logger

	top        int // first visible buffer line
	cursorLine int
	cursorCol  int // byte column

	statusMsg   string
	completions []string

	quit bool
}

// NewUI creates the terminal screen.
func NewUI(ed *editor.Editor, log *editor.Logger) (*UI, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &UI{screen: screen, ed: ed, log: log.WithComponent("ui")}, nil
}

// Stop requests a clean exit from any goroutine.
func (u *UI) Stop() {
	_ = u.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// Run opens path and blocks until quit.
func (u *UI) Run(path string) error {
	if err := u.screen.Init(); err != nil {
		return err
	}
	defer u.screen.Fini()
	u.screen.EnablePaste()

	if err := u.ed.OpenFile(path); err != nil {
		return err
	}

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	u.draw()
	for !u.quit {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if u.handleEvent(ev) {
				u.draw()
			}
		case <-ticker.C:
			if u.ed.Tick() {
				u.draw()
			}
			if msg, ok := u.ed.Status().Pop(); ok {
				u.statusMsg = msg
				u.draw()
			}
		}
	}

	u.shutdown()
	return nil
}

// shutdown stops the editor and ticks until the session winds down.
func (u *UI) shutdown() {
	u.ed.Shutdown()
	deadline := time.Now().Add(3 * time.Second)
	for {
		s := u.ed.Session()
		if s == nil || s.State() == lsp.StateOff {
			return
		}
		if time.Now().After(deadline) {
			s.ForceStop()
			return
		}
		u.ed.Tick()
		time.Sleep(5 * time.Millisecond)
	}
}

// handleEvent applies one terminal event, reporting whether to redraw.
func (u *UI) handleEvent(ev tcell.Event) bool {
	switch e := ev.(type) {
	case *tcell.EventResize:
		u.screen.Sync()
		return true
	case *tcell.EventInterrupt:
		u.quit = true
		return false
	case *tcell.EventKey:
		return u.handleKey(e)
	}
	return false
}

func (u *UI) handleKey(e *tcell.EventKey) bool {
	buf := u.ed.Buffer()
	_, h := u.screen.Size()
	page := h - 2
	if page < 1 {
		page = 1
	}

	switch e.Key() {
	case tcell.KeyCtrlQ, tcell.KeyCtrlC:
		u.quit = true
		return false

	case tcell.KeyCtrlS:
		u.save()
		return true

	case tcell.KeyUp:
		u.moveCursor(-1, 0)
	case tcell.KeyDown:
		u.moveCursor(1, 0)
	case tcell.KeyLeft:
		u.moveCursor(0, -1)
	case tcell.KeyRight:
		u.moveCursor(0, 1)
	case tcell.KeyPgUp:
		u.cursorLine -= page
		u.moveCursor(0, 0)
	case tcell.KeyPgDn:
		u.cursorLine += page
		u.moveCursor(0, 0)
	case tcell.KeyHome:
		u.cursorCol = 0
	case tcell.KeyEnd:
		u.cursorCol = len(buf.Line(u.cursorLine))

	case tcell.KeyEnter:
		u.ed.SplitLine(u.cursorLine, u.cursorCol)
		u.cursorLine++
		u.cursorCol = 0
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if u.cursorCol > 0 {
			u.cursorCol--
			u.ed.DeleteChars(u.cursorLine, u.cursorCol, 1)
		} else if u.cursorLine > 0 {
			u.cursorLine--
			u.cursorCol = len(buf.Line(u.cursorLine))
			u.ed.JoinLines(u.cursorLine)
		}
	case tcell.KeyDelete:
		if u.cursorCol < len(buf.Line(u.cursorLine)) {
			u.ed.DeleteChars(u.cursorLine, u.cursorCol, 1)
		} else {
			u.ed.JoinLines(u.cursorLine)
		}

	case tcell.KeyCtrlSpace:
		if err := u.ed.RequestCompletion(u.cursorLine, u.cursorCol); err != nil {
			u.statusMsg = "completion: " + err.Error()
		}
	case tcell.KeyF12:
		if err := u.ed.RequestDefinition(u.cursorLine, u.cursorCol); err != nil {
			u.statusMsg = "definition: " + err.Error()
		}
	case tcell.KeyEscape:
		u.completions = nil

	case tcell.KeyTab:
		u.ed.InsertChars(u.cursorLine, u.cursorCol, "\t")
		u.cursorCol++

	case tcell.KeyRune:
		s := string(e.Rune())
		u.ed.InsertChars(u.cursorLine, u.cursorCol, s)
		u.cursorCol += len(s)

	default:
		return false
	}

	u.scrollToCursor()
	return true
}

// moveCursor moves and clamps the cursor.
func (u *UI) moveCursor(dl, dc int) {
	buf := u.ed.Buffer()
	u.cursorLine += dl
	if u.cursorLine < 0 {
		u.cursorLine = 0
	}
	if max := buf.LineCount() - 1; u.cursorLine > max && max >= 0 {
		u.cursorLine = max
	}
	u.cursorCol += dc
	if u.cursorCol < 0 {
		u.cursorCol = 0
	}
	if n := len(buf.Line(u.cursorLine)); u.cursorCol > n {
		u.cursorCol = n
	}
}

// scrollToCursor keeps the cursor inside the text area.
func (u *UI) scrollToCursor() {
	_, h := u.screen.Size()
	text := h - 1
	if text < 1 {
		text = 1
	}
	if u.cursorLine < u.top {
		u.top = u.cursorLine
	}
	if u.cursorLine >= u.top+text {
		u.top = u.cursorLine - text + 1
	}
}

// save writes the buffer back to the open path.
func (u *UI) save() {
	text := u.ed.Buffer().Text()
	if err := os.WriteFile(u.ed.Path(), []byte(text), 0o644); err != nil {
		u.statusMsg = "save: " + err.Error()
		return
	}
	u.statusMsg = fmt.Sprintf("wrote %d bytes", len(text))
}

// draw renders the text area, a completion popup, and the status line.
func (u *UI) draw() {
	w, h := u.screen.Size()
	if h < 2 {
		return
	}
	text := h - 1
	u.ed.SetViewport(u.top, text)

	buf := u.ed.Buffer()
	tokens := u.ed.Tokens()
	theme := u.ed.Theme()
	diags := u.ed.Diagnostics()
	var uri lsp.DocumentURI
	if s := u.ed.Session(); s != nil {
		uri = s.DocumentURI()
	}

	u.screen.Clear()
	for row := 0; row < text; row++ {
		line := u.top + row
		if line >= buf.LineCount() {
			break
		}
		u.drawLine(row, w, buf.Line(line), tokens.Line(line), theme, len(diags.ForLine(uri, line)) > 0)
	}

	if list, ok := u.ed.TakeCompletion(); ok {
		u.completions = u.completions[:0]
		for i, item := range list.Items {
			if i >= 8 {
				break
			}
			u.completions = append(u.completions, item.Label)
		}
	}
	u.drawCompletions(w, text)
	// A visible popup pauses the streaming load so the rows under it
	// stay put while the user picks an item.
	u.ed.PauseLoading(len(u.completions) > 0)

	if locs, ok := u.ed.TakeDefinitions(); ok && len(locs) > 0 {
		u.statusMsg = fmt.Sprintf("definition: %s:%d",
			lsp.URIToFilePath(locs[0].URI), locs[0].Range.Start.Line+1)
	}

	u.drawStatus(w, h-1)

	if u.cursorLine >= u.top && u.cursorLine < u.top+text {
		u.screen.ShowCursor(u.cursorCol, u.cursorLine-u.top)
	} else {
		u.screen.HideCursor()
	}
	u.screen.Show()
}

// drawLine renders one buffer line with token colors. Cell positions
// are byte based to match token coordinates; multi-byte runes occupy
// their first byte's cell.
func (u *UI) drawLine(row, width int, line string, toks []highlight.Token, theme *highlight.Theme, hasDiag bool) {
	next := 0
	for off, r := range line {
		if off >= width {
			break
		}
		style := tcell.StyleDefault
		for next < len(toks) && toks[next].Col+toks[next].Length <= off {
			next++
		}
		if theme != nil && next < len(toks) && toks[next].Col <= off {
			style = style.Foreground(tcell.GetColor(theme.Hex(toks[next].Type)))
		}
		if hasDiag {
			style = style.Underline(true)
		}
		if r == '\t' {
			r = ' '
		}
		u.screen.SetContent(off, row, r, nil, style)
	}
}

// drawCompletions renders the completion popup under the cursor.
func (u *UI) drawCompletions(width, textHeight int) {
	if len(u.completions) == 0 {
		return
	}
	style := tcell.StyleDefault.Reverse(true)
	row := u.cursorLine - u.top + 1
	for i, label := range u.completions {
		y := row + i
		if y >= textHeight {
			break
		}
		for x, r := range label {
			if u.cursorCol+x >= width {
				break
			}
			u.screen.SetContent(u.cursorCol+x, y, r, nil, style)
		}
	}
}

// drawStatus renders the bottom status line.
func (u *UI) drawStatus(width, y int) {
	state := "no server"
	var errs, warns int
	if s := u.ed.Session(); s != nil {
		state = s.Config().LanguageID + " " + s.State().String()
		errs, warns = s.Diagnostics().Counts(s.DocumentURI())
	}
	left := fmt.Sprintf(" %s  %s  E:%d W:%d", u.ed.Path(), state, errs, warns)
	if u.ed.Loading() {
		left += "  loading..."
	}
	if u.statusMsg != "" {
		left += "  " + u.statusMsg
	}
	right := fmt.Sprintf("%d:%d ", u.cursorLine+1, u.cursorCol+1)

	style := tcell.StyleDefault.Reverse(true)
	col := 0
	for _, r := range left {
		if col >= width-len(right) {
			break
		}
		u.screen.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < width-len(right); col++ {
		u.screen.SetContent(col, y, ' ', nil, style)
	}
	for _, r := range right {
		if col >= width {
			break
		}
		u.screen.SetContent(col, y, r, nil, style)
		col++
	}
}
