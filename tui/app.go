// Package tui implements the optional live viewer for a running
// comparison: a register pane, a current-line pane, and a scrolling
// diagnostic log, stepped one row at a time or run freely.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/cairnsoft/ndiff/engine"
	"github.com/cairnsoft/ndiff/regfile"
)

// TUI represents the text user interface for a comparison run
type TUI struct {
	// Core components
	Engine *engine.Engine
	App    *tview.Application
	Pages  *tview.Pages

	// Layout containers
	MainLayout *tview.Flex

	// View panels
	LinesView    *tview.TextView
	RegisterView *tview.TextView
	StatusView   *tview.TextView
	OutputView   *tview.TextView

	// State
	stepping bool
	stepCh   chan struct{}
	runErr   error
}

// New creates a new text user interface over an engine
func New(e *engine.Engine) *TUI {
	t := &TUI{
		Engine:   e,
		App:      tview.NewApplication(),
		stepping: true,
		stepCh:   make(chan struct{}),
	}

	t.initializeViews()
	t.buildLayout()
	t.setupKeyBindings()

	return t
}

// NewWithScreen creates a TUI using the provided screen (for testing
// with tcell's simulation screen)
func NewWithScreen(e *engine.Engine, screen tcell.Screen) *TUI {
	t := New(e)
	t.App.SetScreen(screen)
	return t
}

// initializeViews creates all the view panels
func (t *TUI) initializeViews() {
	// Current line pair
	t.LinesView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false).
		SetWrap(false)
	t.LinesView.SetBorder(true).SetTitle(" Current Lines ")

	// Register file
	t.RegisterView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.RegisterView.SetBorder(true).SetTitle(" Registers ")

	// Row/column/diff counters
	t.StatusView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	t.StatusView.SetBorder(true).SetTitle(" Status ")

	// Diagnostics log
	t.OutputView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	t.OutputView.SetBorder(true).SetTitle(" Diagnostics ")
	t.OutputView.SetChangedFunc(func() { t.App.Draw() })
}

// buildLayout constructs the TUI layout
func (t *TUI) buildLayout() {
	// Left panel: current lines over status
	left := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.LinesView, 0, 2, false).
		AddItem(t.StatusView, 5, 0, false)

	// Main content: left panel and registers side by side
	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(left, 0, 2, false).
		AddItem(t.RegisterView, 0, 1, false)

	// Main layout: content over diagnostics log
	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 3, false).
		AddItem(t.OutputView, 10, 0, false)

	t.Pages = tview.NewPages().
		AddPage("main", t.MainLayout, true, true)
}

// setupKeyBindings sets up keyboard shortcuts
func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF5:
			t.resume(false)
			return nil
		case tcell.KeyF10:
			t.resume(true)
			return nil
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlL:
			t.RefreshAll()
			return nil
		}
		return event
	})
}

// resume releases the engine goroutine blocked in the step hook.
// stepping selects whether it pauses again at the next row.
func (t *TUI) resume(stepping bool) {
	t.stepping = stepping
	select {
	case t.stepCh <- struct{}{}:
	default:
	}
}

// OutputWriter returns the writer the diagnostics sink should print to
// so that warnings land in the Diagnostics pane.
func (t *TUI) OutputWriter() io.Writer { return tview.ANSIWriter(t.OutputView) }

// Run starts the comparison in a background goroutine and hands the
// terminal to the viewer. It returns the engine's error, if any, once
// the user quits or the comparison completes.
func (t *TUI) Run(lhsOut, rhsOut io.Writer) error {
	t.Engine.StepHook = t.onStep

	go func() {
		t.runErr = t.Engine.Run(lhsOut, rhsOut)
		t.App.QueueUpdateDraw(func() {
			t.refreshViews()
			fmt.Fprintf(t.OutputView, "[green]comparison finished[white]\n")
		})
	}()

	if err := t.App.Run(); err != nil {
		return err
	}
	return t.runErr
}

// onStep is the engine's per-row hook: refresh the panes, then block
// until the user steps or continues.
func (t *TUI) onStep(e *engine.Engine) {
	t.App.QueueUpdateDraw(t.refreshViews)
	if t.stepping {
		<-t.stepCh
	}
}

// RefreshAll refreshes all view panels and redraws
func (t *TUI) RefreshAll() {
	t.refreshViews()
	t.App.Draw()
}

func (t *TUI) refreshViews() {
	lhs, rhs := t.Engine.Lines()
	t.LinesView.SetText(formatLines(lhs, rhs))
	t.RegisterView.SetText(formatRegisters(t.Engine.Registers()))

	row, col, cnt, num := t.Engine.GetInfo()
	t.StatusView.SetText(formatStatus(row, col, cnt, num))
}

// formatLines renders the current line pair one above the other
func formatLines(lhs, rhs string) string {
	return fmt.Sprintf("[yellow]lhs:[white] %s\n[yellow]rhs:[white] %s", lhs, rhs)
}

// reservedNames labels the comparator's output registers in the pane
var reservedNames = map[int]string{
	regfile.RLHS:    "lhs",
	regfile.RRHS:    "rhs",
	regfile.RDiff:   "dif",
	regfile.RErr:    "err",
	regfile.RAbsErr: "abs",
	regfile.RRelErr: "rel",
	regfile.RDigErr: "dig",
	regfile.RMin:    "min",
	regfile.RPow:    "pow",
}

// formatRegisters renders the reserved registers with their names,
// then any non-zero user registers
func formatRegisters(f *regfile.File) string {
	var lines []string
	for i := 1; i <= 9; i++ {
		lines = append(lines, fmt.Sprintf("R%-3d %-3s %14.6g", i, reservedNames[i], f.Get(i, 0)))
	}
	lines = append(lines, "")
	for i := 10; i <= f.Len(); i++ {
		if v := f.Get(i, 0); v != 0 {
			lines = append(lines, fmt.Sprintf("R%-3d     %14.6g", i, v))
		}
	}
	return strings.Join(lines, "\n")
}

// formatStatus renders the engine counters
func formatStatus(row, col, cnt, num int) string {
	return fmt.Sprintf("Row: %d  Col: %d\nNumbers: %d  Diffs: %d\n[gray]F10 step  F5 run  ^C quit[white]", row, col, num, cnt)
}
