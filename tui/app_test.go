package tui

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"github.com/cairnsoft/ndiff/engine"
	"github.com/cairnsoft/ndiff/linesource"
	"github.com/cairnsoft/ndiff/regfile"
	"github.com/cairnsoft/ndiff/rule"
)

func newTestTUI(t *testing.T) *TUI {
	t.Helper()
	lhs := linesource.NewFileSource(strings.NewReader("x = 1.0\n"))
	rhs := linesource.NewFileSource(strings.NewReader("x = 1.0\n"))
	e := engine.New(lhs, rhs, rule.NewSet(nil), 0, 20)

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("failed to init simulation screen: %v", err)
	}
	t.Cleanup(screen.Fini)

	return NewWithScreen(e, screen)
}

func TestNewBuildsAllPanes(t *testing.T) {
	tui := newTestTUI(t)
	if tui.LinesView == nil || tui.RegisterView == nil || tui.StatusView == nil || tui.OutputView == nil {
		t.Fatal("a view panel was not constructed")
	}
	if tui.Pages == nil || tui.MainLayout == nil {
		t.Fatal("layout was not constructed")
	}
	if !tui.stepping {
		t.Error("a fresh TUI should start in stepping mode")
	}
}

func TestFormatRegisters(t *testing.T) {
	f := regfile.New(20)
	f.Set(regfile.RLHS, 1.5)
	f.Set(regfile.RRHS, 1.25)
	f.Set(15, 42)

	out := formatRegisters(f)
	if !strings.Contains(out, "lhs") || !strings.Contains(out, "rhs") {
		t.Error("reserved registers should be labeled")
	}
	if !strings.Contains(out, "R15") {
		t.Error("non-zero user register should be listed")
	}
	if strings.Contains(out, "R16") {
		t.Error("zero user registers should be omitted")
	}
}

func TestFormatStatus(t *testing.T) {
	out := formatStatus(3, 2, 1, 7)
	if !strings.Contains(out, "Row: 3") || !strings.Contains(out, "Numbers: 7") {
		t.Errorf("status line missing counters: %q", out)
	}
}

func TestResumeDoesNotBlock(t *testing.T) {
	tui := newTestTUI(t)
	// No engine goroutine is waiting on the step channel; resume must
	// drop the step rather than deadlock the UI goroutine.
	done := make(chan struct{})
	go func() {
		tui.resume(true)
		tui.resume(false)
		close(done)
	}()
	<-done
	if tui.stepping {
		t.Error("resume(false) should leave stepping mode off")
	}
}
