package debug

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func capture(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(lvl)
	t.Cleanup(func() {
		Init(LevelOff)
		SetOutput(&bytes.Buffer{})
	})
	return &buf
}

func TestLevelsFilterOutput(t *testing.T) {
	buf := capture(t, LevelLive)

	Info("info %d", 1)
	Live("live")
	Verbose("verbose")
	Trace("trace")
	GPIO("write", 17, true)

	out := buf.String()
	if !strings.Contains(out, "[INFO] info 1") {
		t.Errorf("missing info line in %q", out)
	}
	if !strings.Contains(out, "[LIVE] live") {
		t.Errorf("missing live line in %q", out)
	}
	if strings.Contains(out, "verbose") || strings.Contains(out, "trace") || strings.Contains(out, "[GPIO]") {
		t.Errorf("levels above %d leaked: %q", LevelLive, out)
	}
}

func TestOffIsSilent(t *testing.T) {
	buf := capture(t, LevelOff)
	Info("x")
	Error(errors.New("boom"))
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
	if IsEnabled(LevelInfo) {
		t.Error("IsEnabled(info) at level off")
	}
}

func TestTraceShowsEverything(t *testing.T) {
	buf := capture(t, LevelTrace)
	Command("START", "START")
	Move(90, 512, "forward")
	GPIO("write", 17, true)
	Error(errors.New("servo stalled"))

	out := buf.String()
	for _, want := range []string{
		`Command "START" -> START`,
		"Turntable: 90° = 512 steps (forward)",
		"[GPIO] write pin=17 value=true",
		"[ERROR] servo stalled",
		"[QCStation] ",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
	if Level() != LevelTrace {
		t.Errorf("Level() = %d, want %d", Level(), LevelTrace)
	}
}

func TestSetOutputAfterInit(t *testing.T) {
	capture(t, LevelInfo)
	var other bytes.Buffer
	SetOutput(&other)
	Info("redirected")
	if !strings.Contains(other.String(), "redirected") {
		t.Errorf("expected redirected output, got %q", other.String())
	}
}

func TestFmtOnlyWhenEnabled(t *testing.T) {
	capture(t, LevelOff)
	if s := Fmt("%d°", 90); s != "" {
		t.Errorf("Fmt at level off = %q, want empty", s)
	}
	Init(LevelInfo)
	if s := Fmt("%d°", 90); s != "90°" {
		t.Errorf("Fmt = %q, want 90°", s)
	}
}
