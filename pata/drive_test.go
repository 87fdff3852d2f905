package pata

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"cfcard/ata"
	"cfcard/bus/sim"
	"cfcard/diag"
)

// sleeper records requested delays instead of sleeping
type sleeper struct {
	calls []time.Duration
}

func (s *sleeper) Sleep(d time.Duration) {
	s.calls = append(s.calls, d)
}

func (s *sleeper) count(d time.Duration) int {
	n := 0
	for _, c := range s.calls {
		if c == d {
			n++
		}
	}
	return n
}

func newTestDrive(store sim.Storage, opts sim.Options) (*Drive, *sim.Drive, *sleeper) {
	hw := sim.New(store, opts)
	sl := &sleeper{}
	d := New(hw, Config{
		Sleep:  sl.Sleep,
		Logger: diag.NewLogger(io.Discard, nil),
	})
	return d, hw, sl
}

func TestDefaultConfig(t *testing.T) {
	d := New(sim.New(sim.NewMemory(1), sim.Options{}), Config{})
	if d.cfg.StatusTimeout != 100 || d.cfg.PollInterval != time.Millisecond {
		t.Errorf("status timing = %d x %v, want 100 x 1ms", d.cfg.StatusTimeout, d.cfg.PollInterval)
	}
	if d.cfg.ReadyTimeout != 30 || d.cfg.ReadyInterval != time.Second {
		t.Errorf("ready timing = %d x %v, want 30 x 1s", d.cfg.ReadyTimeout, d.cfg.ReadyInterval)
	}
	if d.cfg.Sleep == nil || d.log == nil {
		t.Error("sleep or logger not defaulted")
	}
}

func TestModeString(t *testing.T) {
	tests := map[Mode]string{
		ModeNotInitialized: "not-initialized",
		ModeLBA:            "lba",
		ModeCHS:            "chs",
		Mode(9):            "unknown",
	}
	for m, want := range tests {
		if got := m.String(); got != want {
			t.Errorf("Mode(%d).String() = %q, want %q", m, got, want)
		}
	}
}

func TestRegisterCycles(t *testing.T) {
	d, hw, _ := newTestDrive(sim.NewMemory(1), sim.Options{})

	d.WriteRegister(ata.RegCount, 0x2A)
	if got := d.ReadRegister(ata.RegCount); got != 0x2A {
		t.Errorf("sector count = 0x%02x, want 0x2a", got)
	}
	if hw.StrobeEdges != 2 {
		t.Errorf("StrobeEdges = %d, want 2", hw.StrobeEdges)
	}
}

func TestWaitForStatusTimeout(t *testing.T) {
	hw := sim.New(sim.NewMemory(1), sim.Options{StuckBusy: true})
	sl := &sleeper{}
	d := New(hw, Config{
		StatusTimeout: 7,
		Sleep:         sl.Sleep,
		Logger:        diag.NewLogger(io.Discard, nil),
	})

	err := d.WaitForStatus(0)
	if !errors.Is(err, ErrStatusTimeout) {
		t.Fatalf("WaitForStatus() = %v, want ErrStatusTimeout", err)
	}
	if len(sl.calls) != 7 {
		t.Errorf("slept %d times, want exactly 7", len(sl.calls))
	}
	if sl.count(time.Millisecond) != 7 {
		t.Errorf("poll interval not 1ms: %v", sl.calls)
	}
	if hw.StatusReads != 8 {
		t.Errorf("StatusReads = %d, want 8", hw.StatusReads)
	}
}

func TestWaitForStatusBusyClears(t *testing.T) {
	d, hw, sl := newTestDrive(sim.NewMemory(1), sim.Options{PowerOnBusyReads: 3})

	if err := d.WaitForStatus(0); err != nil {
		t.Fatalf("WaitForStatus() = %v", err)
	}
	if len(sl.calls) != 3 {
		t.Errorf("slept %d times, want 3", len(sl.calls))
	}
	if hw.StatusReads != 4 {
		t.Errorf("StatusReads = %d, want 4", hw.StatusReads)
	}
}

func TestWaitForStatusRequiredFlags(t *testing.T) {
	d, _, sl := newTestDrive(sim.NewMemory(1), sim.Options{})
	d.ReadRegister(ata.RegStatus) // power-on busy

	if err := d.WaitForStatus(ata.StatusDRQ); !errors.Is(err, ErrStatusTimeout) {
		t.Fatalf("WaitForStatus(DRQ) without a transfer = %v, want timeout", err)
	}
	if len(sl.calls) != 100 {
		t.Errorf("slept %d times, want 100", len(sl.calls))
	}
	if err := d.WaitForStatus(ata.StatusReady); err != nil {
		t.Errorf("WaitForStatus(DRDY) = %v", err)
	}
}

func TestDumpAndInterrupt(t *testing.T) {
	var logs bytes.Buffer
	hw := sim.New(sim.NewMemory(1), sim.Options{})
	d := New(hw, Config{
		Sleep:  (&sleeper{}).Sleep,
		Logger: diag.NewLogger(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
	d.ReadRegister(ata.RegStatus)

	if s := d.DumpStatus(); s != ata.StatusReady|ata.StatusSeek {
		t.Errorf("DumpStatus() = 0x%02x", s)
	}
	if e := d.DumpError(); e != 0 {
		t.Errorf("DumpError() = 0x%02x", e)
	}
	d.DumpRegisters()

	handler := d.InterruptHandler()
	if n := d.LogInterrupts(); n != 0 {
		t.Errorf("LogInterrupts() before any edge = %d", n)
	}
	edges := hw.StrobeEdges
	before := logs.Len()
	handler()
	handler()
	if hw.StrobeEdges != edges {
		t.Error("interrupt handler touched the bus")
	}
	if logs.Len() != before {
		t.Error("interrupt handler logged")
	}
	if allocs := testing.AllocsPerRun(10, handler); allocs != 0 {
		t.Errorf("interrupt handler allocates %v times", allocs)
	}
	// two edges plus the warm-up and runs of AllocsPerRun
	if n := d.LogInterrupts(); n != 13 {
		t.Errorf("LogInterrupts() = %d, want 13", n)
	}
	if n := d.LogInterrupts(); n != 0 {
		t.Errorf("second LogInterrupts() = %d, want 0", n)
	}

	out := logs.String()
	for _, want := range []string{
		"BSY=0 DRDY=1 DWF=0 DSC=1",
		"ABRT=0",
		"msg=registers",
		"msg=interrupt count=13",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
