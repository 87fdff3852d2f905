package diag

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
)

// restoreLogging puts the package back to its startup state.
func restoreLogging(t *testing.T) {
	t.Cleanup(func() {
		SetLogLevel(slog.LevelWarn)
		SetOutput(os.Stderr, LogFormatText)
	})
}

func TestSetLogLevel(t *testing.T) {
	restoreLogging(t)
	log := Logger(ComponentPATA)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(ParseLevel(tt.name))
			ctx := context.Background()
			if !log.Enabled(ctx, tt.level) {
				t.Errorf("level %v disabled after SetLogLevel(%q)", tt.level, tt.name)
			}
			if log.Enabled(ctx, tt.level-1) {
				t.Errorf("level %v enabled after SetLogLevel(%q)", tt.level-1, tt.name)
			}
		})
	}

	if got := ParseLevel("bogus"); got != slog.LevelWarn {
		t.Errorf("ParseLevel(bogus) = %v, want warn", got)
	}
}

func TestLoggerComponent(t *testing.T) {
	restoreLogging(t)

	var buf bytes.Buffer
	SetOutput(&buf, LogFormatText)
	Logger(ComponentPATA).Warn("status wait timeout", "retries", 100)

	out := buf.String()
	if !strings.Contains(out, "component=pata") {
		t.Errorf("missing component attribute: %s", out)
	}
	if !strings.Contains(out, "retries=100") {
		t.Errorf("missing retries attribute: %s", out)
	}
}

func TestSetOutputJSON(t *testing.T) {
	restoreLogging(t)

	var buf bytes.Buffer
	SetOutput(&buf, LogFormatJSON)
	Logger(ComponentSD).Error("drive not found")
	if !strings.Contains(buf.String(), `"msg":"drive not found"`) || !strings.Contains(buf.String(), `"component":"sd"`) {
		t.Errorf("JSON log output = %s", buf.String())
	}
}

func TestLineWriter(t *testing.T) {
	var lines []string
	w := NewLineWriter(func(s string) { lines = append(lines, s) })

	w.Write([]byte("first\nsec"))
	w.Write([]byte("ond\nthird"))
	if len(lines) != 2 {
		t.Fatalf("got %d lines before flush, want 2: %q", len(lines), lines)
	}
	w.Flush()

	want := []string{"first", "second", "third"}
	if len(lines) != len(want) {
		t.Fatalf("got %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFormatBits(t *testing.T) {
	got := FormatBits(StatusBits, 0x58)
	want := "BSY=0 DRDY=1 DWF=0 DSC=1 DRQ=1 CORR=0 IDX=0 ERR=0"
	if got != want {
		t.Errorf("FormatBits(status, 0x58) = %q, want %q", got, want)
	}

	got = FormatBits(ErrorBits, 0x04)
	if !strings.Contains(got, "ABRT=1") || strings.Count(got, "=1") != 1 {
		t.Errorf("FormatBits(error, 0x04) = %q", got)
	}
}

func TestHexdump(t *testing.T) {
	buf := make([]byte, 20)
	copy(buf, "Hello, PATA!")
	buf[16] = 0x55
	buf[17] = 0xAA

	var out bytes.Buffer
	if err := Hexdump(&out, buf); err != nil {
		t.Fatalf("Hexdump failed: %v", err)
	}

	rows := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2:\n%s", len(rows), out.String())
	}
	if !strings.HasPrefix(rows[0], "0x0000\t48 65 6c 6c 6f ") {
		t.Errorf("row 0 = %q", rows[0])
	}
	if !strings.HasSuffix(rows[0], "\tHello, PATA!....") {
		t.Errorf("row 0 ascii = %q", rows[0])
	}
	if !strings.HasPrefix(rows[1], "0x0010\t55 aa 00 00 ") {
		t.Errorf("row 1 = %q", rows[1])
	}
	if len(rows[0]) != len(rows[1])+12 {
		t.Errorf("short row not padded: %d vs %d", len(rows[0]), len(rows[1]))
	}
}
