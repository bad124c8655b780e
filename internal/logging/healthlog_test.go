package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func Test_HealthLog_Append_Cases(t *testing.T) {
	tests := []struct {
		name     string
		severity string
		format   string
		args     []any
		want     string
	}{
		{
			name:     "critical finding line",
			severity: "critical",
			format:   "temperature %.1f°C (warning %d, critical %d)",
			args:     []any{82.0, 70, 80},
			want:     "[critical] temperature 82.0°C (warning 70, critical 80)",
		},
		{
			name:     "summary line",
			severity: "info",
			format:   "check complete: %d signals",
			args:     []any{11},
			want:     "[info] check complete: 11 signals",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewHealthLog(&buf)
			l.now = func() time.Time { return time.Date(2026, 8, 28, 6, 30, 1, 0, time.UTC) }

			if err := l.Append(tt.severity, tt.format, tt.args...); err != nil {
				t.Fatalf("Append() error: %v", err)
			}
			line := buf.String()
			if !strings.HasPrefix(line, "2026-08-28T06:30:01Z ") {
				t.Errorf("line %q missing timestamp prefix", line)
			}
			if !strings.Contains(line, tt.want) {
				t.Errorf("line %q missing %q", line, tt.want)
			}
			if !strings.HasSuffix(line, "\n") {
				t.Errorf("line %q not newline-terminated", line)
			}
		})
	}
}

func Test_HealthLog_NilWriter(t *testing.T) {
	if l := NewHealthLog(nil); l != nil {
		t.Fatal("NewHealthLog(nil) returned a usable log")
	}
	var l *HealthLog
	if err := l.Append("info", "x"); !errors.Is(err, ErrNilWriter) {
		t.Errorf("Append() on nil log = %v, want ErrNilWriter", err)
	}
}

func Test_New_LevelParsing(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, Config{Level: "warn"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	log.Info().Msg("suppressed")
	log.Warn().Msg("emitted")
	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info line emitted at warn level")
	}
	if !strings.Contains(out, "emitted") {
		t.Error("warn line missing")
	}

	if _, err := New(&buf, Config{Level: "nonsense"}); err == nil {
		t.Error("New() accepted an invalid level")
	}
}
