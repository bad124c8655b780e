package logging

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrNilWriter is returned by HealthLog.Append when the log was constructed
// with a nil writer.
var ErrNilWriter = errors.New("health log: writer is nil")

// HealthLog is the durable record of every finding and run summary. Lines
// are human-readable and severity-tagged so the operator can grep them:
//
//	2026-08-28T06:30:01Z [critical] temperature: 82.0°C (warning 70, critical 80)
//
// It is append-only and safe for concurrent use.
type HealthLog struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewHealthLog returns a HealthLog appending to w. If w is nil the returned
// log is also nil; callers must check before use.
func NewHealthLog(w io.Writer) *HealthLog {
	if w == nil {
		return nil
	}
	return &HealthLog{w: w, now: time.Now}
}

// Append writes one severity-tagged line. It returns an error if the writer
// is nil or the write fails.
func (l *HealthLog) Append(severity, format string, args ...any) error {
	if l == nil || l.w == nil {
		return ErrNilWriter
	}
	line := fmt.Sprintf("%s [%s] %s\n",
		l.now().UTC().Format(time.RFC3339), severity, fmt.Sprintf(format, args...))

	l.mu.Lock()
	_, err := l.w.Write([]byte(line))
	l.mu.Unlock()
	return err
}
