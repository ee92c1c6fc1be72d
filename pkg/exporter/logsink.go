package exporter

import (
	"bufio"
	"io"

	"github.com/jumpstarter-dev/jumpstarter/pkg/logstream"
	jumpstarterv1 "github.com/jumpstarter-dev/jumpstarter/pkg/wire/jumpstarterv1"
)

// LogSink is a thin severity-tagged wrapper over a logstream.Ring, used by
// both exporter-internal status transitions and hook output capture.
type LogSink struct {
	ring *logstream.Ring
}

// NewLogSink wraps ring for use by the exporter lifecycle.
func NewLogSink(ring *logstream.Ring) *LogSink {
	return &LogSink{ring: ring}
}

func (s *LogSink) Info(source, message string) {
	s.ring.Append(source, jumpstarterv1.SeverityInfo, message)
}

func (s *LogSink) Warn(source, message string) {
	s.ring.Append(source, jumpstarterv1.SeverityWarning, message)
}

func (s *LogSink) Error(source, message string) {
	s.ring.Append(source, jumpstarterv1.SeverityError, message)
}

// LineWriter returns an io.Writer that splits whatever is written to it
// into lines and appends each as its own log entry under source/severity,
// used to capture a hook subprocess's merged stdout/stderr.
func (s *LogSink) LineWriter(source string, severity jumpstarterv1.Severity) io.WriteCloser {
	pr, pw := io.Pipe()
	lw := &lineWriter{pw: pw}
	go func() {
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 4096), 1<<20)
		for scanner.Scan() {
			s.ring.Append(source, severity, scanner.Text())
		}
	}()
	return lw
}

type lineWriter struct {
	pw *io.PipeWriter
}

func (w *lineWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }
func (w *lineWriter) Close() error                 { return w.pw.Close() }
