// Package observability provides the logging seam used across pdfslim.
// Library packages accept a Logger and default to the no-op implementation;
// the CLI installs a writer-backed logger.
package observability

import (
	"fmt"
	"io"
	"sync"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field      { return Field{Key: key, Value: value} }
func Int(key string, value int) Field     { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field { return Field{Key: key, Value: value} }
func Err(err error) Field                 { return Field{Key: "error", Value: err} }

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// WriterLogger emits one line per entry in "level msg key=value ..." form.
// Safe for concurrent use.
type WriterLogger struct {
	mu      sync.Mutex
	out     io.Writer
	minimum Level
	bound   []Field
}

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func NewWriterLogger(out io.Writer, minimum Level) *WriterLogger {
	return &WriterLogger{out: out, minimum: minimum}
}

func (l *WriterLogger) log(level Level, name, msg string, fields []Field) {
	if level < l.minimum {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s", name, msg)
	for _, f := range l.bound {
		fmt.Fprintf(l.out, " %s=%v", f.Key, f.Value)
	}
	for _, f := range fields {
		fmt.Fprintf(l.out, " %s=%v", f.Key, f.Value)
	}
	fmt.Fprintln(l.out)
}

func (l *WriterLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, "DEBUG", msg, fields) }
func (l *WriterLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, "INFO", msg, fields) }
func (l *WriterLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, "WARN", msg, fields) }
func (l *WriterLogger) Error(msg string, fields ...Field) { l.log(LevelError, "ERROR", msg, fields) }

func (l *WriterLogger) With(fields ...Field) Logger {
	child := &WriterLogger{out: l.out, minimum: l.minimum}
	child.bound = append(append([]Field{}, l.bound...), fields...)
	return child
}

// Standard metric names emitted by the library.
const (
	MetricParseTime       = "pdf.parse.duration"
	MetricImagesFound     = "pdf.images.found"
	MetricImagesRewritten = "pdf.images.rewritten"
	MetricBytesBefore     = "pdf.images.bytes_before"
	MetricBytesAfter      = "pdf.images.bytes_after"
	MetricWriteTime       = "pdf.write.duration"
)
