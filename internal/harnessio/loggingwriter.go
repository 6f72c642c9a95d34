package harnessio

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync/atomic"
)

// Indicates how to log as a Writer.
// Logs to the provided logger, at the given level, with msg used as the log
// message.  Any bytes provided to Write() will be logged in key "key"
type LogWrapper struct {
	logger *slog.Logger
	level  slog.Level
	msg    string
	key    string
}

// CreateLogWrapper names the program stream ("stdout" or "stderr") in every
// record it logs.
func CreateLogWrapper(logger *slog.Logger, outputStreamName string, level slog.Level) LogWrapper {
	logger = logger.With("output_stream_name", outputStreamName)
	return LogWrapper{
		logger: logger,
		level:  level,
		msg:    "command output",
		key:    "line",
	}
}

func (w *LogWrapper) write(p []byte) {
	if !w.logger.Enabled(context.Background(), w.level) {
		return
	}
	newBytes := bytes.TrimRight(p, "\n\r")
	w.logger.LogAttrs(
		context.Background(),
		w.level,
		w.msg,
		slog.String(w.key, string(newBytes)))
}

// a Writer that logs each Write() according to the provided LogWrapper.
// NB: the boundaries of Write() are important.  Write([]byte("ab")) is
// different from Write([]byte("a")) followed by Write([]byte("b")).
// The former logs 1 line with "ab", the latter logs 2 lines, "a" and "b"
type LoggingWriter struct {
	wrapper           LogWrapper
	totalBytesWritten atomic.Uint64
}

func NewLoggingWriter(wrapper LogWrapper) *LoggingWriter {
	return &LoggingWriter{wrapper: wrapper}
}

func (w *LoggingWriter) Write(p []byte) (int, error) {
	w.wrapper.write(p)
	w.totalBytesWritten.Add(uint64(len(p)))
	return len(p), nil
}

// TotalBytesWritten counts bytes including line delimiters.
func (w *LoggingWriter) TotalBytesWritten() uint64 {
	return w.totalBytesWritten.Load()
}

// OutputWriter connects a command's stdout or stderr to logging, one record
// per line.  Must be closed after the command exits to log a final line that
// lacks a newline.
type OutputWriter struct {
	*ScanningWriter
	logging *LoggingWriter
}

func CreateOutputWriter(logWrapper LogWrapper) *OutputWriter {
	logging := NewLoggingWriter(logWrapper)
	return &OutputWriter{
		ScanningWriter: NewScanningWriter(logging, bufio.ScanLines, []byte("\n")),
		logging:        logging,
	}
}

// TotalBytesWritten is only complete after Close returns.
func (w *OutputWriter) TotalBytesWritten() uint64 {
	return w.logging.TotalBytesWritten()
}

var _ io.WriteCloser = &OutputWriter{}
