package harnessio

import (
	"io"
	"sync"
)

// LockingWriter serializes writes from the log handler and the diagnostic
// output so lines on a shared stream do not interleave.
type LockingWriter struct {
	locker sync.Locker
	writer io.Writer
}

func NewLockingWriter(writer io.Writer) *LockingWriter {
	return &LockingWriter{locker: &sync.Mutex{}, writer: writer}
}

func (w *LockingWriter) Write(p []byte) (int, error) {
	w.locker.Lock()
	defer w.locker.Unlock()
	return w.writer.Write(p)
}
