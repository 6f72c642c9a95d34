package harnessio

import (
	"bufio"
	"io"

	"github.com/go-errors/errors"
)

// A WriteCloser that scans tokens with splitFunc (see bufio.Scanner) and
// writes each token followed by outputDelimeter to the destination writer in
// a single call to Write.  Closing a ScanningWriter does _not_ close the
// destination writer as it may be shared.
type ScanningWriter struct {
	readerDoneChan chan struct{}
	pipeWriter     *io.PipeWriter
	err            error
}

// MaxTokenBytes bounds a single token.  Longer tokens end scanning; the rest
// of the stream is discarded so writers never observe the failure.
const MaxTokenBytes = 1 << 20

func NewScanningWriter(writer io.Writer, splitFunc bufio.SplitFunc, outputDelimeter []byte) *ScanningWriter {
	w := &ScanningWriter{}
	var pipeReader *io.PipeReader
	pipeReader, w.pipeWriter = io.Pipe()
	scanner := bufio.NewScanner(pipeReader)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxTokenBytes)
	if splitFunc != nil {
		scanner.Split(splitFunc)
	}
	w.readerDoneChan = make(chan struct{})
	go func() {
		defer close(w.readerDoneChan)
		for scanner.Scan() {
			// copy: appending to scanner.Bytes() would write into the
			// scanner's buffer
			token := make([]byte, 0, len(scanner.Bytes())+len(outputDelimeter))
			token = append(token, scanner.Bytes()...)
			token = append(token, outputDelimeter...)
			if _, err := writer.Write(token); err != nil {
				w.err = errors.WrapPrefix(err, "ScanningWriter destination Write", 0)
				break
			}
		}
		if err := scanner.Err(); err != nil {
			w.err = errors.Join(w.err, errors.WrapPrefix(err, "ScanningWriter Scan", 0))
		}
		// keep accepting writes until the writer side closes.  Returns at EOF.
		if _, err := io.Copy(io.Discard, pipeReader); err != nil {
			w.err = errors.Join(w.err, errors.WrapPrefix(err, "ScanningWriter drain", 0))
		}
	}()
	return w
}

func (w *ScanningWriter) Write(p []byte) (n int, err error) {
	return w.pipeWriter.Write(p)
}

// Close flushes the final unterminated token, waits for the scanning
// goroutine and returns any error it observed.  Write does not report those
// errors.
func (w *ScanningWriter) Close() error {
	err := w.pipeWriter.Close()
	<-w.readerDoneChan
	return errors.Join(w.err, err)
}
