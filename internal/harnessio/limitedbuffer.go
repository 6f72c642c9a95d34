package harnessio

import (
	"strings"

	"github.com/go-errors/errors"
)

var ErrOutputLimit = errors.Errorf("output exceeds %v bytes", MaxOutputBytes)

// LimitedBuffer keeps up to limit bytes.  The write that would exceed the
// limit keeps what fits and fails with ErrOutputLimit, as do all later
// writes, so a copying goroutine stops reading.
type LimitedBuffer struct {
	limit    int
	buf      strings.Builder
	exceeded bool
}

func NewLimitedBuffer(limit int) *LimitedBuffer {
	return &LimitedBuffer{limit: limit}
}

func (b *LimitedBuffer) Write(p []byte) (int, error) {
	if b.exceeded {
		return 0, ErrOutputLimit
	}
	room := b.limit - b.buf.Len()
	if len(p) > room {
		b.buf.Write(p[:room])
		b.exceeded = true
		return room, ErrOutputLimit
	}
	return b.buf.Write(p)
}

func (b *LimitedBuffer) String() string {
	return b.buf.String()
}

func (b *LimitedBuffer) Exceeded() bool {
	return b.exceeded
}
