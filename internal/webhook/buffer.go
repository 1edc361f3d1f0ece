package webhook

import "bytes"

// excerptBuffer retains the first limit bytes written to it and notes
// whether anything was dropped.
type excerptBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

// Write reports len(p) even when bytes are dropped, so io.Copy drains the
// response body fully.
func (b *excerptBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room < 0 {
		room = 0
	}
	if len(p) > room {
		b.truncated = true
		b.buf.Write(p[:room])
	} else {
		b.buf.Write(p)
	}
	return len(p), nil
}

func (b *excerptBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "..."
	}
	return b.buf.String()
}
