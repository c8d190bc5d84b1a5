package sandbox

import "strings"

const truncationMarker = "... output truncated"

// outputBuffer collects print output up to a byte limit. A limit of zero or
// less means unbounded.
type outputBuffer struct {
	buf       strings.Builder
	limit     int
	truncated bool
}

func newOutputBuffer(limit int) *outputBuffer {
	return &outputBuffer{limit: limit}
}

// WriteLine appends msg followed by a newline.
func (o *outputBuffer) WriteLine(msg string) {
	if o.truncated {
		return
	}
	line := msg + "\n"
	if o.limit > 0 && o.buf.Len()+len(line) > o.limit {
		if remaining := o.limit - o.buf.Len(); remaining > 0 {
			o.buf.WriteString(line[:remaining])
		}
		o.buf.WriteString("\n" + truncationMarker + "\n")
		o.truncated = true
		return
	}
	o.buf.WriteString(line)
}

func (o *outputBuffer) String() string {
	return o.buf.String()
}

func (o *outputBuffer) Len() int {
	return o.buf.Len()
}
