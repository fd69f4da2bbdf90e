package stream

import "bytes"

// LineDecoder turns a sequence of binary chunks, as produced by reading an
// HTTP response body, into complete text lines.
//
// Bytes are accumulated in a carry buffer and only emitted once a line feed
// arrives, so a multi-byte UTF-8 character split across two chunk boundaries
// is reassembled before it can appear in any emitted line. Whatever remains
// in the carry buffer when the stream ends is an incomplete trailing line
// and is discarded by the caller.
type LineDecoder struct {
	carry []byte
}

// NewLineDecoder returns a decoder with an empty carry buffer.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{}
}

// Feed appends chunk to the carry buffer and returns every complete line it
// now holds, in order. The final fragment after the last line feed stays
// buffered for the next call. A trailing carriage return is stripped so CRLF
// transports decode the same as LF ones.
func (d *LineDecoder) Feed(chunk []byte) []string {
	d.carry = append(d.carry, chunk...)

	var lines []string
	for {
		i := bytes.IndexByte(d.carry, '\n')
		if i < 0 {
			break
		}
		line := d.carry[:i]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lines = append(lines, string(line))
		d.carry = d.carry[i+1:]
	}

	// Reclaim the backing array once everything buffered has been emitted,
	// otherwise append above would keep growing the old one.
	if len(d.carry) == 0 {
		d.carry = nil
	}
	return lines
}

// Pending returns the number of buffered bytes not yet emitted.
func (d *LineDecoder) Pending() int { return len(d.carry) }

// Reset drops any buffered bytes.
func (d *LineDecoder) Reset() { d.carry = nil }
