package stream

import (
	"reflect"
	"testing"
)

// decodeAll feeds the input split into the given chunk sizes (cycling) and
// collects every emitted line.
func decodeAll(t *testing.T, input []byte, chunkSize int) []string {
	t.Helper()
	d := NewLineDecoder()
	var lines []string
	for i := 0; i < len(input); i += chunkSize {
		end := i + chunkSize
		if end > len(input) {
			end = len(input)
		}
		lines = append(lines, d.Feed(input[i:end])...)
	}
	return lines
}

func TestLineDecoderChunkSplitInvariance(t *testing.T) {
	// Mixed ASCII and multi-byte text; every chunk size must yield the same
	// lines as feeding the input whole, with no truncated characters.
	input := []byte("data: {\"content\":\"héllo\"}\ndata: {\"content\":\"世界\"}\n: keep-alive\ndata: [DONE]\n")

	want := decodeAll(t, input, len(input))
	for chunkSize := 1; chunkSize <= 7; chunkSize++ {
		got := decodeAll(t, input, chunkSize)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("chunk size %d: got %q, want %q", chunkSize, got, want)
		}
	}

	for _, line := range want {
		for _, r := range line {
			if r == '�' {
				t.Errorf("line %q contains a truncated multi-byte character", line)
			}
		}
	}
}

func TestLineDecoderCarriesPartialLines(t *testing.T) {
	d := NewLineDecoder()

	if lines := d.Feed([]byte("data: {\"con")); len(lines) != 0 {
		t.Fatalf("expected no lines from partial chunk, got %q", lines)
	}
	lines := d.Feed([]byte("tent\":\"A\"}\ndata: "))
	if len(lines) != 1 || lines[0] != `data: {"content":"A"}` {
		t.Fatalf("unexpected lines: %q", lines)
	}
	if d.Pending() == 0 {
		t.Error("expected trailing fragment to stay buffered")
	}
}

func TestLineDecoderStripsCarriageReturn(t *testing.T) {
	d := NewLineDecoder()
	lines := d.Feed([]byte("data: one\r\ndata: two\n"))
	want := []string{"data: one", "data: two"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("got %q, want %q", lines, want)
	}
}

func TestLineDecoderReset(t *testing.T) {
	d := NewLineDecoder()
	d.Feed([]byte("partial"))
	d.Reset()
	if d.Pending() != 0 {
		t.Errorf("expected empty carry after reset, got %d bytes", d.Pending())
	}
}
