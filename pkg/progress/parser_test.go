package progress

import (
	"fmt"
	"testing"
)

func feedAll(p *Parser, s string) []int {
	return p.Feed([]byte(s))
}

func TestParserBasicPercentages(t *testing.T) {
	tests := []struct {
		total int64
		line  string
		want  int
	}{
		{1000, "500 bytes (500 B) copied\r", 50},
		{1000, "1000 bytes copied\r", 100},
		{1000, "1200 bytes copied\r", 100},
		{2048, "1024 bytes (1.0 kB, 1.0 KiB) copied, 0.5 s\r", 50},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			p := NewParser(tt.total)
			got := feedAll(p, tt.line)
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("Feed(%q) = %v, want [%d]", tt.line, got, tt.want)
			}
		})
	}
}

func TestParserIgnoresMalformedLines(t *testing.T) {
	p := NewParser(1000)

	for _, line := range []string{
		"garbage\r",
		"\r",
		"many bytes copied\r", // unparsable count
		"records in\r",
	} {
		if got := feedAll(p, line); len(got) != 0 {
			t.Errorf("Feed(%q) yielded %v, want nothing", line, got)
		}
	}

	// A valid line afterwards still works.
	if got := feedAll(p, "100 bytes copied\r"); len(got) != 1 || got[0] != 10 {
		t.Errorf("valid line after garbage yielded %v, want [10]", got)
	}
}

func TestParserBuffersPartialLines(t *testing.T) {
	p := NewParser(1000)

	if got := feedAll(p, "500 byt"); len(got) != 0 {
		t.Fatalf("partial line yielded %v, want nothing", got)
	}
	if got := feedAll(p, "es copied\r"); len(got) != 1 || got[0] != 50 {
		t.Fatalf("completed line yielded %v, want [50]", got)
	}
}

func TestParserDeduplicatesAndStaysMonotonic(t *testing.T) {
	p := NewParser(1000)

	stream := "100 bytes copied\r100 bytes copied\r105 bytes copied\r300 bytes copied\r"
	got := feedAll(p, stream)
	want := []int{10, 30}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("yielded %v, want %v", got, want)
	}

	prev := -1
	for _, pct := range got {
		if pct <= prev {
			t.Errorf("percentage %d did not advance past %d", pct, prev)
		}
		prev = pct
	}
}

// Arbitrary chunking must not change the final value reached.
func TestParserChunkingInvariance(t *testing.T) {
	stream := "0 bytes copied\r250 bytes (250 B) copied\r500 bytes copied\r750 bytes copied\r1000 bytes copied\r"

	whole := NewParser(1000)
	wantFinal := -1
	for _, pct := range feedAll(whole, stream) {
		wantFinal = pct
	}

	for _, chunkSize := range []int{1, 2, 3, 7, 16, len(stream)} {
		p := NewParser(1000)
		var yielded []int
		for i := 0; i < len(stream); i += chunkSize {
			end := i + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			yielded = append(yielded, p.Feed([]byte(stream[i:end]))...)
		}

		prev := -1
		for _, pct := range yielded {
			if pct <= prev {
				t.Errorf("chunk size %d: sequence not increasing: %v", chunkSize, yielded)
				break
			}
			prev = pct
		}
		if p.Last() != wantFinal {
			t.Errorf("chunk size %d: final value %d, want %d", chunkSize, p.Last(), wantFinal)
		}
	}
}

func TestParserZeroTotal(t *testing.T) {
	p := NewParser(0)
	if got := feedAll(p, "0 bytes copied\r"); len(got) != 1 || got[0] != 100 {
		t.Errorf("zero-total parser yielded %v, want [100]", got)
	}
}
