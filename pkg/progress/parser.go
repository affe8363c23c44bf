// Package progress carries the event stream of a run (log lines, overall
// and per-step percentages, terminal result) and parses the textual
// progress output of the raw block copy.
package progress

import (
	"strconv"
	"strings"
)

// Parser extracts percentages from the carriage-return delimited output of
// a copy tool running with status=progress. Updates arrive as lines of the
// form "<n> bytes (...) copied", possibly split across reads; the parser
// buffers partial lines and yields a percentage only when it advances past
// the previously yielded value.
type Parser struct {
	total int64
	buf   string
	last  int
}

// NewParser creates a parser against the known size of the source image.
func NewParser(totalBytes int64) *Parser {
	return &Parser{total: totalBytes, last: -1}
}

// Feed consumes the next chunk of stream text and returns the percentages
// completed by it, in order. Lines that do not carry a byte count, or whose
// count does not parse, are skipped.
func (p *Parser) Feed(chunk []byte) []int {
	p.buf += string(chunk)

	var out []int
	for {
		i := strings.IndexByte(p.buf, '\r')
		if i < 0 {
			break
		}
		line := p.buf[:i]
		p.buf = p.buf[i+1:]

		pct, ok := p.parseLine(line)
		if ok && pct > p.last {
			p.last = pct
			out = append(out, pct)
		}
	}
	return out
}

// Last returns the most recently yielded percentage, or -1 if none yet.
func (p *Parser) Last() int { return p.last }

func (p *Parser) parseLine(line string) (int, bool) {
	idx := strings.Index(line, " bytes")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(line[:idx]), 10, 64)
	if err != nil {
		return 0, false
	}
	// A zero-length image has nothing left to copy; any report means done.
	if p.total <= 0 {
		return 100, true
	}
	pct := int(n * 100 / p.total)
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct, true
}
