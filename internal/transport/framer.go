// Package transport owns the agent subprocess: spawning it, wiring its
// stdio, and framing its stdout into discrete JSON-RPC lines tolerant of
// noise the agent may write ahead of its first JSON object.
package transport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/grayridge/acphost/internal/common/logger"
)

// maxLineBytes bounds how large the accumulated cross-line buffer may grow
// before the framer gives up on it and resyncs, protecting against a
// runaway agent that never emits a parseable value.
const maxLineBytes = 1 << 20 // 1 MiB

// Framer reads newline-delimited data from an agent's stdout and yields
// only complete JSON values, discarding any preamble or garbage the agent
// prints before its first well-formed message (spec.md §4.1: some agents
// print banners, npm warnings, etc. to stdout before going quiet). A JSON
// value split across multiple NDJSON lines is reconstructed: lines are
// accumulated into a persistent buffer until parsing succeeds, and the
// buffer survives a parse failure that looks like truncation rather than
// garbage (spec.md §4.1 "tolerant framing").
type Framer struct {
	scanner    *bufio.Scanner
	log        *logger.Logger
	buf        bytes.Buffer
	eofPending bool
}

// NewFramer wraps r with a scanner sized for typical ACP payloads (tool
// outputs, diffs) while still capping pathological lines at maxLineBytes.
func NewFramer(r io.Reader, log *logger.Logger) *Framer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Framer{scanner: scanner, log: log}
}

// Next returns the next complete JSON value read from the stream, or (nil,
// false) once the underlying reader is exhausted. Each new line is
// appended to a persistent buffer and the whole buffer is retried as one
// JSON value: a value split across several lines accumulates until it
// parses; a parse failure that isn't mere truncation triggers a resync
// attempt from the first '{' or '[' in the line that just arrived, and
// failing that, the buffer is dropped and framing resumes on the next
// line.
func (f *Framer) Next() ([]byte, bool) {
	for f.scanner.Scan() {
		line := f.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if f.buf.Len() > 0 {
			f.buf.WriteByte('\n')
		}
		f.buf.Write(line)

		if f.buf.Len() > maxLineBytes {
			f.log.Warn("dropping oversized stdout buffer", zap.Int("bytes", f.buf.Len()))
			f.buf.Reset()
			continue
		}

		if out, ok := f.tryParse(); ok {
			return out, true
		}
		if f.eofPending {
			// Truncated value: keep the buffer, wait for more lines.
			continue
		}

		if resynced, ok := resync(line); ok {
			f.log.Warn("discarded non-JSON preamble before resync",
				zap.Int("discarded_bytes", len(line)-len(resynced)))
			f.buf.Reset()
			f.buf.Write(resynced)
			if out, ok := f.tryParse(); ok {
				return out, true
			}
			if f.eofPending {
				continue
			}
		}

		f.log.Warn("discarding unparseable line", zap.Int("bytes", f.buf.Len()))
		f.buf.Reset()
	}
	return nil, false
}

// tryParse attempts to parse the current buffer contents as one JSON
// value. On success it clears the buffer and returns a copy of its bytes.
// On failure it sets eofPending to record whether the failure looked like
// truncation (more input may complete the value) rather than garbage,
// leaving the buffer untouched for the caller to resync or discard.
func (f *Framer) tryParse() ([]byte, bool) {
	var v json.RawMessage
	err := json.Unmarshal(f.buf.Bytes(), &v)
	if err == nil {
		out := make([]byte, f.buf.Len())
		copy(out, f.buf.Bytes())
		f.buf.Reset()
		f.eofPending = false
		return out, true
	}
	var syn *json.SyntaxError
	f.eofPending = errors.Is(err, io.ErrUnexpectedEOF) ||
		(errors.As(err, &syn) && syn.Error() == "unexpected end of JSON input")
	return nil, false
}

// Err returns the terminal scanner error, if any. bufio.ErrTooLong surfaces
// here when a single line exceeded maxLineBytes.
func (f *Framer) Err() error {
	return f.scanner.Err()
}

// resync looks for the first '{' or '[' in line and returns the remainder
// from there, letting the framer recover mid-line from a prefixed banner
// instead of dropping the whole line.
func resync(line []byte) ([]byte, bool) {
	idx := bytes.IndexAny(line, "{[")
	if idx < 0 {
		return nil, false
	}
	return line[idx:], true
}
