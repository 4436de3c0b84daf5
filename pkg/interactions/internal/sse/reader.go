// ABOUTME: Server-Sent Events parser yielding one frame per blank-line-terminated block
// ABOUTME: Supports event, data (multi-line) and id fields; retry and comment lines are skipped

package sse

import (
	"bufio"
	"io"
	"strings"
)

// Frame is a single dispatched Server-Sent Event.
type Frame struct {
	Event string
	Data  string
	ID    string
}

// Reader parses Server-Sent Events from an io.Reader.
type Reader struct {
	scanner *bufio.Scanner
	first   bool
}

const maxLineSize = 4 * 1024 * 1024 // media deltas carry large base64 lines

// NewReader creates a new SSE reader from the given io.Reader.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: s, first: true}
}

// Next reads and returns the next SSE frame.
// Returns io.EOF when the stream ends cleanly between frames. A trailing frame
// without a terminating blank line is still dispatched.
func (r *Reader) Next() (Frame, error) {
	var fr Frame
	var dataLines []string
	var hasContent bool

	for r.scanner.Scan() {
		line := r.scanner.Text()
		if r.first {
			line = strings.TrimPrefix(line, "\ufeff")
			r.first = false
		}

		if line == "" {
			if hasContent {
				fr.Data = strings.Join(dataLines, "\n")
				return fr, nil
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		if applyField(&fr, &dataLines, field, value) {
			hasContent = true
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Frame{}, err
	}

	if hasContent {
		fr.Data = strings.Join(dataLines, "\n")
		return fr, nil
	}

	return Frame{}, io.EOF
}

// parseLine splits an SSE line into field name and value.
func parseLine(line string) (string, string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	// Strip optional leading space after colon.
	value = strings.TrimPrefix(value, " ")
	return field, value
}

// applyField applies a parsed field to the frame and reports whether the field
// counts as frame content. Unknown fields are ignored.
func applyField(fr *Frame, dataLines *[]string, field, value string) bool {
	switch field {
	case "event":
		fr.Event = value
		return true
	case "data":
		*dataLines = append(*dataLines, value)
		return true
	case "id":
		if strings.ContainsRune(value, 0) {
			return false
		}
		fr.ID = value
		return true
	default:
		// retry and unknown fields.
		return false
	}
}
