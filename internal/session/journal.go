// ABOUTME: JSONL journal of stream cursors with append-only writes
// ABOUTME: Lets the CLI resume the most recent interrupted interaction across runs

package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mauromedda/genai-go/internal/config"
	"github.com/mauromedda/genai-go/pkg/interactions"
)

// RecordType identifies the type of JSONL record.
type RecordType string

const (
	RecordInterrupted RecordType = "interrupted"
	RecordCompleted   RecordType = "completed"
)

// Record is the envelope for all JSONL entries.
type Record struct {
	Version int             `json:"v"`
	Type    RecordType      `json:"type"`
	TS      string          `json:"ts"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// CursorData is the payload of every record.
type CursorData struct {
	interactions.Position
	Model string `json:"model,omitempty"`
	Error string `json:"error,omitempty"`
}

// Journal appends cursor records to a JSONL file.
type Journal struct {
	path string
	now  func() time.Time
}

// Open returns a journal at path. The file is created on first append.
func Open(path string) *Journal {
	return &Journal{path: path, now: time.Now}
}

// OpenDefault returns the journal in the global config directory.
func OpenDefault() *Journal {
	return Open(config.JournalFile())
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Append writes one record as a single O_APPEND write.
func (j *Journal) Append(recType RecordType, data CursorData) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling record data: %w", err)
	}

	rec := Record{
		Version: 1,
		Type:    recType,
		TS:      j.now().UTC().Format(time.RFC3339),
		Data:    dataBytes,
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}
	line = append(line, '\n')

	if err := config.EnsureDir(filepath.Dir(j.path)); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("writing record: %w", err)
	}
	return f.Close()
}

// Records reads all records. A missing journal has no records.
func (j *Journal) Records() ([]Record, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue // Skip malformed lines
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("scanning journal: %w", err)
	}
	return records, nil
}

// LastInterrupted returns the most recently interrupted interaction whose
// latest record is still an interruption.
func (j *Journal) LastInterrupted() (CursorData, bool, error) {
	records, err := j.Records()
	if err != nil {
		return CursorData{}, false, err
	}

	latest := make(map[string]RecordType)
	for i := len(records) - 1; i >= 0; i-- {
		var d CursorData
		if err := json.Unmarshal(records[i].Data, &d); err != nil || d.InteractionID == "" {
			continue
		}
		if _, seen := latest[d.InteractionID]; seen {
			continue
		}
		latest[d.InteractionID] = records[i].Type
		if records[i].Type == RecordInterrupted {
			return d, true, nil
		}
	}
	return CursorData{}, false, nil
}
