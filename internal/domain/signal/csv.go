package signal

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/okian/gameproof/internal/domain/model"
)

// Column names of event CSVs.
const (
	ColumnTimestamp = "timestamp"
	ColumnFrame     = "frame"
	ColumnEvent     = "event"
	ColumnKeycode   = "keycode"
)

// DecodeInputCSV reads the keystroke log uploaded by a client. The header must
// name at least the timestamp and event columns.
func DecodeInputCSV(r io.Reader, maxRows int) ([]model.EventRecord, error) {
	return DecodeEventCSV(r, ColumnTimestamp, maxRows)
}

// DecodeEventCSV reads a headed CSV whose refColumn holds the time reference
// of each event. Blank rows are skipped. maxRows <= 0 disables the row cap.
func DecodeEventCSV(r io.Reader, refColumn string, maxRows int) ([]model.EventRecord, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var (
		refIdx, eventIdx, keyIdx = -1, -1, -1
		header                   bool
		out                      []model.EventRecord
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		if blank(rec) {
			continue
		}
		if !header {
			for i, name := range rec {
				switch strings.ToLower(strings.TrimSpace(name)) {
				case refColumn:
					refIdx = i
				case ColumnEvent:
					eventIdx = i
				case ColumnKeycode:
					keyIdx = i
				}
			}
			if refIdx < 0 || eventIdx < 0 {
				return nil, fmt.Errorf("%w: header must contain %q and %q", ErrDecode, refColumn, ColumnEvent)
			}
			header = true
			continue
		}
		if refIdx >= len(rec) || eventIdx >= len(rec) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: missing columns", ErrDecode, line)
		}
		if maxRows > 0 && len(out) >= maxRows {
			return nil, fmt.Errorf("%w: more than %d rows", ErrDecode, maxRows)
		}
		ev := model.EventRecord{
			Ref:  strings.TrimSpace(rec[refIdx]),
			Kind: model.ParseEventKind(rec[eventIdx]),
		}
		if keyIdx >= 0 && keyIdx < len(rec) {
			ev.Key = strings.TrimSpace(rec[keyIdx])
		}
		out = append(out, ev)
	}
	if !header {
		return nil, fmt.Errorf("%w: missing header row", ErrDecode)
	}
	return out, nil
}

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// skipBOM drops a leading UTF-8 byte order mark, as written by spreadsheet exports.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
