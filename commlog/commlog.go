// Package commlog records every frame exchanged on a link and exports the
// record as text, NDJSON or CSV.
package commlog

import (
	"bytes"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// Direction of a logged frame.
const (
	TX = "TX"
	RX = "RX"
)

// Export formats.
const (
	FormatText = "txt"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ErrUnsupportedFormat is returned for an unknown export format or file extension.
var ErrUnsupportedFormat = errors.New("commlog: unsupported format, use txt, json or csv")

var csvHeader = []string{"ts_utc", "direction", "message", "raw_hex", "seq"}

// Entry is one logged frame.
type Entry struct {
	Time      time.Time `json:"ts_utc"`
	Direction string    `json:"direction"`
	Message   string    `json:"message"`
	RawHex    string    `json:"raw_hex,omitempty"`
	Seq       *int      `json:"seq,omitempty"`
}

// Log is an in-memory communication log. It is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// New creates an empty log.
func New() *Log {
	return &Log{now: time.Now}
}

// OnTx records a transmitted frame. Seq is left unset when seqOK is false.
func (l *Log) OnTx(seq uint8, seqOK bool, raw []byte) {
	l.add(TX, seq, seqOK, raw)
}

// OnRx records a received frame. Seq is left unset when seqOK is false.
func (l *Log) OnRx(seq uint8, seqOK bool, raw []byte) {
	l.add(RX, seq, seqOK, raw)
}

func (l *Log) add(dir string, seq uint8, seqOK bool, raw []byte) {
	e := Entry{
		Time:      l.now().UTC(),
		Direction: dir,
		Message:   message(raw),
		RawHex:    hex.EncodeToString(raw),
	}
	if seqOK {
		s := int(seq)
		e.Seq = &s
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// message returns raw as text when it is valid UTF-8, else as hex.
func message(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	return hex.EncodeToString(raw)
}

// Entries returns a copy of the logged entries.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)

	return out
}

// Len returns the number of logged entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

// Clear removes every entry.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// Format renders the log in format: "txt" for one human readable line per
// entry, "json" for NDJSON, "csv" for CSV with a header row.
func (l *Log) Format(format string) (string, error) {
	entries := l.Entries()

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText:
		lines := make([]string, 0, len(entries))
		for _, e := range entries {
			lines = append(lines, e.String())
		}

		return strings.Join(lines, "\n"), nil

	case FormatJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return "", err
			}
		}

		return strings.TrimSuffix(buf.String(), "\n"), nil

	case FormatCSV:
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)
		_ = w.Write(csvHeader)
		for _, e := range entries {
			_ = w.Write(e.record())
		}
		w.Flush()

		return buf.String(), w.Error()

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Save writes the log to path in the format named by its extension:
// .txt, .json or .csv.
func (l *Log) Save(path string) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch format {
	case FormatText, FormatJSON, FormatCSV:
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}

	data, err := l.Format(format)
	if err != nil {
		return err
	}
	if data != "" && format != FormatCSV {
		data += "\n"
	}

	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return fmt.Errorf("commlog: save %s: %w", path, err)
	}

	return nil
}

// String renders the entry as "[ts] DIR "message" raw=.. seq=..".
func (e Entry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %q", timestamp(e.Time), e.Direction, e.Message)
	if e.RawHex != "" {
		sb.WriteString(" raw=" + e.RawHex)
	}
	if e.Seq != nil {
		sb.WriteString(" seq=" + strconv.Itoa(*e.Seq))
	}

	return sb.String()
}

func (e Entry) record() []string {
	seq := ""
	if e.Seq != nil {
		seq = strconv.Itoa(*e.Seq)
	}

	return []string{timestamp(e.Time), e.Direction, e.Message, e.RawHex, seq}
}

// MarshalJSON renders Time with millisecond precision.
func (e Entry) MarshalJSON() ([]byte, error) {
	type plain Entry
	return json.Marshal(struct {
		Time string `json:"ts_utc"`
		plain
	}{
		Time:  timestamp(e.Time),
		plain: plain(e),
	})
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
