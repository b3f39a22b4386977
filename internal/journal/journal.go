// Package journal appends bot activity as newline-delimited JSON so fills and
// failures survive restarts and can be tailed or replayed later.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event is one journal line. Zero fields are omitted so each workflow only
// records what it touched.
type Event struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`

	UserID  int64  `json:"user_id,omitempty"`
	Account string `json:"account,omitempty"`

	Asset     string `json:"asset,omitempty"`
	Expiry    string `json:"expiry,omitempty"`
	ProductID int    `json:"product_id,omitempty"`
	Symbol    string `json:"symbol,omitempty"`

	OrderID     int `json:"order_id,omitempty"`
	CallOrderID int `json:"call_order_id,omitempty"`
	PutOrderID  int `json:"put_order_id,omitempty"`

	Side    string `json:"side,omitempty"`
	Size    int    `json:"size,omitempty"`
	LotSize int    `json:"lot_size,omitempty"`

	Strike       string `json:"strike,omitempty"`
	EntryPrice   string `json:"entry_price,omitempty"`
	TriggerPrice string `json:"trigger_price,omitempty"`
	LimitPrice   string `json:"limit_price,omitempty"`

	Placed int `json:"placed,omitempty"`
	Failed int `json:"failed,omitempty"`

	Err string `json:"err,omitempty"`
}

// Writer appends events to a JSONL file. It is safe for concurrent use, and a
// nil *Writer drops every record so callers never guard journaling.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

// New returns a writer that appends to path. A blank path returns nil, which
// disables journaling.
func New(path string) *Writer {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return &Writer{path: path}
}

func (w *Writer) ensureOpenLocked() error {
	if w.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	w.file = f
	w.w = bufio.NewWriterSize(f, 256*1024)
	return nil
}

// Record appends ev as a single JSON object followed by '\n', stamping ts_ms
// when unset. It flushes after every record to make the line visible to
// tailers.
func (w *Writer) Record(ev Event) error {
	if w == nil {
		return nil
	}
	if strings.TrimSpace(ev.Event) == "" {
		return fmt.Errorf("journal: event name required")
	}
	if ev.TsMs == 0 {
		ev.TsMs = time.Now().UnixMilli()
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.ensureOpenLocked(); err != nil {
		return err
	}

	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

// Close flushes any buffered data and closes the underlying file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	if w.w != nil {
		if err := w.w.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.w = nil
	w.file = nil

	if firstErr != nil && errors.Is(firstErr, os.ErrClosed) {
		return nil
	}
	return firstErr
}
