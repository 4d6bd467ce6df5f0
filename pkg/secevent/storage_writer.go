package secevent

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// WriterStorage appends one record per line to an io.Writer, typically a
// log file consumed as a stream by dashboards. Line format:
//
//	<ISO-8601 timestamp>\t<type>\t<principal id or "null">\t<ip>\t<description>
type WriterStorage struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterStorage creates a line-oriented event sink.
func NewWriterStorage(w io.Writer) *WriterStorage {
	if w == nil {
		panic("secevent: writer cannot be nil")
	}
	return &WriterStorage{w: w}
}

// Store appends one line for the event. Writes are serialized so concurrent
// records never interleave within a line.
func (s *WriterStorage) Store(ctx context.Context, event Event) error {
	principal := event.UserID
	if principal == "" {
		principal = "null"
	}

	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\n",
		event.CreatedAt.UTC().Format(time.RFC3339),
		event.Type,
		principal,
		event.IP,
		sanitizeDescription(event.Description),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.w, line); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageNotAvailable, err)
	}
	return nil
}

// sanitizeDescription strips characters that would break the one-record-per-line
// framing guarantees consumed by downstream readers.
func sanitizeDescription(desc string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return ' '
		default:
			return r
		}
	}, desc)
}
