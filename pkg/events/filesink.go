package events

import (
	"fmt"
	"os"
	"sync"
)

// FileSink appends events to a file as a growing JSON array. The file
// is only valid JSON once Close has written the trailing bracket.
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	size   int64
	closed bool
}

// NewFileSink creates or truncates the output file.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening event file: %w", err)
	}
	return &FileSink{file: file}, nil
}

// WriteEvent appends one serialized event. The current file size
// decides whether the opening bracket or an element separator is
// needed first.
func (s *FileSink) WriteEvent(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("event file already closed")
	}

	var prefix string
	if s.size == 0 {
		prefix = "[\n"
	} else {
		prefix = ",\n"
	}
	n, err := s.file.WriteString(prefix + string(data))
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Size returns the number of bytes written so far.
func (s *FileSink) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close terminates the JSON array and closes the file. Idempotent.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.size == 0 {
		// Nothing was written; emit an empty array so the file parses.
		if _, err := s.file.WriteString("[]\n"); err != nil {
			s.file.Close()
			return err
		}
	} else {
		if _, err := s.file.WriteString("\n]\n"); err != nil {
			s.file.Close()
			return err
		}
	}
	return s.file.Close()
}
