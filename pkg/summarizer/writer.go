package summarizer

import (
	"fmt"
	"path/filepath"

	"github.com/user/subband/pkg/ports"
)

// Formatter renders a Summary as text.
type Formatter interface {
	Format(s *Summary) string
}

// FormatFunc adapts a function to Formatter.
type FormatFunc func(s *Summary) string

func (f FormatFunc) Format(s *Summary) string { return f(s) }

// Writer renders summaries through a Formatter and stores them on a FileSystem.
type Writer struct {
	formatter Formatter
	fs        ports.FileSystem
}

func NewWriter(formatter Formatter, fs ports.FileSystem) *Writer {
	return &Writer{formatter: formatter, fs: fs}
}

// Write renders s and writes it to path, creating the report directory first.
func (w *Writer) Write(path string, s *Summary) error {
	if s == nil {
		return fmt.Errorf("summarizer: nil summary")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := w.fs.MkdirAll(dir); err != nil {
			return fmt.Errorf("create report directory %s: %w", dir, err)
		}
	}
	if err := w.fs.WriteFile(path, []byte(w.formatter.Format(s))); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
