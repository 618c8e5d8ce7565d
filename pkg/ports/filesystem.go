package ports

import "io"

// FileSystem abstracts the file access of frame sources, the debug sink and the
// output writer.
type FileSystem interface {
	// Open opens a file for streaming. Raw video inputs are read this way
	// instead of through ReadFile.
	Open(path string) (io.ReadCloser, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it and its parent directories if necessary.
	WriteFile(path string, data []byte) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string) error

	// Exists checks if a file or directory exists.
	Exists(path string) (bool, error)

	// Glob returns the paths matching pattern in lexical order.
	Glob(pattern string) ([]string, error)
}
