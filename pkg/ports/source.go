package ports

import "github.com/user/subband/pkg/frame"

// FrameSource abstracts reading raw frames from a file.
type FrameSource interface {
	// Open prepares the source for reading.
	Open(path string) error

	// Metadata describes the frames Next will return. Valid after Open.
	Metadata() frame.Metadata

	// Next returns the next frame, or io.EOF when the input is exhausted.
	Next() (*frame.Frame, error)

	// Close releases the underlying file.
	Close() error
}
