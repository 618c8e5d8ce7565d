package encoder

import "errors"

var (
	// ErrInvalidConfig is wrapped by every configuration rejection.
	ErrInvalidConfig = errors.New("encoder: invalid configuration")
	// ErrNoMetadata is returned when frames arrive before SetMetadata.
	ErrNoMetadata = errors.New("encoder: metadata not set")
	// ErrFrameShape is returned for input frames that disagree with the metadata.
	ErrFrameShape = errors.New("encoder: frame does not match stream metadata")
	// ErrStreamFinished is returned for calls after EndOfStream.
	ErrStreamFinished = errors.New("encoder: stream finished")
	// ErrStreamBroken is returned after a hard failure left the stream unusable.
	ErrStreamBroken = errors.New("encoder: stream broken")
)
