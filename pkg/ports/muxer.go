package ports

import "github.com/user/subband/pkg/frame"

// Muxer abstracts container framing of encoded packets.
type Muxer interface {
	// Begin initializes the container for a stream.
	Begin(meta frame.Metadata) error

	// WritePacket appends one encoder packet.
	WritePacket(pkt frame.Packet) error

	// End finalizes the container and returns its bytes.
	End() ([]byte, error)
}
