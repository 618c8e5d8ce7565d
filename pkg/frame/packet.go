package frame

// PacketKind identifies what an encoder output buffer carries.
type PacketKind int

const (
	PacketMetadata PacketKind = iota
	PacketPicture
	PacketEndOfStream
)

func (k PacketKind) String() string {
	switch k {
	case PacketMetadata:
		return "metadata"
	case PacketPicture:
		return "picture"
	case PacketEndOfStream:
		return "eos"
	default:
		return "unknown"
	}
}

// Packet is one output buffer of the encoder. Payload is opaque to the core.
type Packet struct {
	Kind        PacketKind
	FrameNumber uint64
	Type        Type
	Quant       int
	Meta        *Metadata // set for PacketMetadata
	Payload     []byte
}
