package mp4muxer

import (
	"fmt"
	"io"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/subband/pkg/frame"
)

// Picture is one sample read back from a file.
type Picture struct {
	DecodeTime uint64
	Dur        uint32
	Sync       bool
	Payload    []byte
}

// Stream is the content of a file written by Muxer.
type Stream struct {
	Meta      frame.Metadata
	Timescale uint32
	Pictures  []Picture
}

// Read parses a fragmented MP4 written by Muxer.
func Read(r io.ReadSeeker) (*Stream, error) {
	f, err := mp4.DecodeFile(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}
	if !f.IsFragmented() || f.Init == nil || f.Init.Moov == nil {
		return nil, fmt.Errorf("not a fragmented mp4")
	}

	var trackID uint32
	var trex *mp4.TrexBox
	st := &Stream{Timescale: 1}
	for _, trak := range f.Init.Moov.Traks {
		if trak.Mdia != nil && trak.Mdia.Hdlr != nil && trak.Mdia.Hdlr.HandlerType == "vide" {
			trackID = trak.Tkhd.TrackID
			if trak.Mdia.Mdhd != nil {
				st.Timescale = trak.Mdia.Mdhd.Timescale
			}
			break
		}
	}
	if trackID == 0 {
		return nil, fmt.Errorf("no video track found")
	}
	if f.Init.Moov.Mvex != nil {
		for _, t := range f.Init.Moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	haveMeta := false
	for _, seg := range f.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return nil, fmt.Errorf("get samples: %w", err)
			}
			for _, s := range samples {
				units, err := SplitSample(s.Data)
				if err != nil {
					return nil, err
				}
				pic := Picture{DecodeTime: s.DecodeTime, Dur: s.Dur, Sync: mp4.IsSyncSampleFlags(s.Flags)}
				for _, u := range units {
					switch u.Kind {
					case frame.PacketMetadata:
						meta, err := DecodeMetadata(u.Body)
						if err != nil {
							return nil, err
						}
						if !haveMeta {
							st.Meta = meta
							haveMeta = true
						}
					case frame.PacketPicture:
						pic.Payload = u.Body
					}
				}
				st.Pictures = append(st.Pictures, pic)
			}
		}
	}
	if !haveMeta {
		return nil, fmt.Errorf("stream carries no metadata")
	}
	return st, nil
}
