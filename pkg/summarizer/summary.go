// Package summarizer builds the end-of-run encode report.
package summarizer

import "time"

// Summary contains everything reported about one encode.
type Summary struct {
	// Metadata
	GeneratedAt time.Time
	StreamID    string

	Input    InputInfo
	Settings Settings
	Output   OutputInfo
}

// InputInfo describes the source stream.
type InputInfo struct {
	Path        string
	Width       int
	Height      int
	Subsampling string
	FrameRate   float64
}

// Settings contains the encoder configuration that shaped the output.
type Settings struct {
	Preset         string
	RateControl    string
	Quality        int
	Bitrate        int // bits/sec, ABR only
	Effort         int
	GOP            string
	PyramidLevels  int
	BlockSize      string
	SceneDetection bool
	TemporalAQ     bool
}

// OutputInfo contains counts and sizes of the coded stream.
type OutputInfo struct {
	Path            string
	Frames          int
	IntraFrames     int
	PredictedFrames int
	SceneChanges    int
	PayloadBytes    int64
	FileSize        int64
	DurationMs      int
	AvgPQuant       int
}

// Bitrate returns the average bits per second of the payload, or 0 for an empty stream.
func (o OutputInfo) Bitrate() int64 {
	if o.DurationMs <= 0 {
		return 0
	}
	return o.PayloadBytes * 8 * 1000 / int64(o.DurationMs)
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithStreamID sets the stream identifier.
func (b *Builder) WithStreamID(id string) *Builder {
	b.summary.StreamID = id
	return b
}

// WithInput sets source information.
func (b *Builder) WithInput(input InputInfo) *Builder {
	b.summary.Input = input
	return b
}

// WithSettings sets encoder settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// WithOutput sets output information.
func (b *Builder) WithOutput(output OutputInfo) *Builder {
	b.summary.Output = output
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
