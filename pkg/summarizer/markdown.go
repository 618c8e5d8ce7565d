package summarizer

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// Option configures a MarkdownFormatter.
type Option func(*MarkdownFormatter)

// WithTranslator sets the function used to translate labels.
func WithTranslator(t func(string) string) Option {
	return func(f *MarkdownFormatter) {
		f.translate = t
	}
}

// WithVersion sets the tool version shown in the footer.
func WithVersion(v string) Option {
	return func(f *MarkdownFormatter) {
		f.version = v
	}
}

// NewMarkdownFormatter creates a formatter. Labels are English unless a translator is set.
func NewMarkdownFormatter(opts ...Option) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Encode Summary"))
	if s.StreamID != "" {
		fmt.Fprintf(&b, "%s: `%s`\n\n", t("Stream ID"), s.StreamID)
	}

	fmt.Fprintf(&b, "## %s\n\n", t("Input"))
	b.WriteString(f.table([][2]string{
		{t("Path"), s.Input.Path},
		{t("Resolution"), fmt.Sprintf("%dx%d", s.Input.Width, s.Input.Height)},
		{t("Chroma"), s.Input.Subsampling},
		{t("Frame Rate"), fmt.Sprintf("%.2f fps", s.Input.FrameRate)},
	}))

	fmt.Fprintf(&b, "\n## %s\n\n", t("Settings"))
	rows := [][2]string{}
	if s.Settings.Preset != "" {
		rows = append(rows, [2]string{t("Preset"), s.Settings.Preset})
	}
	rows = append(rows, [2]string{t("Rate Control"), s.Settings.RateControl})
	if s.Settings.Bitrate > 0 {
		rows = append(rows, [2]string{t("Target Bitrate"), formatBitrate(int64(s.Settings.Bitrate))})
	} else {
		rows = append(rows, [2]string{t("Quality"), fmt.Sprintf("%d", s.Settings.Quality)})
	}
	rows = append(rows,
		[2]string{t("Effort"), fmt.Sprintf("%d", s.Settings.Effort)},
		[2]string{t("GOP"), s.Settings.GOP},
		[2]string{t("Pyramid Levels"), fmt.Sprintf("%d", s.Settings.PyramidLevels)},
		[2]string{t("Block Size"), s.Settings.BlockSize},
		[2]string{t("Scene Detection"), f.onOff(s.Settings.SceneDetection)},
		[2]string{t("Temporal AQ"), f.onOff(s.Settings.TemporalAQ)},
	)
	b.WriteString(f.table(rows))

	fmt.Fprintf(&b, "\n## %s\n\n", t("Output"))
	b.WriteString(f.table([][2]string{
		{t("Path"), s.Output.Path},
		{t("Frames"), fmt.Sprintf("%d (%d I / %d P)", s.Output.Frames, s.Output.IntraFrames, s.Output.PredictedFrames)},
		{t("Scene Changes"), fmt.Sprintf("%d", s.Output.SceneChanges)},
		{t("Duration"), fmt.Sprintf("%.2f s", float64(s.Output.DurationMs)/1000)},
		{t("Payload"), formatBytes(s.Output.PayloadBytes)},
		{t("File Size"), formatBytes(s.Output.FileSize)},
		{t("Average Bitrate"), formatBitrate(s.Output.Bitrate())},
		{t("Average P Quantizer"), fmt.Sprintf("%d", s.Output.AvgPQuant)},
	}))

	b.WriteString("\n---\n\n")
	footer := fmt.Sprintf("%s %s", t("Generated at"), s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	if f.version != "" {
		footer += fmt.Sprintf(" (subband %s)", f.version)
	}
	b.WriteString(footer + "\n")

	return b.String()
}

func (f *MarkdownFormatter) table(rows [][2]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", f.translate("Item"), f.translate("Value"))
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", r[0], r[1])
	}
	return b.String()
}

func (f *MarkdownFormatter) onOff(v bool) string {
	if v {
		return f.translate("on")
	}
	return f.translate("off")
}

// formatBytes renders a byte count with binary units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}

// formatBitrate renders bits per second with decimal units.
func formatBitrate(bps int64) string {
	switch {
	case bps >= 1000000:
		return fmt.Sprintf("%.2f Mbps", float64(bps)/1e6)
	case bps >= 1000:
		return fmt.Sprintf("%.1f kbps", float64(bps)/1e3)
	default:
		return fmt.Sprintf("%d bps", bps)
	}
}

var _ Formatter = (*MarkdownFormatter)(nil)
