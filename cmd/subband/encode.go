package main

import (
	"fmt"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/subband/pkg/adapters/filesink"
	"github.com/user/subband/pkg/adapters/ggrenderer"
	"github.com/user/subband/pkg/adapters/logger"
	"github.com/user/subband/pkg/adapters/mp4muxer"
	"github.com/user/subband/pkg/adapters/nullsink"
	"github.com/user/subband/pkg/adapters/osfilesystem"
	"github.com/user/subband/pkg/adapters/pixelfilter"
	"github.com/user/subband/pkg/adapters/zstdstage"
	"github.com/user/subband/pkg/config"
	"github.com/user/subband/pkg/orchestrator"
	"github.com/user/subband/pkg/ports"
	"github.com/user/subband/pkg/preset"
	"github.com/user/subband/pkg/ratecontrol"
	"github.com/user/subband/pkg/stages/encode"
	"github.com/user/subband/pkg/stages/ingest"
	"github.com/user/subband/pkg/stages/mux"
	"github.com/user/subband/pkg/stages/visualize"
	"github.com/user/subband/pkg/summarizer"
)

const (
	categoryOutput  = "Output"
	categoryQuality = "Quality and Rate Control"
	categorySearch  = "Motion Search"
	categoryDebug   = "Debug"
	categoryLogging = "Logging"
)

// encodeOptions holds the encode flags. Pointer fields are nil when the flag was not given.
type encodeOptions struct {
	Input      string
	Output     string
	ConfigPath string

	Preset  *string
	Quality *int
	Effort  *int
	GOP     *string
	RC      *string
	Bitrate *int
	Levels  *int
	Workers *int
	NoSCD   bool
	NoTAQ   bool
	NoPsy   bool

	MaxFrames *int
	Debug     bool
	DebugDir  *string
	Summary   *string
	LogLevel  *string
	Quiet     bool
}

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:        "encode",
		Usage:       l10n.T("Encode a Y4M file or image sequence to MP4"),
		Description: l10n.T("Encode raw frames from a YUV4MPEG2 file, an image directory or a glob pattern into a fragmented MP4 file."),
		ArgsUsage:   "INPUT",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: l10n.T("Output MP4 file path (required)"), Category: l10n.T(categoryOutput)},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), Category: l10n.T(categoryOutput)},
			&cli.StringFlag{Name: "summary", Usage: l10n.T("Output encode summary to file (Markdown format)"), Category: l10n.T(categoryOutput)},
			&cli.IntFlag{Name: "max-frames", Usage: l10n.T("Stop after this many frames (0 = all)"), Category: l10n.T(categoryOutput)},

			&cli.StringFlag{Name: "preset", Aliases: []string{"p"}, Usage: l10n.T("Quality preset (low, medium, high)"), Category: l10n.T(categoryQuality)},
			&cli.IntFlag{Name: "quality", Aliases: []string{"q"}, Usage: l10n.T("CRF quality (0-100, higher is better, overrides preset)"), Category: l10n.T(categoryQuality)},
			&cli.StringFlag{Name: "gop", Aliases: []string{"g"}, Usage: l10n.T("Intra period: a frame count, inf or intra"), Category: l10n.T(categoryQuality)},
			&cli.StringFlag{Name: "rc", Usage: l10n.T("Rate control mode (crf, abr)"), Category: l10n.T(categoryQuality)},
			&cli.IntFlag{Name: "bitrate", Aliases: []string{"b"}, Usage: l10n.T("Target bitrate in bits/sec for ABR"), Category: l10n.T(categoryQuality)},
			&cli.BoolFlag{Name: "no-taq", Usage: l10n.T("Disable temporal adaptive quantization"), Category: l10n.T(categoryQuality)},

			&cli.IntFlag{Name: "effort", Aliases: []string{"e"}, Usage: l10n.T("Motion search effort (0-10)"), Category: l10n.T(categorySearch)},
			&cli.IntFlag{Name: "levels", Usage: l10n.T("Pyramid levels for motion search"), Category: l10n.T(categorySearch)},
			&cli.IntFlag{Name: "workers", Aliases: []string{"j"}, Usage: l10n.T("Motion search workers (default: number of CPUs)"), Category: l10n.T(categorySearch)},
			&cli.BoolFlag{Name: "no-scd", Usage: l10n.T("Disable scene change detection"), Category: l10n.T(categorySearch)},
			&cli.BoolFlag{Name: "no-psy", Usage: l10n.T("Disable texture-aware motion cost"), Category: l10n.T(categorySearch)},

			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: l10n.T("Enable debug output"), Category: l10n.T(categoryDebug)},
			&cli.StringFlag{Name: "debug-dir", Usage: l10n.T("Directory for debug output"), Category: l10n.T(categoryDebug)},

			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error)"), Category: l10n.T(categoryLogging)},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T(categoryLogging)},
		},
		Action: runEncode,
	}
}

func optionsFrom(c *cli.Context) encodeOptions {
	opts := encodeOptions{
		Input:      c.Args().First(),
		Output:     c.String("output"),
		ConfigPath: c.String("config"),
		NoSCD:      c.Bool("no-scd"),
		NoTAQ:      c.Bool("no-taq"),
		NoPsy:      c.Bool("no-psy"),
		Debug:      c.Bool("debug"),
		Quiet:      c.Bool("quiet"),
	}
	str := func(name string) *string {
		if !c.IsSet(name) {
			return nil
		}
		v := c.String(name)
		return &v
	}
	num := func(name string) *int {
		if !c.IsSet(name) {
			return nil
		}
		v := c.Int(name)
		return &v
	}
	opts.Preset = str("preset")
	opts.GOP = str("gop")
	opts.RC = str("rc")
	opts.DebugDir = str("debug-dir")
	opts.Summary = str("summary")
	opts.LogLevel = str("log-level")
	opts.Quality = num("quality")
	opts.Effort = num("effort")
	opts.Bitrate = num("bitrate")
	opts.Levels = num("levels")
	opts.Workers = num("workers")
	opts.MaxFrames = num("max-frames")
	return opts
}

// buildConfig layers flags over the configuration file over the defaults.
func buildConfig(opts encodeOptions) (config.Config, error) {
	cfg := config.Defaults()
	if opts.ConfigPath != "" {
		loaded, err := config.LoadFromFile(opts.ConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if opts.Input != "" {
		cfg.Input = opts.Input
	}
	if opts.Output != "" {
		cfg.Output = opts.Output
	}
	if cfg.Input == "" {
		return cfg, fmt.Errorf("%s", l10n.T("INPUT argument is required"))
	}
	if cfg.Output == "" {
		return cfg, fmt.Errorf("%s", l10n.T("output path is required (-o)"))
	}

	enc, err := cfg.Encoder.ToEncoderConfig()
	if err != nil {
		return cfg, err
	}
	b := preset.NewConfigBuilderFrom(enc)

	if opts.Preset != nil {
		p, err := preset.ParseQualityPreset(*opts.Preset)
		if err != nil {
			return cfg, err
		}
		cfg.Preset = string(p)
		b.WithQualityPreset(p)
	}
	if opts.Quality != nil {
		b.WithQuality(*opts.Quality)
	}
	if opts.Effort != nil {
		b.WithEffort(*opts.Effort)
	}
	if opts.Levels != nil {
		b.WithPyramidLevels(*opts.Levels)
	}
	if opts.Workers != nil {
		b.WithWorkers(*opts.Workers)
	}
	if opts.GOP != nil {
		n, err := preset.ParseGOP(*opts.GOP)
		if err != nil {
			return cfg, err
		}
		b.WithGOP(n)
	}
	if opts.Bitrate != nil {
		b.WithABR(*opts.Bitrate)
	}
	if opts.RC != nil {
		mode, err := ratecontrol.ParseMode(*opts.RC)
		if err != nil {
			return cfg, err
		}
		if mode == ratecontrol.ModeCRF {
			b.WithCRF(b.Build().Quality)
		} else {
			b.WithABR(b.Build().Bitrate)
		}
	}
	if opts.NoSCD {
		b.WithSceneDetection(false)
	}
	if opts.NoTAQ {
		b.WithTemporalAQ(false)
	}
	if opts.NoPsy {
		b.WithPsy(false)
	}
	cfg.Encoder = config.FromEncoderConfig(b.Build())

	if opts.MaxFrames != nil {
		cfg.MaxFrames = *opts.MaxFrames
	}
	if opts.Debug {
		cfg.Debug = true
	}
	if opts.DebugDir != nil {
		cfg.DebugDir = *opts.DebugDir
	}
	if opts.Summary != nil {
		cfg.Summary = *opts.Summary
	}
	if opts.LogLevel != nil {
		cfg.LogLevel = *opts.LogLevel
	}
	if opts.Quiet {
		cfg.LogLevel = ports.LevelQuiet.String()
	}
	return cfg, nil
}

func newLogger(level string) (ports.Logger, error) {
	lv, err := ports.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	if lv == ports.LevelQuiet {
		return logger.NewNoop(), nil
	}
	return logger.NewConsole(lv), nil
}

func runEncode(c *cli.Context) error {
	cfg, err := buildConfig(optionsFrom(c))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	orchConfig, err := cfg.ToOrchestratorConfig()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	// Create adapters
	fs := osfilesystem.New()
	renderer := ggrenderer.New()

	var sink ports.DebugSink
	if cfg.Debug {
		if err := fs.MkdirAll(cfg.DebugDir); err != nil {
			return fmt.Errorf("create debug directory: %w", err)
		}
		sink = filesink.New(cfg.DebugDir, fs, renderer)
	} else {
		sink = nullsink.New()
	}

	// Create stages
	ingestStage := ingest.NewStage(fs, log)
	encodeStage := encode.NewStage(zstdstage.New(), pixelfilter.New(), sink, log)
	visualizeStage := visualize.NewStage(renderer, sink, log, orchConfig.Encoder.Workers)
	muxStage := mux.NewStage(func() ports.Muxer { return mp4muxer.New() }, log)

	orch := orchestrator.New(ingestStage, encodeStage, visualizeStage, muxStage, fs, sink, log)

	log.Info(l10n.F("Encoding %s (%s preset)...", cfg.Input, cfg.Preset))

	started := time.Now()
	result, err := orch.Run(c.Context, orchConfig)
	if err != nil {
		if c.Context.Err() != nil {
			log.Warn(l10n.T("Interrupted, shutting down..."))
		}
		return err
	}

	log.Info(l10n.F("Output saved to %s (%s)", cfg.Output, time.Since(started).Round(time.Millisecond)))

	if cfg.Summary != "" {
		s := buildSummary(cfg, orchConfig, result)
		w := summarizer.NewWriter(summarizer.NewMarkdownFormatter(
			summarizer.WithTranslator(func(s string) string { return l10n.T(s) }),
			summarizer.WithVersion(version),
		), fs)
		if err := w.Write(cfg.Summary, s); err != nil {
			log.Warn(l10n.F("Failed to write summary: %s", err))
		} else {
			log.Info(l10n.F("Summary saved to %s", cfg.Summary))
		}
	}
	return nil
}

func buildSummary(cfg config.Config, oc orchestrator.Config, r orchestrator.RunResult) *summarizer.Summary {
	enc := oc.Encoder
	bitrate := 0
	if enc.RateControl == ratecontrol.ModeABR {
		bitrate = enc.Bitrate
	}
	block := "auto"
	if enc.BlockWidth > 0 && enc.BlockHeight > 0 {
		block = fmt.Sprintf("%dx%d", enc.BlockWidth, enc.BlockHeight)
	}

	return summarizer.NewBuilder().
		WithStreamID(r.StreamID).
		WithInput(summarizer.InputInfo{
			Path:        oc.InputPath,
			Width:       r.Meta.Width,
			Height:      r.Meta.Height,
			Subsampling: r.Meta.Subsampling.String(),
			FrameRate:   r.Meta.FrameRate(),
		}).
		WithSettings(summarizer.Settings{
			Preset:         cfg.Preset,
			RateControl:    enc.RateControl.String(),
			Quality:        enc.Quality,
			Bitrate:        bitrate,
			Effort:         enc.Effort,
			GOP:            preset.FormatGOP(enc.GOP),
			PyramidLevels:  enc.PyramidLevels,
			BlockSize:      block,
			SceneDetection: enc.SceneDetection,
			TemporalAQ:     enc.TemporalAQ,
		}).
		WithOutput(summarizer.OutputInfo{
			Path:            oc.OutputPath,
			Frames:          r.FrameCount,
			IntraFrames:     r.IntraFrames,
			PredictedFrames: r.PredictedFrames,
			SceneChanges:    r.SceneChanges,
			PayloadBytes:    r.PayloadBytes,
			FileSize:        r.FileSize,
			DurationMs:      r.DurationMs,
			AvgPQuant:       r.Stats.RateControl.AvgPQuant,
		}).
		Build()
}
