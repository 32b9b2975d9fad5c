// Package config loads the command line configuration: environment first,
// then flags, then an optional preset for the motion knobs.
package config

import (
	"flag"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"

	"github.com/nvr-ai/motion-extract/images"
	"github.com/nvr-ai/motion-extract/motion"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "MOTION_"

// Output modes.
const (
	ModeStills = "stills"
	ModeClips  = "clips"
	ModeAll    = "all"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Input  string `env:"INPUT"`
	Output string `env:"OUTPUT" envDefault:"./extracted_frames"`
	Mode   string `env:"MODE"   envDefault:"stills"`
	Preset string `env:"PRESET"`

	Sensitivity int     `env:"SENSITIVITY"  envDefault:"25"`
	MinArea     float64 `env:"MIN_AREA"     envDefault:"500"`
	MinInterval float64 `env:"MIN_INTERVAL" envDefault:"1.0"`
	SampleRate  float64 `env:"FPS"          envDefault:"2"`

	Format        string `env:"FORMAT"          envDefault:"jpg"`
	JPEGQuality   int    `env:"JPEG_QUALITY"    envDefault:"95"`
	StillMaxWidth uint   `env:"STILL_MAX_WIDTH" envDefault:"0"`

	MinDuration  float64 `env:"MIN_DURATION"  envDefault:"3.0"`
	ClipBefore   float64 `env:"CLIP_BEFORE"   envDefault:"20"`
	ClipAfter    float64 `env:"CLIP_AFTER"    envDefault:"20"`
	DrawContours bool    `env:"DRAW_CONTOURS" envDefault:"true"`
	ClipCodec    string  `env:"CLIP_CODEC"    envDefault:"mp4v"`
	ClipExt      string  `env:"CLIP_EXT"      envDefault:"mp4"`

	Workers     int    `env:"WORKERS"      envDefault:"1"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	MetricsAddr string `env:"METRICS_ADDR"`
	Catalog     string `env:"CATALOG"`
}

// Preset is a named bundle of motion knobs tuned for one kind of footage.
type Preset struct {
	Sensitivity int
	MinInterval float64
	SampleRate  float64
}

// Presets are applied with -preset.
var Presets = map[string]Preset{
	"sentry":       {Sensitivity: 18, MinInterval: 3.0, SampleRate: 2},
	"driving":      {Sensitivity: 30, MinInterval: 1.5, SampleRate: 3},
	"sensitive":    {Sensitivity: 15, MinInterval: 0.5, SampleRate: 4},
	"conservative": {Sensitivity: 35, MinInterval: 5.0, SampleRate: 1},
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load parses the environment, then args. The first positional argument is
// taken as the input when -input is not given. A preset only fills in the
// knobs that were not passed as flags.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}

	fs := flag.NewFlagSet("motion-extract", flag.ContinueOnError)
	cfg.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.Input == "" && fs.NArg() > 0 {
		cfg.Input = fs.Arg(0)
	}

	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if err := cfg.applyPreset(explicit); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) register(fs *flag.FlagSet) {
	fs.StringVar(&c.Input, "input", c.Input, "video file or directory containing videos")
	fs.StringVar(&c.Output, "output", c.Output, "output directory")
	fs.StringVar(&c.Mode, "mode", c.Mode, "output mode: stills, clips or all")
	fs.StringVar(&c.Preset, "preset", c.Preset, "motion preset: sentry, driving, sensitive or conservative")

	fs.IntVar(&c.Sensitivity, "sensitivity", c.Sensitivity, "motion sensitivity 0-100, lower is more sensitive")
	fs.Float64Var(&c.MinArea, "min-area", c.MinArea, "minimum motion area in pixels")
	fs.Float64Var(&c.MinInterval, "min-interval", c.MinInterval, "minimum seconds between stills")
	fs.Float64Var(&c.SampleRate, "fps", c.SampleRate, "frames per second to analyze")

	fs.StringVar(&c.Format, "format", c.Format, "still image format: jpg or png")
	fs.IntVar(&c.JPEGQuality, "jpeg-quality", c.JPEGQuality, "JPEG quality 0-100")
	fs.UintVar(&c.StillMaxWidth, "still-max-width", c.StillMaxWidth, "downscale stills wider than this, 0 keeps source size")

	fs.Float64Var(&c.MinDuration, "min-duration", c.MinDuration, "minimum motion event duration in seconds")
	fs.Float64Var(&c.ClipBefore, "clip-before", c.ClipBefore, "seconds to include before each event")
	fs.Float64Var(&c.ClipAfter, "clip-after", c.ClipAfter, "seconds to include after each event")
	fs.BoolVar(&c.DrawContours, "draw-contours", c.DrawContours, "outline motion regions in clips")
	fs.StringVar(&c.ClipCodec, "clip-codec", c.ClipCodec, "FourCC codec for clips")
	fs.StringVar(&c.ClipExt, "clip-ext", c.ClipExt, "clip file extension")

	fs.IntVar(&c.Workers, "workers", c.Workers, "videos processed in parallel")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "serve Prometheus metrics on this address")
	fs.StringVar(&c.Catalog, "catalog", c.Catalog, "record results in this SQLite database")
}

func (c *Config) applyPreset(explicit map[string]bool) error {
	if c.Preset == "" {
		return nil
	}
	p, ok := Presets[c.Preset]
	if !ok {
		return errors.Wrapf(ErrInvalid, "unknown preset %q (have %v)", c.Preset, PresetNames())
	}
	if !explicit["sensitivity"] {
		c.Sensitivity = p.Sensitivity
	}
	if !explicit["min-interval"] {
		c.MinInterval = p.MinInterval
	}
	if !explicit["fps"] {
		c.SampleRate = p.SampleRate
	}
	return nil
}

// Validate checks every field and normalizes the image format.
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.Wrap(ErrInvalid, "input is required")
	}
	switch c.Mode {
	case ModeStills, ModeClips, ModeAll:
	default:
		return errors.Wrapf(ErrInvalid, "unknown mode %q", c.Mode)
	}
	format, err := images.ParseImageFormat(c.Format)
	if err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	c.Format = format.Extension()
	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		return errors.Wrapf(ErrInvalid, "jpeg quality %d outside 0-100", c.JPEGQuality)
	}
	if c.Workers < 1 {
		return errors.Wrapf(ErrInvalid, "workers must be at least 1, got %d", c.Workers)
	}
	if c.ClipExt == "" {
		return errors.Wrap(ErrInvalid, "clip extension is empty")
	}
	if err := c.Motion().Validate(); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	return nil
}

// Motion returns the detection, sampling and clip parameters.
func (c *Config) Motion() motion.Config {
	return motion.Config{
		Sensitivity:       c.Sensitivity,
		MinArea:           c.MinArea,
		MinInterval:       c.MinInterval,
		SampleRate:        c.SampleRate,
		MinMotionDuration: c.MinDuration,
		ClipBefore:        c.ClipBefore,
		ClipAfter:         c.ClipAfter,
		DrawContours:      c.DrawContours,
	}
}

// WantStills reports whether the mode writes still images.
func (c *Config) WantStills() bool { return c.Mode == ModeStills || c.Mode == ModeAll }

// WantClips reports whether the mode writes clips.
func (c *Config) WantClips() bool { return c.Mode == ModeClips || c.Mode == ModeAll }
