// Package config holds the recognizer's settings and loads them from
// defaults, a YAML file and HANDTRACK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/SEARO1/Hand-Track/internal/capture"
	"github.com/SEARO1/Hand-Track/internal/detector"
	"github.com/SEARO1/Hand-Track/internal/gesture"
	"github.com/SEARO1/Hand-Track/internal/tracking"
)

// EnvPrefix is prepended to environment overrides, e.g. HANDTRACK_WINDOW_SIZE.
const EnvPrefix = "HANDTRACK"

// Config is the complete runtime configuration.
type Config struct {
	WindowSize          int           `yaml:"window_size" mapstructure:"window_size"`
	MaxHands            int           `yaml:"max_hands" mapstructure:"max_hands"`
	GestureSet          string        `yaml:"gesture_set" mapstructure:"gesture_set"`
	DetectionConfidence float64       `yaml:"detection_confidence" mapstructure:"detection_confidence"`
	TrackingConfidence  float64       `yaml:"tracking_confidence" mapstructure:"tracking_confidence"`
	SlotTTL             time.Duration `yaml:"slot_ttl" mapstructure:"slot_ttl"`
	// MotionThreshold is the percent of changed pixels that wakes the detector. 0 disables gating.
	MotionThreshold float64 `yaml:"motion_threshold" mapstructure:"motion_threshold"`

	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Camera     CameraConfig     `yaml:"camera" mapstructure:"camera"`
	Detector   DetectorConfig   `yaml:"detector" mapstructure:"detector"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Journal    JournalConfig    `yaml:"journal" mapstructure:"journal"`
	Plugins    PluginsConfig    `yaml:"plugins" mapstructure:"plugins"`

	// Tray shows a system tray menu. It cannot be combined with Output.Show.
	Tray bool `yaml:"tray" mapstructure:"tray"`
}

// ThresholdsConfig mirrors gesture.Thresholds.
type ThresholdsConfig struct {
	PIPRatio        float64 `yaml:"pip_ratio" mapstructure:"pip_ratio"`
	MinTipToMCP     float64 `yaml:"min_tip_to_mcp" mapstructure:"min_tip_to_mcp"`
	MeanTipFactor   float64 `yaml:"mean_tip_factor" mapstructure:"mean_tip_factor"`
	MinStraightness float64 `yaml:"min_straightness" mapstructure:"min_straightness"`
	ThumbRatio      float64 `yaml:"thumb_ratio" mapstructure:"thumb_ratio"`
	ThumbMinSpread  float64 `yaml:"thumb_min_spread" mapstructure:"thumb_min_spread"`
	OKPinchRatio    float64 `yaml:"ok_pinch_ratio" mapstructure:"ok_pinch_ratio"`
}

type CameraConfig struct {
	Index           int           `yaml:"index" mapstructure:"index"`
	Backends        []string      `yaml:"backends" mapstructure:"backends"`
	Width           int           `yaml:"width" mapstructure:"width"`
	Height          int           `yaml:"height" mapstructure:"height"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	MaxReadFailures int           `yaml:"max_read_failures" mapstructure:"max_read_failures"`
	Mirror          bool          `yaml:"mirror" mapstructure:"mirror"`
}

// DetectorConfig locates the MediaPipe helper. Empty paths are searched for.
type DetectorConfig struct {
	Script string `yaml:"script" mapstructure:"script"`
	Python string `yaml:"python" mapstructure:"python"`
}

type OutputConfig struct {
	// Video is an annotated .mp4 to write. Empty disables recording.
	Video         string  `yaml:"video" mapstructure:"video"`
	Show          bool    `yaml:"show" mapstructure:"show"`
	FPS           bool    `yaml:"fps" mapstructure:"fps"`
	Landmarks     bool    `yaml:"landmarks" mapstructure:"landmarks"`
	ScreenshotDir string  `yaml:"screenshot_dir" mapstructure:"screenshot_dir"`
	VideoFPS      float64 `yaml:"video_fps" mapstructure:"video_fps"`
}

type ServerConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr      string `yaml:"addr" mapstructure:"addr"`
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`
	StreamFPS int    `yaml:"stream_fps" mapstructure:"stream_fps"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	DBPath  string `yaml:"db_path" mapstructure:"db_path"`
}

type PluginsConfig struct {
	Dir            string        `yaml:"dir" mapstructure:"dir"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	ActionInterval time.Duration `yaml:"action_interval" mapstructure:"action_interval"`
}

// Dir returns the per-user data directory, ~/.handtrack.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handtrack"
	}
	return filepath.Join(home, ".handtrack")
}

// Default returns the built-in configuration.
func Default() Config {
	th := gesture.DefaultThresholds()
	cam := capture.DefaultCameraConfig()
	det := detector.DefaultConfig()
	dir := Dir()

	return Config{
		WindowSize:          gesture.DefaultWindowSize,
		MaxHands:            det.MaxHands,
		GestureSet:          gesture.SetEight.String(),
		DetectionConfidence: det.MinConfidence,
		TrackingConfidence:  det.MinTrackingConf,
		SlotTTL:             tracking.DefaultSlotTTL,
		Thresholds: ThresholdsConfig{
			PIPRatio:        th.PIPRatio,
			MinTipToMCP:     th.MinTipToMCP,
			MeanTipFactor:   th.MeanTipFactor,
			MinStraightness: th.MinStraightness,
			ThumbRatio:      th.ThumbRatio,
			ThumbMinSpread:  th.ThumbMinSpread,
			OKPinchRatio:    th.OKPinchRatio,
		},
		Camera: CameraConfig{
			Index:           cam.Index,
			Backends:        cam.Backends,
			Width:           cam.Width,
			Height:          cam.Height,
			ReadTimeout:     cam.ReadTimeout,
			MaxReadFailures: cam.MaxReadFailures,
			Mirror:          cam.Mirror,
		},
		Output: OutputConfig{
			FPS:           true,
			Landmarks:     true,
			ScreenshotDir: ".",
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8080",
			StreamFPS: 15,
		},
		Journal: JournalConfig{
			DBPath: filepath.Join(dir, "handtrack.db"),
		},
		Plugins: PluginsConfig{
			Dir:            filepath.Join(dir, "plugins"),
			Timeout:        5 * time.Second,
			ActionInterval: time.Second,
		},
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if c.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("window_size must be at least 1, got %d", c.WindowSize))
	}
	if c.MaxHands < 1 {
		errs = append(errs, fmt.Errorf("max_hands must be at least 1, got %d", c.MaxHands))
	}
	if _, err := gesture.ParseGestureSet(c.GestureSet); err != nil {
		errs = append(errs, err)
	}
	if !unit(c.DetectionConfidence) {
		errs = append(errs, fmt.Errorf("detection_confidence must be within [0,1], got %g", c.DetectionConfidence))
	}
	if !unit(c.TrackingConfidence) {
		errs = append(errs, fmt.Errorf("tracking_confidence must be within [0,1], got %g", c.TrackingConfidence))
	}
	if c.SlotTTL < 0 {
		errs = append(errs, fmt.Errorf("slot_ttl must not be negative"))
	}
	if c.MotionThreshold < 0 || c.MotionThreshold > 100 {
		errs = append(errs, fmt.Errorf("motion_threshold must be a percentage, got %g", c.MotionThreshold))
	}
	for _, name := range c.Camera.Backends {
		if _, ok := capture.Backends[strings.ToLower(name)]; !ok {
			errs = append(errs, fmt.Errorf("unknown camera backend %q", name))
		}
	}
	if c.Server.StreamFPS < 0 {
		errs = append(errs, fmt.Errorf("server.stream_fps must not be negative"))
	}
	if c.Tray && c.Output.Show {
		errs = append(errs, errors.New("tray and output.show both need the main thread; choose one"))
	}

	return errors.Join(errs...)
}

func unit(v float64) bool { return v >= 0 && v <= 1 }

// Set returns the parsed gesture set. Call after Validate.
func (c Config) Set() gesture.GestureSet {
	s, _ := gesture.ParseGestureSet(c.GestureSet)
	return s
}

func (c Config) GestureThresholds() gesture.Thresholds {
	t := c.Thresholds
	return gesture.Thresholds{
		PIPRatio:        t.PIPRatio,
		MinTipToMCP:     t.MinTipToMCP,
		MeanTipFactor:   t.MeanTipFactor,
		MinStraightness: t.MinStraightness,
		ThumbRatio:      t.ThumbRatio,
		ThumbMinSpread:  t.ThumbMinSpread,
		OKPinchRatio:    t.OKPinchRatio,
	}
}

func (c Config) Tracking() tracking.Config {
	return tracking.Config{
		WindowSize: c.WindowSize,
		MaxHands:   c.MaxHands,
		SlotTTL:    c.SlotTTL,
	}
}

func (c Config) CameraConfig() capture.CameraConfig {
	return capture.CameraConfig{
		Index:           c.Camera.Index,
		Backends:        c.Camera.Backends,
		Width:           c.Camera.Width,
		Height:          c.Camera.Height,
		ReadTimeout:     c.Camera.ReadTimeout,
		MaxReadFailures: c.Camera.MaxReadFailures,
		Mirror:          c.Camera.Mirror,
	}
}

func (c Config) DetectorConfig() detector.Config {
	return detector.Config{
		MaxHands:        c.MaxHands,
		MinConfidence:   c.DetectionConfidence,
		MinTrackingConf: c.TrackingConfidence,
		ScriptPath:      c.Detector.Script,
		PythonPath:      c.Detector.Python,
	}
}

// Prepare points v at the config file and environment. An empty file
// searches ~/.handtrack/config.yaml; a missing default file is not an error.
func Prepare(v *viper.Viper, file string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load merges v's settings over Default and validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	setDefaults(v, cfg)

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables can override
// settings that appear in no config file.
func setDefaults(v *viper.Viper, c Config) {
	defaults := map[string]any{
		"window_size":          c.WindowSize,
		"max_hands":            c.MaxHands,
		"gesture_set":          c.GestureSet,
		"detection_confidence": c.DetectionConfidence,
		"tracking_confidence":  c.TrackingConfidence,
		"slot_ttl":             c.SlotTTL,
		"motion_threshold":     c.MotionThreshold,
		"tray":                 c.Tray,

		"thresholds.pip_ratio":        c.Thresholds.PIPRatio,
		"thresholds.min_tip_to_mcp":   c.Thresholds.MinTipToMCP,
		"thresholds.mean_tip_factor":  c.Thresholds.MeanTipFactor,
		"thresholds.min_straightness": c.Thresholds.MinStraightness,
		"thresholds.thumb_ratio":      c.Thresholds.ThumbRatio,
		"thresholds.thumb_min_spread": c.Thresholds.ThumbMinSpread,
		"thresholds.ok_pinch_ratio":   c.Thresholds.OKPinchRatio,

		"camera.index":             c.Camera.Index,
		"camera.backends":          c.Camera.Backends,
		"camera.width":             c.Camera.Width,
		"camera.height":            c.Camera.Height,
		"camera.read_timeout":      c.Camera.ReadTimeout,
		"camera.max_read_failures": c.Camera.MaxReadFailures,
		"camera.mirror":            c.Camera.Mirror,

		"detector.script": c.Detector.Script,
		"detector.python": c.Detector.Python,

		"output.video":          c.Output.Video,
		"output.show":           c.Output.Show,
		"output.fps":            c.Output.FPS,
		"output.landmarks":      c.Output.Landmarks,
		"output.screenshot_dir": c.Output.ScreenshotDir,
		"output.video_fps":      c.Output.VideoFPS,

		"server.enabled":    c.Server.Enabled,
		"server.addr":       c.Server.Addr,
		"server.static_dir": c.Server.StaticDir,
		"server.stream_fps": c.Server.StreamFPS,

		"journal.enabled": c.Journal.Enabled,
		"journal.db_path": c.Journal.DBPath,

		"plugins.dir":             c.Plugins.Dir,
		"plugins.timeout":         c.Plugins.Timeout,
		"plugins.action_interval": c.Plugins.ActionInterval,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
