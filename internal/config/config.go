package config

import (
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/pmiettinen/libsbp/internal/sbp"
)

const (
	InputFile  = "file"
	InputTCP   = "tcp"
	InputStdin = "stdin"

	FormatJSON = "json"
	FormatText = "text"

	UnknownEmit = "emit"
	UnknownDrop = "drop"

	DefaultReadSize = 4096
	maxReadSize     = 1 << 20
)

// Config is the sbp tool configuration.
type Config struct {
	Sender  uint16        `toml:"sender"`
	Input   InputConfig   `toml:"input"`
	Output  OutputConfig  `toml:"output"`
	Capture CaptureConfig `toml:"capture"`
	Metrics MetricsConfig `toml:"metrics"`
}

type InputConfig struct {
	Kind      string `toml:"kind"`
	Path      string `toml:"path"`
	Addr      string `toml:"addr"`
	ReadSize  int    `toml:"read_size"`
	Reconnect bool   `toml:"reconnect"`
}

type OutputConfig struct {
	Format  string `toml:"format"`
	Unknown string `toml:"unknown"`
}

// CaptureConfig points at the frame store. An empty Dir disables capture.
type CaptureConfig struct {
	Dir  string `toml:"dir"`
	Sync bool   `toml:"sync"`
}

// MetricsConfig enables the metrics listener when Addr is set.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		Sender: sbp.DefaultSender,
		Input: InputConfig{
			Kind:     InputStdin,
			ReadSize: DefaultReadSize,
		},
		Output: OutputConfig{
			Format:  FormatJSON,
			Unknown: UnknownEmit,
		},
	}
}

// LoadConfig reads path over the defaults and validates the result. Keys
// the file sets that Config does not know are an error.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("config %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("config %s invalid: %w", path, err)
	}
	return cfg, nil
}

func ValidateConfig(cfg Config) error {
	if err := validateInput(cfg.Input); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	switch cfg.Output.Format {
	case FormatJSON, FormatText:
	default:
		return fmt.Errorf("output: unknown format %q", cfg.Output.Format)
	}
	switch cfg.Output.Unknown {
	case UnknownEmit, UnknownDrop:
	default:
		return fmt.Errorf("output: unknown policy %q", cfg.Output.Unknown)
	}
	if addr := strings.TrimSpace(cfg.Metrics.Addr); addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("metrics: addr %q: %w", addr, err)
		}
	}
	return nil
}

func validateInput(in InputConfig) error {
	switch in.Kind {
	case InputFile:
		if strings.TrimSpace(in.Path) == "" {
			return fmt.Errorf("path is required for kind %q", in.Kind)
		}
	case InputTCP:
		if _, _, err := net.SplitHostPort(strings.TrimSpace(in.Addr)); err != nil {
			return fmt.Errorf("addr %q: %w", in.Addr, err)
		}
	case InputStdin:
	default:
		return fmt.Errorf("unknown kind %q", in.Kind)
	}
	if in.ReadSize <= 0 || in.ReadSize > maxReadSize {
		return fmt.Errorf("read_size %d out of range (1..%d)", in.ReadSize, maxReadSize)
	}
	return nil
}
