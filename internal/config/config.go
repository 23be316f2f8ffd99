package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries all runtime settings. Values are resolved in three
// layers: built-in defaults, an optional YAML file, then environment
// overrides.
type Config struct {
	IFBeam IFBeamConfig `yaml:"ifbeam"`

	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`

	// MaxInflight bounds concurrent sub-interval queries per livetime
	// computation; 1 keeps them sequential.
	MaxInflight int `yaml:"max_inflight"`

	Watch WatchConfig `yaml:"watch"`
}

type IFBeamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Device  string        `yaml:"device"`
	Event   string        `yaml:"event"`
	Timeout time.Duration `yaml:"timeout"`
}

// UnmarshalYAML overlays only the keys present in the file, parsing
// durations from strings like "30s".
func (c *IFBeamConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		BaseURL string `yaml:"base_url"`
		Device  string `yaml:"device"`
		Event   string `yaml:"event"`
		Timeout string `yaml:"timeout"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.BaseURL != "" {
		c.BaseURL = raw.BaseURL
	}
	if raw.Device != "" {
		c.Device = raw.Device
	}
	if raw.Event != "" {
		c.Event = raw.Event
	}
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("ifbeam.timeout: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// WatchConfig drives the background livetime watcher; it is inactive
// unless IntervalFile is set.
type WatchConfig struct {
	IntervalFile string        `yaml:"interval_file"`
	Window       time.Duration `yaml:"window"`
	Every        time.Duration `yaml:"every"`
}

func (c *WatchConfig) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		IntervalFile string `yaml:"interval_file"`
		Window       string `yaml:"window"`
		Every        string `yaml:"every"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.IntervalFile != "" {
		c.IntervalFile = raw.IntervalFile
	}
	if raw.Window != "" {
		d, err := time.ParseDuration(raw.Window)
		if err != nil {
			return fmt.Errorf("watch.window: %w", err)
		}
		c.Window = d
	}
	if raw.Every != "" {
		d, err := time.ParseDuration(raw.Every)
		if err != nil {
			return fmt.Errorf("watch.every: %w", err)
		}
		c.Every = d
	}
	return nil
}

// LoadEnvFile loads a .env file into the process environment when the
// file exists. Missing files are not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Load resolves the configuration. An empty path skips the YAML layer;
// a named file that does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Config{
		IFBeam: IFBeamConfig{
			Timeout: 30 * time.Second,
		},
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		MaxInflight: 1,
		Watch: WatchConfig{
			Window: time.Hour,
			Every:  5 * time.Minute,
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.IFBeam.BaseURL = getenv("IFBEAM_URL", cfg.IFBeam.BaseURL)
	cfg.IFBeam.Device = getenv("IFBEAM_DEVICE", cfg.IFBeam.Device)
	cfg.IFBeam.Event = getenv("IFBEAM_EVENT", cfg.IFBeam.Event)
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.MetricsAddr = getenv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.Watch.IntervalFile = getenv("DAQ_INTERVAL_FILE", cfg.Watch.IntervalFile)

	var err error
	if cfg.IFBeam.Timeout, err = getenvDuration("IFBEAM_TIMEOUT", cfg.IFBeam.Timeout); err != nil {
		return Config{}, err
	}
	if cfg.Watch.Window, err = getenvDuration("WATCH_WINDOW", cfg.Watch.Window); err != nil {
		return Config{}, err
	}
	if cfg.Watch.Every, err = getenvDuration("WATCH_EVERY", cfg.Watch.Every); err != nil {
		return Config{}, err
	}
	if cfg.MaxInflight, err = getenvInt("MAX_INFLIGHT", cfg.MaxInflight); err != nil {
		return Config{}, err
	}
	if cfg.MaxInflight < 1 {
		cfg.MaxInflight = 1
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}
