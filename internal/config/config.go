package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Strategy names accepted in readiness.strategy.
const (
	StrategyPoll  = "poll"
	StrategyDelay = "delay"
)

// Duration wraps time.Duration so YAML values like "30s" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type ServiceConfig struct {
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	Dir        string   `yaml:"dir"`
	Port       int      `yaml:"port"`
	StartupLog string   `yaml:"startup_log"`
}

type ReadinessConfig struct {
	Strategy     string   `yaml:"strategy"`
	MaxWait      Duration `yaml:"max_wait"`
	PollInterval Duration `yaml:"poll_interval"`
	Delay        Duration `yaml:"delay"`
}

type BrowserConfig struct {
	Command string `yaml:"command"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	X       int    `yaml:"x"`
	Y       int    `yaml:"y"`
	AppMode bool   `yaml:"app_mode"`
}

type Config struct {
	Service          ServiceConfig   `yaml:"service"`
	Readiness        ReadinessConfig `yaml:"readiness"`
	Browser          BrowserConfig   `yaml:"browser"`
	TerminateTimeout Duration        `yaml:"terminate_timeout"`
	NoBrowser        bool            `yaml:"no_browser"`
}

func defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Port: 8000,
		},
		Readiness: ReadinessConfig{
			Strategy:     StrategyPoll,
			MaxWait:      Duration(30 * time.Second),
			PollInterval: Duration(200 * time.Millisecond),
			Delay:        Duration(2 * time.Second),
		},
		Browser: BrowserConfig{
			Width:   1280,
			Height:  800,
			AppMode: true,
		},
		TerminateTimeout: Duration(5 * time.Second),
	}
}

// Load reads the YAML config at path over the built-in defaults and applies
// environment overrides. A missing file is not an error unless required is
// set (the user pointed at it explicitly); defaults still apply.
func Load(path string, required bool) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err) && !required:
		// no file, defaults apply
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv loads a .env file if one exists in the working directory, then
// applies recognized environment variables over the file values.
func (c *Config) applyEnv() error {
	_ = godotenv.Load()

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT environment variable %q: %w", v, err)
		}
		c.Service.Port = port
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Service.Command == "" {
		return fmt.Errorf("service.command must be set")
	}
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port %d out of range 1-65535", c.Service.Port)
	}
	switch c.Readiness.Strategy {
	case StrategyPoll, StrategyDelay:
	default:
		return fmt.Errorf("readiness.strategy must be %q or %q, got %q", StrategyPoll, StrategyDelay, c.Readiness.Strategy)
	}
	if c.Readiness.MaxWait <= 0 {
		return fmt.Errorf("readiness.max_wait must be positive")
	}
	if c.Readiness.PollInterval <= 0 {
		return fmt.Errorf("readiness.poll_interval must be positive")
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser window size %dx%d must be positive", c.Browser.Width, c.Browser.Height)
	}
	return nil
}

// TargetURL returns the local address the browser should open.
func (c *Config) TargetURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/", c.Service.Port)
}
