package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Assertion evaluation modes.
const (
	ModeFailFast   = "fail_fast"
	ModeCollectAll = "collect_all"
)

type Config struct {
	Target     TargetConfig     `mapstructure:"target"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Flow       FlowConfig       `mapstructure:"flow"`
	Assertions AssertionsConfig `mapstructure:"assertions"`
	Evidence   EvidenceConfig   `mapstructure:"evidence"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Security   SecurityConfig   `mapstructure:"security"`
}

type TargetConfig struct {
	URL               string        `mapstructure:"url"`
	BaselineSelector  string        `mapstructure:"baselineSelector"`
	NavigationTimeout time.Duration `mapstructure:"navigationTimeout"`
	BaselineTimeout   time.Duration `mapstructure:"baselineTimeout"`
}

type BrowserConfig struct {
	ExecutablePath  string        `mapstructure:"executablePath"`
	RemoteURL       string        `mapstructure:"remoteURL"` // DevTools websocket of an already running Chrome
	Headless        bool          `mapstructure:"headless"`
	UserDataDir     string        `mapstructure:"userDataDir"`
	LaunchTimeout   time.Duration `mapstructure:"launchTimeout"`
	ActionTimeout   time.Duration `mapstructure:"actionTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	MaxSessions     int           `mapstructure:"maxSessions"`
	WindowWidth     int           `mapstructure:"windowWidth"`
	WindowHeight    int           `mapstructure:"windowHeight"`
}

// FlowConfig drives the two UI transitions that lead to the settings panel.
type FlowConfig struct {
	StartButtonName          string        `mapstructure:"startButtonName"`
	SettleTimeout            time.Duration `mapstructure:"settleTimeout"`
	SettleInterval           time.Duration `mapstructure:"settleInterval"`
	SettingsSelector         string        `mapstructure:"settingsSelector"`
	SettingsFallbackSelector string        `mapstructure:"settingsFallbackSelector"`
	ModalSelector            string        `mapstructure:"modalSelector"`
	ModalTimeout             time.Duration `mapstructure:"modalTimeout"`
}

type AssertionsConfig struct {
	Mode       string        `mapstructure:"mode"` // fail_fast, collect_all
	Timeout    time.Duration `mapstructure:"timeout"`
	TitleID    string        `mapstructure:"titleId"`
	Controls   []string      `mapstructure:"controls"`
	CloseLabel string        `mapstructure:"closeLabel"`
}

type EvidenceConfig struct {
	Dir     string        `mapstructure:"dir"`
	SaveDOM bool          `mapstructure:"saveDom"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
	ApiKey         string   `mapstructure:"apiKey"`
	TOTPSecret     string   `mapstructure:"totpSecret"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.url", "http://localhost:5173")
	v.SetDefault("target.baselineSelector", "body")
	v.SetDefault("target.navigationTimeout", "60s")
	v.SetDefault("target.baselineTimeout", "10s")

	v.SetDefault("browser.executablePath", "") // Attempt auto-detect if empty
	v.SetDefault("browser.remoteURL", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.userDataDir", "") // Empty means temporary profile
	v.SetDefault("browser.launchTimeout", "20s")
	v.SetDefault("browser.actionTimeout", "30s")
	v.SetDefault("browser.shutdownTimeout", "10s")
	v.SetDefault("browser.maxSessions", 2)
	v.SetDefault("browser.windowWidth", 1280)
	v.SetDefault("browser.windowHeight", 800)

	v.SetDefault("flow.startButtonName", "Initialize Universe")
	v.SetDefault("flow.settleTimeout", "2s")
	v.SetDefault("flow.settleInterval", "100ms")
	v.SetDefault("flow.settingsSelector", "button[aria-label='Open settings'], [data-testid='settings-button']")
	v.SetDefault("flow.settingsFallbackSelector", "button:has(svg path[d='M4 6h16M4 12h16M4 18h16'])")
	v.SetDefault("flow.modalSelector", "div[role='dialog']")
	v.SetDefault("flow.modalTimeout", "5s")

	v.SetDefault("assertions.mode", ModeFailFast)
	v.SetDefault("assertions.timeout", "5s")
	v.SetDefault("assertions.titleId", "settings-title")
	v.SetDefault("assertions.controls", []string{"sfx-volume", "music-volume", "visual-accessibility"})
	v.SetDefault("assertions.closeLabel", "Close settings")

	v.SetDefault("evidence.dir", "verification")
	v.SetDefault("evidence.saveDom", true)
	v.SetDefault("evidence.timeout", "15s")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "15s")
	v.SetDefault("server.writeTimeout", "15s")
	v.SetDefault("server.idleTimeout", "60s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("security.allowedOrigins", []string{"*"})
	v.SetDefault("security.apiKey", "")
	v.SetDefault("security.totpSecret", "")
}

// flagKeys maps command line flag names onto config keys.
var flagKeys = map[string]string{
	"url":          "target.url",
	"evidence-dir": "evidence.dir",
	"headless":     "browser.headless",
	"chrome":       "browser.executablePath",
	"mode":         "assertions.mode",
	"log-level":    "log.level",
	"port":         "server.port",
}

// LoadConfig reads configuration from defaults, an optional YAML file,
// UIPROBE_* environment variables and, when flags is non-nil, any flags
// the user set explicitly.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.uiprobe")
		v.AddConfigPath("/etc/uiprobe")
	}

	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("UIPROBE")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the harness cannot run with.
func (c *Config) Validate() error {
	if c.Target.URL == "" {
		return fmt.Errorf("target.url must not be empty")
	}
	if c.Target.BaselineSelector == "" {
		return fmt.Errorf("target.baselineSelector must not be empty")
	}
	if c.Flow.ModalSelector == "" {
		return fmt.Errorf("flow.modalSelector must not be empty")
	}
	if c.Flow.SettingsSelector == "" && c.Flow.SettingsFallbackSelector == "" {
		return fmt.Errorf("at least one of flow.settingsSelector and flow.settingsFallbackSelector is required")
	}
	durations := map[string]time.Duration{
		"target.navigationTimeout": c.Target.NavigationTimeout,
		"target.baselineTimeout":   c.Target.BaselineTimeout,
		"browser.actionTimeout":    c.Browser.ActionTimeout,
		"flow.settleTimeout":       c.Flow.SettleTimeout,
		"flow.modalTimeout":        c.Flow.ModalTimeout,
		"evidence.timeout":         c.Evidence.Timeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if c.Assertions.Timeout < 0 {
		return fmt.Errorf("assertions.timeout must not be negative")
	}
	switch c.Assertions.Mode {
	case ModeFailFast, ModeCollectAll:
	default:
		return fmt.Errorf("unknown assertions.mode %q (want %s or %s)", c.Assertions.Mode, ModeFailFast, ModeCollectAll)
	}
	if c.Browser.MaxSessions < 1 {
		return fmt.Errorf("browser.maxSessions must be at least 1")
	}
	return nil
}
