package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	SJS     SJSConfig     `mapstructure:"sjs" yaml:"sjs"`
	HiFiTi  HiFiTiConfig  `mapstructure:"hifiti" yaml:"hifiti"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Notify  NotifyConfig  `mapstructure:"notify" yaml:"notify"`
	Run     RunConfig     `mapstructure:"run" yaml:"run"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// SJSConfig contains settings for the captcha protected forum
type SJSConfig struct {
	Username   string        `mapstructure:"username" yaml:"username"`
	Password   string        `mapstructure:"password" yaml:"password"`
	OCRService string        `mapstructure:"ocr_service" yaml:"ocr_service"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	SignPath   string        `mapstructure:"sign_path" yaml:"sign_path"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// HiFiTiConfig contains settings for the plain login+sign forum
type HiFiTiConfig struct {
	Username    string        `mapstructure:"username" yaml:"username"`
	Password    string        `mapstructure:"password" yaml:"password"`
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	DisplayName string        `mapstructure:"display_name" yaml:"display_name"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// BrowserConfig contains browser automation settings
type BrowserConfig struct {
	Headless       bool   `mapstructure:"headless" yaml:"headless"`
	ExecutablePath string `mapstructure:"executable_path" yaml:"executable_path"`
	UserAgent      string `mapstructure:"user_agent" yaml:"user_agent"`
	NoSandbox      bool   `mapstructure:"no_sandbox" yaml:"no_sandbox"`
	ScreenshotDir  string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	ViewportWidth  int    `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int    `mapstructure:"viewport_height" yaml:"viewport_height"`
}

// NotifyConfig selects the notification channels
type NotifyConfig struct {
	Console          bool   `mapstructure:"console" yaml:"console"`
	PushPlusToken    string `mapstructure:"push_plus_token" yaml:"push_plus_token"`
	TelegramBotToken string `mapstructure:"tg_bot_token" yaml:"tg_bot_token"`
	TelegramUserID   string `mapstructure:"tg_user_id" yaml:"tg_user_id"`
}

// RunConfig bounds a single scheduled run
type RunConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

var (
	ErrMissingSJSCredentials    = errors.New("sjs_username and sjs_password are required")
	ErrMissingHiFiTiCredentials = errors.New("fifiti_username and fifiti_password are required")
)

// LoadConfig loads configuration from an optional YAML file, an optional
// .env file and the process environment. Environment always wins.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional; scheduled jobs usually inject variables directly
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("CHECKIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	overrideFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.SJS.BaseURL = strings.TrimRight(config.SJS.BaseURL, "/")
	config.HiFiTi.BaseURL = strings.TrimRight(config.HiFiTi.BaseURL, "/")

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("sjs.base_url", "https://xsijishe.com")
	v.SetDefault("sjs.sign_path", "/k_misign-sign.html")
	v.SetDefault("sjs.timeout", "10s")

	v.SetDefault("hifiti.base_url", "https://hifiti.com")
	v.SetDefault("hifiti.timeout", "15s")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.executable_path", "")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.screenshot_dir", ".")
	v.SetDefault("browser.viewport_width", 1366)
	v.SetDefault("browser.viewport_height", 900)

	v.SetDefault("notify.console", true)

	v.SetDefault("run.timeout", "10m")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
}

// overrideFromEnv maps the variable names the scheduled jobs already use
// onto config keys.
func overrideFromEnv(v *viper.Viper) {
	plain := map[string]string{
		"sjs_username":        "sjs.username",
		"sjs_password":        "sjs.password",
		"ocr_service":         "sjs.ocr_service",
		"fifiti_username":     "hifiti.username",
		"fifiti_password":     "hifiti.password",
		"fifiti_base_url":     "hifiti.base_url",
		"fifiti_display_name": "hifiti.display_name",
		"PUSH_PLUS_TOKEN":     "notify.push_plus_token",
		"TG_BOT_TOKEN":        "notify.tg_bot_token",
		"TG_USER_ID":          "notify.tg_user_id",
		"CHROMIUM_BINARY":     "browser.executable_path",
	}
	for env, key := range plain {
		if value := strings.TrimSpace(os.Getenv(env)); value != "" {
			v.Set(key, value)
		}
	}

	if raw := strings.TrimSpace(os.Getenv("fifiti_timeout")); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			v.Set("hifiti.timeout", time.Duration(seconds)*time.Second)
		}
	}
}

// ValidateSJS checks the settings the captcha forum flow cannot run without
func (c *Config) ValidateSJS() error {
	if c.SJS.Username == "" || c.SJS.Password == "" {
		return ErrMissingSJSCredentials
	}
	if c.SJS.BaseURL == "" {
		return fmt.Errorf("sjs base url is required")
	}
	return nil
}

// ValidateHiFiTi checks the settings the plain forum flow cannot run without
func (c *Config) ValidateHiFiTi() error {
	if c.HiFiTi.Username == "" || c.HiFiTi.Password == "" {
		return ErrMissingHiFiTiCredentials
	}
	if c.HiFiTi.BaseURL == "" {
		return fmt.Errorf("hifiti base url is required")
	}
	return nil
}

// WriteDefault writes a config file with defaults and no credentials
func WriteDefault(configPath string) error {
	config := Config{
		SJS: SJSConfig{
			BaseURL:  "https://xsijishe.com",
			SignPath: "/k_misign-sign.html",
			Timeout:  10 * time.Second,
		},
		HiFiTi: HiFiTiConfig{
			BaseURL: "https://hifiti.com",
			Timeout: 15 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:       true,
			NoSandbox:      true,
			ScreenshotDir:  ".",
			ViewportWidth:  1366,
			ViewportHeight: 900,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Notify: NotifyConfig{Console: true},
		Run:    RunConfig{Timeout: 10 * time.Minute},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}

	data, err := yaml.Marshal(&config)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
