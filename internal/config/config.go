package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

type YTDLPConfig struct {
	Bin       string `yaml:"bin"`
	Format    string `yaml:"format"`
	UserAgent string `yaml:"user_agent"`
}

type GalleryDLConfig struct {
	Bin          string        `yaml:"bin"`
	Timeout      time.Duration `yaml:"timeout"`
	RecentWindow time.Duration `yaml:"recent_window"`
}

type CredentialsConfig struct {
	Dir string `yaml:"dir"`
}

type DownloadConfig struct {
	BaseDir  string `yaml:"base_dir"`
	ProbeURL string `yaml:"probe_url"`
}

type Config struct {
	Listen      string            `yaml:"listen"`
	LogLevel    LogLevel          `yaml:"log_level"`
	CORSOrigins []string          `yaml:"cors_origins"`
	Download    DownloadConfig    `yaml:"download"`
	Credentials CredentialsConfig `yaml:"credentials"`
	YTDLP       YTDLPConfig       `yaml:"ytdlp"`
	GalleryDL   GalleryDLConfig   `yaml:"gallery_dl"`
}

func (c *Config) SetDefaults() {
	c.Listen = ":8000"
	c.LogLevel = LogLevelInfo
	c.CORSOrigins = []string{"http://localhost:3000", "http://localhost:3001"}
	c.Download.BaseDir = "downloads"
	c.Download.ProbeURL = "https://www.instagram.com/instagram/"
	c.Credentials.Dir = "backend"
	c.YTDLP.Bin = "yt-dlp"
	c.YTDLP.Format = "best/worst"
	c.YTDLP.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	c.GalleryDL.Bin = "gallery-dl"
	c.GalleryDL.Timeout = 90 * time.Second
	c.GalleryDL.RecentWindow = 5 * time.Minute
}

// MustLoad reads the config file, applies .env overrides and panics on any
// problem. A missing config file is fine, defaults apply.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}

	// .env is optional, environment always wins over the file.
	_ = godotenv.Load()
	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("INSTASCRAPE_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("INSTASCRAPE_LOG_LEVEL"); v != "" {
		c.LogLevel = LogLevel(v)
	}
	if v := os.Getenv("INSTASCRAPE_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("INSTASCRAPE_DOWNLOADS_DIR"); v != "" {
		c.Download.BaseDir = v
	}
	if v := os.Getenv("INSTASCRAPE_PROBE_URL"); v != "" {
		c.Download.ProbeURL = v
	}
	if v := os.Getenv("INSTASCRAPE_CREDENTIALS_DIR"); v != "" {
		c.Credentials.Dir = v
	}
	if v := os.Getenv("INSTASCRAPE_YTDLP_BIN"); v != "" {
		c.YTDLP.Bin = v
	}
	if v := os.Getenv("INSTASCRAPE_YTDLP_FORMAT"); v != "" {
		c.YTDLP.Format = v
	}
	if v := os.Getenv("INSTASCRAPE_GALLERYDL_BIN"); v != "" {
		c.GalleryDL.Bin = v
	}
	if v := os.Getenv("INSTASCRAPE_GALLERYDL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.GalleryDL.Timeout = d
		}
	}
	if v := os.Getenv("INSTASCRAPE_GALLERYDL_RECENT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.GalleryDL.RecentWindow = d
		}
	}
}
