package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Worker   WorkerConfig   `yaml:"worker"`
	Browser  BrowserConfig  `yaml:"browser"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Download DownloadConfig `yaml:"download"`
	Wistia   WistiaConfig   `yaml:"wistia"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9848"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"0s"` // runs are long-lived
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	// BasePath is the parent of per-course directories when no save path is given.
	BasePath string `yaml:"base_path" envconfig:"STORAGE_PATH" default:"courses"`
	// MinFreeBytes is kept free on the destination volume.
	MinFreeBytes int64 `yaml:"min_free_bytes" envconfig:"STORAGE_MIN_FREE_BYTES" default:"104857600"` // 100MB
}

// WorkerConfig holds download worker pool configuration.
type WorkerConfig struct {
	Count int `yaml:"count" envconfig:"WORKER_COUNT" default:"2"`
}

// BrowserConfig holds browser session configuration.
type BrowserConfig struct {
	ExecPath     string        `yaml:"exec_path" envconfig:"BROWSER_EXEC_PATH"`
	ProfileDir   string        `yaml:"profile_dir" envconfig:"BROWSER_PROFILE_DIR" default:"./browser_profile"`
	Headless     bool          `yaml:"headless" envconfig:"BROWSER_HEADLESS" default:"false"`
	LoginMarker  string        `yaml:"login_marker" envconfig:"BROWSER_LOGIN_MARKER" default:"body > header.signed-in"`
	PollInterval time.Duration `yaml:"poll_interval" envconfig:"BROWSER_POLL_INTERVAL" default:"2s"`
	LoginTimeout time.Duration `yaml:"login_timeout" envconfig:"BROWSER_LOGIN_TIMEOUT" default:"5m"`
	NavTimeout   time.Duration `yaml:"nav_timeout" envconfig:"BROWSER_NAV_TIMEOUT" default:"60s"`
}

// ScrapeConfig holds the selectors used to read course and lecture pages.
type ScrapeConfig struct {
	ContentSelector     string        `yaml:"content_selector" envconfig:"SCRAPE_CONTENT_SELECTOR" default:"#course-list-accordion, #js--course-list"`
	TitleSelector       string        `yaml:"title_selector" envconfig:"SCRAPE_TITLE_SELECTOR" default:"h1.course-title"`
	ChapterSelector     string        `yaml:"chapter_selector" envconfig:"SCRAPE_CHAPTER_SELECTOR" default:".chapter-heading"`
	ChapterBodySelector string        `yaml:"chapter_body_selector" envconfig:"SCRAPE_CHAPTER_BODY_SELECTOR" default:".accordion-collapse"`
	LectureSelector     string        `yaml:"lecture_selector" envconfig:"SCRAPE_LECTURE_SELECTOR" default:"li.lesson a.lesson-link"`
	LessonTitleSelector string        `yaml:"lesson_title_selector" envconfig:"SCRAPE_LESSON_TITLE_SELECTOR" default:".lesson-content-inner .fw-bold"`
	MediaSelector       string        `yaml:"media_selector" envconfig:"SCRAPE_MEDIA_SELECTOR" default:"video, .wistia_embed, a[download]"`

	// LessonContentSelector marks text lessons whose page is saved as HTML when no media is found.
	// Empty disables saving.
	LessonContentSelector string `yaml:"lesson_content_selector" envconfig:"SCRAPE_LESSON_CONTENT_SELECTOR" default:"div.lesson-content-inner"`

	CourseFiles         bool          `yaml:"course_files" envconfig:"SCRAPE_COURSE_FILES" default:"false"`
	CourseFilesSelector string        `yaml:"course_files_selector" envconfig:"SCRAPE_COURSE_FILES_SELECTOR" default:".js-courseFiles-modal a, .modal-body .text-truncate a"`
	RenderTimeout       time.Duration `yaml:"render_timeout" envconfig:"SCRAPE_RENDER_TIMEOUT" default:"30s"`
	MediaTimeout        time.Duration `yaml:"media_timeout" envconfig:"SCRAPE_MEDIA_TIMEOUT" default:"20s"`
}

// DownloadConfig holds media download configuration.
type DownloadConfig struct {
	HeaderTimeout time.Duration `yaml:"header_timeout" envconfig:"DOWNLOAD_HEADER_TIMEOUT" default:"30s"`
	ReadTimeout   time.Duration `yaml:"read_timeout" envconfig:"DOWNLOAD_READ_TIMEOUT" default:"2m"`
	MaxAttempts   int           `yaml:"max_attempts" envconfig:"DOWNLOAD_MAX_ATTEMPTS" default:"1"`
	RetryDelay    time.Duration `yaml:"retry_delay" envconfig:"DOWNLOAD_RETRY_DELAY" default:"5s"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" envconfig:"DOWNLOAD_MAX_RETRY_DELAY" default:"60s"`
	UserAgent     string        `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
}

// WistiaConfig holds the Wistia media lookup configuration.
type WistiaConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"WISTIA_BASE_URL" default:"https://fast.wistia.net"`
	Timeout time.Duration `yaml:"timeout" envconfig:"WISTIA_TIMEOUT" default:"15s"`
}

// MaxWorkers bounds download parallelism out of politeness to the source platform.
const MaxWorkers = 8

// Load reads configuration from environment variables and an optional file.
// Defaults and environment variables are applied first; keys present in the
// YAML file take precedence over them.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Storage.BasePath == "" {
		return fmt.Errorf("STORAGE_PATH is required")
	}
	if c.Worker.Count < 1 || c.Worker.Count > MaxWorkers {
		return fmt.Errorf("WORKER_COUNT must be between 1 and %d, got %d", MaxWorkers, c.Worker.Count)
	}
	if c.Browser.LoginMarker == "" {
		return fmt.Errorf("BROWSER_LOGIN_MARKER is required")
	}
	if c.Browser.PollInterval <= 0 || c.Browser.LoginTimeout <= 0 {
		return fmt.Errorf("BROWSER_POLL_INTERVAL and BROWSER_LOGIN_TIMEOUT must be positive")
	}
	if c.Browser.PollInterval > c.Browser.LoginTimeout {
		return fmt.Errorf("BROWSER_POLL_INTERVAL (%s) exceeds BROWSER_LOGIN_TIMEOUT (%s)", c.Browser.PollInterval, c.Browser.LoginTimeout)
	}
	if c.Scrape.ContentSelector == "" || c.Scrape.LectureSelector == "" {
		return fmt.Errorf("SCRAPE_CONTENT_SELECTOR and SCRAPE_LECTURE_SELECTOR are required")
	}
	if c.Download.MaxAttempts < 1 {
		return fmt.Errorf("DOWNLOAD_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
