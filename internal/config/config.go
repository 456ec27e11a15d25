package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8000"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s"` // SSE streams stay open
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	AssetsDir string `env:"ASSETS_DIR" envDefault:"./assets"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"./output"`
	BGMDir    string `env:"BGM_DIR"` // defaults to <ASSETS_DIR>/bgm

	Resolution string `env:"VIDEO_RESOLUTION" envDefault:"1080x1920"`
	FPS        int    `env:"VIDEO_FPS" envDefault:"25"`
	FFmpegPath string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`

	TTSVoice    string `env:"TTS_VOICE" envDefault:"zh-CN-YunxiNeural"`
	EdgeTTSPath string `env:"EDGE_TTS_PATH" envDefault:"edge-tts"`

	WhisperURL      string        `env:"WHISPER_URL"`
	WhisperModel    string        `env:"WHISPER_MODEL" envDefault:"whisper-1"`
	WhisperTimeout  time.Duration `env:"WHISPER_TIMEOUT" envDefault:"60s"`
	WhisperLanguage string        `env:"WHISPER_LANGUAGE" envDefault:"zh"`

	SeedreamURL    string `env:"SEEDREAM_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3/images/generations"`
	SeedreamAPIKey string `env:"SEEDREAM_API_KEY"`
	SeedreamModel  string `env:"SEEDREAM_MODEL" envDefault:"doubao-seedream-4-0-250828"`
	MockImage      bool   `env:"MOCK_IMAGE" envDefault:"false"`

	SceneWorkers int           `env:"SCENE_WORKERS" envDefault:"2"`
	SceneStagger time.Duration `env:"SCENE_STAGGER" envDefault:"500ms"`

	CaptionLead  time.Duration `env:"CAPTION_LEAD" envDefault:"200ms"`
	CaptionStyle string        `env:"CAPTION_STYLE" envDefault:"classic_yellow"`
	CaptionFont  string        `env:"CAPTION_FONT" envDefault:"PingFang SC"`

	TaskStore   string `env:"TASK_STORE" envDefault:"file"`
	TasksFile   string `env:"TASKS_FILE" envDefault:"tasks_status.json"`
	DatabaseURL string `env:"DATABASE_URL"`

	MQTTBrokerURL   string `env:"MQTT_BROKER_URL"`
	MQTTClientID    string `env:"MQTT_CLIENT_ID" envDefault:"subforge"`
	MQTTTopicPrefix string `env:"MQTT_TOPIC_PREFIX" envDefault:"subforge"`
	MQTTUsername    string `env:"MQTT_USERNAME"`
	MQTTPassword    string `env:"MQTT_PASSWORD"`

	WatchDir string `env:"WATCH_DIR"`

	S3 S3Config `envPrefix:"S3_"`
}

// S3Config configures the optional object-store backend for finished videos.
type S3Config struct {
	Bucket        string        `env:"BUCKET"`
	Endpoint      string        `env:"ENDPOINT"`
	Region        string        `env:"REGION" envDefault:"us-east-1"`
	AccessKey     string        `env:"ACCESS_KEY"`
	SecretKey     string        `env:"SECRET_KEY"`
	Prefix        string        `env:"PREFIX"`
	PresignExpiry time.Duration `env:"PRESIGN_EXPIRY" envDefault:"1h"`
	LocalCache    bool          `env:"LOCAL_CACHE" envDefault:"true"`
}

// Enabled reports whether a bucket has been configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	AssetsDir   string
	OutputDir   string
	DatabaseURL string
	WatchDir    string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.AssetsDir != "" {
		cfg.AssetsDir = overrides.AssetsDir
	}
	if overrides.OutputDir != "" {
		cfg.OutputDir = overrides.OutputDir
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.WatchDir != "" {
		cfg.WatchDir = overrides.WatchDir
	}

	if cfg.BGMDir == "" {
		cfg.BGMDir = cfg.AssetsDir + "/bgm"
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SceneWorkers < 1 {
		return fmt.Errorf("SCENE_WORKERS must be at least 1, got %d", c.SceneWorkers)
	}
	if c.CaptionLead < 0 {
		return fmt.Errorf("CAPTION_LEAD must not be negative, got %s", c.CaptionLead)
	}
	switch strings.ToLower(c.TaskStore) {
	case "file":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("TASK_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("TASK_STORE must be file or postgres, got %q", c.TaskStore)
	}
	c.TaskStore = strings.ToLower(c.TaskStore)
	return nil
}
