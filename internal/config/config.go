package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DataDir  string `env:"DATA_DIR" envDefault:"./data"`
	MediaDir string `env:"MEDIA_DIR" envDefault:"./data/media"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Generation settings
	LLMModel       string        `env:"LLM_MODEL" envDefault:"gemini-2.0-flash"`
	TTSModel       string        `env:"TTS_MODEL" envDefault:"gemini-2.5-flash-preview-tts"`
	TTSVoice       string        `env:"TTS_VOICE" envDefault:"Kore"`
	ImageModel     string        `env:"IMAGE_MODEL" envDefault:"gemini-2.0-flash-exp-image-generation"`
	ElevenVoiceID  string        `env:"ELEVENLABS_VOICE_ID" envDefault:"21m00Tcm4TlvDq8ikWAM"`
	RequestTimeout time.Duration `env:"GEN_REQUEST_TIMEOUT" envDefault:"4m"`
	BatchDelay     time.Duration `env:"GEN_BATCH_DELAY" envDefault:"2s"`

	S3 S3Config
}

// S3Config enables optional S3 backup of generated media.
type S3Config struct {
	Bucket        string        `env:"S3_BUCKET"`
	Region        string        `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint      string        `env:"S3_ENDPOINT"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	Prefix        string        `env:"S3_PREFIX"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
	LocalCache    bool          `env:"S3_LOCAL_CACHE" envDefault:"true"`
}

// Enabled reports whether S3 backup is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	HTTPAddr string
	LogLevel string
	DataDir  string
	MediaDir string
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

	// Parse environment variables into config struct
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
	if overrides.DataDir != "" {
		cfg.DataDir = overrides.DataDir
	}
	if overrides.MediaDir != "" {
		cfg.MediaDir = overrides.MediaDir
	}

	return cfg, nil
}
