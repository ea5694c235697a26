package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice assistant and its upload service
type Config struct {
	// Server configuration (upload service)
	Port       string `envconfig:"PORT" default:"8000"`
	StaticDir  string `envconfig:"STATIC_DIR" default:"static"`
	CORSOrigin string `envconfig:"CORS_ORIGIN" default:"http://localhost:3000"` // Web client origin

	// Deepgram API configuration (STT and TTS share one key)
	DeepgramAPIKey      string `envconfig:"DG_API_KEY" required:"true"`
	DeepgramModel       string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage    string `envconfig:"DEEPGRAM_LANGUAGE" default:"en-US"`
	DeepgramEndpointing string `envconfig:"DEEPGRAM_ENDPOINTING" default:"300"` // Silence in ms that closes an utterance
	DeepgramSpeakURL    string `envconfig:"DEEPGRAM_SPEAK_URL" default:"https://api.deepgram.com/v1/speak"`
	TTSVoice            string `envconfig:"TTS_VOICE" default:"aura-zeus-en"`

	// Microphone capture
	SampleRate      int    `envconfig:"SAMPLE_RATE" default:"16000"`
	Channels        int    `envconfig:"CHANNELS" default:"1"`
	Encoding        string `envconfig:"ENCODING" default:"linear16"`
	FramesPerBuffer int    `envconfig:"FRAMES_PER_BUFFER" default:"1600"` // 100ms at 16kHz

	// Playback
	PlayerCommand string `envconfig:"PLAYER_COMMAND" default:"ffplay"`

	// Groq language model configuration
	GroqAPIKey      string  `envconfig:"GROQ_API_KEY" required:"true"`
	GroqBaseURL     string  `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
	GroqModel       string  `envconfig:"GROQ_MODEL" default:"llama3-70b-8192"`
	GroqTemperature float64 `envconfig:"GROQ_TEMPERATURE" default:"0"`
	GroqTimeout     int     `envconfig:"GROQ_TIMEOUT" default:"0"` // seconds, 0 disables the client timeout

	// Upload service pipeline
	UploadModel       string  `envconfig:"UPLOAD_MODEL" default:"deepseek-r1-distill-llama-70b"`
	UploadTemperature float64 `envconfig:"UPLOAD_TEMPERATURE" default:"0.7"`
	UploadVoice       string  `envconfig:"UPLOAD_VOICE" default:"aura-asteria-en"`

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
	MetricsPort    string `envconfig:"METRICS_PORT" default:""`        // Metrics listener for the interactive assistant
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the keys the providers cannot run without
func (c *Config) Validate() error {
	if c.DeepgramAPIKey == "" {
		return fmt.Errorf("DG_API_KEY is required")
	}
	if c.GroqAPIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required")
	}
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return fmt.Errorf("SAMPLE_RATE and CHANNELS must be positive")
	}
	return nil
}
