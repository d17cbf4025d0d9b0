package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Config holds the runtime settings for the verification client. All fields
// can be supplied through the environment; zero values fall back to the
// defaults baked into the struct tags.
type Config struct {
	AppName string `env:"ACIDCHECK_APP_NAME" envDefault:"AcidCheck"`

	// Backend connectivity.
	BaseURL     string        `env:"ACIDCHECK_BASE_URL" envDefault:"http://localhost:9088/api/v1"`
	HTTPTimeout time.Duration `env:"ACIDCHECK_HTTP_TIMEOUT" envDefault:"30s"`

	// Face-capture tuning. The burst shape matches what the classification
	// backend expects; change these only in lockstep with the server.
	FaceWarmUp        time.Duration `env:"ACIDCHECK_FACE_WARMUP" envDefault:"1500ms"`
	FaceFrameInterval time.Duration `env:"ACIDCHECK_FACE_FRAME_INTERVAL" envDefault:"150ms"`
	FaceFrameCount    int           `env:"ACIDCHECK_FACE_FRAME_COUNT" envDefault:"8"`
	FaceRetryBackoff  time.Duration `env:"ACIDCHECK_FACE_RETRY_BACKOFF" envDefault:"500ms"`
	FaceMaxRetries    int           `env:"ACIDCHECK_FACE_MAX_RETRIES" envDefault:"2"`

	// Durable device-trust storage. Empty means in-memory only.
	TrustStorePath string `env:"ACIDCHECK_TRUST_STORE" envDefault:""`

	LogLevel string `env:"ACIDCHECK_LOG_LEVEL" envDefault:"info"`
}

// New parses the configuration from environment variables.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "[config.New] env.Parse")
	}
	return cfg, nil
}
