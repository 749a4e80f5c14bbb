package internal

import (
	"fmt"
	"time"
)

type Config struct {
	BufferSize           int           `env:"BUFFER_SIZE,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,required=true"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,required=true"`
	GCInterval           time.Duration `env:"GC_INTERVAL,required=true"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	Host           string `env:"HOST,required=true"`
	Port           int    `env:"PORT,required=true"`

	// An empty OpenAI key switches the server to the scripted adapter,
	// which is what local development and the e2e suite use.
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL,default=gpt-4o-mini"`

	EnableDebugServer bool `env:"ENABLE_DEBUG_SERVER"`
	DebugPort         int  `env:"DEBUG_PORT,default=8090"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
