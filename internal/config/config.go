// Package config loads the settings of the ema-interview binaries from the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-interview/internal/config"

var logger = otelslog.NewLogger(scopeName)

const (
	EnvVapiAPIKey      = "VAPI_API_KEY"
	EnvVapiAssistantID = "VAPI_ASSISTANT_ID"
	EnvVapiBaseURL     = "VAPI_BASE_URL"
	EnvGroqAPIKey      = "GROQ_API_KEY"
	EnvGroqModel       = "GROQ_MODEL"
	EnvDataDir         = "EMA_INTERVIEW_DATA_DIR"
	EnvAddr            = "EMA_INTERVIEW_ADDR"
	EnvUserName        = "EMA_INTERVIEW_USER_NAME"
	EnvUserID          = "EMA_INTERVIEW_USER_ID"

	DefaultVapiBaseURL = "https://api.vapi.ai"
	DefaultGroqModel   = "llama-3.3-70b-versatile"
	DefaultAddr        = ":8080"
)

var ErrMissing = errors.New("required setting missing")

// Voice configures the interview client.
type Voice struct {
	APIKey      string
	AssistantID string
	BaseURL     string
	UserName    string
	UserID      string
}

// Questions configures the question generation server.
type Questions struct {
	GroqAPIKey string
	GroqModel  string
	// DataDir is where interviews are stored. Empty keeps them in memory.
	DataDir string
	Addr    string
}

func LoadVoice() (Voice, error) {
	cfg := Voice{
		APIKey:      lookup(EnvVapiAPIKey, ""),
		AssistantID: lookup(EnvVapiAssistantID, ""),
		BaseURL:     lookup(EnvVapiBaseURL, DefaultVapiBaseURL),
		UserName:    lookup(EnvUserName, ""),
		UserID:      lookup(EnvUserID, ""),
	}

	if err := checkRequired(
		EnvVapiAPIKey, cfg.APIKey,
		EnvVapiAssistantID, cfg.AssistantID,
	); err != nil {
		return Voice{}, err
	}
	return cfg, nil
}

func LoadQuestions() (Questions, error) {
	cfg := Questions{
		GroqAPIKey: lookup(EnvGroqAPIKey, ""),
		GroqModel:  lookup(EnvGroqModel, DefaultGroqModel),
		DataDir:    lookup(EnvDataDir, ""),
		Addr:       lookup(EnvAddr, DefaultAddr),
	}

	if err := checkRequired(EnvGroqAPIKey, cfg.GroqAPIKey); err != nil {
		return Questions{}, err
	}
	return cfg, nil
}

// lookup returns the trimmed value of key, or fallback when it is unset or
// blank.
func lookup(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		logger.Debug("using default value", "key", key, "source", "default")
		return fallback
	}

	if isSensitive(key) {
		logger.Debug("using environment variable", "key", key, "source", "environment", "sensitive", true)
	} else {
		logger.Debug("using environment variable", "key", key, "value", value, "source", "environment")
	}
	return value
}

func isSensitive(key string) bool {
	lowerKey := strings.ToLower(key)
	return strings.Contains(lowerKey, "key") || strings.Contains(lowerKey, "token")
}

// checkRequired takes key, value pairs and reports every key with an empty value.
func checkRequired(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}
