package config

import (
	"fmt"
	"os"
	"strconv"
)

// Provider selects one of the two interchangeable backend implementations.
// Resolved once at startup, never per-request.
type Provider string

const (
	ProviderCloud Provider = "cloud"
	ProviderLocal Provider = "local"
)

type Config struct {
	HTTPAddr string

	ASRProvider  Provider
	ChatProvider Provider

	// Cloud ASR service (publish/poll/download)
	TranscribeURL string
	// Local ASR server (whisper)
	WhisperURL string

	Language string

	// Cloud chat completions
	LLMGatewayURL string
	LLMAPIKey     string
	LLMModel      string

	// Local chat completions (ollama)
	OllamaURL   string
	OllamaModel string

	// Knowledge graph service (LightRAG-compatible)
	GraphURL    string
	GraphAPIKey string

	// Artifact storage roots
	DataDir  string
	AudioDir string

	// Optional roster spreadsheet mapping diarized speaker ids to characters
	RosterPath string

	// Scene segmentation
	SceneGapSeconds    float64
	SceneMinDuration   float64
	SceneMinUtterances int
	TopicShiftProbe    bool
}

// FromEnv builds the configuration from environment variables. Call
// godotenv.Load first if a .env file should be honored.
func FromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:           ":" + envOr("PORT", "8080"),
		ASRProvider:        Provider(envOr("ASR_PROVIDER", "cloud")),
		ChatProvider:       Provider(envOr("CHAT_PROVIDER", "cloud")),
		TranscribeURL:      os.Getenv("TRANSCRIBE_URL"),
		WhisperURL:         envOr("WHISPER_URL", "http://localhost:9000"),
		Language:           envOr("LANGUAGE", "en"),
		LLMGatewayURL:      os.Getenv("LLM_GATEWAY_URL"),
		LLMAPIKey:          os.Getenv("LLM_API_KEY"),
		LLMModel:           envOr("LLM_MODEL", "gpt-4o-mini"),
		OllamaURL:          envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:        envOr("OLLAMA_MODEL", "llama3.1"),
		GraphURL:           envOr("GRAPH_URL", "http://localhost:9621"),
		GraphAPIKey:        os.Getenv("GRAPH_API_KEY"),
		DataDir:            envOr("DATA_DIR", "data/summaries"),
		AudioDir:           envOr("AUDIO_DIR", "data/audio"),
		RosterPath:         os.Getenv("ROSTER_PATH"),
		SceneGapSeconds:    envFloat("SCENE_GAP_SECONDS", 120),
		SceneMinDuration:   envFloat("SCENE_MIN_DURATION_SECONDS", 0),
		SceneMinUtterances: envInt("SCENE_MIN_UTTERANCES", 1),
		TopicShiftProbe:    os.Getenv("TOPIC_SHIFT_PROBE") == "true",
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.ASRProvider {
	case ProviderCloud:
		if c.TranscribeURL == "" {
			return fmt.Errorf("TRANSCRIBE_URL is required when ASR_PROVIDER=cloud")
		}
	case ProviderLocal:
		if c.WhisperURL == "" {
			return fmt.Errorf("WHISPER_URL is required when ASR_PROVIDER=local")
		}
	default:
		return fmt.Errorf("invalid ASR_PROVIDER %q: valid options are cloud, local", c.ASRProvider)
	}

	switch c.ChatProvider {
	case ProviderCloud:
		if c.LLMGatewayURL == "" || c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_GATEWAY_URL and LLM_API_KEY are required when CHAT_PROVIDER=cloud")
		}
	case ProviderLocal:
		if c.OllamaURL == "" || c.OllamaModel == "" {
			return fmt.Errorf("OLLAMA_URL and OLLAMA_MODEL are required when CHAT_PROVIDER=local")
		}
	default:
		return fmt.Errorf("invalid CHAT_PROVIDER %q: valid options are cloud, local", c.ChatProvider)
	}

	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.AudioDir == "" {
		return fmt.Errorf("AUDIO_DIR is required")
	}
	if c.SceneGapSeconds <= 0 {
		c.SceneGapSeconds = 120
	}
	if c.SceneMinUtterances < 1 {
		c.SceneMinUtterances = 1
	}
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
