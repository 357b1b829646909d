package backend

import (
	"context"
	"errors"
	"fmt"

	"session-scribe-go/internal/config"
	"session-scribe-go/internal/logger"
	"session-scribe-go/internal/types"
)

var (
	// ErrOutputInvalid means the underlying model returned data that does
	// not conform to the expected schema. Not retryable locally.
	ErrOutputInvalid = errors.New("backend output invalid")
	// ErrTranscriptionFailed means the ASR adapter exhausted its retry budget.
	ErrTranscriptionFailed = errors.New("transcription failed")
	// ErrCompletionFailed means the chat adapter exhausted its retry budget.
	ErrCompletionFailed = errors.New("completion failed")
)

// Transcriber converts raw audio into diarized utterances.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) ([]types.Utterance, error)
}

// Completer answers a prompt with a JSON object decoded into out. The
// prompt is expected to demand return-only-JSON; non-conforming responses
// surface as ErrOutputInvalid, never as partially parsed data.
type Completer interface {
	Complete(ctx context.Context, prompt string, out any) error
}

// Validator lets response types reject structurally valid but semantically
// empty model output.
type Validator interface {
	Validate() error
}

// NewTranscriber selects the configured ASR implementation.
func NewTranscriber(cfg *config.Config, log *logger.Logger) (Transcriber, error) {
	switch cfg.ASRProvider {
	case config.ProviderCloud:
		return newCloudTranscriber(cfg.TranscribeURL, log), nil
	case config.ProviderLocal:
		return newLocalTranscriber(cfg.WhisperURL, log), nil
	default:
		return nil, fmt.Errorf("unknown ASR provider %q", cfg.ASRProvider)
	}
}

// NewCompleter selects the configured chat-completion implementation.
func NewCompleter(cfg *config.Config, log *logger.Logger) (Completer, error) {
	switch cfg.ChatProvider {
	case config.ProviderCloud:
		return newCloudCompleter(cfg.LLMGatewayURL, cfg.LLMAPIKey, cfg.LLMModel, log), nil
	case config.ProviderLocal:
		return newLocalCompleter(cfg.OllamaURL, cfg.OllamaModel, log), nil
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.ChatProvider)
	}
}

func decodeInto(raw []byte, out any) error {
	if err := jsonUnmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputInvalid, err)
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrOutputInvalid, err)
		}
	}
	return nil
}

func validateUtterances(utterances []types.Utterance) error {
	if len(utterances) == 0 {
		return fmt.Errorf("%w: empty transcript", ErrOutputInvalid)
	}
	for i, u := range utterances {
		if u.Text == "" {
			return fmt.Errorf("%w: utterance %d has no text", ErrOutputInvalid, i)
		}
		if u.End < u.Start {
			return fmt.Errorf("%w: utterance %d ends before it starts", ErrOutputInvalid, i)
		}
	}
	return nil
}
