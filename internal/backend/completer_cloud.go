package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"session-scribe-go/internal/logger"
)

// cloudCompleter calls an OpenAI-style chat-completions gateway. Prompts
// demand a bare JSON object; the response content is trimmed to its
// outermost braces before decoding, since models occasionally wrap output
// in prose or code fences.
type cloudCompleter struct {
	url   string
	key   string
	model string
	log   *logrus.Entry
}

func newCloudCompleter(url, key, model string, log *logger.Logger) *cloudCompleter {
	return &cloudCompleter{
		url:   url,
		key:   key,
		model: model,
		log:   log.WithField("module", "completer").WithField("provider", "cloud"),
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *cloudCompleter) Complete(ctx context.Context, prompt string, out any) error {
	payload, _ := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature":     0.0,
		"response_format": map[string]string{"type": "json_object"},
	})
	newReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.key)
		return req, nil
	}

	var resp chatResponse
	if err := doJSON(newReq, &resp, 45*time.Second); err != nil {
		return fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("%w: no choices in response", ErrOutputInvalid)
	}
	content := []byte(resp.Choices[0].Message.Content)
	raw, ok := extractJSON(content)
	if !ok {
		return fmt.Errorf("%w: no JSON object in completion: %s", ErrOutputInvalid, content)
	}
	return decodeInto(raw, out)
}
