package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"session-scribe-go/internal/logger"
)

// localCompleter drives an ollama server in JSON mode.
type localCompleter struct {
	host  string
	model string
	log   *logrus.Entry
}

func newLocalCompleter(host, model string, log *logger.Logger) *localCompleter {
	return &localCompleter{
		host:  strings.TrimRight(host, "/"),
		model: model,
		log:   log.WithField("module", "completer").WithField("provider", "local"),
	}
}

type ollamaResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (c *localCompleter) Complete(ctx context.Context, prompt string, out any) error {
	payload, _ := json.Marshal(map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
	newReq := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	var resp ollamaResponse
	if err := doJSON(newReq, &resp, 2*time.Minute); err != nil {
		return fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	raw, ok := extractJSON([]byte(resp.Response))
	if !ok {
		return fmt.Errorf("%w: no JSON object in completion: %s", ErrOutputInvalid, resp.Response)
	}
	return decodeInto(raw, out)
}
