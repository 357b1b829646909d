package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

func jsonUnmarshal(data []byte, out any) error {
	return json.Unmarshal(data, out)
}

// doJSON issues the request built by newReq, retrying network errors and
// 5xx responses with exponential backoff, and decodes the body into target.
// The factory is needed because request bodies are drained on each attempt.
func doJSON(newReq func() (*http.Request, error), target any, maxElapsed time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed

	var lastErr error
	op := func() error {
		req, err := newReq()
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %s", string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("request rejected: status=%d body=%s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}
		if len(body) == 0 {
			lastErr = fmt.Errorf("empty body")
			return lastErr
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = fmt.Errorf("json decode error: %v body=%s", err, string(body))
			return lastErr
		}
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}

// extractJSON pulls the outermost JSON object out of model output that may
// be wrapped in prose or code fences.
func extractJSON(content []byte) ([]byte, bool) {
	start := bytes.Index(content, []byte("{"))
	end := bytes.LastIndex(content, []byte("}"))
	if start < 0 || end <= start {
		return nil, false
	}
	return content[start : end+1], true
}
