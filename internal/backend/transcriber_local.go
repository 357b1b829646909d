package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"session-scribe-go/internal/logger"
	"session-scribe-go/internal/types"
)

// localTranscriber posts audio to a locally hosted whisper server that
// answers synchronously with diarized utterances.
type localTranscriber struct {
	host string
	log  *logrus.Entry
}

func newLocalTranscriber(host string, log *logger.Logger) *localTranscriber {
	return &localTranscriber{
		host: strings.TrimRight(host, "/"),
		log:  log.WithField("module", "transcriber").WithField("provider", "local"),
	}
}

type localTranscribeResponse struct {
	Utterances []types.Utterance `json:"utterances"`
	Error      string            `json:"error,omitempty"`
}

func (t *localTranscriber) Transcribe(ctx context.Context, audio []byte, language string) ([]types.Utterance, error) {
	endpoint := t.host + "/transcribe"
	newReq := func() (*http.Request, error) {
		var b bytes.Buffer
		w := multipart.NewWriter(&b)
		fw, err := w.CreateFormFile("audio", "episode.ogg")
		if err != nil {
			return nil, err
		}
		if _, err := fw.Write(audio); err != nil {
			return nil, err
		}
		w.WriteField("language", language)
		w.WriteField("diarize", "true")
		if err := w.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &b)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	}

	// Local inference on a long episode is slow; give the retry budget room.
	var resp localTranscribeResponse
	if err := doJSON(newReq, &resp, 2*time.Minute); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrTranscriptionFailed, resp.Error)
	}
	if err := validateUtterances(resp.Utterances); err != nil {
		return nil, err
	}
	t.log.WithField("utterances", len(resp.Utterances)).Info("transcription complete")
	return resp.Utterances, nil
}
