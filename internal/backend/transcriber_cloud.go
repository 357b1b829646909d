package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"session-scribe-go/internal/logger"
	"session-scribe-go/internal/types"
)

// cloudTranscriber talks to a hosted ASR service with an async job API:
// publish the audio, poll the job until done, download the diarized
// transcript. Diarization happens server-side.
type cloudTranscriber struct {
	host string
	log  *logrus.Entry
}

func newCloudTranscriber(host string, log *logger.Logger) *cloudTranscriber {
	return &cloudTranscriber{
		host: strings.TrimRight(host, "/"),
		log:  log.WithField("module", "transcriber").WithField("provider", "cloud"),
	}
}

type publishResponse struct {
	Code int    `json:"code"`
	Data struct {
		MediaID       string `json:"media_id"`
		Status        string `json:"status"`
		TranscriptURL string `json:"transcript_url"`
	} `json:"data"`
	Reason string `json:"reason,omitempty"`
}

type statusResponse struct {
	Code int    `json:"code"`
	Data struct {
		Status        string `json:"status"` // Queued, Processing, Success, Failed
		TranscriptURL string `json:"transcript_url"`
	} `json:"data"`
	Reason string `json:"reason,omitempty"`
}

func (t *cloudTranscriber) Transcribe(ctx context.Context, audio []byte, language string) ([]types.Utterance, error) {
	mediaID, existingURL, err := t.publish(ctx, audio, language)
	if err != nil {
		return nil, fmt.Errorf("%w: publish: %v", ErrTranscriptionFailed, err)
	}
	transcriptURL := existingURL
	if transcriptURL == "" {
		transcriptURL, err = t.poll(ctx, mediaID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
		}
	}
	t.log.WithField("transcript_url", transcriptURL).Info("downloading transcript")
	utterances, err := t.download(ctx, transcriptURL)
	if err != nil {
		return nil, err
	}
	if err := validateUtterances(utterances); err != nil {
		return nil, err
	}
	return utterances, nil
}

func (t *cloudTranscriber) publish(ctx context.Context, audio []byte, language string) (string, string, error) {
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

	var resp publishResponse
	if err := doJSON(newReq, &resp, 30*time.Second); err != nil {
		return "", "", err
	}
	if resp.Code != 200 {
		return "", "", fmt.Errorf("publish rejected: code=%d reason=%s", resp.Code, resp.Reason)
	}
	// Service may have transcribed this audio before and short-circuits.
	if resp.Data.TranscriptURL != "" && strings.EqualFold(resp.Data.Status, "success") {
		return "", resp.Data.TranscriptURL, nil
	}
	// Without a media id there is no job to poll.
	if resp.Data.MediaID == "" {
		return "", "", fmt.Errorf("publish returned no media id (status=%s)", resp.Data.Status)
	}
	return resp.Data.MediaID, "", nil
}

func (t *cloudTranscriber) poll(ctx context.Context, mediaID string) (string, error) {
	base := t.host + "/status"
	// Transcription jobs run minutes to hours; poll until the service
	// reports a terminal state or the run is cancelled.
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		u, _ := url.Parse(base)
		q := u.Query()
		q.Set("mediaId", mediaID)
		u.RawQuery = q.Encode()
		newReq := func() (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		}

		var s statusResponse
		if err := doJSON(newReq, &s, 15*time.Second); err != nil {
			t.log.WithError(err).Warn("status poll failed")
			continue
		}
		t.log.WithField("media_id", mediaID).WithField("status", s.Data.Status).Debug("polling transcription")
		switch s.Data.Status {
		case "Success":
			return s.Data.TranscriptURL, nil
		case "Queued", "Processing":
			continue
		case "Failed":
			return "", fmt.Errorf("job failed: %s", s.Reason)
		default:
			return "", fmt.Errorf("unknown job status %q", s.Data.Status)
		}
	}
}

func (t *cloudTranscriber) download(ctx context.Context, transcriptURL string) ([]types.Utterance, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, transcriptURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download: %v", ErrTranscriptionFailed, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: download status=%d body=%s", ErrTranscriptionFailed, resp.StatusCode, string(body))
	}
	var utterances []types.Utterance
	if err := jsonUnmarshal(body, &utterances); err != nil {
		return nil, fmt.Errorf("%w: transcript decode: %v", ErrOutputInvalid, err)
	}
	return utterances, nil
}
