package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"session-scribe-go/internal/logger"
	"session-scribe-go/internal/types"
)

// Client talks to a LightRAG-compatible knowledge-graph service. The index
// path is a best-effort side channel: one bounded attempt, no retry, and
// callers are expected to log and swallow failures so indexing availability
// never affects pipeline correctness. The query path is synchronous.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      *logrus.Entry
}

func New(endpoint, apiKey string, log *logger.Logger) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
		log:      log.WithField("module", "knowledge"),
	}
}

type insertRequest struct {
	Text       string `json:"text"`
	FileSource string `json:"file_source"`
}

type insertResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Index publishes one scene summary document, keyed by campaign, episode
// and scene index.
func (c *Client) Index(ctx context.Context, campaignID, episodeID, sceneIndex int, text string) error {
	payload, _ := json.Marshal(insertRequest{
		Text:       text,
		FileSource: fmt.Sprintf("campaign_%d_episode_%d_scene_%d", campaignID, episodeID, sceneIndex+1),
	})
	var resp insertResponse
	if err := c.post(ctx, "/insert", payload, &resp); err != nil {
		return err
	}
	if resp.Status == "failure" {
		return fmt.Errorf("graph rejected insert: %s", resp.Message)
	}
	return nil
}

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

type queryResponse struct {
	Response string `json:"response"`
}

// Query answers a free-form question scoped to a campaign and optionally an
// episode.
func (c *Client) Query(ctx context.Context, question string, campaignID int, episodeID *int) (string, error) {
	parts := tags(campaignID, episodeID, nil)
	parts = append(parts, "Query: "+question)
	payload, _ := json.Marshal(queryRequest{Query: strings.Join(parts, "\n"), Mode: "mix"})

	var resp queryResponse
	if err := c.post(ctx, "/query", payload, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

func (c *Client) post(ctx context.Context, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("graph %s: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("graph %s: decode: %w", path, err)
	}
	return nil
}

func tags(campaignID int, episodeID, sceneIndex *int) []string {
	out := []string{fmt.Sprintf("[Campaign: %d]", campaignID)}
	if episodeID != nil {
		out = append(out, fmt.Sprintf("[Episode: %d]", *episodeID))
	}
	if sceneIndex != nil {
		out = append(out, fmt.Sprintf("[Scene: %d]", *sceneIndex+1))
	}
	return out
}

// FormatScene renders a scene summary as the tagged text document the graph
// indexes. Header tags are machine-parsable so queries can scope by
// campaign and episode.
func FormatScene(campaignID, episodeID, sceneIndex int, s types.SceneSummary) string {
	parts := tags(campaignID, &episodeID, &sceneIndex)
	parts = append(parts, fmt.Sprintf("[Timestamp: %.1fs - %.1fs]", s.Timestamps.Start, s.Timestamps.End))

	if len(s.Events) > 0 {
		parts = append(parts, "", "Events:")
		for _, e := range s.Events {
			parts = append(parts, "- "+e)
		}
	}
	if len(s.CharactersMentioned) > 0 {
		parts = append(parts, "", "Characters:")
		for _, m := range s.CharactersMentioned {
			parts = append(parts, mentionLine(m))
		}
	}
	if len(s.NPCsMentioned) > 0 {
		parts = append(parts, "", "NPCs:")
		for _, m := range s.NPCsMentioned {
			parts = append(parts, mentionLine(m))
		}
	}
	if len(s.Items) > 0 {
		parts = append(parts, "", "Items and Clues:")
		for _, item := range s.Items {
			line := "- " + item.Name
			if item.Description != "" {
				line += ": " + item.Description
			}
			if item.Significance != "" {
				line += fmt.Sprintf(" (Significance: %s)", item.Significance)
			}
			parts = append(parts, line)
		}
	}
	if len(s.OpenThreads) > 0 {
		parts = append(parts, "", "Open Threads:")
		for _, thread := range s.OpenThreads {
			line := "- " + thread.Description
			if thread.Priority != "" {
				line += fmt.Sprintf(" (Priority: %s)", thread.Priority)
			}
			if len(thread.RelatedCharacters) > 0 {
				line += fmt.Sprintf(" [Characters: %s]", strings.Join(thread.RelatedCharacters, ", "))
			}
			parts = append(parts, line)
		}
	}

	parts = append(parts, "", fmt.Sprintf("__CAMPAIGN__%d__EPISODE__%d__SCENE__%d__", campaignID, episodeID, sceneIndex+1))
	return strings.Join(parts, "\n")
}

func mentionLine(m types.Mention) string {
	if m.Note != "" {
		return fmt.Sprintf("- %s: %s", m.Name, m.Note)
	}
	return "- " + m.Name
}
