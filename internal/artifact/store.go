package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested key holds no artifact.
var ErrNotFound = errors.New("artifact not found")

// Store reads and writes artifacts by logical key. Writes are idempotent
// overwrites: putting the same key twice leaves one artifact, never two.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
	Exists(key string) bool
}

func GetJSON(s Store, key string, out any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func PutJSON(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Put(key, data)
}

// Artifact keys. Every episode artifact is owned by its (campaign, episode)
// pair; a retried stage overwrites the same key.

func TranscriptKey(campaignID, episodeID int) string {
	return fmt.Sprintf("%d/%d/transcript.json", campaignID, episodeID)
}

func ScenesKey(campaignID, episodeID int) string {
	return fmt.Sprintf("%d/%d/scenes.json", campaignID, episodeID)
}

func SceneSummariesKey(campaignID, episodeID int) string {
	return fmt.Sprintf("%d/%d/summaries.json", campaignID, episodeID)
}

func EpisodeKey(campaignID, episodeID int) string {
	return fmt.Sprintf("%d/%d/episode.json", campaignID, episodeID)
}

func CampaignKey(campaignID int) string {
	return fmt.Sprintf("%d/campaign.json", campaignID)
}

func RunKey(instanceID string) string {
	return fmt.Sprintf("runs/%s.json", instanceID)
}
