package workflow

import (
	"context"
	"errors"
	"fmt"

	"session-scribe-go/internal/artifact"
	"session-scribe-go/internal/backend"
	"session-scribe-go/internal/knowledge"
	"session-scribe-go/internal/roster"
	"session-scribe-go/internal/scenes"
	"session-scribe-go/internal/summary"
	"session-scribe-go/internal/types"
)

// Workflow names as they appear in run records.
const (
	WorkflowAudioToSummary      = "audio_to_summary"
	WorkflowTranscriptToSummary = "transcript_to_summary"
	WorkflowCampaignRollup      = "campaign_rollup"
)

// Publisher pushes one scene document into the knowledge graph. Indexing is
// best effort: the pipeline logs failures and keeps going.
type Publisher interface {
	Index(ctx context.Context, campaignID, episodeID, sceneIndex int, text string) error
}

// Pipelines wires the stages into the two episode workflows and the
// campaign roll-up. Every stage writes its artifact before the next stage
// starts, and every stage skips itself when its artifact already exists, so
// a rescheduled run resumes where the failed one stopped.
type Pipelines struct {
	Store       artifact.Store
	Audio       artifact.Store
	Transcriber backend.Transcriber
	Segmenter   *scenes.Segmenter
	Summarizer  *summary.Summarizer
	Publisher   Publisher
	Roster      *roster.Roster
	Language    string
}

// AudioToSummary runs the full chain from a recorded session file.
func (p *Pipelines) AudioToSummary(ctx context.Context, rc *RunContext) (any, error) {
	in := rc.Input()
	key := artifact.TranscriptKey(in.CampaignID, in.EpisodeID)

	if p.Store.Exists(key) {
		rc.Log.WithField("key", key).Info("transcript exists, skipping transcription")
	} else {
		if err := rc.Checkpoint(StageTranscribing); err != nil {
			return nil, err
		}
		audio, err := p.Audio.Get(in.AudioFilePath)
		if err != nil {
			return nil, fmt.Errorf("read audio %s: %w", in.AudioFilePath, err)
		}
		utterances, err := p.Transcriber.Transcribe(ctx, audio, p.Language)
		if err != nil {
			return nil, err
		}
		p.Roster.Apply(utterances)
		if err := artifact.PutJSON(p.Store, key, utterances); err != nil {
			return nil, err
		}
		rc.Log.WithField("utterances", len(utterances)).Info("transcript committed")
	}

	return p.summarizeTail(ctx, rc, key)
}

// TranscriptToSummary starts from an already-committed transcript. It fails
// fast when the transcript is missing rather than checkpointing a doomed
// run.
func (p *Pipelines) TranscriptToSummary(ctx context.Context, rc *RunContext) (any, error) {
	in := rc.Input()
	key := in.TranscriptRef
	if key == "" {
		key = artifact.TranscriptKey(in.CampaignID, in.EpisodeID)
	}
	if !p.Store.Exists(key) {
		return nil, fmt.Errorf("transcript %s: %w", key, artifact.ErrNotFound)
	}
	return p.summarizeTail(ctx, rc, key)
}

// summarizeTail is the shared back half of both episode workflows:
// segmentation, ordered scene summarization with cumulative persistence,
// best-effort graph publication, and episode aggregation.
func (p *Pipelines) summarizeTail(ctx context.Context, rc *RunContext, transcriptKey string) (any, error) {
	in := rc.Input()

	scenesKey := artifact.ScenesKey(in.CampaignID, in.EpisodeID)
	var sceneList []types.Scene
	if p.Store.Exists(scenesKey) {
		if err := artifact.GetJSON(p.Store, scenesKey, &sceneList); err != nil {
			return nil, err
		}
		rc.Log.WithField("scenes", len(sceneList)).Info("scenes exist, skipping segmentation")
	} else {
		if err := rc.Checkpoint(StageSegmenting); err != nil {
			return nil, err
		}
		var utterances []types.Utterance
		if err := artifact.GetJSON(p.Store, transcriptKey, &utterances); err != nil {
			return nil, err
		}
		var err error
		sceneList, err = p.Segmenter.Split(ctx, utterances)
		if err != nil {
			return nil, err
		}
		if err := artifact.PutJSON(p.Store, scenesKey, sceneList); err != nil {
			return nil, err
		}
		rc.Log.WithField("scenes", len(sceneList)).Info("scenes committed")
	}

	summariesKey := artifact.SceneSummariesKey(in.CampaignID, in.EpisodeID)
	var summaries []types.SceneSummary
	if p.Store.Exists(summariesKey) {
		if err := artifact.GetJSON(p.Store, summariesKey, &summaries); err != nil {
			return nil, err
		}
	}
	if len(summaries) > len(sceneList) {
		// Stale partial from an earlier segmentation; start over.
		summaries = summaries[:0]
	}
	if len(summaries) > 0 {
		rc.Log.WithField("resumed_at", len(summaries)).Info("resuming scene summaries")
	}

	for i := len(summaries); i < len(sceneList); i++ {
		if err := rc.Checkpoint(SummarizingStage(i, len(sceneList))); err != nil {
			return nil, err
		}
		var prev *types.SceneSummary
		if i > 0 {
			prev = &summaries[i-1]
		}
		s, err := p.Summarizer.Scene(ctx, sceneList[i], prev)
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", i, err)
		}
		summaries = append(summaries, s)
		if err := artifact.PutJSON(p.Store, summariesKey, summaries); err != nil {
			return nil, err
		}
		p.publish(ctx, rc, i, s)
	}

	if err := rc.Checkpoint(StageAggregating); err != nil {
		return nil, err
	}
	// Context comes from the nearest earlier episode that has a committed
	// summary; episodes that were never summarized are skipped over.
	var prevEpisode *types.EpisodeSummary
	for n := in.EpisodeID - 1; n >= 1; n-- {
		prevKey := artifact.EpisodeKey(in.CampaignID, n)
		if !p.Store.Exists(prevKey) {
			continue
		}
		var prev types.EpisodeSummary
		if err := artifact.GetJSON(p.Store, prevKey, &prev); err != nil {
			return nil, err
		}
		prevEpisode = &prev
		break
	}
	episode, err := p.Summarizer.Episode(ctx, summaries, prevEpisode)
	if err != nil {
		return nil, err
	}
	if err := artifact.PutJSON(p.Store, artifact.EpisodeKey(in.CampaignID, in.EpisodeID), episode); err != nil {
		return nil, err
	}
	rc.Log.WithField("scenes", len(summaries)).Info("episode summary committed")
	return episode, nil
}

func (p *Pipelines) publish(ctx context.Context, rc *RunContext, sceneIndex int, s types.SceneSummary) {
	if p.Publisher == nil {
		return
	}
	in := rc.Input()
	doc := knowledge.FormatScene(in.CampaignID, in.EpisodeID, sceneIndex, s)
	if err := p.Publisher.Index(ctx, in.CampaignID, in.EpisodeID, sceneIndex, doc); err != nil {
		rc.Log.WithField("scene", sceneIndex).WithField("error", err.Error()).Warn("graph indexing failed, continuing")
	}
}

// CampaignRollup aggregates every committed episode summary of a campaign
// up to and including EpisodeID into the campaign summary.
func (p *Pipelines) CampaignRollup(ctx context.Context, rc *RunContext) (any, error) {
	in := rc.Input()
	if err := rc.Checkpoint(StageAggregating); err != nil {
		return nil, err
	}

	var episodes []types.EpisodeSummary
	for n := 1; n <= in.EpisodeID; n++ {
		key := artifact.EpisodeKey(in.CampaignID, n)
		var ep types.EpisodeSummary
		err := artifact.GetJSON(p.Store, key, &ep)
		if errors.Is(err, artifact.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	if len(episodes) == 0 {
		return nil, fmt.Errorf("campaign %d has no episode summaries: %w", in.CampaignID, artifact.ErrNotFound)
	}

	var prev *types.CampaignSummary
	campaignKey := artifact.CampaignKey(in.CampaignID)
	if p.Store.Exists(campaignKey) {
		var existing types.CampaignSummary
		if err := artifact.GetJSON(p.Store, campaignKey, &existing); err != nil {
			return nil, err
		}
		prev = &existing
	}

	rollup, err := p.Summarizer.Campaign(ctx, episodes, prev)
	if err != nil {
		return nil, err
	}
	if err := artifact.PutJSON(p.Store, campaignKey, rollup); err != nil {
		return nil, err
	}
	rc.Log.WithField("episodes", len(episodes)).Info("campaign summary committed")
	return rollup, nil
}
