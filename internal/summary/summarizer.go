package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"session-scribe-go/internal/backend"
	"session-scribe-go/internal/types"
)

// Summarizer turns scenes into structured summaries and rolls them up to
// episode and campaign level through the chat-completion backend.
//
// Scenes are summarized strictly in ascending order: each prompt carries
// the previous scene's summary for continuity, so this is a sequential
// dependency, not a parallelizable map.
type Summarizer struct {
	completer backend.Completer
	language  string
}

func New(c backend.Completer, language string) *Summarizer {
	if language == "" {
		language = "English"
	}
	return &Summarizer{completer: c, language: language}
}

const scenePrompt = `You are an expert chronicler of tabletop role-playing sessions.
Summarize ONE scene of a session transcript. Write in %s.

Return ONLY a JSON object with exactly these keys:
{
  "events": [],                 // notable events in order, short sentences
  "characters_mentioned": [],   // [{"name": "", "note": ""}] player characters only
  "npcs_mentioned": [],         // [{"name": "", "note": ""}] NPCs only
  "items": [],                  // [{"name": "", "description": "", "significance": ""}]
  "open_threads": []            // [{"description": "", "priority": "", "related_characters": []}]
}

Ground every field in the transcript. Leave lists empty rather than invent
details. Do not wrap the JSON in backticks or commentary.

PREVIOUS SCENE SUMMARY (context only, do not repeat its events):
%s

SCENE TO SUMMARIZE:
%s
`

type sceneDraft struct {
	Events              []string           `json:"events"`
	CharactersMentioned []types.Mention    `json:"characters_mentioned"`
	NPCsMentioned       []types.Mention    `json:"npcs_mentioned"`
	Items               []types.ItemOrClue `json:"items"`
	OpenThreads         []types.OpenThread `json:"open_threads"`
}

// Scene summarizes one scene. prev is the previous scene's summary within
// the same episode, nil for scene 0.
func (s *Summarizer) Scene(ctx context.Context, scene types.Scene, prev *types.SceneSummary) (types.SceneSummary, error) {
	prevContext := "NO PREVIOUS SUMMARY"
	if prev != nil {
		if data, err := json.Marshal(prev); err == nil {
			prevContext = string(data)
		}
	}

	var lines strings.Builder
	for _, u := range scene.Utterances {
		fmt.Fprintf(&lines, "[%.1fs] %s: %s\n", u.Start, u.Speaker, u.Text)
	}

	prompt := fmt.Sprintf(scenePrompt, s.language, prevContext, lines.String())
	var draft sceneDraft
	if err := s.completer.Complete(ctx, prompt, &draft); err != nil {
		return types.SceneSummary{}, err
	}

	return types.SceneSummary{
		SceneIndex:          scene.SceneIndex,
		Timestamps:          types.Timestamps{Start: scene.Start, End: scene.End},
		Events:              draft.Events,
		CharactersMentioned: draft.CharactersMentioned,
		NPCsMentioned:       draft.NPCsMentioned,
		Items:               draft.Items,
		OpenThreads:         draft.OpenThreads,
	}, nil
}

const episodePrompt = `You are an expert chronicler of tabletop role-playing sessions.
Given the structured summaries of every scene in one session, write the
session narrative. Write in %s.

Return ONLY a JSON object with exactly these keys:
{
  "session_overview": "",   // 3-6 sentence overview of the whole session
  "continuity_notes": []    // short notes a GM needs to keep the story consistent
}

Do not wrap the JSON in backticks or commentary.

PREVIOUS EPISODE SUMMARY (context only):
%s

SCENE SUMMARIES:
%s
`

type episodeNarrative struct {
	SessionOverview string   `json:"session_overview"`
	ContinuityNotes []string `json:"continuity_notes"`
}

func (n *episodeNarrative) Validate() error {
	if strings.TrimSpace(n.SessionOverview) == "" {
		return fmt.Errorf("session_overview is required")
	}
	return nil
}

// Episode aggregates the scene summaries of one episode. The narrative
// fields come from a single completion call; the entity lists are merged in
// code by exact case-insensitive name matching, so they never depend on
// model output. prev is the previous episode's summary, nil for episode 1.
func (s *Summarizer) Episode(ctx context.Context, summaries []types.SceneSummary, prev *types.EpisodeSummary) (types.EpisodeSummary, error) {
	if len(summaries) == 0 {
		return types.EpisodeSummary{}, fmt.Errorf("no scene summaries to aggregate")
	}

	prevContext := "NO PREVIOUS SUMMARY"
	if prev != nil {
		if data, err := json.Marshal(prev); err == nil {
			prevContext = string(data)
		}
	}
	scenesJSON, err := json.Marshal(summaries)
	if err != nil {
		return types.EpisodeSummary{}, fmt.Errorf("encode scene summaries: %w", err)
	}

	prompt := fmt.Sprintf(episodePrompt, s.language, prevContext, scenesJSON)
	var narrative episodeNarrative
	if err := s.completer.Complete(ctx, prompt, &narrative); err != nil {
		return types.EpisodeSummary{}, err
	}

	return types.EpisodeSummary{
		SessionOverview:  narrative.SessionOverview,
		KeyEvents:        mergeKeyEvents(summaries),
		CharacterUpdates: mergeCharacterUpdates(summaries),
		NPCUpdates:       mergeNPCUpdates(summaries),
		ItemsAndClues:    mergeItems(summaries),
		OpenThreads:      mergeOpenThreads(summaries),
		ContinuityNotes:  narrative.ContinuityNotes,
	}, nil
}

const campaignPrompt = `You are an expert chronicler of tabletop role-playing campaigns.
Given the summaries of every episode so far, write the campaign chronicle.
Write in %s.

Return ONLY a JSON object with exactly these keys:
{
  "campaign_overview": "",
  "player_characters": [],           // [{"name": "", "note": ""}]
  "major_story_arcs": [],            // [{"title": "", "description": "", "episodes_involved": [], "status": ""}]
  "character_development": [],       // [{"name": "", "changes": []}]
  "notable_npcs": [],                // [{"name": "", "details": []}]
  "important_items_and_clues": [],   // [{"name": "", "description": "", "significance": ""}]
  "unresolved_threads": [],          // [{"description": "", "priority": "", "related_characters": []}]
  "continuity_notes": ""
}

Do not wrap the JSON in backticks or commentary.

PREVIOUS CAMPAIGN SUMMARY (context only):
%s

EPISODE SUMMARIES IN ORDER:
%s
`

type campaignDraft struct {
	types.CampaignSummary
}

func (c *campaignDraft) Validate() error {
	if strings.TrimSpace(c.CampaignOverview) == "" {
		return fmt.Errorf("campaign_overview is required")
	}
	return nil
}

// Campaign rolls up episode summaries into a campaign summary.
func (s *Summarizer) Campaign(ctx context.Context, episodes []types.EpisodeSummary, prev *types.CampaignSummary) (types.CampaignSummary, error) {
	if len(episodes) == 0 {
		return types.CampaignSummary{}, fmt.Errorf("no episode summaries to aggregate")
	}

	prevContext := "NO PREVIOUS SUMMARY"
	if prev != nil {
		if data, err := json.Marshal(prev); err == nil {
			prevContext = string(data)
		}
	}
	episodesJSON, err := json.Marshal(episodes)
	if err != nil {
		return types.CampaignSummary{}, fmt.Errorf("encode episode summaries: %w", err)
	}

	prompt := fmt.Sprintf(campaignPrompt, s.language, prevContext, episodesJSON)
	var draft campaignDraft
	if err := s.completer.Complete(ctx, prompt, &draft); err != nil {
		return types.CampaignSummary{}, err
	}
	return draft.CampaignSummary, nil
}
