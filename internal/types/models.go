package types

// Utterance is one diarized speaker turn, the atomic unit of a transcript.
type Utterance struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// Scene is a contiguous run of utterances grouped as one conversational unit.
type Scene struct {
	SceneIndex int         `json:"scene_index"`
	Start      float64     `json:"start"`
	End        float64     `json:"end"`
	Utterances []Utterance `json:"utterances"`
}

type Timestamps struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (t Timestamps) Duration() float64 {
	return t.End - t.Start
}

// Mention is a character or NPC referenced in a scene.
type Mention struct {
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
}

type ItemOrClue struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Significance string `json:"significance,omitempty"`
}

type OpenThread struct {
	Description       string   `json:"description"`
	Priority          string   `json:"priority,omitempty"`
	RelatedCharacters []string `json:"related_characters,omitempty"`
}

// SceneSummary is the structured extraction for a single scene. Derived from
// exactly one Scene; superseded by re-running the stage, never mutated.
type SceneSummary struct {
	SceneIndex          int          `json:"scene_index"`
	Timestamps          Timestamps   `json:"timestamps"`
	Events              []string     `json:"events"`
	CharactersMentioned []Mention    `json:"characters_mentioned"`
	NPCsMentioned       []Mention    `json:"npcs_mentioned"`
	Items               []ItemOrClue `json:"items"`
	OpenThreads         []OpenThread `json:"open_threads"`
}

type CharacterUpdate struct {
	Name    string   `json:"name"`
	Changes []string `json:"changes"`
}

type NPCUpdate struct {
	Name    string   `json:"name"`
	Details []string `json:"details"`
}

// EpisodeSummary is the terminal artifact of one pipeline run.
type EpisodeSummary struct {
	SessionOverview  string            `json:"session_overview"`
	KeyEvents        []string          `json:"key_events"`
	CharacterUpdates []CharacterUpdate `json:"character_updates"`
	NPCUpdates       []NPCUpdate       `json:"npc_updates"`
	ItemsAndClues    []ItemOrClue      `json:"items_and_clues"`
	OpenThreads      []OpenThread      `json:"open_threads"`
	ContinuityNotes  []string          `json:"continuity_notes"`
}

type StoryArc struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	EpisodesInvolved []string `json:"episodes_involved,omitempty"`
	Status           string   `json:"status,omitempty"`
}

// CampaignSummary rolls up every episode summary of a campaign.
type CampaignSummary struct {
	CampaignOverview     string            `json:"campaign_overview"`
	PlayerCharacters     []Mention         `json:"player_characters"`
	MajorStoryArcs       []StoryArc        `json:"major_story_arcs"`
	CharacterDevelopment []CharacterUpdate `json:"character_development"`
	NotableNPCs          []NPCUpdate       `json:"notable_npcs"`
	ImportantItems       []ItemOrClue      `json:"important_items_and_clues"`
	UnresolvedThreads    []OpenThread      `json:"unresolved_threads"`
	ContinuityNotes      string            `json:"continuity_notes"`
}
