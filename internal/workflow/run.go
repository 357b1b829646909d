package workflow

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status of a pipeline run. Completed and Failed are terminal.
type Status string

const (
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// Stage cursor values. The summarizing cursor carries scene progress and is
// produced with SummarizingStage.
const (
	StageCreated      = "created"
	StageTranscribing = "transcribing"
	StageSegmenting   = "segmenting"
	StageAggregating  = "aggregating"
)

// SummarizingStage renders the cursor for scene i (0-based) of n.
func SummarizingStage(i, n int) string {
	return fmt.Sprintf("summarizing scene %d of %d", i+1, n)
}

// RunInput identifies what one pipeline run works on. AudioFilePath is set
// for the audio entry point, TranscriptRef optionally overrides the default
// transcript key for the transcript entry point.
type RunInput struct {
	CampaignID    int    `json:"campaign_id"`
	EpisodeID     int    `json:"episode_id"`
	AudioFilePath string `json:"audio_file_path,omitempty"`
	TranscriptRef string `json:"transcript_ref,omitempty"`
}

// PipelineRun is the durable instance record. It is written once at
// schedule time and rewritten on every stage checkpoint and on completion,
// then retained for status queries. The pipeline never deletes it.
type PipelineRun struct {
	InstanceID    string          `json:"instance_id"`
	Workflow      string          `json:"workflow"`
	Input         RunInput        `json:"input"`
	Status        Status          `json:"status"`
	Stage         string          `json:"stage"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	FailureDetail string          `json:"failure_detail,omitempty"`
	Output        json.RawMessage `json:"output,omitempty"`
}
