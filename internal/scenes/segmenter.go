package scenes

import (
	"context"
	"fmt"

	"session-scribe-go/internal/types"
)

// TopicShiftFunc reports whether next opens a new conversational topic
// relative to the current scene. Optional second segmentation signal.
type TopicShiftFunc func(ctx context.Context, current []types.Utterance, next types.Utterance) (bool, error)

// Segmenter partitions a transcript into ordered, non-overlapping scenes.
// Every utterance lands in exactly one scene and the first utterance always
// opens scene 0.
type Segmenter struct {
	// GapSeconds is the silence between consecutive utterances that breaks
	// a scene.
	GapSeconds float64
	// MinDurationSeconds and MinUtterances suppress breaks while the
	// current scene is still too short to stand on its own. Zero disables
	// the guard.
	MinDurationSeconds float64
	MinUtterances      int
	// TopicShift, when set, can break a scene even without a silence gap.
	TopicShift TopicShiftFunc
}

// Split groups utterances into scenes. The input must already be ordered
// by start time, which the transcription stage guarantees.
func (s *Segmenter) Split(ctx context.Context, utterances []types.Utterance) ([]types.Scene, error) {
	if len(utterances) == 0 {
		return nil, fmt.Errorf("cannot segment an empty transcript")
	}

	var scenes []types.Scene
	current := []types.Utterance{utterances[0]}

	flush := func() {
		scenes = append(scenes, types.Scene{
			SceneIndex: len(scenes),
			Start:      current[0].Start,
			End:        current[len(current)-1].End,
			Utterances: current,
		})
		current = nil
	}

	for i := 1; i < len(utterances); i++ {
		prev := utterances[i-1]
		next := utterances[i]

		breakScene, err := s.shouldBreak(ctx, current, prev, next)
		if err != nil {
			return nil, err
		}
		if breakScene {
			flush()
		}
		current = append(current, next)
	}
	flush()

	return scenes, nil
}

func (s *Segmenter) shouldBreak(ctx context.Context, current []types.Utterance, prev, next types.Utterance) (bool, error) {
	if s.MinUtterances > 0 && len(current) < s.MinUtterances {
		return false, nil
	}
	if s.MinDurationSeconds > 0 {
		duration := prev.End - current[0].Start
		if duration < s.MinDurationSeconds {
			return false, nil
		}
	}

	if gap := next.Start - prev.End; gap > s.GapSeconds {
		return true, nil
	}
	if s.TopicShift != nil {
		shift, err := s.TopicShift(ctx, current, next)
		if err != nil {
			return false, fmt.Errorf("topic shift probe: %w", err)
		}
		return shift, nil
	}
	return false, nil
}
