package scenes

import (
	"context"
	"fmt"
	"strings"

	"session-scribe-go/internal/backend"
	"session-scribe-go/internal/types"
)

const topicShiftPrompt = `You segment tabletop-RPG transcripts into scenes.
Given the lines of the current scene and one candidate line, decide whether
the candidate line starts a NEW scene (a change of location, encounter, or
conversational topic) or continues the current one.

Return ONLY a JSON object: {"new_scene": true|false}

CURRENT SCENE (most recent lines):
%s

CANDIDATE LINE:
%s
`

// How many trailing lines of the current scene the probe sees. Older lines
// add prompt cost without improving the boundary decision.
const topicShiftWindow = 12

type topicShiftVerdict struct {
	NewScene bool `json:"new_scene"`
}

// CompleterTopicShift builds a TopicShiftFunc on the chat-completion
// backend. It replaces the embedding-similarity check some segmenters use.
func CompleterTopicShift(c backend.Completer) TopicShiftFunc {
	return func(ctx context.Context, current []types.Utterance, next types.Utterance) (bool, error) {
		window := current
		if len(window) > topicShiftWindow {
			window = window[len(window)-topicShiftWindow:]
		}
		var b strings.Builder
		for _, u := range window {
			fmt.Fprintf(&b, "%s: %s\n", u.Speaker, u.Text)
		}
		prompt := fmt.Sprintf(topicShiftPrompt, b.String(), fmt.Sprintf("%s: %s", next.Speaker, next.Text))

		var verdict topicShiftVerdict
		if err := c.Complete(ctx, prompt, &verdict); err != nil {
			return false, err
		}
		return verdict.NewScene, nil
	}
}
