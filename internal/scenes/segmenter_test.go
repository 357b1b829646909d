package scenes

import (
	"context"
	"reflect"
	"testing"

	"session-scribe-go/internal/types"
)

func u(speaker string, start, end float64, text string) types.Utterance {
	return types.Utterance{Speaker: speaker, Start: start, End: end, Text: text}
}

func TestSplitSingleUtterance(t *testing.T) {
	s := &Segmenter{GapSeconds: 120}
	scenes, err := s.Split(context.Background(), []types.Utterance{u("GM", 0, 3, "you enter the tavern")})
	if err != nil {
		t.Fatal(err)
	}
	if len(scenes) != 1 {
		t.Fatalf("scenes = %d, want 1", len(scenes))
	}
	if scenes[0].SceneIndex != 0 || len(scenes[0].Utterances) != 1 {
		t.Errorf("scene = %+v", scenes[0])
	}
}

func TestSplitEmptyTranscript(t *testing.T) {
	s := &Segmenter{GapSeconds: 120}
	if _, err := s.Split(context.Background(), nil); err == nil {
		t.Error("Split accepted an empty transcript")
	}
}

func TestSplitGapThreshold(t *testing.T) {
	// Three utterances separated by two 5-minute gaps; a 2-minute threshold
	// must yield three single-utterance scenes.
	utterances := []types.Utterance{
		u("GM", 0, 10, "the caravan departs"),
		u("GM", 310, 320, "you reach the crossroads"),
		u("GM", 620, 630, "night falls"),
	}
	s := &Segmenter{GapSeconds: 120}
	scenes, err := s.Split(context.Background(), utterances)
	if err != nil {
		t.Fatal(err)
	}
	if len(scenes) != 3 {
		t.Fatalf("scenes = %d, want 3", len(scenes))
	}
	for i, sc := range scenes {
		if sc.SceneIndex != i {
			t.Errorf("scene %d has index %d", i, sc.SceneIndex)
		}
		if len(sc.Utterances) != 1 {
			t.Errorf("scene %d has %d utterances, want 1", i, len(sc.Utterances))
		}
	}
}

func TestSplitPartitionsTranscript(t *testing.T) {
	utterances := []types.Utterance{
		u("GM", 0, 5, "a"),
		u("P1", 6, 9, "b"),
		u("P2", 200, 204, "c"),
		u("GM", 205, 210, "d"),
		u("P1", 500, 505, "e"),
	}
	s := &Segmenter{GapSeconds: 60}
	scenes, err := s.Split(context.Background(), utterances)
	if err != nil {
		t.Fatal(err)
	}

	// No empty scenes, strictly increasing indices, ordered by start time.
	var rejoined []types.Utterance
	for i, sc := range scenes {
		if len(sc.Utterances) == 0 {
			t.Fatalf("scene %d is empty", i)
		}
		if sc.SceneIndex != i {
			t.Errorf("scene %d has index %d", i, sc.SceneIndex)
		}
		if sc.Start != sc.Utterances[0].Start || sc.End != sc.Utterances[len(sc.Utterances)-1].End {
			t.Errorf("scene %d bounds %v-%v do not match its utterances", i, sc.Start, sc.End)
		}
		if i > 0 {
			prev := scenes[i-1]
			if prev.Utterances[len(prev.Utterances)-1].Start > sc.Utterances[0].Start {
				t.Errorf("scene %d starts before scene %d ends", i, i-1)
			}
		}
		rejoined = append(rejoined, sc.Utterances...)
	}

	// Concatenating all scenes reproduces the transcript exactly: zero
	// gaps, zero overlaps.
	if !reflect.DeepEqual(rejoined, utterances) {
		t.Errorf("rejoined = %+v\nwant %+v", rejoined, utterances)
	}
	if len(scenes) != 3 {
		t.Errorf("scenes = %d, want 3", len(scenes))
	}
}

func TestSplitMinGuardsSuppressBreaks(t *testing.T) {
	utterances := []types.Utterance{
		u("GM", 0, 5, "a"),
		u("P1", 200, 204, "b"), // over the gap threshold
		u("P2", 400, 404, "c"), // over it again
	}
	s := &Segmenter{GapSeconds: 60, MinUtterances: 2}
	scenes, err := s.Split(context.Background(), utterances)
	if err != nil {
		t.Fatal(err)
	}
	// First break is suppressed (scene too short), second fires.
	if len(scenes) != 2 {
		t.Fatalf("scenes = %d, want 2", len(scenes))
	}
	if len(scenes[0].Utterances) != 2 {
		t.Errorf("scene 0 has %d utterances, want 2", len(scenes[0].Utterances))
	}
}

type fakeShift struct {
	calls int
	on    map[string]bool
}

func (f *fakeShift) fn(_ context.Context, _ []types.Utterance, next types.Utterance) (bool, error) {
	f.calls++
	return f.on[next.Text], nil
}

func TestSplitTopicShift(t *testing.T) {
	utterances := []types.Utterance{
		u("GM", 0, 5, "the market bustles"),
		u("P1", 6, 9, "I haggle for rations"),
		u("GM", 10, 15, "meanwhile, in the castle"),
		u("P2", 16, 20, "the king paces"),
	}
	shift := &fakeShift{on: map[string]bool{"meanwhile, in the castle": true}}
	s := &Segmenter{GapSeconds: 600, TopicShift: shift.fn}
	scenes, err := s.Split(context.Background(), utterances)
	if err != nil {
		t.Fatal(err)
	}
	if len(scenes) != 2 {
		t.Fatalf("scenes = %d, want 2", len(scenes))
	}
	if got := scenes[1].Utterances[0].Text; got != "meanwhile, in the castle" {
		t.Errorf("scene 1 opens with %q", got)
	}
	if shift.calls != 3 {
		t.Errorf("probe called %d times, want 3", shift.calls)
	}
}
